package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/flipwise/appraiser/internal/database"
	"github.com/flipwise/appraiser/internal/events"
)

// StatusMonitor periodically pings the databases and emits an event
// when the overall status flips between healthy and degraded.
type StatusMonitor struct {
	eventManager *events.Manager
	databases    []*database.DB
	log          zerolog.Logger

	lastStatus string
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(eventManager *events.Manager, databases []*database.DB, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		eventManager: eventManager,
		databases:    databases,
		log:          log.With().Str("component", "status_monitor").Logger(),
	}
}

// Start begins periodic status monitoring
func (m *StatusMonitor) Start(interval time.Duration) {
	go m.monitor(interval)
}

// monitor runs the periodic monitoring loop
func (m *StatusMonitor) monitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do initial check
	m.checkStatus()

	for range ticker.C {
		m.checkStatus()
	}
}

// checkStatus pings every database and emits SYSTEM_STATUS_CHANGED when
// the aggregate status differs from the previous check. The first check
// always emits.
func (m *StatusMonitor) checkStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := "healthy"
	for _, db := range m.databases {
		if err := db.QuickCheck(ctx); err != nil {
			m.log.Warn().Err(err).Str("database", db.Name()).Msg("Database ping failed")
			status = "degraded"
			break
		}
	}

	if status == m.lastStatus {
		return
	}

	m.log.Info().
		Str("from", m.lastStatus).
		Str("to", status).
		Msg("System status changed")

	if m.eventManager != nil {
		m.eventManager.EmitTyped(events.SystemStatusChanged, "status_monitor", &events.SystemStatusChangedData{
			Status:    status,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	m.lastStatus = status
}
