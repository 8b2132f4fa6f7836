// Package events provides event management functionality.
package events

// EventType represents different event types
type EventType string

const (
	// Pipeline lifecycle events
	ValuationStarted   EventType = "VALUATION_STARTED"
	ValuationCompleted EventType = "VALUATION_COMPLETED"
	ValuationFailed    EventType = "VALUATION_FAILED"
	DiscoveryCompleted EventType = "DISCOVERY_COMPLETED"
	SignalsResolved    EventType = "SIGNALS_RESOLVED"
	CacheHit           EventType = "CACHE_HIT"

	// Background job lifecycle events
	JobStarted   EventType = "JOB_STARTED"
	JobCompleted EventType = "JOB_COMPLETED"
	JobFailed    EventType = "JOB_FAILED"

	// Operational events
	BackupCompleted     EventType = "BACKUP_COMPLETED"
	SystemStatusChanged EventType = "SYSTEM_STATUS_CHANGED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)
