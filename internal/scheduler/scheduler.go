// Package scheduler provides cron-driven background job management.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/flipwise/appraiser/internal/events"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs on a single cron goroutine. Jobs are
// independent and idempotent; a failed run is logged and emitted, never
// retried ahead of schedule.
type Scheduler struct {
	cron   *cron.Cron
	events *events.Manager
	log    zerolog.Logger
}

// New creates a new scheduler
func New(eventManager *events.Manager, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		events: eventManager,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for any running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "@hourly"            - Every hour
//   - "0 0 3 * * *"        - 3 AM daily
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		_ = s.execute(job)
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.execute(job)
}

// execute runs one job with lifecycle events and duration tracking.
func (s *Scheduler) execute(job Job) error {
	start := time.Now()

	s.log.Debug().Str("job", job.Name()).Msg("Running job")
	s.events.EmitTyped(events.JobStarted, "scheduler", &events.JobStatusData{
		JobType:   job.Name(),
		Status:    "started",
		Timestamp: start,
	})

	err := job.Run()
	elapsed := time.Since(start)

	if err != nil {
		s.log.Error().
			Err(err).
			Str("job", job.Name()).
			Dur("elapsed", elapsed).
			Msg("Job failed")
		s.events.EmitTyped(events.JobFailed, "scheduler", &events.JobStatusData{
			JobType:   job.Name(),
			Status:    "failed",
			Error:     err.Error(),
			Duration:  elapsed.Seconds(),
			Timestamp: time.Now(),
		})
		return err
	}

	s.log.Debug().Str("job", job.Name()).Dur("elapsed", elapsed).Msg("Job completed")
	s.events.EmitTyped(events.JobCompleted, "scheduler", &events.JobStatusData{
		JobType:   job.Name(),
		Status:    "completed",
		Duration:  elapsed.Seconds(),
		Timestamp: time.Now(),
	})

	return nil
}
