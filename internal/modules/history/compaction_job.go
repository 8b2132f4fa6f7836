package history

import (
	"time"

	"github.com/rs/zerolog"
)

// Retention defaults for the compaction job. A year of observations and
// a generous per-family cap keep trend queries fast without losing the
// signal.
const (
	DefaultMaxAge        = 365 * 24 * time.Hour
	DefaultKeepPerFamily = 200
)

// CompactionJob trims the history table on a schedule.
type CompactionJob struct {
	store         *Store
	maxAge        time.Duration
	keepPerFamily int
	log           zerolog.Logger
}

// NewCompactionJob creates a compaction job with the default retention.
func NewCompactionJob(store *Store, log zerolog.Logger) *CompactionJob {
	return &CompactionJob{
		store:         store,
		maxAge:        DefaultMaxAge,
		keepPerFamily: DefaultKeepPerFamily,
		log:           log.With().Str("job", "history_compaction").Logger(),
	}
}

// Run executes one compaction pass.
func (j *CompactionJob) Run() error {
	removed, err := j.store.Compact(j.maxAge, j.keepPerFamily)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to compact valuation history")
		return err
	}

	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("History compaction completed")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CompactionJob) Name() string {
	return "history_compaction"
}
