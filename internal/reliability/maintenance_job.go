package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/flipwise/appraiser/internal/database"
)

// maintenanceTimeout bounds the integrity checks across all databases
const maintenanceTimeout = 2 * time.Minute

// MaintenanceJob performs periodic database upkeep: integrity checks, WAL
// checkpoints, a VACUUM of the cache database and a disk space check on
// the data directory.
type MaintenanceJob struct {
	databases []*database.DB
	dataDir   string
	log       zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(databases []*database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Run executes the maintenance job
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting database maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	// Step 1: Integrity check for all databases
	for _, db := range j.databases {
		j.log.Debug().Str("database", db.Name()).Msg("Running integrity check")

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().
				Str("database", db.Name()).
				Err(err).
				Msg("Integrity check failed")
			return fmt.Errorf("integrity check failed for %s: %w", db.Name(), err)
		}
	}

	// Step 2: WAL checkpoint for all databases (prevent bloat)
	for _, db := range j.databases {
		j.log.Debug().Str("database", db.Name()).Msg("Running WAL checkpoint")

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Str("database", db.Name()).
				Err(err).
				Msg("WAL checkpoint failed")
			// Not critical, continue
		}
	}

	// Step 3: VACUUM the ephemeral cache database
	for _, db := range j.databases {
		if db.Name() != "cache" {
			continue
		}

		j.log.Debug().Str("database", db.Name()).Msg("Running VACUUM")

		if err := db.Vacuum(); err != nil {
			j.log.Warn().
				Str("database", db.Name()).
				Err(err).
				Msg("VACUUM failed")
		}
	}

	// Step 4: Check disk space
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	// Step 5: Log database size metrics
	j.logDatabaseStats()

	duration := time.Since(startTime)
	j.log.Info().
		Dur("duration_ms", duration).
		Msg("Database maintenance completed")

	return nil
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// checkDiskSpace fails the run when free space in the data directory drops
// below 500MB so the failure surfaces as a job event
func (j *MaintenanceJob) checkDiskSpace() error {
	usage, err := disk.Usage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	freeGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("free_gb", freeGB).Msg("Disk space check")

	if freeGB < 0.5 {
		j.log.Error().
			Float64("free_gb", freeGB).
			Msg("Insufficient disk space for database growth")
		return fmt.Errorf("only %.2f GB free in %s", freeGB, j.dataDir)
	}

	if freeGB < 2.0 {
		j.log.Warn().
			Float64("free_gb", freeGB).
			Msg("Disk space running low")
	}

	return nil
}

// logDatabaseStats records per-database size metrics for growth tracking
func (j *MaintenanceJob) logDatabaseStats() {
	for _, db := range j.databases {
		stats, err := db.GetStats()
		if err != nil {
			j.log.Warn().
				Str("database", db.Name()).
				Err(err).
				Msg("Failed to get database stats")
			continue
		}

		j.log.Info().
			Str("database", db.Name()).
			Float64("size_mb", float64(stats.SizeBytes)/1024/1024).
			Float64("wal_size_mb", float64(stats.WALSizeBytes)/1024/1024).
			Int64("freelist_pages", stats.FreelistCount).
			Msg("Database metrics")
	}
}
