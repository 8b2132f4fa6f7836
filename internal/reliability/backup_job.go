package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// backupTimeout bounds a full snapshot, archive and upload cycle
const backupTimeout = 10 * time.Minute

// BackupJob wraps BackupService for the scheduler
type BackupJob struct {
	service *BackupService
	maxKeep int
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job with count-based retention
func NewBackupJob(service *BackupService, maxKeep int, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		maxKeep: maxKeep,
		log:     log.With().Str("job", "s3_backup").Logger(),
	}
}

// Run executes one backup cycle. Retention failures are logged but do not
// fail the run once the upload has succeeded.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	if err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if err := j.service.PruneOldBackups(ctx, j.maxKeep); err != nil {
		j.log.Warn().Err(err).Msg("Backup retention failed")
	}

	return nil
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "s3_backup"
}
