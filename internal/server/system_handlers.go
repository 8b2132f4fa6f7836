package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/flipwise/appraiser/internal/database"
	"github.com/flipwise/appraiser/internal/scheduler"
)

// SystemHandlers handles system monitoring and admin trigger endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   []*database.DB
	scheduler   *scheduler.Scheduler

	// Jobs (set after registration in main)
	backupJob            scheduler.Job
	cacheCleanupJob      scheduler.Job
	historyCompactionJob scheduler.Job
	maintenanceJob       scheduler.Job
}

// NewSystemHandlers creates handlers for system monitoring endpoints
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases []*database.DB, sched *scheduler.Scheduler) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
		scheduler:   sched,
	}
}

// SetJobs registers job references for manual triggering
func (h *SystemHandlers) SetJobs(backup, cacheCleanup, historyCompaction, maintenance scheduler.Job) {
	h.backupJob = backup
	h.cacheCleanupJob = cacheCleanup
	h.historyCompactionJob = historyCompaction
	h.maintenanceJob = maintenance
}

// SystemStatusResponse is the GET /api/system/status payload
type SystemStatusResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	DiskFreeGB    float64  `json:"disk_free_gb"`
	Databases     []DBInfo `json:"databases"`
	Timestamp     string   `json:"timestamp"`
}

// DBInfo describes one database in a status response
type DBInfo struct {
	Name      string  `json:"name"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	Healthy   bool    `json:"healthy"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	status := "healthy"
	dbInfos := make([]DBInfo, 0, len(h.databases))
	for _, db := range h.databases {
		info := DBInfo{Name: db.Name(), Healthy: true}

		if err := db.QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Database ping failed")
			info.Healthy = false
			status = "degraded"
		}

		if stats, err := db.GetStats(); err == nil {
			info.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
			info.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
		}

		dbInfos = append(dbInfos, info)
	}

	diskFreeGB := 0.0
	if usage, err := disk.Usage(h.dataDir); err == nil {
		diskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
	}

	h.writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		DiskFreeGB:    diskFreeGB,
		Databases:     dbInfos,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}

// DatabaseStatsResponse is the GET /api/system/database/stats payload
type DatabaseStatsResponse struct {
	Databases []DatabaseStats `json:"databases"`
	Timestamp string          `json:"timestamp"`
}

// DatabaseStats carries the page-level statistics for one database
type DatabaseStats struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	PageSize      int64   `json:"page_size"`
	FreelistCount int64   `json:"freelist_count"`
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	response := DatabaseStatsResponse{
		Databases: make([]DatabaseStats, 0, len(h.databases)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	for _, db := range h.databases {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to collect database stats",
			})
			return
		}

		response.Databases = append(response.Databases, DatabaseStats{
			Name:          db.Name(),
			Path:          db.Path(),
			SizeMB:        float64(stats.SizeBytes) / 1024 / 1024,
			WALSizeMB:     float64(stats.WALSizeBytes) / 1024 / 1024,
			PageCount:     stats.PageCount,
			PageSize:      stats.PageSize,
			FreelistCount: stats.FreelistCount,
		})
	}

	h.writeJSON(w, http.StatusOK, response)
}

// DiskUsageResponse is the GET /api/system/disk-usage payload
type DiskUsageResponse struct {
	DataDirSizeMB float64 `json:"data_dir_size_mb"`
	DiskTotalGB   float64 `json:"disk_total_gb"`
	DiskFreeGB    float64 `json:"disk_free_gb"`
	DiskUsedPct   float64 `json:"disk_used_pct"`
	Timestamp     string  `json:"timestamp"`
}

// HandleDiskUsage handles GET /api/system/disk-usage
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	dirSize, err := getDirSize(h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Str("dir", h.dataDir).Msg("Failed to measure data directory")
	}

	response := DiskUsageResponse{
		DataDirSizeMB: float64(dirSize) / 1024 / 1024,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	if usage, err := disk.Usage(h.dataDir); err == nil {
		response.DiskTotalGB = float64(usage.Total) / 1024 / 1024 / 1024
		response.DiskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
		response.DiskUsedPct = usage.UsedPercent
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleTriggerBackup handles POST /api/admin/backup
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.backupJob, "backup")
}

// HandleTriggerCacheCleanup handles POST /api/admin/cache/cleanup
func (h *SystemHandlers) HandleTriggerCacheCleanup(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.cacheCleanupJob, "cache cleanup")
}

// HandleTriggerHistoryCompaction handles POST /api/admin/history/compaction
func (h *SystemHandlers) HandleTriggerHistoryCompaction(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.historyCompactionJob, "history compaction")
}

// HandleTriggerMaintenance handles POST /api/admin/maintenance
func (h *SystemHandlers) HandleTriggerMaintenance(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.maintenanceJob, "maintenance")
}

// triggerJob runs a registered job synchronously and reports its outcome.
// Jobs are nil until main wires them, and stay nil when their feature is
// disabled (e.g. backups without credentials).
func (h *SystemHandlers) triggerJob(w http.ResponseWriter, job scheduler.Job, label string) {
	if job == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": label + " job is not configured",
		})
		return
	}

	h.log.Info().Str("job", job.Name()).Msg("Running job immediately")

	if err := h.scheduler.RunNow(job); err != nil {
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": label + " failed: " + err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": label + " completed",
	})
}

// getSystemStats samples CPU and memory usage
func (h *SystemHandlers) getSystemStats() (cpuPercent, memPercent float64) {
	if percentages, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percentages) > 0 {
		cpuPercent = percentages[0]
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		memPercent = vmStat.UsedPercent
	}

	return cpuPercent, memPercent
}

// getDirSize walks a directory tree and sums regular file sizes
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
