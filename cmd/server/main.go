// Package main is the entry point for the appraiser valuation service.
// It wires the databases, the valuation pipeline and its collaborators,
// the background job scheduler, and the HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flipwise/appraiser/internal/cachedata"
	"github.com/flipwise/appraiser/internal/clients/knowledge"
	"github.com/flipwise/appraiser/internal/config"
	"github.com/flipwise/appraiser/internal/database"
	"github.com/flipwise/appraiser/internal/events"
	"github.com/flipwise/appraiser/internal/modules/discovery"
	"github.com/flipwise/appraiser/internal/modules/history"
	"github.com/flipwise/appraiser/internal/modules/pricing"
	"github.com/flipwise/appraiser/internal/modules/signals"
	"github.com/flipwise/appraiser/internal/modules/valuation"
	"github.com/flipwise/appraiser/internal/pipeline"
	"github.com/flipwise/appraiser/internal/reliability"
	"github.com/flipwise/appraiser/internal/scheduler"
	"github.com/flipwise/appraiser/internal/server"
	"github.com/flipwise/appraiser/pkg/logger"
)

func main() {
	// Load configuration first to get the log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting Appraiser")

	// Initialize databases: cache holds TTL-bound valuation and signal
	// payloads, history holds the append-only observation log.
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache database")
	}
	defer cacheDB.Close()

	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize history database")
	}
	defer historyDB.Close()

	for _, db := range []*database.DB{cacheDB, historyDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to run migrations")
		}
	}
	databases := []*database.DB{cacheDB, historyDB}

	// Event bus and typed emitter
	eventBus := events.NewBus(log)
	eventManager := events.NewManager(eventBus, log)

	// Repositories
	cacheRepo := cachedata.NewRepository(cacheDB.Conn())
	historyStore := history.NewStore(historyDB.Conn(), log)

	// Knowledge provider and the two services built on it
	if cfg.Provider.APIKey == "" {
		log.Warn().Msg("Knowledge provider not configured - valuations will use the local estimator")
	}
	knowledgeClient := knowledge.NewClient(knowledge.Config{
		BaseURL:   cfg.Provider.BaseURL,
		APIKey:    cfg.Provider.APIKey,
		Model:     cfg.Provider.Model,
		MaxTokens: cfg.Provider.MaxTokens,
	}, log)

	// Valuation core
	estimator := valuation.NewEstimator(valuation.DefaultEstimatorConfig())
	validator := valuation.NewSanityValidator(estimator, valuation.DefaultValidatorConfig(), log)

	adjusterCfg := pricing.DefaultAdjusterConfig()
	adjusterCfg.RegionalDiscountPct = cfg.RegionalDiscountPct
	adjuster := pricing.NewAdjuster(adjusterCfg, log)

	discoveryService := discovery.NewService(knowledgeClient, validator, discovery.DefaultConfig(), log)
	signalsService := signals.NewService(knowledgeClient, cacheRepo, historyStore, log)

	pipelineCfg := pipeline.DefaultConfig()
	if cfg.Provider.DiscoveryTimeout > 0 {
		pipelineCfg.DiscoveryTimeout = cfg.Provider.DiscoveryTimeout
	}
	if cfg.Provider.EnrichmentTimeout > 0 {
		pipelineCfg.SignalsTimeout = cfg.Provider.EnrichmentTimeout
	}

	valuationPipeline := pipeline.New(pipelineCfg, pipeline.Deps{
		Discovery: discoveryService,
		Estimator: estimator,
		Validator: validator,
		Adjuster:  adjuster,
		Signals:   signalsService,
		Cache:     cacheRepo,
		History:   historyStore,
		Events:    eventManager,
	}, log)

	// Scheduler and background jobs
	sched := scheduler.New(eventManager, log)

	cleanupJob := cachedata.NewCleanupJob(cacheRepo, log)
	if err := sched.AddJob("0 0 * * * *", cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}

	compactionJob := history.NewCompactionJob(historyStore, log)
	if err := sched.AddJob("0 30 4 * * *", compactionJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register history compaction job")
	}

	maintenanceJob := reliability.NewMaintenanceJob(databases, cfg.DataDir, log)
	if err := sched.AddJob("0 30 2 * * *", maintenanceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance job")
	}

	var backupJob scheduler.Job
	if cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage client")
		}
		backupService := reliability.NewBackupService(s3Client, databases, cfg.DataDir, eventManager, log)
		job := reliability.NewBackupJob(backupService, cfg.Backup.MaxKeep, log)
		if err := sched.AddJob(cfg.Backup.Schedule, job); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
		backupJob = job
	} else {
		log.Info().Msg("Backups disabled")
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Port:         cfg.Port,
		Log:          log,
		Config:       cfg,
		Databases:    databases,
		Pipeline:     valuationPipeline,
		History:      historyStore,
		EventBus:     eventBus,
		EventManager: eventManager,
		Scheduler:    sched,
		DevMode:      cfg.DevMode,
	})
	srv.SetJobs(backupJob, cleanupJob, compactionJob, maintenanceJob)

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
