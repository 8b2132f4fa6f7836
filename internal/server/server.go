// Package server provides the HTTP API for valuations, history,
// system monitoring and admin job triggers.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/flipwise/appraiser/internal/config"
	"github.com/flipwise/appraiser/internal/database"
	"github.com/flipwise/appraiser/internal/events"
	"github.com/flipwise/appraiser/internal/modules/history"
	"github.com/flipwise/appraiser/internal/pipeline"
	"github.com/flipwise/appraiser/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Port         int
	Log          zerolog.Logger
	Config       *config.Config
	Databases    []*database.DB
	Pipeline     *pipeline.Pipeline
	History      *history.Store
	EventBus     *events.Bus
	EventManager *events.Manager
	Scheduler    *scheduler.Scheduler
	DevMode      bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	databases      []*database.DB
	pipeline       *pipeline.Pipeline
	history        *history.Store
	eventBus       *events.Bus
	systemHandlers *SystemHandlers
	statusMonitor  *StatusMonitor
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		databases:      cfg.Databases,
		pipeline:       cfg.Pipeline,
		history:        cfg.History,
		eventBus:       cfg.EventBus,
		systemHandlers: NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.Databases, cfg.Scheduler),
		statusMonitor:  NewStatusMonitor(cfg.EventManager, cfg.Databases, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the event stream holds its response open
		// and heartbeats every 30 seconds.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetJobs registers job references for manual triggering via the admin
// endpoints. Called after jobs are registered in main.
func (s *Server) SetJobs(backup, cacheCleanup, historyCompaction, maintenance scheduler.Job) {
	s.systemHandlers.SetJobs(backup, cacheCleanup, historyCompaction, maintenance)
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Mounted outside the request timeout so connections can stay open
		r.Get("/events/stream", NewEventsStreamHandler(s.eventBus, s.log).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/health", s.handleHealth)

			r.Route("/valuations", func(r chi.Router) {
				r.Post("/", s.handleCreateValuation)
				r.Get("/history", s.handleValuationHistory)
			})

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
				r.Get("/disk-usage", s.systemHandlers.HandleDiskUsage)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Post("/backup", s.systemHandlers.HandleTriggerBackup)
				r.Post("/cache/cleanup", s.systemHandlers.HandleTriggerCacheCleanup)
				r.Post("/history/compaction", s.systemHandlers.HandleTriggerHistoryCompaction)
				r.Post("/maintenance", s.systemHandlers.HandleTriggerMaintenance)
			})
		})
	})
}

// Start starts the HTTP server and the background status monitor.
// It blocks until the server stops.
func (s *Server) Start() error {
	s.statusMonitor.Start(30 * time.Second)

	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
