package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/workgate/internal/config"
	"github.com/me/workgate/internal/events"
	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/scheduler"
	"github.com/me/workgate/internal/store"
)

// Server is the workgate REST API server.
type Server struct {
	router      chi.Router
	logger      *slog.Logger
	config      config.ServerConfig
	startTime   time.Time
	store       store.Store
	scheduler   scheduler.Scheduler
	broadcaster *events.Broadcaster // optional; backs the SSE stream
	metrics     http.Handler        // optional; served at /metrics
	heartbeat   time.Duration
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithBroadcaster sets the event source for /sse/constraints.
func WithBroadcaster(b *events.Broadcaster) Option {
	return func(s *Server) {
		s.broadcaster = b
	}
}

// WithMetricsHandler mounts h at /api/v1/metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithHeartbeat sets the SSE heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

// New creates a new Server with all routes registered.
// sched may be nil if no scheduling is desired (e.g. in tests).
func New(cfg config.ServerConfig, st store.Store, sched scheduler.Scheduler, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logging.Component(logger, "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		scheduler: sched,
		heartbeat: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// StartScheduler begins the scheduling loop in a background goroutine.
func (s *Server) StartScheduler(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	go func() {
		if err := s.scheduler.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("scheduler stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		// Jobs
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleSubmitJob)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetJob)
				r.Post("/cancel", s.handleCancelJob)
				r.Post("/complete", s.handleCompleteJob)
			})
		})

		// Constraint status
		r.Get("/constraints", s.handleConstraints)

		// SSE endpoints for real-time updates
		r.Route("/sse", func(r chi.Router) {
			r.Get("/constraints", s.handleSSEConstraints)
		})

		if s.metrics != nil {
			r.Handle("/metrics", s.metrics)
		}
	})
}
