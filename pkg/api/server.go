// Package api implements the HTTP admin surface for zoneweaverd: task
// inspection and cancellation, the zone-shutdown orchestrator's control
// endpoints, Prometheus metrics, and liveness/readiness probes.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/cuemby/zoneweaver-core/pkg/log"
	"github.com/cuemby/zoneweaver-core/pkg/metrics"
	"github.com/cuemby/zoneweaver-core/pkg/orchestrator"
	"github.com/cuemby/zoneweaver-core/pkg/registry"
	"github.com/cuemby/zoneweaver-core/pkg/store"
	"github.com/cuemby/zoneweaver-core/pkg/types"
)

// SchedulerStats is the narrow view of the scheduler the API needs for
// /tasks/stats; it depends on behavior rather than *scheduler.Scheduler to
// avoid importing the scheduler package.
type SchedulerStats interface {
	RunningCount() int
}

// ZoneInventory returns the current zone list with shutdown priorities. It
// is satisfied by *handlers.Handlers.ZoneInventory.
type ZoneInventory func(ctx context.Context) ([]types.ZoneInfo, error)

// Server is the HTTP admin API.
type Server struct {
	store      store.Store
	registry   *registry.Registry
	scheduler  SchedulerStats
	orch       *orchestrator.Orchestrator
	zones      ZoneInventory
	logger     zerolog.Logger
	httpServer *http.Server

	paginationLimit int

	orchestration *orchestrationControl
}

// Config configures the Server.
type Config struct {
	ListenAddr             string
	DefaultPaginationLimit int
	DefaultPriorityDelay   time.Duration
	DefaultFailureAction   orchestrator.FailureAction
}

// NewServer builds a Server and its chi router. st, reg, and sched must be
// non-nil; orch and zones may be nil if host-shutdown orchestration is not
// wired (the zone-backed endpoints then fail with a clear error rather than
// panicking; the orchestration toggle starts enabled either way).
func NewServer(cfg Config, st store.Store, reg *registry.Registry, sched SchedulerStats, orch *orchestrator.Orchestrator, zones ZoneInventory) *Server {
	if cfg.DefaultPaginationLimit <= 0 {
		cfg.DefaultPaginationLimit = 100
	}
	if cfg.DefaultPriorityDelay <= 0 {
		cfg.DefaultPriorityDelay = 5 * time.Second
	}
	if cfg.DefaultFailureAction == "" {
		cfg.DefaultFailureAction = orchestrator.FailureActionContinue
	}

	s := &Server{
		store:           st,
		registry:        reg,
		scheduler:       sched,
		orch:            orch,
		zones:           zones,
		logger:          log.WithComponent("api"),
		paginationLimit: cfg.DefaultPaginationLimit,
		orchestration: &orchestrationControl{
			enabled:       true,
			priorityDelay: cfg.DefaultPriorityDelay,
			failureAction: cfg.DefaultFailureAction,
		},
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestMetrics)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.listTasks)
		r.Post("/", s.createTask)
		r.Get("/stats", s.taskStats)
		r.Get("/{id}", s.getTask)
		r.Delete("/{id}", s.cancelTask)
	})

	router.Route("/zones", func(r chi.Router) {
		r.Get("/priorities", s.zonePriorities)
		r.Route("/orchestration", func(r chi.Router) {
			r.Get("/status", s.orchestrationStatus)
			r.Post("/enable", s.orchestrationEnable)
			r.Post("/disable", s.orchestrationDisable)
			r.Post("/test", s.orchestrationTest)
		})
	})

	router.Handle("/metrics", metrics.Handler())
	router.Get("/healthz", s.healthz)
	router.Get("/readyz", s.readyz)

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start serves the API until the process is stopped or Shutdown is called.
// It blocks like http.Server.ListenAndServe.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting API server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestMetrics records APIRequestsTotal/APIRequestDuration per route
// pattern (not raw path, to keep cardinality bounded).
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.APIRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
