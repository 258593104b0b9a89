package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/ingest"
	"github.com/JakeFAU/ai-readiness-scorer/internal/metrics"
	"github.com/JakeFAU/ai-readiness-scorer/internal/quickwin"
	"github.com/JakeFAU/ai-readiness-scorer/internal/readiness"
	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

const requestTimeout = 60 * time.Second

// Ingester processes raw crawler batches.
type Ingester interface {
	Ingest(ctx context.Context, raw []byte) (ingest.Result, error)
}

// JobService creates and cancels crawl jobs.
type JobService interface {
	StartJob(ctx context.Context, projectID string, cfg map[string]any) (crawler.Job, error)
	Cancel(ctx context.Context, jobID string) (crawler.Job, error)
}

// ReadyCheck reports whether a downstream dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// Deps are the collaborators the handlers call.
type Deps struct {
	Ingester  Ingester
	Jobs      JobService
	Store     store.Repository
	Ranker    *quickwin.Ranker
	Evaluator *readiness.Evaluator
	IDs       crawler.IDGenerator
	Clock     crawler.Clock
}

// Server wires HTTP handlers to the scoring core.
type Server struct {
	router    chi.Router
	deps      Deps
	apiKey    string
	ready     []ReadyCheck
	logger    *zap.Logger
	bodyLimit int64
}

// Option customizes a Server.
type Option func(*Server)

// WithAPIKey requires X-API-Key on every /v1 route.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithReadyCheck adds a dependency probed by /readyz.
func WithReadyCheck(check ReadyCheck) Option {
	return func(s *Server) {
		if check != nil {
			s.ready = append(s.ready, check)
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBodyLimit caps ingest request bodies in bytes.
func WithBodyLimit(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.bodyLimit = n
		}
	}
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, opts ...Option) *Server {
	if deps.Ranker == nil {
		deps.Ranker = quickwin.NewRanker(nil)
	}
	if deps.Evaluator == nil {
		deps.Evaluator = readiness.NewEvaluator(nil)
	}
	s := &Server{
		deps:      deps,
		logger:    zap.NewNop(),
		bodyLimit: defaultBodyLimit,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(requestTimeout))
		if s.apiKey != "" {
			r.Use(apiKeyMiddleware(s.apiKey))
		}
		r.Post("/ingest", s.ingestBatch)
		r.Route("/projects/{project_id}", func(r chi.Router) {
			r.Post("/jobs", s.createJob)
			r.Get("/jobs", s.listJobs)
			r.Post("/competitors", s.createCompetitor)
			r.Get("/competitors", s.listCompetitors)
		})
		r.Route("/jobs/{job_id}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Post("/cancel", s.cancelJob)
			r.Get("/scores", s.listScores)
			r.Get("/issues", s.listIssues)
			r.Get("/quick-wins", s.quickWins)
			r.Get("/platform-readiness", s.platformReadiness)
		})
		r.Get("/competitors/{competitor_id}/events", s.listEvents)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	for _, check := range s.ready {
		if err := check(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
