// Package api implements the HTTP layer for the KPI copilot. Handlers are
// methods on *Server. Each handler file is responsible for one resource group
// and only imports the dependencies it actually uses.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nyashahama/kpi-copilot-backend/internal/agent"
	"github.com/nyashahama/kpi-copilot-backend/internal/jobs"
	"github.com/nyashahama/kpi-copilot-backend/internal/store"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// BaseURL is used to construct absolute poll links in async responses.
	// e.g. "https://api.kpicopilot.io"
	BaseURL string

	// Env is "production", "staging", or "development".
	Env string

	// APIKey protects the /v1 surface. Empty disables authentication, which
	// is the expected mode for local development.
	APIKey string

	// CORSOrigins is the allow-list for browser clients. ["*"] allows all.
	CORSOrigins []string

	// AIEnabled is surfaced on /v1/meta/config so the frontend knows whether
	// the agent strategy is live.
	AIEnabled bool

	// Model is the configured chat model name, surfaced on /v1/meta/config.
	Model string
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// q handles all KPI reads and writes plus the audit log.
	q store.Querier

	// orch resolves questions through the fallback chain.
	orch *agent.Orchestrator

	// jobs is the volatile async job registry.
	jobs *jobs.Store

	// enqueuer hands accepted questions to the worker pool.
	enqueuer jobs.Enqueuer

	cfg    Config
	logger *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(
	q store.Querier,
	orch *agent.Orchestrator,
	jobStore *jobs.Store,
	enqueuer jobs.Enqueuer,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		q:        q,
		orch:     orch,
		jobs:     jobStore,
		enqueuer: enqueuer,
		cfg:      cfg,
		logger:   logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", s.handleHealth)
	r.Get("/healthz/db", s.handleHealthDB)

	// ── API v1 ────────────────────────────────────────────────────────────────
	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAPIKey)

		// Orchestration chain.
		r.Post("/agent/query", s.handleAgentQuery)
		r.Post("/agent/query-async", s.handleAgentQueryAsync)
		r.Post("/agent/debug", s.handleAgentDebug)
		r.Get("/agent/explain", s.handleAgentExplain)
		r.Get("/agent/parse", s.handleAgentParse)
		r.Get("/agent/history", s.handleAgentHistory)

		// Plain-text convenience surfaces.
		r.Post("/ask-text", s.handleAskText)
		r.Post("/ask-executive", s.handleAskExecutive)

		// Rule-based analytics.
		r.Post("/agent/insight", s.handleInsight)
		r.Post("/agent/simulate", s.handleSimulate)

		// Async jobs.
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{jobID}", s.handleGetJob)

		// KPI data management.
		r.Get("/kpi", s.handleListKPI)
		r.Post("/kpi", s.handleUpsertKPI)
		r.Get("/dashboard", s.handleDashboard)
		r.Post("/seed-demo", s.handleSeedDemo)

		// Meta.
		r.Get("/meta", s.handleMeta)
		r.Get("/meta/version", s.handleMetaVersion)
		r.Get("/meta/config", s.handleMetaConfig)
	})

	return r
}

// handleHealth is the liveness probe: process up, nothing else checked.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleHealthDB is the readiness probe: database reachable.
func (s *Server) handleHealthDB(w http.ResponseWriter, r *http.Request) {
	if err := s.q.Ping(r.Context()); err != nil {
		respond(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"db":     err.Error(),
		})
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "ok", "db": "reachable"})
}
