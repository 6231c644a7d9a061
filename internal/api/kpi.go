package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
	"github.com/nyashahama/kpi-copilot-backend/internal/store"
)

// ─── GET /v1/kpi ─────────────────────────────────────────────────────────────

// handleListKPI returns monthly history, optionally bounded with ?from= and
// ?to= (inclusive, YYYY-MM-DD), oldest first.
func (s *Server) handleListKPI(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	rows, err := s.q.FetchRange(r.Context(), from, to)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("list kpi: %w", err))
		return
	}
	if rows == nil {
		rows = []kpi.Row{}
	}
	respond(w, http.StatusOK, map[string]any{"data": rows})
}

// ─── POST /v1/kpi ────────────────────────────────────────────────────────────

type upsertKPIRequest struct {
	Month     string  `json:"month"`
	Revenue   float64 `json:"revenue"`
	Orders    float64 `json:"orders"`
	Customers float64 `json:"customers"`
	AOV       float64 `json:"aov"`
}

// handleUpsertKPI inserts or replaces one month of history. When AOV is
// omitted it is derived as revenue/orders so hand-entered rows stay
// internally consistent.
func (s *Server) handleUpsertKPI(w http.ResponseWriter, r *http.Request) {
	var req upsertKPIRequest
	if !decode(w, r, &req) {
		return
	}

	if _, err := time.Parse("2006-01-02", req.Month); err != nil {
		respondErr(w, http.StatusBadRequest, "month must be a YYYY-MM-DD date")
		return
	}
	if req.Revenue < 0 || req.Orders < 0 || req.Customers < 0 || req.AOV < 0 {
		respondErr(w, http.StatusBadRequest, "kpi values must be non-negative")
		return
	}

	row := kpi.Row{
		Month:     req.Month,
		Revenue:   req.Revenue,
		Orders:    req.Orders,
		Customers: req.Customers,
		AOV:       req.AOV,
	}
	if row.AOV == 0 && row.Orders > 0 {
		row.AOV = row.Revenue / row.Orders
	}

	if err := s.q.UpsertMonth(r.Context(), row); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("upsert kpi: %w", err))
		return
	}
	respond(w, http.StatusOK, map[string]any{"status": "ok", "row": row})
}

// ─── GET /v1/dashboard ───────────────────────────────────────────────────────

// handleDashboard bundles the full history with the latest month-over-month
// movement and its anomaly read, for a single-call frontend load.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.q.FetchRange(r.Context(), r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("dashboard: %w", err))
		return
	}
	if rows == nil {
		rows = []kpi.Row{}
	}

	latest := kpi.DetectAnomalies(kpi.LatestChanges(rows), nil)
	respond(w, http.StatusOK, map[string]any{
		"data":   rows,
		"latest": latest,
	})
}

// ─── POST /v1/seed-demo ──────────────────────────────────────────────────────

type seedRequest struct {
	Months   int    `json:"months"`
	Reset    bool   `json:"reset"`
	Scenario string `json:"scenario"`
}

// handleSeedDemo loads a synthetic growth curve with a final-month shock so
// the analytics pipeline has something to explain on a fresh database.
func (s *Server) handleSeedDemo(w http.ResponseWriter, r *http.Request) {
	req := seedRequest{Months: 6, Scenario: store.ScenarioRevenueDrop}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	result, err := s.q.SeedDemo(r.Context(), store.SeedParams{
		Months:   req.Months,
		Reset:    req.Reset,
		Scenario: req.Scenario,
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("seed demo: %w", err))
		return
	}

	s.logger.Info("demo data seeded",
		"months", result.MonthsInserted,
		"scenario", result.Scenario,
		"reset", result.Reset,
		logField(r),
	)
	respond(w, http.StatusOK, result)
}
