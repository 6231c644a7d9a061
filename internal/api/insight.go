package api

import (
	"fmt"
	"net/http"

	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
)

// ─── POST /v1/agent/insight ──────────────────────────────────────────────────

type insightRequest struct {
	// Thresholds replaces the default per-metric anomaly thresholds, as
	// fractions (0.15 means 15%). When supplied it is the whole
	// configuration: metrics without an entry fall back to 0.10.
	Thresholds map[string]float64 `json:"thresholds,omitempty"`
}

// handleInsight runs anomaly detection over the two most recent months.
func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	var req insightRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	rows, err := s.q.LatestTwoMonths(r.Context())
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("insight: fetch latest months: %w", err))
		return
	}

	var thresholds map[kpi.Metric]float64
	if len(req.Thresholds) > 0 {
		thresholds = make(map[kpi.Metric]float64, len(req.Thresholds))
		for name, v := range req.Thresholds {
			thresholds[kpi.Metric(name)] = v
		}
	}

	report := kpi.DetectAnomalies(kpi.LatestChanges(rows), thresholds)
	respond(w, http.StatusOK, report)
}

// ─── POST /v1/agent/simulate ─────────────────────────────────────────────────

// handleSimulate projects revenue for a what-if scenario against the latest
// month.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var sc kpi.Scenario
	if !decode(w, r, &sc) {
		return
	}

	rows, err := s.q.LatestTwoMonths(r.Context())
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("simulate: fetch latest months: %w", err))
		return
	}

	respond(w, http.StatusOK, kpi.Simulate(kpi.LatestChanges(rows), sc))
}
