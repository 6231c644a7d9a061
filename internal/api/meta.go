package api

import (
	"net/http"

	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
)

// Version is the service version reported on /v1/meta/version.
const Version = "1.3.0"

// handleMeta describes the API surface: the supported analytics vocabulary,
// the endpoint catalogue, and ready-to-run example calls.
func (s *Server) handleMeta(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"capabilities": map[string]any{
			"metrics": kpi.Metrics(),
			"ranges":  []kpi.Range{kpi.RangeLast2Months, kpi.RangeLast3Months, kpi.RangeLast6Months, kpi.RangeYTD},
			"styles":  []kpi.Style{kpi.StyleBasic, kpi.StyleExecutive, kpi.StyleBrief, kpi.StyleDetailed},
		},
		"endpoints": []map[string]string{
			{"method": "POST", "path": "/v1/seed-demo", "desc": "Insert demo KPI data (supports reset)"},
			{"method": "POST", "path": "/v1/agent/query", "desc": "Main agent endpoint (JSON). LLM primary, fallback analytics."},
			{"method": "POST", "path": "/v1/agent/query-async", "desc": "Submit a question as a background job"},
			{"method": "POST", "path": "/v1/ask-executive", "desc": "Executive report only (final_report)"},
			{"method": "GET", "path": "/v1/agent/explain", "desc": "Rule-based driver breakdown (no AI)"},
			{"method": "GET", "path": "/v1/agent/history", "desc": "Agent query logs"},
			{"method": "GET", "path": "/v1/meta", "desc": "API capabilities + examples"},
			{"method": "GET", "path": "/v1/meta/version", "desc": "Version info"},
		},
		"example_questions": []string{
			"Why did revenue drop last month?",
			"Explain overall performance in the last 3 months.",
			"What should we do next to reduce risk?",
		},
		"example_calls": map[string]any{
			"seed_demo":   map[string]any{"method": "POST", "path": "/v1/seed-demo", "json": map[string]any{"months": 6, "reset": true}},
			"agent_query": map[string]any{"method": "POST", "path": "/v1/agent/query", "json": map[string]string{"question": "Why did revenue drop last month?"}},
			"executive":   map[string]any{"method": "POST", "path": "/v1/ask-executive", "json": map[string]string{"question": "Summarize performance and risks."}},
		},
	})
}

// handleMetaVersion returns the service identity.
func (s *Server) handleMetaVersion(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{
		"service": "kpi-copilot-backend",
		"version": Version,
	})
}

// handleMetaConfig returns the non-secret runtime configuration so the
// frontend can adapt (e.g. hide the live-agent badge when AI is disabled).
func (s *Server) handleMetaConfig(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"env":          s.cfg.Env,
		"base_url":     s.cfg.BaseURL,
		"ai_enabled":   s.cfg.AIEnabled,
		"model":        s.cfg.Model,
		"auth_enabled": s.cfg.APIKey != "",
	})
}
