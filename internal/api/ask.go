package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nyashahama/kpi-copilot-backend/internal/agent"
	"github.com/nyashahama/kpi-copilot-backend/internal/intent"
	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
	"github.com/nyashahama/kpi-copilot-backend/internal/store"
)

// ─── POST /v1/agent/query ─────────────────────────────────────────────────────

type askRequest struct {
	Question string `json:"question"`
}

// queryResponse wraps the orchestration result with request correlation and
// timing. The embedded Result contributes the mode-specific fields.
type queryResponse struct {
	RequestID string `json:"request_id"`
	LatencyMS int64  `json:"latency_ms"`
	agent.Result
}

// handleAgentQuery resolves a question synchronously through the fallback
// chain and returns the full structured result.
func (s *Server) handleAgentQuery(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decode(w, r, &req) {
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		respondErr(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	result, err := s.orch.Run(r.Context(), question)
	latency := time.Since(start)

	if err != nil {
		s.audit(r, question, result.Mode, latency, "error", err.Error())
		s.respondInternalErr(w, r, fmt.Errorf("agent query: %w", err))
		return
	}

	s.audit(r, question, result.Mode, latency, "ok", "")
	respond(w, http.StatusOK, queryResponse{
		RequestID: middleware.GetReqID(r.Context()),
		LatencyMS: latency.Milliseconds(),
		Result:    result,
	})
}

// ─── POST /v1/ask-text ────────────────────────────────────────────────────────

// handleAskText accepts the question as a raw text/plain body and answers
// with the final report as plain text. Built for curl and chat-ops bridges.
func (s *Server) handleAskText(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "unable to read request body")
		return
	}
	question := strings.TrimSpace(string(body))
	if question == "" {
		respondErr(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	result, err := s.orch.Run(r.Context(), question)
	latency := time.Since(start)

	if err != nil {
		s.audit(r, question, result.Mode, latency, "error", err.Error())
		s.respondInternalErr(w, r, fmt.Errorf("ask text: %w", err))
		return
	}

	s.audit(r, question, result.Mode, latency, "ok", "")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, answerText(result))
}

// ─── POST /v1/ask-executive ───────────────────────────────────────────────────

type executiveResponse struct {
	RequestID   string `json:"request_id"`
	Mode        string `json:"mode"`
	LatencyMS   int64  `json:"latency_ms"`
	FinalReport string `json:"final_report"`
}

// handleAskExecutive resolves a question and returns only the formatted
// report, without the structured payload.
func (s *Server) handleAskExecutive(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decode(w, r, &req) {
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		respondErr(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	result, err := s.orch.Run(r.Context(), question)
	latency := time.Since(start)

	if err != nil {
		s.audit(r, question, result.Mode, latency, "error", err.Error())
		s.respondInternalErr(w, r, fmt.Errorf("ask executive: %w", err))
		return
	}

	s.audit(r, question, result.Mode, latency, "ok", "")
	respond(w, http.StatusOK, executiveResponse{
		RequestID:   middleware.GetReqID(r.Context()),
		Mode:        result.Mode,
		LatencyMS:   latency.Milliseconds(),
		FinalReport: answerText(result),
	})
}

// answerText selects the human-readable answer for a result: the raw agent
// answer in agent mode, the formatted report in the fallback modes.
func answerText(result agent.Result) string {
	if result.Mode == agent.ModeAgentLLM && result.Agent != nil {
		return result.Agent.Answer
	}
	return result.FinalReport
}

// ─── POST /v1/agent/debug ─────────────────────────────────────────────────────

// handleAgentDebug records which strategy the chain resolves in, without
// executing the fallback analytics.
func (s *Server) handleAgentDebug(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decode(w, r, &req) {
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		respondErr(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	trace := s.orch.DebugTrace(r.Context(), question)

	respond(w, http.StatusOK, map[string]any{
		"request_id": middleware.GetReqID(r.Context()),
		"latency_ms": time.Since(start).Milliseconds(),
		"trace":      trace,
	})
}

// ─── GET /v1/agent/explain ────────────────────────────────────────────────────

// metricBreakdown is the previous/current/pct movement of one revenue lever.
type metricBreakdown struct {
	Previous  *float64 `json:"previous"`
	Current   *float64 `json:"current"`
	PctChange *float64 `json:"pct_change"`
}

// handleAgentExplain returns the rule-based driver breakdown over the two
// most recent months: previous/current/pct_change for revenue, orders, and
// aov. No parameters, no AI involvement.
func (s *Server) handleAgentExplain(w http.ResponseWriter, r *http.Request) {
	rows, err := s.q.LatestTwoMonths(r.Context())
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("explain: fetch latest months: %w", err))
		return
	}

	cs := kpi.LatestChanges(rows)
	if cs.Status != kpi.StatusOK {
		respond(w, http.StatusOK, cs)
		return
	}

	resp := map[string]any{
		"status":         cs.Status,
		"previous_month": cs.Months[0].Month,
		"current_month":  cs.Months[1].Month,
		"note":           "Revenue change is primarily explained by orders and AOV. Use /v1/ask-executive for formatted executive output.",
	}
	for _, c := range cs.Changes {
		switch c.Metric {
		case kpi.MetricRevenue, kpi.MetricOrders, kpi.MetricAOV:
			resp[string(c.Metric)] = metricBreakdown{
				Previous:  c.Previous,
				Current:   c.Current,
				PctChange: c.PctChange,
			}
		}
	}
	respond(w, http.StatusOK, resp)
}

// ─── GET /v1/agent/parse ──────────────────────────────────────────────────────

// handleAgentParse shows how a question would be interpreted: parsed intent
// plus the exact retrieval SQL, without touching the database.
func (s *Server) handleAgentParse(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.URL.Query().Get("question"))
	if question == "" {
		respondErr(w, http.StatusBadRequest, "question query parameter is required")
		return
	}

	parsed := intent.Parse(question, kpi.Style(r.URL.Query().Get("style")))
	respond(w, http.StatusOK, map[string]any{
		"question": question,
		"parsed":   parsed,
		"sql":      store.MetricSQL(parsed.Metric, parsed.Range),
	})
}

// ─── GET /v1/agent/history ────────────────────────────────────────────────────

// handleAgentHistory returns the most recent audit log records.
func (s *Server) handleAgentHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	rows, err := s.q.QueryHistory(r.Context(), limit)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("query history: %w", err))
		return
	}
	if rows == nil {
		rows = []store.QueryLogRow{}
	}
	respond(w, http.StatusOK, map[string]any{"data": rows})
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

// audit appends a best-effort record to the query log. Failures are logged
// and swallowed; auditing never fails the primary response.
func (s *Server) audit(r *http.Request, question, mode string, latency time.Duration, status, errText string) {
	entry := store.QueryLogEntry{
		RequestID: middleware.GetReqID(r.Context()),
		Question:  question,
		Mode:      mode,
		LatencyMS: int(latency.Milliseconds()),
		Status:    status,
		Error:     errText,
	}
	if err := s.q.InsertQueryLog(r.Context(), entry); err != nil {
		s.logger.Warn("query audit insert failed", "error", err, logField(r))
	}
}

// queryInt parses an integer query parameter, falling back on absence or
// garbage.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
