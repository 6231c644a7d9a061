package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
	"github.com/nyashahama/kpi-copilot-backend/internal/narrative"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

// stubClient is a controllable agent client.
type stubClient struct {
	answer Answer
	err    error
	calls  int
}

func (c *stubClient) Ask(_ context.Context, _ string) (Answer, error) {
	c.calls++
	return c.answer, c.err
}

// stubRows serves the same canned rows for every metric, mirroring the
// full-column retrieval contract.
type stubRows struct {
	rows []kpi.Row
	err  error
}

func (s *stubRows) FetchMetricRows(_ context.Context, _ kpi.Metric, _ kpi.Range) ([]kpi.Row, error) {
	return s.rows, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// revenueDropRows is three months of history ending in a 20% revenue shock
// driven by AOV.
func revenueDropRows() []kpi.Row {
	return []kpi.Row{
		{Month: "2026-05-01", Revenue: 100000, Orders: 1000, Customers: 800, AOV: 100},
		{Month: "2026-06-01", Revenue: 103000, Orders: 1020, Customers: 810, AOV: 100.98},
		{Month: "2026-07-01", Revenue: 82400, Orders: 1030, Customers: 820, AOV: 80},
	}
}

func newOrchestrator(client Client, rows RowSource) *Orchestrator {
	logger := discardLogger()
	return New(client, rows, narrative.NewEngine(nil, logger), logger)
}

// ─── CHAIN RESOLUTION ─────────────────────────────────────────────────────────

func TestRun_AgentSuccessWinsImmediately(t *testing.T) {
	client := &stubClient{answer: Answer{Answer: "Revenue fell 20% on AOV.", Model: "gpt-4.1-mini"}}
	o := newOrchestrator(client, &stubRows{err: errors.New("db should not be touched")})

	res, err := o.Run(context.Background(), "Why did revenue drop last month?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != ModeAgentLLM {
		t.Fatalf("mode: got %q", res.Mode)
	}
	if res.Agent == nil || res.Agent.Answer != "Revenue fell 20% on AOV." {
		t.Fatalf("agent answer: got %+v", res.Agent)
	}
	if res.DriverSummary != nil || res.Legacy != nil {
		t.Error("fallback fields must stay empty in agent mode")
	}
}

func TestRun_AgentFailureFallsToMultiMetric(t *testing.T) {
	client := &stubClient{err: errors.New("quota exceeded")}
	o := newOrchestrator(client, &stubRows{rows: revenueDropRows()})

	res, err := o.Run(context.Background(), "Why did revenue drop last month?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("agent calls: got %d", client.calls)
	}
	if res.Mode != ModeMultiMetricFallback {
		t.Fatalf("mode: got %q", res.Mode)
	}
	if len(res.Results) != 4 {
		t.Fatalf("sub-results: got %d", len(res.Results))
	}
	if res.DriverSummary == nil || res.DriverSummary.Status != kpi.StatusOK {
		t.Fatalf("driver summary: got %+v", res.DriverSummary)
	}
	if res.DriverSummary.MainDriver != "aov" {
		t.Errorf("main_driver: got %q, want aov", res.DriverSummary.MainDriver)
	}
	if res.Decision == nil || res.Decision.RiskSignal != "HIGH" {
		t.Fatalf("decision: got %+v", res.Decision)
	}
	if !strings.Contains(res.FinalReport, "EXECUTIVE KPI REPORT") {
		t.Errorf("final report: got %q", res.FinalReport)
	}
}

func TestRun_NilAgentSkipsStraightToFallbacks(t *testing.T) {
	o := newOrchestrator(nil, &stubRows{rows: revenueDropRows()})

	res, err := o.Run(context.Background(), "How is the business overall?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != ModeMultiMetricFallback {
		t.Fatalf("mode: got %q", res.Mode)
	}
}

func TestRun_SingleMetricQuestionUsesLegacy(t *testing.T) {
	client := &stubClient{err: errors.New("timeout")}
	o := newOrchestrator(client, &stubRows{rows: revenueDropRows()})

	res, err := o.Run(context.Background(), "How did orders trend over the last 6 months?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Mode != ModeFallbackLegacy {
		t.Fatalf("mode: got %q", res.Mode)
	}
	if res.Legacy == nil {
		t.Fatal("legacy outcome missing")
	}
	if res.Legacy.Parsed.Metric != kpi.MetricOrders || res.Legacy.Parsed.Range != kpi.RangeLast6Months {
		t.Errorf("parsed: got %+v", res.Legacy.Parsed)
	}
	if len(res.Legacy.Result.Data) != 3 {
		t.Errorf("data rows: got %d", len(res.Legacy.Result.Data))
	}
	if !strings.Contains(res.Legacy.Result.SQL, "FROM kpi_monthly") {
		t.Errorf("sql: got %q", res.Legacy.Result.SQL)
	}
	if !strings.Contains(res.FinalReport, "KPI ANALYSIS") {
		t.Errorf("final report: got %q", res.FinalReport)
	}
}

func TestRun_LegacyRetrievalErrorSurfaces(t *testing.T) {
	o := newOrchestrator(nil, &stubRows{err: errors.New("connection refused")})

	_, err := o.Run(context.Background(), "orders trend")
	if err == nil {
		t.Fatal("expected error from the legacy path")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error: got %v", err)
	}
}

func TestRun_MultiMetricDegradesPerSubStep(t *testing.T) {
	// Retrieval fails for every metric: sub-results carry errors but the
	// report still renders with a degraded decision.
	o := newOrchestrator(nil, &stubRows{err: errors.New("db down")})

	res, err := o.Run(context.Background(), "Why is performance down?")
	if err != nil {
		t.Fatalf("multi-metric must not fail: %v", err)
	}
	if res.Mode != ModeMultiMetricFallback {
		t.Fatalf("mode: got %q", res.Mode)
	}
	if len(res.Results) != 4 {
		t.Fatalf("sub-results: got %d", len(res.Results))
	}
	for _, out := range res.Results {
		if out.Error == "" {
			t.Errorf("sub-result %s should carry an error", out.Result.Metric)
		}
	}
	if res.Decision.RiskSignal != "UNKNOWN" {
		t.Errorf("decision: got %q", res.Decision.RiskSignal)
	}
	if !strings.Contains(res.FinalReport, "Driver analysis degraded") {
		t.Errorf("final report: got %q", res.FinalReport)
	}
}

func TestMatchesMultiMetric_Keywords(t *testing.T) {
	cases := map[string]bool{
		"Why did revenue drop?":         true,
		"How is the BUSINESS doing?":    true,
		"overall picture please":        true,
		"company performance review":    true,
		"orders trend last 3 months":    false,
		"how many customers last month": false,
	}
	for q, want := range cases {
		if got := matchesMultiMetric(q); got != want {
			t.Errorf("matchesMultiMetric(%q): got %v, want %v", q, got, want)
		}
	}
}

// ─── DEBUG TRACE ──────────────────────────────────────────────────────────────

func TestDebugTrace_AgentSuccess(t *testing.T) {
	client := &stubClient{answer: Answer{Answer: "fine", Model: "m"}}
	o := newOrchestrator(client, &stubRows{})

	tr := o.DebugTrace(context.Background(), "anything")
	if tr.Mode != ModeAgentLLM {
		t.Fatalf("mode: got %q", tr.Mode)
	}
	if len(tr.Steps) != 1 || tr.Steps[0].Name != "ask_agent" || tr.Steps[0].Status != "ok" {
		t.Fatalf("steps: got %+v", tr.Steps)
	}
	keys, ok := tr.Artifacts["agent_result_keys"].([]string)
	if !ok || len(keys) == 0 {
		t.Fatalf("artifacts: got %+v", tr.Artifacts)
	}
}

func TestDebugTrace_FallbackCarriesNoArtifacts(t *testing.T) {
	o := newOrchestrator(nil, &stubRows{})

	tr := o.DebugTrace(context.Background(), "orders trend")
	if tr.Artifacts != nil {
		t.Fatalf("artifacts: got %+v", tr.Artifacts)
	}
}

func TestDebugTrace_NoAgentConfigured(t *testing.T) {
	o := newOrchestrator(nil, &stubRows{})

	tr := o.DebugTrace(context.Background(), "why is performance down")
	if tr.Mode != ModeMultiMetricFallback {
		t.Fatalf("mode: got %q", tr.Mode)
	}
	if tr.Steps[0].Error != "no agent client configured" {
		t.Errorf("step error: got %q", tr.Steps[0].Error)
	}
	last := tr.Steps[len(tr.Steps)-1]
	if last.Name != "fallback_decision" || last.Reason != "multi_keywords_match" {
		t.Errorf("fallback step: got %+v", last)
	}
}

func TestDebugTrace_AgentErrorIsTruncated(t *testing.T) {
	client := &stubClient{err: errors.New(strings.Repeat("x", 500))}
	o := newOrchestrator(client, &stubRows{})

	tr := o.DebugTrace(context.Background(), "orders trend")
	if tr.Mode != ModeFallbackLegacy {
		t.Fatalf("mode: got %q", tr.Mode)
	}
	if got := len(tr.Steps[0].Error); got != 200 {
		t.Errorf("error length: got %d, want 200", got)
	}
	last := tr.Steps[len(tr.Steps)-1]
	if last.Reason != "single_metric_parse" {
		t.Errorf("fallback reason: got %q", last.Reason)
	}
}
