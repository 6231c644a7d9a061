package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nyashahama/kpi-copilot-backend/internal/intent"
	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
	"github.com/nyashahama/kpi-copilot-backend/internal/narrative"
	"github.com/nyashahama/kpi-copilot-backend/internal/report"
	"github.com/nyashahama/kpi-copilot-backend/internal/store"
)

// Orchestration modes. Every caller — sync endpoint, async job, debug trace —
// relies on this tag plus the mode-specific fields of Result.
const (
	ModeAgentLLM            = "agent_llm"
	ModeMultiMetricFallback = "multi_metric_fallback"
	ModeFallbackLegacy      = "fallback_legacy"
)

// multiMetricKeywords routes generic "why did things change" questions to the
// multi-metric fallback instead of a single-metric parse.
var multiMetricKeywords = []string{"performance", "business", "overall", "drop", "why"}

// RowSource is the slice of the store the orchestrator needs. *store.Store
// satisfies it; tests stub it with canned rows.
type RowSource interface {
	FetchMetricRows(ctx context.Context, metric kpi.Metric, rng kpi.Range) ([]kpi.Row, error)
}

// LegacyOutcome is one single-metric analysis run: the synthetic or original
// question, its parsed intent, and the analysis bundle. Error is set only on
// a degraded sub-run inside the multi-metric fallback.
type LegacyOutcome struct {
	Question string                `json:"question"`
	Parsed   intent.Intent         `json:"parsed"`
	Result   report.LegacyAnalysis `json:"result"`
	Error    string                `json:"error,omitempty"`
}

// Result is the common envelope all three strategies converge on. Fields are
// mode-specific: Agent for agent_llm; Metrics/DriverSummary/Decision/Results
// for multi_metric_fallback; Legacy for fallback_legacy. FinalReport is set
// on both fallback modes.
type Result struct {
	Mode          string             `json:"mode"`
	Agent         *Answer            `json:"result,omitempty"`
	Metrics       []kpi.Metric       `json:"metrics,omitempty"`
	DriverSummary *kpi.DriverSummary `json:"driver_summary,omitempty"`
	Decision      *report.Decision   `json:"decision,omitempty"`
	FinalReport   string             `json:"final_report,omitempty"`
	Results       []LegacyOutcome    `json:"results,omitempty"`
	Legacy        *LegacyOutcome     `json:"legacy,omitempty"`
}

// Orchestrator drives the fallback chain. It holds only narrow interfaces so
// every strategy can be exercised in tests without a database or provider.
type Orchestrator struct {
	agent  Client // may be nil: chain then starts at the fallback strategies
	rows   RowSource
	engine *narrative.Engine
	logger *slog.Logger
}

// New constructs the orchestrator. agent may be nil.
func New(agentClient Client, rows RowSource, engine *narrative.Engine, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		agent:  agentClient,
		rows:   rows,
		engine: engine,
		logger: logger,
	}
}

// Run resolves a question through the ordered strategies, first success
// wins. Only the legacy strategy can return an error (a retrieval fault with
// nothing left to degrade to); agent failures fall through silently and the
// multi-metric strategy degrades per sub-step instead of failing.
func (o *Orchestrator) Run(ctx context.Context, question string) (Result, error) {
	q := strings.TrimSpace(question)

	// 1) LLM agent. Any error — timeout, quota, malformed response — moves
	// the chain on without surfacing the failure.
	if o.agent != nil {
		answer, err := o.agent.Ask(ctx, q)
		if err == nil {
			return Result{Mode: ModeAgentLLM, Agent: &answer}, nil
		}
		o.logger.Debug("orchestrator: agent strategy failed, falling back", "error", err)
	}

	// 2) Rule-based multi-metric fallback for generic questions.
	if matchesMultiMetric(q) {
		return o.runMultiMetric(ctx), nil
	}

	// 3) Single-metric legacy fallback.
	outcome, err := o.runLegacy(ctx, q, kpi.StyleExecutive)
	if err != nil {
		return Result{}, err
	}
	final := report.LegacyReport(outcome.Result)
	return Result{Mode: ModeFallbackLegacy, Legacy: &outcome, FinalReport: final}, nil
}

func matchesMultiMetric(question string) bool {
	q := strings.ToLower(question)
	for _, k := range multiMetricKeywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

// runMultiMetric analyses all four metrics, decomposes the revenue driver,
// derives a decision signal, and renders the final report. Each sub-step
// failure is replaced with a degraded placeholder — the report is always
// produced.
func (o *Orchestrator) runMultiMetric(ctx context.Context) Result {
	metrics := kpi.Metrics()

	outcomes := make([]LegacyOutcome, 0, len(metrics))
	var driverRows []kpi.Row
	for _, m := range metrics {
		question := fmt.Sprintf("%s last_3_months executive", m)
		outcome, err := o.runLegacy(ctx, question, kpi.StyleExecutive)
		if err != nil {
			o.logger.Warn("orchestrator: sub-metric analysis failed", "metric", m, "error", err)
			outcome = LegacyOutcome{
				Question: question,
				Parsed:   intent.Parse(question, kpi.StyleExecutive),
				Error:    err.Error(),
			}
			outcome.Result.Metric = m
			outcome.Result.Range = kpi.RangeLast3Months
			outcome.Result.Style = kpi.StyleExecutive
		}
		outcomes = append(outcomes, outcome)

		// Every fetch returns full-column rows, so the first usable window
		// feeds the driver decomposition.
		if driverRows == nil && len(outcome.Result.Data) >= 2 {
			driverRows = outcome.Result.Data
		}
	}

	ds := kpi.Decompose(driverRows)
	decision := report.BuildDecision(ds)
	final := report.MultiMetricReport(metrics, ds, decision)

	return Result{
		Mode:          ModeMultiMetricFallback,
		Metrics:       metrics,
		DriverSummary: &ds,
		Decision:      &decision,
		FinalReport:   final,
		Results:       outcomes,
	}
}

// runLegacy is the single-metric core: parse intent, fetch rows, narrate.
// The narrative engine never fails, so the only error source is retrieval.
func (o *Orchestrator) runLegacy(ctx context.Context, question string, style kpi.Style) (LegacyOutcome, error) {
	parsed := intent.Parse(question, style)

	rows, err := o.rows.FetchMetricRows(ctx, parsed.Metric, parsed.Range)
	if err != nil {
		return LegacyOutcome{}, fmt.Errorf("orchestrator: fetch %s rows: %w", parsed.Metric, err)
	}

	triple := o.engine.Narrate(ctx, parsed.Metric, rows, parsed.Style)

	analysis := report.LegacyAnalysis{
		Metric: parsed.Metric,
		Range:  parsed.Range,
		Style:  parsed.Style,
		SQL:    store.MetricSQL(parsed.Metric, parsed.Range),
		Data:   rows,
	}
	analysis.FromTriple(triple)

	return LegacyOutcome{Question: question, Parsed: parsed, Result: analysis}, nil
}

// ─── DEBUG TRACE ──────────────────────────────────────────────────────────────

// TraceStep records one attempted strategy: name, pass/fail, and timing.
// Chain-of-thought content is never included.
type TraceStep struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Trace is the debug view of a chain resolution. Artifacts names what the
// winning strategy produced, never its content.
type Trace struct {
	Question  string         `json:"question"`
	Mode      string         `json:"mode"`
	Steps     []TraceStep    `json:"steps"`
	Artifacts map[string]any `json:"artifacts,omitempty"`
}

// DebugTrace runs the agent strategy and records which mode the chain would
// resolve in, without executing the fallback analytics.
func (o *Orchestrator) DebugTrace(ctx context.Context, question string) Trace {
	q := strings.TrimSpace(question)
	trace := Trace{Question: q}

	if o.agent != nil {
		t0 := time.Now()
		_, err := o.agent.Ask(ctx, q)
		if err == nil {
			trace.Steps = append(trace.Steps, TraceStep{
				Name:      "ask_agent",
				Status:    "ok",
				LatencyMS: time.Since(t0).Milliseconds(),
			})
			trace.Mode = ModeAgentLLM
			trace.Artifacts = map[string]any{
				"agent_result_keys": []string{"answer", "model"},
			}
			return trace
		}
		trace.Steps = append(trace.Steps, TraceStep{
			Name:   "ask_agent",
			Status: "failed",
			Error:  truncate(err.Error(), 200),
		})
	} else {
		trace.Steps = append(trace.Steps, TraceStep{
			Name:   "ask_agent",
			Status: "failed",
			Error:  "no agent client configured",
		})
	}

	if matchesMultiMetric(q) {
		trace.Mode = ModeMultiMetricFallback
		trace.Steps = append(trace.Steps, TraceStep{
			Name: "fallback_decision", Status: "ok", Reason: "multi_keywords_match",
		})
		return trace
	}

	trace.Mode = ModeFallbackLegacy
	trace.Steps = append(trace.Steps, TraceStep{
		Name: "fallback_decision", Status: "ok", Reason: "single_metric_parse",
	})
	return trace
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
