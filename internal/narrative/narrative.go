// Package narrative turns KPI rows into an (insight, risk, recommendation)
// text triple. It is AI-first with a deterministic rule-based fallback: the
// engine never fails, and whenever the AI path errors — missing credentials,
// malformed output, provider exception — the rule-based output is
// authoritative for the caller.
package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
)

// Triple is the structured narrative output.
type Triple struct {
	Insight        string `json:"insight"`
	Risk           string `json:"risk"`
	Recommendation string `json:"recommendation"`
}

// Generator is the interface the engine uses for AI-backed generation.
// The concrete implementation lives in openai.go. Tests inject a stub.
//
// Implementations must be safe to call concurrently. A non-nil error means
// the entire call failed; the engine falls back to the rule-based path — no
// partial AI output is ever surfaced.
type Generator interface {
	Generate(ctx context.Context, metric kpi.Metric, rows []kpi.Row, style kpi.Style) (Triple, error)
}

// Engine wraps a Generator with the rule-based fallback. A nil Generator is
// valid and means rule-based only (e.g. no API key configured).
type Engine struct {
	gen    Generator
	logger *slog.Logger
}

// NewEngine constructs the engine. gen may be nil.
func NewEngine(gen Generator, logger *slog.Logger) *Engine {
	return &Engine{gen: gen, logger: logger}
}

// noDataTriple is the fixed response for an empty row set, identical on both
// the AI and rule-based paths.
func noDataTriple() Triple {
	return Triple{
		Insight:        "No data found.",
		Risk:           "No risk signals.",
		Recommendation: "Insert KPI data first.",
	}
}

// Narrate produces the narrative triple for a metric. It cannot fail: empty
// rows short-circuit to the fixed no-data triple, and any AI error is
// absorbed into the rule-based path.
func (e *Engine) Narrate(ctx context.Context, metric kpi.Metric, rows []kpi.Row, style kpi.Style) Triple {
	if len(rows) == 0 {
		return noDataTriple()
	}

	if e.gen != nil {
		triple, err := e.gen.Generate(ctx, metric, rows, style)
		if err == nil {
			return triple
		}
		e.logger.Warn("narrative: AI generation failed, using rule-based fallback",
			"metric", metric,
			"error", err,
		)
	}

	return RuleBased(metric, rows, style)
}

// ─── RULE-BASED PATH ──────────────────────────────────────────────────────────

// RuleBased builds the deterministic narrative from the first and last rows
// of an oldest→newest sequence. The percent change is included in the
// headline only when the start value is non-zero.
func RuleBased(metric kpi.Metric, rows []kpi.Row, style kpi.Style) Triple {
	if len(rows) == 0 {
		return noDataTriple()
	}

	first := rows[0]
	last := rows[len(rows)-1]

	start := first.Value(metric)
	end := last.Value(metric)
	delta := end - start

	direction := "was flat"
	if delta > 0 {
		direction = "increased"
	} else if delta < 0 {
		direction = "decreased"
	}

	var headline string
	if pct := pctFraction(start, end); pct != nil {
		headline = fmt.Sprintf("%s %s from %s to %s (%.1f%%).",
			upper(metric), direction, first.Month, last.Month, *pct*100)
	} else {
		headline = fmt.Sprintf("%s %s from %s to %s.",
			upper(metric), direction, first.Month, last.Month)
	}

	risk := "No major risk signals detected."
	recommendation := "Keep monitoring trends."

	// Revenue gets a driver-aware risk read: a material AOV drop over the
	// same window suggests the growth is discount-driven; a material orders
	// drop suggests demand or funnel weakness.
	if metric == kpi.MetricRevenue {
		aovPct := pctFraction(first.AOV, last.AOV)
		ordersPct := pctFraction(first.Orders, last.Orders)

		switch {
		case aovPct != nil && *aovPct <= -0.10:
			risk = "AOV dropped materially; revenue growth may be discount-driven."
			recommendation = "Audit discounts, review product mix, and protect margin."
		case ordersPct != nil && *ordersPct <= -0.10:
			risk = "Orders dropped materially; demand or funnel may be weakening."
			recommendation = "Investigate acquisition, conversion funnel, and retention actions."
		default:
			recommendation = "Identify which lever moved most (orders vs AOV) and double-down on that driver."
		}
	}

	var insight string
	switch style {
	case kpi.StyleBrief:
		insight = headline
	case kpi.StyleDetailed:
		insight = fmt.Sprintf("%s Start=%.2f, End=%.2f, Change=%.2f. Data points=%d.",
			headline, start, end, delta, len(rows))
	default:
		insight = headline + " Focus on the dominant driver and monitor downside risks."
	}

	return Triple{Insight: insight, Risk: risk, Recommendation: recommendation}
}

func pctFraction(start, end float64) *float64 {
	if start == 0 {
		return nil
	}
	p := (end - start) / start
	return &p
}

func upper(m kpi.Metric) string {
	return strings.ToUpper(string(m))
}
