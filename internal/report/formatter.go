package report

import (
	"fmt"
	"strings"

	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
	"github.com/nyashahama/kpi-copilot-backend/internal/narrative"
)

// ─── FINAL REPORT FORMATTER ───────────────────────────────────────────────────
//
// Every orchestration mode converges on one formatted narrative string. The
// formatter always produces text — degraded inputs are noted inline, never
// turned into an error.

// LegacyAnalysis is the single-metric result bundle rendered by the legacy
// mode. It mirrors the fields surfaced in the orchestration envelope.
type LegacyAnalysis struct {
	Metric         kpi.Metric       `json:"metric"`
	Range          kpi.Range        `json:"range"`
	Style          kpi.Style        `json:"style"`
	SQL            string           `json:"sql"`
	Data           []kpi.Row        `json:"data"`
	Narrative      string           `json:"narrative"`
	Risk           string           `json:"risk"`
	Recommendation string           `json:"recommendation"`
}

// FromTriple copies the narrative triple into the analysis.
func (a *LegacyAnalysis) FromTriple(t narrative.Triple) {
	a.Narrative = t.Insight
	a.Risk = t.Risk
	a.Recommendation = t.Recommendation
}

// MultiMetricReport renders the executive final report for the multi-metric
// fallback: driver decomposition plus decision signal.
func MultiMetricReport(metrics []kpi.Metric, ds kpi.DriverSummary, d Decision) string {
	var sb strings.Builder

	sb.WriteString("EXECUTIVE KPI REPORT\n")
	sb.WriteString("====================\n")

	if ds.Status == kpi.StatusOK {
		fmt.Fprintf(&sb, "Period: %s -> %s\n\n", ds.PreviousMonth, ds.LatestMonth)
		fmt.Fprintf(&sb, "%s\n", ds.ExecutiveSummary)
		fmt.Fprintf(&sb, "%s\n\n", ds.ExecutiveTakeaway)
		sb.WriteString("Month-over-month changes:\n")
		for _, m := range []string{"revenue", "orders", "aov", "customers"} {
			if pct := ds.ChangesPct[m]; pct != nil {
				fmt.Fprintf(&sb, "  - %s: %+.1f%%\n", m, *pct)
			} else {
				fmt.Fprintf(&sb, "  - %s: n/a\n", m)
			}
		}
	} else {
		msg := ds.Message
		if msg == "" {
			msg = "driver decomposition unavailable"
		}
		fmt.Fprintf(&sb, "Driver analysis degraded: %s\n", msg)
	}

	fmt.Fprintf(&sb, "\nDecision signal: risk=%s trend=%s confidence=%.1f score=%d\n",
		d.RiskSignal, d.TrendDirection, d.Confidence, d.RiskScore)

	if len(d.NextActions) > 0 {
		sb.WriteString("Next actions:\n")
		for _, a := range d.NextActions {
			fmt.Fprintf(&sb, "  * %s\n", a)
		}
	}

	fmt.Fprintf(&sb, "\nMetrics analysed: %s\n", joinMetrics(metrics))
	return sb.String()
}

// LegacyReport renders the final report for a single-metric legacy analysis.
func LegacyReport(a LegacyAnalysis) string {
	var sb strings.Builder
	sb.WriteString("KPI ANALYSIS\n")
	sb.WriteString("============\n")
	fmt.Fprintf(&sb, "Metric: %s (%s)\n\n", a.Metric, a.Range)
	fmt.Fprintf(&sb, "Insight: %s\n", a.Narrative)
	fmt.Fprintf(&sb, "Risk: %s\n", a.Risk)
	fmt.Fprintf(&sb, "Recommendation: %s\n", a.Recommendation)
	return sb.String()
}

func joinMetrics(metrics []kpi.Metric) string {
	parts := make([]string, len(metrics))
	for i, m := range metrics {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}
