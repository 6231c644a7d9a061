package report

import (
	"strings"
	"testing"

	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
	"github.com/nyashahama/kpi-copilot-backend/internal/narrative"
)

// ─── FIXTURES ─────────────────────────────────────────────────────────────────

func pct(v float64) *float64 { return &v }

func okSummary(rev, ord, aov, cus *float64, driver string) kpi.DriverSummary {
	takeaway := "Revenue change is mainly driven by AOV."
	if driver == "orders" {
		takeaway = "Revenue change is mainly driven by Orders."
	}
	return kpi.DriverSummary{
		Status:        kpi.StatusOK,
		LatestMonth:   "2026-07-01",
		PreviousMonth: "2026-06-01",
		ChangesPct: map[string]*float64{
			"revenue": rev, "orders": ord, "aov": aov, "customers": cus,
		},
		MainDriver:        driver,
		ExecutiveTakeaway: takeaway,
		ExecutiveSummary:  "Revenue changed -15.0% MoM, driven primarily by orders (-15.0% / 0.0%).",
	}
}

// ─── DECISION ─────────────────────────────────────────────────────────────────

func TestBuildDecision_SteepDropIsHigh(t *testing.T) {
	ds := okSummary(pct(-15), pct(-15), pct(0), pct(-2), "orders")
	d := BuildDecision(ds)

	if d.RiskSignal != "HIGH" {
		t.Errorf("risk_signal: got %q", d.RiskSignal)
	}
	if d.TrendDirection != "DOWN" {
		t.Errorf("trend: got %q", d.TrendDirection)
	}
	if d.Confidence != 0.9 {
		t.Errorf("confidence: got %v", d.Confidence)
	}
	if d.RiskScore != 60 {
		t.Errorf("risk_score: got %d, want 60", d.RiskScore)
	}
	if len(d.NextActions) == 0 {
		t.Fatal("expected next actions")
	}
	if !strings.Contains(d.NextActions[0], "order volume") {
		t.Errorf("first action should target orders: got %q", d.NextActions[0])
	}
	last := d.NextActions[len(d.NextActions)-1]
	if !strings.Contains(last, "2026-07-01") {
		t.Errorf("last action should name the analysed month: got %q", last)
	}
}

func TestBuildDecision_MildDropIsElevated(t *testing.T) {
	ds := okSummary(pct(-4), pct(-1), pct(-3), pct(0), "aov")
	d := BuildDecision(ds)

	if d.RiskSignal != "ELEVATED" {
		t.Errorf("risk_signal: got %q", d.RiskSignal)
	}
	if d.TrendDirection != "DOWN" {
		t.Errorf("trend: got %q", d.TrendDirection)
	}
	// |−4| × 4 = 16.
	if d.RiskScore != 16 {
		t.Errorf("risk_score: got %d, want 16", d.RiskScore)
	}
	if !strings.Contains(d.NextActions[0], "pricing") {
		t.Errorf("first action should target aov: got %q", d.NextActions[0])
	}
}

func TestBuildDecision_GrowthIsLowAndUp(t *testing.T) {
	ds := okSummary(pct(8), pct(9), pct(-1), pct(2), "orders")
	d := BuildDecision(ds)

	if d.RiskSignal != "LOW" || d.TrendDirection != "UP" {
		t.Fatalf("got %s/%s", d.RiskSignal, d.TrendDirection)
	}
	if !strings.Contains(d.NextActions[0], "Double-down") {
		t.Errorf("action: got %q", d.NextActions[0])
	}
}

func TestBuildDecision_ScoreBounds(t *testing.T) {
	// Tiny move: floor of 10.
	d := BuildDecision(okSummary(pct(-0.5), pct(-0.5), pct(0), pct(0), "orders"))
	if d.RiskScore != 10 {
		t.Errorf("floor: got %d, want 10", d.RiskScore)
	}

	// Collapse: ceiling of 100.
	d = BuildDecision(okSummary(pct(-60), pct(-60), pct(0), pct(0), "orders"))
	if d.RiskScore != 100 {
		t.Errorf("ceiling: got %d, want 100", d.RiskScore)
	}
}

func TestBuildDecision_SingleLeverLowersConfidence(t *testing.T) {
	d := BuildDecision(okSummary(pct(-15), pct(-15), nil, pct(0), "orders"))
	if d.Confidence != 0.6 {
		t.Errorf("confidence: got %v, want 0.6", d.Confidence)
	}
}

func TestBuildDecision_DegradedSummaryIsUnknown(t *testing.T) {
	d := BuildDecision(kpi.DriverSummary{Status: kpi.StatusInsufficientData})

	if d.RiskSignal != "UNKNOWN" || d.TrendDirection != "UNKNOWN" {
		t.Fatalf("got %s/%s", d.RiskSignal, d.TrendDirection)
	}
	if d.Confidence != 0.2 || d.RiskScore != 10 {
		t.Errorf("got confidence=%v score=%d", d.Confidence, d.RiskScore)
	}
	if len(d.NextActions) != 1 {
		t.Fatalf("actions: got %d", len(d.NextActions))
	}
}

func TestBuildDecision_MissingRevenuePctIsUnknown(t *testing.T) {
	ds := okSummary(nil, pct(-15), pct(0), pct(0), "orders")
	d := BuildDecision(ds)
	if d.RiskSignal != "UNKNOWN" {
		t.Fatalf("risk_signal: got %q", d.RiskSignal)
	}
}

func TestUnknownDecision_CustomReason(t *testing.T) {
	d := UnknownDecision("retrieval failed, retry later")
	if d.NextActions[0] != "retrieval failed, retry later" {
		t.Fatalf("action: got %q", d.NextActions[0])
	}
}

// ─── FORMATTER ────────────────────────────────────────────────────────────────

func TestMultiMetricReport_FullShape(t *testing.T) {
	ds := okSummary(pct(-15), pct(-15), pct(0), pct(-2), "orders")
	d := BuildDecision(ds)
	out := MultiMetricReport(kpi.Metrics(), ds, d)

	for _, want := range []string{
		"EXECUTIVE KPI REPORT",
		"Period: 2026-06-01 -> 2026-07-01",
		"Revenue change is mainly driven by Orders.",
		"- revenue: -15.0%",
		"- orders: -15.0%",
		"- aov: +0.0%",
		"Decision signal: risk=HIGH trend=DOWN confidence=0.9 score=60",
		"Next actions:",
		"Metrics analysed: revenue, orders, customers, aov",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestMultiMetricReport_NilPctRendersNA(t *testing.T) {
	ds := okSummary(pct(-15), pct(-15), nil, pct(0), "orders")
	out := MultiMetricReport(kpi.Metrics(), ds, BuildDecision(ds))

	if !strings.Contains(out, "- aov: n/a") {
		t.Fatalf("report should render nil pct as n/a:\n%s", out)
	}
}

func TestMultiMetricReport_DegradedDriver(t *testing.T) {
	ds := kpi.DriverSummary{Status: kpi.StatusInsufficientData, Message: "need at least 2 months"}
	out := MultiMetricReport(kpi.Metrics(), ds, UnknownDecision(""))

	if !strings.Contains(out, "Driver analysis degraded: need at least 2 months") {
		t.Errorf("report: %s", out)
	}
	if !strings.Contains(out, "risk=UNKNOWN") {
		t.Errorf("report should carry the unknown decision: %s", out)
	}
}

func TestLegacyReport(t *testing.T) {
	a := LegacyAnalysis{
		Metric: kpi.MetricRevenue,
		Range:  kpi.RangeLast3Months,
		Style:  kpi.StyleExecutive,
	}
	a.FromTriple(narrative.Triple{
		Insight:        "revenue fell",
		Risk:           "downside",
		Recommendation: "investigate",
	})
	out := LegacyReport(a)

	for _, want := range []string{
		"KPI ANALYSIS",
		"Metric: revenue (last_3_months)",
		"Insight: revenue fell",
		"Risk: downside",
		"Recommendation: investigate",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
