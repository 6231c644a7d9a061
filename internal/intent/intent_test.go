package intent

import (
	"testing"

	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
)

func TestParse_MetricKeywords(t *testing.T) {
	cases := []struct {
		question string
		want     kpi.Metric
	}{
		{"how is revenue trending", kpi.MetricRevenue},
		{"what about our sales", kpi.MetricRevenue},
		{"did orders grow", kpi.MetricOrders},
		{"average order value trend", kpi.MetricAOV},
		{"what happened to AOV", kpi.MetricAOV},
		{"how many customers did we gain", kpi.MetricCustomers},
		{"active users this quarter", kpi.MetricCustomers},
		{"tell me something", kpi.MetricRevenue}, // default
	}

	for _, tc := range cases {
		got := Parse(tc.question, "")
		if got.Metric != tc.want {
			t.Errorf("Parse(%q): metric got %s, want %s", tc.question, got.Metric, tc.want)
		}
	}
}

func TestParse_AOVBeatsOrderKeyword(t *testing.T) {
	// "average order" contains "order"; the more specific metric must win.
	got := Parse("average order value last month", "")
	if got.Metric != kpi.MetricAOV {
		t.Fatalf("metric: got %s, want aov", got.Metric)
	}
}

func TestParse_RangeKeywords(t *testing.T) {
	cases := []struct {
		question string
		want     kpi.Range
	}{
		{"revenue over the last 2 months", kpi.RangeLast2Months},
		{"revenue over two months", kpi.RangeLast2Months},
		{"orders for the last 6 months", kpi.RangeLast6Months},
		{"orders for the half year", kpi.RangeLast6Months},
		{"revenue ytd", kpi.RangeYTD},
		{"revenue this year", kpi.RangeYTD},
		{"revenue please", kpi.RangeLast3Months}, // default
	}

	for _, tc := range cases {
		got := Parse(tc.question, "")
		if got.Range != tc.want {
			t.Errorf("Parse(%q): range got %s, want %s", tc.question, got.Range, tc.want)
		}
	}
}

func TestParse_StyleHintWinsOverQuestion(t *testing.T) {
	got := Parse("give me a basic view of revenue", kpi.StyleDetailed)
	if got.Style != kpi.StyleDetailed {
		t.Fatalf("style: got %s, want detailed", got.Style)
	}
}

func TestParse_StyleDefaultsToExecutive(t *testing.T) {
	got := Parse("revenue trend", "")
	if got.Style != kpi.StyleExecutive {
		t.Fatalf("style: got %s, want executive", got.Style)
	}
}

func TestParse_BasicKeywordInQuestion(t *testing.T) {
	got := Parse("give me a basic view of revenue", "")
	if got.Style != kpi.StyleBasic {
		t.Fatalf("style: got %s, want basic", got.Style)
	}
}

func TestParse_NeverFails(t *testing.T) {
	got := Parse("", "")
	if got.Metric != kpi.MetricRevenue || got.Range != kpi.RangeLast3Months || got.Style != kpi.StyleExecutive {
		t.Fatalf("empty question: got %+v", got)
	}
}
