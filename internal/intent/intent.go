// Package intent turns a free-text business question into a structured
// {metric, range, style} triple. Parsing is deterministic keyword matching —
// no LLM involvement — and it never fails: ambiguous input falls back to
// sensible defaults rather than an error.
package intent

import (
	"strings"

	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
)

// Intent is the parsed form of a question.
type Intent struct {
	Metric kpi.Metric `json:"metric"`
	Range  kpi.Range  `json:"range"`
	Style  kpi.Style  `json:"style"`
}

// Parse scans question for metric and range keywords. styleHint wins over
// any style keyword in the question; an empty hint defaults to executive.
func Parse(question string, styleHint kpi.Style) Intent {
	q := strings.ToLower(question)

	metric := kpi.MetricRevenue
	switch {
	case containsAny(q, "aov", "average order"):
		metric = kpi.MetricAOV
	case containsAny(q, "order"):
		metric = kpi.MetricOrders
	case containsAny(q, "customer", "user"):
		metric = kpi.MetricCustomers
	case containsAny(q, "revenue", "sales"):
		metric = kpi.MetricRevenue
	}

	rng := kpi.RangeLast3Months
	switch {
	case containsAny(q, "last_2_months", "2 month", "two month"):
		rng = kpi.RangeLast2Months
	case containsAny(q, "last_6_months", "6 month", "six month", "half year"):
		rng = kpi.RangeLast6Months
	case containsAny(q, "ytd", "year to date", "this year"):
		rng = kpi.RangeYTD
	}

	style := styleHint
	if style == "" {
		style = kpi.StyleExecutive
	}
	if strings.Contains(q, string(kpi.StyleBasic)) && styleHint == "" {
		style = kpi.StyleBasic
	}

	return Intent{Metric: metric, Range: rng, Style: style}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
