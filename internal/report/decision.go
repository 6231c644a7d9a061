// Package report converts a driver decomposition into an actionable decision
// signal and renders the single human-readable final report every
// orchestration mode converges on.
package report

import (
	"fmt"
	"math"

	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
)

// Decision is the risk/trend/confidence signal derived from a DriverSummary.
type Decision struct {
	RiskSignal     string   `json:"risk_signal"`     // LOW | ELEVATED | HIGH | UNKNOWN
	TrendDirection string   `json:"trend_direction"` // UP | DOWN | FLAT | UNKNOWN
	Confidence     float64  `json:"confidence"`
	RiskScore      int      `json:"risk_score"`
	NextActions    []string `json:"next_actions"`
}

// UnknownDecision is the degraded placeholder used when the driver summary
// is unusable or a sub-step of the chain failed. The chain still completes
// with this shape rather than aborting.
func UnknownDecision(reason string) Decision {
	action := "Seed at least 2 months of KPI data, then re-run the analysis."
	if reason != "" {
		action = reason
	}
	return Decision{
		RiskSignal:     "UNKNOWN",
		TrendDirection: "UNKNOWN",
		Confidence:     0.2,
		RiskScore:      10,
		NextActions:    []string{action},
	}
}

// BuildDecision maps a driver summary to a decision signal. Percentages in
// the summary are percent units (-8.0 means -8%).
func BuildDecision(ds kpi.DriverSummary) Decision {
	if ds.Status != kpi.StatusOK {
		return UnknownDecision("")
	}

	revPct := ds.ChangesPct["revenue"]
	if revPct == nil {
		return UnknownDecision("")
	}

	trend := "FLAT"
	if *revPct > 0 {
		trend = "UP"
	} else if *revPct < 0 {
		trend = "DOWN"
	}

	risk := "LOW"
	switch {
	case *revPct <= -10:
		risk = "HIGH"
	case *revPct < 0:
		risk = "ELEVATED"
	}

	// Confidence reflects how much of the decomposition was computable.
	confidence := 0.6
	if ds.ChangesPct["orders"] != nil && ds.ChangesPct["aov"] != nil {
		confidence = 0.9
	}

	score := int(math.Round(math.Abs(*revPct) * 4))
	if score < 10 {
		score = 10
	}
	if score > 100 {
		score = 100
	}

	return Decision{
		RiskSignal:     risk,
		TrendDirection: trend,
		Confidence:     confidence,
		RiskScore:      score,
		NextActions:    nextActions(ds, trend),
	}
}

func nextActions(ds kpi.DriverSummary, trend string) []string {
	var actions []string

	if trend == "DOWN" {
		if ds.MainDriver == "orders" {
			actions = append(actions,
				"Investigate order volume: acquisition channels, conversion funnel, and churn.",
				"Compare paid vs organic traffic for the latest month.")
		} else {
			actions = append(actions,
				"Audit pricing and discounting: AOV is the dominant drag on revenue.",
				"Review product mix shifts in the latest month.")
		}
	} else {
		if ds.MainDriver == "orders" {
			actions = append(actions, "Double-down on the order-volume lever; protect conversion rate.")
		} else {
			actions = append(actions, "Protect AOV gains: watch discount depth and bundle pricing.")
		}
	}

	actions = append(actions, fmt.Sprintf(
		"Re-check KPIs after the next monthly close (latest analysed: %s).", ds.LatestMonth))
	return actions
}
