package kpi

import "fmt"

// ─── DRIVER DECOMPOSITION ─────────────────────────────────────────────────────
//
// Attributes a revenue change to its dominant lever (orders volume vs average
// order value) by comparing the last two months of history. Percentages here
// are in percent units (-8.0 means -8%), unlike the fraction-based anomaly
// thresholds — both conventions come from the upstream reporting contract.

// DriverSummary is the decomposition result. MainDriver is populated only
// when the revenue pct and at least one of the orders/aov pcts are
// computable.
type DriverSummary struct {
	Status            string              `json:"status"`
	Message           string              `json:"message,omitempty"`
	LatestMonth       string              `json:"latest_month,omitempty"`
	PreviousMonth     string              `json:"previous_month,omitempty"`
	ChangesPct        map[string]*float64 `json:"changes_pct"`
	MainDriver        string              `json:"main_driver,omitempty"` // "orders" | "aov"
	ExecutiveTakeaway string              `json:"executive_takeaway,omitempty"`
	ExecutiveSummary  string              `json:"executive_summary,omitempty"`
}

// pctPoints returns (cur-prev)/prev × 100, or nil when prev is zero.
func pctPoints(prev, cur float64) *float64 {
	if prev == 0 {
		return nil
	}
	p := (cur - prev) / prev * 100
	return &p
}

// Decompose reads the last two elements of an oldest→newest row sequence as
// previous/current and picks the main revenue driver.
//
// Tie-break: when both the orders and aov pcts are available, the larger
// absolute magnitude wins; exact ties go to orders (>= comparison). This
// rule is relied on downstream — do not change it.
func Decompose(rows []Row) DriverSummary {
	if len(rows) < 2 {
		return DriverSummary{
			Status:     StatusInsufficientData,
			Message:    "need at least 2 months of KPI rows to compute drivers",
			ChangesPct: emptyChangesPct(),
		}
	}

	prev := rows[len(rows)-2]
	cur := rows[len(rows)-1]

	revPct := pctPoints(prev.Revenue, cur.Revenue)
	ordPct := pctPoints(prev.Orders, cur.Orders)
	aovPct := pctPoints(prev.AOV, cur.AOV)
	cusPct := pctPoints(prev.Customers, cur.Customers)

	changesPct := map[string]*float64{
		"revenue":   revPct,
		"orders":    ordPct,
		"aov":       aovPct,
		"customers": cusPct,
	}

	if revPct == nil || (ordPct == nil && aovPct == nil) {
		return DriverSummary{
			Status:        StatusInsufficientData,
			Message:       "need at least 2 months of KPI data for revenue/orders/aov to compute drivers",
			LatestMonth:   cur.Month,
			PreviousMonth: prev.Month,
			ChangesPct:    changesPct,
		}
	}

	var mainDriver string
	switch {
	case ordPct != nil && aovPct != nil:
		if abs(*ordPct) >= abs(*aovPct) {
			mainDriver = "orders"
		} else {
			mainDriver = "aov"
		}
	case ordPct != nil:
		mainDriver = "orders"
	default:
		mainDriver = "aov"
	}

	takeaway := "Revenue change is mainly driven by AOV."
	label := "AOV"
	if mainDriver == "orders" {
		takeaway = "Revenue change is mainly driven by Orders."
		label = "orders"
	}

	summary := fmt.Sprintf(
		"Revenue changed %.1f%% MoM, driven primarily by %s (%.1f%% / %.1f%%).",
		*revPct, label, orZero(ordPct), orZero(aovPct),
	)

	return DriverSummary{
		Status:            StatusOK,
		LatestMonth:       cur.Month,
		PreviousMonth:     prev.Month,
		ChangesPct:        changesPct,
		MainDriver:        mainDriver,
		ExecutiveTakeaway: takeaway,
		ExecutiveSummary:  summary,
	}
}

func emptyChangesPct() map[string]*float64 {
	return map[string]*float64{
		"revenue":   nil,
		"orders":    nil,
		"aov":       nil,
		"customers": nil,
	}
}

// orZero renders a missing pct as the 0.0 textual placeholder used in the
// executive summary template.
func orZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
