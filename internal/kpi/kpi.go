// Package kpi holds the monthly KPI domain model and the rule-based
// analytics that operate on it: month-over-month change computation, anomaly
// detection, what-if simulation, and revenue driver decomposition.
//
// The package is deliberately dependency-free. All field types are plain Go
// types so callers and tests can construct values directly without touching
// the database or the API layer.
package kpi

import "fmt"

// ─── ENUMS ────────────────────────────────────────────────────────────────────

// Metric is one of the four KPI columns tracked in kpi_monthly.
type Metric string

const (
	MetricRevenue   Metric = "revenue"
	MetricOrders    Metric = "orders"
	MetricCustomers Metric = "customers"
	MetricAOV       Metric = "aov"
)

// Metrics returns the fixed metric set in its canonical order. Alert and
// change ordering follows this, not magnitude.
func Metrics() []Metric {
	return []Metric{MetricRevenue, MetricOrders, MetricCustomers, MetricAOV}
}

// ParseMetric maps a string to a Metric, defaulting to revenue for anything
// unrecognised.
func ParseMetric(s string) Metric {
	switch Metric(s) {
	case MetricOrders, MetricCustomers, MetricAOV:
		return Metric(s)
	default:
		return MetricRevenue
	}
}

// Range is a lookback window over monthly history, resolved by the store to
// a row-count limit.
type Range string

const (
	RangeLast2Months Range = "last_2_months"
	RangeLast3Months Range = "last_3_months"
	RangeLast6Months Range = "last_6_months"
	RangeYTD         Range = "ytd"
)

// Style selects prose density in the narrative engine.
type Style string

const (
	StyleBasic     Style = "basic"
	StyleExecutive Style = "executive"
	StyleBrief     Style = "brief"
	StyleDetailed  Style = "detailed"
)

// ─── STATUS VOCABULARY ────────────────────────────────────────────────────────

// Status values shared by every analytics result. "insufficient_data" is a
// first-class outcome, not an error — fewer than two months of history is a
// normal state for a fresh install.
const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
	StatusError            = "error"
)

// ─── CORE TYPES ───────────────────────────────────────────────────────────────

// Row is one month of KPI history. Rows returned from retrieval are always
// ordered oldest→newest. AOV is stored as a historical fact alongside the
// raw figures — it is not recomputed from revenue/orders on read.
type Row struct {
	Month     string  `json:"month"`
	Revenue   float64 `json:"revenue"`
	Orders    float64 `json:"orders"`
	Customers float64 `json:"customers"`
	AOV       float64 `json:"aov"`
}

// Value returns the column selected by metric.
func (r Row) Value(m Metric) float64 {
	switch m {
	case MetricOrders:
		return r.Orders
	case MetricCustomers:
		return r.Customers
	case MetricAOV:
		return r.AOV
	default:
		return r.Revenue
	}
}

// Change is the month-over-month movement of a single metric. PctChange is
// nil — not zero — when the previous value is missing or zero: division by
// zero is a defined "no signal" state, never a panic or an Inf.
type Change struct {
	Metric    Metric   `json:"metric"`
	Previous  *float64 `json:"previous"`
	Current   *float64 `json:"current"`
	Delta     *float64 `json:"delta"`
	PctChange *float64 `json:"pct_change"`
}

// ChangeSet is the output of LatestChanges: the two most recent months plus
// one Change per metric. On insufficient data, Months echoes whatever partial
// history exists and Changes is empty.
type ChangeSet struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Months  []Row    `json:"months"`
	Changes []Change `json:"changes"`
}

// ─── CHANGE COMPUTATION ───────────────────────────────────────────────────────

// pctFraction returns (cur-prev)/prev, or nil when prev is zero.
func pctFraction(prev, cur float64) *float64 {
	if prev == 0 {
		return nil
	}
	p := (cur - prev) / prev
	return &p
}

// LatestChanges compares the two most recent months in rows (oldest→newest)
// across the fixed metric set. Extra history beyond two months is ignored.
func LatestChanges(rows []Row) ChangeSet {
	if len(rows) < 2 {
		return ChangeSet{
			Status:  StatusInsufficientData,
			Message: "need at least 2 months in kpi_monthly to compute changes",
			Months:  rows,
			Changes: []Change{},
		}
	}

	base, target := rows[len(rows)-2], rows[len(rows)-1]
	months := []Row{base, target}

	changes := make([]Change, 0, len(Metrics()))
	for _, m := range Metrics() {
		prev := base.Value(m)
		cur := target.Value(m)
		delta := cur - prev
		changes = append(changes, Change{
			Metric:    m,
			Previous:  &prev,
			Current:   &cur,
			Delta:     &delta,
			PctChange: pctFraction(prev, cur),
		})
	}

	return ChangeSet{Status: StatusOK, Months: months, Changes: changes}
}

// ─── ANOMALY DETECTION ────────────────────────────────────────────────────────

// Alert flags one metric whose month-over-month change met or exceeded its
// threshold. The boundary is inclusive: |pct_change| >= threshold fires.
type Alert struct {
	Metric    Metric  `json:"metric"`
	Direction string  `json:"direction"` // "UP" | "DOWN"
	PctChange float64 `json:"pct_change"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

// Aggregate risk levels derived from the alert set.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// InsightReport bundles the change set with its anomaly alerts and the
// aggregate risk level.
type InsightReport struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Months  []Row    `json:"months"`
	Changes []Change `json:"changes"`
	Alerts  []Alert  `json:"alerts,omitempty"`
	Risk    string   `json:"risk,omitempty"`
}

// DefaultThresholds returns the per-metric absolute pct-change thresholds
// used when the caller supplies none.
func DefaultThresholds() map[Metric]float64 {
	return map[Metric]float64{
		MetricRevenue:   0.15,
		MetricOrders:    0.12,
		MetricCustomers: 0.10,
		MetricAOV:       0.08,
	}
}

// fallbackThreshold applies to any metric without an explicit entry.
const fallbackThreshold = 0.10

// DetectAnomalies scans the change set for threshold breaches. A non-ok
// change set is passed through untouched — no new failure modes are
// introduced here. Alerts keep the input metric ordering.
func DetectAnomalies(cs ChangeSet, thresholds map[Metric]float64) InsightReport {
	if cs.Status != StatusOK {
		return InsightReport{
			Status:  cs.Status,
			Message: cs.Message,
			Months:  cs.Months,
			Changes: cs.Changes,
		}
	}

	if thresholds == nil {
		thresholds = DefaultThresholds()
	}

	var alerts []Alert
	for _, c := range cs.Changes {
		if c.PctChange == nil {
			continue
		}
		pct := *c.PctChange
		th, ok := thresholds[c.Metric]
		if !ok {
			th = fallbackThreshold
		}
		if abs(pct) >= th {
			direction := "UP"
			if pct < 0 {
				direction = "DOWN"
			}
			alerts = append(alerts, Alert{
				Metric:    c.Metric,
				Direction: direction,
				PctChange: pct,
				Threshold: th,
				Message:   fmt.Sprintf("%s moved %s by %.1f%% (>= %.0f%%)", c.Metric, direction, pct*100, th*100),
			})
		}
	}

	risk := RiskLow
	switch {
	case hasRevenueDown(alerts):
		risk = RiskHigh
	case len(alerts) >= 2:
		risk = RiskMedium
	}

	return InsightReport{
		Status:  StatusOK,
		Months:  cs.Months,
		Changes: cs.Changes,
		Alerts:  alerts,
		Risk:    risk,
	}
}

func hasRevenueDown(alerts []Alert) bool {
	for _, a := range alerts {
		if a.Metric == MetricRevenue && a.Direction == "DOWN" {
			return true
		}
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
