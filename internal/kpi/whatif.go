package kpi

// ─── WHAT-IF SIMULATION ───────────────────────────────────────────────────────
//
// Quick scenario model over the latest month: Revenue ~ Orders × AOV.
// The customers delta is carried through for context but does not feed the
// revenue projection.

// Scenario is the set of hypothetical deltas, expressed as fractions
// (0.10 means +10%).
type Scenario struct {
	OrdersDeltaPct    float64 `json:"orders_delta_pct"`
	AOVDeltaPct       float64 `json:"aov_delta_pct"`
	CustomersDeltaPct float64 `json:"customers_delta_pct"`
}

// SimValues holds the orders/aov/revenue triple for either the base month or
// the simulated outcome.
type SimValues struct {
	Orders  float64 `json:"orders"`
	AOV     float64 `json:"aov"`
	Revenue float64 `json:"revenue"`
}

// Impact is the projected revenue movement. RevenueDeltaPct is nil whenever
// the base revenue is zero.
type Impact struct {
	RevenueDelta    float64  `json:"revenue_delta"`
	RevenueDeltaPct *float64 `json:"revenue_delta_pct"`
}

// Simulation is the full what-if result.
type Simulation struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Base      SimValues `json:"base"`
	Scenario  Scenario  `json:"scenario"`
	Simulated SimValues `json:"simulated"`
	Impact    Impact    `json:"impact"`
}

// Simulate projects revenue for the scenario against the latest month in the
// change set. A non-ok change set is echoed unchanged (status and message
// only) — the caller sees the same insufficient_data vocabulary everywhere.
func Simulate(cs ChangeSet, sc Scenario) Simulation {
	if cs.Status != StatusOK {
		return Simulation{Status: cs.Status, Message: cs.Message, Scenario: sc}
	}

	current := cs.Months[len(cs.Months)-1]

	base := SimValues{
		Orders:  current.Orders,
		AOV:     current.AOV,
		Revenue: current.Revenue,
	}

	simulated := SimValues{
		Orders: current.Orders * (1 + sc.OrdersDeltaPct),
		AOV:    current.AOV * (1 + sc.AOVDeltaPct),
	}
	simulated.Revenue = simulated.Orders * simulated.AOV

	impact := Impact{RevenueDelta: simulated.Revenue - base.Revenue}
	if base.Revenue != 0 {
		pct := impact.RevenueDelta / base.Revenue
		impact.RevenueDeltaPct = &pct
	}

	return Simulation{
		Status:    StatusOK,
		Base:      base,
		Scenario:  sc,
		Simulated: simulated,
		Impact:    impact,
	}
}
