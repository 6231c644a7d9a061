package kpi

import "testing"

// ─── WHAT-IF SIMULATION ───────────────────────────────────────────────────────

func TestSimulate_RevenueIsOrdersTimesAOV(t *testing.T) {
	cs := LatestChanges([]Row{
		row("2026-06-01", 95000, 950, 790, 100),
		row("2026-07-01", 100000, 1000, 800, 100),
	})
	sim := Simulate(cs, Scenario{OrdersDeltaPct: 0.10, AOVDeltaPct: -0.05})

	if sim.Status != StatusOK {
		t.Fatalf("status: got %q", sim.Status)
	}
	if sim.Base.Orders != 1000 || sim.Base.AOV != 100 || sim.Base.Revenue != 100000 {
		t.Fatalf("base: got %+v", sim.Base)
	}
	if sim.Simulated.Orders != 1100 {
		t.Errorf("simulated orders: got %v", sim.Simulated.Orders)
	}
	if sim.Simulated.AOV != 95 {
		t.Errorf("simulated aov: got %v", sim.Simulated.AOV)
	}
	// 1100 × 95, not 100000 × (1.10 × 0.95) against recorded revenue.
	if got := sim.Simulated.Revenue; got < 104499.99 || got > 104500.01 {
		t.Errorf("simulated revenue: got %v, want 104500", got)
	}
	if got := sim.Impact.RevenueDelta; got < 4499.99 || got > 4500.01 {
		t.Errorf("revenue delta: got %v, want 4500", got)
	}
	if sim.Impact.RevenueDeltaPct == nil {
		t.Fatal("revenue delta pct should be computable")
	}
	if got := *sim.Impact.RevenueDeltaPct; got < 0.04499 || got > 0.04501 {
		t.Errorf("revenue delta pct: got %v, want 0.045", got)
	}
}

func TestSimulate_CustomersDeltaDoesNotAffectRevenue(t *testing.T) {
	cs := LatestChanges([]Row{
		row("2026-06-01", 95000, 950, 790, 100),
		row("2026-07-01", 100000, 1000, 800, 100),
	})
	sim := Simulate(cs, Scenario{CustomersDeltaPct: 0.50})

	if sim.Simulated.Revenue != sim.Base.Revenue {
		t.Errorf("revenue moved: got %v", sim.Simulated.Revenue)
	}
	if sim.Scenario.CustomersDeltaPct != 0.50 {
		t.Errorf("scenario should be echoed: got %+v", sim.Scenario)
	}
}

func TestSimulate_ZeroBaseRevenueGivesNilPct(t *testing.T) {
	cs := LatestChanges([]Row{
		row("2026-06-01", 10, 1, 1, 10),
		row("2026-07-01", 0, 0, 1, 0),
	})
	sim := Simulate(cs, Scenario{OrdersDeltaPct: 0.10})

	if sim.Status != StatusOK {
		t.Fatalf("status: got %q", sim.Status)
	}
	if sim.Impact.RevenueDelta != 0 {
		t.Errorf("delta: got %v", sim.Impact.RevenueDelta)
	}
	if sim.Impact.RevenueDeltaPct != nil {
		t.Errorf("pct should be nil for zero base, got %v", *sim.Impact.RevenueDeltaPct)
	}
}

func TestSimulate_EchoesInsufficientData(t *testing.T) {
	cs := LatestChanges(nil)
	sim := Simulate(cs, Scenario{OrdersDeltaPct: 0.10})

	if sim.Status != StatusInsufficientData {
		t.Fatalf("status: got %q", sim.Status)
	}
	if sim.Message != cs.Message {
		t.Errorf("message should be echoed: got %q", sim.Message)
	}
	if sim.Base != (SimValues{}) || sim.Simulated != (SimValues{}) {
		t.Error("no projection on insufficient data")
	}
}
