package kpi

import (
	"strings"
	"testing"
)

// ─── DRIVER DECOMPOSITION ─────────────────────────────────────────────────────

func TestDecompose_OrdersDriven(t *testing.T) {
	rows := []Row{
		row("2026-06-01", 100000, 1000, 800, 100),
		row("2026-07-01", 85000, 850, 800, 100),
	}
	ds := Decompose(rows)

	if ds.Status != StatusOK {
		t.Fatalf("status: got %q", ds.Status)
	}
	if ds.PreviousMonth != "2026-06-01" || ds.LatestMonth != "2026-07-01" {
		t.Errorf("months: got %s -> %s", ds.PreviousMonth, ds.LatestMonth)
	}
	if ds.MainDriver != "orders" {
		t.Errorf("main_driver: got %q, want orders", ds.MainDriver)
	}
	if ds.ExecutiveTakeaway != "Revenue change is mainly driven by Orders." {
		t.Errorf("takeaway: got %q", ds.ExecutiveTakeaway)
	}
	if !strings.Contains(ds.ExecutiveSummary, "driven primarily by orders") {
		t.Errorf("summary: got %q", ds.ExecutiveSummary)
	}

	rev := ds.ChangesPct["revenue"]
	if rev == nil || *rev < -15.001 || *rev > -14.999 {
		t.Errorf("revenue pct: got %v, want -15.0 (percent units)", rev)
	}
}

func TestDecompose_AOVDriven(t *testing.T) {
	rows := []Row{
		row("2026-06-01", 100000, 1000, 800, 100),
		row("2026-07-01", 92000, 1000, 800, 92),
	}
	ds := Decompose(rows)

	if ds.MainDriver != "aov" {
		t.Fatalf("main_driver: got %q, want aov", ds.MainDriver)
	}
	if ds.ExecutiveTakeaway != "Revenue change is mainly driven by AOV." {
		t.Errorf("takeaway: got %q", ds.ExecutiveTakeaway)
	}
}

func TestDecompose_ExactTieGoesToOrders(t *testing.T) {
	// Orders -10% and AOV -10%: equal magnitudes resolve to orders.
	rows := []Row{
		row("2026-06-01", 100000, 1000, 800, 100),
		row("2026-07-01", 81000, 900, 800, 90),
	}
	ds := Decompose(rows)

	if ds.MainDriver != "orders" {
		t.Fatalf("main_driver: got %q, want orders on exact tie", ds.MainDriver)
	}
}

func TestDecompose_UsesLastTwoOfLongerHistory(t *testing.T) {
	ds := Decompose(threeMonths())

	if ds.PreviousMonth != "2026-06-01" || ds.LatestMonth != "2026-07-01" {
		t.Fatalf("months: got %s -> %s, want the last two rows", ds.PreviousMonth, ds.LatestMonth)
	}
}

func TestDecompose_InsufficientRows(t *testing.T) {
	ds := Decompose([]Row{row("2026-07-01", 100, 10, 5, 10)})

	if ds.Status != StatusInsufficientData {
		t.Fatalf("status: got %q", ds.Status)
	}
	if ds.MainDriver != "" || ds.ExecutiveSummary != "" {
		t.Error("no driver or summary on insufficient data")
	}
	for _, m := range []string{"revenue", "orders", "aov", "customers"} {
		if v, ok := ds.ChangesPct[m]; !ok || v != nil {
			t.Errorf("changes_pct[%s]: want explicit nil entry", m)
		}
	}
}

func TestDecompose_ZeroBaseRevenueIsInsufficient(t *testing.T) {
	rows := []Row{
		row("2026-06-01", 0, 1000, 800, 0),
		row("2026-07-01", 85000, 850, 800, 100),
	}
	ds := Decompose(rows)

	if ds.Status != StatusInsufficientData {
		t.Fatalf("status: got %q", ds.Status)
	}
	// Month context is still surfaced even when the pcts are unusable.
	if ds.LatestMonth != "2026-07-01" || ds.PreviousMonth != "2026-06-01" {
		t.Errorf("months: got %s -> %s", ds.PreviousMonth, ds.LatestMonth)
	}
	if ds.ChangesPct["orders"] == nil {
		t.Error("orders pct is computable and should be kept")
	}
}

func TestDecompose_OnlyOrdersPctAvailable(t *testing.T) {
	// AOV base is zero, orders base is not: orders wins by default.
	rows := []Row{
		row("2026-06-01", 100000, 1000, 800, 0),
		row("2026-07-01", 90000, 900, 800, 100),
	}
	ds := Decompose(rows)

	if ds.Status != StatusOK {
		t.Fatalf("status: got %q", ds.Status)
	}
	if ds.MainDriver != "orders" {
		t.Errorf("main_driver: got %q", ds.MainDriver)
	}
}
