package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
)

// ─── DEMO SEEDING ─────────────────────────────────────────────────────────────
//
// Inserts a synthetic monthly growth curve with a simulated shock in the
// final month, so the driver/anomaly pipeline has something interesting to
// explain on a fresh database.

// Seed scenarios. Each one degrades a different lever in the last month.
const (
	ScenarioRevenueDrop = "revenue_drop"
	ScenarioOrdersDrop  = "orders_drop"
	ScenarioAOVDrop     = "aov_drop"
)

// SeedParams controls the generated history. Months is clamped to [2, 24];
// an unknown scenario falls back to revenue_drop.
type SeedParams struct {
	Months   int
	Reset    bool
	Scenario string
}

// SeedResult reports what the seeding run did.
type SeedResult struct {
	MonthsInserted int      `json:"months_inserted"`
	MonthsRange    []string `json:"months_range"`
	Reset          bool     `json:"reset"`
	RowsDeleted    int      `json:"rows_deleted"`
	Scenario       string   `json:"scenario"`
}

// SeedDemo generates p.Months months of KPI history ending this month. The
// base curve grows revenue 3%, orders 2%, and customers 1.5% per month; the
// scenario shock applies to the last month only.
func (s *Store) SeedDemo(ctx context.Context, p SeedParams) (SeedResult, error) {
	months := p.Months
	if months < 2 {
		months = 2
	}
	if months > 24 {
		months = 24
	}

	scenario := p.Scenario
	switch scenario {
	case ScenarioRevenueDrop, ScenarioOrdersDrop, ScenarioAOVDrop:
	default:
		scenario = ScenarioRevenueDrop
	}

	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	monthList := make([]string, months)
	for i := range monthList {
		monthList[i] = start.AddDate(0, i, 0).Format("2006-01-02")
	}

	deleted := 0
	if p.Reset {
		res, err := s.pool.ExecContext(ctx,
			"DELETE FROM kpi_monthly WHERE month = ANY($1);",
			pq.Array(monthList),
		)
		if err != nil {
			return SeedResult{}, fmt.Errorf("store: seed reset: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			deleted = int(n)
		}
	}

	const (
		baseRevenue   = 100000.0
		baseOrders    = 1200.0
		baseCustomers = 800.0
	)

	for idx, m := range monthList {
		revenue := baseRevenue * (1.0 + 0.03*float64(idx))
		orders := float64(int(baseOrders * (1.0 + 0.02*float64(idx))))
		customers := float64(int(baseCustomers * (1.0 + 0.015*float64(idx))))

		if idx == len(monthList)-1 {
			switch scenario {
			case ScenarioRevenueDrop:
				revenue *= 0.80
			case ScenarioOrdersDrop:
				orders = float64(int(orders * 0.80))
			case ScenarioAOVDrop:
				// Orders steady, revenue reduced — AOV takes the hit.
				revenue *= 0.85
			}
		}

		aov := revenue / max(orders, 1)

		row := kpi.Row{
			Month:     m,
			Revenue:   round2(revenue),
			Orders:    orders,
			Customers: customers,
			AOV:       round2(aov),
		}
		if err := s.UpsertMonth(ctx, row); err != nil {
			return SeedResult{}, err
		}
	}

	return SeedResult{
		MonthsInserted: months,
		MonthsRange:    []string{monthList[0], monthList[len(monthList)-1]},
		Reset:          p.Reset,
		RowsDeleted:    deleted,
		Scenario:       scenario,
	}, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
