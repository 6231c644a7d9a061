// Package store is the Postgres access layer for monthly KPI history and the
// agent query audit log. Retrieval is deterministic: a fixed full-column
// select over kpi_monthly with a range-derived LIMIT — the metric only
// selects what gets narrated, never which columns are fetched, so downstream
// driver and risk logic always has the full row.
//
// Dependency rule: store imports kpi only. It never imports api, agent,
// narrative, or jobs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nyashahama/kpi-copilot-backend/internal/kpi"
)

// Querier is the narrow interface handlers and the orchestrator depend on.
// *Store is the production implementation; tests stub it with in-memory rows.
type Querier interface {
	Ping(ctx context.Context) error
	FetchMetricRows(ctx context.Context, metric kpi.Metric, rng kpi.Range) ([]kpi.Row, error)
	LatestTwoMonths(ctx context.Context) ([]kpi.Row, error)
	FetchRange(ctx context.Context, from, to string) ([]kpi.Row, error)
	UpsertMonth(ctx context.Context, row kpi.Row) error
	SeedDemo(ctx context.Context, p SeedParams) (SeedResult, error)
	InsertQueryLog(ctx context.Context, e QueryLogEntry) error
	QueryHistory(ctx context.Context, limit int) ([]QueryLogRow, error)
}

// Store wraps the shared connection pool. Connections are checked out per
// call by database/sql — concurrent retrievals share no mutable state, so no
// locking is needed here.
type Store struct {
	pool *sql.DB
}

var _ Querier = (*Store)(nil)

// Open opens and verifies the connection pool. The pool is tuned for the
// low-QPS workload this service targets.
func Open(dsn string) (*Store, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Ping verifies database reachability for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.PingContext(ctx)
}

// EnsureSchema creates the KPI and audit tables when absent. Called once at
// startup; failures there are logged but non-fatal, matching the service's
// degrade-not-abort posture.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const kpiTable = `
CREATE TABLE IF NOT EXISTS kpi_monthly (
    month     DATE PRIMARY KEY,
    revenue   NUMERIC NOT NULL,
    orders    INTEGER NOT NULL,
    customers INTEGER NOT NULL,
    aov       NUMERIC NOT NULL
);`

	const logTable = `
CREATE TABLE IF NOT EXISTS agent_query_log (
    id         SERIAL PRIMARY KEY,
    request_id TEXT NOT NULL,
    question   TEXT NOT NULL,
    mode       TEXT NOT NULL,
    latency_ms INTEGER NOT NULL,
    status     TEXT NOT NULL,
    error      TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

	if _, err := s.pool.ExecContext(ctx, kpiTable); err != nil {
		return fmt.Errorf("store: create kpi_monthly: %w", err)
	}
	if _, err := s.pool.ExecContext(ctx, logTable); err != nil {
		return fmt.Errorf("store: create agent_query_log: %w", err)
	}
	return nil
}

// ─── METRIC RETRIEVAL ─────────────────────────────────────────────────────────

// rangeLimit resolves a lookback range to a row-count limit. 0 means
// unlimited (ytd / full history).
func rangeLimit(rng kpi.Range) int {
	switch rng {
	case kpi.RangeLast2Months:
		return 2
	case kpi.RangeLast3Months:
		return 3
	case kpi.RangeLast6Months:
		return 6
	default:
		return 0
	}
}

// MetricSQL builds the exact SQL used for KPI retrieval. The string is
// surfaced verbatim in legacy results for transparency. The input surface is
// a closed enum, so there is nothing to escape.
func MetricSQL(_ kpi.Metric, rng kpi.Range) string {
	base := "SELECT month::text, revenue, orders, customers, aov\nFROM kpi_monthly\nORDER BY month DESC"
	if limit := rangeLimit(rng); limit > 0 {
		return fmt.Sprintf("%s\nLIMIT %d;", base, limit)
	}
	return base + ";"
}

// FetchMetricRows runs the deterministic retrieval for a metric/range pair.
// The query orders DESC to apply the LIMIT against the newest months, then
// the result is reversed so callers always see oldest→newest.
func (s *Store) FetchMetricRows(ctx context.Context, metric kpi.Metric, rng kpi.Range) ([]kpi.Row, error) {
	return s.queryRows(ctx, MetricSQL(metric, rng))
}

// LatestTwoMonths returns up to the two most recent months, oldest first.
func (s *Store) LatestTwoMonths(ctx context.Context) ([]kpi.Row, error) {
	return s.queryRows(ctx, MetricSQL(kpi.MetricRevenue, kpi.RangeLast2Months))
}

// FetchRange returns history between two month bounds (inclusive, "" means
// unbounded), oldest first.
func (s *Store) FetchRange(ctx context.Context, from, to string) ([]kpi.Row, error) {
	query := "SELECT month::text, revenue, orders, customers, aov FROM kpi_monthly"
	var args []any
	switch {
	case from != "" && to != "":
		query += " WHERE month >= $1 AND month <= $2"
		args = []any{from, to}
	case from != "":
		query += " WHERE month >= $1"
		args = []any{from}
	case to != "":
		query += " WHERE month <= $1"
		args = []any{to}
	}
	query += " ORDER BY month ASC;"

	rows, err := s.pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: fetch range: %w", err)
	}
	defer rows.Close()

	return scanKPIRows(rows)
}

// UpsertMonth inserts or replaces one month of KPI history.
func (s *Store) UpsertMonth(ctx context.Context, row kpi.Row) error {
	const q = `
INSERT INTO kpi_monthly (month, revenue, orders, customers, aov)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (month) DO UPDATE SET
    revenue = EXCLUDED.revenue,
    orders = EXCLUDED.orders,
    customers = EXCLUDED.customers,
    aov = EXCLUDED.aov;`

	if _, err := s.pool.ExecContext(ctx, q, row.Month, row.Revenue, int64(row.Orders), int64(row.Customers), row.AOV); err != nil {
		return fmt.Errorf("store: upsert month %s: %w", row.Month, err)
	}
	return nil
}

// queryRows executes a DESC-ordered retrieval query and reverses the result
// to the oldest→newest contract.
func (s *Store) queryRows(ctx context.Context, query string) ([]kpi.Row, error) {
	rows, err := s.pool.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: fetch metric rows: %w", err)
	}
	defer rows.Close()

	out, err := scanKPIRows(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func scanKPIRows(rows *sql.Rows) ([]kpi.Row, error) {
	var out []kpi.Row
	for rows.Next() {
		var r kpi.Row
		var orders, customers int64
		if err := rows.Scan(&r.Month, &r.Revenue, &orders, &customers, &r.AOV); err != nil {
			return nil, fmt.Errorf("store: scan kpi row: %w", err)
		}
		r.Orders = float64(orders)
		r.Customers = float64(customers)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate kpi rows: %w", err)
	}
	return out, nil
}
