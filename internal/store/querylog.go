package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ─── AGENT QUERY AUDIT LOG ────────────────────────────────────────────────────
//
// Append-only record of every question that reached the orchestration chain.
// Callers treat inserts as best-effort: a logging failure must never fail the
// primary response, so the API layer swallows the returned error after
// logging it.

// QueryLogEntry is one audit record to append.
type QueryLogEntry struct {
	RequestID string
	Question  string
	Mode      string
	LatencyMS int
	Status    string
	Error     string
}

// QueryLogRow is one audit record read back for the history endpoint.
type QueryLogRow struct {
	ID        int64  `json:"id"`
	RequestID string `json:"request_id"`
	Question  string `json:"question"`
	Mode      string `json:"mode"`
	LatencyMS int    `json:"latency_ms"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// InsertQueryLog appends one audit record.
func (s *Store) InsertQueryLog(ctx context.Context, e QueryLogEntry) error {
	const q = `
INSERT INTO agent_query_log (request_id, question, mode, latency_ms, status, error)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''));`

	if _, err := s.pool.ExecContext(ctx, q, e.RequestID, e.Question, e.Mode, e.LatencyMS, e.Status, e.Error); err != nil {
		return fmt.Errorf("store: insert query log: %w", err)
	}
	return nil
}

// QueryHistory returns the most recent audit records, newest first.
func (s *Store) QueryHistory(ctx context.Context, limit int) ([]QueryLogRow, error) {
	if limit < 1 {
		limit = 20
	}

	const q = `
SELECT id, request_id, question, mode, latency_ms, status, error, created_at
FROM agent_query_log
ORDER BY id DESC
LIMIT $1;`

	rows, err := s.pool.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}
	defer rows.Close()

	var out []QueryLogRow
	for rows.Next() {
		var r QueryLogRow
		var errText sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Question, &r.Mode, &r.LatencyMS, &r.Status, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan query log row: %w", err)
		}
		r.Error = errText.String
		r.CreatedAt = createdAt.Format(time.RFC3339)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate query log rows: %w", err)
	}
	return out, nil
}
