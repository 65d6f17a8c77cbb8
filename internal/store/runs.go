package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RunRecord is one pipeline run as kept in the ledger.
type RunRecord struct {
	ID         string          `json:"id"`
	Position   string          `json:"position"`
	Location   string          `json:"location"`
	PageBudget int             `json:"page_budget"`
	Status     string          `json:"status"`
	NewJobs    int             `json:"new_jobs"`
	Cancelled  bool            `json:"cancelled"`
	Sources    json.RawMessage `json:"sources"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

func (d *DB) RecordRun(ctx context.Context, r RunRecord) error {
	sources := r.Sources
	if len(sources) == 0 {
		sources = json.RawMessage("[]")
	}
	cancelled := 0
	if r.Cancelled {
		cancelled = 1
	}

	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO runs(id, position, location, page_budget, status, new_jobs, cancelled, sources, started_at, finished_at)
VALUES(?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  status = excluded.status,
  new_jobs = excluded.new_jobs,
  cancelled = excluded.cancelled,
  sources = excluded.sources,
  finished_at = excluded.finished_at;`,
		r.ID,
		r.Position,
		r.Location,
		r.PageBudget,
		r.Status,
		r.NewJobs,
		cancelled,
		string(sources),
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, position, location, page_budget, status, new_jobs, cancelled, sources, started_at, finished_at
FROM runs
ORDER BY started_at DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []RunRecord{}
	for rows.Next() {
		var (
			r                 RunRecord
			cancelled         int
			sources           string
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.Position, &r.Location, &r.PageBudget, &r.Status, &r.NewJobs,
			&cancelled, &sources, &started, &finished); err != nil {
			return nil, err
		}
		r.Cancelled = cancelled != 0
		r.Sources = json.RawMessage(sources)
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}
