package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"jobfinder-engine/internal/domain"
)

// PGMirror copies accepted jobs into a PostgreSQL table for downstream
// querying. The JSON corpus stays the source of truth; the table carries
// the same identity constraint so replays are harmless.
type PGMirror struct {
	pool *pgxpool.Pool
}

func NewPGMirror(ctx context.Context, dsn string) (*PGMirror, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	m := &PGMirror{pool: pool}
	if err := m.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

func (m *PGMirror) ensureSchema(ctx context.Context) error {
	_, err := m.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
  id BIGSERIAL PRIMARY KEY,
  job_title TEXT NOT NULL,
  company TEXT NOT NULL,
  location TEXT NOT NULL,
  salary TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  apply_link TEXT NOT NULL,
  source TEXT NOT NULL,
  first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  UNIQUE (apply_link, source)
);`)
	if err != nil {
		return fmt.Errorf("create mirror table: %w", err)
	}
	return nil
}

func (m *PGMirror) Mirror(ctx context.Context, j domain.Job) error {
	_, err := m.pool.Exec(ctx, `
INSERT INTO jobs(job_title, company, location, salary, description, apply_link, source)
VALUES($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (apply_link, source) DO NOTHING;`,
		j.JobTitle, j.Company, j.Location, j.Salary, j.Description, j.ApplyLink, string(j.Source),
	)
	if err != nil {
		return fmt.Errorf("mirror job: %w", err)
	}
	return nil
}

func (m *PGMirror) Close() {
	if m != nil && m.pool != nil {
		m.pool.Close()
	}
}
