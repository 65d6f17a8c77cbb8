// Package poll serializes pipeline runs and tracks their status for the
// HTTP surface and the scheduler.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"jobfinder-engine/internal/config"
	"jobfinder-engine/internal/scrape"
)

// ErrBusy is returned when a run is requested while another is in flight.
var ErrBusy = errors.New("a scrape run is already in progress")

// Pipeline is the part of scrape.Pipeline the runner drives.
type Pipeline interface {
	Run(ctx context.Context, position, location string, pageBudget int) (scrape.RunResult, error)
}

type Status struct {
	Running    bool              `json:"running"`
	Position   string            `json:"position,omitempty"`
	Location   string            `json:"location,omitempty"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	LastRunAt  time.Time         `json:"last_run_at,omitempty"`
	LastOkAt   time.Time         `json:"last_ok_at,omitempty"`
	LastError  string            `json:"last_error,omitempty"`
	LastResult *scrape.RunResult `json:"last_result,omitempty"`
	Runs       int               `json:"runs"`
}

type Runner struct {
	p   Pipeline
	log *slog.Logger

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
}

func NewRunner(p Pipeline, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{p: p, log: logger}
}

// Run executes one pipeline pass and blocks until it finishes. Only one run
// may be active at a time.
func (r *Runner) Run(ctx context.Context, q config.Query) (scrape.RunResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	if r.status.Running {
		r.mu.Unlock()
		return scrape.RunResult{}, ErrBusy
	}
	r.status.Running = true
	r.status.Position = q.Position
	r.status.Location = q.Location
	r.status.StartedAt = time.Now().UTC()
	r.cancel = cancel
	r.mu.Unlock()

	res, err := r.p.Run(ctx, q.Position, q.Location, q.Pages)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Running = false
	r.status.Runs++
	r.status.LastRunAt = time.Now().UTC()
	r.cancel = nil

	switch {
	case err != nil:
		r.status.LastError = err.Error()
	case res.Status == scrape.StatusError:
		r.status.LastError = res.Message
	default:
		r.status.LastError = ""
		r.status.LastOkAt = r.status.LastRunAt
	}
	if err == nil {
		r.status.LastResult = &res
	}
	return res, err
}

// Cancel stops the active run, if any. Jobs already appended stay.
func (r *Runner) Cancel() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	return true
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status
	if st.LastResult != nil {
		res := *st.LastResult
		st.LastResult = &res
	}
	return st
}

// RunQueries runs each configured query in order. A busy runner skips the
// round; a failed query does not stop the rest.
func (r *Runner) RunQueries(ctx context.Context, queries []config.Query) error {
	var errs []error
	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		res, err := r.Run(ctx, q)
		if errors.Is(err, ErrBusy) {
			r.log.Info("skipping scheduled round, a run is in progress")
			return nil
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.log.Info("scheduled query done", "position", q.Position, "location", q.Location,
			"status", res.Status, "new_jobs", res.NewJobsFound)
	}
	return errors.Join(errs...)
}
