package scrape

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"jobfinder-engine/internal/domain"
	"jobfinder-engine/internal/scrape/types"
	"jobfinder-engine/internal/scrape/util"
	"jobfinder-engine/internal/store"
)

type State string

const (
	StateInit     State = "init"
	StatePaging   State = "paging"
	StateDraining State = "draining"
	StateDone     State = "done"
	StateBlocked  State = "blocked"
)

// Appender is the write side of the corpus.
type Appender interface {
	TryAppend(ctx context.Context, job domain.Job) (store.AppendResult, error)
}

// Notify receives progress events. data is JSON-encodable.
type Notify func(event string, data any)

// maxFailedPagesInRow stops paging after this many consecutive pages ran
// out of retries.
const maxFailedPagesInRow = 2

type ControllerConfig struct {
	PageBudget      int
	PolitenessDelay time.Duration
	CallTimeout     time.Duration
	Retry           util.Backoff

	// Pacer is shared by every run against the same source. Nil builds a
	// fresh one from PolitenessDelay.
	Pacer *util.Pacer
}

// Tally counts candidates collected across all sources of one run.
type Tally struct {
	target int64
	n      atomic.Int64
}

// NewTally returns a tally capped at target. A non-positive target never fills.
func NewTally(target int) *Tally {
	return &Tally{target: int64(target)}
}

// Reserve claims one slot, reporting false once the target is met.
func (t *Tally) Reserve() bool {
	if t.target <= 0 {
		t.n.Add(1)
		return true
	}
	if t.n.Add(1) > t.target {
		t.n.Add(-1)
		return false
	}
	return true
}

// Release gives back n slots claimed by candidates that will never be drained.
func (t *Tally) Release(n int) {
	if n > 0 {
		t.n.Add(int64(-n))
	}
}

func (t *Tally) Reached() bool {
	return t.target > 0 && t.n.Load() >= t.target
}

func (t *Tally) Count() int { return int(t.n.Load()) }

type SourceReport struct {
	Source      domain.Source `json:"source"`
	State       State         `json:"state"`
	PagesLoaded int           `json:"pages_loaded"`
	PagesFailed int           `json:"pages_failed"`
	Candidates  int           `json:"candidates"`
	Added       int           `json:"added"`
	Duplicates  int           `json:"duplicates"`
	Skipped     int           `json:"skipped"`
	Cancelled   bool          `json:"cancelled,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Controller drives one adapter through Init → Paging → Draining → Done,
// or to Blocked when the source puts up an access wall.
type Controller struct {
	adapter types.Adapter
	store   Appender
	pacer   *util.Pacer
	cfg     ControllerConfig
	log     *slog.Logger
	notify  Notify
	tracer  trace.Tracer

	rep SourceReport
}

func NewController(a types.Adapter, s Appender, cfg ControllerConfig, logger *slog.Logger, notify Notify, tracer trace.Tracer) *Controller {
	if cfg.PageBudget <= 0 {
		cfg.PageBudget = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = util.DefaultBackoff()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pacer == nil {
		cfg.Pacer = util.NewPacer(cfg.PolitenessDelay)
	}
	return &Controller{
		adapter: a,
		store:   s,
		pacer:   cfg.Pacer,
		cfg:     cfg,
		log:     logger.With("source", a.Source()),
		notify:  notify,
		tracer:  tracer,
		rep:     SourceReport{Source: a.Source(), State: StateInit},
	}
}

func (c *Controller) State() State { return c.rep.State }

// Run pages and drains the source. Failures are absorbed into the report.
func (c *Controller) Run(ctx context.Context, q types.Query, tally *Tally) SourceReport {
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "source.run", trace.WithAttributes(
			attribute.String("source", string(c.adapter.Source())),
		))
		defer func() {
			span.SetAttributes(
				attribute.String("state", string(c.rep.State)),
				attribute.Int("added", c.rep.Added),
			)
			span.End()
		}()
	}

	// A wall on a later page still drains what earlier pages collected.
	cands, wall := c.page(ctx, q, tally)
	c.drain(ctx, cands, tally)
	if wall != nil && c.rep.State != StateBlocked {
		c.block(wall)
	}
	return c.rep
}

func (c *Controller) transition(s State) {
	c.log.Debug("state change", "from", c.rep.State, "to", s)
	c.rep.State = s
}

func (c *Controller) block(err error) {
	c.log.Warn("access wall, stopping source", "err", err)
	c.rep.Error = err.Error()
	c.transition(StateBlocked)
}

// page collects candidates until the budget, the target or the last page.
// An access wall ends paging and is returned alongside what was collected.
func (c *Controller) page(ctx context.Context, q types.Query, tally *Tally) ([]types.CandidateRef, error) {
	c.transition(StatePaging)

	var (
		out         []types.CandidateRef
		seen        = map[string]struct{}{}
		offset      = 0
		failedInRow = 0
		pageSize    = c.adapter.PageSize()
	)

	for n := 0; n < c.cfg.PageBudget; n++ {
		if ctx.Err() != nil {
			c.rep.Cancelled = true
			return out, nil
		}
		if tally.Reached() {
			c.log.Debug("candidate target reached")
			break
		}

		var pg types.Page
		err := util.Retry(ctx, c.cfg.Retry, domain.IsTransient, func(ctx context.Context) error {
			return c.call(ctx, func(cctx context.Context) error {
				var err error
				pg, err = c.adapter.ListPage(cctx, q, offset)
				return err
			})
		})

		switch {
		case errors.Is(err, domain.ErrAccessDenied):
			c.log.Warn("access wall while paging", "offset", offset, "collected", len(out))
			return out, err
		case err != nil && ctx.Err() != nil:
			c.rep.Cancelled = true
			return out, nil
		case err != nil:
			c.rep.PagesFailed++
			failedInRow++
			c.log.Warn("page failed", "offset", offset, "err", err)
			if failedInRow >= maxFailedPagesInRow {
				c.log.Warn("giving up on source after consecutive page failures", "pages", failedInRow)
				return out, nil
			}
			offset += pageSize
			continue
		}

		failedInRow = 0
		c.rep.PagesLoaded++

		full := false
		for _, cand := range pg.Candidates {
			key := util.FirstNonEmpty(cand.Key, cand.URL)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			if !tally.Reserve() {
				full = true
				break
			}
			seen[key] = struct{}{}
			out = append(out, cand)
		}
		c.rep.Candidates = len(out)
		c.log.Info("page collected", "offset", offset, "found", len(pg.Candidates), "total", len(out), "has_more", pg.HasMore)

		if full || !pg.HasMore {
			break
		}
		offset += pageSize
	}
	return out, nil
}

func (c *Controller) drain(ctx context.Context, cands []types.CandidateRef, tally *Tally) {
	c.transition(StateDraining)

	for i, cand := range cands {
		if ctx.Err() != nil {
			c.rep.Cancelled = true
			c.log.Info("run cancelled while draining", "remaining", len(cands)-i)
			return
		}

		var raw types.RawRecord
		err := util.Retry(ctx, c.cfg.Retry, domain.IsTransient, func(ctx context.Context) error {
			return c.call(ctx, func(cctx context.Context) error {
				var err error
				raw, err = c.adapter.FetchDetail(cctx, cand)
				return err
			})
		})
		if errors.Is(err, domain.ErrAccessDenied) {
			tally.Release(len(cands) - i - 1)
			c.block(err)
			return
		}
		if err != nil {
			c.rep.Skipped++
			c.log.Warn("detail failed, skipping", "url", cand.URL, "err", err)
			continue
		}

		job := Normalize(raw, c.adapter.Source())
		if !job.HasApplyLink() {
			c.rep.Skipped++
			c.log.Warn("detail has no apply link, skipping", "url", cand.URL)
			continue
		}

		res, err := c.store.TryAppend(ctx, job)
		if err != nil {
			c.rep.Skipped++
			c.log.Warn("append failed", "url", job.ApplyLink, "err", err)
			continue
		}
		switch res {
		case store.Added:
			c.rep.Added++
			c.log.Info("job added", "url", job.ApplyLink, "title", job.JobTitle)
			if c.notify != nil {
				c.notify("job_added", job)
			}
		case store.Duplicate:
			c.rep.Duplicates++
			c.log.Debug("job already stored", "url", job.ApplyLink)
		}
	}

	c.transition(StateDone)
}

// call waits for the source's politeness slot, then runs fn under the
// per-call timeout.
func (c *Controller) call(ctx context.Context, fn func(context.Context) error) error {
	if err := c.pacer.Wait(ctx); err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	return fn(cctx)
}
