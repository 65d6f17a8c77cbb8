package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"jobfinder-engine/internal/domain"
	"jobfinder-engine/internal/scrape/types"
	"jobfinder-engine/internal/scrape/util"
	"jobfinder-engine/internal/store"
)

type RunStatus string

const (
	StatusSuccess   RunStatus = "success"
	StatusNoNewJobs RunStatus = "no_new_jobs"
	StatusError     RunStatus = "error"
)

type RunResult struct {
	RunID        string         `json:"run_id"`
	Status       RunStatus      `json:"status"`
	Message      string         `json:"message"`
	NewJobsFound int            `json:"new_jobs_found"`
	Cancelled    bool           `json:"cancelled,omitempty"`
	Sources      []SourceReport `json:"sources"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
}

// RunRecorder keeps a history of runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, r store.RunRecord) error
}

type PipelineConfig struct {
	TargetCandidates  int
	DefaultPageBudget int
	Concurrency       int
	PolitenessDelay   time.Duration
	CallTimeout       time.Duration
	Retry             util.Backoff
}

type Pipeline struct {
	adapters []types.Adapter
	store    Appender
	cfg      PipelineConfig
	log      *slog.Logger
	notify   Notify
	recorder RunRecorder
	tracer   trace.Tracer

	// one pacer per source, kept across runs
	pacers map[domain.Source]*util.Pacer
}

type PipelineOption func(*Pipeline)

func WithNotify(n Notify) PipelineOption {
	return func(p *Pipeline) { p.notify = n }
}

func WithRecorder(r RunRecorder) PipelineOption {
	return func(p *Pipeline) { p.recorder = r }
}

func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func NewPipeline(adapters []types.Adapter, s Appender, cfg PipelineConfig, opts ...PipelineOption) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = len(adapters)
	}
	if cfg.DefaultPageBudget <= 0 {
		cfg.DefaultPageBudget = 1
	}
	p := &Pipeline{
		adapters: adapters,
		store:    s,
		cfg:      cfg,
		log:      slog.Default(),
		tracer:   otel.Tracer("jobfinder-engine/scrape"),
		pacers:   make(map[domain.Source]*util.Pacer, len(adapters)),
	}
	for _, a := range adapters {
		if _, ok := p.pacers[a.Source()]; !ok {
			p.pacers[a.Source()] = util.NewPacer(cfg.PolitenessDelay)
		}
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Sources lists the enabled source tags in run order.
func (p *Pipeline) Sources() []domain.Source {
	out := make([]domain.Source, 0, len(p.adapters))
	for _, a := range p.adapters {
		out = append(out, a.Source())
	}
	return out
}

// Run executes one multi-source pass. Sources run in parallel and
// independently: a blocked or failing source never stops the others. Only
// missing parameters are returned as an error; everything else is reported
// through the result status.
func (p *Pipeline) Run(ctx context.Context, position, location string, pageBudget int) (RunResult, error) {
	position, location = strings.TrimSpace(position), strings.TrimSpace(location)
	if position == "" || location == "" {
		return RunResult{Status: StatusError, Message: "Position and location are required."},
			fmt.Errorf("%w: position and location are required", domain.ErrInvalidRequest)
	}
	if pageBudget <= 0 {
		pageBudget = p.cfg.DefaultPageBudget
	}

	res := RunResult{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := p.log.With("run_id", res.RunID)

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run_id", res.RunID),
		attribute.String("position", position),
		attribute.String("location", location),
		attribute.Int("page_budget", pageBudget),
	))
	defer span.End()

	if len(p.adapters) == 0 {
		res.Status = StatusError
		res.Message = "No sources are enabled."
		res.FinishedAt = time.Now().UTC()
		p.record(ctx, res, position, location, pageBudget)
		return res, nil
	}

	log.Info("run started", "position", position, "location", location, "pages", pageBudget, "sources", p.Sources())
	if p.notify != nil {
		p.notify("run_started", map[string]any{
			"run_id":   res.RunID,
			"position": position,
			"location": location,
			"sources":  p.Sources(),
		})
	}

	q := types.Query{Position: position, Location: location}
	tally := NewTally(p.cfg.TargetCandidates)
	reports := make([]SourceReport, len(p.adapters))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	for i, a := range p.adapters {
		g.Go(func() error {
			c := NewController(a, p.store, ControllerConfig{
				PageBudget:      pageBudget,
				PolitenessDelay: p.cfg.PolitenessDelay,
				CallTimeout:     p.cfg.CallTimeout,
				Retry:           p.cfg.Retry,
				Pacer:           p.pacers[a.Source()],
			}, log, p.notify, p.tracer)

			rep := c.Run(ctx, q, tally)
			reports[i] = rep
			log.Info("source finished", "source", rep.Source, "state", rep.State,
				"candidates", rep.Candidates, "added", rep.Added, "duplicates", rep.Duplicates)
			if p.notify != nil {
				p.notify("source_done", rep)
			}
			return nil // best-effort: don't cancel siblings
		})
	}
	_ = g.Wait()

	res.Sources = reports
	res.FinishedAt = time.Now().UTC()
	res.Cancelled = ctx.Err() != nil
	summarize(&res)

	span.SetAttributes(attribute.String("status", string(res.Status)), attribute.Int("new_jobs", res.NewJobsFound))
	log.Info("run finished", "status", res.Status, "new_jobs", res.NewJobsFound, "cancelled", res.Cancelled)

	p.record(ctx, res, position, location, pageBudget)
	if p.notify != nil {
		p.notify("run_done", res)
	}
	return res, nil
}

func summarize(res *RunResult) {
	reachable := false
	for _, r := range res.Sources {
		res.NewJobsFound += r.Added
		if r.PagesLoaded > 0 {
			reachable = true
		}
	}

	switch {
	case res.NewJobsFound > 0:
		res.Status = StatusSuccess
		res.Message = fmt.Sprintf("Scraping complete. %d new jobs added.", res.NewJobsFound)
	case !reachable && !res.Cancelled:
		res.Status = StatusError
		res.Message = "No source could be reached; nothing was scraped."
	default:
		res.Status = StatusNoNewJobs
		res.Message = "Scraping completed, but no new jobs were added (possibly all duplicates)."
	}
}

func (p *Pipeline) record(ctx context.Context, res RunResult, position, location string, pageBudget int) {
	if p.recorder == nil {
		return
	}
	sources := []byte("[]")
	if len(res.Sources) > 0 {
		sources, _ = json.Marshal(res.Sources)
	}

	// record even when the run itself was cancelled
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := p.recorder.RecordRun(rctx, store.RunRecord{
		ID:         res.RunID,
		Position:   position,
		Location:   location,
		PageBudget: pageBudget,
		Status:     string(res.Status),
		NewJobs:    res.NewJobsFound,
		Cancelled:  res.Cancelled,
		Sources:    sources,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	})
	if err != nil {
		p.log.Warn("could not record run", "run_id", res.RunID, "err", err)
	}
}
