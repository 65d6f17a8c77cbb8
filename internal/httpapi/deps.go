package httpapi

import (
	"context"
	"log/slog"

	"jobfinder-engine/internal/config"
	"jobfinder-engine/internal/domain"
	"jobfinder-engine/internal/events"
	"jobfinder-engine/internal/poll"
	"jobfinder-engine/internal/rank"
	"jobfinder-engine/internal/scrape"
	"jobfinder-engine/internal/store"
)

type Runner interface {
	Run(ctx context.Context, q config.Query) (scrape.RunResult, error)
	Status() poll.Status
	Cancel() bool
}

type Searcher interface {
	Search(ctx context.Context, criteria domain.SearchCriteria) rank.SearchResult
}

type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
}

type Deps struct {
	Runner   Runner
	Searcher Searcher
	Corpus   rank.CorpusLoader
	Runs     RunLister // nil when the run ledger is disabled
	Hub      *events.Hub
	Logger   *slog.Logger

	// Config is the running configuration. ConfigPath is where PUT /config
	// persists edits; empty disables it.
	Config     func() config.Config
	ConfigPath string

	SetSecret func(account, value string) error

	// ServiceName enables otelgin spans when non-empty.
	ServiceName string
}
