// Package app assembles the engine's components from a validated config.
// Both binaries build through it so they see the same pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jobfinder-engine/internal/browser"
	"jobfinder-engine/internal/config"
	"jobfinder-engine/internal/events"
	"jobfinder-engine/internal/poll"
	"jobfinder-engine/internal/rank"
	"jobfinder-engine/internal/scrape"
	"jobfinder-engine/internal/scrape/indeed"
	"jobfinder-engine/internal/scrape/linkedin"
	"jobfinder-engine/internal/scrape/listingapi"
	"jobfinder-engine/internal/scrape/types"
	"jobfinder-engine/internal/scrape/util"
	"jobfinder-engine/internal/secrets"
	"jobfinder-engine/internal/store"
)

type App struct {
	Config   config.Config
	Log      *slog.Logger
	Corpus   *store.Corpus
	Runs     *store.DB // nil when storage.runs_db_path is empty
	Hub      *events.Hub
	Pipeline *scrape.Pipeline
	Searcher *rank.Searcher
	Runner   *poll.Runner

	closers []func() error
}

// Build constructs every component. Optional parts that fail to come up
// (postgres mirror, API keys) are logged and left out.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Config: cfg, Log: log, Hub: events.NewHub()}

	corpusOpts := []store.CorpusOption{store.WithLockTimeout(cfg.Storage.LockTimeout)}
	if cfg.Storage.PostgresDSN != "" {
		pg, err := store.NewPGMirror(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			log.Warn("postgres mirror disabled", "err", err)
		} else {
			corpusOpts = append(corpusOpts, store.WithMirror(pg))
			a.closers = append(a.closers, func() error { pg.Close(); return nil })
		}
	}
	a.Corpus = store.NewCorpus(cfg.Storage.CorpusPath, log, corpusOpts...)

	if cfg.Storage.RunsDBPath != "" {
		db, err := store.Open(cfg.Storage.RunsDBPath)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("open run ledger: %w", err)
		}
		a.Runs = db
		a.closers = append(a.closers, db.Close)
	}

	adapters, err := a.adapters(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	opts := []scrape.PipelineOption{
		scrape.WithLogger(log),
		scrape.WithNotify(events.Notifier(a.Hub, "")),
	}
	if a.Runs != nil {
		opts = append(opts, scrape.WithRecorder(a.Runs))
	}
	a.Pipeline = scrape.NewPipeline(adapters, a.Corpus, scrape.PipelineConfig{
		TargetCandidates:  cfg.Pipeline.TargetCandidates,
		DefaultPageBudget: cfg.Pipeline.DefaultPageBudget,
		Concurrency:       cfg.Pipeline.Concurrency,
		PolitenessDelay:   cfg.Pipeline.PolitenessDelay,
		CallTimeout:       cfg.Pipeline.CallTimeout,
		Retry: util.Backoff{
			Attempts:   cfg.Pipeline.Retry.Attempts,
			Interval:   cfg.Pipeline.Retry.Interval,
			Multiplier: cfg.Pipeline.Retry.BackoffMultiplier,
			Max:        cfg.Pipeline.Retry.MaxInterval,
		},
	}, opts...)
	a.Runner = poll.NewRunner(a.Pipeline, log)

	filter := rank.NewFilter(scorer(cfg, log),
		rank.WithUnfilteredLimit(cfg.Scoring.UnfilteredLimit),
		rank.WithTimeout(cfg.Scoring.Timeout),
		rank.WithFilterLogger(log),
	)
	a.Searcher = rank.NewSearcher(a.Corpus, filter, log)

	log.Info("engine assembled",
		"sources", a.Pipeline.Sources(),
		"scoring", cfg.Scoring.Provider,
		"corpus", cfg.Storage.CorpusPath,
	)
	return a, nil
}

func (a *App) adapters(cfg config.Config) ([]types.Adapter, error) {
	var out []types.Adapter

	if cfg.Sources.ListingAPI.Enabled {
		key, err := secrets.Lookup(secrets.ListingAPIEnv, cfg.Sources.ListingAPI.KeyringAccount)
		if err != nil {
			a.Log.Warn("listing api source disabled", "source", "listing_api", "err", err)
		} else {
			out = append(out, listingapi.New(listingapi.Config{
				BaseURL: cfg.Sources.ListingAPI.BaseURL,
				APIKey:  key,
				Domain:  cfg.Sources.ListingAPI.Domain,
				Timeout: cfg.Pipeline.CallTimeout,
			}))
		}
	}

	if !cfg.Sources.Indeed.Enabled && !cfg.Sources.LinkedIn.Enabled {
		return out, nil
	}
	f, err := a.fetcher(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Sources.Indeed.Enabled {
		out = append(out, indeed.New(indeed.Config{BaseURL: cfg.Sources.Indeed.BaseURL}, f))
	}
	if cfg.Sources.LinkedIn.Enabled {
		out = append(out, linkedin.New(linkedin.Config{BaseURL: cfg.Sources.LinkedIn.BaseURL}, f))
	}
	return out, nil
}

func (a *App) fetcher(cfg config.Config) (browser.Fetcher, error) {
	if cfg.Browser.Engine != "playwright" {
		return browser.NewHTTPFetcher(cfg.Browser.NavigationTimeout, cfg.Browser.UserAgent), nil
	}
	pf, err := browser.NewPlaywrightFetcher(browser.PlaywrightOptions{
		Headless:          cfg.Browser.Headless,
		UserAgent:         cfg.Browser.UserAgent,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	a.closers = append(a.closers, pf.Close)
	return pf, nil
}

// scorer returns nil for provider "none"; searches with criteria then
// report the capability as unavailable.
func scorer(cfg config.Config, log *slog.Logger) rank.Capability {
	switch cfg.Scoring.Provider {
	case "keyword":
		return rank.NewKeywordScorer(cfg)
	case "llm":
		key, err := secrets.Lookup(secrets.ScoringEnv, cfg.Scoring.KeyringAccount)
		if err != nil {
			log.Warn("scoring api key missing, filtered searches will be unavailable", "err", err)
		}
		return rank.NewLLMScorer(rank.LLMConfig{
			APIKey:      key,
			BaseURL:     cfg.Scoring.BaseURL,
			Model:       cfg.Scoring.Model,
			Temperature: cfg.Scoring.Temperature,
			MaxRetries:  2,
		})
	default:
		return nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
