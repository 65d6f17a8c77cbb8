package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"jobfinder-engine/internal/app"
	"jobfinder-engine/internal/config"
	"jobfinder-engine/internal/httpapi"
	"jobfinder-engine/internal/logger"
	"jobfinder-engine/internal/scheduler"
	"jobfinder-engine/internal/secrets"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "engine:", err)
		os.Exit(1)
	}
}

func run() error {
	defaultPath := os.Getenv("JOBFINDER_CONFIG")
	if defaultPath == "" {
		defaultPath = "config/config.yml"
	}
	cfgPath := flag.String("config", defaultPath, "path to the YAML config file")
	flag.Parse()

	created, err := config.EnsureFile(*cfgPath)
	if err != nil {
		return fmt.Errorf("config bootstrap: %w", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("config load (%s): %w", *cfgPath, err)
	}
	cfg, v := config.NormalizeAndValidate(cfg)
	if !v.OK() {
		return v
	}

	log, closeLog, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(log)

	if created {
		log.Info("wrote default config", "path", *cfgPath)
	}
	for _, w := range v.Warnings {
		log.Warn("config warning", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Schedule.Enabled && len(cfg.Schedule.Queries) > 0 {
		go scheduler.Every(ctx, cfg.Schedule.Interval, "scheduled-scrape", log, func(ctx context.Context) error {
			return a.Runner.RunQueries(ctx, cfg.Schedule.Queries)
		})
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	deps := httpapi.Deps{
		Runner:      a.Runner,
		Searcher:    a.Searcher,
		Corpus:      a.Corpus,
		Hub:         a.Hub,
		Logger:      log,
		Config:      func() config.Config { return cfg },
		ConfigPath:  *cfgPath,
		SetSecret:   secrets.Set,
		ServiceName: cfg.App.Name,
	}
	if a.Runs != nil {
		deps.Runs = a.Runs
	}
	router := httpapi.NewRouter(deps)
	if token := os.Getenv("JOBFINDER_SHUTDOWN_TOKEN"); token != "" {
		router.POST("/shutdown", shutdownHandler(token, stop))
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("engine listening", "addr", "http://"+cfg.Addr(), "corpus", cfg.Storage.CorpusPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("shutting down")
	a.Runner.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	log.Info("shutdown complete")
	return nil
}
