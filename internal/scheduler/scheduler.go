// Package scheduler runs a task on a fixed interval until its context ends.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

type Task func(ctx context.Context) error

// Every runs task immediately and then on every tick. Ticks that arrive
// while a previous run is still going are skipped.
func Every(ctx context.Context, interval time.Duration, name string, logger *slog.Logger, task Task) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("task", name)

	run := func() {
		start := time.Now()
		if err := task(ctx); err != nil {
			log.Error("scheduled task failed", "err", err, "took", time.Since(start))
			return
		}
		log.Debug("scheduled task done", "took", time.Since(start))
	}

	run()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return
		case <-t.C:
			run()
		}
	}
}
