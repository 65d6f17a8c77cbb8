// Package logger builds the process-wide slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

type Config struct {
	Level     string // debug, info, warn, error
	Format    string // text (colored console) or json
	Output    string // stdout, stderr, or a file path
	AddSource bool
	NoColor   bool

	writer io.Writer
}

// New returns a logger and a close func for its output. The close func is
// never nil.
func New(cfg Config) (*slog.Logger, func() error, error) {
	closeFn := func() error { return nil }

	w := cfg.writer
	if w == nil {
		switch cfg.Output {
		case "stdout", "":
			w = os.Stdout
		case "stderr":
			w = os.Stderr
		default:
			if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
				return nil, closeFn, fmt.Errorf("log dir: %w", err)
			}
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, closeFn, fmt.Errorf("open log file: %w", err)
			}
			w = f
			closeFn = f.Close
			cfg.NoColor = true
		}
	}

	level := ParseLevel(cfg.Level)

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource})
	default:
		h = tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  cfg.AddSource,
			TimeFormat: time.TimeOnly,
			NoColor:    cfg.NoColor,
		})
	}
	return slog.New(h), closeFn, nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
