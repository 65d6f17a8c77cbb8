package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		check func(t *testing.T, log *slog.Logger, out *bytes.Buffer)
	}{
		{
			name: "json honours level",
			cfg:  Config{Level: "warn", Format: "json"},
			check: func(t *testing.T, log *slog.Logger, out *bytes.Buffer) {
				log.Info("dropped")
				log.Warn("page failed", "source", "indeed", "offset", 10)

				lines := strings.Split(strings.TrimSpace(out.String()), "\n")
				require.Len(t, lines, 1)

				var entry map[string]any
				require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
				assert.Equal(t, "WARN", entry["level"])
				assert.Equal(t, "page failed", entry["msg"])
				assert.Equal(t, "indeed", entry["source"])
				assert.Equal(t, float64(10), entry["offset"])
			},
		},
		{
			name: "json with source",
			cfg:  Config{Level: "info", Format: "json", AddSource: true},
			check: func(t *testing.T, log *slog.Logger, out *bytes.Buffer) {
				log.Info("hello")
				var entry map[string]any
				require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
				assert.Contains(t, entry, "source")
			},
		},
		{
			name: "text uses tint",
			cfg:  Config{Level: "debug", Format: "text", NoColor: true},
			check: func(t *testing.T, log *slog.Logger, out *bytes.Buffer) {
				log.Debug("state change", "to", "draining")
				s := out.String()
				assert.Contains(t, s, "DBG")
				assert.Contains(t, s, "state change")
				assert.Contains(t, s, "to=draining")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			cfg := tt.cfg
			cfg.writer = out

			log, closeFn, err := New(cfg)
			require.NoError(t, err)
			defer closeFn()
			tt.check(t, log, out)
		})
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "engine.log")
	log, closeFn, err := New(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("written to file")
	require.NoError(t, closeFn())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "written to file")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}
