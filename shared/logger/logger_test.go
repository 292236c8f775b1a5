package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		config    *Config
		checkFunc func(t *testing.T, logger *Logger, output *bytes.Buffer)
	}{
		{
			name:   "json format with debug level",
			config: &Config{Level: "debug", Format: "json", TimeFormat: time.RFC3339},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Debug("dispatch planned", slog.String("job_id", "j-1"))

				var entry map[string]any
				require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
				assert.Equal(t, "DEBUG", entry["level"])
				assert.Equal(t, "dispatch planned", entry["msg"])
				assert.Equal(t, "j-1", entry["job_id"])
				assert.Contains(t, entry, "time")
			},
		},
		{
			name:   "info level drops debug records",
			config: &Config{Level: "info", Format: "json"},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Debug("hidden")
				logger.Info("job status transition", slog.String("new_status", "assigned"))

				lines := strings.Split(strings.TrimSpace(output.String()), "\n")
				require.Len(t, lines, 1)

				var entry map[string]any
				require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
				assert.Equal(t, "INFO", entry["level"])
				assert.Equal(t, "assigned", entry["new_status"])
			},
		},
		{
			name:   "error level drops warnings",
			config: &Config{Level: "error", Format: "json"},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Warn("sms gateway slow")
				logger.Error("push delivery failed", slog.String("channel", "push"))

				lines := strings.Split(strings.TrimSpace(output.String()), "\n")
				require.Len(t, lines, 1)
				assert.Contains(t, lines[0], "push delivery failed")
			},
		},
		{
			name:   "console format",
			config: &Config{Level: "info", Format: "console", TimeFormat: time.RFC3339},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("console test")

				// tint prints "INF" rather than "INFO"
				assert.Contains(t, output.String(), "INF")
				assert.Contains(t, output.String(), "console test")
			},
		},
		{
			name:   "with source location enabled",
			config: &Config{Level: "info", Format: "json", EnableSource: true},
			checkFunc: func(t *testing.T, logger *Logger, output *bytes.Buffer) {
				logger.Info("message with source")

				var entry map[string]any
				require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
				source, ok := entry["source"].(map[string]any)
				require.True(t, ok)
				assert.Contains(t, source, "file")
				assert.Contains(t, source, "line")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &bytes.Buffer{}
			cfg := *tt.config
			cfg.writer = output

			logger, err := New(&cfg)
			require.NoError(t, err)
			require.NotNil(t, logger)

			tt.checkFunc(t, logger, output)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "booking.log")

	logger, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("written to file", slog.String("job_id", "j-9"))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"job_id":"j-9"`)
}

func TestNew_FileOutputUnwritable(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
	assert.NoError(t, logger.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelInfo}, // case-sensitive
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestLogger_WithGroup(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "json", writer: output})
	require.NoError(t, err)

	logger.WithGroup("job").Info("test message", slog.String("status", "pending"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
	group, ok := entry["job"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pending", group["status"])
}

func TestLogger_With(t *testing.T) {
	output := &bytes.Buffer{}
	logger, err := New(&Config{Level: "info", Format: "json", writer: output})
	require.NoError(t, err)

	logger.With(slog.String("component", "dispatcher"), slog.Int("recipients", 3)).Info("push dispatched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
	assert.Equal(t, "dispatcher", entry["component"])
	assert.Equal(t, float64(3), entry["recipients"])
}

func TestContext(t *testing.T) {
	output := &bytes.Buffer{}
	base, err := New(&Config{Level: "info", Format: "json", writer: output})
	require.NoError(t, err)

	fallback := Discard()

	t.Run("returns fallback when absent", func(t *testing.T) {
		assert.Same(t, fallback, FromContext(context.Background(), fallback))
	})

	t.Run("returns stored logger", func(t *testing.T) {
		scoped := base.Logger.With(slog.String("request_id", "r-1"))
		ctx := IntoContext(context.Background(), scoped)

		FromContext(ctx, fallback).Info("scoped")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(output.Bytes(), &entry))
		assert.Equal(t, "r-1", entry["request_id"])
	})
}
