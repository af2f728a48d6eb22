package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", DefaultLevel},
		{"loud", DefaultLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, Config{Level: "info", Format: FormatJSON})

	logger.Debug().Msg("hidden")
	poolLogger := ComponentLogger(logger, "pool")
	poolLogger.Info().Int("workers", 4).Msg("started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "started", entry["message"])
	assert.Equal(t, "pool", entry["component"])
	assert.InDelta(t, 4, entry["workers"], 0)
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, Config{Level: "info", Format: FormatConsole})
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotEqual(t, byte('{'), buf.Bytes()[0])
}

func TestNewLoggerWithPath(t *testing.T) {
	t.Run("stderr", func(t *testing.T) {
		var stderr bytes.Buffer
		result := newLoggerWithPath(Config{Format: FormatJSON, Output: OutputStderr}, &stderr)
		assert.False(t, result.UsingFile)
		assert.False(t, result.FallbackUsed)
		result.Logger.Info().Msg("to stderr")
		assert.Contains(t, stderr.String(), "to stderr")
		assert.NoError(t, result.Close())
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "corpusfork.log")
		var stderr bytes.Buffer
		result := newLoggerWithPath(Config{Format: FormatJSON, Output: OutputFile, File: path}, &stderr)
		require.True(t, result.UsingFile)
		assert.Equal(t, path, result.FilePath)

		result.Logger.Info().Msg("to file")
		require.NoError(t, result.Close())
		require.NoError(t, result.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
		assert.Empty(t, stderr.String())
	})

	t.Run("fallback", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "not-a-dir")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

		var stderr bytes.Buffer
		result := newLoggerWithPath(Config{Format: FormatJSON, Output: OutputFile, File: filepath.Join(blocker, "x.log")}, &stderr)
		assert.False(t, result.UsingFile)
		assert.True(t, result.FallbackUsed)
		assert.NotEmpty(t, result.FallbackReason)

		result.Logger.Warn().Msg("fell back")
		assert.Contains(t, stderr.String(), "fell back")
	})
}

func TestTraceID(t *testing.T) {
	id := NewTraceID()
	_, err := ulid.ParseStrict(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, NewTraceID())

	ctx := context.Background()
	assert.Empty(t, TraceIDFromContext(ctx))
	assert.NotEmpty(t, GetOrGenerateTraceID(ctx))

	ctx = ContextWithTraceID(ctx, id)
	assert.Equal(t, id, TraceIDFromContext(ctx))
	assert.Equal(t, id, GetOrGenerateTraceID(ctx))
}

func TestTracingHook(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, Config{Format: FormatJSON})
	ctx := ContextWithTraceID(logger.WithContext(context.Background()), "01TRACE")

	FromContext(ctx).Info().Ctx(ctx).Msg("traced")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "01TRACE", entry[TraceIDField])
}

func TestPrintMessages(t *testing.T) {
	var buf bytes.Buffer
	PrintLogPathMessage(&buf, "/tmp/x.log")
	PrintFallbackWarning(&buf, "permission denied")
	assert.Contains(t, buf.String(), "Logging to /tmp/x.log")
	assert.Contains(t, buf.String(), "permission denied")
}
