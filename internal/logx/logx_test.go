package logx

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"off":     Silent,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, LevelFromString(in), in)
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	t.Parallel()
	assert.Equal(t, slog.LevelWarn, LevelFromVerbosity(0, false))
	assert.Equal(t, slog.LevelInfo, LevelFromVerbosity(1, false))
	assert.Equal(t, slog.LevelDebug, LevelFromVerbosity(3, false))
	assert.Equal(t, Silent, LevelFromVerbosity(2, true))
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewLogger(&buf, slog.LevelWarn)
	log.Info("hidden")
	log.Warn("shown", "buffer", 3)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "buffer=3")

	NewDiscardLogger().Error("dropped")
}
