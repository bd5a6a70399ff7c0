// Package logx builds the slog loggers used across shade.
package logx

import (
	"io"
	"log/slog"
	"strings"
)

// Silent is above every standard level.
const Silent = slog.Level(100)

// NewLogger returns a text logger writing to w at level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewDiscardLogger returns a logger that drops everything. Library code
// defaults to it when no logger is configured.
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: Silent}))
}

// LevelFromString converts debug, info, warn or error (any case) to a
// level. Anything else is info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "off", "silent":
		return Silent
	}
	return slog.LevelInfo
}

// LevelFromVerbosity maps the CLI -v count and -q flag to a level:
// quiet silences everything, 0 is warn, 1 is info, 2 or more is debug.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	if quiet {
		return Silent
	}
	switch verbosity {
	case 0:
		return slog.LevelWarn
	case 1:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}
