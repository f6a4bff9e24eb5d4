// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// EnvLevel overrides the configured log level.
const EnvLevel = "OPSDESK_LOG_LEVEL"

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

// Setup installs a text logger writing to w at level and returns it.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// Logger returns the process logger.
func Logger() *slog.Logger {
	return logger
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Log writes a single message at level on the process logger.
func Log(content string, level slog.Level, args ...any) {
	logger.Log(context.Background(), level, content, args...)
}
