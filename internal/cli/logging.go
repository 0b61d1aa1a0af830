package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/imkarma/taskledger/internal/config"
)

// newLogger builds the stderr logger. stdout stays free for command output
// and adapter responses.
func newLogger(w io.Writer, lc config.LogConfig, verbose bool) *slog.Logger {
	level := parseLevel(lc.Level)
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// parseLevel defaults to info for unknown names.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
