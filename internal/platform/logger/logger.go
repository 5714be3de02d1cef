// Package logger provides structured logging functionality for the application.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cfab/hwagent/internal/config"
	"github.com/cfab/hwagent/internal/logqueue"
)

// Setup initializes the application's logging based on the provided
// configuration. It creates a JSON slog handler at the configured level,
// routes it through a log delivery queue when one is configured, and sets
// the result as the default logger.
//
// The returned Queue is nil when logging.queue_size is zero; otherwise the
// caller owns it and must Stop it on shutdown.
func Setup(cfg config.LoggingConfig) (*slog.Logger, *logqueue.Queue) {
	return setup(cfg, os.Stdout)
}

func setup(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, *logqueue.Queue) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)

	var queue *logqueue.Queue
	if cfg.QueueSize > 0 {
		queue = logqueue.New(cfg.QueueSize, cfg.BlockedAfter)
		handler = queue.Handler(handler)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, queue
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmp.Warn("invalid log level configured, using default level",
			"configured_level", level,
			"default_level", "info")
		return slog.LevelInfo
	}
}
