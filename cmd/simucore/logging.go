package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/c360/simucore/config"
)

// setupLogger builds the process logger from cfg. With log_enabled false
// every record is discarded.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if !cfg.LogEnabled {
		return slog.New(slog.DiscardHandler)
	}

	var logLevel slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}
