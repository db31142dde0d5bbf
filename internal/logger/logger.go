package logger

import (
	"io"
	"log/slog"
	"os"

	"rag-docqa-platform/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured logging based on configuration
func InitLogger(cfg *config.Config) {
	InitWithWriter(cfg, os.Stdout)
}

// InitWithWriter is InitLogger writing to w.
func InitWithWriter(cfg *config.Config, w io.Writer) {
	level := slog.LevelInfo
	if cfg.GinMode == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.GinMode == "debug",
	}

	Logger = slog.New(slog.NewJSONHandler(w, opts)).With("service", "rag-docqa")
	Logger.Debug("Structured logging initialized", "level", level.String())
}

// With returns a child logger carrying args, or a discard logger before init.
func With(args ...any) *slog.Logger {
	if Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return Logger.With(args...)
}

// Helper functions for common log operations
func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}
