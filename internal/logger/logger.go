package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

var log *slog.Logger

// Init sets up the global logger.
// env: "development" gives debug-level text output, anything else info-level JSON.
func Init(env string) {
	log = New(env, os.Stdout)
	slog.SetDefault(log)
}

// New builds a logger for env writing to w.
func New(env string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	}

	if env == "development" {
		opts.Level = slog.LevelDebug
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// GetLogger returns the global logger, initialising a development one if Init was never called (tests).
func GetLogger() *slog.Logger {
	if log == nil {
		Init("development")
	}
	return log
}

// ============================================
// Package-level shortcuts
// ============================================

func Debug(msg string, args ...any) {
	GetLogger().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	GetLogger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	GetLogger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	GetLogger().Error(msg, args...)
}

// Fatal logs at error level and exits with status 1.
func Fatal(msg string, args ...any) {
	GetLogger().Error(msg, args...)
	os.Exit(1)
}

// ============================================
// Loggers with fields
// ============================================

// With returns a child logger.
// Example: logger.With("chat_id", id).Info("message persisted")
func With(args ...any) *slog.Logger {
	return GetLogger().With(args...)
}

// WithError is With("error", err.Error()). err must not be nil.
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}

// ============================================
// Specialised loggers
// ============================================

// DBLog logs a store call: errors at error level, the rest at debug.
func DBLog(operation, query string, duration time.Duration, rows int64, err error) {
	fields := []any{
		"operation", operation,
		"query", query,
		"rows", rows,
		"duration_ms", duration.Milliseconds(),
	}

	if err != nil {
		fields = append(fields, "error", err.Error())
		GetLogger().Error("database operation failed", fields...)
	} else {
		GetLogger().Debug("database operation", fields...)
	}
}

// RealtimeLog logs a fan-out lifecycle event of a websocket session.
func RealtimeLog(event, userID, sessionID string, err error) {
	fields := []any{
		"event", event,
		"user_id", userID,
		"session_id", sessionID,
	}

	if err != nil {
		fields = append(fields, "error", err.Error())
		GetLogger().Warn("realtime session event failed", fields...)
	} else {
		GetLogger().Debug("realtime session event", fields...)
	}
}
