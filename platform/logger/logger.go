// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RunIDKey is the context key for the active monitor run ID
	RunIDKey contextKey = "run_id"
	// TriggerKey is the context key for what triggered the current work
	TriggerKey contextKey = "trigger"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports run_id and trigger from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if runID, ok := ctx.Value(RunIDKey).(string); ok && runID != "" {
		newLogger = newLogger.WithRunID(runID)
	}

	if trigger, ok := ctx.Value(TriggerKey).(string); ok && trigger != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("trigger", trigger)),
		}
	}

	return newLogger
}

// WithRunID returns a logger with the monitor run ID attached
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("run_id", runID)),
	}
}

// RunEvent logs a lifecycle event of a monitor run
func (l *Logger) RunEvent(event, runID string, opportunities, notifications int) {
	l.Info("run_event",
		slog.String("event", event),
		slog.String("run_id", runID),
		slog.Int("opportunities", opportunities),
		slog.Int("notifications", notifications),
	)
}

// DispatchEvent logs the outcome of one notification dispatch
func (l *Logger) DispatchEvent(orderNo, organization, notificationType string, success bool, reason string) {
	if success {
		l.Info("dispatch_event",
			slog.String("order_no", orderNo),
			slog.String("organization", organization),
			slog.String("type", notificationType),
			slog.Bool("success", success),
		)
	} else {
		l.Warn("dispatch_event",
			slog.String("order_no", orderNo),
			slog.String("organization", organization),
			slog.String("type", notificationType),
			slog.Bool("success", success),
			slog.String("reason", reason),
		)
	}
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// CollaboratorError logs failures of an external collaborator call
func (l *Logger) CollaboratorError(collaborator, operation string, err error) {
	l.Warn("collaborator_error",
		slog.String("collaborator", collaborator),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
