// Package log provides the structured logging interface used across simplify.
//
// The interface is slog-compatible; the process-wide implementation is backed
// by zerolog (see logger.go). Steps, techniques and the cookbook log through
// this interface with the attribute keys defined in attributes.go, so every
// record of a run can be filtered by step, technique and test tube.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("cookbook").With(
//	    log.TubeKey, "tube_3",
//	    log.StepKey, "model",
//	)
//	logger.Info("technique published",
//	    log.TechniqueKey, "random_forest",
//	    log.DurationMsKey, 812,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs a debug-level message with optional key-value fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key-value fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key-value fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error,
	// it is attached together with its stack trace.
	//
	//   logger.Error("technique failed", err, log.TechniqueKey, "shap")
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers. The cookbook accepts a
// provider so tests can capture the records of a whole run.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
