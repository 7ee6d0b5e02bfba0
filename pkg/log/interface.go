// Package log provides the structured logging interface used across
// ensemblecv.
//
// The Logger interface is slog-compatible (Debug/Info/Warn/Error with
// key-value fields, With for contextual loggers, Enabled for level checks).
// The default backend is zerolog; tests use TestLogger, which captures JSON
// lines in memory.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("GridSearch").With(
//	    log.ModelNameKey, "bagging",
//	    log.RunIDKey, runID,
//	)
//	logger.Info("search finished",
//	    log.TrialsKey, 16,
//	    log.ScoreKey, 0.962,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key-value pairs. Error treats an error value
// specially: its message and, when available, the cockroachdb stack detail
// are attached to the record.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every subsequent record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted. Callers
	// use it to skip building expensive debug fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

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

// LoggerProvider creates loggers and controls their level.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
