// Package diagnostics provides the structured event log used by the query pipeline.
package diagnostics

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Event names emitted by the pipeline. They are stable and safe to match on.
const (
	EventQueryCompiled      = "query.compiled"
	EventTranslationFailed  = "query.translation_failed"
	EventCommandExecuting   = "command.executing"
	EventJSONEnumLegacy     = "json.enum.legacy_string"
	EventIncludeIgnored     = "query.include_ignored"
	EventCompiledQueryReuse = "query.cache_hit"
)

var (
	// logger is the global diagnostics logger instance
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	// enabled indicates if debug logging is enabled
	enabled bool
	// mu protects the logger and enabled flag
	mu sync.RWMutex
)

// Init initializes the diagnostics logger.
// If enable is true, events down to debug level are written to os.Stderr.
// If enable is false, only warnings and errors are written.
func Init(enable bool) {
	mu.Lock()
	defer mu.Unlock()

	enabled = enable

	level := slog.LevelWarn
	if enable {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// SetHandler replaces the handler behind the global logger.
func SetHandler(h slog.Handler) {
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(h)
}

// Enabled returns whether debug logging is enabled
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// With returns a logger with the given attributes
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Logger returns the underlying slog.Logger instance
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Event emits a named pipeline event on l, or on the global logger when l is nil.
func Event(ctx context.Context, l *slog.Logger, level slog.Level, name string, args ...any) {
	if l == nil {
		l = Logger()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	l.Log(ctx, level, name, args...)
}
