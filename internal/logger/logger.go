// Package logger provides the leveled, printf-style logger used across the service.
//
// Debug output is suppressed unless verbose mode is enabled with SetVerbose.
// Messages are conventionally prefixed with the emitting component, for example
// "graph: fetching page ..." or "broker: tenant %s client created".
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	level   = new(slog.LevelVar)
	handler slog.Handler
	log     *slog.Logger
)

func init() {
	level.Set(slog.LevelInfo)
	SetOutput(os.Stderr)
}

// SetVerbose enables or disables debug logging.
func SetVerbose(verbose bool) {
	if verbose {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// IsVerbose reports whether debug logging is enabled.
func IsVerbose() bool {
	return level.Level() <= slog.LevelDebug
}

// SetOutput redirects log output to w. Intended for the CLI and tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	log = slog.New(handler)
}

// Slog returns the underlying structured logger.
func Slog() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Debug logs a formatted message at debug level.
func Debug(format string, args ...any) {
	logf(slog.LevelDebug, format, args...)
}

// Info logs a formatted message at info level.
func Info(format string, args ...any) {
	logf(slog.LevelInfo, format, args...)
}

// Warn logs a formatted message at warning level.
func Warn(format string, args ...any) {
	logf(slog.LevelWarn, format, args...)
}

// Error logs a formatted message at error level.
func Error(format string, args ...any) {
	logf(slog.LevelError, format, args...)
}

func logf(lvl slog.Level, format string, args ...any) {
	l := Slog()
	ctx := context.Background()
	if !l.Enabled(ctx, lvl) {
		return
	}
	l.Log(ctx, lvl, fmt.Sprintf(format, args...))
}
