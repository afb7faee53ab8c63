// Package logger provides the process-wide structured logger.
//
// It wraps log/slog with level parsing, file or stderr sinks and a
// pluggable text/json format suitable for terminals and log files.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

// ParseLevel converts a string log level to slog.Level.
// Valid levels: debug, info, warn, error.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", levelStr)
	}
}

// Init configures the default logger. Format is "text" or "json";
// anything else falls back to text.
func Init(level slog.Level, output io.Writer, format string) {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	mu.Lock()
	defaultLogger = slog.New(handler)
	mu.Unlock()
}

// OpenLogFile opens (or creates) a log file for appending and returns a
// cleanup function that closes it.
func OpenLogFile(path string) (*os.File, func(), error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return file, func() { _ = file.Close() }, nil
}

// Get returns the default logger.
func Get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Debug logs at debug level using the default logger.
func Debug(msg string, args ...any) { Get().Debug(msg, args...) }

// Info logs at info level using the default logger.
func Info(msg string, args ...any) { Get().Info(msg, args...) }

// Warn logs at warn level using the default logger.
func Warn(msg string, args ...any) { Get().Warn(msg, args...) }

// Error logs at error level using the default logger.
func Error(msg string, args ...any) { Get().Error(msg, args...) }
