// Package logging provides file-backed logging for timebridge.
// Background sweeps run detached from a terminal, so logs go to a file
// under the data directory in addition to stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/nkondo/timebridge/internal/domain"
)

// Ensure Logger implements domain.Logger interface.
var _ domain.Logger = (*Logger)(nil)

// Logger wraps slog.Logger with lazy file output.
type Logger struct {
	file    *os.File
	slogger *slog.Logger
	dataDir string
	level   slog.Level
	mu      sync.Mutex
}

// New creates a Logger writing to stderr and to <dataDir>/timebridge.log.
// If dataDir is empty, only stderr is used.
func New(dataDir string, level slog.Level) *Logger {
	return &Logger{
		dataDir: dataDir,
		level:   level,
	}
}

// ParseLevel parses a log level string into slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) ensure() *slog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.slogger != nil {
		return l.slogger
	}

	var w io.Writer = os.Stderr
	if l.dataDir != "" {
		if err := os.MkdirAll(l.dataDir, 0o750); err == nil {
			path := filepath.Join(l.dataDir, "timebridge.log")
			// G302: log readable by owner and group
			f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // append-only log file
			if err == nil {
				l.file = f
				w = io.MultiWriter(os.Stderr, f)
			}
		}
	}

	l.slogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l.level}))
	return l.slogger
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) { l.ensure().Debug(msg, args...) }

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) { l.ensure().Info(msg, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) { l.ensure().Warn(msg, args...) }

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) { l.ensure().Error(msg, args...) }

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	l := New("", slog.LevelError)
	l.slogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return l
}
