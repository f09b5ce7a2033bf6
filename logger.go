package locus

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/locus/persist"
)

// Logger wraps slog.Logger with locus-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return newLogger(os.Stderr, "json", level)
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return newLogger(os.Stderr, "text", level)
}

func newLogger(w io.Writer, format string, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithPackage adds a package field to the logger.
func (l *Logger) WithPackage(pkg string) *Logger {
	return &Logger{
		Logger: l.Logger.With("package", pkg),
	}
}

// WithKey adds a cache key field to the logger.
func (l *Logger) WithKey(key string) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", key),
	}
}

// LogFind logs a path resolution.
func (l *Logger) LogFind(ctx context.Context, logical, found, where string, err error) {
	if err != nil {
		l.WarnContext(ctx, "find failed",
			"path", logical,
			"root", where,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "find completed",
			"path", logical,
			"root", where,
			"found", found,
		)
	}
}

// LogProduce logs a resource production.
func (l *Logger) LogProduce(ctx context.Context, logical string, produced bool, err error) {
	if err != nil {
		l.WarnContext(ctx, "production failed",
			"path", logical,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "production completed",
			"path", logical,
			"produced", produced,
		)
	}
}

// LogPersist logs a cache lookup.
func (l *Logger) LogPersist(ctx context.Context, key string, typ persist.ValueType, entry *persist.Entry, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "persist failed",
			"key", key,
			"type", string(typ),
			"error", err,
		)
	case entry.Cached:
		l.DebugContext(ctx, "persist hit",
			"key", key,
			"path", entry.Path,
		)
	default:
		l.DebugContext(ctx, "persist stored",
			"key", key,
			"type", string(typ),
			"path", entry.Path,
			"stream", entry.Stream != nil,
		)
	}
}

// LogRootsReload logs a reload of the roots file.
func (l *Logger) LogRootsReload(ctx context.Context, path string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "roots reload failed",
			"file", path,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "roots loaded",
			"file", path,
		)
	}
}
