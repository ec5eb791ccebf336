// Package ctxlog carries the slog.Logger used by policy loading and the
// demo application through context.Context.
//
// Unlike the application, library callers such as livexpr.LoadOptions are
// not required to embed a logger: FromContext then falls back to
// slog.Default() instead of failing.
package ctxlog

import (
	"context"
	"log/slog"
)

type key struct{}

var loggerKey = key{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger embedded in ctx, or slog.Default() when
// ctx carries none or a nil one.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}
