package logtrace

import (
	"context"

	"github.com/rs/zerolog"
)

type runIDKey struct{}

// WithRunID returns a context carrying the sync run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext extracts the run ID from the context.
// Returns an empty string if the context is nil or carries no run ID.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, ok := ctx.Value(runIDKey{}).(string)
	if !ok {
		return ""
	}
	return r
}

// Logger returns base annotated with the run ID from ctx, if any.
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if id := RunIDFromContext(ctx); id != "" {
		return base.With().Str("run_id", id).Logger()
	}
	return base
}
