package events

import (
	"context"
	"log/slog"

	"committeeDashboard/internal/viewmodel"
)

// Invalidator drops cached query results of the changed entity.
func Invalidator(cache viewmodel.QueryCache, logger *slog.Logger) Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, e Event) {
		if e.Entity == EntitySession {
			return
		}
		if err := cache.InvalidateEntity(ctx, e.Entity); err != nil {
			logger.With("error", err).Warn("query cache invalidation failed", "entity", e.Entity)
		}
	}
}
