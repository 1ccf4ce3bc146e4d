package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/tendril/pkg/domain"
)

// LoggingHooks logs pass boundaries at info level and node updates at debug level.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPassStart: func(ctx context.Context, e *domain.PassEvent) {
			logger.InfoContext(ctx, "pass_start", "pass_id", e.PassID)
		},
		OnPassEnd: func(ctx context.Context, e *domain.PassEvent) {
			attrs := []any{"pass_id", e.PassID, "duration", e.Duration}
			if e.Err != nil {
				attrs = append(attrs, "err", e.Err, "canceled", e.Canceled)
			}
			logger.InfoContext(ctx, "pass_end", attrs...)
		},
		OnNodeUpdate: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_update",
				"pass_id", e.PassID,
				"node", e.NodeName,
				"kind", e.Kind,
				"added", e.Counts[domain.Added],
				"modified", e.Counts[domain.Modified],
				"cached", e.Counts[domain.Cached],
				"removed", e.Counts[domain.Removed],
				"invocations", e.Invocations,
			)
		},
		OnCallbackFailed: func(ctx context.Context, e *domain.CallbackEvent) {
			logger.WarnContext(ctx, "callback_failed",
				"pass_id", e.PassID,
				"node", e.NodeName,
				"position", e.Position,
				"err", e.Err,
			)
		},
	}
}
