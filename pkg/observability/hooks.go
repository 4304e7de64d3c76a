package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/fixpoint/pkg/domain"
)

// Chain combines hook sets. Each callback runs the non-nil callbacks of every
// set, in argument order.
func Chain(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		out.OnStatePopped = chainState(out.OnStatePopped, h.OnStatePopped)
		out.OnStateAdded = chainState(out.OnStateAdded, h.OnStateAdded)
		out.OnStateMerged = chainState(out.OnStateMerged, h.OnStateMerged)
		out.OnStateCovered = chainState(out.OnStateCovered, h.OnStateCovered)
		out.OnTargetReached = chainState(out.OnTargetReached, h.OnTargetReached)
		out.OnBlockEnter = chainBlock(out.OnBlockEnter, h.OnBlockEnter)
		out.OnBlockExit = chainBlock(out.OnBlockExit, h.OnBlockExit)
	}
	return out
}

func chainState(a, b func(context.Context, *domain.StateEvent)) func(context.Context, *domain.StateEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.StateEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainBlock(a, b func(context.Context, *domain.BlockEvent)) func(context.Context, *domain.BlockEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.BlockEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

// LoggingHooks logs targets and block activity. Per-state events go to Debug.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	debugState := func(ctx context.Context, e *domain.StateEvent) {
		logger.DebugContext(ctx, string(e.Type), "state", e.Label)
	}
	return domain.LifecycleHooks{
		OnStateAdded:  debugState,
		OnStateMerged: debugState,
		OnStateCovered: func(ctx context.Context, e *domain.StateEvent) {
			if e.Covering != nil {
				logger.DebugContext(ctx, string(e.Type), "state", e.Label, "by", e.Covering.String())
				return
			}
			debugState(ctx, e)
		},
		OnTargetReached: func(ctx context.Context, e *domain.StateEvent) {
			logger.InfoContext(ctx, "target reached", "state", e.Label)
		},
		OnBlockEnter: func(ctx context.Context, e *domain.BlockEvent) {
			logger.DebugContext(ctx, "block enter", "block", e.Block, "depth", e.Depth, "lookup", string(e.Lookup))
		},
		OnBlockExit: func(ctx context.Context, e *domain.BlockEvent) {
			logger.DebugContext(ctx, "block exit", "block", e.Block, "depth", e.Depth, "exits", e.ExitStates)
		},
	}
}
