package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/fixpoint/internal/logging"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
	"github.com/aretw0/fixpoint/pkg/reached"
)

// Engine runs the worklist fixpoint algorithm over a reached set.
// The block cache calls Run recursively on nested reached sets. The
// iteration counter is shared by all of them, so an Engine serves one
// top-level run at a time.
type Engine struct {
	cpa               ports.CPA
	logger            *slog.Logger
	hooks             domain.LifecycleHooks
	stopAtFirstTarget bool
	maxIterations     int
	iterations        int
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithStopAtFirstTarget ends a run as soon as a target state is recorded.
func WithStopAtFirstTarget(stop bool) EngineOption {
	return func(e *Engine) {
		e.stopAtFirstTarget = stop
	}
}

// WithMaxIterations interrupts a run after n expansions. Zero means unbounded.
func WithMaxIterations(n int) EngineOption {
	return func(e *Engine) {
		e.maxIterations = n
	}
}

// NewEngine creates an engine for the given analysis.
func NewEngine(cpa ports.CPA, opts ...EngineOption) *Engine {
	e := &Engine{
		cpa:    cpa,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Iterations returns the number of states expanded so far, nested runs included.
func (e *Engine) Iterations() int { return e.iterations }

// Run explores until the waitlist is empty, a target halts the run, the
// context is cancelled or an operator fails.
//
// Interruption is not an error: it yields StatusInterrupted with a nil error
// and the reached set left consistent, so Run may be called again to resume.
// Operator failures yield StatusFailed and the classified error. In both
// cases the state being expanded is queued again.
func (e *Engine) Run(ctx context.Context, rs *reached.Set) (domain.Status, error) {
	start := e.iterations
	for {
		if ctx.Err() != nil {
			e.logger.Debug("exploration interrupted", "reached", rs.Size(), "waitlist", rs.WaitlistSize())
			return domain.StatusInterrupted, nil
		}
		if e.maxIterations > 0 && e.iterations-start >= e.maxIterations {
			e.logger.Warn("iteration limit reached", "limit", e.maxIterations)
			return domain.StatusInterrupted, nil
		}

		state, precision, ok := rs.PopNext()
		if !ok {
			return domain.StatusCompleted, nil
		}
		e.iterations++
		e.emitState(ctx, e.hooks.OnStatePopped, domain.EventStatePopped, state, nil)

		halt, err := e.expand(ctx, rs, state, precision)
		if err != nil {
			// The state produced no successors, so it stays on the waitlist.
			if readdErr := rs.ReAdd(state); readdErr != nil {
				return domain.StatusFailed, errors.Join(err, readdErr)
			}
			if errors.Is(err, domain.ErrInterrupted) {
				return domain.StatusInterrupted, nil
			}
			e.logger.Error("exploration failed", "state", state.String(), "error", err)
			return domain.StatusFailed, err
		}
		if halt {
			return domain.StatusCompleted, nil
		}
	}
}

// expand handles one popped state. It reports whether the run should halt.
func (e *Engine) expand(ctx context.Context, rs *reached.Set, state domain.AbstractState, precision domain.Precision) (bool, error) {
	successors, err := e.cpa.Transfer().Successors(ctx, state, precision)
	if err != nil {
		return false, domain.WrapOperator("transfer", state, err)
	}
	e.logger.Debug("expanded state", "state", state.String(), "successors", len(successors))

	for _, successor := range successors {
		adj, err := e.cpa.PrecisionAdjustment().Adjust(ctx, successor, precision, rs)
		if err != nil {
			return false, domain.WrapOperator("precision adjustment", successor, err)
		}
		succ, succPrec := adj.State, adj.Precision
		if succPrec == nil {
			succPrec = precision
		}

		if adj.Action == domain.ActionBreak {
			if rs.Contains(succ) {
				continue
			}
			if err := rs.AddTarget(succ, succPrec, state); err != nil {
				return false, fmt.Errorf("recording target %s: %w", succ, err)
			}
			e.logger.Info("target reached", "state", succ.String())
			e.emitState(ctx, e.hooks.OnTargetReached, domain.EventTargetReached, succ, nil)
			if e.stopAtFirstTarget {
				return true, nil
			}
			continue
		}

		if err := e.mergeInto(ctx, rs, succ, succPrec); err != nil {
			return false, err
		}

		candidates := rs.Candidates(succ)
		covering, stop, err := e.covering(succ, candidates, succPrec)
		if err != nil {
			return false, domain.WrapOperator("stop", succ, err)
		}
		if stop {
			if err := rs.CoverSuccessor(succ, state, covering); err != nil {
				return false, err
			}
			e.emitState(ctx, e.hooks.OnStateCovered, domain.EventStateCovered, succ, covering)
			continue
		}

		if err := rs.Add(succ, succPrec, state); err != nil {
			if errors.Is(err, reached.ErrDuplicateState) {
				continue
			}
			return false, err
		}
		e.emitState(ctx, e.hooks.OnStateAdded, domain.EventStateAdded, succ, nil)
	}
	return false, nil
}

func (e *Engine) mergeInto(ctx context.Context, rs *reached.Set, succ domain.AbstractState, precision domain.Precision) error {
	for _, r := range rs.Candidates(succ) {
		merged, err := e.cpa.Merge().Merge(succ, r, precision)
		if err != nil {
			return domain.WrapOperator("merge", succ, err)
		}
		if merged.Equal(r) {
			continue
		}
		if err := rs.Replace(r, merged, precision); err != nil {
			return err
		}
		e.logger.Debug("merged state", "reached", r.String(), "merged", merged.String())
		e.emitState(ctx, e.hooks.OnStateMerged, domain.EventStateMerged, merged, nil)
	}
	return nil
}

// covering asks the stop operator and, when it stops, looks for the candidate
// that covers the state.
func (e *Engine) covering(succ domain.AbstractState, candidates []domain.AbstractState, precision domain.Precision) (domain.AbstractState, bool, error) {
	if cs, ok := e.cpa.Stop().(ports.CoveringStop); ok {
		return cs.Covering(succ, candidates, precision)
	}
	stop, err := e.cpa.Stop().Stop(succ, candidates, precision)
	if err != nil || !stop {
		return nil, false, err
	}
	for _, r := range candidates {
		le, err := e.cpa.Domain().IsLessOrEqual(succ, r)
		if err != nil {
			return nil, false, err
		}
		if le {
			return r, true, nil
		}
	}
	return nil, true, nil
}

func (e *Engine) emitState(ctx context.Context, hook func(context.Context, *domain.StateEvent), typ domain.EventType, state, covering domain.AbstractState) {
	if hook == nil {
		return
	}
	ev := domain.NewStateEvent(typ, state)
	ev.Covering = covering
	hook(ctx, ev)
}
