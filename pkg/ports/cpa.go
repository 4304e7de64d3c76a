package ports

import (
	"context"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
)

// AbstractDomain provides the partial order of a domain.
// IsLessOrEqual(a, b) holds when a is at least as precise as b.
type AbstractDomain interface {
	IsLessOrEqual(a, b domain.AbstractState) (bool, error)
}

// Joiner is implemented by domains that can compute an upper bound.
// Join must be total.
type Joiner interface {
	Join(a, b domain.AbstractState) (domain.AbstractState, error)
}

// TransferRelation computes abstract successors.
// Implementations must be deterministic for equal inputs.
type TransferRelation interface {
	Successors(ctx context.Context, state domain.AbstractState, precision domain.Precision) ([]domain.AbstractState, error)
	SuccessorsForEdge(ctx context.Context, state domain.AbstractState, precision domain.Precision, edge *cfa.Edge) ([]domain.AbstractState, error)
}

// Strengthener is an optional capability of a transfer relation. It refines
// a component state using the sibling components of a composite successor.
// An empty result means the successor is infeasible.
type Strengthener interface {
	Strengthen(ctx context.Context, state domain.AbstractState, siblings []domain.AbstractState, edge *cfa.Edge, precision domain.Precision) ([]domain.AbstractState, error)
}

// MergeOperator combines a new state into an existing reached state.
// The result must be greater or equal to the existing state.
type MergeOperator interface {
	Merge(state, reached domain.AbstractState, precision domain.Precision) (domain.AbstractState, error)
}

// StopOperator decides whether a state is covered by the candidates.
type StopOperator interface {
	Stop(state domain.AbstractState, candidates []domain.AbstractState, precision domain.Precision) (bool, error)
}

// CoveringStop is an optional capability of stop operators that can name the covering state.
type CoveringStop interface {
	Covering(state domain.AbstractState, candidates []domain.AbstractState, precision domain.Precision) (domain.AbstractState, bool, error)
}

// ReachedView is the read-only view of a reached set handed to precision adjustments.
type ReachedView interface {
	Size() int
	Contains(state domain.AbstractState) bool
	Precision(state domain.AbstractState) (domain.Precision, bool)
}

// PrecisionAdjustment may weaken a successor and decide whether exploration continues.
type PrecisionAdjustment interface {
	Adjust(ctx context.Context, state domain.AbstractState, precision domain.Precision, reached ReachedView) (domain.Adjustment, error)
}

// CPA is a configurable program analysis.
type CPA interface {
	Domain() AbstractDomain
	Transfer() TransferRelation
	Merge() MergeOperator
	Stop() StopOperator
	PrecisionAdjustment() PrecisionAdjustment
	InitialState(node *cfa.Node) domain.AbstractState
	InitialPrecision(node *cfa.Node) domain.Precision
}
