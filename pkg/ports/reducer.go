package ports

import (
	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
)

// Reducer projects states onto the variables relevant for a block and back.
//
// Implementations must satisfy, for every state s and block B:
//
//	ExpandState(s, B, ReduceState(s, B, n)) equals s on everything B can observe.
//
// HashKey must be equal for equal (state, precision) pairs.
type Reducer interface {
	ReduceState(state domain.AbstractState, block *cfa.Block, callNode *cfa.Node) (domain.AbstractState, error)
	ExpandState(root domain.AbstractState, block *cfa.Block, reduced domain.AbstractState) (domain.AbstractState, error)
	ReducePrecision(precision domain.Precision, block *cfa.Block) domain.Precision
	ExpandPrecision(root domain.Precision, block *cfa.Block, reduced domain.Precision) domain.Precision
	// RebuildStateAfterFunctionCall adapts an expanded exit state to the call
	// site: root is the caller state before the call edge, entry the state at
	// the block entry and exitLocation the location the call returns to.
	RebuildStateAfterFunctionCall(root, entry, expanded domain.AbstractState, exitLocation *cfa.Node) (domain.AbstractState, error)
	HashKey(state domain.AbstractState, precision domain.Precision) uint64
	// PrecisionDistance measures how far apart two precisions are. Zero means equal.
	PrecisionDistance(a, b domain.Precision) int
}

// ReducerProvider is implemented by CPAs that support block abstraction.
type ReducerProvider interface {
	Reducer() Reducer
}
