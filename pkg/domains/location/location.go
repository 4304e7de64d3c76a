// Package location tracks the program counter. Its states are partitioned by
// location, so merge and stop of a composite analysis only compare states at
// the same node.
package location

import (
	"context"
	"fmt"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/operators"
	"github.com/aretw0/fixpoint/pkg/ports"
)

// State is a program location.
type State struct {
	node *cfa.Node
}

// NewState returns the state for node.
func NewState(node *cfa.Node) State { return State{node: node} }

func (s State) Location() *cfa.Node { return s.node }
func (s State) PartitionKey() any   { return s.node.ID }
func (s State) IsTarget() bool      { return s.node.Error }
func (s State) Hash() uint64        { return uint64(s.node.ID) }
func (s State) String() string      { return s.node.Name }

func (s State) Equal(other domain.AbstractState) bool {
	o, ok := other.(State)
	return ok && o.node == s.node
}

// CPA is the location analysis.
type CPA struct{}

// New creates a location analysis.
func New() *CPA { return &CPA{} }

func (c *CPA) Domain() ports.AbstractDomain     { return operators.FlatDomain{} }
func (c *CPA) Transfer() ports.TransferRelation { return transfer{} }
func (c *CPA) Merge() ports.MergeOperator       { return operators.MergeSep{} }
func (c *CPA) Stop() ports.StopOperator         { return operators.StopSep{Domain: operators.FlatDomain{}} }
func (c *CPA) Reducer() ports.Reducer           { return reducer{} }

func (c *CPA) PrecisionAdjustment() ports.PrecisionAdjustment {
	return operators.StaticPrecisionAdjustment{}
}

func (c *CPA) InitialState(node *cfa.Node) domain.AbstractState { return State{node: node} }
func (c *CPA) InitialPrecision(*cfa.Node) domain.Precision      { return domain.NoPrecision{} }

type transfer struct{}

func (transfer) Successors(_ context.Context, s domain.AbstractState, _ domain.Precision) ([]domain.AbstractState, error) {
	ls, ok := s.(State)
	if !ok {
		return nil, fmt.Errorf("location: unexpected state %s", s)
	}
	out := make([]domain.AbstractState, 0, len(ls.node.Leaving()))
	for _, e := range ls.node.Leaving() {
		out = append(out, State{node: e.To})
	}
	return out, nil
}

func (transfer) SuccessorsForEdge(_ context.Context, s domain.AbstractState, _ domain.Precision, edge *cfa.Edge) ([]domain.AbstractState, error) {
	ls, ok := s.(State)
	if !ok {
		return nil, fmt.Errorf("location: unexpected state %s", s)
	}
	if edge.From != ls.node {
		return nil, nil
	}
	return []domain.AbstractState{State{node: edge.To}}, nil
}

// reducer keeps the location unchanged inside blocks and relocates exit
// states to the return location of the call.
type reducer struct{}

func (reducer) ReduceState(s domain.AbstractState, _ *cfa.Block, _ *cfa.Node) (domain.AbstractState, error) {
	return s, nil
}

func (reducer) ExpandState(_ domain.AbstractState, _ *cfa.Block, reduced domain.AbstractState) (domain.AbstractState, error) {
	return reduced, nil
}

func (reducer) ReducePrecision(p domain.Precision, _ *cfa.Block) domain.Precision { return p }

func (reducer) ExpandPrecision(root domain.Precision, _ *cfa.Block, _ domain.Precision) domain.Precision {
	return root
}

func (reducer) RebuildStateAfterFunctionCall(_, _, expanded domain.AbstractState, exitLocation *cfa.Node) (domain.AbstractState, error) {
	if exitLocation == nil {
		return expanded, nil
	}
	return State{node: exitLocation}, nil
}

func (reducer) HashKey(s domain.AbstractState, _ domain.Precision) uint64 { return s.Hash() }
func (reducer) PrecisionDistance(_, _ domain.Precision) int               { return 0 }
