// Package operators provides the standard merge, stop and precision
// adjustment operators shared by the built-in domains.
package operators

import (
	"context"

	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
)

// MergeSep never combines states: it returns the reached state unchanged.
type MergeSep struct{}

func (MergeSep) Merge(_, reached domain.AbstractState, _ domain.Precision) (domain.AbstractState, error) {
	return reached, nil
}

// MergeJoin replaces the reached state by the join of both states.
type MergeJoin struct {
	Joiner ports.Joiner
}

func (m MergeJoin) Merge(state, reached domain.AbstractState, _ domain.Precision) (domain.AbstractState, error) {
	return m.Joiner.Join(state, reached)
}

// StopSep stops when a single candidate covers the state.
type StopSep struct {
	Domain ports.AbstractDomain
}

func (s StopSep) Stop(state domain.AbstractState, candidates []domain.AbstractState, p domain.Precision) (bool, error) {
	_, ok, err := s.Covering(state, candidates, p)
	return ok, err
}

// Covering returns the first candidate that covers the state.
func (s StopSep) Covering(state domain.AbstractState, candidates []domain.AbstractState, _ domain.Precision) (domain.AbstractState, bool, error) {
	for _, r := range candidates {
		le, err := s.Domain.IsLessOrEqual(state, r)
		if err != nil {
			return nil, false, err
		}
		if le {
			return r, true, nil
		}
	}
	return nil, false, nil
}

// StopNever never stops; every successor is added to the reached set.
type StopNever struct{}

func (StopNever) Stop(domain.AbstractState, []domain.AbstractState, domain.Precision) (bool, error) {
	return false, nil
}

// StaticPrecisionAdjustment keeps the precision and breaks on target states.
type StaticPrecisionAdjustment struct{}

func (StaticPrecisionAdjustment) Adjust(_ context.Context, state domain.AbstractState, precision domain.Precision, _ ports.ReachedView) (domain.Adjustment, error) {
	if ports.IsTarget(state) {
		return domain.Break(state, precision), nil
	}
	return domain.Continue(state, precision), nil
}

// FlatDomain orders states by equality only.
type FlatDomain struct{}

func (FlatDomain) IsLessOrEqual(a, b domain.AbstractState) (bool, error) {
	return a.Equal(b), nil
}
