package composite

import (
	"fmt"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
)

// Reducer applies the component reducers element-wise.
type Reducer struct {
	children []ports.Reducer
}

func (r *Reducer) ReduceState(s domain.AbstractState, block *cfa.Block, callNode *cfa.Node) (domain.AbstractState, error) {
	cs, err := r.state(s)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AbstractState, len(r.children))
	for i, child := range r.children {
		if out[i], err = child.ReduceState(cs.elems[i], block, callNode); err != nil {
			return nil, err
		}
	}
	return NewState(out...), nil
}

func (r *Reducer) ExpandState(root domain.AbstractState, block *cfa.Block, reduced domain.AbstractState) (domain.AbstractState, error) {
	cr, err := r.state(root)
	if err != nil {
		return nil, err
	}
	cs, err := r.state(reduced)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AbstractState, len(r.children))
	for i, child := range r.children {
		if out[i], err = child.ExpandState(cr.elems[i], block, cs.elems[i]); err != nil {
			return nil, err
		}
	}
	return NewState(out...), nil
}

func (r *Reducer) ReducePrecision(p domain.Precision, block *cfa.Block) domain.Precision {
	cp, ok := p.(*Precision)
	if !ok {
		return p
	}
	out := make([]domain.Precision, len(r.children))
	for i, child := range r.children {
		out[i] = child.ReducePrecision(cp.elems[i], block)
	}
	return NewPrecision(out...)
}

func (r *Reducer) ExpandPrecision(root domain.Precision, block *cfa.Block, reduced domain.Precision) domain.Precision {
	cr, ok1 := root.(*Precision)
	cs, ok2 := reduced.(*Precision)
	if !ok1 || !ok2 {
		return root
	}
	out := make([]domain.Precision, len(r.children))
	for i, child := range r.children {
		out[i] = child.ExpandPrecision(cr.elems[i], block, cs.elems[i])
	}
	return NewPrecision(out...)
}

func (r *Reducer) RebuildStateAfterFunctionCall(root, entry, expanded domain.AbstractState, exitLocation *cfa.Node) (domain.AbstractState, error) {
	tuples := make([]*State, 3)
	for i, s := range []domain.AbstractState{root, entry, expanded} {
		cs, err := r.state(s)
		if err != nil {
			return nil, err
		}
		tuples[i] = cs
	}
	out := make([]domain.AbstractState, len(r.children))
	for i, child := range r.children {
		var err error
		out[i], err = child.RebuildStateAfterFunctionCall(tuples[0].elems[i], tuples[1].elems[i], tuples[2].elems[i], exitLocation)
		if err != nil {
			return nil, err
		}
	}
	return NewState(out...), nil
}

func (r *Reducer) HashKey(s domain.AbstractState, p domain.Precision) uint64 {
	cs, ok1 := s.(*State)
	cp, ok2 := p.(*Precision)
	if !ok1 || !ok2 {
		return s.Hash() ^ p.Hash()
	}
	keys := make([]uint64, len(r.children))
	for i, child := range r.children {
		keys[i] = child.HashKey(cs.elems[i], cp.elems[i])
	}
	return combine(keys)
}

func (r *Reducer) PrecisionDistance(a, b domain.Precision) int {
	ca, ok1 := a.(*Precision)
	cb, ok2 := b.(*Precision)
	if !ok1 || !ok2 {
		return 0
	}
	total := 0
	for i, child := range r.children {
		total += child.PrecisionDistance(ca.elems[i], cb.elems[i])
	}
	return total
}

func (r *Reducer) state(s domain.AbstractState) (*State, error) {
	cs, ok := s.(*State)
	if !ok || cs.Len() != len(r.children) {
		return nil, fmt.Errorf("composite: unexpected state %s", s)
	}
	return cs, nil
}
