package composite

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
)

// CPA is the product of its children. Transfer computes the cross product of
// the component successors and strengthens each component, merge uses the
// agree rule and stop requires every component to be covered by the same
// candidate.
type CPA struct {
	children []ports.CPA
	reducer  *Reducer
}

// New combines the given CPAs. The composite supports block abstraction only
// if every child provides a reducer.
func New(children ...ports.CPA) (*CPA, error) {
	if len(children) == 0 {
		return nil, errors.New("composite: at least one component is required")
	}
	c := &CPA{children: children}
	reducers := make([]ports.Reducer, 0, len(children))
	for _, child := range children {
		rp, ok := child.(ports.ReducerProvider)
		if !ok || rp.Reducer() == nil {
			reducers = nil
			break
		}
		reducers = append(reducers, rp.Reducer())
	}
	if reducers != nil {
		c.reducer = &Reducer{children: reducers}
	}
	return c, nil
}

// Children returns the wrapped CPAs.
func (c *CPA) Children() []ports.CPA { return c.children }

func (c *CPA) Domain() ports.AbstractDomain                   { return compositeDomain{c} }
func (c *CPA) Transfer() ports.TransferRelation               { return transfer{c} }
func (c *CPA) Merge() ports.MergeOperator                     { return agreeMerge{c} }
func (c *CPA) Stop() ports.StopOperator                       { return stop{c} }
func (c *CPA) PrecisionAdjustment() ports.PrecisionAdjustment { return adjustment{c} }

// Reducer returns nil when some child cannot reduce.
func (c *CPA) Reducer() ports.Reducer {
	if c.reducer == nil {
		return nil
	}
	return c.reducer
}

func (c *CPA) InitialState(node *cfa.Node) domain.AbstractState {
	elems := make([]domain.AbstractState, len(c.children))
	for i, child := range c.children {
		elems[i] = child.InitialState(node)
	}
	return NewState(elems...)
}

func (c *CPA) InitialPrecision(node *cfa.Node) domain.Precision {
	elems := make([]domain.Precision, len(c.children))
	for i, child := range c.children {
		elems[i] = child.InitialPrecision(node)
	}
	return NewPrecision(elems...)
}

func (c *CPA) split(s domain.AbstractState, p domain.Precision) (*State, *Precision, error) {
	cs, ok := s.(*State)
	if !ok || cs.Len() != len(c.children) {
		return nil, nil, fmt.Errorf("composite: unexpected state %s", s)
	}
	cp, ok := p.(*Precision)
	if !ok || len(cp.elems) != len(c.children) {
		return nil, nil, fmt.Errorf("composite: unexpected precision %v", p)
	}
	return cs, cp, nil
}

type compositeDomain struct{ c *CPA }

func (d compositeDomain) IsLessOrEqual(a, b domain.AbstractState) (bool, error) {
	sa, ok1 := a.(*State)
	sb, ok2 := b.(*State)
	if !ok1 || !ok2 || sa.Len() != sb.Len() {
		return false, fmt.Errorf("composite: cannot compare %s and %s", a, b)
	}
	for i, child := range d.c.children {
		le, err := child.Domain().IsLessOrEqual(sa.elems[i], sb.elems[i])
		if err != nil || !le {
			return false, err
		}
	}
	return true, nil
}

type transfer struct{ c *CPA }

func (t transfer) Successors(ctx context.Context, s domain.AbstractState, p domain.Precision) ([]domain.AbstractState, error) {
	cs, ok := s.(*State)
	if !ok {
		return nil, fmt.Errorf("composite: unexpected state %s", s)
	}
	loc := cs.Location()
	if loc == nil {
		return nil, domain.ErrNoLocation
	}
	var out []domain.AbstractState
	for _, edge := range loc.Leaving() {
		succs, err := t.SuccessorsForEdge(ctx, s, p, edge)
		if err != nil {
			return nil, err
		}
		out = append(out, succs...)
	}
	return out, nil
}

func (t transfer) SuccessorsForEdge(ctx context.Context, s domain.AbstractState, p domain.Precision, edge *cfa.Edge) ([]domain.AbstractState, error) {
	cs, cp, err := t.c.split(s, p)
	if err != nil {
		return nil, err
	}

	components := make([][]domain.AbstractState, len(t.c.children))
	for i, child := range t.c.children {
		succs, err := child.Transfer().SuccessorsForEdge(ctx, cs.elems[i], cp.elems[i], edge)
		if err != nil {
			return nil, err
		}
		if len(succs) == 0 {
			return nil, nil
		}
		components[i] = succs
	}

	var out []domain.AbstractState
	for _, tuple := range product(components) {
		strengthened, err := t.strengthen(ctx, tuple, edge, cp)
		if err != nil {
			return nil, err
		}
		out = append(out, strengthened...)
	}
	return out, nil
}

func (t transfer) strengthen(ctx context.Context, tuple []domain.AbstractState, edge *cfa.Edge, cp *Precision) ([]domain.AbstractState, error) {
	options := make([][]domain.AbstractState, len(tuple))
	for i, child := range t.c.children {
		st, ok := child.Transfer().(ports.Strengthener)
		if !ok {
			options[i] = []domain.AbstractState{tuple[i]}
			continue
		}
		refined, err := st.Strengthen(ctx, tuple[i], tuple, edge, cp.elems[i])
		if err != nil {
			return nil, err
		}
		if len(refined) == 0 {
			return nil, nil
		}
		options[i] = refined
	}
	tuples := product(options)
	out := make([]domain.AbstractState, len(tuples))
	for i, elems := range tuples {
		out[i] = NewState(elems...)
	}
	return out, nil
}

// product enumerates the cross product in lexicographic order.
func product(components [][]domain.AbstractState) [][]domain.AbstractState {
	result := [][]domain.AbstractState{{}}
	for _, options := range components {
		next := make([][]domain.AbstractState, 0, len(result)*len(options))
		for _, prefix := range result {
			for _, o := range options {
				tuple := append(append([]domain.AbstractState(nil), prefix...), o)
				next = append(next, tuple)
			}
		}
		result = next
	}
	return result
}

// agreeMerge merges component-wise and keeps the result only if no component
// refused to merge: a component refuses when its merge returns the reached
// component unchanged although that component does not already cover the new one.
type agreeMerge struct{ c *CPA }

func (m agreeMerge) Merge(s, r domain.AbstractState, p domain.Precision) (domain.AbstractState, error) {
	cs, cp, err := m.c.split(s, p)
	if err != nil {
		return nil, err
	}
	cr, ok := r.(*State)
	if !ok || cr.Len() != cs.Len() {
		return nil, fmt.Errorf("composite: unexpected reached state %s", r)
	}

	merged := make([]domain.AbstractState, cs.Len())
	changed := false
	for i, child := range m.c.children {
		mi, err := child.Merge().Merge(cs.elems[i], cr.elems[i], cp.elems[i])
		if err != nil {
			return nil, err
		}
		if mi.Equal(cr.elems[i]) {
			covered, err := child.Domain().IsLessOrEqual(cs.elems[i], cr.elems[i])
			if err != nil {
				return nil, err
			}
			if !covered {
				return r, nil
			}
		} else {
			changed = true
		}
		merged[i] = mi
	}
	if !changed {
		return r, nil
	}
	return NewState(merged...), nil
}

type stop struct{ c *CPA }

func (s stop) Stop(state domain.AbstractState, candidates []domain.AbstractState, p domain.Precision) (bool, error) {
	_, ok, err := s.Covering(state, candidates, p)
	return ok, err
}

func (s stop) Covering(state domain.AbstractState, candidates []domain.AbstractState, p domain.Precision) (domain.AbstractState, bool, error) {
	cs, cp, err := s.c.split(state, p)
	if err != nil {
		return nil, false, err
	}
	for _, r := range candidates {
		cr, ok := r.(*State)
		if !ok || cr.Len() != cs.Len() {
			continue
		}
		covered := true
		for i, child := range s.c.children {
			stopped, err := child.Stop().Stop(cs.elems[i], []domain.AbstractState{cr.elems[i]}, cp.elems[i])
			if err != nil {
				return nil, false, err
			}
			if !stopped {
				covered = false
				break
			}
		}
		if covered {
			return r, true, nil
		}
	}
	return nil, false, nil
}

type adjustment struct{ c *CPA }

func (a adjustment) Adjust(ctx context.Context, s domain.AbstractState, p domain.Precision, reached ports.ReachedView) (domain.Adjustment, error) {
	cs, cp, err := a.c.split(s, p)
	if err != nil {
		return domain.Adjustment{}, err
	}
	states := make([]domain.AbstractState, cs.Len())
	precs := make([]domain.Precision, cs.Len())
	action := domain.ActionContinue
	for i, child := range a.c.children {
		adj, err := child.PrecisionAdjustment().Adjust(ctx, cs.elems[i], cp.elems[i], reached)
		if err != nil {
			return domain.Adjustment{}, err
		}
		states[i], precs[i] = adj.State, adj.Precision
		if adj.Action == domain.ActionBreak {
			action = domain.ActionBreak
		}
	}
	return domain.Adjustment{State: NewState(states...), Precision: NewPrecision(precs...), Action: action}, nil
}
