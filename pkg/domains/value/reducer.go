package value

import (
	"fmt"
	"maps"
	"math"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
)

// reducer drops the variables a block never references and restores them
// from the caller state afterwards.
type reducer struct{}

func (reducer) ReduceState(s domain.AbstractState, block *cfa.Block, _ *cfa.Node) (domain.AbstractState, error) {
	vs, ok := s.(*State)
	if !ok {
		return nil, fmt.Errorf("value: unexpected state %s", s)
	}
	return vs.filter(block.References), nil
}

func (reducer) ExpandState(root domain.AbstractState, block *cfa.Block, reduced domain.AbstractState) (domain.AbstractState, error) {
	rs, rr, err := pair(root, reduced)
	if err != nil {
		return nil, err
	}
	vals := make(map[string]int64, len(rs.vals)+len(rr.vals))
	for k, v := range rs.vals {
		if !block.References(k) {
			vals[k] = v
		}
	}
	maps.Copy(vals, rr.vals)
	return NewState(vals), nil
}

func (reducer) ReducePrecision(p domain.Precision, block *cfa.Block) domain.Precision {
	vp, ok := p.(*Precision)
	if !ok || vp.all {
		return p
	}
	var keep []string
	for k := range vp.tracked {
		if block.References(k) {
			keep = append(keep, k)
		}
	}
	return Track(keep...)
}

func (reducer) ExpandPrecision(root domain.Precision, _ *cfa.Block, _ domain.Precision) domain.Precision {
	return root
}

func (reducer) RebuildStateAfterFunctionCall(_, _, expanded domain.AbstractState, _ *cfa.Node) (domain.AbstractState, error) {
	return expanded, nil
}

func (reducer) HashKey(s domain.AbstractState, p domain.Precision) uint64 {
	return s.Hash()*1099511628211 ^ p.Hash()
}

// PrecisionDistance counts the variables tracked by exactly one precision.
func (reducer) PrecisionDistance(a, b domain.Precision) int {
	pa, ok1 := a.(*Precision)
	pb, ok2 := b.(*Precision)
	if !ok1 || !ok2 {
		return 0
	}
	if pa.all || pb.all {
		if pa.all == pb.all {
			return 0
		}
		return math.MaxInt32
	}
	d := 0
	for k := range pa.tracked {
		if _, ok := pb.tracked[k]; !ok {
			d++
		}
	}
	for k := range pb.tracked {
		if _, ok := pa.tracked[k]; !ok {
			d++
		}
	}
	return d
}
