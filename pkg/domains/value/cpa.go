// Package value implements explicit-value analysis: it tracks variables whose
// value is a known constant and forgets everything else.
package value

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/operators"
	"github.com/aretw0/fixpoint/pkg/ports"
)

// Options configures the analysis.
type Options struct {
	// Merge is "sep" (default) or "join".
	Merge string `mapstructure:"merge"`
	// Stop is "sep" (default) or "never".
	Stop string `mapstructure:"stop"`
	// Tracked limits the initial precision. Empty tracks every variable.
	Tracked []string `mapstructure:"tracked"`
}

// DecodeOptions decodes loosely typed configuration, e.g. from YAML.
func DecodeOptions(raw map[string]any) (Options, error) {
	var opts Options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, err
	}
	if err := dec.Decode(raw); err != nil {
		return opts, fmt.Errorf("value: invalid options: %w", err)
	}
	return opts, nil
}

// CPA is the explicit-value analysis.
type CPA struct {
	opts  Options
	merge ports.MergeOperator
	stop  ports.StopOperator
}

// New validates the options and creates the analysis.
func New(opts Options) (*CPA, error) {
	c := &CPA{opts: opts}
	switch opts.Merge {
	case "", "sep":
		c.merge = operators.MergeSep{}
	case "join":
		c.merge = operators.MergeJoin{Joiner: valueDomain{}}
	default:
		return nil, fmt.Errorf("value: unknown merge %q", opts.Merge)
	}
	switch opts.Stop {
	case "", "sep":
		c.stop = operators.StopSep{Domain: valueDomain{}}
	case "never":
		c.stop = operators.StopNever{}
	default:
		return nil, fmt.Errorf("value: unknown stop %q", opts.Stop)
	}
	return c, nil
}

func (c *CPA) Domain() ports.AbstractDomain                   { return valueDomain{} }
func (c *CPA) Transfer() ports.TransferRelation               { return transfer{} }
func (c *CPA) Merge() ports.MergeOperator                     { return c.merge }
func (c *CPA) Stop() ports.StopOperator                       { return c.stop }
func (c *CPA) PrecisionAdjustment() ports.PrecisionAdjustment { return abstraction{} }
func (c *CPA) Reducer() ports.Reducer                         { return reducer{} }

func (c *CPA) InitialState(*cfa.Node) domain.AbstractState { return NewState(nil) }

func (c *CPA) InitialPrecision(*cfa.Node) domain.Precision {
	if len(c.opts.Tracked) == 0 {
		return TrackAll()
	}
	return Track(c.opts.Tracked...)
}

type valueDomain struct{}

// IsLessOrEqual holds when a knows at least the bindings of b.
func (valueDomain) IsLessOrEqual(a, b domain.AbstractState) (bool, error) {
	sa, sb, err := pair(a, b)
	if err != nil {
		return false, err
	}
	for k, v := range sb.vals {
		if av, ok := sa.vals[k]; !ok || av != v {
			return false, nil
		}
	}
	return true, nil
}

// Join keeps the bindings both states agree on.
func (valueDomain) Join(a, b domain.AbstractState) (domain.AbstractState, error) {
	sa, sb, err := pair(a, b)
	if err != nil {
		return nil, err
	}
	return sa.filter(func(k string) bool {
		v, ok := sb.vals[k]
		return ok && v == sa.vals[k]
	}), nil
}

func pair(a, b domain.AbstractState) (*State, *State, error) {
	sa, ok1 := a.(*State)
	sb, ok2 := b.(*State)
	if !ok1 || !ok2 {
		return nil, nil, fmt.Errorf("value: unexpected states %s, %s", a, b)
	}
	return sa, sb, nil
}

type transfer struct{}

func (transfer) Successors(context.Context, domain.AbstractState, domain.Precision) ([]domain.AbstractState, error) {
	return nil, fmt.Errorf("value: %w; combine with the location analysis", domain.ErrNoLocation)
}

func (transfer) SuccessorsForEdge(_ context.Context, s domain.AbstractState, _ domain.Precision, edge *cfa.Edge) ([]domain.AbstractState, error) {
	vs, ok := s.(*State)
	if !ok {
		return nil, fmt.Errorf("value: unexpected state %s", s)
	}
	switch stmt := edge.Stmt.(type) {
	case cfa.Assign:
		if v, known := eval(stmt.Value, vs); known {
			return []domain.AbstractState{vs.with(stmt.Target, v)}, nil
		}
		return []domain.AbstractState{vs.without(stmt.Target)}, nil
	case cfa.Havoc:
		return []domain.AbstractState{vs.without(stmt.Target)}, nil
	case cfa.Assume:
		if v, known := eval(stmt.Cond, vs); known && v == 0 {
			return nil, nil
		}
		return []domain.AbstractState{refine(stmt.Cond, vs)}, nil
	default:
		return []domain.AbstractState{vs}, nil
	}
}

// abstraction forgets variables outside the precision.
type abstraction struct{}

func (abstraction) Adjust(_ context.Context, s domain.AbstractState, p domain.Precision, _ ports.ReachedView) (domain.Adjustment, error) {
	vs, ok := s.(*State)
	if !ok {
		return domain.Adjustment{}, fmt.Errorf("value: unexpected state %s", s)
	}
	vp, ok := p.(*Precision)
	if !ok || vp.all {
		return domain.Continue(s, p), nil
	}
	return domain.Continue(vs.filter(vp.Tracks), p), nil
}
