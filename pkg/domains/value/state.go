package value

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/aretw0/fixpoint/pkg/domain"
)

// State maps variables to known constants. A missing variable may hold any
// value, so the empty state is top.
type State struct {
	vals map[string]int64
	hash uint64
}

// NewState copies vals into a new state.
func NewState(vals map[string]int64) *State {
	s := &State{vals: make(map[string]int64, len(vals))}
	maps.Copy(s.vals, vals)
	s.hash = hashValues(s.vals)
	return s
}

func hashValues(vals map[string]int64) uint64 {
	h, err := hashstructure.Hash(vals, hashstructure.FormatV2, nil)
	if err != nil {
		// maps of strings to integers are always hashable
		panic(err)
	}
	return h
}

// Get returns the value of a variable when it is known.
func (s *State) Get(name string) (int64, bool) {
	v, ok := s.vals[name]
	return v, ok
}

// Vars returns the known variables sorted by name.
func (s *State) Vars() []string {
	out := make([]string, 0, len(s.vals))
	for k := range s.vals {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of known variables.
func (s *State) Len() int { return len(s.vals) }

func (s *State) Equal(other domain.AbstractState) bool {
	o, ok := other.(*State)
	return ok && o.hash == s.hash && maps.Equal(o.vals, s.vals)
}

func (s *State) Hash() uint64 { return s.hash }

func (s *State) String() string {
	parts := make([]string, 0, len(s.vals))
	for _, k := range s.Vars() {
		parts = append(parts, fmt.Sprintf("%s=%d", k, s.vals[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (s *State) with(name string, v int64) *State {
	vals := maps.Clone(s.vals)
	if vals == nil {
		vals = make(map[string]int64)
	}
	vals[name] = v
	return NewState(vals)
}

func (s *State) without(name string) *State {
	if _, ok := s.vals[name]; !ok {
		return s
	}
	vals := maps.Clone(s.vals)
	delete(vals, name)
	return NewState(vals)
}

func (s *State) filter(keep func(string) bool) *State {
	vals := make(map[string]int64, len(s.vals))
	for k, v := range s.vals {
		if keep(k) {
			vals[k] = v
		}
	}
	if len(vals) == len(s.vals) {
		return s
	}
	return NewState(vals)
}

// Precision lists the variables the analysis may track.
type Precision struct {
	all     bool
	tracked map[string]struct{}
	hash    uint64
}

// TrackAll returns the precision that tracks every variable.
func TrackAll() *Precision { return &Precision{all: true, hash: 1} }

// Track returns a precision that tracks only the given variables.
func Track(vars ...string) *Precision {
	p := &Precision{tracked: make(map[string]struct{}, len(vars))}
	for _, v := range vars {
		p.tracked[v] = struct{}{}
	}
	h, err := hashstructure.Hash(p.tracked, hashstructure.FormatV2, nil)
	if err != nil {
		panic(err)
	}
	p.hash = h << 1
	return p
}

// Tracks reports whether the variable may be tracked.
func (p *Precision) Tracks(name string) bool {
	if p.all {
		return true
	}
	_, ok := p.tracked[name]
	return ok
}

func (p *Precision) Equal(other domain.Precision) bool {
	o, ok := other.(*Precision)
	return ok && o.all == p.all && maps.Equal(o.tracked, p.tracked)
}

func (p *Precision) Hash() uint64 { return p.hash }

func (p *Precision) String() string {
	if p.all {
		return "*"
	}
	names := make([]string, 0, len(p.tracked))
	for k := range p.tracked {
		names = append(names, k)
	}
	sort.Strings(names)
	return "{" + strings.Join(names, ",") + "}"
}
