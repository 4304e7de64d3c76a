// Package composite combines several CPAs into their product.
package composite

import (
	"encoding/binary"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
)

// State is a tuple of component states.
type State struct {
	elems []domain.AbstractState
	hash  uint64
}

// NewState builds a tuple. The slice is copied.
func NewState(elems ...domain.AbstractState) *State {
	s := &State{elems: append([]domain.AbstractState(nil), elems...)}
	hashes := make([]uint64, len(elems))
	for i, e := range elems {
		hashes[i] = e.Hash()
	}
	s.hash = combine(hashes)
	return s
}

// Elements returns a copy of the components.
func (s *State) Elements() []domain.AbstractState {
	return append([]domain.AbstractState(nil), s.elems...)
}

// Element returns the i-th component.
func (s *State) Element(i int) domain.AbstractState { return s.elems[i] }

// Len returns the number of components.
func (s *State) Len() int { return len(s.elems) }

func (s *State) Equal(other domain.AbstractState) bool {
	o, ok := other.(*State)
	if !ok || o.hash != s.hash || len(o.elems) != len(s.elems) {
		return false
	}
	for i := range s.elems {
		if !s.elems[i].Equal(o.elems[i]) {
			return false
		}
	}
	return true
}

func (s *State) Hash() uint64 { return s.hash }

func (s *State) String() string {
	parts := make([]string, len(s.elems))
	for i, e := range s.elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Location returns the location of the first component that has one.
func (s *State) Location() *cfa.Node {
	for _, e := range s.elems {
		if n, ok := ports.LocationOf(e); ok {
			return n
		}
	}
	return nil
}

// PartitionKey returns the key of the first partitionable component.
func (s *State) PartitionKey() any {
	for _, e := range s.elems {
		if p, ok := e.(ports.Partitionable); ok {
			return p.PartitionKey()
		}
	}
	return nil
}

// IsTarget reports whether any component is a target.
func (s *State) IsTarget() bool {
	for _, e := range s.elems {
		if ports.IsTarget(e) {
			return true
		}
	}
	return false
}

// Precision is a tuple of component precisions.
type Precision struct {
	elems []domain.Precision
}

// NewPrecision builds a precision tuple.
func NewPrecision(elems ...domain.Precision) *Precision {
	return &Precision{elems: append([]domain.Precision(nil), elems...)}
}

// Element returns the i-th component.
func (p *Precision) Element(i int) domain.Precision { return p.elems[i] }

func (p *Precision) Equal(other domain.Precision) bool {
	o, ok := other.(*Precision)
	if !ok || len(o.elems) != len(p.elems) {
		return false
	}
	for i := range p.elems {
		if !p.elems[i].Equal(o.elems[i]) {
			return false
		}
	}
	return true
}

func (p *Precision) Hash() uint64 {
	hashes := make([]uint64, len(p.elems))
	for i, e := range p.elems {
		hashes[i] = e.Hash()
	}
	return combine(hashes)
}

func (p *Precision) String() string {
	parts := make([]string, len(p.elems))
	for i, e := range p.elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func combine(hashes []uint64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, h := range hashes {
		binary.LittleEndian.PutUint64(buf[:], h)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
