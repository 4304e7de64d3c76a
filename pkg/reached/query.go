package reached

import (
	"fmt"

	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
)

// Size returns the number of reached states.
func (s *Set) Size() int { return s.entries.Len() }

// WaitlistSize returns the number of states waiting for expansion.
func (s *Set) WaitlistSize() int { return s.waitlist.Len() }

// HasWaitingState reports whether the waitlist is non-empty.
func (s *Set) HasWaitingState() bool { return s.waitlist.Len() > 0 }

// Contains reports whether the state is reached.
func (s *Set) Contains(state domain.AbstractState) bool { return s.find(state) != nil }

// Precision returns the precision attached to a reached state.
func (s *Set) Precision(state domain.AbstractState) (domain.Precision, bool) {
	e := s.find(state)
	if e == nil {
		return nil, false
	}
	return e.precision, true
}

// Root returns the initial state and its precision.
func (s *Set) Root() (domain.AbstractState, domain.Precision, bool) {
	if s.root == nil {
		return nil, nil, false
	}
	return s.root.state, s.root.precision, true
}

// Parent returns the parent of a reached state. The root has none.
func (s *Set) Parent(state domain.AbstractState) (domain.AbstractState, bool) {
	e := s.find(state)
	if e == nil || e.parent == nil {
		return nil, false
	}
	return e.parent.state, true
}

// Children returns the reached successors recorded for a state.
func (s *Set) Children(state domain.AbstractState) []domain.AbstractState {
	e := s.find(state)
	if e == nil {
		return nil
	}
	return states(e.children)
}

// CoveredBy returns the state covering a reached state, if any.
func (s *Set) CoveredBy(state domain.AbstractState) (domain.AbstractState, bool) {
	e := s.find(state)
	if e == nil || e.coveredBy == nil {
		return nil, false
	}
	return e.coveredBy.state, true
}

// IsCovered reports whether a reached state is covered.
func (s *Set) IsCovered(state domain.AbstractState) bool {
	e := s.find(state)
	return e != nil && e.coveredBy != nil
}

// IsTarget reports whether a reached state was recorded as a target.
func (s *Set) IsTarget(state domain.AbstractState) bool {
	e := s.find(state)
	return e != nil && e.target
}

// IsWaiting reports whether a reached state is queued.
func (s *Set) IsWaiting(state domain.AbstractState) bool {
	e := s.find(state)
	return e != nil && e.waiting != nil
}

// States returns all reached states in insertion order.
func (s *Set) States() []domain.AbstractState {
	out := make([]domain.AbstractState, 0, s.entries.Len())
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.state)
	}
	return out
}

// Waiting returns the queued states from oldest to newest.
func (s *Set) Waiting() []domain.AbstractState {
	out := make([]domain.AbstractState, 0, s.waitlist.Len())
	for el := s.waitlist.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.state)
	}
	return out
}

// Targets returns the target states in insertion order.
func (s *Set) Targets() []domain.AbstractState {
	var out []domain.AbstractState
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.target {
			out = append(out, pair.Value.state)
		}
	}
	return out
}

// Candidates returns the uncovered reached states sharing the partition key of state.
func (s *Set) Candidates(state domain.AbstractState) []domain.AbstractState {
	bucket := s.partitions[ports.PartitionKeyOf(state)]
	out := make([]domain.AbstractState, 0, len(bucket))
	for _, e := range bucket {
		if e.coveredBy == nil {
			out = append(out, e.state)
		}
	}
	return out
}

// Covers returns the successors discarded by the stop operator.
func (s *Set) Covers() []Cover {
	out := make([]Cover, 0, len(s.covers))
	for _, rec := range s.covers {
		c := Cover{State: rec.state}
		if rec.parent != nil {
			c.Parent = rec.parent.state
		}
		if rec.by != nil {
			c.By = rec.by.state
		}
		out = append(out, c)
	}
	return out
}

// CheckInvariants verifies the structural invariants of the set.
func (s *Set) CheckInvariants() error {
	for el := s.waitlist.Front(); el != nil; el = el.Next() {
		if e := el.Value; e.removed || s.find(e.state) != e {
			return fmt.Errorf("waiting state %s is not reached", e.state)
		}
	}
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		e := pair.Value
		if s.find(e.state) != e {
			return fmt.Errorf("state %s is not indexed", e.state)
		}
		if e != s.root && (e.parent == nil || e.parent.removed) {
			return fmt.Errorf("state %s has no reached parent", e.state)
		}
		if c := e.coveredBy; c != nil {
			if c == e || c.removed || c.coveredBy != nil {
				return fmt.Errorf("state %s has an invalid covering edge", e.state)
			}
			if e.target {
				return fmt.Errorf("target %s is covered", e.state)
			}
		}
		if e.target && e.waiting != nil {
			return fmt.Errorf("target %s is waiting", e.state)
		}
	}
	for _, rec := range s.covers {
		if rec.by != nil && (rec.by.removed || rec.by.coveredBy != nil) {
			return fmt.Errorf("discarded state %s points to an invalid covering state", rec.state)
		}
	}
	return nil
}

func states(entries []*entry) []domain.AbstractState {
	out := make([]domain.AbstractState, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.state)
	}
	return out
}
