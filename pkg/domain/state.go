package domain

// AbstractState is an approximate symbolic representation of a set of
// concrete program states. Implementations must be immutable once handed to
// the engine; Equal and Hash must agree (equal states share a hash).
type AbstractState interface {
	Equal(other AbstractState) bool
	Hash() uint64
	String() string
}

// Precision is configuration attached to a reached state that controls how
// coarse its abstraction may be. Like states, precisions are immutable.
type Precision interface {
	Equal(other Precision) bool
	Hash() uint64
	String() string
}

// NoPrecision is used by domains that have no notion of abstraction granularity.
type NoPrecision struct{}

func (NoPrecision) Equal(other Precision) bool {
	_, ok := other.(NoPrecision)
	return ok
}

func (NoPrecision) Hash() uint64   { return 0 }
func (NoPrecision) String() string { return "none" }

// ContainsState reports whether states holds an element equal to s.
func ContainsState(states []AbstractState, s AbstractState) bool {
	for _, candidate := range states {
		if candidate.Equal(s) {
			return true
		}
	}
	return false
}

// SameStates reports whether a and b hold the same states, ignoring order and duplicates.
func SameStates(a, b []AbstractState) bool {
	for _, s := range a {
		if !ContainsState(b, s) {
			return false
		}
	}
	for _, s := range b {
		if !ContainsState(a, s) {
			return false
		}
	}
	return true
}
