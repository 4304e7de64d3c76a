package ports

import "github.com/aretw0/fixpoint/pkg/cfa"

// Partitionable states expose a key; merge and stop only compare states that share it.
// Keys must be comparable.
type Partitionable interface {
	PartitionKey() any
}

// Locatable states carry a program location.
type Locatable interface {
	Location() *cfa.Node
}

// Targetable states can mark themselves as targets (property violations).
type Targetable interface {
	IsTarget() bool
}

// LocationOf returns the location of s when it carries one.
func LocationOf(s any) (*cfa.Node, bool) {
	l, ok := s.(Locatable)
	if !ok {
		return nil, false
	}
	n := l.Location()
	return n, n != nil
}

// IsTarget reports whether s marks itself as a target.
func IsTarget(s any) bool {
	t, ok := s.(Targetable)
	return ok && t.IsTarget()
}

// PartitionKeyOf returns the partition key of s, or nil when s is not partitionable.
func PartitionKeyOf(s any) any {
	p, ok := s.(Partitionable)
	if !ok {
		return nil
	}
	return p.PartitionKey()
}
