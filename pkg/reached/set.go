package reached

import (
	"errors"
	"fmt"

	list "github.com/bahlo/generic-list-go"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
)

var (
	ErrDuplicateState = errors.New("state already reached")
	ErrUnknownState   = errors.New("state not in reached set")
	ErrRootRemoval    = errors.New("cannot remove the root while other states are reached")
	ErrInvalidCover   = errors.New("invalid covering")
)

type entry struct {
	seq       uint64
	state     domain.AbstractState
	precision domain.Precision
	hash      uint64
	key       any
	parent    *entry
	children  []*entry
	waiting   *list.Element[*entry]
	coveredBy *entry
	target    bool
	removed   bool
}

type forward struct {
	old domain.AbstractState
	to  *entry
}

type coverRecord struct {
	state  domain.AbstractState
	parent *entry
	by     *entry
}

// Cover records a successor that was discarded because By covers it.
type Cover struct {
	State  domain.AbstractState
	Parent domain.AbstractState
	By     domain.AbstractState
}

// Option configures a Set.
type Option func(*Set)

// WithOrder sets the waitlist policy.
func WithOrder(o Order) Option {
	return func(s *Set) {
		s.order = o
	}
}

// WithDistance sets the estimate used by OrderDistance.
func WithDistance(fn DistanceFunc) Option {
	return func(s *Set) {
		if fn != nil {
			s.distance = fn
		}
	}
}

// Set is a reached set. It is not safe for concurrent use.
type Set struct {
	order    Order
	distance DistanceFunc

	entries    *orderedmap.OrderedMap[uint64, *entry]
	byHash     map[uint64][]*entry
	partitions map[any][]*entry
	waitlist   *list.List[*entry]
	forwards   map[uint64][]forward
	covers     []*coverRecord
	root       *entry
	seq        uint64
}

// New creates an empty reached set. The default order is DFS.
func New(opts ...Option) *Set {
	s := &Set{
		order:    OrderDFS,
		distance: unknownDistance,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.init()
	return s
}

func (s *Set) init() {
	s.entries = orderedmap.New[uint64, *entry]()
	s.byHash = make(map[uint64][]*entry)
	s.partitions = make(map[any][]*entry)
	s.waitlist = list.New[*entry]()
	s.forwards = make(map[uint64][]forward)
	s.covers = nil
	s.root = nil
}

// Order returns the waitlist policy.
func (s *Set) Order() Order { return s.order }

// Options returns options that recreate an empty set with the same policy.
func (s *Set) Options() []Option {
	return []Option{WithOrder(s.order), WithDistance(s.distance)}
}

// Add inserts a new state and queues it for expansion. Parent must be nil for
// the first state and an already reached state afterwards.
func (s *Set) Add(state domain.AbstractState, precision domain.Precision, parent domain.AbstractState) error {
	e, err := s.insert(state, precision, parent)
	if err != nil {
		return err
	}
	s.enqueue(e)
	return nil
}

// AddTarget inserts a frontier state that is never expanded.
func (s *Set) AddTarget(state domain.AbstractState, precision domain.Precision, parent domain.AbstractState) error {
	e, err := s.insert(state, precision, parent)
	if err != nil {
		return err
	}
	e.target = true
	return nil
}

func (s *Set) insert(state domain.AbstractState, precision domain.Precision, parent domain.AbstractState) (*entry, error) {
	if s.find(state) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateState, state)
	}
	var p *entry
	switch {
	case parent != nil:
		p = s.resolve(parent)
		if p == nil {
			return nil, fmt.Errorf("%w: parent %s of %s", ErrUnknownState, parent, state)
		}
	case s.root != nil:
		return nil, fmt.Errorf("reached set already has root %s; %s needs a parent", s.root.state, state)
	}

	s.seq++
	e := &entry{
		seq:       s.seq,
		state:     state,
		precision: precision,
		parent:    p,
	}
	s.index(e)
	s.entries.Set(e.seq, e)
	if p == nil {
		s.root = e
	} else {
		p.children = append(p.children, e)
	}
	return e, nil
}

// PopNext removes and returns the next waiting state.
func (s *Set) PopNext() (domain.AbstractState, domain.Precision, bool) {
	var el *list.Element[*entry]
	switch s.order {
	case OrderBFS:
		el = s.waitlist.Front()
	case OrderDistance:
		best := int(^uint(0) >> 1)
		for cur := s.waitlist.Front(); cur != nil; cur = cur.Next() {
			if d := s.distance(cur.Value.state); el == nil || d < best {
				el, best = cur, d
			}
		}
	default:
		el = s.waitlist.Back()
	}
	if el == nil {
		return nil, nil, false
	}
	e := s.waitlist.Remove(el)
	e.waiting = nil
	return e.state, e.precision, true
}

// ReAdd queues a reached state for expansion again.
func (s *Set) ReAdd(state domain.AbstractState) error {
	e := s.find(state)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownState, state)
	}
	e.coveredBy = nil
	s.enqueue(e)
	return nil
}

// Remove deletes a state. Its children are re-attached to its parent, states
// it covered are queued again and so are the parents of successors discarded
// because of it.
func (s *Set) Remove(state domain.AbstractState) error {
	e := s.find(state)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownState, state)
	}
	if e == s.root && s.entries.Len() > 1 {
		return ErrRootRemoval
	}

	for _, child := range e.children {
		child.parent = e.parent
		if e.parent != nil {
			e.parent.children = append(e.parent.children, child)
		}
	}
	s.unlinkFromParent(e)

	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		if other := pair.Value; other.coveredBy == e {
			other.coveredBy = nil
			s.enqueue(other)
		}
	}
	kept := s.covers[:0]
	for _, rec := range s.covers {
		switch {
		case rec.by == e:
			if rec.parent != nil && rec.parent != e && !rec.parent.removed {
				s.enqueue(rec.parent)
			}
		case rec.parent == e:
		default:
			kept = append(kept, rec)
		}
	}
	s.covers = kept

	s.detach(e)
	if e == s.root {
		s.root = nil
	}
	return nil
}

// Replace substitutes old by replacement, keeping its parent, children and
// covering edges, and queues it again. A nil precision keeps the old one.
// If replacement is already reached, old is folded into that state.
func (s *Set) Replace(old, replacement domain.AbstractState, precision domain.Precision) error {
	o := s.find(old)
	if o == nil {
		return fmt.Errorf("%w: %s", ErrUnknownState, old)
	}
	if precision == nil {
		precision = o.precision
	}
	if replacement.Equal(old) {
		o.precision = precision
		s.enqueue(o)
		return nil
	}

	if ex := s.find(replacement); ex != nil {
		if o == s.root {
			s.unlinkFromParent(ex)
			ex.parent = nil
			for _, child := range o.children {
				if child != ex {
					child.parent = ex
					ex.children = append(ex.children, child)
				}
			}
			s.root = ex
		} else {
			for _, child := range o.children {
				child.parent = o.parent
				o.parent.children = append(o.parent.children, child)
			}
			s.unlinkFromParent(o)
		}
		o.children = nil
		for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
			if other := pair.Value; other.coveredBy == o {
				other.coveredBy = ex
			}
		}
		for _, rec := range s.covers {
			if rec.by == o {
				rec.by = ex
			}
			if rec.parent == o {
				rec.parent = ex
			}
		}
		s.detach(o)
		s.addForward(old, ex)
		ex.precision = precision
		ex.coveredBy = nil
		s.enqueue(ex)
		return nil
	}

	s.unindex(o)
	o.state = replacement
	o.precision = precision
	s.index(o)
	s.addForward(old, o)
	s.enqueue(o)
	return nil
}

// MarkCoveredBy records that a reached state is covered by another reached
// state. The covered state leaves the waitlist. Covering chains are resolved
// so that the relation only points to states that are not covered themselves.
func (s *Set) MarkCoveredBy(state, covering domain.AbstractState) error {
	e := s.find(state)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownState, state)
	}
	c := s.find(covering)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrUnknownState, covering)
	}
	if e.target {
		return fmt.Errorf("%w: target %s cannot be covered", ErrInvalidCover, state)
	}
	for c.coveredBy != nil {
		c = c.coveredBy
	}
	if c == e {
		return fmt.Errorf("%w: %s would cover itself", ErrInvalidCover, state)
	}

	e.coveredBy = c
	s.dequeue(e)
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		if other := pair.Value; other.coveredBy == e {
			other.coveredBy = c
		}
	}
	for _, rec := range s.covers {
		if rec.by == e {
			rec.by = c
		}
	}
	return nil
}

// CoverSuccessor records that a successor of parent was discarded because
// covering (a reached state, or nil when unknown) covers it.
func (s *Set) CoverSuccessor(state, parent, covering domain.AbstractState) error {
	rec := &coverRecord{state: state}
	if parent != nil {
		rec.parent = s.resolve(parent)
	}
	if covering != nil {
		c := s.find(covering)
		if c == nil {
			return fmt.Errorf("%w: %s", ErrUnknownState, covering)
		}
		for c.coveredBy != nil {
			c = c.coveredBy
		}
		rec.by = c
	}
	s.covers = append(s.covers, rec)
	return nil
}

// Reset drops everything except the root, which is queued again.
func (s *Set) Reset() {
	if s.root == nil {
		s.init()
		return
	}
	state, precision := s.root.state, s.root.precision
	s.init()
	_ = s.Add(state, precision, nil)
}

func (s *Set) enqueue(e *entry) {
	if e.waiting != nil || e.target || e.removed {
		return
	}
	e.waiting = s.waitlist.PushBack(e)
}

func (s *Set) dequeue(e *entry) {
	if e.waiting != nil {
		s.waitlist.Remove(e.waiting)
		e.waiting = nil
	}
}

func (s *Set) detach(e *entry) {
	s.dequeue(e)
	s.unindex(e)
	s.entries.Delete(e.seq)
	e.removed = true
}

func (s *Set) unlinkFromParent(e *entry) {
	if e.parent == nil {
		return
	}
	siblings := e.parent.children
	for i, c := range siblings {
		if c == e {
			e.parent.children = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
}

func (s *Set) index(e *entry) {
	e.hash = e.state.Hash()
	e.key = ports.PartitionKeyOf(e.state)
	s.byHash[e.hash] = append(s.byHash[e.hash], e)
	s.partitions[e.key] = append(s.partitions[e.key], e)
}

func (s *Set) unindex(e *entry) {
	s.byHash[e.hash] = without(s.byHash[e.hash], e)
	if len(s.byHash[e.hash]) == 0 {
		delete(s.byHash, e.hash)
	}
	s.partitions[e.key] = without(s.partitions[e.key], e)
	if len(s.partitions[e.key]) == 0 {
		delete(s.partitions, e.key)
	}
}

func without(entries []*entry, e *entry) []*entry {
	for i, c := range entries {
		if c == e {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

func (s *Set) find(state domain.AbstractState) *entry {
	for _, e := range s.byHash[state.Hash()] {
		if e.state.Equal(state) {
			return e
		}
	}
	return nil
}

// resolve finds a state, following replacements performed by merges.
func (s *Set) resolve(state domain.AbstractState) *entry {
	if e := s.find(state); e != nil {
		return e
	}
	for _, f := range s.forwards[state.Hash()] {
		if f.old.Equal(state) && !f.to.removed {
			return f.to
		}
	}
	return nil
}

func (s *Set) addForward(old domain.AbstractState, to *entry) {
	h := old.Hash()
	s.forwards[h] = append(s.forwards[h], forward{old: old, to: to})
}
