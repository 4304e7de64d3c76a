package bam

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
	"github.com/aretw0/fixpoint/pkg/reached"
)

// Entry is one cached block analysis.
type Entry struct {
	State     domain.AbstractState
	Precision domain.Precision
	Block     *cfa.Block
	Reached   *reached.Set
	hash      uint64

	// done is set once an exploration of Reached ran to completion.
	done bool
	// summary is the set of reduced exit states handed to recursive calls.
	summary []domain.AbstractState
	// recursive is set when the current iteration used summary.
	recursive bool
	// generation counts the summaries this entry went through.
	generation int
	// assumed maps outer entries whose summary this one used to the
	// generation it saw.
	assumed map[*Entry]int
}

// pending reports whether the entry still needs exploring.
func (e *Entry) pending() bool {
	return !e.done || e.Reached.HasWaitingState()
}

func (e *Entry) tainted() bool { return len(e.assumed) > 0 }

func (e *Entry) assume(outer *Entry) {
	if e.assumed == nil {
		e.assumed = make(map[*Entry]int)
	}
	e.assumed[outer] = outer.generation
}

// assumptionsHold reports whether every outer summary e relies on is still
// on the stack at the generation e saw.
func (e *Entry) assumptionsHold(stack []*frame) bool {
	for outer, generation := range e.assumed {
		if outer.generation != generation || !onStack(stack, outer) {
			return false
		}
	}
	return true
}

// restart drops everything computed for the entry.
func (e *Entry) restart() {
	e.Reached.Reset()
	e.done = false
	e.summary = nil
	e.recursive = false
	e.assumed = nil
	e.generation++
}

func onStack(stack []*frame, e *Entry) bool {
	for _, f := range stack {
		if f.entry == e {
			return true
		}
	}
	return false
}

// Cache maps (reduced state, reduced precision, block) to the reached set
// computed for it. Lookups are deterministic and insertion ordered.
type Cache struct {
	reducer ports.Reducer
	buckets map[uint64][]*Entry
	order   []*Entry
}

// NewCache creates an empty cache using the reducer's hash keys.
func NewCache(reducer ports.Reducer) *Cache {
	return &Cache{
		reducer: reducer,
		buckets: make(map[uint64][]*Entry),
	}
}

func (c *Cache) key(state domain.AbstractState, precision domain.Precision, block *cfa.Block) uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], c.reducer.HashKey(state, precision))
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(block.ID())
	return d.Sum64()
}

// Get returns the entry for the exact key.
func (c *Cache) Get(state domain.AbstractState, precision domain.Precision, block *cfa.Block) (*Entry, bool) {
	for _, e := range c.buckets[c.key(state, precision, block)] {
		if e.Block == block && e.State.Equal(state) && e.Precision.Equal(precision) {
			return e, true
		}
	}
	return nil, false
}

// GetApproximate returns the entry for the same state and block whose
// precision is closest to the requested one, within maxDistance.
func (c *Cache) GetApproximate(state domain.AbstractState, precision domain.Precision, block *cfa.Block, maxDistance int) (*Entry, bool) {
	var best *Entry
	bestDistance := maxDistance + 1
	for _, e := range c.order {
		if e.Block != block || !e.State.Equal(state) {
			continue
		}
		if d := c.reducer.PrecisionDistance(e.Precision, precision); d < bestDistance {
			best, bestDistance = e, d
		}
	}
	return best, best != nil
}

// Put stores a new entry. Storing a key twice is an inconsistency.
func (c *Cache) Put(state domain.AbstractState, precision domain.Precision, block *cfa.Block, rs *reached.Set) (*Entry, error) {
	if _, exists := c.Get(state, precision, block); exists {
		return nil, &domain.CacheInconsistencyError{Reason: fmt.Sprintf("block %s already cached for %s", block.ID(), state)}
	}
	e := &Entry{State: state, Precision: precision, Block: block, Reached: rs, hash: c.key(state, precision, block)}
	c.buckets[e.hash] = append(c.buckets[e.hash], e)
	c.order = append(c.order, e)
	return e, nil
}

// Remove drops an entry.
func (c *Cache) Remove(e *Entry) {
	bucket := c.buckets[e.hash]
	for i, other := range bucket {
		if other == e {
			c.buckets[e.hash] = append(bucket[:i:i], bucket[i+1:]...)
			break
		}
	}
	if len(c.buckets[e.hash]) == 0 {
		delete(c.buckets, e.hash)
	}
	for i, other := range c.order {
		if other == e {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
}

// Entries returns the cached entries in insertion order.
func (c *Cache) Entries() []*Entry {
	return append([]*Entry(nil), c.order...)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return len(c.order) }

// Clear drops every entry.
func (c *Cache) Clear() {
	c.buckets = make(map[uint64][]*Entry)
	c.order = nil
}
