package bam

import (
	"fmt"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/reached"
)

// ExitData describes how a state returned from a block was produced.
type ExitData struct {
	// Reduced is the exit (or target) state inside the block's reached set.
	Reduced domain.AbstractState
	// Entry is the non-reduced state at the block entry.
	Entry domain.AbstractState
	// Precision is the expanded precision for the returned state.
	Precision domain.Precision
	Block     *cfa.Block
	// Reached is the block reached set holding Reduced.
	Reached *reached.Set
}

type exitRow struct {
	data  ExitData
	owner *reached.Set
}

type provenanceRow struct {
	set   *reached.Set
	owner *reached.Set
}

type initialRow struct {
	initial domain.AbstractState
	owner   *reached.Set
}

// DataManager keeps the side tables of the block cache: exit data for
// returned states, (initial, exit) provenance, reduced-to-initial states and
// the nesting of reached sets used by Sweep.
type DataManager struct {
	cache      *Cache
	exits      *table[exitRow]
	provenance *table[provenanceRow]
	initials   *table[[]initialRow]
	children   map[*reached.Set][]*reached.Set
}

// NewDataManager creates empty side tables for the given cache.
func NewDataManager(cache *Cache) *DataManager {
	return &DataManager{
		cache:      cache,
		exits:      newTable[exitRow](),
		provenance: newTable[provenanceRow](),
		initials:   newTable[[]initialRow](),
		children:   make(map[*reached.Set][]*reached.Set),
	}
}

// RegisterExit records exit data for a returned state living in owner.
// A state equal to its own reduced exit carries no exit data.
func (m *DataManager) RegisterExit(state domain.AbstractState, data ExitData, owner *reached.Set) error {
	if state.Equal(data.Reduced) {
		return nil
	}
	steps := 0
	for cur := data.Reduced; ; steps++ {
		if cur.Equal(state) || steps > m.exits.len() {
			return &domain.CacheInconsistencyError{Reason: fmt.Sprintf("exit chain of %s is cyclic", state)}
		}
		next, ok := m.exits.get(cur)
		if !ok {
			break
		}
		cur = next.data.Reduced
	}
	m.exits.put(exitRow{data: data, owner: owner}, state)
	return nil
}

// ExitData returns the exit data recorded for a returned state.
func (m *DataManager) ExitData(state domain.AbstractState) (ExitData, bool) {
	row, ok := m.exits.get(state)
	return row.data, ok
}

// ExitChain follows exit data from an outer state to the innermost block,
// outermost first.
func (m *DataManager) ExitChain(state domain.AbstractState) ([]ExitData, error) {
	var chain []ExitData
	for cur := state; ; {
		row, ok := m.exits.get(cur)
		if !ok {
			return chain, nil
		}
		chain = append(chain, row.data)
		if len(chain) > m.exits.len() {
			return nil, &domain.CacheInconsistencyError{Reason: fmt.Sprintf("exit chain of %s is cyclic", state)}
		}
		cur = row.data.Reduced
	}
}

// InnermostState returns the state at the end of the exit chain.
func (m *DataManager) InnermostState(state domain.AbstractState) (domain.AbstractState, error) {
	chain, err := m.ExitChain(state)
	if err != nil || len(chain) == 0 {
		return state, err
	}
	return chain[len(chain)-1].Reduced, nil
}

// AlreadyReturnedFromSameBlock reports whether the exit chain of state
// passes through a return from block.
func (m *DataManager) AlreadyReturnedFromSameBlock(state domain.AbstractState, block *cfa.Block) bool {
	chain, err := m.ExitChain(state)
	if err != nil {
		return false
	}
	for _, d := range chain {
		if d.Block == block {
			return true
		}
	}
	return false
}

// RegisterInitial records that initial was reduced to reduced in owner.
func (m *DataManager) RegisterInitial(initial, reduced domain.AbstractState, owner *reached.Set) {
	rows, _ := m.initials.get(reduced)
	for _, r := range rows {
		if r.initial.Equal(initial) {
			return
		}
	}
	m.initials.put(append(rows, initialRow{initial: initial, owner: owner}), reduced)
}

// InitialStates returns the non-reduced states that reduced to reduced.
func (m *DataManager) InitialStates(reduced domain.AbstractState) []domain.AbstractState {
	rows, _ := m.initials.get(reduced)
	out := make([]domain.AbstractState, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.initial)
	}
	return out
}

// RegisterProvenance records which block reached set produced exit from initial.
func (m *DataManager) RegisterProvenance(initial, exit domain.AbstractState, set, owner *reached.Set) {
	m.provenance.put(provenanceRow{set: set, owner: owner}, initial, exit)
}

// ReachedSetFor returns the block reached set that produced exit from initial.
func (m *DataManager) ReachedSetFor(initial, exit domain.AbstractState) (*reached.Set, bool) {
	row, ok := m.provenance.get(initial, exit)
	return row.set, ok
}

// LinkChild records that parent used the block reached set child.
func (m *DataManager) LinkChild(parent, child *reached.Set) {
	if parent == nil || parent == child {
		return
	}
	for _, c := range m.children[parent] {
		if c == child {
			return
		}
	}
	m.children[parent] = append(m.children[parent], child)
}

// Sweep drops cached reached sets and side-table rows that are not reachable
// from the given roots. It returns the number of cache entries removed.
func (m *DataManager) Sweep(roots ...*reached.Set) int {
	live := make(map[*reached.Set]bool)
	queue := append([]*reached.Set(nil), roots...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == nil || live[cur] {
			continue
		}
		live[cur] = true
		queue = append(queue, m.children[cur]...)
	}

	removed := 0
	for _, e := range m.cache.Entries() {
		if !live[e.Reached] {
			m.cache.Remove(e)
			removed++
		}
	}
	m.exits.deleteWhere(func(r exitRow) bool { return !live[r.owner] || !live[r.data.Reached] })
	m.provenance.deleteWhere(func(r provenanceRow) bool { return !live[r.owner] || !live[r.set] })
	m.initials.deleteWhere(func(rows []initialRow) bool {
		for _, r := range rows {
			if live[r.owner] {
				return false
			}
		}
		return true
	})
	for parent := range m.children {
		if !live[parent] {
			delete(m.children, parent)
		}
	}
	return removed
}

// Clear drops every side-table row.
func (m *DataManager) Clear() {
	m.exits.clear()
	m.provenance.clear()
	m.initials.clear()
	m.children = make(map[*reached.Set][]*reached.Set)
}

// Size returns the number of exit-data, provenance and initial-state rows.
func (m *DataManager) Size() (exits, provenance, initials int) {
	return m.exits.len(), m.provenance.len(), m.initials.len()
}
