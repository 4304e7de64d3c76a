package reached

import (
	"fmt"
	"testing"

	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type st struct {
	loc string
	v   int
}

func (s st) Equal(o domain.AbstractState) bool {
	other, ok := o.(st)
	return ok && other == s
}
func (s st) Hash() uint64      { return uint64(len(s.loc))*1000 + uint64(s.v) }
func (s st) String() string    { return fmt.Sprintf("(%s,%d)", s.loc, s.v) }
func (s st) PartitionKey() any { return s.loc }

var prec = domain.NoPrecision{}

func chainSet(t *testing.T, opts ...Option) *Set {
	t.Helper()
	rs := New(opts...)
	require.NoError(t, rs.Add(st{"A", 0}, prec, nil))
	require.NoError(t, rs.Add(st{"B", 1}, prec, st{"A", 0}))
	require.NoError(t, rs.Add(st{"C", 2}, prec, st{"A", 0}))
	return rs
}

func popAll(rs *Set) []domain.AbstractState {
	var out []domain.AbstractState
	for {
		s, _, ok := rs.PopNext()
		if !ok {
			return out
		}
		out = append(out, s)
	}
}

func TestSet_WaitlistOrders(t *testing.T) {
	t.Run("DFS", func(t *testing.T) {
		rs := chainSet(t)
		assert.Equal(t, []domain.AbstractState{st{"C", 2}, st{"B", 1}, st{"A", 0}}, popAll(rs))
	})

	t.Run("BFS", func(t *testing.T) {
		rs := chainSet(t, WithOrder(OrderBFS))
		assert.Equal(t, []domain.AbstractState{st{"A", 0}, st{"B", 1}, st{"C", 2}}, popAll(rs))
	})

	t.Run("Distance with ties", func(t *testing.T) {
		dist := map[string]int{"A": 5, "B": 1, "C": 1}
		rs := chainSet(t, WithOrder(OrderDistance), WithDistance(func(s domain.AbstractState) int {
			return dist[s.(st).loc]
		}))
		assert.Equal(t, []domain.AbstractState{st{"B", 1}, st{"C", 2}, st{"A", 0}}, popAll(rs))
	})
}

func TestSet_AddErrors(t *testing.T) {
	rs := chainSet(t)

	assert.ErrorIs(t, rs.Add(st{"B", 1}, prec, st{"A", 0}), ErrDuplicateState)
	assert.ErrorIs(t, rs.Add(st{"D", 3}, prec, st{"Z", 9}), ErrUnknownState)
	assert.Error(t, rs.Add(st{"D", 3}, prec, nil), "second root must be rejected")
	assert.Equal(t, 3, rs.Size())
}

func TestSet_CandidatesSharePartition(t *testing.T) {
	rs := chainSet(t)
	require.NoError(t, rs.Add(st{"B", 7}, prec, st{"C", 2}))

	assert.Equal(t, []domain.AbstractState{st{"B", 1}, st{"B", 7}}, rs.Candidates(st{"B", 99}))
	assert.Empty(t, rs.Candidates(st{"Q", 0}))

	require.NoError(t, rs.MarkCoveredBy(st{"B", 1}, st{"B", 7}))
	assert.Equal(t, []domain.AbstractState{st{"B", 7}}, rs.Candidates(st{"B", 0}))
}

func TestSet_MarkCoveredBy(t *testing.T) {
	rs := chainSet(t)
	require.NoError(t, rs.Add(st{"B", 2}, prec, st{"B", 1}))
	require.NoError(t, rs.Add(st{"B", 3}, prec, st{"B", 2}))

	require.NoError(t, rs.MarkCoveredBy(st{"B", 1}, st{"B", 2}))
	assert.False(t, rs.IsWaiting(st{"B", 1}))

	// Covering B2 redirects B1 to the new covering state.
	require.NoError(t, rs.MarkCoveredBy(st{"B", 2}, st{"B", 3}))
	by, ok := rs.CoveredBy(st{"B", 1})
	require.True(t, ok)
	assert.Equal(t, st{"B", 3}, by)

	// B3 -> B1 would resolve to B3 covering itself.
	assert.ErrorIs(t, rs.MarkCoveredBy(st{"B", 3}, st{"B", 1}), ErrInvalidCover)
	assert.ErrorIs(t, rs.MarkCoveredBy(st{"A", 0}, st{"A", 0}), ErrInvalidCover)

	require.NoError(t, rs.CheckInvariants())
}

func TestSet_ReplaceKeepsStructure(t *testing.T) {
	rs := chainSet(t)
	require.NoError(t, rs.Add(st{"D", 3}, prec, st{"B", 1}))
	popAll(rs)

	require.NoError(t, rs.Replace(st{"B", 1}, st{"B", 5}, nil))

	assert.False(t, rs.Contains(st{"B", 1}))
	assert.True(t, rs.IsWaiting(st{"B", 5}), "replaced entries are re-queued")
	parent, ok := rs.Parent(st{"B", 5})
	require.True(t, ok)
	assert.Equal(t, st{"A", 0}, parent)
	assert.Equal(t, []domain.AbstractState{st{"D", 3}}, rs.Children(st{"B", 5}))

	// A successor computed from the old state still finds its parent.
	require.NoError(t, rs.Add(st{"E", 4}, prec, st{"B", 1}))
	parent, _ = rs.Parent(st{"E", 4})
	assert.Equal(t, st{"B", 5}, parent)

	require.NoError(t, rs.CheckInvariants())
}

func TestSet_ReplaceIntoExistingState(t *testing.T) {
	rs := chainSet(t)
	require.NoError(t, rs.Add(st{"C", 9}, prec, st{"B", 1}))
	require.NoError(t, rs.Add(st{"D", 4}, prec, st{"C", 2}))

	require.NoError(t, rs.Replace(st{"C", 2}, st{"C", 9}, nil))

	assert.Equal(t, 4, rs.Size())
	parent, _ := rs.Parent(st{"D", 4})
	assert.Equal(t, st{"A", 0}, parent)
	require.NoError(t, rs.CheckInvariants())
}

func TestSet_Remove(t *testing.T) {
	rs := chainSet(t)
	require.NoError(t, rs.Add(st{"D", 3}, prec, st{"B", 1}))
	require.NoError(t, rs.Add(st{"D", 4}, prec, st{"C", 2}))
	popAll(rs)
	require.NoError(t, rs.MarkCoveredBy(st{"D", 3}, st{"D", 4}))
	require.NoError(t, rs.CoverSuccessor(st{"C", 1}, st{"B", 1}, st{"C", 2}))

	require.NoError(t, rs.Remove(st{"C", 2}))

	parent, _ := rs.Parent(st{"D", 4})
	assert.Equal(t, st{"A", 0}, parent, "children move to the removed state's parent")
	assert.Empty(t, rs.Covers())
	assert.True(t, rs.IsWaiting(st{"B", 1}), "parent of a discarded successor is re-explored")

	require.NoError(t, rs.Remove(st{"D", 4}))
	assert.False(t, rs.IsCovered(st{"D", 3}))
	assert.True(t, rs.IsWaiting(st{"D", 3}), "formerly covered states are re-explored")

	assert.ErrorIs(t, rs.Remove(st{"A", 0}), ErrRootRemoval)
	assert.ErrorIs(t, rs.Remove(st{"Z", 0}), ErrUnknownState)
	require.NoError(t, rs.CheckInvariants())
}

func TestSet_TargetsAndReset(t *testing.T) {
	rs := chainSet(t)
	require.NoError(t, rs.AddTarget(st{"ERR", 1}, prec, st{"B", 1}))

	assert.Equal(t, []domain.AbstractState{st{"ERR", 1}}, rs.Targets())
	assert.False(t, rs.IsWaiting(st{"ERR", 1}))
	assert.ErrorIs(t, rs.MarkCoveredBy(st{"ERR", 1}, st{"A", 0}), ErrInvalidCover)
	require.NoError(t, rs.CheckInvariants())

	rs.Reset()
	assert.Equal(t, 1, rs.Size())
	assert.Equal(t, []domain.AbstractState{st{"A", 0}}, rs.Waiting())
	assert.Empty(t, rs.Targets())
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderDFS, o)

	_, err = ParseOrder("random")
	assert.Error(t, err)
}
