package value

import (
	"context"
	"testing"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edge(t *testing.T, label string) *cfa.Edge {
	t.Helper()
	b := dsl.New("main")
	b.Function("main").Edge("A", "B", label)
	program, err := b.Build()
	require.NoError(t, err)
	a, _ := program.Node("A")
	return a.Leaving()[0]
}

func successors(t *testing.T, s *State, label string) []domain.AbstractState {
	t.Helper()
	c, err := New(Options{})
	require.NoError(t, err)
	out, err := c.Transfer().SuccessorsForEdge(context.Background(), s, TrackAll(), edge(t, label))
	require.NoError(t, err)
	return out
}

func TestTransfer(t *testing.T) {
	s := NewState(map[string]int64{"x": 1})

	t.Run("Assign known", func(t *testing.T) {
		out := successors(t, s, "x := x * 3 + 1")
		require.Len(t, out, 1)
		assert.True(t, out[0].Equal(NewState(map[string]int64{"x": 4})))
	})

	t.Run("Assign unknown forgets", func(t *testing.T) {
		out := successors(t, s, "x := y + 1")
		require.Len(t, out, 1)
		assert.Equal(t, 0, out[0].(*State).Len())
	})

	t.Run("Havoc", func(t *testing.T) {
		out := successors(t, s, "x := nondet()")
		require.Len(t, out, 1)
		_, known := out[0].(*State).Get("x")
		assert.False(t, known)
	})

	t.Run("Infeasible assume", func(t *testing.T) {
		assert.Empty(t, successors(t, s, "[x > 1]"))
	})

	t.Run("Assume refines unknown variable", func(t *testing.T) {
		out := successors(t, s, "[y == x + 1 && x < 5]")
		require.Len(t, out, 1)
		y, known := out[0].(*State).Get("y")
		require.True(t, known)
		assert.Equal(t, int64(2), y)
	})

	t.Run("Division by zero is unknown", func(t *testing.T) {
		out := successors(t, s, "x := 1 / (x - 1)")
		require.Len(t, out, 1)
		assert.Equal(t, 0, out[0].(*State).Len())
	})

	t.Run("Blank keeps state", func(t *testing.T) {
		out := successors(t, s, "")
		require.Len(t, out, 1)
		assert.Same(t, s, out[0])
	})
}

func TestDomain(t *testing.T) {
	d := valueDomain{}
	precise := NewState(map[string]int64{"x": 1, "y": 2})
	coarse := NewState(map[string]int64{"x": 1})
	other := NewState(map[string]int64{"x": 3, "y": 2})

	le, err := d.IsLessOrEqual(precise, coarse)
	require.NoError(t, err)
	assert.True(t, le)

	le, _ = d.IsLessOrEqual(coarse, precise)
	assert.False(t, le)

	joined, err := d.Join(precise, other)
	require.NoError(t, err)
	assert.True(t, joined.Equal(NewState(map[string]int64{"y": 2})))

	for _, s := range []domain.AbstractState{precise, other} {
		le, _ := d.IsLessOrEqual(s, joined)
		assert.True(t, le, "join is an upper bound of %s", s)
	}
}

func TestReducer_RoundTrip(t *testing.T) {
	entry := &cfa.Node{ID: 0, Name: "F0"}
	block := cfa.NewBlock("f", entry, []*cfa.Node{{ID: 1, Name: "F1"}}, nil, []string{"x"})
	r := reducer{}

	root := NewState(map[string]int64{"x": 1, "y": 2})
	reduced, err := r.ReduceState(root, block, nil)
	require.NoError(t, err)
	assert.True(t, reduced.Equal(NewState(map[string]int64{"x": 1})))

	restored, err := r.ExpandState(root, block, reduced)
	require.NoError(t, err)
	assert.True(t, restored.Equal(root), "expand(reduce(s)) = s")

	expanded, err := r.ExpandState(root, block, NewState(map[string]int64{"x": 5}))
	require.NoError(t, err)
	assert.True(t, expanded.Equal(NewState(map[string]int64{"x": 5, "y": 2})))

	// Variables the block forgets are not restored from the caller.
	expanded, err = r.ExpandState(root, block, NewState(nil))
	require.NoError(t, err)
	assert.True(t, expanded.Equal(NewState(map[string]int64{"y": 2})))
}

func TestReducer_Precision(t *testing.T) {
	entry := &cfa.Node{ID: 0, Name: "F0"}
	block := cfa.NewBlock("f", entry, nil, nil, []string{"x"})
	r := reducer{}

	assert.True(t, r.ReducePrecision(Track("x", "y"), block).Equal(Track("x")))
	assert.True(t, r.ReducePrecision(TrackAll(), block).Equal(TrackAll()))
	assert.Equal(t, 0, r.PrecisionDistance(Track("x"), Track("x")))
	assert.Equal(t, 2, r.PrecisionDistance(Track("x", "y"), Track("x", "z")))
	assert.Equal(t, r.HashKey(NewState(map[string]int64{"x": 1}), Track("x")), r.HashKey(NewState(map[string]int64{"x": 1}), Track("x")))
}

func TestAbstraction(t *testing.T) {
	s := NewState(map[string]int64{"x": 1, "y": 2})
	adj, err := abstraction{}.Adjust(context.Background(), s, Track("y"), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionContinue, adj.Action)
	assert.True(t, adj.State.Equal(NewState(map[string]int64{"y": 2})))
}

func TestDecodeOptions(t *testing.T) {
	opts, err := DecodeOptions(map[string]any{"merge": "join", "tracked": []any{"x", "y"}})
	require.NoError(t, err)
	assert.Equal(t, Options{Merge: "join", Tracked: []string{"x", "y"}}, opts)

	_, err = DecodeOptions(map[string]any{"unknown": true})
	assert.Error(t, err)

	_, err = New(Options{Merge: "widen"})
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "{a=-1, b=2}", NewState(map[string]int64{"b": 2, "a": -1}).String())
	assert.Equal(t, "{x,y}", Track("y", "x").String())
}
