package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/fixpoint/internal/runtime"
	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/composite"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/domains/location"
	"github.com/aretw0/fixpoint/pkg/domains/value"
	"github.com/aretw0/fixpoint/pkg/dsl"
	"github.com/aretw0/fixpoint/pkg/ports"
	"github.com/aretw0/fixpoint/pkg/reached"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analysis(t *testing.T, opts value.Options) *composite.CPA {
	t.Helper()
	v, err := value.New(opts)
	require.NoError(t, err)
	c, err := composite.New(location.New(), v)
	require.NoError(t, err)
	return c
}

func node(t *testing.T, program *cfa.CFA, name string) *cfa.Node {
	t.Helper()
	n, ok := program.Node(name)
	require.True(t, ok, "missing node %s", name)
	return n
}

func at(n *cfa.Node, vals map[string]int64) domain.AbstractState {
	return composite.NewState(location.NewState(n), value.NewState(vals))
}

func seed(t *testing.T, c ports.CPA, program *cfa.CFA, opts ...reached.Option) *reached.Set {
	t.Helper()
	entry, err := program.MainEntry()
	require.NoError(t, err)
	rs := reached.New(opts...)
	require.NoError(t, rs.Add(c.InitialState(entry), c.InitialPrecision(entry), nil))
	return rs
}

func loopProgram(t *testing.T) *cfa.CFA {
	t.Helper()
	b := dsl.New("main")
	b.Function("main").
		Edge("M0", "B", "x := 0").
		Edge("B", "C", "[x < 3]").
		Edge("C", "B", "x := x + 1").
		Edge("B", "D", "[x >= 3]").
		Edge("D", "ERR", "[x != 3]").
		Error("ERR").
		Exit("D")
	program, err := b.Build()
	require.NoError(t, err)
	return program
}

func TestEngine_SingleEdge(t *testing.T) {
	b := dsl.New("main")
	b.Function("main").Edge("A", "B", "x := x + 1")
	program, err := b.Build()
	require.NoError(t, err)

	c := analysis(t, value.Options{Merge: "sep", Stop: "never"})
	a := node(t, program, "A")
	rs := reached.New()
	require.NoError(t, rs.Add(at(a, map[string]int64{"x": 0}), c.InitialPrecision(a), nil))

	status, err := runtime.NewEngine(c).Run(context.Background(), rs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)
	assert.Equal(t, 2, rs.Size())
	assert.True(t, rs.Contains(at(node(t, program, "B"), map[string]int64{"x": 1})))
	assert.Equal(t, 0, rs.WaitlistSize())
	require.NoError(t, rs.CheckInvariants())
}

func TestEngine_LoopUnrollsWithSep(t *testing.T) {
	program := loopProgram(t)
	c := analysis(t, value.Options{})
	rs := seed(t, c, program)

	status, err := runtime.NewEngine(c).Run(context.Background(), rs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)
	assert.Empty(t, rs.Targets(), "x is exactly 3 after the loop")
	assert.True(t, rs.Contains(at(node(t, program, "D"), map[string]int64{"x": 3})))
	require.NoError(t, rs.CheckInvariants())
}

func TestEngine_JoinLosesPrecision(t *testing.T) {
	program := loopProgram(t)
	c := analysis(t, value.Options{Merge: "join"})
	rs := seed(t, c, program)

	status, err := runtime.NewEngine(c).Run(context.Background(), rs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)
	assert.NotEmpty(t, rs.Targets(), "joining the loop head forgets x")
	assert.Len(t, rs.Candidates(at(node(t, program, "B"), nil)), 1, "a single state remains at the loop head")
	require.NoError(t, rs.CheckInvariants())
}

func TestEngine_StopSoundness(t *testing.T) {
	program := loopProgram(t)
	c := analysis(t, value.Options{Merge: "join"})
	rs := seed(t, c, program)

	_, err := runtime.NewEngine(c).Run(context.Background(), rs)
	require.NoError(t, err)

	covers := rs.Covers()
	require.NotEmpty(t, covers)
	for _, cover := range covers {
		require.NotNil(t, cover.By)
		le, err := c.Domain().IsLessOrEqual(cover.State, cover.By)
		require.NoError(t, err)
		assert.True(t, le, "%s must be covered by %s", cover.State, cover.By)
	}
}

func TestEngine_StopAtFirstTarget(t *testing.T) {
	b := dsl.New("main")
	b.Function("main").
		Edge("A", "E1", "").
		Edge("A", "E2", "").
		Error("E1", "E2")
	program, err := b.Build()
	require.NoError(t, err)

	c := analysis(t, value.Options{})
	rs := seed(t, c, program)
	status, err := runtime.NewEngine(c, runtime.WithStopAtFirstTarget(true)).Run(context.Background(), rs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)
	assert.Len(t, rs.Targets(), 1)

	rs = seed(t, c, program)
	_, err = runtime.NewEngine(c).Run(context.Background(), rs)
	require.NoError(t, err)
	assert.Len(t, rs.Targets(), 2)
}

func TestEngine_InterruptAndResume(t *testing.T) {
	program := loopProgram(t)
	c := analysis(t, value.Options{})

	reference := seed(t, c, program)
	_, err := runtime.NewEngine(c).Run(context.Background(), reference)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rs := seed(t, c, program)
	status, err := runtime.NewEngine(c).Run(ctx, rs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInterrupted, status)
	assert.Equal(t, 1, rs.WaitlistSize(), "nothing was consumed")

	status, err = runtime.NewEngine(c, runtime.WithMaxIterations(2)).Run(context.Background(), rs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInterrupted, status)
	require.NoError(t, rs.CheckInvariants())

	status, err = runtime.NewEngine(c).Run(context.Background(), rs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)
	assert.Equal(t, reference.States(), rs.States(), "resuming yields the uninterrupted result")
}

func TestEngine_Hooks(t *testing.T) {
	program := loopProgram(t)
	c := analysis(t, value.Options{Merge: "join"})
	rs := seed(t, c, program)

	counts := make(map[domain.EventType]int)
	record := func(_ context.Context, e *domain.StateEvent) { counts[e.Type]++ }
	hooks := domain.LifecycleHooks{
		OnStatePopped:   record,
		OnStateAdded:    record,
		OnStateMerged:   record,
		OnStateCovered:  record,
		OnTargetReached: record,
	}

	engine := runtime.NewEngine(c, runtime.WithLifecycleHooks(hooks))
	_, err := engine.Run(context.Background(), rs)
	require.NoError(t, err)

	assert.Equal(t, engine.Iterations(), counts[domain.EventStatePopped])
	assert.Equal(t, len(rs.Targets()), counts[domain.EventTargetReached])
	assert.Positive(t, counts[domain.EventStateMerged])
	assert.Positive(t, counts[domain.EventStateCovered])
}

type failingTransfer struct{ ports.TransferRelation }

var errBoom = errors.New("boom")

func (failingTransfer) Successors(context.Context, domain.AbstractState, domain.Precision) ([]domain.AbstractState, error) {
	return nil, errBoom
}

type failingCPA struct{ *composite.CPA }

func (failingCPA) Transfer() ports.TransferRelation { return failingTransfer{} }

func TestEngine_TransferFailure(t *testing.T) {
	program := loopProgram(t)
	c := failingCPA{analysis(t, value.Options{})}
	rs := seed(t, c, program)

	status, err := runtime.NewEngine(c).Run(context.Background(), rs)
	assert.Equal(t, domain.StatusFailed, status)
	require.ErrorIs(t, err, errBoom)

	var te *domain.TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "transfer", te.Op)
}

func TestEngine_FailureKeepsStateWaiting(t *testing.T) {
	program := loopProgram(t)
	c := failingCPA{analysis(t, value.Options{})}
	rs := seed(t, c, program)

	_, err := runtime.NewEngine(c).Run(context.Background(), rs)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, rs.WaitlistSize(), "the failed state is still unexplored")
	require.NoError(t, rs.CheckInvariants())

	status, err := runtime.NewEngine(c).Run(context.Background(), rs)
	assert.Equal(t, domain.StatusFailed, status, "a second run does not drain the waitlist silently")
	require.ErrorIs(t, err, errBoom)
}
