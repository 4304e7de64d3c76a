package bam_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/fixpoint/internal/runtime"
	"github.com/aretw0/fixpoint/pkg/bam"
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

type harness struct {
	program *cfa.CFA
	cpa     *bam.CPA
	rs      *reached.Set
}

func newHarness(t *testing.T, program *cfa.CFA, opts ...bam.Option) *harness {
	t.Helper()
	return harnessFor(t, program, newAnalysis(t), opts...)
}

func newAnalysis(t *testing.T) *composite.CPA {
	t.Helper()
	v, err := value.New(value.Options{})
	require.NoError(t, err)
	inner, err := composite.New(location.New(), v)
	require.NoError(t, err)
	return inner
}

func harnessFor(t *testing.T, program *cfa.CFA, inner ports.CPA, opts ...bam.Option) *harness {
	t.Helper()
	c, err := bam.New(inner, cfa.FunctionBlocks(program), opts...)
	require.NoError(t, err)
	c.SetAlgorithm(runtime.NewEngine(c))

	entry, err := program.MainEntry()
	require.NoError(t, err)
	rs := reached.New()
	require.NoError(t, rs.Add(c.InitialState(entry), c.InitialPrecision(entry), nil))
	return &harness{program: program, cpa: c, rs: rs}
}

func (h *harness) at(t *testing.T, name string, vals map[string]int64) domain.AbstractState {
	t.Helper()
	n, ok := h.program.Node(name)
	require.True(t, ok)
	return composite.NewState(location.NewState(n), value.NewState(vals))
}

// checkProgram calls a block checking x == 1 three times: twice with x = 1
// and once with x = 2.
func checkProgram(t *testing.T) *cfa.CFA {
	t.Helper()
	b := dsl.New("main")
	b.Function("main").
		Edge("M0", "M1", "x := 1").
		Call("M1", "M2", "check").
		Call("M2", "M3", "check").
		Edge("M3", "M4", "x := 2").
		Call("M4", "M5", "check")
	b.Function("check").
		Edge("C0", "CE", "[x != 1]").
		Edge("C0", "C1", "[x == 1]").
		Error("CE").
		Exit("C1")
	program, err := b.Build()
	require.NoError(t, err)
	return program
}

// recursiveProgram calls f, which either returns with x = 5 or recurses
// with an unchanged state.
func recursiveProgram(t *testing.T) *cfa.CFA {
	t.Helper()
	b := dsl.New("main")
	b.Function("main").
		Edge("M0", "M1", "x := 1").
		Call("M1", "M2", "f").
		Edge("M2", "ERR", "[x != 5]").
		Error("ERR")
	b.Function("f").
		Entry("F0").
		Edge("F0", "F1", "").
		Call("F1", "F2", "f").
		Edge("F2", "F3", "x := 5").
		Edge("F0", "F3", "x := 5").
		Exit("F3")
	program, err := b.Build()
	require.NoError(t, err)
	return program
}

func TestBAM_CompleteHitAndTargets(t *testing.T) {
	h := newHarness(t, checkProgram(t))

	status, err := h.cpa.Run(context.Background(), h.rs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)

	stats := h.cpa.Stats()
	assert.Equal(t, 3, stats.Lookups)
	assert.Equal(t, 2, stats.Misses)
	assert.Equal(t, 1, stats.Hits)
	assert.Equal(t, 2, stats.CachedSets)
	assert.Equal(t, 1, stats.MaxDepth)

	assert.True(t, h.rs.Contains(h.at(t, "M3", map[string]int64{"x": 1})))
	assert.False(t, h.rs.Contains(h.at(t, "M5", map[string]int64{"x": 2})), "the check fails for x = 2")
	assert.Equal(t, []domain.AbstractState{h.at(t, "CE", map[string]int64{"x": 2})}, h.rs.Targets())
	require.NoError(t, h.rs.CheckInvariants())
}

func TestBAM_ExitData(t *testing.T) {
	h := newHarness(t, checkProgram(t))
	_, err := h.cpa.Run(context.Background(), h.rs)
	require.NoError(t, err)

	returned := h.at(t, "M2", map[string]int64{"x": 1})
	data, ok := h.cpa.Data().ExitData(returned)
	require.True(t, ok)
	assert.Equal(t, "check", data.Block.ID())
	assert.True(t, data.Reduced.Equal(h.at(t, "C1", map[string]int64{"x": 1})))

	assert.True(t, h.cpa.Data().AlreadyReturnedFromSameBlock(returned, data.Block))
	assert.False(t, h.cpa.Data().AlreadyReturnedFromSameBlock(h.at(t, "M1", map[string]int64{"x": 1}), data.Block))

	initial := h.at(t, "C0", map[string]int64{"x": 1})
	rs, ok := h.cpa.Data().ReachedSetFor(initial, returned)
	require.True(t, ok)
	assert.True(t, rs.Contains(data.Reduced))
	assert.Equal(t, []domain.AbstractState{initial}, h.cpa.Data().InitialStates(initial))
}

func TestBAM_NestedExitChain(t *testing.T) {
	b := dsl.New("main")
	b.Function("main").
		Edge("M0", "M1", "x := 1").
		Call("M1", "M2", "outer")
	b.Function("outer").
		Call("O0", "O1", "inner")
	b.Function("inner").
		Edge("I0", "I1", "x := x + 1")
	program, err := b.Build()
	require.NoError(t, err)

	h := newHarness(t, program)
	_, err = h.cpa.Run(context.Background(), h.rs)
	require.NoError(t, err)
	assert.Equal(t, 2, h.cpa.Stats().MaxDepth)

	returned := h.at(t, "M2", map[string]int64{"x": 2})
	require.True(t, h.rs.Contains(returned))

	chain, err := h.cpa.Data().ExitChain(returned)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "outer", chain[0].Block.ID())
	assert.Equal(t, "inner", chain[1].Block.ID())

	innermost, err := h.cpa.Data().InnermostState(returned)
	require.NoError(t, err)
	assert.True(t, innermost.Equal(h.at(t, "I1", map[string]int64{"x": 2})))
}

func TestBAM_RecursionFailsByDefault(t *testing.T) {
	h := newHarness(t, recursiveProgram(t))

	status, err := h.cpa.Run(context.Background(), h.rs)
	assert.Equal(t, domain.StatusFailed, status)
	require.ErrorIs(t, err, domain.ErrUnboundedRecursion)

	var re *domain.RecursionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "f", re.Block)
	assert.Equal(t, 2, re.Depth)
	assert.Equal(t, 1, h.cpa.Stats().PartialHits)

	var te *domain.TransferError
	assert.False(t, errors.As(err, &te), "recursion is not a transfer failure")
	assert.True(t, h.rs.HasWaitingState(), "the call site is queued again")
}

func TestBAM_RecursionFixpoint(t *testing.T) {
	h := newHarness(t, recursiveProgram(t), bam.WithRecursionPolicy(bam.RecursionFixpoint))

	status, err := h.cpa.Run(context.Background(), h.rs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)

	stats := h.cpa.Stats()
	assert.Equal(t, 1, stats.Misses, "the recursive call reuses the outer computation")
	assert.GreaterOrEqual(t, stats.PartialHits, 1)
	assert.Equal(t, stats.PartialHits, stats.Hits, "each recursive use of the summary counts as a hit")
	assert.Equal(t, 1, stats.CachedSets)
	assert.True(t, h.rs.Contains(h.at(t, "M2", map[string]int64{"x": 5})))
	assert.Empty(t, h.rs.Targets())
}

// level tags a precision with the call depth it was reduced at.
type level struct {
	domain.Precision
	n int
}

func (l level) Equal(o domain.Precision) bool {
	other, ok := o.(level)
	return ok && other.n == l.n && l.Precision.Equal(other.Precision)
}

func (l level) String() string { return fmt.Sprintf("%s@%d", l.Precision, l.n) }

func unwrap(p domain.Precision) domain.Precision {
	if l, ok := p.(level); ok {
		return l.Precision
	}
	return p
}

func depthOf(p domain.Precision) int {
	l, _ := p.(level)
	return l.n
}

// deepening reduces every block entry to a precision one level deeper than
// the caller's, so recursive calls never repeat an exact cache key.
type deepening struct{ *composite.CPA }

func (d deepening) Transfer() ports.TransferRelation { return deepeningTransfer{d.CPA.Transfer()} }
func (d deepening) Merge() ports.MergeOperator       { return deepeningMerge{d.CPA.Merge()} }
func (d deepening) Stop() ports.StopOperator         { return deepeningStop{d.CPA.Stop()} }
func (d deepening) PrecisionAdjustment() ports.PrecisionAdjustment {
	return deepeningAdjustment{d.CPA.PrecisionAdjustment()}
}
func (d deepening) InitialPrecision(n *cfa.Node) domain.Precision {
	return level{Precision: d.CPA.InitialPrecision(n)}
}
func (d deepening) Reducer() ports.Reducer { return deepeningReducer{d.CPA.Reducer()} }

type deepeningTransfer struct{ ports.TransferRelation }

func (t deepeningTransfer) Successors(ctx context.Context, s domain.AbstractState, p domain.Precision) ([]domain.AbstractState, error) {
	return t.TransferRelation.Successors(ctx, s, unwrap(p))
}

func (t deepeningTransfer) SuccessorsForEdge(ctx context.Context, s domain.AbstractState, p domain.Precision, edge *cfa.Edge) ([]domain.AbstractState, error) {
	return t.TransferRelation.SuccessorsForEdge(ctx, s, unwrap(p), edge)
}

type deepeningMerge struct{ ports.MergeOperator }

func (m deepeningMerge) Merge(s, r domain.AbstractState, p domain.Precision) (domain.AbstractState, error) {
	return m.MergeOperator.Merge(s, r, unwrap(p))
}

type deepeningStop struct{ ports.StopOperator }

func (s deepeningStop) Stop(state domain.AbstractState, candidates []domain.AbstractState, p domain.Precision) (bool, error) {
	return s.StopOperator.Stop(state, candidates, unwrap(p))
}

type deepeningAdjustment struct{ ports.PrecisionAdjustment }

func (a deepeningAdjustment) Adjust(ctx context.Context, s domain.AbstractState, p domain.Precision, rv ports.ReachedView) (domain.Adjustment, error) {
	adj, err := a.PrecisionAdjustment.Adjust(ctx, s, unwrap(p), rv)
	if err != nil {
		return adj, err
	}
	adj.Precision = level{Precision: adj.Precision, n: depthOf(p)}
	return adj, nil
}

type deepeningReducer struct{ ports.Reducer }

func (r deepeningReducer) ReducePrecision(p domain.Precision, b *cfa.Block) domain.Precision {
	return level{Precision: r.Reducer.ReducePrecision(unwrap(p), b), n: depthOf(p) + 1}
}

func (r deepeningReducer) ExpandPrecision(root domain.Precision, b *cfa.Block, reduced domain.Precision) domain.Precision {
	return level{Precision: r.Reducer.ExpandPrecision(unwrap(root), b, unwrap(reduced)), n: depthOf(root)}
}

func (r deepeningReducer) HashKey(s domain.AbstractState, p domain.Precision) uint64 {
	return r.Reducer.HashKey(s, unwrap(p))
}

func (r deepeningReducer) PrecisionDistance(a, b domain.Precision) int {
	d := depthOf(a) - depthOf(b)
	if d < 0 {
		d = -d
	}
	return d + r.Reducer.PrecisionDistance(unwrap(a), unwrap(b))
}

func TestBAM_AggressiveCaching(t *testing.T) {
	b := dsl.New("main")
	b.Function("main").
		Edge("M0", "M1", "x := 1").
		Call("M1", "M2", "check").
		Call("M2", "M3", "outer")
	b.Function("outer").
		Call("O0", "O1", "check")
	b.Function("check").
		Edge("C0", "CE", "[x != 1]").
		Edge("C0", "C1", "[x == 1]").
		Error("CE").
		Exit("C1")
	program, err := b.Build()
	require.NoError(t, err)

	exact := harnessFor(t, program, deepening{newAnalysis(t)})
	_, err = exact.cpa.Run(context.Background(), exact.rs)
	require.NoError(t, err)
	assert.Equal(t, 3, exact.cpa.Stats().Misses, "the nested check has a deeper precision")
	assert.Zero(t, exact.cpa.Stats().Approximate)

	h := harnessFor(t, program, deepening{newAnalysis(t)}, bam.WithAggressiveCaching(1))
	status, err := h.cpa.Run(context.Background(), h.rs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)

	stats := h.cpa.Stats()
	assert.Equal(t, 3, stats.Lookups)
	assert.Equal(t, 2, stats.Misses)
	assert.Equal(t, 1, stats.Approximate, "the nested check reuses the shallower entry")
	assert.Equal(t, 2, stats.CachedSets)
	assert.True(t, h.rs.Contains(h.at(t, "M3", map[string]int64{"x": 1})))
	assert.Empty(t, h.rs.Targets())
}

func TestBAM_AggressiveCachingSkipsBlocksInProgress(t *testing.T) {
	t.Run("fail", func(t *testing.T) {
		h := harnessFor(t, recursiveProgram(t), deepening{newAnalysis(t)}, bam.WithAggressiveCaching(1))
		status, err := h.cpa.Run(context.Background(), h.rs)
		assert.Equal(t, domain.StatusFailed, status)
		require.ErrorIs(t, err, domain.ErrUnboundedRecursion)

		stats := h.cpa.Stats()
		assert.Equal(t, 1, stats.PartialHits)
		assert.Zero(t, stats.Approximate, "a set still being explored is never reused")
	})

	t.Run("fixpoint", func(t *testing.T) {
		h := harnessFor(t, recursiveProgram(t), deepening{newAnalysis(t)},
			bam.WithAggressiveCaching(1), bam.WithRecursionPolicy(bam.RecursionFixpoint))
		status, err := h.cpa.Run(context.Background(), h.rs)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, status)

		stats := h.cpa.Stats()
		assert.Equal(t, 1, stats.Misses)
		assert.Zero(t, stats.Approximate)
		assert.GreaterOrEqual(t, stats.PartialHits, 1)
		assert.True(t, h.rs.Contains(h.at(t, "M2", map[string]int64{"x": 5})))
		assert.Empty(t, h.rs.Targets())
	})
}

func TestBAM_RecursionFixpointResumes(t *testing.T) {
	b := dsl.New("main")
	b.Function("main").
		Edge("M0", "M1", "x := 1").
		Call("M1", "M2", "f").
		Edge("M2", "ERR", "[x == 7]").
		Error("ERR")
	b.Function("f").
		Edge("F0", "F3", "x := 5").
		Edge("F0", "F1", "").
		Call("F1", "F2", "f").
		Edge("F2", "F3", "x := 7").
		Exit("F3")
	program, err := b.Build()
	require.NoError(t, err)

	// Interrupt on every other block entry.
	ctx, cancel := context.WithCancel(context.Background())
	entries := 0
	h := newHarness(t, program, bam.WithRecursionPolicy(bam.RecursionFixpoint), bam.WithLifecycleHooks(domain.LifecycleHooks{
		OnBlockEnter: func(context.Context, *domain.BlockEvent) {
			entries++
			if entries%2 == 1 {
				cancel()
			}
		},
	}))

	status, err := h.cpa.Run(ctx, h.rs)
	require.NoError(t, err)
	for runs := 1; status == domain.StatusInterrupted; runs++ {
		require.Less(t, runs, 100)
		ctx, cancel = context.WithCancel(context.Background())
		status, err = h.cpa.Run(ctx, h.rs)
		require.NoError(t, err)
	}
	cancel()

	assert.Equal(t, domain.StatusCompleted, status)
	assert.Equal(t, []domain.AbstractState{h.at(t, "ERR", map[string]int64{"x": 7})}, h.rs.Targets())
	require.NoError(t, h.rs.CheckInvariants())
}

func TestBAM_InterruptAndResume(t *testing.T) {
	reference := newHarness(t, checkProgram(t))
	_, err := reference.cpa.Run(context.Background(), reference.rs)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, checkProgram(t), bam.WithLifecycleHooks(domain.LifecycleHooks{
		OnBlockEnter: func(context.Context, *domain.BlockEvent) { cancel() },
	}))

	status, err := h.cpa.Run(ctx, h.rs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInterrupted, status)
	assert.Equal(t, 1, h.cpa.Cache().Len())
	require.NoError(t, h.rs.CheckInvariants())

	status, err = h.cpa.Run(context.Background(), h.rs)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, status)
	assert.Equal(t, 1, h.cpa.Stats().Resumed)
	assert.Equal(t, reference.rs.States(), h.rs.States())
	assert.Equal(t, reference.rs.Targets(), h.rs.Targets())
}

func TestBAM_Sweep(t *testing.T) {
	h := newHarness(t, checkProgram(t))
	_, err := h.cpa.Run(context.Background(), h.rs)
	require.NoError(t, err)

	assert.Equal(t, 0, h.cpa.Sweep(), "everything is reachable from the last root")
	assert.Equal(t, 2, h.cpa.Cache().Len())

	assert.Equal(t, 2, h.cpa.Sweep(reached.New()))
	assert.Equal(t, 0, h.cpa.Cache().Len())
	exits, provenance, initials := h.cpa.Data().Size()
	assert.Zero(t, exits)
	assert.Zero(t, provenance)
	assert.Zero(t, initials)
}

func TestBAM_RequiresReducer(t *testing.T) {
	_, err := bam.New(noReducer{location.New()}, cfa.NewPartitioning())
	assert.ErrorIs(t, err, bam.ErrNoReducer)

	h := newHarness(t, checkProgram(t))
	h.cpa.SetAlgorithm(nil)
	_, err = h.cpa.Run(context.Background(), h.rs)
	assert.ErrorIs(t, err, bam.ErrNoAlgorithm)
}

type noReducer struct{ *location.CPA }

func (noReducer) Reducer() any { return nil }

func TestParseRecursionPolicy(t *testing.T) {
	p, err := bam.ParseRecursionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, bam.RecursionFail, p)

	p, err = bam.ParseRecursionPolicy("fixpoint")
	require.NoError(t, err)
	assert.Equal(t, bam.RecursionFixpoint, p)

	_, err = bam.ParseRecursionPolicy("ignore")
	assert.Error(t, err)
}
