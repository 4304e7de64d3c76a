package bam

import (
	"context"
	"fmt"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
	"github.com/aretw0/fixpoint/pkg/reached"
)

type frame struct {
	block *cfa.Block
	entry *Entry
}

type transfer struct{ c *CPA }

func (t transfer) Successors(ctx context.Context, s domain.AbstractState, p domain.Precision) ([]domain.AbstractState, error) {
	loc, ok := ports.LocationOf(s)
	if !ok {
		return nil, domain.ErrNoLocation
	}
	if n := len(t.c.stack); n > 0 && t.c.stack[n-1].block.IsExit(loc) {
		return nil, nil
	}
	var out []domain.AbstractState
	for _, edge := range loc.Leaving() {
		succs, err := t.SuccessorsForEdge(ctx, s, p, edge)
		if err != nil {
			return nil, err
		}
		out = append(out, succs...)
	}
	return out, nil
}

func (t transfer) SuccessorsForEdge(ctx context.Context, s domain.AbstractState, p domain.Precision, edge *cfa.Edge) ([]domain.AbstractState, error) {
	if edge.Kind == cfa.CallEdge {
		if block, ok := t.c.partitioning.BlockForEntry(edge.To); ok {
			return t.c.callBlock(ctx, s, p, edge, block)
		}
	}
	return t.c.inner.Transfer().SuccessorsForEdge(ctx, s, p, edge)
}

func (c *CPA) callBlock(ctx context.Context, caller domain.AbstractState, p domain.Precision, edge *cfa.Edge, block *cfa.Block) ([]domain.AbstractState, error) {
	entries, err := c.inner.Transfer().SuccessorsForEdge(ctx, caller, p, edge)
	if err != nil {
		return nil, err
	}
	var out []domain.AbstractState
	for _, entry := range entries {
		succs, err := c.analyzeBlock(ctx, caller, entry, p, edge, block)
		if err != nil {
			return nil, err
		}
		out = append(out, succs...)
	}
	return out, nil
}

func (c *CPA) analyzeBlock(ctx context.Context, caller, entry domain.AbstractState, p domain.Precision, edge *cfa.Edge, block *cfa.Block) ([]domain.AbstractState, error) {
	reducedState, err := c.reducer.ReduceState(entry, block, edge.From)
	if err != nil {
		return nil, domain.WrapOperator("reduce", entry, err)
	}
	reducedPrec := c.reducer.ReducePrecision(p, block)
	owner := c.currentSet()
	depth := len(c.stack) + 1
	c.data.RegisterInitial(entry, reducedState, owner)
	c.stats.Lookups++

	if idx := c.inProgress(reducedState, reducedPrec, block); idx >= 0 {
		c.stats.PartialHits++
		c.emitBlock(ctx, c.hooks.OnBlockEnter, domain.EventBlockEnter, block, depth, domain.LookupPartial, 0)
		if c.recursion != RecursionFixpoint {
			return nil, &domain.RecursionError{Block: block.ID(), Depth: depth}
		}
		c.stats.Hits++
		outer := c.stack[idx].entry
		outer.recursive = true
		for _, inner := range c.stack[idx+1:] {
			inner.entry.assume(outer)
		}
		c.logger.Debug("reusing assumed block summary", "block", block.ID(), "depth", depth, "exits", len(outer.summary))
		return c.returnFrom(caller, entry, p, edge, block, outer.Reached, owner, outer.summary, nil)
	}

	e, lookup, err := c.lookup(reducedState, reducedPrec, block)
	if err != nil {
		return nil, err
	}
	c.emitBlock(ctx, c.hooks.OnBlockEnter, domain.EventBlockEnter, block, depth, lookup, 0)
	c.logger.Debug("block lookup", "block", block.ID(), "depth", depth, "result", string(lookup), "state", reducedState.String())
	c.data.LinkChild(owner, e.Reached)

	tainted := false
	if e.pending() {
		if tainted, err = c.runBlock(ctx, e, depth); err != nil {
			return nil, err
		}
	}

	exits := exitStates(e.Reached, block)
	out, err := c.returnFrom(caller, entry, p, edge, block, e.Reached, owner, exits, e.Reached.Targets())
	if err != nil {
		return nil, err
	}
	if tainted {
		c.cache.Remove(e)
	}
	c.emitBlock(ctx, c.hooks.OnBlockExit, domain.EventBlockExit, block, depth, lookup, len(exits))
	return out, nil
}

func (c *CPA) lookup(state domain.AbstractState, precision domain.Precision, block *cfa.Block) (*Entry, domain.CacheLookup, error) {
	if e, ok := c.cache.Get(state, precision, block); ok {
		if e.pending() {
			c.stats.Resumed++
			return e, domain.LookupResumed, nil
		}
		c.stats.Hits++
		return e, domain.LookupHit, nil
	}
	if c.aggressive {
		if e, ok := c.cache.GetApproximate(state, precision, block, c.maxDistance); ok {
			c.stats.Approximate++
			return e, domain.LookupApproximate, nil
		}
	}
	c.stats.Misses++
	rs := reached.New(c.reachedOpts...)
	if err := rs.Add(state, precision, nil); err != nil {
		return nil, "", err
	}
	e, err := c.cache.Put(state, precision, block, rs)
	if err != nil {
		return nil, "", err
	}
	return e, domain.LookupMiss, nil
}

// inProgress returns the stack index of a frame computing the same key, or -1.
// With aggressive caching a frame whose precision is close enough to be
// reused counts as the same key.
func (c *CPA) inProgress(state domain.AbstractState, precision domain.Precision, block *cfa.Block) int {
	for i, f := range c.stack {
		if f.block != block || !f.entry.State.Equal(state) {
			continue
		}
		if f.entry.Precision.Equal(precision) {
			return i
		}
		if c.aggressive && c.reducer.PrecisionDistance(f.entry.Precision, precision) <= c.maxDistance {
			return i
		}
	}
	return -1
}

// runBlock explores a cached reached set inside a new stack frame. Under the
// fixpoint policy it repeats the exploration until the summary assumed for
// recursive calls matches the computed exits. It reports whether the result
// depends on an assumption made by an outer frame.
//
// The fixpoint state lives on the entry, so an interrupted block resumes the
// iteration it was in. A block that used the summary of an outer frame
// starts over when that frame is gone or has moved to another summary.
func (c *CPA) runBlock(ctx context.Context, e *Entry, depth int) (bool, error) {
	if !e.assumptionsHold(c.stack) {
		c.logger.Debug("restarting block computed under an outdated summary", "block", e.Block.ID())
		e.restart()
	}
	c.stack = append(c.stack, &frame{block: e.Block, entry: e})
	defer func() { c.stack = c.stack[:len(c.stack)-1] }()
	if depth > c.stats.MaxDepth {
		c.stats.MaxDepth = depth
	}

	for {
		status, err := c.algorithm.Run(ctx, e.Reached)
		if err != nil {
			return false, err
		}
		if status == domain.StatusInterrupted {
			return false, fmt.Errorf("block %s: %w", e.Block.ID(), domain.ErrInterrupted)
		}
		if !e.recursive {
			e.done = true
			return e.tainted(), nil
		}
		exits := exitStates(e.Reached, e.Block)
		if domain.SameStates(exits, e.summary) {
			e.done = true
			return e.tainted(), nil
		}
		c.logger.Debug("recomputing recursive block", "block", e.Block.ID(), "exits", len(exits))
		e.summary = exits
		e.recursive = false
		e.generation++
		e.Reached.Reset()
	}
}

// returnFrom expands reduced exit states into the caller context, rebuilds
// them at the return location and records their provenance. Reduced targets
// are expanded but keep their location inside the block.
func (c *CPA) returnFrom(caller, entry domain.AbstractState, p domain.Precision, edge *cfa.Edge, block *cfa.Block, rs, owner *reached.Set, exits, targets []domain.AbstractState) ([]domain.AbstractState, error) {
	out := make([]domain.AbstractState, 0, len(exits)+len(targets))
	for _, x := range exits {
		expanded, err := c.reducer.ExpandState(entry, block, x)
		if err != nil {
			return nil, domain.WrapOperator("expand", x, err)
		}
		rebuilt, err := c.reducer.RebuildStateAfterFunctionCall(caller, entry, expanded, edge.ReturnNode)
		if err != nil {
			return nil, domain.WrapOperator("rebuild", expanded, err)
		}
		if err := c.register(rebuilt, x, entry, p, block, rs, owner); err != nil {
			return nil, err
		}
		out = append(out, rebuilt)
	}
	for _, x := range targets {
		expanded, err := c.reducer.ExpandState(entry, block, x)
		if err != nil {
			return nil, domain.WrapOperator("expand", x, err)
		}
		if err := c.register(expanded, x, entry, p, block, rs, owner); err != nil {
			return nil, err
		}
		out = append(out, expanded)
	}
	return out, nil
}

func (c *CPA) register(state, reduced, entry domain.AbstractState, p domain.Precision, block *cfa.Block, rs, owner *reached.Set) error {
	reducedPrec, ok := rs.Precision(reduced)
	if !ok {
		reducedPrec = c.reducer.ReducePrecision(p, block)
	}
	data := ExitData{
		Reduced:   reduced,
		Entry:     entry,
		Precision: c.reducer.ExpandPrecision(p, block, reducedPrec),
		Block:     block,
		Reached:   rs,
	}
	if err := c.data.RegisterExit(state, data, owner); err != nil {
		return err
	}
	c.data.RegisterProvenance(entry, state, rs, owner)
	return nil
}

// exitStates returns the uncovered states of rs located at an exit of block.
func exitStates(rs *reached.Set, block *cfa.Block) []domain.AbstractState {
	var out []domain.AbstractState
	for _, s := range rs.States() {
		loc, ok := ports.LocationOf(s)
		if !ok || !block.IsExit(loc) || rs.IsCovered(s) || rs.IsTarget(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (c *CPA) emitBlock(ctx context.Context, hook func(context.Context, *domain.BlockEvent), typ domain.EventType, block *cfa.Block, depth int, lookup domain.CacheLookup, exits int) {
	if hook == nil {
		return
	}
	ev := domain.NewBlockEvent(typ, block.ID(), depth)
	ev.Lookup = lookup
	ev.ExitStates = exits
	hook(ctx, ev)
}
