package bam

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/reached"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type num int

func (n num) Equal(o domain.AbstractState) bool {
	other, ok := o.(num)
	return ok && other == n
}
func (n num) Hash() uint64   { return uint64(n) }
func (n num) String() string { return fmt.Sprintf("#%d", int(n)) }

type width int

func (w width) Equal(o domain.Precision) bool {
	other, ok := o.(width)
	return ok && other == w
}
func (w width) Hash() uint64   { return uint64(w) }
func (w width) String() string { return fmt.Sprintf("w%d", int(w)) }

type numReducer struct{}

func (numReducer) ReduceState(s domain.AbstractState, _ *cfa.Block, _ *cfa.Node) (domain.AbstractState, error) {
	return s, nil
}
func (numReducer) ExpandState(_ domain.AbstractState, _ *cfa.Block, r domain.AbstractState) (domain.AbstractState, error) {
	return r, nil
}
func (numReducer) ReducePrecision(p domain.Precision, _ *cfa.Block) domain.Precision { return p }
func (numReducer) ExpandPrecision(p domain.Precision, _ *cfa.Block, _ domain.Precision) domain.Precision {
	return p
}
func (numReducer) RebuildStateAfterFunctionCall(_, _, e domain.AbstractState, _ *cfa.Node) (domain.AbstractState, error) {
	return e, nil
}
func (numReducer) HashKey(s domain.AbstractState, p domain.Precision) uint64 {
	return s.Hash()<<8 | p.Hash()
}
func (numReducer) PrecisionDistance(a, b domain.Precision) int {
	d := int(a.(width)) - int(b.(width))
	if d < 0 {
		return -d
	}
	return d
}

func testBlock(id string) *cfa.Block {
	return cfa.NewBlock(id, &cfa.Node{ID: 0, Name: id + "0"}, nil, nil, nil)
}

func TestCache_GetPut(t *testing.T) {
	c := NewCache(numReducer{})
	f, g := testBlock("f"), testBlock("g")

	e, err := c.Put(num(1), width(2), f, reached.New())
	require.NoError(t, err)

	got, ok := c.Get(num(1), width(2), f)
	require.True(t, ok)
	assert.Same(t, e, got)

	_, ok = c.Get(num(1), width(2), g)
	assert.False(t, ok, "the block is part of the key")
	_, ok = c.Get(num(1), width(3), f)
	assert.False(t, ok, "the precision is part of the key")

	_, err = c.Put(num(1), width(2), f, reached.New())
	assert.True(t, errors.Is(err, domain.ErrCacheInconsistency))

	c.Remove(e)
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get(num(1), width(2), f)
	assert.False(t, ok)
}

func TestCache_GetApproximate(t *testing.T) {
	c := NewCache(numReducer{})
	f := testBlock("f")
	_, err := c.Put(num(1), width(5), f, reached.New())
	require.NoError(t, err)
	near, err := c.Put(num(1), width(3), f, reached.New())
	require.NoError(t, err)

	got, ok := c.GetApproximate(num(1), width(2), f, 1)
	require.True(t, ok)
	assert.Same(t, near, got)

	_, ok = c.GetApproximate(num(1), width(0), f, 2)
	assert.False(t, ok)
	_, ok = c.GetApproximate(num(2), width(3), f, 10)
	assert.False(t, ok)
}

func TestDataManager_DetectsCycles(t *testing.T) {
	m := NewDataManager(NewCache(numReducer{}))
	f := testBlock("f")
	owner := reached.New()

	require.NoError(t, m.RegisterExit(num(1), ExitData{Reduced: num(2), Block: f}, owner))
	require.NoError(t, m.RegisterExit(num(2), ExitData{Reduced: num(3), Block: f}, owner))
	err := m.RegisterExit(num(3), ExitData{Reduced: num(1), Block: f}, owner)
	assert.ErrorIs(t, err, domain.ErrCacheInconsistency)

	chain, err := m.ExitChain(num(1))
	require.NoError(t, err)
	assert.Len(t, chain, 2)

	// Self references carry no exit data.
	require.NoError(t, m.RegisterExit(num(9), ExitData{Reduced: num(9), Block: f}, owner))
	_, ok := m.ExitData(num(9))
	assert.False(t, ok)
}
