package bam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/fixpoint/internal/logging"
	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
	"github.com/aretw0/fixpoint/pkg/reached"
)

// ErrNoReducer is returned when the wrapped analysis cannot reduce states.
var ErrNoReducer = errors.New("bam: wrapped analysis does not provide a reducer")

// ErrNoAlgorithm is returned by Run before SetAlgorithm was called.
var ErrNoAlgorithm = errors.New("bam: no algorithm set")

// RecursionPolicy decides what happens on a partial cache hit.
type RecursionPolicy string

const (
	// RecursionFail reports a *domain.RecursionError.
	RecursionFail RecursionPolicy = "fail"
	// RecursionFixpoint reuses an assumed summary and recomputes the block
	// until the summary is stable.
	RecursionFixpoint RecursionPolicy = "fixpoint"
)

// ParseRecursionPolicy validates a configured policy. The empty string means fail.
func ParseRecursionPolicy(name string) (RecursionPolicy, error) {
	switch RecursionPolicy(name) {
	case "", RecursionFail:
		return RecursionFail, nil
	case RecursionFixpoint:
		return RecursionFixpoint, nil
	default:
		return "", fmt.Errorf("unknown recursion policy %q (expected fail or fixpoint)", name)
	}
}

// Algorithm explores a reached set. The block cache calls it for nested blocks.
type Algorithm interface {
	Run(ctx context.Context, rs *reached.Set) (domain.Status, error)
}

// Option configures the CPA.
type Option func(*CPA)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *CPA) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLifecycleHooks registers block enter/exit callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *CPA) {
		c.hooks = hooks
	}
}

// WithRecursionPolicy sets the partial-hit policy.
func WithRecursionPolicy(p RecursionPolicy) Option {
	return func(c *CPA) {
		c.recursion = p
	}
}

// WithAggressiveCaching reuses entries whose precision differs from the
// requested one by at most maxDistance.
func WithAggressiveCaching(maxDistance int) Option {
	return func(c *CPA) {
		c.aggressive = true
		c.maxDistance = maxDistance
	}
}

// WithReachedOptions configures the reached sets created for blocks.
func WithReachedOptions(opts ...reached.Option) Option {
	return func(c *CPA) {
		c.reachedOpts = opts
	}
}

// CPA wraps an analysis with block abstraction memoization.
// It is single-threaded: one Run at a time.
type CPA struct {
	inner        ports.CPA
	reducer      ports.Reducer
	partitioning *cfa.Partitioning
	algorithm    Algorithm

	cache *Cache
	data  *DataManager
	stack []*frame
	root  *reached.Set
	stats domain.CacheStats

	recursion   RecursionPolicy
	aggressive  bool
	maxDistance int
	reachedOpts []reached.Option
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
}

// New wraps inner. Calls into block entries of partitioning are memoized.
func New(inner ports.CPA, partitioning *cfa.Partitioning, opts ...Option) (*CPA, error) {
	rp, ok := inner.(ports.ReducerProvider)
	if !ok || rp.Reducer() == nil {
		return nil, ErrNoReducer
	}
	c := &CPA{
		inner:        inner,
		reducer:      rp.Reducer(),
		partitioning: partitioning,
		recursion:    RecursionFail,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = NewCache(c.reducer)
	c.data = NewDataManager(c.cache)
	return c, nil
}

// SetAlgorithm injects the algorithm used for nested blocks.
func (c *CPA) SetAlgorithm(a Algorithm) { c.algorithm = a }

// Run explores the top-level reached set with the injected algorithm.
func (c *CPA) Run(ctx context.Context, rs *reached.Set) (domain.Status, error) {
	if c.algorithm == nil {
		return domain.StatusFailed, ErrNoAlgorithm
	}
	c.root = rs
	c.stack = nil
	return c.algorithm.Run(ctx, rs)
}

func (c *CPA) Domain() ports.AbstractDomain                   { return c.inner.Domain() }
func (c *CPA) Transfer() ports.TransferRelation               { return transfer{c} }
func (c *CPA) Merge() ports.MergeOperator                     { return c.inner.Merge() }
func (c *CPA) Stop() ports.StopOperator                       { return c.inner.Stop() }
func (c *CPA) PrecisionAdjustment() ports.PrecisionAdjustment { return adjustment{c} }

func (c *CPA) InitialState(node *cfa.Node) domain.AbstractState { return c.inner.InitialState(node) }
func (c *CPA) InitialPrecision(node *cfa.Node) domain.Precision {
	return c.inner.InitialPrecision(node)
}

// Cache exposes the block cache.
func (c *CPA) Cache() *Cache { return c.cache }

// Data exposes the side tables.
func (c *CPA) Data() *DataManager { return c.data }

// Stats returns the cache counters.
func (c *CPA) Stats() domain.CacheStats {
	s := c.stats
	s.CachedSets = c.cache.Len()
	return s
}

// Sweep drops cached data unreachable from roots, or from the last top-level
// reached set when none are given.
func (c *CPA) Sweep(roots ...*reached.Set) int {
	if len(roots) == 0 {
		roots = []*reached.Set{c.root}
	}
	removed := c.data.Sweep(roots...)
	c.logger.Debug("swept block cache", "removed", removed, "remaining", c.cache.Len())
	return removed
}

// Clear drops the whole cache, e.g. after a precision refinement.
func (c *CPA) Clear() {
	c.cache.Clear()
	c.data.Clear()
	c.stats = domain.CacheStats{}
}

// currentSet is the reached set the algorithm is exploring right now.
func (c *CPA) currentSet() *reached.Set {
	if n := len(c.stack); n > 0 {
		return c.stack[n-1].entry.Reached
	}
	return c.root
}

// adjustment restores the expanded precision of states returned from blocks
// before delegating to the wrapped analysis.
type adjustment struct{ c *CPA }

func (a adjustment) Adjust(ctx context.Context, s domain.AbstractState, p domain.Precision, rv ports.ReachedView) (domain.Adjustment, error) {
	if d, ok := a.c.data.ExitData(s); ok && d.Precision != nil {
		p = d.Precision
	}
	return a.c.inner.PrecisionAdjustment().Adjust(ctx, s, p, rv)
}
