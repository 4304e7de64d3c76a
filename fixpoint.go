package fixpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/fixpoint/internal/logging"
	"github.com/aretw0/fixpoint/internal/runtime"
	"github.com/aretw0/fixpoint/pkg/bam"
	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
	"github.com/aretw0/fixpoint/pkg/reached"
)

// Verifier is the high-level entry point of the library. It owns one reached
// set: a run that ends interrupted can be resumed by calling Run again.
type Verifier struct {
	program *cfa.CFA
	cpa     ports.CPA
	top     ports.CPA
	bam     *bam.CPA
	engine  *runtime.Engine
	rs      *reached.Set

	logger            *slog.Logger
	hooks             domain.LifecycleHooks
	order             reached.Order
	stopAtFirstTarget bool
	maxIterations     int
	blocks            *cfa.Partitioning
	bamOpts           []bam.Option
	store             ports.ReportStore
	initial           domain.AbstractState
	// failed is the error of the first failed Run. The reached set is no
	// longer a sound basis for a verdict after it.
	failed error

	// Name labels reports and log records, e.g. the program file name.
	Name string
}

// Option defines a functional option for configuring the Verifier.
type Option func(*Verifier)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks for the engine and the block cache.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(v *Verifier) {
		v.hooks = hooks
	}
}

// WithWaitlistOrder selects the exploration order (default: DFS).
func WithWaitlistOrder(order reached.Order) Option {
	return func(v *Verifier) {
		v.order = order
	}
}

// WithStopAtFirstTarget halts the run as soon as a target state is found.
func WithStopAtFirstTarget(stop bool) Option {
	return func(v *Verifier) {
		v.stopAtFirstTarget = stop
	}
}

// WithMaxIterations bounds the number of expansions of one Run call.
// Hitting the bound yields an interrupted, inconclusive result.
func WithMaxIterations(n int) Option {
	return func(v *Verifier) {
		v.maxIterations = n
	}
}

// WithBlockAbstraction memoizes the analysis of the given blocks.
// The analysis must provide a reducer.
func WithBlockAbstraction(blocks *cfa.Partitioning, opts ...bam.Option) Option {
	return func(v *Verifier) {
		v.blocks = blocks
		v.bamOpts = opts
	}
}

// WithReportStore persists a report at the end of every Run.
func WithReportStore(store ports.ReportStore) Option {
	return func(v *Verifier) {
		v.store = store
	}
}

// WithName labels reports and log records.
func WithName(name string) Option {
	return func(v *Verifier) {
		v.Name = name
	}
}

// WithInitialState starts the exploration from state instead of the analysis
// initial state at the main entry.
func WithInitialState(state domain.AbstractState) Option {
	return func(v *Verifier) {
		v.initial = state
	}
}

// Result is the outcome of one Run call.
type Result struct {
	Outcome domain.Outcome
	Reached *reached.Set
	Targets []domain.AbstractState
	Report  *domain.Report
	// Cache is nil unless block abstraction is enabled.
	Cache *domain.CacheStats
}

// Safe reports whether the run proved that no target state is reachable.
func (r *Result) Safe() bool {
	return r.Outcome.IsConclusive() && len(r.Targets) == 0 && !r.Reached.HasWaitingState()
}

// New prepares a verifier for program using the given analysis.
func New(program *cfa.CFA, cpa ports.CPA, opts ...Option) (*Verifier, error) {
	if program == nil || cpa == nil {
		return nil, errors.New("program and analysis are required")
	}
	v := &Verifier{
		program: program,
		cpa:     cpa,
		order:   reached.OrderDFS,
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.logger == nil {
		v.logger = logging.NewNop()
	}
	if v.Name != "" {
		v.logger = v.logger.With("program", v.Name)
	}

	reachedOpts := []reached.Option{reached.WithOrder(v.order)}
	if v.order == reached.OrderDistance {
		reachedOpts = append(reachedOpts, reached.WithDistance(distanceToError(program)))
	}

	v.top = cpa
	if v.blocks != nil {
		bamOpts := append([]bam.Option{
			bam.WithLogger(v.logger),
			bam.WithLifecycleHooks(v.hooks),
			bam.WithReachedOptions(reachedOpts...),
		}, v.bamOpts...)
		b, err := bam.New(cpa, v.blocks, bamOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to enable block abstraction: %w", err)
		}
		v.bam = b
		v.top = b
	}

	v.engine = runtime.NewEngine(v.top,
		runtime.WithLogger(v.logger),
		runtime.WithLifecycleHooks(v.hooks),
		runtime.WithStopAtFirstTarget(v.stopAtFirstTarget),
		runtime.WithMaxIterations(v.maxIterations),
	)
	if v.bam != nil {
		v.bam.SetAlgorithm(v.engine)
	}

	rs, err := v.seed(reachedOpts)
	if err != nil {
		return nil, err
	}
	v.rs = rs
	return v, nil
}

func (v *Verifier) seed(opts []reached.Option) (*reached.Set, error) {
	entry, err := v.program.MainEntry()
	if err != nil {
		return nil, err
	}
	state := v.initial
	if state == nil {
		state = v.top.InitialState(entry)
	}
	rs := reached.New(opts...)
	if err := rs.Add(state, v.top.InitialPrecision(entry), nil); err != nil {
		return nil, fmt.Errorf("failed to seed reached set: %w", err)
	}
	return rs, nil
}

func distanceToError(program *cfa.CFA) reached.DistanceFunc {
	dist := cfa.DistancesToError(program)
	return func(s domain.AbstractState) int {
		n, ok := ports.LocationOf(s)
		if !ok {
			return math.MaxInt
		}
		return dist[n.ID]
	}
}

// Reached returns the reached set explored so far.
func (v *Verifier) Reached() *reached.Set { return v.rs }

// BAM returns the block cache layer, or nil when block abstraction is disabled.
func (v *Verifier) BAM() *bam.CPA { return v.bam }

// Run explores until the waitlist drains, a target halts the run, ctx is
// cancelled or an operator fails. After an interruption, calling Run again
// continues from where the previous call stopped.
//
// Operator failures are returned as errors together with a Failed result.
// A failure is final: later calls do not explore and report it again.
func (v *Verifier) Run(ctx context.Context) (*Result, error) {
	started := time.Now().UTC()
	before := v.engine.Iterations()

	var status domain.Status
	var err error
	switch {
	case v.failed != nil:
		v.logger.Warn("verifier already failed, not resuming", "error", v.failed)
		status, err = domain.StatusFailed, v.failed
	case v.bam != nil:
		status, err = v.bam.Run(ctx, v.rs)
	default:
		status, err = v.engine.Run(ctx, v.rs)
	}

	res := &Result{
		Reached: v.rs,
		Targets: v.rs.Targets(),
	}
	switch status {
	case domain.StatusCompleted:
		res.Outcome = domain.Completed()
	case domain.StatusInterrupted:
		res.Outcome = domain.Interrupted()
	default:
		res.Outcome = domain.Failed(err)
		v.failed = err
	}
	if v.bam != nil {
		stats := v.bam.Stats()
		res.Cache = &stats
	}

	res.Report = v.report(res, started, v.engine.Iterations()-before)
	v.logger.Info("verification finished",
		"outcome", res.Outcome.String(),
		"reached", res.Report.Reached,
		"targets", len(res.Targets),
		"iterations", res.Report.Iterations,
	)

	if v.store != nil {
		// An interrupted run still gets its report.
		if saveErr := v.store.Save(context.WithoutCancel(ctx), res.Report); saveErr != nil {
			v.logger.Error("failed to save report", "id", res.Report.ID, "error", saveErr)
			err = errors.Join(err, fmt.Errorf("failed to save report: %w", saveErr))
		}
	}
	return res, err
}

func (v *Verifier) report(res *Result, started time.Time, iterations int) *domain.Report {
	r := &domain.Report{
		ID:         uuid.NewString(),
		Program:    v.Name,
		Status:     res.Outcome.Status,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Iterations: iterations,
		Reached:    res.Reached.Size(),
		Waitlist:   res.Reached.WaitlistSize(),
		Cache:      res.Cache,
	}
	if res.Outcome.Reason != nil {
		r.Reason = res.Outcome.Reason.Error()
	}
	for _, t := range res.Targets {
		r.Targets = append(r.Targets, t.String())
	}
	return r
}
