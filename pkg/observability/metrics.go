package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/fixpoint/pkg/domain"
)

// Metrics exposes engine activity as Prometheus collectors.
type Metrics struct {
	States       *prometheus.CounterVec
	Targets      prometheus.Counter
	BlockLookups *prometheus.CounterVec
	BlockExits   *prometheus.HistogramVec
	BlockDepth   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		States: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fixpoint_state_events_total",
				Help: "Reached set events by type",
			},
			[]string{"event"},
		),
		Targets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fixpoint_targets_total",
			Help: "Target states reached",
		}),
		BlockLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fixpoint_block_lookups_total",
				Help: "Block cache lookups by block and result",
			},
			[]string{"block", "result"},
		),
		BlockExits: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fixpoint_block_exit_states",
				Help:    "Exit states returned per block application",
				Buckets: prometheus.ExponentialBuckets(1, 2, 8),
			},
			[]string{"block"},
		),
		BlockDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fixpoint_block_depth",
			Help: "Current block nesting depth",
		}),
	}

	var err error
	if m.States, err = register(reg, m.States); err != nil {
		return nil, err
	}
	if m.Targets, err = register(reg, m.Targets); err != nil {
		return nil, err
	}
	if m.BlockLookups, err = register(reg, m.BlockLookups); err != nil {
		return nil, err
	}
	if m.BlockExits, err = register(reg, m.BlockExits); err != nil {
		return nil, err
	}
	if m.BlockDepth, err = register(reg, m.BlockDepth); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	count := func(_ context.Context, e *domain.StateEvent) {
		m.States.WithLabelValues(string(e.Type)).Inc()
	}
	return domain.LifecycleHooks{
		OnStatePopped:  count,
		OnStateAdded:   count,
		OnStateMerged:  count,
		OnStateCovered: count,
		OnTargetReached: func(ctx context.Context, e *domain.StateEvent) {
			count(ctx, e)
			m.Targets.Inc()
		},
		OnBlockEnter: func(_ context.Context, e *domain.BlockEvent) {
			m.BlockLookups.WithLabelValues(e.Block, string(e.Lookup)).Inc()
			m.BlockDepth.Set(float64(e.Depth))
		},
		OnBlockExit: func(_ context.Context, e *domain.BlockEvent) {
			m.BlockExits.WithLabelValues(e.Block).Observe(float64(e.ExitStates))
			m.BlockDepth.Set(float64(e.Depth - 1))
		},
	}
}
