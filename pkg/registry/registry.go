package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/composite"
	"github.com/aretw0/fixpoint/pkg/domains/location"
	"github.com/aretw0/fixpoint/pkg/domains/value"
	"github.com/aretw0/fixpoint/pkg/ports"
)

// Factory builds one analysis component for a program.
// options carries the free-form section configured for that component name.
type Factory func(program *cfa.CFA, options map[string]any) (ports.CPA, error)

// ErrUnknownCPA is returned when a name has no registered factory.
var ErrUnknownCPA = errors.New("unknown cpa")

// Registry maps analysis names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Default returns a registry holding the bundled domains: "location" and "value".
func Default() *Registry {
	r := NewRegistry()
	r.Register("location", func(*cfa.CFA, map[string]any) (ports.CPA, error) {
		return location.New(), nil
	})
	r.Register("value", func(_ *cfa.CFA, options map[string]any) (ports.CPA, error) {
		opts, err := value.DecodeOptions(options)
		if err != nil {
			return nil, err
		}
		return value.New(opts)
	})
	return r
}

// Register adds a factory to the registry.
// If a factory with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = fn
}

// Names lists the registered analyses in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create looks up a factory by name and runs it.
func (r *Registry) Create(name string, program *cfa.CFA, options map[string]any) (ports.CPA, error) {
	r.mu.RLock()
	fn, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCPA, name)
	}

	cpa, err := fn(program, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create cpa %s: %w", name, err)
	}
	return cpa, nil
}

// Build creates every named analysis in order and combines them into a composite.
// options is keyed by analysis name.
func (r *Registry) Build(names []string, program *cfa.CFA, options map[string]map[string]any) (*composite.CPA, error) {
	if len(names) == 0 {
		return nil, errors.New("no cpas configured")
	}
	children := make([]ports.CPA, 0, len(names))
	for _, name := range names {
		child, err := r.Create(name, program, options[name])
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return composite.New(children...)
}
