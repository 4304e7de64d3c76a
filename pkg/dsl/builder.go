package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/fixpoint/internal/compiler"
	"github.com/aretw0/fixpoint/pkg/cfa"
)

// Builder manages the program construction.
type Builder struct {
	main      string
	functions []*FunctionBuilder
	byName    map[string]*FunctionBuilder
}

// New creates a new program builder whose analysis starts at main.
func New(main string) *Builder {
	return &Builder{
		main:   main,
		byName: make(map[string]*FunctionBuilder),
	}
}

// Function creates a new function in the program.
// If the function already exists, it returns the existing builder.
func (b *Builder) Function(name string) *FunctionBuilder {
	if fb, ok := b.byName[name]; ok {
		return fb
	}
	fb := &FunctionBuilder{name: name, builder: b}
	b.functions = append(b.functions, fb)
	b.byName[name] = fb
	return fb
}

// Build compiles the program into a CFA. Edge labels are parsed here, so
// every malformed label is reported at once.
func (b *Builder) Build() (*cfa.CFA, error) {
	program := cfa.New(b.main)
	parser := compiler.NewParser()
	var errs []error

	nodes := make(map[string]*cfa.Node)
	for _, fb := range b.functions {
		fn, err := program.AddFunction(fb.name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, name := range fb.order {
			n, err := program.AddNode(fn, name)
			if err != nil {
				errs = append(errs, fmt.Errorf("function %s: %w", fb.name, err))
				continue
			}
			n.Error = fb.errors[name]
			nodes[name] = n
		}
		if len(fb.order) == 0 {
			errs = append(errs, fmt.Errorf("function %s has no locations", fb.name))
			continue
		}
		fn.Entry = nodes[fb.entryName()]
		fn.Exit = nodes[fb.exitName()]
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, fb := range b.functions {
		for _, e := range fb.edges {
			from, to := nodes[e.from], nodes[e.to]
			if e.callee != "" {
				if _, err := program.AddCall(from, to, e.callee); err != nil {
					errs = append(errs, fmt.Errorf("function %s: %w", fb.name, err))
				}
				continue
			}
			kind, stmt, err := parser.Parse(e.label)
			if err != nil {
				errs = append(errs, fmt.Errorf("function %s: edge %s -> %s: %w", fb.name, e.from, e.to, err))
				continue
			}
			program.AddEdge(from, to, kind, e.label, stmt)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return program, nil
}
