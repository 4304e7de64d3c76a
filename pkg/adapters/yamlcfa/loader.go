// Package yamlcfa loads program descriptions written in YAML (or JSON) and
// compiles them into control-flow automata.
//
//	main: main
//	functions:
//	  - name: main
//	    errors: [ERR]
//	    edges:
//	      - {from: M0, to: M1, label: "x := 1"}
//	      - {from: M1, to: M2, call: check}
//	      - {from: M2, to: ERR, label: "[x != 1]"}
package yamlcfa

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/dsl"
)

// EdgeSpec is one edge of a function. Exactly one of Label or Call is used.
type EdgeSpec struct {
	From  string `yaml:"from" json:"from"`
	To    string `yaml:"to" json:"to"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
	Call  string `yaml:"call,omitempty" json:"call,omitempty"`
}

// FunctionSpec describes a function body.
type FunctionSpec struct {
	Name   string     `yaml:"name" json:"name"`
	Entry  string     `yaml:"entry,omitempty" json:"entry,omitempty"`
	Exit   string     `yaml:"exit,omitempty" json:"exit,omitempty"`
	Errors []string   `yaml:"errors,omitempty" json:"errors,omitempty"`
	Edges  []EdgeSpec `yaml:"edges" json:"edges"`
}

// Program is the document root.
type Program struct {
	Main      string         `yaml:"main" json:"main"`
	Functions []FunctionSpec `yaml:"functions" json:"functions"`
}

// Load reads and compiles a program file. Files ending in .json are decoded as
// JSON, everything else as YAML.
func Load(path string) (*cfa.CFA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	var p Program
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
		return p.Compile()
	}
	return Parse(data)
}

// Parse decodes a YAML document and compiles it.
func Parse(data []byte) (*cfa.CFA, error) {
	var p Program
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}
	return p.Compile()
}

// Compile turns the description into a CFA.
func (p Program) Compile() (*cfa.CFA, error) {
	main := p.Main
	if main == "" {
		main = "main"
	}
	if len(p.Functions) == 0 {
		return nil, errors.New("program has no functions")
	}

	b := dsl.New(main)
	for i, spec := range p.Functions {
		if spec.Name == "" {
			return nil, fmt.Errorf("function #%d has no name", i)
		}
		fb := b.Function(spec.Name)
		if spec.Entry != "" {
			fb.Entry(spec.Entry)
		}
		for j, e := range spec.Edges {
			if e.From == "" || e.To == "" {
				return nil, fmt.Errorf("function %s: edge #%d needs from and to", spec.Name, j)
			}
			if e.Call != "" {
				if e.Label != "" {
					return nil, fmt.Errorf("function %s: edge %s -> %s has both label and call", spec.Name, e.From, e.To)
				}
				fb.Call(e.From, e.To, e.Call)
				continue
			}
			fb.Edge(e.From, e.To, e.Label)
		}
		if len(spec.Errors) > 0 {
			fb.Error(spec.Errors...)
		}
		if spec.Exit != "" {
			fb.Exit(spec.Exit)
		}
	}
	return b.Build()
}
