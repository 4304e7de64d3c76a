// Package cfa models a program as a control-flow automaton: locations (nodes)
// connected by edges labelled with operations, grouped into functions.
package cfa

import (
	"fmt"
	"sort"
)

// EdgeKind classifies a CFA edge.
type EdgeKind int

const (
	BlankEdge EdgeKind = iota
	StatementEdge
	AssumeEdge
	CallEdge
	ReturnEdge
)

func (k EdgeKind) String() string {
	switch k {
	case BlankEdge:
		return "blank"
	case StatementEdge:
		return "statement"
	case AssumeEdge:
		return "assume"
	case CallEdge:
		return "call"
	case ReturnEdge:
		return "return"
	default:
		return "unknown"
	}
}

// Node is a program location.
type Node struct {
	ID       int
	Name     string
	Function string
	// Error marks a target location (e.g. a failed assertion).
	Error bool

	leaving  []*Edge
	entering []*Edge
}

// Leaving returns the outgoing edges in insertion order.
func (n *Node) Leaving() []*Edge { return n.leaving }

// Entering returns the incoming edges in insertion order.
func (n *Node) Entering() []*Edge { return n.entering }

func (n *Node) String() string { return n.Name }

// Edge connects two locations.
type Edge struct {
	From  *Node
	To    *Node
	Kind  EdgeKind
	Label string
	Stmt  Statement

	// Callee and ReturnNode are set on CallEdge only.
	Callee     string
	ReturnNode *Node
}

func (e *Edge) String() string {
	if e.Label == "" {
		return fmt.Sprintf("%s -> %s", e.From, e.To)
	}
	return fmt.Sprintf("%s -[%s]-> %s", e.From, e.Label, e.To)
}

// Function groups the locations of one procedure.
type Function struct {
	Name  string
	Entry *Node
	Exit  *Node
	Nodes []*Node
}

// CFA is a whole program.
type CFA struct {
	Main      string
	nodes     []*Node
	byName    map[string]*Node
	functions map[string]*Function
}

// New creates an empty program whose analysis starts at function main.
func New(main string) *CFA {
	return &CFA{
		Main:      main,
		byName:    make(map[string]*Node),
		functions: make(map[string]*Function),
	}
}

// AddFunction registers a function. Names must be unique.
func (c *CFA) AddFunction(name string) (*Function, error) {
	if _, exists := c.functions[name]; exists {
		return nil, fmt.Errorf("function %q already defined", name)
	}
	fn := &Function{Name: name}
	c.functions[name] = fn
	return fn, nil
}

// AddNode creates a location inside fn. Names are unique program-wide.
func (c *CFA) AddNode(fn *Function, name string) (*Node, error) {
	if _, exists := c.byName[name]; exists {
		return nil, fmt.Errorf("location %q already defined", name)
	}
	n := &Node{ID: len(c.nodes), Name: name, Function: fn.Name}
	c.nodes = append(c.nodes, n)
	c.byName[name] = n
	fn.Nodes = append(fn.Nodes, n)
	return n, nil
}

// AddEdge connects two locations of the same function.
func (c *CFA) AddEdge(from, to *Node, kind EdgeKind, label string, stmt Statement) *Edge {
	e := &Edge{From: from, To: to, Kind: kind, Label: label, Stmt: stmt}
	link(e)
	return e
}

// AddCall connects a call site to the callee entry and the callee exit back to
// returnNode. It returns the call edge.
func (c *CFA) AddCall(from, returnNode *Node, callee string) (*Edge, error) {
	fn, ok := c.functions[callee]
	if !ok {
		return nil, fmt.Errorf("call to undefined function %q at %s", callee, from)
	}
	if fn.Entry == nil || fn.Exit == nil {
		return nil, fmt.Errorf("function %q has no entry or exit", callee)
	}
	call := &Edge{From: from, To: fn.Entry, Kind: CallEdge, Label: callee + "()", Callee: callee, ReturnNode: returnNode}
	link(call)
	link(&Edge{From: fn.Exit, To: returnNode, Kind: ReturnEdge, Label: "return " + callee, Callee: callee})
	return call, nil
}

func link(e *Edge) {
	e.From.leaving = append(e.From.leaving, e)
	e.To.entering = append(e.To.entering, e)
}

// Node looks up a location by name.
func (c *CFA) Node(name string) (*Node, bool) {
	n, ok := c.byName[name]
	return n, ok
}

// Nodes returns all locations ordered by ID.
func (c *CFA) Nodes() []*Node { return c.nodes }

// Function looks up a function by name.
func (c *CFA) Function(name string) (*Function, bool) {
	fn, ok := c.functions[name]
	return fn, ok
}

// Functions returns all functions sorted by name.
func (c *CFA) Functions() []*Function {
	out := make([]*Function, 0, len(c.functions))
	for _, fn := range c.functions {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MainEntry returns the entry location of the main function.
func (c *CFA) MainEntry() (*Node, error) {
	fn, ok := c.functions[c.Main]
	if !ok || fn.Entry == nil {
		return nil, fmt.Errorf("main function %q is not defined", c.Main)
	}
	return fn.Entry, nil
}

// Edges returns every edge ordered by source location.
func (c *CFA) Edges() []*Edge {
	var out []*Edge
	for _, n := range c.nodes {
		out = append(out, n.leaving...)
	}
	return out
}
