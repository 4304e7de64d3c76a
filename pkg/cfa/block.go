package cfa

import (
	"sort"
	"strings"
)

// Block is an immutable, statically chosen sub-region of the CFA with a
// single entry and one or more exit locations.
type Block struct {
	id        string
	entry     *Node
	exits     []*Node
	nodes     map[int]*Node
	variables map[string]struct{}
}

// NewBlock creates a block. Entry and exits are added to nodes if missing.
func NewBlock(id string, entry *Node, exits, nodes []*Node, variables []string) *Block {
	b := &Block{
		id:        id,
		entry:     entry,
		exits:     append([]*Node(nil), exits...),
		nodes:     make(map[int]*Node, len(nodes)+len(exits)+1),
		variables: make(map[string]struct{}, len(variables)),
	}
	b.nodes[entry.ID] = entry
	for _, n := range nodes {
		b.nodes[n.ID] = n
	}
	for _, n := range exits {
		b.nodes[n.ID] = n
	}
	for _, v := range variables {
		b.variables[v] = struct{}{}
	}
	return b
}

func (b *Block) ID() string     { return b.id }
func (b *Block) Entry() *Node   { return b.entry }
func (b *Block) Exits() []*Node { return b.exits }

// Contains reports whether n lies inside the block.
func (b *Block) Contains(n *Node) bool {
	_, ok := b.nodes[n.ID]
	return ok
}

// IsExit reports whether n is one of the exit locations.
func (b *Block) IsExit(n *Node) bool {
	for _, e := range b.exits {
		if e == n {
			return true
		}
	}
	return false
}

// References reports whether the block reads or writes the variable.
func (b *Block) References(variable string) bool {
	_, ok := b.variables[variable]
	return ok
}

// Variables returns the referenced variables sorted by name.
func (b *Block) Variables() []string { return sortedKeys(b.variables) }

// Nodes returns the block locations ordered by ID.
func (b *Block) Nodes() []*Node {
	out := make([]*Node, 0, len(b.nodes))
	for _, n := range b.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Block) String() string {
	names := make([]string, 0, len(b.exits))
	for _, e := range b.exits {
		names = append(names, e.Name)
	}
	return b.id + "[" + b.entry.Name + " -> " + strings.Join(names, ",") + "]"
}

// Partitioning maps block entry locations to blocks.
type Partitioning struct {
	blocks  []*Block
	byEntry map[int]*Block
}

// NewPartitioning indexes the given blocks by entry location.
func NewPartitioning(blocks ...*Block) *Partitioning {
	p := &Partitioning{byEntry: make(map[int]*Block, len(blocks))}
	for _, b := range blocks {
		p.blocks = append(p.blocks, b)
		p.byEntry[b.entry.ID] = b
	}
	return p
}

// BlockForEntry returns the block starting at n, if any.
func (p *Partitioning) BlockForEntry(n *Node) (*Block, bool) {
	b, ok := p.byEntry[n.ID]
	return b, ok
}

// Blocks returns the blocks in registration order.
func (p *Partitioning) Blocks() []*Block { return p.blocks }

// FunctionBlocks builds one block per function other than main. A block
// references the variables used by its function and by every function it
// can transitively call.
func FunctionBlocks(c *CFA) *Partitioning {
	direct := make(map[string]map[string]struct{})
	calls := make(map[string][]string)
	for _, fn := range c.Functions() {
		vars := make(map[string]struct{})
		for _, n := range fn.Nodes {
			for _, e := range n.leaving {
				if e.Kind == CallEdge {
					calls[fn.Name] = append(calls[fn.Name], e.Callee)
				}
				if e.Stmt != nil {
					for _, v := range Variables(e.Stmt) {
						vars[v] = struct{}{}
					}
				}
			}
		}
		direct[fn.Name] = vars
	}

	var blocks []*Block
	for _, fn := range c.Functions() {
		if fn.Name == c.Main || fn.Entry == nil || fn.Exit == nil {
			continue
		}
		vars := make(map[string]struct{})
		for callee := range Callees(calls, fn.Name) {
			for v := range direct[callee] {
				vars[v] = struct{}{}
			}
		}
		blocks = append(blocks, NewBlock(fn.Name, fn.Entry, []*Node{fn.Exit}, fn.Nodes, sortedKeys(vars)))
	}
	return NewPartitioning(blocks...)
}

// Callees returns fn together with every function reachable from it in the call graph.
func Callees(calls map[string][]string, fn string) map[string]struct{} {
	visited := map[string]struct{}{fn: {}}
	queue := []string{fn}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range calls[current] {
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return visited
}
