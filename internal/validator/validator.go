package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/fixpoint/pkg/cfa"
)

// Result holds the findings of a validation run. Only Errors make a program unusable.
type Result struct {
	Errors   []string
	Warnings []string
}

// Err folds the errors into a single error, or nil when there are none.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("found %d errors:\n- %s", len(r.Errors), strings.Join(r.Errors, "\n- "))
}

// ValidateCFA checks the structure of a program and, when blocks is not nil,
// that every block is closed: control only leaves it through its exits or
// through calls that come back to a location inside it.
func ValidateCFA(c *cfa.CFA, blocks *cfa.Partitioning) Result {
	var res Result

	for _, fn := range c.Functions() {
		if fn.Entry == nil || fn.Exit == nil {
			res.Errors = append(res.Errors, fmt.Sprintf("function '%s' has no entry or exit", fn.Name))
		}
	}

	for _, e := range c.Edges() {
		if e.Kind != cfa.CallEdge {
			continue
		}
		if e.ReturnNode == nil {
			res.Errors = append(res.Errors, fmt.Sprintf("call %s at '%s' has no return location", e.Label, e.From))
			continue
		}
		if e.ReturnNode.Function != e.From.Function {
			res.Errors = append(res.Errors, fmt.Sprintf("call %s at '%s' returns into another function", e.Label, e.From))
		}
	}

	entry, err := c.MainEntry()
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	} else {
		reachable := cfa.Reachable(entry)
		for _, n := range c.Nodes() {
			if _, ok := reachable[n.ID]; !ok {
				res.Warnings = append(res.Warnings, fmt.Sprintf("location '%s' is unreachable", n))
			}
		}
	}

	if blocks != nil {
		for _, b := range blocks.Blocks() {
			res.Errors = append(res.Errors, checkBlock(b)...)
		}
	}
	return res
}

func checkBlock(b *cfa.Block) []string {
	var errs []string
	for _, n := range b.Nodes() {
		if b.IsExit(n) {
			continue
		}
		for _, e := range n.Leaving() {
			switch {
			case e.Kind == cfa.CallEdge:
				if e.ReturnNode != nil && !b.Contains(e.ReturnNode) {
					errs = append(errs, fmt.Sprintf("block %s: call at '%s' returns outside the block", b.ID(), n))
				}
			case !b.Contains(e.To):
				errs = append(errs, fmt.Sprintf("block %s: edge %s leaves the block", b.ID(), e))
			}
		}
	}
	return errs
}
