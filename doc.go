/*
Package fixpoint is a configurable program analysis engine: it explores the
abstract state space of a control-flow automaton until a fixpoint is reached,
and can memoize the analysis of blocks (functions) so that repeated calls with
the same reduced entry state reuse earlier results.

# Concept

An analysis is a bundle of operators (abstract domain, transfer relation,
merge, stop and precision adjustment) described by ports.CPA. Several analyses
run side by side through pkg/composite. The engine keeps a reached set and a
waitlist and repeats: pop a state, compute successors, adjust their precision,
merge them into existing states, and keep those that are not covered.

Block abstraction (pkg/bam) wraps an analysis. On a call into a block it
reduces the caller state to what the block can observe, looks the block up in
a cache, analyzes it in a nested reached set on a miss, and expands the exit
states back into the caller context.

# Key Features

  - Deterministic exploration with DFS, BFS or distance-to-error ordering.
  - Cooperative interruption: cancelled runs stay consistent and resume.
  - Block cache with exact, approximate and recursive (fixpoint) reuse.
  - Pluggable domains: location and explicit values ship with the module.
  - Run reports persisted in memory, on disk or in Redis.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/fixpoint"
		"github.com/aretw0/fixpoint/pkg/cfa"
		"github.com/aretw0/fixpoint/pkg/dsl"
		"github.com/aretw0/fixpoint/pkg/registry"
	)

	func main() {
		b := dsl.New("main")
		b.Function("main").
			Edge("M0", "M1", "x := 1").
			Call("M1", "M2", "check").
			Edge("M2", "M3", "")
		b.Function("check").
			Edge("C0", "ERR", "[x != 1]").
			Edge("C0", "C1", "[x == 1]").
			Error("ERR").
			Exit("C1")
		program, err := b.Build()
		if err != nil {
			log.Fatal(err)
		}

		analysis, err := registry.Default().Build([]string{"location", "value"}, program, nil)
		if err != nil {
			log.Fatal(err)
		}

		v, err := fixpoint.New(program, analysis,
			fixpoint.WithBlockAbstraction(cfa.FunctionBlocks(program)),
		)
		if err != nil {
			log.Fatal(err)
		}

		res, err := v.Run(context.Background())
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("safe:", res.Safe())
	}
*/
package fixpoint
