/*
Package dsl provides a Go DSL for programmatically constructing control-flow automata.

It allows tests and embedding applications to define programs with a fluent
builder instead of YAML files.

Example usage:

	b := dsl.New("main")

	b.Function("main").
		Edge("M0", "M1", "x := 0").
		Call("M1", "M2", "inc").
		Edge("M2", "ERR", "[x != 1]").
		Error("ERR")

	b.Function("inc").
		Edge("I0", "I1", "x := x + 1")

	program, err := b.Build()
*/
package dsl
