package cfa

import (
	"fmt"
	"sort"
)

// Expr is an integer expression over program variables.
// Booleans are encoded as 0 (false) and 1 (true).
type Expr interface {
	fmt.Stringer
	expr()
}

// Const is an integer literal.
type Const struct{ Value int64 }

// Var references a program variable.
type Var struct{ Name string }

// Unary applies "-" or "!" to X.
type Unary struct {
	Op string
	X  Expr
}

// Binary applies an arithmetic, comparison or logical operator.
type Binary struct {
	Op   string
	X, Y Expr
}

func (Const) expr()  {}
func (Var) expr()    {}
func (Unary) expr()  {}
func (Binary) expr() {}

func (c Const) String() string  { return fmt.Sprintf("%d", c.Value) }
func (v Var) String() string    { return v.Name }
func (u Unary) String() string  { return u.Op + u.X.String() }
func (b Binary) String() string { return fmt.Sprintf("(%s %s %s)", b.X, b.Op, b.Y) }

// Statement is the operation attached to a Statement or Assume edge.
type Statement interface {
	fmt.Stringer
	stmt()
}

// Assign sets Target to the value of Value.
type Assign struct {
	Target string
	Value  Expr
}

// Havoc sets Target to an arbitrary value.
type Havoc struct{ Target string }

// Assume restricts execution to states where Cond is non-zero.
type Assume struct{ Cond Expr }

func (Assign) stmt() {}
func (Havoc) stmt()  {}
func (Assume) stmt() {}

func (a Assign) String() string { return fmt.Sprintf("%s := %s", a.Target, a.Value) }
func (h Havoc) String() string  { return fmt.Sprintf("%s := nondet()", h.Target) }
func (a Assume) String() string { return fmt.Sprintf("[%s]", a.Cond) }

// Variables returns the sorted set of variables read or written by stmt.
func Variables(stmt Statement) []string {
	seen := make(map[string]struct{})
	switch s := stmt.(type) {
	case Assign:
		seen[s.Target] = struct{}{}
		collectVars(s.Value, seen)
	case Havoc:
		seen[s.Target] = struct{}{}
	case Assume:
		collectVars(s.Cond, seen)
	}
	return sortedKeys(seen)
}

func collectVars(e Expr, into map[string]struct{}) {
	switch x := e.(type) {
	case Var:
		into[x.Name] = struct{}{}
	case Unary:
		collectVars(x.X, into)
	case Binary:
		collectVars(x.X, into)
		collectVars(x.Y, into)
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
