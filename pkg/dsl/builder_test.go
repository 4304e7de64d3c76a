package dsl

import (
	"strings"
	"testing"

	"github.com/aretw0/fixpoint/pkg/cfa"
)

func TestBuilder_SimpleProgram(t *testing.T) {
	// 1. Build the program using DSL
	b := New("main")

	b.Function("main").
		Edge("M0", "M1", "x := 0").
		Call("M1", "M2", "inc").
		Edge("M2", "ERR", "[x != 1]").
		Edge("M2", "M3", "[x == 1]").
		Error("ERR").
		Exit("M3")

	b.Function("inc").
		Edge("I0", "I1", "x := x + 1")

	// 2. Compile to CFA
	program, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	// 3. Verify structure
	entry, err := program.MainEntry()
	if err != nil {
		t.Fatalf("MainEntry() failed: %v", err)
	}
	if entry.Name != "M0" {
		t.Errorf("Expected main entry 'M0', got '%s'", entry.Name)
	}

	inc, ok := program.Function("inc")
	if !ok {
		t.Fatal("Expected function 'inc' to exist")
	}
	if inc.Entry.Name != "I0" || inc.Exit.Name != "I1" {
		t.Errorf("Expected inc to span I0 -> I1, got %s -> %s", inc.Entry, inc.Exit)
	}

	m1, _ := program.Node("M1")
	if len(m1.Leaving()) != 1 {
		t.Fatalf("Expected 1 leaving edge at M1, got %d", len(m1.Leaving()))
	}
	call := m1.Leaving()[0]
	if call.Kind != cfa.CallEdge || call.To != inc.Entry || call.ReturnNode.Name != "M2" {
		t.Errorf("Unexpected call edge %v", call)
	}
	if len(inc.Exit.Leaving()) != 1 || inc.Exit.Leaving()[0].Kind != cfa.ReturnEdge {
		t.Errorf("Expected a return edge leaving the callee exit")
	}

	errNode, _ := program.Node("ERR")
	if !errNode.Error {
		t.Error("Expected ERR to be an error location")
	}
	m3, _ := program.Node("M3")
	fn, _ := program.Function("main")
	if fn.Exit != m3 {
		t.Errorf("Expected explicit exit M3, got %s", fn.Exit)
	}
}

func TestBuilder_ReportsAllErrors(t *testing.T) {
	b := New("main")
	b.Function("main").
		Edge("A", "B", "x := ").
		Call("B", "C", "missing")

	_, err := b.Build()
	if err == nil {
		t.Fatal("Expected Build() to fail")
	}
	msg := err.Error()
	for _, want := range []string{"A -> B", "missing"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected error to mention %q, got: %s", want, msg)
		}
	}
}

func TestBuilder_DuplicateLocation(t *testing.T) {
	b := New("main")
	b.Function("main").Edge("A", "B", "")
	b.Function("other").Edge("B", "C", "")

	if _, err := b.Build(); err == nil {
		t.Fatal("Expected duplicate location error")
	}
}
