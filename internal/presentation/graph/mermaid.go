package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/ports"
	"github.com/aretw0/fixpoint/pkg/reached"
)

// Overlay marks locations on a CFA drawing.
type Overlay struct {
	// Reached lists locations that carry at least one reached state.
	Reached []string
	// Targets lists locations where a target state was found.
	Targets []string
}

// OverlayFor collects the locations of the reached and target states of rs.
func OverlayFor(rs *reached.Set) *Overlay {
	o := &Overlay{}
	seen := make(map[string]bool)
	for _, s := range rs.States() {
		if n, ok := ports.LocationOf(s); ok && !seen[n.Name] {
			seen[n.Name] = true
			o.Reached = append(o.Reached, n.Name)
		}
	}
	for _, s := range rs.Targets() {
		if n, ok := ports.LocationOf(s); ok {
			o.Targets = append(o.Targets, n.Name)
		}
	}
	return o
}

// GenerateCFA produces a Mermaid flowchart of the program, one subgraph per function.
// Shapes:
// - Function entry: ((Circle))
// - Error location: {{Hexagon}}
// - Default: [Rectangle]
// Call and return edges are dotted.
func GenerateCFA(c *cfa.CFA, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, fn := range c.Functions() {
		sb.WriteString(fmt.Sprintf("    subgraph %s[\"%s\"]\n", sanitizeMermaidID("fn_"+fn.Name), fn.Name))
		for _, n := range fn.Nodes {
			opener, closer := "[", "]"
			switch {
			case n == fn.Entry:
				opener, closer = "((", "))"
			case n.Error:
				opener, closer = "{{", "}}"
			}
			sb.WriteString(fmt.Sprintf("        %s%s\"%s\"%s\n", sanitizeMermaidID(n.Name), opener, n.Name, closer))
		}
		sb.WriteString("    end\n")
	}

	for _, e := range c.Edges() {
		from, to := sanitizeMermaidID(e.From.Name), sanitizeMermaidID(e.To.Name)
		label := escapeLabel(e.Label)
		var arrow string
		switch {
		case e.Kind == cfa.CallEdge || e.Kind == cfa.ReturnEdge:
			arrow = fmt.Sprintf("-. \"%s\" .->", label)
		case label == "":
			arrow = "-->"
		default:
			arrow = fmt.Sprintf("-- \"%s\" -->", label)
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", from, arrow, to))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef reached fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef target fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")
		writeClass(&sb, overlay.Reached, "reached")
		writeClass(&sb, overlay.Targets, "target")
	}

	return sb.String()
}

// GenerateARG draws the abstract reachability graph held by rs: parent edges
// as solid arrows, covering as dotted arrows. Target states and states still
// waiting are styled.
func GenerateARG(rs *reached.Set) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	states := rs.States()
	ids := newIndex(states)
	for i, s := range states {
		sb.WriteString(fmt.Sprintf("    s%d[\"%s\"]\n", i, escapeLabel(s.String())))
	}
	for i, s := range states {
		if parent, ok := rs.Parent(s); ok {
			sb.WriteString(fmt.Sprintf("    s%d --> s%d\n", ids.of(parent), i))
		}
		if by, ok := rs.CoveredBy(s); ok {
			sb.WriteString(fmt.Sprintf("    s%d -. \"covered\" .-> s%d\n", i, ids.of(by)))
		}
	}
	for _, c := range rs.Covers() {
		if c.Parent == nil || c.By == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("    s%d -. \"%s\" .-> s%d\n", ids.of(c.Parent), escapeLabel(c.State.String()), ids.of(c.By)))
	}

	var targets, waiting []string
	for i, s := range states {
		if rs.IsTarget(s) {
			targets = append(targets, fmt.Sprintf("s%d", i))
		}
		if rs.IsWaiting(s) {
			waiting = append(waiting, fmt.Sprintf("s%d", i))
		}
	}
	if len(targets) > 0 || len(waiting) > 0 {
		sb.WriteString("\n    classDef target fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef waiting fill:#ffeb3b,stroke:#fbc02d,stroke-width:2px,color:#000;\n")
		writeClass(&sb, targets, "target")
		writeClass(&sb, waiting, "waiting")
	}
	return sb.String()
}

type index map[uint64][]indexed

type indexed struct {
	state domain.AbstractState
	id    int
}

func newIndex(states []domain.AbstractState) index {
	idx := make(index, len(states))
	for i, s := range states {
		idx[s.Hash()] = append(idx[s.Hash()], indexed{state: s, id: i})
	}
	return idx
}

func (idx index) of(s domain.AbstractState) int {
	for _, e := range idx[s.Hash()] {
		if e.state.Equal(s) {
			return e.id
		}
	}
	return -1
}

func writeClass(sb *strings.Builder, names []string, class string) {
	seen := make(map[string]bool)
	for _, name := range names {
		safe := sanitizeMermaidID(name)
		if safe == "" || seen[safe] {
			continue
		}
		seen[safe] = true
		sb.WriteString(fmt.Sprintf("    class %s %s;\n", safe, class))
	}
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
