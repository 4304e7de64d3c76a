package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/fixpoint/pkg/domain"
)

// PrintSystemMessage prints a standardized system message.
func PrintSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// PrintReport renders a report for humans.
func PrintReport(w io.Writer, r *domain.Report) {
	verdict := "UNKNOWN"
	switch {
	case r.Safe():
		verdict = "SAFE"
	case len(r.Targets) > 0:
		verdict = "UNSAFE"
	}

	fmt.Fprintf(w, "Report:     %s\n", r.ID)
	if r.Program != "" {
		fmt.Fprintf(w, "Program:    %s\n", r.Program)
	}
	if len(r.Sealed) > 0 {
		fmt.Fprintf(w, "Status:     %s (sealed)\n", r.Status)
		return
	}
	fmt.Fprintf(w, "Status:     %s\n", r.Status)
	if r.Reason != "" {
		fmt.Fprintf(w, "Reason:     %s\n", r.Reason)
	}
	fmt.Fprintf(w, "Verdict:    %s\n", verdict)
	fmt.Fprintf(w, "Duration:   %s\n", r.FinishedAt.Sub(r.StartedAt))
	fmt.Fprintf(w, "Iterations: %d\n", r.Iterations)
	fmt.Fprintf(w, "Reached:    %d (%d waiting)\n", r.Reached, r.Waitlist)

	if len(r.Targets) > 0 {
		fmt.Fprintf(w, "Targets:\n")
		for _, t := range r.Targets {
			fmt.Fprintf(w, "  - %s\n", t)
		}
	}

	if c := r.Cache; c != nil {
		fmt.Fprintf(w, "Block cache:\n")
		fmt.Fprintf(w, "  %s\n", strings.Join([]string{
			fmt.Sprintf("lookups=%d", c.Lookups),
			fmt.Sprintf("hits=%d", c.Hits),
			fmt.Sprintf("partial=%d", c.PartialHits),
			fmt.Sprintf("misses=%d", c.Misses),
			fmt.Sprintf("resumed=%d", c.Resumed),
			fmt.Sprintf("approximate=%d", c.Approximate),
		}, " "))
		fmt.Fprintf(w, "  max depth %d, %d cached sets\n", c.MaxDepth, c.CachedSets)
	}
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
