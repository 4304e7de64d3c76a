package domain

import "fmt"

// Status is the coarse result of an algorithm invocation.
type Status string

const (
	// StatusCompleted means the waitlist was drained (or exploration halted on a target as configured).
	StatusCompleted Status = "completed"
	// StatusInterrupted means cooperative cancellation tripped; results are inconclusive.
	StatusInterrupted Status = "interrupted"
	// StatusFailed means a domain operator failed and the run was aborted.
	StatusFailed Status = "failed"
)

// Outcome is the typed result exposed to callers: Completed, Interrupted or Failed(reason).
type Outcome struct {
	Status Status
	Reason error
}

// Completed returns a successful outcome.
func Completed() Outcome { return Outcome{Status: StatusCompleted} }

// Interrupted returns an inconclusive outcome.
func Interrupted() Outcome { return Outcome{Status: StatusInterrupted} }

// Failed returns a failed outcome carrying its reason.
func Failed(reason error) Outcome { return Outcome{Status: StatusFailed, Reason: reason} }

// IsConclusive reports whether the reached set may be used as a proof.
func (o Outcome) IsConclusive() bool {
	return o.Status == StatusCompleted
}

func (o Outcome) String() string {
	if o.Status == StatusFailed && o.Reason != nil {
		return fmt.Sprintf("%s(%v)", o.Status, o.Reason)
	}
	return string(o.Status)
}
