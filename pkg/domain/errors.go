package domain

import (
	"errors"
	"fmt"
)

// ErrInterrupted signals cooperative cancellation. It is not a failure.
var ErrInterrupted = errors.New("analysis interrupted")

// ErrUnboundedRecursion is returned when the block cache finds the same key
// already being computed higher on the call stack.
var ErrUnboundedRecursion = errors.New("unbounded recursion detected")

// ErrCacheInconsistency marks a violated invariant of the block cache.
var ErrCacheInconsistency = errors.New("block cache inconsistency")

// ErrNoLocation is returned when an operator needs a program location the state does not carry.
var ErrNoLocation = errors.New("state has no program location")

// ErrReportNotFound is returned when a report ID cannot be found in the store.
var ErrReportNotFound = errors.New("report not found")

// TransferError wraps any failure raised by a domain operator.
// It aborts the current algorithm invocation.
type TransferError struct {
	Op    string
	State AbstractState
	Err   error
}

func (e *TransferError) Error() string {
	if e.State == nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed at %s: %v", e.Op, e.State, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// RecursionError reports a recursive block entry with an identical cache key.
// Callers may recover from it by handling the call without block abstraction.
type RecursionError struct {
	Block string
	Depth int
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("block %q re-entered at depth %d with an identical reduced entry: %v", e.Block, e.Depth, ErrUnboundedRecursion)
}

func (e *RecursionError) Unwrap() error { return ErrUnboundedRecursion }

// CacheInconsistencyError is an internal assertion failure of the block cache.
type CacheInconsistencyError struct {
	Reason string
}

func (e *CacheInconsistencyError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCacheInconsistency, e.Reason)
}

func (e *CacheInconsistencyError) Unwrap() error { return ErrCacheInconsistency }

// WrapOperator classifies err as a TransferError. Errors that are already
// classified pass through: transfer failures, interruption, recursion and
// cache inconsistencies.
func WrapOperator(op string, state AbstractState, err error) error {
	if err == nil {
		return nil
	}
	var te *TransferError
	if errors.As(err, &te) ||
		errors.Is(err, ErrInterrupted) ||
		errors.Is(err, ErrUnboundedRecursion) ||
		errors.Is(err, ErrCacheInconsistency) {
		return err
	}
	return &TransferError{Op: op, State: state, Err: err}
}
