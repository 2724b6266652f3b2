// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExecution is wrapped by every ExecutionError.
var ErrExecution = errors.New("execution failed")

// ExecutionError is the error returned by Execute. Cause is one of
// *processor.ExecutionError, *ContextViolationError, *TimeoutError or
// *CancellationError.
type ExecutionError struct {
	ExecutionID string
	// NodeID is empty when the execution failed as a whole (timeout,
	// cancellation, missing attributes).
	NodeID string
	Cause  error
	// Completed lists the nodes that had committed their outputs when the
	// execution was aborted, in topological order.
	Completed []string
}

func (e *ExecutionError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("execution %s failed: %v", e.ExecutionID, e.Cause)
	}
	return fmt.Sprintf("execution %s failed at node %q: %v", e.ExecutionID, e.NodeID, e.Cause)
}

func (e *ExecutionError) Unwrap() []error { return []error{ErrExecution, e.Cause} }

// ContextViolationError reports a processor that broke its contract with the
// value context: a missing or undeclared output, or a rejected write.
type ContextViolationError struct {
	NodeID string
	Name   string
	Reason string
	Cause  error
}

func (e *ContextViolationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("node %q: %s %q: %v", e.NodeID, e.Reason, e.Name, e.Cause)
	}
	return fmt.Sprintf("node %q: %s %q", e.NodeID, e.Reason, e.Name)
}

func (e *ContextViolationError) Unwrap() error { return e.Cause }

// TimeoutError reports that the execution did not finish in time.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	if e.After <= 0 {
		return "execution deadline exceeded"
	}
	return fmt.Sprintf("execution timed out after %s", e.After)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// CancellationError reports that the caller cancelled the execution.
type CancellationError struct {
	Cause error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("execution cancelled: %v", e.Cause)
}

func (e *CancellationError) Unwrap() error { return e.Cause }
