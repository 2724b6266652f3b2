// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package processor

import (
	"errors"
	"fmt"
)

// ErrProcessor is wrapped by ExecutionError.
var ErrProcessor = errors.New("processor failed")

// ExecutionError reports that a processor returned an error.
type ExecutionError struct {
	NodeID string
	Cause  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("processor %q failed: %v", e.NodeID, e.Cause)
}

func (e *ExecutionError) Unwrap() []error { return []error{ErrProcessor, e.Cause} }

// FanoutItemError reports the element of a fan-out that failed.
type FanoutItemError struct {
	Index int
	Cause error
}

func (e *FanoutItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Cause)
}

func (e *FanoutItemError) Unwrap() error { return e.Cause }
