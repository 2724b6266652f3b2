// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package dag

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycle is the sentinel wrapped by CycleError.
var ErrCycle = errors.New("cycle detected")

// CycleError lists every node that takes part in at least one cycle.
type CycleError struct {
	// Nodes is sorted.
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected involving nodes: %s", strings.Join(e.Nodes, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }
