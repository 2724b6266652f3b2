// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package engine

import (
	"fmt"
	"time"

	"github.com/specialistvlad/printgraph/internal/valuectx"
)

// Status is the lifecycle state of a task.
type Status int32

const (
	Pending Status = iota
	Running
	Completed
	Failed
	// Skipped tasks never ran because the execution was aborted first.
	Skipped
	// Discarded tasks ran after the execution was aborted; their outputs
	// were not committed.
	Discarded
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Discarded:
		return "discarded"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// NodeReport describes what happened to one node.
type NodeReport struct {
	ID       string
	Status   Status
	Duration time.Duration
	Err      error
}

// Result is returned by a successful execution.
type Result struct {
	ExecutionID string
	// Context holds the seeded attributes and every committed output.
	Context *valuectx.Context
	// Nodes are in topological order.
	Nodes    []NodeReport
	Duration time.Duration
}

// Node returns the report for the node with the given id.
func (r *Result) Node(id string) (NodeReport, bool) {
	for _, n := range r.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeReport{}, false
}

// Completed returns the ids of completed nodes in topological order.
func (r *Result) Completed() []string {
	return completedIDs(r.Nodes)
}

func completedIDs(reports []NodeReport) []string {
	ids := []string{}
	for _, n := range reports {
		if n.Status == Completed {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
