// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/printgraph/internal/graph"
)

// task is the runtime state of one node during one execution.
type task struct {
	node *graph.Node
	// pending counts predecessors that have not committed yet.
	pending atomic.Int32
	status  atomic.Int32
	// done is closed once the task's outputs are committed.
	done chan struct{}

	started  atomic.Int64
	finished atomic.Int64

	mu  sync.Mutex
	err error
}

func newTask(n *graph.Node) *task {
	t := &task{node: n, done: make(chan struct{})}
	t.pending.Store(int32(len(n.Predecessors)))
	return t
}

func (t *task) id() string { return t.node.ID() }

func (t *task) getStatus() Status { return Status(t.status.Load()) }

// transition moves the task from one status to another. Only one caller can
// win a given transition, which is what makes every task reach exactly one
// terminal status.
func (t *task) transition(from, to Status) bool {
	if !t.status.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	now := time.Now().UnixNano()
	if to == Running {
		t.started.Store(now)
	} else {
		t.finished.Store(now)
	}
	return true
}

func (t *task) setErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

func (t *task) report() NodeReport {
	t.mu.Lock()
	err := t.err
	t.mu.Unlock()

	r := NodeReport{ID: t.id(), Status: t.getStatus(), Err: err}
	if start, end := t.started.Load(), t.finished.Load(); start > 0 && end >= start {
		r.Duration = time.Duration(end - start)
	}
	return r
}
