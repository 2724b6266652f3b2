// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/printgraph/internal/ctxlog"
	"github.com/specialistvlad/printgraph/internal/graph"
	"github.com/specialistvlad/printgraph/internal/valuectx"
)

// execution is the state of one Execute call.
type execution struct {
	exec  *Executor
	id    string
	def   *graph.Definition
	vc    *valuectx.Context
	began time.Time

	// runCtx ends on timeout or caller cancellation.
	runCtx context.Context
	// procCtx is handed to processors. It carries the caller's values but
	// is only cancelled by the execution itself.
	procCtx     context.Context
	cancelProcs context.CancelFunc

	tasks []*task
	byID  map[string]*task
	ready chan *task

	remaining atomic.Int64
	done      chan struct{}
	aborted   chan struct{}
	quit      chan struct{}
	quitOnce  sync.Once

	mu       sync.Mutex
	isDone   bool
	isAbort  bool
	firstErr *ExecutionError
}

func newExecution(e *Executor, id string, ctx, runCtx context.Context, def *graph.Definition, vc *valuectx.Context) *execution {
	procCtx, cancelProcs := context.WithCancel(context.WithoutCancel(ctx))
	ex := &execution{
		exec:        e,
		id:          id,
		def:         def,
		vc:          vc,
		began:       time.Now(),
		runCtx:      runCtx,
		procCtx:     procCtx,
		cancelProcs: cancelProcs,
		byID:        make(map[string]*task, def.Len()),
		ready:       make(chan *task, def.Len()),
		done:        make(chan struct{}),
		aborted:     make(chan struct{}),
		quit:        make(chan struct{}),
	}
	for _, n := range def.Nodes() {
		t := newTask(n)
		ex.tasks = append(ex.tasks, t)
		ex.byID[n.ID()] = t
	}
	ex.remaining.Store(int64(len(ex.tasks)))
	return ex
}

// start launches the workers (or the serial runner) and queues the roots.
func (ex *execution) start() {
	if len(ex.tasks) == 0 {
		ex.finish()
		return
	}

	if ex.exec.serial {
		go ex.runSerial()
		return
	}

	workers := min(ex.exec.cfg.Workers, len(ex.tasks))
	for i := 0; i < workers; i++ {
		go ex.worker(i)
	}
	for _, t := range ex.tasks {
		if t.pending.Load() == 0 {
			ex.ready <- t
		}
	}
}

// stop tells idle workers to exit. Workers busy with a task exit after it.
func (ex *execution) stop() {
	ex.quitOnce.Do(func() { close(ex.quit) })
}

// schedule queues a task whose predecessors have all committed. The ready
// channel holds every task, so this never blocks.
func (ex *execution) schedule(t *task) {
	if ex.exec.serial {
		return
	}
	ex.ready <- t
}

// abort records the first failure, stops scheduling and skips every task
// that has not started. It is a no-op once the execution has finished or
// was already aborted.
func (ex *execution) abort(nodeID string, cause error) {
	ex.mu.Lock()
	if ex.isDone || ex.isAbort {
		ex.mu.Unlock()
		return
	}
	ex.isAbort = true
	ex.firstErr = &ExecutionError{ExecutionID: ex.id, NodeID: nodeID, Cause: cause}
	ex.mu.Unlock()

	close(ex.aborted)

	if nodeID == "" || ex.exec.cfg.CancelPolicy == Eager {
		ex.cancelProcs()
	}
	ex.skipPending()
}

// skipPending marks every task that has not started as skipped.
func (ex *execution) skipPending() {
	for _, t := range ex.tasks {
		if t.transition(Pending, Skipped) {
			ctxlog.FromContext(ex.procCtx).Debug("Skipping node.", "nodeID", t.id())
			ex.settle()
		}
	}
}

func (ex *execution) isAborted() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.isAbort
}

// settle is called exactly once per task, when it reaches a terminal status.
func (ex *execution) settle() {
	if ex.remaining.Add(-1) == 0 {
		ex.finish()
	}
}

func (ex *execution) finish() {
	ex.mu.Lock()
	ex.isDone = true
	ex.mu.Unlock()
	close(ex.done)
	ex.cancelProcs()
}

func (ex *execution) failure() *ExecutionError {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.firstErr
}

func (ex *execution) reports() []NodeReport {
	out := make([]NodeReport, len(ex.tasks))
	for i, t := range ex.tasks {
		out[i] = t.report()
	}
	return out
}
