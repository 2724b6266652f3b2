// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/specialistvlad/printgraph/internal/ctxlog"
	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/specialistvlad/printgraph/internal/valuectx"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// errDiscarded marks outputs that arrived after the execution was aborted.
var errDiscarded = errors.New("execution aborted before commit")

// worker is the core processing loop for a single concurrent worker.
func (ex *execution) worker(workerID int) {
	logger := ctxlog.FromContext(ex.procCtx)
	logger.Debug("Worker started.", "workerID", workerID)
	defer logger.Debug("Worker finished.", "workerID", workerID)

	for {
		select {
		case <-ex.quit:
			return
		case t := <-ex.ready:
			if ex.isAborted() {
				continue
			}
			logger.Debug("Worker picked up node for execution.", "workerID", workerID, "nodeID", t.id())
			ex.run(t)
		}
	}
}

// runSerial runs every task on one goroutine in topological order.
func (ex *execution) runSerial() {
	for _, t := range ex.tasks {
		select {
		case <-ex.quit:
			return
		default:
		}
		if ex.isAborted() {
			return
		}
		ex.run(t)
	}
}

// run executes a single task from input snapshot to commit.
func (ex *execution) run(t *task) {
	if !t.transition(Pending, Running) {
		return
	}
	id := t.id()
	p := t.node.Processor
	logger := ctxlog.FromContext(ex.procCtx).With("nodeID", id)

	// All predecessors have committed before this task was scheduled; the
	// receive makes their writes visible here.
	for _, pred := range t.node.Predecessors {
		<-ex.byID[pred].done
	}

	skip := func() {
		if t.transition(Running, Skipped) {
			ex.settle()
		}
	}

	// Slots are always taken before the heavy semaphore.
	if err := ex.exec.slots.Acquire(ex.runCtx, 1); err != nil {
		skip()
		return
	}
	defer ex.exec.slots.Release(1)

	if heavy := ex.exec.heavy; heavy != nil && processor.IsHeavy(p) {
		if err := heavy.Acquire(ex.runCtx, 1); err != nil {
			skip()
			return
		}
		defer heavy.Release(1)
	}

	if ex.isAborted() {
		logger.Debug("Execution aborted while node waited for a slot.")
		skip()
		return
	}

	ctx, span := ex.exec.tracer.Start(ex.procCtx, "printgraph.processor", trace.WithAttributes(
		attribute.String("printgraph.node_id", id),
		attribute.String("printgraph.variant", p.Variant().String()),
	))
	defer span.End()
	ctx = ctxlog.WithLogger(ctx, logger)

	switch p.Variant() {
	case processor.Fanout:
		ctx = processor.WithFanoutLimit(ctx, ex.exec.cfg.Workers)
		ctx = processor.WithSlots(ctx, ex.exec.slots)
	case processor.Source, processor.Transform:
	}

	fail := func(err error) {
		logger.Error("Node execution failed.", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ex.fail(t, err)
	}

	in, err := ex.snapshot(t)
	if err != nil {
		fail(err)
		return
	}

	out, err := execute(ctx, p, in)
	if err != nil {
		fail(&processor.ExecutionError{NodeID: id, Cause: err})
		return
	}
	if err := checkOutputs(id, p.Outputs(), out); err != nil {
		fail(err)
		return
	}

	if err := ex.commit(t, out); err != nil {
		if errors.Is(err, errDiscarded) {
			logger.Debug("Discarding outputs of node finished after abort.")
			if t.transition(Running, Discarded) {
				ex.settle()
			}
			return
		}
		fail(err)
		return
	}

	logger.Debug("Node execution succeeded.")
	close(t.done)
	for _, succID := range t.node.Successors {
		succ := ex.byID[succID]
		if succ.pending.Add(-1) == 0 {
			logger.Debug("Unlocking dependent node.", "dependentID", succID)
			ex.schedule(succ)
		}
	}
	if t.transition(Running, Completed) {
		ex.settle()
	}
}

// fail records the task's error and aborts the execution. The abort happens
// before the task settles so that the last task of a graph cannot complete
// the execution successfully while failing.
func (ex *execution) fail(t *task, err error) {
	t.setErr(err)
	ex.abort(t.id(), err)
	if t.transition(Running, Failed) {
		ex.settle()
	}
}

// snapshot reads the task's declared inputs, converted to the types the
// processor declares for them.
func (ex *execution) snapshot(t *task) (processor.Values, error) {
	decls := t.node.Processor.Inputs()
	in := make(processor.Values, len(decls))
	for _, d := range decls {
		v, err := ex.vc.Get(d.Name)
		if err != nil {
			return nil, &ContextViolationError{NodeID: t.id(), Name: d.Name, Reason: "cannot read input", Cause: err}
		}
		want := d.EffectiveType()
		if !want.Equals(cty.DynamicPseudoType) && !v.Type().Equals(want) {
			if v, err = convert.Convert(v, want); err != nil {
				return nil, &ContextViolationError{NodeID: t.id(), Name: d.Name, Reason: "cannot convert input", Cause: err}
			}
		}
		in[d.Name] = v
	}
	return in, nil
}

// commit writes outputs to the value context unless the execution has been
// aborted. Holding ex.mu orders every commit against abort. The outputs are
// written as one batch: a rejected output leaves none of them behind.
func (ex *execution) commit(t *task, out processor.Values) error {
	ex.mu.Lock()
	defer ex.mu.Unlock()

	if ex.isAbort {
		return errDiscarded
	}
	if err := ex.vc.SetAll(out); err != nil {
		return &ContextViolationError{NodeID: t.id(), Name: rejectedName(err), Reason: "cannot write output", Cause: err}
	}
	return nil
}

// rejectedName returns the name a value context write error refers to.
func rejectedName(err error) string {
	var typeErr *valuectx.TypeError
	if errors.As(err, &typeErr) {
		return typeErr.Name
	}
	var dupErr *valuectx.DuplicateWriteError
	if errors.As(err, &dupErr) {
		return dupErr.Name
	}
	return ""
}

// execute runs the processor, turning a panic into an error so that one
// broken processor fails its own execution only.
func execute(ctx context.Context, p processor.Processor, in processor.Values) (out processor.Values, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("processor panicked: %v", r)
		}
	}()
	return p.Execute(ctx, in)
}

// checkOutputs verifies that out holds exactly the declared outputs.
func checkOutputs(nodeID string, declared []processor.Decl, out processor.Values) error {
	want := make(map[string]bool, len(declared))
	names := make([]string, 0, len(declared))
	for _, d := range declared {
		want[d.Name] = true
		names = append(names, d.Name)
	}
	sort.Strings(names)

	for _, name := range names {
		v, ok := out[name]
		if !ok || v.Type() == cty.NilType {
			return &ContextViolationError{NodeID: nodeID, Name: name, Reason: "did not produce declared output"}
		}
	}
	for _, name := range out.Names() {
		if !want[name] {
			return &ContextViolationError{NodeID: nodeID, Name: name, Reason: "produced undeclared output"}
		}
	}
	return nil
}
