// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/printgraph/internal/ctxlog"
	"github.com/specialistvlad/printgraph/internal/graph"
	"github.com/specialistvlad/printgraph/internal/valuectx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const tracerName = "github.com/specialistvlad/printgraph/internal/engine"

// Executor runs compiled graphs. One Executor may run any number of
// executions concurrently; the worker and heavy limits are shared by all of
// them, so a sweep never runs more than Workers processors at once.
type Executor struct {
	cfg    Config
	serial bool
	// slots holds one unit per running processor or extra fan-out item.
	slots  *semaphore.Weighted
	heavy  *semaphore.Weighted
	tracer trace.Tracer
}

// Option customises an Executor.
type Option func(*Executor)

// WithTracerProvider makes the executor create spans from tp instead of the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Executor) { e.tracer = tp.Tracer(tracerName) }
}

// New returns an executor backed by a worker pool.
func New(cfg Config, opts ...Option) *Executor {
	return newExecutor(cfg, false, opts)
}

// NewSerial returns an executor that runs one node at a time, in the
// graph's topological order.
func NewSerial(cfg Config, opts ...Option) *Executor {
	cfg.Workers = 1
	return newExecutor(cfg, true, opts)
}

func newExecutor(cfg Config, serial bool, opts []Option) *Executor {
	e := &Executor{
		cfg:    cfg.withDefaults(),
		serial: serial,
		tracer: otel.Tracer(tracerName),
	}
	e.slots = semaphore.NewWeighted(int64(e.cfg.Workers))
	if e.cfg.HeavyLimit > 0 {
		e.heavy = semaphore.NewWeighted(int64(e.cfg.HeavyLimit))
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Executor) Config() Config { return e.cfg }

// Execute runs def against vc, which must already hold every initial key of
// def. On success the returned Result carries vc with all outputs
// committed. On failure the error is an *ExecutionError.
func (e *Executor) Execute(ctx context.Context, def *graph.Definition, vc *valuectx.Context) (*Result, error) {
	if def == nil || vc == nil {
		return nil, errors.New("engine: nil definition or value context")
	}

	id := uuid.NewString()
	ctx = ctxlog.With(ctx, "executionID", id)
	logger := ctxlog.FromContext(ctx)

	ctx, span := e.tracer.Start(ctx, "printgraph.execute", trace.WithAttributes(
		attribute.String("printgraph.execution_id", id),
		attribute.Int("printgraph.nodes", def.Len()),
		attribute.Bool("printgraph.serial", e.serial),
	))
	defer span.End()

	for _, key := range def.InitialKeys() {
		if !vc.Has(key) {
			err := &ExecutionError{ExecutionID: id, Cause: &valuectx.MissingValueError{Name: key}, Completed: []string{}}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
	vc.DeclareAll(def.Types())

	runCtx, cancelRun := ctx, context.CancelFunc(func() {})
	if e.cfg.Timeout > 0 {
		runCtx, cancelRun = context.WithTimeout(ctx, e.cfg.Timeout)
	}
	defer cancelRun()

	ex := newExecution(e, id, ctx, runCtx, def, vc)
	logger.Debug("Execution starting.", "nodes", def.Len(), "workers", e.cfg.Workers, "serial", e.serial)

	ex.start()

	select {
	case <-ex.done:
	case <-ex.aborted:
	case <-runCtx.Done():
		ex.abort("", contextError(ctx, e.cfg.Timeout))
	}
	ex.stop()

	failure := ex.failure()
	reports := ex.reports()
	if failure != nil {
		failure.Completed = completedIDs(reports)
		logger.Error("Execution failed.", "nodeID", failure.NodeID, "error", failure.Cause)
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
		return nil, failure
	}

	logger.Debug("Execution finished.", "duration", time.Since(ex.began))
	return &Result{
		ExecutionID: id,
		Context:     vc,
		Nodes:       reports,
		Duration:    time.Since(ex.began),
	}, nil
}

// contextError classifies why runCtx ended: the caller's own deadline or the
// configured timeout is a TimeoutError, anything else a CancellationError.
func contextError(parent context.Context, timeout time.Duration) error {
	if err := parent.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &TimeoutError{}
		}
		return &CancellationError{Cause: context.Cause(parent)}
	}
	return &TimeoutError{After: timeout}
}
