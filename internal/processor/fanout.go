// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package processor

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"golang.org/x/sync/errgroup"
)

type (
	fanoutLimitKey struct{}
	slotsKey       struct{}
)

// Slots hands out execution slots shared with the rest of an executor.
// *semaphore.Weighted satisfies it.
type Slots interface {
	TryAcquire(n int64) bool
	Release(n int64)
}

// WithSlots makes Fanout processors take a slot from s for every item they
// run beyond the first. The first item runs on the slot the node itself
// already holds, so a fan-out always makes progress.
func WithSlots(ctx context.Context, s Slots) context.Context {
	return context.WithValue(ctx, slotsKey{}, s)
}

func slotsFrom(ctx context.Context) Slots {
	s, _ := ctx.Value(slotsKey{}).(Slots)
	return s
}

// WithFanoutLimit sets the default number of concurrent sub-tasks for Fanout
// processors executed with the returned context. A processor's own limit
// takes precedence.
func WithFanoutLimit(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, fanoutLimitKey{}, n)
}

func fanoutLimit(ctx context.Context) int {
	if n, ok := ctx.Value(fanoutLimitKey{}).(int); ok && n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

// ItemFunc processes one element of a fan-out. shared holds the fan-out's
// broadcast inputs.
type ItemFunc func(ctx context.Context, index int, item cty.Value, shared Values) (cty.Value, error)

// FanoutConfig describes a Fanout processor.
type FanoutConfig struct {
	ID string
	// Over is the list input iterated over.
	Over Decl
	// Shared inputs are passed unchanged to every item.
	Shared []Decl
	// Output is a list whose element type every item result is converted to.
	Output Decl
	// Limit bounds concurrent items. Zero uses the executor's default.
	Limit int
	Heavy bool
	Each  ItemFunc
}

// FanoutProcessor runs Each over every element of Over concurrently and
// writes the results to Output in input order.
type FanoutProcessor struct {
	cfg     FanoutConfig
	elem    cty.Type
	inputs  []Decl
	outputs []Decl
}

// NewFanout validates cfg and returns a Fanout processor.
func NewFanout(cfg FanoutConfig) (*FanoutProcessor, error) {
	if cfg.Each == nil {
		return nil, fmt.Errorf("fanout %q: no item function", cfg.ID)
	}
	if cfg.Limit < 0 {
		return nil, fmt.Errorf("fanout %q: limit must not be negative", cfg.ID)
	}
	overType := cfg.Over.EffectiveType()
	if !(overType.IsListType() || overType.IsSetType() || overType.IsTupleType() || overType.Equals(cty.DynamicPseudoType)) {
		return nil, fmt.Errorf("fanout %q: input %q must be a list, got %s", cfg.ID, cfg.Over.Name, overType.FriendlyName())
	}
	outType := cfg.Output.EffectiveType()
	if !outType.IsListType() {
		return nil, fmt.Errorf("fanout %q: output %q must be a list, got %s", cfg.ID, cfg.Output.Name, outType.FriendlyName())
	}

	inputs := append([]Decl{cfg.Over}, cfg.Shared...)
	return &FanoutProcessor{
		cfg:     cfg,
		elem:    outType.ElementType(),
		inputs:  inputs,
		outputs: []Decl{cfg.Output},
	}, nil
}

func (p *FanoutProcessor) ID() string       { return p.cfg.ID }
func (p *FanoutProcessor) Variant() Variant { return Fanout }
func (p *FanoutProcessor) Inputs() []Decl   { return p.inputs }
func (p *FanoutProcessor) Outputs() []Decl  { return p.outputs }
func (p *FanoutProcessor) Heavy() bool      { return p.cfg.Heavy }

// Execute processes every item. The first failing item cancels the context
// passed to the others and its error is returned; items that have not
// started yet are not run.
func (p *FanoutProcessor) Execute(ctx context.Context, in Values) (Values, error) {
	list, ok := in[p.cfg.Over.Name]
	if !ok {
		return nil, fmt.Errorf("missing input %q", p.cfg.Over.Name)
	}

	var items []cty.Value
	if !list.IsNull() {
		if !list.CanIterateElements() {
			return nil, fmt.Errorf("input %q is not iterable: %s", p.cfg.Over.Name, list.Type().FriendlyName())
		}
		for it := list.ElementIterator(); it.Next(); {
			_, item := it.Element()
			items = append(items, item)
		}
	}

	shared := make(Values, len(p.cfg.Shared))
	for _, d := range p.cfg.Shared {
		shared[d.Name] = in[d.Name]
	}

	limit := p.cfg.Limit
	if limit == 0 {
		limit = fanoutLimit(ctx)
	}

	results := make([]cty.Value, len(items))
	var next atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	work := func() error {
		for {
			i := int(next.Add(1) - 1)
			if i >= len(items) {
				return nil
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := p.each(gctx, i, items[i], shared)
			if err != nil {
				return &FanoutItemError{Index: i, Cause: err}
			}
			if !p.elem.Equals(cty.DynamicPseudoType) {
				if v, err = convert.Convert(v, p.elem); err != nil {
					return &FanoutItemError{Index: i, Cause: err}
				}
			}
			results[i] = v
		}
	}

	slots := slotsFrom(ctx)
	for helpers := min(limit, len(items)) - 1; helpers > 0; helpers-- {
		if slots != nil && !slots.TryAcquire(1) {
			break
		}
		g.Go(func() error {
			if slots != nil {
				defer slots.Release(1)
			}
			return work()
		})
	}
	g.Go(work)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := p.merge(results)
	if err != nil {
		return nil, err
	}
	return Values{p.cfg.Output.Name: merged}, nil
}

// each runs one item. Items run on their own goroutines, where a panic
// would not reach the executor, so it is reported as the item's error.
func (p *FanoutProcessor) each(ctx context.Context, i int, item cty.Value, shared Values) (v cty.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = cty.NilVal, fmt.Errorf("item panicked: %v", r)
		}
	}()
	return p.cfg.Each(ctx, i, item, shared)
}

// merge builds the output list. Element types holding `any` may differ
// between items, so those lists are unified by conversion instead of being
// assumed homogeneous.
func (p *FanoutProcessor) merge(results []cty.Value) (cty.Value, error) {
	if p.elem.Equals(cty.DynamicPseudoType) {
		if len(results) == 0 {
			return cty.EmptyTupleVal, nil
		}
		return cty.TupleVal(results), nil
	}
	if len(results) == 0 {
		return cty.ListValEmpty(p.elem), nil
	}
	if p.elem.HasDynamicTypes() {
		v, err := convert.Convert(cty.TupleVal(results), cty.List(p.elem))
		if err != nil {
			return cty.NilVal, fmt.Errorf("cannot merge items into a list: %w", err)
		}
		return v, nil
	}
	return cty.ListVal(results), nil
}
