// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package processor

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/printgraph/internal/hclutil"
	"github.com/zclconf/go-cty/cty"
)

// Variant is the closed set of processor kinds.
type Variant int

const (
	Source Variant = iota
	Transform
	Fanout
)

func (v Variant) String() string {
	switch v {
	case Source:
		return "source"
	case Transform:
		return "transform"
	case Fanout:
		return "fanout"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Decl declares a named, typed value a processor reads or writes.
type Decl struct {
	Name string
	Type cty.Type
}

// EffectiveType returns the declared type, treating an unset type as any.
func (d Decl) EffectiveType() cty.Type {
	if d.Type == cty.NilType {
		return cty.DynamicPseudoType
	}
	return d.Type
}

func (d Decl) String() string {
	return fmt.Sprintf("%s (%s)", d.Name, hclutil.TypeString(d.EffectiveType()))
}

// Values maps names to values, both for inputs and for outputs.
type Values map[string]cty.Value

// Names returns the keys of v, sorted.
func (v Values) Names() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Processor is a single unit of work in a processor graph.
type Processor interface {
	// ID is unique within a graph.
	ID() string
	Variant() Variant
	Inputs() []Decl
	Outputs() []Decl
	// Execute receives exactly the declared inputs and must return exactly
	// the declared outputs. It should honour ctx cancellation.
	Execute(ctx context.Context, in Values) (Values, error)
}

// Heavy is implemented by processors whose executions are expensive enough
// to be bounded separately by the executor (image rendering, for example).
type Heavy interface {
	Heavy() bool
}

// IsHeavy reports whether p declares itself heavy.
func IsHeavy(p Processor) bool {
	h, ok := p.(Heavy)
	return ok && h.Heavy()
}

// Func is the body of a Source or Transform processor.
type Func func(ctx context.Context, in Values) (Values, error)

// FuncProcessor is a Source or Transform processor backed by a Func.
type FuncProcessor struct {
	id      string
	variant Variant
	inputs  []Decl
	outputs []Decl
	fn      Func
}

// NewSource creates a Source processor. Its inputs may only name seeded
// request attributes, which the graph compiler enforces.
func NewSource(id string, inputs, outputs []Decl, fn Func) *FuncProcessor {
	return &FuncProcessor{id: id, variant: Source, inputs: inputs, outputs: outputs, fn: fn}
}

// NewTransform creates a Transform processor.
func NewTransform(id string, inputs, outputs []Decl, fn Func) *FuncProcessor {
	return &FuncProcessor{id: id, variant: Transform, inputs: inputs, outputs: outputs, fn: fn}
}

func (p *FuncProcessor) ID() string       { return p.id }
func (p *FuncProcessor) Variant() Variant { return p.variant }
func (p *FuncProcessor) Inputs() []Decl   { return p.inputs }
func (p *FuncProcessor) Outputs() []Decl  { return p.outputs }

func (p *FuncProcessor) Execute(ctx context.Context, in Values) (Values, error) {
	return p.fn(ctx, in)
}
