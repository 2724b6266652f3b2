// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package processor

import (
	"context"
	"fmt"
	"sort"
)

// Options adjust how a processor is bound into a particular graph.
type Options struct {
	// InputMapping renames local input names to value context names.
	InputMapping map[string]string
	// OutputMapping renames local output names to value context names.
	OutputMapping map[string]string
	// Heavy overrides the processor's own Heavy answer when set.
	Heavy *bool
}

// Wrap applies opts to p. Mapping keys must name declared inputs or outputs,
// and no two names may be mapped onto the same context name.
func Wrap(p Processor, opts Options) (Processor, error) {
	if len(opts.InputMapping) == 0 && len(opts.OutputMapping) == 0 && opts.Heavy == nil {
		return p, nil
	}

	inputs, inToLocal, err := remap(p.ID(), "input", p.Inputs(), opts.InputMapping)
	if err != nil {
		return nil, err
	}
	outputs, outToContext, err := remap(p.ID(), "output", p.Outputs(), opts.OutputMapping)
	if err != nil {
		return nil, err
	}

	heavy := IsHeavy(p)
	if opts.Heavy != nil {
		heavy = *opts.Heavy
	}

	return &mapped{
		inner:     p,
		inputs:    inputs,
		outputs:   outputs,
		inToLocal: inToLocal,
		outToCtx:  outToContext,
		heavy:     heavy,
	}, nil
}

// remap renames decls and returns the renamed decls together with the
// lookup table the mapped processor needs at execution time.
func remap(id, kind string, decls []Decl, mapping map[string]string) ([]Decl, map[string]string, error) {
	declared := make(map[string]bool, len(decls))
	for _, d := range decls {
		declared[d.Name] = true
	}

	local := make([]string, 0, len(mapping))
	for name := range mapping {
		local = append(local, name)
	}
	sort.Strings(local)
	for _, name := range local {
		if !declared[name] {
			return nil, nil, fmt.Errorf("processor %q: %s_mapping refers to undeclared %s %q", id, kind, kind, name)
		}
	}

	renamed := make([]Decl, 0, len(decls))
	table := make(map[string]string, len(decls))
	seen := make(map[string]string, len(decls))
	for _, d := range decls {
		target := d.Name
		if m, ok := mapping[d.Name]; ok && m != "" {
			target = m
		}
		if prev, dup := seen[target]; dup {
			return nil, nil, fmt.Errorf("processor %q: %ss %q and %q both map to %q", id, kind, prev, d.Name, target)
		}
		seen[target] = d.Name
		renamed = append(renamed, Decl{Name: target, Type: d.Type})

		if kind == "input" {
			table[target] = d.Name
		} else {
			table[d.Name] = target
		}
	}
	return renamed, table, nil
}

type mapped struct {
	inner     Processor
	inputs    []Decl
	outputs   []Decl
	inToLocal map[string]string
	outToCtx  map[string]string
	heavy     bool
}

func (m *mapped) ID() string       { return m.inner.ID() }
func (m *mapped) Variant() Variant { return m.inner.Variant() }
func (m *mapped) Inputs() []Decl   { return m.inputs }
func (m *mapped) Outputs() []Decl  { return m.outputs }
func (m *mapped) Heavy() bool      { return m.heavy }

func (m *mapped) Execute(ctx context.Context, in Values) (Values, error) {
	local := make(Values, len(in))
	for name, v := range in {
		if l, ok := m.inToLocal[name]; ok {
			name = l
		}
		local[name] = v
	}

	out, err := m.inner.Execute(ctx, local)
	if err != nil {
		return nil, err
	}

	renamed := make(Values, len(out))
	for name, v := range out {
		if c, ok := m.outToCtx[name]; ok {
			name = c
		}
		renamed[name] = v
	}
	return renamed, nil
}
