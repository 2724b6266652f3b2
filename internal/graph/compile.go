// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/specialistvlad/printgraph/internal/dag"
	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Compile validates processors against each other and against the initial
// keys a request will seed, and returns the resulting Definition.
func Compile(processors []processor.Processor, initial map[string]cty.Type) (*Definition, error) {
	c := &compiler{
		initial:   make(map[string]cty.Type, len(initial)),
		nodes:     make(map[string]*Node, len(processors)),
		producers: make(map[string][]string),
		types:     make(map[string]cty.Type),
	}
	for k, v := range initial {
		if v == cty.NilType {
			v = cty.DynamicPseudoType
		}
		c.initial[k] = v
		c.types[k] = v
	}

	c.collectNodes(processors)
	c.collectOutputs()
	c.resolveInputs()
	g := c.buildDAG()

	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompile, err)
	}

	def := &Definition{
		nodes:     c.nodes,
		order:     make([]*Node, len(order)),
		initial:   c.initial,
		producers: make(map[string]string, len(c.producers)),
		types:     c.types,
	}
	for i, id := range order {
		n := c.nodes[id]
		n.Index = i
		n.Successors, _ = g.Dependents(id)
		def.order[i] = n
	}
	for name, ids := range c.producers {
		def.producers[name] = ids[0]
	}
	return def, nil
}

type compiler struct {
	initial   map[string]cty.Type
	nodes     map[string]*Node
	ids       []string
	producers map[string][]string
	types     map[string]cty.Type
	// edges maps a consumer id to the producer ids it depends on.
	edges      map[string]map[string]bool
	selfCycles []string
	errs       []error
}

func (c *compiler) collectNodes(processors []processor.Processor) {
	reported := make(map[string]bool)
	for i, p := range processors {
		if p == nil {
			c.errs = append(c.errs, fmt.Errorf("%w: processor at position %d is nil", ErrCompile, i))
			continue
		}
		id := p.ID()
		if id == "" {
			c.errs = append(c.errs, fmt.Errorf("%w: processor at position %d has an empty id", ErrCompile, i))
			continue
		}
		if _, exists := c.nodes[id]; exists {
			if !reported[id] {
				c.errs = append(c.errs, &DuplicateNodeError{NodeID: id})
				reported[id] = true
			}
			continue
		}
		c.nodes[id] = &Node{Processor: p}
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)
}

func (c *compiler) collectOutputs() {
	for _, id := range c.ids {
		for _, out := range c.nodes[id].Processor.Outputs() {
			c.producers[out.Name] = append(c.producers[out.Name], id)
			c.types[out.Name] = out.EffectiveType()
		}
	}

	names := make([]string, 0, len(c.producers))
	for name := range c.producers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ids := c.producers[name]
		if _, seeded := c.initial[name]; seeded {
			c.errs = append(c.errs, &DuplicateOutputError{Output: name, NodeIDs: ids, Seeded: true})
			c.types[name] = c.initial[name]
			continue
		}
		if len(ids) > 1 {
			c.errs = append(c.errs, &DuplicateOutputError{Output: name, NodeIDs: ids})
		}
	}
}

func (c *compiler) resolveInputs() {
	c.edges = make(map[string]map[string]bool, len(c.ids))
	for _, id := range c.ids {
		n := c.nodes[id]
		c.edges[id] = make(map[string]bool)
		seen := make(map[string]bool)

		for _, in := range n.Processor.Inputs() {
			if seen[in.Name] {
				continue
			}
			seen[in.Name] = true

			producers, produced := c.producers[in.Name]
			initialType, seeded := c.initial[in.Name]

			switch {
			case seeded:
				n.Seeded = append(n.Seeded, in.Name)
				c.checkType(id, in, "", initialType)
			case produced && len(producers) == 1:
				producer := producers[0]
				if producer == id {
					c.selfCycles = append(c.selfCycles, id)
					continue
				}
				if n.Processor.Variant() == processor.Source {
					c.errs = append(c.errs, &SourceInputError{NodeID: id, Input: in.Name, Producer: producer})
					continue
				}
				c.edges[id][producer] = true
				c.checkType(id, in, producer, c.nodes[producer].outputType(in.Name))
			case produced:
				// Ambiguous; already reported as a duplicate output.
			default:
				c.errs = append(c.errs, &MissingInputError{NodeID: id, Input: in.Name})
			}
		}
		sort.Strings(n.Seeded)
	}
}

func (c *compiler) checkType(id string, in processor.Decl, producer string, got cty.Type) {
	want := in.EffectiveType()
	if compatible(got, want) {
		return
	}
	c.errs = append(c.errs, &TypeMismatchError{NodeID: id, Input: in.Name, Producer: producer, Want: want, Got: got})
}

func (c *compiler) buildDAG() *dag.Graph {
	g := dag.New()
	for _, id := range c.ids {
		g.AddNode(id)
	}
	for _, id := range c.ids {
		preds := make([]string, 0, len(c.edges[id]))
		for producer := range c.edges[id] {
			preds = append(preds, producer)
		}
		sort.Strings(preds)
		for _, producer := range preds {
			// Both ends exist and differ, so AddEdge cannot fail.
			_ = g.AddEdge(producer, id)
		}
		c.nodes[id].Predecessors = preds
	}

	members := append([]string(nil), c.selfCycles...)
	var cycleErr *dag.CycleError
	if err := g.DetectCycles(); errors.As(err, &cycleErr) {
		members = append(members, cycleErr.Nodes...)
	}
	if len(members) > 0 {
		c.errs = append(c.errs, &CycleError{NodeIDs: uniqueSorted(members)})
	}
	return g
}

func (n *Node) outputType(name string) cty.Type {
	for _, out := range n.Processor.Outputs() {
		if out.Name == name {
			return out.EffectiveType()
		}
	}
	return cty.DynamicPseudoType
}

// compatible reports whether a value of type got can always be converted to
// type want. Types involving "any" are checked again at run time.
func compatible(got, want cty.Type) bool {
	if want.Equals(cty.DynamicPseudoType) || got.Equals(cty.DynamicPseudoType) || got.Equals(want) {
		return true
	}
	if got.HasDynamicTypes() || want.HasDynamicTypes() {
		return convert.GetConversionUnsafe(got, want) != nil
	}
	return convert.GetConversion(got, want) != nil
}

func uniqueSorted(ids []string) []string {
	sort.Strings(ids)
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out
}
