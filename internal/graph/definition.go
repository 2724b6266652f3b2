// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package graph

import (
	"sort"

	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/zclconf/go-cty/cty"
)

// Node is a processor together with its resolved dependencies.
type Node struct {
	Processor processor.Processor
	// Predecessors are the ids of the nodes producing this node's inputs, sorted.
	Predecessors []string
	// Successors are the ids of the nodes consuming this node's outputs, sorted.
	Successors []string
	// Seeded are the inputs satisfied by initial keys, sorted.
	Seeded []string
	// Index is the node's position in the definition's topological order.
	Index int
}

// ID returns the processor id.
func (n *Node) ID() string { return n.Processor.ID() }

// Definition is a compiled, validated processor graph.
type Definition struct {
	nodes     map[string]*Node
	order     []*Node
	initial   map[string]cty.Type
	producers map[string]string
	types     map[string]cty.Type
}

// Nodes returns the nodes in topological order.
func (d *Definition) Nodes() []*Node {
	out := make([]*Node, len(d.order))
	copy(out, d.order)
	return out
}

// Node returns the node with the given id.
func (d *Definition) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Order returns the node ids in topological order. Nodes that could run at
// the same time are ordered by id.
func (d *Definition) Order() []string {
	ids := make([]string, len(d.order))
	for i, n := range d.order {
		ids[i] = n.ID()
	}
	return ids
}

// Len returns the number of nodes.
func (d *Definition) Len() int { return len(d.order) }

// InitialKeys returns the names the graph expects to be seeded, sorted.
func (d *Definition) InitialKeys() []string {
	keys := make([]string, 0, len(d.initial))
	for k := range d.initial {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Producer returns the id of the node that produces name. Initial keys have
// no producer.
func (d *Definition) Producer(name string) (string, bool) {
	id, ok := d.producers[name]
	return id, ok
}

// Types returns the declared type of every name the graph knows about:
// initial keys and node outputs.
func (d *Definition) Types() map[string]cty.Type {
	out := make(map[string]cty.Type, len(d.types))
	for k, v := range d.types {
		out[k] = v
	}
	return out
}
