// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package dag

import (
	"container/heap"
	"fmt"
	"sort"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node{
		id:         id,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// Nodes returns all node IDs, sorted.
func (g *Graph) Nodes() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.sortedIDs()
}

// Dependencies returns the sorted IDs of the nodes the given node depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedKeys(n.deps), nil
}

// Dependents returns the sorted IDs of the nodes that depend on the given node.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return sortedKeys(n.dependents), nil
}

// DetectCycles checks the graph for cycles. The returned *CycleError names
// every node that participates in any cycle, not only the first one found.
func (g *Graph) DetectCycles() error {
	cycles := g.Cycles()
	if len(cycles) == 0 {
		return nil
	}

	var members []string
	for _, c := range cycles {
		members = append(members, c...)
	}
	sort.Strings(members)
	return &CycleError{Nodes: members}
}

// Cycles returns the strongly connected components that contain a cycle.
// Each component is sorted, and components are ordered by their first ID.
func (g *Graph) Cycles() [][]string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Tarjan's algorithm, visiting nodes and edges in sorted order.
	index := 0
	indices := make(map[string]int, len(g.nodes))
	lowlink := make(map[string]int, len(g.nodes))
	onStack := make(map[string]bool, len(g.nodes))
	var stack []string
	var components [][]string

	var strongConnect func(id string)
	strongConnect = func(id string) {
		indices[id] = index
		lowlink[id] = index
		index++
		stack = append(stack, id)
		onStack[id] = true

		for _, next := range sortedKeys(g.nodes[id].dependents) {
			if _, seen := indices[next]; !seen {
				strongConnect(next)
				lowlink[id] = min(lowlink[id], lowlink[next])
			} else if onStack[next] {
				lowlink[id] = min(lowlink[id], indices[next])
			}
		}

		if lowlink[id] != indices[id] {
			return
		}

		var component []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == id {
				break
			}
		}
		// Self-edges are rejected by AddEdge, so only components with more
		// than one member can be cycles.
		if len(component) > 1 {
			sort.Strings(component)
			components = append(components, component)
		}
	}

	for _, id := range g.sortedIDs() {
		if _, seen := indices[id]; !seen {
			strongConnect(id)
		}
	}

	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })
	return components
}

// TopologicalOrder returns every node ID so that each node appears after all
// of its dependencies. Among nodes that are ready at the same time the
// lexicographically smallest ID comes first, which makes the order stable.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mutex.RLock()
	pending := make(map[string]int, len(g.nodes))
	ready := &idHeap{}
	for id, n := range g.nodes {
		pending[id] = len(n.deps)
		if len(n.deps) == 0 {
			*ready = append(*ready, id)
		}
	}
	heap.Init(ready)

	order := make([]string, 0, len(g.nodes))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		order = append(order, id)
		for dependentID := range g.nodes[id].dependents {
			pending[dependentID]--
			if pending[dependentID] == 0 {
				heap.Push(ready, dependentID)
			}
		}
	}
	total := len(g.nodes)
	g.mutex.RUnlock()

	if len(order) != total {
		if err := g.DetectCycles(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("topological order incomplete: %d of %d nodes", len(order), total)
	}
	return order, nil
}

func (g *Graph) sortedIDs() []string {
	return sortedKeys(g.nodes)
}

func sortedKeys(m map[string]*node) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// idHeap is a min-heap of node IDs.
type idHeap []string

func (h idHeap) Len() int           { return len(h) }
func (h idHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *idHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
