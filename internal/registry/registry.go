// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/specialistvlad/printgraph/internal/processor"
)

// Factory builds a processor from the arguments of one template block.
type Factory func(spec Spec) (processor.Processor, error)

// Module is the interface that all processor modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the processor factories of a single application instance.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a processor kind to its factory. Registering a kind twice is
// a programmer error and panics.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		panic(fmt.Sprintf("processor kind '%s' already registered", kind))
	}
	slog.Debug("Registering processor kind.", "kind", kind)
	r.factories[kind] = f
}

// RegisterModules calls Register on every module.
func (r *Registry) RegisterModules(mods ...Module) {
	for _, m := range mods {
		m.Register(r)
	}
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build instantiates the processor described by spec and applies its
// mapping and heavy options.
func (r *Registry) Build(spec Spec) (processor.Processor, error) {
	r.mu.RLock()
	f, ok := r.factories[spec.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownKindError{Kind: spec.Kind, ID: spec.ID, Known: r.Kinds()}
	}

	p, err := f(spec)
	if err != nil {
		return nil, &BuildError{Kind: spec.Kind, ID: spec.ID, Cause: err}
	}
	if p.ID() != spec.ID {
		return nil, &BuildError{Kind: spec.Kind, ID: spec.ID, Cause: fmt.Errorf("factory returned processor with id %q", p.ID())}
	}

	wrapped, err := processor.Wrap(p, spec.Options)
	if err != nil {
		return nil, &BuildError{Kind: spec.Kind, ID: spec.ID, Cause: err}
	}
	return wrapped, nil
}

// BuildAll builds every spec in order and stops at the first error.
func (r *Registry) BuildAll(specs []Spec) ([]processor.Processor, error) {
	out := make([]processor.Processor, 0, len(specs))
	for _, s := range specs {
		p, err := r.Build(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
