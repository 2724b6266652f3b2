// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package valuectx

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Context is a write-once store of named, typed values.
type Context struct {
	mu     sync.RWMutex
	values map[string]cty.Value
	types  map[string]cty.Type
}

// New returns an empty Context.
func New() *Context {
	return &Context{
		values: make(map[string]cty.Value),
		types:  make(map[string]cty.Type),
	}
}

// Declare records the expected type of a name. Later writes are converted to
// it. Declaring cty.DynamicPseudoType (or never declaring) accepts any type.
// Redeclaring a name replaces its type; values already written are kept.
func (c *Context) Declare(name string, ty cty.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types[name] = ty
}

// DeclareAll records several types at once.
func (c *Context) DeclareAll(types map[string]cty.Type) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, ty := range types {
		c.types[name] = ty
	}
}

// Seed writes the initial attributes of a request. Names are written in
// sorted order and the first failing write stops the seeding.
func (c *Context) Seed(values map[string]cty.Value) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := c.Set(name, values[name]); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the value bound to name.
func (c *Context) Get(name string) (cty.Value, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[name]
	if !ok {
		return cty.NilVal, &MissingValueError{Name: name}
	}
	return v, nil
}

// Set binds name to v. A name can be bound only once.
func (c *Context) Set(name string, v cty.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.prepare(name, v)
	if err != nil {
		return err
	}
	c.values[name] = v
	return nil
}

// SetAll binds every name in values, or none of them: if any write would
// fail, the context is left unchanged and the first error in name order is
// returned.
func (c *Context) SetAll(values map[string]cty.Value) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	c.mu.Lock()
	defer c.mu.Unlock()

	prepared := make([]cty.Value, len(names))
	for i, name := range names {
		v, err := c.prepare(name, values[name])
		if err != nil {
			return err
		}
		prepared[i] = v
	}
	for i, name := range names {
		c.values[name] = prepared[i]
	}
	return nil
}

// prepare checks that name is unbound and converts v to its declared type.
// The caller holds c.mu.
func (c *Context) prepare(name string, v cty.Value) (cty.Value, error) {
	if v.Type() == cty.NilType {
		return cty.NilVal, &TypeError{Name: name, Want: cty.DynamicPseudoType, Got: cty.NilType, Cause: fmt.Errorf("nil value")}
	}
	if !v.IsWhollyKnown() {
		return cty.NilVal, &TypeError{Name: name, Want: cty.DynamicPseudoType, Got: v.Type(), Cause: fmt.Errorf("value is not wholly known")}
	}
	if _, exists := c.values[name]; exists {
		return cty.NilVal, &DuplicateWriteError{Name: name}
	}

	if want, ok := c.types[name]; ok && !want.Equals(cty.DynamicPseudoType) && !v.Type().Equals(want) {
		converted, err := convert.Convert(v, want)
		if err != nil {
			return cty.NilVal, &TypeError{Name: name, Want: want, Got: v.Type(), Cause: err}
		}
		v = converted
	}
	return v, nil
}

// Has reports whether name has been written.
func (c *Context) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.values[name]
	return ok
}

// Names returns the written names, sorted.
func (c *Context) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of written names.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// Object returns every written value as attributes of a single cty object.
func (c *Context) Object() cty.Value {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.values) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(c.values))
	for name, v := range c.values {
		attrs[name] = v
	}
	return cty.ObjectVal(attrs)
}

// Snapshot encodes the context as a JSON object with sorted keys. Two
// contexts holding equal values produce byte-identical snapshots.
func (c *Context) Snapshot() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// encoding/json sorts map keys.
	raw := make(map[string]json.RawMessage, len(c.values))
	for name, v := range c.values {
		b, err := ctyjson.Marshal(v, v.Type())
		if err != nil {
			return nil, fmt.Errorf("failed to encode value %q: %w", name, err)
		}
		raw[name] = b
	}
	return json.Marshal(raw)
}
