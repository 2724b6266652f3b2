// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package constant

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/specialistvlad/printgraph/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the constant kind.
func (m *Module) Register(r *registry.Registry) {
	r.Register("constant", New)
}

// New builds a Source that writes fixed values:
//
//	processor "constant" "layers" {
//	  values = { layers = ["roads", "lakes"] }
//	  types  = { layers = "list(string)" }
//	}
//
// Without a types entry an output takes the type of its literal.
func New(spec registry.Spec) (processor.Processor, error) {
	if err := spec.CheckArgs("values", "types"); err != nil {
		return nil, err
	}
	if !spec.Has("values") {
		return nil, &registry.ArgumentError{Name: "values", Cause: fmt.Errorf("is required")}
	}
	raw := spec.Args["values"]
	if !(raw.Type().IsObjectType() || raw.Type().IsMapType()) {
		return nil, &registry.ArgumentError{Name: "values", Cause: fmt.Errorf("must be an object, got %s", raw.Type().FriendlyName())}
	}

	declared, err := spec.Decls("types")
	if err != nil {
		return nil, err
	}
	types := make(map[string]cty.Type, len(declared))
	for _, d := range declared {
		types[d.Name] = d.Type
	}

	values := make(processor.Values, raw.LengthInt())
	for it := raw.ElementIterator(); it.Next(); {
		k, v := it.Element()
		name := k.AsString()
		if ty, ok := types[name]; ok {
			if v, err = convert.Convert(v, ty); err != nil {
				return nil, &registry.ArgumentError{Name: "values", Cause: fmt.Errorf("entry %q: %w", name, err)}
			}
			delete(types, name)
		}
		values[name] = v
	}
	if len(types) > 0 {
		leftover := make([]string, 0, len(types))
		for name := range types {
			leftover = append(leftover, name)
		}
		sort.Strings(leftover)
		return nil, &registry.ArgumentError{Name: "types", Cause: fmt.Errorf("entry %q has no value", leftover[0])}
	}

	names := values.Names()
	outputs := make([]processor.Decl, len(names))
	for i, name := range names {
		outputs[i] = processor.Decl{Name: name, Type: values[name].Type()}
	}

	return processor.NewSource(spec.ID, nil, outputs, func(context.Context, processor.Values) (processor.Values, error) {
		out := make(processor.Values, len(values))
		for k, v := range values {
			out[k] = v
		}
		return out, nil
	}), nil
}
