// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package collect

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/specialistvlad/printgraph/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the collect kind.
func (m *Module) Register(r *registry.Registry) {
	r.Register("collect", New)
}

// New builds a Transform that gathers several inputs into one list, in the
// order the inputs are listed:
//
//	processor "collect" "layerGraphics" {
//	  inputs = ["layerImage", "layerImage2"]
//	  output = "layerGraphics"
//	}
func New(spec registry.Spec) (processor.Processor, error) {
	if err := spec.CheckArgs("inputs", "output", "element_type"); err != nil {
		return nil, err
	}
	names, err := spec.StringList("inputs")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, &registry.ArgumentError{Name: "inputs", Cause: errors.New("must not be empty")}
	}
	output, err := spec.String("output")
	if err != nil {
		return nil, err
	}
	elem, err := spec.TypeOr("element_type", cty.String)
	if err != nil {
		return nil, err
	}
	// List elements must share one type; `any` anywhere in it would let
	// inputs disagree at run time.
	if elem.HasDynamicTypes() {
		return nil, &registry.ArgumentError{Name: "element_type", Cause: errors.New("must be a concrete type")}
	}

	inputs := make([]processor.Decl, len(names))
	for i, n := range names {
		inputs[i] = processor.Decl{Name: n, Type: elem}
	}

	return processor.NewTransform(spec.ID, inputs,
		[]processor.Decl{{Name: output, Type: cty.List(elem)}},
		func(_ context.Context, in processor.Values) (processor.Values, error) {
			items := make([]cty.Value, len(names))
			for i, n := range names {
				v, ok := in[n]
				if !ok {
					return nil, fmt.Errorf("missing input %q", n)
				}
				items[i] = v
			}
			return processor.Values{output: cty.ListVal(items)}, nil
		}), nil
}
