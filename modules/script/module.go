// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/specialistvlad/printgraph/internal/registry"
	"github.com/specialistvlad/printgraph/internal/valuectx"
)

// DefaultTimeout bounds a script run when the block sets no timeout.
const DefaultTimeout = 5 * time.Second

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the script kind.
func (m *Module) Register(r *registry.Registry) {
	r.Register("script", New)
}

// New builds a Transform running a JavaScript snippet:
//
//	processor "script" "label" {
//	  inputs  = ["rotation"]
//	  outputs = { label = "string" }
//	  source  = "({ label: 'rotated ' + input.rotation })"
//	}
//
// The snippet sees its inputs as the `input` object and must evaluate to an
// object holding the declared outputs.
func New(spec registry.Spec) (processor.Processor, error) {
	if err := spec.CheckArgs("inputs", "outputs", "source", "timeout"); err != nil {
		return nil, err
	}
	var inputNames []string
	var err error
	if spec.Has("inputs") {
		if inputNames, err = spec.StringList("inputs"); err != nil {
			return nil, err
		}
	}
	outputs, err := spec.Decls("outputs")
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, &registry.ArgumentError{Name: "outputs", Cause: errors.New("must declare at least one output")}
	}
	source, err := spec.String("source")
	if err != nil {
		return nil, err
	}
	timeout, err := spec.DurationOr("timeout", DefaultTimeout)
	if err != nil {
		return nil, err
	}

	prog, err := goja.Compile(spec.ID+".js", source, true)
	if err != nil {
		return nil, &registry.ArgumentError{Name: "source", Cause: err}
	}

	inputs := make([]processor.Decl, len(inputNames))
	for i, n := range inputNames {
		inputs[i] = processor.Decl{Name: n}
	}

	r := &runner{prog: prog, outputs: outputs, timeout: timeout}
	return processor.NewTransform(spec.ID, inputs, outputs, r.run), nil
}

type runner struct {
	prog    *goja.Program
	outputs []processor.Decl
	timeout time.Duration
}

// run executes the program on a fresh runtime; goja runtimes are not safe
// for concurrent use.
func (r *runner) run(ctx context.Context, in processor.Values) (processor.Values, error) {
	input := make(map[string]any, len(in))
	for name, v := range in {
		raw, err := valuectx.EncodeJSON(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode input %q: %w", name, err)
		}
		var plain any
		if err := json.Unmarshal(raw, &plain); err != nil {
			return nil, fmt.Errorf("failed to encode input %q: %w", name, err)
		}
		input[name] = plain
	}

	vm := goja.New()
	if err := vm.Set("input", input); err != nil {
		return nil, fmt.Errorf("failed to set input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	res, err := vm.RunProgram(r.prog)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return nil, fmt.Errorf("script interrupted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("script failed: %w", err)
	}

	exported, ok := res.Export().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("script must evaluate to an object, got %T", res.Export())
	}

	out := make(processor.Values, len(r.outputs))
	for _, d := range r.outputs {
		val, ok := exported[d.Name]
		if !ok {
			continue
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", d.Name, err)
		}
		v, err := valuectx.DecodeJSON(raw, d.Type)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", d.Name, err)
		}
		out[d.Name] = v
	}
	return out, nil
}
