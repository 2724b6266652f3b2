// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package layers provides the layer rendering processors. Rendered rasters
// are written to a storage sink and only their URIs enter the value context.
package layers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/specialistvlad/printgraph/internal/ctxlog"
	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/specialistvlad/printgraph/internal/registry"
	"github.com/specialistvlad/printgraph/internal/storage"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

const (
	defaultSize    = 256
	contentTypePNG = "image/png"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	Sink storage.Sink
}

// Register registers the render_layer and render_layers kinds.
func (m *Module) Register(r *registry.Registry) {
	r.Register("render_layer", m.newRenderLayer)
	r.Register("render_layers", m.newRenderLayers)
}

// shape holds the arguments both kinds share.
type shape struct {
	bbox     string
	rotation string
	width    int
	height   int
}

func parseShape(spec registry.Spec) (shape, error) {
	var s shape
	var err error
	if s.bbox, err = spec.StringOr("bbox", "bbox"); err != nil {
		return s, err
	}
	if s.rotation, err = spec.StringOr("rotation", "rotation"); err != nil {
		return s, err
	}
	if s.width, err = spec.IntOr("width", defaultSize); err != nil {
		return s, err
	}
	if s.height, err = spec.IntOr("height", defaultSize); err != nil {
		return s, err
	}
	return s, nil
}

func (s shape) inputs() []processor.Decl {
	return []processor.Decl{
		{Name: s.bbox, Type: cty.List(cty.Number)},
		{Name: s.rotation, Type: cty.Number},
	}
}

// request builds a render request from the shape's inputs.
func (s shape) request(layer string, in processor.Values) (Request, error) {
	req := Request{Layer: layer, Width: s.width, Height: s.height}
	if err := gocty.FromCtyValue(in[s.bbox], &req.BBox); err != nil {
		return req, fmt.Errorf("input %q: %w", s.bbox, err)
	}
	if err := gocty.FromCtyValue(in[s.rotation], &req.Rotation); err != nil {
		return req, fmt.Errorf("input %q: %w", s.rotation, err)
	}
	return req, nil
}

// renderAndStore renders req and stores it under a content-addressed name,
// so equal rasters share one object and different rasters never collide.
func (m *Module) renderAndStore(ctx context.Context, req Request) (cty.Value, error) {
	data, err := Render(ctx, req)
	if err != nil {
		return cty.NilVal, err
	}
	sum := sha256.Sum256(data)
	name := fmt.Sprintf("layers/%s/%s.png", req.Layer, hex.EncodeToString(sum[:8]))

	uri, err := m.Sink.Put(ctx, name, data, contentTypePNG)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to store layer %q: %w", req.Layer, err)
	}
	ctxlog.FromContext(ctx).Debug("Rendered layer.", "layer", req.Layer, "rotation", req.Rotation, "uri", uri)
	return cty.StringVal(uri), nil
}

// heavyTransform marks a Transform as heavy.
type heavyTransform struct {
	*processor.FuncProcessor
}

func (heavyTransform) Heavy() bool { return true }

// newRenderLayer builds a Transform rendering one named layer:
//
//	processor "render_layer" "roads" {
//	  layer  = "roads"
//	  output = "layerImage"
//	}
func (m *Module) newRenderLayer(spec registry.Spec) (processor.Processor, error) {
	if err := spec.CheckArgs("layer", "output", "bbox", "rotation", "width", "height"); err != nil {
		return nil, err
	}
	layer, err := spec.String("layer")
	if err != nil {
		return nil, err
	}
	output, err := spec.String("output")
	if err != nil {
		return nil, err
	}
	s, err := parseShape(spec)
	if err != nil {
		return nil, err
	}

	fn := func(ctx context.Context, in processor.Values) (processor.Values, error) {
		req, err := s.request(layer, in)
		if err != nil {
			return nil, err
		}
		uri, err := m.renderAndStore(ctx, req)
		if err != nil {
			return nil, err
		}
		return processor.Values{output: uri}, nil
	}

	return heavyTransform{processor.NewTransform(spec.ID, s.inputs(),
		[]processor.Decl{{Name: output, Type: cty.String}}, fn)}, nil
}

// newRenderLayers builds a Fanout rendering every layer named in a list
// input, one sub-task per layer, into a list of URIs in input order.
func (m *Module) newRenderLayers(spec registry.Spec) (processor.Processor, error) {
	if err := spec.CheckArgs("over", "output", "limit", "bbox", "rotation", "width", "height"); err != nil {
		return nil, err
	}
	over, err := spec.StringOr("over", "layers")
	if err != nil {
		return nil, err
	}
	output, err := spec.String("output")
	if err != nil {
		return nil, err
	}
	limit, err := spec.IntOr("limit", 0)
	if err != nil {
		return nil, err
	}
	s, err := parseShape(spec)
	if err != nil {
		return nil, err
	}

	fan, err := processor.NewFanout(processor.FanoutConfig{
		ID:     spec.ID,
		Over:   processor.Decl{Name: over, Type: cty.List(cty.String)},
		Shared: s.inputs(),
		Output: processor.Decl{Name: output, Type: cty.List(cty.String)},
		Limit:  limit,
		Heavy:  true,
		Each: func(ctx context.Context, _ int, item cty.Value, shared processor.Values) (cty.Value, error) {
			if item.IsNull() {
				return cty.NilVal, fmt.Errorf("layer name must not be null")
			}
			req, err := s.request(item.AsString(), shared)
			if err != nil {
				return cty.NilVal, err
			}
			return m.renderAndStore(ctx, req)
		},
	})
	if err != nil {
		return nil, err
	}
	return fan, nil
}
