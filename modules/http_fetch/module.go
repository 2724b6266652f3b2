// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package http_fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/specialistvlad/printgraph/internal/fetch"
	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/specialistvlad/printgraph/internal/registry"
	"github.com/specialistvlad/printgraph/internal/valuectx"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	Client *fetch.Client
}

// Register registers the http_fetch kind.
func (m *Module) Register(r *registry.Registry) {
	r.Register("http_fetch", m.newFetch)
}

// newFetch builds a Source that GETs a JSON document and writes selected
// fields of it:
//
//	processor "http_fetch" "mapInfo" {
//	  url     = "https://tiles.example/info.json?rotation={rotation}"
//	  inputs  = ["rotation"]
//	  extract = { bbox = "map.extent" }
//	  types   = { bbox = "list(number)" }
//	}
//
// `{name}` placeholders in the URL are replaced by the query-escaped string
// form of the named input. Fields without a types entry keep the type implied
// by their JSON.
func (m *Module) newFetch(spec registry.Spec) (processor.Processor, error) {
	if m.Client == nil {
		return nil, errors.New("http_fetch: no fetch client configured")
	}
	if err := spec.CheckArgs("url", "inputs", "extract", "types"); err != nil {
		return nil, err
	}
	rawURL, err := spec.String("url")
	if err != nil {
		return nil, err
	}
	var inputNames []string
	if spec.Has("inputs") {
		if inputNames, err = spec.StringList("inputs"); err != nil {
			return nil, err
		}
	}
	for _, n := range inputNames {
		if !strings.Contains(rawURL, "{"+n+"}") {
			return nil, &registry.ArgumentError{Name: "inputs", Cause: fmt.Errorf("input %q is not used in the url", n)}
		}
	}
	extract, err := spec.StringMap("extract")
	if err != nil {
		return nil, err
	}
	if len(extract) == 0 {
		return nil, &registry.ArgumentError{Name: "extract", Cause: errors.New("must name at least one field")}
	}
	typed, err := spec.Decls("types")
	if err != nil {
		return nil, err
	}
	types := make(map[string]cty.Type, len(typed))
	for _, d := range typed {
		if _, ok := extract[d.Name]; !ok {
			return nil, &registry.ArgumentError{Name: "types", Cause: fmt.Errorf("entry %q is not extracted", d.Name)}
		}
		types[d.Name] = d.Type
	}

	inputs := make([]processor.Decl, len(inputNames))
	for i, n := range inputNames {
		inputs[i] = processor.Decl{Name: n, Type: cty.String}
	}
	outputs := make([]processor.Decl, 0, len(extract))
	for _, name := range sortedKeys(extract) {
		outputs = append(outputs, processor.Decl{Name: name, Type: types[name]})
	}

	client := m.Client
	return processor.NewSource(spec.ID, inputs, outputs, func(ctx context.Context, in processor.Values) (processor.Values, error) {
		target := rawURL
		for _, n := range inputNames {
			target = strings.ReplaceAll(target, "{"+n+"}", url.QueryEscape(in[n].AsString()))
		}

		fields, err := client.GetJSON(ctx, target, extract)
		if err != nil {
			return nil, err
		}

		out := make(processor.Values, len(fields))
		for name, raw := range fields {
			v, err := valuectx.DecodeJSON(raw, types[name])
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			out[name] = v
		}
		return out, nil
	}), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
