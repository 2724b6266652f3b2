// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/specialistvlad/printgraph/internal/hclutil"
	"github.com/specialistvlad/printgraph/internal/valuectx"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// requestWrapper is the optional envelope key of a request document, i.e.
// {"attributes": {"rotation": 90}}.
const requestWrapper = "attributes"

// ErrInvalidRequest is wrapped by every error DecodeRequest returns.
var ErrInvalidRequest = errors.New("invalid request")

// RequestAttributeError reports a problem with a single request attribute.
type RequestAttributeError struct {
	Name  string
	Cause error
}

func (e *RequestAttributeError) Error() string {
	return fmt.Sprintf("attribute %q: %v", e.Name, e.Cause)
}

func (e *RequestAttributeError) Unwrap() []error { return []error{ErrInvalidRequest, e.Cause} }

// DecodeRequest decodes a JSON request document against the template's
// attribute declarations. Missing attributes take their declared default;
// unknown attributes and attributes without a value or default are errors.
// An explicit null counts as missing.
func (t *Template) DecodeRequest(data []byte) (map[string]cty.Value, error) {
	raw := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: request must be a JSON object: %v", ErrInvalidRequest, err)
		}
	}
	raw = t.unwrap(raw)

	var errs []*RequestAttributeError
	out := make(map[string]cty.Value, len(t.Attributes))

	for name := range raw {
		if _, ok := t.Attribute(name); !ok {
			errs = append(errs, &RequestAttributeError{Name: name, Cause: errors.New("is not declared by the template")})
		}
	}

	for _, attr := range t.Attributes {
		if msg, ok := raw[attr.Name]; ok {
			v, err := valuectx.DecodeJSON(msg, attr.Type)
			if err != nil {
				errs = append(errs, &RequestAttributeError{
					Name:  attr.Name,
					Cause: fmt.Errorf("must be %s: %w", hclutil.TypeString(attr.Type), err),
				})
				continue
			}
			if !v.IsNull() {
				out[attr.Name] = v
				continue
			}
		}
		if attr.HasDefault() {
			out[attr.Name] = attr.Default
			continue
		}
		errs = append(errs, &RequestAttributeError{Name: attr.Name, Cause: errors.New("is required")})
	}

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Name < errs[j].Name })
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, errors.Join(joined...)
	}
	return out, nil
}

// unwrap strips the {"attributes": {...}} envelope unless the template
// declares an attribute with that name itself.
func (t *Template) unwrap(raw map[string]json.RawMessage) map[string]json.RawMessage {
	inner, ok := raw[requestWrapper]
	if !ok || len(raw) != 1 {
		return raw
	}
	if _, declared := t.Attribute(requestWrapper); declared {
		return raw
	}
	unwrapped := map[string]json.RawMessage{}
	if err := json.Unmarshal(inner, &unwrapped); err != nil {
		return raw
	}
	return unwrapped
}

// WithOverrides returns a copy of values with the given attributes replaced.
// Each override is converted to the attribute's declared type. It is used to
// fan a single request out over a sweep of values, e.g. several rotations.
func (t *Template) WithOverrides(values map[string]cty.Value, overrides map[string]cty.Value) (map[string]cty.Value, error) {
	out := make(map[string]cty.Value, len(values)+len(overrides))
	for k, v := range values {
		out[k] = v
	}

	names := make([]string, 0, len(overrides))
	for k := range overrides {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, name := range names {
		attr, ok := t.Attribute(name)
		if !ok {
			return nil, &RequestAttributeError{Name: name, Cause: errors.New("is not declared by the template")}
		}
		v, err := convertTo(overrides[name], attr.Type)
		if err != nil {
			return nil, &RequestAttributeError{Name: name, Cause: err}
		}
		out[name] = v
	}
	return out, nil
}

func convertTo(v cty.Value, ty cty.Type) (cty.Value, error) {
	converted, err := convert.Convert(v, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("must be %s: %w", hclutil.TypeString(ty), err)
	}
	return converted, nil
}
