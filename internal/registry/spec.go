// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package registry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/printgraph/internal/hclutil"
	"github.com/specialistvlad/printgraph/internal/processor"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var errRequired = errors.New("is required")

// Spec is one processor block of a template.
type Spec struct {
	Kind string
	ID   string
	// Args holds every attribute of the block except the reserved ones.
	Args map[string]cty.Value
	// Options carries input_mapping, output_mapping and heavy.
	Options   processor.Options
	DeclRange hcl.Range
}

// Has reports whether the argument was given and is not null.
func (s Spec) Has(name string) bool {
	v, ok := s.Args[name]
	return ok && !v.IsNull()
}

// CheckArgs rejects arguments that are not in known.
func (s Spec) CheckArgs(known ...string) error {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}
	var unknown []string
	for name := range s.Args {
		if !allowed[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	errs := make([]error, len(unknown))
	for i, name := range unknown {
		errs[i] = &ArgumentError{Name: name, Cause: errors.New("is not supported by this processor kind")}
	}
	return errors.Join(errs...)
}

// decode converts argument name to ty and then into out. A missing argument
// leaves out untouched and returns false.
func (s Spec) decode(name string, ty cty.Type, out any) (bool, error) {
	if !s.Has(name) {
		return false, nil
	}
	v, err := convert.Convert(s.Args[name], ty)
	if err != nil {
		return true, &ArgumentError{Name: name, Cause: fmt.Errorf("must be %s: %w", hclutil.TypeString(ty), err)}
	}
	if err := gocty.FromCtyValue(v, out); err != nil {
		return true, &ArgumentError{Name: name, Cause: err}
	}
	return true, nil
}

// String returns a required string argument.
func (s Spec) String(name string) (string, error) {
	var out string
	ok, err := s.decode(name, cty.String, &out)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ArgumentError{Name: name, Cause: errRequired}
	}
	return out, nil
}

// StringOr returns an optional string argument.
func (s Spec) StringOr(name, def string) (string, error) {
	out := def
	_, err := s.decode(name, cty.String, &out)
	return out, err
}

// IntOr returns an optional whole-number argument.
func (s Spec) IntOr(name string, def int) (int, error) {
	out := def
	_, err := s.decode(name, cty.Number, &out)
	return out, err
}

// BoolOr returns an optional bool argument.
func (s Spec) BoolOr(name string, def bool) (bool, error) {
	out := def
	_, err := s.decode(name, cty.Bool, &out)
	return out, err
}

// DurationOr returns an optional duration written as a Go duration string
// such as "1500ms".
func (s Spec) DurationOr(name string, def time.Duration) (time.Duration, error) {
	raw, err := s.StringOr(name, "")
	if err != nil || raw == "" {
		return def, err
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &ArgumentError{Name: name, Cause: err}
	}
	if d < 0 {
		return 0, &ArgumentError{Name: name, Cause: errors.New("must not be negative")}
	}
	return d, nil
}

// StringList returns a required list of strings.
func (s Spec) StringList(name string) ([]string, error) {
	var out []string
	ok, err := s.decode(name, cty.List(cty.String), &out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ArgumentError{Name: name, Cause: errRequired}
	}
	return out, nil
}

// StringMap returns an optional map of strings. A missing argument yields an
// empty map.
func (s Spec) StringMap(name string) (map[string]string, error) {
	out := map[string]string{}
	if _, err := s.decode(name, cty.Map(cty.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TypeOr returns an optional type argument written as a type expression
// string, e.g. `element_type = "list(number)"`.
func (s Spec) TypeOr(name string, def cty.Type) (cty.Type, error) {
	raw, err := s.StringOr(name, "")
	if err != nil || raw == "" {
		return def, err
	}
	ty, err := hclutil.ParseType(raw)
	if err != nil {
		return cty.NilType, &ArgumentError{Name: name, Cause: err}
	}
	return ty, nil
}

// Decls reads a map of names to type expressions, e.g.
// `outputs = { bbox = "list(number)" }`, as declarations sorted by name.
func (s Spec) Decls(name string) ([]processor.Decl, error) {
	raw, err := s.StringMap(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(raw))
	for n := range raw {
		names = append(names, n)
	}
	sort.Strings(names)

	decls := make([]processor.Decl, 0, len(names))
	for _, n := range names {
		ty, err := hclutil.ParseType(raw[n])
		if err != nil {
			return nil, &ArgumentError{Name: name, Cause: fmt.Errorf("entry %q: %w", n, err)}
		}
		decls = append(decls, processor.Decl{Name: n, Type: ty})
	}
	return decls, nil
}
