// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/printgraph/internal/ctxlog"
	"github.com/specialistvlad/printgraph/internal/fsutil"
	"github.com/specialistvlad/printgraph/internal/hclutil"
	"github.com/specialistvlad/printgraph/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Reserved processor block attributes. Everything else is a factory argument.
const (
	attrInputMapping  = "input_mapping"
	attrOutputMapping = "output_mapping"
	attrHeavy         = "heavy"
)

var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "attribute", LabelNames: []string{"name"}},
		{Type: "processor", LabelNames: []string{"kind", "id"}},
	},
}

var attributeSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type", Required: true},
		{Name: "default"},
		{Name: "description"},
	},
}

// Attribute is a declared request attribute.
type Attribute struct {
	Name string
	Type cty.Type
	// Default is cty.NilVal when the attribute has no default.
	Default     cty.Value
	Description string
	DeclRange   hcl.Range
}

// HasDefault reports whether the attribute declares a default value.
func (a *Attribute) HasDefault() bool {
	return a.Default.Type() != cty.NilType
}

// Template is a parsed print template.
type Template struct {
	// Attributes are sorted by name.
	Attributes []*Attribute
	// Processors are in declaration order, file by file.
	Processors []registry.Spec
	// Files lists the files the template was loaded from.
	Files []string
}

// Attribute returns the attribute with the given name.
func (t *Template) Attribute(name string) (*Attribute, bool) {
	for _, a := range t.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// InitialTypes returns the declared attribute types, keyed by name. These are
// the initial keys a compiled graph expects to be seeded.
func (t *Template) InitialTypes() map[string]cty.Type {
	out := make(map[string]cty.Type, len(t.Attributes))
	for _, a := range t.Attributes {
		out[a.Name] = a.Type
	}
	return out
}

// Load finds and parses all HCL files under path into a single Template.
func Load(ctx context.Context, path string) (*Template, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading template from path.", "path", path)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find template files in %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl template files found in %s", path)
	}

	parser := hclparse.NewParser()
	b := newBuilder()
	for _, file := range files {
		f, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse template file %s: %w", file, diags)
		}
		if diags := b.addBody(f.Body); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode template file %s: %w", file, diags)
		}
		b.tmpl.Files = append(b.tmpl.Files, file)
	}

	tmpl := b.finish()
	logger.Debug("Template loaded.", "files", len(files), "attributes", len(tmpl.Attributes), "processors", len(tmpl.Processors))
	return tmpl, nil
}

// Parse parses a single template held in memory. filename is only used in
// diagnostics.
func Parse(filename string, src []byte) (*Template, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse template file %s: %w", filename, diags)
	}
	b := newBuilder()
	if diags := b.addBody(f.Body); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode template file %s: %w", filename, diags)
	}
	b.tmpl.Files = append(b.tmpl.Files, filename)
	return b.finish(), nil
}

// builder accumulates blocks from several files.
type builder struct {
	tmpl  *Template
	attrs map[string]*Attribute
}

func newBuilder() *builder {
	return &builder{tmpl: &Template{}, attrs: make(map[string]*Attribute)}
}

func (b *builder) finish() *Template {
	names := make([]string, 0, len(b.attrs))
	for n := range b.attrs {
		names = append(names, n)
	}
	sort.Strings(names)
	b.tmpl.Attributes = make([]*Attribute, 0, len(names))
	for _, n := range names {
		b.tmpl.Attributes = append(b.tmpl.Attributes, b.attrs[n])
	}
	return b.tmpl
}

func (b *builder) addBody(body hcl.Body) hcl.Diagnostics {
	content, diags := body.Content(rootSchema)
	if diags.HasErrors() {
		return diags
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case "attribute":
			attr, attrDiags := decodeAttribute(block)
			diags = append(diags, attrDiags...)
			if attrDiags.HasErrors() {
				continue
			}
			if prev, dup := b.attrs[attr.Name]; dup {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate attribute",
					Detail:   fmt.Sprintf("Attribute %q was already declared at %s.", attr.Name, prev.DeclRange),
					Subject:  &block.DefRange,
				})
				continue
			}
			b.attrs[attr.Name] = attr
		case "processor":
			spec, specDiags := decodeProcessor(block)
			diags = append(diags, specDiags...)
			if !specDiags.HasErrors() {
				b.tmpl.Processors = append(b.tmpl.Processors, spec)
			}
		}
	}
	return diags
}

func decodeAttribute(block *hcl.Block) (*Attribute, hcl.Diagnostics) {
	content, diags := block.Body.Content(attributeSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	attr := &Attribute{Name: block.Labels[0], DeclRange: block.DefRange}

	ty, tyDiags := hclutil.TypeFromExpr(content.Attributes["type"].Expr)
	if tyDiags.HasErrors() {
		return nil, tyDiags
	}
	attr.Type = ty

	if def, ok := content.Attributes["default"]; ok {
		val, valDiags := hclutil.LiteralValue(def.Expr)
		if valDiags.HasErrors() {
			return nil, valDiags
		}
		converted, err := convert.Convert(val, ty)
		if err != nil {
			return nil, hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Invalid default value",
				Detail:   fmt.Sprintf("The default for %q must be %s: %s.", attr.Name, hclutil.TypeString(ty), err),
				Subject:  def.Expr.Range().Ptr(),
			}}
		}
		attr.Default = converted
	}

	if desc, ok := content.Attributes["description"]; ok {
		val, valDiags := hclutil.LiteralValue(desc.Expr)
		if valDiags.HasErrors() {
			return nil, valDiags
		}
		if val.IsNull() || !val.Type().Equals(cty.String) {
			return nil, hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Invalid description",
				Detail:   "The description must be a string.",
				Subject:  desc.Expr.Range().Ptr(),
			}}
		}
		attr.Description = val.AsString()
	}

	return attr, nil
}

func decodeProcessor(block *hcl.Block) (registry.Spec, hcl.Diagnostics) {
	spec := registry.Spec{
		Kind:      block.Labels[0],
		ID:        block.Labels[1],
		Args:      make(map[string]cty.Value),
		DeclRange: block.DefRange,
	}

	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return spec, diags
	}

	for name, attr := range attrs {
		switch name {
		case attrInputMapping:
			m, mDiags := hclutil.StringMap(attr.Expr)
			diags = append(diags, mDiags...)
			spec.Options.InputMapping = m
		case attrOutputMapping:
			m, mDiags := hclutil.StringMap(attr.Expr)
			diags = append(diags, mDiags...)
			spec.Options.OutputMapping = m
		case attrHeavy:
			val, valDiags := hclutil.LiteralValue(attr.Expr)
			diags = append(diags, valDiags...)
			if valDiags.HasErrors() {
				continue
			}
			if val.IsNull() || !val.Type().Equals(cty.Bool) {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid heavy flag",
					Detail:   "The heavy attribute must be true or false.",
					Subject:  attr.Expr.Range().Ptr(),
				})
				continue
			}
			heavy := val.True()
			spec.Options.Heavy = &heavy
		default:
			val, valDiags := hclutil.LiteralValue(attr.Expr)
			diags = append(diags, valDiags...)
			if !valDiags.HasErrors() {
				spec.Args[name] = val
			}
		}
	}
	return spec, diags
}
