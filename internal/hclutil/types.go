// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package hclutil

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// TypeFromExpr converts an HCL expression that represents a type (e.g. the
// `string` keyword or `list(object({ name = string }))`) into its cty.Type.
// The `any` keyword becomes cty.DynamicPseudoType.
func TypeFromExpr(expr hcl.Expression) (cty.Type, hcl.Diagnostics) {
	ty, diags := typeexpr.TypeConstraint(expr)
	if diags.HasErrors() {
		return cty.NilType, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid type specification",
			Detail:   fmt.Sprintf("The type must be a type expression such as 'string', 'number', 'list(string)' or 'any': %s", diags.Error()),
			Subject:  expr.Range().Ptr(),
		}}
	}
	return ty, nil
}

// ParseType parses a type expression written as a string, which is how
// processor arguments such as `element_type = "string"` carry types.
func ParseType(src string) (cty.Type, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "<type>", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.NilType, fmt.Errorf("invalid type expression %q: %w", src, diags)
	}
	ty, diags := TypeFromExpr(expr)
	if diags.HasErrors() {
		return cty.NilType, fmt.Errorf("invalid type expression %q: %w", src, diags)
	}
	return ty, nil
}

// TypeString renders a type the way it would be written in a template.
func TypeString(ty cty.Type) string {
	if ty == cty.NilType {
		return "<nil>"
	}
	return typeexpr.TypeString(ty)
}
