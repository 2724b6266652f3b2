// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package hclutil

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// LiteralValue evaluates an expression without an evaluation context. Any
// reference to a variable or function is reported as a diagnostic, since
// template arguments are resolved once at load time.
func LiteralValue(expr hcl.Expression) (cty.Value, hcl.Diagnostics) {
	if vars := expr.Variables(); len(vars) > 0 {
		return cty.NilVal, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Non-literal argument",
			Detail:   "Arguments must be literal values; references are resolved through the value context instead.",
			Subject:  vars[0].SourceRange().Ptr(),
		}}
	}
	return expr.Value(nil)
}

// StringMap decodes a literal object or map of strings, as used by the
// input_mapping and output_mapping attributes.
func StringMap(expr hcl.Expression) (map[string]string, hcl.Diagnostics) {
	val, diags := LiteralValue(expr)
	if diags.HasErrors() {
		return nil, diags
	}
	ty := val.Type()
	if val.IsNull() {
		return map[string]string{}, nil
	}
	if !(ty.IsObjectType() || ty.IsMapType()) {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid mapping",
			Detail:   "A mapping must be an object of strings, e.g. { local = \"context_name\" }.",
			Subject:  expr.Range().Ptr(),
		}}
	}

	out := make(map[string]string, val.LengthInt())
	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		if v.IsNull() || !v.Type().Equals(cty.String) {
			return nil, hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Invalid mapping",
				Detail:   "Mapping entry \"" + k.AsString() + "\" must be a string.",
				Subject:  expr.Range().Ptr(),
			}}
		}
		out[k.AsString()] = v.AsString()
	}
	return out, nil
}
