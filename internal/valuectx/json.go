// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package valuectx

import (
	"encoding/json"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// DecodeJSON decodes a plain JSON value (not the typed wrapper cty/json uses
// for dynamic values) and converts it to ty. With ty unset or dynamic the
// value keeps the type implied by the JSON.
func DecodeJSON(raw []byte, ty cty.Type) (cty.Value, error) {
	implied, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return cty.NilVal, err
	}
	v, err := ctyjson.Unmarshal(raw, implied)
	if err != nil {
		return cty.NilVal, err
	}
	if ty == cty.NilType || ty.Equals(cty.DynamicPseudoType) {
		return v, nil
	}
	return convert.Convert(v, ty)
}

// EncodeJSON encodes v as plain JSON.
func EncodeJSON(v cty.Value) (json.RawMessage, error) {
	return ctyjson.Marshal(v, v.Type())
}
