// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package valuectx

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/printgraph/internal/hclutil"
	"github.com/zclconf/go-cty/cty"
)

var (
	// ErrMissingValue is wrapped by MissingValueError.
	ErrMissingValue = errors.New("value not present")
	// ErrDuplicateWrite is wrapped by DuplicateWriteError.
	ErrDuplicateWrite = errors.New("value already written")
)

// MissingValueError is returned when reading a name that has not been written.
type MissingValueError struct {
	Name string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("value %q is not present in the context", e.Name)
}

func (e *MissingValueError) Unwrap() error { return ErrMissingValue }

// DuplicateWriteError is returned when writing a name a second time.
type DuplicateWriteError struct {
	Name string
}

func (e *DuplicateWriteError) Error() string {
	return fmt.Sprintf("value %q has already been written", e.Name)
}

func (e *DuplicateWriteError) Unwrap() error { return ErrDuplicateWrite }

// TypeError is returned when a value cannot be converted to the declared type
// of its name, or when the value is not wholly known.
type TypeError struct {
	Name  string
	Want  cty.Type
	Got   cty.Type
	Cause error
}

func (e *TypeError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("value %q of type %s is not usable as %s", e.Name, hclutil.TypeString(e.Got), hclutil.TypeString(e.Want))
	}
	return fmt.Sprintf("value %q of type %s is not usable as %s: %v", e.Name, hclutil.TypeString(e.Got), hclutil.TypeString(e.Want), e.Cause)
}

func (e *TypeError) Unwrap() error { return e.Cause }
