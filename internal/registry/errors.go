// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is wrapped by UnknownKindError.
var ErrUnknownKind = errors.New("unknown processor kind")

// UnknownKindError is returned by Build for a kind nobody registered.
type UnknownKindError struct {
	Kind  string
	ID    string
	Known []string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("processor %q: unknown kind %q (known kinds: %s)", e.ID, e.Kind, strings.Join(e.Known, ", "))
}

func (e *UnknownKindError) Unwrap() error { return ErrUnknownKind }

// BuildError wraps a factory failure with the block it came from.
type BuildError struct {
	Kind  string
	ID    string
	Cause error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("processor %q %q: %v", e.Kind, e.ID, e.Cause)
}

func (e *BuildError) Unwrap() error { return e.Cause }

// ArgumentError reports an invalid or missing processor argument.
type ArgumentError struct {
	Name  string
	Cause error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q: %v", e.Name, e.Cause)
}

func (e *ArgumentError) Unwrap() error { return e.Cause }
