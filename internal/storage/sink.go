// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidName is returned for names that are empty or escape the sink.
var ErrInvalidName = errors.New("invalid object name")

// Sink stores objects. Implementations must be safe for concurrent use.
type Sink interface {
	// Put stores data under name and returns a URI referencing it. Putting
	// the same name twice overwrites the object.
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// cleanName normalises a slash-separated object name.
func cleanName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}
	clean := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return clean, nil
}
