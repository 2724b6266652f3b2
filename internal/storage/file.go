// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/specialistvlad/printgraph/internal/ctxlog"
)

// FileSink stores objects as files below a root directory and returns
// file:// URIs.
type FileSink struct {
	root string
}

// NewFileSink creates the root directory if needed.
func NewFileSink(root string) (*FileSink, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory '%s': %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory '%s': %w", abs, err)
	}
	return &FileSink{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *FileSink) Root() string { return s.root }

// Put writes data to a temporary file and renames it into place, so readers
// never observe a partially written object.
func (s *FileSink) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for '%s': %w", clean, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file for '%s': %w", clean, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write '%s': %w", clean, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write '%s': %w", clean, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to store '%s': %w", clean, err)
	}

	ctxlog.FromContext(ctx).Debug("Stored object.", "name", clean, "size", len(data), "contentType", contentType)
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(target)}).String(), nil
}
