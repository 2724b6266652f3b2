// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/printgraph/internal/hclutil"
	"github.com/zclconf/go-cty/cty"
)

// ErrCompile is wrapped by every compile error.
var ErrCompile = errors.New("graph compilation failed")

// MissingInputError reports an input that no node and no initial key provides.
type MissingInputError struct {
	NodeID string
	Input  string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("node %q requires %q, which is neither produced by another node nor provided as an attribute", e.NodeID, e.Input)
}

func (e *MissingInputError) Unwrap() error { return ErrCompile }

// DuplicateOutputError reports an output name declared by more than one
// node, or by a node while also being an initial key.
type DuplicateOutputError struct {
	Output string
	// NodeIDs is sorted.
	NodeIDs []string
	// Seeded is set when Output is also an initial key.
	Seeded bool
}

func (e *DuplicateOutputError) Error() string {
	if e.Seeded {
		return fmt.Sprintf("output %q of %s shadows the request attribute of the same name", e.Output, quoteAll(e.NodeIDs))
	}
	return fmt.Sprintf("output %q is produced by more than one node: %s", e.Output, quoteAll(e.NodeIDs))
}

func (e *DuplicateOutputError) Unwrap() error { return ErrCompile }

// CycleError lists every node that takes part in a dependency cycle.
type CycleError struct {
	// NodeIDs is sorted.
	NodeIDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle between nodes: %s", quoteAll(e.NodeIDs))
}

func (e *CycleError) Unwrap() error { return ErrCompile }

// TypeMismatchError reports a producer whose declared type cannot be
// converted to the type a consumer declares for the same name.
type TypeMismatchError struct {
	NodeID string
	Input  string
	// Producer is the producing node id, or empty for an initial key.
	Producer string
	Want     cty.Type
	Got      cty.Type
}

func (e *TypeMismatchError) Error() string {
	from := "the request attribute"
	if e.Producer != "" {
		from = fmt.Sprintf("node %q", e.Producer)
	}
	return fmt.Sprintf("node %q expects %q to be %s, but %s provides %s",
		e.NodeID, e.Input, hclutil.TypeString(e.Want), from, hclutil.TypeString(e.Got))
}

func (e *TypeMismatchError) Unwrap() error { return ErrCompile }

// DuplicateNodeError reports two processors sharing an id.
type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node id %q is declared more than once", e.NodeID)
}

func (e *DuplicateNodeError) Unwrap() error { return ErrCompile }

// SourceInputError reports a Source processor that depends on another node.
// Sources may only read request attributes.
type SourceInputError struct {
	NodeID   string
	Input    string
	Producer string
}

func (e *SourceInputError) Error() string {
	return fmt.Sprintf("source node %q may only read request attributes, but %q is produced by node %q", e.NodeID, e.Input, e.Producer)
}

func (e *SourceInputError) Unwrap() error { return ErrCompile }

func quoteAll(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return strings.Join(quoted, ", ")
}
