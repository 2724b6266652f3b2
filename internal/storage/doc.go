// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package storage holds the sinks processors write rendered artefacts to.
// A sink stores bytes under a name and returns a URI that later stages (and
// the caller) use to reference them; values in the value context carry the
// URI, never the bytes.
package storage
