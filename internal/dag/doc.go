// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package dag is a small, generic directed graph keyed by string ids. It
// knows nothing about processors or values; the compiler in package graph
// builds on it to validate dependencies, find cycles and derive a stable
// topological order.
//
// Every query that returns ids returns them sorted, so callers that iterate
// the graph get the same order on every run.
package dag
