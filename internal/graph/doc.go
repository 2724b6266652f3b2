// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package graph compiles a list of processors into a validated, immutable
// dependency graph.
//
// # Why a separate compile step
//
// A template is compiled once and then executed many times, once per print
// request. Everything that can be decided without request data is decided
// here: which node produces each input, whether the produced types fit the
// consumers, whether the graph is acyclic, and in which order a serial
// replay would run the nodes. The executor can then trust the Definition and
// concentrate on scheduling.
//
// # Errors
//
// All compile errors wrap ErrCompile. Compile reports every problem it finds
// rather than stopping at the first one; multiple problems are combined with
// errors.Join in a stable order (node problems, duplicate outputs, input
// problems, cycles), so errors.As can pick out any specific kind.
//
// # Concurrency
//
// A Definition is never modified after Compile returns and may be shared by
// any number of concurrent executions.
package graph
