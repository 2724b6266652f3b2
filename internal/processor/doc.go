// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package processor defines the unit of work the engine schedules.
//
// A Processor declares the names it reads and the names it writes, together
// with their types, and turns a snapshot of its inputs into its outputs. The
// set of variants is closed:
//
//   - Source reads nothing but seeded request attributes and typically wraps
//     a data-fetch collaborator.
//   - Transform is a pure function from N inputs to M outputs.
//   - Fanout runs the same function over every element of a list input in
//     parallel and merges the results in input order.
//
// Every variant can be executed directly, without the engine, which is how
// their unit tests drive them.
package processor
