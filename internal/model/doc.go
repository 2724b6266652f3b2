// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model provides the Go struct representation of a printgraph HCL
// template. Its core purpose is to turn the raw HCL files describing a print
// job into a strongly-typed, in-memory model that the registry can bind to
// processors and the graph compiler can validate.
//
// # Core Concepts
//
// The model is built around a few key structures:
//
//   - Template: The root container for one print template. It aggregates the
//     attributes and processors parsed from one or more .hcl files.
//
//   - Attribute: A declared request attribute (e.g. `rotation` or `bbox`). It
//     carries a type, an optional default and the source range it came from.
//     Attributes become the initial keys of every execution.
//
//   - registry.Spec: One `processor "<kind>" "<id>"` block. It keeps the literal
//     arguments for the processor factory together with the input/output
//     mappings and the heavy override.
//
// Why a separate model package?
//
// This package acts as the boundary between HCL and the rest of the system.
// Nothing downstream of it imports hcl except for diagnostics carried in
// errors:
//
//  1. Structured Validation: Structural problems (unknown blocks, duplicate
//     attributes, non-literal arguments, invalid type expressions) are reported
//     as hcl.Diagnostics with the file and line they came from, before any
//     processor is constructed.
//
//  2. Foundation for Graph Building: The registry consumes Template.Processors to
//     build processor instances, and graph.Compile consumes those instances
//     together with Template.InitialTypes.
//
//  3. Request Decoding: A Template knows the declared attribute types, so it is
//     also where request JSON is decoded and defaults are applied.
package model
