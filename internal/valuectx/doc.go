// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package valuectx implements the per-execution value context: a typed,
// write-once map from names to cty values.
//
// A Context is created for a single request, seeded with the request's
// attributes, filled in by processors as they complete and thrown away once
// the caller has read the result. It is safe for concurrent use. The executor
// additionally guarantees that a processor only reads names whose producers
// have finished, so reads never race with the corresponding write.
package valuectx
