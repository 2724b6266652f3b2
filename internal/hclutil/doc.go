// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package hclutil holds small helpers on top of hashicorp/hcl/v2 that are
// shared by the template loader and the processor registry.
package hclutil
