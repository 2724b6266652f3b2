// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package engine executes a compiled processor graph against a value context.
//
// Each Execute call turns the graph's nodes into tasks. A task becomes
// eligible once every task producing one of its inputs has committed its
// outputs; the last predecessor to finish pushes it onto the ready queue,
// where a bounded pool of workers picks it up. A task reads its inputs from
// the context, runs its processor, checks that exactly the declared outputs
// came back and commits them.
//
// The first failure aborts the execution: nothing further is scheduled, and
// tasks that are already running may finish but their outputs are discarded.
// A timeout or a cancelled caller context aborts the execution the same way
// and Execute returns at once, without waiting for in-flight processors.
//
// NewSerial returns an executor with the same semantics that runs the nodes
// one by one in the graph's topological order, which is useful for
// reproducing a run step by step.
package engine
