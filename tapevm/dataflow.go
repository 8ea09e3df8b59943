// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

// A small reusable forward dataflow solver for verifier analyses
// (§4.2.2-§4.2.3). The verifier needs two forward fixpoint computations over
// a function's CFG (register classification, must-init); this file provides
// the shared worklist mechanics so each analysis only has to define its
// lattice and transfer function.
//
// The solver doesn't try to be clever about iteration order (no reverse
// postorder, no bitset packing). Correctness only requires that eq and
// transferBlock are monotone over a finite-height lattice, so the worklist
// always reaches a fixpoint.

// solveForward computes a forward dataflow fixpoint over blocks.
//
//   - entry is the initial state at block 0.
//   - bottom is the initial state for every other block. Every block starts
//     out aliased to the same bottom value, so meetInto must never mutate
//     its arguments - it has to return a freshly-built State, not write
//     through one of them in place.
//   - meetInto returns meet(acc, incoming) as a new value.
//   - transferBlock computes a block's OUT state from its IN state.
//   - eq reports whether two states are equal, for fixpoint detection.
//
// Returns the fixpoint IN and OUT state for every block, indexed the same
// as blocks.
func solveForward[State any](
	blocks []basicBlock,
	entry, bottom State,
	meetInto func(acc, incoming State) State,
	transferBlock func(blockIdx int, b *basicBlock, in State) State,
	eq func(a, b State) bool,
) (in, out []State) {
	n := len(blocks)
	in = make([]State, n)
	out = make([]State, n)
	for i := range in {
		in[i] = bottom
		out[i] = bottom
	}
	if n == 0 {
		return in, out
	}

	work := []int{0}
	in[0] = entry
	out[0] = transferBlock(0, &blocks[0], in[0])

	for len(work) > 0 {
		bIdx := work[0]
		work = work[1:]

		o := out[bIdx]
		for _, succ := range blocks[bIdx].Succs {
			newIn := meetInto(in[succ], o)
			if !eq(newIn, in[succ]) {
				in[succ] = newIn
				newOut := transferBlock(succ, &blocks[succ], in[succ])
				if !eq(newOut, out[succ]) {
					out[succ] = newOut
					work = append(work, succ)
				}
			}
		}
	}

	return in, out
}

// computeReachable does a simple forward walk from block 0 to find every
// block reachable in the CFG. Unreachable blocks are never visited by
// solveForward in the verifier's analyses, matching the original dataflow
// engine's "reachable" mask.
func computeReachable(blocks []basicBlock) []bool {
	n := len(blocks)
	reachable := make([]bool, n)
	if n == 0 {
		return reachable
	}
	stack := []int{0}
	reachable[0] = true
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range blocks[b].Succs {
			if !reachable[s] {
				reachable[s] = true
				stack = append(stack, s)
			}
		}
	}
	return reachable
}
