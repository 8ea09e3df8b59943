// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "fmt"

// decodedInstr pairs a raw instruction with the byte PC it starts at, and the
// PC immediately following it (the would-be fallthrough PC).
type decodedInstr struct {
	PC     uint32
	Next   uint32
	Instr  Instr
}

// decodeFunction decodes every instruction in a function's bytecode in
// order, erroring on any instruction that does not decode cleanly or any
// trailing bytes that don't form a whole instruction.
func decodeFunction(code []byte) ([]decodedInstr, error) {
	r := newCodeReader(code)
	var out []decodedInstr
	for r.hasMore() {
		pc, instr, err := r.decodeAt()
		if err != nil {
			return nil, err
		}
		out = append(out, decodedInstr{PC: pc, Next: r.pc, Instr: instr})
	}
	return out, nil
}

// basicBlock is a maximal run of instructions with a single entry and a
// single exit: control only enters at Start and only leaves at the last
// instruction's targets.
type basicBlock struct {
	Start, End int     // instruction indices [Start, End) into the function's instruction slice
	Succs      []int   // successor block indices, in a stable order
}

// cfg is the control-flow graph of one function, computed per §4.2.1: every
// branch/jump target and every instruction immediately following a
// terminator starts a new block.
type cfg struct {
	Instrs []decodedInstr
	Blocks []basicBlock
	// pcToIndex maps an instruction's starting byte PC to its index in
	// Instrs. Used to resolve branch/jump targets, which are expressed as
	// byte PCs in the bytecode.
	pcToIndex map[uint32]int
	// blockOf maps an instruction index to the index of the block containing
	// it.
	blockOf []int
}

// buildCFG decodes a function's bytecode and partitions it into basic
// blocks. It returns a VerifyError (not a decode error) when a branch/jump
// target does not land on an instruction boundary, since that is exactly the
// class of structural defect the verifier exists to reject.
func buildCFG(fn FuncId, code []byte) (*cfg, *VerifyError) {
	instrs, err := decodeFunction(code)
	if err != nil {
		return nil, &VerifyError{Func: fn, Kind: VerifyErrMalformedBytecode, Detail: err.Error()}
	}
	if len(instrs) == 0 {
		return nil, &VerifyError{Func: fn, Kind: VerifyErrMalformedBytecode, Detail: "function has no instructions"}
	}

	pcToIndex := make(map[uint32]int, len(instrs))
	for i, d := range instrs {
		pcToIndex[d.PC] = i
	}

	resolve := func(pc uint64) (int, *VerifyError) {
		idx, ok := pcToIndex[uint32(pc)]
		if !ok {
			return 0, &VerifyError{Func: fn, Kind: VerifyErrBadJumpTarget, Detail: fmt.Sprintf("pc %d is not an instruction boundary", pc)}
		}
		return idx, nil
	}

	// Pass 1: collect block-starting instruction indices.
	starts := map[int]bool{0: true}
	for i, d := range instrs {
		switch d.Instr.Opcode {
		case OpBr:
			t, f := d.Instr.Imm[1], d.Instr.Imm[2]
			ti, err := resolve(t)
			if err != nil {
				return nil, err
			}
			fi, err := resolve(f)
			if err != nil {
				return nil, err
			}
			starts[ti] = true
			starts[fi] = true
		case OpJmp:
			ti, err := resolve(d.Instr.Imm[0])
			if err != nil {
				return nil, err
			}
			starts[ti] = true
		}
		if d.Instr.Opcode.isTerminator() && i+1 < len(instrs) {
			starts[i+1] = true
		}
	}

	// Pass 2: materialize blocks in instruction order.
	var blockStarts []int
	for i := range instrs {
		if starts[i] {
			blockStarts = append(blockStarts, i)
		}
	}

	blockOf := make([]int, len(instrs))
	blocks := make([]basicBlock, len(blockStarts))
	for bi, start := range blockStarts {
		end := len(instrs)
		if bi+1 < len(blockStarts) {
			end = blockStarts[bi+1]
		}
		blocks[bi] = basicBlock{Start: start, End: end}
		for i := start; i < end; i++ {
			blockOf[i] = bi
		}
	}

	// Pass 3: wire successors from each block's last instruction.
	for bi := range blocks {
		last := instrs[blocks[bi].End-1]
		switch last.Instr.Opcode {
		case OpBr:
			ti, _ := resolve(last.Instr.Imm[1])
			fi, _ := resolve(last.Instr.Imm[2])
			blocks[bi].Succs = []int{blockOf[ti], blockOf[fi]}
		case OpJmp:
			ti, _ := resolve(last.Instr.Imm[0])
			blocks[bi].Succs = []int{blockOf[ti]}
		case OpRet, OpTrap:
			blocks[bi].Succs = nil
		default:
			// Falls through: the next instruction always starts a block per
			// pass 1. If there is no next instruction, the function's
			// bytecode ends without a terminator - a structural defect the
			// verifier must reject rather than let the VM discover at run
			// time as an unreachable-instruction trap.
			if blocks[bi].End < len(instrs) {
				blocks[bi].Succs = []int{blockOf[blocks[bi].End]}
			} else {
				return nil, &VerifyError{Func: fn, Kind: VerifyErrMissingTerminator, Detail: fmt.Sprintf("function falls off the end at pc %d without a terminator", last.PC)}
			}
		}
	}

	return &cfg{Instrs: instrs, Blocks: blocks, pcToIndex: pcToIndex, blockOf: blockOf}, nil
}

// preds computes, for each block, the indices of its predecessor blocks.
// It's derived rather than stored on cfg; the verifier's analyses are all
// forward and do not call it.
func (g *cfg) preds() [][]int {
	preds := make([][]int, len(g.Blocks))
	for i, b := range g.Blocks {
		for _, s := range b.Succs {
			preds[s] = append(preds[s], i)
		}
	}
	return preds
}
