// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "fmt"

// regStateKind is the verifier's register-classification lattice (§4.2.2):
// Bottom is the "not yet visited" iteration placeholder, distinct from
// Uninit (a register the analysis has determined is never written on some
// path reaching this point).
type regStateKind uint8

const (
	rsBottom regStateKind = iota
	rsUninit
	rsConcrete
	rsAmbiguous
)

type regState struct {
	Kind regStateKind
	Type ValueType
}

func concreteState(t ValueType) regState { return regState{Kind: rsConcrete, Type: t} }

// join implements the register-classification lattice's merge operator.
func join(a, b regState) regState {
	if a.Kind == rsBottom {
		return b
	}
	if b.Kind == rsBottom {
		return a
	}
	if a.Kind == rsUninit {
		return b
	}
	if b.Kind == rsUninit {
		return a
	}
	if a.Kind == rsAmbiguous || b.Kind == rsAmbiguous {
		return regState{Kind: rsAmbiguous}
	}
	if a.Type.Equal(b.Type) {
		return a
	}
	return regState{Kind: rsAmbiguous}
}

// Verify runs the four-phase verifier (§4.2) over every function in prog and
// returns the resulting VerifiedProgram, or the first VerifyError
// encountered. Functions are verified independently and in order; a
// program with N functions where function k is the first to fail reports
// exactly that failure.
func Verify(prog *Program, cfg Config) (*VerifiedProgram, error) {
	if cfg.MaxHostSigs > 0 && len(prog.HostSigs) > cfg.MaxHostSigs {
		return nil, &VerifyError{Kind: VerifyErrResourceLimitExceeded, Detail: fmt.Sprintf("%d host signatures exceeds limit %d", len(prog.HostSigs), cfg.MaxHostSigs)}
	}
	vp := &VerifiedProgram{
		Consts:   prog.Consts,
		Types:    prog.Types,
		HostSigs: prog.HostSigs,
		Blob:     prog.Blob,
		Symbols:  prog.Symbols,
	}
	vp.Functions = make([]VerifiedFunction, len(prog.Functions))
	for i := range prog.Functions {
		fn := &prog.Functions[i]
		vf, err := verifyFunction(prog, fn, FuncId(i), cfg)
		if err != nil {
			return nil, err
		}
		vp.Functions[i] = *vf
	}
	return vp, nil
}

func verifyFunction(prog *Program, fn *FunctionEntry, fnID FuncId, cfg Config) (*VerifiedFunction, *VerifyError) {
	if cfg.MaxRegistersPerFunction > 0 && int(fn.RegCount) > cfg.MaxRegistersPerFunction {
		return nil, &VerifyError{Func: fnID, Kind: VerifyErrResourceLimitExceeded, Detail: fmt.Sprintf("reg_count %d exceeds limit %d", fn.RegCount, cfg.MaxRegistersPerFunction)}
	}

	code, err := prog.FunctionBytecode(fnID)
	if err != nil {
		return nil, &VerifyError{Func: fnID, Kind: VerifyErrMalformedContainer, Detail: err.Error()}
	}
	if cfg.MaxBytecodeBytes > 0 && len(code) > cfg.MaxBytecodeBytes {
		return nil, &VerifyError{Func: fnID, Kind: VerifyErrResourceLimitExceeded, Detail: fmt.Sprintf("%d bytecode bytes exceeds limit %d", len(code), cfg.MaxBytecodeBytes)}
	}

	g, verr := buildCFG(fnID, code)
	if verr != nil {
		return nil, verr
	}
	if cfg.MaxInstructionsPerFunction > 0 && len(g.Instrs) > cfg.MaxInstructionsPerFunction {
		return nil, &VerifyError{Func: fnID, Kind: VerifyErrResourceLimitExceeded, Detail: fmt.Sprintf("%d instructions exceeds limit %d", len(g.Instrs), cfg.MaxInstructionsPerFunction)}
	}
	if cfg.MaxBlocksPerFunction > 0 && len(g.Blocks) > cfg.MaxBlocksPerFunction {
		return nil, &VerifyError{Func: fnID, Kind: VerifyErrResourceLimitExceeded, Detail: fmt.Sprintf("%d blocks exceeds limit %d", len(g.Blocks), cfg.MaxBlocksPerFunction)}
	}

	resolved := make([]*resolvedInstr, len(g.Instrs))
	for i, d := range g.Instrs {
		ri, verr := resolveInstr(prog, fn, fnID, d.Instr)
		if verr != nil {
			verr.PC = d.PC
			return nil, verr
		}
		resolved[i] = ri
	}

	reachable := computeReachable(g.Blocks)
	if !cfg.AllowUnreachableCode {
		for i, r := range reachable {
			if !r {
				return nil, &VerifyError{Func: fnID, Kind: VerifyErrUnreachableCodeDisallowed, PC: g.Instrs[g.Blocks[i].Start].PC, Detail: "function contains unreachable basic block"}
			}
		}
	}

	regCount := int(fn.RegCount)
	entryState := make([]regState, regCount)
	for i := range entryState {
		entryState[i] = regState{Kind: rsUninit}
	}
	if regCount > 0 {
		entryState[0] = concreteState(tUnit) // r0: effect token
	}
	for i, t := range fn.ArgTypes {
		idx := i + 1
		if idx < regCount {
			entryState[idx] = concreteState(t)
		}
	}

	blockIn := classify(prog, g, resolved, entryState, regCount)

	initIn := mustInit(g, resolved, reachable, entryState, regCount)

	return lowerFunction(prog, fn, fnID, g, resolved, blockIn, initIn, reachable)
}

// classify runs the register-classification analysis to a fixpoint using
// the shared forward worklist solver: some opcodes (mov, select on
// decimal/agg, aggregate projections) inherit their written type from the
// live classification of another register rather than from static opcode
// metadata, so the per-block transfer function replays each instruction
// against the in-flight state rather than consulting a static table alone.
func classify(prog *Program, g *cfg, resolved []*resolvedInstr, entry []regState, regCount int) [][]regState {
	bottom := make([]regState, regCount)

	meetInto := func(acc, incoming []regState) []regState {
		merged := make([]regState, len(acc))
		for r := range acc {
			merged[r] = join(acc[r], incoming[r])
		}
		return merged
	}
	transferBlock := func(_ int, b *basicBlock, in []regState) []regState {
		return simulateBlockTypes(*b, resolved, in, prog)
	}
	eq := func(a, b []regState) bool {
		for r := range a {
			if a[r].Kind != b[r].Kind || !a[r].Type.Equal(b[r].Type) {
				return false
			}
		}
		return true
	}

	blockIn, _ := solveForward(g.Blocks, entry, bottom, meetInto, transferBlock, eq)
	return blockIn
}

// simulateBlockTypes replays a block's instructions from in, returning the
// resulting state. Unresolved dependent types (a source register still
// Bottom/Uninit) propagate Bottom so later iterations pick them up once the
// dependency stabilizes.
func simulateBlockTypes(b basicBlock, resolved []*resolvedInstr, in []regState, prog *Program) []regState {
	cur := append([]regState(nil), in...)
	for i := b.Start; i < b.End; i++ {
		ri := resolved[i]
		applyWrites(ri, cur, prog)
	}
	return cur
}

func applyWrites(ri *resolvedInstr, cur []regState, prog *Program) {
	switch ri.Op {
	case OpMov:
		src := cur[ri.Reads[0].Raw]
		setReg(cur, ri.Writes[0].Raw, src)
		return
	case OpSelectDecimal, OpSelectAgg:
		a := cur[ri.Reads[1].Raw]
		setReg(cur, ri.Writes[0].Raw, a)
		return
	case OpTupleGet, OpStructGet:
		agg := cur[ri.Reads[0].Raw]
		if agg.Kind != rsConcrete {
			setReg(cur, ri.Writes[0].Raw, regState{Kind: rsBottom})
			return
		}
		td := prog.Types[agg.Type.Agg]
		if int(ri.Index) < len(td.FieldTypes) {
			setReg(cur, ri.Writes[0].Raw, concreteState(td.FieldTypes[ri.Index]))
		} else {
			setReg(cur, ri.Writes[0].Raw, regState{Kind: rsAmbiguous})
		}
		return
	case OpArrayGet:
		arr := cur[ri.Reads[0].Raw]
		if arr.Kind != rsConcrete {
			setReg(cur, ri.Writes[0].Raw, regState{Kind: rsBottom})
			return
		}
		td := prog.Types[arr.Type.Agg]
		setReg(cur, ri.Writes[0].Raw, concreteState(td.ElemType))
		return
	case OpDecAdd, OpDecSub, OpDecMul:
		a := cur[ri.Reads[0].Raw]
		if a.Kind == rsConcrete {
			setReg(cur, ri.Writes[0].Raw, a)
		} else {
			setReg(cur, ri.Writes[0].Raw, regState{Kind: rsBottom})
		}
		return
	}
	for _, w := range ri.Writes {
		setReg(cur, w.Raw, concreteState(w.Type))
	}
}

func setReg(cur []regState, raw uint32, s regState) {
	if int(raw) < len(cur) {
		cur[raw] = join(regState{Kind: rsBottom}, s) // normalize
		cur[raw] = s
	}
}

// mustInit runs the forward must-init analysis (§4.2.3) using the shared
// worklist solver: state is a per-register boolean, bottom is "all true"
// (the AND-lattice identity, since an unvisited block imposes no
// constraint yet), and meetInto is elementwise AND.
func mustInit(g *cfg, resolved []*resolvedInstr, reachable []bool, entry []regState, regCount int) [][]bool {
	bottom := make([]bool, regCount)
	for i := range bottom {
		bottom[i] = true
	}
	entryInit := make([]bool, regCount)
	for i, s := range entry {
		entryInit[i] = s.Kind != rsUninit
	}

	eq := func(a, b []bool) bool {
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	meetInto := func(acc, incoming []bool) []bool {
		merged := make([]bool, len(acc))
		for i := range acc {
			merged[i] = acc[i] && incoming[i]
		}
		return merged
	}
	transfer := func(idx int, b *basicBlock, in []bool) []bool {
		cur := append([]bool(nil), in...)
		for i := b.Start; i < b.End; i++ {
			for _, w := range resolved[i].Writes {
				if int(w.Raw) < len(cur) {
					cur[w.Raw] = true
				}
			}
		}
		return cur
	}

	blocksCopy := g.Blocks
	in, _ := solveForward(blocksCopy, entryInit, bottom, meetInto, transfer, eq)
	for i := range in {
		if !reachable[i] {
			in[i] = bottom
		}
	}
	return in
}
