// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "fmt"

// opcodesWithDependentTypes never get a generic read-type check: their
// operand types are derived from live register classification (mov, select
// on decimal/agg) or from the type table via a classified aggregate
// register (tuple/struct/array accessors), not from static opcode metadata.
var opcodesWithDependentTypes = map[Opcode]bool{
	OpMov: true, OpDecAdd: true, OpDecSub: true, OpDecMul: true,
	OpTupleGet: true, OpStructGet: true, OpArrayGet: true,
	OpTupleLen: true, OpStructFieldCount: true, OpArrayLen: true,
	OpSelectDecimal: true, OpSelectAgg: true,
	// ret's required per-slot type comes from the function's return
	// signature, not from any static per-instruction metadata; checked
	// explicitly in buildVerifiedInstr's final switch instead.
	OpRet: true,
}

// lowerFunction performs the must-init check, the typed-transfer check, and
// lowering (§4.2.3, §4.2.4, §4.2.6) in a single replay of each reachable
// block, using the already-converged classification (blockIn) and must-init
// (initIn) block-entry states.
func lowerFunction(prog *Program, fn *FunctionEntry, fnID FuncId, g *cfg, resolved []*resolvedInstr, blockIn [][]regState, initIn [][]bool, reachable []bool) (*VerifiedFunction, *VerifyError) {
	regCount := int(fn.RegCount)

	// Pass 1: accumulate each raw register's final classified type across
	// every reachable write site, so a register's class is the join over
	// its whole lifetime rather than just one block's view of it.
	regFinal := make([]regState, regCount)
	for b, blk := range g.Blocks {
		if !reachable[b] {
			continue
		}
		cur := append([]regState(nil), blockIn[b]...)
		for i := blk.Start; i < blk.End; i++ {
			writes := computeWriteStates(resolved[i], cur, prog)
			for _, w := range writes {
				regFinal[w.reg] = join(regFinal[w.reg], w.state)
				if int(w.reg) < len(cur) {
					cur[w.reg] = w.state
				}
			}
		}
	}

	layout := RegLayout{RegMap: make([]VReg, regCount)}
	var counts RegCounts
	for r := 0; r < regCount; r++ {
		class := RegClassI64
		if regFinal[r].Kind == rsConcrete {
			class = regClassOf(regFinal[r].Type)
		}
		var idx uint32
		switch class {
		case RegClassUnit:
			idx = counts.Unit
			counts.Unit++
		case RegClassBool:
			idx = counts.Bool
			counts.Bool++
		case RegClassI64:
			idx = counts.I64
			counts.I64++
		case RegClassU64:
			idx = counts.U64
			counts.U64++
		case RegClassF64:
			idx = counts.F64
			counts.F64++
		case RegClassDecimal:
			idx = counts.Decimal
			counts.Decimal++
		case RegClassBytes:
			idx = counts.Bytes
			counts.Bytes++
		case RegClassStr:
			idx = counts.Str
			counts.Str++
		case RegClassAgg:
			idx = counts.Agg
			counts.Agg++
		}
		layout.RegMap[r] = VReg{Class: class, Index: idx}
	}
	layout.Counts = counts
	for i := range fn.ArgTypes {
		raw := i + 1
		if raw < regCount {
			layout.ArgRegs = append(layout.ArgRegs, layout.RegMap[raw])
		}
	}

	vf := &VerifiedFunction{Layout: layout, ArgTypes: fn.ArgTypes, RetTypes: fn.RetTypes}

	// Pass 2: re-replay, this time validating must-init / ambiguity /
	// per-opcode type rules, and emitting the typed instruction stream.
	order := make([]int, 0, len(g.Instrs))
	for b, blk := range g.Blocks {
		if !reachable[b] {
			continue
		}
		for i := blk.Start; i < blk.End; i++ {
			order = append(order, i)
		}
	}
	// order lists the reachable instructions in original PC order, which is
	// the order they are appended to vf.Instrs below; it maps g.Instrs
	// indices to vf.Instrs indices for the branch-target rewrite.
	sortInts(order)

	for b, blk := range g.Blocks {
		if !reachable[b] {
			continue
		}
		cur := append([]regState(nil), blockIn[b]...)
		initCur := append([]bool(nil), initIn[b]...)
		for i := blk.Start; i < blk.End; i++ {
			ri := resolved[i]
			pc := g.Instrs[i].PC

			if verr := checkReads(ri, cur, initCur, fnID, pc); verr != nil {
				return nil, verr
			}

			vi, verr := buildVerifiedInstr(prog, fn, fnID, g, ri, cur, &layout, pc)
			if verr != nil {
				return nil, verr
			}

			writes := computeWriteStates(ri, cur, prog)
			for _, w := range writes {
				if int(w.reg) < len(cur) {
					cur[w.reg] = w.state
				}
				if int(w.reg) < len(initCur) {
					initCur[w.reg] = true
				}
			}

			vf.Instrs = append(vf.Instrs, *vi)
			vf.InstrPC = append(vf.InstrPC, pc)
		}
	}

	// Branch targets were resolved against g.Instrs, which still counts
	// unreachable instructions; rebase them onto vf.Instrs.
	vfIndex := make(map[int]int, len(order))
	for k, i := range order {
		vfIndex[i] = k
	}
	for k := range vf.Instrs {
		vi := &vf.Instrs[k]
		switch vi.Opcode {
		case OpJmp:
			vi.PCTarget = vfIndex[vi.PCTarget]
		case OpBr:
			vi.PCTrue, vi.PCFalse = vfIndex[vi.PCTrue], vfIndex[vi.PCFalse]
		}
	}

	return vf, nil
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

type regWrite struct {
	reg   uint32
	state regState
}

// computeWriteStates mirrors applyWrites (verify.go) but returns the
// result instead of mutating in place, so both the accumulation pass and
// the emitting pass can share the same per-opcode logic.
func computeWriteStates(ri *resolvedInstr, cur []regState, prog *Program) []regWrite {
	switch ri.Op {
	case OpMov:
		return []regWrite{{ri.Writes[0].Raw, cur[ri.Reads[0].Raw]}}
	case OpSelectDecimal, OpSelectAgg:
		return []regWrite{{ri.Writes[0].Raw, cur[ri.Reads[1].Raw]}}
	case OpTupleGet, OpStructGet:
		agg := cur[ri.Reads[0].Raw]
		if agg.Kind != rsConcrete || int(agg.Type.Agg) >= len(prog.Types) {
			return []regWrite{{ri.Writes[0].Raw, regState{Kind: rsBottom}}}
		}
		td := prog.Types[agg.Type.Agg]
		if int(ri.Index) < len(td.FieldTypes) {
			return []regWrite{{ri.Writes[0].Raw, concreteState(td.FieldTypes[ri.Index])}}
		}
		return []regWrite{{ri.Writes[0].Raw, regState{Kind: rsAmbiguous}}}
	case OpArrayGet:
		arr := cur[ri.Reads[0].Raw]
		if arr.Kind != rsConcrete || int(arr.Type.Agg) >= len(prog.Types) {
			return []regWrite{{ri.Writes[0].Raw, regState{Kind: rsBottom}}}
		}
		td := prog.Types[arr.Type.Agg]
		return []regWrite{{ri.Writes[0].Raw, concreteState(td.ElemType)}}
	case OpDecAdd, OpDecSub, OpDecMul:
		a := cur[ri.Reads[0].Raw]
		if a.Kind == rsConcrete {
			return []regWrite{{ri.Writes[0].Raw, a}}
		}
		return []regWrite{{ri.Writes[0].Raw, regState{Kind: rsBottom}}}
	}
	out := make([]regWrite, len(ri.Writes))
	for i, w := range ri.Writes {
		out[i] = regWrite{w.Raw, concreteState(w.Type)}
	}
	return out
}

// checkReads enforces must-init (§4.2.3) and rejects reads of an Ambiguous
// register (§4.2.2) before any type-specific check runs.
func checkReads(ri *resolvedInstr, cur []regState, initCur []bool, fnID FuncId, pc uint32) *VerifyError {
	for _, r := range ri.Reads {
		if int(r.Raw) >= len(initCur) {
			continue
		}
		if !initCur[r.Raw] {
			return &VerifyError{Func: fnID, PC: pc, Reg: r.Raw, HasReg: true, Kind: VerifyErrUseBeforeInit, Detail: "register read before it is written on at least one path"}
		}
		if cur[r.Raw].Kind == rsAmbiguous {
			return &VerifyError{Func: fnID, PC: pc, Reg: r.Raw, HasReg: true, Kind: VerifyErrRegisterClassConflict, Detail: "register has inconsistent classes on different control-flow paths"}
		}
	}
	return nil
}

// buildVerifiedInstr performs the remaining opcode-specific type checks
// (§4.2.4) not already covered by resolveInstr's static checks, then emits
// the typed, register-lowered instruction.
func buildVerifiedInstr(prog *Program, fn *FunctionEntry, fnID FuncId, g *cfg, ri *resolvedInstr, cur []regState, layout *RegLayout, pc uint32) (*VerifiedInstr, *VerifyError) {
	verr := func(kind VerifyErrKind, detail string) *VerifyError {
		return &VerifyError{Func: fnID, PC: pc, Kind: kind, Detail: detail}
	}
	vreg := func(raw uint32) VReg { return layout.RegMap[raw] }

	vi := &VerifiedInstr{Opcode: ri.Op, ConstID: ri.ConstID, TypeID: ri.TypeID, FuncID: ri.FuncID, HostSigID: ri.HostSigID, Index: ri.Index, Scale: ri.Scale}

	if !opcodesWithDependentTypes[ri.Op] {
		for _, r := range ri.Reads {
			if int(r.Raw) >= len(cur) {
				continue
			}
			got := cur[r.Raw]
			if got.Kind == rsConcrete && !got.Type.Equal(r.Type) {
				return nil, verr(VerifyErrTypeMismatch, fmt.Sprintf("expected %v, register classified as %v", r.Type, got.Type))
			}
		}
	} else {
		switch ri.Op {
		case OpDecAdd, OpDecSub, OpDecMul:
			a, b := cur[ri.Reads[0].Raw], cur[ri.Reads[1].Raw]
			if a.Kind != rsConcrete || a.Type.Kind != KindDecimal || b.Kind != rsConcrete || b.Type.Kind != KindDecimal {
				return nil, verr(VerifyErrTypeMismatch, "dec_add/sub/mul operands must both be Decimal")
			}
		case OpSelectDecimal, OpSelectAgg:
			a, b := cur[ri.Reads[1].Raw], cur[ri.Reads[2].Raw]
			if a.Kind != rsConcrete || b.Kind != rsConcrete || !a.Type.Equal(b.Type) {
				return nil, verr(VerifyErrTypeMismatch, "select arms must have matching types")
			}
		case OpTupleGet, OpStructGet:
			agg := cur[ri.Reads[0].Raw]
			if agg.Kind != rsConcrete || agg.Type.Kind != KindAgg {
				return nil, verr(VerifyErrTypeMismatch, "operand is not an aggregate")
			}
			td := prog.Types[agg.Type.Agg]
			wantKind := TypeDefTuple
			if ri.Op == OpStructGet {
				wantKind = TypeDefStruct
			}
			if td.Kind != wantKind {
				return nil, verr(VerifyErrAggKindMismatch, "aggregate is not the expected kind")
			}
			if int(ri.Index) >= len(td.FieldTypes) {
				return nil, verr(VerifyErrAggIndexOutOfRange, fmt.Sprintf("index %d out of range for arity %d", ri.Index, len(td.FieldTypes)))
			}
		case OpArrayGet:
			arr := cur[ri.Reads[0].Raw]
			if arr.Kind != rsConcrete || arr.Type.Kind != KindAgg {
				return nil, verr(VerifyErrTypeMismatch, "operand is not an array")
			}
			if prog.Types[arr.Type.Agg].Kind != TypeDefArray {
				return nil, verr(VerifyErrAggKindMismatch, "aggregate is not an array")
			}
		case OpTupleLen, OpStructFieldCount:
			agg := cur[ri.Reads[0].Raw]
			if agg.Kind != rsConcrete || agg.Type.Kind != KindAgg {
				return nil, verr(VerifyErrTypeMismatch, "operand is not an aggregate")
			}
		case OpArrayLen:
			arr := cur[ri.Reads[0].Raw]
			if arr.Kind != rsConcrete || arr.Type.Kind != KindAgg || prog.Types[arr.Type.Agg].Kind != TypeDefArray {
				return nil, verr(VerifyErrTypeMismatch, "operand is not an array")
			}
		}
	}

	switch ri.Op {
	case OpNop, OpTrap:
	case OpJmp:
		idx, ok := g.pcToIndex[uint32(ri.PCTarget)]
		if !ok {
			return nil, verr(VerifyErrBadJumpTarget, "jmp target is not an instruction boundary")
		}
		vi.PCTarget = idx
	case OpBr:
		ti, ok := g.pcToIndex[uint32(ri.PCTrue)]
		if !ok {
			return nil, verr(VerifyErrBadJumpTarget, "br true-target is not an instruction boundary")
		}
		fi, ok := g.pcToIndex[uint32(ri.PCFalse)]
		if !ok {
			return nil, verr(VerifyErrBadJumpTarget, "br false-target is not an instruction boundary")
		}
		vi.Cond = vreg(ri.Reads[0].Raw)
		vi.PCTrue, vi.PCFalse = ti, fi
	case OpRet:
		if len(ri.Reads) != len(fn.RetTypes) {
			return nil, verr(VerifyErrArityMismatch, fmt.Sprintf("ret supplies %d values, function returns %d", len(ri.Reads), len(fn.RetTypes)))
		}
		for i, r := range ri.Reads {
			got := cur[r.Raw]
			if got.Kind != rsConcrete || !got.Type.Equal(fn.RetTypes[i]) {
				return nil, verr(VerifyErrTypeMismatch, fmt.Sprintf("ret value %d: expected %v", i, fn.RetTypes[i]))
			}
			vi.Rets = append(vi.Rets, vreg(r.Raw))
		}
	case OpCall, OpHostCall:
		for _, r := range ri.Reads {
			vi.Args = append(vi.Args, vreg(r.Raw))
		}
		for _, w := range ri.Writes {
			vi.Rets = append(vi.Rets, vreg(w.Raw))
		}
	case OpTupleNew, OpStructNew, OpArrayNew:
		for _, r := range ri.Reads {
			vi.Args = append(vi.Args, vreg(r.Raw))
		}
		vi.Dst = vreg(ri.Writes[0].Raw)
	case OpSelectI64, OpSelectU64, OpSelectF64, OpSelectBool, OpSelectUnit, OpSelectBytes, OpSelectStr, OpSelectDecimal, OpSelectAgg:
		vi.Dst = vreg(ri.Writes[0].Raw)
		vi.Cond = vreg(ri.Reads[0].Raw)
		vi.A = vreg(ri.Reads[1].Raw)
		vi.B = vreg(ri.Reads[2].Raw)
	case OpBytesSlice, OpStrSlice:
		vi.Dst = vreg(ri.Writes[0].Raw)
		vi.A = vreg(ri.Reads[0].Raw)
		vi.B = vreg(ri.Reads[1].Raw)
		vi.C = vreg(ri.Reads[2].Raw)
	default:
		if len(ri.Writes) > 0 {
			vi.Dst = vreg(ri.Writes[0].Raw)
		}
		if len(ri.Reads) > 0 {
			vi.A = vreg(ri.Reads[0].Raw)
		}
		if len(ri.Reads) > 1 {
			vi.B = vreg(ri.Reads[1].Raw)
		}
	}

	return vi, nil
}
