// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "fmt"

// regRef is a raw (not yet class-lowered) register reference together with
// the ValueType the verifier expects to find (for a read) or assigns (for a
// write) at that register.
type regRef struct {
	Raw  uint32
	Type ValueType
}

// resolvedInstr is one instruction after static resolution: every constant
// pool, type table, function table, and host signature lookup an opcode
// needs has already happened, and branch/jump targets have been validated
// to be instruction boundaries (byte PCs, not yet instruction indices).
// Unlike Instr, a resolvedInstr already knows each operand's required
// ValueType - but register operands are still raw indices, because the
// class-lowering (raw index -> class + local index) happens only after the
// whole-function register classification fixpoint converges.
type resolvedInstr struct {
	Op Opcode

	Writes []regRef
	Reads  []regRef

	ConstID   ConstId
	TypeID    TypeId
	FuncID    FuncId
	HostSigID HostSigId

	Index uint32
	Scale uint8

	IsBr     bool
	PCTrue   uint64
	PCFalse  uint64
	IsJmp    bool
	PCTarget uint64

	IsRet bool

	I64Imm  int64
	U64Imm  uint64
	F64Bits uint64
	BoolImm bool

	Mantissa int64
}

func reg(raw uint64, t ValueType) regRef {
	return regRef{Raw: uint32(raw), Type: t}
}

var (
	tUnit = ValueType{Kind: KindUnit}
	tBool = ValueType{Kind: KindBool}
	tI64  = ValueType{Kind: KindI64}
	tU64  = ValueType{Kind: KindU64}
	tF64  = ValueType{Kind: KindF64}
	tBytes = ValueType{Kind: KindBytes}
	tStr  = ValueType{Kind: KindStr}
)

// resolveInstr statically resolves one raw instruction against the owning
// program's const/type/function/host-sig tables and its own function's
// signature. It never consults register classification state: per §4.2.4,
// for most opcodes the ValueType read or written is fully determined by
// the opcode and static metadata (each arithmetic/comparison/select opcode
// is already split per-class at the bytecode level). The exceptions - mov,
// dec_add/sub/mul, select_decimal/select_agg and the aggregate accessors -
// get placeholder types here that the typed-transfer pass fills in from
// classification.
func resolveInstr(prog *Program, fn *FunctionEntry, fnID FuncId, ins Instr) (*resolvedInstr, *VerifyError) {
	verr := func(kind VerifyErrKind, detail string) *VerifyError {
		return &VerifyError{Func: fnID, Kind: kind, Detail: detail}
	}

	binary := func(t ValueType) *resolvedInstr {
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{reg(ins.Imm[0], t)},
			Reads:  []regRef{reg(ins.Imm[1], t), reg(ins.Imm[2], t)},
		}
	}
	cmp := func(t ValueType) *resolvedInstr {
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{reg(ins.Imm[0], tBool)},
			Reads:  []regRef{reg(ins.Imm[1], t), reg(ins.Imm[2], t)},
		}
	}
	unary := func(in, out ValueType) *resolvedInstr {
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{reg(ins.Imm[0], out)},
			Reads:  []regRef{reg(ins.Imm[1], in)},
		}
	}
	selectOp := func(t ValueType) *resolvedInstr {
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{reg(ins.Imm[0], t)},
			Reads:  []regRef{reg(ins.Imm[1], tBool), reg(ins.Imm[2], t), reg(ins.Imm[3], t)},
		}
	}

	switch ins.Opcode {
	case OpNop:
		return &resolvedInstr{Op: ins.Opcode}, nil
	case OpTrap:
		return &resolvedInstr{Op: ins.Opcode}, nil

	case OpJmp:
		return &resolvedInstr{Op: ins.Opcode, IsJmp: true, PCTarget: ins.Imm[0]}, nil
	case OpBr:
		return &resolvedInstr{
			Op:      ins.Opcode,
			Reads:   []regRef{reg(ins.Imm[0], tBool)},
			IsBr:    true,
			PCTrue:  ins.Imm[1],
			PCFalse: ins.Imm[2],
		}, nil

	case OpConst:
		cid := ConstId(ins.Imm[1])
		if int(cid) >= len(prog.Consts) {
			return nil, verr(VerifyErrBadConstId, fmt.Sprintf("const id %d out of range", cid))
		}
		t := prog.Consts[cid].Type
		return &resolvedInstr{
			Op:      ins.Opcode,
			Writes:  []regRef{reg(ins.Imm[0], t)},
			ConstID: cid,
		}, nil

	case OpMov:
		// mov's class is determined by whichever class its destination is
		// later classified as; record both operands with a placeholder type
		// and let register classification (which treats Mov specially)
		// assign the real type from the source's classification.
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{{Raw: uint32(ins.Imm[0])}},
			Reads:  []regRef{{Raw: uint32(ins.Imm[1])}},
		}, nil

	case OpI64Add, OpI64Sub, OpI64Mul, OpI64Div, OpI64Rem, OpI64And, OpI64Or, OpI64Xor, OpI64Shl, OpI64Shr:
		return binary(tI64), nil
	case OpU64Add, OpU64Sub, OpU64Mul, OpU64Div, OpU64Rem, OpU64And, OpU64Or, OpU64Xor, OpU64Shl, OpU64Shr:
		return binary(tU64), nil
	case OpF64Add, OpF64Sub, OpF64Mul, OpF64Div:
		return binary(tF64), nil

	case OpI64Eq, OpI64Lt, OpI64Gt, OpI64Le, OpI64Ge:
		return cmp(tI64), nil
	case OpU64Eq, OpU64Lt, OpU64Gt, OpU64Le, OpU64Ge:
		return cmp(tU64), nil
	case OpF64Eq, OpF64Lt, OpF64Gt, OpF64Le, OpF64Ge:
		return cmp(tF64), nil

	case OpBoolAnd, OpBoolOr, OpBoolXor:
		return binary(tBool), nil
	case OpBoolNot:
		return unary(tBool, tBool), nil

	case OpDecAdd, OpDecSub, OpDecMul:
		// Decimal's scale cannot be fixed statically from the opcode alone.
		// Record a wildcard Decimal type here; the typed-transfer pass only
		// checks that both operands are classified Decimal and gives the
		// destination the first operand's classified type. A scale mismatch
		// traps at run time (§4.3.2).
		dec := ValueType{Kind: KindDecimal}
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{{Raw: uint32(ins.Imm[0])}},
			Reads:  []regRef{{Raw: uint32(ins.Imm[1]), Type: dec}, {Raw: uint32(ins.Imm[2]), Type: dec}},
		}, nil

	case OpU64ToI64:
		return unary(tU64, tI64), nil
	case OpI64ToU64:
		return unary(tI64, tU64), nil
	case OpI64ToF64:
		return unary(tI64, tF64), nil
	case OpU64ToF64:
		return unary(tU64, tF64), nil
	case OpF64ToI64:
		return unary(tF64, tI64), nil
	case OpF64ToU64:
		return unary(tF64, tU64), nil
	case OpDecToI64:
		return unary(ValueType{Kind: KindDecimal}, tI64), nil
	case OpDecToU64:
		return unary(ValueType{Kind: KindDecimal}, tU64), nil
	case OpI64ToDec:
		scale := uint8(ins.Imm[2])
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{reg(ins.Imm[0], ValueType{Kind: KindDecimal, Scale: scale})},
			Reads:  []regRef{reg(ins.Imm[1], tI64)},
			Scale:  scale,
		}, nil
	case OpU64ToDec:
		scale := uint8(ins.Imm[2])
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{reg(ins.Imm[0], ValueType{Kind: KindDecimal, Scale: scale})},
			Reads:  []regRef{reg(ins.Imm[1], tU64)},
			Scale:  scale,
		}, nil

	case OpSelectI64:
		return selectOp(tI64), nil
	case OpSelectU64:
		return selectOp(tU64), nil
	case OpSelectF64:
		return selectOp(tF64), nil
	case OpSelectBool:
		return selectOp(tBool), nil
	case OpSelectUnit:
		return selectOp(tUnit), nil
	case OpSelectBytes:
		return selectOp(tBytes), nil
	case OpSelectStr:
		return selectOp(tStr), nil
	case OpSelectDecimal, OpSelectAgg:
		// These need the operands' actual classified type echoed to the
		// destination; leave placeholders for the typed-transfer pass.
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{{Raw: uint32(ins.Imm[0])}},
			Reads: []regRef{
				reg(ins.Imm[1], tBool),
				{Raw: uint32(ins.Imm[2])},
				{Raw: uint32(ins.Imm[3])},
			},
		}, nil

	case OpBytesLen:
		return unary(tBytes, tU64), nil
	case OpStrLen:
		return unary(tStr, tU64), nil
	case OpBytesEq:
		return cmp(tBytes), nil
	case OpStrEq:
		return cmp(tStr), nil
	case OpBytesConcat:
		return binary(tBytes), nil
	case OpStrConcat:
		return binary(tStr), nil
	case OpBytesSlice:
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{reg(ins.Imm[0], tBytes)},
			Reads:  []regRef{reg(ins.Imm[1], tBytes), reg(ins.Imm[2], tU64), reg(ins.Imm[3], tU64)},
		}, nil
	case OpStrSlice:
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{reg(ins.Imm[0], tStr)},
			Reads:  []regRef{reg(ins.Imm[1], tStr), reg(ins.Imm[2], tU64), reg(ins.Imm[3], tU64)},
		}, nil
	case OpBytesGet:
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{reg(ins.Imm[0], tU64)},
			Reads:  []regRef{reg(ins.Imm[1], tBytes), reg(ins.Imm[2], tU64)},
		}, nil
	case OpBytesGetImm:
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{reg(ins.Imm[0], tU64)},
			Reads:  []regRef{reg(ins.Imm[1], tBytes)},
			Index:  uint32(ins.Imm[2]),
		}, nil
	case OpBytesToStr:
		return unary(tBytes, tStr), nil
	case OpStrToBytes:
		return unary(tStr, tBytes), nil

	case OpRet:
		n := ins.Imm[0]
		rets := make([]regRef, n)
		for i := uint64(0); i < n; i++ {
			rets[i] = regRef{Raw: uint32(ins.Imm[1+i])}
		}
		return &resolvedInstr{Op: ins.Opcode, IsRet: true, Reads: rets}, nil

	case OpCall:
		callee := FuncId(ins.Imm[0])
		if int(callee) >= len(prog.Functions) {
			return nil, verr(VerifyErrBadFuncId, fmt.Sprintf("func id %d out of range", callee))
		}
		target := prog.Functions[callee]
		argc := ins.Imm[1]
		if argc != uint64(target.ArgCount) {
			return nil, verr(VerifyErrArityMismatch, fmt.Sprintf("call to func %d: %d args supplied, wants %d", callee, argc, target.ArgCount))
		}
		args := make([]regRef, argc)
		for i := uint64(0); i < argc; i++ {
			args[i] = reg(ins.Imm[2+i], target.ArgTypes[i])
		}
		retOff := 2 + argc
		retc := ins.Imm[retOff]
		if retc != uint64(target.RetCount) {
			return nil, verr(VerifyErrArityMismatch, fmt.Sprintf("call to func %d: %d rets supplied, wants %d", callee, retc, target.RetCount))
		}
		rets := make([]regRef, retc)
		for i := uint64(0); i < retc; i++ {
			rets[i] = reg(ins.Imm[retOff+1+i], target.RetTypes[i])
		}
		return &resolvedInstr{Op: ins.Opcode, FuncID: callee, Reads: args, Writes: rets}, nil

	case OpHostCall:
		sig := HostSigId(ins.Imm[0])
		if int(sig) >= len(prog.HostSigs) {
			return nil, verr(VerifyErrBadHostSigId, fmt.Sprintf("host sig id %d out of range", sig))
		}
		hs := prog.HostSigs[sig]
		argc := ins.Imm[1]
		if argc != uint64(len(hs.ArgTypes)) {
			return nil, verr(VerifyErrArityMismatch, fmt.Sprintf("host_call sig %d: %d args supplied, wants %d", sig, argc, len(hs.ArgTypes)))
		}
		args := make([]regRef, argc)
		for i := uint64(0); i < argc; i++ {
			args[i] = reg(ins.Imm[2+i], hs.ArgTypes[i])
		}
		retOff := 2 + argc
		retc := ins.Imm[retOff]
		if retc != uint64(len(hs.RetTypes)) {
			return nil, verr(VerifyErrArityMismatch, fmt.Sprintf("host_call sig %d: %d rets supplied, wants %d", sig, retc, len(hs.RetTypes)))
		}
		rets := make([]regRef, retc)
		for i := uint64(0); i < retc; i++ {
			rets[i] = reg(ins.Imm[retOff+1+i], hs.RetTypes[i])
		}
		return &resolvedInstr{Op: ins.Opcode, HostSigID: sig, Reads: args, Writes: rets}, nil

	case OpTupleNew, OpStructNew:
		dst := ins.Imm[0]
		tid := TypeId(ins.Imm[1])
		if int(tid) >= len(prog.Types) {
			return nil, verr(VerifyErrBadTypeId, fmt.Sprintf("type id %d out of range", tid))
		}
		td := prog.Types[tid]
		wantKind := TypeDefTuple
		if ins.Opcode == OpStructNew {
			wantKind = TypeDefStruct
		}
		if td.Kind != wantKind {
			return nil, verr(VerifyErrAggKindMismatch, fmt.Sprintf("type %d is not a %v", tid, wantKind))
		}
		argc := ins.Imm[2]
		if int(argc) != len(td.FieldTypes) {
			return nil, verr(VerifyErrArityMismatch, fmt.Sprintf("aggregate type %d wants %d fields, got %d", tid, len(td.FieldTypes), argc))
		}
		args := make([]regRef, argc)
		for i := uint64(0); i < argc; i++ {
			args[i] = reg(ins.Imm[3+i], td.FieldTypes[i])
		}
		return &resolvedInstr{
			Op:     ins.Opcode,
			TypeID: tid,
			Writes: []regRef{reg(dst, ValueType{Kind: KindAgg, Agg: tid})},
			Reads:  args,
		}, nil

	case OpArrayNew:
		dst := ins.Imm[0]
		tid := TypeId(ins.Imm[1])
		if int(tid) >= len(prog.Types) {
			return nil, verr(VerifyErrBadTypeId, fmt.Sprintf("type id %d out of range", tid))
		}
		td := prog.Types[tid]
		if td.Kind != TypeDefArray {
			return nil, verr(VerifyErrAggKindMismatch, fmt.Sprintf("type %d is not an array type", tid))
		}
		length := ins.Imm[2]
		argc := ins.Imm[3]
		if argc != length {
			return nil, verr(VerifyErrArityMismatch, fmt.Sprintf("array_new declares len %d but supplies %d elements", length, argc))
		}
		args := make([]regRef, argc)
		for i := uint64(0); i < argc; i++ {
			args[i] = reg(ins.Imm[4+i], td.ElemType)
		}
		return &resolvedInstr{
			Op:     ins.Opcode,
			TypeID: tid,
			Index:  uint32(length),
			Writes: []regRef{reg(dst, ValueType{Kind: KindAgg, Agg: tid})},
			Reads:  args,
		}, nil

	case OpTupleGet, OpStructGet:
		agg := ValueType{} // placeholder; filled by typed-transfer pass from classification
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{{Raw: uint32(ins.Imm[0])}},
			Reads:  []regRef{{Raw: uint32(ins.Imm[1]), Type: agg}},
			Index:  uint32(ins.Imm[2]),
		}, nil

	case OpTupleLen, OpStructFieldCount:
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{reg(ins.Imm[0], tU64)},
			Reads:  []regRef{{Raw: uint32(ins.Imm[1])}},
		}, nil

	case OpArrayLen:
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{reg(ins.Imm[0], tU64)},
			Reads:  []regRef{{Raw: uint32(ins.Imm[1])}},
		}, nil

	case OpArrayGet:
		return &resolvedInstr{
			Op:     ins.Opcode,
			Writes: []regRef{{Raw: uint32(ins.Imm[0])}},
			Reads:  []regRef{{Raw: uint32(ins.Imm[1])}, reg(ins.Imm[2], tU64)},
			Index:  0,
		}, nil

	default:
		return nil, verr(VerifyErrMalformedBytecode, fmt.Sprintf("unhandled opcode %s", ins.Opcode))
	}
}
