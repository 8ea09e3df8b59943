// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "fmt"

// RegClass is the verifier-assigned storage class of a virtual register.
// The raw bytecode uses a single register index space (r0..rN); the
// verifier partitions it by class so the VM can hold one flat array per
// class instead of one tagged-union array (§4.2.2, §4.3).
type RegClass uint8

const (
	RegClassUnit RegClass = iota
	RegClassBool
	RegClassI64
	RegClassU64
	RegClassF64
	RegClassDecimal
	RegClassBytes
	RegClassStr
	RegClassAgg
)

func (c RegClass) String() string {
	switch c {
	case RegClassUnit:
		return "unit"
	case RegClassBool:
		return "bool"
	case RegClassI64:
		return "i64"
	case RegClassU64:
		return "u64"
	case RegClassF64:
		return "f64"
	case RegClassDecimal:
		return "decimal"
	case RegClassBytes:
		return "bytes"
	case RegClassStr:
		return "str"
	case RegClassAgg:
		return "agg"
	default:
		return fmt.Sprintf("regclass(%d)", uint8(c))
	}
}

// regClassOf maps a value's on-disk ValueType to its register class. Unlike
// ValueType, RegClass drops the decimal scale and aggregate TypeId: those
// distinctions matter for type-checking operands but not for where a value
// physically lives.
func regClassOf(t ValueType) RegClass {
	switch t.Kind {
	case KindUnit:
		return RegClassUnit
	case KindBool:
		return RegClassBool
	case KindI64:
		return RegClassI64
	case KindU64:
		return RegClassU64
	case KindF64:
		return RegClassF64
	case KindDecimal:
		return RegClassDecimal
	case KindBytes:
		return RegClassBytes
	case KindStr:
		return RegClassStr
	case KindAgg:
		return RegClassAgg
	default:
		panic(fmt.Sprintf("tapevm: unhandled ValueKind %v", t.Kind))
	}
}

// VReg is a typed register reference: which class-local array it lives in,
// and its index within that array. The VM indexes straight into
// Frame.<class>Regs[Index] with no runtime tag check.
type VReg struct {
	Class RegClass
	Index uint32
}

// RegCounts is the number of class-local slots a function needs, one count
// per RegClass.
type RegCounts struct {
	Unit, Bool, I64, U64, F64, Decimal, Bytes, Str, Agg uint32
}

func (c RegCounts) of(class RegClass) uint32 {
	switch class {
	case RegClassUnit:
		return c.Unit
	case RegClassBool:
		return c.Bool
	case RegClassI64:
		return c.I64
	case RegClassU64:
		return c.U64
	case RegClassF64:
		return c.F64
	case RegClassDecimal:
		return c.Decimal
	case RegClassBytes:
		return c.Bytes
	case RegClassStr:
		return c.Str
	case RegClassAgg:
		return c.Agg
	default:
		panic(fmt.Sprintf("tapevm: unhandled RegClass %v", class))
	}
}

// RegLayout is the verifier's assignment of every raw virtual register in a
// function to a (class, class-local index) pair, plus the resulting
// per-class array sizes.
type RegLayout struct {
	// RegMap[rawVReg] is the typed register that raw register occupies.
	RegMap  []VReg
	Counts  RegCounts
	ArgRegs []VReg // the function's parameters, in declared order
}

// VerifiedInstr is one instruction from a verified function's instruction
// stream. Unlike the raw Instr, every register operand here is a VReg
// (class-tagged) rather than a bare index, and PC-valued fields have been
// lowered from byte offsets to instruction indices (§4.2.4). Only the
// fields relevant to Opcode are populated; which fields those are is fixed
// per opcode and documented in opcodes.go.
type VerifiedInstr struct {
	Opcode Opcode

	Dst, A, B, C, Cond VReg
	Args, Rets         []VReg

	ConstID   ConstId
	TypeID    TypeId
	FuncID    FuncId
	HostSigID HostSigId

	Index uint32 // tuple/struct/array index, or const-pool-free immediate index
	Scale uint8

	// PCTrue/PCFalse/PCTarget are instruction indices into the owning
	// VerifiedFunction.Instrs, not byte offsets.
	PCTrue, PCFalse, PCTarget int

	I64Imm  int64
	U64Imm  uint64
	F64Bits uint64
	BoolImm bool

	Mantissa int64
}

// VerifiedFunction is one function after verification: its register
// layout and a typed, PC-lowered instruction stream, plus enough of the
// original byte-PC structure to resolve trace/debug information back to
// source spans.
type VerifiedFunction struct {
	Layout     RegLayout
	Instrs     []VerifiedInstr
	// InstrPC[i] is the byte offset the i'th verified instruction started
	// at in the original bytecode, for span lookups and trace labels.
	InstrPC []uint32
	ArgTypes, RetTypes []ValueType
}

// VerifiedProgram is the output of running the verifier over every function
// in a Program. It is what the VM actually executes; the VM never looks at
// Program's raw bytecode.
type VerifiedProgram struct {
	Functions []VerifiedFunction
	Consts    []ConstEntry
	Types     []TypeDef
	HostSigs  []HostSig
	Blob      []byte
	Symbols   [][]byte
}

func (p *VerifiedProgram) ConstBlob(e ConstEntry) []byte {
	return p.Blob[e.Blob.Offset : e.Blob.Offset+e.Blob.Len]
}
