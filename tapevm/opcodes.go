// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "fmt"

// Opcode identifies a raw bytecode instruction. Opcodes are grouped into
// ranges by category; the decoder never needs the grouping, but keeping
// related opcodes numerically adjacent makes disassembly listings and future
// additions easier to reason about.
type Opcode byte

const (
	// ------------------------------------------------------------------
	// Control flow (0x00-0x0F)
	// ------------------------------------------------------------------

	OpNop      Opcode = 0x00
	OpTrap     Opcode = 0x01 // trap: unconditional trap (Unreachable)
	OpBr       Opcode = 0x02 // br cond, pc_true, pc_false
	OpJmp      Opcode = 0x03 // jmp pc
	OpCall     Opcode = 0x04 // call func_id, argc, args..., retc, rets...
	OpHostCall Opcode = 0x05 // host_call sig_id, argc, args..., retc, rets...
	OpRet      Opcode = 0x06 // ret retc, rets...

	// ------------------------------------------------------------------
	// Register moves and constants (0x10-0x1F)
	// ------------------------------------------------------------------

	OpMov   Opcode = 0x10 // mov dst, src (same class)
	OpConst Opcode = 0x11 // const dst, const_id, reserved (read and ignored)

	// ------------------------------------------------------------------
	// i64 arithmetic / bitwise (0x20-0x2F)
	// ------------------------------------------------------------------

	OpI64Add Opcode = 0x20
	OpI64Sub Opcode = 0x21
	OpI64Mul Opcode = 0x22
	OpI64Div Opcode = 0x23
	OpI64Rem Opcode = 0x24
	OpI64And Opcode = 0x25
	OpI64Or  Opcode = 0x26
	OpI64Xor Opcode = 0x27
	OpI64Shl Opcode = 0x28
	OpI64Shr Opcode = 0x29

	// ------------------------------------------------------------------
	// i64 comparisons (0x30-0x3F)
	// ------------------------------------------------------------------

	OpI64Eq Opcode = 0x30
	OpI64Lt Opcode = 0x31
	OpI64Gt Opcode = 0x32
	OpI64Le Opcode = 0x33
	OpI64Ge Opcode = 0x34

	// ------------------------------------------------------------------
	// u64 arithmetic / bitwise (0x40-0x4F)
	// ------------------------------------------------------------------

	OpU64Add Opcode = 0x40
	OpU64Sub Opcode = 0x41
	OpU64Mul Opcode = 0x42
	OpU64Div Opcode = 0x43
	OpU64Rem Opcode = 0x44
	OpU64And Opcode = 0x45
	OpU64Or  Opcode = 0x46
	OpU64Xor Opcode = 0x47
	OpU64Shl Opcode = 0x48
	OpU64Shr Opcode = 0x49

	// ------------------------------------------------------------------
	// u64 comparisons (0x50-0x5F)
	// ------------------------------------------------------------------

	OpU64Eq Opcode = 0x50
	OpU64Lt Opcode = 0x51
	OpU64Gt Opcode = 0x52
	OpU64Le Opcode = 0x53
	OpU64Ge Opcode = 0x54

	// ------------------------------------------------------------------
	// f64 arithmetic and comparisons (0x60-0x6F)
	// ------------------------------------------------------------------

	OpF64Add Opcode = 0x60
	OpF64Sub Opcode = 0x61
	OpF64Mul Opcode = 0x62
	OpF64Div Opcode = 0x63
	OpF64Eq  Opcode = 0x64
	OpF64Lt  Opcode = 0x65
	OpF64Gt  Opcode = 0x66
	OpF64Le  Opcode = 0x67
	OpF64Ge  Opcode = 0x68

	// ------------------------------------------------------------------
	// Decimal arithmetic (0x70-0x7F)
	// ------------------------------------------------------------------

	OpDecAdd Opcode = 0x70
	OpDecSub Opcode = 0x71
	OpDecMul Opcode = 0x72

	// ------------------------------------------------------------------
	// Bool (0x80-0x8F)
	// ------------------------------------------------------------------

	OpBoolAnd Opcode = 0x80
	OpBoolOr  Opcode = 0x81
	OpBoolNot Opcode = 0x82
	OpBoolXor Opcode = 0x83

	// ------------------------------------------------------------------
	// Numeric conversions (0x90-0x9F)
	// ------------------------------------------------------------------

	OpU64ToI64  Opcode = 0x90
	OpI64ToU64  Opcode = 0x91
	OpI64ToF64  Opcode = 0x92
	OpU64ToF64  Opcode = 0x93
	OpF64ToI64  Opcode = 0x94
	OpF64ToU64  Opcode = 0x95
	OpDecToI64  Opcode = 0x96
	OpDecToU64  Opcode = 0x97
	OpI64ToDec  Opcode = 0x98 // i64_to_dec dst, a, scale
	OpU64ToDec  Opcode = 0x99 // u64_to_dec dst, a, scale

	// ------------------------------------------------------------------
	// Select (0xA0-0xAF): select dst, cond, a, b - one opcode per class.
	// ------------------------------------------------------------------

	OpSelectI64     Opcode = 0xA0
	OpSelectU64     Opcode = 0xA1
	OpSelectF64     Opcode = 0xA2
	OpSelectBool    Opcode = 0xA3
	OpSelectUnit    Opcode = 0xA4
	OpSelectDecimal Opcode = 0xA5
	OpSelectBytes   Opcode = 0xA6
	OpSelectStr     Opcode = 0xA7
	OpSelectAgg     Opcode = 0xA8

	// ------------------------------------------------------------------
	// Bytes / Str (0xB0-0xBF)
	// ------------------------------------------------------------------

	OpBytesLen    Opcode = 0xB0
	OpStrLen      Opcode = 0xB1
	OpBytesEq     Opcode = 0xB2
	OpStrEq       Opcode = 0xB3
	OpBytesConcat Opcode = 0xB4
	OpStrConcat   Opcode = 0xB5
	OpBytesSlice  Opcode = 0xB6
	OpStrSlice    Opcode = 0xB7
	OpBytesGet    Opcode = 0xB8 // bytes_get dst, bytes, idx_reg (u64)
	OpBytesGetImm Opcode = 0xB9 // bytes_get_imm dst, bytes, idx_imm
	OpBytesToStr  Opcode = 0xBA
	OpStrToBytes  Opcode = 0xBB

	// ------------------------------------------------------------------
	// Aggregates (0xC0-0xCF)
	// ------------------------------------------------------------------

	OpTupleNew          Opcode = 0xC0 // tuple_new dst, type_id, argc, args...
	OpTupleGet          Opcode = 0xC1 // tuple_get dst, agg, index
	OpTupleLen          Opcode = 0xC2
	OpStructNew         Opcode = 0xC3 // struct_new dst, type_id, argc, args...
	OpStructGet         Opcode = 0xC4 // struct_get dst, agg, field_index
	OpStructFieldCount  Opcode = 0xC5
	OpArrayNew          Opcode = 0xC6 // array_new dst, elem_type_id, len, argc, args...
	OpArrayLen          Opcode = 0xC7
	OpArrayGet          Opcode = 0xC8 // array_get dst, arr, idx_reg (u64), traps on OOB
)

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return fmt.Sprintf("op(0x%02x)", byte(op))
}

var opcodeNames = map[Opcode]string{
	OpNop: "nop", OpTrap: "trap", OpBr: "br", OpJmp: "jmp",
	OpCall: "call", OpHostCall: "host_call", OpRet: "ret",
	OpMov: "mov", OpConst: "const",
	OpI64Add: "i64_add", OpI64Sub: "i64_sub", OpI64Mul: "i64_mul",
	OpI64Div: "i64_div", OpI64Rem: "i64_rem", OpI64And: "i64_and",
	OpI64Or: "i64_or", OpI64Xor: "i64_xor", OpI64Shl: "i64_shl", OpI64Shr: "i64_shr",
	OpI64Eq: "i64_eq", OpI64Lt: "i64_lt", OpI64Gt: "i64_gt", OpI64Le: "i64_le", OpI64Ge: "i64_ge",
	OpU64Add: "u64_add", OpU64Sub: "u64_sub", OpU64Mul: "u64_mul",
	OpU64Div: "u64_div", OpU64Rem: "u64_rem", OpU64And: "u64_and",
	OpU64Or: "u64_or", OpU64Xor: "u64_xor", OpU64Shl: "u64_shl", OpU64Shr: "u64_shr",
	OpU64Eq: "u64_eq", OpU64Lt: "u64_lt", OpU64Gt: "u64_gt", OpU64Le: "u64_le", OpU64Ge: "u64_ge",
	OpF64Add: "f64_add", OpF64Sub: "f64_sub", OpF64Mul: "f64_mul", OpF64Div: "f64_div",
	OpF64Eq: "f64_eq", OpF64Lt: "f64_lt", OpF64Gt: "f64_gt", OpF64Le: "f64_le", OpF64Ge: "f64_ge",
	OpDecAdd: "dec_add", OpDecSub: "dec_sub", OpDecMul: "dec_mul",
	OpBoolAnd: "bool_and", OpBoolOr: "bool_or", OpBoolNot: "bool_not", OpBoolXor: "bool_xor",
	OpU64ToI64: "u64_to_i64", OpI64ToU64: "i64_to_u64",
	OpI64ToF64: "i64_to_f64", OpU64ToF64: "u64_to_f64",
	OpF64ToI64: "f64_to_i64", OpF64ToU64: "f64_to_u64",
	OpDecToI64: "dec_to_i64", OpDecToU64: "dec_to_u64",
	OpI64ToDec: "i64_to_dec", OpU64ToDec: "u64_to_dec",
	OpSelectI64: "select_i64", OpSelectU64: "select_u64", OpSelectF64: "select_f64",
	OpSelectBool: "select_bool", OpSelectUnit: "select_unit", OpSelectDecimal: "select_decimal",
	OpSelectBytes: "select_bytes", OpSelectStr: "select_str", OpSelectAgg: "select_agg",
	OpBytesLen: "bytes_len", OpStrLen: "str_len", OpBytesEq: "bytes_eq", OpStrEq: "str_eq",
	OpBytesConcat: "bytes_concat", OpStrConcat: "str_concat",
	OpBytesSlice: "bytes_slice", OpStrSlice: "str_slice",
	OpBytesGet: "bytes_get", OpBytesGetImm: "bytes_get_imm",
	OpBytesToStr: "bytes_to_str", OpStrToBytes: "str_to_bytes",
	OpTupleNew: "tuple_new", OpTupleGet: "tuple_get", OpTupleLen: "tuple_len",
	OpStructNew: "struct_new", OpStructGet: "struct_get", OpStructFieldCount: "struct_field_count",
	OpArrayNew: "array_new", OpArrayLen: "array_len", OpArrayGet: "array_get",
}

// isTerminator reports whether opcode never falls through to the next
// instruction (§4.2.1).
func (op Opcode) isTerminator() bool {
	switch op {
	case OpBr, OpJmp, OpRet, OpTrap:
		return true
	default:
		return false
	}
}
