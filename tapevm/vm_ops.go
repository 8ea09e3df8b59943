// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "unicode/utf8"

// stepPure executes every opcode that never pushes/pops a call frame and
// never branches - arithmetic, comparisons, conversions, select,
// bytes/str, and aggregates. vm.step dispatches here for everything its own
// switch doesn't handle directly (control flow, mov, const, call forms).
func (vm *Vm) stepPure(f *frame, vi *VerifiedInstr) *Trap {
	switch vi.Opcode {
	case OpI64Add:
		f.i64s[vi.Dst.Index] = i64Add(f.i64s[vi.A.Index], f.i64s[vi.B.Index])
	case OpI64Sub:
		f.i64s[vi.Dst.Index] = i64Sub(f.i64s[vi.A.Index], f.i64s[vi.B.Index])
	case OpI64Mul:
		f.i64s[vi.Dst.Index] = i64Mul(f.i64s[vi.A.Index], f.i64s[vi.B.Index])
	case OpI64Div:
		v, trap := i64Div(f.i64s[vi.A.Index], f.i64s[vi.B.Index])
		if trap != nil {
			return trap
		}
		f.i64s[vi.Dst.Index] = v
	case OpI64Rem:
		v, trap := i64Rem(f.i64s[vi.A.Index], f.i64s[vi.B.Index])
		if trap != nil {
			return trap
		}
		f.i64s[vi.Dst.Index] = v
	case OpI64And:
		f.i64s[vi.Dst.Index] = f.i64s[vi.A.Index] & f.i64s[vi.B.Index]
	case OpI64Or:
		f.i64s[vi.Dst.Index] = f.i64s[vi.A.Index] | f.i64s[vi.B.Index]
	case OpI64Xor:
		f.i64s[vi.Dst.Index] = f.i64s[vi.A.Index] ^ f.i64s[vi.B.Index]
	case OpI64Shl:
		f.i64s[vi.Dst.Index] = i64Shl(f.i64s[vi.A.Index], f.i64s[vi.B.Index])
	case OpI64Shr:
		f.i64s[vi.Dst.Index] = i64Shr(f.i64s[vi.A.Index], f.i64s[vi.B.Index])

	case OpI64Eq:
		f.bools[vi.Dst.Index] = f.i64s[vi.A.Index] == f.i64s[vi.B.Index]
	case OpI64Lt:
		f.bools[vi.Dst.Index] = f.i64s[vi.A.Index] < f.i64s[vi.B.Index]
	case OpI64Gt:
		f.bools[vi.Dst.Index] = f.i64s[vi.A.Index] > f.i64s[vi.B.Index]
	case OpI64Le:
		f.bools[vi.Dst.Index] = f.i64s[vi.A.Index] <= f.i64s[vi.B.Index]
	case OpI64Ge:
		f.bools[vi.Dst.Index] = f.i64s[vi.A.Index] >= f.i64s[vi.B.Index]

	case OpU64Add:
		f.u64s[vi.Dst.Index] = u64Add(f.u64s[vi.A.Index], f.u64s[vi.B.Index])
	case OpU64Sub:
		f.u64s[vi.Dst.Index] = u64Sub(f.u64s[vi.A.Index], f.u64s[vi.B.Index])
	case OpU64Mul:
		f.u64s[vi.Dst.Index] = u64Mul(f.u64s[vi.A.Index], f.u64s[vi.B.Index])
	case OpU64Div:
		v, trap := u64Div(f.u64s[vi.A.Index], f.u64s[vi.B.Index])
		if trap != nil {
			return trap
		}
		f.u64s[vi.Dst.Index] = v
	case OpU64Rem:
		v, trap := u64Rem(f.u64s[vi.A.Index], f.u64s[vi.B.Index])
		if trap != nil {
			return trap
		}
		f.u64s[vi.Dst.Index] = v
	case OpU64And:
		f.u64s[vi.Dst.Index] = f.u64s[vi.A.Index] & f.u64s[vi.B.Index]
	case OpU64Or:
		f.u64s[vi.Dst.Index] = f.u64s[vi.A.Index] | f.u64s[vi.B.Index]
	case OpU64Xor:
		f.u64s[vi.Dst.Index] = f.u64s[vi.A.Index] ^ f.u64s[vi.B.Index]
	case OpU64Shl:
		f.u64s[vi.Dst.Index] = u64Shl(f.u64s[vi.A.Index], f.u64s[vi.B.Index])
	case OpU64Shr:
		f.u64s[vi.Dst.Index] = u64Shr(f.u64s[vi.A.Index], f.u64s[vi.B.Index])

	case OpU64Eq:
		f.bools[vi.Dst.Index] = f.u64s[vi.A.Index] == f.u64s[vi.B.Index]
	case OpU64Lt:
		f.bools[vi.Dst.Index] = f.u64s[vi.A.Index] < f.u64s[vi.B.Index]
	case OpU64Gt:
		f.bools[vi.Dst.Index] = f.u64s[vi.A.Index] > f.u64s[vi.B.Index]
	case OpU64Le:
		f.bools[vi.Dst.Index] = f.u64s[vi.A.Index] <= f.u64s[vi.B.Index]
	case OpU64Ge:
		f.bools[vi.Dst.Index] = f.u64s[vi.A.Index] >= f.u64s[vi.B.Index]

	case OpF64Add:
		f.f64s[vi.Dst.Index] = f64Add(f.f64s[vi.A.Index], f.f64s[vi.B.Index])
	case OpF64Sub:
		f.f64s[vi.Dst.Index] = f64Sub(f.f64s[vi.A.Index], f.f64s[vi.B.Index])
	case OpF64Mul:
		f.f64s[vi.Dst.Index] = f64Mul(f.f64s[vi.A.Index], f.f64s[vi.B.Index])
	case OpF64Div:
		f.f64s[vi.Dst.Index] = f64Div(f.f64s[vi.A.Index], f.f64s[vi.B.Index])
	case OpF64Eq:
		f.bools[vi.Dst.Index] = f.f64s[vi.A.Index] == f.f64s[vi.B.Index]
	case OpF64Lt:
		f.bools[vi.Dst.Index] = f.f64s[vi.A.Index] < f.f64s[vi.B.Index]
	case OpF64Gt:
		f.bools[vi.Dst.Index] = f.f64s[vi.A.Index] > f.f64s[vi.B.Index]
	case OpF64Le:
		f.bools[vi.Dst.Index] = f.f64s[vi.A.Index] <= f.f64s[vi.B.Index]
	case OpF64Ge:
		f.bools[vi.Dst.Index] = f.f64s[vi.A.Index] >= f.f64s[vi.B.Index]

	case OpDecAdd:
		v, trap := decAdd(f.decimals[vi.A.Index], f.decimals[vi.B.Index])
		if trap != nil {
			return trap
		}
		f.decimals[vi.Dst.Index] = v
	case OpDecSub:
		v, trap := decSub(f.decimals[vi.A.Index], f.decimals[vi.B.Index])
		if trap != nil {
			return trap
		}
		f.decimals[vi.Dst.Index] = v
	case OpDecMul:
		v, trap := decMul(f.decimals[vi.A.Index], f.decimals[vi.B.Index])
		if trap != nil {
			return trap
		}
		f.decimals[vi.Dst.Index] = v

	case OpBoolAnd:
		f.bools[vi.Dst.Index] = f.bools[vi.A.Index] && f.bools[vi.B.Index]
	case OpBoolOr:
		f.bools[vi.Dst.Index] = f.bools[vi.A.Index] || f.bools[vi.B.Index]
	case OpBoolXor:
		f.bools[vi.Dst.Index] = f.bools[vi.A.Index] != f.bools[vi.B.Index]
	case OpBoolNot:
		f.bools[vi.Dst.Index] = !f.bools[vi.A.Index]

	case OpU64ToI64:
		f.i64s[vi.Dst.Index] = u64ToI64(f.u64s[vi.A.Index])
	case OpI64ToU64:
		f.u64s[vi.Dst.Index] = i64ToU64(f.i64s[vi.A.Index])
	case OpI64ToF64:
		f.f64s[vi.Dst.Index] = i64ToF64(f.i64s[vi.A.Index])
	case OpU64ToF64:
		f.f64s[vi.Dst.Index] = u64ToF64(f.u64s[vi.A.Index])
	case OpF64ToI64:
		f.i64s[vi.Dst.Index] = f64ToI64(f.f64s[vi.A.Index])
	case OpF64ToU64:
		f.u64s[vi.Dst.Index] = f64ToU64(f.f64s[vi.A.Index])
	case OpDecToI64:
		f.i64s[vi.Dst.Index] = decToI64(f.decimals[vi.A.Index])
	case OpDecToU64:
		f.u64s[vi.Dst.Index] = decToU64(f.decimals[vi.A.Index])
	case OpI64ToDec:
		f.decimals[vi.Dst.Index] = Decimal{Mantissa: f.i64s[vi.A.Index], Scale: vi.Scale}
	case OpU64ToDec:
		f.decimals[vi.Dst.Index] = Decimal{Mantissa: int64(f.u64s[vi.A.Index]), Scale: vi.Scale}

	case OpSelectI64, OpSelectU64, OpSelectF64, OpSelectBool, OpSelectUnit,
		OpSelectBytes, OpSelectStr, OpSelectDecimal, OpSelectAgg:
		if f.bools[vi.Cond.Index] {
			f.writeValue(vm.arenas, vi.Dst, f.readValue(vm.arenas, vi.A))
		} else {
			f.writeValue(vm.arenas, vi.Dst, f.readValue(vm.arenas, vi.B))
		}

	case OpBytesLen:
		f.u64s[vi.Dst.Index] = uint64(len(vm.arenas.bytes.get(f.bytes[vi.A.Index])))
	case OpStrLen:
		f.u64s[vi.Dst.Index] = uint64(len(vm.arenas.strs.get(f.strs[vi.A.Index])))
	case OpBytesEq:
		a := vm.arenas.bytes.get(f.bytes[vi.A.Index])
		b := vm.arenas.bytes.get(f.bytes[vi.B.Index])
		f.bools[vi.Dst.Index] = string(a) == string(b)
	case OpStrEq:
		f.bools[vi.Dst.Index] = vm.arenas.strs.get(f.strs[vi.A.Index]) == vm.arenas.strs.get(f.strs[vi.B.Index])
	case OpBytesConcat:
		a := vm.arenas.bytes.get(f.bytes[vi.A.Index])
		b := vm.arenas.bytes.get(f.bytes[vi.B.Index])
		out := make([]byte, 0, len(a)+len(b))
		out = append(out, a...)
		out = append(out, b...)
		f.bytes[vi.Dst.Index] = vm.arenas.bytes.intern(out)
	case OpStrConcat:
		a := vm.arenas.strs.get(f.strs[vi.A.Index])
		b := vm.arenas.strs.get(f.strs[vi.B.Index])
		f.strs[vi.Dst.Index] = vm.arenas.strs.intern(a + b)
	case OpBytesSlice:
		src := vm.arenas.bytes.get(f.bytes[vi.A.Index])
		start, end := f.u64s[vi.B.Index], f.u64s[vi.C.Index]
		if start > end || end > uint64(len(src)) {
			return &Trap{Kind: TrapBytesOutOfBounds}
		}
		f.bytes[vi.Dst.Index] = vm.arenas.bytes.intern(append([]byte(nil), src[start:end]...))
	case OpStrSlice:
		src := vm.arenas.strs.get(f.strs[vi.A.Index])
		start, end := f.u64s[vi.B.Index], f.u64s[vi.C.Index]
		if start > end || end > uint64(len(src)) {
			return &Trap{Kind: TrapBytesOutOfBounds}
		}
		f.strs[vi.Dst.Index] = vm.arenas.strs.intern(src[start:end])
	case OpBytesGet:
		src := vm.arenas.bytes.get(f.bytes[vi.A.Index])
		idx := f.u64s[vi.B.Index]
		if idx >= uint64(len(src)) {
			return &Trap{Kind: TrapBytesOutOfBounds}
		}
		f.u64s[vi.Dst.Index] = uint64(src[idx])
	case OpBytesGetImm:
		src := vm.arenas.bytes.get(f.bytes[vi.A.Index])
		if uint64(vi.Index) >= uint64(len(src)) {
			return &Trap{Kind: TrapBytesOutOfBounds}
		}
		f.u64s[vi.Dst.Index] = uint64(src[vi.Index])
	case OpBytesToStr:
		src := vm.arenas.bytes.get(f.bytes[vi.A.Index])
		if !utf8.Valid(src) {
			return &Trap{Kind: TrapInvalidUtf8}
		}
		f.strs[vi.Dst.Index] = vm.arenas.strs.intern(string(src))
	case OpStrToBytes:
		src := vm.arenas.strs.get(f.strs[vi.A.Index])
		f.bytes[vi.Dst.Index] = vm.arenas.bytes.intern([]byte(src))

	case OpTupleNew, OpStructNew, OpArrayNew:
		fields := make([]Value, len(vi.Args))
		for i, a := range vi.Args {
			fields[i] = f.readValue(vm.arenas, a)
		}
		f.aggs[vi.Dst.Index] = vm.arenas.aggs.intern(aggValue{TypeID: vi.TypeID, Fields: fields})
	case OpTupleGet, OpStructGet:
		agg := vm.arenas.aggs.get(f.aggs[vi.A.Index])
		f.writeValue(vm.arenas, vi.Dst, agg.Fields[vi.Index])
	case OpTupleLen, OpStructFieldCount:
		agg := vm.arenas.aggs.get(f.aggs[vi.A.Index])
		f.u64s[vi.Dst.Index] = uint64(len(agg.Fields))
	case OpArrayLen:
		agg := vm.arenas.aggs.get(f.aggs[vi.A.Index])
		f.u64s[vi.Dst.Index] = uint64(len(agg.Fields))
	case OpArrayGet:
		agg := vm.arenas.aggs.get(f.aggs[vi.A.Index])
		idx := f.u64s[vi.B.Index]
		if idx >= uint64(len(agg.Fields)) {
			return &Trap{Kind: TrapArrayOutOfBounds}
		}
		f.writeValue(vm.arenas, vi.Dst, agg.Fields[idx])

	default:
		return &Trap{Kind: TrapUnreachable, Detail: "unimplemented opcode in hot loop"}
	}
	return nil
}

func decToI64(d Decimal) int64 {
	return d.Mantissa / pow10(d.Scale)
}

func decToU64(d Decimal) uint64 {
	return uint64(d.Mantissa / pow10(d.Scale))
}
