// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

// Package conformance builds small hand-assembled Programs exercising the
// end-to-end scenarios and boundary cases documented for the container
// format, verifier, and VM, and runs them through the full decode-verify-run
// pipeline. There is no external assembler for this bytecode, so builder is
// a minimal fluent helper: one opcode-shaped method per instruction, mirroring
// the operand order resolveInstr expects.
package conformance

import "github.com/tapevm/tapevm/tapevm"

// builder assembles one function's raw bytecode, varint-encoding operands in
// the exact order the decoder in bytecode.go expects.
type builder struct {
	code []byte
}

func newBuilder() *builder { return &builder{} }

func (b *builder) putVarint(v uint64) {
	for {
		c := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b.code = append(b.code, c|0x80)
			continue
		}
		b.code = append(b.code, c)
		return
	}
}

func (b *builder) op(op tapevm.Opcode, imm ...uint64) *builder {
	b.code = append(b.code, byte(op))
	for _, v := range imm {
		b.putVarint(v)
	}
	return b
}

func (b *builder) countPrefixed(op tapevm.Opcode, head []uint64, lists ...[]uint64) *builder {
	b.code = append(b.code, byte(op))
	for _, v := range head {
		b.putVarint(v)
	}
	for _, list := range lists {
		b.putVarint(uint64(len(list)))
		for _, v := range list {
			b.putVarint(v)
		}
	}
	return b
}

func (b *builder) nop() *builder                    { return b.op(tapevm.OpNop) }
func (b *builder) trap() *builder                   { return b.op(tapevm.OpTrap) }
func (b *builder) jmp(pc uint64) *builder            { return b.op(tapevm.OpJmp, pc) }
func (b *builder) br(cond, pcTrue, pcFalse uint64) *builder {
	return b.op(tapevm.OpBr, cond, pcTrue, pcFalse)
}
func (b *builder) ret(regs ...uint64) *builder {
	return b.countPrefixed(tapevm.OpRet, nil, regs)
}
func (b *builder) call(funcID uint64, args, rets []uint64) *builder {
	return b.countPrefixed(tapevm.OpCall, []uint64{funcID}, args, rets)
}
func (b *builder) hostCall(sigID uint64, args, rets []uint64) *builder {
	return b.countPrefixed(tapevm.OpHostCall, []uint64{sigID}, args, rets)
}
func (b *builder) mov(dst, src uint64) *builder   { return b.op(tapevm.OpMov, dst, src) }
func (b *builder) constOp(dst, constID uint64) *builder {
	return b.op(tapevm.OpConst, dst, constID, 0)
}
func (b *builder) i64Add(dst, a, c uint64) *builder { return b.op(tapevm.OpI64Add, dst, a, c) }
func (b *builder) i64Lt(dst, a, c uint64) *builder  { return b.op(tapevm.OpI64Lt, dst, a, c) }
func (b *builder) i64Div(dst, a, c uint64) *builder { return b.op(tapevm.OpI64Div, dst, a, c) }
func (b *builder) bytesConcat(dst, a, c uint64) *builder {
	return b.op(tapevm.OpBytesConcat, dst, a, c)
}
func (b *builder) tupleNew(dst, typeID uint64, args []uint64) *builder {
	return b.countPrefixed(tapevm.OpTupleNew, []uint64{dst, typeID}, args)
}
func (b *builder) tupleGet(dst, agg, index uint64) *builder {
	return b.op(tapevm.OpTupleGet, dst, agg, index)
}

func (b *builder) bytes() []byte { return b.code }

// fnSpec is a function awaiting placement into a Program's shared bytecode
// blob and symbol table.
type fnSpec struct {
	name     string
	argTypes []tapevm.ValueType
	retTypes []tapevm.ValueType
	regCount uint32
	code     []byte
}

// programBuilder assembles a whole Program from a list of functions, a
// const pool, a type table, and host signatures, handling the bookkeeping
// (bytecode concatenation, offsets, symbol interning) that the container
// format pushes onto every producer.
type programBuilder struct {
	consts   []tapevm.ConstEntry
	types    []tapevm.TypeDef
	hostSigs []tapevm.HostSig
	fns      []fnSpec
	blob     []byte
}

func newProgramBuilder() *programBuilder { return &programBuilder{} }

func (pb *programBuilder) addConst(e tapevm.ConstEntry) uint64 {
	pb.consts = append(pb.consts, e)
	return uint64(len(pb.consts) - 1)
}

// addBlob appends data to the shared blob arena and returns the range
// backing a Bytes/Str const.
func (pb *programBuilder) addBlob(data []byte) tapevm.BlobRange {
	off := uint32(len(pb.blob))
	pb.blob = append(pb.blob, data...)
	return tapevm.BlobRange{Offset: off, Len: uint32(len(data))}
}

func (pb *programBuilder) addType(d tapevm.TypeDef) uint64 {
	pb.types = append(pb.types, d)
	return uint64(len(pb.types) - 1)
}

func (pb *programBuilder) addHostSig(sig tapevm.HostSig) uint64 {
	pb.hostSigs = append(pb.hostSigs, sig)
	return uint64(len(pb.hostSigs) - 1)
}

func (pb *programBuilder) addFunc(spec fnSpec) uint64 {
	pb.fns = append(pb.fns, spec)
	return uint64(len(pb.fns) - 1)
}

func (pb *programBuilder) build() *tapevm.Program {
	symbols := [][]byte{[]byte("\x00")}
	var bytecode []byte
	functions := make([]tapevm.FunctionEntry, len(pb.fns))
	spans := make([][]tapevm.SpanEntry, len(pb.fns))

	for i, fn := range pb.fns {
		var nameSym tapevm.SymbolId
		if fn.name != "" {
			symbols = append(symbols, []byte(fn.name))
			nameSym = tapevm.SymbolId(len(symbols) - 1)
		}
		off := uint32(len(bytecode))
		bytecode = append(bytecode, fn.code...)
		functions[i] = tapevm.FunctionEntry{
			ArgCount:       uint32(len(fn.argTypes)),
			RetCount:       uint32(len(fn.retTypes)),
			RegCount:       fn.regCount,
			ArgTypes:       fn.argTypes,
			RetTypes:       fn.retTypes,
			BytecodeOffset: off,
			BytecodeLen:    uint32(len(fn.code)),
			NameSymbol:     nameSym,
		}
		spans[i] = []tapevm.SpanEntry{}
	}

	return &tapevm.Program{
		Symbols:   symbols,
		Consts:    pb.consts,
		Types:     pb.types,
		Functions: functions,
		Bytecode:  bytecode,
		Spans:     spans,
		HostSigs:  pb.hostSigs,
		Blob:      pb.blob,
	}
}
