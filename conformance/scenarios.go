// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package conformance

import "github.com/tapevm/tapevm/tapevm"

// loopSumProgram builds a function summing 0..n-1 into a register via a
// back edge, exercising type preservation across the loop boundary.
func loopSumProgram() *tapevm.Program {
	pb := newProgramBuilder()

	b := newBuilder()
	b.constOp(2, 0) // sum = 0
	b.constOp(3, 0) // i = 0
	b.constOp(5, 1) // one = 1
	loopStart := len(b.code)
	b.i64Lt(4, 3, 1) // cond = i < n
	brPC := len(b.code)
	b.br(4, 0, 0) // patched below
	body := len(b.code)
	b.i64Add(2, 2, 3) // sum += i
	b.i64Add(3, 3, 5) // i += 1
	b.jmp(uint64(loopStart))
	exit := len(b.code)
	b.ret(2)

	patchBr(b.code, brPC, uint64(body), uint64(exit))

	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindI64}, I64: 0})
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindI64}, I64: 1})
	pb.addFunc(fnSpec{
		name:     "sum",
		argTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
		retTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
		regCount: 6,
		code:     b.bytes(),
	})
	return pb.build()
}

// patchBr overwrites a br instruction's pcTrue/pcFalse varints in place.
// Every PC used in these fixtures fits in one LEB128 byte, so the patch is
// a same-size in-place overwrite rather than a full re-encode.
func patchBr(code []byte, brPC int, pcTrue, pcFalse uint64) {
	code[brPC+2] = byte(pcTrue)
	code[brPC+3] = byte(pcFalse)
}

// mutualCallProgram builds A(x) = B(x) + 2, B(y) = y + 1, exercising
// cross-function verification.
func mutualCallProgram() *tapevm.Program {
	pb := newProgramBuilder()
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindI64}, I64: 1})
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindI64}, I64: 2})

	bB := newBuilder()
	bB.constOp(2, 0) // one
	bB.i64Add(3, 1, 2)
	bB.ret(3)
	pb.addFunc(fnSpec{
		name:     "b",
		argTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
		retTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
		regCount: 4,
		code:     bB.bytes(),
	})

	bA := newBuilder()
	bA.call(0, []uint64{1}, []uint64{2})
	bA.constOp(3, 1) // two
	bA.i64Add(4, 2, 3)
	bA.ret(4)
	pb.addFunc(fnSpec{
		name:     "a",
		argTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
		retTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
		regCount: 5,
		code:     bA.bytes(),
	})

	return pb.build()
}

// tupleOfMixedProgram builds tuple_new t<I64,Str> followed by tuple_get on
// both fields, exercising typed aggregates.
func tupleOfMixedProgram() *tapevm.Program {
	pb := newProgramBuilder()
	blob := pb.addBlob([]byte("ok"))
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindI64}, I64: 7})
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindStr}, Blob: blob})
	pb.addType(tapevm.TypeDef{
		Kind:       tapevm.TypeDefTuple,
		FieldTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}, {Kind: tapevm.KindStr}},
	})

	b := newBuilder()
	b.constOp(1, 0)
	b.constOp(2, 1)
	b.tupleNew(3, 0, []uint64{1, 2})
	b.tupleGet(4, 3, 0)
	b.tupleGet(5, 3, 1)
	b.ret(4, 5)

	pb.addFunc(fnSpec{
		name:     "mixed",
		argTypes: nil,
		retTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}, {Kind: tapevm.KindStr}},
		regCount: 6,
		code:     b.bytes(),
	})
	return pb.build()
}

// hostPingProgram builds a function that passes a Bytes argument to a host
// call and returns whatever the host gives back, exercising the host ABI's
// slice-passing and arena interning.
func hostPingProgram() *tapevm.Program {
	pb := newProgramBuilder()
	blob := pb.addBlob([]byte("hi"))
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindBytes}, Blob: blob})
	pb.addHostSig(tapevm.HostSig{
		ArgTypes: []tapevm.ValueType{{Kind: tapevm.KindBytes}},
		RetTypes: []tapevm.ValueType{{Kind: tapevm.KindBytes}},
	})

	b := newBuilder()
	b.constOp(1, 0)
	b.hostCall(0, []uint64{1}, []uint64{2})
	b.ret(2)

	pb.addFunc(fnSpec{
		name:     "ping",
		regCount: 3,
		code:     b.bytes(),
		retTypes: []tapevm.ValueType{{Kind: tapevm.KindBytes}},
	})
	return pb.build()
}

// divideByZeroProgram builds i64_div r2, r1, r3 where r3 is always zero, so
// any run traps DivideByZero at the div instruction's pc.
func divideByZeroProgram() *tapevm.Program {
	pb := newProgramBuilder()
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindI64}, I64: 10})
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindI64}, I64: 0})

	b := newBuilder()
	b.constOp(1, 0)
	b.constOp(3, 1)
	b.i64Div(2, 1, 3)
	b.ret(2)

	pb.addFunc(fnSpec{
		name:     "div0",
		regCount: 4,
		code:     b.bytes(),
		retTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
	})
	return pb.build()
}
