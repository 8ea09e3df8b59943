// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"errors"
	"testing"

	"github.com/tapevm/tapevm/tapevm"
)

// badJumpTargetProgram builds a function whose br targets the second byte of
// the br instruction itself rather than an instruction boundary.
func badJumpTargetProgram() *tapevm.Program {
	pb := newProgramBuilder()
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindBool}, Bool: true})

	b := newBuilder()
	b.constOp(1, 0)
	midInstr := len(b.code) + 1 // one byte into the br emitted next, never a boundary
	b.br(1, uint64(midInstr), uint64(midInstr))
	b.ret()

	pb.addFunc(fnSpec{
		name:     "bad_jump",
		regCount: 2,
		code:     b.bytes(),
	})
	return pb.build()
}

func TestBadJumpTarget(t *testing.T) {
	_, err := decodeAndVerify(t, badJumpTargetProgram())
	var verr *tapevm.VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a *VerifyError, got %v", err)
	}
	if verr.Kind != tapevm.VerifyErrBadJumpTarget {
		t.Errorf("expected BadJumpTarget, got %v", verr.Kind)
	}
}

// callArityProgram builds a caller that calls a one-argument function with
// zero arguments.
func callArityProgram() *tapevm.Program {
	pb := newProgramBuilder()

	callee := newBuilder()
	callee.ret(1)
	pb.addFunc(fnSpec{
		name:     "callee",
		argTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
		retTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
		regCount: 2,
		code:     callee.bytes(),
	})

	caller := newBuilder()
	caller.call(0, nil, []uint64{1})
	caller.ret()
	pb.addFunc(fnSpec{
		name:     "caller",
		retTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
		regCount: 2,
		code:     caller.bytes(),
	})

	return pb.build()
}

func TestCallArityMismatch(t *testing.T) {
	_, err := decodeAndVerify(t, callArityProgram())
	var verr *tapevm.VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a *VerifyError, got %v", err)
	}
	if verr.Kind != tapevm.VerifyErrArityMismatch {
		t.Errorf("expected ArityMismatch, got %v", verr.Kind)
	}
}

// badUtf8HostProgram builds a function that host_calls a sig returning Str,
// exercising the host-return trust boundary.
func badUtf8HostProgram() *tapevm.Program {
	pb := newProgramBuilder()
	blob := pb.addBlob([]byte("x"))
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindBytes}, Blob: blob})
	pb.addHostSig(tapevm.HostSig{
		ArgTypes: []tapevm.ValueType{{Kind: tapevm.KindBytes}},
		RetTypes: []tapevm.ValueType{{Kind: tapevm.KindStr}},
	})

	b := newBuilder()
	b.constOp(1, 0)
	b.hostCall(0, []uint64{1}, []uint64{2})
	b.ret(2)

	pb.addFunc(fnSpec{
		name:     "echo_str",
		regCount: 3,
		code:     b.bytes(),
		retTypes: []tapevm.ValueType{{Kind: tapevm.KindStr}},
	})
	return pb.build()
}

type badUtf8Host struct{}

func (badUtf8Host) Call(ctx context.Context, sig tapevm.HostSigId, args []tapevm.AbiValueRef, effect tapevm.EffectToken, access tapevm.AccessSink) (tapevm.EffectToken, []tapevm.OwnedValue, error) {
	return effect, []tapevm.OwnedValue{{Kind: tapevm.KindStr, Str: string([]byte{0xff, 0xfe})}}, nil
}

func TestHostCallInvalidUtf8Return(t *testing.T) {
	_, err := decodeVerifyRun(t, badUtf8HostProgram(), 0, nil, tapevm.RunOptions{Host: badUtf8Host{}})
	var trap *tapevm.Trap
	if !errors.As(err, &trap) {
		t.Fatalf("expected a *Trap, got %v", err)
	}
	if trap.Kind != tapevm.TrapInvalidUtf8 {
		t.Errorf("expected InvalidUtf8, got %v", trap.Kind)
	}
}

// bytesToStrInvalidProgram builds a function that converts a non-UTF-8 Bytes
// constant to Str.
func bytesToStrInvalidProgram() *tapevm.Program {
	pb := newProgramBuilder()
	blob := pb.addBlob([]byte{0xff, 0xfe})
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindBytes}, Blob: blob})

	b := newBuilder()
	b.constOp(1, 0)
	b.op(tapevm.OpBytesToStr, 2, 1)
	b.ret(2)

	pb.addFunc(fnSpec{
		name:     "to_str",
		regCount: 3,
		code:     b.bytes(),
		retTypes: []tapevm.ValueType{{Kind: tapevm.KindStr}},
	})
	return pb.build()
}

func TestBytesToStrInvalidUtf8(t *testing.T) {
	_, err := decodeVerifyRun(t, bytesToStrInvalidProgram(), 0, nil, tapevm.RunOptions{})
	var trap *tapevm.Trap
	if !errors.As(err, &trap) {
		t.Fatalf("expected a *Trap, got %v", err)
	}
	if trap.Kind != tapevm.TrapInvalidUtf8 {
		t.Errorf("expected InvalidUtf8, got %v", trap.Kind)
	}
}

// deepRecursionProgram builds a function that calls itself with x+1
// unconditionally, relying on the call-depth limit to end the run.
func deepRecursionProgram() *tapevm.Program {
	pb := newProgramBuilder()
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindI64}, I64: 1})

	b := newBuilder()
	b.constOp(2, 0)
	b.i64Add(3, 1, 2)
	b.call(0, []uint64{3}, []uint64{4})
	b.ret(4)

	pb.addFunc(fnSpec{
		name:     "recurse",
		argTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
		retTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
		regCount: 5,
		code:     b.bytes(),
	})
	return pb.build()
}

func TestCallDepthExceeded(t *testing.T) {
	p := deepRecursionProgram()
	encoded := tapevm.EncodeProgram(p)
	decoded, err := tapevm.DecodeProgram(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	vp, err := tapevm.Verify(decoded, tapevm.DefaultConfig())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	vm := tapevm.NewVm(vp)
	_, err = vm.Run(context.Background(), 0, []tapevm.Value{tapevm.ValueI64(0)}, tapevm.RunOptions{MaxCallDepth: 64})
	var trap *tapevm.Trap
	if !errors.As(err, &trap) {
		t.Fatalf("expected a *Trap, got %v", err)
	}
	if trap.Kind != tapevm.TrapCallDepthExceeded {
		t.Errorf("expected CallDepthExceeded, got %v", trap.Kind)
	}
}

// fallsOffEndProgram builds a function whose last instruction is an
// ordinary arithmetic op, not a ret/trap/br/jmp - the bytecode simply runs
// out without a terminator.
func fallsOffEndProgram() *tapevm.Program {
	pb := newProgramBuilder()
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindI64}, I64: 1})

	b := newBuilder()
	b.constOp(1, 0)
	b.i64Add(2, 1, 1)

	pb.addFunc(fnSpec{
		name:     "falls_off_end",
		regCount: 3,
		code:     b.bytes(),
	})
	return pb.build()
}

func TestMissingTerminator(t *testing.T) {
	_, err := decodeAndVerify(t, fallsOffEndProgram())
	var verr *tapevm.VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a *VerifyError, got %v", err)
	}
	if verr.Kind != tapevm.VerifyErrMissingTerminator {
		t.Errorf("expected MissingTerminator, got %v", verr.Kind)
	}
}

func decodeAndVerify(t *testing.T, p *tapevm.Program) (*tapevm.VerifiedProgram, error) {
	t.Helper()
	encoded := tapevm.EncodeProgram(p)
	decoded, err := tapevm.DecodeProgram(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return tapevm.Verify(decoded, tapevm.DefaultConfig())
}
