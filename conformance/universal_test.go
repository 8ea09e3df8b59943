// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/tapevm/tapevm/tapevm"
)

// TestContainerRoundTripPreservesSemantics re-encodes and re-decodes a
// non-trivial program and checks it still runs to the same result, on top
// of the tapevm package's own byte-level round-trip coverage.
func TestContainerRoundTripPreservesSemantics(t *testing.T) {
	p := loopSumProgram()
	once := tapevm.EncodeProgram(p)
	twice := tapevm.EncodeProgram(mustDecode(t, once))
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("re-encoding a decoded program produced different bytes")
	}
	rets, err := decodeVerifyRun(t, p, 0, []tapevm.Value{tapevm.ValueI64(5)}, tapevm.RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 1 || rets[0].I64 != 10 {
		t.Errorf("got %v, want [I64(10)]", rets)
	}
}

func mustDecode(t *testing.T, encoded []byte) *tapevm.Program {
	t.Helper()
	p, err := tapevm.DecodeProgram(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return p
}

// TestVerifierRejectsTypeMismatch exercises verifier soundness: a program
// that reads a register under a type incompatible with what was written to
// it must fail verification rather than reach the VM.
func TestVerifierRejectsTypeMismatch(t *testing.T) {
	pb := newProgramBuilder()
	pb.addConst(tapevm.ConstEntry{Type: tapevm.ValueType{Kind: tapevm.KindI64}, I64: 1})

	b := newBuilder()
	b.constOp(1, 0)    // r1: I64
	b.i64Add(2, 1, 1)   // r2: I64
	b.op(tapevm.OpBoolNot, 3, 1) // treats I64 register r1 as Bool: type mismatch
	b.ret(2)

	pb.addFunc(fnSpec{
		name:     "bad_type",
		regCount: 4,
		code:     b.bytes(),
		retTypes: []tapevm.ValueType{{Kind: tapevm.KindI64}},
	})

	_, err := decodeAndVerify(t, pb.build())
	var verr *tapevm.VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a *VerifyError, got %v", err)
	}
	if verr.Kind != tapevm.VerifyErrTypeMismatch && verr.Kind != tapevm.VerifyErrRegisterClassConflict {
		t.Errorf("expected a type-mismatch-flavored VerifyError, got %v", verr.Kind)
	}
}

// TestVerifierAcceptsAllScenarioPrograms is the completeness-weak check: every
// program built for the end-to-end scenarios is well-typed and must verify
// cleanly, since a verifier that rejects valid programs is as broken as one
// that accepts invalid ones.
func TestVerifierAcceptsAllScenarioPrograms(t *testing.T) {
	progs := []*tapevm.Program{
		loopSumProgram(),
		mutualCallProgram(),
		tupleOfMixedProgram(),
		hostPingProgram(),
		divideByZeroProgram(),
	}
	for i, p := range progs {
		if _, err := decodeAndVerify(t, p); err != nil {
			t.Errorf("scenario program %d: unexpected verify failure: %v", i, err)
		}
	}
}

// TestRunIsDeterministic runs the same verified program with the same host,
// args, and budgets twice and checks both the return vector and the trace
// event sequence are byte-identical, per the determinism law: nothing in
// the VM consults wall-clock time, map iteration order, or other
// non-reproducible state.
func TestRunIsDeterministic(t *testing.T) {
	p := mutualCallProgram()
	entry, _, err := findFunc(p, "a")
	if err != nil {
		t.Fatalf("findFunc: %v", err)
	}
	encoded := tapevm.EncodeProgram(p)
	decoded := mustDecode(t, encoded)
	vp, err := tapevm.Verify(decoded, tapevm.DefaultConfig())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	run := func() ([]tapevm.Value, []string) {
		var trace []string
		sink := &recordingTraceSink{events: &trace}
		vm := tapevm.NewVm(vp)
		rets, err := vm.Run(context.Background(), entry, []tapevm.Value{tapevm.ValueI64(40)}, tapevm.RunOptions{
			TraceSink: sink,
			TraceMask: tapevm.TraceCall | tapevm.TraceHostCall | tapevm.TraceTrap,
		})
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return rets, trace
	}

	rets1, trace1 := run()
	rets2, trace2 := run()

	if !reflect.DeepEqual(rets1, rets2) {
		t.Errorf("return vectors differ across runs: %v vs %v", rets1, rets2)
	}
	if !reflect.DeepEqual(trace1, trace2) {
		t.Errorf("trace event sequences differ across runs: %v vs %v", trace1, trace2)
	}
}

// recordingTraceSink records a flat log of scope-enter/exit events so two
// runs' traces can be compared structurally without depending on any
// concrete label formatting.
type recordingTraceSink struct {
	events *[]string
}

func (s *recordingTraceSink) Mask() tapevm.TraceMask {
	return tapevm.TraceCall | tapevm.TraceHostCall | tapevm.TraceTrap
}

func (s *recordingTraceSink) ScopeEnter(prog *tapevm.VerifiedProgram, kind tapevm.ScopeKind, depth int, fn tapevm.FuncId, hostSig tapevm.HostSigId, pc uint32) {
	*s.events = append(*s.events, "enter")
}

func (s *recordingTraceSink) ScopeExit(prog *tapevm.VerifiedProgram, kind tapevm.ScopeKind, depth int, fn tapevm.FuncId, hostSig tapevm.HostSigId, pc uint32) {
	*s.events = append(*s.events, "exit")
}

func (s *recordingTraceSink) Trap(prog *tapevm.VerifiedProgram, trap *tapevm.Trap, depth int) {
	*s.events = append(*s.events, "trap")
}
