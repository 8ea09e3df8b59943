// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"errors"
	"testing"

	"github.com/tapevm/tapevm/tapevm"
)

func decodeVerifyRun(t *testing.T, p *tapevm.Program, entry tapevm.FuncId, args []tapevm.Value, opts tapevm.RunOptions) ([]tapevm.Value, error) {
	t.Helper()
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
	return vm.Run(context.Background(), entry, args, opts)
}

func TestLoopSum0ToNMinus1(t *testing.T) {
	rets, err := decodeVerifyRun(t, loopSumProgram(), 0, []tapevm.Value{tapevm.ValueI64(10)}, tapevm.RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 1 || rets[0].I64 != 45 {
		t.Errorf("got %v, want [I64(45)]", rets)
	}
}

func TestMutualCall(t *testing.T) {
	p := mutualCallProgram()
	entry, _, err := findFunc(p, "a")
	if err != nil {
		t.Fatalf("findFunc: %v", err)
	}
	rets, err := decodeVerifyRun(t, p, entry, []tapevm.Value{tapevm.ValueI64(40)}, tapevm.RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 1 || rets[0].I64 != 43 {
		t.Errorf("got %v, want [I64(43)]", rets)
	}
}

func TestTupleOfMixed(t *testing.T) {
	rets, err := decodeVerifyRun(t, tupleOfMixedProgram(), 0, nil, tapevm.RunOptions{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 2 || rets[0].I64 != 7 || rets[1].Str != "ok" {
		t.Errorf("got %v, want [I64(7), Str(ok)]", rets)
	}
}

type concatBangHost struct{}

func (concatBangHost) Call(ctx context.Context, sig tapevm.HostSigId, args []tapevm.AbiValueRef, effect tapevm.EffectToken, access tapevm.AccessSink) (tapevm.EffectToken, []tapevm.OwnedValue, error) {
	out := append(append([]byte{}, args[0].Bytes...), '!')
	return effect, []tapevm.OwnedValue{{Kind: tapevm.KindBytes, Bytes: out}}, nil
}

func TestHostPing(t *testing.T) {
	rets, err := decodeVerifyRun(t, hostPingProgram(), 0, nil, tapevm.RunOptions{Host: concatBangHost{}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rets) != 1 || string(rets[0].Bytes) != "hi!" {
		t.Errorf("got %v, want [Bytes(hi!)]", rets)
	}
}

type recordingSink struct {
	records []tapevm.ResourceKey
}

func (s *recordingSink) Record(key tapevm.ResourceKey) { s.records = append(s.records, key) }

type clockHost struct{}

func (clockHost) Call(ctx context.Context, sig tapevm.HostSigId, args []tapevm.AbiValueRef, effect tapevm.EffectToken, access tapevm.AccessSink) (tapevm.EffectToken, []tapevm.OwnedValue, error) {
	if access != nil {
		access.Record(tapevm.ResourceKey{Kind: tapevm.ResourceKeyHostState, Op: sig, Key: []byte("clock")})
	}
	return effect, []tapevm.OwnedValue{{Kind: tapevm.KindBytes, Bytes: args[0].Bytes}}, nil
}

func TestDirtyKeyRecord(t *testing.T) {
	sink := &recordingSink{}
	_, err := decodeVerifyRun(t, hostPingProgram(), 0, nil, tapevm.RunOptions{Host: clockHost{}, AccessSink: sink})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected exactly one access record, got %d", len(sink.records))
	}
	if sink.records[0].Kind != tapevm.ResourceKeyHostState || string(sink.records[0].Key) != "clock" {
		t.Errorf("unexpected access record: %+v", sink.records[0])
	}
}

func TestDivideByZero(t *testing.T) {
	_, err := decodeVerifyRun(t, divideByZeroProgram(), 0, nil, tapevm.RunOptions{})
	var trap *tapevm.Trap
	if !errors.As(err, &trap) {
		t.Fatalf("expected a *Trap, got %v", err)
	}
	if trap.Kind != tapevm.TrapDivideByZero {
		t.Errorf("expected DivideByZero, got %v", trap.Kind)
	}
}

func findFunc(p *tapevm.Program, name string) (tapevm.FuncId, *tapevm.FunctionEntry, error) {
	for i := range p.Functions {
		if n, ok := p.FunctionName(tapevm.FuncId(i)); ok && n == name {
			return tapevm.FuncId(i), &p.Functions[i], nil
		}
	}
	return 0, nil, errFuncNotFound{name}
}

type errFuncNotFound struct{ name string }

func (e errFuncNotFound) Error() string { return "function not found: " + e.name }
