// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"errors"
	"testing"

	"github.com/tapevm/tapevm/tapevm"
)

// twoBlockProgram builds a function with exactly two basic blocks: an
// unconditional jump to a ret.
func twoBlockProgram() *tapevm.Program {
	pb := newProgramBuilder()

	b := newBuilder()
	b.jmp(uint64(len(b.bytes()) + 2))
	b.ret()

	pb.addFunc(fnSpec{
		name:     "two_blocks",
		regCount: 1,
		code:     b.bytes(),
	})
	return pb.build()
}

func TestMaxBlocksPerFunctionExceeded(t *testing.T) {
	p := twoBlockProgram()
	encoded := tapevm.EncodeProgram(p)
	decoded, err := tapevm.DecodeProgram(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	cfg := tapevm.DefaultConfig()
	cfg.MaxBlocksPerFunction = 1

	_, err = tapevm.Verify(decoded, cfg)
	var verr *tapevm.VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a *VerifyError, got %v", err)
	}
	if verr.Kind != tapevm.VerifyErrResourceLimitExceeded {
		t.Errorf("expected ResourceLimitExceeded, got %v", verr.Kind)
	}
}

// unreachableBlockProgram builds a function with a ret followed by a dead
// block (another ret) that nothing ever jumps to.
func unreachableBlockProgram() *tapevm.Program {
	pb := newProgramBuilder()

	b := newBuilder()
	b.ret()
	b.ret()

	pb.addFunc(fnSpec{
		name:     "dead_block",
		regCount: 1,
		code:     b.bytes(),
	})
	return pb.build()
}

func TestUnreachableCodeDisallowed(t *testing.T) {
	p := unreachableBlockProgram()
	encoded := tapevm.EncodeProgram(p)
	decoded, err := tapevm.DecodeProgram(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	cfg := tapevm.DefaultConfig()
	cfg.AllowUnreachableCode = false

	_, err = tapevm.Verify(decoded, cfg)
	var verr *tapevm.VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a *VerifyError, got %v", err)
	}
	if verr.Kind != tapevm.VerifyErrUnreachableCodeDisallowed {
		t.Errorf("expected UnreachableCodeDisallowed, got %v", verr.Kind)
	}

	cfg.AllowUnreachableCode = true
	if _, err := tapevm.Verify(decoded, cfg); err != nil {
		t.Errorf("expected unreachable code to verify cleanly when allowed: %v", err)
	}
}

func TestMaxHostSigsExceeded(t *testing.T) {
	pb := newProgramBuilder()
	pb.addHostSig(tapevm.HostSig{})
	pb.addHostSig(tapevm.HostSig{})

	b := newBuilder()
	b.ret()
	pb.addFunc(fnSpec{name: "f", regCount: 1, code: b.bytes()})

	encoded := tapevm.EncodeProgram(pb.build())
	decoded, err := tapevm.DecodeProgram(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	cfg := tapevm.DefaultConfig()
	cfg.MaxHostSigs = 1

	_, err = tapevm.Verify(decoded, cfg)
	var verr *tapevm.VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a *VerifyError, got %v", err)
	}
	if verr.Kind != tapevm.VerifyErrResourceLimitExceeded {
		t.Errorf("expected ResourceLimitExceeded, got %v", verr.Kind)
	}
}
