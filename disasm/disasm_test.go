// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package disasm

import (
	"strings"
	"testing"

	"github.com/tapevm/tapevm/tapevm"
)

func testProgram() *tapevm.Program {
	return &tapevm.Program{
		Symbols: [][]byte{[]byte("\x00"), []byte("add_one")},
		Functions: []tapevm.FunctionEntry{
			{
				ArgCount:       1,
				RetCount:       1,
				RegCount:       2,
				ArgTypes:       []tapevm.ValueType{{Kind: tapevm.KindI64}},
				RetTypes:       []tapevm.ValueType{{Kind: tapevm.KindI64}},
				BytecodeLen:    0,
				NameSymbol:     1,
			},
		},
		Bytecode: nil,
		Spans:    [][]tapevm.SpanEntry{{}},
	}
}

func TestProgramDisassemblyIncludesFunctionName(t *testing.T) {
	out := Program(testProgram())
	if !strings.Contains(out, "add_one") {
		t.Errorf("expected disassembly to mention function name, got:\n%s", out)
	}
}

func TestProgramDisassemblyListsInstructions(t *testing.T) {
	p := testProgram()
	p.Bytecode = []byte{byte(tapevm.OpNop), byte(tapevm.OpRet), 0}
	p.Functions[0].BytecodeLen = 3

	out := Program(p)
	if !strings.Contains(out, "nop") {
		t.Errorf("expected disassembly to list nop, got:\n%s", out)
	}
	if !strings.Contains(out, "ret") {
		t.Errorf("expected disassembly to list ret, got:\n%s", out)
	}
}
