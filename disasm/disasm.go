// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

// Package disasm renders a tapevm Program or VerifiedProgram as a
// human-readable instruction listing, in the spirit of an objdump: one line
// per instruction, annotated with symbol names and resolved operand
// meaning where available.
package disasm

import (
	"fmt"
	"strings"

	"github.com/tapevm/tapevm/tapevm"
)

// Program renders every function in p as raw, unverified bytecode. Register
// operands are shown as bare indices since the container format carries no
// class information until the verifier assigns it.
func Program(p *tapevm.Program) string {
	var sb strings.Builder
	for i, fn := range p.Functions {
		name, ok := p.FunctionName(tapevm.FuncId(i))
		if !ok {
			name = fmt.Sprintf("func%d", i)
		}
		fmt.Fprintf(&sb, "; === %s (argc=%d retc=%d regs=%d) ===\n", name, fn.ArgCount, fn.RetCount, fn.RegCount)

		code, err := p.FunctionBytecode(tapevm.FuncId(i))
		if err != nil {
			fmt.Fprintf(&sb, "; <error reading bytecode: %v>\n\n", err)
			continue
		}
		instrs, err := tapevm.DecodeFunctionInstructions(code)
		if err != nil {
			fmt.Fprintf(&sb, "; <error decoding bytecode: %v>\n\n", err)
			continue
		}
		for _, d := range instrs {
			fmt.Fprintf(&sb, "%6d  %-14s %s\n", d.PC, d.Instr.Opcode.String(), formatImm(d.Instr.Imm))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatImm(imm []uint64) string {
	parts := make([]string, len(imm))
	for i, v := range imm {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

// Verified renders every function in vp using its typed, PC-lowered
// instruction stream: register operands show their class, branch targets
// show resolved instruction indices rather than byte offsets.
func Verified(vp *tapevm.VerifiedProgram) string {
	var sb strings.Builder
	for i, fn := range vp.Functions {
		fmt.Fprintf(&sb, "; === func%d (args=%v rets=%v) ===\n", i, fn.ArgTypes, fn.RetTypes)
		for pc, vi := range fn.Instrs {
			fmt.Fprintf(&sb, "%6d  %-14s %s\n", pc, vi.Opcode.String(), formatVerifiedOperands(vi))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatVerifiedOperands(vi tapevm.VerifiedInstr) string {
	var parts []string
	addReg := func(label string, r tapevm.VReg) {
		parts = append(parts, fmt.Sprintf("%s=%s:%d", label, r.Class, r.Index))
	}
	if vi.Dst != (tapevm.VReg{}) || vi.Opcode == tapevm.OpConst {
		addReg("dst", vi.Dst)
	}
	if vi.A != (tapevm.VReg{}) {
		addReg("a", vi.A)
	}
	if vi.B != (tapevm.VReg{}) {
		addReg("b", vi.B)
	}
	if vi.C != (tapevm.VReg{}) {
		addReg("c", vi.C)
	}
	if vi.Cond != (tapevm.VReg{}) {
		addReg("cond", vi.Cond)
	}
	for _, a := range vi.Args {
		addReg("arg", a)
	}
	for _, r := range vi.Rets {
		addReg("ret", r)
	}
	switch vi.Opcode {
	case tapevm.OpConst:
		parts = append(parts, fmt.Sprintf("const=%d", vi.ConstID))
	case tapevm.OpCall:
		parts = append(parts, fmt.Sprintf("func=%d", vi.FuncID))
	case tapevm.OpHostCall:
		parts = append(parts, fmt.Sprintf("sig=%d", vi.HostSigID))
	case tapevm.OpTupleNew, tapevm.OpStructNew, tapevm.OpArrayNew:
		parts = append(parts, fmt.Sprintf("type=%d", vi.TypeID))
	case tapevm.OpTupleGet, tapevm.OpStructGet, tapevm.OpBytesGetImm:
		parts = append(parts, fmt.Sprintf("idx=%d", vi.Index))
	case tapevm.OpI64ToDec, tapevm.OpU64ToDec:
		parts = append(parts, fmt.Sprintf("scale=%d", vi.Scale))
	case tapevm.OpBr:
		parts = append(parts, fmt.Sprintf("true=%d false=%d", vi.PCTrue, vi.PCFalse))
	case tapevm.OpJmp:
		parts = append(parts, fmt.Sprintf("target=%d", vi.PCTarget))
	}
	return strings.Join(parts, " ")
}
