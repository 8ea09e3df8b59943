// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "fmt"

// Instr is one raw, undecoded-operand instruction as read from a function's
// bytecode. The decoder never interprets operand meaning (register class,
// constant kind, ...); that is entirely the verifier's job (§4.2). Imm holds
// the instruction's operands in the fixed order documented per opcode in
// opcodes.go.
type Instr struct {
	Opcode Opcode
	Imm    []uint64
}

// codeReader decodes a byte-offset-addressed stream of varint-encoded
// instructions, recording each instruction's start PC as it goes. This
// mirrors the teacher's decoder: small, byte-oriented, and oblivious to
// instruction semantics.
type codeReader struct {
	code []byte
	pc   uint32
}

func newCodeReader(code []byte) *codeReader {
	return &codeReader{code: code}
}

func (c *codeReader) readByte() (byte, error) {
	if int(c.pc) >= len(c.code) {
		return 0, errTruncatedVarint
	}
	b := c.code[c.pc]
	c.pc++
	return b, nil
}

func (c *codeReader) hasMore() bool {
	return int(c.pc) < len(c.code)
}

func (c *codeReader) uvarint() (uint64, error) {
	return readUvarint(c, 10)
}

// decodeAt decodes the instruction starting at the reader's current PC and
// returns it along with the PC it started at.
func (c *codeReader) decodeAt() (uint32, Instr, error) {
	startPC := c.pc
	opByte, err := c.readByte()
	if err != nil {
		return startPC, Instr{}, err
	}
	op := Opcode(opByte)
	imm, err := c.readImmediates(op)
	if err != nil {
		return startPC, Instr{}, fmt.Errorf("tapevm: decoding %s at pc %d: %w", op, startPC, err)
	}
	return startPC, Instr{Opcode: op, Imm: imm}, nil
}

func (c *codeReader) readImmediates(op Opcode) ([]uint64, error) {
	switch op {
	case OpNop, OpTrap:
		return nil, nil

	case OpJmp:
		return c.readN(1)

	case OpBr:
		return c.readN(3)

	case OpMov,
		OpBytesLen, OpStrLen, OpBytesToStr, OpStrToBytes,
		OpBoolNot,
		OpU64ToI64, OpI64ToU64, OpI64ToF64, OpU64ToF64, OpF64ToI64, OpF64ToU64,
		OpDecToI64, OpDecToU64,
		OpTupleLen, OpStructFieldCount, OpArrayLen:
		return c.readN(2)

	case OpConst,
		OpI64ToDec, OpU64ToDec:
		return c.readN(3)

	case OpI64Add, OpI64Sub, OpI64Mul, OpI64Div, OpI64Rem, OpI64And, OpI64Or, OpI64Xor, OpI64Shl, OpI64Shr,
		OpI64Eq, OpI64Lt, OpI64Gt, OpI64Le, OpI64Ge,
		OpU64Add, OpU64Sub, OpU64Mul, OpU64Div, OpU64Rem, OpU64And, OpU64Or, OpU64Xor, OpU64Shl, OpU64Shr,
		OpU64Eq, OpU64Lt, OpU64Gt, OpU64Le, OpU64Ge,
		OpF64Add, OpF64Sub, OpF64Mul, OpF64Div,
		OpF64Eq, OpF64Lt, OpF64Gt, OpF64Le, OpF64Ge,
		OpDecAdd, OpDecSub, OpDecMul,
		OpBoolAnd, OpBoolOr, OpBoolXor,
		OpBytesEq, OpStrEq, OpBytesConcat, OpStrConcat,
		OpBytesGet, OpBytesGetImm,
		OpTupleGet, OpStructGet, OpArrayGet:
		return c.readN(3)

	case OpBytesSlice, OpStrSlice,
		OpSelectI64, OpSelectU64, OpSelectF64, OpSelectBool, OpSelectUnit,
		OpSelectDecimal, OpSelectBytes, OpSelectStr, OpSelectAgg:
		return c.readN(4)

	case OpRet:
		return c.readCountPrefixed()

	case OpCall, OpHostCall:
		head, err := c.readN(1) // func_id / sig_id
		if err != nil {
			return nil, err
		}
		args, err := c.readCountPrefixed()
		if err != nil {
			return nil, err
		}
		rets, err := c.readCountPrefixed()
		if err != nil {
			return nil, err
		}
		return concatAll(head, args, rets), nil

	case OpTupleNew, OpStructNew:
		head, err := c.readN(1) // dst
		if err != nil {
			return nil, err
		}
		typeID, err := c.readN(1)
		if err != nil {
			return nil, err
		}
		args, err := c.readCountPrefixed()
		if err != nil {
			return nil, err
		}
		return concatAll(head, typeID, args), nil

	case OpArrayNew:
		head, err := c.readN(1) // dst
		if err != nil {
			return nil, err
		}
		elemType, err := c.readN(1)
		if err != nil {
			return nil, err
		}
		length, err := c.readN(1)
		if err != nil {
			return nil, err
		}
		args, err := c.readCountPrefixed()
		if err != nil {
			return nil, err
		}
		return concatAll(head, elemType, length, args), nil

	default:
		return nil, fmt.Errorf("tapevm: unknown opcode 0x%02x", byte(op))
	}
}

func (c *codeReader) readN(n int) ([]uint64, error) {
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		v, err := c.uvarint()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// readCountPrefixed reads a varint count followed by that many varints,
// returning [count, elem...] so callers can slice it apart uniformly.
func (c *codeReader) readCountPrefixed() ([]uint64, error) {
	n, err := c.uvarint()
	if err != nil {
		return nil, err
	}
	rest, err := c.readN(int(n))
	if err != nil {
		return nil, err
	}
	return append([]uint64{n}, rest...), nil
}

// DecodedInstr pairs a raw instruction with the byte offset it starts at,
// for tools (disasm, the REPL, the CLI) that want to walk a function's
// bytecode without going through the verifier.
type DecodedInstr struct {
	PC    uint32
	Instr Instr
}

// DecodeFunctionInstructions decodes every instruction in a function's raw
// bytecode in order. It performs no verification: malformed operand
// references (bad register indices, out-of-range const ids) are left for
// Verify to catch. It only fails if the byte stream itself doesn't decode
// into a whole number of instructions.
func DecodeFunctionInstructions(code []byte) ([]DecodedInstr, error) {
	decoded, err := decodeFunction(code)
	if err != nil {
		return nil, err
	}
	out := make([]DecodedInstr, len(decoded))
	for i, d := range decoded {
		out[i] = DecodedInstr{PC: d.PC, Instr: d.Instr}
	}
	return out, nil
}

func concatAll(parts ...[]uint64) []uint64 {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]uint64, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
