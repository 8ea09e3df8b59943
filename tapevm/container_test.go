// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import (
	"reflect"
	"testing"
)

func minimalProgram() *Program {
	return &Program{
		Symbols: [][]byte{[]byte("\x00"), []byte("add_one")},
		Functions: []FunctionEntry{
			{
				ArgCount:       1,
				RetCount:       1,
				RegCount:       2,
				ArgTypes:       []ValueType{{Kind: KindI64}},
				RetTypes:       []ValueType{{Kind: KindI64}},
				BytecodeOffset: 0,
				BytecodeLen:    4,
				SpanOffset:     0,
				SpanLen:        0,
				NameSymbol:     1,
			},
		},
		Bytecode: []byte{byte(OpNop), byte(OpNop), byte(OpNop), byte(OpRet)},
		Spans:    [][]SpanEntry{{}},
	}
}

func TestContainerRoundTrip(t *testing.T) {
	p := minimalProgram()
	encoded := EncodeProgram(p)
	decoded, err := DecodeProgram(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(p, decoded) {
		t.Errorf("round trip mismatch:\n got: %+v\nwant: %+v", decoded, p)
	}
}

func TestContainerRoundTripWithConstsAndTypes(t *testing.T) {
	p := minimalProgram()
	p.Consts = []ConstEntry{
		{Type: ValueType{Kind: KindI64}, I64: -42},
		{Type: ValueType{Kind: KindU64}, U64: 7},
		{Type: ValueType{Kind: KindBool}, Bool: true},
		{Type: ValueType{Kind: KindUnit}},
		{Type: ValueType{Kind: KindDecimal, Scale: 2}, Mantissa: 1050},
		{Type: ValueType{Kind: KindStr}, Blob: BlobRange{Offset: 0, Len: 5}},
	}
	p.Blob = []byte("hello")
	p.Types = []TypeDef{
		{Kind: TypeDefTuple, FieldTypes: []ValueType{{Kind: KindI64}, {Kind: KindBool}}},
		{Kind: TypeDefArray, ElemType: ValueType{Kind: KindF64}},
	}
	p.HostSigs = []HostSig{
		{ArgTypes: []ValueType{{Kind: KindAgg, Agg: 0}}, RetTypes: []ValueType{{Kind: KindUnit}}},
	}

	encoded := EncodeProgram(p)
	decoded, err := DecodeProgram(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(p, decoded) {
		t.Errorf("round trip mismatch:\n got: %+v\nwant: %+v", decoded, p)
	}
}

func TestContainerUnknownTagSkipped(t *testing.T) {
	p := minimalProgram()
	encoded := EncodeProgram(p)
	encoded = appendSection(encoded, 0xFF, []byte{1, 2, 3})

	decoded, err := DecodeProgram(encoded)
	if err != nil {
		t.Fatalf("decode with unknown trailing tag failed: %v", err)
	}
	if !reflect.DeepEqual(p, decoded) {
		t.Errorf("unknown tag should not affect decoded program:\n got: %+v\nwant: %+v", decoded, p)
	}
}

func TestContainerMissingRequiredSectionFails(t *testing.T) {
	out := make([]byte, 0)
	out = append(out, containerMagic...)
	out = append(out, containerVersionMajor, containerVersionMinor)
	out = appendSection(out, tagSymbols, encodeSymbols(minimalProgram()))

	_, err := DecodeProgram(out)
	if err == nil {
		t.Fatalf("expected error for missing required sections, got nil")
	}
	verr, ok := err.(*VerifyError)
	if !ok || verr.Kind != VerifyErrMalformedContainer {
		t.Errorf("expected VerifyErrMalformedContainer, got %v", err)
	}
}

func TestContainerDuplicateSectionFails(t *testing.T) {
	p := minimalProgram()
	encoded := EncodeProgram(p)
	encoded = appendSection(encoded, tagFunctionTable, encodeFunctionTable(p))

	_, err := DecodeProgram(encoded)
	if err == nil {
		t.Fatalf("expected error for duplicate section, got nil")
	}
}

func TestContainerBadMagicFails(t *testing.T) {
	p := minimalProgram()
	encoded := EncodeProgram(p)
	encoded[0] = 'X'

	if _, err := DecodeProgram(encoded); err == nil {
		t.Fatalf("expected error for bad magic, got nil")
	}
}

func TestContainerTruncatedFails(t *testing.T) {
	p := minimalProgram()
	encoded := EncodeProgram(p)
	if _, err := DecodeProgram(encoded[:len(encoded)-2]); err == nil {
		t.Fatalf("expected error for truncated container, got nil")
	}
}

func TestContainerDebugNamesAndSourcePath(t *testing.T) {
	p := minimalProgram()
	p.Symbols = append(p.Symbols, []byte("main.tape"))
	p.SourcePath = SymbolId(len(p.Symbols) - 1)

	encoded := EncodeProgram(p)
	decoded, err := DecodeProgram(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(p, decoded) {
		t.Errorf("round trip mismatch:\n got: %+v\nwant: %+v", decoded, p)
	}
	if decoded.Functions[0].NameSymbol != 1 {
		t.Errorf("expected debug name symbol 1, got %d", decoded.Functions[0].NameSymbol)
	}
	if decoded.SourcePath != p.SourcePath {
		t.Errorf("expected source path %d, got %d", p.SourcePath, decoded.SourcePath)
	}
}

func TestContainerNoDebugNamesOmitsSection(t *testing.T) {
	p := minimalProgram()
	p.Functions[0].NameSymbol = 0

	encoded := EncodeProgram(p)
	decoded, err := DecodeProgram(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Functions[0].NameSymbol != 0 {
		t.Errorf("expected no debug name, got %d", decoded.Functions[0].NameSymbol)
	}

	c := &byteCursor{buf: encoded, pos: len(containerMagic) + 2}
	for c.pos < len(c.buf) {
		tag, _ := c.uvarint()
		length, _ := c.uvarint()
		c.pos += int(length)
		if tag == tagDebugNames {
			t.Errorf("expected no debug_names section, found one")
		}
	}
}

func TestContainerBlobRangeOutOfBoundsFails(t *testing.T) {
	p := minimalProgram()
	p.Consts = []ConstEntry{
		{Type: ValueType{Kind: KindStr}, Blob: BlobRange{Offset: 0, Len: 100}},
	}
	p.Blob = []byte("short")

	encoded := EncodeProgram(p)
	_, err := DecodeProgram(encoded)
	if err == nil {
		t.Fatalf("expected error for out-of-bounds blob range, got nil")
	}
}
