// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "fmt"

// ValueType is the public, on-disk category of a value. There is no "Any"
// tag: every register and every operand has a statically known ValueType by
// the time the verifier is done.
type ValueType struct {
	Kind ValueKind
	// Scale is meaningful only when Kind == KindDecimal.
	Scale uint8
	// Agg is meaningful only when Kind == KindAgg.
	Agg TypeId
}

type ValueKind uint8

const (
	KindI64 ValueKind = iota
	KindU64
	KindF64
	KindBool
	KindUnit
	KindDecimal
	KindBytes
	KindStr
	KindAgg
)

func (k ValueKind) String() string {
	switch k {
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindF64:
		return "f64"
	case KindBool:
		return "bool"
	case KindUnit:
		return "unit"
	case KindDecimal:
		return "decimal"
	case KindBytes:
		return "bytes"
	case KindStr:
		return "str"
	case KindAgg:
		return "agg"
	default:
		return fmt.Sprintf("valuekind(%d)", uint8(k))
	}
}

func (t ValueType) String() string {
	switch t.Kind {
	case KindDecimal:
		return fmt.Sprintf("decimal(%d)", t.Scale)
	case KindAgg:
		return fmt.Sprintf("agg(%d)", t.Agg)
	default:
		return t.Kind.String()
	}
}

func (t ValueType) Equal(o ValueType) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindDecimal:
		return t.Scale == o.Scale
	case KindAgg:
		return t.Agg == o.Agg
	default:
		return true
	}
}

// Identifiers. All are dense, zero-based indices into their owning section.
type (
	SymbolId  uint32
	ConstId   uint32
	TypeId    uint32
	FuncId    uint32
	HostSigId uint32
)

// BlobRange addresses a Bytes or Str payload inside the program's blob
// arena.
type BlobRange struct {
	Offset uint32
	Len    uint32
}

// ConstEntry is one entry of the const pool. Exactly one field is
// meaningful, selected by Type.Kind.
type ConstEntry struct {
	Type     ValueType
	I64      int64
	U64      uint64
	F64Bits  uint64
	Bool     bool
	Mantissa int64 // Decimal mantissa; Type.Scale holds the scale.
	Blob     BlobRange
}

// TypeDef is one entry of the type table, addressed by TypeId. Exactly one
// of Struct/Array/Tuple is populated, selected by Kind.
type TypeDef struct {
	Kind TypeDefKind
	// Struct / Tuple.
	FieldTypes []ValueType
	// Array.
	ElemType ValueType
}

type TypeDefKind uint8

const (
	TypeDefStruct TypeDefKind = iota
	TypeDefArray
	TypeDefTuple
)

func (d TypeDef) Arity() int {
	switch d.Kind {
	case TypeDefArray:
		return 1
	default:
		return len(d.FieldTypes)
	}
}

// FunctionEntry describes one function: its signature and where its
// bytecode and span table live in the program's shared blobs.
type FunctionEntry struct {
	ArgCount uint32
	RetCount uint32
	RegCount uint32
	ArgTypes []ValueType
	RetTypes []ValueType

	BytecodeOffset uint32
	BytecodeLen    uint32

	SpanOffset uint32
	SpanLen    uint32

	// NameSymbol is SymbolId's zero value (0) when absent; the symbol table's
	// entry 0 is reserved as the "no name" sentinel so debug_names can be
	// omitted entirely without needing a separate presence bit per function.
	NameSymbol SymbolId
}

// SpanEntry maps a byte offset within a function's bytecode to a source
// span id, for diagnostics. The table is sorted by PC.
type SpanEntry struct {
	PC     uint32
	SpanId uint32
}

// HostSig is a host function signature, addressed by HostSigId.
type HostSig struct {
	ArgTypes []ValueType
	RetTypes []ValueType
}

// Program is the fully decoded container: all sections, with payloads
// resolved but bytecode left as raw bytes (the verifier decodes bytecode
// into instructions, not the container layer).
type Program struct {
	Symbols     [][]byte
	Consts      []ConstEntry
	Types       []TypeDef
	Functions   []FunctionEntry
	Bytecode    []byte
	Spans       [][]SpanEntry // parallel to Functions
	HostSigs    []HostSig
	Blob        []byte
	SourcePath  SymbolId // 0 if absent
}

func (p *Program) SymbolBytes(id SymbolId) ([]byte, error) {
	if int(id) >= len(p.Symbols) {
		return nil, fmt.Errorf("tapevm: symbol id %d out of range", id)
	}
	return p.Symbols[id], nil
}

func (p *Program) SymbolString(id SymbolId) (string, error) {
	b, err := p.SymbolBytes(id)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *Program) FunctionName(id FuncId) (string, bool) {
	if int(id) >= len(p.Functions) {
		return "", false
	}
	sym := p.Functions[id].NameSymbol
	if sym == 0 {
		return "", false
	}
	s, err := p.SymbolString(sym)
	if err != nil {
		return "", false
	}
	return s, true
}

func (p *Program) ConstBlob(e ConstEntry) ([]byte, error) {
	end := uint64(e.Blob.Offset) + uint64(e.Blob.Len)
	if end > uint64(len(p.Blob)) {
		return nil, fmt.Errorf("tapevm: blob range out of bounds")
	}
	return p.Blob[e.Blob.Offset:end], nil
}

func (p *Program) FunctionBytecode(f FuncId) ([]byte, error) {
	if int(f) >= len(p.Functions) {
		return nil, fmt.Errorf("tapevm: function id %d out of range", f)
	}
	fn := p.Functions[f]
	end := uint64(fn.BytecodeOffset) + uint64(fn.BytecodeLen)
	if end > uint64(len(p.Bytecode)) {
		return nil, fmt.Errorf("tapevm: bytecode range out of bounds")
	}
	return p.Bytecode[fn.BytecodeOffset:end], nil
}
