// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import (
	"bytes"
	"fmt"
)

// Container byte format (§6.1): a 4-byte magic, a 2-byte (major, minor)
// version, then sections of (tag: varint, length: varint, body: length
// bytes) until EOF. Unknown tags are skipped; duplicate required sections
// and missing required sections both fail decode.

const (
	containerMagic        = "TAPE"
	containerVersionMajor = 1
	containerVersionMinor = 0
)

const (
	tagSymbols       = 1
	tagConstPool     = 2
	tagTypes         = 3
	tagFunctionTable = 4
	tagBytecodeBlobs = 5
	tagSpanTables    = 6
	tagHostSigTable  = 7
	tagDebugNames    = 8
	tagSourcePath    = 9
)

// requiredTags mirrors §3.1: function_table, bytecode_blobs, and span_tables
// must always be present; the rest may be omitted for a program with no
// consts, no aggregate types, or no host calls.
var requiredTags = map[uint64]string{
	tagFunctionTable: "function_table",
	tagBytecodeBlobs: "bytecode_blobs",
	tagSpanTables:    "span_tables",
}

// byteCursor is the container layer's analog to codeReader: a flat byte
// slice with a read position, used both for the whole-file section scan and
// for decoding one section's body.
type byteCursor struct {
	buf []byte
	pos int
}

func (c *byteCursor) readByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, errTruncatedVarint
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *byteCursor) uvarint() (uint64, error) { return readUvarint(c, 10) }

func (c *byteCursor) readN(n int) ([]byte, error) {
	if c.pos+n > len(c.buf) {
		return nil, fmt.Errorf("tapevm: container: truncated section")
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *byteCursor) remaining() []byte { return c.buf[c.pos:] }

// EncodeProgram renders p as a canonical container byte sequence (§4.1).
// Sections appear in tag order; every varint is minimal-length, matching
// what DecodeProgram accepts byte-for-byte on re-encode.
func EncodeProgram(p *Program) []byte {
	out := make([]byte, 0, 4096)
	out = append(out, containerMagic...)
	out = append(out, containerVersionMajor, containerVersionMinor)

	out = appendSection(out, tagSymbols, encodeSymbols(p))
	if body := encodeConstPool(p); len(body) > 0 {
		out = appendSection(out, tagConstPool, body)
	}
	if body := encodeTypes(p); len(body) > 0 {
		out = appendSection(out, tagTypes, body)
	}
	out = appendSection(out, tagFunctionTable, encodeFunctionTable(p))
	out = appendSection(out, tagBytecodeBlobs, p.Bytecode)
	out = appendSection(out, tagSpanTables, encodeSpanTables(p))
	if body := encodeHostSigTable(p); len(body) > 0 {
		out = appendSection(out, tagHostSigTable, body)
	}
	if body := encodeDebugNames(p); len(body) > 0 {
		out = appendSection(out, tagDebugNames, body)
	}
	if p.SourcePath != 0 {
		out = appendSection(out, tagSourcePath, appendUvarint(nil, uint64(p.SourcePath)))
	}
	return out
}

func appendSection(dst []byte, tag uint64, body []byte) []byte {
	dst = appendUvarint(dst, tag)
	dst = appendUvarint(dst, uint64(len(body)))
	return append(dst, body...)
}

func encodeSymbols(p *Program) []byte {
	var body []byte
	body = appendUvarint(body, uint64(len(p.Symbols)))
	for _, s := range p.Symbols {
		body = appendUvarint(body, uint64(len(s)))
		body = append(body, s...)
	}
	return body
}

func encodeConstPool(p *Program) []byte {
	if len(p.Consts) == 0 && len(p.Blob) == 0 {
		return nil
	}
	var body []byte
	body = appendUvarint(body, uint64(len(p.Consts)))
	for _, e := range p.Consts {
		body = encodeConstEntry(body, e)
	}
	body = appendUvarint(body, uint64(len(p.Blob)))
	body = append(body, p.Blob...)
	return body
}

func encodeConstEntry(dst []byte, e ConstEntry) []byte {
	dst = encodeValueType(dst, e.Type)
	switch e.Type.Kind {
	case KindI64:
		dst = appendUvarint(dst, zigzagEncode(e.I64))
	case KindU64:
		dst = appendUvarint(dst, e.U64)
	case KindF64:
		dst = appendUvarint(dst, e.F64Bits)
	case KindBool:
		v := uint64(0)
		if e.Bool {
			v = 1
		}
		dst = appendUvarint(dst, v)
	case KindUnit:
	case KindDecimal:
		dst = appendUvarint(dst, zigzagEncode(e.Mantissa))
	case KindBytes, KindStr:
		dst = appendUvarint(dst, uint64(e.Blob.Offset))
		dst = appendUvarint(dst, uint64(e.Blob.Len))
	}
	return dst
}

func encodeValueType(dst []byte, t ValueType) []byte {
	dst = append(dst, byte(t.Kind))
	switch t.Kind {
	case KindDecimal:
		dst = append(dst, t.Scale)
	case KindAgg:
		dst = appendUvarint(dst, uint64(t.Agg))
	}
	return dst
}

func encodeValueTypeVector(dst []byte, ts []ValueType) []byte {
	dst = appendUvarint(dst, uint64(len(ts)))
	for _, t := range ts {
		dst = encodeValueType(dst, t)
	}
	return dst
}

func encodeTypes(p *Program) []byte {
	if len(p.Types) == 0 {
		return nil
	}
	var body []byte
	body = appendUvarint(body, uint64(len(p.Types)))
	for _, d := range p.Types {
		body = append(body, byte(d.Kind))
		switch d.Kind {
		case TypeDefArray:
			body = encodeValueType(body, d.ElemType)
		default:
			body = encodeValueTypeVector(body, d.FieldTypes)
		}
	}
	return body
}

func encodeFunctionTable(p *Program) []byte {
	var body []byte
	body = appendUvarint(body, uint64(len(p.Functions)))
	for _, fn := range p.Functions {
		body = appendUvarint(body, uint64(fn.ArgCount))
		body = appendUvarint(body, uint64(fn.RetCount))
		body = appendUvarint(body, uint64(fn.RegCount))
		body = encodeValueTypeVector(body, fn.ArgTypes)
		body = encodeValueTypeVector(body, fn.RetTypes)
		body = appendUvarint(body, uint64(fn.BytecodeOffset))
		body = appendUvarint(body, uint64(fn.BytecodeLen))
		body = appendUvarint(body, uint64(fn.SpanOffset))
		body = appendUvarint(body, uint64(fn.SpanLen))
	}
	return body
}

// encodeDebugNames renders the optional debug_names section (§3.1.1, tag 8):
// (funcId, symbolId) pairs for only the functions that carry a name: most
// functions in a release build have none.
func encodeDebugNames(p *Program) []byte {
	var body []byte
	var pairs [][2]uint32
	for i, fn := range p.Functions {
		if fn.NameSymbol != 0 {
			pairs = append(pairs, [2]uint32{uint32(i), uint32(fn.NameSymbol)})
		}
	}
	if len(pairs) == 0 {
		return nil
	}
	body = appendUvarint(body, uint64(len(pairs)))
	for _, pr := range pairs {
		body = appendUvarint(body, uint64(pr[0]))
		body = appendUvarint(body, uint64(pr[1]))
	}
	return body
}

func encodeSpanTables(p *Program) []byte {
	var body []byte
	body = appendUvarint(body, uint64(len(p.Spans)))
	for _, spans := range p.Spans {
		body = appendUvarint(body, uint64(len(spans)))
		for _, s := range spans {
			body = appendUvarint(body, uint64(s.PC))
			body = appendUvarint(body, uint64(s.SpanId))
		}
	}
	return body
}

func encodeHostSigTable(p *Program) []byte {
	if len(p.HostSigs) == 0 {
		return nil
	}
	var body []byte
	body = appendUvarint(body, uint64(len(p.HostSigs)))
	for _, sig := range p.HostSigs {
		body = encodeValueTypeVector(body, sig.ArgTypes)
		body = encodeValueTypeVector(body, sig.RetTypes)
	}
	return body
}

// DecodeProgram parses a container byte sequence into a Program (§4.1). It
// guarantees structural well-formedness and that in-container indices
// resolve; it never checks execution-level invariants (that's Verify's job).
func DecodeProgram(data []byte) (*Program, error) {
	if len(data) < 6 || !bytes.HasPrefix(data, []byte(containerMagic)) {
		return nil, &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "missing or invalid magic"}
	}
	// Minor-version skew is forward-compatible; only a major mismatch is fatal.
	if data[4] != containerVersionMajor {
		return nil, &VerifyError{Kind: VerifyErrMalformedContainer, Detail: fmt.Sprintf("unsupported major version %d", data[4])}
	}

	c := &byteCursor{buf: data, pos: 6}
	p := &Program{}
	seen := map[uint64]bool{}

	for c.pos < len(c.buf) {
		tag, err := c.uvarint()
		if err != nil {
			return nil, &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated section tag"}
		}
		length, err := c.uvarint()
		if err != nil {
			return nil, &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated section length"}
		}
		body, err := c.readN(int(length))
		if err != nil {
			return nil, &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated section body"}
		}
		if seen[tag] {
			return nil, &VerifyError{Kind: VerifyErrMalformedContainer, Detail: fmt.Sprintf("duplicate section tag %d", tag)}
		}
		seen[tag] = true

		switch tag {
		case tagSymbols:
			if err := decodeSymbols(p, body); err != nil {
				return nil, err
			}
		case tagConstPool:
			if err := decodeConstPool(p, body); err != nil {
				return nil, err
			}
		case tagTypes:
			if err := decodeTypes(p, body); err != nil {
				return nil, err
			}
		case tagFunctionTable:
			if err := decodeFunctionTable(p, body); err != nil {
				return nil, err
			}
		case tagBytecodeBlobs:
			p.Bytecode = append([]byte(nil), body...)
		case tagSpanTables:
			if err := decodeSpanTables(p, body); err != nil {
				return nil, err
			}
		case tagHostSigTable:
			if err := decodeHostSigTable(p, body); err != nil {
				return nil, err
			}
		case tagDebugNames:
			if err := decodeDebugNames(p, body); err != nil {
				return nil, err
			}
		case tagSourcePath:
			c2 := &byteCursor{buf: body}
			v, err := c2.uvarint()
			if err != nil {
				return nil, &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated source_path section"}
			}
			p.SourcePath = SymbolId(v)
		default:
			// Unknown tag: skipped for forward compatibility (§3.1, §8).
		}
	}

	for tag, name := range requiredTags {
		if !seen[tag] {
			return nil, &VerifyError{Kind: VerifyErrMalformedContainer, Detail: fmt.Sprintf("missing required section: %s", name)}
		}
	}
	if err := validateIndices(p); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeSymbols(p *Program, body []byte) error {
	c := &byteCursor{buf: body}
	count, err := c.uvarint()
	if err != nil {
		return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated symbols section"}
	}
	p.Symbols = make([][]byte, count)
	for i := range p.Symbols {
		n, err := c.uvarint()
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated symbol entry"}
		}
		s, err := c.readN(int(n))
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated symbol bytes"}
		}
		p.Symbols[i] = append([]byte(nil), s...)
	}
	return nil
}

func decodeValueType(c *byteCursor) (ValueType, error) {
	b, err := c.readByte()
	if err != nil {
		return ValueType{}, &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated value type"}
	}
	kind := ValueKind(b)
	if kind > KindAgg {
		return ValueType{}, &VerifyError{Kind: VerifyErrUnknownValueTypeTag, Detail: fmt.Sprintf("value kind %d", b)}
	}
	t := ValueType{Kind: kind}
	switch kind {
	case KindDecimal:
		scale, err := c.readByte()
		if err != nil {
			return ValueType{}, &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated decimal scale"}
		}
		t.Scale = scale
	case KindAgg:
		id, err := c.uvarint()
		if err != nil {
			return ValueType{}, &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated agg type id"}
		}
		t.Agg = TypeId(id)
	}
	return t, nil
}

func decodeValueTypeVector(c *byteCursor) ([]ValueType, error) {
	n, err := c.uvarint()
	if err != nil {
		return nil, &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated value type vector"}
	}
	out := make([]ValueType, n)
	for i := range out {
		t, err := decodeValueType(c)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func decodeConstPool(p *Program, body []byte) error {
	c := &byteCursor{buf: body}
	count, err := c.uvarint()
	if err != nil {
		return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated const pool"}
	}
	p.Consts = make([]ConstEntry, count)
	for i := range p.Consts {
		t, err := decodeValueType(c)
		if err != nil {
			return err
		}
		e := ConstEntry{Type: t}
		switch t.Kind {
		case KindI64:
			v, err := c.uvarint()
			if err != nil {
				return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated const i64"}
			}
			e.I64 = zigzagDecode(v)
		case KindU64:
			v, err := c.uvarint()
			if err != nil {
				return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated const u64"}
			}
			e.U64 = v
		case KindF64:
			v, err := c.uvarint()
			if err != nil {
				return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated const f64"}
			}
			e.F64Bits = v
		case KindBool:
			v, err := c.uvarint()
			if err != nil {
				return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated const bool"}
			}
			e.Bool = v != 0
		case KindUnit:
		case KindDecimal:
			v, err := c.uvarint()
			if err != nil {
				return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated const decimal"}
			}
			e.Mantissa = zigzagDecode(v)
		case KindBytes, KindStr:
			off, err := c.uvarint()
			if err != nil {
				return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated const blob offset"}
			}
			ln, err := c.uvarint()
			if err != nil {
				return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated const blob len"}
			}
			e.Blob = BlobRange{Offset: uint32(off), Len: uint32(ln)}
		case KindAgg:
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "const pool entries cannot have kind agg"}
		}
		p.Consts[i] = e
	}
	n, err := c.uvarint()
	if err != nil {
		return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated blob length"}
	}
	blob, err := c.readN(int(n))
	if err != nil {
		return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated blob bytes"}
	}
	p.Blob = append([]byte(nil), blob...)
	return nil
}

func decodeTypes(p *Program, body []byte) error {
	c := &byteCursor{buf: body}
	count, err := c.uvarint()
	if err != nil {
		return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated type table"}
	}
	p.Types = make([]TypeDef, count)
	for i := range p.Types {
		kindByte, err := c.readByte()
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated type def kind"}
		}
		kind := TypeDefKind(kindByte)
		d := TypeDef{Kind: kind}
		switch kind {
		case TypeDefArray:
			t, err := decodeValueType(c)
			if err != nil {
				return err
			}
			d.ElemType = t
		case TypeDefStruct, TypeDefTuple:
			fields, err := decodeValueTypeVector(c)
			if err != nil {
				return err
			}
			d.FieldTypes = fields
		default:
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: fmt.Sprintf("unknown type def kind %d", kindByte)}
		}
		p.Types[i] = d
	}
	return nil
}

func decodeFunctionTable(p *Program, body []byte) error {
	c := &byteCursor{buf: body}
	count, err := c.uvarint()
	if err != nil {
		return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated function table"}
	}
	p.Functions = make([]FunctionEntry, count)
	for i := range p.Functions {
		var fn FunctionEntry
		argCount, err := c.uvarint()
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated function entry"}
		}
		fn.ArgCount = uint32(argCount)
		retCount, err := c.uvarint()
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated function entry"}
		}
		fn.RetCount = uint32(retCount)
		regCount, err := c.uvarint()
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated function entry"}
		}
		fn.RegCount = uint32(regCount)
		if fn.ArgTypes, err = decodeValueTypeVector(c); err != nil {
			return err
		}
		if fn.RetTypes, err = decodeValueTypeVector(c); err != nil {
			return err
		}
		if uint32(len(fn.ArgTypes)) != fn.ArgCount || uint32(len(fn.RetTypes)) != fn.RetCount {
			return &VerifyError{Kind: VerifyErrArityMismatch, Func: FuncId(i), Detail: "declared count does not match signature vector length"}
		}
		off, err := c.uvarint()
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated function entry"}
		}
		fn.BytecodeOffset = uint32(off)
		ln, err := c.uvarint()
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated function entry"}
		}
		fn.BytecodeLen = uint32(ln)
		soff, err := c.uvarint()
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated function entry"}
		}
		fn.SpanOffset = uint32(soff)
		sln, err := c.uvarint()
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated function entry"}
		}
		fn.SpanLen = uint32(sln)
		p.Functions[i] = fn
	}
	return nil
}

func decodeSpanTables(p *Program, body []byte) error {
	c := &byteCursor{buf: body}
	count, err := c.uvarint()
	if err != nil {
		return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated span tables"}
	}
	p.Spans = make([][]SpanEntry, count)
	for i := range p.Spans {
		n, err := c.uvarint()
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated span table"}
		}
		spans := make([]SpanEntry, n)
		for j := range spans {
			pc, err := c.uvarint()
			if err != nil {
				return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated span entry"}
			}
			spanID, err := c.uvarint()
			if err != nil {
				return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated span entry"}
			}
			spans[j] = SpanEntry{PC: uint32(pc), SpanId: uint32(spanID)}
		}
		p.Spans[i] = spans
	}
	return nil
}

func decodeDebugNames(p *Program, body []byte) error {
	c := &byteCursor{buf: body}
	count, err := c.uvarint()
	if err != nil {
		return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated debug_names section"}
	}
	for i := uint64(0); i < count; i++ {
		funcID, err := c.uvarint()
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated debug_names entry"}
		}
		symID, err := c.uvarint()
		if err != nil {
			return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated debug_names entry"}
		}
		if int(funcID) >= len(p.Functions) {
			return &VerifyError{Kind: VerifyErrBadFuncId, Detail: "debug_names entry references out-of-range function"}
		}
		p.Functions[funcID].NameSymbol = SymbolId(symID)
	}
	return nil
}

func decodeHostSigTable(p *Program, body []byte) error {
	c := &byteCursor{buf: body}
	count, err := c.uvarint()
	if err != nil {
		return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "truncated host sig table"}
	}
	p.HostSigs = make([]HostSig, count)
	for i := range p.HostSigs {
		args, err := decodeValueTypeVector(c)
		if err != nil {
			return err
		}
		rets, err := decodeValueTypeVector(c)
		if err != nil {
			return err
		}
		p.HostSigs[i] = HostSig{ArgTypes: args, RetTypes: rets}
	}
	return nil
}

// validateIndices checks every cross-section reference a Program carries
// resolves, per §4.1's decoder contract. It does not check bytecode operand
// indices (register ids, branch targets) - those are the verifier's job
// once bytecode is decoded into instructions.
func validateIndices(p *Program) error {
	if int(p.SourcePath) >= len(p.Symbols) && p.SourcePath != 0 {
		return &VerifyError{Kind: VerifyErrBadSymbolId, Detail: "source path symbol out of range"}
	}
	for i, e := range p.Consts {
		if e.Type.Kind == KindBytes || e.Type.Kind == KindStr {
			end := uint64(e.Blob.Offset) + uint64(e.Blob.Len)
			if end > uint64(len(p.Blob)) {
				return &VerifyError{Kind: VerifyErrIndexOutOfRange, Detail: fmt.Sprintf("const %d blob range out of bounds", i)}
			}
		}
	}
	for i, d := range p.Types {
		for _, ft := range d.FieldTypes {
			if ft.Kind == KindAgg && int(ft.Agg) >= len(p.Types) {
				return &VerifyError{Kind: VerifyErrBadTypeId, Detail: fmt.Sprintf("type %d references out-of-range type id", i)}
			}
		}
		if d.Kind == TypeDefArray && d.ElemType.Kind == KindAgg && int(d.ElemType.Agg) >= len(p.Types) {
			return &VerifyError{Kind: VerifyErrBadTypeId, Detail: fmt.Sprintf("type %d references out-of-range type id", i)}
		}
	}
	if len(p.Spans) != 0 && len(p.Spans) != len(p.Functions) {
		return &VerifyError{Kind: VerifyErrMalformedContainer, Detail: "span table count does not match function count"}
	}
	for i, fn := range p.Functions {
		end := uint64(fn.BytecodeOffset) + uint64(fn.BytecodeLen)
		if end > uint64(len(p.Bytecode)) {
			return &VerifyError{Kind: VerifyErrIndexOutOfRange, Func: FuncId(i), Detail: "bytecode range out of bounds"}
		}
		for _, t := range fn.ArgTypes {
			if t.Kind == KindAgg && int(t.Agg) >= len(p.Types) {
				return &VerifyError{Kind: VerifyErrBadTypeId, Func: FuncId(i), Detail: "arg type references out-of-range type id"}
			}
		}
		for _, t := range fn.RetTypes {
			if t.Kind == KindAgg && int(t.Agg) >= len(p.Types) {
				return &VerifyError{Kind: VerifyErrBadTypeId, Func: FuncId(i), Detail: "ret type references out-of-range type id"}
			}
		}
		if fn.NameSymbol != 0 && int(fn.NameSymbol) >= len(p.Symbols) {
			return &VerifyError{Kind: VerifyErrBadSymbolId, Func: FuncId(i), Detail: "name symbol out of range"}
		}
	}
	for i, sig := range p.HostSigs {
		for _, t := range sig.ArgTypes {
			if t.Kind == KindAgg && int(t.Agg) >= len(p.Types) {
				return &VerifyError{Kind: VerifyErrBadTypeId, Detail: fmt.Sprintf("host sig %d arg type references out-of-range type id", i)}
			}
		}
		for _, t := range sig.RetTypes {
			if t.Kind == KindAgg && int(t.Agg) >= len(p.Types) {
				return &VerifyError{Kind: VerifyErrBadTypeId, Detail: fmt.Sprintf("host sig %d ret type references out-of-range type id", i)}
			}
		}
	}
	return nil
}
