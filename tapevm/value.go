// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "fmt"

// Decimal is a fixed-point value: mantissa * 10^-scale. v1 only supports
// add/sub/mul with matching scales (§4.3.2); richer decimal semantics are
// deferred.
type Decimal struct {
	Mantissa int64
	Scale    uint8
}

// Value is a single VM-level value, tagged by the same ValueKind as its
// owning register's class. It is the public shape returned from Vm.Run and
// passed across the Host boundary as OwnedValue; internally the VM never
// stores values this way (registers live in class-split arrays), so Value
// only gets constructed at the VM's edges.
type Value struct {
	Kind ValueKind

	I64     int64
	U64     uint64
	F64     float64
	Bool    bool
	Decimal Decimal
	Bytes   []byte
	Str     string
	Agg     AggHandle
}

func (v Value) String() string {
	switch v.Kind {
	case KindI64:
		return fmt.Sprintf("I64(%d)", v.I64)
	case KindU64:
		return fmt.Sprintf("U64(%d)", v.U64)
	case KindF64:
		return fmt.Sprintf("F64(%v)", v.F64)
	case KindBool:
		return fmt.Sprintf("Bool(%v)", v.Bool)
	case KindUnit:
		return "Unit"
	case KindDecimal:
		return fmt.Sprintf("Decimal(%d, scale=%d)", v.Decimal.Mantissa, v.Decimal.Scale)
	case KindBytes:
		return fmt.Sprintf("Bytes(%x)", v.Bytes)
	case KindStr:
		return fmt.Sprintf("Str(%q)", v.Str)
	case KindAgg:
		return fmt.Sprintf("Agg(%d)", v.Agg)
	default:
		return "Value(?)"
	}
}

func ValueI64(v int64) Value    { return Value{Kind: KindI64, I64: v} }
func ValueU64(v uint64) Value   { return Value{Kind: KindU64, U64: v} }
func ValueF64(v float64) Value  { return Value{Kind: KindF64, F64: v} }
func ValueBool(v bool) Value    { return Value{Kind: KindBool, Bool: v} }
func ValueUnit() Value          { return Value{Kind: KindUnit} }
func ValueBytes(v []byte) Value { return Value{Kind: KindBytes, Bytes: v} }
func ValueStr(v string) Value   { return Value{Kind: KindStr, Str: v} }
func ValueDecimal(mantissa int64, scale uint8) Value {
	return Value{Kind: KindDecimal, Decimal: Decimal{Mantissa: mantissa, Scale: scale}}
}
