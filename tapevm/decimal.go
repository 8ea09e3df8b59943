// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "math"

// decAdd, decSub, and decMul implement §4.3.2's decimal arithmetic: both
// operands must carry the same scale (checked here at run time; the
// verifier only checks that both operands are Decimal). A scale mismatch
// or a mantissa overflow traps; v1 has no division, rounding, or rescaling
// operator.

func decAdd(a, b Decimal) (Decimal, *Trap) {
	if a.Scale != b.Scale {
		return Decimal{}, &Trap{Kind: TrapDecimalScaleMismatch}
	}
	sum, ok := addOverflows(a.Mantissa, b.Mantissa)
	if !ok {
		return Decimal{}, &Trap{Kind: TrapDecimalOverflow}
	}
	return Decimal{Mantissa: sum, Scale: a.Scale}, nil
}

func decSub(a, b Decimal) (Decimal, *Trap) {
	if a.Scale != b.Scale {
		return Decimal{}, &Trap{Kind: TrapDecimalScaleMismatch}
	}
	diff, ok := subOverflows(a.Mantissa, b.Mantissa)
	if !ok {
		return Decimal{}, &Trap{Kind: TrapDecimalOverflow}
	}
	return Decimal{Mantissa: diff, Scale: a.Scale}, nil
}

func decMul(a, b Decimal) (Decimal, *Trap) {
	if a.Scale != b.Scale {
		return Decimal{}, &Trap{Kind: TrapDecimalScaleMismatch}
	}
	// a.Mantissa * b.Mantissa at scale s carries an implied scale of 2s;
	// v1 keeps the result at the shared input scale (truncating the extra
	// factor of 10^s) rather than widening the result type.
	prod, ok := mulOverflows(a.Mantissa, b.Mantissa)
	if !ok {
		return Decimal{}, &Trap{Kind: TrapDecimalOverflow}
	}
	scaled := prod / pow10(a.Scale)
	return Decimal{Mantissa: scaled, Scale: a.Scale}, nil
}

func addOverflows(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func subOverflows(a, b int64) (int64, bool) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, false
	}
	return diff, true
}

func mulOverflows(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	prod := a * b
	if prod/b != a {
		return 0, false
	}
	if a == math.MinInt64 || b == math.MinInt64 {
		return 0, false
	}
	return prod, true
}

func pow10(scale uint8) int64 {
	p := int64(1)
	for i := uint8(0); i < scale; i++ {
		p *= 10
	}
	if p == 0 {
		p = 1
	}
	return p
}
