// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

import "math"

// Integer arithmetic wraps on overflow; v1 has no trapping-overflow variants
// (§4.3.2). Go's built-in operators already wrap for fixed-width integer
// types, so these are mostly direct pass-throughs - kept as named functions
// so the hot loop's opcode dispatch reads as a flat table of operations
// rather than inline arithmetic mixed with register bookkeeping.

func i64Add(a, b int64) int64 { return a + b }
func i64Sub(a, b int64) int64 { return a - b }
func i64Mul(a, b int64) int64 { return a * b }

func i64Div(a, b int64) (int64, *Trap) {
	if b == 0 {
		return 0, &Trap{Kind: TrapDivideByZero}
	}
	if a == math.MinInt64 && b == -1 {
		// Wrapping per §4.3.2: MinInt64 / -1 overflows back to MinInt64.
		return math.MinInt64, nil
	}
	return a / b, nil
}

func i64Rem(a, b int64) (int64, *Trap) {
	if b == 0 {
		return 0, &Trap{Kind: TrapDivideByZero}
	}
	if a == math.MinInt64 && b == -1 {
		return 0, nil
	}
	return a % b, nil
}

func i64Shl(a, shift int64) int64 { return a << (uint64(shift) & 63) }
func i64Shr(a, shift int64) int64 { return a >> (uint64(shift) & 63) }

func u64Add(a, b uint64) uint64 { return a + b }
func u64Sub(a, b uint64) uint64 { return a - b }
func u64Mul(a, b uint64) uint64 { return a * b }

func u64Div(a, b uint64) (uint64, *Trap) {
	if b == 0 {
		return 0, &Trap{Kind: TrapDivideByZero}
	}
	return a / b, nil
}

func u64Rem(a, b uint64) (uint64, *Trap) {
	if b == 0 {
		return 0, &Trap{Kind: TrapDivideByZero}
	}
	return a % b, nil
}

func u64Shl(a, shift uint64) uint64 { return a << (shift & 63) }
func u64Shr(a, shift uint64) uint64 { return a >> (shift & 63) }

// Float arithmetic is plain IEEE-754 via Go's native float64 operators; NaN
// and infinity propagate exactly as IEEE specifies, and comparisons against
// NaN are always false (no total-ordering variants are exposed, §4.3.2).

func f64Add(a, b float64) float64 { return a + b }
func f64Sub(a, b float64) float64 { return a - b }
func f64Mul(a, b float64) float64 { return a * b }
func f64Div(a, b float64) float64 { return a / b }

// Conversions. i64<->u64 reinterpret bits (no range check, matching the
// wrapping-integer philosophy above); float conversions saturate rather than
// trap, since the spec defines no conversion trap kind.

func i64ToU64(v int64) uint64 { return uint64(v) }
func u64ToI64(v uint64) int64 { return int64(v) }

func i64ToF64(v int64) float64 { return float64(v) }
func u64ToF64(v uint64) float64 { return float64(v) }

func f64ToI64(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	if v <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(v)
}

func f64ToU64(v float64) uint64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(v)
}
