// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/tapevm/tapevm/tapevm"
)

// parseValue parses a command-line argument string into a Value matching t,
// with the same per-Kind dispatch shape as the REPL's parseArg for RUN
// arguments.
func parseValue(raw string, t tapevm.ValueType) (tapevm.Value, error) {
	switch t.Kind {
	case tapevm.KindI64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return tapevm.Value{}, fmt.Errorf("%q is not a valid i64: %w", raw, err)
		}
		return tapevm.ValueI64(v), nil
	case tapevm.KindU64:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return tapevm.Value{}, fmt.Errorf("%q is not a valid u64: %w", raw, err)
		}
		return tapevm.ValueU64(v), nil
	case tapevm.KindF64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return tapevm.Value{}, fmt.Errorf("%q is not a valid f64: %w", raw, err)
		}
		return tapevm.ValueF64(v), nil
	case tapevm.KindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return tapevm.Value{}, fmt.Errorf("%q is not a valid bool: %w", raw, err)
		}
		return tapevm.ValueBool(v), nil
	case tapevm.KindUnit:
		return tapevm.ValueUnit(), nil
	case tapevm.KindDecimal:
		mantissa, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return tapevm.Value{}, fmt.Errorf("%q is not a valid decimal mantissa: %w", raw, err)
		}
		return tapevm.ValueDecimal(mantissa, t.Scale), nil
	case tapevm.KindBytes:
		b, err := hex.DecodeString(raw)
		if err != nil {
			return tapevm.Value{}, fmt.Errorf("%q is not valid hex: %w", raw, err)
		}
		return tapevm.ValueBytes(b), nil
	case tapevm.KindStr:
		return tapevm.ValueStr(raw), nil
	default:
		return tapevm.Value{}, fmt.Errorf("cannot parse a command-line argument of kind %v", t.Kind)
	}
}
