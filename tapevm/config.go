// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapevm

// Config controls verifier resource limits and VM execution behavior.
type Config struct {
	// MaxCallStackDepth is the hard limit on call stack depth, enforced by
	// the VM at run time through RunOptions.MaxCallDepth; the verifier does
	// not check it. Default: 512.
	MaxCallStackDepth int

	// MaxRegistersPerFunction bounds how many virtual registers a single
	// function may declare, independent of class. The verifier rejects
	// functions over this limit before ever lowering them. Default: 4096.
	MaxRegistersPerFunction int

	// MaxInstructionsPerFunction bounds a function's raw instruction count.
	// Default: 65536.
	MaxInstructionsPerFunction int

	// MaxBytecodeBytes bounds the raw, still-undecoded bytecode length of a
	// single function's code section. Checked before decoding, so a
	// pathologically large function can't even reach the decoder. Default:
	// 1 << 20 (1 MiB).
	MaxBytecodeBytes int

	// MaxBlocksPerFunction bounds the number of basic blocks buildCFG may
	// partition a function into. Default: 16384.
	MaxBlocksPerFunction int

	// MaxHostSigs bounds the number of host call signatures a container may
	// declare in its host signature table. Checked once per program, not
	// per function. Default: 4096.
	MaxHostSigs int

	// AllowUnreachableCode controls whether the verifier accepts a function
	// containing basic blocks unreachable from its entry PC. Per spec,
	// unreachable code is permitted by default; embedders that want a
	// stricter container format can set this to false. Default: true.
	AllowUnreachableCode bool

	// Budgets are the dynamic resource limits applied during execution.
	Budgets Budgets

	// CallStackPreallocationSize is a call-frame preallocation hint. The VM
	// does not read it: its call stack starts empty and grows as frames
	// are pushed. Default: 64.
	CallStackPreallocationSize int
}

// Budgets are runtime resource limits checked by the VM's hot loop. A
// budget of 0 means unlimited for that dimension.
type Budgets struct {
	// MaxInstructions is the total number of instructions a single run may
	// execute before it traps with TrapInstructionQuotaExceeded. Default: 0
	// (unlimited) - callers embedding tapevm in a shared or multi-tenant
	// host should set this explicitly.
	MaxInstructions uint64

	// MaxArenaBytes bounds the combined size of the Bytes/Str/Agg arenas for
	// a single run. Default: 0 (unlimited).
	MaxArenaBytes uint64
}

// DefaultConfig returns a Config with sensible defaults for a trusted,
// single-tenant embedding. Multi-tenant hosts should set Budgets
// explicitly.
func DefaultConfig() Config {
	return Config{
		MaxCallStackDepth:          512,
		MaxRegistersPerFunction:    4096,
		MaxInstructionsPerFunction: 65536,
		MaxBytecodeBytes:           1 << 20,
		MaxBlocksPerFunction:       16384,
		MaxHostSigs:                4096,
		AllowUnreachableCode:       true,
		CallStackPreallocationSize: 64,
	}
}
