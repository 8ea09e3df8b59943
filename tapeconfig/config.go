// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

// Package tapeconfig loads tapevm.Config from a layered set of sources: the
// built-in defaults, an optional tapevm.toml file, and TAPEVM_* environment
// variables, applied in that order so each layer overrides the last.
package tapeconfig

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/tapevm/tapevm/tapevm"
)

// fileConfig mirrors tapevm.Config's shape for TOML unmarshaling. Every
// field is a pointer so an absent key in the file leaves the default (or an
// earlier layer's value) untouched instead of zeroing it out.
type fileConfig struct {
	MaxCallStackDepth          *int     `toml:"max-call-stack-depth"`
	MaxRegistersPerFunction    *int     `toml:"max-registers-per-function"`
	MaxInstructionsPerFunction *int     `toml:"max-instructions-per-function"`
	MaxBytecodeBytes           *int     `toml:"max-bytecode-bytes"`
	MaxBlocksPerFunction       *int     `toml:"max-blocks-per-function"`
	MaxHostSigs                *int     `toml:"max-host-sigs"`
	AllowUnreachableCode       *bool    `toml:"allow-unreachable-code"`
	CallStackPreallocationSize *int     `toml:"call-stack-preallocation-size"`
	Budgets                    *Budgets `toml:"budgets"`
}

// Budgets mirrors tapevm.Budgets for TOML unmarshaling.
type Budgets struct {
	MaxInstructions *uint64 `toml:"max-instructions"`
	MaxArenaBytes   *uint64 `toml:"max-arena-bytes"`
}

// Load builds a tapevm.Config starting from tapevm.DefaultConfig, merging in
// the first path in paths that exists (later paths are fallbacks, not
// additional layers), then applying TAPEVM_* environment overrides. A nil
// paths list or a list where no file exists is not an error: Load falls
// back to defaults plus environment.
func Load(paths ...string) (tapevm.Config, error) {
	cfg := tapevm.DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return tapevm.Config{}, fmt.Errorf("tapeconfig: read %s: %w", path, err)
		}
		var fc fileConfig
		if err := toml.Unmarshal(data, &fc); err != nil {
			return tapevm.Config{}, fmt.Errorf("tapeconfig: parse %s: %w", path, err)
		}
		applyFileConfig(&cfg, &fc)
		break
	}

	if err := applyEnv(&cfg); err != nil {
		return tapevm.Config{}, err
	}
	return cfg, nil
}

func applyFileConfig(cfg *tapevm.Config, fc *fileConfig) {
	if fc.MaxCallStackDepth != nil {
		cfg.MaxCallStackDepth = *fc.MaxCallStackDepth
	}
	if fc.MaxRegistersPerFunction != nil {
		cfg.MaxRegistersPerFunction = *fc.MaxRegistersPerFunction
	}
	if fc.MaxInstructionsPerFunction != nil {
		cfg.MaxInstructionsPerFunction = *fc.MaxInstructionsPerFunction
	}
	if fc.MaxBytecodeBytes != nil {
		cfg.MaxBytecodeBytes = *fc.MaxBytecodeBytes
	}
	if fc.MaxBlocksPerFunction != nil {
		cfg.MaxBlocksPerFunction = *fc.MaxBlocksPerFunction
	}
	if fc.MaxHostSigs != nil {
		cfg.MaxHostSigs = *fc.MaxHostSigs
	}
	if fc.AllowUnreachableCode != nil {
		cfg.AllowUnreachableCode = *fc.AllowUnreachableCode
	}
	if fc.CallStackPreallocationSize != nil {
		cfg.CallStackPreallocationSize = *fc.CallStackPreallocationSize
	}
	if fc.Budgets != nil {
		if fc.Budgets.MaxInstructions != nil {
			cfg.Budgets.MaxInstructions = *fc.Budgets.MaxInstructions
		}
		if fc.Budgets.MaxArenaBytes != nil {
			cfg.Budgets.MaxArenaBytes = *fc.Budgets.MaxArenaBytes
		}
	}
}

// envOverrides lists the TAPEVM_* variables Load recognizes and how each
// one is parsed into the config.
var envOverrides = []struct {
	name  string
	apply func(cfg *tapevm.Config, raw string) error
}{
	{"TAPEVM_MAX_INSTRUCTIONS", func(cfg *tapevm.Config, raw string) error {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		cfg.Budgets.MaxInstructions = v
		return nil
	}},
	{"TAPEVM_MAX_MEMORY_BYTES", func(cfg *tapevm.Config, raw string) error {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		cfg.Budgets.MaxArenaBytes = v
		return nil
	}},
	{"TAPEVM_MAX_CALL_DEPTH", func(cfg *tapevm.Config, raw string) error {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		cfg.MaxCallStackDepth = v
		return nil
	}},
}

func applyEnv(cfg *tapevm.Config) error {
	for _, o := range envOverrides {
		raw, ok := os.LookupEnv(o.name)
		if !ok || raw == "" {
			continue
		}
		if err := o.apply(cfg, raw); err != nil {
			return fmt.Errorf("tapeconfig: invalid %s=%q: %w", o.name, raw, err)
		}
	}
	return nil
}
