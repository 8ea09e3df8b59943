// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapeconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tapevm/tapevm/tapevm"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := tapevm.DefaultConfig()
	if cfg != want {
		t.Errorf("got %+v, want default %+v", cfg, want)
	}
}

func TestLoadMergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tapevm.toml")
	body := `
max-call-stack-depth = 128

[budgets]
max-instructions = 9000
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxCallStackDepth != 128 {
		t.Errorf("MaxCallStackDepth = %d, want 128", cfg.MaxCallStackDepth)
	}
	if cfg.Budgets.MaxInstructions != 9000 {
		t.Errorf("Budgets.MaxInstructions = %d, want 9000", cfg.Budgets.MaxInstructions)
	}
	want := tapevm.DefaultConfig()
	if cfg.MaxRegistersPerFunction != want.MaxRegistersPerFunction {
		t.Errorf("unset field should keep default: got %d, want %d", cfg.MaxRegistersPerFunction, want.MaxRegistersPerFunction)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tapevm.toml")
	if err := os.WriteFile(path, []byte("max-call-stack-depth = 128\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv("TAPEVM_MAX_CALL_DEPTH", "256")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxCallStackDepth != 256 {
		t.Errorf("MaxCallStackDepth = %d, want env override 256", cfg.MaxCallStackDepth)
	}
}

func TestLoadInvalidEnvFails(t *testing.T) {
	t.Setenv("TAPEVM_MAX_CALL_DEPTH", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid env override, got nil")
	}
}

func TestLoadMalformedTomlFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tapevm.toml")
	if err := os.WriteFile(path, []byte("not = valid = toml"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for malformed toml, got nil")
	}
}
