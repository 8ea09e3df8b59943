// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

package tapecache

import (
	"testing"

	"github.com/tapevm/tapevm/tapevm"
)

func minimalContainer() []byte {
	p := &tapevm.Program{
		Symbols: [][]byte{[]byte("\x00")},
		Functions: []tapevm.FunctionEntry{
			{RegCount: 0, BytecodeLen: 1},
		},
		Bytecode: []byte{byte(tapevm.OpRet), 0},
		Spans:    [][]tapevm.SpanEntry{{}},
	}
	p.Functions[0].BytecodeLen = 2
	return tapevm.EncodeProgram(p)
}

func TestStoreMissThenHit(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	data := minimalContainer()
	cfg := tapevm.DefaultConfig()
	key := Key{ContentHash: HashContainer(data), ConfigHash: HashConfig(cfg)}

	if _, hit, err := s.Lookup(key); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	} else if hit {
		t.Fatalf("expected miss on empty cache")
	}

	if err := s.Store(key, data); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, hit, err := s.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit after Store")
	}
	if string(got) != string(data) {
		t.Errorf("cached bytes do not match stored bytes")
	}
}

func TestHashConfigDiffersOnLimitChange(t *testing.T) {
	a := tapevm.DefaultConfig()
	b := tapevm.DefaultConfig()
	b.MaxCallStackDepth = a.MaxCallStackDepth + 1

	if HashConfig(a) == HashConfig(b) {
		t.Errorf("expected different config hashes for different limits")
	}
}

func TestLoadVerifiedCachesAcrossCalls(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	data := minimalContainer()
	cfg := tapevm.DefaultConfig()

	vp1, err := s.LoadVerified(data, cfg)
	if err != nil {
		t.Fatalf("LoadVerified (miss) failed: %v", err)
	}
	vp2, err := s.LoadVerified(data, cfg)
	if err != nil {
		t.Fatalf("LoadVerified (hit) failed: %v", err)
	}
	if len(vp1.Functions) != len(vp2.Functions) {
		t.Errorf("verified program function count differs across cache hit/miss")
	}
}

// TestLoadVerifiedHitSkipsReverification corrupts the cached container bytes
// directly in the database after a miss populates the cache, then confirms a
// subsequent hit still returns a valid VerifiedProgram - proof that the hit
// path returns the stored VerifiedProgram rather than re-decoding the
// (now-corrupt) container bytes.
func TestLoadVerifiedHitSkipsReverification(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	data := minimalContainer()
	cfg := tapevm.DefaultConfig()

	vp1, err := s.LoadVerified(data, cfg)
	if err != nil {
		t.Fatalf("LoadVerified (miss) failed: %v", err)
	}

	key := Key{ContentHash: HashContainer(data), ConfigHash: HashConfig(cfg)}
	if _, err := s.db.Exec("UPDATE programs SET container = ? WHERE hash = ?", []byte("not a valid container"), key.ContentHash); err != nil {
		t.Fatalf("corrupt cached container: %v", err)
	}

	vp2, err := s.LoadVerified(data, cfg)
	if err != nil {
		t.Fatalf("LoadVerified (hit) failed despite corrupted cached container: %v", err)
	}
	if len(vp1.Functions) != len(vp2.Functions) {
		t.Errorf("verified program function count differs across cache hit/miss")
	}
}
