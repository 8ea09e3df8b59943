// Copyright 2026 the Tapevm Authors
// SPDX-License-Identifier: Apache-2.0

// Package tapecache caches decoded-and-verified tapevm programs keyed by the
// blake3 hash of their container bytes plus the verification config they
// were checked against: a config change invalidates every cached entry that
// was verified under a looser or different set of limits.
package tapecache

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"

	"github.com/tapevm/tapevm/tapevm"
)

// Store is a SQLite-backed cache of decoded-and-verified Programs, keyed by
// content hash. Alongside the raw container it stores a gob-encoded
// VerifiedProgram, so a cache hit can hand back the verified form directly
// without re-running the decoder or the verifier.
type Store struct {
	db *sql.DB
}

// Open opens or creates a cache database at path. An empty path uses an
// in-memory database, useful for tests and one-shot CLI invocations.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tapecache: open %s: %w", path, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		hash TEXT PRIMARY KEY,
		config_hash TEXT NOT NULL,
		container BLOB NOT NULL,
		verified BLOB
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("tapecache: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Key identifies a cache entry: the content hash of the container bytes,
// and the hash of the Config the entry was (or must be) verified against.
type Key struct {
	ContentHash string
	ConfigHash  string
}

// HashContainer returns the base58-encoded blake3 hash of raw container
// bytes, used as the content half of a cache Key and shown by the CLI's
// cache subcommand.
func HashContainer(data []byte) string {
	sum := blake3.Sum256(data)
	return base58.Encode(sum[:])
}

// HashConfig returns the base58-encoded blake3 hash of the verification
// limits that were in effect, so a config change invalidates cached entries
// that were verified more permissively.
func HashConfig(cfg tapevm.Config) string {
	var buf [65]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(cfg.MaxCallStackDepth))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(cfg.MaxRegistersPerFunction))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(cfg.MaxInstructionsPerFunction))
	binary.LittleEndian.PutUint64(buf[24:32], cfg.Budgets.MaxInstructions)
	binary.LittleEndian.PutUint64(buf[32:40], cfg.Budgets.MaxArenaBytes)
	binary.LittleEndian.PutUint64(buf[40:48], uint64(cfg.MaxBytecodeBytes))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(cfg.MaxBlocksPerFunction))
	binary.LittleEndian.PutUint64(buf[56:64], uint64(cfg.MaxHostSigs))
	if cfg.AllowUnreachableCode {
		buf[64] = 1
	}
	sum := blake3.Sum256(buf[:])
	return base58.Encode(sum[:])
}

// Lookup returns the cached container bytes for key, if any.
func (s *Store) Lookup(key Key) ([]byte, bool, error) {
	var container []byte
	err := s.db.QueryRow(
		"SELECT container FROM programs WHERE hash = ? AND config_hash = ?",
		key.ContentHash, key.ConfigHash,
	).Scan(&container)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("tapecache: lookup: %w", err)
	}
	return container, true, nil
}

// Store records container under key, replacing any existing entry with the
// same content hash (a stale config_hash for that content is discarded).
// The verified form is left unset; LoadVerified falls back to decoding and
// verifying on the next lookup for an entry stored this way.
func (s *Store) Store(key Key, container []byte) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO programs (hash, config_hash, container, verified) VALUES (?, ?, ?, NULL)",
		key.ContentHash, key.ConfigHash, container,
	)
	if err != nil {
		return fmt.Errorf("tapecache: store: %w", err)
	}
	return nil
}

// storeVerified records both the raw container and the gob-encoded
// VerifiedProgram produced from it, so a later hit can skip decode+verify
// entirely.
func (s *Store) storeVerified(key Key, container []byte, verified []byte) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO programs (hash, config_hash, container, verified) VALUES (?, ?, ?, ?)",
		key.ContentHash, key.ConfigHash, container, verified,
	)
	if err != nil {
		return fmt.Errorf("tapecache: store: %w", err)
	}
	return nil
}

// lookupVerified returns the cached container bytes and, if present, the
// gob-encoded VerifiedProgram alongside it.
func (s *Store) lookupVerified(key Key) (container []byte, verified []byte, hit bool, err error) {
	err = s.db.QueryRow(
		"SELECT container, verified FROM programs WHERE hash = ? AND config_hash = ?",
		key.ContentHash, key.ConfigHash,
	).Scan(&container, &verified)
	if err == sql.ErrNoRows {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("tapecache: lookup: %w", err)
	}
	return container, verified, true, nil
}

func encodeVerified(vp *tapevm.VerifiedProgram) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vp); err != nil {
		return nil, fmt.Errorf("tapecache: encode verified program: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeVerified(data []byte) (*tapevm.VerifiedProgram, error) {
	var vp tapevm.VerifiedProgram
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&vp); err != nil {
		return nil, fmt.Errorf("tapecache: decode verified program: %w", err)
	}
	return &vp, nil
}

// LoadVerified looks up a container by its raw bytes and the config it will
// be verified under. A cache hit with a stored verified form skips the
// decoder and verifier entirely and returns the cached VerifiedProgram
// directly; a hit without one (an entry written by Store rather than
// LoadVerified) still avoids redundant I/O but re-verifies the cached
// bytes. A miss decodes and verifies the given data and stores both forms
// for next time.
func (s *Store) LoadVerified(data []byte, cfg tapevm.Config) (*tapevm.VerifiedProgram, error) {
	key := Key{ContentHash: HashContainer(data), ConfigHash: HashConfig(cfg)}

	cached, verifiedBlob, hit, err := s.lookupVerified(key)
	if err != nil {
		return nil, err
	}
	if hit {
		data = cached
		if verifiedBlob != nil {
			return decodeVerified(verifiedBlob)
		}
	}

	p, err := tapevm.DecodeProgram(data)
	if err != nil {
		return nil, err
	}
	vp, err := tapevm.Verify(p, cfg)
	if err != nil {
		return nil, err
	}

	blob, err := encodeVerified(vp)
	if err != nil {
		return nil, err
	}
	if err := s.storeVerified(key, data, blob); err != nil {
		return nil, err
	}
	return vp, nil
}
