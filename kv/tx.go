// Copyright 2026 The Driftdb Authors
// This file is part of Driftdb.
//
// Driftdb is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Driftdb is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Driftdb. If not, see <http://www.gnu.org/licenses/>.

// Package kv defines the transactional key-value abstraction every higher
// layer of driftdb (metadata cache, planner, executor, index access paths)
// is built on. A concrete storage engine implements Tx/RwTx (see
// kv/memkv for the in-process reference backend); everything above this
// package talks only to the interfaces here.
//
// Naming follows the erigon-lib family this package is grounded on:
//
//	Tx   - read-only transaction handle
//	RwTx - read-write transaction handle (embeds Tx)
//	k/v  - key/value byte slices
//	ts   - Versionstamp
package kv

import "context"

// CheckLevel controls what happens when a transaction value is dropped
// (goes out of scope, or Close is called) without an explicit Commit or
// Cancel having been issued first.
type CheckLevel uint8

const (
	CheckLevelIgnore CheckLevel = iota
	CheckLevelWarn
	CheckLevelError
	CheckLevelPanic
)

// Range is a half-open byte-string range [Start, End). A nil End means
// "open ended" (to the end of the keyspace); a nil Start means "from the
// beginning of the keyspace".
type Range struct {
	Start []byte
	End   []byte
}

// KV pairs a key with its value, as returned by range/prefix scans.
type KV struct {
	K []byte
	V []byte
}

// VersionedKV additionally carries the version a value was written at and
// whether the entry represents a tombstone (delete) marker.
type VersionedKV struct {
	K         []byte
	V         []byte
	Version   Versionstamp
	Tombstone bool
}

// Tx is the read side of the transaction contract (spec §4.1). All range
// operations are internally batched: implementations must stop fetching
// once the caller-visible continuation range is exhausted, never
// materializing more than one NormalFetchSize chunk ahead at a time.
type Tx interface {
	// Exists reports whether key is present. If version is non-nil the
	// backend must answer as of that version, failing with
	// ErrUnsupportedVersionedQueries if it cannot.
	Exists(ctx context.Context, key []byte, version *Versionstamp) (bool, error)

	// Get returns the value for key, or (nil, false, nil) if absent.
	Get(ctx context.Context, key []byte, version *Versionstamp) ([]byte, bool, error)

	// GetMany looks up several keys, preserving input order. Backends may
	// fetch concurrently; the result slice is always len(keys).
	GetMany(ctx context.Context, keys [][]byte) ([][]byte, error)

	// GetPrefix returns every (key, value) pair whose key has the given
	// prefix, scanning internally in NormalFetchSize chunks.
	GetPrefix(ctx context.Context, prefix []byte) ([]KV, error)

	// GetRange returns every (key, value) pair in [r.Start, r.End),
	// ascending, as of version if non-nil.
	GetRange(ctx context.Context, r Range, version *Versionstamp) ([]KV, error)

	// Scan returns up to limit (key, value) pairs from r in ascending
	// order (or descending if reverse is true and the backend supports
	// it), as of version if non-nil.
	Scan(ctx context.Context, r Range, limit int, version *Versionstamp, reverse bool) ([]KV, error)

	// Keys is Scan without values.
	Keys(ctx context.Context, r Range, limit int, version *Versionstamp, reverse bool) ([][]byte, error)

	// BatchKeys returns one page of up to batchSize keys from r plus a
	// continuation range to resume from, or a nil continuation when r is
	// exhausted.
	BatchKeys(ctx context.Context, r Range, batchSize int, version *Versionstamp) (Batch[[]byte], error)

	// BatchPairs is BatchKeys but with values attached.
	BatchPairs(ctx context.Context, r Range, batchSize int, version *Versionstamp) (Batch[KV], error)

	// BatchVersions is BatchPairs but additionally reports, per entry, the
	// version it was written at and whether it is a tombstone. Backends
	// without versioned history return ErrUnsupportedVersionedQueries.
	BatchVersions(ctx context.Context, r Range, batchSize int) (Batch[VersionedKV], error)

	// Count returns the number of keys in r, scanning internally in
	// batches rather than materializing the range.
	Count(ctx context.Context, r Range) (int, error)

	// Closed reports whether Commit or Cancel has already been called.
	Closed() bool
}

// RwTx extends Tx with mutation and versionstamp-reservation operations.
type RwTx interface {
	Tx

	// Set unconditionally writes key=val. If version is non-nil the
	// backend records the write at that explicit version rather than
	// allocating one internally (used for replaying history).
	Set(ctx context.Context, key, val []byte, version *Versionstamp) error

	// Put inserts key=val only if key is absent; returns ErrAlreadyExists
	// otherwise.
	Put(ctx context.Context, key, val []byte, version *Versionstamp) error

	// Replace writes key=val only if key is already present.
	Replace(ctx context.Context, key, val []byte) error

	// PutC is compare-and-set: succeeds iff the current value equals
	// expected (nil expected means "key must be absent").
	PutC(ctx context.Context, key, val []byte, expected []byte) error

	// Del removes key unconditionally.
	Del(ctx context.Context, key []byte) error

	// DelC is compare-and-delete: succeeds iff the current value equals
	// expected.
	DelC(ctx context.Context, key []byte, expected []byte) error

	// DeleteRange removes every key in r.
	DeleteRange(ctx context.Context, r Range) error

	// DeletePrefix removes every key with the given prefix.
	DeletePrefix(ctx context.Context, prefix []byte) error

	// GetTimestamp reserves and returns the next monotonic Versionstamp
	// for tsKey: it reads the previous 10-byte value, increments it, and
	// writes the result back as part of this transaction — so the
	// reservation only becomes durable on Commit, and a concurrent
	// modification of tsKey fails the commit (spec §4.8).
	GetTimestamp(ctx context.Context, tsKey []byte) (Versionstamp, error)

	// SetVersionstamp stores val under prefix||ts||suffix, where ts is
	// the stamp previously reserved via GetTimestamp(ctx, tsKey).
	SetVersionstamp(ctx context.Context, tsKey []byte, prefix, suffix, val []byte) error

	// Commit finalizes the transaction. After Commit, every method on Tx
	// and RwTx returns ErrTxFinished.
	Commit(ctx context.Context) error

	// Cancel aborts the transaction, discarding all writes.
	Cancel() error
}

// Capabilities reports which optional parts of the contract a backend
// implements, so callers (and the planner's cost model) can degrade
// gracefully instead of probing via trial error.
type Capabilities struct {
	ReverseScan      bool
	CompareAndSet    bool
	VersionedReads   bool
	VersionstampKeys bool
}

// Backend opens transactions against a concrete storage engine.
type Backend interface {
	Begin(ctx context.Context, writable bool) (RwTx, error)
	Capabilities() Capabilities
	Close() error
}
