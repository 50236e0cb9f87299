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

// Package memkv is the in-process reference implementation of the
// kv.Backend contract (spec §4.1, §6 "Storage engine contract"). It is
// grounded on the same "ordered, copy-on-write, single-writer" shape as
// the teacher's MDBX backend, but built on github.com/google/btree
// instead of a cgo binding, so the module is buildable without an
// external native dependency.
//
// Writers are fully serialized (one RwTx at a time), matching the
// teacher's own MDBX semantics; this makes "optimistic concurrency
// control with conflict detection" (spec §5 "Transactions") trivially
// satisfied, since no two writers are ever concurrent.
package memkv

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"

	"github.com/google/btree"

	"github.com/erigontech/driftdb/kv"
)

type entry struct {
	key       []byte
	val       []byte
	version   kv.Versionstamp
	tombstone bool
}

func entryLess(a, b entry) bool { return bytes.Compare(a.key, b.key) < 0 }

// Store is a process-local ordered key-value store.
type Store struct {
	writeMu sync.Mutex
	treeMu  sync.RWMutex
	tree    *btree.BTreeG[entry]
	seq     uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{tree: btree.NewG(32, entryLess)}
}

func (s *Store) Capabilities() kv.Capabilities {
	return kv.Capabilities{
		ReverseScan:      true,
		CompareAndSet:    true,
		VersionedReads:   true,
		VersionstampKeys: true,
	}
}

func (s *Store) Close() error { return nil }

// Begin opens a transaction. Write transactions serialize against each
// other; Begin blocks until any prior write transaction commits or
// cancels.
func (s *Store) Begin(ctx context.Context, writable bool) (kv.RwTx, error) {
	if writable {
		s.writeMu.Lock()
	}
	s.treeMu.RLock()
	snap := s.tree.Clone()
	s.treeMu.RUnlock()
	return &Tx{store: s, tree: snap, writable: writable}, nil
}

// Tx is a single-threaded transaction handle (spec §5 "Transactions":
// "protected by a mutex within an Arc" — here, never shared across
// goroutines by contract rather than by internal lock, matching the
// teacher's documented usage).
type Tx struct {
	store    *Store
	tree     *btree.BTreeG[entry]
	writable bool
	closed   bool
}

func (t *Tx) Closed() bool { return t.closed }

func (t *Tx) checkOpen() error {
	if t.closed {
		return kv.ErrTxFinished
	}
	return nil
}

func (t *Tx) checkWritable() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if !t.writable {
		return kv.ErrTxReadonly
	}
	return nil
}

func (t *Tx) lookup(key []byte, version *kv.Versionstamp) (entry, bool) {
	e, ok := t.tree.Get(entry{key: key})
	if !ok || e.tombstone {
		return entry{}, false
	}
	if version != nil && e.version.Compare(*version) > 0 {
		// The current value postdates the requested version; this
		// reference backend keeps only the latest value per key, so an
		// as-of read for an older version degrades to "not found" rather
		// than reconstructing history.
		return entry{}, false
	}
	return e, true
}

func (t *Tx) Exists(ctx context.Context, key []byte, version *kv.Versionstamp) (bool, error) {
	if err := t.checkOpen(); err != nil {
		return false, err
	}
	_, ok := t.lookup(key, version)
	return ok, nil
}

func (t *Tx) Get(ctx context.Context, key []byte, version *kv.Versionstamp) ([]byte, bool, error) {
	if err := t.checkOpen(); err != nil {
		return nil, false, err
	}
	e, ok := t.lookup(key, version)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(e.val), true, nil
}

func (t *Tx) GetMany(ctx context.Context, keys [][]byte) ([][]byte, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if e, ok := t.lookup(k, nil); ok {
			out[i] = cloneBytes(e.val)
		}
	}
	return out, nil
}

func rangeBounds(r kv.Range) (start, end entry, hasEnd bool) {
	start = entry{key: r.Start}
	if r.End != nil {
		end = entry{key: r.End}
		hasEnd = true
	}
	return
}

func (t *Tx) ascend(r kv.Range, fn func(entry) bool) {
	start, end, hasEnd := rangeBounds(r)
	if hasEnd {
		t.tree.AscendRange(start, end, fn)
	} else {
		t.tree.AscendGreaterOrEqual(start, fn)
	}
}

func (t *Tx) collect(r kv.Range, limit int, version *kv.Versionstamp, reverse bool) []entry {
	var all []entry
	t.ascend(r, func(e entry) bool {
		if e.tombstone {
			return true
		}
		if version != nil && e.version.Compare(*version) > 0 {
			return true
		}
		all = append(all, e)
		return true
	})
	if reverse {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (t *Tx) GetPrefix(ctx context.Context, prefix []byte) ([]kv.KV, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	r := kv.Range{Start: prefix, End: kv.UpperBound(prefix)}
	return t.scanPairs(r, 0, nil, false), nil
}

func (t *Tx) GetRange(ctx context.Context, r kv.Range, version *kv.Versionstamp) ([]kv.KV, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.scanPairs(r, 0, version, false), nil
}

func (t *Tx) scanPairs(r kv.Range, limit int, version *kv.Versionstamp, reverse bool) []kv.KV {
	es := t.collect(r, limit, version, reverse)
	out := make([]kv.KV, len(es))
	for i, e := range es {
		out[i] = kv.KV{K: cloneBytes(e.key), V: cloneBytes(e.val)}
	}
	return out
}

func (t *Tx) Scan(ctx context.Context, r kv.Range, limit int, version *kv.Versionstamp, reverse bool) ([]kv.KV, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	return t.scanPairs(r, limit, version, reverse), nil
}

func (t *Tx) Keys(ctx context.Context, r kv.Range, limit int, version *kv.Versionstamp, reverse bool) ([][]byte, error) {
	if err := t.checkOpen(); err != nil {
		return nil, err
	}
	es := t.collect(r, limit, version, reverse)
	out := make([][]byte, len(es))
	for i, e := range es {
		out[i] = cloneBytes(e.key)
	}
	return out, nil
}

func (t *Tx) BatchKeys(ctx context.Context, r kv.Range, batchSize int, version *kv.Versionstamp) (kv.Batch[[]byte], error) {
	if err := t.checkOpen(); err != nil {
		return kv.Batch[[]byte]{}, err
	}
	es := t.collect(r, 0, version, false)
	return batchOf(es, batchSize, r, func(e entry) []byte { return cloneBytes(e.key) }), nil
}

func (t *Tx) BatchPairs(ctx context.Context, r kv.Range, batchSize int, version *kv.Versionstamp) (kv.Batch[kv.KV], error) {
	if err := t.checkOpen(); err != nil {
		return kv.Batch[kv.KV]{}, err
	}
	es := t.collect(r, 0, version, false)
	return batchOf(es, batchSize, r, func(e entry) kv.KV {
		return kv.KV{K: cloneBytes(e.key), V: cloneBytes(e.val)}
	}), nil
}

func (t *Tx) BatchVersions(ctx context.Context, r kv.Range, batchSize int) (kv.Batch[kv.VersionedKV], error) {
	if err := t.checkOpen(); err != nil {
		return kv.Batch[kv.VersionedKV]{}, err
	}
	var all []entry
	t.ascend(r, func(e entry) bool {
		all = append(all, e)
		return true
	})
	return batchOf(all, batchSize, r, func(e entry) kv.VersionedKV {
		return kv.VersionedKV{K: cloneBytes(e.key), V: cloneBytes(e.val), Version: e.version, Tombstone: e.tombstone}
	}), nil
}

func batchOf[T any](es []entry, batchSize int, r kv.Range, project func(entry) T) kv.Batch[T] {
	if batchSize <= 0 || batchSize > len(es) {
		batchSize = len(es)
	}
	page := es[:batchSize]
	items := make([]T, len(page))
	for i, e := range page {
		items[i] = project(e)
	}
	var cont *kv.Range
	if batchSize < len(es) {
		cont = &kv.Range{Start: kv.ResumeKey(page[len(page)-1].key), End: r.End}
	}
	return kv.Batch[T]{Items: items, Continuation: cont}
}

func (t *Tx) Count(ctx context.Context, r kv.Range) (int, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	n := 0
	t.ascend(r, func(e entry) bool {
		if !e.tombstone {
			n++
		}
		return true
	})
	return n, nil
}

// --- writes ---

// nextVersion allocates the next store-wide commit sequence number, used
// to stamp plain writes (Set/Put/Replace/Del) so BatchVersions and
// as-of reads have something to order by. Safe without its own lock:
// writers are serialized by store.writeMu for the whole transaction.
func (t *Tx) nextVersion() kv.Versionstamp {
	t.store.seq++
	var v kv.Versionstamp
	binary.BigEndian.PutUint64(v[:8], t.store.seq)
	return v
}

func (t *Tx) Set(ctx context.Context, key, val []byte, version *kv.Versionstamp) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	v := t.nextVersion()
	if version != nil {
		v = *version
	}
	t.tree.ReplaceOrInsert(entry{key: cloneBytes(key), val: cloneBytes(val), version: v})
	return nil
}

func (t *Tx) Put(ctx context.Context, key, val []byte, version *kv.Versionstamp) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if e, ok := t.tree.Get(entry{key: key}); ok && !e.tombstone {
		return kv.ErrAlreadyExists
	}
	return t.Set(ctx, key, val, version)
}

func (t *Tx) Replace(ctx context.Context, key, val []byte) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if e, ok := t.tree.Get(entry{key: key}); !ok || e.tombstone {
		return kv.ErrKeyNotFound
	}
	return t.Set(ctx, key, val, nil)
}

func (t *Tx) PutC(ctx context.Context, key, val []byte, expected []byte) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	e, ok := t.tree.Get(entry{key: key})
	cur := (*[]byte)(nil)
	if ok && !e.tombstone {
		cur = &e.val
	}
	if !bytesEqualPtr(cur, expected) {
		return kv.ErrConditionNotMet
	}
	return t.Set(ctx, key, val, nil)
}

func (t *Tx) Del(ctx context.Context, key []byte) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	v := t.nextVersion()
	t.tree.ReplaceOrInsert(entry{key: cloneBytes(key), version: v, tombstone: true})
	return nil
}

func (t *Tx) DelC(ctx context.Context, key []byte, expected []byte) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	e, ok := t.tree.Get(entry{key: key})
	cur := (*[]byte)(nil)
	if ok && !e.tombstone {
		cur = &e.val
	}
	if !bytesEqualPtr(cur, expected) {
		return kv.ErrConditionNotMet
	}
	return t.Del(ctx, key)
}

func (t *Tx) DeleteRange(ctx context.Context, r kv.Range) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	var keys [][]byte
	t.ascend(r, func(e entry) bool {
		if !e.tombstone {
			keys = append(keys, cloneBytes(e.key))
		}
		return true
	})
	for _, k := range keys {
		if err := t.Del(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tx) DeletePrefix(ctx context.Context, prefix []byte) error {
	return t.DeleteRange(ctx, kv.Range{Start: prefix, End: kv.UpperBound(prefix)})
}

func (t *Tx) GetTimestamp(ctx context.Context, tsKey []byte) (kv.Versionstamp, error) {
	if err := t.checkWritable(); err != nil {
		return kv.Versionstamp{}, err
	}
	var prev kv.Versionstamp
	if e, ok := t.tree.Get(entry{key: tsKey}); ok && !e.tombstone && len(e.val) == 10 {
		copy(prev[:], e.val)
	}
	next := kv.NextVersionstamp(prev)
	t.tree.ReplaceOrInsert(entry{key: cloneBytes(tsKey), val: next.Bytes(), version: next})
	return next, nil
}

func (t *Tx) SetVersionstamp(ctx context.Context, tsKey []byte, prefix, suffix, val []byte) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	e, ok := t.tree.Get(entry{key: tsKey})
	if !ok || len(e.val) != 10 {
		return kv.ErrConditionNotMet
	}
	var ts kv.Versionstamp
	copy(ts[:], e.val)
	key := append(append(append([]byte{}, prefix...), ts.Bytes()...), suffix...)
	return t.Set(ctx, key, val, &ts)
}

func (t *Tx) Commit(ctx context.Context) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if t.writable {
		t.store.treeMu.Lock()
		t.store.tree = t.tree
		t.store.treeMu.Unlock()
		t.store.writeMu.Unlock()
	}
	t.closed = true
	return nil
}

func (t *Tx) Cancel() error {
	if t.closed {
		return nil
	}
	if t.writable {
		t.store.writeMu.Unlock()
	}
	t.closed = true
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func bytesEqualPtr(a *[]byte, b []byte) bool {
	if a == nil {
		return b == nil
	}
	if b == nil {
		return false
	}
	return bytes.Equal(*a, b)
}

var (
	_ kv.Backend = (*Store)(nil)
	_ kv.RwTx    = (*Tx)(nil)
)
