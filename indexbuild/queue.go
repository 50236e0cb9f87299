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

package indexbuild

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/meta"
	"github.com/erigontech/driftdb/value"
)

// appending is the durable append-queue record (spec §4.7: "Appending {
// old_values, new_values, record_id }"). OldRaw/NewRaw hold a
// value.EncodeRow-encoded document; either may be nil (insert has no old
// value, delete has no new value).
type appending struct {
	OldRaw    []byte `codec:"old"`
	NewRaw    []byte `codec:"new"`
	RecordKey []byte `codec:"rk"`
}

// ErrEnqueued names the condition Registry.InProgress reports: an index
// is mid-build, and the caller must fall back to a base table scan
// rather than trust the partially built index (spec §4.7 item 4).
// Registry.InProgress returns the *Builder itself, not this error; no
// function in this package returns ErrEnqueued.
var ErrEnqueued = fmt.Errorf("indexbuild: index build in progress, fall back to base table")

// ErrDuplicateKey is returned when a write would insert a second record
// with the same column values into a UNIQUE index (spec §7
// Validation/Concurrency, §8 "second statement fails with a
// duplicate-key error and the table contains exactly one row").
var ErrDuplicateKey = fmt.Errorf("indexbuild: duplicate key value violates unique index constraint")

// Registry tracks builders currently in progress, keyed by (table,
// index). Write paths consult it to decide whether to maintain an index
// inline or enqueue the delta; read paths consult it to decide whether
// to trust the index or fall back to a table scan.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]*Builder
}

func NewRegistry() *Registry { return &Registry{builders: map[string]*Builder{}} }

func registryKey(table, index string) string { return table + "\x00" + index }

// Register marks (table, index) as under construction by b. Callers
// must Unregister once the builder reaches Ready.
func (r *Registry) Register(table, index string, b *Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[registryKey(table, index)] = b
}

func (r *Registry) Unregister(table, index string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.builders, registryKey(table, index))
}

// InProgress returns the in-progress Builder for (table, index), or nil
// if the index is not currently being (re)built.
func (r *Registry) InProgress(table, index string) *Builder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.builders[registryKey(table, index)]
}

// MaintainIndex applies one row mutation to a single index, either
// inline or via the append queue, depending on whether a build is in
// progress (spec §4.7 item 4). oldRow/newRow may be value.None() for an
// insert/delete respectively. Callers invoke this once per index defined
// on the table, inside the same write transaction that changed the row.
func MaintainIndex(ctx context.Context, rw kv.RwTx, reg *Registry, nsID, dbID uint64, table string, ix *meta.Index, oldRow, newRow value.Value, key value.RecordIDKey) error {
	var b *Builder
	if reg != nil {
		b = reg.InProgress(table, ix.Name)
	}
	if b == nil {
		return applyIndexDelta(ctx, rw, nsID, dbID, table, ix, oldRow, newRow, key)
	}
	return b.enqueue(ctx, rw, oldRow, newRow, key)
}

// applyIndexDelta removes the index entry derived from oldRow (if any)
// and writes the one derived from newRow (if any). For a unique index
// the insert is a Put-if-absent: a second record whose column values
// collide with an existing entry fails with ErrDuplicateKey instead of
// silently producing a second, distinct key (spec §4.6, §7, §8).
func applyIndexDelta(ctx context.Context, rw kv.RwTx, nsID, dbID uint64, table string, ix *meta.Index, oldRow, newRow value.Value, key value.RecordIDKey) error {
	unique := ix.Unique()
	if !oldRow.IsNone() {
		k, err := codec.IndexEntryKey(nsID, dbID, table, ix.Name, columnValues(oldRow, ix.Columns), key, unique)
		if err != nil {
			return err
		}
		if err := rw.Del(ctx, k); err != nil {
			return err
		}
	}
	if !newRow.IsNone() {
		k, err := codec.IndexEntryKey(nsID, dbID, table, ix.Name, columnValues(newRow, ix.Columns), key, unique)
		if err != nil {
			return err
		}
		if unique {
			if err := rw.Put(ctx, k, codec.IndexEntryValue(key), nil); err != nil {
				if errors.Is(err, kv.ErrAlreadyExists) {
					return ErrDuplicateKey
				}
				return err
			}
			return nil
		}
		if err := rw.Set(ctx, k, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// columnValues projects row's top-level fields named by columns, in
// order, substituting value.None() for an absent field.
func columnValues(row value.Value, columns []string) []value.Value {
	out := make([]value.Value, len(columns))
	for i, c := range columns {
		if row.Kind == value.KindObject {
			if v, ok := row.Object[c]; ok {
				out[i] = v
				continue
			}
		}
		out[i] = value.None()
	}
	return out
}

// enqueue assigns the next sequence number under the builder's write
// lock, appends the Appending record, and writes a PrimaryAppending
// pointer the first time a given record id is touched (spec §4.7 item
// 4, "the in-memory queue-sequence counter protected by a write lock").
func (b *Builder) enqueue(ctx context.Context, rw kv.RwTx, oldRow, newRow value.Value, key value.RecordIDKey) error {
	b.seqMu.Lock()
	seq := b.next
	b.next++
	b.seqMu.Unlock()

	var oldRaw, newRaw []byte
	var err error
	if !oldRow.IsNone() {
		if oldRaw, err = value.EncodeRow(oldRow); err != nil {
			return err
		}
	}
	if !newRow.IsNone() {
		if newRaw, err = value.EncodeRow(newRow); err != nil {
			return err
		}
	}
	rec := appending{OldRaw: oldRaw, NewRaw: newRaw, RecordKey: codec.EncodeRecordIDKey(key)}
	raw, err := encode(rec)
	if err != nil {
		return err
	}
	appendKey := codec.IndexAppendKey(b.nsID, b.dbID, b.table, b.index.Name, seq)
	if err := rw.Set(ctx, appendKey, raw, nil); err != nil {
		return err
	}

	primaryKey := codec.IndexPrimaryKey(b.nsID, b.dbID, b.table, b.index.Name, key)
	exists, err := rw.Exists(ctx, primaryKey, nil)
	if err != nil {
		return err
	}
	if !exists {
		if err := rw.Set(ctx, primaryKey, codec.EncodeUint64(seq), nil); err != nil {
			return err
		}
	}
	return nil
}
