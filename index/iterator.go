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

// Package index implements the index access iterators of spec §4.6:
// equality, range (forward/reverse), union, join, full-text, and KNN,
// all sharing one next_batch/next_count contract so the executor's
// IndexScan/UnionIndexScan operators (package exec) don't need to know
// which variant they're driving.
package index

import (
	"context"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/value"
)

// ItemRecord is either a bare key (record id plus the raw index-entry
// key it came from, for pagination) or a key+value when the access path
// already fetched the value (e.g. KNN candidates carry a distance).
type ItemRecord struct {
	RecordKey   value.RecordIDKey
	IndexKey    []byte
	Value       *value.Value
	Distance    float64
	HasDistance bool
}

// Iterator is the shared index-access contract (spec §4.6).
type Iterator interface {
	// NextBatch returns up to limit items (0 means "as many as
	// convenient"); an empty, nil-error result means exhausted.
	NextBatch(ctx context.Context, limit int) ([]ItemRecord, error)
	// NextCount returns how many items remain, up to limit, without
	// materializing their values. The default implementation for most
	// iterators just drains NextBatch and counts.
	NextCount(ctx context.Context, limit int) (int, error)
}

// drainCount is the shared next_count fallback: keep pulling batches
// until exhausted or limit reached. Only appropriate for iterators whose
// NextBatch is cheap to call repeatedly (true of all variants here,
// since none of them materialize values eagerly except KNN).
func drainCount(ctx context.Context, it Iterator, limit int) (int, error) {
	n := 0
	for limit <= 0 || n < limit {
		batch := limit - n
		if limit <= 0 {
			batch = 0
		}
		items, err := it.NextBatch(ctx, batch)
		if err != nil {
			return n, err
		}
		if len(items) == 0 {
			break
		}
		n += len(items)
	}
	return n, nil
}

// EqualityIterator implements spec §4.6 "Equality (index and unique)":
// the key is encoded once, then either a single Get (unique index) or a
// prefix scan (non-unique), paginated by appending 0x00 to the last
// returned key.
type EqualityIterator struct {
	tx                       kv.Tx
	nsID, dbID               uint64
	table, indexName         string
	columns                  []value.Value
	unique                   bool
	cursor                   []byte
	exhausted                bool
}

// NewEqualityIterator builds an equality access path over nsID/dbID's
// table/indexName, pinned to the given column values.
func NewEqualityIterator(tx kv.Tx, nsID, dbID uint64, table, indexName string, columns []value.Value, unique bool) *EqualityIterator {
	return &EqualityIterator{tx: tx, nsID: nsID, dbID: dbID, table: table, indexName: indexName, columns: columns, unique: unique}
}

func (it *EqualityIterator) prefix() []byte {
	p := codec.IndexEntryPrefix(it.nsID, it.dbID, it.table, it.indexName)
	for _, c := range it.columns {
		p = append(p, codec.EncodeValue(c)...)
	}
	return p
}

func (it *EqualityIterator) NextBatch(ctx context.Context, limit int) ([]ItemRecord, error) {
	if it.exhausted {
		return nil, nil
	}
	prefix := it.prefix()
	start := prefix
	if it.cursor != nil {
		start = it.cursor
	}
	end := codec.PrefixEnd(prefix)
	effectiveLimit := limit
	if it.unique {
		effectiveLimit = 1
	}
	pairs, err := it.tx.Scan(ctx, kv.Range{Start: start, End: end}, effectiveLimit, nil, false)
	if err != nil {
		return nil, err
	}
	switch {
	case len(pairs) == 0, it.unique, limit <= 0:
		it.exhausted = true
	case len(pairs) < limit:
		it.exhausted = true
	default:
		it.cursor = kv.ResumeKey(pairs[len(pairs)-1].K)
	}
	items := make([]ItemRecord, 0, len(pairs))
	for _, p := range pairs {
		var rk value.RecordIDKey
		var err error
		if it.unique {
			// A unique entry's key carries only the indexed columns; the
			// record key lives in the value (see codec.IndexEntryKey).
			rk, err = codec.DecodeIndexEntryValue(p.V)
		} else {
			rk, _, err = codec.DecodeRecordIDKey(p.K[len(prefix):])
		}
		if err != nil {
			return nil, err
		}
		items = append(items, ItemRecord{RecordKey: rk, IndexKey: p.K})
	}
	return items, nil
}

func (it *EqualityIterator) NextCount(ctx context.Context, limit int) (int, error) {
	return drainCount(ctx, it, limit)
}

var _ Iterator = (*EqualityIterator)(nil)
