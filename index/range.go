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

package index

import (
	"context"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/value"
)

// Bound is one endpoint of a column range: an encoded value plus whether
// it is inclusive. A nil Value means "open" on that side.
type Bound struct {
	Value   *value.Value
	Incl    bool
}

// RangeIterator implements spec §4.6 "Range (forward and reverse)": a
// RangeScan over a fixed equality prefix (composite range support) plus
// one ranged trailing column. Reverse iteration is handled natively by
// the backend's Scan(reverse=true), so — unlike a backend whose reverse
// API excludes the end key — no extra point probe is required here.
type RangeIterator struct {
	tx               kv.Tx
	prefix           []byte
	begin, end       Bound
	reverse          bool
	unique           bool
	lo, hi           []byte // current frontier, narrows as batches are consumed
	started          bool
	exhausted        bool
}

// NewRangeIterator builds a range access path pinned to prefix (the
// equality-matched leading columns already encoded) ranging over the
// next column between begin and end. unique must match the underlying
// index's uniqueness: a unique index's entry keys carry only indexed
// column values, with the record key stored in the entry's value
// instead (see codec.IndexEntryKey).
func NewRangeIterator(tx kv.Tx, prefix []byte, begin, end Bound, reverse, unique bool) *RangeIterator {
	return &RangeIterator{tx: tx, prefix: prefix, begin: begin, end: end, reverse: reverse, unique: unique}
}

func (it *RangeIterator) init() {
	if it.started {
		return
	}
	it.started = true
	it.lo = it.prefix
	if it.begin.Value != nil {
		b := append(append([]byte{}, it.prefix...), codec.EncodeValue(*it.begin.Value)...)
		if !it.begin.Incl {
			// skip every entry of the begin value, record-key suffix included
			b = kv.UpperBound(b)
		}
		it.lo = b
	}
	it.hi = codec.PrefixEnd(it.prefix)
	if it.end.Value != nil {
		e := append(append([]byte{}, it.prefix...), codec.EncodeValue(*it.end.Value)...)
		if it.end.Incl {
			e = kv.UpperBound(e)
		}
		it.hi = e
	}
}

func (it *RangeIterator) NextBatch(ctx context.Context, limit int) ([]ItemRecord, error) {
	it.init()
	if it.exhausted {
		return nil, nil
	}
	pairs, err := it.tx.Scan(ctx, kv.Range{Start: it.lo, End: it.hi}, limit, nil, it.reverse)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		it.exhausted = true
		return nil, nil
	}
	if limit <= 0 || len(pairs) < limit {
		it.exhausted = true
	} else if it.reverse {
		it.hi = pairs[len(pairs)-1].K
	} else {
		it.lo = kv.ResumeKey(pairs[len(pairs)-1].K)
	}
	items := make([]ItemRecord, len(pairs))
	for i, p := range pairs {
		var rk value.RecordIDKey
		var err error
		if it.unique {
			rk, err = codec.DecodeIndexEntryValue(p.V)
		} else {
			tail := p.K[len(it.prefix):]
			var n int
			if _, n, err = codec.DecodeValue(tail); err == nil { // the ranged column itself
				rk, _, err = codec.DecodeRecordIDKey(tail[n:])
			}
		}
		if err != nil {
			return nil, err
		}
		items[i] = ItemRecord{RecordKey: rk, IndexKey: p.K}
	}
	return items, nil
}

func (it *RangeIterator) NextCount(ctx context.Context, limit int) (int, error) {
	return drainCount(ctx, it, limit)
}

var _ Iterator = (*RangeIterator)(nil)
