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

	"github.com/google/btree"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/value"
)

// LocalFactory opens a local (equality or unique-equality) iterator for
// one distinct remote record id encountered while draining the remote
// side of a join.
type LocalFactory func(remoteKey value.RecordIDKey) (Iterator, error)

// JoinIterator consumes a remote iterator to obtain record ids, then,
// for each distinct remote id, opens a local iterator keyed by that id
// (spec §4.6 "Join"). Distinctness is enforced with an ordered set of
// already-seen encoded remote keys, grounded on the same btree package
// used by kv/memkv rather than a hand-rolled trie.
type JoinIterator struct {
	remote  Iterator
	local   LocalFactory
	seen    *btree.BTreeG[string]
	pending Iterator
}

func NewJoinIterator(remote Iterator, local LocalFactory) *JoinIterator {
	return &JoinIterator{
		remote: remote,
		local:  local,
		seen:   btree.NewG(32, func(a, b string) bool { return a < b }),
	}
}

func (it *JoinIterator) NextBatch(ctx context.Context, limit int) ([]ItemRecord, error) {
	var out []ItemRecord
	for limit <= 0 || len(out) < limit {
		if it.pending != nil {
			want := limit - len(out)
			if limit <= 0 {
				want = 0
			}
			items, err := it.pending.NextBatch(ctx, want)
			if err != nil {
				return nil, err
			}
			if len(items) == 0 {
				it.pending = nil
				continue
			}
			out = append(out, items...)
			continue
		}
		remoteItems, err := it.remote.NextBatch(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(remoteItems) == 0 {
			break
		}
		rk := remoteItems[0].RecordKey
		enc := string(codec.EncodeRecordIDKey(rk))
		if it.seen.Has(enc) {
			continue
		}
		it.seen.ReplaceOrInsert(enc)
		local, err := it.local(rk)
		if err != nil {
			return nil, err
		}
		it.pending = local
	}
	return out, nil
}

func (it *JoinIterator) NextCount(ctx context.Context, limit int) (int, error) {
	return drainCount(ctx, it, limit)
}

var _ Iterator = (*JoinIterator)(nil)
