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

import "context"

// UnionIterator drains a queue of per-value sub-ranges in order, each
// to exhaustion before advancing (spec §4.6 "Union": covers OR-branch
// index scans and IN-expansion).
type UnionIterator struct {
	subs []Iterator
	idx  int
}

func NewUnionIterator(subs ...Iterator) *UnionIterator {
	return &UnionIterator{subs: subs}
}

func (it *UnionIterator) NextBatch(ctx context.Context, limit int) ([]ItemRecord, error) {
	for it.idx < len(it.subs) {
		items, err := it.subs[it.idx].NextBatch(ctx, limit)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			it.idx++
			continue
		}
		return items, nil
	}
	return nil, nil
}

func (it *UnionIterator) NextCount(ctx context.Context, limit int) (int, error) {
	return drainCount(ctx, it, limit)
}

var _ Iterator = (*UnionIterator)(nil)
