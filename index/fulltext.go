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

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/driftdb/value"
)

// DocResolver maps an internal posting-list document id back to the
// record id it indexes.
type DocResolver func(docID uint32) (value.RecordIDKey, error)

// FullTextIterator wraps a hits bitmap produced by intersecting query
// term postings (spec §4.6 "Full-text and KNN": "wrap a hits iterator
// ... and emit record ids"). Term intersection itself lives in the
// index builder / analyzer layer; this iterator only walks the final
// result set.
type FullTextIterator struct {
	docIDs  []uint32
	cursor  int
	resolve DocResolver
}

func NewFullTextIterator(hits *roaring.Bitmap, resolve DocResolver) *FullTextIterator {
	return &FullTextIterator{docIDs: hits.ToArray(), resolve: resolve}
}

func (it *FullTextIterator) NextBatch(ctx context.Context, limit int) ([]ItemRecord, error) {
	var out []ItemRecord
	for (limit <= 0 || len(out) < limit) && it.cursor < len(it.docIDs) {
		docID := it.docIDs[it.cursor]
		it.cursor++
		rk, err := it.resolve(docID)
		if err != nil {
			return nil, err
		}
		out = append(out, ItemRecord{RecordKey: rk})
	}
	return out, nil
}

func (it *FullTextIterator) NextCount(ctx context.Context, limit int) (int, error) {
	return drainCount(ctx, it, limit)
}

var _ Iterator = (*FullTextIterator)(nil)

// IntersectTerms ANDs together the posting bitmaps of every query term,
// the standard full-text AND-match strategy.
func IntersectTerms(postings ...*roaring.Bitmap) *roaring.Bitmap {
	if len(postings) == 0 {
		return roaring.New()
	}
	result := postings[0].Clone()
	for _, p := range postings[1:] {
		result.And(p)
	}
	return result
}
