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

package exec

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/erigontech/driftdb/index"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/value"
)

// NewFullTextScan wraps a posting-list hit set as an index-backed
// search operator (spec §4.5 "FullTextScan, KnnScan").
func NewFullTextScan(tx kv.Tx, nsID, dbID uint64, table string, hits *roaring.Bitmap, resolve index.DocResolver) Operator {
	it := index.NewFullTextIterator(hits, resolve)
	return &indexIteratorScan{tx: tx, nsID: nsID, dbID: dbID, table: table, it: it, label: "FullTextScan"}
}

// KnnQuery is the (vector, k, ef) triple a KnnScan carries, plus an
// optional residual predicate applied during candidate selection so
// non-matching rows never consume a top-K slot (spec §4.5).
type KnnQuery struct {
	Vector    []float32
	K         int
	Ef        int
	Predicate func(value.RecordIDKey) bool
}

// NewKnnScan builds a KNN search operator over a pre-scored candidate
// stream (the ANN index that produces candidate/distance pairs from a
// vector is out of scope for the reference engine, per DESIGN.md; this
// operator performs the bounded top-K selection and residual-predicate
// filtering spec §4.5 assigns to KnnScan).
func NewKnnScan(tx kv.Tx, nsID, dbID uint64, table string, q KnnQuery, candidates []index.Candidate) Operator {
	it := index.NewKnnIterator(q.K, q.Predicate)
	for _, c := range candidates {
		it.Feed(c)
	}
	return &indexIteratorScan{tx: tx, nsID: nsID, dbID: dbID, table: table, it: it, label: "KnnScan"}
}
