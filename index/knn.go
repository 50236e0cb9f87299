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
	"container/heap"
	"context"
	"sort"

	"github.com/erigontech/driftdb/value"
)

// Candidate is one vector-index hit before top-K selection.
type Candidate struct {
	RecordKey value.RecordIDKey
	Distance  float64
}

// knnHeap is a bounded max-heap on Distance: the worst of the current
// top-K sits at the root so a new, closer candidate can evict it in
// O(log k) (standard container/heap top-K pattern; no pack example
// ships a KNN/ANN library, so this is the documented stdlib exception —
// see DESIGN.md).
type knnHeap []Candidate

func (h knnHeap) Len() int            { return len(h) }
func (h knnHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h knnHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *knnHeap) Push(x any)         { *h = append(*h, x.(Candidate)) }
func (h *knnHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// KnnIterator is the top-k selection step of a KNN scan (spec §4.6). It
// holds only k, which bounds the result; the query vector and ef (how
// many candidates the caller feeds in, the recall/speed knob of the
// upstream ANN index) stay with the caller. A residual predicate, if set, is
// applied during candidate selection so non-matching rows never
// consume a top-K slot.
type KnnIterator struct {
	k         int
	predicate func(value.RecordIDKey) bool
	h         knnHeap
	results   []Candidate
	built     bool
	cursor    int
}

func NewKnnIterator(k int, predicate func(value.RecordIDKey) bool) *KnnIterator {
	return &KnnIterator{k: k, predicate: predicate}
}

// Feed offers one candidate; it is kept only if it ranks among the k
// closest seen so far (and, if a residual predicate is set, passes it).
func (it *KnnIterator) Feed(c Candidate) {
	if it.predicate != nil && !it.predicate(c.RecordKey) {
		return
	}
	if len(it.h) < it.k {
		heap.Push(&it.h, c)
		return
	}
	if len(it.h) > 0 && c.Distance < it.h[0].Distance {
		heap.Pop(&it.h)
		heap.Push(&it.h, c)
	}
}

func (it *KnnIterator) build() {
	if it.built {
		return
	}
	it.built = true
	it.results = make([]Candidate, len(it.h))
	copy(it.results, it.h)
	sort.Slice(it.results, func(i, j int) bool { return it.results[i].Distance < it.results[j].Distance })
}

func (it *KnnIterator) NextBatch(ctx context.Context, limit int) ([]ItemRecord, error) {
	it.build()
	var out []ItemRecord
	for (limit <= 0 || len(out) < limit) && it.cursor < len(it.results) {
		c := it.results[it.cursor]
		it.cursor++
		out = append(out, ItemRecord{RecordKey: c.RecordKey, Distance: c.Distance, HasDistance: true})
	}
	return out, nil
}

func (it *KnnIterator) NextCount(ctx context.Context, limit int) (int, error) {
	return drainCount(ctx, it, limit)
}

var _ Iterator = (*KnnIterator)(nil)
