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

// Package exec implements the streaming physical operators of spec
// §4.5. Every operator is polled cooperatively through the same
// next-batch contract the index package's iterators already use (spec
// §4.6), so the scheduler never needs to know which kind of node it is
// driving: a table scan, a sort, and a join all look the same from
// above.
package exec

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/erigontech/driftdb/value"
)

// Row is one result tuple: Val is normally a KindObject document; ID is
// set when the row is backed by a stored record (nil for scalar
// projections, e.g. SELECT VALUE). Distance is set only for KNN hits.
type Row struct {
	ID       *value.RecordID
	Val      value.Value
	Distance *float64
}

// Batch is a page of rows flowing between operators.
type Batch []Row

// RowStream is the pull side of execute(ctx) -> Stream<Batch>: repeated
// calls to Next return pages until an empty, nil-error result signals
// the stream is closed.
type RowStream interface {
	Next(ctx context.Context) (Batch, error)
}

// RequiredContext is the minimum session context an operator needs.
type RequiredContext uint8

const (
	ContextRoot RequiredContext = iota
	ContextSession
	ContextDatabase
)

// AccessMode reports whether an operator only reads or also writes;
// combined across a tree to decide what kind of transaction to open.
type AccessMode uint8

const (
	AccessReadOnly AccessMode = iota
	AccessReadWrite
)

// Combine returns the stricter of two access modes.
func (m AccessMode) Combine(other AccessMode) AccessMode {
	if m == AccessReadWrite || other == AccessReadWrite {
		return AccessReadWrite
	}
	return AccessReadOnly
}

// SortDirection is ascending or descending.
type SortDirection uint8

const (
	Ascending SortDirection = iota
	Descending
)

// SortProperty is one component of a declared or required ordering.
type SortProperty struct {
	FieldPath []string
	Direction SortDirection
	Collate   string
	Numeric   bool
}

// Ordering is an operator's declared output_ordering(): either
// Unordered, or Sorted by a sequence of SortProperty (spec §4.5).
type Ordering struct {
	Sorted     bool
	Properties []SortProperty
}

// Unordered is the zero-value ordering every operator defaults to.
var Unordered = Ordering{}

// Satisfies reports whether this ordering already satisfies want,
// letting the planner eliminate a redundant Sort (spec §4.4 "Sort
// elimination").
func (o Ordering) Satisfies(want []SortProperty) bool {
	if !o.Sorted || len(o.Properties) < len(want) {
		return false
	}
	for i, w := range want {
		have := o.Properties[i]
		if have.Direction != w.Direction || have.Collate != w.Collate || have.Numeric != w.Numeric {
			return false
		}
		if len(have.FieldPath) != len(w.FieldPath) {
			return false
		}
		for j := range w.FieldPath {
			if have.FieldPath[j] != w.FieldPath[j] {
				return false
			}
		}
	}
	return true
}

// Metrics is a snapshot of an operator's runtime counters.
type Metrics struct {
	RowsIn  int64
	RowsOut int64
	Batches int64
	Wall    time.Duration
}

// Operator is the shared physical-operator contract (spec §4.5).
type Operator interface {
	Execute(ctx context.Context) (RowStream, error)
	RequiredContext() RequiredContext
	AccessMode() AccessMode
	OutputOrdering() Ordering
	Children() []Operator
	Attrs() map[string]string
	Metrics() Metrics
}

// metricsBox holds the atomic counters backing Metrics, embedded by
// every concrete operator/stream pair so EXPLAIN ANALYZE-style
// inspection works uniformly (spec §4.5 "metrics(): ... rows in/out,
// wall time, batches").
type metricsBox struct {
	rowsIn  atomic.Int64
	rowsOut atomic.Int64
	batches atomic.Int64
	wallNs  atomic.Int64
}

func (m *metricsBox) snapshot() Metrics {
	return Metrics{
		RowsIn:  m.rowsIn.Load(),
		RowsOut: m.rowsOut.Load(),
		Batches: m.batches.Load(),
		Wall:    time.Duration(m.wallNs.Load()),
	}
}

func (m *metricsBox) record(in, out int, d time.Duration) {
	m.rowsIn.Add(int64(in))
	m.rowsOut.Add(int64(out))
	m.batches.Add(1)
	m.wallNs.Add(int64(d))
}

// timedNext wraps a stream's underlying next function with the
// metricsBox bookkeeping every operator performs identically.
func timedNext(m *metricsBox, rowsInHint int, fn func() (Batch, error)) (Batch, error) {
	start := time.Now()
	batch, err := fn()
	m.record(rowsInHint, len(batch), time.Since(start))
	return batch, err
}

// DefaultBatchSize is the typical page size operators request from
// their children and from index iterators (spec §4.5: "Batches are
// typically 256-4096 values").
const DefaultBatchSize = 1024
