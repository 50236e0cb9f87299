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
	"context"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/index"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/value"
)

// indexIteratorScan is the shared implementation behind IndexScan and
// UnionIndexScan: both drive an index.Iterator and resolve each hit
// back to the full stored row, unless the iterator already attached a
// Value (e.g. a KNN candidate carrying its distance but no document).
type indexIteratorScan struct {
	tx         kv.Tx
	nsID, dbID uint64
	table      string
	it         index.Iterator
	label      string
	metricsBox
}

func (s *indexIteratorScan) RequiredContext() RequiredContext { return ContextDatabase }
func (s *indexIteratorScan) AccessMode() AccessMode            { return AccessReadOnly }
func (s *indexIteratorScan) OutputOrdering() Ordering          { return Unordered }
func (s *indexIteratorScan) Children() []Operator              { return nil }
func (s *indexIteratorScan) Metrics() Metrics                  { return s.metricsBox.snapshot() }
func (s *indexIteratorScan) Attrs() map[string]string {
	return map[string]string{"op": s.label, "table": s.table}
}

func (s *indexIteratorScan) Execute(context.Context) (RowStream, error) {
	return &indexIteratorScanStream{op: s}, nil
}

type indexIteratorScanStream struct{ op *indexIteratorScan }

func (st *indexIteratorScanStream) Next(ctx context.Context) (Batch, error) {
	return timedNext(&st.op.metricsBox, 0, func() (Batch, error) {
		items, err := st.op.it.NextBatch(ctx, DefaultBatchSize)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, nil
		}
		out := make(Batch, 0, len(items))
		for _, item := range items {
			row, ok, err := st.op.resolve(ctx, item)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue // record deleted since the index entry was written
			}
			out = append(out, row)
		}
		return out, nil
	})
}

func (s *indexIteratorScan) resolve(ctx context.Context, item index.ItemRecord) (Row, bool, error) {
	id := &value.RecordID{Table: s.table, Key: item.RecordKey}
	var dist *float64
	if item.HasDistance {
		d := item.Distance
		dist = &d
	}
	if item.Value != nil {
		return Row{ID: id, Val: *item.Value, Distance: dist}, true, nil
	}
	key := codec.RecordKey(s.nsID, s.dbID, s.table, item.RecordKey)
	raw, ok, err := s.tx.Get(ctx, key, nil)
	if err != nil {
		return Row{}, false, err
	}
	if !ok {
		return Row{}, false, nil
	}
	v, err := value.DecodeRow(raw)
	if err != nil {
		return Row{}, false, err
	}
	return Row{ID: id, Val: v, Distance: dist}, true, nil
}

// IndexScan drives a single index access path (equality, range, join,
// or composite) to completion.
func NewIndexScan(tx kv.Tx, nsID, dbID uint64, table string, it index.Iterator) Operator {
	return &indexIteratorScan{tx: tx, nsID: nsID, dbID: dbID, table: table, it: it, label: "IndexScan"}
}

// UnionIndexScan merges multiple sub-scans covering disjoint OR
// branches (spec §4.5).
func NewUnionIndexScan(tx kv.Tx, nsID, dbID uint64, table string, subs ...index.Iterator) Operator {
	return &indexIteratorScan{tx: tx, nsID: nsID, dbID: dbID, table: table, it: index.NewUnionIterator(subs...), label: "UnionIndexScan"}
}

var _ Operator = (*indexIteratorScan)(nil)
