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
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/value"
)

// TableScan is the base full-table access path (spec §4.5): an
// optional pushed predicate, pushed limit/offset, and a needed-fields
// set so projection can prune unreferenced columns before a consumer
// ever sees them. NeededFields is advisory here — driftdb always
// decodes the full stored document since row storage isn't columnar;
// the set is still threaded through so a future columnar backend can
// use it without a contract change.
type TableScan struct {
	tx           kv.Tx
	nsID, dbID   uint64
	table        string
	predicate    Expr
	limit        int
	offset       int
	neededFields []string
	ec           *EvalContext
	metricsBox
}

func NewTableScan(tx kv.Tx, nsID, dbID uint64, table string, predicate Expr, limit, offset int, neededFields []string, ec *EvalContext) *TableScan {
	return &TableScan{tx: tx, nsID: nsID, dbID: dbID, table: table, predicate: predicate, limit: limit, offset: offset, neededFields: neededFields, ec: ec}
}

func (s *TableScan) RequiredContext() RequiredContext { return ContextDatabase }
func (s *TableScan) AccessMode() AccessMode            { return AccessReadOnly }
func (s *TableScan) OutputOrdering() Ordering          { return Unordered }
func (s *TableScan) Children() []Operator              { return nil }
func (s *TableScan) Metrics() Metrics                  { return s.metricsBox.snapshot() }
func (s *TableScan) Attrs() map[string]string {
	return map[string]string{"op": "TableScan", "table": s.table}
}

func (s *TableScan) Execute(context.Context) (RowStream, error) {
	prefix := codec.RecordPrefix(s.nsID, s.dbID, s.table)
	return &tableScanStream{op: s, prefix: prefix, lo: prefix, hi: codec.PrefixEnd(prefix), remainingOffset: s.offset}, nil
}

type tableScanStream struct {
	op              *TableScan
	prefix          []byte
	lo, hi          []byte
	exhausted       bool
	remainingOffset int
	emitted         int
}

func (st *tableScanStream) Next(ctx context.Context) (Batch, error) {
	return timedNext(&st.op.metricsBox, 0, func() (Batch, error) {
		if st.exhausted {
			return nil, nil
		}
		if st.op.limit > 0 && st.emitted >= st.op.limit {
			return nil, nil
		}
		var out Batch
		for len(out) == 0 {
			pairs, err := st.op.tx.Scan(ctx, kv.Range{Start: st.lo, End: st.hi}, DefaultBatchSize, nil, false)
			if err != nil {
				return nil, err
			}
			if len(pairs) == 0 {
				st.exhausted = true
				return out, nil
			}
			if len(pairs) < DefaultBatchSize {
				st.exhausted = true
			} else {
				st.lo = kv.ResumeKey(pairs[len(pairs)-1].K)
			}
			for _, p := range pairs {
				rk, _, err := codec.DecodeRecordIDKey(p.K[len(st.prefix):])
				if err != nil {
					return nil, err
				}
				v, err := value.DecodeRow(p.V)
				if err != nil {
					return nil, err
				}
				row := Row{ID: &value.RecordID{Table: st.op.table, Key: rk}, Val: v}
				if st.op.predicate != nil {
					keep, err := st.op.predicate.Eval(ctx, st.op.ec, row)
					if err != nil {
						return nil, err
					}
					if !keep.Truthy() {
						continue
					}
				}
				if st.remainingOffset > 0 {
					st.remainingOffset--
					continue
				}
				out = append(out, row)
				st.emitted++
				if st.op.limit > 0 && st.emitted >= st.op.limit {
					st.exhausted = true
					break
				}
			}
			if st.exhausted {
				break
			}
		}
		return out, nil
	})
}

var _ Operator = (*TableScan)(nil)

// RecordIdScan fetches a single known record id (spec §4.5: "Base
// scans over a table or a single record").
type RecordIdScan struct {
	tx    kv.Tx
	nsID  uint64
	dbID  uint64
	table string
	key   value.RecordIDKey
	metricsBox
}

func NewRecordIdScan(tx kv.Tx, nsID, dbID uint64, table string, key value.RecordIDKey) *RecordIdScan {
	return &RecordIdScan{tx: tx, nsID: nsID, dbID: dbID, table: table, key: key}
}

func (s *RecordIdScan) RequiredContext() RequiredContext { return ContextDatabase }
func (s *RecordIdScan) AccessMode() AccessMode            { return AccessReadOnly }
func (s *RecordIdScan) OutputOrdering() Ordering          { return Unordered }
func (s *RecordIdScan) Children() []Operator              { return nil }
func (s *RecordIdScan) Metrics() Metrics                  { return s.metricsBox.snapshot() }
func (s *RecordIdScan) Attrs() map[string]string {
	return map[string]string{"op": "RecordIdScan", "table": s.table, "id": s.key.String()}
}

func (s *RecordIdScan) Execute(context.Context) (RowStream, error) {
	return &recordIdScanStream{op: s}, nil
}

type recordIdScanStream struct {
	op   *RecordIdScan
	done bool
}

func (st *recordIdScanStream) Next(ctx context.Context) (Batch, error) {
	return timedNext(&st.op.metricsBox, 0, func() (Batch, error) {
		if st.done {
			return nil, nil
		}
		st.done = true
		key := codec.RecordKey(st.op.nsID, st.op.dbID, st.op.table, st.op.key)
		raw, ok, err := st.op.tx.Get(ctx, key, nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		v, err := value.DecodeRow(raw)
		if err != nil {
			return nil, err
		}
		return Batch{{ID: &value.RecordID{Table: st.op.table, Key: st.op.key}, Val: v}}, nil
	})
}

var _ Operator = (*RecordIdScan)(nil)

// CountScan enumerates keys without materializing values (spec §4.4
// item 6 "COUNT fast path").
type CountScan struct {
	tx         kv.Tx
	nsID, dbID uint64
	table      string
	metricsBox
}

func NewCountScan(tx kv.Tx, nsID, dbID uint64, table string) *CountScan {
	return &CountScan{tx: tx, nsID: nsID, dbID: dbID, table: table}
}

func (s *CountScan) RequiredContext() RequiredContext { return ContextDatabase }
func (s *CountScan) AccessMode() AccessMode            { return AccessReadOnly }
func (s *CountScan) OutputOrdering() Ordering          { return Unordered }
func (s *CountScan) Children() []Operator              { return nil }
func (s *CountScan) Metrics() Metrics                  { return s.metricsBox.snapshot() }
func (s *CountScan) Attrs() map[string]string {
	return map[string]string{"op": "CountScan", "table": s.table}
}

func (s *CountScan) Execute(ctx context.Context) (RowStream, error) {
	return &countScanStream{op: s}, nil
}

type countScanStream struct {
	op   *CountScan
	done bool
}

func (st *countScanStream) Next(ctx context.Context) (Batch, error) {
	return timedNext(&st.op.metricsBox, 0, func() (Batch, error) {
		if st.done {
			return nil, nil
		}
		st.done = true
		prefix := codec.RecordPrefix(st.op.nsID, st.op.dbID, st.op.table)
		n, err := st.op.tx.Count(ctx, kv.Range{Start: prefix, End: codec.PrefixEnd(prefix)})
		if err != nil {
			return nil, err
		}
		return Batch{{Val: value.Int(int64(n))}}, nil
	})
}

var _ Operator = (*CountScan)(nil)
