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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/kv/memkv"
	"github.com/erigontech/driftdb/value"
)

const (
	testNS = 1
	testDB = 1
)

func putRow(t *testing.T, rw kv.RwTx, table string, key value.RecordIDKey, v value.Value) {
	t.Helper()
	raw, err := value.EncodeRow(v)
	require.NoError(t, err)
	k := codec.RecordKey(testNS, testDB, table, key)
	require.NoError(t, rw.Set(context.Background(), k, raw, nil))
}

func newTx(t *testing.T) kv.Tx {
	t.Helper()
	store := memkv.New()
	rw, err := store.Begin(context.Background(), true)
	require.NoError(t, err)

	rows := []struct {
		key value.RecordIDKey
		obj map[string]value.Value
	}{
		{value.IntKey(1), map[string]value.Value{"name": value.String("alice"), "age": value.Int(30)}},
		{value.IntKey(2), map[string]value.Value{"name": value.String("bob"), "age": value.Int(25)}},
		{value.IntKey(3), map[string]value.Value{"name": value.String("carol"), "age": value.Int(40)}},
	}
	for _, r := range rows {
		putRow(t, rw, "people", r.key, value.Obj(r.obj))
	}
	require.NoError(t, rw.Commit(context.Background()))

	ro, err := store.Begin(context.Background(), false)
	require.NoError(t, err)
	return ro
}

func collect(t *testing.T, op Operator) []Row {
	t.Helper()
	stream, err := op.Execute(context.Background())
	require.NoError(t, err)
	var rows []Row
	for {
		batch, err := stream.Next(context.Background())
		require.NoError(t, err)
		if len(batch) == 0 {
			return rows
		}
		rows = append(rows, batch...)
	}
}

func field(name string) Expr { return FieldPath{Path: []string{name}} }

func TestTableScanReturnsAllRows(t *testing.T) {
	tx := newTx(t)
	op := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	rows := collect(t, op)
	require.Len(t, rows, 3)
}

func TestTableScanAppliesPredicate(t *testing.T) {
	tx := newTx(t)
	ec := &EvalContext{}
	pred := Binary{Op: OpGt, L: field("age"), R: Literal{Value: value.Int(26)}}
	op := NewTableScan(tx, testNS, testDB, "people", pred, 0, 0, nil, ec)
	rows := collect(t, op)
	require.Len(t, rows, 2)
}

func TestRecordIdScanFindsExactRow(t *testing.T) {
	tx := newTx(t)
	op := NewRecordIdScan(tx, testNS, testDB, "people", value.IntKey(2))
	rows := collect(t, op)
	require.Len(t, rows, 1)
	require.Equal(t, "bob", rows[0].Val.Object["name"].Str)
}

func TestRecordIdScanMissingReturnsNoRows(t *testing.T) {
	tx := newTx(t)
	op := NewRecordIdScan(tx, testNS, testDB, "people", value.IntKey(999))
	rows := collect(t, op)
	require.Len(t, rows, 0)
}

func TestCountScanReturnsSingleCountRow(t *testing.T) {
	tx := newTx(t)
	op := NewCountScan(tx, testNS, testDB, "people")
	rows := collect(t, op)
	require.Len(t, rows, 1)
	require.Equal(t, int64(3), rows[0].Val.Int)
}

func TestFilterSkipsNonMatchingRows(t *testing.T) {
	tx := newTx(t)
	ec := &EvalContext{}
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	pred := Binary{Op: OpEq, L: field("name"), R: Literal{Value: value.String("bob")}}
	op := NewFilter(src, pred, ec)
	rows := collect(t, op)
	require.Len(t, rows, 1)
	require.Equal(t, "bob", rows[0].Val.Object["name"].Str)
}

func TestProjectBuildsNamedFields(t *testing.T) {
	tx := newTx(t)
	ec := &EvalContext{}
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	op := NewProject(src, []ProjectField{{Alias: "n", E: field("name")}}, ec)
	rows := collect(t, op)
	require.Len(t, rows, 3)
	for _, r := range rows {
		require.Contains(t, r.Val.Object, "n")
		require.NotContains(t, r.Val.Object, "age")
	}
}

func TestProjectValueClearsRecordID(t *testing.T) {
	tx := newTx(t)
	ec := &EvalContext{}
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	op := NewProjectValue(src, field("name"), ec)
	rows := collect(t, op)
	require.Len(t, rows, 3)
	for _, r := range rows {
		require.Nil(t, r.ID)
		require.Equal(t, value.KindString, r.Val.Kind)
	}
}

func TestComputeAddsField(t *testing.T) {
	tx := newTx(t)
	ec := &EvalContext{}
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	op := NewCompute(src, "is_adult", Literal{Value: value.Bool(true)}, ec)
	rows := collect(t, op)
	for _, r := range rows {
		require.Equal(t, true, r.Val.Object["is_adult"].Bool)
		require.Contains(t, r.Val.Object, "name")
	}
}

func TestOmitRemovesField(t *testing.T) {
	tx := newTx(t)
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	op := NewOmit(src, []string{"age"})
	rows := collect(t, op)
	for _, r := range rows {
		require.NotContains(t, r.Val.Object, "age")
		require.Contains(t, r.Val.Object, "name")
	}
}

func TestLimitBoundsOutput(t *testing.T) {
	tx := newTx(t)
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	op := NewLimit(src, 1, 1)
	rows := collect(t, op)
	require.Len(t, rows, 1)
}

func TestSortOrdersAscendingByField(t *testing.T) {
	tx := newTx(t)
	ec := &EvalContext{}
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	op := NewSort(src, []SortKey{{E: field("age"), Direction: Ascending}}, ec)
	rows := collect(t, op)
	require.Len(t, rows, 3)
	require.Equal(t, "bob", rows[0].Val.Object["name"].Str)
	require.Equal(t, "alice", rows[1].Val.Object["name"].Str)
	require.Equal(t, "carol", rows[2].Val.Object["name"].Str)
}

func TestSortTopKKeepsSmallestK(t *testing.T) {
	tx := newTx(t)
	ec := &EvalContext{}
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	op := NewSortTopK(src, []SortKey{{E: field("age"), Direction: Ascending}}, 2, ec)
	rows := collect(t, op)
	require.Len(t, rows, 2)
	require.Equal(t, "bob", rows[0].Val.Object["name"].Str)
	require.Equal(t, "alice", rows[1].Val.Object["name"].Str)
}

func TestExternalSortInMemoryFallback(t *testing.T) {
	tx := newTx(t)
	ec := &EvalContext{}
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	op := NewExternalSort(src, []SortKey{{E: field("age"), Direction: Descending}}, ec, "")
	rows := collect(t, op)
	require.Len(t, rows, 3)
	require.Equal(t, "carol", rows[0].Val.Object["name"].Str)
	require.Equal(t, "bob", rows[2].Val.Object["name"].Str)
}

func TestExternalSortSpillsToDisk(t *testing.T) {
	tx := newTx(t)
	ec := &EvalContext{}
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	op := NewExternalSort(src, []SortKey{{E: field("age"), Direction: Ascending}}, ec, t.TempDir())
	rows := collect(t, op)
	require.Len(t, rows, 3)
	require.Equal(t, "bob", rows[0].Val.Object["name"].Str)
	require.Equal(t, "carol", rows[2].Val.Object["name"].Str)
}

func TestUnwrapExactlyOneErrorsOnMultipleRows(t *testing.T) {
	tx := newTx(t)
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	op := NewUnwrapExactlyOne(src)
	_, err := op.Execute(context.Background())
	require.Error(t, err)
}

func TestUnwrapExactlyOneReturnsSoleRow(t *testing.T) {
	tx := newTx(t)
	src := NewRecordIdScan(tx, testNS, testDB, "people", value.IntKey(1))
	op := NewUnwrapExactlyOne(src)
	rows := collect(t, op)
	require.Len(t, rows, 1)
}

func TestUnionConcatenatesChildren(t *testing.T) {
	tx := newTx(t)
	a := NewRecordIdScan(tx, testNS, testDB, "people", value.IntKey(1))
	b := NewRecordIdScan(tx, testNS, testDB, "people", value.IntKey(2))
	op := NewUnion(a, b)
	rows := collect(t, op)
	require.Len(t, rows, 2)
}

func TestAggregateGroupsAndCounts(t *testing.T) {
	tx := newTx(t)
	ec := &EvalContext{}
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	// group every row into a single bucket via a constant key
	op := NewAggregate(src, []Expr{Literal{Value: value.Int(0)}}, []AggregateSpec{
		{Alias: "n", Args: nil, Agg: CountAll()},
	}, ec)
	rows := collect(t, op)
	require.Len(t, rows, 1)
	require.Equal(t, int64(3), rows[0].Val.Object["n"].Int)
}

func TestAggregateSum(t *testing.T) {
	tx := newTx(t)
	ec := &EvalContext{}
	src := NewTableScan(tx, testNS, testDB, "people", nil, 0, 0, nil, nil)
	op := NewAggregate(src, []Expr{Literal{Value: value.Int(0)}}, []AggregateSpec{
		{Alias: "total", Args: []Expr{field("age")}, Agg: Sum()},
	}, ec)
	rows := collect(t, op)
	require.Len(t, rows, 1)
	require.Equal(t, float64(95), rows[0].Val.Object["total"].Float)
}

type graphNode struct {
	id    int64
	edges []int64
}

func TestRecurseCollectWalksGraph(t *testing.T) {
	graph := map[int64]graphNode{
		1: {id: 1, edges: []int64{2, 3}},
		2: {id: 2, edges: []int64{4}},
		3: {id: 3, edges: []int64{4}},
		4: {id: 4, edges: nil},
	}
	root := Row{ID: &value.RecordID{Table: "n", Key: value.IntKey(1)}, Val: value.Int(1)}
	step := func(_ context.Context, cur Row, _ int) ([]Row, error) {
		node := graph[cur.ID.Key.Int]
		var out []Row
		for _, e := range node.edges {
			out = append(out, Row{ID: &value.RecordID{Table: "n", Key: value.IntKey(e)}, Val: value.Int(e)})
		}
		return out, nil
	}
	key := func(r Row) string { return r.ID.Key.String() }

	src := &mockOperator{rows: []Row{root}}
	op := NewRecurse(src, step, key, RecurseCollect, 0, 10)
	rows := collect(t, op)
	var ids []int64
	for _, r := range rows {
		ids = append(ids, r.Val.Int)
	}
	require.ElementsMatch(t, []int64{1, 2, 3, 4}, ids)
}

func TestRecurseShortestFindsTarget(t *testing.T) {
	graph := map[int64]graphNode{
		1: {id: 1, edges: []int64{2}},
		2: {id: 2, edges: []int64{3}},
		3: {id: 3, edges: nil},
	}
	root := Row{ID: &value.RecordID{Table: "n", Key: value.IntKey(1)}, Val: value.Int(1)}
	step := func(_ context.Context, cur Row, _ int) ([]Row, error) {
		node := graph[cur.ID.Key.Int]
		var out []Row
		for _, e := range node.edges {
			out = append(out, Row{ID: &value.RecordID{Table: "n", Key: value.IntKey(e)}, Val: value.Int(e)})
		}
		return out, nil
	}
	key := func(r Row) string { return r.ID.Key.String() }
	src := &mockOperator{rows: []Row{root}}
	op := NewRecurse(src, step, key, RecurseShortest, 0, 10).WithTarget(func(r Row) bool { return r.Val.Int == 3 })
	rows := collect(t, op)
	require.Len(t, rows, 3)
	require.Equal(t, int64(3), rows[len(rows)-1].Val.Int)
}

// mockOperator is a trivial in-memory source used to seed operator
// tests that don't need a backing TableScan.
type mockOperator struct {
	rows []Row
	metricsBox
}

func (m *mockOperator) RequiredContext() RequiredContext { return ContextDatabase }
func (m *mockOperator) AccessMode() AccessMode            { return AccessReadOnly }
func (m *mockOperator) OutputOrdering() Ordering          { return Unordered }
func (m *mockOperator) Children() []Operator              { return nil }
func (m *mockOperator) Attrs() map[string]string          { return map[string]string{"op": "mock"} }
func (m *mockOperator) Metrics() Metrics                  { return m.metricsBox.snapshot() }
func (m *mockOperator) Execute(context.Context) (RowStream, error) {
	return &materializedStream{op: &m.metricsBox, rows: m.rows}, nil
}
