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

package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/exec"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/kv/memkv"
	"github.com/erigontech/driftdb/meta"
	"github.com/erigontech/driftdb/value"
)

const (
	testNS = 1
	testDB = 1
)

type fixture struct {
	tx   kv.Tx
	meta *meta.Cache
}

func newFixture(t *testing.T, withIndex bool) fixture {
	t.Helper()
	store := memkv.New()
	rw, err := store.Begin(context.Background(), true)
	require.NoError(t, err)

	people := []struct {
		key value.RecordIDKey
		obj map[string]value.Value
	}{
		{value.IntKey(1), map[string]value.Value{"name": value.String("alice"), "age": value.Int(30)}},
		{value.IntKey(2), map[string]value.Value{"name": value.String("bob"), "age": value.Int(25)}},
		{value.IntKey(3), map[string]value.Value{"name": value.String("carol"), "age": value.Int(40)}},
	}
	for _, r := range people {
		raw, err := value.EncodeRow(value.Obj(r.obj))
		require.NoError(t, err)
		k := codec.RecordKey(testNS, testDB, "people", r.key)
		require.NoError(t, rw.Set(context.Background(), k, raw, nil))
	}

	mc, err := meta.NewCache(rw, 0)
	require.NoError(t, err)

	if withIndex {
		ix := &meta.Index{Table: "people", Name: "name_idx", Columns: []string{"name"}, Flags: kv.IndexUnique}
		require.NoError(t, mc.AddIndex(context.Background(), rw, testNS, testDB, ix))
		for _, r := range people {
			name := r.obj["name"]
			k, err := codec.IndexEntryKey(testNS, testDB, "people", "name_idx", []value.Value{name}, r.key, true)
			require.NoError(t, err)
			require.NoError(t, rw.Put(context.Background(), k, codec.IndexEntryValue(r.key), nil))
		}
	}

	require.NoError(t, rw.Commit(context.Background()))

	ro, err := store.Begin(context.Background(), false)
	require.NoError(t, err)
	mc2, err := meta.NewCache(ro, 0)
	require.NoError(t, err)
	return fixture{tx: ro, meta: mc2}
}

func field(name string) exec.Expr { return exec.FieldPath{Path: []string{name}} }

func collect(t *testing.T, op exec.Operator) []exec.Row {
	t.Helper()
	stream, err := op.Execute(context.Background())
	require.NoError(t, err)
	var rows []exec.Row
	for {
		batch, err := stream.Next(context.Background())
		require.NoError(t, err)
		if len(batch) == 0 {
			return rows
		}
		rows = append(rows, batch...)
	}
}

func baseCtx(f fixture) *Context {
	return &Context{
		Tx:   f.tx,
		Meta: f.meta,
		NsID: testNS,
		DbID: testDB,
		EvalContext: &exec.EvalContext{
			Params: map[string]value.Value{},
			Vars:   map[string]value.Value{},
			Funcs:  exec.FuncRegistry{},
		},
	}
}

func TestCompileTableScanSelectAll(t *testing.T) {
	f := newFixture(t, false)
	stmt := &SelectStmt{From: Source{Kind: SourceTable, Table: "people"}}
	op, err := Compile(context.Background(), baseCtx(f), stmt)
	require.NoError(t, err)
	rows := collect(t, op)
	require.Len(t, rows, 3)
}

func TestCompileCountFastPath(t *testing.T) {
	f := newFixture(t, false)
	stmt := &SelectStmt{From: Source{Kind: SourceTable, Table: "people"}, CountOnly: true}
	op, err := Compile(context.Background(), baseCtx(f), stmt)
	require.NoError(t, err)
	rows := collect(t, op)
	require.Len(t, rows, 1)
	require.Equal(t, int64(3), rows[0].Val.Int)
	require.IsType(t, &exec.CountScan{}, op)
}

func TestCompileRecordIDSource(t *testing.T) {
	f := newFixture(t, false)
	stmt := &SelectStmt{From: Source{Kind: SourceRecordID, RecordID: &value.RecordID{Table: "people", Key: value.IntKey(2)}}}
	op, err := Compile(context.Background(), baseCtx(f), stmt)
	require.NoError(t, err)
	rows := collect(t, op)
	require.Len(t, rows, 1)
	require.Equal(t, "bob", rows[0].Val.Object["name"].Str)
}

func TestCompileResidualFilterWithoutIndex(t *testing.T) {
	f := newFixture(t, false)
	stmt := &SelectStmt{
		From:  Source{Kind: SourceTable, Table: "people"},
		Where: exec.Binary{Op: exec.OpGt, L: field("age"), R: exec.Literal{Value: value.Int(26)}},
	}
	op, err := Compile(context.Background(), baseCtx(f), stmt)
	require.NoError(t, err)
	rows := collect(t, op)
	require.Len(t, rows, 2)
}

func TestCompileUsesEqualityIndexWhenPredicateMatches(t *testing.T) {
	f := newFixture(t, true)
	stmt := &SelectStmt{
		From:  Source{Kind: SourceTable, Table: "people"},
		Where: exec.Binary{Op: exec.OpEq, L: field("name"), R: exec.Literal{Value: value.String("bob")}},
	}
	op, err := Compile(context.Background(), baseCtx(f), stmt)
	require.NoError(t, err)
	rows := collect(t, op)
	require.Len(t, rows, 1)
	require.Equal(t, "bob", rows[0].Val.Object["name"].Str)
	// the chosen access path must be the index scan itself, not a
	// Filter wrapping a TableScan
	require.Equal(t, "IndexScan", op.Attrs()["op"])
}

func TestCompileProjectAndOrderBy(t *testing.T) {
	f := newFixture(t, false)
	stmt := &SelectStmt{
		From:    Source{Kind: SourceTable, Table: "people"},
		OrderBy: []exec.SortKey{{E: field("age"), Direction: exec.Ascending}},
		Fields:  []exec.ProjectField{{Alias: "n", E: field("name")}},
	}
	op, err := Compile(context.Background(), baseCtx(f), stmt)
	require.NoError(t, err)
	rows := collect(t, op)
	require.Len(t, rows, 3)
	require.Equal(t, "bob", rows[0].Val.Object["n"].Str)
	require.Equal(t, "carol", rows[2].Val.Object["n"].Str)
}

func TestCompileOnlyErrorsOnMultipleRows(t *testing.T) {
	f := newFixture(t, false)
	stmt := &SelectStmt{From: Source{Kind: SourceTable, Table: "people"}, Only: true}
	op, err := Compile(context.Background(), baseCtx(f), stmt)
	require.NoError(t, err)
	_, err = op.Execute(context.Background())
	require.Error(t, err)
}

func TestChooseAccessPathPrefersEqualityOverScan(t *testing.T) {
	indexes := []*meta.Index{{Table: "people", Name: "name_idx", Columns: []string{"name"}, Flags: kv.IndexUnique}}
	where := exec.Binary{Op: exec.OpEq, L: field("name"), R: exec.Literal{Value: value.String("bob")}}
	ap := chooseAccessPath(indexes, where, "", false)
	require.Equal(t, pathEquality, ap.kind)
}

func TestChooseAccessPathFallsBackToScanWithoutMatch(t *testing.T) {
	indexes := []*meta.Index{{Table: "people", Name: "name_idx", Columns: []string{"name"}, Flags: kv.IndexUnique}}
	where := exec.Binary{Op: exec.OpGt, L: field("age"), R: exec.Literal{Value: value.Int(10)}}
	ap := chooseAccessPath(indexes, where, "", false)
	require.Equal(t, pathTableScan, ap.kind)
}

func TestChooseAccessPathRespectsNoIndexOverride(t *testing.T) {
	indexes := []*meta.Index{{Table: "people", Name: "name_idx", Columns: []string{"name"}, Flags: kv.IndexUnique}}
	where := exec.Binary{Op: exec.OpEq, L: field("name"), R: exec.Literal{Value: value.String("bob")}}
	ap := chooseAccessPath(indexes, where, "", true)
	require.Equal(t, pathTableScan, ap.kind)
}

func TestCompileFallsBackToScanWhileIndexIsBuilding(t *testing.T) {
	f := newFixture(t, true)
	stmt := &SelectStmt{
		From:  Source{Kind: SourceTable, Table: "people"},
		Where: exec.Binary{Op: exec.OpEq, L: field("name"), R: exec.Literal{Value: value.String("bob")}},
	}
	pc := baseCtx(f)
	pc.IndexBuilding = func(table, index string) bool { return table == "people" && index == "name_idx" }
	op, err := Compile(context.Background(), pc, stmt)
	require.NoError(t, err)
	rows := collect(t, op)
	require.Len(t, rows, 1)
	require.Equal(t, "TableScan", op.Attrs()["op"])
}
