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

package changefeed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/kv/memkv"
	"github.com/erigontech/driftdb/value"
)

const (
	testNS = 1
	testDB = 1
)

func obj(fields map[string]value.Value) value.Value { return value.Obj(fields) }

func TestAppendAndScanReturnsRecordsInCommitOrder(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()

	// first commit: insert two rows into "people"
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, Reserve(ctx, rw, testNS, testDB))
	alice := obj(map[string]value.Value{"name": value.String("alice")})
	bob := obj(map[string]value.Value{"name": value.String("bob")})
	require.NoError(t, Append(ctx, rw, testNS, testDB, "people", value.IntKey(1), value.None(), alice))
	require.NoError(t, Append(ctx, rw, testNS, testDB, "people", value.IntKey(2), value.None(), bob))
	require.NoError(t, rw.Commit(ctx))

	// second commit: update row 1
	rw, err = store.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, Reserve(ctx, rw, testNS, testDB))
	alice2 := obj(map[string]value.Value{"name": value.String("alice"), "age": value.Int(31)})
	require.NoError(t, Append(ctx, rw, testNS, testDB, "people", value.IntKey(1), alice, alice2))
	require.NoError(t, rw.Commit(ctx))

	ro, err := store.Begin(ctx, false)
	require.NoError(t, err)
	records, err := Scan(ctx, ro, testNS, testDB, "people", kv.ZeroVersionstamp)
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.Equal(t, OpInsert, records[0].Op)
	require.Equal(t, OpInsert, records[1].Op)
	require.Equal(t, OpUpdate, records[2].Op)
	require.Equal(t, "alice", records[2].After.Object["name"].Str)
	require.Equal(t, int64(31), records[2].After.Object["age"].Int)

	// same-commit records share a stamp; the second commit's stamp sorts after it
	require.Equal(t, records[0].Stamp, records[1].Stamp)
	require.Equal(t, 1, kv.Versionstamp(records[2].Stamp).Compare(kv.Versionstamp(records[0].Stamp)))
}

func TestScanSinceExcludesEarlierCommits(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()

	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, Reserve(ctx, rw, testNS, testDB))
	require.NoError(t, Append(ctx, rw, testNS, testDB, "people", value.IntKey(1), value.None(), obj(map[string]value.Value{"name": value.String("alice")})))
	require.NoError(t, rw.Commit(ctx))

	ro, err := store.Begin(ctx, false)
	require.NoError(t, err)
	first, err := Scan(ctx, ro, testNS, testDB, "people", kv.ZeroVersionstamp)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NoError(t, ro.Commit(ctx))

	rw, err = store.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, Reserve(ctx, rw, testNS, testDB))
	require.NoError(t, Append(ctx, rw, testNS, testDB, "people", value.IntKey(2), value.None(), obj(map[string]value.Value{"name": value.String("bob")})))
	require.NoError(t, rw.Commit(ctx))

	ro, err = store.Begin(ctx, false)
	require.NoError(t, err)
	since := kv.Versionstamp(first[0].Stamp)
	after, err := Scan(ctx, ro, testNS, testDB, "people", since)
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, "bob", after[0].After.Object["name"].Str)
}

func TestAppendWithoutReserveFails(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)
	err = Append(ctx, rw, testNS, testDB, "people", value.IntKey(1), value.None(), obj(map[string]value.Value{"name": value.String("alice")}))
	require.ErrorIs(t, err, kv.ErrConditionNotMet)
}

func TestAppendDeleteHasNoAfterValue(t *testing.T) {
	store := memkv.New()
	ctx := context.Background()
	alice := obj(map[string]value.Value{"name": value.String("alice")})

	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, Reserve(ctx, rw, testNS, testDB))
	require.NoError(t, Append(ctx, rw, testNS, testDB, "people", value.IntKey(1), value.None(), alice))
	require.NoError(t, rw.Commit(ctx))

	rw, err = store.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, Reserve(ctx, rw, testNS, testDB))
	require.NoError(t, Append(ctx, rw, testNS, testDB, "people", value.IntKey(1), alice, value.None()))
	require.NoError(t, rw.Commit(ctx))

	ro, err := store.Begin(ctx, false)
	require.NoError(t, err)
	records, err := Scan(ctx, ro, testNS, testDB, "people", kv.ZeroVersionstamp)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, OpDelete, records[1].Op)
	require.True(t, records[1].After.IsNone())
	require.Equal(t, "alice", records[1].Before.Object["name"].Str)
}
