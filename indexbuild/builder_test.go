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

package indexbuild

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/kv/memkv"
	"github.com/erigontech/driftdb/meta"
	"github.com/erigontech/driftdb/value"
)

const (
	testNS = 1
	testDB = 1
)

func putRow(t *testing.T, rw kv.RwTx, table string, key value.RecordIDKey, obj map[string]value.Value) {
	t.Helper()
	raw, err := value.EncodeRow(value.Obj(obj))
	require.NoError(t, err)
	require.NoError(t, rw.Set(context.Background(), codec.RecordKey(testNS, testDB, table, key), raw, nil))
}

func seedPeople(t *testing.T, backend *memkv.Store) *meta.Index {
	t.Helper()
	ctx := context.Background()
	rw, err := backend.Begin(ctx, true)
	require.NoError(t, err)

	putRow(t, rw, "people", value.IntKey(1), map[string]value.Value{"name": value.String("alice"), "age": value.Int(30)})
	putRow(t, rw, "people", value.IntKey(2), map[string]value.Value{"name": value.String("bob"), "age": value.Int(25)})
	putRow(t, rw, "people", value.IntKey(3), map[string]value.Value{"name": value.String("carol"), "age": value.Int(40)})

	mc, err := meta.NewCache(rw, 0)
	require.NoError(t, err)
	ix := &meta.Index{Table: "people", Name: "name_idx", Columns: []string{"name"}, Flags: kv.IndexUnique}
	require.NoError(t, mc.AddIndex(ctx, rw, testNS, testDB, ix))

	require.NoError(t, rw.Commit(ctx))
	return ix
}

func indexEntries(t *testing.T, backend *memkv.Store, ix *meta.Index) []kv.KV {
	t.Helper()
	ro, err := backend.Begin(context.Background(), false)
	require.NoError(t, err)
	defer ro.Cancel()
	prefix := codec.IndexEntryPrefix(testNS, testDB, "people", ix.Name)
	pairs, err := ro.GetPrefix(context.Background(), prefix)
	require.NoError(t, err)
	return pairs
}

func TestBuilderIndexesExistingRows(t *testing.T) {
	backend := memkv.New()
	ix := seedPeople(t, backend)

	b := NewBuilder(backend, testNS, testDB, "people", ix, nil, nil)
	require.NoError(t, b.Run(context.Background()))

	require.Equal(t, PhaseReady, b.Status().Phase)
	require.EqualValues(t, 3, b.Status().Initial)
	require.Len(t, indexEntries(t, backend, ix), 3)
}

func TestBuilderCleansExistingEntriesFirst(t *testing.T) {
	backend := memkv.New()
	ix := seedPeople(t, backend)

	ctx := context.Background()
	rw, err := backend.Begin(ctx, true)
	require.NoError(t, err)
	// A stale entry for a record id that no longer exists in the table.
	stale, err := codec.IndexEntryKey(testNS, testDB, "people", ix.Name, []value.Value{value.String("ghost")}, value.IntKey(99), ix.Unique())
	require.NoError(t, err)
	require.NoError(t, rw.Set(ctx, stale, codec.IndexEntryValue(value.IntKey(99)), nil))
	require.NoError(t, rw.Commit(ctx))

	b := NewBuilder(backend, testNS, testDB, "people", ix, nil, nil)
	require.NoError(t, b.Run(context.Background()))

	entries := indexEntries(t, backend, ix)
	require.Len(t, entries, 3)
	for _, e := range entries {
		require.NotContains(t, string(e.K), "ghost")
	}
}

func TestRegistryRedirectsConcurrentWriteToQueue(t *testing.T) {
	backend := memkv.New()
	ix := seedPeople(t, backend)
	reg := NewRegistry()
	b := NewBuilder(backend, testNS, testDB, "people", ix, reg, nil)
	reg.Register("people", ix.Name, b)

	ctx := context.Background()
	rw, err := backend.Begin(ctx, true)
	require.NoError(t, err)

	oldRow := value.Obj(map[string]value.Value{"name": value.String("bob"), "age": value.Int(25)})
	newRow := value.Obj(map[string]value.Value{"name": value.String("bobby"), "age": value.Int(25)})
	require.NoError(t, MaintainIndex(ctx, rw, reg, testNS, testDB, "people", ix, oldRow, newRow, value.IntKey(2)))
	require.NoError(t, rw.Commit(ctx))

	// Enqueued, not applied inline: no "bobby" index entry exists yet.
	// seedPeople writes no index entries and the builder hasn't run,
	// so the index holds no entries at all.
	entries := indexEntries(t, backend, ix)
	require.Empty(t, entries) // cleaning phase hasn't run in this test

	ro, err := backend.Begin(ctx, false)
	require.NoError(t, err)
	defer ro.Cancel()
	pairs, err := ro.GetPrefix(ctx, codec.IndexAppendPrefix(testNS, testDB, "people", ix.Name))
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	primary, err := ro.GetPrefix(ctx, codec.IndexPrimaryPrefix(testNS, testDB, "people", ix.Name))
	require.NoError(t, err)
	require.Len(t, primary, 1)
}

func TestBuilderDrainsQueueAfterInitialScan(t *testing.T) {
	backend := memkv.New()
	ix := seedPeople(t, backend)
	reg := NewRegistry()
	b := NewBuilder(backend, testNS, testDB, "people", ix, reg, nil)
	reg.Register("people", ix.Name, b)

	ctx := context.Background()
	rw, err := backend.Begin(ctx, true)
	require.NoError(t, err)
	oldRow := value.Obj(map[string]value.Value{"name": value.String("bob"), "age": value.Int(25)})
	newRow := value.Obj(map[string]value.Value{"name": value.String("bobby"), "age": value.Int(25)})
	require.NoError(t, b.enqueue(ctx, rw, oldRow, newRow, value.IntKey(2)))
	require.NoError(t, rw.Commit(ctx))

	require.NoError(t, b.Run(ctx))
	require.Equal(t, PhaseReady, b.Status().Phase)

	entries := indexEntries(t, backend, ix)
	names := map[string]bool{}
	for _, e := range entries {
		names[string(e.K)] = true
	}
	require.Len(t, entries, 3)

	// The initial scan must have indexed bob's pre-update baseline (via
	// the primary-appending replay path), and the drain must have then
	// replaced it with bobby — never both simultaneously, and never
	// neither.
	var sawBob, sawBobby bool
	for _, e := range entries {
		k := string(e.K)
		switch {
		case containsValue(k, "bob") && !containsValue(k, "bobby"):
			sawBob = true
		case containsValue(k, "bobby"):
			sawBobby = true
		}
	}
	require.False(t, sawBob, "stale baseline must have been replaced by the drain")
	require.True(t, sawBobby)
}

func containsValue(key, needle string) bool {
	return len(key) >= len(needle) && indexOf(key, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestAbortStopsBetweenBatches(t *testing.T) {
	backend := memkv.New()
	ix := seedPeople(t, backend)
	b := NewBuilder(backend, testNS, testDB, "people", ix, nil, nil)
	b.Abort()
	require.NoError(t, b.Run(context.Background()))
	require.Equal(t, PhaseAborted, b.Status().Phase)
}

func TestDeferredIndexLoopsUntilAbort(t *testing.T) {
	backend := memkv.New()
	ix := seedPeople(t, backend)
	ix.Flags |= kv.IndexDeferred

	b := NewBuilder(backend, testNS, testDB, "people", ix, nil, nil)
	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	// Give the daemon loop a chance to reach the idle-sleep branch, then
	// abort it; it must exit rather than loop forever.
	for i := 0; i < 50 && b.Status().Phase != PhaseIndexing; i++ {
		time.Sleep(time.Millisecond)
	}
	b.Abort()
	err := <-done
	require.NoError(t, err)
	require.Equal(t, PhaseAborted, b.Status().Phase)
}
