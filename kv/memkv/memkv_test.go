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

package memkv

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/driftdb/kv"
)

func TestPutFailsOnExistingKey(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, err := s.Begin(ctx, true)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, []byte("k"), []byte("v1"), nil))
	require.ErrorIs(t, tx.Put(ctx, []byte("k"), []byte("v2"), nil), kv.ErrAlreadyExists)
	require.NoError(t, tx.Commit(ctx))

	tx2, err := s.Begin(ctx, true)
	require.NoError(t, err)
	require.ErrorIs(t, tx2.Put(ctx, []byte("k"), []byte("v3"), nil), kv.ErrAlreadyExists)
	require.NoError(t, tx2.Cancel())
}

func TestPutCSucceedsIffExpectedMatches(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, _ := s.Begin(ctx, true)
	require.NoError(t, tx.Set(ctx, []byte("k"), []byte("v1"), nil))
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := s.Begin(ctx, true)
	err := tx2.PutC(ctx, []byte("k"), []byte("v2"), []byte("wrong"))
	require.ErrorIs(t, err, kv.ErrConditionNotMet)
	require.NoError(t, tx2.PutC(ctx, []byte("k"), []byte("v2"), []byte("v1")))
	require.NoError(t, tx2.Commit(ctx))

	tx3, _ := s.Begin(ctx, false)
	v, ok, err := tx3.Get(ctx, []byte("k"), nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), v)
	require.NoError(t, tx3.Cancel())
}

func TestPutCAbsentRequiresNilExpected(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, true)
	require.ErrorIs(t, tx.PutC(ctx, []byte("k"), []byte("v"), []byte("anything")), kv.ErrConditionNotMet)
	require.NoError(t, tx.PutC(ctx, []byte("k"), []byte("v"), nil))
	require.NoError(t, tx.Commit(ctx))
}

func TestScanPaginationMatchesUnboundedScan(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx, _ := s.Begin(ctx, true)
	for i := 0; i < 37; i++ {
		k := []byte(fmt.Sprintf("k%03d", i))
		require.NoError(t, tx.Set(ctx, k, k, nil))
	}
	require.NoError(t, tx.Commit(ctx))

	rtx, _ := s.Begin(ctx, false)
	defer rtx.Cancel()

	full, err := rtx.Scan(ctx, kv.Range{}, 0, nil, false)
	require.NoError(t, err)
	require.Len(t, full, 37)

	var paged []kv.KV
	r := kv.Range{}
	for {
		batch, err := rtx.BatchPairs(ctx, r, 10, nil)
		require.NoError(t, err)
		paged = append(paged, batch.Items...)
		if batch.Done() {
			break
		}
		r = *batch.Continuation
	}
	require.Equal(t, full, paged)
}

func TestReadYourOwnWritesWithinTransaction(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, true)
	require.NoError(t, tx.Set(ctx, []byte("a"), []byte("1"), nil))
	v, ok, err := tx.Get(ctx, []byte("a"), nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
	require.NoError(t, tx.Cancel())

	rtx, _ := s.Begin(ctx, false)
	_, ok, err = rtx.Get(ctx, []byte("a"), nil)
	require.NoError(t, err)
	require.False(t, ok, "cancelled transaction must not be visible")
	require.NoError(t, rtx.Cancel())
}

func TestOperationsAfterCommitFail(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, true)
	require.NoError(t, tx.Commit(ctx))
	_, _, err := tx.Get(ctx, []byte("a"), nil)
	require.ErrorIs(t, err, kv.ErrTxFinished)
}

func TestReadOnlyTransactionRejectsWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, false)
	require.ErrorIs(t, tx.Set(ctx, []byte("a"), []byte("1"), nil), kv.ErrTxReadonly)
	require.NoError(t, tx.Cancel())
}

func TestDeleteRangeRemovesPrefixedKeys(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.Begin(ctx, true)
	for _, k := range []string{"a/1", "a/2", "b/1"} {
		require.NoError(t, tx.Set(ctx, []byte(k), []byte("v"), nil))
	}
	require.NoError(t, tx.Commit(ctx))

	tx2, _ := s.Begin(ctx, true)
	require.NoError(t, tx2.DeletePrefix(ctx, []byte("a/")))
	require.NoError(t, tx2.Commit(ctx))

	rtx, _ := s.Begin(ctx, false)
	kvs, err := rtx.GetPrefix(ctx, []byte("a/"))
	require.NoError(t, err)
	require.Empty(t, kvs)
	kvs, err = rtx.GetPrefix(ctx, []byte("b/"))
	require.NoError(t, err)
	require.Len(t, kvs, 1)
	require.NoError(t, rtx.Cancel())
}

func TestGetTimestampIsMonotonicAcrossCommits(t *testing.T) {
	ctx := context.Background()
	s := New()
	tsKey := []byte("cf:ts")

	var stamps []kv.Versionstamp
	for i := 0; i < 5; i++ {
		tx, _ := s.Begin(ctx, true)
		ts, err := tx.GetTimestamp(ctx, tsKey)
		require.NoError(t, err)
		stamps = append(stamps, ts)
		require.NoError(t, tx.Commit(ctx))
	}
	for i := 1; i < len(stamps); i++ {
		require.Less(t, stamps[i-1].Compare(stamps[i]), 0, "each reservation must strictly follow the previous one")
	}
}

func TestWritersAreSerialized(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx1, err := s.Begin(ctx, true)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		tx2, err := s.Begin(ctx, true)
		require.NoError(t, err)
		require.NoError(t, tx2.Cancel())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second writer began before the first released its lock")
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, tx1.Cancel())
	<-done
}
