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
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
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

func putIndexEntry(t *testing.T, rw kv.RwTx, table, index string, columns []value.Value, rk value.RecordIDKey, unique bool) {
	t.Helper()
	key, err := codec.IndexEntryKey(testNS, testDB, table, index, columns, rk, unique)
	require.NoError(t, err)
	if unique {
		require.NoError(t, rw.Put(context.Background(), key, codec.IndexEntryValue(rk), nil))
		return
	}
	require.NoError(t, rw.Set(context.Background(), key, []byte{1}, nil))
}

func TestEqualityIteratorUniqueReturnsSingleMatch(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)

	putIndexEntry(t, rw, "person", "idx_email", []value.Value{value.String("a@example.com")}, value.IntKey(1), true)
	putIndexEntry(t, rw, "person", "idx_email", []value.Value{value.String("b@example.com")}, value.IntKey(2), true)
	require.NoError(t, rw.Commit(ctx))

	rtx, err := store.Begin(ctx, false)
	require.NoError(t, err)
	defer rtx.Cancel()

	it := NewEqualityIterator(rtx, testNS, testDB, "person", "idx_email", []value.Value{value.String("a@example.com")}, true)
	items, err := it.NextBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, value.IntKey(1), items[0].RecordKey)

	more, err := it.NextBatch(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, more)
}

func TestEqualityIteratorNonUniquePaginates(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)

	for i := int64(1); i <= 5; i++ {
		putIndexEntry(t, rw, "person", "idx_status", []value.Value{value.String("active")}, value.IntKey(i), false)
	}
	require.NoError(t, rw.Commit(ctx))

	rtx, err := store.Begin(ctx, false)
	require.NoError(t, err)
	defer rtx.Cancel()

	it := NewEqualityIterator(rtx, testNS, testDB, "person", "idx_status", []value.Value{value.String("active")}, false)

	var all []value.RecordIDKey
	for {
		items, err := it.NextBatch(ctx, 2)
		require.NoError(t, err)
		if len(items) == 0 {
			break
		}
		for _, it := range items {
			all = append(all, it.RecordKey)
		}
	}
	require.Len(t, all, 5)
}

func TestRangeIteratorForwardRespectsInclusiveExclusiveBounds(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)

	for i := int64(1); i <= 5; i++ {
		putIndexEntry(t, rw, "event", "idx_seq", []value.Value{value.Int(i)}, value.IntKey(i), false)
	}
	require.NoError(t, rw.Commit(ctx))

	rtx, err := store.Begin(ctx, false)
	require.NoError(t, err)
	defer rtx.Cancel()

	prefix := codec.IndexEntryPrefix(testNS, testDB, "event", "idx_seq")
	begin := value.Int(2)
	end := value.Int(4)
	it := NewRangeIterator(rtx, prefix, Bound{Value: &begin, Incl: true}, Bound{Value: &end, Incl: false}, false, false)

	var got []int64
	for {
		items, err := it.NextBatch(ctx, 0)
		require.NoError(t, err)
		if len(items) == 0 {
			break
		}
		for _, it := range items {
			got = append(got, it.RecordKey.Int)
		}
	}
	require.Equal(t, []int64{2, 3}, got)
}

func TestRangeIteratorReverseWalksDescending(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)

	for i := int64(1); i <= 4; i++ {
		putIndexEntry(t, rw, "event", "idx_seq", []value.Value{value.Int(i)}, value.IntKey(i), false)
	}
	require.NoError(t, rw.Commit(ctx))

	rtx, err := store.Begin(ctx, false)
	require.NoError(t, err)
	defer rtx.Cancel()

	prefix := codec.IndexEntryPrefix(testNS, testDB, "event", "idx_seq")
	it := NewRangeIterator(rtx, prefix, Bound{}, Bound{}, true, false)

	var got []int64
	for {
		items, err := it.NextBatch(ctx, 0)
		require.NoError(t, err)
		if len(items) == 0 {
			break
		}
		for _, it := range items {
			got = append(got, it.RecordKey.Int)
		}
	}
	require.Equal(t, []int64{4, 3, 2, 1}, got)
}

func TestUnionIteratorDrainsEachSubInOrder(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)
	putIndexEntry(t, rw, "person", "idx_status", []value.Value{value.String("active")}, value.IntKey(1), true)
	putIndexEntry(t, rw, "person", "idx_status", []value.Value{value.String("banned")}, value.IntKey(2), true)
	require.NoError(t, rw.Commit(ctx))

	rtx, err := store.Begin(ctx, false)
	require.NoError(t, err)
	defer rtx.Cancel()

	a := NewEqualityIterator(rtx, testNS, testDB, "person", "idx_status", []value.Value{value.String("active")}, true)
	b := NewEqualityIterator(rtx, testNS, testDB, "person", "idx_status", []value.Value{value.String("banned")}, true)
	u := NewUnionIterator(a, b)

	var all []value.RecordIDKey
	for {
		items, err := u.NextBatch(ctx, 10)
		require.NoError(t, err)
		if len(items) == 0 {
			break
		}
		for _, it := range items {
			all = append(all, it.RecordKey)
		}
	}
	require.Equal(t, []value.RecordIDKey{value.IntKey(1), value.IntKey(2)}, all)
}

func TestJoinIteratorDedupesRepeatedRemoteKeys(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)
	// two orders reference the same customer record id
	putIndexEntry(t, rw, "order", "idx_customer", []value.Value{value.Int(42)}, value.IntKey(100), false)
	putIndexEntry(t, rw, "order", "idx_customer", []value.Value{value.Int(42)}, value.IntKey(101), false)
	require.NoError(t, rw.Commit(ctx))

	rtx, err := store.Begin(ctx, false)
	require.NoError(t, err)
	defer rtx.Cancel()

	// remote iterator: emits the same customer record key (42) twice, once
	// per matching order.
	remote := NewEqualityIterator(rtx, testNS, testDB, "order", "idx_customer", []value.Value{value.Int(42)}, false)
	remapped := &remapIterator{inner: remote, key: value.IntKey(42)}

	localCalls := 0
	local := func(remoteKey value.RecordIDKey) (Iterator, error) {
		localCalls++
		return NewEqualityIterator(rtx, testNS, testDB, "customer", "idx_pk", []value.Value{value.Int(remoteKey.Int)}, true), nil
	}

	join := NewJoinIterator(remapped, local)
	_, err = join.NextBatch(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, localCalls, "the second remote hit with the same key must not re-open a local iterator")
}

// remapIterator substitutes a fixed record key for every item an inner
// iterator yields, modeling a join's remote side returning a foreign key
// column rather than its own primary key.
type remapIterator struct {
	inner Iterator
	key   value.RecordIDKey
}

func (r *remapIterator) NextBatch(ctx context.Context, limit int) ([]ItemRecord, error) {
	items, err := r.inner.NextBatch(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].RecordKey = r.key
	}
	return items, nil
}

func (r *remapIterator) NextCount(ctx context.Context, limit int) (int, error) {
	return drainCount(ctx, r, limit)
}

func TestFullTextIteratorResolvesDocIDs(t *testing.T) {
	hits := roaring.New()
	hits.AddMany([]uint32{3, 1, 2})

	resolve := func(docID uint32) (value.RecordIDKey, error) {
		return value.IntKey(int64(docID)), nil
	}

	it := NewFullTextIterator(hits, resolve)
	items, err := it.NextBatch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, value.IntKey(1), items[0].RecordKey)
	require.Equal(t, value.IntKey(2), items[1].RecordKey)
	require.Equal(t, value.IntKey(3), items[2].RecordKey)
}

func TestIntersectTermsANDsPostings(t *testing.T) {
	a := roaring.New()
	a.AddMany([]uint32{1, 2, 3})
	b := roaring.New()
	b.AddMany([]uint32{2, 3, 4})

	result := IntersectTerms(a, b)
	require.Equal(t, []uint32{2, 3}, result.ToArray())
}

func TestKnnIteratorKeepsOnlyClosestK(t *testing.T) {
	it := NewKnnIterator(2, nil)
	it.Feed(Candidate{RecordKey: value.IntKey(1), Distance: 5.0})
	it.Feed(Candidate{RecordKey: value.IntKey(2), Distance: 1.0})
	it.Feed(Candidate{RecordKey: value.IntKey(3), Distance: 3.0})
	it.Feed(Candidate{RecordKey: value.IntKey(4), Distance: 0.5})

	items, err := it.NextBatch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, value.IntKey(4), items[0].RecordKey)
	require.Equal(t, 0.5, items[0].Distance)
	require.Equal(t, value.IntKey(2), items[1].RecordKey)
	require.Equal(t, 1.0, items[1].Distance)
}

func TestKnnIteratorAppliesResidualPredicate(t *testing.T) {
	it := NewKnnIterator(2, func(rk value.RecordIDKey) bool { return rk.Int != 2 })
	it.Feed(Candidate{RecordKey: value.IntKey(2), Distance: 0.1})
	it.Feed(Candidate{RecordKey: value.IntKey(3), Distance: 0.2})

	items, err := it.NextBatch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, value.IntKey(3), items[0].RecordKey)
}
