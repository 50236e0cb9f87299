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

package meta

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/kv/memkv"
)

func TestEnsureNamespaceDatabaseTableCreatesMissingLevels(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)

	c, err := NewCache(rw, 0)
	require.NoError(t, err)

	ns, db, tb, err := c.EnsureNamespaceDatabaseTable(ctx, rw, "test", "main", "person", false)
	require.NoError(t, err)
	require.Equal(t, "test", ns.Name)
	require.Equal(t, "main", db.Name)
	require.Equal(t, "person", tb.Name)
	require.NoError(t, rw.Commit(ctx))

	rtx, err := store.Begin(ctx, false)
	require.NoError(t, err)
	c2, err := NewCache(rtx, 0)
	require.NoError(t, err)

	gotNS, err := c2.GetNamespace(ctx, "test")
	require.NoError(t, err)
	require.Equal(t, ns.ID, gotNS.ID)

	gotTB, err := c2.GetTable(ctx, ns.ID, db.ID, "person")
	require.NoError(t, err)
	require.Equal(t, "person", gotTB.Name)
	require.NoError(t, rtx.Cancel())
}

func TestEnsureNamespaceDatabaseTableStrictFailsWhenMissing(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)
	c, err := NewCache(rw, 0)
	require.NoError(t, err)

	_, _, _, err = c.EnsureNamespaceDatabaseTable(ctx, rw, "test", "main", "person", true)
	require.ErrorIs(t, err, ErrNamespaceNotFound)
	require.NoError(t, rw.Cancel())
}

func TestGetOrAddNamespaceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)
	c, err := NewCache(rw, 0)
	require.NoError(t, err)

	a, err := c.GetOrAddNamespace(ctx, rw, "test", false)
	require.NoError(t, err)
	b, err := c.GetOrAddNamespace(ctx, rw, "test", false)
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID, "re-fetching the same name must not allocate a second id")
	require.NoError(t, rw.Commit(ctx))
}

func TestAllTablesReflectsPriorWritesNotCache(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)
	c, err := NewCache(rw, 0)
	require.NoError(t, err)

	ns, db, _, err := c.EnsureNamespaceDatabaseTable(ctx, rw, "test", "main", "person", false)
	require.NoError(t, err)
	_, _, _, err = c.EnsureNamespaceDatabaseTable(ctx, rw, "test", "main", "pet", false)
	require.NoError(t, err)

	tables, err := c.AllTables(ctx, ns.ID, db.ID)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.NoError(t, rw.Commit(ctx))
}

func TestAddIndexRejectsDuplicateDefinition(t *testing.T) {
	ctx := context.Background()
	store := memkv.New()
	rw, err := store.Begin(ctx, true)
	require.NoError(t, err)
	c, err := NewCache(rw, 0)
	require.NoError(t, err)

	ns, db, _, err := c.EnsureNamespaceDatabaseTable(ctx, rw, "test", "main", "person", false)
	require.NoError(t, err)

	ix := &Index{Table: "person", Name: "idx_name", Columns: []string{"name"}, Flags: kv.IndexUnique}
	require.NoError(t, c.AddIndex(ctx, rw, ns.ID, db.ID, ix))
	require.ErrorIs(t, c.AddIndex(ctx, rw, ns.ID, db.ID, ix), ErrAlreadyDefined)

	all, err := c.AllIndexes(ctx, ns.ID, db.ID, "person")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.True(t, all[0].Unique())
	require.NoError(t, rw.Commit(ctx))
}
