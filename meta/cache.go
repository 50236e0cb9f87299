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
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/value"
)

// DefaultCacheSize bounds the number of schema objects a single
// transaction's cache retains; this is a safety valve for transactions
// that touch an unusually large number of distinct tables/indexes, not
// a tuning knob most callers need to think about.
const DefaultCacheSize = 4096

// Cache is the per-transaction metadata cache (spec §4.2). It is
// entirely discarded when the owning transaction commits or cancels;
// nothing here is safe to share across transactions.
type Cache struct {
	tx  kv.Tx
	lru *lru.Cache[string, any]
}

// NewCache wraps tx with a metadata cache of the given capacity (0 uses
// DefaultCacheSize).
func NewCache(tx kv.Tx, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	l, err := lru.New[string, any](size)
	if err != nil {
		return nil, fmt.Errorf("meta: new cache: %w", err)
	}
	return &Cache{tx: tx, lru: l}, nil
}

func cacheKey(parts ...string) string { return strings.Join(parts, "\x00") }

// Invalidate drops a single cached entry; callers must do this after any
// write that changes the object identified by the given key parts, since
// "writes bypass the cache" (spec §4.2).
func (c *Cache) Invalidate(parts ...string) { c.lru.Remove(cacheKey(parts...)) }

func get[T any](c *Cache, key string) (T, bool) {
	var zero T
	v, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func put[T any](c *Cache, key string, v T) { c.lru.Add(key, v) }

// --- Namespace ---

func (c *Cache) GetNamespace(ctx context.Context, name string) (*Namespace, error) {
	key := cacheKey("ns", name)
	if ns, ok := get[*Namespace](c, key); ok {
		return ns, nil
	}
	raw, found, err := c.tx.Get(ctx, codec.NamespaceNameKey(name), nil)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNamespaceNotFound
	}
	ns := &Namespace{}
	if err := decode(raw, ns); err != nil {
		return nil, err
	}
	put(c, key, ns)
	return ns, nil
}

// AllNamespaces performs a prefix scan over the id-ordered namespace
// keyspace and caches the resulting slice.
func (c *Cache) AllNamespaces(ctx context.Context) ([]*Namespace, error) {
	key := cacheKey("ns*")
	if all, ok := get[[]*Namespace](c, key); ok {
		return all, nil
	}
	prefix := codec.NamespacesByIDPrefix()
	pairs, err := c.tx.GetPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*Namespace, 0, len(pairs))
	for _, kvp := range pairs {
		ns := &Namespace{}
		if err := decode(kvp.V, ns); err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	put(c, key, out)
	return out, nil
}

// GetOrAddNamespace creates the namespace with default configuration if
// missing and strict is false; otherwise it fails with
// ErrNamespaceNotFound.
func (c *Cache) GetOrAddNamespace(ctx context.Context, rw kv.RwTx, name string, strict bool) (*Namespace, error) {
	if ns, err := c.GetNamespace(ctx, name); err == nil {
		return ns, nil
	} else if err != ErrNamespaceNotFound {
		return nil, err
	}
	if strict {
		return nil, ErrNamespaceNotFound
	}
	id, err := nextSequence(ctx, rw, "namespace")
	if err != nil {
		return nil, err
	}
	ns := &Namespace{ID: id, Name: name}
	if err := writeNamespace(ctx, rw, ns); err != nil {
		return nil, err
	}
	c.Invalidate("ns", name)
	c.Invalidate("ns*")
	return ns, nil
}

func writeNamespace(ctx context.Context, rw kv.RwTx, ns *Namespace) error {
	raw, err := encode(ns)
	if err != nil {
		return err
	}
	if err := rw.Set(ctx, codec.NamespaceNameKey(ns.Name), raw, nil); err != nil {
		return err
	}
	return rw.Set(ctx, codec.NamespaceKey(ns.ID), raw, nil)
}

// --- Database ---

func (c *Cache) GetDatabase(ctx context.Context, nsID uint64, name string) (*Database, error) {
	key := cacheKey("db", fmt.Sprint(nsID), name)
	if db, ok := get[*Database](c, key); ok {
		return db, nil
	}
	raw, found, err := c.tx.Get(ctx, codec.DatabaseNameKey(nsID, name), nil)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrDatabaseNotFound
	}
	db := &Database{}
	if err := decode(raw, db); err != nil {
		return nil, err
	}
	put(c, key, db)
	return db, nil
}

func (c *Cache) AllDatabases(ctx context.Context, nsID uint64) ([]*Database, error) {
	key := cacheKey("db*", fmt.Sprint(nsID))
	if all, ok := get[[]*Database](c, key); ok {
		return all, nil
	}
	pairs, err := c.tx.GetPrefix(ctx, codec.DatabasesByIDPrefix(nsID))
	if err != nil {
		return nil, err
	}
	out := make([]*Database, 0, len(pairs))
	for _, kvp := range pairs {
		db := &Database{}
		if err := decode(kvp.V, db); err != nil {
			return nil, err
		}
		out = append(out, db)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	put(c, key, out)
	return out, nil
}

func (c *Cache) GetOrAddDatabase(ctx context.Context, rw kv.RwTx, nsID uint64, name string, strict bool) (*Database, error) {
	if db, err := c.GetDatabase(ctx, nsID, name); err == nil {
		return db, nil
	} else if err != ErrDatabaseNotFound {
		return nil, err
	}
	if strict {
		return nil, ErrDatabaseNotFound
	}
	id, err := nextSequence(ctx, rw, "database", nsID)
	if err != nil {
		return nil, err
	}
	db := &Database{ID: id, NamespaceID: nsID, Name: name}
	raw, err := encode(db)
	if err != nil {
		return nil, err
	}
	if err := rw.Set(ctx, codec.DatabaseNameKey(nsID, name), raw, nil); err != nil {
		return nil, err
	}
	if err := rw.Set(ctx, codec.DatabaseKey(nsID, id), raw, nil); err != nil {
		return nil, err
	}
	c.Invalidate("db", fmt.Sprint(nsID), name)
	c.Invalidate("db*", fmt.Sprint(nsID))
	return db, nil
}

// --- Table ---

func (c *Cache) GetTable(ctx context.Context, nsID, dbID uint64, name string) (*Table, error) {
	key := cacheKey("tb", fmt.Sprint(nsID), fmt.Sprint(dbID), name)
	if tb, ok := get[*Table](c, key); ok {
		return tb, nil
	}
	raw, found, err := c.tx.Get(ctx, codec.TableKey(nsID, dbID, name), nil)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrTableNotFound
	}
	tb := &Table{}
	if err := decode(raw, tb); err != nil {
		return nil, err
	}
	put(c, key, tb)
	return tb, nil
}

func (c *Cache) AllTables(ctx context.Context, nsID, dbID uint64) ([]*Table, error) {
	key := cacheKey("tb*", fmt.Sprint(nsID), fmt.Sprint(dbID))
	if all, ok := get[[]*Table](c, key); ok {
		return all, nil
	}
	prefix := codec.TablesPrefix(nsID, dbID)
	pairs, err := c.tx.GetPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*Table, 0, len(pairs))
	for _, kvp := range pairs {
		tb := &Table{}
		if err := decode(kvp.V, tb); err != nil {
			return nil, err
		}
		out = append(out, tb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	put(c, key, out)
	return out, nil
}

func (c *Cache) GetOrAddTable(ctx context.Context, rw kv.RwTx, nsID, dbID uint64, name string, strict bool) (*Table, error) {
	if tb, err := c.GetTable(ctx, nsID, dbID, name); err == nil {
		return tb, nil
	} else if err != ErrTableNotFound {
		return nil, err
	}
	if strict {
		return nil, ErrTableNotFound
	}
	tb := &Table{NamespaceID: nsID, DatabaseID: dbID, Name: name}
	raw, err := encode(tb)
	if err != nil {
		return nil, err
	}
	if err := rw.Set(ctx, codec.TableKey(nsID, dbID, name), raw, nil); err != nil {
		return nil, err
	}
	c.Invalidate("tb", fmt.Sprint(nsID), fmt.Sprint(dbID), name)
	c.Invalidate("tb*", fmt.Sprint(nsID), fmt.Sprint(dbID))
	return tb, nil
}

// EnsureNamespaceDatabaseTable walks ns -> db -> tb, creating each
// missing level when strict is false (spec §4.2
// "ensure_namespace_database_table").
func (c *Cache) EnsureNamespaceDatabaseTable(ctx context.Context, rw kv.RwTx, ns, db, tb string, strict bool) (*Namespace, *Database, *Table, error) {
	n, err := c.GetOrAddNamespace(ctx, rw, ns, strict)
	if err != nil {
		return nil, nil, nil, err
	}
	d, err := c.GetOrAddDatabase(ctx, rw, n.ID, db, strict)
	if err != nil {
		return nil, nil, nil, err
	}
	t, err := c.GetOrAddTable(ctx, rw, n.ID, d.ID, tb, strict)
	if err != nil {
		return nil, nil, nil, err
	}
	return n, d, t, nil
}

// --- Index ---

func (c *Cache) GetIndex(ctx context.Context, nsID, dbID uint64, table, name string) (*Index, error) {
	key := cacheKey("ix", fmt.Sprint(nsID), fmt.Sprint(dbID), table, name)
	if ix, ok := get[*Index](c, key); ok {
		return ix, nil
	}
	raw, found, err := c.tx.Get(ctx, codec.TableChildKey(kv.FamilyTableIndex, nsID, dbID, table, name), nil)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrIndexNotFound
	}
	ix := &Index{}
	if err := decode(raw, ix); err != nil {
		return nil, err
	}
	put(c, key, ix)
	return ix, nil
}

func (c *Cache) AllIndexes(ctx context.Context, nsID, dbID uint64, table string) ([]*Index, error) {
	key := cacheKey("ix*", fmt.Sprint(nsID), fmt.Sprint(dbID), table)
	if all, ok := get[[]*Index](c, key); ok {
		return all, nil
	}
	prefix := codec.TableChildPrefix(kv.FamilyTableIndex, nsID, dbID, table)
	pairs, err := c.tx.GetPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*Index, 0, len(pairs))
	for _, kvp := range pairs {
		ix := &Index{}
		if err := decode(kvp.V, ix); err != nil {
			return nil, err
		}
		out = append(out, ix)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	put(c, key, out)
	return out, nil
}

// AddIndex defines a new index; unlike GetOrAddTable there is no
// implicit auto-creation path, indexes always come from an explicit
// DEFINE INDEX-equivalent call.
//
// A column declared KindDecimal is rejected (spec §4.3 "numeric values
// are encoded so that numeric order = byte order"): codec's index-entry
// encoding is not order-preserving for Decimal, since its denominator
// need not be a power of two the way Int/Float's always is, so a range
// scan over a decimal column would silently return wrong rows. Fields
// with no declared type (Kind == KindNone, the common "unspecified"
// case) are allowed through; codec.IndexEntryKey still rejects a
// concrete Decimal value encountered at write time as a last resort.
func (c *Cache) AddIndex(ctx context.Context, rw kv.RwTx, nsID, dbID uint64, ix *Index) error {
	if _, err := c.GetIndex(ctx, nsID, dbID, ix.Table, ix.Name); err == nil {
		return ErrAlreadyDefined
	} else if err != ErrIndexNotFound {
		return err
	}
	if err := c.rejectDecimalColumns(ctx, nsID, dbID, ix); err != nil {
		return err
	}
	raw, err := encode(ix)
	if err != nil {
		return err
	}
	if err := rw.Set(ctx, codec.TableChildKey(kv.FamilyTableIndex, nsID, dbID, ix.Table, ix.Name), raw, nil); err != nil {
		return err
	}
	c.Invalidate("ix", fmt.Sprint(nsID), fmt.Sprint(dbID), ix.Table, ix.Name)
	c.Invalidate("ix*", fmt.Sprint(nsID), fmt.Sprint(dbID), ix.Table)
	return nil
}

// rejectDecimalColumns returns ErrUnsupportedIndexColumn if any of ix's
// columns is declared as a Decimal field.
func (c *Cache) rejectDecimalColumns(ctx context.Context, nsID, dbID uint64, ix *Index) error {
	fields, err := c.AllFields(ctx, nsID, dbID, ix.Table)
	if err != nil {
		return err
	}
	kinds := make(map[string]int, len(fields))
	for _, f := range fields {
		kinds[f.Name] = f.Kind
	}
	for _, col := range ix.Columns {
		if kinds[col] == int(value.KindDecimal) {
			return ErrUnsupportedIndexColumn
		}
	}
	return nil
}

// --- Field ---

func (c *Cache) AllFields(ctx context.Context, nsID, dbID uint64, table string) ([]*Field, error) {
	key := cacheKey("fd*", fmt.Sprint(nsID), fmt.Sprint(dbID), table)
	if all, ok := get[[]*Field](c, key); ok {
		return all, nil
	}
	prefix := codec.TableChildPrefix(kv.FamilyTableField, nsID, dbID, table)
	pairs, err := c.tx.GetPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]*Field, 0, len(pairs))
	for _, kvp := range pairs {
		f := &Field{}
		if err := decode(kvp.V, f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	put(c, key, out)
	return out, nil
}

func (c *Cache) AddField(ctx context.Context, rw kv.RwTx, nsID, dbID uint64, f *Field) error {
	raw, err := encode(f)
	if err != nil {
		return err
	}
	if err := rw.Set(ctx, codec.TableChildKey(kv.FamilyTableField, nsID, dbID, f.Table, f.Name), raw, nil); err != nil {
		return err
	}
	c.Invalidate("fd*", fmt.Sprint(nsID), fmt.Sprint(dbID), f.Table)
	return nil
}

// nextSequence reserves and returns the next id for (kind, scope...),
// analogous in spirit to kv.RwTx.GetTimestamp but producing a plain
// uint64 counter rather than a Versionstamp (spec §3 "a monotonically
// assigned numeric id").
func nextSequence(ctx context.Context, rw kv.RwTx, kind string, scope ...uint64) (uint64, error) {
	key := codec.SequenceKey(kind, scope...)
	raw, found, err := rw.Get(ctx, key, nil)
	if err != nil {
		return 0, err
	}
	var next uint64 = 1
	if found {
		next = codec.DecodeUint64(raw) + 1
	}
	if err := rw.Set(ctx, key, codec.EncodeUint64(next), nil); err != nil {
		return 0, err
	}
	return next, nil
}
