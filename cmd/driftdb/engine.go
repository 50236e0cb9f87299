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

package main

import (
	"context"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/kv/memkv"
	"github.com/erigontech/driftdb/meta"
	"github.com/erigontech/driftdb/value"
)

const (
	demoNamespace = "demo"
	demoDatabase  = "demo"
	peopleTable   = "people"
	nameIndex     = "name_idx"
)

type person struct {
	key  value.RecordIDKey
	name string
	age  int64
}

var demoPeople = []person{
	{value.IntKey(1), "alice", 30},
	{value.IntKey(2), "bob", 25},
	{value.IntKey(3), "carol", 40},
}

// demoEngine is the handful of objects every subcommand needs: a
// backend and the frozen (ns, db) numeric ids the metadata cache
// assigned; each caller builds its own metadata cache over whatever
// transaction it opens next. seedDemo commits the dataset (and, if withIndex, a unique index
// on people.name) before returning so callers can immediately open a
// fresh read-only transaction against it.
type demoEngine struct {
	backend kv.Backend
	nsID    uint64
	dbID    uint64
}

func seedDemo(ctx context.Context, withIndex bool) (*demoEngine, error) {
	backend := memkv.New()
	rw, err := backend.Begin(ctx, true)
	if err != nil {
		return nil, err
	}

	mc, err := meta.NewCache(rw, 0)
	if err != nil {
		return nil, err
	}
	ns, db, _, err := mc.EnsureNamespaceDatabaseTable(ctx, rw, demoNamespace, demoDatabase, peopleTable, false)
	if err != nil {
		return nil, err
	}

	for _, p := range demoPeople {
		raw, err := value.EncodeRow(value.Obj(map[string]value.Value{
			"name": value.String(p.name),
			"age":  value.Int(p.age),
		}))
		if err != nil {
			return nil, err
		}
		if err := rw.Set(ctx, codec.RecordKey(ns.ID, db.ID, peopleTable, p.key), raw, nil); err != nil {
			return nil, err
		}
	}

	if withIndex {
		ix := &meta.Index{Table: peopleTable, Name: nameIndex, Columns: []string{"name"}, Flags: kv.IndexUnique}
		if err := mc.AddIndex(ctx, rw, ns.ID, db.ID, ix); err != nil {
			return nil, err
		}
		for _, p := range demoPeople {
			k, err := codec.IndexEntryKey(ns.ID, db.ID, peopleTable, nameIndex, []value.Value{value.String(p.name)}, p.key, true)
			if err != nil {
				return nil, err
			}
			if err := rw.Put(ctx, k, codec.IndexEntryValue(p.key), nil); err != nil {
				return nil, err
			}
		}
	}

	if err := rw.Commit(ctx); err != nil {
		return nil, err
	}
	return &demoEngine{backend: backend, nsID: ns.ID, dbID: db.ID}, nil
}
