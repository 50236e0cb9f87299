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

// Package meta is the per-transaction metadata cache (spec §4.2):
// namespaces, databases, tables, indexes and fields, hash-keyed by
// (object kind, identifiers) and never crossing a transaction boundary.
package meta

import "github.com/erigontech/driftdb/kv"

// Namespace is the outermost container; it owns a name and a
// monotonically assigned numeric id (spec §3 "Identifiers").
type Namespace struct {
	ID   uint64 `codec:"id"`
	Name string `codec:"name"`
}

// Database lives under a Namespace and likewise owns its own numeric id.
type Database struct {
	ID          uint64 `codec:"id"`
	NamespaceID uint64 `codec:"ns"`
	Name        string `codec:"name"`
}

// Table is identified by (namespace, database, name) alone — unlike
// Namespace/Database it has no independent numeric id (spec §3: "schema
// objects are identified by (parent ids, name)").
type Table struct {
	NamespaceID uint64 `codec:"ns"`
	DatabaseID  uint64 `codec:"db"`
	Name        string `codec:"name"`
	Schemafull  bool   `codec:"schemafull"`
}

// Field describes one declared column of a schemafull table.
type Field struct {
	Table string `codec:"table"`
	Name  string `codec:"name"`
	// Kind holds a value.Kind tag; stored as an int to keep this package
	// independent of value's full type for the common case of reading
	// just the schema catalog.
	Kind int `codec:"kind"`
}

// Index describes one index defined on a table.
type Index struct {
	Table   string        `codec:"table"`
	Name    string        `codec:"name"`
	Columns []string      `codec:"columns"`
	Flags   kv.IndexFlags `codec:"flags"`
}

func (ix *Index) Unique() bool   { return ix.Flags.Has(kv.IndexUnique) }
func (ix *Index) FullText() bool { return ix.Flags.Has(kv.IndexFullText) }
func (ix *Index) Knn() bool      { return ix.Flags.Has(kv.IndexKnn) }
func (ix *Index) Deferred() bool { return ix.Flags.Has(kv.IndexDeferred) }
