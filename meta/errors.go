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

import "errors"

// Sentinel schema errors (spec §7 "Schema").
var (
	ErrNamespaceNotFound = errors.New("meta: namespace not found")
	ErrDatabaseNotFound  = errors.New("meta: database not found")
	ErrTableNotFound     = errors.New("meta: table not found")
	ErrIndexNotFound     = errors.New("meta: index not found")
	ErrFieldNotFound     = errors.New("meta: field not found")
	ErrAlreadyDefined    = errors.New("meta: already defined")

	// ErrUnsupportedIndexColumn is returned by AddIndex when a column has
	// a declared type with no order-preserving index encoding (spec §4.3;
	// currently just Decimal, see codec.ErrUnorderableKind).
	ErrUnsupportedIndexColumn = errors.New("meta: column type does not support indexing")
)
