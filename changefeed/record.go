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

// Package changefeed implements versionstamped change capture (spec
// §4.8): a write transaction that opts in reserves a commit-order stamp
// once via GetTimestamp, then writes one record per changed row under
// prefix||stamp||suffix so a range scan over the prefix enumerates
// changes in commit order.
package changefeed

import "github.com/erigontech/driftdb/value"

// Op names what happened to a row.
type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Record is one change-feed entry. Before is the zero Value
// (value.None()) for an insert, After is the zero Value for a delete.
// Stamp is populated by Scan from the key the record was read under; it
// is not itself part of the persisted payload, since the payload lives
// at a key that already encodes it.
type Record struct {
	Table  string
	Key    value.RecordIDKey
	Op     Op
	Before value.Value
	After  value.Value
	Stamp  [10]byte
}

// wireRecord is the persisted shape: Table/Key/Stamp all live in the key
// the record is stored under (spec §4.8's prefix||stamp||suffix
// layout), so only Op and the two row snapshots need encoding.
type wireRecord struct {
	Op        int    `codec:"op"`
	BeforeRaw []byte `codec:"before,omitempty"`
	AfterRaw  []byte `codec:"after,omitempty"`
}
