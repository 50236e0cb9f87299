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

package kv

// SchemaVersion tags the on-disk key/value layout. Bump it, and provide
// an explicit upgrade path, whenever a key family's byte layout changes
// (spec §6 "Value serialization").
type SchemaVersion struct{ Major, Minor, Patch uint32 }

// DBSchemaVersion versions list
// 1.0 - initial layout: ns/db/tb/record/index families, versionstamped
//
//	change feed, index-append queue.
var DBSchemaVersion = SchemaVersion{Major: 1, Minor: 0, Patch: 0}

// Key families. Each family is a single-byte tag so that
// prefix_begin(family) < key(family, entity) < prefix_end(family) holds
// for every entity, and so that families themselves sort in a fixed,
// documented order (spec §4.3, §6 "Key space layout").
const (
	FamilyNode         byte = 0x01 // /node/<id> -> node metadata
	FamilyNamespace    byte = 0x02 // /ns/<id>/...
	FamilyDatabase     byte = 0x03 // /db/<ns_id>/<db_id>/...
	FamilyTable        byte = 0x04 // /tb/<ns_id>/<db_id>/<tb>/...
	FamilyTableEvent   byte = 0x05
	FamilyTableField   byte = 0x06
	FamilyTableIndex   byte = 0x07
	FamilyTableView    byte = 0x08
	FamilyTableLive    byte = 0x09
	FamilyRecord       byte = 0x10 // /thing/<ns_id>/<db_id>/<tb>/<key> -> record
	FamilyIndexEntry   byte = 0x11 // /ix/<ns_id>/<db_id>/<tb>/<ix>/...
	FamilyIndexAppend  byte = 0x12 // ia:<ns>:<db>:<tb>:<ix>:<seq>
	FamilyIndexPrimary byte = 0x13 // ip:<ns>:<db>:<tb>:<ix>:<record_id>
	FamilyChangeFeed   byte = 0x14 // /cf/<ns_id>/<db_id>/<tb>/<versionstamp>
	FamilyBuilderState byte = 0x15 // temporary/state keys for the online index builder
	FamilyUser         byte = 0x16
	FamilyAccess       byte = 0x17
	FamilyParam        byte = 0x18
	FamilyFunction     byte = 0x19
	FamilyAnalyzer     byte = 0x1a
	FamilyConfig       byte = 0x1b
	FamilyAPI          byte = 0x1c
	FamilySequence     byte = 0x1d // monotonic id allocation per (ns, kind)
	FamilyChangeFeedTS byte = 0x1e // /cfts/<ns_id>/<db_id> -> reserved GetTimestamp counter key
)

// IndexFlags describes structural properties of an index relevant to key
// encoding and iteration, mirroring the teacher's TableFlags bitset
// (erigon-lib/kv/tables.go) but scoped to driftdb's logical indexes
// rather than physical MDBX tables.
type IndexFlags uint

const (
	IndexDefault  IndexFlags = 0x00
	IndexUnique   IndexFlags = 0x01
	IndexFullText IndexFlags = 0x02
	IndexKnn      IndexFlags = 0x04
	IndexDeferred IndexFlags = 0x08
)

// Has reports whether flag is set.
func (f IndexFlags) Has(flag IndexFlags) bool { return f&flag != 0 }
