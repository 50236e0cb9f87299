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

package value

import "fmt"

// RecordIDKeyKind tags which variant a RecordIdKey holds (spec §3
// "RecordId").
type RecordIDKeyKind uint8

const (
	RecordIDKeyInt RecordIDKeyKind = iota
	RecordIDKeyString
	RecordIDKeyUUID
	RecordIDKeyArray
	RecordIDKeyObject
	RecordIDKeyRange
)

// RecordIDKey is one of: signed 64-bit integer, string, UUID v7, array of
// values, object of string->value, or a bounded range of keys.
type RecordIDKey struct {
	Kind   RecordIDKeyKind
	Int    int64
	Str    string
	UUID   [16]byte
	Array  []Value
	Object map[string]Value
	Range  *ValueRange
}

// RecordID is (table, key); RecordIds sort first by table then by key
// (spec §3).
type RecordID struct {
	Table string
	Key   RecordIDKey
}

func (r *RecordID) String() string {
	return fmt.Sprintf("%s:%s", r.Table, r.Key.String())
}

func (k RecordIDKey) String() string {
	switch k.Kind {
	case RecordIDKeyInt:
		return fmt.Sprintf("%d", k.Int)
	case RecordIDKeyString:
		return k.Str
	case RecordIDKeyUUID:
		return fmt.Sprintf("%x", k.UUID)
	case RecordIDKeyArray:
		return fmt.Sprintf("%v", k.Array)
	case RecordIDKeyObject:
		return fmt.Sprintf("%v", k.Object)
	case RecordIDKeyRange:
		return "range"
	default:
		return "?"
	}
}

// CompareRecordID orders two RecordIds: table first (lexicographically),
// then key, with keys ordered by variant tag then content (spec §3).
func CompareRecordID(a, b *RecordID) int {
	if c := stringsCompare(a.Table, b.Table); c != 0 {
		return c
	}
	return compareRecordIDKey(a.Key, b.Key)
}

func compareRecordIDKey(a, b RecordIDKey) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	switch a.Kind {
	case RecordIDKeyInt:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	case RecordIDKeyString:
		return stringsCompare(a.Str, b.Str)
	case RecordIDKeyUUID:
		return bytesCompare(a.UUID[:], b.UUID[:])
	case RecordIDKeyArray:
		for i := 0; i < len(a.Array) && i < len(b.Array); i++ {
			if c := Compare(a.Array[i], b.Array[i]); c != 0 {
				return c
			}
		}
		return len(a.Array) - len(b.Array)
	case RecordIDKeyObject:
		return compareObjects(a.Object, b.Object)
	default:
		return 0
	}
}

func IntKey(i int64) RecordIDKey                { return RecordIDKey{Kind: RecordIDKeyInt, Int: i} }
func StringKey(s string) RecordIDKey            { return RecordIDKey{Kind: RecordIDKeyString, Str: s} }
func UUIDKey(u [16]byte) RecordIDKey            { return RecordIDKey{Kind: RecordIDKeyUUID, UUID: u} }
func ArrayKey(vs ...Value) RecordIDKey          { return RecordIDKey{Kind: RecordIDKeyArray, Array: vs} }
func ObjectKey(m map[string]Value) RecordIDKey  { return RecordIDKey{Kind: RecordIDKeyObject, Object: m} }

func NewRecordID(table string, key RecordIDKey) *RecordID {
	return &RecordID{Table: table, Key: key}
}
