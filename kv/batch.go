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

// NormalFetchSize is the default chunk size used internally by
// GetPrefix/GetRange/DeleteRange/DeletePrefix/Count when they iterate a
// backend in pages rather than materializing the whole range at once.
const NormalFetchSize = 1024

// Batch is a sized slice of results plus an optional continuation range.
// A nil Continuation means the source range is exhausted.
type Batch[T any] struct {
	Items        []T
	Continuation *Range
}

// Done reports whether this batch is the last one for its scan.
func (b Batch[T]) Done() bool { return b.Continuation == nil }

// ResumeKey returns the key to pass as the next scan's lower bound so
// that iteration resumes strictly after lastKey: the codec guarantees
// appending 0x00 to a key produces the immediate successor in byte
// order (spec §4.3).
func ResumeKey(lastKey []byte) []byte {
	next := make([]byte, len(lastKey)+1)
	copy(next, lastKey)
	next[len(lastKey)] = 0x00
	return next
}

// UpperBound returns a key strictly greater than any extension of
// prefix, by appending 0xff. Used to build a prefix-scan's exclusive end
// bound.
func UpperBound(prefix []byte) []byte {
	next := make([]byte, len(prefix)+1)
	copy(next, prefix)
	next[len(prefix)] = 0xff
	return next
}
