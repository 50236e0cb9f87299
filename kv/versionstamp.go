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

import (
	"encoding/binary"
	"fmt"
)

// Versionstamp is a 10-byte monotonically increasing commit identifier
// (spec §3 "Versionstamp", §4.8). The first 8 bytes are a big-endian
// commit sequence; the last 2 bytes are an intra-commit batch order,
// always zero for values produced by GetTimestamp.
type Versionstamp [10]byte

// ZeroVersionstamp sorts before every Versionstamp GetTimestamp can
// produce; it is the natural "beginning of time" sentinel for range
// scans over change-feed tables.
var ZeroVersionstamp = Versionstamp{}

// Bytes returns the big-endian 10-byte encoding.
func (v Versionstamp) Bytes() []byte {
	b := make([]byte, 10)
	copy(b, v[:])
	return b
}

// Sequence returns the 8-byte commit sequence component.
func (v Versionstamp) Sequence() uint64 {
	return binary.BigEndian.Uint64(v[:8])
}

// Compare orders two stamps; used by change-feed scans and by the
// monotonicity property test (spec §8.9).
func (v Versionstamp) Compare(o Versionstamp) int {
	for i := range v {
		if v[i] != o[i] {
			if v[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (v Versionstamp) String() string {
	return fmt.Sprintf("%016x%04x", v.Sequence(), binary.BigEndian.Uint16(v[8:]))
}

// VersionstampFromBytes parses the 10-byte wire encoding produced by
// Bytes.
func VersionstampFromBytes(b []byte) (Versionstamp, error) {
	var v Versionstamp
	if len(b) != 10 {
		return v, fmt.Errorf("kv: versionstamp must be 10 bytes, got %d", len(b))
	}
	copy(v[:], b)
	return v, nil
}

// NextVersionstamp increments the sequence component by one, keeping the
// batch-order component at zero. This is the pure function GetTimestamp
// applies to the previous stored value.
func NextVersionstamp(prev Versionstamp) Versionstamp {
	seq := prev.Sequence() + 1
	var next Versionstamp
	binary.BigEndian.PutUint64(next[:8], seq)
	return next
}
