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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionstampBytesRoundTrip(t *testing.T) {
	v := NextVersionstamp(NextVersionstamp(ZeroVersionstamp))
	got, err := VersionstampFromBytes(v.Bytes())
	require.NoError(t, err)
	require.Equal(t, v, got)
}

func TestVersionstampFromBytesRejectsWrongLength(t *testing.T) {
	_, err := VersionstampFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestVersionstampCompareOrdersBySequenceThenBatch(t *testing.T) {
	a := ZeroVersionstamp
	b := NextVersionstamp(a)
	require.Equal(t, -1, a.Compare(b))
	require.Equal(t, 1, b.Compare(a))
	require.Equal(t, 0, a.Compare(a))
}

func TestNextVersionstampIsMonotonicAndZeroesBatchOrder(t *testing.T) {
	prev := ZeroVersionstamp
	for i := 0; i < 5; i++ {
		next := NextVersionstamp(prev)
		require.Equal(t, 1, next.Compare(prev))
		require.Equal(t, prev.Sequence()+1, next.Sequence())
		require.Equal(t, uint16(0), uint16(next[8])<<8|uint16(next[9]))
		prev = next
	}
}

func TestVersionstampStringIsFixedWidthHex(t *testing.T) {
	require.Len(t, ZeroVersionstamp.String(), 20)
	require.Equal(t, "00000000000000000000", ZeroVersionstamp.String())
}
