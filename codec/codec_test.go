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

package codec

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/erigontech/driftdb/value"
)

func TestEncodeInt64PreservesOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.Int64().Draw(rt, "a")
		b := rapid.Int64().Draw(rt, "b")
		got := bytes.Compare(EncodeInt64(a), EncodeInt64(b))
		want := 0
		if a < b {
			want = -1
		} else if a > b {
			want = 1
		}
		require.Equal(rt, want, sign(got))
		require.Equal(rt, a, DecodeInt64(EncodeInt64(a)))
	})
}

func TestEncodeFloat64PreservesOrder(t *testing.T) {
	cases := []float64{-100.5, -1, -0.001, 0, 0.001, 1, 100.5}
	for i := 0; i < len(cases); i++ {
		for j := 0; j < len(cases); j++ {
			got := bytes.Compare(EncodeFloat64(cases[i]), EncodeFloat64(cases[j]))
			want := 0
			if cases[i] < cases[j] {
				want = -1
			} else if cases[i] > cases[j] {
				want = 1
			}
			require.Equal(t, want, sign(got), "i=%d j=%d", i, j)
		}
	}
}

func TestEncodeBytesRoundtripAndOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.SliceOf(rapid.Byte()).Draw(rt, "a")
		b := rapid.SliceOf(rapid.Byte()).Draw(rt, "b")
		decodedA, n := DecodeBytes(EncodeBytes(a))
		require.Equal(rt, len(EncodeBytes(a)), n)
		require.True(rt, bytes.Equal(a, decodedA))

		got := bytes.Compare(EncodeBytes(a), EncodeBytes(b))
		want := bytes.Compare(a, b)
		require.Equal(rt, sign(want), sign(got))
	})
}

func TestRecordKeyFamilyPrefixBounds(t *testing.T) {
	prefix := RecordPrefix(1, 2, "person")
	k1 := RecordKey(1, 2, "person", value.IntKey(1))
	k2 := RecordKey(1, 2, "person", value.IntKey(1000))
	require.True(t, bytes.Compare(PrefixBegin(prefix), k1) <= 0)
	require.True(t, bytes.Compare(k1, PrefixEnd(prefix)) < 0)
	require.True(t, bytes.Compare(k2, PrefixEnd(prefix)) < 0)

	otherTable := RecordPrefix(1, 2, "pet")
	require.True(t, bytes.Compare(PrefixEnd(prefix), otherTable) <= 0 || bytes.Compare(otherTable, prefix) <= 0,
		"different table families must not overlap in either direction")
}

func TestIndexEntryKeyOrdersByColumnThenRecord(t *testing.T) {
	a, err := IndexEntryKey(1, 1, "person", "idx_age", []value.Value{value.Int(10)}, value.IntKey(1), false)
	require.NoError(t, err)
	b, err := IndexEntryKey(1, 1, "person", "idx_age", []value.Value{value.Int(20)}, value.IntKey(0), false)
	require.NoError(t, err)
	require.True(t, bytes.Compare(a, b) < 0, "column value dominates record key in composite index ordering")
}

func TestIndexEntryKeyUniqueOmitsRecordKeyFromKey(t *testing.T) {
	a, err := IndexEntryKey(1, 1, "person", "idx_email", []value.Value{value.String("a@example.com")}, value.IntKey(1), true)
	require.NoError(t, err)
	b, err := IndexEntryKey(1, 1, "person", "idx_email", []value.Value{value.String("a@example.com")}, value.IntKey(2), true)
	require.NoError(t, err)
	require.Equal(t, a, b, "two records with the same unique-column value must produce the same key")
}

func TestIndexEntryKeyRejectsDecimalColumn(t *testing.T) {
	dec := value.Decimal(big.NewRat(1, 3))
	_, err := IndexEntryKey(1, 1, "person", "idx_balance", []value.Value{dec}, value.IntKey(1), false)
	require.ErrorIs(t, err, ErrUnorderableKind)
}

func TestEncodeValueOrdersIntAndFloatByNumericValue(t *testing.T) {
	cases := []value.Value{
		value.Int(-100),
		value.Float(-1.5),
		value.Int(-1),
		value.Int(0),
		value.Float(0.5),
		value.Int(1),
		value.Float(1.5),
		value.Int(2),
		value.Float(100.25),
		value.Int(1000),
	}
	for i := 0; i < len(cases); i++ {
		for j := i + 1; j < len(cases); j++ {
			got := bytes.Compare(EncodeValue(cases[i]), EncodeValue(cases[j]))
			require.Equal(t, -1, sign(got), "case %d (%v) must sort before case %d (%v)", i, cases[i], j, cases[j])
		}
	}
}

func TestEncodeValueNumericRoundTrips(t *testing.T) {
	// Int and Float share one encoding (see encodeNumeric), so a value
	// decodes back as whichever Kind is narrowest for its exact numeric
	// value rather than necessarily its original Kind; only the exact
	// rational value is guaranteed to round-trip.
	for _, v := range []value.Value{value.Int(0), value.Int(-42), value.Int(1 << 62), value.Float(0), value.Float(-3.25), value.Float(1e18)} {
		encoded := EncodeValue(v)
		decoded, n, err := DecodeValue(encoded)
		require.NoError(t, err)
		require.Equal(t, len(encoded), n)
		require.Equal(t, 0, v.AsRat().Cmp(decoded.AsRat()), "round trip of %v produced %v", v, decoded)
	}
}

func TestEncodeDecimalDistinctValuesDoNotCollide(t *testing.T) {
	a := encodeDecimal(big.NewRat(1, 3))
	b := encodeDecimal(big.NewRat(2, 3))
	require.False(t, bytes.Equal(a, b))
}

func sign(c int) int {
	switch {
	case c < 0:
		return -1
	case c > 0:
		return 1
	default:
		return 0
	}
}
