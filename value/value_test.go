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

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareNumericPrecedence(t *testing.T) {
	i := Int(1)
	f := Float(1.0)
	d := Decimal(big.NewRat(1, 1))
	require.Less(t, Compare(i, f), 0)
	require.Less(t, Compare(f, d), 0)
	require.Less(t, Compare(i, d), 0)
	require.True(t, Equal(Int(2), Float(2.0)) == false, "numeric subtype breaks ties, equal values of different subtypes are not Equal")
}

func TestCompareKindPrecedence(t *testing.T) {
	require.Less(t, Compare(Null(), Bool(true)), 0)
	require.Less(t, Compare(Bool(true), String("x")), 0)
}

func TestTruthy(t *testing.T) {
	require.False(t, None().Truthy())
	require.False(t, Null().Truthy())
	require.False(t, Int(0).Truthy())
	require.True(t, Int(1).Truthy())
	require.False(t, String("").Truthy())
	require.True(t, String("a").Truthy())
	require.False(t, Arr().Truthy())
	require.True(t, Arr(Int(1)).Truthy())
}

func TestCoerceNumericWidening(t *testing.T) {
	f, err := CoerceNumeric(Int(5), KindFloat)
	require.NoError(t, err)
	require.Equal(t, 5.0, f.Float)

	d, err := CoerceNumeric(Float(2.5), KindDecimal)
	require.NoError(t, err)
	require.Equal(t, 0, d.Decimal.Cmp(big.NewRat(5, 2)))
}

func TestCoerceNumericNarrowingRejectsLossy(t *testing.T) {
	_, err := CoerceNumeric(Float(1.5), KindInt)
	require.Error(t, err)

	exact, err := CoerceNumeric(Float(3.0), KindInt)
	require.NoError(t, err)
	require.Equal(t, int64(3), exact.Int)
}

func TestRecordIDOrdering(t *testing.T) {
	a := NewRecordID("person", IntKey(1))
	b := NewRecordID("person", IntKey(2))
	c := NewRecordID("zebra", IntKey(0))
	require.Less(t, CompareRecordID(a, b), 0)
	require.Less(t, CompareRecordID(b, c), 0, "table ordering dominates key ordering")
}

func TestRecordIDKeyVariantOrdering(t *testing.T) {
	ik := NewRecordID("t", IntKey(100))
	sk := NewRecordID("t", StringKey("a"))
	require.Less(t, CompareRecordID(ik, sk), 0, "Int variant sorts before String variant regardless of content")
}
