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

// Package value implements the tagged-value union every record field,
// expression result, and index key component is built from (spec §3
// "Value").
package value

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Kind tags a Value's variant. Kinds are ordered; this order is the
// fallback comparison key between values of different kinds (spec §3:
// "Equality, ordering ... pointwise with explicit precedence").
type Kind uint8

const (
	KindNone Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindBytes
	KindDatetime
	KindDuration
	KindUuid
	KindArray
	KindObject
	KindRecordID
	KindRange
	KindGeometry
	KindFile
	KindRegex
	KindClosure
	KindTable
)

// numeric subtype precedence, spec §3: "Int < Float < Decimal, losing
// precision errors where explicit casts don't permit it".
const (
	numInt = iota
	numFloat
	numDecimal
)

// Value is a recursive tagged union. Only the field matching Kind is
// meaningful; all others are zero.
type Value struct {
	Kind Kind

	Bool     bool
	Int      int64
	Float    float64
	Decimal  *big.Rat
	Str      string
	Bytes    []byte
	Datetime time.Time
	Duration time.Duration
	UUID     uuid.UUID
	Array    []Value
	Object   map[string]Value
	Record   *RecordID
	Range    *ValueRange
	Regex    string
}

// ValueRange is a bounded range of values with inclusive/exclusive
// endpoints, used both as a standalone Value (KindRange) and to bound a
// RecordIdKey (spec §3 "RecordId").
type ValueRange struct {
	Start        Value
	StartIncl    bool
	End          Value
	EndIncl      bool
	HasStart     bool
	HasEnd       bool
}

func None() Value                { return Value{Kind: KindNone} }
func Null() Value                { return Value{Kind: KindNull} }
func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value          { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value      { return Value{Kind: KindFloat, Float: f} }
func Decimal(r *big.Rat) Value   { return Value{Kind: KindDecimal, Decimal: r} }
func String(s string) Value      { return Value{Kind: KindString, Str: s} }
func BytesVal(b []byte) Value    { return Value{Kind: KindBytes, Bytes: b} }
func Arr(vs ...Value) Value      { return Value{Kind: KindArray, Array: vs} }
func Obj(m map[string]Value) Value { return Value{Kind: KindObject, Object: m} }
func RecordVal(r *RecordID) Value  { return Value{Kind: KindRecordID, Record: r} }

// IsNone reports whether v is the absent-value sentinel (not the same as
// SQL NULL: None means "no value was produced", Null is an explicit
// value).
func (v Value) IsNone() bool { return v.Kind == KindNone }

// Truthy implements the language's truthiness rules: None/Null/false/0/
// ""/empty-array/empty-object are false, everything else is true.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNone, KindNull:
		return false
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0
	case KindDecimal:
		return v.Decimal != nil && v.Decimal.Sign() != 0
	case KindString:
		return v.Str != ""
	case KindBytes:
		return len(v.Bytes) != 0
	case KindArray:
		return len(v.Array) != 0
	case KindObject:
		return len(v.Object) != 0
	default:
		return true
	}
}

func numericSubtype(k Kind) int {
	switch k {
	case KindInt:
		return numInt
	case KindFloat:
		return numFloat
	case KindDecimal:
		return numDecimal
	default:
		return -1
	}
}

// AsRat returns a value's numeric variants as an exact rational, for use
// by comparison and coercion. Only valid for numeric kinds.
func (v Value) AsRat() *big.Rat {
	switch v.Kind {
	case KindInt:
		return new(big.Rat).SetInt64(v.Int)
	case KindFloat:
		r := new(big.Rat)
		r.SetFloat64(v.Float)
		return r
	case KindDecimal:
		return v.Decimal
	default:
		return nil
	}
}

// Compare implements the total order over Values (spec §3). Values of
// different non-numeric kinds compare by Kind; numeric kinds of any
// subtype compare by numeric value first, falling back to subtype
// precedence only to break numeric ties so that 1 (int) < 1.0 (float) <
// 1 (decimal) is a stable, total order.
func Compare(a, b Value) int {
	aNum, bNum := numericSubtype(a.Kind), numericSubtype(b.Kind)
	if aNum >= 0 && bNum >= 0 {
		c := a.AsRat().Cmp(b.AsRat())
		if c != 0 {
			return c
		}
		if aNum != bNum {
			return aNum - bNum
		}
		return 0
	}
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	switch a.Kind {
	case KindNone, KindNull:
		return 0
	case KindBool:
		return boolCompare(a.Bool, b.Bool)
	case KindString:
		return stringsCompare(a.Str, b.Str)
	case KindBytes:
		return bytesCompare(a.Bytes, b.Bytes)
	case KindDatetime:
		if a.Datetime.Before(b.Datetime) {
			return -1
		}
		if a.Datetime.After(b.Datetime) {
			return 1
		}
		return 0
	case KindDuration:
		return int(a.Duration - b.Duration)
	case KindUuid:
		return bytesCompare(a.UUID[:], b.UUID[:])
	case KindArray:
		for i := 0; i < len(a.Array) && i < len(b.Array); i++ {
			if c := Compare(a.Array[i], b.Array[i]); c != 0 {
				return c
			}
		}
		return len(a.Array) - len(b.Array)
	case KindObject:
		return compareObjects(a.Object, b.Object)
	case KindRecordID:
		return CompareRecordID(a.Record, b.Record)
	default:
		return 0
	}
}

func compareObjects(a, b map[string]Value) int {
	ak, bk := sortedKeys(a), sortedKeys(b)
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := stringsCompare(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := Compare(a[ak[i]], b[bk[i]]); c != 0 {
			return c
		}
	}
	return len(ak) - len(bk)
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func stringsCompare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func bytesCompare(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}

// Equal reports whether a and b compare equal.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

// CoerceNumeric implicitly widens a to match the numeric subtype of
// target's kind when both are numeric, per the coercion table in spec
// §3/§9. It never loses precision silently going Decimal -> Float ->
// Int; narrowing returns an error instead.
func CoerceNumeric(a Value, target Kind) (Value, error) {
	aNum, tNum := numericSubtype(a.Kind), numericSubtype(target)
	if aNum < 0 || tNum < 0 {
		return Value{}, fmt.Errorf("value: CoerceNumeric: %v is not numeric", a.Kind)
	}
	if aNum == tNum {
		return a, nil
	}
	if aNum < tNum {
		switch target {
		case KindFloat:
			return Float(ratToFloat(a.AsRat())), nil
		case KindDecimal:
			return Decimal(a.AsRat()), nil
		}
	}
	// Narrowing: only allowed when the value is exactly representable.
	switch target {
	case KindInt:
		r := a.AsRat()
		if !r.IsInt() {
			return Value{}, fmt.Errorf("value: CoerceNumeric: %v does not fit exactly in Int", a)
		}
		return Int(r.Num().Int64()), nil
	case KindFloat:
		f, exact := a.AsRat().Float64()
		if math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("value: CoerceNumeric: %v overflows Float", a)
		}
		if !exact {
			return Value{}, fmt.Errorf("value: CoerceNumeric: %v does not fit exactly in Float", a)
		}
		return Float(f), nil
	}
	return Value{}, fmt.Errorf("value: CoerceNumeric: unsupported target kind %v", target)
}

func ratToFloat(r *big.Rat) float64 {
	f, _ := r.Float64()
	return f
}

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindDatetime:
		return "datetime"
	case KindDuration:
		return "duration"
	case KindUuid:
		return "uuid"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindRecordID:
		return "record"
	case KindRange:
		return "range"
	case KindGeometry:
		return "geometry"
	case KindFile:
		return "file"
	case KindRegex:
		return "regex"
	case KindClosure:
		return "closure"
	case KindTable:
		return "table"
	default:
		return "unknown"
	}
}
