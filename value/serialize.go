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
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/ugorji/go/codec"
)

// rowRevision tags the wire format of a stored row/document value, the
// same leading-revision-byte discipline the metadata cache uses for
// catalog objects (spec §6 "a leading revision tag").
const rowRevision = 1

var mpHandle = &codec.MsgpackHandle{}

// wireValue is the msgpack-friendly shadow of Value: big.Rat and the
// recursive Array/Object/Record fields don't marshal directly, so rows
// are converted to this shape before encoding and back after decoding.
type wireValue struct {
	Kind     uint8             `codec:"k"`
	Bool     bool              `codec:"b,omitempty"`
	Int      int64             `codec:"i,omitempty"`
	Float    float64           `codec:"f,omitempty"`
	DecNum   []byte            `codec:"dn,omitempty"`
	DecDenom []byte            `codec:"dd,omitempty"`
	Str      string            `codec:"s,omitempty"`
	Bytes    []byte            `codec:"by,omitempty"`
	Datetime time.Time         `codec:"dt,omitempty"`
	Duration int64             `codec:"du,omitempty"`
	UUID     []byte            `codec:"u,omitempty"`
	Array    []wireValue       `codec:"a,omitempty"`
	Object   map[string]wireValue `codec:"o,omitempty"`
	Record   *wireRecordID     `codec:"r,omitempty"`
	Regex    string            `codec:"re,omitempty"`
}

type wireRecordID struct {
	Table  string                `codec:"t"`
	Kind   uint8                 `codec:"k"`
	Int    int64                 `codec:"i,omitempty"`
	Str    string                `codec:"s,omitempty"`
	UUID   []byte                `codec:"u,omitempty"`
	Array  []wireValue           `codec:"a,omitempty"`
	Object map[string]wireValue  `codec:"o,omitempty"`
}

func toWire(v Value) (wireValue, error) {
	w := wireValue{Kind: uint8(v.Kind)}
	switch v.Kind {
	case KindNone, KindNull:
	case KindBool:
		w.Bool = v.Bool
	case KindInt:
		w.Int = v.Int
	case KindFloat:
		w.Float = v.Float
	case KindDecimal:
		if v.Decimal != nil {
			w.DecNum = v.Decimal.Num().Bytes()
			w.DecDenom = v.Decimal.Denom().Bytes()
			w.Bool = v.Decimal.Sign() < 0
		}
	case KindString:
		w.Str = v.Str
	case KindBytes:
		w.Bytes = v.Bytes
	case KindDatetime:
		w.Datetime = v.Datetime
	case KindDuration:
		w.Duration = int64(v.Duration)
	case KindUuid:
		w.UUID = v.UUID[:]
	case KindArray:
		arr := make([]wireValue, len(v.Array))
		for i, e := range v.Array {
			we, err := toWire(e)
			if err != nil {
				return w, err
			}
			arr[i] = we
		}
		w.Array = arr
	case KindObject:
		obj := make(map[string]wireValue, len(v.Object))
		for k, e := range v.Object {
			we, err := toWire(e)
			if err != nil {
				return w, err
			}
			obj[k] = we
		}
		w.Object = obj
	case KindRecordID:
		if v.Record != nil {
			wr, err := recordToWire(v.Record)
			if err != nil {
				return w, err
			}
			w.Record = wr
		}
	case KindRegex:
		w.Regex = v.Regex
	default:
		return w, fmt.Errorf("value: serialize: unsupported kind %d for row storage", v.Kind)
	}
	return w, nil
}

func recordToWire(r *RecordID) (*wireRecordID, error) {
	wr := &wireRecordID{Table: r.Table, Kind: uint8(r.Key.Kind)}
	switch r.Key.Kind {
	case RecordIDKeyInt:
		wr.Int = r.Key.Int
	case RecordIDKeyString:
		wr.Str = r.Key.Str
	case RecordIDKeyUUID:
		wr.UUID = r.Key.UUID[:]
	case RecordIDKeyArray:
		arr := make([]wireValue, len(r.Key.Array))
		for i, e := range r.Key.Array {
			we, err := toWire(e)
			if err != nil {
				return nil, err
			}
			arr[i] = we
		}
		wr.Array = arr
	case RecordIDKeyObject:
		obj := make(map[string]wireValue, len(r.Key.Object))
		for k, e := range r.Key.Object {
			we, err := toWire(e)
			if err != nil {
				return nil, err
			}
			obj[k] = we
		}
		wr.Object = obj
	default:
		return nil, fmt.Errorf("value: serialize: unsupported record id key kind %d for row storage", r.Key.Kind)
	}
	return wr, nil
}

func fromWire(w wireValue) (Value, error) {
	switch Kind(w.Kind) {
	case KindNone:
		return None(), nil
	case KindNull:
		return Null(), nil
	case KindBool:
		return Bool(w.Bool), nil
	case KindInt:
		return Int(w.Int), nil
	case KindFloat:
		return Float(w.Float), nil
	case KindDecimal:
		num := new(big.Int).SetBytes(w.DecNum)
		denom := new(big.Int).SetBytes(w.DecDenom)
		if denom.Sign() == 0 {
			denom.SetInt64(1)
		}
		r := new(big.Rat).SetFrac(num, denom)
		if w.Bool {
			r.Neg(r)
		}
		return Decimal(r), nil
	case KindString:
		return String(w.Str), nil
	case KindBytes:
		return BytesVal(w.Bytes), nil
	case KindDatetime:
		return Value{Kind: KindDatetime, Datetime: w.Datetime}, nil
	case KindDuration:
		return Value{Kind: KindDuration, Duration: time.Duration(w.Duration)}, nil
	case KindUuid:
		var u uuid.UUID
		copy(u[:], w.UUID)
		return Value{Kind: KindUuid, UUID: u}, nil
	case KindArray:
		arr := make([]Value, len(w.Array))
		for i, e := range w.Array {
			v, err := fromWire(e)
			if err != nil {
				return Value{}, err
			}
			arr[i] = v
		}
		return Arr(arr...), nil
	case KindObject:
		obj := make(map[string]Value, len(w.Object))
		for k, e := range w.Object {
			v, err := fromWire(e)
			if err != nil {
				return Value{}, err
			}
			obj[k] = v
		}
		return Obj(obj), nil
	case KindRecordID:
		if w.Record == nil {
			return Value{}, fmt.Errorf("value: serialize: record id value missing record payload")
		}
		r, err := recordFromWire(w.Record)
		if err != nil {
			return Value{}, err
		}
		return RecordVal(r), nil
	case KindRegex:
		return Value{Kind: KindRegex, Regex: w.Regex}, nil
	default:
		return Value{}, fmt.Errorf("value: serialize: unsupported wire kind %d", w.Kind)
	}
}

func recordFromWire(w *wireRecordID) (*RecordID, error) {
	k := RecordIDKey{Kind: RecordIDKeyKind(w.Kind)}
	switch k.Kind {
	case RecordIDKeyInt:
		k.Int = w.Int
	case RecordIDKeyString:
		k.Str = w.Str
	case RecordIDKeyUUID:
		copy(k.UUID[:], w.UUID)
	case RecordIDKeyArray:
		arr := make([]Value, len(w.Array))
		for i, e := range w.Array {
			v, err := fromWire(e)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		k.Array = arr
	case RecordIDKeyObject:
		obj := make(map[string]Value, len(w.Object))
		for name, e := range w.Object {
			v, err := fromWire(e)
			if err != nil {
				return nil, err
			}
			obj[name] = v
		}
		k.Object = obj
	default:
		return nil, fmt.Errorf("value: serialize: unsupported record id key kind %d", w.Kind)
	}
	return &RecordID{Table: w.Table, Key: k}, nil
}

// EncodeRow serializes v (typically a KindObject document) as a
// revision-tagged msgpack payload, the on-disk representation of a
// table row's value.
func EncodeRow(v Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, fmt.Errorf("value: encode row: %w", err)
	}
	var payload []byte
	enc := codec.NewEncoderBytes(&payload, mpHandle)
	if err := enc.Encode(w); err != nil {
		return nil, fmt.Errorf("value: encode row: %w", err)
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, rowRevision)
	out = append(out, payload...)
	return out, nil
}

// DecodeRow is the inverse of EncodeRow.
func DecodeRow(b []byte) (Value, error) {
	if len(b) == 0 {
		return Value{}, fmt.Errorf("value: decode row: empty payload")
	}
	if b[0] != rowRevision {
		return Value{}, fmt.Errorf("value: decode row: unsupported revision %d", b[0])
	}
	var w wireValue
	dec := codec.NewDecoderBytes(b[1:], mpHandle)
	if err := dec.Decode(&w); err != nil {
		return Value{}, fmt.Errorf("value: decode row: %w", err)
	}
	return fromWire(w)
}
