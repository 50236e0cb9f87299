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

// Package codec produces byte-exact, order-preserving keys for every
// scope driftdb needs to address (spec §4.3 "Key Codec"): namespaces,
// databases, tables and their children, record rows, index entries, the
// index builder's append/primary queues, and change-feed entries.
//
// The guarantee every function here upholds: prefix_begin(scope) <=
// key(scope, entity) < prefix_end(scope) for every entity in scope, and
// lexicographic key order reflects the intended logical order.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/value"
)

// EncodeUint64 encodes u so that byte order equals numeric order.
func EncodeUint64(u uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, u)
	return b
}

func DecodeUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// EncodeInt64 encodes i so that byte order equals numeric order, by
// flipping the sign bit (standard two's-complement-to-ordered trick).
func EncodeInt64(i int64) []byte {
	u := uint64(i) ^ (1 << 63)
	return EncodeUint64(u)
}

func DecodeInt64(b []byte) int64 {
	u := binary.BigEndian.Uint64(b)
	return int64(u ^ (1 << 63))
}

// EncodeFloat64 encodes f so that byte order equals numeric order: for
// non-negative floats flip the sign bit, for negative floats invert all
// bits (so that more-negative sorts first).
func EncodeFloat64(f float64) []byte {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, bits)
	return b
}

func DecodeFloat64(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}

// EncodeBytes escapes b so that concatenation with a following field
// never creates ambiguity, FoundationDB-tuple-layer style: every 0x00
// byte is escaped to 0x00 0xff, and the field is terminated by 0x00
// 0x00. This keeps lexicographic order over the escaped bytes identical
// to lexicographic order over the original bytes.
func EncodeBytes(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	for _, c := range b {
		if c == 0x00 {
			out = append(out, 0x00, 0xff)
		} else {
			out = append(out, c)
		}
	}
	return append(out, 0x00, 0x00)
}

// DecodeBytes reverses EncodeBytes, returning the decoded field and the
// number of encoded bytes consumed.
func DecodeBytes(b []byte) ([]byte, int) {
	out := make([]byte, 0, len(b))
	i := 0
	for i < len(b) {
		if b[i] == 0x00 {
			if i+1 < len(b) && b[i+1] == 0xff {
				out = append(out, 0x00)
				i += 2
				continue
			}
			// 0x00 0x00 terminator
			return out, i + 2
		}
		out = append(out, b[i])
		i++
	}
	return out, i
}

func EncodeString(s string) []byte { return EncodeBytes([]byte(s)) }

// --- Scope prefixes (spec §6 "Key space layout") ---

// byIDMarker/byNameMarker split a schema family with an independent
// numeric id (namespace, database) into two disjoint sub-ranges: one
// keyed by id (for ordered enumeration, AllNamespaces/AllDatabases) and
// one keyed by name (for name lookups). Both entries are written with
// the same encoded value on create, so either path decodes the same
// object (see meta.Cache.GetOrAddNamespace).
const (
	byIDMarker   = 0x01
	byNameMarker = 0xfe
)

// NamespacesByIDPrefix bounds the id-ordered namespace keyspace, used by
// AllNamespaces.
func NamespacesByIDPrefix() []byte { return []byte{kv.FamilyNamespace, byIDMarker} }

func NamespaceKey(nsID uint64) []byte {
	return append(NamespacesByIDPrefix(), EncodeUint64(nsID)...)
}

// NamespaceNameKey looks up a namespace's record by name (namespaces
// are the one schema object with an independent numeric id, per spec
// §3 "Identifiers": "each namespace/database is identified by a name
// and a monotonically-assigned numeric id").
func NamespaceNameKey(name string) []byte {
	return append([]byte{kv.FamilyNamespace, byNameMarker}, EncodeString(name)...)
}

// DatabasesByIDPrefix bounds the id-ordered database keyspace for one
// namespace, used by AllDatabases.
func DatabasesByIDPrefix(nsID uint64) []byte {
	return append([]byte{kv.FamilyDatabase, byIDMarker}, EncodeUint64(nsID)...)
}

func DatabaseKey(nsID, dbID uint64) []byte {
	return append(DatabasesByIDPrefix(nsID), EncodeUint64(dbID)...)
}

// DatabaseNameKey looks up a database's record by name within a
// namespace, mirroring NamespaceNameKey.
func DatabaseNameKey(nsID uint64, name string) []byte {
	return append([]byte{kv.FamilyDatabase, byNameMarker}, append(EncodeUint64(nsID), EncodeString(name)...)...)
}

// SequenceKey addresses the monotonic id counter for one (scope, kind)
// pair, e.g. "namespace ids" or "database ids within namespace 3" (spec
// §3: "a monotonically-assigned numeric id").
func SequenceKey(kind string, scope ...uint64) []byte {
	k := []byte{kv.FamilySequence}
	k = append(k, EncodeString(kind)...)
	for _, s := range scope {
		k = append(k, EncodeUint64(s)...)
	}
	return k
}

// TablesPrefix bounds every table defined in one database, used by
// AllTables.
func TablesPrefix(nsID, dbID uint64) []byte {
	return append([]byte{kv.FamilyTable}, append(EncodeUint64(nsID), EncodeUint64(dbID)...)...)
}

func TableKey(nsID, dbID uint64, table string) []byte {
	return append(TablesPrefix(nsID, dbID), EncodeString(table)...)
}

// TableChildPrefix scopes one of a table's child keyspaces (events,
// fields, indexes, views, live queries) by family tag.
func TableChildPrefix(family byte, nsID, dbID uint64, table string) []byte {
	return append([]byte{family}, append(EncodeUint64(nsID), append(EncodeUint64(dbID), EncodeString(table)...)...)...)
}

func TableChildKey(family byte, nsID, dbID uint64, table, name string) []byte {
	return append(TableChildPrefix(family, nsID, dbID, table), EncodeString(name)...)
}

// RecordPrefix scopes every record row of one table.
func RecordPrefix(nsID, dbID uint64, table string) []byte {
	return append([]byte{kv.FamilyRecord}, append(EncodeUint64(nsID), append(EncodeUint64(dbID), EncodeString(table)...)...)...)
}

// RecordKey encodes the full key for one record row.
func RecordKey(nsID, dbID uint64, table string, key value.RecordIDKey) []byte {
	return append(RecordPrefix(nsID, dbID, table), EncodeRecordIDKey(key)...)
}

// EncodeRecordIDKey encodes a RecordIdKey preserving variant-tag-then-
// content ordering (spec §3 "RecordId").
func EncodeRecordIDKey(k value.RecordIDKey) []byte {
	out := []byte{byte(k.Kind)}
	switch k.Kind {
	case value.RecordIDKeyInt:
		out = append(out, EncodeInt64(k.Int)...)
	case value.RecordIDKeyString:
		out = append(out, EncodeString(k.Str)...)
	case value.RecordIDKeyUUID:
		out = append(out, k.UUID[:]...)
	case value.RecordIDKeyArray:
		for _, v := range k.Array {
			out = append(out, EncodeValue(v)...)
		}
		out = append(out, 0x00, 0x00) // array terminator
	case value.RecordIDKeyObject:
		keys := make([]string, 0, len(k.Object))
		for name := range k.Object {
			keys = append(keys, name)
		}
		sortStrings(keys)
		for _, name := range keys {
			out = append(out, EncodeString(name)...)
			out = append(out, EncodeValue(k.Object[name])...)
		}
		out = append(out, 0x00, 0x00)
	case value.RecordIDKeyRange:
		// Ranges are never used as a concrete scan key component; callers
		// encode Start/End separately via EncodeValue.
	}
	return out
}

// numericTag is the shared leading byte for KindInt and KindFloat once
// encoded (spec §4.3 "numeric values are encoded so that numeric order =
// byte order"): both subtypes are reduced to the same exact-rational
// ordered encoding (see encodeNumeric), so a column holding a mix of ints
// and floats still sorts by true numeric value rather than by subtype.
// It deliberately lies outside value.Kind's range so DecodeValue can tell
// it apart from every tagged scalar kind.
const numericTag = 0xf0

// EncodeValue encodes a scalar Value preserving Kind-tag-then-content
// ordering, for use as an index-key component (spec §4.3 "Composite
// index keys preserve per-column lexicographic order"). Int and Float
// share numericTag and an order-preserving exact-rational encoding
// (encodeNumeric) so mixed-subtype numeric columns still sort by value.
func EncodeValue(v value.Value) []byte {
	switch v.Kind {
	case value.KindInt, value.KindFloat:
		return append([]byte{numericTag}, encodeNumeric(v.AsRat())...)
	case value.KindDecimal:
		return append([]byte{byte(v.Kind)}, encodeDecimal(v.Decimal)...)
	}
	out := []byte{byte(v.Kind)}
	switch v.Kind {
	case value.KindBool:
		if v.Bool {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	case value.KindString:
		out = append(out, EncodeString(v.Str)...)
	case value.KindBytes:
		out = append(out, EncodeBytes(v.Bytes)...)
	case value.KindDatetime:
		out = append(out, EncodeInt64(v.Datetime.UnixNano())...)
	case value.KindDuration:
		out = append(out, EncodeInt64(int64(v.Duration))...)
	case value.KindUuid:
		out = append(out, v.UUID[:]...)
	case value.KindRecordID:
		out = append(out, EncodeString(v.Record.Table)...)
		out = append(out, EncodeRecordIDKey(v.Record.Key)...)
	}
	return out
}

// encodeNumeric encodes an exact rational as sign-byte + normalized
// (exponent, mantissa), ascending in byte order with true numeric order.
// r's denominator must be a power of two (always true for Int/Float's
// AsRat, since Int has denominator 1 and Float's comes from
// big.Rat.SetFloat64), so the exponent/mantissa split is an exact bit
// shift — no rounding, no remainder.
func encodeNumeric(r *big.Rat) []byte {
	switch r.Sign() {
	case 0:
		return []byte{0x01}
	case 1:
		return append([]byte{0x02}, encodeMagnitude(r, false)...)
	default:
		return append([]byte{0x00}, encodeMagnitude(r, true)...)
	}
}

// encodeMagnitude lays out r's absolute value as a sign-flipped int32
// exponent followed by a 64-bit left-justified mantissa (mantissa's top
// bit is always 1), both ascending with magnitude; for negative values
// every byte is inverted so that larger magnitude sorts first (more
// negative = smaller).
func encodeMagnitude(r *big.Rat, negative bool) []byte {
	num := new(big.Int).Abs(r.Num())
	den := r.Denom() // always positive; a power of two for Int/Float
	bits := num.BitLen()
	k := den.BitLen() - 1
	exp := int32(bits - 1 - k)
	m := new(big.Int).Set(num)
	if bits > 64 {
		m.Rsh(m, uint(bits-64)) // only zero low bits are dropped for Int/Float
	} else {
		m.Lsh(m, uint(64-bits))
	}
	mant := m.Uint64()

	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[0:4], uint32(exp)^(1<<31))
	binary.BigEndian.PutUint64(buf[4:12], mant)
	if negative {
		for i := range buf {
			buf[i] = ^buf[i]
		}
	}
	return buf
}

// decodeNumeric reverses encodeNumeric, returning the exact value as the
// narrowest Kind (Int when the reconstructed rational is integral,
// otherwise Float) and the number of bytes consumed.
func decodeNumeric(b []byte) (value.Value, int, error) {
	if len(b) == 0 {
		return value.Value{}, 0, fmt.Errorf("codec: decodeNumeric: empty input")
	}
	switch b[0] {
	case 0x01:
		return value.Int(0), 1, nil
	case 0x02, 0x00:
		if len(b) < 13 {
			return value.Value{}, 0, fmt.Errorf("codec: decodeNumeric: truncated magnitude")
		}
		negative := b[0] == 0x00
		buf := make([]byte, 12)
		copy(buf, b[1:13])
		if negative {
			for i := range buf {
				buf[i] = ^buf[i]
			}
		}
		exp := int32(binary.BigEndian.Uint32(buf[0:4]) ^ (1 << 31))
		mant := binary.BigEndian.Uint64(buf[4:12])

		num := new(big.Int).SetUint64(mant)
		r := new(big.Rat)
		if shift := int(exp) - 63; shift >= 0 {
			num.Lsh(num, uint(shift))
			r.SetInt(num)
		} else {
			den := new(big.Int).Lsh(big.NewInt(1), uint(-shift))
			r.SetFrac(num, den)
		}
		if negative {
			r.Neg(r)
		}
		if r.IsInt() && r.Num().IsInt64() {
			return value.Int(r.Num().Int64()), 13, nil
		}
		f, _ := r.Float64()
		return value.Float(f), 13, nil
	default:
		return value.Value{}, 0, fmt.Errorf("codec: decodeNumeric: invalid sign byte %#x", b[0])
	}
}

// encodeDecimal encodes an exact rational losslessly but not in
// numeric-order-preserving form (spec §4.3's Open Question on Decimal
// indexing: Decimal's denominator need not be a power of two, so it
// cannot share Int/Float's ordered encoding). This keeps distinct
// decimals from colliding in non-ordered contexts such as GROUP BY keys
// (exec.HashAggregate); callers that need ordering (index columns) must
// reject Decimal at plan time instead (see meta.Cache.AddIndex).
func encodeDecimal(r *big.Rat) []byte {
	num, den := r.Num().Bytes(), r.Denom().Bytes()
	out := []byte{0}
	if r.Sign() < 0 {
		out[0] = 1
	}
	out = append(out, EncodeUint64(uint64(len(num)))...)
	out = append(out, num...)
	out = append(out, EncodeUint64(uint64(len(den)))...)
	out = append(out, den...)
	return out
}

func decodeDecimal(b []byte) (value.Value, int, error) {
	if len(b) < 1+8 {
		return value.Value{}, 0, fmt.Errorf("codec: decodeDecimal: truncated input")
	}
	neg := b[0] == 1
	pos := 1
	numLen := int(DecodeUint64(b[pos : pos+8]))
	pos += 8
	if pos+numLen+8 > len(b) {
		return value.Value{}, 0, fmt.Errorf("codec: decodeDecimal: truncated numerator")
	}
	num := new(big.Int).SetBytes(b[pos : pos+numLen])
	pos += numLen
	denLen := int(DecodeUint64(b[pos : pos+8]))
	pos += 8
	if pos+denLen > len(b) {
		return value.Value{}, 0, fmt.Errorf("codec: decodeDecimal: truncated denominator")
	}
	den := new(big.Int).SetBytes(b[pos : pos+denLen])
	pos += denLen
	if den.Sign() == 0 {
		den = big.NewInt(1)
	}
	r := new(big.Rat).SetFrac(num, den)
	if neg {
		r.Neg(r)
	}
	return value.Decimal(r), pos, nil
}

// DecodeValue reverses EncodeValue for the scalar kinds index columns
// are actually built from (bool, int, float, string, bytes, datetime,
// duration, uuid, record-id); it returns the number of bytes consumed
// so a caller can decode a fixed sequence of columns followed by a
// trailing record key out of one contiguous index-entry key. Container
// kinds (array/object/range) are never used as a single index column
// and are not supported here.
func DecodeValue(b []byte) (value.Value, int, error) {
	if len(b) == 0 {
		return value.Value{}, 0, fmt.Errorf("codec: DecodeValue: empty input")
	}
	if b[0] == numericTag {
		v, n, err := decodeNumeric(b[1:])
		return v, 1 + n, err
	}
	kind := value.Kind(b[0])
	rest := b[1:]
	switch kind {
	case value.KindNone, value.KindNull:
		return value.Value{Kind: kind}, 1, nil
	case value.KindBool:
		return value.Bool(rest[0] != 0), 2, nil
	case value.KindDecimal:
		v, n, err := decodeDecimal(rest)
		return v, 1 + n, err
	case value.KindString:
		s, n := DecodeBytes(rest)
		return value.String(string(s)), 1 + n, nil
	case value.KindBytes:
		bs, n := DecodeBytes(rest)
		return value.BytesVal(bs), 1 + n, nil
	case value.KindDatetime:
		return value.Value{Kind: value.KindDatetime, Datetime: time.Unix(0, DecodeInt64(rest[:8])).UTC()}, 9, nil
	case value.KindDuration:
		return value.Value{Kind: value.KindDuration, Duration: time.Duration(DecodeInt64(rest[:8]))}, 9, nil
	case value.KindUuid:
		var u [16]byte
		copy(u[:], rest[:16])
		return value.Value{Kind: value.KindUuid, UUID: u}, 17, nil
	case value.KindRecordID:
		table, n1 := DecodeBytes(rest)
		key, n2, err := DecodeRecordIDKey(rest[n1:])
		if err != nil {
			return value.Value{}, 0, err
		}
		return value.RecordVal(value.NewRecordID(string(table), key)), 1 + n1 + n2, nil
	default:
		return value.Value{}, 0, fmt.Errorf("codec: DecodeValue: unsupported kind %v for generic decode", kind)
	}
}

// DecodeRecordIDKey reverses EncodeRecordIDKey for the Int/String/UUID
// variants; array/object/range record keys are not supported by generic
// decode (see DecodeValue).
func DecodeRecordIDKey(b []byte) (value.RecordIDKey, int, error) {
	if len(b) == 0 {
		return value.RecordIDKey{}, 0, fmt.Errorf("codec: DecodeRecordIDKey: empty input")
	}
	kind := value.RecordIDKeyKind(b[0])
	rest := b[1:]
	switch kind {
	case value.RecordIDKeyInt:
		return value.IntKey(DecodeInt64(rest[:8])), 9, nil
	case value.RecordIDKeyString:
		s, n := DecodeBytes(rest)
		return value.StringKey(string(s)), 1 + n, nil
	case value.RecordIDKeyUUID:
		var u [16]byte
		copy(u[:], rest[:16])
		return value.UUIDKey(u), 17, nil
	default:
		return value.RecordIDKey{}, 0, fmt.Errorf("codec: DecodeRecordIDKey: unsupported variant %v for generic decode", kind)
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// --- Index entry / queue keys (spec §4.6, §4.7) ---

func IndexEntryPrefix(nsID, dbID uint64, table, index string) []byte {
	return append([]byte{kv.FamilyIndexEntry}, append(EncodeUint64(nsID), append(EncodeUint64(dbID), append(EncodeString(table), EncodeString(index)...)...)...)...)
}

// IndexEntryKey encodes an index entry key: prefix + each indexed
// column's encoded value (in column order), so composite equality-then-
// range scans can share a fixed prefix. For a non-unique index the
// record's key is appended to the key itself, so distinct records with
// equal column values still produce distinct keys and coexist (spec
// §4.6 "Equality (index and unique)"). For a unique index the record
// key is omitted from the key entirely — the caller must store it in
// the entry's value instead, via IndexEntryValue, and write with
// Put-if-absent so a second record with the same column values fails
// with kv.ErrAlreadyExists rather than silently coexisting (spec §7
// Validation/Concurrency, §8 duplicate-key scenario).
//
// Decimal columns are rejected: encodeDecimal is not order-preserving
// (spec §4.3), so an index over a decimal column would silently return
// wrong rows from a range scan. Callers should reject decimal index
// columns earlier, at DEFINE INDEX time (see meta.Cache.AddIndex); this
// check is the last line of defense against a decimal column produced
// by some path that did not run that check.
func IndexEntryKey(nsID, dbID uint64, table, index string, columns []value.Value, recordKey value.RecordIDKey, unique bool) ([]byte, error) {
	k := IndexEntryPrefix(nsID, dbID, table, index)
	for _, c := range columns {
		if c.Kind == value.KindDecimal {
			return nil, ErrUnorderableKind
		}
		k = append(k, EncodeValue(c)...)
	}
	if unique {
		return k, nil
	}
	return append(k, EncodeRecordIDKey(recordKey)...), nil
}

// IndexEntryValue encodes the record key a unique index entry carries in
// its value rather than its key (see IndexEntryKey).
func IndexEntryValue(recordKey value.RecordIDKey) []byte {
	return EncodeRecordIDKey(recordKey)
}

// DecodeIndexEntryValue reverses IndexEntryValue.
func DecodeIndexEntryValue(b []byte) (value.RecordIDKey, error) {
	rk, _, err := DecodeRecordIDKey(b)
	return rk, err
}

func IndexAppendPrefix(nsID, dbID uint64, table, index string) []byte {
	return append([]byte{kv.FamilyIndexAppend}, append(EncodeUint64(nsID), append(EncodeUint64(dbID), append(EncodeString(table), EncodeString(index)...)...)...)...)
}

func IndexAppendKey(nsID, dbID uint64, table, index string, seq uint64) []byte {
	return append(IndexAppendPrefix(nsID, dbID, table, index), EncodeUint64(seq)...)
}

func IndexPrimaryPrefix(nsID, dbID uint64, table, index string) []byte {
	return append([]byte{kv.FamilyIndexPrimary}, append(EncodeUint64(nsID), append(EncodeUint64(dbID), append(EncodeString(table), EncodeString(index)...)...)...)...)
}

func IndexPrimaryKey(nsID, dbID uint64, table, index string, recordKey value.RecordIDKey) []byte {
	return append(IndexPrimaryPrefix(nsID, dbID, table, index), EncodeRecordIDKey(recordKey)...)
}

// ChangeFeedKey lays change-feed entries out under
// prefix||versionstamp||suffix so a range scan enumerates them in commit
// order (spec §4.8).
func ChangeFeedKey(nsID, dbID uint64, table string, ts kv.Versionstamp, suffix []byte) []byte {
	k := append([]byte{kv.FamilyChangeFeed}, append(EncodeUint64(nsID), append(EncodeUint64(dbID), EncodeString(table)...)...)...)
	k = append(k, ts.Bytes()...)
	return append(k, suffix...)
}

func ChangeFeedPrefix(nsID, dbID uint64, table string) []byte {
	return append([]byte{kv.FamilyChangeFeed}, append(EncodeUint64(nsID), append(EncodeUint64(dbID), EncodeString(table)...)...)...)
}

// ChangeFeedTimestampKey addresses the reserved GetTimestamp counter
// key (spec §4.8) a committing write transaction increments once to
// reserve the versionstamp its change records are written under. The
// counter is scoped per (namespace, database) rather than per table so
// every table in a database shares one commit-order sequence.
func ChangeFeedTimestampKey(nsID, dbID uint64) []byte {
	return append([]byte{kv.FamilyChangeFeedTS}, append(EncodeUint64(nsID), EncodeUint64(dbID)...)...)
}

// BuilderStateKey addresses the online index builder's single durable
// status record for (table, index) (spec §4.7 "durable state").
func BuilderStateKey(nsID, dbID uint64, table, index string) []byte {
	return append([]byte{kv.FamilyBuilderState}, append(EncodeUint64(nsID), append(EncodeUint64(dbID), append(EncodeString(table), EncodeString(index)...)...)...)...)
}

// PrefixBegin and PrefixEnd bound every key that could be produced
// within prefix: PrefixBegin(p) <= key < PrefixEnd(p).
func PrefixBegin(prefix []byte) []byte { return prefix }

func PrefixEnd(prefix []byte) []byte { return kv.UpperBound(prefix) }
