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

package meta

import (
	"fmt"

	"github.com/ugorji/go/codec"
)

// schemaRevision is the current on-disk revision for every type encoded
// by this file. Every persisted value carries this as a leading byte so
// a future format change can branch on it during decode (spec §6 "Value
// serialization").
const schemaRevision = 1

var mpHandle = &codec.MsgpackHandle{}

// encode serializes v as revision-tagged msgpack.
func encode(v any) ([]byte, error) {
	var payload []byte
	enc := codec.NewEncoderBytes(&payload, mpHandle)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("meta: encode: %w", err)
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, schemaRevision)
	out = append(out, payload...)
	return out, nil
}

// decode deserializes into v, rejecting any revision newer than this
// build knows how to read.
func decode(b []byte, v any) error {
	if len(b) == 0 {
		return fmt.Errorf("meta: decode: empty value")
	}
	rev, payload := b[0], b[1:]
	if rev != schemaRevision {
		return fmt.Errorf("meta: decode: unsupported schema revision %d", rev)
	}
	dec := codec.NewDecoderBytes(payload, mpHandle)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("meta: decode: %w", err)
	}
	return nil
}
