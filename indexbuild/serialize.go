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

package indexbuild

import (
	"fmt"

	mpcodec "github.com/ugorji/go/codec"
)

// schemaRevision tags every value this package persists, mirroring the
// meta package's revision-byte convention (spec §6 "Value
// serialization") so builder state keeps the same forward-compatibility
// story as the rest of the schema catalog.
const schemaRevision = 1

var mpHandle = &mpcodec.MsgpackHandle{}

func encode(v any) ([]byte, error) {
	var payload []byte
	enc := mpcodec.NewEncoderBytes(&payload, mpHandle)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("indexbuild: encode: %w", err)
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, schemaRevision)
	out = append(out, payload...)
	return out, nil
}

func decode(b []byte, v any) error {
	if len(b) == 0 {
		return fmt.Errorf("indexbuild: decode: empty value")
	}
	rev, payload := b[0], b[1:]
	if rev != schemaRevision {
		return fmt.Errorf("indexbuild: decode: unsupported schema revision %d", rev)
	}
	dec := mpcodec.NewDecoderBytes(payload, mpHandle)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("indexbuild: decode: %w", err)
	}
	return nil
}
