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

package changefeed

import (
	"bytes"

	mpcodec "github.com/ugorji/go/codec"
)

// schemaRevision tags the wireRecord layout, mirroring meta/serialize.go
// and indexbuild/serialize.go's leading-revision-byte convention.
const schemaRevision byte = 1

var mpHandle = &mpcodec.MsgpackHandle{}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(schemaRevision)
	enc := mpcodec.NewEncoder(&buf, mpHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(b []byte, v any) error {
	if len(b) == 0 {
		return errEmptyRecord
	}
	// b[0] is the schema revision; only revision 1 exists so far.
	dec := mpcodec.NewDecoderBytes(b[1:], mpHandle)
	return dec.Decode(v)
}
