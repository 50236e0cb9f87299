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
	"context"
	"fmt"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/value"
)

// Scan returns every change record for table committed strictly after
// since, in commit order (spec §4.8: "scans produce commit-order
// results"). Pass kv.ZeroVersionstamp for since to read the whole feed.
//
// Scan takes a plain kv.Tx: consuming a change feed never needs write
// access, and a read-only snapshot transaction gives a consistent view
// of the feed even while writers keep appending.
func Scan(ctx context.Context, tx kv.Tx, nsID, dbID uint64, table string, since kv.Versionstamp) ([]Record, error) {
	prefix := codec.ChangeFeedPrefix(nsID, dbID, table)
	// since is exclusive: start at the next possible stamp so every
	// entry actually written at since (regardless of its row suffix) is
	// skipped, rather than relying on a suffix-dependent byte boundary.
	start := append(append([]byte{}, prefix...), kv.NextVersionstamp(since).Bytes()...)
	r := kv.Range{Start: start, End: codec.PrefixEnd(prefix)}

	kvs, err := tx.GetRange(ctx, r, nil)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(kvs))
	for _, pair := range kvs {
		rec, err := decodeEntry(table, prefix, pair)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeEntry(table string, prefix []byte, e kv.KV) (Record, error) {
	rest := e.K[len(prefix):]
	if len(rest) < 10 {
		return Record{}, fmt.Errorf("changefeed: malformed key for table %q: too short for a versionstamp", table)
	}
	var stamp [10]byte
	copy(stamp[:], rest[:10])
	suffix := rest[10:]

	key, _, err := codec.DecodeRecordIDKey(suffix)
	if err != nil {
		return Record{}, fmt.Errorf("changefeed: decoding record key for table %q: %w", table, err)
	}

	var wr wireRecord
	if err := decode(e.V, &wr); err != nil {
		return Record{}, fmt.Errorf("changefeed: decoding record payload for table %q: %w", table, err)
	}

	rec := Record{Table: table, Key: key, Op: Op(wr.Op), Stamp: stamp, Before: value.None(), After: value.None()}
	if len(wr.BeforeRaw) > 0 {
		v, err := value.DecodeRow(wr.BeforeRaw)
		if err != nil {
			return Record{}, err
		}
		rec.Before = v
	}
	if len(wr.AfterRaw) > 0 {
		v, err := value.DecodeRow(wr.AfterRaw)
		if err != nil {
			return Record{}, err
		}
		rec.After = v
	}
	return rec, nil
}
