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
	"errors"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/value"
)

// errEmptyRecord is returned by decode when asked to decode a zero-length
// payload; a change record key always has a non-empty value.
var errEmptyRecord = errors.New("changefeed: empty record payload")

// Reserve allocates the commit-order stamp a transaction's change
// records are written under (spec §4.8: "calls GetTimestamp once during
// commit to reserve a stamp"). Call it exactly once per write
// transaction that opts into change capture, before any Append call for
// that transaction; every GetTimestamp call on the same key reserves a
// fresh, later stamp, so calling Reserve more than once would split a
// single commit's records across two stamps instead of one.
func Reserve(ctx context.Context, rw kv.RwTx, nsID, dbID uint64) error {
	_, err := rw.GetTimestamp(ctx, codec.ChangeFeedTimestampKey(nsID, dbID))
	return err
}

// Append writes one change record for key under the stamp most recently
// reserved by Reserve on rw (spec §4.8). Several calls to Append across
// several rows and tables within the same transaction all land under
// that one stamp, so a commit-order scan groups them together; calling
// Append before Reserve fails with kv.ErrConditionNotMet.
//
// before is value.None() for an insert, after is value.None() for a
// delete; at least one of the two must carry a value.
func Append(ctx context.Context, rw kv.RwTx, nsID, dbID uint64, table string, key value.RecordIDKey, before, after value.Value) error {
	op := OpUpdate
	switch {
	case before.IsNone() && !after.IsNone():
		op = OpInsert
	case !before.IsNone() && after.IsNone():
		op = OpDelete
	}

	wr := wireRecord{Op: int(op)}
	if !before.IsNone() {
		raw, err := value.EncodeRow(before)
		if err != nil {
			return err
		}
		wr.BeforeRaw = raw
	}
	if !after.IsNone() {
		raw, err := value.EncodeRow(after)
		if err != nil {
			return err
		}
		wr.AfterRaw = raw
	}

	payload, err := encode(wr)
	if err != nil {
		return err
	}

	tsKey := codec.ChangeFeedTimestampKey(nsID, dbID)
	prefix := codec.ChangeFeedPrefix(nsID, dbID, table)
	suffix := codec.EncodeRecordIDKey(key)
	return rw.SetVersionstamp(ctx, tsKey, prefix, suffix, payload)
}
