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
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/meta"
	"github.com/erigontech/driftdb/value"
)

// InitialScanBatchSize bounds how many base-table rows the initial scan
// reads per transaction batch.
const InitialScanBatchSize = 1024

// DrainBatchSize is N in spec §4.7 step 3: the slice width
// [to_index, min(to_index+N, next)) drained per write transaction.
const DrainBatchSize = 256

// DrainIdleSleep is how long a deferred builder's daemon loop sleeps
// between empty drain attempts (spec §4.7 item 5).
const DrainIdleSleep = 500 * time.Millisecond

// Builder drives one index through Started -> Cleaning -> Indexing ->
// Ready|Aborted|Error (spec §4.7).
type Builder struct {
	backend kv.Backend
	nsID    uint64
	dbID    uint64
	table   string
	index   *meta.Index
	reg     *Registry
	log     *zap.Logger

	aborted atomic.Bool

	seqMu   sync.Mutex
	toIndex uint64
	next    uint64

	statusMu sync.RWMutex
	status   Status
}

// NewBuilder constructs a builder for ix on table, against backend. reg
// is the shared registry writers and readers consult; it may be nil in
// tests that only exercise the scan/drain mechanics directly. log may be
// nil, in which case a no-op logger is used.
func NewBuilder(backend kv.Backend, nsID, dbID uint64, table string, ix *meta.Index, reg *Registry, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		backend: backend,
		nsID:    nsID,
		dbID:    dbID,
		table:   table,
		index:   ix,
		reg:     reg,
		log:     log.With(zap.String("table", table), zap.String("index", ix.Name)),
	}
}

// BuildIndex looks indexName up through mc and runs a Builder for it to
// completion, the entry point a CREATE INDEX implementation (or
// cmd/driftdb) calls to kick off a background or foreground build.
func BuildIndex(ctx context.Context, backend kv.Backend, mc *meta.Cache, nsID, dbID uint64, table, indexName string, reg *Registry, log *zap.Logger) (*Builder, error) {
	ix, err := mc.GetIndex(ctx, nsID, dbID, table, indexName)
	if err != nil {
		return nil, err
	}
	b := NewBuilder(backend, nsID, dbID, table, ix, reg, log)
	return b, b.Run(ctx)
}

// Abort requests the builder stop between batches (spec §4.7 item 6).
func (b *Builder) Abort() { b.aborted.Store(true) }

// Status returns a snapshot of the builder's durable progress.
func (b *Builder) Status() Status {
	b.statusMu.RLock()
	defer b.statusMu.RUnlock()
	return b.status
}

func (b *Builder) setPhase(phase Phase) {
	b.statusMu.Lock()
	b.status.Phase = phase
	b.statusMu.Unlock()
}

// persistStatus writes the current status under its durable key so a
// crash mid-build can be diagnosed instead of silently losing progress.
func (b *Builder) persistStatus(ctx context.Context, rw kv.RwTx) error {
	raw, err := encode(b.Status())
	if err != nil {
		return err
	}
	return rw.Set(ctx, codec.BuilderStateKey(b.nsID, b.dbID, b.table, b.index.Name), raw, nil)
}

func (b *Builder) checkAborted() bool {
	if b.aborted.Load() {
		b.setPhase(PhaseAborted)
		b.log.Info("index build aborted")
		return true
	}
	return false
}

// Run drives the full protocol to completion: Register with the
// registry so concurrent writers start enqueueing, clean, initial scan,
// then drain. For a deferred index the drain step never returns Ready
// on its own — it loops as a daemon until ctx is cancelled or Abort is
// called (spec §4.7 item 5).
func (b *Builder) Run(ctx context.Context) error {
	if b.reg != nil {
		b.reg.Register(b.table, b.index.Name, b)
		defer func() {
			if b.Status().Phase == PhaseReady {
				b.reg.Unregister(b.table, b.index.Name)
			}
		}()
	}

	b.log.Info("index build started")
	if err := b.clean(ctx); err != nil {
		return b.fail(ctx, err)
	}
	if b.checkAborted() {
		return nil
	}
	if err := b.initialScan(ctx); err != nil {
		return b.fail(ctx, err)
	}
	if b.checkAborted() {
		return nil
	}
	if err := b.drainLoop(ctx); err != nil {
		return b.fail(ctx, err)
	}
	return nil
}

func (b *Builder) fail(ctx context.Context, cause error) error {
	b.statusMu.Lock()
	b.status.Phase = PhaseError
	b.status.Err = cause.Error()
	b.statusMu.Unlock()
	b.log.Error("index build failed", zap.Error(cause))
	return cause
}

// clean deletes every existing entry for the index being (re)built in a
// single transaction (spec §4.7 step 1).
func (b *Builder) clean(ctx context.Context) error {
	b.setPhase(PhaseCleaning)
	rw, err := b.backend.Begin(ctx, true)
	if err != nil {
		return err
	}
	prefix := codec.IndexEntryPrefix(b.nsID, b.dbID, b.table, b.index.Name)
	if err := rw.DeletePrefix(ctx, prefix); err != nil {
		rw.Cancel()
		return err
	}
	if err := b.persistStatus(ctx, rw); err != nil {
		rw.Cancel()
		return err
	}
	return rw.Commit(ctx)
}

// initialScan streams the base table in fixed batches, indexing each
// record's baseline values (spec §4.7 step 2).
func (b *Builder) initialScan(ctx context.Context) error {
	b.setPhase(PhaseIndexing)
	prefix := codec.RecordPrefix(b.nsID, b.dbID, b.table)
	lo, hi := prefix, codec.PrefixEnd(prefix)

	for {
		if b.checkAborted() {
			return nil
		}
		rw, err := b.backend.Begin(ctx, true)
		if err != nil {
			return err
		}
		pairs, err := rw.Scan(ctx, kv.Range{Start: lo, End: hi}, InitialScanBatchSize, nil, false)
		if err != nil {
			rw.Cancel()
			return err
		}
		if len(pairs) == 0 {
			rw.Cancel()
			break
		}
		for _, p := range pairs {
			rk, _, err := codec.DecodeRecordIDKey(p.K[len(prefix):])
			if err != nil {
				rw.Cancel()
				return err
			}
			row, err := b.baselineRow(ctx, rw, rk, p.V)
			if err != nil {
				rw.Cancel()
				return err
			}
			if !row.IsNone() {
				unique := b.index.Unique()
				key, err := codec.IndexEntryKey(b.nsID, b.dbID, b.table, b.index.Name, columnValues(row, b.index.Columns), rk, unique)
				if err != nil {
					rw.Cancel()
					return err
				}
				if unique {
					if err := rw.Put(ctx, key, codec.IndexEntryValue(rk), nil); err != nil {
						rw.Cancel()
						if errors.Is(err, kv.ErrAlreadyExists) {
							return ErrDuplicateKey
						}
						return err
					}
				} else if err := rw.Set(ctx, key, nil, nil); err != nil {
					rw.Cancel()
					return err
				}
			}
			b.statusMu.Lock()
			b.status.Initial++
			b.statusMu.Unlock()
		}
		if len(pairs) < InitialScanBatchSize {
			lo = nil // sentinel checked below via the break on short page
		} else {
			lo = kv.ResumeKey(pairs[len(pairs)-1].K)
		}
		if err := b.persistStatus(ctx, rw); err != nil {
			rw.Cancel()
			return err
		}
		if err := rw.Commit(ctx); err != nil {
			return err
		}
		if lo == nil {
			break
		}
	}
	b.log.Info("initial scan complete", zap.Uint64("rows", b.Status().Initial))
	return nil
}

// baselineRow returns the values that should be indexed for rk during
// the initial scan: the old values recorded in the append queue if a
// primary-appending pointer exists for rk (a concurrent update raced the
// scan), otherwise the row's current stored value (spec §4.7 step 2).
func (b *Builder) baselineRow(ctx context.Context, tx kv.Tx, rk value.RecordIDKey, currentRaw []byte) (value.Value, error) {
	primaryKey := codec.IndexPrimaryKey(b.nsID, b.dbID, b.table, b.index.Name, rk)
	raw, ok, err := tx.Get(ctx, primaryKey, nil)
	if err != nil {
		return value.Value{}, err
	}
	if !ok {
		return value.DecodeRow(currentRaw)
	}
	seq := codec.DecodeUint64(raw)
	appendKey := codec.IndexAppendKey(b.nsID, b.dbID, b.table, b.index.Name, seq)
	entryRaw, ok, err := tx.Get(ctx, appendKey, nil)
	if err != nil {
		return value.Value{}, err
	}
	if !ok || len(entryRaw) == 0 {
		// Queue entry already drained by the time we got here; the
		// drain path will have applied both halves of its delta, so
		// there is nothing left for the initial scan to contribute.
		return value.Value{}, nil
	}
	var rec appending
	if err := decode(entryRaw, &rec); err != nil {
		return value.Value{}, err
	}
	if len(rec.OldRaw) == 0 {
		return value.None(), nil
	}
	return value.DecodeRow(rec.OldRaw)
}

// drainLoop repeatedly applies [toIndex, min(toIndex+N, next)) from the
// append queue until it is empty, then transitions to Ready — or, for a
// deferred index, loops forever (spec §4.7 steps 3 and 5).
func (b *Builder) drainLoop(ctx context.Context) error {
	for {
		if b.checkAborted() {
			return nil
		}
		b.seqMu.Lock()
		to, next := b.toIndex, b.next
		b.seqMu.Unlock()

		b.statusMu.Lock()
		b.status.Pending = next - to
		b.statusMu.Unlock()

		if to >= next {
			if !b.index.Deferred() {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(DrainIdleSleep):
			}
			continue
		}

		end := next
		if end > to+DrainBatchSize {
			end = to + DrainBatchSize
		}
		if err := b.drainRange(ctx, to, end); err != nil {
			return err
		}
		b.seqMu.Lock()
		b.toIndex = end
		b.seqMu.Unlock()
	}

	b.setPhase(PhaseReady)
	rw, err := b.backend.Begin(ctx, true)
	if err != nil {
		return err
	}
	if err := b.persistStatus(ctx, rw); err != nil {
		rw.Cancel()
		return err
	}
	if err := rw.Commit(ctx); err != nil {
		return err
	}
	b.log.Info("index build ready", zap.Uint64("updated", b.Status().Updated))
	return nil
}

func (b *Builder) drainRange(ctx context.Context, from, to uint64) error {
	rw, err := b.backend.Begin(ctx, true)
	if err != nil {
		return err
	}
	for seq := from; seq < to; seq++ {
		appendKey := codec.IndexAppendKey(b.nsID, b.dbID, b.table, b.index.Name, seq)
		raw, ok, err := rw.Get(ctx, appendKey, nil)
		if err != nil {
			rw.Cancel()
			return err
		}
		if !ok {
			continue
		}
		var rec appending
		if err := decode(raw, &rec); err != nil {
			rw.Cancel()
			return err
		}
		rk, _, err := codec.DecodeRecordIDKey(rec.RecordKey)
		if err != nil {
			rw.Cancel()
			return err
		}
		var oldRow, newRow value.Value = value.None(), value.None()
		if len(rec.OldRaw) > 0 {
			if oldRow, err = value.DecodeRow(rec.OldRaw); err != nil {
				rw.Cancel()
				return err
			}
		}
		if len(rec.NewRaw) > 0 {
			if newRow, err = value.DecodeRow(rec.NewRaw); err != nil {
				rw.Cancel()
				return err
			}
		}
		if err := applyIndexDelta(ctx, rw, b.nsID, b.dbID, b.table, b.index, oldRow, newRow, rk); err != nil {
			rw.Cancel()
			return err
		}
		if err := rw.Del(ctx, appendKey); err != nil {
			rw.Cancel()
			return err
		}
		if err := rw.Del(ctx, codec.IndexPrimaryKey(b.nsID, b.dbID, b.table, b.index.Name, rk)); err != nil {
			rw.Cancel()
			return err
		}
		b.statusMu.Lock()
		b.status.Updated++
		b.statusMu.Unlock()
	}
	if err := b.persistStatus(ctx, rw); err != nil {
		rw.Cancel()
		return err
	}
	return rw.Commit(ctx)
}
