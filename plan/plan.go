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

package plan

import (
	"context"
	"fmt"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/exec"
	"github.com/erigontech/driftdb/index"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/meta"
	"github.com/erigontech/driftdb/value"
)

// Safety limits (spec §4.4 "Safety limits"). Compile enforces the
// subquery depth limit, failing with a structured ErrLimitExceeded
// instead of recursing unboundedly; Context.SubqueryDepthLimit overrides
// its default. DefaultExprDepthLimit and DefaultArrayGenLimit are
// declared only: no code checks expression depth or array generation
// size, and Context has no override for them.
const (
	DefaultSubqueryDepthLimit = 32
	DefaultExprDepthLimit     = 128
	DefaultArrayGenLimit      = 1 << 20
)

// Context is the frozen planning environment spec §4.4 calls "a parsed
// statement plus a frozen context holding session variables,
// namespace/database selection, and an open transaction".
type Context struct {
	Tx         kv.Tx
	Meta       *meta.Cache
	NsID, DbID uint64

	EvalContext *exec.EvalContext

	TempDir string // non-empty enables ExternalSort disk spilling ("TEMPFILES")

	// IndexBuilding reports whether (table, index) is currently being
	// built in the background (spec §4.7 item 4: "reads of the
	// in-progress index return Enqueued, and callers fall back to the
	// base table"). A nil func means no index is ever in progress.
	IndexBuilding func(table, index string) bool

	SubqueryDepthLimit int // 0 means DefaultSubqueryDepthLimit
	depth              int
}

func (c *Context) subqueryLimit() int {
	if c.SubqueryDepthLimit > 0 {
		return c.SubqueryDepthLimit
	}
	return DefaultSubqueryDepthLimit
}

func (c *Context) child() *Context {
	cc := *c
	cc.depth++
	return &cc
}

// ErrLimitExceeded is the structured error spec §4.4 requires in place
// of unbounded recursion.
type ErrLimitExceeded struct{ Limit string }

func (e *ErrLimitExceeded) Error() string { return fmt.Sprintf("plan: limit exceeded: %s", e.Limit) }

// Compile turns a SelectStmt into a runnable exec.Operator, performing
// source resolution, index analysis, pushdown, and pipeline assembly
// (spec §4.4 items 1-6).
func Compile(ctx context.Context, pc *Context, stmt *SelectStmt) (exec.Operator, error) {
	if pc.depth > pc.subqueryLimit() {
		return nil, &ErrLimitExceeded{Limit: "subquery depth"}
	}

	op, predicateConsumed, err := planSource(ctx, pc, stmt)
	if err != nil {
		return nil, err
	}

	// Filter: only the residual predicate (not already pushed into the
	// source) gets an explicit Filter operator.
	if stmt.Where != nil && !predicateConsumed {
		op = exec.NewFilter(op, stmt.Where, pc.EvalContext)
	}

	if stmt.Recurse != nil {
		op = exec.NewRecurse(op, stmt.Recurse.Step, stmt.Recurse.Key, stmt.Recurse.Mode, stmt.Recurse.Min, stmt.Recurse.Max)
		if stmt.Recurse.Mode == exec.RecurseShortest {
			op = op.(*exec.Recurse).WithTarget(stmt.Recurse.Target)
		}
	}

	if len(stmt.GroupBy) > 0 || len(stmt.Aggregates) > 0 {
		op = exec.NewAggregate(op, stmt.GroupBy, stmt.Aggregates, pc.EvalContext)
	}

	op = planSort(op, stmt, pc)

	if stmt.HasOffset || stmt.HasLimit {
		op = exec.NewLimit(op, stmt.Offset, stmt.Limit)
	}

	switch {
	case stmt.ValueExpr != nil:
		op = exec.NewProjectValue(op, stmt.ValueExpr, pc.EvalContext)
	case len(stmt.Fields) > 0:
		op = exec.NewProject(op, stmt.Fields, pc.EvalContext)
	}

	if len(stmt.OmitFields) > 0 {
		op = exec.NewOmit(op, stmt.OmitFields)
	}

	if stmt.FetchRequested {
		op = exec.NewFetch(op, pc.Tx, pc.NsID, pc.DbID, stmt.FetchPaths)
	}

	if stmt.Timeout > 0 {
		op = exec.NewTimeout(op, stmt.Timeout)
	}

	if stmt.Only {
		op = exec.NewUnwrapExactlyOne(op)
	}

	return op, nil
}

// planSort decides whether ORDER BY is satisfied by the source's
// declared ordering (sort elimination, spec §4.4 item 3), else inserts
// Sort/SortTopK/ExternalSort depending on whether a small effective
// limit and/or disk spilling applies.
func planSort(op exec.Operator, stmt *SelectStmt, pc *Context) exec.Operator {
	if len(stmt.OrderBy) == 0 {
		return op
	}
	want := make([]exec.SortProperty, len(stmt.OrderBy))
	for i, k := range stmt.OrderBy {
		fp, ok := k.E.(exec.FieldPath)
		if !ok {
			want = nil
			break
		}
		want[i] = exec.SortProperty{FieldPath: fp.Path, Direction: k.Direction}
	}
	if want != nil && op.OutputOrdering().Satisfies(want) {
		return op // sort elimination
	}
	if stmt.HasLimit && !stmt.HasOffset && stmt.Limit > 0 && stmt.Limit < 4096 {
		return exec.NewSortTopK(op, stmt.OrderBy, stmt.Limit, pc.EvalContext)
	}
	if pc.TempDir != "" {
		return exec.NewExternalSort(op, stmt.OrderBy, pc.EvalContext, pc.TempDir)
	}
	return exec.NewSort(op, stmt.OrderBy, pc.EvalContext)
}

// planSource resolves the FROM clause (spec §4.4 item 1) and, for a
// table source, runs index analysis/pushdown (items 2-3), returning
// whether the statement's WHERE predicate was fully consumed by the
// chosen access path.
func planSource(ctx context.Context, pc *Context, stmt *SelectStmt) (exec.Operator, bool, error) {
	src := stmt.From
	switch src.Kind {
	case SourceRecordID:
		if stmt.CountOnly {
			return exec.NewCountScan(pc.Tx, pc.NsID, pc.DbID, src.RecordID.Table), false, nil
		}
		return exec.NewRecordIdScan(pc.Tx, pc.NsID, pc.DbID, src.RecordID.Table, src.RecordID.Key), false, nil

	case SourceDynamic:
		return exec.NewDynamicScan(src.Expr, pc.EvalContext, src.Resolver), false, nil

	case SourceSubquery:
		child, err := Compile(ctx, pc.child(), src.Subquery)
		return child, false, err

	case SourceExpr:
		return &exprSource{e: src.Expr, ec: pc.EvalContext}, false, nil

	case SourceTable:
		return planTableSource(ctx, pc, stmt, src.Table)
	}
	return nil, false, fmt.Errorf("plan: unknown source kind %d", src.Kind)
}

// planTableSource implements spec §4.4 item 6 (COUNT fast path) and
// items 2-3 (index analysis and predicate/limit/offset pushdown) for a
// literal table source.
func planTableSource(ctx context.Context, pc *Context, stmt *SelectStmt, table string) (exec.Operator, bool, error) {
	if stmt.CountOnly && stmt.Where == nil && len(stmt.GroupBy) == 0 {
		return exec.NewCountScan(pc.Tx, pc.NsID, pc.DbID, table), false, nil
	}

	indexes, err := pc.Meta.AllIndexes(ctx, pc.NsID, pc.DbID, table)
	if err != nil {
		return nil, false, fmt.Errorf("plan: loading indexes for %q: %w", table, err)
	}
	if pc.IndexBuilding != nil {
		usable := indexes[:0:0]
		for _, ix := range indexes {
			if !pc.IndexBuilding(table, ix.Name) {
				usable = append(usable, ix)
			}
		}
		indexes = usable
	}

	ap := chooseAccessPath(indexes, stmt.Where, stmt.IndexOverride, stmt.NoIndex)

	canPushLimitOffset := stmt.HasLimit || stmt.HasOffset
	canPushLimitOffset = canPushLimitOffset && len(stmt.GroupBy) == 0 && len(stmt.Aggregates) == 0
	canPushLimitOffset = canPushLimitOffset && (stmt.Where == nil || len(disjuncts(stmt.Where)) == 1)

	switch ap.kind {
	case pathTableScan:
		limit, offset := 0, 0
		if canPushLimitOffset {
			limit, offset = stmt.Limit, stmt.Offset
		}
		return exec.NewTableScan(pc.Tx, pc.NsID, pc.DbID, table, stmt.Where, limit, offset, nil, pc.EvalContext), stmt.Where != nil, nil

	case pathEquality:
		it := index.NewEqualityIterator(pc.Tx, pc.NsID, pc.DbID, table, ap.index.Name, ap.columns, ap.index.Unique())
		return exec.NewIndexScan(pc.Tx, pc.NsID, pc.DbID, table, it), len(ap.residual) == 0, nil

	case pathRange:
		prefix := buildEqualityPrefix(pc, table, ap)
		begin, end := rangeBounds(pc.EvalContext, ap)
		it := index.NewRangeIterator(pc.Tx, prefix, begin, end, false, ap.index.Unique())
		return exec.NewIndexScan(pc.Tx, pc.NsID, pc.DbID, table, it), len(ap.residual) == 0, nil

	case pathUnion:
		var subs []index.Iterator
		for _, b := range ap.branches {
			switch b.kind {
			case pathEquality:
				subs = append(subs, index.NewEqualityIterator(pc.Tx, pc.NsID, pc.DbID, table, b.index.Name, b.columns, b.index.Unique()))
			case pathRange:
				prefix := buildEqualityPrefix(pc, table, b)
				begin, end := rangeBounds(pc.EvalContext, b)
				subs = append(subs, index.NewRangeIterator(pc.Tx, prefix, begin, end, false, b.index.Unique()))
			}
		}
		return exec.NewUnionIndexScan(pc.Tx, pc.NsID, pc.DbID, table, subs...), false, nil
	}

	return exec.NewTableScan(pc.Tx, pc.NsID, pc.DbID, table, stmt.Where, 0, 0, nil, pc.EvalContext), stmt.Where != nil, nil
}

// buildEqualityPrefix builds the index-entry key prefix for the
// leading equality-matched columns of a range access path, the same
// prefix layout codec.IndexEntryKey uses so a RangeIterator seeded with
// it ranges only over the trailing (unmatched) column.
func buildEqualityPrefix(pc *Context, table string, ap accessPath) []byte {
	p := codec.IndexEntryPrefix(pc.NsID, pc.DbID, table, ap.index.Name)
	for _, c := range ap.columns {
		p = append(p, codec.EncodeValue(c)...)
	}
	return p
}

func rangeBounds(ec *exec.EvalContext, ap accessPath) (begin, end index.Bound) {
	if ap.rangeBound.lo != nil {
		v, _ := ap.rangeBound.lo.Eval(context.Background(), ec, exec.Row{})
		begin = index.Bound{Value: &v, Incl: ap.rangeBound.loIncl}
	}
	if ap.rangeBound.hi != nil {
		v, _ := ap.rangeBound.hi.Eval(context.Background(), ec, exec.Row{})
		end = index.Bound{Value: &v, Incl: ap.rangeBound.hiIncl}
	}
	return
}

// exprSource wraps an opaque scalar expression as a one-row operator
// (spec §4.4 item 1 "an opaque expression (scalar source)").
type exprSource struct {
	e  exec.Expr
	ec *exec.EvalContext
}

func (s *exprSource) RequiredContext() exec.RequiredContext { return exec.ContextSession }
func (s *exprSource) AccessMode() exec.AccessMode           { return exec.AccessReadOnly }
func (s *exprSource) OutputOrdering() exec.Ordering         { return exec.Unordered }
func (s *exprSource) Children() []exec.Operator             { return nil }
func (s *exprSource) Attrs() map[string]string              { return map[string]string{"op": "ExprSource"} }
func (s *exprSource) Metrics() exec.Metrics                 { return exec.Metrics{} }

func (s *exprSource) Execute(ctx context.Context) (exec.RowStream, error) {
	v, err := s.e.Eval(ctx, s.ec, exec.Row{})
	if err != nil {
		return nil, err
	}
	rows := valuesToRows(v)
	return &exprSourceStream{rows: rows}, nil
}

func valuesToRows(v value.Value) []exec.Row {
	if v.Kind == value.KindArray {
		rows := make([]exec.Row, len(v.Array))
		for i, e := range v.Array {
			rows[i] = exec.Row{Val: e}
		}
		return rows
	}
	return []exec.Row{{Val: v}}
}

type exprSourceStream struct {
	rows []exec.Row
	done bool
}

func (st *exprSourceStream) Next(context.Context) (exec.Batch, error) {
	if st.done {
		return nil, nil
	}
	st.done = true
	return exec.Batch(st.rows), nil
}

var _ exec.Operator = (*exprSource)(nil)
