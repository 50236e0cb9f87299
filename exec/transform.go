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

package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/value"
)

// unaryOp is the shared scaffolding for every single-child row
// transform (Filter, Project, ProjectValue, Compute, Fetch, Omit,
// Timeout): access mode and required context pass through from the
// child unchanged, since none of these add their own KV access.
type unaryOp struct {
	child Operator
	metricsBox
}

func (u *unaryOp) RequiredContext() RequiredContext { return u.child.RequiredContext() }
func (u *unaryOp) AccessMode() AccessMode            { return u.child.AccessMode() }
func (u *unaryOp) OutputOrdering() Ordering          { return u.child.OutputOrdering() }
func (u *unaryOp) Children() []Operator              { return []Operator{u.child} }
func (u *unaryOp) Metrics() Metrics                  { return u.metricsBox.snapshot() }

// Filter applies a residual predicate the source operator could not
// consume itself (spec §4.4 "the outer pipeline inserts a Filter only
// for the residual case").
type Filter struct {
	unaryOp
	Pred Expr
	ec   *EvalContext
}

func NewFilter(child Operator, pred Expr, ec *EvalContext) *Filter {
	return &Filter{unaryOp: unaryOp{child: child}, Pred: pred, ec: ec}
}

func (f *Filter) Attrs() map[string]string { return map[string]string{"op": "Filter"} }

func (f *Filter) Execute(ctx context.Context) (RowStream, error) {
	child, err := f.child.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return &filterStream{op: f, child: child}, nil
}

type filterStream struct {
	op    *Filter
	child RowStream
}

func (st *filterStream) Next(ctx context.Context) (Batch, error) {
	return timedNext(&st.op.metricsBox, 0, func() (Batch, error) {
		for {
			batch, err := st.child.Next(ctx)
			if err != nil {
				return nil, err
			}
			if len(batch) == 0 {
				return nil, nil
			}
			out := make(Batch, 0, len(batch))
			for _, row := range batch {
				keep, err := st.op.Pred.Eval(ctx, st.op.ec, row)
				if err != nil {
					return nil, err
				}
				if keep.Truthy() {
					out = append(out, row)
				}
			}
			if len(out) > 0 {
				return out, nil
			}
		}
	})
}

var _ Operator = (*Filter)(nil)

// Project builds a new object row from named field expressions
// (SELECT a, b AS c FROM ...). The originating record id, if any, is
// carried through so a later Fetch can still dereference it.
type Project struct {
	unaryOp
	Fields []ProjectField
	ec     *EvalContext
}

type ProjectField struct {
	Alias string
	E     Expr
}

func NewProject(child Operator, fields []ProjectField, ec *EvalContext) *Project {
	return &Project{unaryOp: unaryOp{child: child}, Fields: fields, ec: ec}
}

func (p *Project) Attrs() map[string]string { return map[string]string{"op": "Project"} }

func (p *Project) Execute(ctx context.Context) (RowStream, error) {
	child, err := p.child.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return &projectStream{op: p, child: child}, nil
}

type projectStream struct {
	op    *Project
	child RowStream
}

func (st *projectStream) Next(ctx context.Context) (Batch, error) {
	return timedNext(&st.op.metricsBox, 0, func() (Batch, error) {
		batch, err := st.child.Next(ctx)
		if err != nil || len(batch) == 0 {
			return nil, err
		}
		out := make(Batch, len(batch))
		for i, row := range batch {
			obj := make(map[string]value.Value, len(st.op.Fields))
			for _, f := range st.op.Fields {
				v, err := f.E.Eval(ctx, st.op.ec, row)
				if err != nil {
					return nil, err
				}
				obj[f.Alias] = v
			}
			out[i] = Row{ID: row.ID, Val: value.Obj(obj), Distance: row.Distance}
		}
		return out, nil
	})
}

var _ Operator = (*Project)(nil)

// ProjectValue implements SELECT VALUE <expr>: the row becomes a bare
// scalar/array/object value with no originating record id.
type ProjectValue struct {
	unaryOp
	E  Expr
	ec *EvalContext
}

func NewProjectValue(child Operator, e Expr, ec *EvalContext) *ProjectValue {
	return &ProjectValue{unaryOp: unaryOp{child: child}, E: e, ec: ec}
}

func (p *ProjectValue) Attrs() map[string]string { return map[string]string{"op": "ProjectValue"} }

func (p *ProjectValue) Execute(ctx context.Context) (RowStream, error) {
	child, err := p.child.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return &projectValueStream{op: p, child: child}, nil
}

type projectValueStream struct {
	op    *ProjectValue
	child RowStream
}

func (st *projectValueStream) Next(ctx context.Context) (Batch, error) {
	return timedNext(&st.op.metricsBox, 0, func() (Batch, error) {
		batch, err := st.child.Next(ctx)
		if err != nil || len(batch) == 0 {
			return nil, err
		}
		out := make(Batch, len(batch))
		for i, row := range batch {
			v, err := st.op.E.Eval(ctx, st.op.ec, row)
			if err != nil {
				return nil, err
			}
			out[i] = Row{Val: v}
		}
		return out, nil
	})
}

var _ Operator = (*ProjectValue)(nil)

// Compute adds or overwrites one field in the row's object, used for
// LET-bound computed columns evaluated ahead of GROUP BY/ORDER BY so
// later stages can reference the field by name.
type Compute struct {
	unaryOp
	Name string
	E    Expr
	ec   *EvalContext
}

func NewCompute(child Operator, name string, e Expr, ec *EvalContext) *Compute {
	return &Compute{unaryOp: unaryOp{child: child}, Name: name, E: e, ec: ec}
}

func (c *Compute) Attrs() map[string]string { return map[string]string{"op": "Compute", "field": c.Name} }

func (c *Compute) Execute(ctx context.Context) (RowStream, error) {
	child, err := c.child.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return &computeStream{op: c, child: child}, nil
}

type computeStream struct {
	op    *Compute
	child RowStream
}

func (st *computeStream) Next(ctx context.Context) (Batch, error) {
	return timedNext(&st.op.metricsBox, 0, func() (Batch, error) {
		batch, err := st.child.Next(ctx)
		if err != nil || len(batch) == 0 {
			return nil, err
		}
		out := make(Batch, len(batch))
		for i, row := range batch {
			v, err := st.op.E.Eval(ctx, st.op.ec, row)
			if err != nil {
				return nil, err
			}
			obj := cloneObject(row.Val)
			obj[st.op.Name] = v
			out[i] = Row{ID: row.ID, Val: value.Obj(obj), Distance: row.Distance}
		}
		return out, nil
	})
}

func cloneObject(v value.Value) map[string]value.Value {
	obj := make(map[string]value.Value)
	if v.Kind == value.KindObject {
		for k, e := range v.Object {
			obj[k] = e
		}
	}
	return obj
}

var _ Operator = (*Compute)(nil)

// Omit removes named fields from the row's object (spec §4.5 "Omit").
type Omit struct {
	unaryOp
	Fields []string
}

func NewOmit(child Operator, fields []string) *Omit {
	return &Omit{unaryOp: unaryOp{child: child}, Fields: fields}
}

func (o *Omit) Attrs() map[string]string { return map[string]string{"op": "Omit"} }

func (o *Omit) Execute(ctx context.Context) (RowStream, error) {
	child, err := o.child.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return &omitStream{op: o, child: child}, nil
}

type omitStream struct {
	op    *Omit
	child RowStream
}

func (st *omitStream) Next(ctx context.Context) (Batch, error) {
	return timedNext(&st.op.metricsBox, 0, func() (Batch, error) {
		batch, err := st.child.Next(ctx)
		if err != nil || len(batch) == 0 {
			return nil, err
		}
		out := make(Batch, len(batch))
		for i, row := range batch {
			obj := cloneObject(row.Val)
			for _, f := range st.op.Fields {
				delete(obj, f)
			}
			out[i] = Row{ID: row.ID, Val: value.Obj(obj), Distance: row.Distance}
		}
		return out, nil
	})
}

var _ Operator = (*Omit)(nil)

// Fetch dereferences record-id-valued fields, replacing each reference
// with the referenced row's document (spec §4.4 pipeline step "fetch
// (dereference record-id fields)"). An empty Paths set means every
// top-level KindRecordID field is dereferenced.
type Fetch struct {
	unaryOp
	tx         kv.Tx
	nsID, dbID uint64
	Paths      []string
}

func NewFetch(child Operator, tx kv.Tx, nsID, dbID uint64, paths []string) *Fetch {
	return &Fetch{unaryOp: unaryOp{child: child}, tx: tx, nsID: nsID, dbID: dbID, Paths: paths}
}

func (f *Fetch) Attrs() map[string]string { return map[string]string{"op": "Fetch"} }

func (f *Fetch) Execute(ctx context.Context) (RowStream, error) {
	child, err := f.child.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return &fetchStream{op: f, child: child}, nil
}

type fetchStream struct {
	op    *Fetch
	child RowStream
}

func (st *fetchStream) Next(ctx context.Context) (Batch, error) {
	return timedNext(&st.op.metricsBox, 0, func() (Batch, error) {
		batch, err := st.child.Next(ctx)
		if err != nil || len(batch) == 0 {
			return nil, err
		}
		out := make(Batch, len(batch))
		for i, row := range batch {
			if row.Val.Kind != value.KindObject {
				out[i] = row
				continue
			}
			obj := cloneObject(row.Val)
			names := st.op.Paths
			if len(names) == 0 {
				names = make([]string, 0, len(obj))
				for name := range obj {
					names = append(names, name)
				}
			}
			for _, name := range names {
				field, ok := obj[name]
				if !ok || field.Kind != value.KindRecordID || field.Record == nil {
					continue
				}
				fetched, err := st.op.fetchOne(ctx, field.Record)
				if err != nil {
					return nil, err
				}
				if fetched != nil {
					obj[name] = *fetched
				}
			}
			out[i] = Row{ID: row.ID, Val: value.Obj(obj), Distance: row.Distance}
		}
		return out, nil
	})
}

func (f *Fetch) fetchOne(ctx context.Context, r *value.RecordID) (*value.Value, error) {
	key := codec.RecordKey(f.nsID, f.dbID, r.Table, r.Key)
	raw, ok, err := f.tx.Get(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("exec: Fetch: %w", err)
	}
	if !ok {
		return nil, nil
	}
	v, err := value.DecodeRow(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

var _ Operator = (*Fetch)(nil)

// Timeout wraps a child with a per-statement deadline (spec §4.5
// pipeline step "timeout wrapper").
type Timeout struct {
	unaryOp
	d time.Duration
}

func NewTimeout(child Operator, d time.Duration) *Timeout {
	return &Timeout{unaryOp: unaryOp{child: child}, d: d}
}

func (t *Timeout) Attrs() map[string]string { return map[string]string{"op": "Timeout"} }

func (t *Timeout) Execute(ctx context.Context) (RowStream, error) {
	cctx, cancel := context.WithTimeout(ctx, t.d)
	child, err := t.child.Execute(cctx)
	if err != nil {
		cancel()
		return nil, err
	}
	return &timeoutStream{op: t, child: child, ctx: cctx, cancel: cancel}, nil
}

type timeoutStream struct {
	op     *Timeout
	child  RowStream
	ctx    context.Context
	cancel context.CancelFunc
}

func (st *timeoutStream) Next(ctx context.Context) (Batch, error) {
	return timedNext(&st.op.metricsBox, 0, func() (Batch, error) {
		batch, err := st.child.Next(st.ctx)
		if err != nil {
			if st.ctx.Err() == context.DeadlineExceeded {
				return nil, fmt.Errorf("exec: statement exceeded timeout %s: %w", st.op.d, st.ctx.Err())
			}
			return nil, err
		}
		if len(batch) == 0 {
			st.cancel()
		}
		return batch, nil
	})
}

var _ Operator = (*Timeout)(nil)
