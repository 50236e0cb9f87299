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
	"math/big"

	"github.com/erigontech/driftdb/codec"
	"github.com/erigontech/driftdb/value"
)

// Aggregator folds a stream of per-row argument tuples into a single
// result value. Init produces the zero accumulator; Step folds one
// row's evaluated args in; Finish converts the accumulator to the
// output Value.
type Aggregator interface {
	Init() any
	Step(acc any, args []value.Value) (any, error)
	Finish(acc any) (value.Value, error)
}

type countAgg struct{ onlyNonNull bool }

func (countAgg) Init() any { return int64(0) }
func (a countAgg) Step(acc any, args []value.Value) (any, error) {
	n := acc.(int64)
	if a.onlyNonNull && len(args) > 0 && (args[0].Kind == value.KindNone || args[0].Kind == value.KindNull) {
		return n, nil
	}
	return n + 1, nil
}
func (countAgg) Finish(acc any) (value.Value, error) { return value.Int(acc.(int64)), nil }

// CountAll is `count()`: counts every row in the group.
func CountAll() Aggregator { return countAgg{} }

// CountField is `count(field)`: counts rows where the argument isn't
// none/null.
func CountField() Aggregator { return countAgg{onlyNonNull: true} }

type sumAgg struct{}

func (sumAgg) Init() any { return new(big.Rat) }
func (sumAgg) Step(acc any, args []value.Value) (any, error) {
	if len(args) == 0 {
		return acc, nil
	}
	r := args[0].AsRat()
	if r == nil {
		return acc, fmt.Errorf("exec: sum() on non-numeric kind %d", args[0].Kind)
	}
	return new(big.Rat).Add(acc.(*big.Rat), r), nil
}
func (sumAgg) Finish(acc any) (value.Value, error) {
	f, _ := acc.(*big.Rat).Float64()
	return value.Float(f), nil
}

func Sum() Aggregator { return sumAgg{} }

type avgAgg struct{}

func (avgAgg) Init() any { return &avgState{} }

type avgState struct {
	sum   big.Rat
	count int64
}

func (avgAgg) Step(acc any, args []value.Value) (any, error) {
	st := acc.(*avgState)
	if len(args) == 0 {
		return st, nil
	}
	r := args[0].AsRat()
	if r == nil {
		return st, fmt.Errorf("exec: avg() on non-numeric kind %d", args[0].Kind)
	}
	st.sum.Add(&st.sum, r)
	st.count++
	return st, nil
}
func (avgAgg) Finish(acc any) (value.Value, error) {
	st := acc.(*avgState)
	if st.count == 0 {
		return value.None(), nil
	}
	f, _ := new(big.Rat).Quo(&st.sum, big.NewRat(st.count, 1)).Float64()
	return value.Float(f), nil
}

func Avg() Aggregator { return avgAgg{} }

type extremeAgg struct{ max bool }

func (extremeAgg) Init() any { return (*value.Value)(nil) }
func (a extremeAgg) Step(acc any, args []value.Value) (any, error) {
	if len(args) == 0 {
		return acc, nil
	}
	cur := acc.(*value.Value)
	v := args[0]
	if cur == nil {
		return &v, nil
	}
	c := value.Compare(v, *cur)
	if (a.max && c > 0) || (!a.max && c < 0) {
		return &v, nil
	}
	return cur, nil
}
func (extremeAgg) Finish(acc any) (value.Value, error) {
	cur := acc.(*value.Value)
	if cur == nil {
		return value.None(), nil
	}
	return *cur, nil
}

func Min() Aggregator { return extremeAgg{max: false} }
func Max() Aggregator { return extremeAgg{max: true} }

type collectAgg struct{}

func (collectAgg) Init() any { return &[]value.Value{} }
func (collectAgg) Step(acc any, args []value.Value) (any, error) {
	if len(args) == 0 {
		return acc, nil
	}
	s := acc.(*[]value.Value)
	*s = append(*s, args[0])
	return s, nil
}
func (collectAgg) Finish(acc any) (value.Value, error) {
	return value.Arr(*acc.(*[]value.Value)...), nil
}

// ArrayCollect gathers every non-aggregated argument into an array
// (`array::group`/`collect`-style aggregate).
func ArrayCollect() Aggregator { return collectAgg{} }

// AggregateSpec is one `alias = AGG(args...)` output column.
type AggregateSpec struct {
	Alias string
	Args  []Expr
	Agg   Aggregator
}

// Aggregate evaluates GROUP BY keys, hashes rows into groups, applies
// aggregate functions, and emits one row per group (spec §4.5).
type Aggregate struct {
	unaryOp
	GroupBy []Expr
	Specs   []AggregateSpec
	ec      *EvalContext
}

func NewAggregate(child Operator, groupBy []Expr, specs []AggregateSpec, ec *EvalContext) *Aggregate {
	return &Aggregate{unaryOp: unaryOp{child: child}, GroupBy: groupBy, Specs: specs, ec: ec}
}

func (a *Aggregate) Attrs() map[string]string { return map[string]string{"op": "Aggregate"} }

type aggGroup struct {
	keys []value.Value
	accs []any
}

func (a *Aggregate) Execute(ctx context.Context) (RowStream, error) {
	rows, err := drainAll(ctx, a.child)
	if err != nil {
		return nil, err
	}
	groups := make(map[string]*aggGroup)
	var order []string
	for _, row := range rows {
		keys := make([]value.Value, len(a.GroupBy))
		var keyBytes []byte
		for i, g := range a.GroupBy {
			v, err := g.Eval(ctx, a.ec, row)
			if err != nil {
				return nil, err
			}
			keys[i] = v
			keyBytes = append(keyBytes, codec.EncodeValue(v)...)
		}
		groupKey := string(keyBytes)
		g, ok := groups[groupKey]
		if !ok {
			g = &aggGroup{keys: keys, accs: make([]any, len(a.Specs))}
			for i, spec := range a.Specs {
				g.accs[i] = spec.Agg.Init()
			}
			groups[groupKey] = g
			order = append(order, groupKey)
		}
		for i, spec := range a.Specs {
			args := make([]value.Value, len(spec.Args))
			for j, e := range spec.Args {
				v, err := e.Eval(ctx, a.ec, row)
				if err != nil {
					return nil, err
				}
				args[j] = v
			}
			acc, err := spec.Agg.Step(g.accs[i], args)
			if err != nil {
				return nil, err
			}
			g.accs[i] = acc
		}
	}
	out := make([]Row, 0, len(order))
	for _, key := range order {
		g := groups[key]
		obj := make(map[string]value.Value, len(a.GroupBy)+len(a.Specs))
		for i, e := range a.GroupBy {
			name := groupFieldName(e, i)
			obj[name] = g.keys[i]
		}
		for i, spec := range a.Specs {
			v, err := spec.Agg.Finish(g.accs[i])
			if err != nil {
				return nil, err
			}
			obj[spec.Alias] = v
		}
		out = append(out, Row{Val: value.Obj(obj)})
	}
	return &materializedStream{op: &a.metricsBox, rows: out}, nil
}

func groupFieldName(e Expr, i int) string {
	if fp, ok := e.(FieldPath); ok && len(fp.Path) > 0 {
		return fp.Path[len(fp.Path)-1]
	}
	return fmt.Sprintf("group%d", i)
}

var _ Operator = (*Aggregate)(nil)
