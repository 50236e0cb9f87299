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

	"github.com/erigontech/driftdb/value"
)

// EvalContext carries everything a PhysicalExpr needs at evaluation
// time that isn't part of the row itself: bound parameters, LET
// bindings visible to the current Block, and the function registry.
// The planner (package plan) owns construction; operators only read it.
type EvalContext struct {
	Params map[string]value.Value
	Vars   map[string]value.Value
	Funcs  FuncRegistry
	Outer  *Row // correlated-subquery outer row, nil at top level
}

func (ec *EvalContext) child() *EvalContext {
	vars := make(map[string]value.Value, len(ec.Vars))
	for k, v := range ec.Vars {
		vars[k] = v
	}
	return &EvalContext{Params: ec.Params, Vars: vars, Funcs: ec.Funcs, Outer: ec.Outer}
}

// Func is one registered scalar/aggregate function implementation.
type Func func(ctx context.Context, args []value.Value) (value.Value, error)

// FuncRegistry resolves a function call by name (spec §4.4 "function
// call" expression kind). Case follows the source language's own
// convention of lower-case, colon-namespaced names (e.g. "string::len").
type FuncRegistry map[string]Func

// Expr is a compiled physical expression tree (spec §4.4 "Expression
// lowering"): literal, parameter, field path, unary/binary, function
// call, subquery, record-id, range literal, block, mock, cast.
type Expr interface {
	Eval(ctx context.Context, ec *EvalContext, row Row) (value.Value, error)
}

// Literal is a constant folded at plan time.
type Literal struct{ Value value.Value }

func (e Literal) Eval(context.Context, *EvalContext, Row) (value.Value, error) { return e.Value, nil }

// Param reads a bound session/statement parameter by name.
type Param struct{ Name string }

func (e Param) Eval(_ context.Context, ec *EvalContext, _ Row) (value.Value, error) {
	if v, ok := ec.Params[e.Name]; ok {
		return v, nil
	}
	return value.None(), nil
}

// FieldPath navigates row.Val through a sequence of object field names.
// An empty path means "the whole row value". The special first segment
// "id" yields row.ID instead of indexing into Val.
type FieldPath struct{ Path []string }

func (e FieldPath) Eval(_ context.Context, _ *EvalContext, row Row) (value.Value, error) {
	if len(e.Path) == 0 {
		return row.Val, nil
	}
	if e.Path[0] == "id" && row.ID != nil {
		return value.RecordVal(row.ID), nil
	}
	cur := row.Val
	for _, seg := range e.Path {
		if cur.Kind != value.KindObject {
			return value.None(), nil
		}
		next, ok := cur.Object[seg]
		if !ok {
			return value.None(), nil
		}
		cur = next
	}
	return cur, nil
}

// UnaryOp is one of the supported unary operators.
type UnaryOp uint8

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
)

type Unary struct {
	Op UnaryOp
	X  Expr
}

func (e Unary) Eval(ctx context.Context, ec *EvalContext, row Row) (value.Value, error) {
	v, err := e.X.Eval(ctx, ec, row)
	if err != nil {
		return value.Value{}, err
	}
	switch e.Op {
	case UnaryNeg:
		switch v.Kind {
		case value.KindInt:
			return value.Int(-v.Int), nil
		case value.KindFloat:
			return value.Float(-v.Float), nil
		case value.KindDecimal:
			return value.Decimal(new(big.Rat).Neg(v.Decimal)), nil
		}
		return value.None(), fmt.Errorf("exec: cannot negate value of kind %d", v.Kind)
	case UnaryNot:
		return value.Bool(!v.Truthy()), nil
	}
	return value.Value{}, fmt.Errorf("exec: unknown unary operator %d", e.Op)
}

// BinaryOp is one of the supported binary operators.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
)

type Binary struct {
	Op   BinaryOp
	L, R Expr
}

func (e Binary) Eval(ctx context.Context, ec *EvalContext, row Row) (value.Value, error) {
	// Short-circuit boolean operators evaluate the right side lazily.
	if e.Op == OpAnd || e.Op == OpOr {
		l, err := e.L.Eval(ctx, ec, row)
		if err != nil {
			return value.Value{}, err
		}
		if e.Op == OpAnd && !l.Truthy() {
			return value.Bool(false), nil
		}
		if e.Op == OpOr && l.Truthy() {
			return value.Bool(true), nil
		}
		r, err := e.R.Eval(ctx, ec, row)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(r.Truthy()), nil
	}

	l, err := e.L.Eval(ctx, ec, row)
	if err != nil {
		return value.Value{}, err
	}
	r, err := e.R.Eval(ctx, ec, row)
	if err != nil {
		return value.Value{}, err
	}

	switch e.Op {
	case OpEq:
		return value.Bool(value.Compare(l, r) == 0), nil
	case OpNeq:
		return value.Bool(value.Compare(l, r) != 0), nil
	case OpLt:
		return value.Bool(value.Compare(l, r) < 0), nil
	case OpLte:
		return value.Bool(value.Compare(l, r) <= 0), nil
	case OpGt:
		return value.Bool(value.Compare(l, r) > 0), nil
	case OpGte:
		return value.Bool(value.Compare(l, r) >= 0), nil
	}

	lr, rr := l.AsRat(), r.AsRat()
	if lr == nil || rr == nil {
		return value.Value{}, fmt.Errorf("exec: arithmetic operator on non-numeric kinds %d/%d", l.Kind, r.Kind)
	}
	var out *big.Rat
	switch e.Op {
	case OpAdd:
		out = new(big.Rat).Add(lr, rr)
	case OpSub:
		out = new(big.Rat).Sub(lr, rr)
	case OpMul:
		out = new(big.Rat).Mul(lr, rr)
	case OpDiv:
		if rr.Sign() == 0 {
			return value.Value{}, fmt.Errorf("exec: division by zero")
		}
		out = new(big.Rat).Quo(lr, rr)
	default:
		return value.Value{}, fmt.Errorf("exec: unknown binary operator %d", e.Op)
	}
	return exactNumericResult(l, r, out), nil
}

// exactNumericResult narrows a big.Rat arithmetic result back to the
// narrowest of the two operand kinds that can represent it exactly,
// mirroring spec §3's Int < Float < Decimal precedence: an int+int stays
// an int when the result is integral, otherwise promotes.
func exactNumericResult(l, r value.Value, out *big.Rat) value.Value {
	bothInt := l.Kind == value.KindInt && r.Kind == value.KindInt
	if bothInt && out.IsInt() {
		return value.Int(out.Num().Int64())
	}
	if l.Kind == value.KindDecimal || r.Kind == value.KindDecimal {
		return value.Decimal(out)
	}
	f, _ := out.Float64()
	return value.Float(f)
}

// Call invokes a registered function by name.
type Call struct {
	Name string
	Args []Expr
}

func (e Call) Eval(ctx context.Context, ec *EvalContext, row Row) (value.Value, error) {
	fn, ok := ec.Funcs[e.Name]
	if !ok {
		return value.Value{}, fmt.Errorf("exec: unknown function %q", e.Name)
	}
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := a.Eval(ctx, ec, row)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}
	return fn(ctx, args)
}

// PlanFunc compiles a nested statement into an operator tree. It is a
// function, not a direct package/plan import, because plan depends on
// exec to build operators — exec cannot import plan back without a
// cycle. The planner fills this in when it lowers a subquery.
type PlanFunc func(ctx context.Context, ec *EvalContext) (Operator, error)

// Subquery runs a nested statement and folds its rows into a single
// value: an array of the produced row values, or KindNone if empty.
type Subquery struct {
	Compile PlanFunc
}

func (e Subquery) Eval(ctx context.Context, ec *EvalContext, row Row) (value.Value, error) {
	outer := row
	sub := ec.child()
	sub.Outer = &outer
	op, err := e.Compile(ctx, sub)
	if err != nil {
		return value.Value{}, err
	}
	stream, err := op.Execute(ctx)
	if err != nil {
		return value.Value{}, err
	}
	var out []value.Value
	for {
		batch, err := stream.Next(ctx)
		if err != nil {
			return value.Value{}, err
		}
		if len(batch) == 0 {
			break
		}
		for _, r := range batch {
			out = append(out, r.Val)
		}
	}
	if out == nil {
		return value.None(), nil
	}
	return value.Arr(out...), nil
}

// RecordIDExpr builds a KindRecordID value from a table name plus a key
// expression (spec §4.4 "record-id" expression kind).
type RecordIDExpr struct {
	Table string
	Key   Expr
}

func (e RecordIDExpr) Eval(ctx context.Context, ec *EvalContext, row Row) (value.Value, error) {
	kv, err := e.Key.Eval(ctx, ec, row)
	if err != nil {
		return value.Value{}, err
	}
	key, err := valueToRecordIDKey(kv)
	if err != nil {
		return value.Value{}, err
	}
	return value.RecordVal(&value.RecordID{Table: e.Table, Key: key}), nil
}

func valueToRecordIDKey(v value.Value) (value.RecordIDKey, error) {
	switch v.Kind {
	case value.KindInt:
		return value.IntKey(v.Int), nil
	case value.KindString:
		return value.StringKey(v.Str), nil
	case value.KindUuid:
		return value.UUIDKey(v.UUID), nil
	case value.KindRecordID:
		if v.Record != nil {
			return v.Record.Key, nil
		}
	}
	return value.RecordIDKey{}, fmt.Errorf("exec: value of kind %d cannot form a record id key", v.Kind)
}

// RangeLiteral evaluates a bounded range (spec §4.4 "range literal").
type RangeLiteral struct {
	Start, End           Expr
	StartIncl, EndIncl   bool
}

func (e RangeLiteral) Eval(ctx context.Context, ec *EvalContext, row Row) (value.Value, error) {
	vr := value.ValueRange{StartIncl: e.StartIncl, EndIncl: e.EndIncl}
	if e.Start != nil {
		v, err := e.Start.Eval(ctx, ec, row)
		if err != nil {
			return value.Value{}, err
		}
		vr.Start, vr.HasStart = v, true
	}
	if e.End != nil {
		v, err := e.End.Eval(ctx, ec, row)
		if err != nil {
			return value.Value{}, err
		}
		vr.End, vr.HasEnd = v, true
	}
	return value.Value{Kind: value.KindRange, Range: &vr}, nil
}

// BlockStmt is one statement inside a Block: if Name is non-empty, the
// evaluated value is bound as a LET variable for subsequent statements
// in the same block rather than contributing to the block's result.
type BlockStmt struct {
	Name string
	E    Expr
}

// Block re-plans (re-evaluates) its inner expressions at evaluation
// time so LET bindings inside the block are visible to later
// expressions inside the same block (spec §4.4 item 5), without
// leaking into the enclosing scope.
type Block struct {
	Stmts []BlockStmt
}

func (e Block) Eval(ctx context.Context, ec *EvalContext, row Row) (value.Value, error) {
	scope := ec.child()
	var result value.Value = value.None()
	for _, s := range e.Stmts {
		v, err := s.E.Eval(ctx, scope, row)
		if err != nil {
			return value.Value{}, err
		}
		if s.Name != "" {
			scope.Vars[s.Name] = v
			continue
		}
		result = v
	}
	return result, nil
}

// Mock is a fixed stand-in value used by the planner where an
// expression could not be resolved statically but a placeholder is
// needed to keep EXPLAIN output stable (spec §4.4 "mock" expression
// kind).
type Mock struct{ Value value.Value }

func (e Mock) Eval(context.Context, *EvalContext, Row) (value.Value, error) { return e.Value, nil }

// Cast converts X's result to Target's kind.
type Cast struct {
	Target value.Kind
	X      Expr
}

func (e Cast) Eval(ctx context.Context, ec *EvalContext, row Row) (value.Value, error) {
	v, err := e.X.Eval(ctx, ec, row)
	if err != nil {
		return value.Value{}, err
	}
	if v.Kind == e.Target {
		return v, nil
	}
	switch e.Target {
	case value.KindString:
		return value.String(fmt.Sprint(scalarForFormat(v))), nil
	case value.KindInt:
		if r := v.AsRat(); r != nil {
			// value.CoerceNumeric narrows exactly or errors (spec §3:
			// "losing precision errors where explicit casts don't
			// permit it") rather than round-tripping through float64,
			// which would silently truncate large int64/decimal inputs.
			return value.CoerceNumeric(v, value.KindInt)
		}
	case value.KindFloat:
		if r := v.AsRat(); r != nil {
			f, _ := r.Float64()
			return value.Float(f), nil
		}
	case value.KindBool:
		return value.Bool(v.Truthy()), nil
	}
	return value.Value{}, fmt.Errorf("exec: cannot cast kind %d to kind %d", v.Kind, e.Target)
}

func scalarForFormat(v value.Value) any {
	switch v.Kind {
	case value.KindInt:
		return v.Int
	case value.KindFloat:
		return v.Float
	case value.KindString:
		return v.Str
	case value.KindBool:
		return v.Bool
	default:
		return v.Kind
	}
}
