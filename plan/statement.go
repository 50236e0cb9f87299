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

// Package plan compiles a statement into an exec.Operator tree (spec
// §4.4). Since the surface syntax itself is an explicit non-goal, a
// Statement here is a directly-constructed Go value rather than the
// output of a text parser — callers (a driver, a REPL, cmd/driftdb)
// build one from whatever front end they have.
package plan

import (
	"time"

	"github.com/erigontech/driftdb/exec"
	"github.com/erigontech/driftdb/value"
)

// SourceKind distinguishes the five FROM-clause shapes spec §4.4 item 1
// names.
type SourceKind int

const (
	SourceTable SourceKind = iota
	SourceRecordID
	SourceDynamic
	SourceSubquery
	SourceExpr
)

// Source is the resolved shape of a SELECT's FROM clause.
type Source struct {
	Kind     SourceKind
	Table    string
	RecordID *value.RecordID
	// Expr is evaluated once, at plan or run time: for SourceDynamic
	// it is resolved by Resolver (the parameter binds to a table name
	// or record id only once bound); for SourceExpr it is itself the
	// row source (a computed scalar/array treated as a one-shot rows
	// producer).
	Expr     exec.Expr
	Resolver exec.DynamicResolver
	Subquery *SelectStmt
}

// RecurseSpec is the statement-level description of a graph-recursion
// FROM pattern (spec §4.4 "Recursive/path expressions"), carrying the
// exec.RecurseMode and the arguments Compile passes to exec.NewRecurse.
type RecurseSpec struct {
	Min, Max int
	Mode     exec.RecurseMode
	Step     exec.RecurseStep
	Key      exec.NodeKey
	Target   func(exec.Row) bool
}

// SelectStmt is the Go-native representation of a single SELECT
// statement's already-resolved clauses (spec §4.4).
type SelectStmt struct {
	From Source

	Where exec.Expr // nil means no predicate

	Recurse *RecurseSpec

	GroupBy    []exec.Expr
	Aggregates []exec.AggregateSpec

	OrderBy []exec.SortKey

	HasLimit  bool
	Limit     int
	HasOffset bool
	Offset    int

	// Exactly one of Fields/ValueExpr/CountOnly should be set; a zero
	// Fields with no ValueExpr and !CountOnly means "SELECT *".
	Fields    []exec.ProjectField
	ValueExpr exec.Expr
	CountOnly bool

	OmitFields []string

	// FetchPaths is nil when no FETCH was requested; a non-nil empty
	// slice means "fetch every top-level record-id field".
	FetchPaths     []string
	FetchRequested bool

	Only bool

	Timeout time.Duration

	IndexOverride string // WITH INDEX name
	NoIndex       bool   // WITH NOINDEX
}
