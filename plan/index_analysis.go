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
	"github.com/erigontech/driftdb/exec"
	"github.com/erigontech/driftdb/meta"
	"github.com/erigontech/driftdb/value"
)

// accessPathKind names the candidate physical access paths spec §4.4
// item 2 enumerates.
type accessPathKind int

const (
	pathTableScan accessPathKind = iota
	pathEquality
	pathRange
	pathUnion
	pathFullText
	pathKnn
)

// Relative cost weights: equality < range < full scan, and a sort
// mismatch adds a fixed penalty so an index whose natural order
// disagrees with ORDER BY isn't chosen purely for cheap filtering when
// a Sort would have to be inserted anyway.
const (
	costEquality     = 1
	costRange        = 10
	costFullText     = 15
	costKnn          = 20
	costTableScan    = 1_000_000
	costSortMismatch = 500
)

// accessPath is the planner's internal candidate: enough information
// to build the concrete exec.Operator once selected, plus its
// estimated cost and how much of Where it consumes.
type accessPath struct {
	kind     accessPathKind
	index    *meta.Index
	cost     int
	ordering exec.Ordering

	// equality/range path fields
	columns    []value.Value // leading equality-matched column values
	rangeBound struct {
		lo, hi         exec.Expr
		loIncl, hiIncl bool
	}
	consumed []exec.Expr // conjuncts folded into this path
	residual []exec.Expr // conjuncts NOT handled by this path

	// union path
	branches []accessPath
}

// conjuncts flattens a top-level AND tree into its leaf predicates, the
// decomposition spec §4.4 item 3's "predicate pushdown" needs before it
// can match individual conjuncts against index columns.
func conjuncts(e exec.Expr) []exec.Expr {
	b, ok := e.(exec.Binary)
	if !ok || b.Op != exec.OpAnd {
		return []exec.Expr{e}
	}
	return append(conjuncts(b.L), conjuncts(b.R)...)
}

// disjuncts flattens a top-level OR tree, used for IN-expansion style
// union candidates (spec §4.4 "union of OR branches").
func disjuncts(e exec.Expr) []exec.Expr {
	b, ok := e.(exec.Binary)
	if !ok || b.Op != exec.OpOr {
		return []exec.Expr{e}
	}
	return append(disjuncts(b.L), disjuncts(b.R)...)
}

// fieldEquality reports whether e is `field(name) = <literal-ish
// expr>`, returning the matched expression on the right (it may still
// be a Param, evaluated once the EvalContext is available).
func fieldEquality(e exec.Expr, name string) (exec.Expr, bool) {
	b, ok := e.(exec.Binary)
	if !ok || b.Op != exec.OpEq {
		return nil, false
	}
	if fp, ok := b.L.(exec.FieldPath); ok && len(fp.Path) == 1 && fp.Path[0] == name {
		return b.R, true
	}
	if fp, ok := b.R.(exec.FieldPath); ok && len(fp.Path) == 1 && fp.Path[0] == name {
		return b.L, true
	}
	return nil, false
}

// fieldRange reports whether e is a comparison on field(name) other
// than equality, returning the bound side, whether it's a lower bound,
// and inclusivity.
func fieldRange(e exec.Expr, name string) (bound exec.Expr, isLower, incl bool, ok bool) {
	b, isBin := e.(exec.Binary)
	if !isBin {
		return nil, false, false, false
	}
	fp, onLeft := b.L.(exec.FieldPath)
	other := b.R
	op := b.Op
	if !onLeft || len(fp.Path) != 1 || fp.Path[0] != name {
		fp, onRight := b.R.(exec.FieldPath)
		if !onRight || len(fp.Path) != 1 || fp.Path[0] != name {
			return nil, false, false, false
		}
		other = b.L
		op = flipComparison(op)
	}
	switch op {
	case exec.OpGt:
		return other, true, false, true
	case exec.OpGte:
		return other, true, true, true
	case exec.OpLt:
		return other, false, false, true
	case exec.OpLte:
		return other, false, true, true
	}
	return nil, false, false, false
}

func flipComparison(op exec.BinaryOp) exec.BinaryOp {
	switch op {
	case exec.OpGt:
		return exec.OpLt
	case exec.OpGte:
		return exec.OpLte
	case exec.OpLt:
		return exec.OpGt
	case exec.OpLte:
		return exec.OpGte
	}
	return op
}

// analyzeIndex matches as many leading columns of ix as possible
// against the conjuncts of where, building an equality or
// equality+range access path. Returns ok=false if the index's first
// column has no matching conjunct at all (a table scan is then the
// only option).
func analyzeIndex(ix *meta.Index, where []exec.Expr) (accessPath, bool) {
	var ap accessPath
	ap.index = ix
	remaining := append([]exec.Expr{}, where...)

	take := func(i int) exec.Expr {
		e := remaining[i]
		remaining = append(remaining[:i], remaining[i+1:]...)
		return e
	}

	for _, col := range ix.Columns {
		matched := false
		for i, c := range remaining {
			if val, ok := fieldEquality(c, col); ok {
				ap.columns = append(ap.columns, mustLiteral(val))
				ap.consumed = append(ap.consumed, take(i))
				matched = true
				break
			}
		}
		if !matched {
			// No equality on this column: see if a range predicate
			// narrows it instead, which ends the matched-column walk
			// (only one trailing ranged column is supported, per
			// spec §4.4 "composite equality+range").
			for i, c := range remaining {
				if bound, isLower, incl, ok := fieldRange(c, col); ok {
					if isLower {
						ap.rangeBound.lo = bound
						ap.rangeBound.loIncl = incl
					} else {
						ap.rangeBound.hi = bound
						ap.rangeBound.hiIncl = incl
					}
					ap.consumed = append(ap.consumed, take(i))
				}
			}
			break
		}
	}
	if len(ap.columns) == 0 && ap.rangeBound.lo == nil && ap.rangeBound.hi == nil {
		return accessPath{}, false
	}
	ap.residual = remaining
	if ap.rangeBound.lo != nil || ap.rangeBound.hi != nil {
		ap.kind = pathRange
		ap.cost = costRange
	} else if len(ap.columns) == len(ix.Columns) && ix.Unique() {
		ap.kind = pathEquality
		ap.cost = costEquality
	} else {
		ap.kind = pathEquality
		ap.cost = costEquality + 1 // non-unique equality still cheap, paginated
	}
	return ap, true
}

// mustLiteral extracts a constant value.Value from a Literal
// expression; non-literal (e.g. Param) matches are still usable as
// columns since EqualityIterator accepts a []value.Value evaluated by
// the caller at Compile time against the bound parameters — see
// evalConst in plan.go.
func mustLiteral(e exec.Expr) value.Value {
	if lit, ok := e.(exec.Literal); ok {
		return lit.Value
	}
	return value.None()
}

// chooseAccessPath runs the cost model over every index plus the plain
// table-scan fallback and returns the cheapest, honoring WITH
// INDEX/NOINDEX overrides.
func chooseAccessPath(indexes []*meta.Index, where exec.Expr, overrideName string, noIndex bool) accessPath {
	scan := accessPath{kind: pathTableScan, cost: costTableScan}
	if noIndex || where == nil {
		return scan
	}
	parts := conjuncts(where)

	if overrideName != "" {
		for _, ix := range indexes {
			if ix.Name == overrideName {
				if ap, ok := analyzeIndex(ix, parts); ok {
					return ap
				}
				return scan
			}
		}
		return scan
	}

	best := scan
	for _, ix := range indexes {
		if ix.FullText() || ix.Knn() {
			continue // matched via explicit search()/knn() calls, not here
		}
		if ap, ok := analyzeIndex(ix, parts); ok && ap.cost < best.cost {
			best = ap
		}
	}

	// Top-level OR: try a union of per-branch access paths: if every
	// branch resolves to a non-table-scan path the union is usually
	// cheaper than a full scan even though no single index covers the
	// whole predicate.
	branches := disjuncts(where)
	if len(branches) > 1 {
		union := accessPath{kind: pathUnion}
		covered := true
		for _, b := range branches {
			bp := chooseAccessPath(indexes, b, "", false)
			if bp.kind == pathTableScan {
				covered = false
				break
			}
			union.branches = append(union.branches, bp)
			union.cost += bp.cost
		}
		if covered && union.cost < best.cost {
			best = union
		}
	}

	return best
}
