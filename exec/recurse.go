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

	"github.com/erigontech/driftdb/value"
)

// RecurseMode selects what a Recurse operator emits once traversal
// stops (spec §4.5 "Recurse").
type RecurseMode int

const (
	// RecurseDefault returns only the final value reached at the
	// traversal's bound (or when no further step has edges).
	RecurseDefault RecurseMode = iota
	// RecurseCollect gathers every unique node visited, via BFS.
	RecurseCollect
	// RecursePath returns every full path walked, start to end.
	RecursePath
	// RecurseShortest runs BFS until the target predicate is
	// satisfied, returning the first (shortest) path found.
	RecurseShortest
)

// RecurseStep expands one row into its next-hop candidates (e.g.
// following a graph edge or a record-id field). Evaluated once per
// node visited, bounded by MaxDepth.
type RecurseStep func(ctx context.Context, current Row, depth int) ([]Row, error)

// NodeKey returns a stable, comparable identity for a row so the
// traversal can detect already-visited nodes. Typically built from
// Row.ID; falls back to an encoded Value for rows with no record id.
type NodeKey func(Row) string

// Recurse is the iterative bounded/unbounded path-traversal operator
// (spec §4.5): it walks outward from each input row via Step, bounded
// by MinDepth/MaxDepth and the system-wide recursion limit, and emits
// rows per Mode.
type Recurse struct {
	unaryOp
	Step     RecurseStep
	Key      NodeKey
	Target   func(Row) bool
	MinDepth int
	MaxDepth int
	Mode     RecurseMode
}

// RecurseLimit bounds traversal depth when MaxDepth is unset (<= 0),
// protecting against unbounded/cyclic graphs with no explicit bound.
const RecurseLimit = 10000

func NewRecurse(child Operator, step RecurseStep, key NodeKey, mode RecurseMode, minDepth, maxDepth int) *Recurse {
	return &Recurse{unaryOp: unaryOp{child: child}, Step: step, Key: key, Mode: mode, MinDepth: minDepth, MaxDepth: maxDepth}
}

// WithTarget sets the stop predicate used by RecurseShortest.
func (r *Recurse) WithTarget(target func(Row) bool) *Recurse {
	r.Target = target
	return r
}

func (r *Recurse) Attrs() map[string]string { return map[string]string{"op": "Recurse"} }

func (r *Recurse) maxDepth() int {
	if r.MaxDepth > 0 {
		return r.MaxDepth
	}
	return RecurseLimit
}

type recursePath struct {
	rows []Row
}

func (r *Recurse) Execute(ctx context.Context) (RowStream, error) {
	roots, err := drainAll(ctx, r.child)
	if err != nil {
		return nil, err
	}
	var out []Row
	switch r.Mode {
	case RecurseShortest:
		for _, root := range roots {
			path, err := r.bfsShortest(ctx, root)
			if err != nil {
				return nil, err
			}
			if path != nil {
				for _, row := range path.rows {
					out = append(out, row)
				}
			}
		}
	case RecursePath:
		for _, root := range roots {
			paths, err := r.bfsAllPaths(ctx, root)
			if err != nil {
				return nil, err
			}
			for _, p := range paths {
				out = append(out, Row{Val: value.Arr(rowsToValues(p.rows)...)})
			}
		}
	case RecurseCollect:
		for _, root := range roots {
			nodes, err := r.bfsCollect(ctx, root)
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
	default: // RecurseDefault
		for _, root := range roots {
			final, err := r.bfsFinal(ctx, root)
			if err != nil {
				return nil, err
			}
			if final != nil {
				out = append(out, *final)
			}
		}
	}
	return &materializedStream{op: &r.metricsBox, rows: out}, nil
}

func rowsToValues(rows []Row) []value.Value {
	out := make([]value.Value, len(rows))
	for i, row := range rows {
		out[i] = row.Val
	}
	return out
}

// bfsCollect gathers every unique node reachable within MaxDepth,
// skipping already-visited keys so cycles terminate.
func (r *Recurse) bfsCollect(ctx context.Context, root Row) ([]Row, error) {
	visited := map[string]bool{r.Key(root): true}
	frontier := []Row{root}
	var collected []Row
	if r.MinDepth <= 0 {
		collected = append(collected, root)
	}
	for depth := 1; depth <= r.maxDepth() && len(frontier) > 0; depth++ {
		var next []Row
		for _, cur := range frontier {
			children, err := r.Step(ctx, cur, depth)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				k := r.Key(c)
				if visited[k] {
					continue
				}
				visited[k] = true
				next = append(next, c)
				if depth >= r.MinDepth {
					collected = append(collected, c)
				}
			}
		}
		frontier = next
	}
	return collected, nil
}

// bfsFinal walks to the traversal's bound and returns the last
// frontier's values (RecurseDefault mode).
func (r *Recurse) bfsFinal(ctx context.Context, root Row) (*Row, error) {
	visited := map[string]bool{r.Key(root): true}
	frontier := []Row{root}
	var last *Row
	if r.MinDepth <= 0 {
		last = &root
	}
	for depth := 1; depth <= r.maxDepth() && len(frontier) > 0; depth++ {
		var next []Row
		for _, cur := range frontier {
			children, err := r.Step(ctx, cur, depth)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				k := r.Key(c)
				if visited[k] {
					continue
				}
				visited[k] = true
				cc := c
				next = append(next, cc)
				if depth >= r.MinDepth {
					last = &cc
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return last, nil
}

// bfsShortest runs breadth-first search until Target matches,
// returning the first (shortest) path found.
func (r *Recurse) bfsShortest(ctx context.Context, root Row) (*recursePath, error) {
	if r.Target == nil {
		return nil, fmt.Errorf("exec: Recurse: shortest mode requires a target predicate")
	}
	if r.Target(root) {
		return &recursePath{rows: []Row{root}}, nil
	}
	visited := map[string]bool{r.Key(root): true}
	type frontierEntry struct {
		row  Row
		path []Row
	}
	frontier := []frontierEntry{{row: root, path: []Row{root}}}
	for depth := 1; depth <= r.maxDepth() && len(frontier) > 0; depth++ {
		var next []frontierEntry
		for _, cur := range frontier {
			children, err := r.Step(ctx, cur.row, depth)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				k := r.Key(c)
				if visited[k] {
					continue
				}
				visited[k] = true
				path := append(append([]Row{}, cur.path...), c)
				if r.Target(c) {
					return &recursePath{rows: path}, nil
				}
				next = append(next, frontierEntry{row: c, path: path})
			}
		}
		frontier = next
	}
	return nil, nil
}

// bfsAllPaths enumerates every distinct path from root within
// MaxDepth (RecursePath mode). Node revisits within the SAME path are
// disallowed to keep paths acyclic; the same node may still appear on
// multiple distinct paths.
func (r *Recurse) bfsAllPaths(ctx context.Context, root Row) ([]recursePath, error) {
	var results []recursePath
	var walk func(cur Row, path []Row, onPath map[string]bool, depth int) error
	walk = func(cur Row, path []Row, onPath map[string]bool, depth int) error {
		if depth >= r.MinDepth {
			results = append(results, recursePath{rows: append([]Row{}, path...)})
		}
		if depth >= r.maxDepth() {
			return nil
		}
		children, err := r.Step(ctx, cur, depth+1)
		if err != nil {
			return err
		}
		for _, c := range children {
			k := r.Key(c)
			if onPath[k] {
				continue
			}
			onPath[k] = true
			if err := walk(c, append(path, c), onPath, depth+1); err != nil {
				return err
			}
			delete(onPath, k)
		}
		return nil
	}
	onPath := map[string]bool{r.Key(root): true}
	if err := walk(root, []Row{root}, onPath, 0); err != nil {
		return nil, err
	}
	return results, nil
}

var _ Operator = (*Recurse)(nil)
