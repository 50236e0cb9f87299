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

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/erigontech/driftdb/config"
	"github.com/erigontech/driftdb/exec"
	"github.com/erigontech/driftdb/meta"
	"github.com/erigontech/driftdb/plan"
	"github.com/erigontech/driftdb/value"
)

func newQueryCmd() *cobra.Command {
	var eqFilters []string
	var orderField string
	var descending bool
	var limit int

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a SELECT over the seeded people table and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			withIndex, _ := cmd.Flags().GetBool("with-index")
			ctx := cmd.Context()

			eng, err := seedDemo(ctx, withIndex)
			if err != nil {
				return errors.Wrap(err, "seeding demo data")
			}
			tx, err := eng.backend.Begin(ctx, false)
			if err != nil {
				return err
			}
			defer tx.Cancel()

			mc, err := meta.NewCache(tx, 0)
			if err != nil {
				return err
			}

			stmt, err := buildSelectStmt(eqFilters, orderField, descending, limit)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return errors.Wrap(err, "loading configuration")
			}

			pc := &plan.Context{
				Tx:                 tx,
				Meta:               mc,
				NsID:               eng.nsID,
				DbID:               eng.dbID,
				SubqueryDepthLimit: cfg.SubqueryDepthLimit,
				TempDir:            cfg.TempDir,
				EvalContext: &exec.EvalContext{
					Params: map[string]value.Value{},
					Vars:   map[string]value.Value{},
					Funcs:  exec.FuncRegistry{},
				},
			}

			// pkg/errors annotates only at this outermost
			// statement-execution boundary, not threaded through the
			// planner/executor's own hot-path error returns.
			op, err := plan.Compile(ctx, pc, stmt)
			if err != nil {
				return errors.Wrap(err, "compiling query")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "access path: %s\n", op.Attrs()["op"])

			rows, err := runOperator(ctx, op)
			if err != nil {
				return errors.Wrap(err, "executing query")
			}
			renderRows(cmd.OutOrStdout(), rows)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&eqFilters, "eq", nil, "equality predicate field=value, ANDed together if repeated")
	cmd.Flags().StringVar(&orderField, "order", "", "field to sort by")
	cmd.Flags().BoolVar(&descending, "desc", false, "sort descending instead of ascending")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to return (0 means no limit)")
	return cmd
}

func buildSelectStmt(eqFilters []string, orderField string, descending bool, limit int) (*plan.SelectStmt, error) {
	stmt := &plan.SelectStmt{From: plan.Source{Kind: plan.SourceTable, Table: peopleTable}}

	var where exec.Expr
	for _, f := range eqFilters {
		field, lit, err := parseEqFilter(f)
		if err != nil {
			return nil, err
		}
		pred := exec.Binary{Op: exec.OpEq, L: exec.FieldPath{Path: []string{field}}, R: exec.Literal{Value: lit}}
		if where == nil {
			where = pred
		} else {
			where = exec.Binary{Op: exec.OpAnd, L: where, R: pred}
		}
	}
	stmt.Where = where

	if orderField != "" {
		dir := exec.Ascending
		if descending {
			dir = exec.Descending
		}
		stmt.OrderBy = []exec.SortKey{{E: exec.FieldPath{Path: []string{orderField}}, Direction: dir}}
	}

	if limit > 0 {
		stmt.HasLimit = true
		stmt.Limit = limit
	}

	return stmt, nil
}

// parseEqFilter turns "age=30" into a field name and a literal value,
// inferring int over string since the demo schema only has those two
// column kinds.
func parseEqFilter(f string) (string, value.Value, error) {
	field, raw, ok := strings.Cut(f, "=")
	if !ok {
		return "", value.Value{}, fmt.Errorf("invalid --eq %q, want field=value", f)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return field, value.Int(n), nil
	}
	return field, value.String(raw), nil
}

func runOperator(ctx context.Context, op exec.Operator) ([]exec.Row, error) {
	stream, err := op.Execute(ctx)
	if err != nil {
		return nil, err
	}
	var rows []exec.Row
	for {
		batch, err := stream.Next(ctx)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return rows, nil
		}
		rows = append(rows, batch...)
	}
}

func renderRows(out io.Writer, rows []exec.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "(no rows)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"name", "age"})
	for _, r := range rows {
		name := ""
		var age value.Value
		if r.Val.Kind == value.KindObject {
			name = r.Val.Object["name"].Str
			age = r.Val.Object["age"]
		}
		t.AppendRow(table.Row{name, age.Int})
	}
	t.Render()
}
