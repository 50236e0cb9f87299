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
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/erigontech/driftdb/changefeed"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/value"
)

func newChangefeedCmd() *cobra.Command {
	scan := &cobra.Command{
		Use:   "scan",
		Short: "Seed the people table, record a couple of changes, and print the resulting change feed in commit order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			withIndex, _ := cmd.Flags().GetBool("with-index")
			eng, err := seedDemo(ctx, withIndex)
			if err != nil {
				return errors.Wrap(err, "seeding demo data")
			}

			alice := value.Obj(map[string]value.Value{"name": value.String("alice"), "age": value.Int(30)})
			dave := value.Obj(map[string]value.Value{"name": value.String("dave"), "age": value.Int(22)})

			rw, err := eng.backend.Begin(ctx, true)
			if err != nil {
				return err
			}
			if err := changefeed.Reserve(ctx, rw, eng.nsID, eng.dbID); err != nil {
				return err
			}
			// update alice's age, and insert a new row for dave, both under
			// the single stamp this transaction reserved above.
			aliceUpdated := value.Obj(map[string]value.Value{"name": value.String("alice"), "age": value.Int(31)})
			if err := changefeed.Append(ctx, rw, eng.nsID, eng.dbID, peopleTable, value.IntKey(1), alice, aliceUpdated); err != nil {
				return err
			}
			if err := changefeed.Append(ctx, rw, eng.nsID, eng.dbID, peopleTable, value.IntKey(4), value.None(), dave); err != nil {
				return err
			}
			if err := rw.Commit(ctx); err != nil {
				return err
			}

			ro, err := eng.backend.Begin(ctx, false)
			if err != nil {
				return err
			}
			records, err := changefeed.Scan(ctx, ro, eng.nsID, eng.dbID, peopleTable, kv.ZeroVersionstamp)
			if err != nil {
				return errors.Wrap(err, "scanning change feed")
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"stamp", "op", "key", "name", "age"})
			for _, r := range records {
				name, age := "", int64(0)
				if !r.After.IsNone() {
					name = r.After.Object["name"].Str
					age = r.After.Object["age"].Int
				} else if !r.Before.IsNone() {
					name = r.Before.Object["name"].Str
					age = r.Before.Object["age"].Int
				}
				t.AppendRow(table.Row{kv.Versionstamp(r.Stamp).String(), r.Op.String(), r.Key.String(), name, age})
			}
			t.Render()
			return nil
		},
	}

	cmd := &cobra.Command{
		Use:   "changefeed",
		Short: "Change-feed operations",
	}
	cmd.AddCommand(scan)
	return cmd
}
