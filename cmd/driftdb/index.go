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
	"go.uber.org/zap"

	"github.com/erigontech/driftdb/indexbuild"
	"github.com/erigontech/driftdb/kv"
	"github.com/erigontech/driftdb/meta"
)

func newIndexCmd() *cobra.Command {
	build := &cobra.Command{
		Use:   "build",
		Short: "Run the online index builder against the seeded people table and print its final status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// seedDemo(ctx, false): the index itself must not exist yet —
			// it is this command's job to build it.
			eng, err := seedDemo(ctx, false)
			if err != nil {
				return errors.Wrap(err, "seeding demo data")
			}

			rw, err := eng.backend.Begin(ctx, true)
			if err != nil {
				return err
			}
			mc, err := meta.NewCache(rw, 0)
			if err != nil {
				return err
			}
			ix := &meta.Index{Table: peopleTable, Name: nameIndex, Columns: []string{"name"}, Flags: kv.IndexUnique}
			if err := mc.AddIndex(ctx, rw, eng.nsID, eng.dbID, ix); err != nil {
				return err
			}
			if err := rw.Commit(ctx); err != nil {
				return err
			}

			ro, err := eng.backend.Begin(ctx, false)
			if err != nil {
				return err
			}
			mc, err = meta.NewCache(ro, 0)
			if err != nil {
				return err
			}

			log, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			reg := indexbuild.NewRegistry()
			b, err := indexbuild.BuildIndex(ctx, eng.backend, mc, eng.nsID, eng.dbID, peopleTable, nameIndex, reg, log)
			if err != nil {
				return errors.Wrap(err, "building index")
			}

			status := b.Status()
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"phase", "initial", "pending", "updated"})
			t.AppendRow(table.Row{status.Phase.String(), status.Initial, status.Pending, status.Updated})
			t.Render()
			return nil
		},
	}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Online index builder operations",
	}
	cmd.AddCommand(build)
	return cmd
}
