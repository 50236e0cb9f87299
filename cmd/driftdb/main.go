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

// Command driftdb is a thin CLI shim over the planner/executor/index
// pipeline (spec §6 "External interfaces"). It is deliberately not a
// server: each invocation opens a fresh in-memory store, seeds a small
// demo dataset, runs one operation, and exits — giving the pipeline an
// exercised entry point without building the networked request surface
// that is out of scope.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "driftdb:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "driftdb",
		Short:         "Run a single statement against an in-memory driftdb instance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("with-index", false, "build a unique index on people.name before running the command")

	root.AddCommand(newQueryCmd())
	root.AddCommand(newIndexCmd())
	root.AddCommand(newChangefeedCmd())
	return root
}
