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

// Package indexbuild implements the online index builder (spec §4.7): a
// background process that brings a newly declared index up to date with
// a table's existing rows without blocking writers, by replaying a
// durable append queue for anything that changed concurrently.
package indexbuild

import "fmt"

// Phase is a node in the builder's state machine:
//
//	Started -> Cleaning -> Indexing -> Ready | Aborted | Error
//
// Indexing covers both the initial scan and the append-queue drain;
// Status's Initial/Pending/Updated counters distinguish which sub-phase
// is progressing.
type Phase int

const (
	PhaseStarted Phase = iota
	PhaseCleaning
	PhaseIndexing
	PhaseReady
	PhaseAborted
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseStarted:
		return "started"
	case PhaseCleaning:
		return "cleaning"
	case PhaseIndexing:
		return "indexing"
	case PhaseReady:
		return "ready"
	case PhaseAborted:
		return "aborted"
	case PhaseError:
		return "error"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Status is the builder's durable progress record, persisted under
// codec.BuilderStateKey so a crash mid-build can be diagnosed. Run never
// reads it back: every build starts over from the cleaning phase.
type Status struct {
	Phase Phase `codec:"phase"`

	// Initial counts records applied by the initial table scan.
	Initial uint64 `codec:"initial"`
	// Pending is the append queue depth as of the last drain check.
	Pending uint64 `codec:"pending"`
	// Updated counts queue entries applied by the drain phase.
	Updated uint64 `codec:"updated"`

	Err string `codec:"err,omitempty"`
}

func (s Status) Done() bool {
	return s.Phase == PhaseReady || s.Phase == PhaseAborted || s.Phase == PhaseError
}
