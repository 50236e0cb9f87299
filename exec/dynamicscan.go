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

// DynamicResolver builds the concrete operator a DynamicScan delegates
// to once the source expression's runtime value is known (a table
// name resolves to a TableScan, a record id to a RecordIdScan, etc).
// Defined by the planner, since only it knows the catalog/session
// context needed to build the delegate.
type DynamicResolver func(ctx context.Context, resolved value.Value) (Operator, error)

// DynamicScan is the runtime-resolved source used when the planner
// could not identify the FROM source statically — e.g. a parameter
// that resolves to a table or a record id only once bound (spec §4.5).
type DynamicScan struct {
	source   Expr
	ec       *EvalContext
	resolver DynamicResolver
	metricsBox
}

func NewDynamicScan(source Expr, ec *EvalContext, resolver DynamicResolver) *DynamicScan {
	return &DynamicScan{source: source, ec: ec, resolver: resolver}
}

func (s *DynamicScan) RequiredContext() RequiredContext { return ContextDatabase }
func (s *DynamicScan) AccessMode() AccessMode            { return AccessReadOnly }
func (s *DynamicScan) OutputOrdering() Ordering          { return Unordered }
func (s *DynamicScan) Children() []Operator              { return nil }
func (s *DynamicScan) Metrics() Metrics                  { return s.metricsBox.snapshot() }
func (s *DynamicScan) Attrs() map[string]string {
	return map[string]string{"op": "DynamicScan"}
}

func (s *DynamicScan) Execute(ctx context.Context) (RowStream, error) {
	resolved, err := s.source.Eval(ctx, s.ec, Row{})
	if err != nil {
		return nil, fmt.Errorf("exec: DynamicScan: resolving source: %w", err)
	}
	delegate, err := s.resolver(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("exec: DynamicScan: %w", err)
	}
	return delegate.Execute(ctx)
}

var _ Operator = (*DynamicScan)(nil)
