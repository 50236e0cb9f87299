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

package kv

import "errors"

// Sentinel errors for the transaction contract (spec §4.1, §7 "Transaction").
var (
	// ErrTxFinished is returned by any operation on a transaction that has
	// already committed or been cancelled.
	ErrTxFinished = errors.New("kv: transaction finished")

	// ErrTxReadonly is returned when a write is attempted on a read-only
	// transaction.
	ErrTxReadonly = errors.New("kv: transaction is read-only")

	// ErrConditionNotMet is returned by PutC/DelC when the observed value
	// does not match the caller's expectation.
	ErrConditionNotMet = errors.New("kv: compare-and-set condition not met")

	// ErrUnsupportedVersionedQueries is returned when a caller asks for a
	// versioned read/scan and the backend does not implement one.
	ErrUnsupportedVersionedQueries = errors.New("kv: backend does not support versioned queries")

	// ErrUnsupportedOp is returned for optional operations (reverse scan,
	// compare-and-set, versioned reads) a backend did not implement.
	ErrUnsupportedOp = errors.New("kv: operation not supported by this backend")

	// ErrKeyNotFound is returned by Get-style accessors that need a present
	// error value rather than a bare (nil, false).
	ErrKeyNotFound = errors.New("kv: key not found")

	// ErrAlreadyExists is returned by Put when the key is already present.
	ErrAlreadyExists = errors.New("kv: key already exists")
)
