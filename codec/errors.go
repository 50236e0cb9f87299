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

package codec

import "errors"

// ErrUnorderableKind is returned when building an index-entry key over a
// column whose Kind has no order-preserving encoding defined (spec §4.3
// "numeric values are encoded so that numeric order = byte order"; Decimal's
// denominator is not guaranteed to be a power of two, so it cannot share
// Int/Float's ordered numeric encoding and is rejected as an index column
// rather than silently sorting wrong).
var ErrUnorderableKind = errors.New("codec: column kind has no order-preserving index encoding")
