// Copyright 2022-2026 The N42 Authors
// This file is part of the N42 library.
//
// The N42 library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The N42 library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the N42 library. If not, see <http://www.gnu.org/licenses/>.

// Package stats builds, serializes, and evaluates the per-column min/max/
// null-count statistics used to prune pages before they are fetched.
package stats

import (
	"bytes"
	"encoding/binary"

	"github.com/n42blockchain/archive/internal/array"
)

// Comparator orders two raw little-endian native values of the same
// column type, in the sense required for min/max tracking.
type Comparator func(a, b []byte) int

// ComparatorFor returns the ordering used by a column's type. Fixed-width
// integers compare numerically (decoded from their little-endian
// encoding); Binary/Utf8/FixedSizeBinary compare their raw bytes
// lexicographically, which is the only ordering well-defined on raw bytes
// and happens to agree with UTF-8 codepoint order.
func ComparatorFor(t array.DataType) Comparator {
	switch t.Kind {
	case array.KindInt8:
		return signedCompare(1)
	case array.KindInt16:
		return signedCompare(2)
	case array.KindInt32:
		return signedCompare(4)
	case array.KindInt64, array.KindTimestamp:
		return signedCompare(8)
	case array.KindUint8:
		return unsignedCompare(1)
	case array.KindUint16:
		return unsignedCompare(2)
	case array.KindUint32:
		return unsignedCompare(4)
	case array.KindUint64:
		return unsignedCompare(8)
	default:
		return bytes.Compare
	}
}

func unsignedCompare(width int) Comparator {
	return func(a, b []byte) int {
		av, bv := decodeUint(a, width), decodeUint(b, width)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}
}

func signedCompare(width int) Comparator {
	return func(a, b []byte) int {
		av, bv := decodeInt(a, width), decodeInt(b, width)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}
}

func decodeUint(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

func decodeInt(b []byte, width int) int64 {
	switch width {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(b)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	default:
		return int64(binary.LittleEndian.Uint64(b))
	}
}
