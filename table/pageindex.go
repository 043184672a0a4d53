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

package table

import (
	"encoding/binary"

	"github.com/n42blockchain/archive/archiveerr"
)

// A buffer's offsets() key stores its page-offset index as a flat array of
// little-endian u32s, matching internal/array's own native-value byte
// order. The nullmask buffer is special-cased: a column with no nulls at
// all never emits bitmask pages, so its offsets() value instead carries a
// single leading marker byte (0 = no-nulls, value is just the logical row
// count; 1 = normal page-offset array follows) since an ordinary page
// index can't otherwise be told apart from the degenerate zero-page case.
const (
	nullmaskMarkerAbsent = 0
	nullmaskMarkerNormal = 1
)

func encodePageIndex(idx []uint32) []byte {
	out := make([]byte, len(idx)*4)
	for i, v := range idx {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func decodePageIndex(blob []byte) ([]uint32, error) {
	if len(blob)%4 != 0 {
		return nil, archiveerr.Wrap(archiveerr.ErrCorruptPage, "page index blob length not a multiple of 4")
	}
	out := make([]uint32, len(blob)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(blob[i*4:])
	}
	return out, nil
}

func encodeNullmaskOffsets(pageIndex []uint32, hasNulls bool, length uint32) []byte {
	if !hasNulls {
		out := make([]byte, 5)
		out[0] = nullmaskMarkerAbsent
		binary.LittleEndian.PutUint32(out[1:], length)
		return out
	}
	return append([]byte{nullmaskMarkerNormal}, encodePageIndex(pageIndex)...)
}

func decodeNullmaskOffsets(blob []byte) (pageIndex []uint32, hasNulls bool, length uint32, err error) {
	if len(blob) < 1 {
		return nil, false, 0, archiveerr.Wrap(archiveerr.ErrCorruptPage, "empty nullmask offsets value")
	}
	switch blob[0] {
	case nullmaskMarkerAbsent:
		if len(blob) != 5 {
			return nil, false, 0, archiveerr.Wrap(archiveerr.ErrCorruptPage, "malformed no-nulls marker")
		}
		return nil, false, binary.LittleEndian.Uint32(blob[1:]), nil
	case nullmaskMarkerNormal:
		idx, err := decodePageIndex(blob[1:])
		if err != nil {
			return nil, false, 0, err
		}
		length := uint32(0)
		if len(idx) > 0 {
			length = idx[len(idx)-1]
		}
		return idx, true, length, nil
	default:
		return nil, false, 0, archiveerr.Wrapf(archiveerr.ErrCorruptPage, "unknown nullmask offsets marker %d", blob[0])
	}
}
