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

package stats

import (
	"encoding/binary"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/internal/array"
)

// trailerSize is the fixed 20-byte footer: four buffer byte-lengths
// (offsets, min, max, nullcount) plus the entry count, all uint32 LE.
const trailerSize = 20

func fixedWidthOf(dt array.DataType) int {
	switch dt.Kind {
	case array.KindBinary, array.KindUtf8:
		return 0
	case array.KindFixedSizeBinary:
		return dt.FixedSize
	default:
		return dt.PrimitiveWidth()
	}
}

func putU32(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
func getU32(src []byte) uint32    { return binary.LittleEndian.Uint32(src) }

// Serialize packs entries into the self-describing stats blob: the
// offsets array (cumulative row count, length len(entries)+1), the min
// array, the max array, the nullcount array, and a trailing footer
// naming each buffer's byte length and the entry count.
func Serialize(dt array.DataType, entries []Entry) []byte {
	width := fixedWidthOf(dt)

	offsets := make([]byte, (len(entries)+1)*4)
	var minBuf, maxBuf, nullBuf []byte

	cum := uint32(0)
	for i, e := range entries {
		cum += e.RowCount
		putU32(offsets[(i+1)*4:], cum)

		var nc [4]byte
		putU32(nc[:], e.NullCount)
		nullBuf = append(nullBuf, nc[:]...)

		if width > 0 {
			minBuf = append(minBuf, padTo(e.Min, width)...)
			maxBuf = append(maxBuf, padTo(e.Max, width)...)
		} else {
			minBuf = append(minBuf, encodeVarEntry(e.Min)...)
			maxBuf = append(maxBuf, encodeVarEntry(e.Max)...)
		}
	}

	out := make([]byte, 0, len(offsets)+len(minBuf)+len(maxBuf)+len(nullBuf)+trailerSize)
	out = append(out, offsets...)
	out = append(out, minBuf...)
	out = append(out, maxBuf...)
	out = append(out, nullBuf...)

	var trailer [trailerSize]byte
	putU32(trailer[0:4], uint32(len(offsets)))
	putU32(trailer[4:8], uint32(len(minBuf)))
	putU32(trailer[8:12], uint32(len(maxBuf)))
	putU32(trailer[12:16], uint32(len(nullBuf)))
	putU32(trailer[16:20], uint32(len(entries)))
	return append(out, trailer[:]...)
}

func padTo(v []byte, width int) []byte {
	out := make([]byte, width)
	copy(out, v)
	return out
}

func encodeVarEntry(v []byte) []byte {
	out := make([]byte, 4+len(v))
	putU32(out, uint32(len(v)))
	copy(out[4:], v)
	return out
}

// Deserialize validates and unpacks a stats blob produced by Serialize
// for a column of type dt.
func Deserialize(dt array.DataType, blob []byte) ([]Entry, error) {
	if len(blob) < trailerSize {
		return nil, archiveerr.Wrap(archiveerr.ErrCorruptStats, "blob shorter than trailer")
	}
	trailer := blob[len(blob)-trailerSize:]
	offsetsLen := getU32(trailer[0:4])
	minLen := getU32(trailer[4:8])
	maxLen := getU32(trailer[8:12])
	nullLen := getU32(trailer[12:16])
	count := getU32(trailer[16:20])

	body := blob[:len(blob)-trailerSize]
	want := int(offsetsLen) + int(minLen) + int(maxLen) + int(nullLen)
	if len(body) != want {
		return nil, archiveerr.Wrapf(archiveerr.ErrCorruptStats, "body length %d, trailer declares %d", len(body), want)
	}
	if offsetsLen != (count+1)*4 {
		return nil, archiveerr.Wrapf(archiveerr.ErrCorruptStats, "offsets length %d inconsistent with count %d", offsetsLen, count)
	}
	if nullLen != count*4 {
		return nil, archiveerr.Wrapf(archiveerr.ErrCorruptStats, "nullcount length %d inconsistent with count %d", nullLen, count)
	}

	offsets := body[:offsetsLen]
	minBuf := body[offsetsLen : offsetsLen+minLen]
	maxBuf := body[offsetsLen+minLen : offsetsLen+minLen+maxLen]
	nullBuf := body[offsetsLen+minLen+maxLen:]

	if getU32(offsets[0:4]) != 0 {
		return nil, archiveerr.Wrap(archiveerr.ErrCorruptStats, "offsets array does not start with 0")
	}

	width := fixedWidthOf(dt)
	entries := make([]Entry, count)
	prevCum := uint32(0)
	minPos, maxPos := 0, 0
	for i := uint32(0); i < count; i++ {
		cum := getU32(offsets[(i+1)*4:])
		if cum < prevCum {
			return nil, archiveerr.Wrap(archiveerr.ErrCorruptStats, "offsets array is not monotonic")
		}
		entries[i].RowCount = cum - prevCum
		prevCum = cum
		entries[i].NullCount = getU32(nullBuf[i*4:])

		if width > 0 {
			if minPos+width > len(minBuf) || maxPos+width > len(maxBuf) {
				return nil, archiveerr.Wrap(archiveerr.ErrCorruptStats, "min/max buffer shorter than entry count implies")
			}
			entries[i].Min = cloneBytes(minBuf[minPos : minPos+width])
			entries[i].Max = cloneBytes(maxBuf[maxPos : maxPos+width])
			minPos += width
			maxPos += width
		} else {
			v, next, err := decodeVarEntry(minBuf, minPos)
			if err != nil {
				return nil, err
			}
			entries[i].Min, minPos = v, next
			v, next, err = decodeVarEntry(maxBuf, maxPos)
			if err != nil {
				return nil, err
			}
			entries[i].Max, maxPos = v, next
		}
	}
	if minPos != len(minBuf) || maxPos != len(maxBuf) {
		return nil, archiveerr.Wrap(archiveerr.ErrCorruptStats, "min/max buffer has trailing bytes beyond the entry count")
	}
	return entries, nil
}

func decodeVarEntry(buf []byte, pos int) ([]byte, int, error) {
	if pos+4 > len(buf) {
		return nil, 0, archiveerr.Wrap(archiveerr.ErrCorruptStats, "truncated variable-length stats entry")
	}
	length := int(getU32(buf[pos:]))
	pos += 4
	if pos+length > len(buf) {
		return nil, 0, archiveerr.Wrap(archiveerr.ErrCorruptStats, "variable-length stats entry overruns buffer")
	}
	if length == 0 {
		return nil, pos, nil
	}
	return cloneBytes(buf[pos : pos+length]), pos + length, nil
}
