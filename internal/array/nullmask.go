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

package array

// NullmaskWriter optimizes the common "all valid so far" case: it does not
// allocate a bitmask until the first null arrives. On the first null it
// retroactively emits lenSoFar ones, then behaves as a plain BitmaskWriter.
// The backfill streams through the bitmask writer's incremental page
// flushing, so its memory stays bounded at about one page however long the
// all-valid prefix was.
type NullmaskWriter struct {
	target int
	onPage func([]byte) error

	bits    *BitmaskWriter
	lenOnly uint32
}

// NewNullmaskWriter creates a writer targeting targetBytes per page.
func NewNullmaskWriter(targetBytes int, onPage func([]byte) error) *NullmaskWriter {
	return &NullmaskWriter{target: targetBytes, onPage: onPage}
}

func (w *NullmaskWriter) initBits() error {
	w.bits = NewBitmaskWriter(w.target, w.onPage)
	return w.bits.AppendMany(true, w.lenOnly)
}

// Append writes one validity bit (true == valid/non-null).
func (w *NullmaskWriter) Append(val bool) error {
	if w.bits != nil {
		return w.bits.Append(val)
	}
	if val {
		w.lenOnly++
		return nil
	}
	if err := w.initBits(); err != nil {
		return err
	}
	return w.bits.Append(false)
}

// AppendMany writes count repetitions of val.
func (w *NullmaskWriter) AppendMany(val bool, count uint32) error {
	if count == 0 {
		return nil
	}
	if w.bits != nil {
		return w.bits.AppendMany(val, count)
	}
	if val {
		w.lenOnly += count
		return nil
	}
	if err := w.initBits(); err != nil {
		return err
	}
	return w.bits.AppendMany(false, count)
}

// AppendSlice copies length validity bits from a source bit-packed buffer,
// switching out of the optimized all-valid representation only if the
// slice actually contains a null.
func (w *NullmaskWriter) AppendSlice(data []byte, offset, length int) error {
	if w.bits != nil {
		return w.bits.AppendSlice(data, offset, length)
	}
	if allValid(data, offset, length) {
		w.lenOnly += uint32(length)
		return nil
	}
	if err := w.initBits(); err != nil {
		return err
	}
	return w.bits.AppendSlice(data, offset, length)
}

func allValid(data []byte, offset, length int) bool {
	for i := 0; i < length; i++ {
		bitPos := offset + i
		if (data[bitPos>>3]>>uint(bitPos&7))&1 == 0 {
			return false
		}
	}
	return true
}

// Len returns the number of validity bits appended so far.
func (w *NullmaskWriter) Len() uint32 {
	if w.bits != nil {
		return w.bits.totalBitsAppended()
	}
	return w.lenOnly
}

func (w *BitmaskWriter) totalBitsAppended() uint32 {
	return w.cumBits + uint32(len(w.buf))*8 + uint32(w.curBits)
}

// Finish returns (pageIndex, hasNulls, length). When hasNulls is false no
// bitmask pages were ever written; the caller records just the 4-byte
// logical length.
func (w *NullmaskWriter) Finish() (pageIndex []uint32, hasNulls bool, length uint32, err error) {
	if w.bits == nil {
		return nil, false, w.lenOnly, nil
	}
	length = w.bits.totalBitsAppended()
	pageIndex, err = w.bits.Finish()
	return pageIndex, true, length, err
}
