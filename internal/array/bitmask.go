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

// flushNumerator/flushDenominator is the 1.5x threshold: once the in-memory buffer exceeds
// target + target/2 bytes, a full target-size page is flushed and the
// residue carried forward.
const flushNumerator, flushDenominator = 3, 2

// BitmaskWriter accumulates a bit-packed (LSB-first) boolean stream and
// emits target-size byte pages to onPage, recording the cumulative bit
// length at each page boundary.
type BitmaskWriter struct {
	target int
	buf    []byte

	curByte byte
	curBits int

	pageIndex []uint32
	cumBits   uint32

	onPage func([]byte) error
}

// NewBitmaskWriter creates a writer targeting targetBytes per page.
func NewBitmaskWriter(targetBytes int, onPage func([]byte) error) *BitmaskWriter {
	if targetBytes < 1 {
		targetBytes = 1
	}
	return &BitmaskWriter{target: targetBytes, pageIndex: []uint32{0}, onPage: onPage}
}

// Append writes a single bit.
func (w *BitmaskWriter) Append(val bool) error {
	if val {
		w.curByte |= 1 << uint(w.curBits)
	}
	w.curBits++
	if w.curBits == 8 {
		w.buf = append(w.buf, w.curByte)
		w.curByte, w.curBits = 0, 0
		if err := w.maybeFlush(); err != nil {
			return err
		}
	}
	return nil
}

// AppendMany writes count repetitions of val.
func (w *BitmaskWriter) AppendMany(val bool, count uint32) error {
	for i := uint32(0); i < count; i++ {
		if err := w.Append(val); err != nil {
			return err
		}
	}
	return nil
}

// AppendSlice copies length bits starting at the given bit offset out of a
// source bit-packed buffer — the bulk path used when copying an
// already-encoded slice into a new buffer.
func (w *BitmaskWriter) AppendSlice(data []byte, offset, length int) error {
	for i := 0; i < length; i++ {
		bitPos := offset + i
		bit := (data[bitPos>>3] >> uint(bitPos&7)) & 1
		if err := w.Append(bit == 1); err != nil {
			return err
		}
	}
	return nil
}

func (w *BitmaskWriter) maybeFlush() error {
	for len(w.buf) > w.target+w.target/2 {
		page := w.buf[:w.target]
		if err := w.emitBits(page, uint32(w.target)*8); err != nil {
			return err
		}
		w.buf = append([]byte(nil), w.buf[w.target:]...)
	}
	return nil
}

func (w *BitmaskWriter) emitBits(page []byte, bits uint32) error {
	if err := w.onPage(append([]byte(nil), page...)); err != nil {
		return err
	}
	w.cumBits += bits
	w.pageIndex = append(w.pageIndex, w.cumBits)
	return nil
}

// Finish flushes any residue, splitting it roughly in half if it exceeds
// one target-size page, and returns the completed page-offset array (the
// cumulative bit length recorded at every page boundary, starting with 0).
func (w *BitmaskWriter) Finish() ([]uint32, error) {
	pendingPartial := w.curBits
	if pendingPartial > 0 {
		w.buf = append(w.buf, w.curByte)
		w.curByte, w.curBits = 0, 0
	}
	if len(w.buf) == 0 {
		return w.pageIndex, nil
	}

	fullBytes := len(w.buf)
	if pendingPartial > 0 {
		fullBytes--
	}
	totalBits := uint32(fullBytes)*8 + uint32(pendingPartial)

	if len(w.buf) > w.target {
		half := len(w.buf) / 2
		if half == 0 {
			half = 1
		}
		page1, page2 := w.buf[:half], w.buf[half:]
		bits1 := uint32(len(page1)) * 8
		bits2 := totalBits - bits1
		if err := w.emitBits(page1, bits1); err != nil {
			return nil, err
		}
		if err := w.emitBits(page2, bits2); err != nil {
			return nil, err
		}
	} else {
		if err := w.emitBits(w.buf, totalBits); err != nil {
			return nil, err
		}
	}
	w.buf = nil
	return w.pageIndex, nil
}
