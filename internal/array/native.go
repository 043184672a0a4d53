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

import "fmt"

// NativeWriter stores raw little-endian values at a fixed element width
// (1 for bytes/FixedSizeBinary, up to 8 for i64/f64), applying the same
// 1.5x page-flush discipline as the other buffer writers.
type NativeWriter struct {
	width  int
	target int
	buf    []byte

	pageIndex []uint32
	cum       uint32

	onPage func([]byte) error
}

// NewNativeWriter creates a writer for elements of the given byte width,
// targeting roughly targetBytes per page (rounded down to a multiple of
// width).
func NewNativeWriter(width, targetBytes int, onPage func([]byte) error) *NativeWriter {
	target := targetBytes - targetBytes%width
	if target == 0 {
		target = width
	}
	return &NativeWriter{width: width, target: target, pageIndex: []uint32{0}, onPage: onPage}
}

// WriteRaw appends raw bytes; len(data) must be a multiple of the writer's
// element width.
func (w *NativeWriter) WriteRaw(data []byte) error {
	if len(data)%w.width != 0 {
		return fmt.Errorf("array: native writer received %d bytes, not a multiple of width %d", len(data), w.width)
	}
	w.buf = append(w.buf, data...)
	return w.maybeFlush()
}

func (w *NativeWriter) maybeFlush() error {
	for len(w.buf) > w.target+w.target/2 {
		if err := w.emit(w.buf[:w.target]); err != nil {
			return err
		}
		w.buf = append([]byte(nil), w.buf[w.target:]...)
	}
	return nil
}

func (w *NativeWriter) emit(page []byte) error {
	if err := w.onPage(append([]byte(nil), page...)); err != nil {
		return err
	}
	w.cum += uint32(len(page) / w.width)
	w.pageIndex = append(w.pageIndex, w.cum)
	return nil
}

// Finish flushes any residue — splitting it in half if it exceeds one
// target-size page — and returns the completed page-offset array. It is a
// fatal error if the residue is not a whole number of elements, which
// cannot happen through WriteRaw but guards misuse.
func (w *NativeWriter) Finish() ([]uint32, error) {
	if len(w.buf) == 0 {
		return w.pageIndex, nil
	}
	if len(w.buf)%w.width != 0 {
		return nil, fmt.Errorf("array: native writer finished with a partial element (%d bytes, width %d)", len(w.buf), w.width)
	}
	if len(w.buf) > w.target {
		half := (len(w.buf) / 2 / w.width) * w.width
		if half == 0 {
			half = w.width
		}
		if err := w.emit(w.buf[:half]); err != nil {
			return nil, err
		}
		if err := w.emit(w.buf[half:]); err != nil {
			return nil, err
		}
	} else {
		if err := w.emit(w.buf); err != nil {
			return nil, err
		}
	}
	w.buf = nil
	return w.pageIndex, nil
}
