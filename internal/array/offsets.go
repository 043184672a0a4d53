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

import "encoding/binary"

// OffsetsWriter writes the i32 offsets buffer backing Binary/Utf8/List
// columns: one offset per element, the first (0) written lazily on the
// first append.
type OffsetsWriter struct {
	nw         *NativeWriter
	lastOffset int32
	wroteFirst bool
}

// NewOffsetsWriter creates a writer targeting targetBytes per page.
func NewOffsetsWriter(targetBytes int, onPage func([]byte) error) *OffsetsWriter {
	return &OffsetsWriter{nw: NewNativeWriter(4, targetBytes, onPage)}
}

func encodeI32(v int32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

func (w *OffsetsWriter) ensureFirst() error {
	if w.wroteFirst {
		return nil
	}
	w.wroteFirst = true
	return w.nw.WriteRaw(encodeI32(w.lastOffset))
}

// WriteLen appends one more element whose encoded byte length is length.
func (w *OffsetsWriter) WriteLen(length int) error {
	if err := w.ensureFirst(); err != nil {
		return err
	}
	w.lastOffset += int32(length)
	return w.nw.WriteRaw(encodeI32(w.lastOffset))
}

// Finish flushes residue and returns the completed page-offset array.
func (w *OffsetsWriter) Finish() ([]uint32, error) {
	if err := w.ensureFirst(); err != nil {
		return nil, err
	}
	return w.nw.Finish()
}
