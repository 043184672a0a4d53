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

// Package table implements the physical table writer/reader: a schema
// plus an ordered set of columns, each column decomposed into the
// physical buffers internal/array knows how to encode, all stored under
// one TableId prefix with a 1-byte discriminator so that key order is
// stable (schema, then per-column statistics, then per-buffer offsets
// and pages).
package table

import (
	"encoding/binary"

	"github.com/n42blockchain/archive/tableid"
)

const (
	discSchema    byte = 0
	discStatistic byte = 1
	discOffsets   byte = 2
	discPage      byte = 3
)

func keyPrefix(id tableid.TableId, disc byte) []byte {
	out := make([]byte, 0, 17)
	out = append(out, id.Bytes()...)
	return append(out, disc)
}

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

// SchemaKey is the key under which a table's serialized schema is stored.
func SchemaKey(id tableid.TableId) []byte { return keyPrefix(id, discSchema) }

// StatisticKey is the key under which column col's serialized stats blob
// is stored.
func StatisticKey(id tableid.TableId, col uint16) []byte {
	return appendU16(keyPrefix(id, discStatistic), col)
}

// OffsetsKey is the key under which buffer buf of column col's
// page-offset array is stored.
func OffsetsKey(id tableid.TableId, col, buf uint16) []byte {
	return appendU16(appendU16(keyPrefix(id, discOffsets), col), buf)
}

// PageKey is the key under which page idx of buffer buf of column col is
// stored.
func PageKey(id tableid.TableId, col, buf uint16, idx uint32) []byte {
	return appendU32(appendU16(appendU16(keyPrefix(id, discPage), col), buf), idx)
}
