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

// Package tableid defines the opaque identifiers the archive catalog keys
// its state by: datasets, chunks, and tables.
package tableid

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"
)

// DatasetId identifies a dataset. It is a fixed 48-byte value; callers
// typically derive it by hashing a human-readable dataset name.
type DatasetId [48]byte

// NewDatasetId copies b into a DatasetId. Panics if len(b) != 48; callers
// that don't already have a 48-byte value should hash down to one first.
func NewDatasetId(b []byte) DatasetId {
	var id DatasetId
	if len(b) != len(id) {
		panic("tableid: DatasetId requires exactly 48 bytes")
	}
	copy(id[:], b)
	return id
}

func (d DatasetId) String() string { return hex.EncodeToString(d[:]) }

// DatasetKind distinguishes datasets with incompatible schema families.
type DatasetKind [16]byte

func NewDatasetKind(b []byte) DatasetKind {
	var k DatasetKind
	if len(b) != len(k) {
		panic("tableid: DatasetKind requires exactly 16 bytes")
	}
	copy(k[:], b)
	return k
}

func (k DatasetKind) String() string { return hex.EncodeToString(k[:]) }

// DatasetVersion is the optimistic-concurrency token carried by a
// DatasetLabel; it strictly increases with every committed mutation.
type DatasetVersion uint64

// ChunkId is the catalog key for a chunk: the owning dataset id followed by
// the chunk's last_block in big-endian, so that byte order equals numeric
// order on last_block within a dataset.
type ChunkId [56]byte

// NewChunkId builds a ChunkId from a dataset id and the chunk's last block.
func NewChunkId(dataset DatasetId, lastBlock uint64) ChunkId {
	var id ChunkId
	copy(id[:48], dataset[:])
	binary.BigEndian.PutUint64(id[48:], lastBlock)
	return id
}

func (c ChunkId) DatasetId() DatasetId {
	var d DatasetId
	copy(d[:], c[:48])
	return d
}

func (c ChunkId) LastBlock() uint64 { return binary.BigEndian.Uint64(c[48:]) }

func (c ChunkId) String() string {
	return c.DatasetId().String() + "/" + hex.EncodeToString(c[48:])
}

// TableId is a fresh, opaque identifier allocated at the start of every
// table write. It is the KV key prefix under which all of a table's
// physical state (schema, statistics, offsets, pages) lives. Writing a new
// version of a logical table always allocates a new TableId; the old one
// becomes eligible for garbage collection once no chunk references it.
type TableId [16]byte

// NewTableId allocates a fresh TableId.
func NewTableId() TableId {
	return TableId(uuid.New())
}

func (t TableId) String() string { return uuid.UUID(t).String() }

// Bytes returns the identifier's bytes, used as a KV key prefix.
func (t TableId) Bytes() []byte { return t[:] }
