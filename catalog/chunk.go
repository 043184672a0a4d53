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

// Package catalog implements the chunk and dataset-label records the
// archive core indexes its committed state by: an immutable Chunk per
// contiguous, already-encoded block range, keyed so that forward/reverse
// scans over a dataset's chunks are plain prefix cursors, plus the
// optimistic-concurrency label every dataset-mutating transaction
// contends on.
package catalog

import (
	"encoding/binary"
	"sort"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/tableid"
)

// Chunk is an immutable record describing a contiguous block range that
// has been fully encoded and written: which tables hold its columns, how
// many rows the largest of them has (for compaction scheduling), and the
// hash terminating the range (for fork continuity checks).
type Chunk struct {
	FirstBlock    uint64
	LastBlock     uint64
	LastBlockHash []byte
	MaxNumRows    uint32
	Tables        map[string]tableid.TableId
}

// ChunkKey returns id's bytes, the literal kv.CFChunks key: dataset id
// followed by last_block big-endian, so byte order equals numeric order on
// last_block within a dataset.
func ChunkKey(id tableid.ChunkId) []byte {
	out := make([]byte, len(id))
	copy(out, id[:])
	return out
}

// EncodeChunk serializes c for storage under ChunkKey. Table names are
// emitted sorted so the record is deterministic for a given Chunk.
func EncodeChunk(c Chunk) []byte {
	var out []byte
	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], c.FirstBlock)
	out = append(out, tmp8[:]...)
	binary.LittleEndian.PutUint64(tmp8[:], c.LastBlock)
	out = append(out, tmp8[:]...)
	out = appendU16Bytes(out, c.LastBlockHash)
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], c.MaxNumRows)
	out = append(out, tmp4[:]...)

	names := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var tmp2 [2]byte
	binary.LittleEndian.PutUint16(tmp2[:], uint16(len(names)))
	out = append(out, tmp2[:]...)
	for _, name := range names {
		out = appendU16Bytes(out, []byte(name))
		id := c.Tables[name]
		out = append(out, id.Bytes()...)
	}
	return out
}

func appendU16Bytes(out, v []byte) []byte {
	var tmp2 [2]byte
	binary.LittleEndian.PutUint16(tmp2[:], uint16(len(v)))
	out = append(out, tmp2[:]...)
	return append(out, v...)
}

// DecodeChunk is the inverse of EncodeChunk. Any length mismatch is treated
// as catalog corruption, which is always fatal; a chunk record that fails
// to deserialize is never recoverable by the reader.
func DecodeChunk(blob []byte) (Chunk, error) {
	d := &chunkDecoder{buf: blob}
	var c Chunk
	var err error
	if c.FirstBlock, err = d.u64(); err != nil {
		return Chunk{}, err
	}
	if c.LastBlock, err = d.u64(); err != nil {
		return Chunk{}, err
	}
	hash, err := d.bytesU16()
	if err != nil {
		return Chunk{}, err
	}
	c.LastBlockHash = append([]byte(nil), hash...)
	if c.MaxNumRows, err = d.u32(); err != nil {
		return Chunk{}, err
	}
	n, err := d.u16()
	if err != nil {
		return Chunk{}, err
	}
	c.Tables = make(map[string]tableid.TableId, n)
	for i := uint16(0); i < n; i++ {
		name, err := d.bytesU16()
		if err != nil {
			return Chunk{}, err
		}
		idBytes, err := d.bytes(16)
		if err != nil {
			return Chunk{}, err
		}
		var id tableid.TableId
		copy(id[:], idBytes)
		c.Tables[string(name)] = id
	}
	if d.pos != len(d.buf) {
		return Chunk{}, archiveerr.Wrap(archiveerr.ErrCorruptKey, "trailing bytes after chunk record")
	}
	return c, nil
}

type chunkDecoder struct {
	buf []byte
	pos int
}

func (d *chunkDecoder) u64() (uint64, error) {
	b, err := d.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *chunkDecoder) u32() (uint32, error) {
	b, err := d.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *chunkDecoder) u16() (uint16, error) {
	b, err := d.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *chunkDecoder) bytes(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, archiveerr.Wrap(archiveerr.ErrCorruptKey, "truncated chunk record")
	}
	v := d.buf[d.pos : d.pos+n]
	d.pos += n
	return v, nil
}

func (d *chunkDecoder) bytesU16() ([]byte, error) {
	n, err := d.u16()
	if err != nil {
		return nil, err
	}
	return d.bytes(int(n))
}
