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

package dataset

import (
	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/catalog"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/tableid"
)

const maxBlock = ^uint64(0)

// decodeChunkAt decodes one catalog entry, asserting the invariants the
// key shape guarantees: the payload's last_block must equal the key's,
// and the range must be well-formed. Either failing is catalog
// corruption, which is fatal.
func decodeChunkAt(dataset tableid.DatasetId, key, value []byte) (catalog.Chunk, error) {
	var id tableid.ChunkId
	if len(key) != len(id) {
		return catalog.Chunk{}, archiveerr.Wrapf(archiveerr.ErrCorruptKey, "chunk key has %d bytes", len(key))
	}
	copy(id[:], key)
	if id.DatasetId() != dataset {
		return catalog.Chunk{}, archiveerr.Wrap(archiveerr.ErrCorruptKey, "chunk key belongs to another dataset")
	}
	c, err := catalog.DecodeChunk(value)
	if err != nil {
		return catalog.Chunk{}, err
	}
	if c.LastBlock != id.LastBlock() {
		return catalog.Chunk{}, archiveerr.Wrapf(archiveerr.ErrCorruptKey, "chunk key says last block %d, payload says %d", id.LastBlock(), c.LastBlock)
	}
	if c.FirstBlock > c.LastBlock {
		return catalog.Chunk{}, archiveerr.Wrapf(archiveerr.ErrCorruptKey, "chunk range [%d, %d] inverted", c.FirstBlock, c.LastBlock)
	}
	return c, nil
}

// listChunks returns, in block order, every chunk of dataset whose block
// range intersects [fromBlock, toBlock]. The key shape (dataset id then
// last_block big-endian) makes this a single forward prefix walk: the
// first chunk with last_block >= fromBlock is the first candidate, and
// the walk stops past toBlock.
func listChunks(snap kv.Snapshot, dataset tableid.DatasetId, fromBlock, toBlock uint64) ([]catalog.Chunk, error) {
	cur, err := snap.Cursor(kv.CFChunks, dataset[:])
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var out []catalog.Chunk
	for {
		key, value, ok, err := cur.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		var id tableid.ChunkId
		if len(key) != len(id) {
			return nil, archiveerr.Wrapf(archiveerr.ErrCorruptKey, "chunk key has %d bytes", len(key))
		}
		copy(id[:], key)
		if id.LastBlock() < fromBlock {
			continue
		}
		c, err := decodeChunkAt(dataset, key, value)
		if err != nil {
			return nil, err
		}
		if c.FirstBlock > toBlock {
			return out, nil
		}
		out = append(out, c)
	}
}

// lastChunk returns the dataset's highest chunk, walking the prefix in
// reverse; ok is false for an empty dataset.
func lastChunk(snap kv.Snapshot, dataset tableid.DatasetId) (catalog.Chunk, bool, error) {
	cur, err := snap.ReverseCursor(kv.CFChunks, dataset[:])
	if err != nil {
		return catalog.Chunk{}, false, err
	}
	defer cur.Close()
	key, value, ok, err := cur.Next()
	if err != nil || !ok {
		return catalog.Chunk{}, false, err
	}
	c, err := decodeChunkAt(dataset, key, value)
	if err != nil {
		return catalog.Chunk{}, false, err
	}
	return c, true, nil
}

// neighbors returns the nearest chunk entirely below first ("pred") and
// the nearest chunk entirely above last ("next"), plus every chunk whose
// range overlaps [first, last].
func neighbors(snap kv.Snapshot, dataset tableid.DatasetId, first, last uint64) (pred, next *catalog.Chunk, overlapping []catalog.Chunk, err error) {
	all, err := listChunks(snap, dataset, 0, maxBlock)
	if err != nil {
		return nil, nil, nil, err
	}
	for i := range all {
		c := all[i]
		switch {
		case c.LastBlock < first:
			pred = &all[i]
		case c.FirstBlock > last:
			if next == nil {
				next = &all[i]
			}
		default:
			overlapping = append(overlapping, c)
		}
	}
	return pred, next, overlapping, nil
}

// ListChunks returns, in block order, every committed chunk of dataset
// whose block range intersects [fromBlock, toBlock].
func (s *Store) ListChunks(dataset tableid.DatasetId, fromBlock, toBlock uint64) ([]catalog.Chunk, error) {
	snap, err := s.db.Snapshot()
	if err != nil {
		return nil, err
	}
	return listChunks(snap, dataset, fromBlock, toBlock)
}
