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
	"bytes"
	"context"

	"github.com/sirupsen/logrus"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/archivelog"
	"github.com/n42blockchain/archive/catalog"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/tableid"
)

// dirtyMarker is the value stored under a dirty-table entry; the set is
// keyed by TableId and the value only needs to exist.
var dirtyMarker = []byte{1}

func dirtyKey(id tableid.TableId) []byte { return id.Bytes() }

func markDirty(tx kv.Tx, id tableid.TableId) error {
	return tx.Put(kv.CFDirtyTables, dirtyKey(id), dirtyMarker)
}

func clearDirty(tx kv.Tx, id tableid.TableId) error {
	return tx.Delete(kv.CFDirtyTables, dirtyKey(id))
}

// InsertRequest describes a chunk whose tables have already been written
// under their fresh TableId prefixes, ready to be made live in the
// catalog.
type InsertRequest struct {
	FirstBlock    uint64
	LastBlock     uint64
	LastBlockHash []byte

	// PrevBlockHash, when non-nil, asks the insert to verify chain
	// continuity against the preceding chunk's last block hash.
	PrevBlockHash []byte

	MaxNumRows uint32
	Tables     map[string]tableid.TableId
}

func (r InsertRequest) chunk() catalog.Chunk {
	return catalog.Chunk{
		FirstBlock:    r.FirstBlock,
		LastBlock:     r.LastBlock,
		LastBlockHash: append([]byte(nil), r.LastBlockHash...),
		MaxNumRows:    r.MaxNumRows,
		Tables:        r.Tables,
	}
}

// checkContinuity verifies the prev-hash handshake against the preceding
// chunk, when the caller supplied one and a predecessor exists.
func checkContinuity(pred *catalog.Chunk, req InsertRequest) error {
	if req.PrevBlockHash == nil || pred == nil {
		return nil
	}
	if pred.LastBlock+1 != req.FirstBlock {
		return archiveerr.Wrapf(archiveerr.ErrChunkNotContiguous, "predecessor ends at %d, new chunk starts at %d", pred.LastBlock, req.FirstBlock)
	}
	if !bytes.Equal(pred.LastBlockHash, req.PrevBlockHash) {
		return archiveerr.Wrapf(archiveerr.ErrChunkNotContiguous, "predecessor hash %x, caller expected %x", pred.LastBlockHash, req.PrevBlockHash)
	}
	return nil
}

// putChunk writes the chunk record and clears its tables from the dirty
// set, the two halves of making a chunk live.
func putChunk(tx kv.Tx, dataset tableid.DatasetId, c catalog.Chunk) error {
	key := catalog.ChunkKey(tableid.NewChunkId(dataset, c.LastBlock))
	if err := tx.Put(kv.CFChunks, key, catalog.EncodeChunk(c)); err != nil {
		return err
	}
	for _, id := range c.Tables {
		if err := clearDirty(tx, id); err != nil {
			return err
		}
	}
	return nil
}

// dropChunk removes the chunk record and moves its tables into the dirty
// set for the next GC sweep.
func dropChunk(tx kv.Tx, dataset tableid.DatasetId, c catalog.Chunk) error {
	key := catalog.ChunkKey(tableid.NewChunkId(dataset, c.LastBlock))
	if err := tx.Delete(kv.CFChunks, key); err != nil {
		return err
	}
	for _, id := range c.Tables {
		if err := markDirty(tx, id); err != nil {
			return err
		}
	}
	return nil
}

// InsertChunk commits a new chunk, requiring it to be disjoint from every
// existing chunk and, when a prev hash was supplied, contiguous with its
// predecessor. On success the chunk's tables leave the dirty set and the
// label version is bumped.
func (s *Store) InsertChunk(ctx context.Context, dataset tableid.DatasetId, req InsertRequest) error {
	if req.FirstBlock > req.LastBlock {
		return archiveerr.Wrapf(archiveerr.ErrInvalidBlockRange, "[%d, %d]", req.FirstBlock, req.LastBlock)
	}
	err := s.updateDataset(ctx, dataset, func(tx kv.Tx, label *catalog.DatasetLabel) error {
		pred, _, overlapping, err := neighbors(tx, dataset, req.FirstBlock, req.LastBlock)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return archiveerr.Wrapf(archiveerr.ErrChunkOverlap, "[%d, %d] overlaps [%d, %d]", req.FirstBlock, req.LastBlock, overlapping[0].FirstBlock, overlapping[0].LastBlock)
		}
		if err := checkContinuity(pred, req); err != nil {
			return err
		}
		return putChunk(tx, dataset, req.chunk())
	})
	if err == nil {
		archivelog.With(logrus.Fields{
			"dataset": dataset.String()[:12],
			"first":   req.FirstBlock,
			"last":    req.LastBlock,
		}).Debug("chunk inserted")
	}
	return err
}

// ForkReplace commits a new chunk at a fork point: every existing chunk
// starting at or above the new chunk's first block is dropped (its tables
// move to the dirty set) in the same transaction that makes the new
// chunk live. A chunk that merely straddles the fork point from below
// still counts as overlap and is rejected.
func (s *Store) ForkReplace(ctx context.Context, dataset tableid.DatasetId, req InsertRequest) error {
	if req.FirstBlock > req.LastBlock {
		return archiveerr.Wrapf(archiveerr.ErrInvalidBlockRange, "[%d, %d]", req.FirstBlock, req.LastBlock)
	}
	err := s.updateDataset(ctx, dataset, func(tx kv.Tx, label *catalog.DatasetLabel) error {
		all, err := listChunks(tx, dataset, 0, maxBlock)
		if err != nil {
			return err
		}
		var pred *catalog.Chunk
		for i := range all {
			c := all[i]
			if c.FirstBlock >= req.FirstBlock {
				if err := dropChunk(tx, dataset, c); err != nil {
					return err
				}
				continue
			}
			if c.LastBlock >= req.FirstBlock {
				return archiveerr.Wrapf(archiveerr.ErrChunkOverlap, "[%d, %d] straddles fork point %d", c.FirstBlock, c.LastBlock, req.FirstBlock)
			}
			pred = &all[i]
		}
		if err := checkContinuity(pred, req); err != nil {
			return err
		}
		return putChunk(tx, dataset, req.chunk())
	})
	if err == nil {
		archivelog.With(logrus.Fields{
			"dataset": dataset.String()[:12],
			"first":   req.FirstBlock,
			"last":    req.LastBlock,
		}).Info("fork replaced catalog suffix")
	}
	return err
}

// DeleteChunk removes the chunk keyed by lastBlock, moving its tables to
// the dirty set.
func (s *Store) DeleteChunk(ctx context.Context, dataset tableid.DatasetId, lastBlock uint64) error {
	return s.updateDataset(ctx, dataset, func(tx kv.Tx, label *catalog.DatasetLabel) error {
		key := catalog.ChunkKey(tableid.NewChunkId(dataset, lastBlock))
		blob, err := tx.Get(kv.CFChunks, key)
		if err != nil {
			return err
		}
		if blob == nil {
			return archiveerr.Wrapf(archiveerr.ErrChunkNotFound, "no chunk ends at block %d", lastBlock)
		}
		c, err := decodeChunkAt(dataset, key, blob)
		if err != nil {
			return err
		}
		return dropChunk(tx, dataset, c)
	})
}
