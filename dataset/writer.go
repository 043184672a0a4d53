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
	"context"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/conf"
	"github.com/n42blockchain/archive/internal/array"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/table"
	"github.com/n42blockchain/archive/tableid"
)

// tableOptions maps a dataset configuration onto the physical write
// options for one table write.
func tableOptions(cfg conf.DatasetConfig) table.Options {
	opts := table.Options{
		PageTargetBytes:    cfg.PageSizeFor(""),
		StatsPartitionSize: cfg.StatsPartitionSize,
		Compression:        cfg.PageCompression,
	}
	if len(cfg.ColumnPageSize) > 0 {
		opts.ColumnPageTargetBytes = make(map[string]int, len(cfg.ColumnPageSize))
		for name, sz := range cfg.ColumnPageSize {
			opts.ColumnPageTargetBytes[name] = int(sz.Bytes())
		}
	}
	if len(cfg.StatsColumns) > 0 {
		opts.StatsColumns = make(map[string]bool, len(cfg.StatsColumns))
		for _, name := range cfg.StatsColumns {
			opts.StatsColumns[name] = true
		}
	}
	return opts
}

// validateSortKeys checks that every configured sort key column exists in
// schema.
func validateSortKeys(cfg conf.DatasetConfig, schema array.Schema) error {
	for _, key := range cfg.SortKeyColumns {
		found := false
		for _, f := range schema.Fields {
			if f.Name == key {
				found = true
				break
			}
		}
		if !found {
			return archiveerr.Wrapf(archiveerr.ErrUnknownSortKey, "%q", key)
		}
	}
	return nil
}

// ChunkWriter accumulates the tables of one chunk. Each WriteTable call
// persists a complete table under a fresh TableId, marked dirty until
// Insert or ForkReplace commits the chunk; abandoning the writer just
// leaves dirty tables for the next GC sweep.
type ChunkWriter struct {
	store   *Store
	dataset tableid.DatasetId
	cfg     conf.DatasetConfig

	tables  map[string]tableid.TableId
	maxRows uint32
}

// NewChunkWriter starts a chunk write for dataset under cfg.
func (s *Store) NewChunkWriter(dataset tableid.DatasetId, cfg conf.DatasetConfig) *ChunkWriter {
	return &ChunkWriter{
		store:   s,
		dataset: dataset,
		cfg:     cfg,
		tables:  make(map[string]tableid.TableId),
	}
}

// WriteTable encodes and persists one table of the chunk. The dirty-set
// entry is written in the same transaction as the pages, so a crash
// anywhere before the chunk commit leaves nothing the sweep can't find.
func (w *ChunkWriter) WriteTable(ctx context.Context, name string, schema array.Schema, rows [][]table.Value) (tableid.TableId, error) {
	if err := validateSortKeys(w.cfg, schema); err != nil {
		return tableid.TableId{}, err
	}
	id := tableid.NewTableId()
	err := w.store.db.Transaction(ctx, false, func(tx kv.Tx) error {
		if err := markDirty(tx, id); err != nil {
			return err
		}
		tw, err := table.NewTableWriter(tx, id, schema, tableOptions(w.cfg))
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := tw.AppendRow(row); err != nil {
				return err
			}
		}
		_, err = tw.Finish()
		return err
	})
	if err != nil {
		return tableid.TableId{}, err
	}
	w.tables[name] = id
	if n := uint32(len(rows)); n > w.maxRows {
		w.maxRows = n
	}
	return id, nil
}

func (w *ChunkWriter) request(first, last uint64, lastHash, prevHash []byte) InsertRequest {
	return InsertRequest{
		FirstBlock:    first,
		LastBlock:     last,
		LastBlockHash: lastHash,
		PrevBlockHash: prevHash,
		MaxNumRows:    w.maxRows,
		Tables:        w.tables,
	}
}

// Insert commits the accumulated tables as a new chunk.
func (w *ChunkWriter) Insert(ctx context.Context, first, last uint64, lastHash, prevHash []byte) error {
	return w.store.InsertChunk(ctx, w.dataset, w.request(first, last, lastHash, prevHash))
}

// ForkReplace commits the accumulated tables as a fork replacement at
// block first.
func (w *ChunkWriter) ForkReplace(ctx context.Context, first, last uint64, lastHash, prevHash []byte) error {
	return w.store.ForkReplace(ctx, w.dataset, w.request(first, last, lastHash, prevHash))
}
