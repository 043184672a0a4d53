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
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/archivelog"
	"github.com/n42blockchain/archive/catalog"
	"github.com/n42blockchain/archive/conf"
	"github.com/n42blockchain/archive/internal/array"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/rowrange"
	"github.com/n42blockchain/archive/table"
	"github.com/n42blockchain/archive/tableid"
)

// castBatchRows is the row batch size used when streaming a table
// through the (possibly casting) reader into the merged writer.
const castBatchRows = 1000

// defaultMaxCompactedRows caps a run's combined per-table row count when
// the dataset config does not.
const defaultMaxCompactedRows = 1 << 22

// errCompactionStale aborts the commit phase when the chunk set changed
// between the prepare snapshot and the commit transaction. It never
// escapes Compact.
var errCompactionStale = errors.New("archive: compaction inputs changed")

// PlanCompaction selects the next run to merge: the longest run of
// block-contiguous chunks anywhere in the dataset (the earliest one on
// ties) whose combined row count stays within the configured cap. It
// returns nil when no run of at least two chunks exists.
func (s *Store) PlanCompaction(dataset tableid.DatasetId, cfg conf.DatasetConfig) ([]catalog.Chunk, error) {
	maxRows := cfg.MaxCompactedRows
	if maxRows == 0 {
		maxRows = defaultMaxCompactedRows
	}
	snap, err := s.db.Snapshot()
	if err != nil {
		return nil, err
	}
	all, err := listChunks(snap, dataset, 0, maxBlock)
	if err != nil {
		return nil, err
	}
	var best []catalog.Chunk
	for start := 0; start < len(all); start++ {
		run := []catalog.Chunk{all[start]}
		total := uint64(all[start].MaxNumRows)
		for next := start + 1; next < len(all); next++ {
			if all[next-1].LastBlock+1 != all[next].FirstBlock {
				break
			}
			if total+uint64(all[next].MaxNumRows) > maxRows {
				break
			}
			total += uint64(all[next].MaxNumRows)
			run = append(run, all[next])
		}
		if len(run) > len(best) {
			best = run
		}
	}
	if len(best) < 2 {
		return nil, nil
	}
	return best, nil
}

// mergedTableNames verifies every chunk of the run carries the same table
// set and returns the names sorted.
func mergedTableNames(run []catalog.Chunk) ([]string, error) {
	names := make([]string, 0, len(run[0].Tables))
	for name := range run[0].Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, c := range run[1:] {
		if len(c.Tables) != len(names) {
			return nil, archiveerr.Wrapf(archiveerr.ErrSchemaMismatch, "chunk [%d, %d] has %d tables, expected %d", c.FirstBlock, c.LastBlock, len(c.Tables), len(names))
		}
		for _, name := range names {
			if _, ok := c.Tables[name]; !ok {
				return nil, archiveerr.Wrapf(archiveerr.ErrSchemaMismatch, "chunk [%d, %d] is missing table %q", c.FirstBlock, c.LastBlock, name)
			}
		}
	}
	return names, nil
}

// compactTable streams one logical table across the run's chunks into a
// fresh table under the merged schema, casting narrower input columns up
// in fixed-size row batches. It returns the new table's id and row count.
func (s *Store) compactTable(ctx context.Context, snap kv.Snapshot, run []catalog.Chunk, name string, cfg conf.DatasetConfig) (tableid.TableId, uint32, error) {
	readers := make([]*table.TableReader, len(run))
	schemas := make([]array.Schema, len(run))
	for i, c := range run {
		tr, err := table.OpenTableReader(snap, c.Tables[name])
		if err != nil {
			return tableid.TableId{}, 0, err
		}
		readers[i] = tr
		schemas[i] = tr.Schema()
	}
	merged, err := MergeSchemas(schemas)
	if err != nil {
		return tableid.TableId{}, 0, err
	}
	columns := make([]string, len(merged.Fields))
	for i, f := range merged.Fields {
		columns[i] = f.Name
	}

	id := tableid.NewTableId()
	var rows uint32
	err = s.db.Transaction(ctx, false, func(tx kv.Tx) error {
		rows = 0
		if err := markDirty(tx, id); err != nil {
			return err
		}
		tw, err := table.NewTableWriter(tx, id, merged, tableOptions(cfg))
		if err != nil {
			return err
		}
		for i, tr := range readers {
			numRows, err := tr.NumRows()
			if err != nil {
				return err
			}
			cast := needsSchemaCast(schemas[i], merged)
			for start := uint32(0); start < numRows; start += castBatchRows {
				end := start + castBatchRows
				if end > numRows {
					end = numRows
				}
				batch := rowrange.FromRanges(rowrange.Range{Start: start, End: end})
				res, err := tr.ReadColumns(columns, batch, false)
				if err != nil {
					return err
				}
				for _, row := range res.Rows {
					if cast {
						row = castRow(row, res.Schema, merged)
					}
					if err := tw.AppendRow(row); err != nil {
						return err
					}
				}
			}
			rows += numRows
		}
		_, err = tw.Finish()
		return err
	})
	if err != nil {
		return tableid.TableId{}, 0, err
	}
	return id, rows, nil
}

func needsSchemaCast(from, to array.Schema) bool {
	for i := range from.Fields {
		if needsCast(from.Fields[i].Type, to.Fields[i].Type) {
			return true
		}
	}
	return false
}

// Compact merges an adjacent run of chunks into one. The merge is
// prepared against a snapshot, outside any transaction; the commit phase
// re-reads the run and aborts cleanly (returning false, nil) if a
// concurrent mutation touched it — the prepared tables are left dirty
// for the next GC sweep, and the catalog is untouched.
func (s *Store) Compact(ctx context.Context, dataset tableid.DatasetId, cfg conf.DatasetConfig, run []catalog.Chunk) (bool, error) {
	if len(run) < 2 {
		return false, nil
	}
	for i := range run[1:] {
		if run[i].LastBlock+1 != run[i+1].FirstBlock {
			return false, archiveerr.Wrapf(archiveerr.ErrChunkNotContiguous, "run gap between %d and %d", run[i].LastBlock, run[i+1].FirstBlock)
		}
	}
	names, err := mergedTableNames(run)
	if err != nil {
		return false, err
	}

	snap, err := s.snapshot()
	if err != nil {
		return false, err
	}
	newTables := make(map[string]tableid.TableId, len(names))
	var maxRows uint32
	for _, name := range names {
		id, rows, err := s.compactTable(ctx, snap, run, name, cfg)
		if err != nil {
			return false, err
		}
		newTables[name] = id
		if rows > maxRows {
			maxRows = rows
		}
	}

	last := run[len(run)-1]
	merged := catalog.Chunk{
		FirstBlock:    run[0].FirstBlock,
		LastBlock:     last.LastBlock,
		LastBlockHash: append([]byte(nil), last.LastBlockHash...),
		MaxNumRows:    maxRows,
		Tables:        newTables,
	}

	err = s.updateDataset(ctx, dataset, func(tx kv.Tx, label *catalog.DatasetLabel) error {
		current, err := listChunks(tx, dataset, run[0].FirstBlock, last.LastBlock)
		if err != nil {
			return err
		}
		if len(current) != len(run) {
			return errCompactionStale
		}
		for i := range run {
			if !bytes.Equal(catalog.EncodeChunk(current[i]), catalog.EncodeChunk(run[i])) {
				return errCompactionStale
			}
		}
		for _, c := range run {
			if err := dropChunk(tx, dataset, c); err != nil {
				return err
			}
		}
		return putChunk(tx, dataset, merged)
	})
	if errors.Is(err, errCompactionStale) {
		archivelog.With(logrus.Fields{
			"dataset": dataset.String()[:12],
			"first":   merged.FirstBlock,
			"last":    merged.LastBlock,
		}).Info("compaction discarded, inputs changed")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	archivelog.With(logrus.Fields{
		"dataset": dataset.String()[:12],
		"first":   merged.FirstBlock,
		"last":    merged.LastBlock,
		"chunks":  len(run),
	}).Info("compacted chunk run")
	return true, nil
}

// CompactOnce plans and runs a single compaction for dataset. It returns
// false when there is nothing to merge or the merge was discarded.
func (s *Store) CompactOnce(ctx context.Context, dataset tableid.DatasetId, cfg conf.DatasetConfig) (bool, error) {
	run, err := s.PlanCompaction(dataset, cfg)
	if err != nil || run == nil {
		return false, err
	}
	return s.Compact(ctx, dataset, cfg, run)
}
