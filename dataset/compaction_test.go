// Copyright 2022-2026 The N42 Authors
// This file is part of the N42 library.

package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n42blockchain/archive/internal/array"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/pagecache"
	"github.com/n42blockchain/archive/table"
	"github.com/n42blockchain/archive/tableid"
)

func queryAll(t *testing.T, s *Store, ds tableid.DatasetId) *QueryResult {
	t.Helper()
	res, err := s.QueryTable(context.Background(), ds, "blocks", 0, maxBlock, ReadOptions{})
	require.NoError(t, err)
	return res
}

func TestCompactNarrowIntWidening(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ds := DatasetIdFromName("solana")
	require.NoError(t, s.CreateDataset(ctx, ds, KindFromString("solana")))
	cfg := testCfg()

	// tx_index is u16 in chunk 1, u32 in chunk 2.
	insertChunk(t, s, ds, cfg, 0, 99, []byte("aaaa"), nil, array.Uint16(), 2)
	insertChunk(t, s, ds, cfg, 100, 199, []byte("bbbb"), []byte("aaaa"), array.Uint32(), 4)

	before := queryAll(t, s, ds)
	require.Len(t, before.Rows, 200)

	run, err := s.PlanCompaction(ds, cfg)
	require.NoError(t, err)
	require.Len(t, run, 2)
	committed, err := s.Compact(ctx, ds, cfg, run)
	require.NoError(t, err)
	require.True(t, committed)

	chunks, err := s.ListChunks(ds, 0, maxBlock)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, uint64(0), chunks[0].FirstBlock)
	require.Equal(t, uint64(199), chunks[0].LastBlock)
	require.Equal(t, []byte("bbbb"), chunks[0].LastBlockHash)

	// The merged table's tx_index widened to u32 and its statistics were
	// rebuilt over the widened values.
	snap, err := s.DB().Snapshot()
	require.NoError(t, err)
	tr, err := table.OpenTableReader(snap, chunks[0].Tables["blocks"])
	require.NoError(t, err)
	require.Equal(t, array.KindUint32, tr.Schema().Fields[1].Type.Kind)
	cs, ok, err := tr.ColumnStats(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, cs.Entries)
	require.Equal(t, u32le(0), cs.Entries[0].Min)

	// Values decode identically, at the common width. The query layer
	// already widens the pre-compaction mixed-width chunks to u32, so
	// the two results compare directly.
	require.Equal(t, array.KindUint32, before.Schema.Fields[1].Type.Kind)
	after := queryAll(t, s, ds)
	require.Len(t, after.Rows, 200)
	require.Equal(t, array.KindUint32, after.Schema.Fields[1].Type.Kind)
	for i, row := range after.Rows {
		require.Equal(t, before.Rows[i][0].Raw, row[0].Raw, "block_number row %d", i)
		require.Equal(t, before.Rows[i][1].Raw, row[1].Raw, "tx_index row %d", i)
	}
}

func TestCompactSingletonRefused(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ds := DatasetIdFromName("solana")
	require.NoError(t, s.CreateDataset(ctx, ds, KindFromString("solana")))
	cfg := testCfg()
	insertChunk(t, s, ds, cfg, 0, 99, []byte("aaaa"), nil, array.Uint16(), 2)

	run, err := s.PlanCompaction(ds, cfg)
	require.NoError(t, err)
	require.Nil(t, run)
}

func TestCompactRoundTripEqualsConcatenation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ds := DatasetIdFromName("solana")
	require.NoError(t, s.CreateDataset(ctx, ds, KindFromString("solana")))
	cfg := testCfg()
	insertChunk(t, s, ds, cfg, 0, 49, []byte("aaaa"), nil, array.Uint64(), 8)
	insertChunk(t, s, ds, cfg, 50, 99, []byte("bbbb"), []byte("aaaa"), array.Uint64(), 8)

	before := queryAll(t, s, ds)
	ok, err := s.CompactOnce(ctx, ds, cfg)
	require.NoError(t, err)
	require.True(t, ok)
	after := queryAll(t, s, ds)

	require.Equal(t, len(before.Rows), len(after.Rows))
	for i := range before.Rows {
		require.Equal(t, before.Rows[i], after.Rows[i], "row %d", i)
	}
}

func TestCompactDiscardsWhenInputsChange(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ds := DatasetIdFromName("solana")
	require.NoError(t, s.CreateDataset(ctx, ds, KindFromString("solana")))
	cfg := testCfg()
	insertChunk(t, s, ds, cfg, 0, 49, []byte("aaaa"), nil, array.Uint16(), 2)
	insertChunk(t, s, ds, cfg, 50, 99, []byte("bbbb"), []byte("aaaa"), array.Uint16(), 2)

	run, err := s.PlanCompaction(ds, cfg)
	require.NoError(t, err)
	require.Len(t, run, 2)

	// A concurrent fork invalidates the run's second member between
	// planning and commit.
	w := s.NewChunkWriter(ds, cfg)
	_, err = w.WriteTable(ctx, "blocks", blocksSchema(array.Uint16()), blockRows(50, 30, 2))
	require.NoError(t, err)
	require.NoError(t, w.ForkReplace(ctx, 50, 79, []byte("cccc"), []byte("aaaa")))

	committed, err := s.Compact(ctx, ds, cfg, run)
	require.NoError(t, err)
	require.False(t, committed)

	// The catalog reflects the fork, not the discarded merge.
	chunks, err := s.ListChunks(ds, 0, maxBlock)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, uint64(79), chunks[1].LastBlock)

	// The prepared tables are dirty and the sweep removes them along
	// with the fork's leftovers.
	_, err = s.SweepDirtyTables(ctx)
	require.NoError(t, err)
	for _, c := range chunks {
		require.NotZero(t, countPrefix(t, s, kv.CFTables, c.Tables["blocks"].Bytes()))
	}
	require.Equal(t, 0, countPrefix(t, s, kv.CFDirtyTables, nil))
}

func TestCompactSchemaMismatchRejected(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ds := DatasetIdFromName("solana")
	require.NoError(t, s.CreateDataset(ctx, ds, KindFromString("solana")))
	cfg := testCfg()
	insertChunk(t, s, ds, cfg, 0, 49, []byte("aaaa"), nil, array.Uint16(), 2)

	// Second chunk's table renames a column.
	w := s.NewChunkWriter(ds, cfg)
	schema := array.Schema{Fields: []array.Field{
		{Name: "block_number", Type: array.Uint64()},
		{Name: "txn_index", Type: array.Uint16()},
		{Name: "data", Type: array.Utf8(), Nullable: true},
	}}
	_, err := w.WriteTable(ctx, "blocks", schema, blockRows(50, 50, 2))
	require.NoError(t, err)
	require.NoError(t, w.Insert(ctx, 50, 99, []byte("bbbb"), []byte("aaaa")))

	run, err := s.PlanCompaction(ds, cfg)
	require.NoError(t, err)
	require.Len(t, run, 2)
	_, err = s.Compact(ctx, ds, cfg, run)
	require.Error(t, err)
}

// A compacted table read through a shared page cache returns the same
// bytes as one read straight off the KV.
func TestCompactedReadThroughPageCache(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ds := DatasetIdFromName("solana")
	require.NoError(t, s.CreateDataset(ctx, ds, KindFromString("solana")))
	cfg := testCfg()
	insertChunk(t, s, ds, cfg, 0, 49, []byte("aaaa"), nil, array.Uint64(), 8)
	insertChunk(t, s, ds, cfg, 50, 99, []byte("bbbb"), []byte("aaaa"), array.Uint64(), 8)
	ok, err := s.CompactOnce(ctx, ds, cfg)
	require.NoError(t, err)
	require.True(t, ok)

	chunks, err := s.ListChunks(ds, 0, maxBlock)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	id := chunks[0].Tables["blocks"]

	cache, err := pagecache.New(1 << 20)
	require.NoError(t, err)
	snap, err := s.DB().Snapshot()
	require.NoError(t, err)

	plain, err := table.OpenTableReader(snap, id)
	require.NoError(t, err)
	cold, err := plain.ReadColumns([]string{"block_number"}, nil, false)
	require.NoError(t, err)

	cached, err := table.OpenTableReader(pagecache.Wrap(snap, cache), id)
	require.NoError(t, err)
	warm, err := cached.ReadColumns([]string{"block_number"}, nil, false)
	require.NoError(t, err)
	require.Equal(t, cold.Rows, warm.Rows)
	require.NotZero(t, cache.Len())
}
