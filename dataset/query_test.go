// Copyright 2022-2026 The N42 Authors
// This file is part of the N42 library.

package dataset

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/conf"
	"github.com/n42blockchain/archive/internal/array"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/kv/memkv"
	"github.com/n42blockchain/archive/stats"
)

// countingDB wraps the in-memory KV and counts page gets, so tests can
// prove statistics actually prune physical reads.
type countingDB struct {
	kv.DB
	pageGets int64
}

func (d *countingDB) Snapshot() (kv.Snapshot, error) {
	snap, err := d.DB.Snapshot()
	if err != nil {
		return nil, err
	}
	return &countingSnapshot{Snapshot: snap, db: d}, nil
}

type countingSnapshot struct {
	kv.Snapshot
	db *countingDB
}

// Page keys are the table id (16 bytes), the page discriminator, column,
// buffer, and page index.
func isPageKey(key []byte) bool {
	return len(key) == 16+1+2+2+4 && key[16] == 3
}

func (s *countingSnapshot) Get(cf kv.CF, key []byte) ([]byte, error) {
	if cf == kv.CFTables && isPageKey(key) {
		atomic.AddInt64(&s.db.pageGets, 1)
	}
	return s.Snapshot.Get(cf, key)
}

func TestPredicatePruningFetchesFewPages(t *testing.T) {
	counting := &countingDB{DB: memkv.New()}
	s, err := NewStore(counting, conf.DatabaseConfig{})
	require.NoError(t, err)
	ctx := context.Background()
	ds := DatasetIdFromName("solana")
	require.NoError(t, s.CreateDataset(ctx, ds, KindFromString("solana")))

	cfg := testCfg()
	cfg.PageSize = 256
	cfg.StatsPartitionSize = 100
	insertChunk(t, s, ds, cfg, 0, 999, []byte("aaaa"), nil, array.Uint64(), 8)

	// Baseline: a full unfiltered read of the column.
	atomic.StoreInt64(&counting.pageGets, 0)
	full, err := s.QueryTable(ctx, ds, "blocks", 0, maxBlock, ReadOptions{Columns: []string{"block_number"}})
	require.NoError(t, err)
	require.Len(t, full.Rows, 1000)
	fullGets := atomic.LoadInt64(&counting.pageGets)
	require.NotZero(t, fullGets)

	// A point predicate over the strictly monotonic column touches at
	// most one stat partition's worth of pages.
	atomic.StoreInt64(&counting.pageGets, 0)
	p := stats.Eq("block_number", u64le(500))
	res, err := s.QueryTable(ctx, ds, "blocks", 0, maxBlock, ReadOptions{
		Columns:   []string{"block_number"},
		Predicate: &p,
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, u64le(500), res.Rows[0][0].Raw)
	prunedGets := atomic.LoadInt64(&counting.pageGets)
	require.Less(t, prunedGets, fullGets/4, "pruned read fetched %d pages, full read fetched %d", prunedGets, fullGets)
}

func TestQueryProjectionAndRowIndex(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ds := DatasetIdFromName("solana")
	require.NoError(t, s.CreateDataset(ctx, ds, KindFromString("solana")))
	cfg := testCfg()
	insertChunk(t, s, ds, cfg, 0, 99, []byte("aaaa"), nil, array.Uint16(), 2)

	p := stats.Between("block_number", u64le(10), u64le(12))
	res, err := s.QueryTable(ctx, ds, "blocks", 0, maxBlock, ReadOptions{
		Columns:      []string{"data"},
		Predicate:    &p,
		WithRowIndex: true,
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	// The predicate column was fetched for filtering but dropped from
	// the projection.
	require.Len(t, res.Schema.Fields, 1)
	require.Equal(t, "data", res.Schema.Fields[0].Name)
	require.Equal(t, []uint32{10, 11, 12}, res.RowNumbers)
	for _, row := range res.Rows {
		require.Equal(t, "payload", string(row[0].Raw))
	}
}

func TestQueryPredicateSoundness(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ds := DatasetIdFromName("solana")
	require.NoError(t, s.CreateDataset(ctx, ds, KindFromString("solana")))
	cfg := testCfg()
	cfg.StatsPartitionSize = 16
	insertChunk(t, s, ds, cfg, 0, 199, []byte("aaaa"), nil, array.Uint16(), 2)

	// Every returned row satisfies the predicate exactly, not just at
	// stat-partition granularity.
	p := stats.And(
		stats.Ge("block_number", u64le(30)),
		stats.Le("block_number", u64le(40)),
	)
	res, err := s.QueryTable(ctx, ds, "blocks", 0, maxBlock, ReadOptions{
		Columns:   []string{"block_number"},
		Predicate: &p,
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 11)
	for i, row := range res.Rows {
		require.Equal(t, u64le(uint64(30+i)), row[0].Raw)
	}

	// An unsatisfiable disjunct adds nothing.
	p2 := stats.Or(
		stats.Eq("block_number", u64le(35)),
		stats.Eq("block_number", u64le(100000)),
	)
	res2, err := s.QueryTable(ctx, ds, "blocks", 0, maxBlock, ReadOptions{
		Columns:   []string{"block_number"},
		Predicate: &p2,
	})
	require.NoError(t, err)
	require.Len(t, res2.Rows, 1)
	require.Equal(t, u64le(35), res2.Rows[0][0].Raw)
}

func TestQueryKindMismatch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ds := DatasetIdFromName("solana")
	require.NoError(t, s.CreateDataset(ctx, ds, KindFromString("solana")))
	cfg := testCfg()
	insertChunk(t, s, ds, cfg, 0, 9, []byte("aaaa"), nil, array.Uint16(), 2)

	_, err := s.QueryTable(ctx, ds, "blocks", 0, maxBlock, ReadOptions{Kind: "evm"})
	require.ErrorIs(t, err, archiveerr.ErrDatasetKindMismatch)

	res, err := s.QueryTable(ctx, ds, "blocks", 0, maxBlock, ReadOptions{Kind: "solana"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 10)
}

func TestQueryMissingDataset(t *testing.T) {
	s := testStore(t)
	_, err := s.QueryTable(context.Background(), DatasetIdFromName("ghost"), "blocks", 0, maxBlock, ReadOptions{})
	require.ErrorIs(t, err, archiveerr.ErrDatasetNotFound)
}

func TestQueryCancelledContextTruncates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ds := DatasetIdFromName("solana")
	require.NoError(t, s.CreateDataset(ctx, ds, KindFromString("solana")))
	cfg := testCfg()
	insertChunk(t, s, ds, cfg, 0, 9, []byte("aaaa"), nil, array.Uint16(), 2)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	res, err := s.QueryTable(cancelled, ds, "blocks", 0, maxBlock, ReadOptions{})
	require.NoError(t, err)
	require.True(t, res.Truncated)
	require.Empty(t, res.Rows)
}

func TestQueryBlockRangeSelectsChunks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ds := DatasetIdFromName("solana")
	require.NoError(t, s.CreateDataset(ctx, ds, KindFromString("solana")))
	cfg := testCfg()
	insertChunk(t, s, ds, cfg, 0, 99, []byte("aaaa"), nil, array.Uint16(), 2)
	insertChunk(t, s, ds, cfg, 100, 199, []byte("bbbb"), []byte("aaaa"), array.Uint16(), 2)

	res, err := s.QueryTable(ctx, ds, "blocks", 120, 150, ReadOptions{Columns: []string{"block_number"}})
	require.NoError(t, err)
	// Chunk granularity: the whole covering chunk's rows come back.
	require.Len(t, res.Rows, 100)
	require.Len(t, res.Chunks, 1)
	require.Equal(t, uint64(100), res.Chunks[0].FirstBlock)
}
