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
	"github.com/n42blockchain/archive/catalog"
	"github.com/n42blockchain/archive/internal/array"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/rowrange"
	"github.com/n42blockchain/archive/stats"
	"github.com/n42blockchain/archive/table"
	"github.com/n42blockchain/archive/tableid"
)

// ReadOptions is the per-call configuration of a table query.
type ReadOptions struct {
	// Kind, when non-empty, must match the dataset label's kind tag.
	Kind string

	// Columns is the projection. Empty selects every column.
	Columns []string

	// Predicate restricts which rows come back. Statistics prune
	// partitions up front; rows surviving the pruned read are then
	// filtered exactly against their column values, so a row on which
	// the predicate is false is never returned.
	Predicate *stats.Predicate

	// WithRowIndex attaches each returned row's absolute row number
	// (within its chunk's table, before filtering).
	WithRowIndex bool
}

// ChunkSpan attributes a span of a query result's rows to the chunk they
// came from.
type ChunkSpan struct {
	FirstBlock uint64
	LastBlock  uint64
	NumRows    int
}

// QueryResult is the merged output of a query across every chunk
// intersecting the requested block range. Rows from chunks whose column
// widths differ (after compactions of mixed-width inputs) are widened to
// the common schema.
type QueryResult struct {
	Schema array.Schema
	Rows   [][]table.Value

	// RowNumbers is aligned with Rows, populated only when requested;
	// each entry is absolute within its source chunk's table.
	RowNumbers []uint32

	// Chunks lists, in block order, which chunk produced each span of
	// Rows.
	Chunks []ChunkSpan

	// Truncated is set when the context was cancelled mid-scan; the
	// rows already collected are complete and well-formed up to a chunk
	// boundary.
	Truncated bool
}

// predicateColumns collects the column names a predicate's leaves touch.
func predicateColumns(p stats.Predicate, out map[string]bool) {
	for _, sub := range p.And {
		predicateColumns(sub, out)
	}
	for _, sub := range p.Or {
		predicateColumns(sub, out)
	}
	if p.Column != "" {
		out[p.Column] = true
	}
}

// evalRowPredicate decides a predicate exactly against one row's values.
// get returns a column's value, type, and whether the row carries that
// column at all; leaves over absent columns (and bloom-filter leaves,
// which have no exact evaluation here) keep the row.
func evalRowPredicate(p stats.Predicate, get func(column string) (table.Value, array.DataType, bool)) bool {
	if len(p.And) > 0 {
		for _, sub := range p.And {
			if !evalRowPredicate(sub, get) {
				return false
			}
		}
		return true
	}
	if len(p.Or) > 0 {
		for _, sub := range p.Or {
			if evalRowPredicate(sub, get) {
				return true
			}
		}
		return false
	}
	if p.Op == stats.OpBloomFilter {
		return true
	}
	v, dt, ok := get(p.Column)
	if !ok || !array.SupportsStats(dt) {
		return true
	}
	if v.Null {
		return false
	}
	cmp := stats.ComparatorFor(dt)
	switch p.Op {
	case stats.OpEq:
		return cmp(v.Raw, p.Value) == 0
	case stats.OpInList:
		for _, candidate := range p.Values {
			if cmp(v.Raw, candidate) == 0 {
				return true
			}
		}
		return false
	case stats.OpGe:
		return cmp(v.Raw, p.Value) >= 0
	case stats.OpLe:
		return cmp(v.Raw, p.Value) <= 0
	case stats.OpBetween:
		return cmp(v.Raw, p.Lo) >= 0 && cmp(v.Raw, p.Hi) <= 0
	default:
		return true
	}
}

// chunkRead is one chunk's contribution before cross-chunk widening.
type chunkRead struct {
	span       ChunkSpan
	schema     array.Schema
	rows       [][]table.Value
	rowNumbers []uint32
}

// readChunkTable runs the projected, predicate-filtered read of one
// chunk's table.
func readChunkTable(snap kv.Snapshot, c catalog.Chunk, tableName string, opts ReadOptions) (chunkRead, error) {
	tid, ok := c.Tables[tableName]
	if !ok {
		return chunkRead{}, archiveerr.Wrapf(archiveerr.ErrChunkNotFound, "chunk [%d, %d] has no table %q", c.FirstBlock, c.LastBlock, tableName)
	}
	tr, err := table.OpenTableReader(snap, tid)
	if err != nil {
		return chunkRead{}, err
	}

	proj := opts.Columns
	if len(proj) == 0 {
		proj = make([]string, len(tr.Schema().Fields))
		for i, f := range tr.Schema().Fields {
			proj[i] = f.Name
		}
	}

	// Columns the residual predicate needs but the caller did not
	// project are fetched too, then dropped after filtering.
	readNames := append([]string(nil), proj...)
	if opts.Predicate != nil {
		needed := make(map[string]bool)
		predicateColumns(*opts.Predicate, needed)
		have := make(map[string]bool, len(proj))
		for _, n := range proj {
			have[n] = true
		}
		for _, f := range tr.Schema().Fields {
			if needed[f.Name] && !have[f.Name] {
				readNames = append(readNames, f.Name)
			}
		}
	}

	res, rowNums, err := readFiltered(tr, readNames, opts)
	if err != nil {
		return chunkRead{}, err
	}

	out := chunkRead{
		span:   ChunkSpan{FirstBlock: c.FirstBlock, LastBlock: c.LastBlock},
		schema: array.Schema{Fields: res.Schema.Fields[:len(proj)]},
	}
	colIndex := make(map[string]int, len(readNames))
	for i, n := range readNames {
		colIndex[n] = i
	}
	get := func(row []table.Value) func(string) (table.Value, array.DataType, bool) {
		return func(column string) (table.Value, array.DataType, bool) {
			i, ok := colIndex[column]
			if !ok {
				return table.Value{}, array.DataType{}, false
			}
			return row[i], res.Schema.Fields[i].Type, true
		}
	}
	for r, row := range res.Rows {
		if opts.Predicate != nil && !evalRowPredicate(*opts.Predicate, get(row)) {
			continue
		}
		out.rows = append(out.rows, row[:len(proj)])
		if opts.WithRowIndex {
			out.rowNumbers = append(out.rowNumbers, rowNums[r])
		}
	}
	out.span.NumRows = len(out.rows)
	return out, nil
}

// readFiltered performs the stats-pruned physical read.
func readFiltered(tr *table.TableReader, readNames []string, opts ReadOptions) (*table.Result, []uint32, error) {
	var sel *rowrange.List
	if opts.Predicate != nil {
		list, err := tr.EvaluatePredicate(*opts.Predicate)
		if err != nil {
			return nil, nil, err
		}
		if list.IsEmpty() {
			return &table.Result{Schema: projectedSchema(tr, readNames)}, nil, nil
		}
		sel = list
	}
	res, err := tr.ReadColumns(readNames, sel, true)
	if err != nil {
		return nil, nil, err
	}
	return res, res.RowNumbers, nil
}

func projectedSchema(tr *table.TableReader, names []string) array.Schema {
	fields := make([]array.Field, 0, len(names))
	for _, n := range names {
		for _, f := range tr.Schema().Fields {
			if f.Name == n {
				fields = append(fields, f)
				break
			}
		}
	}
	return array.Schema{Fields: fields}
}

// QueryTable reads tableName across every chunk of dataset intersecting
// [fromBlock, toBlock], applying projection, predicate filtering, and
// the optional row index. Concurrent scans beyond the store's admission
// bound fail fast with a busy error.
func (s *Store) QueryTable(ctx context.Context, dataset tableid.DatasetId, tableName string, fromBlock, toBlock uint64, opts ReadOptions) (*QueryResult, error) {
	select {
	case s.scans <- struct{}{}:
		defer func() { <-s.scans }()
	default:
		return nil, archiveerr.Wrap(archiveerr.ErrBusy, "scan slots exhausted")
	}

	snap, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	blob, err := snap.Get(kv.CFDatasets, catalog.LabelKey(dataset))
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, archiveerr.Wrapf(archiveerr.ErrDatasetNotFound, "dataset %s", dataset)
	}
	label, err := catalog.DecodeLabel(blob)
	if err != nil {
		return nil, err
	}
	if opts.Kind != "" && KindFromString(opts.Kind) != label.Kind {
		return nil, archiveerr.Wrapf(archiveerr.ErrDatasetKindMismatch, "query kind %q", opts.Kind)
	}

	chunks, err := listChunks(snap, dataset, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}

	var reads []chunkRead
	truncated := false
	for _, c := range chunks {
		if ctx.Err() != nil {
			truncated = true
			break
		}
		cr, err := readChunkTable(snap, c, tableName, opts)
		if err != nil {
			return nil, err
		}
		reads = append(reads, cr)
	}

	out := &QueryResult{Truncated: truncated}
	if len(reads) == 0 {
		return out, nil
	}
	schemas := make([]array.Schema, len(reads))
	for i, r := range reads {
		schemas[i] = r.schema
	}
	merged, err := MergeSchemas(schemas)
	if err != nil {
		return nil, err
	}
	out.Schema = merged
	for _, r := range reads {
		cast := needsSchemaCast(r.schema, merged)
		for _, row := range r.rows {
			if cast {
				row = castRow(row, r.schema, merged)
			}
			out.Rows = append(out.Rows, row)
		}
		if opts.WithRowIndex {
			out.RowNumbers = append(out.RowNumbers, r.rowNumbers...)
		}
		out.Chunks = append(out.Chunks, r.span)
	}
	return out, nil
}
