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

package table

import (
	"encoding/binary"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/internal/array"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/rowrange"
	"github.com/n42blockchain/archive/stats"
	"github.com/n42blockchain/archive/tableid"
)

// kvPageSource implements array.PageSource by fetching one page key at a
// time from a kv.Snapshot. It trades the sequential-cursor amortization
// array.PageSource's doc comment calls out for simplicity: correctness
// (random ReadPage(idx)) is the contract; sequential-access speedup is an
// optimization this reference reader does not need yet.
type kvPageSource struct {
	snap      kv.Snapshot
	id        tableid.TableId
	col, buf  uint16
	pageIndex []uint32
}

func (s *kvPageSource) PageIndex() []uint32 { return s.pageIndex }

func (s *kvPageSource) ReadPage(idx int) ([]byte, error) {
	data, err := s.snap.Get(kv.CFTables, PageKey(s.id, s.col, s.buf, uint32(idx)))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, archiveerr.Wrapf(archiveerr.ErrCorruptPage, "missing page %d for column %d buffer %d", idx, s.col, s.buf)
	}
	return decodePage(data)
}

// TableReader opens an existing table for projected, row-range-restricted
// reads.
type TableReader struct {
	snap   kv.Snapshot
	id     tableid.TableId
	schema array.Schema
}

// OpenTableReader loads and decodes id's schema. A missing or undecodable
// schema key is always fatal: there is no partial-table recovery.
func OpenTableReader(snap kv.Snapshot, id tableid.TableId) (*TableReader, error) {
	blob, err := snap.Get(kv.CFTables, SchemaKey(id))
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, archiveerr.Wrap(archiveerr.ErrCorruptSchema, "missing schema key")
	}
	schema, err := DecodeSchema(blob)
	if err != nil {
		return nil, err
	}
	return &TableReader{snap: snap, id: id, schema: schema}, nil
}

// Schema returns the table's full (unprojected) schema.
func (tr *TableReader) Schema() array.Schema { return tr.schema }

func (tr *TableReader) fieldIndex(name string) (int, bool) {
	for i, f := range tr.schema.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (tr *TableReader) loadOffsets(col, buf uint16) ([]byte, error) {
	blob, err := tr.snap.Get(kv.CFTables, OffsetsKey(tr.id, col, buf))
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, archiveerr.Wrapf(archiveerr.ErrCorruptPage, "missing offsets key for column %d buffer %d", col, buf)
	}
	return blob, nil
}

// NumRows returns the table's row count, read off column 0's nullmask
// (every column is written with the same row count — TableWriter.Finish
// enforces this at write time).
func (tr *TableReader) NumRows() (uint32, error) {
	if len(tr.schema.Fields) == 0 {
		return 0, nil
	}
	return tr.columnLen(0)
}

func (tr *TableReader) columnLen(col uint16) (uint32, error) {
	blob, err := tr.loadOffsets(col, 0)
	if err != nil {
		return 0, err
	}
	_, _, length, err := decodeNullmaskOffsets(blob)
	return length, err
}

// ColumnStats loads column col's statistics blob, if it has one. The second
// return is false for a column whose type does not support statistics, or
// that was built without a statistic() key written (both are legal).
func (tr *TableReader) ColumnStats(col uint16) (stats.ColumnStats, bool, error) {
	dt := tr.schema.Fields[col].Type
	if !array.SupportsStats(dt) {
		return stats.ColumnStats{}, false, nil
	}
	blob, err := tr.snap.Get(kv.CFTables, StatisticKey(tr.id, col))
	if err != nil {
		return stats.ColumnStats{}, false, err
	}
	if blob == nil {
		return stats.ColumnStats{}, false, nil
	}
	entries, err := stats.Deserialize(dt, blob)
	if err != nil {
		return stats.ColumnStats{}, false, err
	}
	return stats.ColumnStats{Type: dt, Entries: entries}, true, nil
}

// EvaluatePredicate composes a stats.Lookup over this table's stored
// per-column statistics and evaluates p against it.
func (tr *TableReader) EvaluatePredicate(p stats.Predicate) (*rowrange.List, error) {
	numRows, err := tr.NumRows()
	if err != nil {
		return nil, err
	}
	var lookupErr error
	lookup := func(name string) (stats.ColumnStats, bool) {
		idx, ok := tr.fieldIndex(name)
		if !ok {
			return stats.ColumnStats{}, false
		}
		cs, ok, err := tr.ColumnStats(uint16(idx))
		if err != nil {
			lookupErr = err
			return stats.ColumnStats{}, false
		}
		return cs, ok
	}
	result := stats.Evaluate(p, numRows, lookup)
	if lookupErr != nil {
		return nil, lookupErr
	}
	return result, nil
}

// Result is the row-major output of a projected, row-range-restricted read.
type Result struct {
	Schema     array.Schema
	Rows       [][]Value
	RowNumbers []uint32 // absolute row numbers, populated only if requested
}

// ReadColumns decodes the named columns for the rows selected by rows (nil
// selects every row), optionally attaching each returned row's absolute
// row number.
func (tr *TableReader) ReadColumns(names []string, rows *rowrange.List, withRowIndex bool) (*Result, error) {
	numRows, err := tr.NumRows()
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = rowrange.Full(numRows)
	}
	ranges := rows.Ranges()

	colIdx := make([]int, len(names))
	fields := make([]array.Field, len(names))
	for i, n := range names {
		idx, ok := tr.fieldIndex(n)
		if !ok {
			return nil, archiveerr.Wrapf(archiveerr.ErrCorruptSchema, "unknown column %q", n)
		}
		colIdx[i] = idx
		fields[i] = tr.schema.Fields[idx]
	}

	totalRows := 0
	for _, r := range ranges {
		totalRows += r.Len()
	}

	colValues := make([][]Value, len(colIdx))
	for i, idx := range colIdx {
		vals, err := tr.readColumn(uint16(idx), tr.schema.Fields[idx].Type, ranges)
		if err != nil {
			return nil, err
		}
		if len(vals) != totalRows {
			return nil, archiveerr.Wrapf(archiveerr.ErrCorruptPage, "column %d decoded %d rows, expected %d", idx, len(vals), totalRows)
		}
		colValues[i] = vals
	}

	out := &Result{Schema: array.Schema{Fields: fields}}
	out.Rows = make([][]Value, totalRows)
	for r := range out.Rows {
		row := make([]Value, len(colIdx))
		for ci := range colIdx {
			row[ci] = colValues[ci][r]
		}
		out.Rows[r] = row
	}
	if withRowIndex {
		out.RowNumbers = make([]uint32, 0, totalRows)
		for _, rg := range ranges {
			for row := rg.Start; row < rg.End; row++ {
				out.RowNumbers = append(out.RowNumbers, row)
			}
		}
	}
	return out, nil
}

// readColumn decodes one top-level column's values for the given row
// ranges, recursing through List/Struct children the same way appendValue
// recurses on the write side.
func (tr *TableReader) readColumn(col uint16, dt array.DataType, ranges []rowrange.Range) ([]Value, error) {
	bufIdx := uint16(0)
	return tr.decodeRanges(col, dt, &bufIdx, ranges)
}

func (tr *TableReader) readNullmaskRanges(col, buf uint16, ranges []rowrange.Range) ([]bool, error) {
	blob, err := tr.loadOffsets(col, buf)
	if err != nil {
		return nil, err
	}
	pageIndex, hasNulls, _, err := decodeNullmaskOffsets(blob)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, r := range ranges {
		total += r.Len()
	}
	if !hasNulls {
		out := make([]bool, total)
		for i := range out {
			out[i] = true
		}
		return out, nil
	}
	src := &kvPageSource{snap: tr.snap, id: tr.id, col: col, buf: buf, pageIndex: pageIndex}
	return array.NewBitmaskReader(src).ReadRanges(ranges)
}

func (tr *TableReader) readBitmaskRanges(col, buf uint16, ranges []rowrange.Range) ([]bool, error) {
	blob, err := tr.loadOffsets(col, buf)
	if err != nil {
		return nil, err
	}
	pageIndex, err := decodePageIndex(blob)
	if err != nil {
		return nil, err
	}
	src := &kvPageSource{snap: tr.snap, id: tr.id, col: col, buf: buf, pageIndex: pageIndex}
	return array.NewBitmaskReader(src).ReadRanges(ranges)
}

func (tr *TableReader) nativeReader(col, buf uint16, width int) (*array.NativeReader, error) {
	blob, err := tr.loadOffsets(col, buf)
	if err != nil {
		return nil, err
	}
	pageIndex, err := decodePageIndex(blob)
	if err != nil {
		return nil, err
	}
	src := &kvPageSource{snap: tr.snap, id: tr.id, col: col, buf: buf, pageIndex: pageIndex}
	return array.NewNativeReader(src, width), nil
}

// readBoundaries reads, for each selected row, the pair of cumulative
// i32 counters bracketing it in an offsets-style buffer (used both for the
// Binary/Utf8 byte-offset buffer and for the List child-row-offset
// buffer): row r's bounds are elements r and r+1.
func readBoundaries(nr *array.NativeReader, ranges []rowrange.Range) ([]int32, []int32, error) {
	var los, his []int32
	for _, rg := range ranges {
		raw, err := nr.ReadSlice(rg.Start, uint32(rg.Len())+1)
		if err != nil {
			return nil, nil, err
		}
		vals := make([]int32, rg.Len()+1)
		for i := range vals {
			vals[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		los = append(los, vals[:len(vals)-1]...)
		his = append(his, vals[1:]...)
	}
	return los, his, nil
}

func (tr *TableReader) decodeRanges(col uint16, dt array.DataType, bufIdx *uint16, ranges []rowrange.Range) ([]Value, error) {
	nmBuf := *bufIdx
	*bufIdx++
	validity, err := tr.readNullmaskRanges(col, nmBuf, ranges)
	if err != nil {
		return nil, err
	}

	switch dt.Kind {
	case array.KindBool:
		bmBuf := *bufIdx
		*bufIdx++
		bits, err := tr.readBitmaskRanges(col, bmBuf, ranges)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(validity))
		for i := range out {
			out[i] = Value{Null: !validity[i], Bool: bits[i]}
		}
		return out, nil

	case array.KindBinary, array.KindUtf8:
		offBuf := *bufIdx
		*bufIdx++
		natBuf := *bufIdx
		*bufIdx++
		offReader, err := tr.nativeReader(col, offBuf, 4)
		if err != nil {
			return nil, err
		}
		los, his, err := readBoundaries(offReader, ranges)
		if err != nil {
			return nil, err
		}
		natReader, err := tr.nativeReader(col, natBuf, 1)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(validity))
		for i := range out {
			lo, hi := los[i], his[i]
			var raw []byte
			if hi > lo {
				raw, err = natReader.ReadSlice(uint32(lo), uint32(hi-lo))
				if err != nil {
					return nil, err
				}
			}
			out[i] = Value{Null: !validity[i], Raw: raw}
		}
		return out, nil

	case array.KindFixedSizeBinary:
		natBuf := *bufIdx
		*bufIdx++
		natReader, err := tr.nativeReader(col, natBuf, dt.FixedSize)
		if err != nil {
			return nil, err
		}
		data, err := natReader.ReadRanges(ranges)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(validity))
		for i := range out {
			out[i] = Value{Null: !validity[i], Raw: data[i*dt.FixedSize : (i+1)*dt.FixedSize]}
		}
		return out, nil

	case array.KindList:
		offBuf := *bufIdx
		*bufIdx++
		offReader, err := tr.nativeReader(col, offBuf, 4)
		if err != nil {
			return nil, err
		}
		los, his, err := readBoundaries(offReader, ranges)
		if err != nil {
			return nil, err
		}
		var childRanges []rowrange.Range
		for i := range los {
			if his[i] > los[i] {
				childRanges = append(childRanges, rowrange.Range{Start: uint32(los[i]), End: uint32(his[i])})
			}
		}
		childVals, err := tr.decodeRanges(col, *dt.Elem, bufIdx, childRanges)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(validity))
		pos := 0
		for i := range out {
			n := int(his[i] - los[i])
			var elems []Value
			if n > 0 {
				elems = childVals[pos : pos+n]
				pos += n
			}
			out[i] = Value{Null: !validity[i], Elems: elems}
		}
		return out, nil

	case array.KindStruct:
		fieldVals := make([][]Value, len(dt.Fields))
		for i, f := range dt.Fields {
			vals, err := tr.decodeRanges(col, f.Type, bufIdx, ranges)
			if err != nil {
				return nil, err
			}
			fieldVals[i] = vals
		}
		out := make([]Value, len(validity))
		for i := range out {
			fields := make([]Value, len(dt.Fields))
			for fi := range dt.Fields {
				fields[fi] = fieldVals[fi][i]
			}
			out[i] = Value{Null: !validity[i], Fields: fields}
		}
		return out, nil

	default:
		width := dt.PrimitiveWidth()
		natBuf := *bufIdx
		*bufIdx++
		natReader, err := tr.nativeReader(col, natBuf, width)
		if err != nil {
			return nil, err
		}
		data, err := natReader.ReadRanges(ranges)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(validity))
		for i := range out {
			out[i] = Value{Null: !validity[i], Raw: data[i*width : (i+1)*width]}
		}
		return out, nil
	}
}
