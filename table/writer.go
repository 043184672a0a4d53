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
	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/internal/array"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/stats"
	"github.com/n42blockchain/archive/tableid"
)

// DefaultPageTargetBytes is the default per-page flush target passed to
// every buffer writer, absent a narrower per-column override.
const DefaultPageTargetBytes = 64 * 1024

// Options controls how a table is physically written.
type Options struct {
	// PageTargetBytes is the per-page flush target. Zero selects
	// DefaultPageTargetBytes.
	PageTargetBytes int

	// ColumnPageTargetBytes overrides PageTargetBytes per column name.
	ColumnPageTargetBytes map[string]int

	// StatsColumns restricts which columns carry statistics. Nil enables
	// stats for every column whose type supports them.
	StatsColumns map[string]bool

	// StatsPartitionSize is the row count per stat entry. Zero selects
	// stats.DefaultPartitionSize.
	StatsPartitionSize uint32

	// Compression snappy-compresses page payloads above a small size
	// threshold.
	Compression bool
}

func (o Options) pageTargetFor(column string) int {
	if t, ok := o.ColumnPageTargetBytes[column]; ok && t > 0 {
		return t
	}
	if o.PageTargetBytes > 0 {
		return o.PageTargetBytes
	}
	return DefaultPageTargetBytes
}

func (o Options) statsFor(column string) bool {
	if o.StatsColumns == nil {
		return true
	}
	return o.StatsColumns[column]
}

// ColumnOptions is Options already resolved for one column.
type ColumnOptions struct {
	PageTargetBytes    int
	Stats              bool
	StatsPartitionSize uint32
	Compression        bool
}

// columnSlot is one physical buffer within a column, in array.Layout(dt)
// pre-order.
type columnSlot struct {
	kind    array.BufferKind
	writer  interface{}
	pageSeq uint32
}

// ColumnWriter appends rows to one top-level field of a table under
// construction, fanning each row out to that field's physical buffers and,
// when the type supports it, into a running statistics builder.
type ColumnWriter struct {
	tx       kv.Tx
	id       tableid.TableId
	col      uint16
	dt       array.DataType
	compress bool

	slots      []*columnSlot
	writerList []interface{}
	statsBldr  *stats.Builder
	rows       uint32
}

// NewColumnWriter constructs the writer for column col of table id, whose
// values have logical type dt.
func NewColumnWriter(tx kv.Tx, id tableid.TableId, col uint16, dt array.DataType, opts ColumnOptions) (*ColumnWriter, error) {
	pageTarget := opts.PageTargetBytes
	if pageTarget <= 0 {
		pageTarget = DefaultPageTargetBytes
	}
	cw := &ColumnWriter{tx: tx, id: id, col: col, dt: dt, compress: opts.Compression}
	layout := array.Layout(dt)
	cw.slots = make([]*columnSlot, len(layout))
	for i, bl := range layout {
		slot := &columnSlot{kind: bl.Kind}
		onPage := cw.pageWriter(slot, uint16(i))
		switch bl.Kind {
		case array.BufferNullmask:
			slot.writer = array.NewNullmaskWriter(pageTarget, onPage)
		case array.BufferBitmask:
			slot.writer = array.NewBitmaskWriter(pageTarget, onPage)
		case array.BufferNative:
			slot.writer = array.NewNativeWriter(bl.Width, pageTarget, onPage)
		case array.BufferOffsets:
			slot.writer = array.NewOffsetsWriter(pageTarget, onPage)
		}
		cw.slots[i] = slot
	}
	cw.writerList = make([]interface{}, len(cw.slots))
	for i, s := range cw.slots {
		cw.writerList[i] = s.writer
	}
	if opts.Stats && array.SupportsStats(dt) {
		b, err := stats.NewBuilder(dt, opts.StatsPartitionSize)
		if err != nil {
			return nil, err
		}
		cw.statsBldr = b
	}
	return cw, nil
}

func (cw *ColumnWriter) pageWriter(slot *columnSlot, buf uint16) func([]byte) error {
	return func(page []byte) error {
		idx := slot.pageSeq
		slot.pageSeq++
		return cw.tx.Put(kv.CFTables, PageKey(cw.id, cw.col, buf, idx), encodePage(page, cw.compress))
	}
}

// Append writes one row's value. Only SupportsStats types may observe v.Raw
// fed into the column's statistics; every other type is written physically
// but carries no stats entries.
func (cw *ColumnWriter) Append(v Value) error {
	pos := 0
	if err := appendValue(cw.dt, cw.writerList, &pos, v); err != nil {
		return err
	}
	cw.rows++
	if cw.statsBldr != nil {
		if v.Null {
			cw.statsBldr.PushValue(nil)
		} else {
			cw.statsBldr.PushValue(v.Raw)
		}
	}
	return nil
}

// Finish flushes every buffer, writes its offsets() key, and — if this
// column carries statistics — serializes and writes its statistic() key.
// It returns the number of rows written.
func (cw *ColumnWriter) Finish() (uint32, error) {
	for i, s := range cw.slots {
		if err := cw.finishSlot(uint16(i), s); err != nil {
			return 0, err
		}
	}
	if cw.statsBldr != nil {
		blob := stats.Serialize(cw.dt, cw.statsBldr.Finish())
		if err := cw.tx.Put(kv.CFTables, StatisticKey(cw.id, cw.col), blob); err != nil {
			return 0, err
		}
	}
	return cw.rows, nil
}

func (cw *ColumnWriter) finishSlot(buf uint16, s *columnSlot) error {
	switch w := s.writer.(type) {
	case *array.NullmaskWriter:
		idx, hasNulls, length, err := w.Finish()
		if err != nil {
			return err
		}
		return cw.tx.Put(kv.CFTables, OffsetsKey(cw.id, cw.col, buf), encodeNullmaskOffsets(idx, hasNulls, length))
	case *array.BitmaskWriter:
		idx, err := w.Finish()
		if err != nil {
			return err
		}
		return cw.tx.Put(kv.CFTables, OffsetsKey(cw.id, cw.col, buf), encodePageIndex(idx))
	case *array.NativeWriter:
		idx, err := w.Finish()
		if err != nil {
			return err
		}
		return cw.tx.Put(kv.CFTables, OffsetsKey(cw.id, cw.col, buf), encodePageIndex(idx))
	case *array.OffsetsWriter:
		idx, err := w.Finish()
		if err != nil {
			return err
		}
		return cw.tx.Put(kv.CFTables, OffsetsKey(cw.id, cw.col, buf), encodePageIndex(idx))
	default:
		return archiveerr.Wrap(archiveerr.ErrCorruptSchema, "unknown buffer writer kind")
	}
}

// TableWriter builds a whole table — a schema plus one ColumnWriter per
// top-level field — under a single TableId.
type TableWriter struct {
	tx      kv.Tx
	id      tableid.TableId
	schema  array.Schema
	columns []*ColumnWriter
}

// NewTableWriter constructs one ColumnWriter per field of schema, in
// declaration order, resolving opts per column.
func NewTableWriter(tx kv.Tx, id tableid.TableId, schema array.Schema, opts Options) (*TableWriter, error) {
	tw := &TableWriter{tx: tx, id: id, schema: schema}
	for i, f := range schema.Fields {
		cw, err := NewColumnWriter(tx, id, uint16(i), f.Type, ColumnOptions{
			PageTargetBytes:    opts.pageTargetFor(f.Name),
			Stats:              opts.statsFor(f.Name),
			StatsPartitionSize: opts.StatsPartitionSize,
			Compression:        opts.Compression,
		})
		if err != nil {
			return nil, err
		}
		tw.columns = append(tw.columns, cw)
	}
	return tw, nil
}

// AppendRow writes one row across every column; len(row) must equal
// len(schema.Fields).
func (tw *TableWriter) AppendRow(row []Value) error {
	if len(row) != len(tw.columns) {
		return archiveerr.Wrapf(archiveerr.ErrCorruptSchema, "row has %d values, schema has %d fields", len(row), len(tw.columns))
	}
	for i, cw := range tw.columns {
		if err := cw.Append(row[i]); err != nil {
			return err
		}
	}
	return nil
}

// Finish flushes every column and writes the schema key, returning the
// total row count (all columns must agree, or this is a caller bug).
func (tw *TableWriter) Finish() (uint32, error) {
	var rows uint32
	for i, cw := range tw.columns {
		n, err := cw.Finish()
		if err != nil {
			return 0, err
		}
		if i == 0 {
			rows = n
		} else if n != rows {
			return 0, archiveerr.Wrapf(archiveerr.ErrCorruptSchema, "column %d wrote %d rows, column 0 wrote %d", i, n, rows)
		}
	}
	if err := tw.tx.Put(kv.CFTables, SchemaKey(tw.id), EncodeSchema(tw.schema)); err != nil {
		return 0, err
	}
	return rows, nil
}
