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

package stats

import (
	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/internal/array"
)

// Entry is one stat partition: the min and max observed among its
// non-null values (nil for both if the partition had none), its null
// count, and its row count.
type Entry struct {
	Min, Max  []byte
	NullCount uint32
	RowCount  uint32
}

// DefaultPartitionSize is the row count a builder accumulates before
// pushing an entry, absent an explicit override.
const DefaultPartitionSize = 4096

// Builder accumulates min/max/null-count statistics for one column as
// rows are appended to its buffer writer, pushing a new Entry whenever
// the accumulated row count crosses the partition size.
type Builder struct {
	dt            array.DataType
	partitionSize uint32
	cmp           Comparator

	cur       Entry
	haveValue bool
	entries   []Entry
}

// NewBuilder creates a statistics builder for a column of type dt. It
// returns archiveerr.ErrStatsUnsupportedType if dt cannot carry stats
// (see array.SupportsStats).
func NewBuilder(dt array.DataType, partitionSize uint32) (*Builder, error) {
	if !array.SupportsStats(dt) {
		return nil, archiveerr.Wrapf(archiveerr.ErrStatsUnsupportedType, "type %v", dt.Kind)
	}
	if partitionSize == 0 {
		partitionSize = DefaultPartitionSize
	}
	return &Builder{dt: dt, partitionSize: partitionSize, cmp: ComparatorFor(dt)}, nil
}

// PushValue observes one more row's raw native value, or nil for a null
// row, flushing a completed entry once the partition size is reached.
func (b *Builder) PushValue(value []byte) {
	if value == nil {
		b.cur.NullCount++
	} else if !b.haveValue {
		b.cur.Min = cloneBytes(value)
		b.cur.Max = cloneBytes(value)
		b.haveValue = true
	} else {
		if b.cmp(value, b.cur.Min) < 0 {
			b.cur.Min = cloneBytes(value)
		}
		if b.cmp(value, b.cur.Max) > 0 {
			b.cur.Max = cloneBytes(value)
		}
	}
	b.cur.RowCount++
	if b.cur.RowCount >= b.partitionSize {
		b.flush()
	}
}

func (b *Builder) flush() {
	if b.cur.RowCount == 0 {
		return
	}
	b.entries = append(b.entries, b.cur)
	b.cur = Entry{}
	b.haveValue = false
}

// Finish flushes any residual partial entry and returns the completed
// entry list.
func (b *Builder) Finish() []Entry {
	b.flush()
	return b.entries
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
