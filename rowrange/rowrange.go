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

// Package rowrange implements the row-selection set produced by statistics
// evaluation and consumed by table reads: a sorted set of row positions
// within a table, backed by a compressed bitmap so that AND/OR combination
// of predicate leaves and page-range intersection stay cheap even for
// tables with many millions of rows.
package rowrange

import (
	"github.com/RoaringBitmap/roaring"
)

// Range is a half-open row interval [Start, End).
type Range struct {
	Start uint32
	End   uint32
}

func (r Range) Len() int { return int(r.End - r.Start) }

// List is an ordered, disjoint set of row positions. The zero value is an
// empty list.
type List struct {
	bm *roaring.Bitmap
}

// Empty returns an empty List.
func Empty() *List { return &List{bm: roaring.New()} }

// Full returns a List selecting every row in [0, numRows).
func Full(numRows uint32) *List {
	l := Empty()
	if numRows > 0 {
		l.bm.AddRange(0, uint64(numRows))
	}
	return l
}

// FromRanges builds a List from a set of (possibly overlapping, unordered)
// row ranges.
func FromRanges(ranges ...Range) *List {
	l := Empty()
	for _, r := range ranges {
		if r.End > r.Start {
			l.bm.AddRange(uint64(r.Start), uint64(r.End))
		}
	}
	return l
}

// Add marks a single row as selected.
func (l *List) Add(row uint32) {
	if l.bm == nil {
		l.bm = roaring.New()
	}
	l.bm.Add(row)
}

// AddRange marks [start, end) as selected.
func (l *List) AddRange(start, end uint32) {
	if end <= start {
		return
	}
	if l.bm == nil {
		l.bm = roaring.New()
	}
	l.bm.AddRange(uint64(start), uint64(end))
}

// Contains reports whether row is selected.
func (l *List) Contains(row uint32) bool {
	return l.bm != nil && l.bm.Contains(row)
}

// IsEmpty reports whether the list selects no rows.
func (l *List) IsEmpty() bool { return l.bm == nil || l.bm.IsEmpty() }

// Len returns the number of selected rows.
func (l *List) Len() int {
	if l.bm == nil {
		return 0
	}
	return int(l.bm.GetCardinality())
}

// Union returns a new List selecting rows in l or in other (an "or" leaf
// combinator).
func Union(l, other *List) *List {
	out := Empty()
	if l.bm != nil {
		out.bm.Or(l.bm)
	}
	if other.bm != nil {
		out.bm.Or(other.bm)
	}
	return out
}

// Intersect returns a new List selecting rows in both l and other (an
// "and" leaf combinator).
func Intersect(l, other *List) *List {
	out := Empty()
	if l.bm != nil && other.bm != nil {
		out.bm = roaring.And(l.bm, other.bm)
	}
	return out
}

// Ranges returns the selected rows as a minimal set of disjoint, ordered
// half-open ranges.
func (l *List) Ranges() []Range {
	if l.bm == nil || l.bm.IsEmpty() {
		return nil
	}
	var out []Range
	it := l.bm.Iterator()
	var cur Range
	open := false
	for it.HasNext() {
		v := it.Next()
		if !open {
			cur = Range{Start: v, End: v + 1}
			open = true
			continue
		}
		if v == cur.End {
			cur.End = v + 1
			continue
		}
		out = append(out, cur)
		cur = Range{Start: v, End: v + 1}
	}
	if open {
		out = append(out, cur)
	}
	return out
}

// Clone returns an independent copy of l.
func (l *List) Clone() *List {
	out := Empty()
	if l.bm != nil {
		out.bm = l.bm.Clone()
	}
	return out
}
