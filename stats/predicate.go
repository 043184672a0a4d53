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
	"github.com/n42blockchain/archive/internal/array"
	"github.com/n42blockchain/archive/rowrange"
)

// Op names a predicate leaf's comparison.
type Op int

const (
	OpEq Op = iota
	OpInList
	OpGe
	OpLe
	OpBetween
	OpBloomFilter
)

// Predicate is a tree of and/or combinators over per-column leaves. A
// non-leaf node has And or Or set (never both); a leaf has Column and Op
// set. The read path resolves Column to a column index inside the lookup
// callback it hands to Evaluate, so this package only ever sees names.
type Predicate struct {
	And []Predicate
	Or  []Predicate

	Column string
	Op     Op
	Value  []byte
	Values [][]byte
	Lo, Hi []byte
}

func And(ps ...Predicate) Predicate { return Predicate{And: ps} }
func Or(ps ...Predicate) Predicate  { return Predicate{Or: ps} }

func Eq(column string, v []byte) Predicate      { return Predicate{Column: column, Op: OpEq, Value: v} }
func InList(column string, vs [][]byte) Predicate {
	return Predicate{Column: column, Op: OpInList, Values: vs}
}
func Ge(column string, v []byte) Predicate { return Predicate{Column: column, Op: OpGe, Value: v} }
func Le(column string, v []byte) Predicate { return Predicate{Column: column, Op: OpLe, Value: v} }
func Between(column string, lo, hi []byte) Predicate {
	return Predicate{Column: column, Op: OpBetween, Lo: lo, Hi: hi}
}
func BloomFilter(column string, v []byte) Predicate {
	return Predicate{Column: column, Op: OpBloomFilter, Value: v}
}

// ColumnStats is the type and stat-entry list a lookup supplies for one
// column during evaluation.
type ColumnStats struct {
	Type    array.DataType
	Entries []Entry
}

// Lookup resolves a predicate leaf's column name to its stats. It
// returns ok=false for columns that carry no stats (unsupported type,
// or stats disabled), in which case the leaf conservatively selects
// every row.
type Lookup func(column string) (ColumnStats, bool)

// Evaluate walks p against numRows total rows, returning the row range
// that might satisfy it. bloom_filter leaves and columns absent from
// lookup are not evaluable at this layer and conservatively select all
// rows, matching every other leaf's fail-open behavior on missing stats.
func Evaluate(p Predicate, numRows uint32, lookup Lookup) *rowrange.List {
	if len(p.And) > 0 {
		out := rowrange.Full(numRows)
		for _, sub := range p.And {
			out = rowrange.Intersect(out, Evaluate(sub, numRows, lookup))
		}
		return out
	}
	if len(p.Or) > 0 {
		out := rowrange.Empty()
		for _, sub := range p.Or {
			out = rowrange.Union(out, Evaluate(sub, numRows, lookup))
		}
		return out
	}
	if p.Op == OpBloomFilter {
		return rowrange.Full(numRows)
	}
	cs, ok := lookup(p.Column)
	if !ok {
		return rowrange.Full(numRows)
	}
	switch p.Op {
	case OpEq:
		return evalEq(cs, p.Value)
	case OpInList:
		out := rowrange.Empty()
		for _, v := range p.Values {
			out = rowrange.Union(out, evalEq(cs, v))
		}
		return out
	case OpGe:
		return evalGe(cs, p.Value)
	case OpLe:
		return evalLe(cs, p.Value)
	case OpBetween:
		return evalBetween(cs, p.Lo, p.Hi)
	default:
		return rowrange.Full(numRows)
	}
}

// hasValues reports whether an entry observed at least one non-null row;
// an all-null (or empty) partition carries no min/max and can never
// satisfy a value comparison.
func hasValues(e Entry) bool { return e.NullCount < e.RowCount && e.Min != nil }

func evalEq(cs ColumnStats, v []byte) *rowrange.List {
	cmp := ComparatorFor(cs.Type)
	out := rowrange.Empty()
	row := uint32(0)
	for _, e := range cs.Entries {
		if hasValues(e) && cmp(e.Min, v) <= 0 && cmp(v, e.Max) <= 0 {
			out.AddRange(row, row+e.RowCount)
		}
		row += e.RowCount
	}
	return out
}

func evalGe(cs ColumnStats, v []byte) *rowrange.List {
	cmp := ComparatorFor(cs.Type)
	out := rowrange.Empty()
	row := uint32(0)
	for _, e := range cs.Entries {
		if hasValues(e) && cmp(e.Max, v) >= 0 {
			out.AddRange(row, row+e.RowCount)
		}
		row += e.RowCount
	}
	return out
}

func evalLe(cs ColumnStats, v []byte) *rowrange.List {
	cmp := ComparatorFor(cs.Type)
	out := rowrange.Empty()
	row := uint32(0)
	for _, e := range cs.Entries {
		if hasValues(e) && cmp(e.Min, v) <= 0 {
			out.AddRange(row, row+e.RowCount)
		}
		row += e.RowCount
	}
	return out
}

func evalBetween(cs ColumnStats, lo, hi []byte) *rowrange.List {
	cmp := ComparatorFor(cs.Type)
	out := rowrange.Empty()
	row := uint32(0)
	for _, e := range cs.Entries {
		if hasValues(e) && cmp(e.Min, hi) <= 0 && cmp(e.Max, lo) >= 0 {
			out.AddRange(row, row+e.RowCount)
		}
		row += e.RowCount
	}
	return out
}
