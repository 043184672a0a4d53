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
	"github.com/n42blockchain/archive/internal/array"
	"github.com/n42blockchain/archive/table"
)

// needsCast reports whether values of type from must be rewritten to be
// appended as type to. Only the unsigned widening merges produce casts,
// so this is a cheap structural walk.
func needsCast(from, to array.DataType) bool {
	if from.Kind != to.Kind {
		return true
	}
	switch from.Kind {
	case array.KindList:
		return needsCast(*from.Elem, *to.Elem)
	case array.KindStruct:
		for i := range from.Fields {
			if needsCast(from.Fields[i].Type, to.Fields[i].Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// castValue widens a value read as type from into its representation as
// type to. Little-endian makes unsigned widening a copy into the low
// bytes of a zeroed wider buffer. Null values pass through untouched.
func castValue(v table.Value, from, to array.DataType) table.Value {
	if !needsCast(from, to) {
		return v
	}
	if v.Null {
		return table.Value{Null: true}
	}
	switch to.Kind {
	case array.KindList:
		elems := make([]table.Value, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = castValue(e, *from.Elem, *to.Elem)
		}
		return table.Value{Elems: elems}
	case array.KindStruct:
		fields := make([]table.Value, len(to.Fields))
		for i := range to.Fields {
			var fv table.Value
			if i < len(v.Fields) {
				fv = v.Fields[i]
			} else {
				fv = table.Value{Null: true}
			}
			fields[i] = castValue(fv, from.Fields[i].Type, to.Fields[i].Type)
		}
		return table.Value{Fields: fields}
	default:
		out := make([]byte, to.PrimitiveWidth())
		copy(out, v.Raw)
		return table.Value{Raw: out}
	}
}

// castRow widens one row read under schema from into schema to, field by
// field.
func castRow(row []table.Value, from, to array.Schema) []table.Value {
	out := make([]table.Value, len(row))
	for i := range row {
		out[i] = castValue(row[i], from.Fields[i].Type, to.Fields[i].Type)
	}
	return out
}
