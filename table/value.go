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

import "github.com/n42blockchain/archive/internal/array"

// Value is a tagged-union row value matching one column's logical type: a
// leaf scalar (Bool or Raw, the little-endian/UTF-8 bytes of everything
// else SupportsStats covers), or the children of a List (Elems) or Struct
// (Fields). Null is independent of which payload field is set — a caller
// writing a null value may leave the rest zeroed.
type Value struct {
	Null   bool
	Bool   bool
	Raw    []byte
	Elems  []Value
	Fields []Value
}

// appendValue walks dt in the same pre-order array.Layout(dt) uses and
// feeds one row's worth of data into the matching writer slots in
// writers[*pos:]. List elements each restart from the slot range their
// single set of child writers occupies, rather than advancing pos
// per-element, since every element of a list column shares the same
// physical buffers; pos is only advanced once, past the whole subtree,
// when the loop is done.
func appendValue(dt array.DataType, writers []interface{}, pos *int, v Value) error {
	nm := writers[*pos].(*array.NullmaskWriter)
	*pos++
	if err := nm.Append(!v.Null); err != nil {
		return err
	}

	switch dt.Kind {
	case array.KindBool:
		bw := writers[*pos].(*array.BitmaskWriter)
		*pos++
		return bw.Append(v.Bool)

	case array.KindBinary, array.KindUtf8:
		ow := writers[*pos].(*array.OffsetsWriter)
		*pos++
		nw := writers[*pos].(*array.NativeWriter)
		*pos++
		if err := ow.WriteLen(len(v.Raw)); err != nil {
			return err
		}
		if len(v.Raw) == 0 {
			return nil
		}
		return nw.WriteRaw(v.Raw)

	case array.KindFixedSizeBinary:
		nw := writers[*pos].(*array.NativeWriter)
		*pos++
		buf := v.Raw
		if len(buf) != dt.FixedSize {
			buf = make([]byte, dt.FixedSize)
		}
		return nw.WriteRaw(buf)

	case array.KindList:
		ow := writers[*pos].(*array.OffsetsWriter)
		*pos++
		elemStart := *pos
		childSlots := array.NumBuffers(*dt.Elem)
		if err := ow.WriteLen(len(v.Elems)); err != nil {
			return err
		}
		for _, e := range v.Elems {
			p := elemStart
			if err := appendValue(*dt.Elem, writers, &p, e); err != nil {
				return err
			}
		}
		*pos = elemStart + childSlots
		return nil

	case array.KindStruct:
		for i, f := range dt.Fields {
			var fv Value
			if i < len(v.Fields) {
				fv = v.Fields[i]
			} else {
				fv = Value{Null: true}
			}
			if err := appendValue(f.Type, writers, pos, fv); err != nil {
				return err
			}
		}
		return nil

	default:
		nw := writers[*pos].(*array.NativeWriter)
		*pos++
		width := dt.PrimitiveWidth()
		buf := v.Raw
		if len(buf) != width {
			buf = make([]byte, width)
		}
		return nw.WriteRaw(buf)
	}
}
