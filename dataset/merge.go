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
	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/internal/array"
)

// widenRank places the unsigned integer kinds on the widening lattice
// u8 -> u16 -> u32 -> u64; ok is false for every other kind.
func widenRank(k array.Kind) (int, bool) {
	switch k {
	case array.KindUint8:
		return 1, true
	case array.KindUint16:
		return 2, true
	case array.KindUint32:
		return 3, true
	case array.KindUint64:
		return 4, true
	default:
		return 0, false
	}
}

func typesEqual(a, b array.DataType) bool {
	if a.Kind != b.Kind || a.FixedSize != b.FixedSize {
		return false
	}
	switch a.Kind {
	case array.KindList:
		return typesEqual(*a.Elem, *b.Elem)
	case array.KindStruct:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name ||
				a.Fields[i].Nullable != b.Fields[i].Nullable ||
				!typesEqual(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// mergeType computes the common type of two column types: equal types
// merge to themselves, unsigned integers widen to the wider of the two,
// and lists and structs merge leaf-wise under the same rule.
func mergeType(a, b array.DataType) (array.DataType, error) {
	if typesEqual(a, b) {
		return a, nil
	}
	if ra, ok := widenRank(a.Kind); ok {
		if rb, ok := widenRank(b.Kind); ok {
			if ra >= rb {
				return a, nil
			}
			return b, nil
		}
	}
	if a.Kind == array.KindList && b.Kind == array.KindList {
		elem, err := mergeType(*a.Elem, *b.Elem)
		if err != nil {
			return array.DataType{}, err
		}
		return array.List(elem), nil
	}
	if a.Kind == array.KindStruct && b.Kind == array.KindStruct {
		if len(a.Fields) != len(b.Fields) {
			return array.DataType{}, archiveerr.Wrapf(archiveerr.ErrSchemaMismatch, "struct has %d fields vs %d", len(a.Fields), len(b.Fields))
		}
		fields := make([]array.Field, len(a.Fields))
		for i := range a.Fields {
			f, err := mergeField(a.Fields[i], b.Fields[i])
			if err != nil {
				return array.DataType{}, err
			}
			fields[i] = f
		}
		return array.Struct(fields...), nil
	}
	return array.DataType{}, archiveerr.Wrapf(archiveerr.ErrSchemaMismatch, "kind %v vs %v", a.Kind, b.Kind)
}

// mergeField merges two fields at the same position: names must agree,
// nullability is the logical OR.
func mergeField(a, b array.Field) (array.Field, error) {
	if a.Name != b.Name {
		return array.Field{}, archiveerr.Wrapf(archiveerr.ErrSchemaMismatch, "field %q vs %q at same position", a.Name, b.Name)
	}
	ty, err := mergeType(a.Type, b.Type)
	if err != nil {
		return array.Field{}, archiveerr.Wrapf(err, "field %q", a.Name)
	}
	return array.Field{Name: a.Name, Type: ty, Nullable: a.Nullable || b.Nullable}, nil
}

// MergeSchemas computes the common schema of a compaction run's inputs.
// All inputs must have the same field count and the same field names in
// the same order; types may differ only within the unsigned widening
// lattice (including inside lists and structs).
func MergeSchemas(schemas []array.Schema) (array.Schema, error) {
	if len(schemas) == 0 {
		return array.Schema{}, archiveerr.Wrap(archiveerr.ErrSchemaMismatch, "no schemas to merge")
	}
	out := schemas[0]
	for _, s := range schemas[1:] {
		if len(s.Fields) != len(out.Fields) {
			return array.Schema{}, archiveerr.Wrapf(archiveerr.ErrSchemaMismatch, "%d fields vs %d", len(s.Fields), len(out.Fields))
		}
		fields := make([]array.Field, len(out.Fields))
		for i := range out.Fields {
			f, err := mergeField(out.Fields[i], s.Fields[i])
			if err != nil {
				return array.Schema{}, err
			}
			fields[i] = f
		}
		out = array.Schema{Fields: fields}
	}
	return out, nil
}
