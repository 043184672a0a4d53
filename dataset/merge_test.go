// Copyright 2022-2026 The N42 Authors
// This file is part of the N42 library.

package dataset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/internal/array"
	"github.com/n42blockchain/archive/table"
)

func TestMergeSchemasWidening(t *testing.T) {
	a := array.Schema{Fields: []array.Field{
		{Name: "idx", Type: array.Uint16()},
		{Name: "tags", Type: array.List(array.Uint8())},
	}}
	b := array.Schema{Fields: []array.Field{
		{Name: "idx", Type: array.Uint32()},
		{Name: "tags", Type: array.List(array.Uint64()), Nullable: true},
	}}
	merged, err := MergeSchemas([]array.Schema{a, b})
	require.NoError(t, err)
	require.Equal(t, array.KindUint32, merged.Fields[0].Type.Kind)
	require.Equal(t, array.KindUint64, merged.Fields[1].Type.Elem.Kind)
	// Nullability is the logical OR of the inputs.
	require.True(t, merged.Fields[1].Nullable)
	require.False(t, merged.Fields[0].Nullable)
}

func TestMergeSchemasRejections(t *testing.T) {
	base := array.Schema{Fields: []array.Field{{Name: "a", Type: array.Uint16()}}}

	// Signed integers do not widen.
	_, err := MergeSchemas([]array.Schema{base, {Fields: []array.Field{{Name: "a", Type: array.Int32()}}}})
	require.ErrorIs(t, err, archiveerr.ErrSchemaMismatch)

	// Field names must agree position-wise.
	_, err = MergeSchemas([]array.Schema{base, {Fields: []array.Field{{Name: "b", Type: array.Uint16()}}}})
	require.ErrorIs(t, err, archiveerr.ErrSchemaMismatch)

	// Field counts must agree.
	_, err = MergeSchemas([]array.Schema{base, {Fields: []array.Field{
		{Name: "a", Type: array.Uint16()},
		{Name: "b", Type: array.Uint16()},
	}}})
	require.ErrorIs(t, err, archiveerr.ErrSchemaMismatch)
}

func TestMergeSchemasStructLeaves(t *testing.T) {
	a := array.Schema{Fields: []array.Field{{Name: "s", Type: array.Struct(
		array.Field{Name: "x", Type: array.Uint8()},
		array.Field{Name: "y", Type: array.Utf8()},
	)}}}
	b := array.Schema{Fields: []array.Field{{Name: "s", Type: array.Struct(
		array.Field{Name: "x", Type: array.Uint32()},
		array.Field{Name: "y", Type: array.Utf8()},
	)}}}
	merged, err := MergeSchemas([]array.Schema{a, b})
	require.NoError(t, err)
	require.Equal(t, array.KindUint32, merged.Fields[0].Type.Fields[0].Type.Kind)
}

func TestCastValueWidening(t *testing.T) {
	from := array.Uint16()
	to := array.Uint32()
	v := castValue(table.Value{Raw: u16le(513)}, from, to)
	require.Equal(t, u32le(513), v.Raw)

	// Nulls pass through.
	n := castValue(table.Value{Null: true}, from, to)
	require.True(t, n.Null)

	// Lists cast element-wise.
	lv := castValue(table.Value{Elems: []table.Value{{Raw: u16le(1)}, {Raw: u16le(2)}}},
		array.List(array.Uint16()), array.List(array.Uint64()))
	require.Len(t, lv.Elems, 2)
	require.Equal(t, u64le(2), lv.Elems[1].Raw)

	// Equal types are returned untouched.
	same := castValue(table.Value{Raw: u16le(7)}, from, from)
	require.Equal(t, u16le(7), same.Raw)
}
