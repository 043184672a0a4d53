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

// Package array implements the logical-to-physical column encoding: the
// mapping from an Arrow-shaped logical type to an ordered set of physical
// buffers (nullmask, bitmask, native, offsets), and the paged writers and
// readers for each buffer kind.
package array

import "fmt"

// Kind tags a logical data type. Schema walks dispatch on this tag; the
// type tree is a tagged variant, never a class hierarchy.
type Kind int

const (
	KindBool Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindTimestamp
	KindBinary
	KindUtf8
	KindFixedSizeBinary
	KindList
	KindStruct
)

// DataType describes one logical column's type, recursively for List and
// Struct.
type DataType struct {
	Kind Kind

	// FixedSize is the element width in bytes, only meaningful for
	// KindFixedSizeBinary.
	FixedSize int

	// Elem is the element type of a KindList column.
	Elem *DataType

	// Fields is the member list of a KindStruct column.
	Fields []Field
}

// Field is a named, optionally-nullable column.
type Field struct {
	Name     string
	Type     DataType
	Nullable bool
}

// Schema is an ordered list of top-level fields.
type Schema struct {
	Fields []Field
}

func Bool() DataType { return DataType{Kind: KindBool} }
func Int8() DataType { return DataType{Kind: KindInt8} }
func Int16() DataType { return DataType{Kind: KindInt16} }
func Int32() DataType { return DataType{Kind: KindInt32} }
func Int64() DataType { return DataType{Kind: KindInt64} }
func Uint8() DataType { return DataType{Kind: KindUint8} }
func Uint16() DataType { return DataType{Kind: KindUint16} }
func Uint32() DataType { return DataType{Kind: KindUint32} }
func Uint64() DataType { return DataType{Kind: KindUint64} }
func Float32() DataType { return DataType{Kind: KindFloat32} }
func Float64() DataType { return DataType{Kind: KindFloat64} }
func Timestamp() DataType { return DataType{Kind: KindTimestamp} }
func Binary() DataType { return DataType{Kind: KindBinary} }
func Utf8() DataType { return DataType{Kind: KindUtf8} }

func FixedSizeBinary(width int) DataType {
	return DataType{Kind: KindFixedSizeBinary, FixedSize: width}
}

func List(elem DataType) DataType {
	return DataType{Kind: KindList, Elem: &elem}
}

func Struct(fields ...Field) DataType {
	return DataType{Kind: KindStruct, Fields: fields}
}

// PrimitiveWidth returns the native byte width of a fixed-width primitive
// type (including timestamps, stored as i64). It panics for non-primitive
// kinds; callers should check Kind first.
func (t DataType) PrimitiveWidth() int {
	switch t.Kind {
	case KindInt8, KindUint8:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindFloat64, KindTimestamp:
		return 8
	default:
		panic(fmt.Sprintf("array: %v is not a fixed-width primitive", t.Kind))
	}
}

// BufferKind tags one physical buffer slot.
type BufferKind int

const (
	BufferNullmask BufferKind = iota
	BufferBitmask
	BufferNative
	BufferOffsets
)

// BufferLayout names one physical buffer belonging to a field, at the
// buffer index produced by a stable pre-order walk of the schema.
type BufferLayout struct {
	Kind  BufferKind
	Width int // byte width for BufferNative slots; 0 otherwise
}

// Layout returns the ordered physical buffer list for a logical type,
// matching the table in §3 of the data model: the buffer index of a field
// is the position in this pre-order walk, and it is part of the
// reader/writer contract that both sides compute it identically.
func Layout(t DataType) []BufferLayout {
	switch t.Kind {
	case KindBool:
		return []BufferLayout{{Kind: BufferNullmask}, {Kind: BufferBitmask}}
	case KindBinary, KindUtf8:
		return []BufferLayout{{Kind: BufferNullmask}, {Kind: BufferOffsets}, {Kind: BufferNative, Width: 1}}
	case KindFixedSizeBinary:
		return []BufferLayout{{Kind: BufferNullmask}, {Kind: BufferNative, Width: 1}}
	case KindList:
		out := []BufferLayout{{Kind: BufferNullmask}, {Kind: BufferOffsets}}
		return append(out, Layout(*t.Elem)...)
	case KindStruct:
		out := []BufferLayout{{Kind: BufferNullmask}}
		for _, f := range t.Fields {
			out = append(out, Layout(f.Type)...)
		}
		return out
	default:
		return []BufferLayout{{Kind: BufferNullmask}, {Kind: BufferNative, Width: t.PrimitiveWidth()}}
	}
}

// NumBuffers returns len(Layout(t)) without allocating the slice.
func NumBuffers(t DataType) int {
	switch t.Kind {
	case KindBool, KindFixedSizeBinary:
		return 2
	case KindBinary, KindUtf8:
		return 3
	case KindList:
		return 2 + NumBuffers(*t.Elem)
	case KindStruct:
		n := 1
		for _, f := range t.Fields {
			n += NumBuffers(f.Type)
		}
		return n
	default:
		return 2
	}
}

// ColumnBufferOffsets returns, for a schema, the starting buffer index of
// each top-level field — the pre-order position used to key `page(col,
// buf, idx)` and `offsets(col, buf)`.
func ColumnBufferOffsets(s Schema) []int {
	offsets := make([]int, len(s.Fields))
	pos := 0
	for i, f := range s.Fields {
		offsets[i] = pos
		pos += NumBuffers(f.Type)
	}
	return offsets
}

// SupportsStats reports whether a column of this type may carry min/max/
// null-count statistics: fixed-width integers, fixed-size binary, and
// Binary/Utf8. Booleans, floats, lists, and structs cannot.
func SupportsStats(t DataType) bool {
	switch t.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64,
		KindUint8, KindUint16, KindUint32, KindUint64,
		KindFixedSizeBinary, KindBinary, KindUtf8:
		return true
	default:
		return false
	}
}
