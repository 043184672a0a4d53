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
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/n42blockchain/archive/internal/array"
	"github.com/n42blockchain/archive/kv"
	"github.com/n42blockchain/archive/kv/memkv"
	"github.com/n42blockchain/archive/rowrange"
	"github.com/n42blockchain/archive/stats"
	"github.com/n42blockchain/archive/tableid"
)

func u32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func TestSchemaCodecRoundTrip(t *testing.T) {
	schema := array.Schema{Fields: []array.Field{
		{Name: "id", Type: array.Uint32(), Nullable: false},
		{Name: "name", Type: array.Utf8(), Nullable: true},
		{Name: "tags", Type: array.List(array.Utf8()), Nullable: false},
		{Name: "point", Type: array.Struct(
			array.Field{Name: "x", Type: array.Int32()},
			array.Field{Name: "y", Type: array.Int32()},
		), Nullable: true},
	}}
	blob := EncodeSchema(schema)
	got, err := DecodeSchema(blob)
	require.NoError(t, err)
	require.Equal(t, schema, got)
}

func TestDecodeSchemaRejectsTruncated(t *testing.T) {
	schema := array.Schema{Fields: []array.Field{{Name: "a", Type: array.Int64()}}}
	blob := EncodeSchema(schema)
	_, err := DecodeSchema(blob[:len(blob)-1])
	require.Error(t, err)
}

func writeSimpleTable(t *testing.T, tx kv.Tx, id tableid.TableId) array.Schema {
	t.Helper()
	schema := array.Schema{Fields: []array.Field{
		{Name: "id", Type: array.Uint32()},
		{Name: "name", Type: array.Utf8(), Nullable: true},
	}}
	tw, err := NewTableWriter(tx, id, schema, Options{PageTargetBytes: 64})
	require.NoError(t, err)
	rows := []struct {
		id   uint32
		name string
		null bool
	}{
		{1, "alice", false},
		{2, "", true},
		{3, "carol", false},
		{4, "dave", false},
		{5, "eve", false},
	}
	for _, r := range rows {
		row := []Value{
			{Raw: u32(r.id)},
			{Null: r.null, Raw: []byte(r.name)},
		}
		require.NoError(t, tw.AppendRow(row))
	}
	n, err := tw.Finish()
	require.NoError(t, err)
	require.Equal(t, uint32(len(rows)), n)
	return schema
}

func TestTableWriterReaderRoundTrip(t *testing.T) {
	db := memkv.New()
	ctx := context.Background()
	id := tableid.NewTableId()

	var schema array.Schema
	require.NoError(t, db.Transaction(ctx, false, func(tx kv.Tx) error {
		schema = writeSimpleTable(t, tx, id)
		return nil
	}))

	snap, err := db.Snapshot()
	require.NoError(t, err)
	tr, err := OpenTableReader(snap, id)
	require.NoError(t, err)
	require.Equal(t, schema, tr.Schema())

	numRows, err := tr.NumRows()
	require.NoError(t, err)
	require.Equal(t, uint32(5), numRows)

	res, err := tr.ReadColumns([]string{"id", "name"}, nil, true)
	require.NoError(t, err)
	require.Len(t, res.Rows, 5)
	require.Equal(t, []uint32{0, 1, 2, 3, 4}, res.RowNumbers)

	require.Equal(t, u32(1), res.Rows[0][0].Raw)
	require.False(t, res.Rows[0][1].Null)
	require.Equal(t, "alice", string(res.Rows[0][1].Raw))

	require.True(t, res.Rows[1][1].Null)

	require.Equal(t, u32(4), res.Rows[3][0].Raw)
	require.Equal(t, "dave", string(res.Rows[3][1].Raw))
}

func TestTableReaderRowRangeProjection(t *testing.T) {
	db := memkv.New()
	ctx := context.Background()
	id := tableid.NewTableId()
	require.NoError(t, db.Transaction(ctx, false, func(tx kv.Tx) error {
		writeSimpleTable(t, tx, id)
		return nil
	}))

	snap, err := db.Snapshot()
	require.NoError(t, err)
	tr, err := OpenTableReader(snap, id)
	require.NoError(t, err)

	// A caller-supplied row range (e.g. the output of a prior predicate
	// pass elsewhere) restricts which rows come back at all.
	rows := rowrange.FromRanges(rowrange.Range{Start: 2, End: 4})
	res, err := tr.ReadColumns([]string{"id"}, rows, true)
	require.NoError(t, err)
	var ids []uint32
	for _, row := range res.Rows {
		ids = append(ids, binaryLEUint32(row[0].Raw))
	}
	require.Equal(t, []uint32{3, 4}, ids)
	require.Equal(t, []uint32{2, 3}, res.RowNumbers)

	// Statistics-driven evaluation is partition-granular (verified
	// exhaustively in the stats package); with only 5 rows the whole
	// column is one partition, so a satisfiable predicate must select
	// every row rather than narrowing within the partition.
	full, err := tr.EvaluatePredicate(stats.Ge("id", u32(3)))
	require.NoError(t, err)
	require.Equal(t, 5, full.Len())
}

func TestTableWriterReaderNestedTypes(t *testing.T) {
	db := memkv.New()
	ctx := context.Background()
	id := tableid.NewTableId()

	schema := array.Schema{Fields: []array.Field{
		{Name: "tags", Type: array.List(array.Utf8())},
		{Name: "point", Type: array.Struct(
			array.Field{Name: "x", Type: array.Int32()},
			array.Field{Name: "y", Type: array.Int32(), Nullable: true},
		), Nullable: true},
	}}

	require.NoError(t, db.Transaction(ctx, false, func(tx kv.Tx) error {
		tw, err := NewTableWriter(tx, id, schema, Options{PageTargetBytes: 64})
		require.NoError(t, err)

		rows := [][]Value{
			{
				{Elems: []Value{{Raw: []byte("a")}, {Raw: []byte("bb")}}},
				{Fields: []Value{{Raw: u32(1)}, {Raw: u32(2)}}},
			},
			{
				{Elems: nil},
				{Null: true},
			},
			{
				{Elems: []Value{{Raw: []byte("ccc")}}},
				{Fields: []Value{{Raw: u32(7)}, {Null: true}}},
			},
		}
		for _, r := range rows {
			require.NoError(t, tw.AppendRow(r))
		}
		n, err := tw.Finish()
		require.NoError(t, err)
		require.Equal(t, uint32(3), n)
		return nil
	}))

	snap, err := db.Snapshot()
	require.NoError(t, err)
	tr, err := OpenTableReader(snap, id)
	require.NoError(t, err)

	res, err := tr.ReadColumns([]string{"tags", "point"}, nil, false)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	require.Len(t, res.Rows[0][0].Elems, 2)
	require.Equal(t, "a", string(res.Rows[0][0].Elems[0].Raw))
	require.Equal(t, "bb", string(res.Rows[0][0].Elems[1].Raw))
	require.False(t, res.Rows[0][1].Null)
	require.Equal(t, u32(1), res.Rows[0][1].Fields[0].Raw)
	require.Equal(t, u32(2), res.Rows[0][1].Fields[1].Raw)

	require.Len(t, res.Rows[1][0].Elems, 0)
	require.True(t, res.Rows[1][1].Null)

	require.Len(t, res.Rows[2][0].Elems, 1)
	require.Equal(t, "ccc", string(res.Rows[2][0].Elems[0].Raw))
	require.False(t, res.Rows[2][1].Null)
	require.True(t, res.Rows[2][1].Fields[1].Null)
}

func TestCompressedPagesRoundTrip(t *testing.T) {
	db := memkv.New()
	ctx := context.Background()
	id := tableid.NewTableId()

	schema := array.Schema{Fields: []array.Field{
		{Name: "data", Type: array.Binary()},
	}}
	// Highly repetitive payloads well past compressMinBytes, so snappy
	// actually engages on at least one page.
	payload := make([]byte, 2048)
	for i := range payload {
		payload[i] = byte(i % 7)
	}
	require.NoError(t, db.Transaction(ctx, false, func(tx kv.Tx) error {
		tw, err := NewTableWriter(tx, id, schema, Options{PageTargetBytes: 1024, Compression: true})
		require.NoError(t, err)
		for i := 0; i < 8; i++ {
			require.NoError(t, tw.AppendRow([]Value{{Raw: payload}}))
		}
		_, err = tw.Finish()
		return err
	}))

	snap, err := db.Snapshot()
	require.NoError(t, err)
	tr, err := OpenTableReader(snap, id)
	require.NoError(t, err)
	res, err := tr.ReadColumns([]string{"data"}, nil, false)
	require.NoError(t, err)
	require.Len(t, res.Rows, 8)
	for _, row := range res.Rows {
		require.Equal(t, payload, row[0].Raw)
	}
}

func TestPageCodecRejectsUnknownMarker(t *testing.T) {
	_, err := decodePage([]byte{42, 1, 2, 3})
	require.Error(t, err)
	_, err = decodePage(nil)
	require.Error(t, err)
}

func TestOpenTableReaderMissingSchemaIsFatal(t *testing.T) {
	db := memkv.New()
	snap, err := db.Snapshot()
	require.NoError(t, err)
	_, err = OpenTableReader(snap, tableid.NewTableId())
	require.Error(t, err)
}

func binaryLEUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
