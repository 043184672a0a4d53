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
	"encoding/binary"
	"testing"

	"github.com/n42blockchain/archive/internal/array"
	"github.com/stretchr/testify/require"
)

func u32le(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func TestBuilderPartitionsAndTracksMinMax(t *testing.T) {
	b, err := NewBuilder(array.Uint32(), 4)
	require.NoError(t, err)

	values := []uint32{10, 2, 7, 9, 100, 1, 50, 3, 0}
	for _, v := range values {
		b.PushValue(u32le(v))
	}
	entries := b.Finish()
	require.Len(t, entries, 3)

	require.Equal(t, uint32(4), entries[0].RowCount)
	require.Equal(t, binary.LittleEndian.Uint32(entries[0].Min), uint32(2))
	require.Equal(t, binary.LittleEndian.Uint32(entries[0].Max), uint32(10))

	require.Equal(t, uint32(4), entries[1].RowCount)
	require.Equal(t, binary.LittleEndian.Uint32(entries[1].Min), uint32(1))
	require.Equal(t, binary.LittleEndian.Uint32(entries[1].Max), uint32(100))

	require.Equal(t, uint32(1), entries[2].RowCount)
	require.Equal(t, binary.LittleEndian.Uint32(entries[2].Min), uint32(0))
}

func TestBuilderRejectsUnsupportedType(t *testing.T) {
	_, err := NewBuilder(array.Bool(), 4)
	require.Error(t, err)
	_, err = NewBuilder(array.Float64(), 4)
	require.Error(t, err)
}

func TestBuilderTracksNullCount(t *testing.T) {
	b, err := NewBuilder(array.Int8(), 100)
	require.NoError(t, err)
	b.PushValue([]byte{5})
	b.PushValue(nil)
	b.PushValue(nil)
	b.PushValue([]byte{3})
	entries := b.Finish()
	require.Len(t, entries, 1)
	require.Equal(t, uint32(4), entries[0].RowCount)
	require.Equal(t, uint32(2), entries[0].NullCount)
	require.EqualValues(t, 3, int8(entries[0].Min[0]))
	require.EqualValues(t, 5, int8(entries[0].Max[0]))
}

func TestBuilderAllNullPartition(t *testing.T) {
	b, err := NewBuilder(array.Uint32(), 3)
	require.NoError(t, err)
	b.PushValue(nil)
	b.PushValue(nil)
	b.PushValue(nil)
	entries := b.Finish()
	require.Len(t, entries, 1)
	require.Equal(t, uint32(3), entries[0].RowCount)
	require.Equal(t, uint32(3), entries[0].NullCount)
	require.Nil(t, entries[0].Min)
	require.Nil(t, entries[0].Max)
}

func TestSerdeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		dt   array.DataType
	}{
		{"uint32", array.Uint32()},
		{"int64", array.Int64()},
		{"fixed_size_binary", array.FixedSizeBinary(6)},
		{"utf8", array.Utf8()},
		{"binary", array.Binary()},
	}
	for _, tc := range cases {
		dt := tc.dt
		t.Run(tc.name, func(t *testing.T) {
			b, err := NewBuilder(dt, 2)
			require.NoError(t, err)

			var push func(i int)
			switch dt.Kind {
			case array.KindUint32:
				push = func(i int) { b.PushValue(u32le(uint32(i * 3))) }
			case array.KindInt64:
				push = func(i int) {
					var v [8]byte
					binary.LittleEndian.PutUint64(v[:], uint64(int64(i)-5))
					b.PushValue(v[:])
				}
			case array.KindFixedSizeBinary:
				push = func(i int) {
					v := make([]byte, 6)
					v[0] = byte(i)
					b.PushValue(v)
				}
			default:
				push = func(i int) {
					if i%5 == 0 {
						b.PushValue(nil)
						return
					}
					b.PushValue([]byte{byte('a' + i%26), byte(i)})
				}
			}
			for i := 0; i < 11; i++ {
				push(i)
			}
			entries := b.Finish()

			blob := Serialize(dt, entries)
			got, err := Deserialize(dt, blob)
			require.NoError(t, err)
			require.Equal(t, entries, got)
		})
	}
}

func TestDeserializeRejectsTruncatedTrailer(t *testing.T) {
	_, err := Deserialize(array.Uint32(), []byte{1, 2, 3})
	require.Error(t, err)
}

func TestDeserializeRejectsOffsetMismatch(t *testing.T) {
	b, err := NewBuilder(array.Uint32(), 100)
	require.NoError(t, err)
	b.PushValue(u32le(1))
	b.PushValue(u32le(2))
	entries := b.Finish()
	blob := Serialize(array.Uint32(), entries)
	blob[len(blob)-4] = 99 // corrupt the declared entry count
	_, err = Deserialize(array.Uint32(), blob)
	require.Error(t, err)
}

func TestEvaluateEqAndBetween(t *testing.T) {
	b, _ := NewBuilder(array.Uint32(), 4)
	values := []uint32{0, 1, 2, 3, 10, 11, 12, 13, 100, 101}
	for _, v := range values {
		b.PushValue(u32le(v))
	}
	entries := b.Finish()
	cs := ColumnStats{Type: array.Uint32(), Entries: entries}
	lookup := func(col string) (ColumnStats, bool) {
		if col == "n" {
			return cs, true
		}
		return ColumnStats{}, false
	}

	got := Evaluate(Eq("n", u32le(11)), uint32(len(values)), lookup)
	require.True(t, got.Contains(4))
	require.True(t, got.Contains(5))
	require.True(t, got.Contains(6))
	require.True(t, got.Contains(7))
	require.False(t, got.Contains(0))
	require.False(t, got.Contains(8))

	got = Evaluate(Between("n", u32le(90), u32le(200)), uint32(len(values)), lookup)
	require.Equal(t, 2, got.Len())
	require.True(t, got.Contains(8))
	require.True(t, got.Contains(9))

	got = Evaluate(Ge("n", u32le(1000)), uint32(len(values)), lookup)
	require.True(t, got.IsEmpty())
}

func TestEvaluateMissingColumnKeepsAllRows(t *testing.T) {
	lookup := func(col string) (ColumnStats, bool) { return ColumnStats{}, false }
	got := Evaluate(Eq("missing", u32le(5)), 7, lookup)
	require.Equal(t, 7, got.Len())

	got = Evaluate(BloomFilter("anything", []byte{1}), 7, lookup)
	require.Equal(t, 7, got.Len())
}

func TestEvaluateAndOr(t *testing.T) {
	b, _ := NewBuilder(array.Uint32(), 2)
	for _, v := range []uint32{1, 2, 3, 4, 5, 6} {
		b.PushValue(u32le(v))
	}
	entries := b.Finish()
	cs := ColumnStats{Type: array.Uint32(), Entries: entries}
	lookup := func(col string) (ColumnStats, bool) { return cs, true }

	p := And(Ge("n", u32le(3)), Le("n", u32le(4)))
	got := Evaluate(p, 6, lookup)
	require.Equal(t, 2, got.Len())

	p2 := Or(Eq("n", u32le(1)), Eq("n", u32le(6)))
	got2 := Evaluate(p2, 6, lookup)
	require.True(t, got2.Contains(0))
	require.True(t, got2.Contains(5))
}
