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
	"encoding/binary"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/internal/array"
)

// EncodeSchema serializes a schema into the bytes stored at SchemaKey:
// a compact, self-describing binary encoding of the logical type tree.
func EncodeSchema(s array.Schema) []byte {
	var out []byte
	out = appendU16(out, uint16(len(s.Fields)))
	for _, f := range s.Fields {
		out = encodeField(out, f)
	}
	return out
}

func encodeField(out []byte, f array.Field) []byte {
	out = appendU16(out, uint16(len(f.Name)))
	out = append(out, f.Name...)
	if f.Nullable {
		out = append(out, 1)
	} else {
		out = append(out, 0)
	}
	return encodeType(out, f.Type)
}

func encodeType(out []byte, t array.DataType) []byte {
	out = append(out, byte(t.Kind))
	switch t.Kind {
	case array.KindFixedSizeBinary:
		out = appendU32(out, uint32(t.FixedSize))
	case array.KindList:
		out = encodeType(out, *t.Elem)
	case array.KindStruct:
		out = appendU16(out, uint16(len(t.Fields)))
		for _, f := range t.Fields {
			out = encodeField(out, f)
		}
	}
	return out
}

// DecodeSchema is the inverse of EncodeSchema. It returns
// archiveerr.ErrCorruptSchema if blob is truncated or names a Kind this
// build does not know.
func DecodeSchema(blob []byte) (array.Schema, error) {
	d := &decoder{buf: blob}
	n, err := d.u16()
	if err != nil {
		return array.Schema{}, err
	}
	fields := make([]array.Field, n)
	for i := range fields {
		f, err := d.field()
		if err != nil {
			return array.Schema{}, err
		}
		fields[i] = f
	}
	if d.pos != len(d.buf) {
		return array.Schema{}, archiveerr.Wrap(archiveerr.ErrCorruptSchema, "trailing bytes after schema")
	}
	return array.Schema{Fields: fields}, nil
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) u16() (uint16, error) {
	if d.pos+2 > len(d.buf) {
		return 0, archiveerr.Wrap(archiveerr.ErrCorruptSchema, "truncated schema")
	}
	v := binary.BigEndian.Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, archiveerr.Wrap(archiveerr.ErrCorruptSchema, "truncated schema")
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) byte() (byte, error) {
	if d.pos+1 > len(d.buf) {
		return 0, archiveerr.Wrap(archiveerr.ErrCorruptSchema, "truncated schema")
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, archiveerr.Wrap(archiveerr.ErrCorruptSchema, "truncated schema")
	}
	v := d.buf[d.pos : d.pos+n]
	d.pos += n
	return v, nil
}

func (d *decoder) field() (array.Field, error) {
	nameLen, err := d.u16()
	if err != nil {
		return array.Field{}, err
	}
	nameBytes, err := d.bytes(int(nameLen))
	if err != nil {
		return array.Field{}, err
	}
	nullableByte, err := d.byte()
	if err != nil {
		return array.Field{}, err
	}
	ty, err := d.dataType()
	if err != nil {
		return array.Field{}, err
	}
	return array.Field{Name: string(nameBytes), Type: ty, Nullable: nullableByte != 0}, nil
}

func (d *decoder) dataType() (array.DataType, error) {
	kindByte, err := d.byte()
	if err != nil {
		return array.DataType{}, err
	}
	kind := array.Kind(kindByte)
	switch kind {
	case array.KindFixedSizeBinary:
		size, err := d.u32()
		if err != nil {
			return array.DataType{}, err
		}
		return array.FixedSizeBinary(int(size)), nil
	case array.KindList:
		elem, err := d.dataType()
		if err != nil {
			return array.DataType{}, err
		}
		return array.List(elem), nil
	case array.KindStruct:
		n, err := d.u16()
		if err != nil {
			return array.DataType{}, err
		}
		fields := make([]array.Field, n)
		for i := range fields {
			f, err := d.field()
			if err != nil {
				return array.DataType{}, err
			}
			fields[i] = f
		}
		return array.Struct(fields...), nil
	case array.KindBool, array.KindInt8, array.KindInt16, array.KindInt32, array.KindInt64,
		array.KindUint8, array.KindUint16, array.KindUint32, array.KindUint64,
		array.KindFloat32, array.KindFloat64, array.KindTimestamp, array.KindBinary, array.KindUtf8:
		return array.DataType{Kind: kind}, nil
	default:
		return array.DataType{}, archiveerr.Wrapf(archiveerr.ErrCorruptSchema, "unknown type kind %d", kindByte)
	}
}
