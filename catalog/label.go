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

package catalog

import (
	"encoding/binary"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/tableid"
)

// FinalizedHead names the highest block an upstream source has declared
// final, if any.
type FinalizedHead struct {
	Number uint64
	Hash   []byte
}

// DatasetLabel is the single per-dataset row every dataset-mutating
// transaction contends on: a kind tag, a version bumped by every commit
// (the optimistic-concurrency token), and an optional finalized head.
type DatasetLabel struct {
	Kind      tableid.DatasetKind
	Version   tableid.DatasetVersion
	Finalized *FinalizedHead
}

// LabelKey returns id's bytes, the literal kv.CFDatasets key.
func LabelKey(id tableid.DatasetId) []byte {
	out := make([]byte, len(id))
	copy(out, id[:])
	return out
}

// EncodeLabel serializes l for storage under LabelKey.
func EncodeLabel(l DatasetLabel) []byte {
	out := append([]byte(nil), l.Kind[:]...)
	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], uint64(l.Version))
	out = append(out, tmp8[:]...)
	if l.Finalized == nil {
		return append(out, 0)
	}
	out = append(out, 1)
	binary.LittleEndian.PutUint64(tmp8[:], l.Finalized.Number)
	out = append(out, tmp8[:]...)
	return appendU16Bytes(out, l.Finalized.Hash)
}

// DecodeLabel is the inverse of EncodeLabel.
func DecodeLabel(blob []byte) (DatasetLabel, error) {
	if len(blob) < 16+8+1 {
		return DatasetLabel{}, archiveerr.Wrap(archiveerr.ErrCorruptKey, "truncated dataset label")
	}
	var l DatasetLabel
	copy(l.Kind[:], blob[:16])
	l.Version = tableid.DatasetVersion(binary.LittleEndian.Uint64(blob[16:24]))
	marker := blob[24]
	rest := blob[25:]
	switch marker {
	case 0:
		if len(rest) != 0 {
			return DatasetLabel{}, archiveerr.Wrap(archiveerr.ErrCorruptKey, "trailing bytes after unfinalized label")
		}
		return l, nil
	case 1:
		if len(rest) < 10 {
			return DatasetLabel{}, archiveerr.Wrap(archiveerr.ErrCorruptKey, "truncated finalized head")
		}
		number := binary.LittleEndian.Uint64(rest[:8])
		hashLen := binary.LittleEndian.Uint16(rest[8:10])
		hashBytes := rest[10:]
		if len(hashBytes) != int(hashLen) {
			return DatasetLabel{}, archiveerr.Wrap(archiveerr.ErrCorruptKey, "truncated finalized head hash")
		}
		l.Finalized = &FinalizedHead{Number: number, Hash: append([]byte(nil), hashBytes...)}
		return l, nil
	default:
		return DatasetLabel{}, archiveerr.Wrapf(archiveerr.ErrCorruptKey, "unknown dataset label marker %d", marker)
	}
}
