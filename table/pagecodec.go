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
	"github.com/golang/snappy"

	"github.com/n42blockchain/archive/archiveerr"
)

// Every stored page value carries a one-byte codec marker ahead of the
// payload, so readers never need out-of-band knowledge of whether the
// writing side compressed. The page-offset index always describes the
// decoded payload, and the length checks in internal/array run against
// the decoded bytes.
const (
	pageCodecRaw    byte = 0
	pageCodecSnappy byte = 1
)

// compressMinBytes is the payload size below which compression is never
// attempted; tiny pages don't repay the codec marker churn.
const compressMinBytes = 512

func encodePage(payload []byte, compress bool) []byte {
	if compress && len(payload) >= compressMinBytes {
		packed := snappy.Encode(nil, payload)
		if len(packed) < len(payload) {
			return append([]byte{pageCodecSnappy}, packed...)
		}
	}
	return append([]byte{pageCodecRaw}, payload...)
}

func decodePage(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, archiveerr.Wrap(archiveerr.ErrCorruptPage, "empty page value")
	}
	switch stored[0] {
	case pageCodecRaw:
		return stored[1:], nil
	case pageCodecSnappy:
		payload, err := snappy.Decode(nil, stored[1:])
		if err != nil {
			return nil, archiveerr.Wrap(archiveerr.ErrCorruptPage, "snappy page payload does not decode")
		}
		return payload, nil
	default:
		return nil, archiveerr.Wrapf(archiveerr.ErrCorruptPage, "unknown page codec %d", stored[0])
	}
}
