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

package array

import (
	"sort"

	"github.com/n42blockchain/archive/archiveerr"
	"github.com/n42blockchain/archive/rowrange"
)

// PageSource supplies a buffer's page-offset index, in whatever logical
// unit the writer emitted it (elements for native/offsets buffers, bits
// for bitmask/nullmask buffers), and fetches individual pages on demand.
// Implementations may amortize sequential access (for example via a KV
// cursor); this package only requires random ReadPage(idx) and visits
// pages in increasing order, so such an amortization can pay off.
type PageSource interface {
	PageIndex() []uint32
	ReadPage(idx int) ([]byte, error)
}

// bisectOffsets returns the page index i such that offsets[i] <= pos <
// offsets[i+1]. The second return is false if pos is out of bounds.
func bisectOffsets(offsets []uint32, pos uint32) (int, bool) {
	if len(offsets) < 2 || pos >= offsets[len(offsets)-1] {
		return 0, false
	}
	i := sort.Search(len(offsets)-1, func(i int) bool { return offsets[i+1] > pos })
	return i, true
}

// NativeReader reads a fixed-width element buffer (native<T> or the i32
// offsets buffer treated generically) back, caching the most recently
// fetched page for sequential scans.
type NativeReader struct {
	src   PageSource
	width int
	index []uint32

	curPage      int
	curPageData  []byte
	curPageValid bool
}

// NewNativeReader wraps src as a fixed-width element reader.
func NewNativeReader(src PageSource, width int) *NativeReader {
	return &NativeReader{src: src, width: width, index: src.PageIndex()}
}

// Len returns the buffer's total element count.
func (r *NativeReader) Len() uint32 {
	if len(r.index) == 0 {
		return 0
	}
	return r.index[len(r.index)-1]
}

func (r *NativeReader) gotoPage(page int) error {
	if r.curPageValid && r.curPage == page {
		return nil
	}
	data, err := r.src.ReadPage(page)
	if err != nil {
		return err
	}
	expected := int(r.index[page+1]-r.index[page]) * r.width
	if len(data) != expected {
		return archiveerr.Wrapf(archiveerr.ErrCorruptPage, "buffer page %d: expected %d bytes, got %d", page, expected, len(data))
	}
	r.curPage, r.curPageData, r.curPageValid = page, data, true
	return nil
}

// ReadSlice reads the half-open element range [offset, offset+length).
func (r *NativeReader) ReadSlice(offset, length uint32) ([]byte, error) {
	out := make([]byte, 0, int(length)*r.width)
	pos, end := offset, offset+length
	for pos < end {
		page, ok := bisectOffsets(r.index, pos)
		if !ok {
			return nil, archiveerr.Wrap(archiveerr.ErrCorruptPage, "element offset out of bounds")
		}
		if err := r.gotoPage(page); err != nil {
			return nil, err
		}
		pageStart, pageEnd := r.index[page], r.index[page+1]
		segEnd := end
		if pageEnd < segEnd {
			segEnd = pageEnd
		}
		beg := int(pos-pageStart) * r.width
		fin := int(segEnd-pageStart) * r.width
		out = append(out, r.curPageData[beg:fin]...)
		pos = segEnd
	}
	return out, nil
}

// ReadRanges reads a sorted, disjoint set of element ranges and returns
// their concatenation, walking the range list and the page list in
// lockstep so each page is fetched at most once.
func (r *NativeReader) ReadRanges(ranges []rowrange.Range) ([]byte, error) {
	var out []byte
	for _, rg := range ranges {
		chunk, err := r.ReadSlice(rg.Start, uint32(rg.Len()))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// BitmaskReader reads a bit-packed buffer (Boolean's bitmask, or a
// materialized nullmask) back into a []bool, caching the most recently
// fetched page.
type BitmaskReader struct {
	src   PageSource
	index []uint32

	curPage      int
	curPageData  []byte
	curPageValid bool
}

// NewBitmaskReader wraps src as a bit reader.
func NewBitmaskReader(src PageSource) *BitmaskReader {
	return &BitmaskReader{src: src, index: src.PageIndex()}
}

// Len returns the buffer's total bit count.
func (r *BitmaskReader) Len() uint32 {
	if len(r.index) == 0 {
		return 0
	}
	return r.index[len(r.index)-1]
}

func (r *BitmaskReader) gotoPage(page int) error {
	if r.curPageValid && r.curPage == page {
		return nil
	}
	data, err := r.src.ReadPage(page)
	if err != nil {
		return err
	}
	r.curPage, r.curPageData, r.curPageValid = page, data, true
	return nil
}

// ReadBits reads the half-open bit range [offset, offset+length) into a
// slice of booleans.
func (r *BitmaskReader) ReadBits(offset, length uint32) ([]bool, error) {
	out := make([]bool, 0, length)
	pos, end := offset, offset+length
	for pos < end {
		page, ok := bisectOffsets(r.index, pos)
		if !ok {
			return nil, archiveerr.Wrap(archiveerr.ErrCorruptPage, "bit offset out of bounds")
		}
		if err := r.gotoPage(page); err != nil {
			return nil, err
		}
		pageStart, pageEnd := r.index[page], r.index[page+1]
		segEnd := end
		if pageEnd < segEnd {
			segEnd = pageEnd
		}
		for bit := pos; bit < segEnd; bit++ {
			local := bit - pageStart
			byteVal := r.curPageData[local>>3]
			out = append(out, (byteVal>>uint(local&7))&1 == 1)
		}
		pos = segEnd
	}
	return out, nil
}

// ReadRanges reads a sorted, disjoint set of bit ranges and returns their
// concatenation.
func (r *BitmaskReader) ReadRanges(ranges []rowrange.Range) ([]bool, error) {
	var out []bool
	for _, rg := range ranges {
		chunk, err := r.ReadBits(rg.Start, uint32(rg.Len()))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}
