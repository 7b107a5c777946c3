// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package memorg

import "github.com/hackpascal/goflashprog/status"

// ByteKind classifies one byte position in a page layout (spec §3 "NAND
// page layout").
type ByteKind int

const (
	KindUnused ByteKind = iota
	KindData
	KindOobData
	KindOobFree
	KindEccParity
	KindMarker
)

// Entry is one run of count bytes of the same kind.
type Entry struct {
	Count uint32
	Kind  ByteKind
}

// Layout is an ordered sequence of entries summing to the raw page size
// (data+OOB). Two layouts coexist: the raw (on-chip byte order) and the
// canonical (all data contiguous, then all OOB) layout.
type Layout []Entry

// Size returns the sum of every entry's count.
func (l Layout) Size() uint32 {
	var n uint32
	for _, e := range l {
		n += e.Count
	}
	return n
}

// ToMap emits the byte-type code for every offset in the layout (spec §4.7
// "page_layout_to_map"), a slice of length Size().
func (l Layout) ToMap() []ByteKind {
	out := make([]ByteKind, 0, l.Size())
	for _, e := range l {
		for i := uint32(0); i < e.Count; i++ {
			out = append(out, e.Kind)
		}
	}
	return out
}

// FillFlag controls how FillByLayout substitutes bytes that do not come
// from a real source offset (spec §4.7 "fill_page_by_layout").
type FillFlag uint32

const (
	FillNonDataFF FillFlag = 1 << iota
	FillOob
	FillUnprotectedOob
	FillUnused
	FillEccParity
	SrcSkipNonData
)

// offsetsByKind groups a layout's byte offsets by kind, in layout order.
func offsetsByKind(l Layout) map[ByteKind][]int {
	out := map[ByteKind][]int{}
	off := 0
	for _, e := range l {
		for i := uint32(0); i < e.Count; i++ {
			out[e.Kind] = append(out[e.Kind], off)
			off++
		}
	}
	return out
}

// FillByLayout walks dstLayout, gathering source bytes from src at the
// offsets srcLayout assigns to the matching kind (a byte-for-byte
// conversion between two layouts of the same total size), or substituting
// 0xFF per flags when the destination kind has no corresponding source
// offset or flags request a forced fill (spec §4.7).
func FillByLayout(dstLayout, srcLayout Layout, src []byte, flags FillFlag) ([]byte, error) {
	if dstLayout.Size() != srcLayout.Size() {
		return nil, status.New(status.InvalidParameter, "memorg.FillByLayout: layout size mismatch")
	}
	if int(srcLayout.Size()) > len(src) {
		return nil, status.New(status.InvalidParameter, "memorg.FillByLayout: source buffer too short")
	}

	srcOffsets := offsetsByKind(srcLayout)
	cursor := map[ByteKind]int{}

	dst := make([]byte, dstLayout.Size())
	pos := 0
	for _, e := range dstLayout {
		for i := uint32(0); i < e.Count; i++ {
			dst[pos] = fillByte(e.Kind, src, srcOffsets, cursor, flags)
			pos++
		}
	}
	return dst, nil
}

func fillByte(kind ByteKind, src []byte, srcOffsets map[ByteKind][]int, cursor map[ByteKind]int, flags FillFlag) byte {
	forceFF := false
	switch kind {
	case KindUnused:
		forceFF = flags&FillUnused != 0
	case KindEccParity:
		forceFF = flags&FillEccParity != 0
	case KindOobFree:
		forceFF = flags&FillOob != 0
	case KindOobData:
		forceFF = flags&FillUnprotectedOob != 0
	case KindMarker:
		forceFF = flags&FillNonDataFF != 0
	}

	offs := srcOffsets[kind]
	idx := cursor[kind]
	if !forceFF && idx < len(offs) {
		cursor[kind] = idx + 1
		return src[offs[idx]]
	}
	cursor[kind] = idx + 1
	return 0xFF
}

// CanonicalFromRaw converts a full raw page into canonical order (all data
// bytes contiguous, then all OOB bytes) given the ECC engine's declared raw
// and canonical layouts (spec invariant 7).
func CanonicalFromRaw(raw []byte, rawLayout, canonicalLayout Layout) ([]byte, error) {
	return FillByLayout(canonicalLayout, rawLayout, raw, 0)
}

// RawFromCanonical is the inverse of CanonicalFromRaw.
func RawFromCanonical(canonical []byte, rawLayout, canonicalLayout Layout) ([]byte, error) {
	return FillByLayout(rawLayout, canonicalLayout, canonical, 0)
}
