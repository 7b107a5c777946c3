// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ecc

import "github.com/hackpascal/goflashprog/nand/memorg"

// OnDie models a part's internal ECC engine: the chip itself encodes on
// program and decodes on read, so EncodePage/DecodePage are no-ops and the
// actual status comes from the feature register (spec §4.9).
type OnDie struct {
	PageSize uint32
	OOBSize  uint32
	Strength uint32
	StepSize uint32
	BBM      BBMConfig
}

func (o *OnDie) Config() Config {
	return Config{StepSize: o.StepSize, StrengthPerStep: o.Strength}
}

func (o *OnDie) BBMConfig() BBMConfig { return o.BBM }

func (o *OnDie) EncodePage(buf []byte) error { return nil }

func (o *OnDie) DecodePage(buf []byte) (Result, error) { return Result{}, nil }

// layout is identical for raw and canonical: on-die ECC hides parity bytes
// entirely from the host, so there is nothing to reorder.
func (o *OnDie) layout() memorg.Layout {
	return memorg.Layout{
		{Count: o.PageSize, Kind: memorg.KindData},
		{Count: o.OOBSize, Kind: memorg.KindOobFree},
	}
}

func (o *OnDie) PageLayout(canonical bool) memorg.Layout { return o.layout() }

func (o *OnDie) ConvertPageLayout(dst, src []byte, fromCanonical bool) error {
	n := copy(dst, src)
	_ = n
	return nil
}

// DecodeFeatureStatus translates the SPI-NAND status feature register's
// ECC bits (bits 5:4, widened in some parts) into a Result (spec §4.8 "ECC
// status (bits 5:4 of the status feature...) decodes to {clean, corrected,
// uncorrectable}").
func (o *OnDie) DecodeFeatureStatus(eccBits uint8) Result {
	switch eccBits {
	case 0:
		return Result{}
	case 1:
		return Result{Corrected: true, StepBitflips: []int{1}}
	case 2:
		return Result{Uncorrectable: true}
	case 3:
		// Some parts widen the field; 3 means "corrected, at or near max
		// bitflip count" rather than uncorrectable.
		return Result{Corrected: true, StepBitflips: []int{int(o.Strength)}}
	default:
		return Result{Uncorrectable: true}
	}
}

var _ FeatureStatusDecoder = (*OnDie)(nil)
