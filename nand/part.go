// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nand

import (
	"github.com/hackpascal/goflashprog/ecc"
	"github.com/hackpascal/goflashprog/id"
	"github.com/hackpascal/goflashprog/nand/memorg"
	"github.com/hackpascal/goflashprog/sfdp"
)

// PartFlag carries database-declared per-part behaviour bits (spec §4.12,
// the NAND analogue of nor.PartFlag).
type PartFlag uint32

const (
	FlagQuadCapable PartFlag = 1 << iota
	FlagContinuousRead
	FlagOnDieECC
)

// UIDInfo declares how a part's UID-OTP page is read and decoded (spec
// §4.8 "UID is read via the standard UID-OTP page with configurable
// repetition-majority decoding").
type UIDInfo struct {
	Page    uint32
	Size    uint32
	Repeats uint32 // number of repeated copies majority-voted bytewise; 0/1 = no voting
}

// Part is one NAND device-database entry (component C12), the NAND
// counterpart of nor.Part.
type Part struct {
	Name   string
	Vendor string

	IDs []id.ID

	Org memorg.Org

	NumDies uint32

	// ECC constructs this part's bound ECC engine. A part with on-die ECC
	// returns an *ecc.OnDie; an external-engine part returns *ecc.External.
	ECC func() ecc.Engine

	ReadIO    sfdp.IOType
	ProgramIO sfdp.IOType

	Flags PartFlag

	UID UIDInfo

	// BBMPages/BBMPositions locate the bad-block marker: page offsets
	// within a block to inspect (typically {0, last}) and the raw-page
	// byte offset to read/write at each (spec §4.8 "BBM check reads
	// designated OOB bytes on designated pages").
	BBMPages     []uint32
	BBMPositions []uint32
	BBMWholePage bool
}
