// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nor

import (
	"github.com/hackpascal/goflashprog/erase"
	"github.com/hackpascal/goflashprog/id"
	"github.com/hackpascal/goflashprog/sfdp"
)

// PartFlag carries the database-declared per-part behaviour bits spec
// §4.12 lists (NO_SFDP, SFDP_4B_MODE, SR volatility, ...).
type PartFlag uint32

const (
	FlagNoSFDP PartFlag = 1 << iota
	FlagSFDP4BMode
	FlagSRVolatile
	FlagQPIPreSFDPFixup // chip may be latched in QPI/DPI before SFDP can be read
)

// A4BFlag qualifies how the part's 4-byte-addressing enable/disable
// sequence is issued (spec §4.6 "Addressing mode").
type A4BFlag uint32

const (
	A4BFlagWREN A4BFlag = 1 << iota // EN4B/EX4B must be preceded by WREN
	A4BFlagAlways
)

// A4BType selects the 3B<->4B transition method (spec §4.6).
type A4BType int

const (
	A4BNone A4BType = iota
	A4BOpcodeEN4B
	A4BExtendedAddrReg
	A4BBankReg
	A4BOpcodeSet4B
	A4BAlways4B
)

// WPRange is one selectable write-protect sub-range (spec §4.6 "wp_ranges").
type WPRange struct {
	Base, Size uint64
	FieldValue uint32 // value written to the WP status-register field to select this range
}

// OTPInfo declares a part's OTP window geometry and access protocol (spec
// §4.6 "OTP"). Opcodes default to the Winbond-style 48h/42h/44h family
// (original_source/flash/spi-nor/include/ufprog/spi-nor-opcode.h) when left
// zero.
type OTPInfo struct {
	StartIndex uint32
	Count      uint32
	Size       uint32

	ReadOpcode  uint8
	ProgOpcode  uint8
	EraseOpcode uint8

	// LockField, if Width>0, selects a status-register bit that marks an
	// OTP region permanently locked (generally irreversible, spec §4.6).
	LockField RegField
}

// RegField is a UI-reflection descriptor for one named status/config-register
// bitfield (spec §4.12 "register-field definitions (for UI reflection)").
type RegField struct {
	Name       string
	Shift      uint
	Width      uint
	Volatile   bool
}

// OpEntry is one (io_type, opcode, ndummy, nmode) triple as declared by the
// device database (spec §4.12), kept separately from SFDP-derived entries so
// a DB match can override or supplement SFDP.
type OpEntry struct {
	Type   sfdp.IOType
	Opcode uint8
	NDummy uint8
	NMode  uint8
}

// Part is one device-database entry (component C12, spec §4.12).
type Part struct {
	Name   string
	Vendor string

	IDs []id.ID // one or more candidate IDs, longest-prefix match wins

	Size uint64 // 0 => deduce from SFDP

	EraseTypes [4]erase.Type
	Regions    []erase.Region // nil => Uniform(Size, EraseTypes) at probe time

	Ops3B []OpEntry
	Ops4B []OpEntry

	QEType     sfdp.QEType
	QPIEnType  sfdp.QPISeqType
	QPIDisType sfdp.QPISeqType

	A4BType  A4BType
	A4BFlags A4BFlag

	SoftResetCaps sfdp.SoftResetCaps

	Flags PartFlag

	OTP *OTPInfo

	WPRanges []WPRange
	WPField  RegField

	RegFields []RegField

	VendorFlags uint32

	PageSize uint64 // 0 => take from SFDP BFPT

	// NumDies/DieSize declare a multi-die part (spec §4.6 "If multi-die,
	// select the die containing addr"); NumDies<=1 means single-die.
	NumDies uint32
	DieSize uint64
}

// validateWPRanges checks that no two declared write-protect ranges overlap
// (SPEC_FULL §4 C6). The database loader does not call it.
func (p *Part) validateWPRanges() bool {
	for i := range p.WPRanges {
		for j := i + 1; j < len(p.WPRanges); j++ {
			a, b := p.WPRanges[i], p.WPRanges[j]
			if a.Base < b.Base+b.Size && b.Base < a.Base+a.Size {
				return false
			}
		}
	}
	return true
}
