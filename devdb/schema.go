// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package devdb

// This file declares the on-disk JSON shape loaded by Store (spec §4.12
// "Database load is JSON from a device directory"). It intentionally stays
// close to nor.Part/nand.Part's field names so the decode step
// (jsonToNORPart/jsonToNANDPart) is closer to a field-for-field conversion
// than a DSL.

// jsonFile is one decoded device-database file: a list of NOR entries, a
// list of NAND entries, or both side by side, mirroring how
// original_source's per-vendor layout groups parts under one vendor
// directory regardless of memory type.
type jsonFile struct {
	NOR  []jsonNORPart  `json:"nor"`
	NAND []jsonNANDPart `json:"nand"`
}

type jsonOpEntry struct {
	Type   string `json:"io_type"`
	Opcode uint8  `json:"opcode"`
	NDummy uint8  `json:"ndummy"`
	NMode  uint8  `json:"nmode"`
}

type jsonEraseType struct {
	Size     uint64 `json:"size"`
	Opcode3B uint8  `json:"opcode_3b"`
	Opcode4B uint8  `json:"opcode_4b"`
	MaxMs    uint32 `json:"max_ms"`
}

type jsonEraseRegion struct {
	Base          uint64 `json:"base"`
	Size          uint64 `json:"size"`
	EraseTypeMask uint8  `json:"erase_type_mask"`
}

type jsonRegField struct {
	Name     string `json:"name"`
	Shift    uint   `json:"shift"`
	Width    uint   `json:"width"`
	Volatile bool   `json:"volatile"`
}

type jsonWPRange struct {
	Base       uint64 `json:"base"`
	Size       uint64 `json:"size"`
	FieldValue uint32 `json:"field_value"`
}

type jsonOTPInfo struct {
	StartIndex  uint32       `json:"start_index"`
	Count       uint32       `json:"count"`
	Size        uint32       `json:"size"`
	ReadOpcode  uint8        `json:"read_opcode"`
	ProgOpcode  uint8        `json:"prog_opcode"`
	EraseOpcode uint8        `json:"erase_opcode"`
	LockField   jsonRegField `json:"lock_field"`
}

type jsonSoftResetCaps struct {
	OpcodeF0h    bool `json:"opcode_f0h"`
	Opcode66h99h bool `json:"opcode_66h_99h"`
}

// jsonNORPart is one C6 device-database entry (spec §4.12).
type jsonNORPart struct {
	Name   string   `json:"name"`
	Vendor string   `json:"vendor"`
	IDs    []string `json:"ids"`

	Size uint64 `json:"size"`

	EraseTypes [4]jsonEraseType  `json:"erase_types"`
	Regions    []jsonEraseRegion `json:"regions"`

	Ops3B []jsonOpEntry `json:"ops_3b"`
	Ops4B []jsonOpEntry `json:"ops_4b"`

	QEType     string `json:"qe_type"`
	QPIEnType  string `json:"qpi_en_type"`
	QPIDisType string `json:"qpi_dis_type"`

	A4BType  string   `json:"a4b_type"`
	A4BFlags []string `json:"a4b_flags"`

	SoftReset jsonSoftResetCaps `json:"soft_reset"`

	Flags []string `json:"flags"`

	OTP *jsonOTPInfo `json:"otp"`

	WPRanges []jsonWPRange  `json:"wp_ranges"`
	WPField  jsonRegField   `json:"wp_field"`
	RegFields []jsonRegField `json:"reg_fields"`

	// VendorFlags is a free-form object decoded through mapstructure into
	// vendorFlagBits, the same role the teacher's AttrConv preset tokens
	// played for smartmontools' drivedb.h "-v" vendor-attribute hints.
	VendorFlags map[string]interface{} `json:"vendor_flags"`

	PageSize uint64 `json:"page_size"`

	NumDies uint32 `json:"num_dies"`
	DieSize uint64 `json:"die_size"`
}

type jsonOrg struct {
	NumChips      uint32 `json:"num_chips"`
	LUNsPerCS     uint32 `json:"luns_per_cs"`
	BlocksPerLUN  uint32 `json:"blocks_per_lun"`
	PagesPerBlock uint32 `json:"pages_per_block"`
	PageSize      uint32 `json:"page_size"`
	OOBSize       uint32 `json:"oob_size"`
	PlanesPerLUN  uint32 `json:"planes_per_lun"`
}

type jsonUIDInfo struct {
	Page    uint32 `json:"page"`
	Size    uint32 `json:"size"`
	Repeats uint32 `json:"repeats"`
}

// jsonECC selects and parameterizes a NAND part's bound ECC engine (spec
// §4.9's on-die/external split).
type jsonECC struct {
	Kind string `json:"kind"` // "ondie" or "external"

	// ondie
	Strength uint32 `json:"strength"`
	StepSize uint32 `json:"step_size"`

	// external
	BBMSwap bool `json:"bbm_swap"`
}

// jsonNANDPart is one C8 device-database entry (spec §4.12).
type jsonNANDPart struct {
	Name   string   `json:"name"`
	Vendor string   `json:"vendor"`
	IDs    []string `json:"ids"`

	Org jsonOrg `json:"org"`

	NumDies uint32 `json:"num_dies"`

	ECC jsonECC `json:"ecc"`

	ReadIO    string `json:"read_io"`
	ProgramIO string `json:"program_io"`

	Flags []string `json:"flags"`

	UID jsonUIDInfo `json:"uid"`

	BBMPages     []uint32 `json:"bbm_pages"`
	BBMPositions []uint32 `json:"bbm_positions"`
	BBMWholePage bool     `json:"bbm_whole_page"`
}
