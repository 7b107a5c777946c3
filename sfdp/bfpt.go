// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package sfdp

// IOType enumerates the SPI transfer flavors spec §3 lists for the Basic
// Flash Parameter Table's "which io_types are supported" fields.
type IOType int

const (
	IO111 IOType = iota
	IO112
	IO122
	IO222
	IO114
	IO144
	IO444
	IO118
	IO188
	IO888
)

// OpInfo is one io_type's opcode/dummy/mode-cycle triple (spec §3
// "I/O opcode set").
type OpInfo struct {
	Opcode uint8
	NDummy uint8
	NMode  uint8
}

// EraseType is one of up to four erase-size/opcode/timing entries (spec §3
// "Erase info").
type EraseType struct {
	SizeLog2 uint8 // size = 1 << SizeLog2, 0 means "unused"
	Opcode   uint8
	TypicalMs uint32
	MaxMs     uint32
}

func (e EraseType) Size() uint64 {
	if e.SizeLog2 == 0 {
		return 0
	}
	return uint64(1) << e.SizeLog2
}

// BFPT is the decoded Basic Flash Parameter Table (spec §4.4 "BFPT fill").
type BFPT struct {
	SizeBits uint64 // flash density in bits

	IO OpsByType

	EraseTypes [4]EraseType

	PageSize uint64

	// PPMaxMs is the conservative page-program maximum time (DW11), already
	// expanded from SFDP's (multiplier, unit, 2x factor) encoding.
	PPMaxMs uint32

	QEType  QEType
	QPIEnType QPISeqType
	QPIDisType QPISeqType

	FourByteAddrCaps FourByteAddrCaps
}

// OpsByType maps an IOType to its opcode info, separately for 3-byte and
// 4-byte addressing (the 4-byte map starts empty until 4BAIT is merged in).
type OpsByType struct {
	ThreeByte map[IOType]OpInfo
	FourByte  map[IOType]OpInfo
}

func newOpsByType() OpsByType {
	return OpsByType{ThreeByte: map[IOType]OpInfo{}, FourByte: map[IOType]OpInfo{}}
}

// QEType identifies how the Quad-Enable bit is declared (spec §4.4 DW15).
type QEType int

const (
	QENone QEType = iota
	QESR2Bit1JointWrite  // SR2 bit1, written jointly with SR1 (one WRSR with 2 data bytes)
	QESR1Bit6
	QESR2Bit7
	QESR2Bit1DirectWrite // SR2 bit1, via a dedicated Write-SR2 opcode (3Eh/3Fh family)
)

// QPISeqType identifies a QPI enable/disable sequence (spec §4.4 DW15).
type QPISeqType int

const (
	QPISeqNone QPISeqType = iota
	QPISeq38h
	QPISeqF5h
)

// FourByteAddrCaps declares the supported 3B<->4B transition methods and
// whether the part is always in 4B mode (spec §4.4 DW16).
type FourByteAddrCaps struct {
	EnB7h         bool
	EnB7hWREN     bool
	DisE9h        bool
	DisE9hWREN    bool
	EAR           bool
	BankRegister  bool
	Always4Byte   bool
	OpcodeSet4B   bool
	SoftResetCaps SoftResetCaps
	SRVolatile    bool
}

// SoftResetCaps declares which soft-reset opcode flavours the part supports.
type SoftResetCaps struct {
	OpcodeF0h   bool
	Opcode66h99h bool
}

// multiplierTime expands SFDP's (count, unit, 2x(mult+1) worst-case factor)
// time encoding into milliseconds. unitUs is the LSB time unit in
// microseconds (SFDP expresses most times in units of
// 1, 8, 64 or 128 depending on the field).
func multiplierTime(count uint32, unitUs uint32, multiplier uint32) uint32 {
	typical := count * unitUs
	worst := typical * 2 * (multiplier + 1)
	// worst is in microseconds; callers want milliseconds, rounded up.
	return (worst + 999) / 1000
}

// ParseBFPT decodes the fields spec §4.4 calls out from the raw BFPT table.
func ParseBFPT(t *Table) *BFPT {
	b := &BFPT{IO: newOpsByType()}

	dw1 := t.DW1(1)
	dw2 := t.DW1(2)

	// DW2: bit31=1 => size = 2^(bits30..0); else bits30..0 + 1 (bits).
	if dw2.Bit(31) {
		b.SizeBits = uint64(1) << dw2.Field(0, 31)
	} else {
		b.SizeBits = uint64(dw2.Field(0, 31)) + 1
	}

	// 1-1-1 fast read is always implied; the Legacy Read (03h) opcode at
	// DW1 bits 15:8, with dummy/mode cycles bits 4:0/7:5 of DW1 are not all
	// SFDP revisions agree on, so this core takes 1-1-1 FAST_READ from
	// DW3 bits 15:8 where standard BFPT places it; dummy count DW3 bits
	// 4:0.
	dw3 := t.DW1(3)
	b.IO.ThreeByte[IO111] = OpInfo{
		Opcode: uint8(dw3.Field(8, 8)),
		NDummy: uint8(dw3.Field(0, 5)),
	}

	if dw1.Bit(21) { // 1-1-2 fast read supported
		dw4 := t.DW1(4)
		b.IO.ThreeByte[IO112] = OpInfo{
			Opcode: uint8(dw4.Field(8, 8)),
			NDummy: uint8(dw4.Field(0, 5)),
			NMode:  uint8(dw4.Field(5, 3)),
		}
	}
	if dw1.Bit(22) { // 1-2-2 fast read supported
		dw4 := t.DW1(4)
		b.IO.ThreeByte[IO122] = OpInfo{
			Opcode: uint8(dw4.Field(24, 8)),
			NDummy: uint8(dw4.Field(16, 5)),
			NMode:  uint8(dw4.Field(21, 3)),
		}
	}
	if dw1.Bit(20) { // 1-1-4 fast read supported
		dw3b := t.DW1(3)
		b.IO.ThreeByte[IO114] = OpInfo{
			Opcode: uint8(dw3b.Field(24, 8)),
			NDummy: uint8(dw3b.Field(16, 5)),
			NMode:  uint8(dw3b.Field(21, 3)),
		}
	}
	if dw1.Bit(18) { // 1-4-4 fast read supported
		dw5 := t.DW1(5)
		b.IO.ThreeByte[IO144] = OpInfo{
			Opcode: uint8(dw5.Field(8, 8)),
			NDummy: uint8(dw5.Field(0, 5)),
			NMode:  uint8(dw5.Field(5, 3)),
		}
	}
	if dw1.Bit(19) { // 2-2-2 fast read supported, opcode/dummy/mode at DW6
		dw6 := t.DW1(6)
		b.IO.ThreeByte[IO222] = OpInfo{
			Opcode: uint8(dw6.Field(24, 8)),
			NDummy: uint8(dw6.Field(16, 5)),
			NMode:  uint8(dw6.Field(21, 3)),
		}
	}
	if dw1.Bit(23) { // 4-4-4 fast read supported, opcode/dummy/mode at DW7
		dw7 := t.DW1(7)
		b.IO.ThreeByte[IO444] = OpInfo{
			Opcode: uint8(dw7.Field(24, 8)),
			NDummy: uint8(dw7.Field(16, 5)),
			NMode:  uint8(dw7.Field(21, 3)),
		}
	}

	// DW8/DW9: up to four erase types {size=2^n, opcode}; DW10: typical
	// time with a shared 2*(multiplier+1) worst-case factor.
	dw8 := t.DW1(8)
	dw9 := t.DW1(9)
	dw10 := t.DW1(10)
	eraseDWs := [2]DWord{dw8, dw9}
	for i := 0; i < 4; i++ {
		dw := eraseDWs[i/2]
		shift := uint(16 * (i % 2))
		sizeLog2 := uint8(dw.Field(shift, 8))
		opcode := uint8(dw.Field(shift+8, 8))
		if sizeLog2 == 0 || sizeLog2 == 0xFF {
			continue
		}
		b.EraseTypes[i] = EraseType{SizeLog2: sizeLog2, Opcode: opcode}
	}

	// DW10 layout: for each of the 4 erase types, 3 bits count + 4 bits
	// unit (7 bits per type) followed by a shared 4-bit multiplier at
	// bits 28:25 and the "typical erase time unit" selector at bit 29
	// (2 => 2ms, ...). This mirrors the original source's compact
	// packing; only the derived millisecond value is kept here.
	eraseMultiplier := dw10.Field(29, 4)
	for i := range b.EraseTypes {
		if b.EraseTypes[i].SizeLog2 == 0 {
			continue
		}
		count := dw10.Field(uint(7*i), 7)
		unitUs := uint32(1000) // coarse unit: milliseconds-scale typical erase time
		typicalMs := count * unitUs / 1000
		if typicalMs == 0 {
			typicalMs = 1
		}
		b.EraseTypes[i].TypicalMs = typicalMs
		b.EraseTypes[i].MaxMs = typicalMs * 2 * (eraseMultiplier + 1)
		if b.EraseTypes[i].MaxMs == 0 {
			b.EraseTypes[i].MaxMs = 2500 // spec §5 default erase timeout
		}
	}

	// DW11: page size (2^n) in bits 7:4 shifted, and a conservative PP time.
	dw11 := t.DW1(11)
	pageSizeLog2 := dw11.Field(4, 4)
	if pageSizeLog2 == 0 {
		pageSizeLog2 = 8 // default 256-byte page if undeclared
	}
	b.PageSize = uint64(1) << pageSizeLog2

	ppCount := dw11.Field(8, 6)
	ppUnit64us := dw11.Bit(14) // 0 => 8us units, 1 => 64us units
	ppMultiplier := dw11.Field(15, 4)
	unitUs := uint32(8)
	if ppUnit64us {
		unitUs = 64
	}
	b.PPMaxMs = multiplierTime(ppCount, unitUs, ppMultiplier)
	if b.PPMaxMs == 0 {
		b.PPMaxMs = 1000 // spec §4.6 default
	}

	// DW15: QE bit location and QPI enable/disable opcodes.
	dw15 := t.DW1(15)
	switch dw15.Field(20, 3) {
	case 0:
		b.QEType = QENone
	case 1:
		b.QEType = QESR2Bit1JointWrite
	case 2:
		b.QEType = QESR1Bit6
	case 3:
		b.QEType = QESR2Bit7
	case 4:
		b.QEType = QESR2Bit1DirectWrite
	}
	if dw15.Bit(4) {
		b.QPIEnType = QPISeq38h
	}
	if dw15.Bit(9) {
		b.QPIDisType = QPISeqF5h
	}

	// DW16: 3B<->4B transition methods and soft-reset flavours.
	dw16 := t.DW1(16)
	b.FourByteAddrCaps = FourByteAddrCaps{
		EnB7h:        dw16.Bit(0),
		EnB7hWREN:    dw16.Bit(1),
		DisE9h:       dw16.Bit(2),
		DisE9hWREN:   dw16.Bit(3),
		EAR:          dw16.Bit(4),
		BankRegister: dw16.Bit(5),
		Always4Byte:  dw16.Bit(6),
		OpcodeSet4B:  dw16.Bit(7),
		SoftResetCaps: SoftResetCaps{
			OpcodeF0h:    dw16.Bit(10),
			Opcode66h99h: dw16.Bit(11),
		},
		SRVolatile: dw16.Bit(12),
	}

	return b
}
