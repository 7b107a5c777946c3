// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nor

// Bit-exact SPI-NOR opcodes (spec §6), grounded verbatim on
// original_source/flash/spi-nor/include/ufprog/spi-nor-opcode.h.
const (
	opWREN  = 0x06
	opWRDI  = 0x04
	opVWREN = 0x50

	opReadID      = 0x9F
	opReadIDMulti = 0xAF
	opReadSFDP    = 0x5A

	opRDSR = 0x05
	opRDCR = 0x35
	opRDSR3 = 0x15
	opRDBank = 0x16
	opRDEAR  = 0xC8

	opWRSR  = 0x01
	opWRCR  = 0x31
	opWRSR3 = 0x11
	opWRBank = 0x17
	opWREAR  = 0xC5

	opRead        = 0x03
	opFastRead    = 0x0B
	opFastReadDO  = 0x3B
	opFastReadDIO = 0xBB
	opFastReadQO  = 0x6B
	opFastReadQIO = 0xEB

	op4BFastRead    = 0x0C
	op4BFastReadDO  = 0x3C
	op4BFastReadDIO = 0xBC
	op4BFastReadQO  = 0x6C
	op4BFastReadQIO = 0xEC

	opPageProg     = 0x02
	opPageProgDI   = 0xA2
	opPageProgQI   = 0x32
	op4BPageProg   = 0x12
	op4BPageProgQI = 0x34

	opSectorErase   = 0x20
	opSectorErase32K = 0x52
	opBlockErase    = 0xD8
	opChipErase     = 0xC7

	op4BSectorErase = 0x21
	op4BBlockErase  = 0xDC

	opEN4B = 0xB7
	opEX4B = 0xE9

	opEnQPI38h = 0x38
	opExQPIFFh = 0xFF
	opEnQPI35h = 0x35
	opExQPIF5h = 0xF5

	opResetEnable = 0x66
	opReset       = 0x99
	opResetF0h    = 0xF0

	opSelectDie = 0xC2
)

// srBusyMask is the status register's busy bit (bit 0).
const srBusyMask = 0x01

// srWELMask is the status register's write-enable-latch bit (bit 1).
const srWELMask = 0x02
