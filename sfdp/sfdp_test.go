// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package sfdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDWordFieldAndBit(t *testing.T) {
	d := DWord(0b1010_1100)
	assert.Equal(t, uint32(0b1100), d.Field(0, 4))
	assert.Equal(t, uint32(0b1010), d.Field(4, 4))
	assert.True(t, d.Bit(2))
	assert.False(t, d.Bit(0))
}

func TestTableDW1IsOneIndexedAndOutOfRangeIsZero(t *testing.T) {
	tbl := &Table{DW: []DWord{10, 20, 30}}
	assert.Equal(t, DWord(10), tbl.DW1(1))
	assert.Equal(t, DWord(30), tbl.DW1(3))
	assert.Equal(t, DWord(0), tbl.DW1(0))
	assert.Equal(t, DWord(0), tbl.DW1(4))
}

// buildBasicBFPT assembles a minimal but internally consistent 16-DWORD
// BFPT: 16MB density, 1-1-1 fast read only, a single 4K erase type, a
// 256-byte page, and SR2-bit1-direct-write QE with no 4B capability.
func buildBasicBFPT() *Table {
	dw := make([]DWord, 17)

	// DW2: bit31=0 => density in bits, value+1.
	const sizeBits = 16 * 1024 * 1024 * 8
	dw[1] = DWord(sizeBits - 1)

	// DW3: 1-1-1 fast read opcode 0x0B, 8 dummy cycles.
	dw[2] = DWord(uint32(0x0B)<<8 | 8)

	// DW8: erase type 1 = 4KiB (log2=12), opcode 0x20.
	dw[7] = DWord(uint32(0x20)<<8 | 12)

	// DW10: typical erase time count=1 for type 1, multiplier=0.
	dw[9] = DWord(1)

	// DW11: page size log2=8 (256 bytes) at bits 7:4; PP time fields left
	// at 0.
	dw[10] = DWord(uint32(8) << 4)

	// DW15: QE type = SR2 bit1 direct write (value 4) at bits 22:20.
	dw[14] = DWord(uint32(4) << 20)

	tbl := &Table{DW: dw[:16]}
	return tbl
}

func TestParseBFPTDecodesDensityEraseAndPageSize(t *testing.T) {
	tbl := buildBasicBFPT()
	b := ParseBFPT(tbl)

	assert.Equal(t, uint64(16*1024*1024*8), b.SizeBits)
	assert.Equal(t, uint8(0x0B), b.IO.ThreeByte[IO111].Opcode)
	assert.Equal(t, uint8(8), b.IO.ThreeByte[IO111].NDummy)

	assert.Equal(t, uint8(0x20), b.EraseTypes[0].Opcode)
	assert.Equal(t, uint64(4096), b.EraseTypes[0].Size())
	assert.Greater(t, b.EraseTypes[0].MaxMs, uint32(0))

	assert.Equal(t, uint64(256), b.PageSize)
	assert.Equal(t, QESR2Bit1DirectWrite, b.QEType)
}

func TestParseBFPTOmitsUnsupportedFastReadModes(t *testing.T) {
	tbl := buildBasicBFPT()
	b := ParseBFPT(tbl)

	_, ok := b.IO.ThreeByte[IO144]
	assert.False(t, ok)
	_, ok = b.IO.ThreeByte[IO444]
	assert.False(t, ok)
}
