// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package sfdp

// ParseFourBAIT fills in 4-byte-addressing opcode variants for the
// io_types bfpt already declared in 3-byte form, and 4-byte erase-type
// variants, per spec §4.4 "4BAIT fill" (only meaningful when size > 16 MiB).
func ParseFourBAIT(t *Table, bfpt *BFPT) {
	if t == nil {
		return
	}

	dw1 := t.DW1(1)

	type ioBit struct {
		typ IOType
		bit uint
	}
	supported := []ioBit{
		{IO111, 0}, {IO112, 1}, {IO122, 2}, {IO144, 3}, {IO114, 4},
		{IO222, 5}, {IO444, 6}, {IO188, 13}, {IO118, 14}, {IO888, 15},
	}
	for _, s := range supported {
		if !dw1.Bit(s.bit) {
			continue
		}
		if op, ok := bfpt.IO.ThreeByte[s.typ]; ok {
			bfpt.IO.FourByte[s.typ] = op
		} else {
			bfpt.IO.FourByte[s.typ] = OpInfo{}
		}
	}

	// DW2: per-erase-type 4-byte opcodes, one byte each, same ordering as
	// BFPT's erase type table.
	dw2 := t.DW1(2)
	for i := 0; i < 4; i++ {
		if bfpt.EraseTypes[i].SizeLog2 == 0 {
			continue
		}
		op := uint8(dw2.Field(uint(8*i), 8))
		if op != 0 && op != 0xFF {
			bfpt.EraseTypes[i].Opcode = op
		}
	}
}
