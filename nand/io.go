// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nand

import (
	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/sfdp"
)

// ioWidths mirrors nor's io-type-to-bus-width table; SPI-NAND negotiates
// the same small set of read shapes (1-1-1 through 1-x-x) plus 1-1-x for
// PROGRAM_LOAD_QUAD_IN.
func ioWidths(t sfdp.IOType) (cmd, addr, data controller.BusWidth) {
	switch t {
	case sfdp.IO112:
		return controller.Width1, controller.Width1, controller.Width2
	case sfdp.IO122:
		return controller.Width1, controller.Width2, controller.Width2
	case sfdp.IO114:
		return controller.Width1, controller.Width1, controller.Width4
	case sfdp.IO144:
		return controller.Width1, controller.Width4, controller.Width4
	default:
		return controller.Width1, controller.Width1, controller.Width1
	}
}

// readOpFor resolves the declared read io_type to its READ_FROM_CACHE
// opcode variant (spec §4.8 "READ_FROM_CACHE_x (03h/0Bh/3Bh/6Bh/BBh/EBh)").
func (f *Flash) readOpFor(t sfdp.IOType) (opcode uint8, io sfdp.IOType) {
	switch t {
	case sfdp.IO112:
		return opReadFromCacheDualOut, t
	case sfdp.IO122:
		return opReadFromCacheDualIO, t
	case sfdp.IO114:
		return opReadFromCacheQuadOut, t
	case sfdp.IO144:
		return opReadFromCacheQuadIO, t
	default:
		return opFastReadFromCache, sfdp.IO111
	}
}

// progOpFor resolves the declared program io_type to PROGRAM_LOAD or its
// quad-input variant (spec §4.8 "PROGRAM_LOAD[_QUAD] (02h/32h)").
func (f *Flash) progOpFor(t sfdp.IOType) (opcode uint8, io sfdp.IOType) {
	if t == sfdp.IO114 && f.State.QuadEnabled {
		return opProgramLoadQuadIn, t
	}
	if f.Part != nil && f.Part.Flags&FlagQuadCapable != 0 && t == sfdp.IO114 {
		return opProgramLoadQuadIn, t
	}
	return opProgramLoad, sfdp.IO111
}
