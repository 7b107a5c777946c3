// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nand

// Bit-exact SPI-NAND opcodes (spec §6), grounded verbatim on
// original_source/flash/nand/spi-nand/include/ufprog/spi-nand-opcode.h.
const (
	opReset = 0xFF

	opReadID = 0x9F

	opGetFeature = 0x0F
	opSetFeature = 0x1F

	opPageReadToCache        = 0x13
	opReadFromCache          = 0x03
	opFastReadFromCache      = 0x0B
	opReadFromCacheDualOut   = 0x3B
	opReadFromCacheQuadOut   = 0x6B
	opReadFromCacheDualIO    = 0xBB
	opReadFromCacheQuadIO    = 0xEB
	opReadFromCacheRandom    = 0x30
	opReadFromCacheSeq       = 0x31
	opReadFromCacheEnd       = 0x3F

	opWriteDisable        = 0x04
	opWriteEnable         = 0x06
	opProgramLoad         = 0x02
	opProgramLoadQuadIn   = 0x32
	opProgramExecute      = 0x10

	opBlockErase = 0xD8

	opSelectDie = 0xC2
)

// Feature addresses and bit layout (original_source/flash/nand/spi-nand/
// include/ufprog/spi-nand.h).
const (
	featureBlockProtectAddr = 0xA0
	featureConfigAddr       = 0xB0
	featureStatusAddr       = 0xC0

	statusOIP         = 1 << 0
	statusWEL         = 1 << 1
	statusEraseFail   = 1 << 2
	statusProgramFail = 1 << 3
	statusECCShift    = 4
	statusECCMask     = 0x3 << statusECCShift
	statusCRBsy       = 1 << 7

	configQuadEn = 1 << 0
	configECCEn  = 1 << 4
	configOTPEn  = 1 << 6
	configOTPLock = 1 << 7
)
