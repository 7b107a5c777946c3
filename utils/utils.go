// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package utils holds miscellaneous helpers shared by the flash stack:
// byte-order plumbing, human-readable size formatting and power-of-two bit
// math used throughout the erase planner and NAND memory-organization code.
package utils

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"unsafe"
)

// NativeEndian is the host's native byte order, used only for scratch
// buffers that never cross the wire (every on-chip structure the flash
// stack decodes is explicitly little-endian regardless of host order).
var NativeEndian binary.ByteOrder

func init() {
	var i uint32 = 1
	b := (*[4]byte)(unsafe.Pointer(&i))
	if b[0] == 1 {
		NativeEndian = binary.LittleEndian
	} else {
		NativeEndian = binary.BigEndian
	}
}

// FormatBytes formats a byte quantity using human-readable units (KB, MB, ...).
func FormatBytes(v uint64) string {
	suffixes := [...]string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	d := uint64(1)
	i := 0

	for ; i < len(suffixes)-1; i++ {
		if v >= d*1000 {
			d *= 1000
		} else {
			break
		}
	}

	if i == 0 {
		return fmt.Sprintf("%d %s", v, suffixes[i])
	}
	return fmt.Sprintf("%.3g %s", float64(v)/float64(d), suffixes[i])
}

// Log2 returns the position of the most significant set bit, i.e. log2 of x
// rounded down. Log2(0) is 0.
func Log2(x uint) int {
	if x == 0 {
		return 0
	}
	return bits.Len(x) - 1
}

// IsPow2 reports whether x is a nonzero power of two.
func IsPow2(x uint64) bool {
	return x != 0 && x&(x-1) == 0
}

// AlignDown rounds addr down to the nearest multiple of align (align must be
// a power of two).
func AlignDown(addr, align uint64) uint64 {
	return addr &^ (align - 1)
}

// AlignUp rounds addr up to the nearest multiple of align (align must be a
// power of two).
func AlignUp(addr, align uint64) uint64 {
	return AlignDown(addr+align-1, align)
}
