// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package sfdp

import "github.com/hackpascal/goflashprog/status"

// SMPTRegion is one erase region decoded from the Sector Map Parameter
// Table: size = 256*(n+1), with an allowed-erase-types bitset (spec §4.4
// "SMPT").
type SMPTRegion struct {
	Size           uint64
	EraseTypesMask uint8 // bit i set => EraseTypes[i] usable in this region
}

// ReadCmd is one command of an SMPT detection sequence: issue opcode,
// inspect the read-back value against mask/match to choose a branch.
type ReadCmd struct {
	Opcode uint8
	Mask   uint32
	Match  uint32
}

// DetectFunc executes one SMPT detection read and returns the raw value
// read back, for comparison against a ReadCmd's mask/match.
type DetectFunc func(cmd ReadCmd) (uint32, error)

// ParseSMPT evaluates the table's configuration-detection sequence (if any)
// and returns the erase regions of the first region map in the table; the
// detection outcome does not select among maps. detect is nil when the
// table declares no detection commands (a single unconditional map).
func ParseSMPT(t *Table, detect DetectFunc) ([]SMPTRegion, error) {
	if t == nil {
		return nil, nil
	}

	idx := 1
	n := len(t.DW)

	for idx <= n {
		dw := t.DW1(idx)

		// A "configuration detection command" descriptor has bit31 set; a
		// plain map entry does not.
		if dw.Bit(31) {
			cmdCount := int(dw.Field(16, 5)) + 1
			addrLatchBytes := dw.Field(21, 2)
			_ = addrLatchBytes // address width of the detect read; informational only here

			if detect == nil {
				// No way to resolve which branch applies; skip the whole
				// detection block (cmdCount command DWs + their reads).
				idx += 1 + cmdCount
				continue
			}

			readMask := uint32(dw.Field(8, 8))
			readOpcode := uint8(dw.Field(0, 8))

			idx++
			chosen := -1
			for c := 0; c < cmdCount && idx <= n; c++ {
				cdw := t.DW1(idx)
				matchVal := cdw.Field(0, 8)

				if chosen < 0 {
					v, err := detect(ReadCmd{Opcode: readOpcode, Mask: readMask, Match: matchVal})
					if err != nil {
						return nil, err
					}
					if v&readMask == matchVal {
						chosen = c
					}
				}
				idx++
			}
			continue
		}

		// Plain map entry: low word gives region count (implicit 1) and
		// erase-type mask; immediately followed by that many region size
		// DWs.
		eraseMask := uint8(dw.Field(0, 4))
		regionCount := int(dw.Field(4, 8)) + 1
		idx++

		regions := make([]SMPTRegion, 0, regionCount)
		for r := 0; r < regionCount && idx <= n; r++ {
			rdw := t.DW1(idx)
			n256 := rdw.Field(8, 24)
			mask := uint8(rdw.Field(0, 4))
			if mask == 0 {
				mask = eraseMask
			}
			regions = append(regions, SMPTRegion{
				Size:           256 * (uint64(n256) + 1),
				EraseTypesMask: mask,
			})
			idx++
		}
		return regions, nil
	}

	return nil, status.New(status.FlashPartNotRecognised, "sfdp.ParseSMPT: no region map found")
}
