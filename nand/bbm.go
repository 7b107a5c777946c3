// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nand

import (
	"context"

	"github.com/hackpascal/goflashprog/status"
)

// CheckBad reports whether the block containing blockFirstPage is marked
// bad: it reads the part's designated marker byte on each designated page
// and reports bad if any is not 0xFF (spec §4.8 "BBM check reads designated
// OOB bytes on designated pages ... and reports bad if the byte is not
// 0xFF").
func (f *Flash) CheckBad(ctx context.Context, blockFirstPage uint64) (bool, error) {
	if f.Part == nil || len(f.Part.BBMPages) == 0 || len(f.Part.BBMPositions) == 0 {
		return false, status.New(status.DeviceInvalidConfig, "nand.CheckBad: part declares no BBM geometry")
	}

	buf := make([]byte, 1)
	for _, pageOff := range f.Part.BBMPages {
		for _, pos := range f.Part.BBMPositions {
			if _, err := f.ReadPageAt(ctx, blockFirstPage+uint64(pageOff), pos, buf); err != nil {
				return false, err
			}
			if buf[0] != 0xFF {
				return true, nil
			}
		}
	}
	return false, nil
}

// MarkBad writes the part's designated marker byte(s) to 0, optionally
// wiping the whole page first when the part's BBM policy requires it
// (spec §4.8 "BBM mark writes those bytes to 0 (optionally wiping the whole
// page)").
func (f *Flash) MarkBad(ctx context.Context, blockFirstPage uint64) error {
	if f.Part == nil || len(f.Part.BBMPages) == 0 || len(f.Part.BBMPositions) == 0 {
		return status.New(status.DeviceInvalidConfig, "nand.MarkBad: part declares no BBM geometry")
	}

	rawSize := f.Aux.OOBPageSize
	zeroPage := make([]byte, rawSize)
	zeroByte := []byte{0x00}

	for _, pageOff := range f.Part.BBMPages {
		page := blockFirstPage + uint64(pageOff)
		if f.Part.BBMWholePage {
			if err := f.ProgramPage(ctx, page, zeroPage); err != nil {
				return err
			}
			continue
		}
		for _, pos := range f.Part.BBMPositions {
			if err := f.ProgramPageAt(ctx, page, pos, zeroByte); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsReserved reports whether blockFirstPage falls in the range the caller
// considers reserved (e.g. a BBT's own storage blocks); it is a thin host-
// side helper, not a chip query, kept here so FTL/BBT callers share one
// signature with CheckBad.
func IsReserved(blockFirstPage uint64, reserved []uint64) bool {
	for _, r := range reserved {
		if r == blockFirstPage {
			return true
		}
	}
	return false
}
