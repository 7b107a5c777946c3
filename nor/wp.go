// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nor

import (
	"context"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/status"
)

// GetWPRegion reads the status-register WP field and returns the matching
// declared WPRange (spec §4.6 "Write protect").
func (f *Flash) GetWPRegion(ctx context.Context) (WPRange, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Part == nil || len(f.Part.WPRanges) == 0 {
		return WPRange{}, status.New(status.Unsupported, "nor.GetWPRegion: part declares no WP ranges")
	}

	v, err := f.readSR(ctx)
	if err != nil {
		return WPRange{}, err
	}

	field := fieldValue(v, f.Part.WPField)
	for _, r := range f.Part.WPRanges {
		if r.FieldValue == field {
			return r, nil
		}
	}
	return WPRange{}, status.New(status.FlashPartMismatch, "nor.GetWPRegion: status register field matches no declared range")
}

// SetWPRegion scans the part's declared WP ranges for an exact match to
// region and writes the corresponding status-register field value (spec
// §4.6 "set_wp_region(region) scans for a match and writes the appropriate
// field").
func (f *Flash) SetWPRegion(ctx context.Context, region WPRange) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Part == nil {
		return status.New(status.Unsupported, "nor.SetWPRegion: no part attached")
	}

	var match *WPRange
	for i := range f.Part.WPRanges {
		r := &f.Part.WPRanges[i]
		if r.Base == region.Base && r.Size == region.Size {
			match = r
			break
		}
	}
	if match == nil {
		return status.New(status.InvalidParameter, "nor.SetWPRegion: region not in the part's advertised list")
	}

	cur, err := f.readSR(ctx)
	if err != nil {
		return err
	}
	newVal := setFieldValue(cur, f.Part.WPField, match.FieldValue)
	return f.writeSR(ctx, newVal)
}

func fieldValue(reg uint32, f RegField) uint32 {
	mask := uint32(1)<<f.Width - 1
	return (reg >> f.Shift) & mask
}

func setFieldValue(reg uint32, f RegField, value uint32) uint32 {
	mask := uint32(1)<<f.Width - 1
	reg &^= mask << f.Shift
	reg |= (value & mask) << f.Shift
	return reg
}

func (f *Flash) readSR(ctx context.Context) (uint32, error) {
	buf := make([]byte, 1)
	op := &controller.Op{
		Opcode:    opRDSR,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Data:      buf,
		DataDir:   controller.DirIn,
		DataPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return 0, err
	}
	return uint32(buf[0]), nil
}

func (f *Flash) writeSR(ctx context.Context, value uint32) error {
	if err := f.issueSimple(ctx, opWREN, controller.Width1); err != nil {
		return err
	}
	op := &controller.Op{
		Opcode:    opWRSR,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Data:      []byte{byte(value)},
		DataDir:   controller.DirOut,
		DataPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return err
	}
	return f.WaitBusy(ctx, busyPollDefault)
}
