// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nor

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/erase"
	"github.com/hackpascal/goflashprog/id"
	"github.com/hackpascal/goflashprog/sfdp"
	"github.com/hackpascal/goflashprog/status"
)

// readIDRetries is the number of READ-ID attempts before giving up on a
// non-all-0x00/non-all-0xFF response (spec §4.6 "Probe").
const readIDRetries = 3

// Probe identifies the attached chip: READ-ID first (retrying on an
// all-0x00/all-0xFF bounce), matching candidates by longest ID prefix; on a
// database miss it falls back to SFDP alone (spec §4.6 "Probe").
func (f *Flash) Probe(ctx context.Context, candidates []*Part) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.State.CmdBuswidthCurr = controller.Width1
	f.State.NAddr = 3

	if _, err := f.Bus.SetSpeedClosest(defaultLowSpeedHz); err != nil && !errors.Is(err, status.Sentinel(status.Unsupported)) {
		return err
	}

	readID, err := f.readIDWithRetry(ctx)
	if err != nil {
		return err
	}
	f.ID = readID

	logrus.WithField("id", readID.Slice()).Debug("nor.Probe: read-id")

	part := f.matchPart(readID, candidates)
	if part != nil && part.Flags&FlagQPIPreSFDPFixup != 0 {
		if err := f.preSFDPQPIFixup(ctx); err != nil {
			return err
		}
	}

	var tables *sfdp.Tables
	if part == nil || part.Flags&FlagNoSFDP == 0 {
		tables, err = sfdp.Probe(f.sfdpRead(ctx))
		if err != nil && part == nil {
			return status.Wrap(status.FlashPartNotRecognised, "nor.Probe", err)
		}
	}

	if part == nil && tables == nil {
		return status.New(status.FlashPartNotRecognised, "nor.Probe: no database match and no SFDP")
	}

	f.Part = part
	f.SFDP = tables

	if tables != nil {
		f.BFPT = sfdp.ParseBFPT(tables.BFPT)
		if tables.FourBAIT != nil {
			sfdp.ParseFourBAIT(tables.FourBAIT, f.BFPT)
		}
	}

	if err := f.resolveSize(); err != nil {
		return err
	}

	if err := f.buildErasePlan(ctx); err != nil {
		return err
	}

	if err := f.selectIOMode(ctx); err != nil {
		return err
	}

	if err := f.selectAddrMode(ctx); err != nil {
		return err
	}

	return nil
}

// readIDWithRetry issues 9Fh up to readIDRetries times, accepting the first
// non-all-0x00/non-all-0xFF result (spec §4.6).
func (f *Flash) readIDWithRetry(ctx context.Context) (id.ID, error) {
	var last id.ID
	for i := 0; i < readIDRetries; i++ {
		buf := make([]byte, 8)
		op := &controller.Op{
			Opcode:    opReadID,
			OpcodeLen: 1,
			CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
			Data:      buf,
			DataDir:   controller.DirIn,
			DataPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: uint32(len(buf))},
		}
		if err := f.Bus.ExecOp(ctx, op); err != nil {
			return id.ID{}, status.Wrap(status.DeviceIOError, "nor.readIDWithRetry", err)
		}
		if !id.AllZero(buf) && !id.AllOnes(buf) {
			return id.New(buf...), nil
		}
		last = id.New(buf...)
	}
	return last, status.New(status.FlashPartNotRecognised, "nor.readIDWithRetry: no device responded")
}

// matchPart resolves the best (longest-prefix) database candidate for an ID.
func (f *Flash) matchPart(got id.ID, candidates []*Part) *Part {
	if len(candidates) == 0 {
		return nil
	}
	prefixes := make([][]byte, len(candidates))
	for i, c := range candidates {
		var best []byte
		for _, cid := range c.IDs {
			if got.HasPrefix(cid.Slice()) && len(cid.Slice()) > len(best) {
				best = cid.Slice()
			}
		}
		prefixes[i] = best
	}
	idx := id.BestMatch(got, prefixes)
	if idx < 0 {
		return nil
	}
	return candidates[idx]
}

// preSFDPQPIFixup leaves a vendor-declared QPI/DPI latch using the part's
// declared exit opcode before SFDP can be read reliably (spec §4.6 "If the
// part requires a pre-SFDP fixup").
func (f *Flash) preSFDPQPIFixup(ctx context.Context) error {
	op := &controller.Op{
		Opcode:    opExQPIFFh,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width4, NBytes: 1},
	}
	return f.Bus.ExecOp(ctx, op)
}

// sfdpRead adapts Bus.ExecOp into an sfdp.ReadFunc for the given context.
func (f *Flash) sfdpRead(ctx context.Context) sfdp.ReadFunc {
	return func(addr uint32, width controller.BusWidth, buf []byte) error {
		op := &controller.Op{
			Opcode:     opReadSFDP,
			OpcodeLen:  1,
			CmdPhase:   controller.OpPhase{BusWidth: width, NBytes: 1},
			Addr:       uint64(addr),
			AddrPhase:  controller.OpPhase{BusWidth: width, NBytes: 3},
			DummyPhase: controller.OpPhase{BusWidth: width, NBytes: 1},
			Data:       buf,
			DataDir:    controller.DirIn,
			DataPhase:  controller.OpPhase{BusWidth: width, NBytes: uint32(len(buf))},
		}
		return f.Bus.ExecOp(ctx, op)
	}
}

// resolveSize determines the chip's byte size from the database entry if
// declared, else from SFDP BFPT DW2 (spec §3 "size=2^(bits30..0) or
// bits30..0+1 depending on DW2 bit31").
func (f *Flash) resolveSize() error {
	if f.Part != nil && f.Part.Size > 0 {
		f.size = f.Part.Size
		return nil
	}
	if f.BFPT != nil {
		f.size = f.BFPT.SizeBits / 8
		return nil
	}
	return status.New(status.FlashPartNotRecognised, "nor.resolveSize: size derivation impossible")
}

// buildErasePlan assembles the erase planner from the database entry's
// declared regions/types if present, else from SFDP BFPT/4BAIT/SMPT (spec
// §4.5).
func (f *Flash) buildErasePlan(ctx context.Context) error {
	if f.Part != nil && len(f.Part.Regions) > 0 {
		f.Plan = &erase.Plan{Types: f.Part.EraseTypes, Regions: f.Part.Regions}
		return nil
	}
	if f.Part != nil {
		f.Plan = erase.Uniform(f.size, f.Part.EraseTypes)
		return nil
	}

	var types [4]erase.Type
	for i, et := range f.BFPT.EraseTypes {
		if et.SizeLog2 == 0 {
			continue
		}
		t := erase.Type{Size: et.Size(), Opcode3B: et.Opcode, MaxMs: et.MaxMs}
		if f.SFDP.FourBAIT != nil {
			t.Opcode4B = et.Opcode // ParseFourBAIT already overwrote BFPT opcodes in place
		}
		types[i] = t
	}

	if f.SFDP.SMPT != nil {
		regions, err := sfdp.ParseSMPT(f.SFDP.SMPT, f.smptDetect(ctx))
		if err == nil && len(regions) > 0 {
			var sum uint64
			plan := &erase.Plan{Types: types}
			for _, r := range regions {
				plan.Regions = append(plan.Regions, erase.Region{
					Base: sum, Size: r.Size, EraseTypeMask: r.EraseTypesMask,
				})
				sum += r.Size
			}
			f.Plan = plan
			return nil
		}
	}

	f.Plan = erase.Uniform(f.size, types)
	return nil
}

// smptDetect adapts the current (or database-default, per spec §9's Open
// Question pin) addressing width into an sfdp.DetectFunc.
func (f *Flash) smptDetect(ctx context.Context) sfdp.DetectFunc {
	return func(cmd sfdp.ReadCmd) (uint32, error) {
		naddr := f.State.NAddr
		if naddr == 0 {
			naddr = 3 // database-declared default per spec §9 Open Question pin
		}
		buf := make([]byte, 4)
		op := &controller.Op{
			Opcode:    uint16(cmd.Opcode),
			OpcodeLen: 1,
			CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
			Addr:      0,
			AddrPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: uint32(naddr)},
			Data:      buf,
			DataDir:   controller.DirIn,
			DataPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: uint32(len(buf))},
		}
		if err := f.Bus.ExecOp(ctx, op); err != nil {
			return 0, err
		}
		return uint32(buf[0]), nil
	}
}
