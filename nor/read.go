// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nor

import (
	"context"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/status"
)

// Read reads len(buf) bytes starting at addr (spec §4.6 "Read"): selects the
// owning die (splitting a cross-die request), updates EAR/Bank high-address
// banking if in use, and lets the bus split the transfer to its declared
// max read granularity.
func (f *Flash) Read(ctx context.Context, addr uint64, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if addr+uint64(len(buf)) > f.size {
		return status.New(status.FlashAddressOutOfRange, "nor.Read")
	}

	remaining := buf
	cur := addr
	for len(remaining) > 0 {
		die, dieAddr := f.dieForAddr(cur)

		dieEnd := f.size
		if f.Part != nil && f.Part.NumDies > 1 {
			dieEnd = uint64(die+1) * f.Part.DieSize
		}
		chunkLen := uint64(len(remaining))
		if cur+chunkLen > dieEnd {
			chunkLen = dieEnd - cur
		}

		if err := f.selectDie(ctx, die); err != nil {
			return err
		}

		if err := f.readWithinDie(ctx, dieAddr, remaining[:chunkLen]); err != nil {
			return err
		}

		remaining = remaining[chunkLen:]
		cur += chunkLen
	}
	return nil
}

// readWithinDie issues one or more ExecOp calls (chunked by the bus's max
// read granularity) for a span guaranteed not to cross a die boundary.
func (f *Flash) readWithinDie(ctx context.Context, dieAddr uint64, buf []byte) error {
	granularity := f.Bus.MaxReadGranularity()
	if granularity == 0 {
		granularity = uint32(len(buf))
		if granularity == 0 {
			return nil
		}
	}

	cmdW, addrW, dataW := ioWidths(f.State.ReadIO)

	off := uint64(0)
	for off < uint64(len(buf)) {
		n := uint64(granularity)
		if off+n > uint64(len(buf)) {
			n = uint64(len(buf)) - off
		}

		chunkAddr := dieAddr + off
		if err := f.updateHighAddr(ctx, uint8(chunkAddr>>24)); err != nil {
			return err
		}

		op := &controller.Op{
			Opcode:     uint16(f.State.ReadOpcode),
			OpcodeLen:  1,
			CmdPhase:   controller.OpPhase{BusWidth: cmdW, NBytes: 1},
			Addr:       chunkAddr,
			AddrPhase:  controller.OpPhase{BusWidth: addrW, NBytes: uint32(f.State.NAddr)},
			DummyPhase: controller.OpPhase{BusWidth: dataW, NBytes: uint32(f.State.ReadNDummy)},
			Data:       buf[off : off+n],
			DataDir:    controller.DirIn,
			DataPhase:  controller.OpPhase{BusWidth: dataW, NBytes: uint32(n)},
		}
		if err := f.Bus.ExecOp(ctx, op); err != nil {
			return status.Wrap(status.DeviceIOError, "nor.Read", err)
		}

		off += n
	}
	return nil
}
