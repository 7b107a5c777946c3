// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nor

import (
	"context"
	"time"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/status"
)

// defaultPPTimeoutMs is the page-program busy-wait ceiling absent any more
// specific SFDP-derived value (spec §4.6 "Program").
const defaultPPTimeoutMs = 1000

func (f *Flash) pageSize() uint64 {
	if f.Part != nil && f.Part.PageSize > 0 {
		return f.Part.PageSize
	}
	if f.BFPT != nil && f.BFPT.PageSize > 0 {
		return f.BFPT.PageSize
	}
	return 256
}

func (f *Flash) ppTimeout() time.Duration {
	ms := uint32(defaultPPTimeoutMs)
	if f.BFPT != nil && f.BFPT.PPMaxMs > 0 {
		ms = f.BFPT.PPMaxMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Program writes len(data) bytes starting at addr, chunked at page-size
// boundaries, each chunk preceded by WREN and followed by a busy-wait bound
// by the part's declared max page-program time (spec §4.6 "Program").
func (f *Flash) Program(ctx context.Context, addr uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if addr+uint64(len(data)) > f.size {
		return status.New(status.FlashAddressOutOfRange, "nor.Program")
	}

	page := f.pageSize()
	cmdW, addrW, dataW := ioWidths(f.State.PPIO)

	off := uint64(0)
	for off < uint64(len(data)) {
		chunkAddr := addr + off
		pageOff := chunkAddr % page
		n := page - pageOff
		if n > uint64(len(data))-off {
			n = uint64(len(data)) - off
		}

		die, dieAddr := f.dieForAddr(chunkAddr)
		if err := f.selectDie(ctx, die); err != nil {
			return err
		}
		if err := f.updateHighAddr(ctx, uint8(dieAddr>>24)); err != nil {
			return err
		}

		if err := f.issueSimple(ctx, opWREN, f.State.CmdBuswidthCurr); err != nil {
			return err
		}

		op := &controller.Op{
			Opcode:    uint16(f.State.PPOpcode),
			OpcodeLen: 1,
			CmdPhase:  controller.OpPhase{BusWidth: cmdW, NBytes: 1},
			Addr:      dieAddr,
			AddrPhase: controller.OpPhase{BusWidth: addrW, NBytes: uint32(f.State.NAddr)},
			Data:      data[off : off+n],
			DataDir:   controller.DirOut,
			DataPhase: controller.OpPhase{BusWidth: dataW, NBytes: uint32(n)},
		}
		if err := f.Bus.ExecOp(ctx, op); err != nil {
			return status.Wrap(status.FlashProgramFailed, "nor.Program", err)
		}

		if err := f.WaitBusy(ctx, f.ppTimeout()); err != nil {
			return status.Wrap(status.FlashProgramFailed, "nor.Program: wait busy", err)
		}

		off += n
	}
	return nil
}
