// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nand

import (
	"context"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/status"
)

// EraseBlock erases the block containing page (spec §4.8 "Erase is
// WRITE_ENABLE + BLOCK_ERASE (D8h) + poll for erase-fail"). Any page offset
// within the block may be passed; the row address sent on the wire is
// truncated to the block's first page by the controller per the SPI-NAND
// spec, so callers conventionally pass the block's first page.
func (f *Flash) EraseBlock(ctx context.Context, page uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	die, row := f.addrForPage(page)
	if err := f.selectDie(ctx, die); err != nil {
		return err
	}

	if err := f.issueSimple(ctx, opWriteEnable); err != nil {
		return err
	}

	op := &controller.Op{
		Opcode:    opBlockErase,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Addr:      uint64(row),
		AddrPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 3},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return status.Wrap(status.FlashEraseFailed, "nand.EraseBlock: block_erase", err)
	}

	statusByte, err := f.waitOIPClear(ctx, 0)
	if err != nil {
		return status.Wrap(status.FlashEraseFailed, "nand.EraseBlock: wait oip", err)
	}
	if statusByte&statusEraseFail != 0 {
		return status.New(status.FlashEraseFailed, "nand.EraseBlock: erase-fail bit set")
	}
	return nil
}

// EraseBlocks erases count consecutive blocks, each identified by its first
// page number, skipping blocks that CheckBad reports as bad unless
// skipBadCheck is set (spec §4.11's "skipping bad/reserved blocks" policy,
// generalized down to the core so FTL/BBT callers get it for free).
func (f *Flash) EraseBlocks(ctx context.Context, firstPages []uint64, skipBadCheck bool) error {
	for _, p := range firstPages {
		if !skipBadCheck {
			bad, err := f.CheckBad(ctx, p)
			if err != nil {
				return err
			}
			if bad {
				continue
			}
		}
		if err := f.EraseBlock(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
