// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nor

import (
	"context"
	"time"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/erase"
	"github.com/hackpascal/goflashprog/status"
)

// erase.go is already the package name in the erase package; this file is
// nor's delegation layer wiring the planner to the bus (spec §4.5/§4.6
// "Erase. Delegates to the planner with region-aware opcode and timeout").

// Erase erases [addr, addr+length) via the probed erase plan.
func (f *Flash) Erase(ctx context.Context, addr, length uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if addr+length > f.size {
		return status.New(status.FlashAddressOutOfRange, "nor.Erase")
	}
	return f.Plan.Erase(ctx, addr, length, f.issueErase(ctx))
}

// EraseAt erases the single largest erase-type-sized block that fits at
// addr within maxLen, returning the number of bytes erased (spec §4.5
// "erase_at").
func (f *Flash) EraseAt(ctx context.Context, addr, maxLen uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Plan.EraseAt(ctx, addr, maxLen, f.issueErase(ctx))
}

// ChipErase issues the whole-chip erase opcode (C7h) where the part exposes
// one, bypassing the per-region planner.
func (f *Flash) ChipErase(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.issueSimple(ctx, opWREN, f.State.CmdBuswidthCurr); err != nil {
		return err
	}
	if err := f.issueSimple(ctx, opChipErase, f.State.CmdBuswidthCurr); err != nil {
		return status.Wrap(status.FlashEraseFailed, "nor.ChipErase", err)
	}
	return f.WaitBusy(ctx, f.chipEraseTimeout())
}

// chipEraseTimeout is a coarse ceiling for a whole-chip erase: the largest
// declared erase-type max time times the number of times that type would
// need to repeat to cover the whole chip.
func (f *Flash) chipEraseTimeout() time.Duration {
	var max time.Duration
	for _, t := range f.Plan.Types {
		if t.MaxMs == 0 || t.Size == 0 {
			continue
		}
		reps := f.size / t.Size
		if reps == 0 {
			reps = 1
		}
		d := time.Duration(t.MaxMs) * time.Millisecond * time.Duration(reps)
		if d > max {
			max = d
		}
	}
	if max == 0 {
		max = 60 * time.Second
	}
	return max
}

// issueErase binds an erase.IssueFunc for the current addressing mode: it
// writes WREN then the type's 3B or 4B opcode (spec §4.5's "3-byte/4-byte
// opcode split") and polls busy bounded by the erase type's max time,
// defaulting to 2500ms (spec §5).
func (f *Flash) issueErase(_ context.Context) erase.IssueFunc {
	return func(ctx context.Context, t erase.Type, addr uint64) error {
		opcode := t.Opcode3B
		if f.State.NAddr == 4 && t.Opcode4B != 0 {
			opcode = t.Opcode4B
		}

		die, dieAddr := f.dieForAddr(addr)
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
			Opcode:    uint16(opcode),
			OpcodeLen: 1,
			CmdPhase:  controller.OpPhase{BusWidth: f.State.CmdBuswidthCurr, NBytes: 1},
			Addr:      dieAddr,
			AddrPhase: controller.OpPhase{BusWidth: f.State.CmdBuswidthCurr, NBytes: uint32(f.State.NAddr)},
		}
		if err := f.Bus.ExecOp(ctx, op); err != nil {
			return status.Wrap(status.FlashEraseFailed, "nor.issueErase", err)
		}

		timeout := time.Duration(t.MaxMs) * time.Millisecond
		if timeout == 0 {
			timeout = 2500 * time.Millisecond
		}
		if err := f.WaitBusy(ctx, timeout); err != nil {
			return status.Wrap(status.FlashEraseFailed, "nor.issueErase: wait busy", err)
		}
		return nil
	}
}
