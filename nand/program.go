// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nand

import (
	"context"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/status"
)

// WriteFlag controls bulk page-program continuation behaviour, the write
// counterpart of ReadFlag (spec §4.8).
type WriteFlag uint32

const (
	IgnoreWriteIOError WriteFlag = 1 << iota
)

// ProgramPage performs the two-phase SPI-NAND page program (spec §4.8):
// WRITE_ENABLE, PROGRAM_LOAD[_QUAD_IN] with the page's column address, then
// PROGRAM_EXECUTE with its row address, polling OIP clear and the
// program-fail bit. data must hold exactly one raw page's worth of bytes.
func (f *Flash) ProgramPage(ctx context.Context, page uint64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.programPageLocked(ctx, page, 0, data)
}

// ProgramPageAt programs a column-offset sub-range of one page's raw bytes,
// used by MarkBad to rewrite only the bad-block-marker byte(s).
func (f *Flash) ProgramPageAt(ctx context.Context, page uint64, column uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.programPageLocked(ctx, page, column, data)
}

func (f *Flash) programPageLocked(ctx context.Context, page uint64, column uint32, data []byte) error {
	die, row := f.addrForPage(page)
	if err := f.selectDie(ctx, die); err != nil {
		return err
	}

	if err := f.issueSimple(ctx, opWriteEnable); err != nil {
		return err
	}

	_, addrW, dataW := ioWidths(f.State.ProgIO)
	loadOp := &controller.Op{
		Opcode:    uint16(f.State.ProgOpcode),
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Addr:      uint64(column),
		AddrPhase: controller.OpPhase{BusWidth: addrW, NBytes: 2},
		Data:      data,
		DataDir:   controller.DirOut,
		DataPhase: controller.OpPhase{BusWidth: dataW, NBytes: uint32(len(data))},
	}
	if err := f.Bus.ExecOp(ctx, loadOp); err != nil {
		return status.Wrap(status.FlashProgramFailed, "nand.ProgramPage: program_load", err)
	}

	execOp := &controller.Op{
		Opcode:    opProgramExecute,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Addr:      uint64(row),
		AddrPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 3},
	}
	if err := f.Bus.ExecOp(ctx, execOp); err != nil {
		return status.Wrap(status.FlashProgramFailed, "nand.ProgramPage: program_execute", err)
	}

	statusByte, err := f.waitOIPClear(ctx, 0)
	if err != nil {
		return status.Wrap(status.FlashProgramFailed, "nand.ProgramPage: wait oip", err)
	}
	if statusByte&statusProgramFail != 0 {
		return status.New(status.FlashProgramFailed, "nand.ProgramPage: program-fail bit set")
	}
	return nil
}

func (f *Flash) issueSimple(ctx context.Context, opcode uint8) error {
	op := &controller.Op{
		Opcode:    uint16(opcode),
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
	}
	return f.Bus.ExecOp(ctx, op)
}

// ProgramPages programs count consecutive pages starting at startPage, data
// holding count*rawPageSize bytes, continuing past per-page failures when
// flags requests it.
func (f *Flash) ProgramPages(ctx context.Context, startPage uint64, count uint32, data []byte, flags WriteFlag) error {
	rawSize := f.Aux.OOBPageSize

	for i := uint32(0); i < count; i++ {
		off := uint64(i) * uint64(rawSize)
		if err := f.ProgramPage(ctx, startPage+uint64(i), data[off:off+uint64(rawSize)]); err != nil {
			if flags&IgnoreWriteIOError != 0 {
				continue
			}
			return err
		}
	}
	return nil
}
