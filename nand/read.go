// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nand

import (
	"context"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/ecc"
	"github.com/hackpascal/goflashprog/status"
)

// addrForPage splits a global linear page number into a die index and the
// row address relative to that die (spec §3's chip-major page numbering).
func (f *Flash) addrForPage(page uint64) (die int, row uint32) {
	if f.Aux.ChipShift == 0 {
		return 0, uint32(page)
	}
	mask := uint64(1)<<f.Aux.ChipShift - 1
	return int(page >> f.Aux.ChipShift), uint32(page & mask)
}

// ReadFlag controls bulk page-read continuation behaviour (spec §4.8 "Bulk
// read/write honor optional IGNORE_IO_ERROR / IGNORE_ECC_ERROR flags to
// continue scanning").
type ReadFlag uint32

const (
	IgnoreIOError ReadFlag = 1 << iota
	IgnoreECCError
)

// ReadPage performs the two-phase SPI-NAND page read (spec §4.8):
// PAGE_READ_TO_CACHE with the page's row address, poll OIP clear and
// extract ECC status, then READ_FROM_CACHE at the negotiated I/O width.
// buf must hold exactly one raw page (page_size + oob_size bytes).
func (f *Flash) ReadPage(ctx context.Context, page uint64, buf []byte) (ecc.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readPageLocked(ctx, page, 0, buf)
}

// ReadPageAt reads a column-offset sub-range of one page's raw bytes (used
// by BBM check, which only needs specific OOB bytes).
func (f *Flash) ReadPageAt(ctx context.Context, page uint64, column uint32, buf []byte) (ecc.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readPageLocked(ctx, page, column, buf)
}

func (f *Flash) readPageLocked(ctx context.Context, page uint64, column uint32, buf []byte) (ecc.Result, error) {
	die, row := f.addrForPage(page)
	if err := f.selectDie(ctx, die); err != nil {
		return ecc.Result{}, err
	}

	loadOp := &controller.Op{
		Opcode:    opPageReadToCache,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Addr:      uint64(row),
		AddrPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 3},
	}
	if err := f.Bus.ExecOp(ctx, loadOp); err != nil {
		return ecc.Result{}, status.Wrap(status.DeviceIOError, "nand.ReadPage: page_read_to_cache", err)
	}

	statusByte, err := f.waitOIPClear(ctx, 0)
	if err != nil {
		return ecc.Result{}, status.Wrap(status.DeviceIOError, "nand.ReadPage: wait oip", err)
	}

	result := f.decodeECCResult(statusByte)

	cmdW, addrW, dataW := ioWidths(f.State.ReadIO)

	readOp := &controller.Op{
		Opcode:     uint16(f.State.ReadOpcode),
		OpcodeLen:  1,
		CmdPhase:   controller.OpPhase{BusWidth: cmdW, NBytes: 1},
		Addr:       uint64(column),
		AddrPhase:  controller.OpPhase{BusWidth: addrW, NBytes: 2},
		DummyPhase: controller.OpPhase{BusWidth: dataW, NBytes: 1},
		Data:       buf,
		DataDir:    controller.DirIn,
		DataPhase:  controller.OpPhase{BusWidth: dataW, NBytes: uint32(len(buf))},
	}
	if err := f.Bus.ExecOp(ctx, readOp); err != nil {
		return result, status.Wrap(status.DeviceIOError, "nand.ReadPage: read_from_cache", err)
	}

	if code := statusToECCCode(result); code == status.ECCUncorrectable {
		return result, status.New(code, "nand.ReadPage: uncorrectable ECC error")
	}
	return result, nil
}

// ReadPages reads count consecutive pages starting at startPage into buf
// (len(buf) must be count*rawPageSize), continuing past per-page I/O or ECC
// errors when the matching flag is set and recording each page's result
// (spec §4.8 "Bulk read/write honor optional IGNORE_IO_ERROR /
// IGNORE_ECC_ERROR flags to continue scanning").
func (f *Flash) ReadPages(ctx context.Context, startPage uint64, count uint32, buf []byte, flags ReadFlag) ([]ecc.Result, error) {
	rawSize := f.Aux.OOBPageSize
	results := make([]ecc.Result, count)

	for i := uint32(0); i < count; i++ {
		off := uint64(i) * uint64(rawSize)
		res, err := f.ReadPage(ctx, startPage+uint64(i), buf[off:off+uint64(rawSize)])
		results[i] = res
		if err != nil {
			se, ok := err.(*status.Error)
			isECC := ok && se.Code == status.ECCUncorrectable
			if isECC && flags&IgnoreECCError != 0 {
				continue
			}
			if !isECC && flags&IgnoreIOError != 0 {
				continue
			}
			return results, err
		}
	}
	return results, nil
}
