// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nor

import (
	"context"

	"github.com/hackpascal/goflashprog/controller"
)

// fourByteThreshold is the density above which addressing must move to
// 4-byte mode (spec §4.6 "For size <= 16 MiB, remain in 3B").
const fourByteThreshold = 16 * 1024 * 1024

// selectAddrMode chooses 3-byte or 4-byte addressing and, if 4-byte, the
// part's declared transition method (spec §4.6 "Addressing mode").
func (f *Flash) selectAddrMode(ctx context.Context) error {
	if f.size <= fourByteThreshold {
		f.State.NAddr = 3
		return nil
	}

	a4bType := A4BAlways4B
	if f.Part != nil {
		a4bType = f.Part.A4BType
	} else if f.BFPT != nil {
		switch {
		case f.BFPT.FourByteAddrCaps.Always4Byte:
			a4bType = A4BAlways4B
		case f.BFPT.FourByteAddrCaps.OpcodeSet4B:
			a4bType = A4BOpcodeSet4B
		case f.BFPT.FourByteAddrCaps.EAR:
			a4bType = A4BExtendedAddrReg
		case f.BFPT.FourByteAddrCaps.BankRegister:
			a4bType = A4BBankReg
		case f.BFPT.FourByteAddrCaps.EnB7h:
			a4bType = A4BOpcodeEN4B
		}
	}

	switch a4bType {
	case A4BAlways4B:
		f.State.NAddr = 4
		f.State.A4BMode = true
		return nil

	case A4BOpcodeSet4B:
		// 4-byte opcodes explicitly encode a 32-bit address; the core
		// still tracks naddr=4 so address packing is correct, but no
		// enable sequence is issued.
		f.State.NAddr = 4
		f.State.A4BMode = false
		return nil

	case A4BExtendedAddrReg, A4BBankReg:
		f.State.NAddr = 4
		f.State.A4BMode = false
		return nil

	case A4BOpcodeEN4B:
		if err := f.enter4ByteOpcode(ctx); err != nil {
			return err
		}
		f.State.NAddr = 4
		f.State.A4BMode = true
		return nil

	default:
		f.State.NAddr = 4
		f.State.A4BMode = true
		return nil
	}
}

func (f *Flash) wrapsWREN() bool {
	return f.Part != nil && f.Part.A4BFlags&A4BFlagWREN != 0
}

// enter4ByteOpcode issues EN4B (B7h), optionally preceded by WREN (spec
// scenario 4: "06h, B7h").
func (f *Flash) enter4ByteOpcode(ctx context.Context) error {
	if f.wrapsWREN() {
		if err := f.issueSimple(ctx, opWREN, controller.Width1); err != nil {
			return err
		}
	}
	return f.issueSimple(ctx, opEN4B, f.State.CmdBuswidthCurr)
}

// exit4ByteOpcode issues EX4B (E9h), the teardown counterpart of
// enter4ByteOpcode (spec scenario 4: "06h, E9h on teardown").
func (f *Flash) exit4ByteOpcode(ctx context.Context) error {
	if f.wrapsWREN() {
		if err := f.issueSimple(ctx, opWREN, controller.Width1); err != nil {
			return err
		}
	}
	if err := f.issueSimple(ctx, opEX4B, f.State.CmdBuswidthCurr); err != nil {
		return err
	}
	f.State.NAddr = 3
	f.State.A4BMode = false
	return nil
}

func (f *Flash) issueSimple(ctx context.Context, opcode uint8, width controller.BusWidth) error {
	op := &controller.Op{
		Opcode:    uint16(opcode),
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: width, NBytes: 1},
	}
	return f.Bus.ExecOp(ctx, op)
}

// dieForAddr returns the die index containing addr, and the address
// relative to the die's base (spec §4.6 "If multi-die, select the die
// containing addr").
func (f *Flash) dieForAddr(addr uint64) (die int, dieAddr uint64) {
	if f.Part == nil || f.Part.NumDies <= 1 || f.Part.DieSize == 0 {
		return 0, addr
	}
	return int(addr / f.Part.DieSize), addr % f.Part.DieSize
}

// selectDie issues SELECT_DIE (C2h) if the target die differs from the
// state's current die, updating State.CurrDie only after the transfer
// succeeds (spec §5 "Register updates... mutate state only after the write
// succeeds").
func (f *Flash) selectDie(ctx context.Context, die int) error {
	if f.Part == nil || f.Part.NumDies <= 1 {
		return nil
	}
	if f.State.CurrDie == die {
		return nil
	}
	op := &controller.Op{
		Opcode:    opSelectDie,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Data:      []byte{byte(die)},
		DataDir:   controller.DirOut,
		DataPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return err
	}
	f.State.CurrDie = die
	return nil
}

// updateHighAddr writes the EAR/Bank register's high address byte if it
// differs from the cached value (spec §4.6 "High-address banking").
func (f *Flash) updateHighAddr(ctx context.Context, high uint8) error {
	if f.Part == nil {
		return nil
	}
	if f.Part.A4BType != A4BExtendedAddrReg && f.Part.A4BType != A4BBankReg {
		return nil
	}
	if f.State.CurrHighAddr == high {
		return nil
	}

	opcode := uint8(opWREAR)
	if f.Part.A4BType == A4BBankReg {
		opcode = opWRBank
	}

	if err := f.issueSimple(ctx, opWREN, f.State.CmdBuswidthCurr); err != nil {
		return err
	}
	op := &controller.Op{
		Opcode:    uint16(opcode),
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: f.State.CmdBuswidthCurr, NBytes: 1},
		Data:      []byte{high},
		DataDir:   controller.DirOut,
		DataPhase: controller.OpPhase{BusWidth: f.State.CmdBuswidthCurr, NBytes: 1},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return err
	}
	f.State.CurrHighAddr = high
	return nil
}
