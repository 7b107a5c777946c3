// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nor

import (
	"context"
	"time"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/status"
)

// Winbond-family OTP opcodes, used when a part's OTPInfo leaves its opcode
// fields at zero (original_source/flash/spi-nor/include/ufprog/spi-nor-opcode.h).
const (
	otpOpRead  = 0x48
	otpOpProg  = 0x42
	otpOpErase = 0x44
)

func (f *Flash) otpOpcodes() (read, prog, erase uint8) {
	o := f.Part.OTP
	read, prog, erase = o.ReadOpcode, o.ProgOpcode, o.EraseOpcode
	if read == 0 {
		read = otpOpRead
	}
	if prog == 0 {
		prog = otpOpProg
	}
	if erase == 0 {
		erase = otpOpErase
	}
	return
}

// otpWindowAddr maps (index, offset) onto the byte address the OTP window
// protocol addresses (spec §4.6 "OTP... route through those operations").
func (f *Flash) otpWindowAddr(index uint32, offset uint32) uint64 {
	return uint64(index)*uint64(f.Part.OTP.Size) + uint64(offset)
}

func (f *Flash) checkOTP() error {
	if f.Part == nil || f.Part.OTP == nil {
		return status.New(status.Unsupported, "nor: part declares no OTP region")
	}
	return nil
}

// OTPRead reads len(buf) bytes from OTP region index starting at offset.
func (f *Flash) OTPRead(ctx context.Context, index, offset uint32, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOTP(); err != nil {
		return err
	}
	if index >= f.Part.OTP.Count {
		return status.New(status.InvalidParameter, "nor.OTPRead: index out of range")
	}

	readOp, _, _ := f.otpOpcodes()
	op := &controller.Op{
		Opcode:     uint16(readOp),
		OpcodeLen:  1,
		CmdPhase:   controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Addr:       f.otpWindowAddr(index, offset),
		AddrPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 3},
		DummyPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Data:       buf,
		DataDir:    controller.DirIn,
		DataPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: uint32(len(buf))},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return status.Wrap(status.DeviceIOError, "nor.OTPRead", err)
	}
	return nil
}

// OTPWrite programs len(data) bytes into OTP region index starting at offset.
func (f *Flash) OTPWrite(ctx context.Context, index, offset uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOTP(); err != nil {
		return err
	}
	if index >= f.Part.OTP.Count {
		return status.New(status.InvalidParameter, "nor.OTPWrite: index out of range")
	}

	_, progOp, _ := f.otpOpcodes()
	if err := f.issueSimple(ctx, opWREN, controller.Width1); err != nil {
		return err
	}
	op := &controller.Op{
		Opcode:    uint16(progOp),
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Addr:      f.otpWindowAddr(index, offset),
		AddrPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 3},
		Data:      data,
		DataDir:   controller.DirOut,
		DataPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: uint32(len(data))},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return status.Wrap(status.FlashProgramFailed, "nor.OTPWrite", err)
	}
	return f.WaitBusy(ctx, f.ppTimeout())
}

// OTPErase erases OTP region index, where the part's protocol supports it.
func (f *Flash) OTPErase(ctx context.Context, index uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOTP(); err != nil {
		return err
	}
	if index >= f.Part.OTP.Count {
		return status.New(status.InvalidParameter, "nor.OTPErase: index out of range")
	}

	_, _, eraseOp := f.otpOpcodes()
	if err := f.issueSimple(ctx, opWREN, controller.Width1); err != nil {
		return err
	}
	op := &controller.Op{
		Opcode:    uint16(eraseOp),
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Addr:      f.otpWindowAddr(index, 0),
		AddrPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 3},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return status.Wrap(status.FlashEraseFailed, "nor.OTPErase", err)
	}
	return f.WaitBusy(ctx, 2500*time.Millisecond)
}

// OTPLock permanently locks OTP by setting the part's single declared lock
// field in the status register; index does not select a per-region bit, so
// one lock covers every region. This is generally irreversible (spec §4.6 "lock is generally
// irreversible (on-die)").
func (f *Flash) OTPLock(ctx context.Context, index uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOTP(); err != nil {
		return err
	}
	if f.Part.OTP.LockField.Width == 0 {
		return status.New(status.Unsupported, "nor.OTPLock: part declares no lock field")
	}

	cur, err := f.readSR(ctx)
	if err != nil {
		return err
	}
	newVal := setFieldValue(cur, f.Part.OTP.LockField, 1)
	return f.writeSR(ctx, newVal)
}

// OTPLocked reports whether the part's single declared OTP lock field is
// set; index does not select a per-region bit.
func (f *Flash) OTPLocked(ctx context.Context, index uint32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOTP(); err != nil {
		return false, err
	}
	if f.Part.OTP.LockField.Width == 0 {
		return false, status.New(status.Unsupported, "nor.OTPLocked: part declares no lock field")
	}

	cur, err := f.readSR(ctx)
	if err != nil {
		return false, err
	}
	return fieldValue(cur, f.Part.OTP.LockField) != 0, nil
}
