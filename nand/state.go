// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package nand implements the SPI-NAND page-oriented data path (spec §4.8,
// component C8): JEDEC-ID probing, two-phase page read/program with
// feature-register status polling and ECC status extraction, block erase,
// die selection, bad-block-marker check/mark, and UID retrieval.
//
// The two-phase cache-then-transfer shape and the feature-register
// busy/status poll are grounded on nor's WaitBusy/spibus.Poll idiom
// (itself grounded on _examples/other_examples/a99a3f3c_gentam-gice__flash.go.go's
// BusyWait), generalized from a single status register to SPI-NAND's
// addressable feature registers; opcode values are grounded verbatim on
// original_source/flash/nand/spi-nand/include/ufprog/spi-nand-opcode.h and
// .../spi-nand.h.
package nand

import (
	"context"
	"sync"
	"time"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/ecc"
	"github.com/hackpascal/goflashprog/id"
	"github.com/hackpascal/goflashprog/nand/memorg"
	"github.com/hackpascal/goflashprog/sfdp"
	"github.com/hackpascal/goflashprog/spibus"
	"github.com/hackpascal/goflashprog/status"
)

// State is the NAND state machine (spec §3's NOR state-machine concept
// generalized to SPI-NAND): addressing is always a 3-byte row plus 2-byte
// column, so the only runtime-mutable fields are the negotiated I/O mode,
// the on-chip QUAD_EN/ECC_EN latches and the currently selected die.
type State struct {
	CmdBuswidthCurr controller.BusWidth

	QuadEnabled bool
	ECCEnabled  bool

	CurrDie int

	ReadOpcode uint8
	ReadIO     sfdp.IOType

	ProgOpcode uint8
	ProgIO     sfdp.IOType
}

// Flash owns an attached Bus and the probed Part/memorg/ECC records for one
// SPI-NAND chip (spec §3 "Ownership").
type Flash struct {
	mu sync.Mutex

	Bus  *spibus.Bus
	Part *Part
	Org  memorg.Org
	Aux  memorg.Aux
	ECC  ecc.Engine

	State State

	ID id.ID
}

// New attaches to bus. I/O-mode negotiation is driven entirely by the
// matched Part (SPI-NAND parts rarely expose SFDP), unlike nor.New/NewWithCaps
// which intersect a caller-supplied capability mask.
func New(bus *spibus.Bus) *Flash {
	return &Flash{
		Bus: bus,
		State: State{
			CmdBuswidthCurr: controller.Width1,
		},
	}
}

// featurePollTimeout bounds a GET_FEATURE busy poll absent any
// part-specific override (spec §5 default).
const featurePollTimeout = 1 * time.Second

// getFeature reads one feature register byte (spec §4.8 "GET_FEATURE(C0h)").
func (f *Flash) getFeature(ctx context.Context, addr uint8) (uint8, error) {
	buf := make([]byte, 1)
	op := &controller.Op{
		Opcode:    opGetFeature,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Addr:      uint64(addr),
		AddrPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Data:      buf,
		DataDir:   controller.DirIn,
		DataPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return 0, status.Wrap(status.DeviceIOError, "nand.getFeature", err)
	}
	return buf[0], nil
}

// setFeature writes one feature register byte (spec §4.8 "SET_FEATURE").
func (f *Flash) setFeature(ctx context.Context, addr, value uint8) error {
	op := &controller.Op{
		Opcode:    opSetFeature,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Addr:      uint64(addr),
		AddrPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Data:      []byte{value},
		DataDir:   controller.DirOut,
		DataPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return status.Wrap(status.DeviceIOError, "nand.setFeature", err)
	}
	return nil
}

// waitOIPClear polls the status feature register (C0h) until OIP (bit 0)
// clears, returning the final status byte so the caller can inspect the
// erase/program-fail and ECC bits (spec §4.8).
func (f *Flash) waitOIPClear(ctx context.Context, timeout time.Duration) (uint8, error) {
	if timeout <= 0 {
		timeout = featurePollTimeout
	}

	var last uint8
	err := spibus.Poll(ctx, func(ctx context.Context) (uint16, error) {
		v, err := f.getFeature(ctx, featureStatusAddr)
		if err != nil {
			return 0, err
		}
		last = v
		return uint16(v), nil
	}, statusOIP, 0, spibus.DefaultPollOptions(timeout))
	return last, err
}

// eccBitsFromStatus extracts the ECC status field (bits 5:4) from a status
// feature register byte (spec §4.8 "ECC status (bits 5:4 of the status
// feature... )").
func eccBitsFromStatus(statusByte uint8) uint8 {
	return (statusByte & statusECCMask) >> statusECCShift
}

// decodeECCResult maps a status byte's ECC field into an ecc.Result, via
// the bound engine's FeatureStatusDecoder if it implements one, else a
// generic two-bit decode (spec §4.8).
func (f *Flash) decodeECCResult(statusByte uint8) ecc.Result {
	bits := eccBitsFromStatus(statusByte)

	if d, ok := f.ECC.(ecc.FeatureStatusDecoder); ok {
		return d.DecodeFeatureStatus(bits)
	}

	switch bits {
	case 0:
		return ecc.Result{}
	case 1:
		return ecc.Result{Corrected: true, StepBitflips: []int{1}}
	default:
		return ecc.Result{Uncorrectable: true}
	}
}

func statusToECCCode(r ecc.Result) status.Code {
	switch {
	case r.Uncorrectable:
		return status.ECCUncorrectable
	case r.Corrected:
		return status.ECCCorrected
	default:
		return status.OK
	}
}
