// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package nor implements the SPI-NOR probe-and-configure engine (spec §4.6,
// component C6): JEDEC/SFDP probing, I/O-mode negotiation, 3B/4B
// addressing, read/program/erase with status polling, write-protect region
// arithmetic, and OTP.
//
// Opcodes and the busy-poll shape (fast path then ticker) are grounded on
// _examples/other_examples/a99a3f3c_gentam-gice__flash.go.go; ID-match /
// SFDP-fallback flow and 3B<->4B transition methods are grounded on
// original_source/flash/spi-nor/core.h.
package nor

import (
	"context"
	"sync"
	"time"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/erase"
	"github.com/hackpascal/goflashprog/id"
	"github.com/hackpascal/goflashprog/sfdp"
	"github.com/hackpascal/goflashprog/spibus"
	"github.com/hackpascal/goflashprog/spireg"
	"github.com/hackpascal/goflashprog/status"
)

// State is the NOR state machine (spec §3 "NOR state machine"). It is
// constructed on Attach, reaches steady state after Probe, and its
// high-address/die fields are runtime-mutable thereafter.
type State struct {
	CmdBuswidthCurr controller.BusWidth
	NAddr           uint8 // 3 or 4
	A4BMode         bool
	QPIMode         bool
	QEBitSet        bool

	CurrDie      int
	CurrHighAddr uint8

	SpeedLow, SpeedHigh uint32

	ReadOpcode uint8
	ReadNDummy uint8
	ReadIO     sfdp.IOType

	PPOpcode uint8
	PPIO     sfdp.IOType

	VendorFlags uint32
}

// Flash owns an attached Bus and the probed Part/SFDP/State records for one
// SPI-NOR chip (spec §3 "Ownership": "a NOR ... instance owns an attached
// bus and its probed parameter/state records").
type Flash struct {
	mu sync.Mutex

	Bus   *spibus.Bus
	Reg   *spireg.Engine
	Part  *Part
	SFDP  *sfdp.Tables
	BFPT  *sfdp.BFPT
	State State

	Plan *erase.Plan

	ID id.ID

	AllowedIOCaps IOCapMask

	size uint64
}

// IOCapMask is the host-policy subset of io_types the caller permits
// (spec §4.6 "I/O mode selection": "Intersect allowed_io_caps... ").
type IOCapMask uint32

const (
	IOCap111 IOCapMask = 1 << iota
	IOCap112
	IOCap122
	IOCap222
	IOCap114
	IOCap144
	IOCap444
	IOCap118
	IOCap188
	IOCap888

	IOCapAll = IOCap111 | IOCap112 | IOCap122 | IOCap222 | IOCap114 | IOCap144 | IOCap444 | IOCap118 | IOCap188 | IOCap888
)

func ioTypeToCap(t sfdp.IOType) IOCapMask {
	switch t {
	case sfdp.IO111:
		return IOCap111
	case sfdp.IO112:
		return IOCap112
	case sfdp.IO122:
		return IOCap122
	case sfdp.IO222:
		return IOCap222
	case sfdp.IO114:
		return IOCap114
	case sfdp.IO144:
		return IOCap144
	case sfdp.IO444:
		return IOCap444
	case sfdp.IO118:
		return IOCap118
	case sfdp.IO188:
		return IOCap188
	case sfdp.IO888:
		return IOCap888
	default:
		return 0
	}
}

// Size returns the probed flash density in bytes.
func (f *Flash) Size() uint64 { return f.size }

// New attaches to bus with the default allowed I/O capability set (every
// io_type). Callers that want to cap negotiation (e.g. a controller that
// cannot do quad) should use NewWithCaps.
func New(bus *spibus.Bus) *Flash {
	return NewWithCaps(bus, IOCapAll)
}

// NewWithCaps attaches to bus, restricting I/O-mode negotiation to caps.
func NewWithCaps(bus *spibus.Bus, caps IOCapMask) *Flash {
	return &Flash{
		Bus:           bus,
		Reg:           spireg.New(bus),
		AllowedIOCaps: caps,
		State: State{
			CmdBuswidthCurr: controller.Width1,
			NAddr:           3,
		},
	}
}

// defaultLowSpeedHz is the probe-time clock, per spec §4.6 ("low speed set
// via set_speed_closest(10 MHz)").
const defaultLowSpeedHz = 10_000_000

// busyPollDefault is the fallback timeout for a generic status poll when no
// more specific timeout is known (spec §5 default SR-write timeout).
const busyPollDefault = 100 * time.Millisecond

// WaitBusy polls the status register's busy bit (bit 0) until it clears or
// timeout elapses, with the fast-path-then-ticker shape grounded on
// gentam-gice/flash.go's BusyWait.
func (f *Flash) WaitBusy(ctx context.Context, timeout time.Duration) error {
	op := &controller.Op{
		Opcode:    opRDSR,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Data:      make([]byte, 1),
		DataDir:   controller.DirIn,
		DataPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
	}
	return f.Bus.PollStatus(ctx, op, srBusyMask, 0, spibus.DefaultPollOptions(timeout))
}

// Detach tears down any steady-state modes (QPI) the core entered; it does
// not detach or close the bus. The attached bus cannot be detached by the caller
// directly while the flash instance is alive (spec §3 "Ownership").
func (f *Flash) Detach(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.State.QPIMode && f.Part != nil {
		_ = f.disableQPI(ctx) // best-effort: restore cmd_buswidth to 1 on the way out
	}
	return nil
}

func wrapf(code status.Code, op string, err error) error {
	if err == nil {
		return status.New(code, op)
	}
	return status.Wrap(code, op, err)
}
