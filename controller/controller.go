// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package controller defines the narrow contract a bridge backend (e.g. a
// WCH CH341/CH347 USB-SPI adapter) must satisfy to drive the flash stack.
// Real backends are out of scope for this repository (spec §1); this
// package specifies only the interface they must expose, generalized from
// the teacher's "one struct describes one transfer, dispatched through an
// injected device handle" shape (sgio.go's sgIoHdr / execGenericIO) from a
// SCSI generic-IO envelope to a generic SPI transfer envelope.
package controller

import (
	"context"

	"github.com/hackpascal/goflashprog/status"
)

// Interface bitmask values returned by SupportedInterfaces, matching the
// stable §6 symbol table (supported_if()).
type IfMask uint32

const (
	IfSPI  IfMask = 1 << 0
	IfI2C  IfMask = 1 << 1
	IfNAND IfMask = 1 << 2
	IfSDIO IfMask = 1 << 3
)

// Capabilities is the controller's declared SPI capability set
// (spi_if_caps in §6).
type Capabilities uint32

const (
	CapDual Capabilities = 1 << iota
	CapQuad
	CapOctal
	CapDTR
	CapNoQPIBulkRead
)

func (c Capabilities) Has(f Capabilities) bool { return c&f != 0 }

// BusWidth is the number of data lines used for one phase of a transfer.
type BusWidth uint8

const (
	Width1 BusWidth = 1
	Width2 BusWidth = 2
	Width4 BusWidth = 4
	Width8 BusWidth = 8
)

// Direction is the data direction of one transfer segment. Full duplex is
// not modelled (spec §4.1).
type Direction int

const (
	DirOut Direction = iota
	DirIn
)

// Segment describes one leg of a generic_xfer envelope. A sequence of
// segments issued in one GenericXfer call shares a single CS assertion,
// ending on the last segment whose End field is set.
type Segment struct {
	Dir       Direction
	BusWidth  BusWidth
	DTR       bool
	SpeedHz   uint32 // 0 = use the bus's currently configured speed
	Buf       []byte
	End       bool
}

// OpPhase describes one phase (command, address, dummy or data) of a
// native spi-mem operation.
type OpPhase struct {
	BusWidth BusWidth
	DTR      bool
	NBytes   uint32
}

// Op is a native spi-mem operation: opcode + optional address + optional
// dummy cycles + optional data phase.
type Op struct {
	Opcode     uint16
	OpcodeLen  uint8 // 1 or 2 bytes
	CmdPhase   OpPhase
	Addr       uint64
	AddrPhase  OpPhase // NBytes = address width in bytes (3 or 4), 0 = no address phase
	DummyPhase OpPhase // NBytes = number of dummy bytes
	Data       []byte
	DataDir    Direction
	DataPhase  OpPhase
}

// SpeedRange describes the inclusive speed bounds a controller supports.
type SpeedRange struct {
	Min, Max uint32
}

// Controller is the capability set a bridge backend publishes. Every method
// of this interface is required; further capabilities are the separate
// interfaces below, and where a backend lacks one, spibus.Bus falls back to
// a software equivalent or returns status.Unsupported.
//
// At least one of (ExecOp + SupportsOp + AdjustOpSize) or GenericXfer must
// be implemented (spec §4.1/§4.2).
type Controller interface {
	// SupportedInterfaces returns the bitmask of interfaces this backend
	// can open (spi_if()).
	SupportedInterfaces() IfMask

	// Open establishes the connection described by config (backend-specific,
	// e.g. a USB VID:PID and serial number). threadSafe requests an internal
	// lock around each transfer envelope if the backend expects concurrent
	// callers.
	Open(ctx context.Context, config []byte, threadSafe bool) error

	// Close releases the underlying device handle.
	Close() error

	// Capabilities returns the declared SPI capability bitmask.
	Capabilities() Capabilities

	// MaxReadGranularity is the largest single data phase this backend can
	// complete in one envelope; the NOR read path splits reads larger than
	// this.
	MaxReadGranularity() uint32
}

// NativeSPIMem is implemented by backends with hardware spi-mem support.
type NativeSPIMem interface {
	SupportsOp(op *Op) bool
	AdjustOpSize(op *Op) (uint32, error)
	ExecOp(ctx context.Context, op *Op) error
}

// GenericXfer is implemented by backends exposing only a raw transfer-segment
// primitive; spibus.Bus synthesizes spi-mem operations from it (spec §4.2).
type GenericXfer interface {
	GenericXfer(ctx context.Context, segs []Segment) error
	GenericXferMaxSize() uint32
}

// SpeedControl is implemented by backends that allow runtime speed changes.
type SpeedControl interface {
	SetSpeed(hz uint32) (actual uint32, err error)
	GetSpeed() uint32
	GetSpeedRange() SpeedRange
	GetSpeedList() []uint32
}

// ModeControl is implemented by backends exposing CS polarity, SPI mode,
// write-protect, hold and busy-indicator lines.
type ModeControl interface {
	SetCSPolarity(activeHigh bool) error
	SetMode(mode uint8) error // 0..3
	SetWP(asserted bool) error
	SetHold(asserted bool) error
	SetBusyIndicator(enabled bool) error
}

// PowerControl is implemented by backends that can power-cycle the target.
type PowerControl interface {
	PowerControl(on bool) error
}

// Resettable is implemented by backends supporting an explicit bus reset
// and/or in-flight transfer cancellation. CancelTransfer must be safe to
// call concurrently with an in-flight transfer (spec §6).
type Resettable interface {
	Reset(ctx context.Context) error
	CancelTransfer() error
}

// QuadIOHolder is implemented by backends that can drive all four I/O
// lines high for the duration of a number of clocks, used to force certain
// parts out of QPI/DPI before a soft reset.
type QuadIOHolder interface {
	Drive4IOOnes(clocks uint32) error
}

// Locker is implemented by backends requiring explicit external locking
// around a multi-step sequence (e.g. a probe) spanning several envelopes.
type Locker interface {
	Lock() error
	Unlock() error
}

// ErrNotImplemented is returned by helper code that needs to report a
// missing optional capability as a status.Error.
func ErrNotImplemented(op string) error {
	return status.New(status.Unsupported, op)
}
