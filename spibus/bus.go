// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package spibus implements the SPI bus abstraction (spec §4.2, component
// C2): it attaches a controller.Controller, validates its capabilities, and
// exposes uniform spi-mem operations, synthesizing them from a generic
// transfer primitive when the backend has no native support.
//
// The "wrap a backend handle, translate its status into a typed error"
// shape is grounded on the teacher's sgio.go execGenericIO, generalized
// from a single SCSI ioctl call to an arbitrary injected Controller.
package spibus

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/status"
)

// scratchSize is the bus's private xfer scratch buffer, shared by every
// synthesized operation for the lifetime of one ExecOp call (spec §4.2).
const scratchSize = 64 * 1024

// ifMajorVersion is this package's SPI sub-ABI major version; a backend
// whose reported major differs is rejected at attach time (spec §4.2).
const ifMajorVersion = 1

// Bus wraps one attached controller.Controller and exposes the uniform
// SPI / SPI-MEM surface used by the NOR and NAND cores.
type Bus struct {
	mu   sync.Mutex
	ctrl controller.Controller
	caps controller.Capabilities
	log  logrus.FieldLogger

	native  controller.NativeSPIMem
	generic controller.GenericXfer
	speeder controller.SpeedControl
	moder   controller.ModeControl
	power   controller.PowerControl
	reset   controller.Resettable
	quadio  controller.QuadIOHolder

	scratch []byte
}

// Attach resolves the backend's optional capability interfaces and
// validates that it exposes at least one of native spi-mem or generic
// transfer support. majorVersion is the SPI sub-ABI major version the
// backend was built against; it must match ifMajorVersion.
func Attach(ctrl controller.Controller, majorVersion int) (*Bus, error) {
	if majorVersion != ifMajorVersion {
		return nil, status.New(status.Unsupported, "spibus.Attach: ABI major mismatch")
	}

	b := &Bus{
		ctrl:    ctrl,
		caps:    ctrl.Capabilities(),
		log:     logrus.StandardLogger(),
		scratch: make([]byte, scratchSize),
	}

	b.native, _ = ctrl.(controller.NativeSPIMem)
	b.generic, _ = ctrl.(controller.GenericXfer)
	b.speeder, _ = ctrl.(controller.SpeedControl)
	b.moder, _ = ctrl.(controller.ModeControl)
	b.power, _ = ctrl.(controller.PowerControl)
	b.reset, _ = ctrl.(controller.Resettable)
	b.quadio, _ = ctrl.(controller.QuadIOHolder)

	if b.native == nil && b.generic == nil {
		return nil, status.New(status.ModuleSymbolMissing, "spibus.Attach: backend exposes neither native exec_op nor generic_xfer")
	}

	return b, nil
}

// WithLogger attaches a structured logger used for transfer tracing.
func (b *Bus) WithLogger(l logrus.FieldLogger) *Bus {
	b.log = l
	return b
}

// Detach releases the underlying controller handle.
func (b *Bus) Detach() error {
	return b.ctrl.Close()
}

// Capabilities returns the backend's cached SPI capability bitmask.
func (b *Bus) Capabilities() controller.Capabilities { return b.caps }

// MaxReadGranularity returns the largest single data phase the backend can
// service in one envelope.
func (b *Bus) MaxReadGranularity() uint32 { return b.ctrl.MaxReadGranularity() }

func (b *Bus) lock() {
	b.mu.Lock()
}

func (b *Bus) unlock() {
	b.mu.Unlock()
}

// SetCSPolarity configures whether chip-select is active-high.
func (b *Bus) SetCSPolarity(activeHigh bool) error {
	if b.moder == nil {
		return controller.ErrNotImplemented("spibus.SetCSPolarity")
	}
	return b.moder.SetCSPolarity(activeHigh)
}

// SetMode sets the SPI clock polarity/phase mode (0..3).
func (b *Bus) SetMode(mode uint8) error {
	if b.moder == nil {
		return controller.ErrNotImplemented("spibus.SetMode")
	}
	return b.moder.SetMode(mode)
}

// SetWP asserts or deasserts the write-protect line.
func (b *Bus) SetWP(asserted bool) error {
	if b.moder == nil {
		return controller.ErrNotImplemented("spibus.SetWP")
	}
	return b.moder.SetWP(asserted)
}

// SetHold asserts or deasserts the hold line.
func (b *Bus) SetHold(asserted bool) error {
	if b.moder == nil {
		return controller.ErrNotImplemented("spibus.SetHold")
	}
	return b.moder.SetHold(asserted)
}

// SetBusyIndicator toggles a controller-local busy LED/line, if present.
func (b *Bus) SetBusyIndicator(enabled bool) error {
	if b.moder == nil {
		return controller.ErrNotImplemented("spibus.SetBusyIndicator")
	}
	return b.moder.SetBusyIndicator(enabled)
}

// PowerControl turns the target's power rail on or off, if the backend
// supports it.
func (b *Bus) PowerControl(on bool) error {
	if b.power == nil {
		return controller.ErrNotImplemented("spibus.PowerControl")
	}
	return b.power.PowerControl(on)
}

// Reset issues a bus-level reset. Only invoked on explicit caller request
// (spec §5 "Cancellation").
func (b *Bus) Reset(ctx context.Context) error {
	if b.reset == nil {
		return controller.ErrNotImplemented("spibus.Reset")
	}
	return b.reset.Reset(ctx)
}

// Drive4IOOnes drives all four I/O lines high for the given number of
// clocks, used to coax certain parts out of QPI/DPI before a soft reset.
func (b *Bus) Drive4IOOnes(clocks uint32) error {
	if b.quadio == nil {
		return controller.ErrNotImplemented("spibus.Drive4IOOnes")
	}
	return b.quadio.Drive4IOOnes(clocks)
}

// SetSpeed requests a new bus clock frequency and returns the actual
// frequency the backend configured.
func (b *Bus) SetSpeed(hz uint32) (uint32, error) {
	if b.speeder == nil {
		return 0, controller.ErrNotImplemented("spibus.SetSpeed")
	}
	return b.speeder.SetSpeed(hz)
}

// GetSpeed returns the backend's current clock frequency.
func (b *Bus) GetSpeed() (uint32, error) {
	if b.speeder == nil {
		return 0, controller.ErrNotImplemented("spibus.GetSpeed")
	}
	return b.speeder.GetSpeed(), nil
}

// GetSpeedRange returns the backend's supported speed bounds.
func (b *Bus) GetSpeedRange() (controller.SpeedRange, error) {
	if b.speeder == nil {
		return controller.SpeedRange{}, controller.ErrNotImplemented("spibus.GetSpeedRange")
	}
	return b.speeder.GetSpeedRange(), nil
}

// GetSpeedList returns the discrete speed steps the backend supports, if it
// only supports a fixed list rather than a continuous range.
func (b *Bus) GetSpeedList() ([]uint32, error) {
	if b.speeder == nil {
		return nil, controller.ErrNotImplemented("spibus.GetSpeedList")
	}
	return b.speeder.GetSpeedList(), nil
}

// SetSpeedClosest picks the closest speed the backend can achieve to hz,
// preferring the list form when the backend only exposes discrete steps.
func (b *Bus) SetSpeedClosest(hz uint32) (uint32, error) {
	if b.speeder == nil {
		return 0, controller.ErrNotImplemented("spibus.SetSpeedClosest")
	}

	if list := b.speeder.GetSpeedList(); len(list) > 0 {
		best := list[0]
		for _, v := range list {
			if absDiff(v, hz) < absDiff(best, hz) {
				best = v
			}
		}
		return b.speeder.SetSpeed(best)
	}

	rng := b.speeder.GetSpeedRange()
	target := hz
	if rng.Max > 0 && target > rng.Max {
		target = rng.Max
	}
	if rng.Min > 0 && target < rng.Min {
		target = rng.Min
	}
	return b.speeder.SetSpeed(target)
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

// GenericXfer issues a sequence of transfer segments within a single CS
// envelope. If the caller holds the bus (the backend was opened
// thread-safe), this acquires the bus-wide lock for the duration of the
// call, matching spec §5's "atomic transaction as seen externally"
// requirement without needing a recursive mutex: Bus never calls back into
// itself while the lock is held.
func (b *Bus) GenericXfer(ctx context.Context, segs []controller.Segment) error {
	if b.generic == nil {
		return controller.ErrNotImplemented("spibus.GenericXfer")
	}
	b.lock()
	defer b.unlock()

	b.log.WithField("segments", len(segs)).Debug("generic_xfer envelope")
	if err := b.generic.GenericXfer(ctx, segs); err != nil {
		return status.Wrap(status.DeviceIOError, "spibus.GenericXfer", err)
	}
	return nil
}

func (b *Bus) String() string {
	return fmt.Sprintf("spibus{caps=%#x}", b.caps)
}
