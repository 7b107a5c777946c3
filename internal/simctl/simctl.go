// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package simctl is an in-memory controller.Controller test double standing
// in for the out-of-scope CH341/CH347 USB-SPI bridge backends (spec §1):
// it simulates a SPI-NOR and a SPI-NAND chip closely enough to drive this
// repository's own package tests without real hardware.
//
// The "device handle with an open/close lifecycle and an internal lock"
// shape is grounded on megaraid.go/ioctl.go's ioctl-backed device handle,
// repurposed here from a real fd to an in-memory byte array.
package simctl

import (
	"context"
	"sync"

	"github.com/hackpascal/goflashprog/controller"
)

// segmentBytes concatenates every outbound segment's buffer in wire order
// and returns the (at most one) inbound segment, mirroring how a real chip
// sees one continuous bit stream across a CS envelope regardless of how the
// host split it into generic_xfer segments.
func segmentBytes(segs []controller.Segment) (out []byte, in *controller.Segment) {
	for i := range segs {
		if segs[i].Dir == controller.DirOut {
			out = append(out, segs[i].Buf...)
		} else {
			in = &segs[i]
		}
	}
	return out, in
}

// baseDevice implements the Controller methods common to both simulated
// chip kinds: there is no real USB descriptor to open, so Open/Close are
// no-ops guarded by a lock exactly like the teacher's device-handle idiom.
type baseDevice struct {
	mu          sync.Mutex
	granularity uint32
}

func (d *baseDevice) Open(ctx context.Context, config []byte, threadSafe bool) error { return nil }
func (d *baseDevice) Close() error                                                   { return nil }
func (d *baseDevice) MaxReadGranularity() uint32                                     { return d.granularity }
func (d *baseDevice) GenericXferMaxSize() uint32                                     { return 0 }

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
