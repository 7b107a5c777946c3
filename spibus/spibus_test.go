// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package spibus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/spibus"
)

// recorder is a GenericXfer-only controller.Controller double that records
// the outbound bytes of every segment it is asked to transfer, letting
// tests check the synthesized envelope byte-for-byte (spec invariant 3).
type recorder struct {
	caps    controller.Capabilities
	segs    []controller.Segment
	inReply []byte // bytes returned for the first inbound segment, if any
}

func (r *recorder) SupportedInterfaces() controller.IfMask { return controller.IfSPI }
func (r *recorder) Open(ctx context.Context, config []byte, threadSafe bool) error { return nil }
func (r *recorder) Close() error                                                   { return nil }
func (r *recorder) Capabilities() controller.Capabilities                         { return r.caps }
func (r *recorder) MaxReadGranularity() uint32                                     { return 0 }
func (r *recorder) GenericXferMaxSize() uint32                                     { return 0 }

func (r *recorder) GenericXfer(ctx context.Context, segs []controller.Segment) error {
	r.segs = append([]controller.Segment(nil), segs...)
	if r.inReply != nil {
		for i := range segs {
			if segs[i].Dir == controller.DirIn {
				n := copy(segs[i].Buf, r.inReply)
				_ = n
			}
		}
	}
	return nil
}

func (r *recorder) outboundBytes() []byte {
	var out []byte
	for _, s := range r.segs {
		if s.Dir == controller.DirOut {
			out = append(out, s.Buf...)
		}
	}
	return out
}

var _ controller.Controller = (*recorder)(nil)
var _ controller.GenericXfer = (*recorder)(nil)

func TestSynthesizedEnvelopePacksBytesInOrder(t *testing.T) {
	r := &recorder{caps: controller.CapQuad}
	bus, err := spibus.Attach(r, 1)
	require.NoError(t, err)

	data := []byte("payload")
	op := &controller.Op{
		Opcode:     0x0B,
		OpcodeLen:  1,
		CmdPhase:   controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Addr:       0x00ABCDEF,
		AddrPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 3},
		DummyPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 2},
		Data:       data,
		DataDir:    controller.DirOut,
		DataPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: uint32(len(data))},
	}

	require.NoError(t, bus.ExecOp(context.Background(), op))

	want := append([]byte{0x0B, 0xAB, 0xCD, 0xEF, 0xFF, 0xFF}, data...)
	assert.Equal(t, want, r.outboundBytes())

	// Every segment but the last must not carry the envelope terminator,
	// and the last one must.
	require.NotEmpty(t, r.segs)
	for i, s := range r.segs[:len(r.segs)-1] {
		assert.False(t, s.End, "segment %d", i)
	}
	assert.True(t, r.segs[len(r.segs)-1].End)
}

func TestDummyBytesDoubledForDTR(t *testing.T) {
	r := &recorder{caps: controller.CapDTR}
	bus, err := spibus.Attach(r, 1)
	require.NoError(t, err)

	op := &controller.Op{
		Opcode:     0x0B,
		OpcodeLen:  1,
		CmdPhase:   controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		DummyPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 2, DTR: true},
	}
	require.NoError(t, bus.ExecOp(context.Background(), op))

	// 2 dummy bytes declared, doubled for DTR => 4 0xFF bytes after the
	// single opcode byte (spec §4.2 "Dummy bytes (0xFF, doubled in DTR)").
	want := []byte{0x0B, 0xFF, 0xFF, 0xFF, 0xFF}
	assert.Equal(t, want, r.outboundBytes())
}

func TestSupportsOpRejectsUnsupportedBusWidth(t *testing.T) {
	r := &recorder{caps: 0} // no dual/quad/octal/dtr
	bus, err := spibus.Attach(r, 1)
	require.NoError(t, err)

	op := &controller.Op{
		Opcode:    0x6B,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		Data:      make([]byte, 4),
		DataDir:   controller.DirIn,
		DataPhase: controller.OpPhase{BusWidth: controller.Width4, NBytes: 4},
	}
	assert.False(t, bus.SupportsOp(op))

	op.DataPhase.BusWidth = controller.Width1
	assert.True(t, bus.SupportsOp(op))
}

func TestAdjustOpSizeBoundsWithinScratch(t *testing.T) {
	r := &recorder{caps: controller.CapQuad}
	bus, err := spibus.Attach(r, 1)
	require.NoError(t, err)

	op := &controller.Op{
		Opcode:    0x0B,
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
		AddrPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 3},
		DataDir:   controller.DirIn,
	}
	n, err := bus.AdjustOpSize(op)
	require.NoError(t, err)
	assert.Greater(t, n, uint32(0))

	// An op with data.len == n must still be reported supported (spec
	// invariant 2).
	op.Data = make([]byte, n)
	op.DataPhase = controller.OpPhase{BusWidth: controller.Width1, NBytes: n}
	assert.True(t, bus.SupportsOp(op))
}

func TestAttachRejectsABIMismatch(t *testing.T) {
	r := &recorder{}
	_, err := spibus.Attach(r, 2)
	assert.Error(t, err)
}
