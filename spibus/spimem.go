// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package spibus

import (
	"context"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/status"
)

// SupportsOp reports whether op can be executed given the backend's native
// support (if any) or, for synthesized execution, the declared bus
// capability (spec invariant 1: SupportsOp(op) must imply ExecOp succeeds).
func (b *Bus) SupportsOp(op *controller.Op) bool {
	if b.native != nil {
		return b.native.SupportsOp(op)
	}
	return b.capsAllow(op)
}

func (b *Bus) capsAllow(op *controller.Op) bool {
	phases := []controller.OpPhase{op.CmdPhase, op.AddrPhase, op.DummyPhase, op.DataPhase}
	for _, p := range phases {
		if p.NBytes == 0 {
			continue
		}
		if !b.widthAllowed(p.BusWidth) {
			return false
		}
		if p.DTR && !b.caps.Has(controller.CapDTR) {
			return false
		}
	}
	return true
}

func (b *Bus) widthAllowed(w controller.BusWidth) bool {
	switch w {
	case controller.Width1:
		return true
	case controller.Width2:
		return b.caps.Has(controller.CapDual)
	case controller.Width4:
		return b.caps.Has(controller.CapQuad)
	case controller.Width8:
		return b.caps.Has(controller.CapOctal)
	default:
		return false
	}
}

// AdjustOpSize returns the maximum data.len that can still be packed for op,
// either delegating to the backend's native support or computing the
// synthesized envelope's remaining scratch capacity.
func (b *Bus) AdjustOpSize(op *controller.Op) (uint32, error) {
	if b.native != nil {
		return b.native.AdjustOpSize(op)
	}

	hdr := headerLen(op)
	if hdr >= uint32(len(b.scratch)) {
		return 0, status.New(status.InvalidParameter, "spibus.AdjustOpSize: header exceeds scratch")
	}

	max := uint32(len(b.scratch)) - hdr
	if gm := b.generic.GenericXferMaxSize(); gm > 0 && gm < max {
		max = gm
	}
	if mg := b.MaxReadGranularity(); mg > 0 && mg < max {
		max = mg
	}
	return max, nil
}

// headerLen is the number of bytes the command+address+dummy phases occupy
// once packed, before any data.
func headerLen(op *controller.Op) uint32 {
	n := uint32(op.OpcodeLen)
	if op.OpcodeLen == 0 {
		n = 1
	}
	if op.AddrPhase.NBytes > 0 {
		n += op.AddrPhase.NBytes
		if op.AddrPhase.DTR {
			n += op.AddrPhase.NBytes
		}
	}
	if op.DummyPhase.NBytes > 0 {
		n += op.DummyPhase.NBytes
		if op.DummyPhase.DTR {
			n += op.DummyPhase.NBytes
		}
	}
	return n
}

// ExecOp executes one spi-mem operation, using native support if present or
// synthesizing it from GenericXfer otherwise (spec §4.2).
func (b *Bus) ExecOp(ctx context.Context, op *controller.Op) error {
	if b.native != nil {
		b.log.WithField("opcode", op.Opcode).Debug("native exec_op")
		if err := b.native.ExecOp(ctx, op); err != nil {
			return status.Wrap(status.DeviceIOError, "spibus.ExecOp", err)
		}
		return nil
	}
	return b.execOpSynthesized(ctx, op)
}

// execOpSynthesized packs op's phases into GenericXfer segments per spec
// §4.2: a new segment begins whenever (bus_width, dtr) changes between
// phases, or the scratch buffer would overflow. Command/address/dummy
// phases share one write segment; an outbound data phase merges into that
// same segment if it has matching (width, dtr) and still fits.
func (b *Bus) execOpSynthesized(ctx context.Context, op *controller.Op) error {
	if b.generic == nil {
		return controller.ErrNotImplemented("spibus.ExecOp (no generic_xfer)")
	}

	header, err := packHeader(op, b.scratch)
	if err != nil {
		return err
	}

	segs := make([]controller.Segment, 0, 2)
	headerSeg := controller.Segment{
		Dir:      controller.DirOut,
		BusWidth: op.CmdPhase.BusWidth,
		DTR:      op.CmdPhase.DTR,
		Buf:      header,
	}

	mergeData := len(op.Data) > 0 && op.DataDir == controller.DirOut &&
		op.DataPhase.BusWidth == op.CmdPhase.BusWidth && op.DataPhase.DTR == op.CmdPhase.DTR &&
		len(header)+len(op.Data) <= len(b.scratch)

	if mergeData {
		merged := append(header, op.Data...)
		headerSeg.Buf = merged
		headerSeg.End = true
		segs = append(segs, headerSeg)
	} else {
		segs = append(segs, headerSeg)
		if len(op.Data) > 0 {
			dataSeg := controller.Segment{
				Dir:      dataDirToSegDir(op.DataDir),
				BusWidth: op.DataPhase.BusWidth,
				DTR:      op.DataPhase.DTR,
				Buf:      op.Data,
				End:      true,
			}
			segs = append(segs, dataSeg)
		} else {
			segs[len(segs)-1].End = true
		}
	}

	if err := b.GenericXfer(ctx, segs); err != nil {
		return err
	}

	if !mergeData && len(op.Data) > 0 && op.DataDir == controller.DirIn {
		copy(op.Data, segs[len(segs)-1].Buf)
	}

	return nil
}

func dataDirToSegDir(d controller.Direction) controller.Direction {
	return d
}

// packHeader writes opcode, address (MSB-first) and dummy bytes into scratch
// (the bus scratch buffer) and returns the slice actually used. Dummy bytes
// are 0xFF, doubled when the dummy phase is DTR (spec invariant 3).
func packHeader(op *controller.Op, scratch []byte) ([]byte, error) {
	need := headerLen(op)
	if need > uint32(len(scratch)) {
		return nil, status.New(status.InvalidParameter, "spibus.packHeader: header exceeds scratch")
	}

	buf := scratch[:0]
	opcodeLen := op.OpcodeLen
	if opcodeLen == 0 {
		opcodeLen = 1
	}
	if opcodeLen == 2 {
		buf = append(buf, byte(op.Opcode>>8), byte(op.Opcode))
	} else {
		buf = append(buf, byte(op.Opcode))
	}

	if op.AddrPhase.NBytes > 0 {
		n := op.AddrPhase.NBytes
		for i := int(n) - 1; i >= 0; i-- {
			buf = append(buf, byte(op.Addr>>(uint(i)*8)))
		}
		if op.AddrPhase.DTR {
			for i := int(n) - 1; i >= 0; i-- {
				buf = append(buf, byte(op.Addr>>(uint(i)*8)))
			}
		}
	}

	if op.DummyPhase.NBytes > 0 {
		n := op.DummyPhase.NBytes
		if op.DummyPhase.DTR {
			n *= 2
		}
		for i := uint32(0); i < n; i++ {
			buf = append(buf, 0xFF)
		}
	}

	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}

// PollStatus loops ExecOp, extracting a 1- or 2-byte big-endian status
// value after an initial delay, at a polling rate, until (value & mask) ==
// match or ctx is done or the timeout elapses (spec §4.2).
func (b *Bus) PollStatus(ctx context.Context, op *controller.Op, mask, match uint16, opts PollOptions) error {
	return Poll(ctx, func(ctx context.Context) (uint16, error) {
		if err := b.ExecOp(ctx, op); err != nil {
			return 0, err
		}
		return decodeStatus(op.Data), nil
	}, mask, match, opts)
}

func decodeStatus(data []byte) uint16 {
	switch len(data) {
	case 1:
		return uint16(data[0])
	case 2:
		return uint16(data[0])<<8 | uint16(data[1])
	default:
		return 0
	}
}
