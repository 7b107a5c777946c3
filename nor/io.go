// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nor

import (
	"context"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/sfdp"
	"github.com/hackpascal/goflashprog/status"
)

// ioPriority lists read io_types from highest to lowest throughput, used to
// pick "the highest-throughput read io_type for which supports_op is true"
// (spec §4.6 "I/O mode selection").
var ioPriority = []sfdp.IOType{
	sfdp.IO888, sfdp.IO188, sfdp.IO118,
	sfdp.IO444, sfdp.IO144, sfdp.IO114,
	sfdp.IO222, sfdp.IO122, sfdp.IO112,
	sfdp.IO111,
}

func ioWidths(t sfdp.IOType) (cmd, addr, data controller.BusWidth) {
	switch t {
	case sfdp.IO111:
		return controller.Width1, controller.Width1, controller.Width1
	case sfdp.IO112:
		return controller.Width1, controller.Width1, controller.Width2
	case sfdp.IO122:
		return controller.Width1, controller.Width2, controller.Width2
	case sfdp.IO222:
		return controller.Width2, controller.Width2, controller.Width2
	case sfdp.IO114:
		return controller.Width1, controller.Width1, controller.Width4
	case sfdp.IO144:
		return controller.Width1, controller.Width4, controller.Width4
	case sfdp.IO444:
		return controller.Width4, controller.Width4, controller.Width4
	case sfdp.IO118:
		return controller.Width1, controller.Width1, controller.Width8
	case sfdp.IO188:
		return controller.Width1, controller.Width8, controller.Width8
	case sfdp.IO888:
		return controller.Width8, controller.Width8, controller.Width8
	default:
		return controller.Width1, controller.Width1, controller.Width1
	}
}

// opsFor returns the io_type->OpInfo table for the current addressing width,
// merging database-declared entries (preferred) with SFDP-derived ones.
func (f *Flash) opsFor(fourByte bool) map[sfdp.IOType]sfdp.OpInfo {
	out := map[sfdp.IOType]sfdp.OpInfo{}
	if f.BFPT != nil {
		src := f.BFPT.IO.ThreeByte
		if fourByte {
			src = f.BFPT.IO.FourByte
		}
		for k, v := range src {
			out[k] = v
		}
	}
	if f.Part != nil {
		entries := f.Part.Ops3B
		if fourByte {
			entries = f.Part.Ops4B
		}
		for _, e := range entries {
			out[e.Type] = sfdp.OpInfo{Opcode: e.Opcode, NDummy: e.NDummy, NMode: e.NMode}
		}
	}
	return out
}

// selectIOMode intersects allowed_io_caps, controller capability and part
// capability, picking the highest-throughput read io_type that SupportsOp
// accepts, then selecting a matching program opcode (spec §4.6 "I/O mode
// selection").
func (f *Flash) selectIOMode(ctx context.Context) error {
	fourByte := f.size > 16*1024*1024 || (f.Part != nil && f.Part.Flags&FlagSFDP4BMode != 0)
	ops := f.opsFor(fourByte)

	var chosen sfdp.IOType
	var info sfdp.OpInfo
	found := false

	for _, t := range ioPriority {
		if ioTypeToCap(t)&f.AllowedIOCaps == 0 {
			continue
		}
		op, ok := ops[t]
		if !ok && t != sfdp.IO111 {
			continue
		}
		cmdW, addrW, dataW := ioWidths(t)
		naddr := uint32(3)
		if fourByte {
			naddr = 4
		}
		testOp := &controller.Op{
			Opcode:     uint16(op.Opcode),
			OpcodeLen:  1,
			CmdPhase:   controller.OpPhase{BusWidth: cmdW, NBytes: 1},
			AddrPhase:  controller.OpPhase{BusWidth: addrW, NBytes: naddr},
			DummyPhase: controller.OpPhase{BusWidth: dataW, NBytes: uint32(op.NDummy)},
			Data:       make([]byte, 1),
			DataDir:    controller.DirIn,
			DataPhase:  controller.OpPhase{BusWidth: dataW, NBytes: 1},
		}
		if t == sfdp.IO111 && op.Opcode == 0 {
			testOp.Opcode = opRead
			testOp.DummyPhase = controller.OpPhase{}
		}
		if f.Bus.SupportsOp(testOp) {
			chosen, info, found = t, op, true
			break
		}
	}

	if !found {
		// Fall back to plain 1-1-1 READ (03h), always supported.
		chosen = sfdp.IO111
		info = sfdp.OpInfo{Opcode: opRead}
		found = true
	}

	if info.Opcode == 0 && chosen == sfdp.IO111 {
		info.Opcode = opRead
	}

	f.State.ReadOpcode = info.Opcode
	f.State.ReadNDummy = info.NDummy
	f.State.ReadIO = chosen

	ppOps := f.pageProgOps(fourByte)
	ppIO := chosen
	ppOp, ok := ppOps[chosen]
	if !ok {
		ppIO = sfdp.IO111
		ppOp, ok = ppOps[sfdp.IO111]
	}
	if !ok {
		ppOp = sfdp.OpInfo{Opcode: opPageProg}
	}
	f.State.PPOpcode = ppOp.Opcode
	f.State.PPIO = ppIO

	if qpiType, ok := f.requiresQPI(chosen); ok {
		if err := f.enableQPI(ctx, qpiType); err != nil {
			return err
		}
	}

	cmdW, _, _ := ioWidths(chosen)
	f.State.CmdBuswidthCurr = cmdW

	return nil
}

// pageProgOps derives the program-opcode table for data-width matching
// read io_types (1-1-1, 1-1-4, 1-4-4, 4-4-4 map to their PAGE_PROG variants).
func (f *Flash) pageProgOps(fourByte bool) map[sfdp.IOType]sfdp.OpInfo {
	out := map[sfdp.IOType]sfdp.OpInfo{
		sfdp.IO111: {Opcode: opPageProg},
		sfdp.IO114: {Opcode: opPageProgQI},
		sfdp.IO144: {Opcode: opPageProgQI},
		sfdp.IO444: {Opcode: opPageProgQI},
	}
	if fourByte {
		out[sfdp.IO111] = sfdp.OpInfo{Opcode: op4BPageProg}
		out[sfdp.IO114] = sfdp.OpInfo{Opcode: op4BPageProgQI}
		out[sfdp.IO144] = sfdp.OpInfo{Opcode: op4BPageProgQI}
		out[sfdp.IO444] = sfdp.OpInfo{Opcode: op4BPageProgQI}
	}
	if f.Part != nil {
		for _, e := range f.Part.Ops3B {
			if !fourByte {
				out[e.Type] = sfdp.OpInfo{Opcode: e.Opcode, NDummy: e.NDummy}
			}
		}
		for _, e := range f.Part.Ops4B {
			if fourByte {
				out[e.Type] = sfdp.OpInfo{Opcode: e.Opcode, NDummy: e.NDummy}
			}
		}
	}
	return out
}

// requiresQPI reports whether io_type t needs the part to be latched into
// QPI mode first (command phase bus width 4, spec §4.6 "If a QPI/DPI mode is
// chosen, execute the enable sequence declared by the part").
func (f *Flash) requiresQPI(t sfdp.IOType) (sfdp.QPISeqType, bool) {
	if t != sfdp.IO444 {
		return sfdp.QPISeqNone, false
	}
	if f.BFPT == nil || f.BFPT.QPIEnType == sfdp.QPISeqNone {
		return sfdp.QPISeqNone, false
	}
	return f.BFPT.QPIEnType, true
}

func (f *Flash) qpiEnableOpcode(seq sfdp.QPISeqType) uint8 {
	switch seq {
	case sfdp.QPISeq38h:
		return opEnQPI38h
	case sfdp.QPISeqF5h:
		return opEnQPI35h
	default:
		return 0
	}
}

func (f *Flash) qpiDisableOpcode(seq sfdp.QPISeqType) uint8 {
	switch seq {
	case sfdp.QPISeq38h:
		return opExQPIFFh
	case sfdp.QPISeqF5h:
		return opExQPIF5h
	default:
		return 0
	}
}

// enableQPI issues the part's declared QPI enable opcode at cmd bus width 1
// (spec scenario 3: "the bus issues 35h once").
func (f *Flash) enableQPI(ctx context.Context, seq sfdp.QPISeqType) error {
	opcode := f.qpiEnableOpcode(seq)
	if opcode == 0 {
		return status.New(status.Unsupported, "nor.enableQPI: no enable opcode declared")
	}
	op := &controller.Op{
		Opcode:    uint16(opcode),
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return err
	}
	f.State.QPIMode = true
	f.State.CmdBuswidthCurr = controller.Width4
	return nil
}

// disableQPI restores cmd bus width to 1 (spec scenario 3: "detach issues
// F5h and restores cmd bw=1").
func (f *Flash) disableQPI(ctx context.Context) error {
	opcode := f.qpiDisableOpcode(f.BFPT.QPIDisType)
	if opcode == 0 {
		opcode = opExQPIFFh
	}
	op := &controller.Op{
		Opcode:    uint16(opcode),
		OpcodeLen: 1,
		CmdPhase:  controller.OpPhase{BusWidth: controller.Width4, NBytes: 1},
	}
	if err := f.Bus.ExecOp(ctx, op); err != nil {
		return err
	}
	f.State.QPIMode = false
	f.State.CmdBuswidthCurr = controller.Width1
	return nil
}
