// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nand

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hackpascal/goflashprog/controller"
	"github.com/hackpascal/goflashprog/id"
	"github.com/hackpascal/goflashprog/nand/memorg"
	"github.com/hackpascal/goflashprog/status"
)

// readIDRetries mirrors nor's retry count; SPI-NAND READ-ID (9Fh) bounces
// all-0x00/all-0xFF identically on an unresponsive bus (spec §4.8 "Probe").
const readIDRetries = 3

// Probe identifies the attached chip via READ-ID, matches it against
// candidates by longest ID prefix, derives memory-organization Aux, binds
// the part's ECC engine and negotiates I/O mode (spec §4.8 "Probe").
func (f *Flash) Probe(ctx context.Context, candidates []*Part) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	readID, err := f.readIDWithRetry(ctx)
	if err != nil {
		return err
	}
	f.ID = readID

	logrus.WithField("id", readID.Slice()).Debug("nand.Probe: read-id")

	part := f.matchPart(readID, candidates)
	if part == nil {
		return status.New(status.FlashPartNotRecognised, "nand.Probe: no database match")
	}
	f.Part = part
	f.Org = part.Org

	aux, err := memorg.Derive(part.Org)
	if err != nil {
		return status.Wrap(status.FlashPartNotRecognised, "nand.Probe", err)
	}
	f.Aux = aux

	if part.ECC == nil {
		return status.New(status.DeviceInvalidConfig, "nand.Probe: part declares no ECC binding")
	}
	f.ECC = part.ECC()
	if f.ECC == nil {
		return status.New(status.DeviceInvalidConfig, "nand.Probe: part declares no ECC binding")
	}

	if err := f.enableECC(ctx, true); err != nil {
		return err
	}

	f.State.ReadOpcode, f.State.ReadIO = f.readOpFor(part.ReadIO)
	f.State.ProgOpcode, f.State.ProgIO = f.progOpFor(part.ProgramIO)

	if err := f.negotiateQuad(ctx); err != nil {
		return err
	}

	return nil
}

// readIDWithRetry issues 9Fh up to readIDRetries times, accepting the first
// non-all-0x00/non-all-0xFF response.
func (f *Flash) readIDWithRetry(ctx context.Context) (id.ID, error) {
	var last id.ID
	for i := 0; i < readIDRetries; i++ {
		buf := make([]byte, 4)
		op := &controller.Op{
			Opcode:     opReadID,
			OpcodeLen:  1,
			CmdPhase:   controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
			DummyPhase: controller.OpPhase{BusWidth: controller.Width1, NBytes: 1},
			Data:       buf,
			DataDir:    controller.DirIn,
			DataPhase:  controller.OpPhase{BusWidth: controller.Width1, NBytes: uint32(len(buf))},
		}
		if err := f.Bus.ExecOp(ctx, op); err != nil {
			return id.ID{}, status.Wrap(status.DeviceIOError, "nand.readIDWithRetry", err)
		}
		if !id.AllZero(buf) && !id.AllOnes(buf) {
			return id.New(buf...), nil
		}
		last = id.New(buf...)
	}
	return last, status.New(status.FlashPartNotRecognised, "nand.readIDWithRetry: no device responded")
}

func (f *Flash) matchPart(got id.ID, candidates []*Part) *Part {
	if len(candidates) == 0 {
		return nil
	}
	prefixes := make([][]byte, len(candidates))
	for i, c := range candidates {
		var best []byte
		for _, cid := range c.IDs {
			if got.HasPrefix(cid.Slice()) && len(cid.Slice()) > len(best) {
				best = cid.Slice()
			}
		}
		prefixes[i] = best
	}
	idx := id.BestMatch(got, prefixes)
	if idx < 0 {
		return nil
	}
	return candidates[idx]
}

// enableECC sets or clears the config feature register's ECC_EN bit
// (spec §4.9's on-die-ECC toggle).
func (f *Flash) enableECC(ctx context.Context, enable bool) error {
	cfg, err := f.getFeature(ctx, featureConfigAddr)
	if err != nil {
		return err
	}
	if enable {
		cfg |= configECCEn
	} else {
		cfg &^= configECCEn
	}
	if err := f.setFeature(ctx, featureConfigAddr, cfg); err != nil {
		return err
	}
	f.State.ECCEnabled = enable
	return nil
}

// negotiateQuad latches CONFIG.QUAD_EN if the part declares quad capability
// and the bus can drive 4 data lines (spec §4.8/§4.6 shared I/O-mode idiom).
func (f *Flash) negotiateQuad(ctx context.Context) error {
	if f.Part.Flags&FlagQuadCapable == 0 {
		return nil
	}

	cfg, err := f.getFeature(ctx, featureConfigAddr)
	if err != nil {
		return err
	}
	cfg |= configQuadEn
	if err := f.setFeature(ctx, featureConfigAddr, cfg); err != nil {
		return err
	}
	f.State.QuadEnabled = true
	return nil
}
