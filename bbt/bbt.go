// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package bbt implements the bad-block-table binding (spec §3's "A BBT
// instance holds a weak reference to the NAND it describes", component
// C10): a 2-bit-per-block state bitmap rescanned from the chip's own
// per-block bad markers, with optional on-flash persistence mirroring the
// factory table convention.
//
// Layout, signature, and save/load/rescan flow are grounded directly on
// original_source/flash/nand/bbt/mt7621-bbt/mt7621-bbt.c: the last N blocks
// of the chip are tried in descending order as the factory table's home,
// guarded by a signature marker in the OOB area, with every candidate block
// tried in turn on both load and save until one verifies.
package bbt

import (
	"bytes"
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hackpascal/goflashprog/nand"
	"github.com/hackpascal/goflashprog/nand/memorg"
	"github.com/hackpascal/goflashprog/status"
)

// State is one block's bad-block-table entry (mt7621_nand_bbt_gen_state).
type State uint8

const (
	StateGood State = iota
	StateReserved
	_
	StateBad
)

// Config bits mirror BBT_F_* (spec §4.10 "config flags
// (FULL_SCAN/READ_ONLY/PROTECTION)").
type Config uint32

const (
	FullScan Config = 1 << iota
	ReadOnly
	Protection
)

// tableBlocks is the number of trailing blocks tried as the factory
// table's home (FACT_BBT_BLOCK_NUM).
const tableBlocks = 32

// signature is the OOB marker guarding a saved table (oob_signature,
// "mtknand").
var signature = []byte("mtknand")

const signatureOOBOffset = 1

// Table is a BBT instance bound to one NAND core, holding a non-owning
// back-reference per spec §3's ownership rule ("a BBT instance holds a
// weak reference to the NAND it describes").
type Table struct {
	nand *nand.Flash

	bitmap  []State
	config  Config
	changed bool

	tableBlock uint32 // last block a load/save found/accepted; 0 = none yet
	blockCount uint32
}

// New creates an unscanned Table over flash and performs the initial
// load-then-rescan Reprobe (spec §4.10 "New ... binds and performs an
// initial reprobe").
func New(ctx context.Context, flash *nand.Flash, org memorg.Org) (*Table, error) {
	aux, err := memorg.Derive(org)
	if err != nil {
		return nil, status.Wrap(status.DeviceInvalidConfig, "bbt.New", err)
	}

	t := &Table{
		nand:       flash,
		bitmap:     make([]State, aux.BlockCount),
		config:     FullScan | ReadOnly | Protection,
		blockCount: uint32(aux.BlockCount),
	}

	if err := t.Reprobe(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// firstPageOf derives a block's first page number from the bound NAND's
// Aux (shared shift math, spec §4.7).
func (t *Table) firstPageOf(block uint32) uint64 {
	return uint64(block) << t.nand.Aux.PagesPerBlockShift
}

// candidateBlocks lists the chip's trailing blocks, highest first, that
// may hold the on-flash table (FACT_BBT_BLOCK_NUM region).
func (t *Table) candidateBlocks() []uint32 {
	n := tableBlocks
	if uint32(n) > t.blockCount {
		n = int(t.blockCount)
	}
	blocks := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		blocks = append(blocks, t.blockCount-1-uint32(i))
	}
	return blocks
}

// Reprobe loads a persisted table if the packed bitmap fits in one page and
// a persisted copy is found, else resets the bitmap to all-good, then always
// rescans every block against the chip's own bad-block markers, and saves
// back if changed and not read-only (spec §4.10 "Reprobe: load-or-reset,
// rescan, conditional save").
func (t *Table) Reprobe(ctx context.Context) error {
	if bitmapByteSize(t.blockCount) <= int(t.nand.Org.PageSize) {
		t.load(ctx)
	} else {
		for i := range t.bitmap {
			t.bitmap[i] = StateGood
		}
	}

	changed, err := t.rescan(ctx)
	if err != nil {
		return err
	}
	t.changed = changed

	if t.config&ReadOnly == 0 && t.changed {
		return t.save(ctx)
	}
	return nil
}

// rescan walks every block, calling the NAND core's CheckBad and updating
// the in-memory bitmap, returning whether any entry changed
// (mt7621_nand_bbt_rescan).
func (t *Table) rescan(ctx context.Context) (bool, error) {
	logrus.Info("bbt: scanning for bad blocks")

	changed := false
	for block := uint32(0); block < t.blockCount; block++ {
		old := t.bitmap[block]
		if old == StateReserved {
			continue
		}

		bad, err := t.nand.CheckBad(ctx, t.firstPageOf(block))
		if err != nil {
			return false, status.Wrap(status.DeviceIOError, "bbt.rescan", err)
		}

		state := StateGood
		if bad {
			state = StateBad
			logrus.WithField("block", block).Info("bbt: bad block found")
		}
		t.bitmap[block] = state

		if state != old {
			changed = true
		}
	}
	return changed, nil
}

func bitmapByteSize(blocks uint32) int {
	return int((blocks + 3) / 4) // 2 bits/block, packed 4/byte
}

func packBitmap(bitmap []State, buf []byte) {
	for b := range buf {
		buf[b] = 0
	}
	for block, s := range bitmap {
		byteIdx := block / 4
		shift := uint(block%4) * 2
		buf[byteIdx] |= byte(s&0x3) << shift
	}
}

func unpackBitmap(buf []byte, bitmap []State) {
	for block := range bitmap {
		byteIdx := block / 4
		shift := uint(block%4) * 2
		bitmap[block] = State((buf[byteIdx] >> shift) & 0x3)
	}
}

// load searches candidateBlocks, newest first, for a block carrying a
// valid signature and unpacks its bitmap on the first match
// (mt7621_nand_bbt_load). It never returns an error: a missing or
// unreadable table simply leaves the bitmap as the caller initialized it,
// and the following rescan rebuilds state from the chip itself.
func (t *Table) load(ctx context.Context) {
	dataSize := t.nand.Org.PageSize
	bitmapBuf := make([]byte, bitmapByteSize(t.blockCount))
	sigBuf := make([]byte, len(signature))

	for _, block := range t.candidateBlocks() {
		bad, err := t.nand.CheckBad(ctx, t.firstPageOf(block))
		if err != nil || bad {
			continue
		}

		if _, err := t.nand.ReadPageAt(ctx, t.firstPageOf(block), dataSize+signatureOOBOffset, sigBuf); err != nil {
			continue
		}
		if !bytes.Equal(sigBuf, signature) {
			continue
		}

		if _, err := t.nand.ReadPageAt(ctx, t.firstPageOf(block), 0, bitmapBuf); err != nil {
			continue
		}

		unpackBitmap(bitmapBuf, t.bitmap)
		t.tableBlock = block
		logrus.WithField("block", block).Info("bbt: loaded table")
		return
	}

	logrus.Info("bbt: no on-flash table found")
}

// save erases and rewrites candidateBlocks, newest first, until one
// accepts the table and reads the signature back intact
// (mt7621_nand_bbt_save).
func (t *Table) save(ctx context.Context) error {
	dataSize := t.nand.Org.PageSize

	bitmapBuf := make([]byte, bitmapByteSize(t.blockCount))
	packBitmap(t.bitmap, bitmapBuf)

	for _, block := range t.candidateBlocks() {
		bad, err := t.nand.CheckBad(ctx, t.firstPageOf(block))
		if err != nil || bad {
			continue
		}
		if err := t.nand.EraseBlock(ctx, t.firstPageOf(block)); err != nil {
			continue
		}
		if err := t.nand.ProgramPageAt(ctx, t.firstPageOf(block), 0, bitmapBuf); err != nil {
			continue
		}
		if err := t.nand.ProgramPageAt(ctx, t.firstPageOf(block), dataSize+signatureOOBOffset, signature); err != nil {
			continue
		}

		verify := make([]byte, len(signature))
		if _, err := t.nand.ReadPageAt(ctx, t.firstPageOf(block), dataSize+signatureOOBOffset, verify); err != nil {
			continue
		}
		if !bytes.Equal(verify, signature) {
			continue
		}

		t.tableBlock = block
		t.changed = false
		logrus.WithField("block", block).Info("bbt: saved table")
		return nil
	}

	return status.New(status.DeviceIOError, "bbt.save: no candidate block accepted the table")
}

// Commit persists the current bitmap if it has changed and the table is
// not read-only (spec §4.10 "Commit").
func (t *Table) Commit(ctx context.Context) error {
	if t.config&ReadOnly != 0 {
		return status.New(status.Unsupported, "bbt.Commit: table is read-only")
	}
	if !t.changed {
		return nil
	}
	return t.save(ctx)
}

// ModifyConfig updates the config bitmask, always re-asserting FullScan
// (ufprog_bbt_modify_config: "inst->config |= set | BBT_F_FULL_SCAN").
func (t *Table) ModifyConfig(clr, set Config) {
	t.config &^= clr
	t.config |= set | FullScan
}

func (t *Table) GetConfig() Config { return t.config }

// GetState returns block's current table entry.
func (t *Table) GetState(block uint32) (State, error) {
	if block >= t.blockCount {
		return 0, status.New(status.InvalidParameter, "bbt.GetState: block out of range")
	}
	return t.bitmap[block], nil
}

// SetState overrides block's table entry without touching the chip,
// marking the table changed (spec §4.10 "SetState").
func (t *Table) SetState(block uint32, s State) error {
	if block >= t.blockCount {
		return status.New(status.InvalidParameter, "bbt.SetState: block out of range")
	}
	if t.bitmap[block] == s {
		return nil
	}
	t.bitmap[block] = s
	t.changed = true
	return nil
}

// IsReserved reports whether block falls in the chip's trailing
// factory-table region, or has been explicitly marked reserved, matching
// spec §4.10/§4.11's "reserved-block protection".
func (t *Table) IsReserved(block uint32) bool {
	if t.config&Protection == 0 {
		return false
	}

	reservedStart := uint32(0)
	if t.blockCount > tableBlocks {
		reservedStart = t.blockCount - tableBlocks
	}
	if block >= reservedStart {
		return true
	}

	return t.bitmap[block] == StateReserved
}
