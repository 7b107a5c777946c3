// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package bbt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackpascal/goflashprog/bbt"
	"github.com/hackpascal/goflashprog/ecc"
	"github.com/hackpascal/goflashprog/id"
	"github.com/hackpascal/goflashprog/internal/simctl"
	"github.com/hackpascal/goflashprog/nand"
	"github.com/hackpascal/goflashprog/nand/memorg"
	"github.com/hackpascal/goflashprog/sfdp"
	"github.com/hackpascal/goflashprog/spibus"
)

const (
	pageSize      = 512
	oobSize       = 32
	pagesPerBlock = 8
	blockCount    = 48 // > bbt's 32 trailing table blocks, so reserved region is non-trivial
	eccStrength   = 2
)

func org() memorg.Org {
	return memorg.Org{
		NumChips:      1,
		LUNsPerCS:     1,
		BlocksPerLUN:  blockCount,
		PagesPerBlock: pagesPerBlock,
		PageSize:      pageSize,
		OOBSize:       oobSize,
		PlanesPerLUN:  1,
	}
}

func part() *nand.Part {
	return &nand.Part{
		Name:   "SIMNAND-BBT",
		Vendor: "sim",
		IDs:    []id.ID{id.New(0xC8, 0xF2)},
		Org:    org(),
		NumDies: 1,
		ECC: func() ecc.Engine {
			return &ecc.OnDie{PageSize: pageSize, OOBSize: oobSize, Strength: eccStrength, StepSize: 512}
		},
		ReadIO:       sfdp.IO111,
		ProgramIO:    sfdp.IO111,
		BBMPages:     []uint32{0, pagesPerBlock - 1},
		BBMPositions: []uint32{pageSize},
	}
}

func attach(t *testing.T) *nand.Flash {
	t.Helper()
	ctrl := simctl.NewNAND(pageSize, oobSize, pagesPerBlock, blockCount, eccStrength, []byte{0xC8, 0xF2})
	bus, err := spibus.Attach(ctrl, 1)
	require.NoError(t, err)

	flash := nand.New(bus)
	require.NoError(t, flash.Probe(context.Background(), []*nand.Part{part()}))
	return flash
}

func TestMarkBadThenCommitPersistsAcrossReprobe(t *testing.T) {
	ctx := context.Background()
	flash := attach(t)

	table, err := bbt.New(ctx, flash, org())
	require.NoError(t, err)

	st, err := table.GetState(10)
	require.NoError(t, err)
	assert.Equal(t, bbt.StateGood, st)

	require.NoError(t, flash.MarkBad(ctx, uint64(10*pagesPerBlock)))
	require.NoError(t, table.SetState(10, bbt.StateBad))
	table.ModifyConfig(bbt.ReadOnly, 0) // New starts read-only
	require.NoError(t, table.Commit(ctx))

	// A fresh Table bound to the same flash must recover the state by
	// rescanning the chip's own bad-block markers, independent of whatever
	// got persisted (spec scenario 6: "reprobing a fresh BBT instance
	// recovers state").
	fresh, err := bbt.New(ctx, flash, org())
	require.NoError(t, err)

	st, err = fresh.GetState(10)
	require.NoError(t, err)
	assert.Equal(t, bbt.StateBad, st)

	for b := uint32(0); b < blockCount; b++ {
		if b == 10 || fresh.IsReserved(b) {
			continue
		}
		st, err := fresh.GetState(b)
		require.NoError(t, err)
		assert.Equal(t, bbt.StateGood, st, "block %d", b)
	}
}

func TestReservedBlocksAreNeverWritable(t *testing.T) {
	ctx := context.Background()
	flash := attach(t)

	table, err := bbt.New(ctx, flash, org())
	require.NoError(t, err)

	// The trailing 32-block table region must be reported reserved even
	// though none of those blocks were explicitly marked bad.
	assert.True(t, table.IsReserved(blockCount-1))
	assert.True(t, table.IsReserved(blockCount-32))
	assert.False(t, table.IsReserved(0))
}
