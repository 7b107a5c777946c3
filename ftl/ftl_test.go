// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ftl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackpascal/goflashprog/ecc"
	"github.com/hackpascal/goflashprog/ftl"
	"github.com/hackpascal/goflashprog/id"
	"github.com/hackpascal/goflashprog/internal/simctl"
	"github.com/hackpascal/goflashprog/nand"
	"github.com/hackpascal/goflashprog/nand/memorg"
	"github.com/hackpascal/goflashprog/sfdp"
	"github.com/hackpascal/goflashprog/spibus"
)

const (
	pageSize      = 512
	oobSize       = 16
	pagesPerBlock = 4
	blockCount    = 8
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
		Name:   "SIMNAND-FTL",
		Vendor: "sim",
		IDs:    []id.ID{id.New(0xC8, 0xF3)},
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
	ctrl := simctl.NewNAND(pageSize, oobSize, pagesPerBlock, blockCount, eccStrength, []byte{0xC8, 0xF3})
	bus, err := spibus.Attach(ctrl, 1)
	require.NoError(t, err)

	flash := nand.New(bus)
	require.NoError(t, flash.Probe(context.Background(), []*nand.Part{part()}))
	return flash
}

func TestMappingSkipsBadBlockWithoutBBT(t *testing.T) {
	ctx := context.Background()
	flash := attach(t)

	require.NoError(t, flash.MarkBad(ctx, uint64(2*pagesPerBlock))) // block 2 bad

	f, err := ftl.New(ctx, flash, nil, ftl.Partition{BaseBlock: 0, BlockCount: blockCount})
	require.NoError(t, err)

	assert.Equal(t, uint32(blockCount-1), f.Capacity())
}

func TestWriteThenReadPagesRoundTrips(t *testing.T) {
	ctx := context.Background()
	flash := attach(t)

	f, err := ftl.New(ctx, flash, nil, ftl.Partition{BaseBlock: 0, BlockCount: blockCount})
	require.NoError(t, err)

	rawSize := uint32(pageSize + oobSize)
	want := make([]byte, 3*rawSize)
	for i := range want {
		want[i] = byte(i)
	}

	src := want
	moved, err := f.WritePages(ctx, 0, 3, 0, ftl.Callbacks{
		Pre: func(requested uint32) []byte {
			n := requested
			if n > 3 {
				n = 3
			}
			buf := src[:n*rawSize]
			src = src[n*rawSize:]
			return buf
		},
		Post: func(buf []byte, actual uint32) error { return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), moved)

	got := make([]byte, 3*rawSize)
	dst := got
	moved, err = f.ReadPages(ctx, 0, 3, 0, ftl.Callbacks{
		Pre: func(requested uint32) []byte {
			n := requested
			if n > 3 {
				n = 3
			}
			buf := dst[:n*rawSize]
			dst = dst[n*rawSize:]
			return buf
		},
		Post: func(buf []byte, actual uint32) error { return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), moved)
	assert.Equal(t, want, got)
}

func TestEraseBlocksSkipsBadBlock(t *testing.T) {
	ctx := context.Background()
	flash := attach(t)
	require.NoError(t, flash.MarkBad(ctx, uint64(2*pagesPerBlock)))

	f, err := ftl.New(ctx, flash, nil, ftl.Partition{BaseBlock: 0, BlockCount: blockCount})
	require.NoError(t, err)

	erased, err := f.EraseBlocks(ctx, 0, f.Capacity(), 0, false)
	require.NoError(t, err)
	assert.Equal(t, f.Capacity(), erased)
}
