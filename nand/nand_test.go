// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nand_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackpascal/goflashprog/ecc"
	"github.com/hackpascal/goflashprog/id"
	"github.com/hackpascal/goflashprog/internal/simctl"
	"github.com/hackpascal/goflashprog/nand"
	"github.com/hackpascal/goflashprog/nand/memorg"
	"github.com/hackpascal/goflashprog/sfdp"
	"github.com/hackpascal/goflashprog/spibus"
)

const (
	testPageSize      = 2048
	testOOBSize       = 64
	testPagesPerBlock = 64
	testBlockCount    = 16
	testECCStrength   = 4
)

func testPart() *nand.Part {
	return &nand.Part{
		Name:   "SIMNAND",
		Vendor: "sim",
		IDs:    []id.ID{id.New(0xC8, 0xF1)},
		Org: memorg.Org{
			NumChips:      1,
			LUNsPerCS:     1,
			BlocksPerLUN:  testBlockCount,
			PagesPerBlock: testPagesPerBlock,
			PageSize:      testPageSize,
			OOBSize:       testOOBSize,
			PlanesPerLUN:  1,
		},
		NumDies: 1,
		ECC: func() ecc.Engine {
			return &ecc.OnDie{
				PageSize: testPageSize,
				OOBSize:  testOOBSize,
				Strength: testECCStrength,
				StepSize: 512,
			}
		},
		ReadIO:       sfdp.IO111,
		ProgramIO:    sfdp.IO111,
		BBMPages:     []uint32{0, testPagesPerBlock - 1},
		BBMPositions: []uint32{testPageSize},
	}
}

func attach(t *testing.T) (*nand.Flash, *simctl.NAND) {
	t.Helper()
	ctrl := simctl.NewNAND(testPageSize, testOOBSize, testPagesPerBlock, testBlockCount, testECCStrength, []byte{0xC8, 0xF1})
	bus, err := spibus.Attach(ctrl, 1)
	require.NoError(t, err)

	flash := nand.New(bus)
	err = flash.Probe(context.Background(), []*nand.Part{testPart()})
	require.NoError(t, err)
	return flash, ctrl
}

func TestProbeMatchesDatabasePart(t *testing.T) {
	flash, _ := attach(t)
	assert.Equal(t, "SIMNAND", flash.Part.Name)
	assert.Equal(t, []byte{0xC8, 0xF1}, flash.ID.Slice())
	assert.Equal(t, uint64(testBlockCount), flash.Aux.BlockCount)
}

func TestProgramThenReadPageRoundTrips(t *testing.T) {
	flash, _ := attach(t)
	ctx := context.Background()

	want := make([]byte, testPageSize+testOOBSize)
	for i := range want {
		want[i] = byte(i)
	}

	require.NoError(t, flash.ProgramPage(ctx, 5, want))

	got := make([]byte, testPageSize+testOOBSize)
	res, err := flash.ReadPage(ctx, 5, got)
	require.NoError(t, err)
	assert.False(t, res.Corrected)
	assert.False(t, res.Uncorrectable)
	assert.Equal(t, want, got)
}

func TestCorrectableBitflipsSurfaceAsCorrected(t *testing.T) {
	flash, ctrl := attach(t)
	ctx := context.Background()

	data := make([]byte, testPageSize+testOOBSize)
	fillPattern(data)
	require.NoError(t, flash.ProgramPage(ctx, 5, data))

	ctrl.Corrupt(5, testECCStrength-1)

	got := make([]byte, testPageSize+testOOBSize)
	res, err := flash.ReadPage(ctx, 5, got)
	require.NoError(t, err)
	assert.True(t, res.Corrected)
	assert.Equal(t, 1, res.TotalBitflips())
}

func TestUncorrectableBitflipsFail(t *testing.T) {
	flash, ctrl := attach(t)
	ctx := context.Background()

	data := make([]byte, testPageSize+testOOBSize)
	fillPattern(data)
	require.NoError(t, flash.ProgramPage(ctx, 5, data))

	ctrl.Corrupt(5, testECCStrength+1)

	got := make([]byte, testPageSize+testOOBSize)
	_, err := flash.ReadPage(ctx, 5, got)
	assert.Error(t, err)
}

func TestEraseBlockRestoresErasedState(t *testing.T) {
	flash, ctrl := attach(t)
	ctx := context.Background()

	data := make([]byte, testPageSize+testOOBSize)
	fillPattern(data)
	require.NoError(t, flash.ProgramPage(ctx, 3, data))
	require.NoError(t, flash.EraseBlock(ctx, 0))

	raw := ctrl.Page(3)
	for _, b := range raw {
		assert.Equal(t, byte(0xFF), b)
	}
}

func TestMarkBadThenCheckBad(t *testing.T) {
	flash, _ := attach(t)
	ctx := context.Background()

	bad, err := flash.CheckBad(ctx, testPagesPerBlock) // block 1
	require.NoError(t, err)
	assert.False(t, bad)

	require.NoError(t, flash.MarkBad(ctx, testPagesPerBlock))

	bad, err = flash.CheckBad(ctx, testPagesPerBlock)
	require.NoError(t, err)
	assert.True(t, bad)

	// Idempotent: marking an already-bad block again must not error.
	require.NoError(t, flash.MarkBad(ctx, testPagesPerBlock))
	bad, err = flash.CheckBad(ctx, testPagesPerBlock)
	require.NoError(t, err)
	assert.True(t, bad)
}

func fillPattern(buf []byte) {
	for i := range buf {
		buf[i] = byte(0xA5 ^ i)
	}
}
