// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package memorg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrg() Org {
	return Org{
		NumChips:      1,
		LUNsPerCS:     1,
		BlocksPerLUN:  1024,
		PagesPerBlock: 64,
		PageSize:      2048,
		OOBSize:       64,
		PlanesPerLUN:  1,
	}
}

func TestValidateRejectsNonPow2(t *testing.T) {
	o := testOrg()
	o.PagesPerBlock = 60
	assert.Error(t, o.Validate())
}

func TestDeriveComputesShiftsAndSizes(t *testing.T) {
	o := testOrg()
	a, err := Derive(o)
	require.NoError(t, err)

	assert.Equal(t, uint(11), a.PageShift)
	assert.Equal(t, uint(6), a.PagesPerBlockShift)
	assert.Equal(t, uint32(63), a.PagesPerBlockMask)
	assert.Equal(t, uint32(2112), a.OOBPageSize)
	assert.Equal(t, uint64(2048*64), a.BlockSize)
	assert.Equal(t, uint64(1024), a.BlockCount)
	assert.Equal(t, uint64(1024*64), a.PageCount)
	assert.Equal(t, a.BlockSize*1024, a.TotalSize)
}

func TestDerivePropagatesValidateError(t *testing.T) {
	o := testOrg()
	o.PageSize = 2000
	_, err := Derive(o)
	assert.Error(t, err)
}

func TestPageNumberRoundTripsThroughSplit(t *testing.T) {
	o := Org{NumChips: 2, LUNsPerCS: 2, BlocksPerLUN: 1024, PagesPerBlock: 64, PageSize: 2048, OOBSize: 64}
	a, err := Derive(o)
	require.NoError(t, err)

	cases := []Addr{
		{Chip: 0, LUN: 0, Block: 0, PageInBlock: 0},
		{Chip: 0, LUN: 1, Block: 5, PageInBlock: 10},
		{Chip: 1, LUN: 0, Block: 1023, PageInBlock: 63},
		{Chip: 1, LUN: 1, Block: 512, PageInBlock: 32},
	}

	for _, addr := range cases {
		page := PageNumber(o, addr)
		got := SplitPageNumber(o, a, page)
		assert.Equal(t, addr, got)
	}
}

func TestPageNumberIsChipMajorThenLUNThenBlock(t *testing.T) {
	o := Org{NumChips: 2, LUNsPerCS: 2, BlocksPerLUN: 4, PagesPerBlock: 2, PageSize: 2048, OOBSize: 64}

	// Chip 1, LUN 0, block 0, page 0 must land after the entirety of chip 0.
	chip0Pages := uint64(o.LUNsPerCS) * uint64(o.BlocksPerLUN) * uint64(o.PagesPerBlock)
	got := PageNumber(o, Addr{Chip: 1, LUN: 0, Block: 0, PageInBlock: 0})
	assert.Equal(t, chip0Pages, got)
}
