// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package erase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTypes = [4]Type{
	{Size: 4 * 1024, Opcode3B: 0x20, MaxMs: 400},
	{Size: 32 * 1024, Opcode3B: 0x52, MaxMs: 1600},
	{Size: 64 * 1024, Opcode3B: 0xD8, MaxMs: 2000},
}

func TestUniformTotalSize(t *testing.T) {
	p := Uniform(16*1024*1024, testTypes)
	require.Len(t, p.Regions, 1)
	assert.Equal(t, uint64(16*1024*1024), p.TotalSize())
	assert.Equal(t, uint8(0b111), p.Regions[0].EraseTypeMask)
}

func TestRegionAtOutOfRange(t *testing.T) {
	p := Uniform(4096, testTypes)
	_, err := p.RegionAt(4096)
	assert.Error(t, err)
}

func TestGetEraseRangeRoundsToSmallestAllowed(t *testing.T) {
	p := Uniform(16*1024*1024, testTypes)
	start, end, err := p.GetEraseRange(100, 200)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), start)
	assert.Equal(t, uint64(4096), end)
}

func TestEraseAtPicksLargestFittingType(t *testing.T) {
	p := Uniform(16*1024*1024, testTypes)

	var issued []Type
	issue := func(ctx context.Context, ty Type, addr uint64) error {
		issued = append(issued, ty)
		return nil
	}

	n, err := p.EraseAt(context.Background(), 0, 64*1024, issue)
	require.NoError(t, err)
	assert.Equal(t, uint64(64*1024), n)
	require.Len(t, issued, 1)
	assert.Equal(t, uint8(0xD8), issued[0].Opcode3B)
}

func TestEraseAtFallsBackWhenMisaligned(t *testing.T) {
	p := Uniform(16*1024*1024, testTypes)

	var issued Type
	issue := func(ctx context.Context, ty Type, addr uint64) error {
		issued = ty
		return nil
	}

	// 4096-aligned but not 32K/64K-aligned: only the 4K type fits.
	n, err := p.EraseAt(context.Background(), 4096, 64*1024, issue)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), n)
	assert.Equal(t, uint8(0x20), issued.Opcode3B)
}

func TestEraseCoversWholeAlignedRange(t *testing.T) {
	p := Uniform(128*1024, testTypes)

	var total uint64
	issue := func(ctx context.Context, ty Type, addr uint64) error {
		total += ty.Size
		return nil
	}

	err := p.Erase(context.Background(), 0, 128*1024, issue)
	require.NoError(t, err)
	assert.Equal(t, uint64(128*1024), total)
}

func TestEraseRejectsUnalignedRange(t *testing.T) {
	p := Uniform(128*1024, testTypes)
	issue := func(ctx context.Context, ty Type, addr uint64) error { return nil }

	err := p.Erase(context.Background(), 100, 200, issue)
	assert.Error(t, err)
}

func TestRegionRestrictsEraseTypes(t *testing.T) {
	// Region only allows the 4K type (mask bit 0); EraseAt must not pick 64K
	// even though it would otherwise fit.
	p := &Plan{
		Types:   testTypes,
		Regions: []Region{{Base: 0, Size: 64 * 1024, EraseTypeMask: 0b001}},
	}

	var issued Type
	issue := func(ctx context.Context, ty Type, addr uint64) error {
		issued = ty
		return nil
	}

	n, err := p.EraseAt(context.Background(), 0, 64*1024, issue)
	require.NoError(t, err)
	assert.Equal(t, uint64(4096), n)
	assert.Equal(t, uint8(0x20), issued.Opcode3B)
}
