// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackpascal/goflashprog/erase"
	"github.com/hackpascal/goflashprog/id"
	"github.com/hackpascal/goflashprog/internal/simctl"
	"github.com/hackpascal/goflashprog/nor"
	"github.com/hackpascal/goflashprog/spibus"
)

// testPart describes a small chip matching exactly what internal/simctl's
// NOR double answers on the wire: plain 03h/02h/20h opcodes, no SFDP, no 4B
// addressing (the simulated chip is well under the 16 MiB 4B threshold).
func testPart(size uint64) *nor.Part {
	return &nor.Part{
		Name:   "SIM25Q",
		Vendor: "sim",
		IDs:    []id.ID{id.New(0xEF, 0x40, 0x18)},
		Size:   size,
		EraseTypes: [4]erase.Type{
			{Size: 4 * 1024, Opcode3B: 0x20, MaxMs: 400},
		},
		Flags: nor.FlagNoSFDP,
	}
}

func attach(t *testing.T, size int) (*nor.Flash, *simctl.NOR) {
	t.Helper()
	ctrl := simctl.NewNOR(size, []byte{0xEF, 0x40, 0x18})
	bus, err := spibus.Attach(ctrl, 1)
	require.NoError(t, err)

	flash := nor.New(bus)
	err = flash.Probe(context.Background(), []*nor.Part{testPart(uint64(size))})
	require.NoError(t, err)
	return flash, ctrl
}

func TestProbeMatchesDatabasePart(t *testing.T) {
	flash, _ := attach(t, 1024*1024)
	assert.Equal(t, "SIM25Q", flash.Part.Name)
	assert.Equal(t, uint64(1024*1024), flash.Size())
	assert.Equal(t, []byte{0xEF, 0x40, 0x18}, flash.ID.Slice())
}

func TestProgramThenReadRoundTrips(t *testing.T) {
	flash, _ := attach(t, 1024*1024)
	ctx := context.Background()

	want := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, flash.Program(ctx, 0x1000, want))

	got := make([]byte, len(want))
	require.NoError(t, flash.Read(ctx, 0x1000, got))
	assert.Equal(t, want, got)
}

func TestProgramOnlyClearsBitsLikeRealNANDOrNOR(t *testing.T) {
	flash, ctrl := attach(t, 4096)
	ctx := context.Background()

	require.NoError(t, flash.Program(ctx, 0, []byte{0x0F}))
	require.NoError(t, flash.Program(ctx, 0, []byte{0xF0}))

	// Programming 0xF0 over a cell already holding 0x0F can only clear
	// bits, never set them: the result is the bitwise AND, 0x00, not 0xF0.
	assert.Equal(t, byte(0x00), ctrl.Data()[0])
}

func TestEraseRestoresErasedState(t *testing.T) {
	flash, ctrl := attach(t, 1024*1024)
	ctx := context.Background()

	require.NoError(t, flash.Program(ctx, 0, []byte{0x00, 0x00, 0x00, 0x00}))
	require.NoError(t, flash.Erase(ctx, 0, 4096))

	for i := 0; i < 4096; i++ {
		assert.Equal(t, byte(0xFF), ctrl.Data()[i])
	}
}

func TestReadPastChipEndReturnsOutOfRange(t *testing.T) {
	flash, _ := attach(t, 4096)
	ctx := context.Background()

	buf := make([]byte, 16)
	err := flash.Read(ctx, 4096-8, buf)
	assert.Error(t, err)
}

func TestChipErase(t *testing.T) {
	flash, ctrl := attach(t, 4096)
	ctx := context.Background()

	require.NoError(t, flash.Program(ctx, 0, []byte{0x00, 0x00}))
	require.NoError(t, flash.ChipErase(ctx))

	for i := 0; i < len(ctrl.Data()); i++ {
		assert.Equal(t, byte(0xFF), ctrl.Data()[i])
	}
}
