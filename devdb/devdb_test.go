// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package devdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackpascal/goflashprog/id"
	"github.com/hackpascal/goflashprog/nor"
)

func TestNewStoreLoadsNORAndNAND(t *testing.T) {
	s, err := NewStore("testdata/devices")
	require.NoError(t, err)

	require.Len(t, s.NORParts(), 1)
	require.Len(t, s.NANDParts(), 1)

	norPart := s.NORParts()[0]
	assert.Equal(t, "W25Q128JV", norPart.Name)
	assert.Equal(t, uint64(16777216), norPart.Size)
	assert.Equal(t, nor.PartFlag(nor.FlagSRVolatile), norPart.Flags)
	assert.Len(t, norPart.Ops3B, 3)

	nandPart := s.NANDParts()[0]
	assert.Equal(t, "GD5F1GQ4UBYIG", nandPart.Name)
	assert.Equal(t, uint32(2048), nandPart.Org.PageSize)
	require.NotNil(t, nandPart.ECC)

	eng := nandPart.ECC()
	require.NotNil(t, eng)
	assert.Equal(t, uint32(512), eng.Config().StepSize)
}

func TestNewStoreLayeredOverride(t *testing.T) {
	s, err := NewStore("testdata/devices", "testdata/devices_override")
	require.NoError(t, err)

	// Override directory replaces the winbond.json entry but must not
	// duplicate it, and must not drop the untouched gigadevice.json NAND
	// entry loaded from the base directory.
	require.Len(t, s.NORParts(), 1)
	require.Len(t, s.NANDParts(), 1)

	norPart := s.NORParts()[0]
	assert.Len(t, norPart.Ops3B, 1, "override file's single-opcode list should win")
	assert.Equal(t, uint32(vendorFlagQuadIOFastReadOnly), norPart.VendorFlags)
}

func TestNewStoreMissingDirIsNotAnError(t *testing.T) {
	s, err := NewStore("testdata/does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, s.NORParts())
	assert.Empty(t, s.NANDParts())
}

func TestMatchByIDPrefix(t *testing.T) {
	s, err := NewStore("testdata/devices")
	require.NoError(t, err)

	got := id.New(0xEF, 0x40, 0x18)
	var matched *nor.Part
	for _, p := range s.NORParts() {
		for _, cid := range p.IDs {
			if got.HasPrefix(cid.Slice()) {
				matched = p
			}
		}
	}
	require.NotNil(t, matched)
	assert.Equal(t, "W25Q128JV", matched.Name)
}
