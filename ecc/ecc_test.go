// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package ecc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackpascal/goflashprog/ecc"
)

func TestNewExternalSelectsLargestFittingStrength(t *testing.T) {
	// pageSize=2048, spareSize=128 -> 4 steps of 32 spare bytes each,
	// 24 usable bytes after the 8-byte FDM carve-out -> 192 parity bits,
	// room for strength 14 at 13 bits per BCH unit, so the engine must
	// settle for strength 12 (the largest cap <= 14), per spec §4.9.
	e, err := ecc.NewExternal(2048, 128, false)
	require.NoError(t, err)

	cfg := e.Config()
	assert.EqualValues(t, 512, cfg.StepSize)
	assert.EqualValues(t, 12, cfg.StrengthPerStep)
}

func TestNewExternalRejectsNonSectorMultiplePageSize(t *testing.T) {
	_, err := ecc.NewExternal(2047, 128, false)
	assert.Error(t, err)
}

func TestNewExternalRejectsUndersizedSpare(t *testing.T) {
	// 1 step, 8 spare bytes total == fdmSize, leaving zero bytes for parity.
	_, err := ecc.NewExternal(512, 8, false)
	assert.Error(t, err)
}

func TestPageLayoutRawAndCanonicalAgreeOnSize(t *testing.T) {
	e, err := ecc.NewExternal(2048, 128, false)
	require.NoError(t, err)

	raw := e.PageLayout(false)
	canonical := e.PageLayout(true)
	assert.Equal(t, raw.Size(), canonical.Size())
	assert.EqualValues(t, 2048+128, raw.Size())
}

func TestConvertPageLayoutRawCanonicalRawIsIdentity(t *testing.T) {
	e, err := ecc.NewExternal(2048, 128, false)
	require.NoError(t, err)

	raw := make([]byte, 2048+128)
	for i := range raw {
		raw[i] = byte(i)
	}

	canonical := make([]byte, len(raw))
	require.NoError(t, e.ConvertPageLayout(canonical, raw, false))

	back := make([]byte, len(raw))
	require.NoError(t, e.ConvertPageLayout(back, canonical, true))

	assert.Equal(t, raw, back)
}

func TestDecodePageRejectsShortBuffer(t *testing.T) {
	e, err := ecc.NewExternal(2048, 128, false)
	require.NoError(t, err)

	_, err = e.DecodePage(make([]byte, 10))
	assert.Error(t, err)
}

func TestOnDieDecodeFeatureStatusMapsEveryCode(t *testing.T) {
	o := &ecc.OnDie{PageSize: 2048, OOBSize: 64, Strength: 4, StepSize: 512}

	cases := []struct {
		bits          uint8
		corrected     bool
		uncorrectable bool
	}{
		{0, false, false},
		{1, true, false},
		{2, false, true},
		{3, true, false},
	}
	for _, c := range cases {
		res := o.DecodeFeatureStatus(c.bits)
		assert.Equal(t, c.corrected, res.Corrected, "bits=%d", c.bits)
		assert.Equal(t, c.uncorrectable, res.Uncorrectable, "bits=%d", c.bits)
	}
}
