// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package memorg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLayouts() (raw, canonical Layout) {
	raw = Layout{
		{Count: 512, Kind: KindData},
		{Count: 8, Kind: KindOobFree},
		{Count: 8, Kind: KindEccParity},
		{Count: 512, Kind: KindData},
		{Count: 8, Kind: KindOobFree},
		{Count: 8, Kind: KindEccParity},
	}
	canonical = Layout{
		{Count: 1024, Kind: KindData},
		{Count: 16, Kind: KindOobFree},
		{Count: 16, Kind: KindEccParity},
	}
	return
}

func TestPageLayoutToMapLengthAndSum(t *testing.T) {
	raw, _ := testLayouts()
	m := raw.ToMap()
	assert.Len(t, m, int(raw.Size()))
	assert.EqualValues(t, 1056, raw.Size())
}

func TestConvertRawCanonicalRawIsIdentity(t *testing.T) {
	raw, canonical := testLayouts()

	src := make([]byte, raw.Size())
	for i := range src {
		src[i] = byte(i)
	}

	canon, err := CanonicalFromRaw(src, raw, canonical)
	require.NoError(t, err)
	assert.Len(t, canon, int(canonical.Size()))

	back, err := RawFromCanonical(canon, raw, canonical)
	require.NoError(t, err)
	assert.Equal(t, src, back)
}

func TestFillByLayoutSubstitutesFFForMissingKind(t *testing.T) {
	dst := Layout{{Count: 4, Kind: KindUnused}}
	src := Layout{{Count: 4, Kind: KindData}} // same size, no KindUnused offsets at all

	out, err := FillByLayout(dst, src, make([]byte, 4), FillUnused)
	require.NoError(t, err)
	for _, b := range out {
		assert.Equal(t, byte(0xFF), b)
	}
}
