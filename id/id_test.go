// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTrimsTrailingPadding(t *testing.T) {
	got := New(0xEF, 0x40, 0x18, 0xFF, 0xFF)
	assert.Equal(t, uint8(3), got.Len)
	assert.Equal(t, []byte{0xEF, 0x40, 0x18}, got.Slice())
}

func TestNewTruncatesOverlongInput(t *testing.T) {
	got := New(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	assert.Equal(t, uint8(8), got.Len)
}

func TestEmpty(t *testing.T) {
	assert.True(t, New().Empty())
	assert.True(t, New(0xFF, 0xFF).Empty())
	assert.False(t, New(0x01).Empty())
}

func TestAllZeroAllOnes(t *testing.T) {
	assert.True(t, AllZero([]byte{0, 0, 0}))
	assert.False(t, AllZero([]byte{0, 1, 0}))
	assert.False(t, AllZero(nil))

	assert.True(t, AllOnes([]byte{0xFF, 0xFF}))
	assert.False(t, AllOnes([]byte{0xFF, 0xFE}))
	assert.False(t, AllOnes(nil))
}

func TestHasPrefix(t *testing.T) {
	got := New(0xEF, 0x40, 0x18)

	assert.True(t, got.HasPrefix([]byte{0xEF}))
	assert.True(t, got.HasPrefix([]byte{0xEF, 0x40}))
	assert.True(t, got.HasPrefix([]byte{0xEF, 0x40, 0x18}))
	assert.False(t, got.HasPrefix([]byte{0xEF, 0x41}))
	assert.False(t, got.HasPrefix([]byte{0xEF, 0x40, 0x18, 0x00}))
	assert.False(t, got.HasPrefix(nil))
}

func TestBestMatch(t *testing.T) {
	got := New(0xEF, 0x40, 0x18)

	candidates := [][]byte{
		{0xEF},
		{0xEF, 0x40},
		{0xC8},
	}
	assert.Equal(t, 1, BestMatch(got, candidates))
	assert.Equal(t, -1, BestMatch(got, [][]byte{{0xC8}}))
	assert.Equal(t, -1, BestMatch(got, nil))
}
