// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package nand

import (
	"context"

	"github.com/hackpascal/goflashprog/status"
)

// ReadUID reads the part's UID-OTP page and majority-decodes it across the
// declared number of repeated copies (spec §4.8 "UID is read via the
// standard UID-OTP page with configurable repetition-majority decoding").
func (f *Flash) ReadUID(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Part == nil || f.Part.UID.Size == 0 {
		return nil, status.New(status.DeviceInvalidConfig, "nand.ReadUID: part declares no UID geometry")
	}

	if err := f.setOTPMode(ctx, true); err != nil {
		return nil, err
	}
	defer f.setOTPMode(ctx, false)

	repeats := f.Part.UID.Repeats
	if repeats == 0 {
		repeats = 1
	}

	buf := make([]byte, uint64(f.Part.UID.Size)*uint64(repeats))
	if _, err := f.readPageLocked(ctx, uint64(f.Part.UID.Page), 0, buf); err != nil {
		return nil, status.Wrap(status.DeviceIOError, "nand.ReadUID", err)
	}

	return majorityDecode(buf, f.Part.UID.Size, repeats), nil
}

// setOTPMode toggles the config feature register's OTP_EN bit (spec §4.8
// "UID is read via the standard UID-OTP page").
func (f *Flash) setOTPMode(ctx context.Context, enable bool) error {
	cfg, err := f.getFeature(ctx, featureConfigAddr)
	if err != nil {
		return err
	}
	if enable {
		cfg |= configOTPEn
	} else {
		cfg &^= configOTPEn
	}
	return f.setFeature(ctx, featureConfigAddr, cfg)
}

// majorityDecode votes, byte position by byte position, across repeats
// copies of a size-byte record, choosing the value with the most
// occurrences at each position (ties resolved by the first-seen value).
func majorityDecode(buf []byte, size, repeats uint32) []byte {
	out := make([]byte, size)
	counts := make(map[byte]int, repeats)
	for i := uint32(0); i < size; i++ {
		for k := range counts {
			delete(counts, k)
		}
		for r := uint32(0); r < repeats; r++ {
			idx := r*size + i
			if int(idx) >= len(buf) {
				continue
			}
			counts[buf[idx]]++
		}
		var best byte
		bestCount := -1
		for r := uint32(0); r < repeats; r++ {
			idx := r*size + i
			if int(idx) >= len(buf) {
				continue
			}
			v := buf[idx]
			if counts[v] > bestCount {
				best = v
				bestCount = counts[v]
			}
		}
		out[i] = best
	}
	return out
}
