// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

package devdb

import (
	"github.com/mitchellh/mapstructure"

	"github.com/hackpascal/goflashprog/status"
)

// vendorFlagBits is the typed shape a part's free-form "vendor_flags" JSON
// object decodes into, playing the same role as the teacher's AttrConv
// preset tokens (cmd/drivedb.AttrConv): a loosely-typed source document
// decoded into named Go fields, here via mapstructure instead of hand
// splitting "-v" tokens.
//
// Each true field ORs its bit into nor.Part.VendorFlags/the part's
// vendor-specific extension word; unrecognised JSON keys are ignored by
// mapstructure rather than rejected, so a database file may carry
// forward-looking hints a given build does not yet act on.
type vendorFlagBits struct {
	QuadIOFastReadOnly bool `mapstructure:"quad_io_fast_read_only"`
	DualDieStack       bool `mapstructure:"dual_die_stack"`
	StatusRegNoWIP     bool `mapstructure:"status_reg_no_wip"`
	UnlockAtProbe      bool `mapstructure:"unlock_at_probe"`
}

const (
	vendorFlagQuadIOFastReadOnly uint32 = 1 << iota
	vendorFlagDualDieStack
	vendorFlagStatusRegNoWIP
	vendorFlagUnlockAtProbe
)

// decodeVendorFlags turns a part's free-form vendor_flags object into the
// packed uint32 nor.Part.VendorFlags carries.
func decodeVendorFlags(raw map[string]interface{}) (uint32, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	var bits vendorFlagBits
	if err := mapstructure.Decode(raw, &bits); err != nil {
		return 0, status.Wrap(status.InvalidParameter, "devdb.decodeVendorFlags", err)
	}

	var out uint32
	if bits.QuadIOFastReadOnly {
		out |= vendorFlagQuadIOFastReadOnly
	}
	if bits.DualDieStack {
		out |= vendorFlagDualDieStack
	}
	if bits.StatusRegNoWIP {
		out |= vendorFlagStatusRegNoWIP
	}
	if bits.UnlockAtProbe {
		out |= vendorFlagUnlockAtProbe
	}
	return out, nil
}
