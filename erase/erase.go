// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package erase implements the NOR erase planner (spec §4.5, component
// C5): a per-region erase-type table with largest-fits-remaining
// selection, alignment checks, and 3-byte/4-byte opcode split.
//
// The "erase the largest size that fits, then fall back to smaller sizes"
// loop is grounded on _examples/other_examples/a99a3f3c_gentam-gice__flash.go.go's
// Erase/Erase64KB/Erase4KB, generalized here from two hardcoded sizes to an
// arbitrary per-region N-entry erase-type table (region/plan shape from
// original_source/flash/spi-nor/core.h).
package erase

import (
	"context"

	"github.com/hackpascal/goflashprog/status"
	"github.com/hackpascal/goflashprog/utils"
)

// Type is one erase-type entry: a fixed size with its 3-byte and 4-byte
// addressing opcodes (spec §3 "Erase info").
type Type struct {
	Size      uint64
	Opcode3B  uint8
	Opcode4B  uint8 // 0 if no 4-byte variant is declared
	MaxMs     uint32
}

// Region covers a contiguous address range with an allowed subset of erase
// types, expressed as a bitset over Types (spec §3 "erase region").
type Region struct {
	Base, Size     uint64
	EraseTypeMask  uint8 // bit i => Types[i] usable in this region
}

func (r Region) End() uint64 { return r.Base + r.Size }

// Plan is the per-region erase-type table for one NOR part.
type Plan struct {
	Types   [4]Type
	Regions []Region
}

// Uniform builds a single-region plan spanning the whole chip with every
// populated type available everywhere (spec §4.5 "Uniform geometry yields
// a single region").
func Uniform(size uint64, types [4]Type) *Plan {
	var mask uint8
	for i, t := range types {
		if t.Size > 0 {
			mask |= 1 << uint(i)
		}
	}
	return &Plan{
		Types:   types,
		Regions: []Region{{Base: 0, Size: size, EraseTypeMask: mask}},
	}
}

// TotalSize returns the sum of every region's size (spec invariant 6:
// "size = sum(region.size)").
func (p *Plan) TotalSize() uint64 {
	var total uint64
	for _, r := range p.Regions {
		total += r.Size
	}
	return total
}

// RegionAt returns the region containing addr.
func (p *Plan) RegionAt(addr uint64) (*Region, error) {
	for i := range p.Regions {
		r := &p.Regions[i]
		if addr >= r.Base && addr < r.End() {
			return r, nil
		}
	}
	return nil, status.New(status.FlashAddressOutOfRange, "erase.RegionAt")
}

// smallestAllowed returns the smallest erase granularity usable anywhere in
// the region (used to compute alignment boundaries).
func (p *Plan) smallestAllowed(r *Region) uint64 {
	var smallest uint64
	for i, t := range p.Types {
		if r.EraseTypeMask&(1<<uint(i)) == 0 || t.Size == 0 {
			continue
		}
		if smallest == 0 || t.Size < smallest {
			smallest = t.Size
		}
	}
	return smallest
}

// GetEraseRange rounds [addr, addr+length) down/up to the nearest boundary
// permitted by the covering region(s)' erase-type masks (spec §4.5
// "get_erase_range").
func (p *Plan) GetEraseRange(addr, length uint64) (start, end uint64, err error) {
	startRegion, err := p.RegionAt(addr)
	if err != nil {
		return 0, 0, err
	}
	endRegion, err := p.RegionAt(addr + length - 1)
	if err != nil {
		return 0, 0, err
	}

	startAlign := p.smallestAllowed(startRegion)
	endAlign := p.smallestAllowed(endRegion)
	if startAlign == 0 || endAlign == 0 {
		return 0, 0, status.New(status.InvalidParameter, "erase.GetEraseRange: region has no usable erase type")
	}

	start = utils.AlignDown(addr, startAlign)
	end = utils.AlignUp(addr+length, endAlign)
	return start, end, nil
}

// IssueFunc performs one erase-type's wire transaction: write-enable,
// opcode+address (chosen 3B/4B opcode by the caller based on current
// addressing mode), and wait-busy bounded by maxMs. The erase package is
// transport-agnostic; nor.Flash supplies this callback.
type IssueFunc func(ctx context.Context, t Type, addr uint64) error

// EraseAt selects the largest erase size e such that addr%e==0 and
// e<=maxLen, issues it, and returns the number of bytes erased (spec §4.5
// "erase_at").
func (p *Plan) EraseAt(ctx context.Context, addr, maxLen uint64, issue IssueFunc) (uint64, error) {
	r, err := p.RegionAt(addr)
	if err != nil {
		return 0, err
	}

	var best *Type
	for i := range p.Types {
		t := &p.Types[i]
		if r.EraseTypeMask&(1<<uint(i)) == 0 || t.Size == 0 {
			continue
		}
		if addr%t.Size != 0 || t.Size > maxLen {
			continue
		}
		if best == nil || t.Size > best.Size {
			best = t
		}
	}
	if best == nil {
		return 0, status.New(status.InvalidParameter, "erase.EraseAt: no erase type fits at this address/length")
	}

	if err := issue(ctx, *best, addr); err != nil {
		return 0, err
	}
	return best.Size, nil
}

// Erase iterates EraseAt until [addr, addr+length) is fully covered. Both
// endpoints must already lie on region-permitted boundaries (spec §4.5
// "erase"); callers should pass the output of GetEraseRange if they started
// from an unaligned request.
func (p *Plan) Erase(ctx context.Context, addr, length uint64, issue IssueFunc) error {
	start, end, err := p.GetEraseRange(addr, length)
	if err != nil {
		return err
	}
	if start != addr || end != addr+length {
		return status.New(status.InvalidParameter, "erase.Erase: range is not erase-aligned")
	}

	for addr < end {
		n, err := p.EraseAt(ctx, addr, end-addr, issue)
		if err != nil {
			return err
		}
		addr += n
	}
	return nil
}
