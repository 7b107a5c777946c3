// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Package ftl implements the basic flash translation layer spec §4.11
// describes: logical-to-physical block mapping over a NAND core and an
// optional bad-block table, page-stream read/write with caller-supplied
// pre/post callbacks, and block erase, all filtered to skip bad and
// reserved blocks.
//
// This is the basic 1:1-minus-bad-blocks FTL, not NMBM (Nand Mapped-Block
// Management): grounded on
// original_source/flash/nand/ftl/nmbm/nmbm.c only for the host-side
// lower-device contract it wraps (read/write/erase/is-bad/mark-bad routed
// through the NAND core); NMBM's own wear-leveling and relocation engine
// is out of scope and is meant to be supplied as a separate plugin
// conforming to the same contract.
package ftl

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hackpascal/goflashprog/bbt"
	"github.com/hackpascal/goflashprog/nand"
	"github.com/hackpascal/goflashprog/status"
)

// Partition restricts an FTL instance to a contiguous run of physical
// blocks (spec §4.11 "parameterized by an optional {base_block,
// block_count} partition").
type Partition struct {
	BaseBlock  uint32
	BlockCount uint32
}

// Flag controls filtering behaviour on read/write/erase operations (spec
// §4.11 "optional DONT_CHECK_BAD bypasses that filter for forensic
// workflows").
type Flag uint32

const (
	DontCheckBad Flag = 1 << iota
)

// Callbacks lets a page stream be pipelined with I/O and the caller's own
// decoding/encoding (spec §4.11 "a caller-provided {pre(requested),
// post(actual), buffer}"): Pre is called once per chunk to obtain a
// buffer sized for up to requested pages; Post is called with that same
// buffer once the chunk's pages have been moved, reporting how many of
// them actually succeeded.
type Callbacks struct {
	Pre  func(requested uint32) []byte
	Post func(buf []byte, actual uint32) error
}

// FTL composes a NAND core and an optional bad-block table into a
// logical address space (spec §3 "an FTL instance composes a NAND and
// optionally a BBT").
type FTL struct {
	mu sync.RWMutex

	nand      *nand.Flash
	bbt       *bbt.Table
	partition Partition

	// mapping[i] is the physical block backing logical block i, built by
	// Rebuild by walking the partition and skipping bad/reserved blocks.
	mapping []uint32
}

// New binds an FTL instance to flash, optionally composed with a bound
// BBT, over partition, and performs the initial mapping build.
func New(ctx context.Context, flash *nand.Flash, table *bbt.Table, partition Partition) (*FTL, error) {
	f := &FTL{
		nand:      flash,
		bbt:       table,
		partition: partition,
	}
	if err := f.Rebuild(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FTL) firstPageOfBlock(block uint32) uint64 {
	return uint64(block) << f.nand.Aux.PagesPerBlockShift
}

// Rebuild walks the partition's physical blocks in order, consulting the
// bound BBT if any (else querying the NAND core directly), and rebuilds
// the logical->physical mapping skipping bad and reserved blocks. Call it
// again after a BBT Commit changes block state.
func (f *FTL) Rebuild(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	mapping := make([]uint32, 0, f.partition.BlockCount)

	for i := uint32(0); i < f.partition.BlockCount; i++ {
		phys := f.partition.BaseBlock + i

		bad, reserved, err := f.blockStatus(ctx, phys)
		if err != nil {
			return err
		}
		if bad || reserved {
			continue
		}
		mapping = append(mapping, phys)
	}

	logrus.WithFields(logrus.Fields{
		"total":     f.partition.BlockCount,
		"available": len(mapping),
	}).Info("ftl: mapping rebuilt")

	f.mapping = mapping
	return nil
}

func (f *FTL) blockStatus(ctx context.Context, phys uint32) (bad, reserved bool, err error) {
	if f.bbt != nil {
		reserved = f.bbt.IsReserved(phys)
		st, serr := f.bbt.GetState(phys)
		if serr != nil {
			return false, false, serr
		}
		return st == bbt.StateBad, reserved, nil
	}

	ok, cerr := f.nand.CheckBad(ctx, f.firstPageOfBlock(phys))
	if cerr != nil {
		return false, false, cerr
	}
	return ok, false, nil
}

// physicalBlock resolves a logical block number to its physical block,
// honoring DontCheckBad by indexing the partition directly instead of
// the filtered mapping (spec §4.11's forensic bypass).
func (f *FTL) physicalBlock(logicalBlock uint32, flags Flag) (uint32, error) {
	if flags&DontCheckBad != 0 {
		if logicalBlock >= f.partition.BlockCount {
			return 0, status.New(status.InvalidParameter, "ftl: logical block out of range")
		}
		return f.partition.BaseBlock + logicalBlock, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if logicalBlock >= uint32(len(f.mapping)) {
		return 0, status.New(status.InvalidParameter, "ftl: logical block out of range")
	}
	return f.mapping[logicalBlock], nil
}

// Capacity returns the number of addressable logical blocks under the
// current filtered mapping.
func (f *FTL) Capacity() uint32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return uint32(len(f.mapping))
}

func (f *FTL) pagesPerBlock() uint64 {
	return uint64(1) << f.nand.Aux.PagesPerBlockShift
}

// logicalPageAddr splits a logical page number into its logical block
// and the page offset within that block.
func (f *FTL) logicalPageAddr(logicalPage uint64) (block uint32, offset uint64) {
	shift := f.nand.Aux.PagesPerBlockShift
	return uint32(logicalPage >> shift), logicalPage & (f.pagesPerBlock() - 1)
}

// physicalPage resolves a logical page number to its physical page,
// honoring flags the same way physicalBlock does.
func (f *FTL) physicalPage(logicalPage uint64, flags Flag) (uint64, error) {
	block, offset := f.logicalPageAddr(logicalPage)
	phys, err := f.physicalBlock(block, flags)
	if err != nil {
		return 0, err
	}
	return f.firstPageOfBlock(phys) + offset, nil
}

// ReadPages streams logicalCount pages starting at logicalPage through cb,
// skipping bad/reserved blocks transparently via the logical mapping (spec
// §4.11 "a page-stream ... supports a caller-provided {pre(requested),
// post(actual), buffer} so large operations can be pipelined with IO and
// decoding/encoding; it must skip reserved and bad blocks without reporting
// short-count, and must return the count of successfully moved pages on
// failure for resumption").
func (f *FTL) ReadPages(ctx context.Context, logicalPage uint64, logicalCount uint32, flags Flag, cb Callbacks) (uint32, error) {
	pageSize := f.nand.Aux.OOBPageSize

	var moved uint32
	for moved < logicalCount {
		requested := logicalCount - moved
		buf := cb.Pre(requested)
		if len(buf) == 0 {
			return moved, status.New(status.InvalidParameter, "ftl.ReadPages: Pre returned an empty buffer")
		}
		chunkPages := uint32(len(buf)) / pageSize
		if chunkPages > requested {
			chunkPages = requested
		}

		var done uint32
		for done < chunkPages {
			phys, err := f.physicalPage(logicalPage+uint64(moved)+uint64(done), flags)
			if err != nil {
				if perr := cb.Post(buf, done); perr != nil {
					return moved, perr
				}
				return moved + done, err
			}

			page := buf[done*pageSize : (done+1)*pageSize]
			if _, err := f.nand.ReadPage(ctx, phys, page); err != nil {
				if perr := cb.Post(buf, done); perr != nil {
					return moved, perr
				}
				return moved + done, err
			}
			done++
		}

		if err := cb.Post(buf, done); err != nil {
			return moved + done, err
		}
		moved += done
		if done < chunkPages {
			break
		}
	}
	return moved, nil
}

// WritePages is ReadPages's program-direction counterpart: Pre supplies the
// data for up to requested pages, which is then programmed page by page.
func (f *FTL) WritePages(ctx context.Context, logicalPage uint64, logicalCount uint32, flags Flag, cb Callbacks) (uint32, error) {
	pageSize := f.nand.Aux.OOBPageSize

	var moved uint32
	for moved < logicalCount {
		requested := logicalCount - moved
		buf := cb.Pre(requested)
		if len(buf) == 0 {
			return moved, status.New(status.InvalidParameter, "ftl.WritePages: Pre returned an empty buffer")
		}
		chunkPages := uint32(len(buf)) / pageSize
		if chunkPages > requested {
			chunkPages = requested
		}

		var done uint32
		for done < chunkPages {
			phys, err := f.physicalPage(logicalPage+uint64(moved)+uint64(done), flags)
			if err != nil {
				if perr := cb.Post(buf, done); perr != nil {
					return moved, perr
				}
				return moved + done, err
			}

			page := buf[done*pageSize : (done+1)*pageSize]
			if err := f.nand.ProgramPage(ctx, phys, page); err != nil {
				if perr := cb.Post(buf, done); perr != nil {
					return moved, perr
				}
				return moved + done, err
			}
			done++
		}

		if err := cb.Post(buf, done); err != nil {
			return moved + done, err
		}
		moved += done
		if done < chunkPages {
			break
		}
	}
	return moved, nil
}

// EraseBlocks erases logicalCount logical blocks starting at logicalBlock,
// skipping reserved blocks (spec §4.11 "erase_blocks likewise skips
// reserved blocks"). spread requests wear-spreading when the backing FTL
// supports it; the basic 1:1 mapping this package implements has no spare
// pool to spread across, so spread is accepted but has no effect here.
func (f *FTL) EraseBlocks(ctx context.Context, logicalBlock uint32, logicalCount uint32, flags Flag, spread bool) (uint32, error) {
	var erased uint32
	for erased < logicalCount {
		phys, err := f.physicalBlock(logicalBlock+erased, flags)
		if err != nil {
			return erased, err
		}
		if err := f.nand.EraseBlock(ctx, f.firstPageOfBlock(phys)); err != nil {
			return erased, err
		}
		erased++
	}
	return erased, nil
}
