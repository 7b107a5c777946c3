package simctl

import (
	"context"

	"github.com/hackpascal/goflashprog/controller"
)

// NAND simulates a SPI-NAND chip with on-die ECC over GenericXfer: pages
// are page_size+oob_size raw bytes, PROGRAM_LOAD/PROGRAM_EXECUTE is
// two-phase exactly like the real protocol (spec §4.8), and the on-die ECC
// engine's only host-visible surface — the feature-register ECC bits — is
// driven by a per-page "simulated bitflip count" the test injects via
// Corrupt, so nand.Flash.ReadPage's ECC_CORRECTED/ECC_UNCORRECTABLE
// classification can be exercised without modelling real analog decay
// (spec invariant 9).
type NAND struct {
	baseDevice

	id []byte

	pageSize, oobSize, pagesPerBlock, blockCount int
	eccStrength                                  int

	pages     [][]byte
	flips     []int
	loadCache []byte
	readCache []byte

	features map[byte]byte
	lastStat byte
	curDie   int
}

func NewNAND(pageSize, oobSize, pagesPerBlock, blockCount, eccStrength int, id []byte) *NAND {
	n := blockCount * pagesPerBlock
	c := &NAND{
		id:            append([]byte(nil), id...),
		pageSize:      pageSize,
		oobSize:       oobSize,
		pagesPerBlock: pagesPerBlock,
		blockCount:    blockCount,
		eccStrength:   eccStrength,
		pages:         make([][]byte, n),
		flips:         make([]int, n),
		features:      map[byte]byte{},
	}
	c.baseDevice.granularity = uint32(pageSize + oobSize)
	raw := pageSize + oobSize
	for i := range c.pages {
		c.pages[i] = make([]byte, raw)
		fill(c.pages[i], 0xFF)
	}
	c.loadCache = make([]byte, raw)
	c.readCache = make([]byte, raw)
	return c
}

func (c *NAND) SupportedInterfaces() controller.IfMask { return controller.IfNAND }
func (c *NAND) Capabilities() controller.Capabilities {
	return controller.CapDual | controller.CapQuad
}

// Page returns the raw stored bytes for page n, for test assertions.
func (c *NAND) Page(n uint64) []byte { return c.pages[n] }

// Corrupt simulates n bitflips accruing in page since it was last
// programmed or erased; it does not touch the stored bytes (the host never
// sees raw storage under on-die ECC), only the count the chip's internal
// ECC engine will report on the next PAGE_READ_TO_CACHE.
func (c *NAND) Corrupt(page uint64, n int) { c.flips[page] = n }

const (
	nandOpReset      = 0xFF
	nandOpReadID     = 0x9F
	nandOpGetFeature = 0x0F
	nandOpSetFeature = 0x1F
	nandOpPageRead   = 0x13
	nandOpReadCache0 = 0x03
	nandOpReadCache1 = 0x0B
	nandOpReadCache2 = 0x3B
	nandOpReadCache3 = 0x6B
	nandOpWriteEn    = 0x06
	nandOpProgLoad   = 0x02
	nandOpProgLoadQ  = 0x32
	nandOpProgExec   = 0x10
	nandOpBlockErase = 0xD8
	nandOpSelectDie  = 0xC2

	featureStatusAddr = 0xC0
	statusOIP         = 1 << 0
	statusEraseFail   = 1 << 2
	statusProgramFail = 1 << 3
	statusECCShift    = 4
	statusECCMask     = 0x3 << statusECCShift
)

func (c *NAND) GenericXfer(ctx context.Context, segs []controller.Segment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, in := segmentBytes(segs)
	if len(out) == 0 {
		return nil
	}
	opcode := out[0]
	rest := out[1:]

	switch opcode {
	case nandOpReset:
	case nandOpReadID:
		if in != nil {
			n := copy(in.Buf, c.id)
			fill(in.Buf[n:], 0xFF)
		}
	case nandOpGetFeature:
		addr := rest[0]
		if in != nil {
			if addr == featureStatusAddr {
				in.Buf[0] = c.lastStat
			} else {
				in.Buf[0] = c.features[addr]
			}
		}
	case nandOpSetFeature:
		addr, val := rest[0], rest[1]
		c.features[addr] = val
	case nandOpPageRead:
		row := be24(rest)
		c.loadToCache(row)
	case nandOpReadCache0, nandOpReadCache1, nandOpReadCache2, nandOpReadCache3:
		col := int(rest[0])<<8 | int(rest[1])
		if in != nil {
			for i := range in.Buf {
				if col+i < len(c.readCache) {
					in.Buf[i] = c.readCache[col+i]
				} else {
					in.Buf[i] = 0xFF
				}
			}
		}
	case nandOpWriteEn:
	case nandOpProgLoad, nandOpProgLoadQ:
		col := int(rest[0])<<8 | int(rest[1])
		data := rest[2:]
		fill(c.loadCache, 0xFF)
		for i, b := range data {
			if col+i < len(c.loadCache) {
				c.loadCache[col+i] = b
			}
		}
	case nandOpProgExec:
		row := be24(rest)
		c.commitProgram(row)
	case nandOpBlockErase:
		row := be24(rest)
		c.eraseBlock(row)
	case nandOpSelectDie:
		if len(rest) > 0 {
			c.curDie = int(rest[0])
		}
	default:
	}
	return nil
}

func be24(b []byte) uint32 {
	var v uint32
	for i := 0; i < 3 && i < len(b); i++ {
		v = v<<8 | uint32(b[i])
	}
	return v
}

func (c *NAND) loadToCache(page uint32) {
	if int(page) >= len(c.pages) {
		fill(c.readCache, 0xFF)
		return
	}
	copy(c.readCache, c.pages[page])

	flips := c.flips[page]
	var eccBits byte
	switch {
	case flips == 0:
		eccBits = 0
	case flips <= c.eccStrength:
		eccBits = 1
	default:
		eccBits = 2
	}
	c.lastStat = (c.lastStat &^ statusECCMask) | (eccBits << statusECCShift)
}

func (c *NAND) commitProgram(page uint32) {
	if int(page) >= len(c.pages) {
		return
	}
	dst := c.pages[page]
	for i := range dst {
		if i < len(c.loadCache) {
			dst[i] &= c.loadCache[i] // NAND programming can only clear bits
		}
	}
	c.flips[page] = 0
	c.lastStat &^= statusProgramFail
}

func (c *NAND) eraseBlock(page uint32) {
	block := int(page) / c.pagesPerBlock
	if block < 0 || block >= c.blockCount {
		return
	}
	start := block * c.pagesPerBlock
	for i := start; i < start+c.pagesPerBlock; i++ {
		fill(c.pages[i], 0xFF)
		c.flips[i] = 0
	}
	c.lastStat &^= statusEraseFail
}

var _ controller.Controller = (*NAND)(nil)
var _ controller.GenericXfer = (*NAND)(nil)
