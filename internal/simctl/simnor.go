package simctl

import (
	"context"

	"github.com/hackpascal/goflashprog/controller"
)

// NOR simulates a SPI-NOR chip over GenericXfer (spec §4.2's synthesis
// path), rather than implementing NativeSPIMem, so this double also
// exercises spibus's header-packing/merging logic (spec invariant 3).
type NOR struct {
	baseDevice

	id   []byte
	data []byte

	sr    byte // status register: bit0 busy, bit1 WEL
	naddr int  // current address width, flipped by EN4B(B7h)/EX4B(E9h)

	caps controller.Capabilities
}

// NewNOR builds a simulated NOR chip of size bytes (erased to 0xFF), which
// will answer READ-ID with id.
func NewNOR(size int, id []byte) *NOR {
	c := &NOR{
		id:    append([]byte(nil), id...),
		data:  make([]byte, size),
		naddr: 3,
		caps:  controller.CapDual | controller.CapQuad,
	}
	c.baseDevice.granularity = 4096
	fill(c.data, 0xFF)
	return c
}

func (c *NOR) SupportedInterfaces() controller.IfMask { return controller.IfSPI }
func (c *NOR) Capabilities() controller.Capabilities  { return c.caps }

// Data exposes the backing array directly for test assertions.
func (c *NOR) Data() []byte { return c.data }

const (
	norOpWREN     = 0x06
	norOpWRDI     = 0x04
	norOpReadID   = 0x9F
	norOpRDSR     = 0x05
	norOpWRSR     = 0x01
	norOpRead     = 0x03
	norOpFastRead = 0x0B
	norOp4BRead   = 0x0C
	norOpPP       = 0x02
	norOp4BPP     = 0x12
	norOpSE4K     = 0x20
	norOpBE32K    = 0x52
	norOpBE64K    = 0xD8
	norOp4BSE4K   = 0x21
	norOp4BBE64K  = 0xDC
	norOpCE       = 0xC7
	norOpEN4B     = 0xB7
	norOpEX4B     = 0xE9
)

func (c *NOR) GenericXfer(ctx context.Context, segs []controller.Segment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, in := segmentBytes(segs)
	if len(out) == 0 {
		return nil
	}
	opcode := out[0]
	rest := out[1:]

	switch opcode {
	case norOpWREN:
		c.sr |= 0x02
	case norOpWRDI:
		c.sr &^= 0x02
	case norOpReadID:
		if in != nil {
			n := copy(in.Buf, c.id)
			fill(in.Buf[n:], 0xFF)
		}
	case norOpRDSR:
		if in != nil {
			in.Buf[0] = c.sr
		}
	case norOpWRSR:
		if len(rest) > 0 {
			c.sr = rest[0] &^ 0x03 // WIP/WEL are not software-writable
		}
		c.sr &^= 0x02
	case norOpEN4B:
		c.naddr = 4
	case norOpEX4B:
		c.naddr = 3
	case norOpCE:
		fill(c.data, 0xFF)
		c.sr &^= 0x02
	case norOpSE4K, norOpBE32K, norOpBE64K, norOp4BSE4K, norOp4BBE64K:
		addr, _ := c.splitAddr(rest)
		size := eraseSizeFor(opcode)
		c.eraseAt(addr, size)
		c.sr &^= 0x02
	case norOpRead, norOpFastRead, norOp4BRead:
		addr, _ := c.splitAddr(rest)
		if in != nil {
			c.readAt(addr, in.Buf)
		}
	case norOpPP, norOp4BPP:
		addr, data := c.splitAddr(rest)
		c.programAt(addr, data)
		c.sr &^= 0x02
	default:
		// Unrecognised opcode: no-op, matching a real chip ignoring an
		// opcode it does not implement rather than erroring the envelope.
	}
	return nil
}

func eraseSizeFor(opcode byte) int {
	switch opcode {
	case norOpSE4K, norOp4BSE4K:
		return 4 * 1024
	case norOpBE32K:
		return 32 * 1024
	case norOpBE64K, norOp4BBE64K:
		return 64 * 1024
	default:
		return 4 * 1024
	}
}

// splitAddr separates the naddr-byte MSB-first address from any data/dummy
// bytes that followed it in one merged out segment.
func (c *NOR) splitAddr(rest []byte) (addr uint32, data []byte) {
	n := c.naddr
	if n > len(rest) {
		n = len(rest)
	}
	for i := 0; i < n; i++ {
		addr = addr<<8 | uint32(rest[i])
	}
	return addr, rest[n:]
}

func (c *NOR) readAt(addr uint32, buf []byte) {
	for i := range buf {
		off := int(addr) + i
		if off < len(c.data) {
			buf[i] = c.data[off]
		} else {
			buf[i] = 0xFF
		}
	}
}

func (c *NOR) programAt(addr uint32, data []byte) {
	for i, b := range data {
		off := int(addr) + i
		if off >= len(c.data) {
			break
		}
		c.data[off] &= b // NOR programming can only clear bits, like real flash
	}
}

func (c *NOR) eraseAt(addr uint32, size int) {
	start := int(addr)
	end := start + size
	if end > len(c.data) {
		end = len(c.data)
	}
	if start < 0 || start >= len(c.data) {
		return
	}
	fill(c.data[start:end], 0xFF)
}

var _ controller.Controller = (*NOR)(nil)
var _ controller.GenericXfer = (*NOR)(nil)
