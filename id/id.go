// Package id implements the chip identifier comparisons shared by the NOR
// and NAND probe paths and the device database (spec §3 "Identifier").
package id

// ID is a JEDEC-style (or SPI-NAND READ-ID) response: up to 8 bytes, with
// trailing 0xFF padding stripped to determine the effective length.
type ID struct {
	Bytes [8]byte
	Len   uint8
}

// New builds an ID from raw bytes, trimming trailing 0xFF padding.
func New(b ...byte) ID {
	if len(b) > 8 {
		b = b[:8]
	}
	var out ID
	copy(out.Bytes[:], b)
	out.Len = uint8(len(b))
	out.trim()
	return out
}

func (i *ID) trim() {
	for i.Len > 0 && i.Bytes[i.Len-1] == 0xFF {
		i.Len--
	}
}

// Slice returns the effective (trimmed) identifier bytes.
func (i ID) Slice() []byte {
	return i.Bytes[:i.Len]
}

// Empty reports whether the identifier carries no non-0xFF bytes at all,
// which on real hardware indicates "no device responded" rather than a
// legitimate part.
func (i ID) Empty() bool {
	return i.Len == 0
}

// AllZero reports whether every captured byte (before trimming) is 0x00,
// the other common "nothing responded" pattern on SPI buses.
func AllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return len(b) > 0
}

// AllOnes reports whether every captured byte is 0xFF.
func AllOnes(b []byte) bool {
	for _, v := range b {
		if v != 0xFF {
			return false
		}
	}
	return len(b) > 0
}

// HasPrefix reports whether i begins with prefix. A zero-length prefix never
// matches (an unspecified ID cannot be a match target).
func (i ID) HasPrefix(prefix []byte) bool {
	if len(prefix) == 0 || len(prefix) > int(i.Len) {
		return false
	}
	for idx, b := range prefix {
		if i.Bytes[idx] != b {
			return false
		}
	}
	return true
}

// BestMatch scans candidates (each a prefix to test against i) and returns
// the index of the longest matching prefix, or -1 if none match. Ties are
// resolved by preferring the earlier (more specific entries are expected to
// sort first in a real device database, but the longest-prefix rule is the
// authoritative tiebreaker per spec §4.6).
func BestMatch(i ID, candidates [][]byte) int {
	best := -1
	bestLen := -1
	for idx, c := range candidates {
		if i.HasPrefix(c) && len(c) > bestLen {
			best = idx
			bestLen = len(c)
		}
	}
	return best
}
