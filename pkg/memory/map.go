package memory

import (
	"encoding/binary"

	"github.com/symex-go/symex/pkg/smt"
)

// Endianness selects byte order for multi-byte reads/writes against Map.
type Endianness uint8

const (
	LittleEndian Endianness = iota
	BigEndian
)

// Map is the byte-addressable symbolic RAM described in spec §3 "Memory":
// a theory-of-arrays store keyed by concrete byte address, holding one
// 8-bit smt.BV per written byte. Addresses never written read as a fresh
// per-address symbol, memoized so repeat reads of an untouched address
// return the same handle (spec §3 invariant, mirrored from RegisterFile's
// auto-vivify behavior).
type Map struct {
	bytes      map[uint64]*smt.BV
	endianness Endianness
}

// NewMap returns an empty symbolic RAM with the given byte order.
func NewMap(e Endianness) *Map {
	return &Map{bytes: make(map[uint64]*smt.BV), endianness: e}
}

// Endianness reports the configured byte order.
func (m *Map) Endianness() Endianness { return m.endianness }

// GetByte returns the symbolic byte at addr, auto-vivifying
// "mem:<addr>" if never written.
func (m *Map) GetByte(addr uint64) *smt.BV {
	if v, ok := m.bytes[addr]; ok {
		return v
	}
	fresh := smt.NewSymbol(symbolName(addr), 8)
	m.bytes[addr] = fresh
	return fresh
}

func symbolName(addr uint64) string {
	return "mem:" + uintToHex(addr)
}

func uintToHex(v uint64) string {
	const digits = "0123456789abcdef"
	if v == 0 {
		return "0"
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = digits[v&0xF]
		v >>= 4
	}
	return string(buf[i:])
}

// SetByte overwrites the byte at addr. Panics if value is not 8 bits wide.
func (m *Map) SetByte(addr uint64, value *smt.BV) {
	if value.Width() != 8 {
		panic("memory: SetByte requires an 8-bit value")
	}
	m.bytes[addr] = value
}

// Read assembles a width-bit value (width a multiple of 8) starting at
// addr, honoring the configured endianness.
func (m *Map) Read(addr uint64, width smt.Width) *smt.BV {
	if width == 0 || width%8 != 0 {
		panic("memory: Read requires a byte-multiple width")
	}
	n := int(width / 8)
	parts := make([]*smt.BV, n)
	for i := 0; i < n; i++ {
		parts[i] = m.GetByte(addr + uint64(i))
	}
	// parts[0] is the lowest address; assemble most-significant byte first
	// for Concat regardless of endianness, choosing which physical byte is
	// most significant based on configuration.
	var result *smt.BV
	for i := 0; i < n; i++ {
		var byteIdx int
		if m.endianness == LittleEndian {
			byteIdx = n - 1 - i
		} else {
			byteIdx = i
		}
		if result == nil {
			result = parts[byteIdx]
		} else {
			result = smt.Concat(result, parts[byteIdx])
		}
	}
	return result
}

// Write decomposes value into bytes and stores them at addr.., honoring
// the configured endianness. Panics if value's width is not a multiple of
// 8 bits.
func (m *Map) Write(addr uint64, value *smt.BV) {
	w := value.Width()
	if w == 0 || w%8 != 0 {
		panic("memory: Write requires a byte-multiple width")
	}
	n := int(w / 8)
	for i := 0; i < n; i++ {
		var shift uint32
		if m.endianness == LittleEndian {
			shift = uint32(i) * 8
		} else {
			shift = uint32(n-1-i) * 8
		}
		b := value.Lsr(smt.NewConst(uint64(shift), w)).Resize(8)
		m.SetByte(addr+uint64(i), b)
	}
}

// Clone returns an independent copy for path forking.
func (m *Map) Clone() *Map {
	bytes := make(map[uint64]*smt.BV, len(m.bytes))
	for k, v := range m.bytes {
		bytes[k] = v
	}
	return &Map{bytes: bytes, endianness: m.endianness}
}

// hostEndian exposes binary.ByteOrder equivalents for components (e.g. ELF
// loading) that need to decode concrete little/big-endian byte slices
// rather than symbolic RAM.
func (e Endianness) hostEndian() binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// DecodeConstWord decodes a concrete little/big-endian byte slice (per e)
// into a uint64, used when seeding Map from a loaded program image.
func DecodeConstWord(e Endianness, raw []byte) uint64 {
	switch len(raw) {
	case 1:
		return uint64(raw[0])
	case 2:
		return uint64(e.hostEndian().Uint16(raw))
	case 4:
		return uint64(e.hostEndian().Uint32(raw))
	case 8:
		return e.hostEndian().Uint64(raw)
	default:
		panic("memory: DecodeConstWord requires a 1/2/4/8-byte slice")
	}
}
