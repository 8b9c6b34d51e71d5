package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestImage builds an ELFMemory directly from segments, bypassing Load
// (which needs a real ELF file on disk) so GetRawWord/AddressInRange/
// symbol lookup can be exercised without a toolchain-produced fixture.
func newTestImage() *ELFMemory {
	return &ELFMemory{
		entry: 0x1000,
		segments: []segment{
			{addr: 0x1000, bytes: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}},
			{addr: 0x2000, bytes: []byte{0xAA, 0xBB}},
		},
		symbols: map[string]uint64{"main": 0x1000, "helper": 0x1004},
	}
}

func TestAddressInRange(t *testing.T) {
	img := newTestImage()
	assert.True(t, img.AddressInRange(0x1000))
	assert.True(t, img.AddressInRange(0x1007))
	assert.False(t, img.AddressInRange(0x1008))
	assert.True(t, img.AddressInRange(0x2000))
	assert.False(t, img.AddressInRange(0x1FFF))
}

func TestGetRawWordLittleEndian(t *testing.T) {
	img := newTestImage()
	v, ok := img.GetRawWord(0x1000, 32)
	require.True(t, ok)
	assert.EqualValues(t, 0x04030201, v)
}

func TestGetRawWordOutOfRange(t *testing.T) {
	img := newTestImage()
	_, ok := img.GetRawWord(0x3000, 8)
	assert.False(t, ok)
}

func TestGetRawWordSpanningSegmentEndFails(t *testing.T) {
	img := newTestImage()
	_, ok := img.GetRawWord(0x2001, 16) // second byte would fall past the 2-byte segment
	assert.False(t, ok)
}

func TestGetRawBytes(t *testing.T) {
	img := newTestImage()
	b, ok := img.GetRawBytes(0x1002, 4)
	require.True(t, ok)
	assert.Equal(t, []byte{0x03, 0x04, 0x05, 0x06}, b)

	_, ok = img.GetRawBytes(0x1006, 4) // past segment end
	assert.False(t, ok)
}

func TestSymbolLookup(t *testing.T) {
	img := newTestImage()
	v, ok := img.Symbol("main")
	require.True(t, ok)
	assert.EqualValues(t, 0x1000, v)

	_, ok = img.Symbol("nonexistent")
	assert.False(t, ok)
}

func TestSymbolsReturnsIndependentCopy(t *testing.T) {
	img := newTestImage()
	syms := img.Symbols()
	syms["injected"] = 0xdead
	_, ok := img.Symbol("injected")
	assert.False(t, ok)
}

func TestEntryPoint(t *testing.T) {
	img := newTestImage()
	assert.EqualValues(t, 0x1000, img.EntryPoint())
}
