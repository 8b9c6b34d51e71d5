package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symex-go/symex/pkg/smt"
)

func TestRegisterFileAutoVivifies(t *testing.T) {
	rf := NewRegisterFile(map[string]smt.Width{"r0": 32})
	a := rf.Get("r0")
	b := rf.Get("r0")
	assert.Same(t, a, b)
}

func TestRegisterFileSetGet(t *testing.T) {
	rf := NewRegisterFile(map[string]smt.Width{"r0": 32})
	rf.Set("r0", smt.NewConst(42, 32))
	v, ok := rf.Get("r0").IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(42), v)
}

func TestRegisterFileWidthMismatchPanics(t *testing.T) {
	rf := NewRegisterFile(map[string]smt.Width{"r0": 32})
	assert.Panics(t, func() { rf.Set("r0", smt.NewConst(1, 8)) })
}

func TestRegisterFileCloneIsIndependent(t *testing.T) {
	rf := NewRegisterFile(map[string]smt.Width{"r0": 32})
	rf.Set("r0", smt.NewConst(1, 32))
	clone := rf.Clone()
	clone.Set("r0", smt.NewConst(2, 32))

	v1, _ := rf.Get("r0").IsConst()
	v2, _ := clone.Get("r0").IsConst()
	assert.Equal(t, uint64(1), v1)
	assert.Equal(t, uint64(2), v2)
}

func TestFlagFileAutoVivifiesAndSets(t *testing.T) {
	ff := NewFlagFile([]string{"Z", "C"})
	ff.Set("Z", smt.FromBool(true))
	v, _ := ff.Get("Z").IsConst()
	assert.Equal(t, uint64(1), v)

	c := ff.Get("C")
	_, ok := c.IsConst()
	assert.False(t, ok)
}

func TestFPFileAutoVivifiesAndSets(t *testing.T) {
	fp := NewFPFile(map[string]smt.FPKind{"s0": smt.FPSingle})
	fp.Set("s0", smt.NewFPConst(1.5, smt.FPSingle))
	v, ok := fp.Get("s0").IsConst()
	require.True(t, ok)
	assert.Equal(t, 1.5, v)
}

func TestMapReadWriteLittleEndian(t *testing.T) {
	m := NewMap(LittleEndian)
	m.Write(0x1000, smt.NewConst(0xDEADBEEF, 32))
	v, ok := m.Read(0x1000, 32).IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0xDEADBEEF), v)

	lowByte, ok := m.GetByte(0x1000).IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0xEF), lowByte)
}

func TestMapReadWriteBigEndian(t *testing.T) {
	m := NewMap(BigEndian)
	m.Write(0x2000, smt.NewConst(0x11223344, 32))
	firstByte, ok := m.GetByte(0x2000).IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0x11), firstByte)
}

func TestMapUnwrittenAddressAutoVivifies(t *testing.T) {
	m := NewMap(LittleEndian)
	a := m.GetByte(0x42)
	b := m.GetByte(0x42)
	assert.Same(t, a, b)
}

func TestMapCloneIsIndependent(t *testing.T) {
	m := NewMap(LittleEndian)
	m.SetByte(0, smt.NewConst(1, 8))
	clone := m.Clone()
	clone.SetByte(0, smt.NewConst(2, 8))

	v1, _ := m.GetByte(0).IsConst()
	v2, _ := clone.GetByte(0).IsConst()
	assert.Equal(t, uint64(1), v1)
	assert.Equal(t, uint64(2), v2)
}

type fakeProgram struct {
	base uint64
	data []byte
}

func (f fakeProgram) AddressInRange(addr uint64) bool {
	return addr >= f.base && addr < f.base+uint64(len(f.data))
}

func (f fakeProgram) GetRawWord(addr uint64, width smt.Width) (uint64, bool) {
	if width != 8 || !f.AddressInRange(addr) {
		return 0, false
	}
	return uint64(f.data[addr-f.base]), true
}

func TestOverlayPrefersShadowThenProgramThenRAM(t *testing.T) {
	prog := fakeProgram{base: 0x8000, data: []byte{0xAA, 0xBB}}
	ov := NewOverlay(NewMap(LittleEndian), prog)

	v, ok := ov.ReadByte(0x8000).IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0xAA), v)

	ov.Write(0x8000, smt.NewConst(0xFF, 8))
	v2, ok := ov.ReadByte(0x8000).IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0xFF), v2)

	outside := ov.ReadByte(0x9000)
	_, ok = outside.IsConst()
	assert.False(t, ok)
}
