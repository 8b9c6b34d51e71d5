package smt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstArithFolds(t *testing.T) {
	a := NewConst(200, 8)
	b := NewConst(100, 8)
	sum := a.Add(b)
	v, ok := sum.IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(300-256), v) // wraps mod 256
}

func TestUaddoDetectsOverflow(t *testing.T) {
	a := NewConst(200, 8)
	b := NewConst(100, 8)
	overflow := a.Uaddo(b)
	v, ok := overflow.IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)

	noOverflow := NewConst(10, 8).Uaddo(NewConst(20, 8))
	v2, ok := noOverflow.IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0), v2)
}

func TestSignExtendPreservesValue(t *testing.T) {
	neg1 := NewConst(0xFF, 8) // -1 as int8
	ext := neg1.SignExtend(32)
	v, ok := ext.IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0xFFFFFFFF), v)
}

func TestZeroExtendPadsWithZero(t *testing.T) {
	v := NewConst(0xFF, 8).ZeroExtend(32)
	got, ok := v.IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0xFF), got)
}

func TestSliceAndConcatRoundTrip(t *testing.T) {
	orig := NewConst(0xDEAD, 16)
	lo := orig.Slice(0, 7)
	hi := orig.Slice(8, 15)
	rebuilt := Concat(hi, lo)
	got, ok := rebuilt.IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0xDEAD), got)
}

func TestResizeRoundTripsWithinWidth(t *testing.T) {
	orig := NewConst(0x1234, 16)
	truncated := orig.Resize(8)
	v, ok := truncated.IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0x34), v)

	widened := truncated.Resize(16)
	v2, ok := widened.IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0x34), v2)
}

func TestRorRotatesBits(t *testing.T) {
	v := NewConst(0x1, 8).Ror(NewConst(1, 8))
	got, ok := v.IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0x80), got)
}

func TestIteSelectsBranch(t *testing.T) {
	cond := FromBool(true)
	then := NewConst(1, 8)
	els := NewConst(2, 8)
	got, ok := Ite(cond, then, els).IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(1), got)
}

func TestCountOnesZeroesConst(t *testing.T) {
	v := NewConst(0b1011, 8)
	ones, ok := v.CountOnes().IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(3), ones)

	zeroes, ok := v.CountZeroes().IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(5), zeroes)
}

func TestCountLeadingZeroesConst(t *testing.T) {
	v := NewConst(0b00010000, 8)
	clz, ok := v.CountLeadingZeroes().IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(3), clz)

	zero := NewConst(0, 8)
	clzZero, ok := zero.CountLeadingZeroes().IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(8), clzZero)
}

func TestCountLeadingZeroesSymbolic(t *testing.T) {
	sym := NewSymbol("x", 8)
	clz := sym.CountLeadingZeroes()
	_, ok := clz.IsConst()
	assert.False(t, ok, "symbolic operand should not fold to a constant")
}

func TestPanicsOnWidthMismatch(t *testing.T) {
	assert.Panics(t, func() {
		NewConst(1, 8).Add(NewConst(1, 16))
	})
}

func TestPanicsOnOversizedConstant(t *testing.T) {
	assert.Panics(t, func() {
		NewConst(256, 8)
	})
}
