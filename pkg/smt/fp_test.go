package smt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFPConstArithFolds(t *testing.T) {
	a := NewFPConst(1.5, FPDouble)
	b := NewFPConst(2.25, FPDouble)
	sum := a.Add(b)
	v, ok := sum.IsConst()
	require.True(t, ok)
	assert.Equal(t, 3.75, v)
}

func TestFPSingleRoundsOnConstruction(t *testing.T) {
	v := NewFPConst(0.1, FPSingle)
	got, ok := v.IsConst()
	require.True(t, ok)
	assert.Equal(t, float64(float32(0.1)), got)
}

func TestFPToBitsRoundTrip(t *testing.T) {
	v := NewFPConst(3.14, FPDouble)
	bits := v.ToBits()
	back := FPFromBits(bits, FPDouble)
	got, ok := back.IsConst()
	require.True(t, ok)
	assert.Equal(t, 3.14, got)
}

func TestFPSingleToBitsWidth(t *testing.T) {
	v := NewFPConst(1.0, FPSingle)
	bits := v.ToBits()
	assert.Equal(t, Width(32), bits.Width())
	got, _ := bits.IsConst()
	assert.Equal(t, uint64(math.Float32bits(1.0)), got)
}

func TestFPComparisons(t *testing.T) {
	a := NewFPConst(1.0, FPDouble)
	b := NewFPConst(2.0, FPDouble)
	lt, ok := a.Lt(b).IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(1), lt)

	eq, ok := a.Eq(a).IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(1), eq)
}

func TestFPNaNComparesFalse(t *testing.T) {
	nan := NewFPConst(math.NaN(), FPDouble)
	eq, ok := nan.Eq(nan).IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0), eq)
}

func TestFPToBVTruncatesTowardZero(t *testing.T) {
	v := NewFPConst(3.9, FPDouble)
	iv, ok := v.ToBV(8, false).IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(3), iv)
}

func TestFPFromBVSigned(t *testing.T) {
	negOne := NewConst(0xFF, 8) // -1 as int8
	f := FPFromBV(negOne, FPDouble, true)
	v, ok := f.IsConst()
	require.True(t, ok)
	assert.Equal(t, -1.0, v)
}
