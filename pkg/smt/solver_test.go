package smt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSatTrivialConstant(t *testing.T) {
	s := NewSolver()
	assert.True(t, s.IsSat())
}

func TestAssertUnsatDetected(t *testing.T) {
	s := NewSolver()
	x := NewSymbol("x", 4)
	s.Assert(x.Eq(NewConst(3, 4)))
	s.Assert(x.Eq(NewConst(5, 4)))
	assert.False(t, s.IsSat())
}

func TestAssertSatDetected(t *testing.T) {
	s := NewSolver()
	x := NewSymbol("x", 4)
	s.Assert(x.Ult(NewConst(5, 4)))
	assert.True(t, s.IsSat())
}

func TestPushPopScoping(t *testing.T) {
	s := NewSolver()
	x := NewSymbol("x", 4)
	s.Assert(x.Ult(NewConst(5, 4)))
	require.True(t, s.IsSat())

	s.Push()
	s.Assert(x.Eq(NewConst(10, 4)))
	assert.False(t, s.IsSat())
	s.Pop()

	assert.True(t, s.IsSat())
}

func TestPopWithoutPushPanics(t *testing.T) {
	s := NewSolver()
	assert.Panics(t, func() { s.Pop() })
}

func TestGetValuesEnumeratesWithinBound(t *testing.T) {
	s := NewSolver()
	x := NewSymbol("x", 2) // domain {0,1,2,3}
	vals, err := s.GetValues(x, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{0, 1, 2, 3}, vals)
}

func TestGetValuesTooManySolutions(t *testing.T) {
	s := NewSolver()
	x := NewSymbol("x", 2)
	_, err := s.GetValues(x, 2)
	assert.ErrorIs(t, err, ErrTooManySolutions)
}

func TestGetValuesRespectsAssertions(t *testing.T) {
	s := NewSolver()
	x := NewSymbol("x", 2)
	s.Assert(x.Eq(NewConst(1, 2)))
	vals, err := s.GetValues(x, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, vals)
}

func TestGetConstantFastPath(t *testing.T) {
	s := NewSolver()
	c := NewConst(42, 8)
	v, ok := s.GetConstant(c)
	require.True(t, ok)
	assert.Equal(t, uint64(42), v)
}

func TestGetConstantFailsForTrulySymbolic(t *testing.T) {
	s := NewSolver()
	x := NewSymbol("x", 4)
	_, ok := s.GetConstant(x)
	assert.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewSolver()
	x := NewSymbol("x", 4)
	s.Assert(x.Ult(NewConst(8, 4)))

	clone := s.Clone()
	clone.Assert(x.Eq(NewConst(12, 4)))

	assert.True(t, s.IsSat())
	assert.False(t, clone.IsSat())
}

func TestIsSatWithConstraintChecksHypothetical(t *testing.T) {
	s := NewSolver()
	x := NewSymbol("x", 4)
	s.Assert(x.Ult(NewConst(8, 4)))

	assert.True(t, s.IsSatWithConstraint(x.Eq(NewConst(3, 4))))
	assert.False(t, s.IsSatWithConstraint(x.Eq(NewConst(12, 4))))
}
