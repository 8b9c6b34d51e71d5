package ga

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewOperationValidatesOperandCount(t *testing.T) {
	op := NewOperation(OpAdd, Local(0), Register("r0"), Immediate(1, 32))
	assert.Equal(t, 2, len(op.Operands))
}

func TestNewOperationPanicsOnMismatch(t *testing.T) {
	assert.Panics(t, func() {
		NewOperation(OpAdd, Local(0), Register("r0"))
	})
}

func TestVariadicCallAcceptsAnyOperandCount(t *testing.T) {
	assert.NotPanics(t, func() {
		NewOperation(OpCall, Operand{}, Immediate(0, 32), Register("r0"), Register("r1"))
	})
}

func TestIsTerminator(t *testing.T) {
	assert.True(t, OpBranch.IsTerminator())
	assert.True(t, OpReturn.IsTerminator())
	assert.False(t, OpAdd.IsTerminator())
}

func TestMnemonicLookup(t *testing.T) {
	assert.Equal(t, "add", OpAdd.Mnemonic())
	assert.Equal(t, "fpsqrt", OpFPSqrt.Mnemonic())
}

func TestOperandStringForms(t *testing.T) {
	assert.Equal(t, "r0", Register("r0").String())
	assert.Equal(t, "%3", Local(3).String())
	base := Register("r1")
	mem := Memory(base, nil, 0, 4, 32)
	assert.Equal(t, "[r1+4:32]", mem.String())
}
