package riscv32

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symex-go/symex/pkg/arch"
	"github.com/symex-go/symex/pkg/executor"
	"github.com/symex-go/symex/pkg/hooks"
	"github.com/symex-go/symex/pkg/memory"
	"github.com/symex-go/symex/pkg/smt"
	"github.com/symex-go/symex/pkg/state"
)

type noProgram struct{}

func (noProgram) GetRawWord(uint64, smt.Width) (uint64, bool) { return 0, false }
func (noProgram) AddressInRange(uint64) bool                  { return false }

func newHarness(t *testing.T) (*Arch, *state.State, *smt.Solver, *executor.Executor) {
	t.Helper()
	a := New()
	mem := memory.NewOverlay(memory.NewMap(memory.LittleEndian), noProgram{})
	st := arch.NewState(a, mem)
	solver := smt.NewSolver()
	ex := executor.New(hooks.NewContainer(false), executor.DefaultConfig())
	return a, st, solver, ex
}

func encodeWord(w uint32) []byte {
	return []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
}

func step(t *testing.T, a *Arch, st *state.State, solver *smt.Solver, ex *executor.Executor, word uint32, pc uint64) executor.Result {
	t.Helper()
	inst, err := a.Translate(encodeWord(word), pc)
	require.NoError(t, err)
	return ex.Step(inst, st, solver)
}

func TestAddWraparound(t *testing.T) {
	a, st, solver, ex := newHarness(t)
	st.Registers.Set("x10", smt.NewConst(0xFFFFFFFF, 32)) // a0
	st.Registers.Set("x11", smt.NewConst(1, 32))           // a1

	res := step(t, a, st, solver, ex, 0x00B50533, 0)

	assert.Equal(t, executor.OutcomeContinue, res.Outcome)
	a0, ok := st.Registers.Get("x10").IsConst()
	require.True(t, ok)
	assert.EqualValues(t, 0, a0)
}

func TestBeqNotTaken(t *testing.T) {
	a, st, solver, ex := newHarness(t)
	st.Registers.Set("pc", smt.NewConst(16, 32))
	st.Registers.Set("x10", smt.NewConst(1, 32)) // a0
	st.Registers.Set("x11", smt.NewConst(5, 32)) // a1

	res := step(t, a, st, solver, ex, 0x00b50c63, 16)

	assert.Equal(t, executor.OutcomeContinue, res.Outcome)
	pc, ok := st.Registers.Get("pc").IsConst()
	require.True(t, ok)
	assert.EqualValues(t, 20, pc)
}

func TestBeqTaken(t *testing.T) {
	a, st, solver, ex := newHarness(t)
	st.Registers.Set("pc", smt.NewConst(16, 32))
	st.Registers.Set("x10", smt.NewConst(5, 32)) // a0
	st.Registers.Set("x11", smt.NewConst(5, 32)) // a1

	res := step(t, a, st, solver, ex, 0x00b50c63, 16)

	assert.Equal(t, executor.OutcomeContinue, res.Outcome)
	pc, ok := st.Registers.Get("pc").IsConst()
	require.True(t, ok)
	assert.EqualValues(t, 40, pc)
}
