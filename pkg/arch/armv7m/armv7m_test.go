package armv7m

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

func step(t *testing.T, a *Arch, st *state.State, solver *smt.Solver, ex *executor.Executor, bytes []byte) executor.Result {
	t.Helper()
	inst, err := a.Translate(bytes, 0)
	require.NoError(t, err)
	return ex.Step(inst, st, solver)
}

func TestAdcRegisterNoFlagSet(t *testing.T) {
	a, st, solver, ex := newHarness(t)
	st.Registers.Set("r1", smt.NewConst(2, 32))
	st.Registers.Set("r2", smt.NewConst(3, 32))
	st.Flags.Set("C", smt.NewConst(1, 1))

	res := step(t, a, st, solver, ex, []byte{0x41, 0xEB, 0x02, 0x01})

	assert.Equal(t, executor.OutcomeContinue, res.Outcome)
	r1, ok := st.Registers.Get("r1").IsConst()
	require.True(t, ok)
	assert.EqualValues(t, 6, r1)
	c, ok := st.Flags.Get("C").IsConst()
	require.True(t, ok)
	assert.EqualValues(t, 1, c)
}

func TestAdcRegisterUnsignedOverflow(t *testing.T) {
	a, st, solver, ex := newHarness(t)
	st.Registers.Set("r1", smt.NewConst(0x80000000, 32))
	st.Registers.Set("r2", smt.NewConst(0x80000000, 32))
	st.Flags.Set("C", smt.NewConst(0, 1))

	res := step(t, a, st, solver, ex, []byte{0x51, 0xEB, 0x02, 0x01})

	assert.Equal(t, executor.OutcomeContinue, res.Outcome)
	r1, ok := st.Registers.Get("r1").IsConst()
	require.True(t, ok)
	assert.EqualValues(t, 0, r1)
	c, _ := st.Flags.Get("C").IsConst()
	z, _ := st.Flags.Get("Z").IsConst()
	v, _ := st.Flags.Get("V").IsConst()
	assert.EqualValues(t, 1, c)
	assert.EqualValues(t, 1, z)
	assert.EqualValues(t, 1, v)
}

func TestLdrImmediateWriteback(t *testing.T) {
	a, st, solver, ex := newHarness(t)
	st.Memory.Write(0x104, smt.NewConst(0x100, 32))
	st.Registers.Set("sp", smt.NewConst(0x100, 32))
	st.Registers.Set("r1", smt.NewConst(0x3, 32))

	res := step(t, a, st, solver, ex, []byte{0x5D, 0xF8, 0x04, 0x1F})

	assert.Equal(t, executor.OutcomeContinue, res.Outcome)
	r1, ok := st.Registers.Get("r1").IsConst()
	require.True(t, ok)
	assert.EqualValues(t, 0x100, r1)
	sp, ok := st.Registers.Get("sp").IsConst()
	require.True(t, ok)
	assert.EqualValues(t, 0x104, sp)
	mem, ok := st.Memory.Read(0x104, 32).IsConst()
	require.True(t, ok)
	assert.EqualValues(t, 0x100, mem)
}

func TestPushPopRoundTrip(t *testing.T) {
	a, st, solver, ex := newHarness(t)
	st.Registers.Set("sp", smt.NewConst(0x110, 32))
	st.Registers.Set("r4", smt.NewConst(0x1001, 32))
	st.Registers.Set("r5", smt.NewConst(0x1002, 32))
	st.Registers.Set("r7", smt.NewConst(0x1003, 32))
	st.Registers.Set("lr", smt.NewConst(0x1003, 32))

	res := step(t, a, st, solver, ex, []byte{0xB0, 0xB5})
	require.Equal(t, executor.OutcomeContinue, res.Outcome)
	sp, ok := st.Registers.Get("sp").IsConst()
	require.True(t, ok)
	assert.EqualValues(t, 0x100, sp)

	st.Registers.Set("r4", smt.NewConst(0, 32))
	st.Registers.Set("r5", smt.NewConst(0, 32))
	st.Registers.Set("r7", smt.NewConst(0, 32))

	res = step(t, a, st, solver, ex, []byte{0xB0, 0xBD})
	require.Equal(t, executor.OutcomeContinue, res.Outcome)

	sp, ok = st.Registers.Get("sp").IsConst()
	require.True(t, ok)
	assert.EqualValues(t, 0x110, sp)
	r4, _ := st.Registers.Get("r4").IsConst()
	r5, _ := st.Registers.Get("r5").IsConst()
	r7, _ := st.Registers.Get("r7").IsConst()
	pc, _ := st.Registers.Get("pc").IsConst()
	assert.EqualValues(t, 0x1001, r4)
	assert.EqualValues(t, 0x1002, r5)
	assert.EqualValues(t, 0x1003, r7)
	assert.EqualValues(t, 0x1002, pc) // saved LR 0x1003 with the Thumb bit masked off
}
