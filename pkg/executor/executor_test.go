package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symex-go/symex/pkg/ga"
	"github.com/symex-go/symex/pkg/hooks"
	"github.com/symex-go/symex/pkg/memory"
	"github.com/symex-go/symex/pkg/smt"
	"github.com/symex-go/symex/pkg/state"
)

func newHarness() (*Executor, *state.State, *smt.Solver) {
	regs := memory.NewRegisterFile(map[string]smt.Width{"pc": 32, "r0": 32, "r1": 32})
	flags := memory.NewFlagFile([]string{"C"})
	fp := memory.NewFPFile(map[string]smt.FPKind{})
	mem := memory.NewOverlay(memory.NewMap(memory.LittleEndian), nil)
	st := state.New(regs, flags, fp, mem, "pc")
	st.WritePC(smt.NewConst(0x1000, 32))
	ex := New(hooks.NewContainer(false), DefaultConfig())
	return ex, st, smt.NewSolver()
}

func TestStepAddWritesRegister(t *testing.T) {
	ex, st, solver := newHarness()
	st.Registers.Set("r0", smt.NewConst(5, 32))
	st.Registers.Set("r1", smt.NewConst(7, 32))
	inst := ga.Instruction{
		Mnemonic: "add r0, r0, r1",
		Ops: []ga.Operation{
			ga.NewOperation(ga.OpAdd, ga.Register("r0"), ga.Register("r0"), ga.Register("r1")),
		},
	}
	res := ex.Step(inst, st, solver)
	assert.Equal(t, OutcomeContinue, res.Outcome)
	v, ok := st.Registers.Get("r0").IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(12), v)
}

func TestStepMemoryLoadStoreRoundTrip(t *testing.T) {
	ex, st, solver := newHarness()
	st.Registers.Set("r0", smt.NewConst(0xCAFEBABE, 32))
	st.Registers.Set("r1", smt.NewConst(0x2000, 32))

	base := ga.Register("r1")
	memOperand := ga.Memory(base, nil, 0, 0, 32)
	storeInst := ga.Instruction{
		Ops: []ga.Operation{ga.NewOperation(ga.OpStore, ga.Operand{}, memOperand, ga.Register("r0"))},
	}
	res := ex.Step(storeInst, st, solver)
	require.Equal(t, OutcomeContinue, res.Outcome)

	loadInst := ga.Instruction{
		Ops: []ga.Operation{ga.NewOperation(ga.OpLoad, ga.Register("r0"), memOperand)},
	}
	st.Registers.Set("r0", smt.NewConst(0, 32))
	res2 := ex.Step(loadInst, st, solver)
	require.Equal(t, OutcomeContinue, res2.Outcome)
	v, ok := st.Registers.Get("r0").IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0xCAFEBABE), v)
}

func TestBranchUnconditionalSetsPC(t *testing.T) {
	ex, st, solver := newHarness()
	inst := ga.Instruction{
		Ops: []ga.Operation{ga.NewOperation(ga.OpBranch, ga.Operand{}, ga.Immediate(0x2000, 32))},
	}
	res := ex.Step(inst, st, solver)
	assert.Equal(t, OutcomeContinue, res.Outcome)
	v, ok := st.ReadPC().IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0x2000), v)
}

func TestBranchCondNotTakenFallsThrough(t *testing.T) {
	ex, st, solver := newHarness()
	inst := ga.Instruction{
		Ops: []ga.Operation{
			ga.NewOperation(ga.OpBranchCond, ga.Operand{}, ga.Immediate(0, 1), ga.Immediate(0x2000, 32)),
		},
	}
	res := ex.Step(inst, st, solver)
	assert.Equal(t, OutcomeContinue, res.Outcome)
}

func TestBranchOnSymbolicTargetForks(t *testing.T) {
	ex, st, solver := newHarness()
	sym := smt.NewSymbol("target", 32)
	solver.Assert(sym.Eq(smt.NewConst(0x10, 32)).Or(sym.Eq(smt.NewConst(0x20, 32))))
	inst := ga.Instruction{
		Ops: []ga.Operation{ga.NewOperation(ga.OpBranch, ga.Operand{}, ga.Operand{Kind: ga.OperandLocal, LocalIndex: 0})},
	}
	// seed local 0 with the symbolic target via a preceding mov
	inst.Ops = append([]ga.Operation{
		ga.NewOperation(ga.OpMov, ga.Local(0), ga.Register("r0")),
	}, inst.Ops...)
	st.Registers.Set("r0", sym)

	res := ex.Step(inst, st, solver)
	assert.Equal(t, OutcomeContinue, res.Outcome)
	assert.Len(t, res.Forks, 1)
}

func TestAssumeInfeasibleYieldsAssumptionUnsat(t *testing.T) {
	ex, st, solver := newHarness()
	x := smt.NewSymbol("x", 4)
	solver.Assert(x.Eq(smt.NewConst(1, 4)))
	st.Flags.Set("C", x.Eq(smt.NewConst(2, 4)))
	inst := ga.Instruction{
		Ops: []ga.Operation{
			ga.NewOperation(ga.OpAssume, ga.Operand{}, ga.Flag("C")),
		},
	}
	res := ex.Step(inst, st, solver)
	assert.Equal(t, OutcomeAssumptionUnsat, res.Outcome)
}

func TestRrxFillsMSBWithCarryIn(t *testing.T) {
	ex, st, solver := newHarness()
	st.Flags.Set("C", smt.FromBool(true))
	st.Registers.Set("r0", smt.NewConst(0b10, 32))
	inst := ga.Instruction{
		Ops: []ga.Operation{
			ga.NewOperation(ga.OpRrx, ga.Register("r0"), ga.Register("r0"), ga.Flag("C")),
		},
	}
	res := ex.Step(inst, st, solver)
	require.Equal(t, OutcomeContinue, res.Outcome)
	v, ok := st.Registers.Get("r0").IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(0x80000001), v)
}

func TestUaddoDetectsOverflowThroughExecutor(t *testing.T) {
	ex, st, solver := newHarness()
	st.Registers.Set("r0", smt.NewConst(0xFFFFFFFF, 32))
	st.Registers.Set("r1", smt.NewConst(1, 32))
	inst := ga.Instruction{
		Ops: []ga.Operation{
			ga.NewOperation(ga.OpUaddo, ga.Flag("C"), ga.Register("r0"), ga.Register("r1")),
		},
	}
	res := ex.Step(inst, st, solver)
	require.Equal(t, OutcomeContinue, res.Outcome)
	v, ok := st.Flags.Get("C").IsConst()
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)
}
