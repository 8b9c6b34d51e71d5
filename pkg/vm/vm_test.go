package vm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symex-go/symex/pkg/ga"
	"github.com/symex-go/symex/pkg/executor"
	"github.com/symex-go/symex/pkg/hooks"
	"github.com/symex-go/symex/pkg/memory"
	"github.com/symex-go/symex/pkg/smt"
	"github.com/symex-go/symex/pkg/state"
)

// programSource is a fixed address->Instruction table, standing in for a
// decoded architecture program the way pkg/arch + pkg/program will for
// real binaries.
type programSource struct {
	program map[uint64]ga.Instruction
}

func (p *programSource) Decode(pc uint64, st *state.State) (ga.Instruction, error) {
	inst, ok := p.program[pc]
	if !ok {
		return ga.Instruction{}, fmt.Errorf("no instruction at %#x", pc)
	}
	return inst, nil
}

func newTestVM(program map[uint64]ga.Instruction) (*VM, *state.State) {
	regs := memory.NewRegisterFile(map[string]smt.Width{"pc": 32, "r0": 32, "r1": 32})
	flags := memory.NewFlagFile([]string{"Z"})
	fp := memory.NewFPFile(map[string]smt.FPKind{})
	mem := memory.NewOverlay(memory.NewMap(memory.LittleEndian), nil)
	st := state.New(regs, flags, fp, mem, "pc")

	ex := executor.New(hooks.NewContainer(false), executor.DefaultConfig())
	src := &programSource{program: program}
	v := New(src, ex, NewLIFOSelector(), DefaultConfig())
	return v, st
}

func TestRunLinearProgramSucceeds(t *testing.T) {
	program := map[uint64]ga.Instruction{
		0x1000: {Ops: []ga.Operation{
			ga.NewOperation(ga.OpAdd, ga.Register("r0"), ga.Register("r0"), ga.Immediate(1, 32)),
			ga.NewOperation(ga.OpBranch, ga.Operand{}, ga.Immediate(0x1004, 32)),
		}},
		0x1004: {Ops: []ga.Operation{
			ga.NewOperation(ga.OpReturn, ga.Operand{}),
		}},
	}
	v, st := newTestVM(program)
	st.Registers.Set("r0", smt.NewConst(41, 32))
	st.WritePC(smt.NewConst(0x1000, 32))

	var results []PathResult
	v.Run(NewPath(st), func(p *Path, r PathResult) { results = append(results, r) })

	require.Len(t, results, 1)
	assert.Equal(t, PathSuccess, results[0].Kind)
}

func TestRunForksOnSymbolicBranch(t *testing.T) {
	program := map[uint64]ga.Instruction{
		0x1000: {Ops: []ga.Operation{
			ga.NewOperation(ga.OpBranch, ga.Operand{}, ga.Register("r1")),
		}},
		0x10: {Ops: []ga.Operation{ga.NewOperation(ga.OpReturn, ga.Operand{})}},
		0x20: {Ops: []ga.Operation{ga.NewOperation(ga.OpReturn, ga.Operand{})}},
	}
	v, st := newTestVM(program)
	sym := smt.NewSymbol("branchtarget", 32)
	st.Registers.Set("r1", sym)
	st.WritePC(smt.NewConst(0x1000, 32))

	path := NewPath(st)
	path.Solver.Assert(sym.Eq(smt.NewConst(0x10, 32)).Or(sym.Eq(smt.NewConst(0x20, 32))))

	var results []PathResult
	v.Run(path, func(p *Path, r PathResult) { results = append(results, r) })

	require.Len(t, results, 2)
	assert.Equal(t, PathSuccess, results[0].Kind)
	assert.Equal(t, PathSuccess, results[1].Kind)
}

func TestRunReportsDecodeFailureAsPathFailure(t *testing.T) {
	v, st := newTestVM(map[uint64]ga.Instruction{})
	st.WritePC(smt.NewConst(0xBAD, 32))

	var results []PathResult
	v.Run(NewPath(st), func(p *Path, r PathResult) { results = append(results, r) })

	require.Len(t, results, 1)
	assert.Equal(t, PathFailure, results[0].Kind)
}

func TestMaxStepsTerminatesInfiniteLoop(t *testing.T) {
	program := map[uint64]ga.Instruction{
		0x1000: {Ops: []ga.Operation{ga.NewOperation(ga.OpBranch, ga.Operand{}, ga.Immediate(0x1000, 32))}},
	}
	v, st := newTestVM(program)
	v.Config.MaxSteps = 5
	st.WritePC(smt.NewConst(0x1000, 32))

	var results []PathResult
	v.Run(NewPath(st), func(p *Path, r PathResult) { results = append(results, r) })

	require.Len(t, results, 1)
	assert.Equal(t, PathFailure, results[0].Kind)
	assert.Contains(t, results[0].Reason, "MaxSteps")
}

func TestLIFOSelectorOrdering(t *testing.T) {
	s := NewLIFOSelector()
	a := &Path{}
	b := &Path{}
	s.SavePath(a)
	s.SavePath(b)
	got, ok := s.GetPath()
	require.True(t, ok)
	assert.Same(t, b, got)
}

func TestNewPathGetsARootLogger(t *testing.T) {
	_, st := newTestVM(map[uint64]ga.Instruction{})
	p := NewPath(st)
	require.NotNil(t, p.Logger)
}

func TestForkClonesALogger(t *testing.T) {
	_, st := newTestVM(map[uint64]ga.Instruction{})
	p := NewPath(st)
	child := p.Fork(st)
	require.NotNil(t, child.Logger)
	assert.NotSame(t, p.Logger, child.Logger)
}

func TestPrioritySelectorOrdering(t *testing.T) {
	s := NewPrioritySelector()
	low := &Path{Priority: 1}
	high := &Path{Priority: 10}
	s.SavePath(low)
	s.SavePath(high)
	got, ok := s.GetPath()
	require.True(t, ok)
	assert.Same(t, high, got)
}
