// Package vm implements the path scheduler C7 of SPEC_FULL.md: Path, the
// pluggable PathSelector worklist, and the VM loop that pops a path, steps
// its Instruction stream through pkg/executor, and pushes any forks back
// onto the worklist. Concurrent root exploration
// (RunConcurrent) generalizes z80-optimizer/pkg/search/worker.go's
// WorkerPool (channel-of-tasks + atomic counters + ticker progress) from a
// fixed instruction-sequence search to independent symbolic explorations.
package vm

import (
	"github.com/symex-go/symex/pkg/ga"
	"github.com/symex-go/symex/pkg/logx"
	"github.com/symex-go/symex/pkg/smt"
	"github.com/symex-go/symex/pkg/state"
)

// PathResult is the terminal outcome of one fully-explored Path (spec
// §4.5/§4.6), mirrored directly from
// original_source/symex/src/executor/mod.rs's PathResult enum.
type PathResult struct {
	Kind   PathResultKind
	Value  *smt.BV // populated for PathSuccess when the explored function returned a value
	Reason string  // populated for PathFailure
}

// PathResultKind tags which case of PathResult applies.
type PathResultKind uint8

const (
	PathSuccess PathResultKind = iota
	PathFailure
	PathAssumptionUnsat
	PathSuppress
)

// Path is one branch of symbolic exploration: a State, the solver holding
// its accumulated path constraints, and a priority used only by
// PrioritySelector (ignored by LIFOSelector).
type Path struct {
	State    *state.State
	Solver   *smt.Solver
	Priority int

	// Depth counts instructions executed along this path, used both for
	// MaxSteps enforcement and as a tie-breaker in PrioritySelector.
	Depth int

	// Logger is this path's structured sink (spec.md §6's Logger sink,
	// pkg/logx's implementation). Cloned on fork so interleaved output
	// from siblings stays attributable to the path that produced it.
	Logger *logx.Logger
}

// NewPath starts a fresh path at the given initial state with an empty
// solver (no path constraints yet) and a fresh root logger.
func NewPath(initial *state.State) *Path {
	return &Path{State: initial, Solver: smt.NewSolver(), Logger: logx.New()}
}

// Fork clones this path's State, Solver and Logger for a sibling branch
// produced by executor.Result.Forks. The new path inherits the same
// Priority and Depth as its parent at the moment of the fork, an
// independent copy of the parent's solver so the two paths never observe
// each other's subsequently asserted constraints, and a child logger
// carrying the parent's accumulated fields (spec.md §6's fork()).
func (p *Path) Fork(forkedState *state.State) *Path {
	return p.ForkWithSolver(forkedState, p.Solver.Clone())
}

// ForkWithSolver is like Fork but installs solver directly as the
// sibling's Solver instead of cloning p.Solver. Used when the executor has
// already built a consistent, independently-constrained solver for the
// fork (e.g. a symbolic branch's sibling target), so the clone captured
// before the retained path's own constraint was asserted is the one that
// ends up on the child, not a clone taken after.
func (p *Path) ForkWithSolver(forkedState *state.State, solver *smt.Solver) *Path {
	logger := p.Logger
	if logger == nil {
		logger = logx.New()
	}
	return &Path{
		State:    forkedState,
		Solver:   solver,
		Priority: p.Priority,
		Depth:    p.Depth,
		Logger:   logger.Fork(),
	}
}

// InstructionSource supplies the next Instruction to execute at a given
// program counter; pkg/arch implementations plus pkg/program back this
// for a loaded binary.
type InstructionSource interface {
	Decode(pc uint64, st *state.State) (ga.Instruction, error)
}
