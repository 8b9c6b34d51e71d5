// Package executor implements the fetch-execute loop C6 of SPEC_FULL.md:
// the component spec.md itself calls "the hard part". It interprets one
// ga.Instruction's operation list against a state.State, resolving
// operands, dispatching each ga.Op to its smt.BV/smt.FP semantics, and
// forking the current path whenever a jump target written to the program
// counter is symbolic with more than one feasible solution, or a
// conditional jump can go either way. Memory addresses are not forked on:
// a symbolic address must resolve to a single value (see resolveAddress).
//
// The inner per-opcode dispatch follows
// z80-optimizer/pkg/cpu/exec.go's single switch-per-opcode shape. The
// fork-for-all / mid-instruction suspend-resume protocol has no teacher
// analogue (Z80 instructions never fork mid-execution) and is grounded
// directly on original_source/symex/src/executor/mod.rs and its
// Continue::{This,Next} resume markers, captured here as
// state.Continuation.
package executor

import (
	"fmt"
	"strings"

	"github.com/symex-go/symex/pkg/ga"
	"github.com/symex-go/symex/pkg/hooks"
	"github.com/symex-go/symex/pkg/smt"
	"github.com/symex-go/symex/pkg/state"
)

// Logger is the minimal sink the executor needs; pkg/logx's Logger
// satisfies it. Declared locally (rather than imported) so pkg/executor
// never depends on the logging package, keeping the dependency direction
// the same as the teacher's layering (pkg/cpu never imports a logger).
type Logger interface {
	Warnf(format string, args ...interface{})
	Logf(level, meta string, value *smt.BV)
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{}) {}
func (nopLogger) Logf(string, string, *smt.BV) {}

// ForkedState is one sibling path produced by fork-for-all (spec §4.5): a
// State already advanced past the forking point with its alternate
// solution committed, paired with a Solver already carrying the
// constraint that ties the forking variable to that solution. Building
// the solver here, rather than having pkg/vm clone the live one after the
// fact, is what lets the retained path's own constraint be asserted
// without contaminating its siblings (DESIGN.md Open Question decision).
type ForkedState struct {
	State  *state.State
	Solver *smt.Solver
}

// Result is the outcome of running a single Instruction to completion (or
// to a path-terminating event), equivalent to spec §4.5's PathResult but
// scoped to one instruction step; pkg/vm's scheduler folds a sequence of
// these into the path-level PathResult.
type Result struct {
	Outcome Outcome
	Value   *smt.BV // populated for OutcomeSuccess when the instruction produced a return value
	Reason  string  // populated for OutcomeFailure

	// Forks holds additional sibling paths to be scheduled, each already
	// advanced past the forking instruction (spec §4.5 "fork-for-all").
	Forks []ForkedState
}

// Outcome tags which case of Result applies.
type Outcome uint8

const (
	OutcomeContinue Outcome = iota
	OutcomeSuccess
	OutcomeFailure
	OutcomeAssumptionUnsat
	OutcomeSuppress
)

// Config bounds the executor's fork-for-all enumeration (spec §4.1
// get_values bound).
type Config struct {
	MaxForkSolutions int
}

// DefaultConfig matches the spec's suggested default of enumerating up to
// 10 solutions before giving up.
func DefaultConfig() Config { return Config{MaxForkSolutions: 10} }

// Executor steps one State's current Instruction forward. It owns no
// State itself — pkg/vm.Path does — so the same Executor value can be
// reused across every path in a RunConcurrent fan-out.
type Executor struct {
	Hooks  *hooks.Container
	Config Config
	Logger Logger
}

// New returns an Executor wired to the given hook container and config.
func New(h *hooks.Container, cfg Config) *Executor {
	return &Executor{Hooks: h, Config: cfg, Logger: nopLogger{}}
}

// frameCtx is the mutable per-instruction interpretation context: the
// State being mutated, the Solver backing its current path's assumption
// set, and the Locals slots an Instruction's operations read and write.
type frameCtx struct {
	st     *state.State
	solver *smt.Solver
	locals []*smt.BV
}

// Step interprets inst against st under solver's current assumption set,
// starting from the beginning unless st carries a pending Continuation
// (in which case execution resumes per its ResumeMarker). On a fresh
// (non-resumed) entry it first runs the PC hooks registered for
// inst.Address (any hook returning false suppresses the path), then pays
// inst's cycle cost and, if one is pending, pops and checks the
// conditional-execution guard for this instruction (spec §3 cycle-count
// invariant, §4.5 "Conditional execution").
func (e *Executor) Step(inst ga.Instruction, st *state.State, solver *smt.Solver) Result {
	fc := &frameCtx{st: st, solver: solver}

	cont := st.Resume()
	if cont != nil {
		fc.locals = append([]*smt.BV(nil), cont.Locals()...)
		if cont.Marker() == state.ResumeNext {
			cont.Advance()
		}
	} else {
		fc.locals = make([]*smt.BV, inst.NumLocals())

		if !e.Hooks.FirePC(inst.Address) {
			st.InstructionCount++
			return Result{Outcome: OutcomeSuppress}
		}

		if guard, ok := st.PopGuard(); ok {
			if !solver.IsSatWithConstraint(guard) {
				st.CycleCount += uint64(inst.MaxCycle)
				st.InstructionCount++
				return Result{Outcome: OutcomeContinue}
			}
			solver.Assert(guard)
		}

		st.CycleCount += uint64(inst.MaxCycle)
		cont = state.NewContinuation(inst.Ops, 0, fc.locals, state.ResumeThis)
	}

	var allForks []ForkedState
	for {
		ops, cursor := cont.Top()
		if cursor >= len(ops) {
			if !cont.PopFrame() {
				break
			}
			continue
		}
		op := ops[cursor]

		if op.Op == ga.OpIte && (op.Then != nil || op.Else != nil) {
			res, forks := e.execConditionalBlock(fc, cont, op, inst, cursor)
			allForks = append(allForks, forks...)
			if res.Outcome != OutcomeContinue {
				st.InstructionCount++
				res.Forks = allForks
				return res
			}
			continue
		}

		res, forks := e.execOne(fc, op, inst, cursor)
		allForks = append(allForks, forks...)
		if op.Op.IsTerminator() || res.Outcome != OutcomeContinue {
			st.InstructionCount++
			res.Forks = allForks
			return res
		}
		cont.Advance()
	}
	st.InstructionCount++
	return Result{Outcome: OutcomeContinue, Forks: allForks}
}

// execConditionalBlock runs the side-effecting form of Ite (spec §4.4):
// when only one branch is feasible it is pushed as a nested frame on the
// live continuation and runs inline; when both are feasible the else
// branch is forked onto a sibling path suspended at this Operation's
// successor (state.Continuation's "hard part"), and the then branch
// continues here.
func (e *Executor) execConditionalBlock(fc *frameCtx, cont *state.Continuation, op ga.Operation, inst ga.Instruction, cursor int) (Result, []ForkedState) {
	cond := e.resolve(fc, op.Operands[0])
	negCond := cond.Not()

	thenSat := fc.solver.IsSatWithConstraint(cond)
	elseSat := fc.solver.IsSatWithConstraint(negCond)

	switch {
	case !thenSat && !elseSat:
		return Result{Outcome: OutcomeFailure, Reason: "conditional block: neither branch is satisfiable"}, nil

	case thenSat && !elseSat:
		fc.solver.Assert(cond)
		cont.Advance()
		cont.PushFrame(op.Then, 0)
		return Result{Outcome: OutcomeContinue}, nil

	case !thenSat && elseSat:
		fc.solver.Assert(negCond)
		cont.Advance()
		cont.PushFrame(op.Else, 0)
		return Result{Outcome: OutcomeContinue}, nil

	default:
		childSolver := fc.solver.Clone()
		childSolver.Assert(negCond)

		child := fc.st.Clone()
		childCont := state.NewContinuation(inst.Ops, cursor+1, fc.locals, state.ResumeThis)
		childCont.PushFrame(op.Else, 0)
		child.Suspend(childCont)

		fc.solver.Assert(cond)
		cont.Advance()
		cont.PushFrame(op.Then, 0)
		return Result{Outcome: OutcomeContinue}, []ForkedState{{State: child, Solver: childSolver}}
	}
}

// execOne dispatches a single Operation, returning the step-local result
// (OutcomeContinue unless the op itself terminates the instruction) and
// any sibling States to fork off.
func (e *Executor) execOne(fc *frameCtx, op ga.Operation, inst ga.Instruction, index int) (Result, []ForkedState) {
	switch op.Op {
	case ga.OpMov:
		e.writeDest(fc, op.Dest, e.resolve(fc, op.Operands[0]))
	case ga.OpLoad:
		addr := e.resolveAddress(fc, op.Operands[0])
		e.Hooks.FireRange(addr, op.Operands[0].MemWidth, false)
		if !e.accessAllowed(fc, inst.Address, addr, op.Operands[0].MemWidth) {
			return Result{Outcome: OutcomeFailure, Reason: "strict-access filter: disallowed read"}, nil
		}
		e.writeDest(fc, op.Dest, fc.st.Memory.Read(addr, smt.Width(op.Operands[0].MemWidth)))
	case ga.OpStore:
		addr := e.resolveAddress(fc, op.Operands[0])
		e.Hooks.FireRange(addr, op.Operands[0].MemWidth, true)
		if !e.accessAllowed(fc, inst.Address, addr, op.Operands[0].MemWidth) {
			return Result{Outcome: OutcomeFailure, Reason: "strict-access filter: disallowed write"}, nil
		}
		fc.st.Memory.Write(addr, e.resolve(fc, op.Operands[1]))

	case ga.OpAdd:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Add(b) })
	case ga.OpSub:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Sub(b) })
	case ga.OpMul:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Mul(b) })
	case ga.OpUDiv:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.UDiv(b) })
	case ga.OpSDiv:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.SDiv(b) })
	case ga.OpURem:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.URem(b) })
	case ga.OpSRem:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.SRem(b) })
	case ga.OpNeg:
		e.writeDest(fc, op.Dest, e.resolve(fc, op.Operands[0]).Neg())

	case ga.OpAnd:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.And(b) })
	case ga.OpOr:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Or(b) })
	case ga.OpXor:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Xor(b) })
	case ga.OpNot:
		e.writeDest(fc, op.Dest, e.resolve(fc, op.Operands[0]).Not())

	case ga.OpLsl:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Lsl(b) })
	case ga.OpLsr:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Lsr(b) })
	case ga.OpAsr:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Asr(b) })
	case ga.OpRor:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Ror(b) })
	case ga.OpRrx:
		// operand[0] = value, operand[1] = carry-in flag (1-bit). Rotates
		// right by 1, filling the vacated MSB with the current carry-in
		// (DESIGN.md Open Question decision: not the post-shift carry).
		v := e.resolve(fc, op.Operands[0])
		carryIn := e.resolve(fc, op.Operands[1])
		w := v.Width()
		shifted := v.Lsr(smt.NewConst(1, w))
		msb := carryIn.ZeroExtend(w).Lsl(smt.NewConst(uint64(w)-1, w))
		e.writeDest(fc, op.Dest, shifted.Or(msb))

	case ga.OpZeroExtend:
		w := smt.Width(op.Operands[1].Value)
		e.writeDest(fc, op.Dest, e.resolve(fc, op.Operands[0]).ZeroExtend(w))
	case ga.OpSignExtend:
		w := smt.Width(op.Operands[1].Value)
		e.writeDest(fc, op.Dest, e.resolve(fc, op.Operands[0]).SignExtend(w))
	case ga.OpResize:
		w := smt.Width(op.Operands[1].Value)
		e.writeDest(fc, op.Dest, e.resolve(fc, op.Operands[0]).Resize(w))
	case ga.OpSlice:
		low := uint32(op.Operands[1].Value)
		high := uint32(op.Operands[2].Value)
		e.writeDest(fc, op.Dest, e.resolve(fc, op.Operands[0]).Slice(low, high))
	case ga.OpConcat:
		hi := e.resolve(fc, op.Operands[0])
		lo := e.resolve(fc, op.Operands[1])
		e.writeDest(fc, op.Dest, smt.Concat(hi, lo))

	case ga.OpEq:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Eq(b) })
	case ga.OpUlt:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Ult(b) })
	case ga.OpUle:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Ule(b) })
	case ga.OpSlt:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Slt(b) })
	case ga.OpSle:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Sle(b) })

	case ga.OpUaddo:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Uaddo(b) })
	case ga.OpSaddo:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Saddo(b) })
	case ga.OpUsubo:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Usubo(b) })
	case ga.OpSsubo:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Ssubo(b) })
	case ga.OpUadds:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Uadds(b) })
	case ga.OpSadds:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Sadds(b) })
	case ga.OpUsubs:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Usubs(b) })
	case ga.OpSsubs:
		e.binBV(fc, op, func(a, b *smt.BV) *smt.BV { return a.Ssubs(b) })

	case ga.OpIte:
		// Value-select form only: Then/Else is handled in Step before
		// execOne is ever reached for this Op.
		cond := e.resolve(fc, op.Operands[0])
		then := e.resolve(fc, op.Operands[1])
		els := e.resolve(fc, op.Operands[2])
		e.writeDest(fc, op.Dest, smt.Ite(cond, then, els))

	case ga.OpCountOnes:
		e.writeDest(fc, op.Dest, e.resolve(fc, op.Operands[0]).CountOnes())
	case ga.OpCountZeroes:
		e.writeDest(fc, op.Dest, e.resolve(fc, op.Operands[0]).CountZeroes())
	case ga.OpCountLeadingOnes:
		e.writeDest(fc, op.Dest, e.resolve(fc, op.Operands[0]).CountLeadingOnes())
	case ga.OpCountLeadingZeroes:
		e.writeDest(fc, op.Dest, e.resolve(fc, op.Operands[0]).CountLeadingZeroes())

	case ga.OpBranch:
		return e.branch(fc, inst, index, e.resolve(fc, op.Operands[0]), nil)
	case ga.OpBranchCond:
		cond := e.resolve(fc, op.Operands[0])
		target := e.resolve(fc, op.Operands[1])
		return e.branch(fc, inst, index, target, cond)
	case ga.OpReturn:
		return Result{Outcome: OutcomeSuccess}, nil

	case ga.OpAssume:
		cond := e.resolve(fc, op.Operands[0])
		if !fc.solver.IsSatWithConstraint(cond) {
			return Result{Outcome: OutcomeAssumptionUnsat}, nil
		}
		fc.solver.Assert(cond)
	case ga.OpSuppress:
		return Result{Outcome: OutcomeSuppress}, nil
	case ga.OpFail:
		reason := op.Text
		if reason == "" {
			reason = "fail operation reached"
		}
		return Result{Outcome: OutcomeFailure, Reason: reason}, nil

	case ga.OpLog:
		level, meta, _ := strings.Cut(op.Text, ":")
		e.Logger.Logf(level, meta, e.resolve(fc, op.Operands[0]))

	case ga.OpConditionalExecution:
		for _, operand := range op.Operands {
			fc.st.PushGuard(e.resolve(fc, operand))
		}

	default:
		return Result{Outcome: OutcomeFailure, Reason: fmt.Sprintf("unhandled op %s", op.Op.Mnemonic())}, nil
	}
	return Result{Outcome: OutcomeContinue}, nil
}

// branch resolves a (possibly conditional) jump target, forking one
// sibling path per extra feasible target (spec §4.5 "fork-for-all"). If
// cond is non-nil and provably false, the jump does not happen and this
// instruction simply falls through (OutcomeContinue with no forks). If
// cond can be either true or false, a sibling path constrained to cond
// being false falls through (its program counter is left unchanged),
// and this path asserts cond and takes the jump. Every jumping path,
// forked or retained, has its own solver constrained so target equals
// the value it committed to (spec §8 "the two resulting paths are
// consistent... disjoint truth assignments").
func (e *Executor) branch(fc *frameCtx, inst ga.Instruction, index int, target *smt.BV, cond *smt.BV) (Result, []ForkedState) {
	var forks []ForkedState
	if cond != nil {
		if !fc.solver.IsSatWithConstraint(cond) {
			return Result{Outcome: OutcomeContinue}, nil
		}
		if notCond := cond.Not(); fc.solver.IsSatWithConstraint(notCond) {
			childSolver := fc.solver.Clone()
			childSolver.Assert(notCond)
			forks = append(forks, ForkedState{State: fc.st.Clone(), Solver: childSolver})
		}
		fc.solver.Assert(cond)
	}

	if v, ok := fc.solver.GetConstant(target); ok {
		fc.st.WritePC(smt.NewConst(v, target.Width()))
		return Result{Outcome: OutcomeContinue, Forks: forks}, forks
	}

	values, err := fc.solver.GetValues(target, e.Config.MaxForkSolutions)
	if err != nil {
		e.Logger.Warnf("branch target exceeded %d solutions, suppressing path", e.Config.MaxForkSolutions)
		return Result{Outcome: OutcomeSuppress, Forks: forks}, forks
	}

	// OpBranch/OpBranchCond are always terminators (ga.Op.IsTerminator), so
	// there is nothing left in this instruction's operation list for a
	// forked sibling to resume: each child simply starts fresh at its own
	// committed target on its next fetch. A Continuation is only needed
	// when a fork happens before an instruction's remaining operations
	// have run; branching is never that case.
	for _, v := range values[1:] {
		child := fc.st.Clone()
		child.WritePC(smt.NewConst(v, target.Width()))

		solver := fc.solver.Clone()
		solver.Assert(target.Eq(smt.NewConst(v, target.Width())))

		forks = append(forks, ForkedState{State: child, Solver: solver})
	}
	fc.st.WritePC(smt.NewConst(values[0], target.Width()))
	fc.solver.Assert(target.Eq(smt.NewConst(values[0], target.Width())))
	return Result{Outcome: OutcomeContinue, Forks: forks}, forks
}

func (e *Executor) binBV(fc *frameCtx, op ga.Operation, f func(a, b *smt.BV) *smt.BV) {
	a := e.resolve(fc, op.Operands[0])
	b := e.resolve(fc, op.Operands[1])
	e.writeDest(fc, op.Dest, f(a, b))
}

// accessAllowed reports whether a memory access at addr (pc is the
// instruction address performing it) is permitted: either the hook
// container's privilege map/allow-list says so, or the address falls
// inside the program image, or inside the current stack extent (spec
// §4.3 policy (i): "outside stack extent ∪ program-memory extents").
// With strict filtering off in the hook container (config.Config's
// StrictAccess false), Hooks.CheckAccess always returns true.
func (e *Executor) accessAllowed(fc *frameCtx, pc, addr uint64, size uint32) bool {
	if e.Hooks.CheckAccess(pc, addr, size) {
		return true
	}
	if fc.st.Memory.InProgramRange(addr) {
		return true
	}
	return e.inStackExtent(fc, addr, size)
}

// inStackExtent reports whether [addr, addr+size/8-1] lies within the
// current stack extent: between the live stack pointer and the value it
// was captured at (get_stack, spec §4.2). Returns false when the stack
// pointer isn't concrete or CaptureStack was never called, rather than
// guessing.
func (e *Executor) inStackExtent(fc *frameCtx, addr uint64, size uint32) bool {
	initial, current := fc.st.GetStack()
	if initial == nil || current == nil {
		return false
	}
	low, ok := fc.solver.GetConstant(current)
	if !ok {
		return false
	}
	high, ok := fc.solver.GetConstant(initial)
	if !ok || low > high {
		return false
	}
	end := addr + uint64(size)/8
	if size%8 != 0 {
		end++
	}
	return addr >= low && end-1 <= high
}

// resolve evaluates an Operand to its current BV value within fc.
func (e *Executor) resolve(fc *frameCtx, operand ga.Operand) *smt.BV {
	switch operand.Kind {
	case ga.OperandImmediate:
		return smt.NewConst(operand.Value, smt.Width(operand.Width))
	case ga.OperandRegister:
		fc.st.LogRead("reg:" + operand.Name)
		e.Hooks.FireRegister(operand.Name, false)
		return fc.st.Registers.Get(operand.Name)
	case ga.OperandFlag:
		fc.st.LogRead("flag:" + operand.Name)
		e.Hooks.FireFlag(operand.Name, false)
		return fc.st.Flags.Get(operand.Name)
	case ga.OperandPC:
		return fc.st.ReadPC()
	case ga.OperandLocal:
		return fc.locals[operand.LocalIndex]
	case ga.OperandMemory:
		addr := e.resolveAddress(fc, operand)
		e.Hooks.FireRange(addr, operand.MemWidth, false)
		return fc.st.Memory.Read(addr, smt.Width(operand.MemWidth))
	default:
		panic("executor: cannot resolve operand kind " + operand.Kind.String())
	}
}

// resolveAddress computes a memory Operand's effective address. The
// address expression itself may be symbolic (e.g. a register-indexed
// load); since Map/Overlay are keyed by concrete uint64 addresses, a
// symbolic address is resolved to its unique constant (the common case
// for firmware code with statically-known memory layout) and panics
// otherwise: an address with more than one feasible value is not forked
// on.
func (e *Executor) resolveAddress(fc *frameCtx, operand ga.Operand) uint64 {
	base := e.resolve(fc, *operand.Base)
	addrExpr := base
	if operand.Index != nil {
		idx := e.resolve(fc, *operand.Index)
		scaled := idx.Mul(smt.NewConst(uint64(operand.Scale), idx.Width()))
		addrExpr = addrExpr.Add(scaled)
	}
	if operand.Disp != 0 {
		addrExpr = addrExpr.Add(smt.NewConst(uint64(operand.Disp)&((1<<addrExpr.Width())-1), addrExpr.Width()))
	}
	v, ok := fc.solver.GetConstant(addrExpr)
	if !ok {
		panic("executor: symbolic memory address has no unique concrete solution")
	}
	return v
}

func (e *Executor) writeDest(fc *frameCtx, dest ga.Operand, value *smt.BV) {
	switch dest.Kind {
	case ga.OperandLocal:
		for len(fc.locals) <= dest.LocalIndex {
			fc.locals = append(fc.locals, nil)
		}
		fc.locals[dest.LocalIndex] = value
	case ga.OperandRegister:
		e.Hooks.FireRegister(dest.Name, true)
		fc.st.Registers.Set(dest.Name, value)
	case ga.OperandFlag:
		e.Hooks.FireFlag(dest.Name, true)
		fc.st.Flags.Set(dest.Name, value)
	case ga.OperandPC:
		fc.st.WritePC(value)
	case ga.OperandMemory:
		addr := e.resolveAddress(fc, dest)
		e.Hooks.FireRange(addr, dest.MemWidth, true)
		fc.st.Memory.Write(addr, value)
	default:
		panic("executor: cannot write to operand kind " + dest.Kind.String())
	}
}
