// Package state implements the State aggregate C5 of SPEC_FULL.md: the
// register/flag/FP/memory collaborators from pkg/memory bundled with the
// execution-progress counters and the mid-instruction suspension machinery
// (Continuation) that lets the executor fork without re-running committed
// side effects. Its flat, cheap-to-clone-by-value shape follows
// z80-optimizer/pkg/cpu/state.go; Continuation's explicit frame stack is
// grounded on original_source/symex/src/executor/mod.rs's saved execution
// context and its Continue::{This,Next} resume markers.
package state

import (
	"github.com/symex-go/symex/pkg/memory"
	"github.com/symex-go/symex/pkg/smt"
)

// RoundingMode selects the IEEE-754 rounding applied by the FP expression
// algebra's oracle evaluation. The engine pins round-to-nearest-even by
// default per SPEC_FULL.md §9; Go's math package already rounds to nearest
// ties-to-even for every operation pkg/smt/fp.go folds. The other modes
// are declared for interface completeness; nothing in the engine reads
// FPRoundingMode, so selecting one does not change any result.
type RoundingMode uint8

const (
	RoundNearestEven RoundingMode = iota
	RoundTowardZero
	RoundTowardPositive
	RoundTowardNegative
)

// State is one symbolic machine state: a snapshot of every
// register/flag/FP/memory value plus how far execution has progressed.
// pkg/vm.Path wraps one State (and one Continuation) per explored branch.
type State struct {
	Registers *memory.RegisterFile
	Flags     *memory.FlagFile
	FPRegs    *memory.FPFile
	Memory    *memory.Overlay

	PCRegister string // architecture-defined name of the program counter
	SPRegister string // architecture-defined name of the stack pointer

	InstructionCount uint64
	CycleCount       uint64

	FPRoundingMode RoundingMode

	readLog []string

	cont *Continuation

	initialSP *smt.BV   // captured at CaptureStack time, for get_stack()
	condQueue []*smt.BV // FIFO of IT-block guards awaiting consumption
}

// New builds a fresh State over the given collaborators. pcRegister names
// which register in registers is the program counter, so ReadPC/WritePC
// can delegate without every caller needing to know the architecture's
// naming convention (spec §4.6 "State" abstracts over register-file
// naming).
func New(registers *memory.RegisterFile, flags *memory.FlagFile, fpRegs *memory.FPFile, mem *memory.Overlay, pcRegister string) *State {
	return &State{
		Registers:  registers,
		Flags:      flags,
		FPRegs:     fpRegs,
		Memory:     mem,
		PCRegister: pcRegister,
	}
}

// ReadPC returns the current program counter value.
func (s *State) ReadPC() *smt.BV { return s.Registers.Get(s.PCRegister) }

// WritePC overwrites the program counter.
func (s *State) WritePC(v *smt.BV) { s.Registers.Set(s.PCRegister, v) }

// FetchPC returns the address to fetch the next instruction from: the raw
// PC with the architecture Thumb bit masked off when thumbMask is true.
// pkg/vm does not call it: the VM fetches at the raw PC, and the ARM POP
// lowering clears bit 0 of the value it loads into PC (DESIGN.md Open
// Question decision on Thumb-bit masking).
func (s *State) FetchPC(thumbMask bool) uint64 {
	v, ok := s.ReadPC().IsConst()
	if !ok {
		panic("state: FetchPC requires a concrete program counter")
	}
	if thumbMask {
		return v &^ 1
	}
	return v
}

// LogRead appends name to the read log: a record of every register or flag
// ever read during this State's lifetime, used by replay tooling to show
// which inputs a found crash actually depended on (SPEC_FULL.md §9
// supplemented feature, absent from the distilled spec but present in
// original_source's state.rs).
func (s *State) LogRead(name string) {
	s.readLog = append(s.readLog, name)
}

// ReadLog returns the accumulated read log in read order.
func (s *State) ReadLog() []string {
	out := make([]string, len(s.readLog))
	copy(out, s.readLog)
	return out
}

// CaptureStack records spRegister's value at the moment this State's
// initial machine state is established, so GetStack can later report both
// the original and current stack pointer (spec §4.2 get_stack, consumed by
// the strict-access filter's stack-extent auto-allow).
func (s *State) CaptureStack(spRegister string) {
	s.SPRegister = spRegister
	s.initialSP = s.Registers.Get(spRegister)
}

// GetStack returns the stack pointer as captured by CaptureStack and its
// current value, or (nil, nil) if CaptureStack was never called.
func (s *State) GetStack() (initial, current *smt.BV) {
	if s.initialSP == nil {
		return nil, nil
	}
	return s.initialSP, s.Registers.Get(s.SPRegister)
}

// PushGuard enqueues one conditional-execution guard, consumed in FIFO
// order by the executor's fetch loop — one guard per IT-covered
// instruction (spec §4.5 "Conditional execution").
func (s *State) PushGuard(g *smt.BV) {
	s.condQueue = append(s.condQueue, g)
}

// PopGuard dequeues the oldest pending guard, reporting false if none is
// queued.
func (s *State) PopGuard() (*smt.BV, bool) {
	if len(s.condQueue) == 0 {
		return nil, false
	}
	g := s.condQueue[0]
	s.condQueue = s.condQueue[1:]
	return g, true
}

// Continuation returns the state's in-progress mid-instruction suspension,
// or nil if none is pending (the common case: most instructions run to
// completion without suspending).
func (s *State) Continuation() *Continuation { return s.cont }

// Suspend records c as this state's pending mid-instruction continuation.
func (s *State) Suspend(c *Continuation) { s.cont = c }

// Resume clears the pending continuation, returning it (nil if none was
// pending). Called once the executor has finished replaying a resumed
// instruction.
func (s *State) Resume() *Continuation {
	c := s.cont
	s.cont = nil
	return c
}

// Clone returns an independent deep-enough copy for path forking (spec
// §4.5 fork-for-all): collaborators clone their own maps, counters copy by
// value, and any pending Continuation is deep-copied so resuming one fork
// never disturbs the other's suspended frame stack.
func (s *State) Clone() *State {
	clone := &State{
		Registers:        s.Registers.Clone(),
		Flags:            s.Flags.Clone(),
		FPRegs:           s.FPRegs.Clone(),
		Memory:           s.Memory.Clone(),
		PCRegister:       s.PCRegister,
		SPRegister:       s.SPRegister,
		InstructionCount: s.InstructionCount,
		CycleCount:       s.CycleCount,
		FPRoundingMode:   s.FPRoundingMode,
		readLog:          append([]string(nil), s.readLog...),
		initialSP:        s.initialSP,
		condQueue:        append([]*smt.BV(nil), s.condQueue...),
	}
	if s.cont != nil {
		clone.cont = s.cont.clone()
	}
	return clone
}
