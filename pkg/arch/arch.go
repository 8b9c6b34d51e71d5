// Package arch defines the Architecture abstraction C8 of SPEC_FULL.md:
// the per-ISA collaborator that lowers raw instruction bytes into
// pkg/ga.Instruction and names an architecture's registers/flags/PC to
// the rest of the engine. Concrete implementations live in
// pkg/arch/armv7m, pkg/arch/armv6m, and pkg/arch/riscv32.
//
// Its shape generalizes z80-optimizer/pkg/inst/catalog.go's per-opcode
// metadata table into a byte-pattern decoder; exact semantics for the
// scenarios SPEC_FULL.md §8 names were cross-checked against
// original_source/symex/src/arch/risc_v/decoder_implementations.rs and
// original_source/symex/src/arch/arm/v7/test.rs.
package arch

import (
	"github.com/symex-go/symex/pkg/ga"
	"github.com/symex-go/symex/pkg/hooks"
	"github.com/symex-go/symex/pkg/memory"
	"github.com/symex-go/symex/pkg/smt"
	"github.com/symex-go/symex/pkg/state"
)

// RegisterRole names the architecture-independent roles the rest of the
// engine needs to resolve to a concrete register name (spec §4.2
// "Architecture trait ... abstract ProgramCounter/ReturnAddress names").
type RegisterRole uint8

const (
	ProgramCounter RegisterRole = iota
	StackPointer
	ReturnAddress
)

// Architecture is the per-ISA collaborator: it decodes bytes into GA
// instructions, declares the register/flag namespace a State for this
// architecture needs, and seeds initial register values.
type Architecture interface {
	// Name identifies the architecture for diagnostics and CLI selection.
	Name() string

	// Translate decodes the instruction at the front of bytes (the bytes
	// actually fetched starting at the instruction's address) into a
	// ga.Instruction. Returns the number of bytes consumed via
	// Instruction.Size().
	Translate(bytes []byte, address uint64) (ga.Instruction, error)

	// RegisterWidths declares every integer register name and its width,
	// used to build a memory.RegisterFile.
	RegisterWidths() map[string]smt.Width

	// FlagNames declares every condition-flag name, used to build a
	// memory.FlagFile.
	FlagNames() []string

	// FPRegisterKinds declares every FP register name and format, used to
	// build a memory.FPFile. Architectures without an FP unit return nil.
	FPRegisterKinds() map[string]smt.FPKind

	// RegisterName resolves an architecture-independent role to this
	// architecture's concrete register name.
	RegisterName(role RegisterRole) string

	// InstructionAlignment is the minimum byte alignment every valid
	// instruction address must satisfy (2 for Thumb, 4 for RV32I).
	InstructionAlignment() uint64

	// AddHooks installs any architecture-mandated hooks (e.g. an
	// unaligned-PC guard) into the given container. Most architectures
	// install none.
	AddHooks(h *hooks.Container)

	// InitiateState seeds a freshly built State with this architecture's
	// reset values (e.g. ARM's initial xPSR, or RISC-V's x0 seeded with
	// zero; the RISC-V front end also drops every lowered write to x0).
	InitiateState(st *state.State)
}

// NewState builds a State wired to arch's register/flag/FP namespace,
// sitting on top of the given memory overlay.
func NewState(a Architecture, mem *memory.Overlay) *state.State {
	regs := memory.NewRegisterFile(a.RegisterWidths())
	flags := memory.NewFlagFile(a.FlagNames())
	fp := memory.NewFPFile(a.FPRegisterKinds())
	st := state.New(regs, flags, fp, mem, a.RegisterName(ProgramCounter))
	a.InitiateState(st)
	st.CaptureStack(a.RegisterName(StackPointer))
	return st
}
