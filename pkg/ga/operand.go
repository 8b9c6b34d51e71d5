// Package ga defines the target-independent General-Assembly intermediate
// representation every architecture decoder (pkg/arch/*) lowers machine
// bytes into, and every executor (pkg/executor) interprets against a
// symbolic state. The closed Operand/Operation/Instruction types here
// follow the teacher's enum-plus-metadata-table convention
// (z80-optimizer/pkg/inst/instruction.go, catalog.go): a fixed Go iota enum
// names every case, and a parallel table carries per-case metadata.
package ga

import "fmt"

// OperandKind tags which case of the closed Operand union is populated.
type OperandKind uint8

const (
	// OperandRegister names an integer register in the current
	// architecture's register file (spec §3 "Register file").
	OperandRegister OperandKind = iota
	// OperandFlag names a single-bit condition flag.
	OperandFlag
	// OperandFPRegister names a floating-point register.
	OperandFPRegister
	// OperandImmediate carries a constant value fixed at decode time.
	OperandImmediate
	// OperandLocal refers to a temporary produced earlier in the same
	// Instruction's operation list (spec §3 "Local").
	OperandLocal
	// OperandMemory addresses RAM; Base+Index*Scale+Disp, with Base/Index
	// themselves Operands (so addressing can be register- or
	// local-relative).
	OperandMemory
	// OperandPC refers to the architecture's program counter.
	OperandPC
)

func (k OperandKind) String() string {
	switch k {
	case OperandRegister:
		return "register"
	case OperandFlag:
		return "flag"
	case OperandFPRegister:
		return "fpregister"
	case OperandImmediate:
		return "immediate"
	case OperandLocal:
		return "local"
	case OperandMemory:
		return "memory"
	case OperandPC:
		return "pc"
	default:
		return "unknown"
	}
}

// Operand is a closed union over the operand kinds an Operation can read or
// write. Only the fields relevant to Kind are populated; zero value for the
// rest.
type Operand struct {
	Kind OperandKind

	// OperandRegister / OperandFlag / OperandFPRegister
	Name string

	// OperandImmediate
	Value uint64
	Width uint32

	// OperandLocal
	LocalIndex int

	// OperandMemory
	Base   *Operand
	Index  *Operand
	Scale  uint32
	Disp   int64
	MemWidth uint32
}

// Register builds a register operand.
func Register(name string) Operand { return Operand{Kind: OperandRegister, Name: name} }

// Flag builds a condition-flag operand.
func Flag(name string) Operand { return Operand{Kind: OperandFlag, Name: name} }

// FPRegister builds a floating-point register operand.
func FPRegister(name string) Operand { return Operand{Kind: OperandFPRegister, Name: name} }

// Immediate builds a constant operand of the given bit width.
func Immediate(value uint64, width uint32) Operand {
	return Operand{Kind: OperandImmediate, Value: value, Width: width}
}

// Local builds an operand referring to a prior operation's result within
// the same instruction.
func Local(index int) Operand { return Operand{Kind: OperandLocal, LocalIndex: index} }

// PC builds the program-counter operand.
func PC() Operand { return Operand{Kind: OperandPC} }

// Memory builds a based-indexed-scaled-displaced memory operand:
// address = base + index*scale + disp.
func Memory(base Operand, index *Operand, scale uint32, disp int64, width uint32) Operand {
	op := Operand{Kind: OperandMemory, Base: &base, Disp: disp, MemWidth: width, Scale: scale}
	if index != nil {
		op.Index = index
	}
	return op
}

// String renders a debug form, used in executor trace logging.
func (o Operand) String() string {
	switch o.Kind {
	case OperandRegister, OperandFlag, OperandFPRegister:
		return o.Name
	case OperandImmediate:
		return fmt.Sprintf("#%#x:%d", o.Value, o.Width)
	case OperandLocal:
		return fmt.Sprintf("%%%d", o.LocalIndex)
	case OperandPC:
		return "pc"
	case OperandMemory:
		s := fmt.Sprintf("[%s", o.Base.String())
		if o.Index != nil {
			s += fmt.Sprintf("+%s*%d", o.Index.String(), o.Scale)
		}
		if o.Disp != 0 {
			s += fmt.Sprintf("%+d", o.Disp)
		}
		return s + fmt.Sprintf(":%d]", o.MemWidth)
	default:
		return "?"
	}
}
