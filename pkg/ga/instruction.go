package ga

import "fmt"

// Instruction is the target-independent lowering of one machine
// instruction: a mnemonic for tracing, the raw bytes it was decoded from
// (for disassembly and checkpoint replay), the GA operation sequence the
// executor steps through, and the fixed cycle cost the decoder assigns it
// (spec §3 "Instruction": "cycle count is added to the running cycle
// counter exactly once per execution").
type Instruction struct {
	Mnemonic string
	Bytes    []byte
	Address  uint64
	Ops      []Operation

	// MaxCycle is the number of cycles this instruction costs on its
	// target core, added to State.CycleCount exactly once when the
	// executor begins (not resumes) stepping it.
	MaxCycle uint32
}

// Size returns the instruction's length in bytes as decoded.
func (i Instruction) Size() int { return len(i.Bytes) }

// NumLocals reports how many OpLocal slots this instruction's operation
// list can reference, i.e. one past the highest Dest-producing operation
// index — the executor's Locals array for this instruction is sized to
// this (spec §3 "Local").
func (i Instruction) NumLocals() int { return len(i.Ops) }

func (i Instruction) String() string {
	return fmt.Sprintf("%s @%#x (%d ops, %d bytes)", i.Mnemonic, i.Address, len(i.Ops), len(i.Bytes))
}
