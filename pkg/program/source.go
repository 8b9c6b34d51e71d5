package program

import (
	"fmt"

	"github.com/symex-go/symex/pkg/arch"
	"github.com/symex-go/symex/pkg/ga"
	"github.com/symex-go/symex/pkg/state"
)

// maxInstructionBytes covers the widest encoding across every supported
// front end: a Thumb-2 32-bit instruction or an RV32I word.
const maxInstructionBytes = 4

// Source adapts a loaded ELFMemory plus an Architecture front end into
// pkg/vm.InstructionSource, so cmd/symex can drive a VM straight from a
// firmware image without the scheduler knowing anything about ELF or
// byte-level decoding.
type Source struct {
	Image *ELFMemory
	Arch  arch.Architecture
}

// NewSource builds an InstructionSource over img, decoding bytes with a.
func NewSource(img *ELFMemory, a arch.Architecture) *Source {
	return &Source{Image: img, Arch: a}
}

// Decode fetches up to maxInstructionBytes at pc and asks Arch to
// translate them. Architectures whose encoding is shorter than the fetch
// window (a 16-bit Thumb instruction near the end of a segment) still
// decode correctly: fetchWindow backs off to whatever prefix the image
// actually covers.
func (s *Source) Decode(pc uint64, _ *state.State) (ga.Instruction, error) {
	raw, ok := s.fetchWindow(pc)
	if !ok {
		return ga.Instruction{}, fmt.Errorf("program: no bytes mapped at %#x", pc)
	}
	return s.Arch.Translate(raw, pc)
}

func (s *Source) fetchWindow(pc uint64) ([]byte, bool) {
	for n := maxInstructionBytes; n > 0; n-- {
		if b, ok := s.Image.GetRawBytes(pc, n); ok {
			return b, true
		}
	}
	return nil, false
}
