package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symex-go/symex/pkg/arch"
	"github.com/symex-go/symex/pkg/ga"
	"github.com/symex-go/symex/pkg/hooks"
	"github.com/symex-go/symex/pkg/smt"
	"github.com/symex-go/symex/pkg/state"
)

// stubArch is a minimal arch.Architecture double recording what bytes it
// was asked to translate, so Source's fetch-window backoff can be
// exercised without pulling in a real decoder.
type stubArch struct{}

func (stubArch) Name() string                          { return "stub" }
func (stubArch) RegisterWidths() map[string]smt.Width  { return map[string]smt.Width{"pc": 32} }
func (stubArch) FlagNames() []string                   { return nil }
func (stubArch) FPRegisterKinds() map[string]smt.FPKind { return nil }
func (stubArch) RegisterName(arch.RegisterRole) string { return "pc" }
func (stubArch) InstructionAlignment() uint64          { return 1 }
func (stubArch) AddHooks(*hooks.Container)             {}
func (stubArch) InitiateState(*state.State)            {}

func (stubArch) Translate(bytes []byte, address uint64) (ga.Instruction, error) {
	return ga.Instruction{Address: address, Bytes: bytes}, nil
}

func TestSourceDecodeFetchesMaxWindow(t *testing.T) {
	img := &ELFMemory{segments: []segment{{addr: 0x1000, bytes: []byte{1, 2, 3, 4, 5, 6}}}}
	src := NewSource(img, stubArch{})

	inst, err := src.Decode(0x1000, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, inst.Bytes)
}

func TestSourceDecodeBacksOffNearSegmentEnd(t *testing.T) {
	img := &ELFMemory{segments: []segment{{addr: 0x1000, bytes: []byte{1, 2, 3, 4, 5, 6}}}}
	src := NewSource(img, stubArch{})

	inst, err := src.Decode(0x1004, nil) // only 2 bytes remain
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6}, inst.Bytes)
}

func TestSourceDecodeFailsOutsideImage(t *testing.T) {
	img := &ELFMemory{segments: []segment{{addr: 0x1000, bytes: []byte{1, 2, 3, 4}}}}
	src := NewSource(img, stubArch{})

	_, err := src.Decode(0x2000, nil)
	assert.Error(t, err)
}
