package memory

import "github.com/symex-go/symex/pkg/smt"

// ProgramReader is the minimal read surface overlay needs from a loaded
// program image; pkg/program.ELFMemory satisfies it.
type ProgramReader interface {
	GetRawWord(addr uint64, width smt.Width) (uint64, bool)
	AddressInRange(addr uint64) bool
}

// Overlay layers RAM on top of a read-only program image: reads first
// consult a shadow-write map (for self-modifying-code writes into program
// space, spec §3 "Memory" program overlay), then fall back to the backing
// image for addresses inside its range, and finally to ordinary symbolic
// RAM semantics (auto-vivified fresh symbol) for anything else.
type Overlay struct {
	ram     *Map
	program ProgramReader
	shadow  map[uint64]*smt.BV
}

// NewOverlay layers ram on top of program.
func NewOverlay(ram *Map, program ProgramReader) *Overlay {
	return &Overlay{ram: ram, program: program, shadow: make(map[uint64]*smt.BV)}
}

// ReadByte returns the byte at addr: shadow write, else program image,
// else ordinary RAM (which auto-vivifies).
func (o *Overlay) ReadByte(addr uint64) *smt.BV {
	if v, ok := o.shadow[addr]; ok {
		return v
	}
	if o.program != nil && o.program.AddressInRange(addr) {
		if v, ok := o.program.GetRawWord(addr, 8); ok {
			return smt.NewConst(v, 8)
		}
	}
	return o.ram.GetByte(addr)
}

// Read assembles a width-bit value at addr from shadow/program/RAM per
// ReadByte's precedence, honoring the backing Map's endianness.
func (o *Overlay) Read(addr uint64, width smt.Width) *smt.BV {
	if width == 8 {
		return o.ReadByte(addr)
	}
	n := int(width / 8)
	var result *smt.BV
	for i := 0; i < n; i++ {
		var idx int
		if o.ram.Endianness() == LittleEndian {
			idx = n - 1 - i
		} else {
			idx = i
		}
		b := o.ReadByte(addr + uint64(idx))
		if result == nil {
			result = b
		} else {
			result = smt.Concat(result, b)
		}
	}
	return result
}

// Write always goes to the shadow map, never mutating the backing program
// image (spec §3: the program image is immutable; writes into its range
// are self-modifying-code shadow overrides visible only to this overlay).
func (o *Overlay) Write(addr uint64, value *smt.BV) {
	w := value.Width()
	if w == 8 {
		o.shadow[addr] = value
		return
	}
	n := int(w / 8)
	for i := 0; i < n; i++ {
		var shift uint32
		if o.ram.Endianness() == LittleEndian {
			shift = uint32(i) * 8
		} else {
			shift = uint32(n-1-i) * 8
		}
		b := value.Lsr(smt.NewConst(uint64(shift), w)).Resize(8)
		o.shadow[addr+uint64(i)] = b
	}
}

// InProgramRange reports whether addr falls inside the backing program
// image's address range, used by the strict-access filter's auto-allow
// policy (spec §4.3 "outside stack extent ∪ program-memory extents").
func (o *Overlay) InProgramRange(addr uint64) bool {
	return o.program != nil && o.program.AddressInRange(addr)
}

// Clone returns an independent copy for path forking.
func (o *Overlay) Clone() *Overlay {
	shadow := make(map[uint64]*smt.BV, len(o.shadow))
	for k, v := range o.shadow {
		shadow[k] = v
	}
	return &Overlay{ram: o.ram.Clone(), program: o.program, shadow: shadow}
}
