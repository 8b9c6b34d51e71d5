// Package program implements the ProgramMemory collaborator SPEC_FULL.md §6
// names: a read-only view of a loaded firmware image that pkg/memory.Overlay
// consults for addresses outside its RAM/shadow layers, plus a symbol table
// the CLI resolves names against.
//
// ELFMemory loads program bytes with the stdlib debug/elf, the same
// open-defer_Close-decode-wrap-errors idiom
// z80-optimizer/cmd/z80opt/main.go uses for every file it reads.
package program

import (
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"sort"

	"github.com/symex-go/symex/pkg/smt"
)

// segment is one loadable, read-only byte range copied out of the ELF file
// (PT_LOAD program header or allocated section).
type segment struct {
	addr  uint64
	bytes []byte
}

func (s segment) contains(addr uint64) bool {
	return addr >= s.addr && addr < s.addr+uint64(len(s.bytes))
}

// ELFMemory is a pkg/memory.ProgramReader backed by an ELF firmware image:
// every allocated, loadable segment is copied into memory once at load
// time and served back as constant bytes, matching spec.md's "Memory"
// section's description of program memory as immutable and concretely
// addressed.
type ELFMemory struct {
	segments []segment
	entry    uint64
	symbols  map[string]uint64
}

// Load reads path as an ELF file and copies every allocated section's
// bytes into an in-memory image. DWARF line/symbol data is parsed best
// effort: firmware images stripped of debug info still load, just without
// a symbol table for the CLI to resolve names against.
func Load(path string) (*ELFMemory, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("program: open %s: %w", path, err)
	}
	defer f.Close()

	m := &ELFMemory{entry: f.Entry, symbols: map[string]uint64{}}

	for _, sec := range f.Sections {
		if sec.Flags&elf.SHF_ALLOC == 0 || sec.Type == elf.SHT_NOBITS {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("program: read section %s: %w", sec.Name, err)
		}
		if len(data) == 0 {
			continue
		}
		m.segments = append(m.segments, segment{addr: sec.Addr, bytes: data})
	}
	sort.Slice(m.segments, func(i, j int) bool { return m.segments[i].addr < m.segments[j].addr })

	if syms, err := f.Symbols(); err == nil {
		for _, s := range syms {
			if s.Name == "" {
				continue
			}
			if t := elf.ST_TYPE(s.Info); t == elf.STT_FUNC || t == elf.STT_OBJECT {
				m.symbols[s.Name] = s.Value
			}
		}
	}
	if dw, err := f.DWARF(); err == nil {
		m.loadDwarfSymbols(dw)
	}

	return m, nil
}

// loadDwarfSymbols walks the compile-unit tree for top-level subprogram
// entries, filling in any function named in debug_info but missing from
// the ELF symbol table (common for static functions with internal
// linkage).
func (m *ELFMemory) loadDwarfSymbols(dw *dwarf.Data) {
	r := dw.Reader()
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			return
		}
		if entry.Tag != dwarf.TagSubprogram {
			continue
		}
		name, ok := entry.Val(dwarf.AttrName).(string)
		if !ok {
			continue
		}
		if _, exists := m.symbols[name]; exists {
			continue
		}
		if low, ok := entry.Val(dwarf.AttrLowpc).(uint64); ok {
			m.symbols[name] = low
		}
	}
}

// EntryPoint returns the ELF header's entry address (the default root for
// a "run from program start" exploration).
func (m *ELFMemory) EntryPoint() uint64 { return m.entry }

// Symbol resolves a function or object name to its address, the second
// return value false if unknown.
func (m *ELFMemory) Symbol(name string) (uint64, bool) {
	v, ok := m.symbols[name]
	return v, ok
}

// Symbols returns every resolved name (the CLI's hooks-list prints them).
func (m *ELFMemory) Symbols() map[string]uint64 {
	out := make(map[string]uint64, len(m.symbols))
	for k, v := range m.symbols {
		out[k] = v
	}
	return out
}

// AddressInRange reports whether addr falls inside any loaded segment
// (pkg/memory.ProgramReader).
func (m *ELFMemory) AddressInRange(addr uint64) bool {
	_, ok := m.find(addr)
	return ok
}

// GetRawWord returns the width-bit little-endian value at addr from the
// loaded image (pkg/memory.ProgramReader). width must be a whole number of
// bytes; ok is false if any byte of the access falls outside every loaded
// segment.
func (m *ELFMemory) GetRawWord(addr uint64, width smt.Width) (uint64, bool) {
	n := int(width / 8)
	var v uint64
	for i := 0; i < n; i++ {
		seg, ok := m.find(addr + uint64(i))
		if !ok {
			return 0, false
		}
		b := seg.bytes[addr+uint64(i)-seg.addr]
		v |= uint64(b) << (8 * uint(i))
	}
	return v, true
}

// GetRawBytes returns a copy of count raw bytes starting at addr, used by
// the decode front end (pkg/arch) to fetch instruction bytes ahead of
// Translate. ok is false if the whole range isn't covered by one segment.
func (m *ELFMemory) GetRawBytes(addr uint64, count int) ([]byte, bool) {
	seg, ok := m.find(addr)
	if !ok {
		return nil, false
	}
	start := addr - seg.addr
	if start+uint64(count) > uint64(len(seg.bytes)) {
		return nil, false
	}
	out := make([]byte, count)
	copy(out, seg.bytes[start:start+uint64(count)])
	return out, true
}

func (m *ELFMemory) find(addr uint64) (segment, bool) {
	for _, s := range m.segments {
		if s.contains(addr) {
			return s, true
		}
	}
	return segment{}, false
}
