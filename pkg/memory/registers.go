// Package memory implements the typed memory map C2 of SPEC_FULL.md: the
// register/flag/FP register files and the byte-addressable symbolic RAM a
// State aggregates. Its register files generalize
// z80-optimizer/pkg/cpu/state.go's flat, cheap-to-copy struct into an
// architecture-agnostic map, and its bit-flag conventions follow
// z80-optimizer/pkg/cpu/flags.go.
package memory

import "github.com/symex-go/symex/pkg/smt"

// RegisterFile holds one symbolic value per named integer register. A read
// of a name never seen before auto-vivifies a fresh symbol at the
// requested width (spec §3 "Register file" auto-symbol-on-miss invariant),
// and remembers it so repeat reads return the identical BV handle.
type RegisterFile struct {
	values map[string]*smt.BV
	widths map[string]smt.Width
}

// NewRegisterFile returns an empty register file. widths declares the bit
// width each register name must be read/written at; it is typically the
// architecture's fixed register width map.
func NewRegisterFile(widths map[string]smt.Width) *RegisterFile {
	return &RegisterFile{values: make(map[string]*smt.BV), widths: cloneWidths(widths)}
}

func cloneWidths(in map[string]smt.Width) map[string]smt.Width {
	out := make(map[string]smt.Width, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Get returns the current value of name, auto-vivifying a fresh symbol
// "reg:<name>" at the declared width if name has never been written.
func (r *RegisterFile) Get(name string) *smt.BV {
	if v, ok := r.values[name]; ok {
		return v
	}
	w, ok := r.widths[name]
	if !ok {
		panic("memory: unknown register " + name)
	}
	fresh := smt.NewSymbol("reg:"+name, w)
	r.values[name] = fresh
	return fresh
}

// Set overwrites name's value. Panics if value's width does not match the
// register's declared width (spec invariant: a register's width never
// changes across its lifetime).
func (r *RegisterFile) Set(name string, value *smt.BV) {
	w, ok := r.widths[name]
	if !ok {
		panic("memory: unknown register " + name)
	}
	if value.Width() != w {
		panic("memory: width mismatch writing register " + name)
	}
	r.values[name] = value
}

// Names returns every register name declared in this file's width map,
// regardless of whether it has been read or written yet.
func (r *RegisterFile) Names() []string {
	names := make([]string, 0, len(r.widths))
	for n := range r.widths {
		names = append(names, n)
	}
	return names
}

// Clone returns a deep-enough copy for path forking: the BV handles
// themselves are immutable expression trees and are shared, but the
// name->value map is copied so mutating the clone never affects the
// parent (spec §4.5 fork-for-all path cloning).
func (r *RegisterFile) Clone() *RegisterFile {
	values := make(map[string]*smt.BV, len(r.values))
	for k, v := range r.values {
		values[k] = v
	}
	return &RegisterFile{values: values, widths: cloneWidths(r.widths)}
}
