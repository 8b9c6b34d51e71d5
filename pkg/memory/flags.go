package memory

import "github.com/symex-go/symex/pkg/smt"

// FlagFile holds one symbolic 1-bit value per named condition flag,
// mirroring z80-optimizer/pkg/cpu/flags.go's bit-constant convention but
// storing each flag as an independent symbolic bit rather than packed into
// a single status byte, since widths here are architecture-defined rather
// than fixed at 8 bits.
type FlagFile struct {
	values map[string]*smt.BV
	names  map[string]bool
}

// NewFlagFile returns an empty flag file declared over the given flag
// names (e.g. "N", "Z", "C", "V" for ARM; "Z" for RV32I's implicit
// comparison results).
func NewFlagFile(names []string) *FlagFile {
	declared := make(map[string]bool, len(names))
	for _, n := range names {
		declared[n] = true
	}
	return &FlagFile{values: make(map[string]*smt.BV), names: declared}
}

// Get returns the current value of flag name, auto-vivifying a fresh
// 1-bit symbol "flag:<name>" if never written.
func (f *FlagFile) Get(name string) *smt.BV {
	if v, ok := f.values[name]; ok {
		return v
	}
	if !f.names[name] {
		panic("memory: unknown flag " + name)
	}
	fresh := smt.NewSymbol("flag:"+name, 1)
	f.values[name] = fresh
	return fresh
}

// Set overwrites flag name. Panics if value is not 1 bit wide or name was
// not declared.
func (f *FlagFile) Set(name string, value *smt.BV) {
	if !f.names[name] {
		panic("memory: unknown flag " + name)
	}
	if value.Width() != 1 {
		panic("memory: flag values must be 1 bit wide")
	}
	f.values[name] = value
}

// Clone returns an independent copy for path forking.
func (f *FlagFile) Clone() *FlagFile {
	values := make(map[string]*smt.BV, len(f.values))
	for k, v := range f.values {
		values[k] = v
	}
	names := make(map[string]bool, len(f.names))
	for k, v := range f.names {
		names[k] = v
	}
	return &FlagFile{values: values, names: names}
}

// FPFile holds one symbolic floating-point value per named FP register,
// the same auto-vivify-on-miss shape as RegisterFile.
type FPFile struct {
	values map[string]*smt.FP
	kinds  map[string]smt.FPKind
}

// NewFPFile returns an empty FP register file declared over the given
// name -> format map.
func NewFPFile(kinds map[string]smt.FPKind) *FPFile {
	declared := make(map[string]smt.FPKind, len(kinds))
	for k, v := range kinds {
		declared[k] = v
	}
	return &FPFile{values: make(map[string]*smt.FP), kinds: declared}
}

// Get returns the current value of FP register name, auto-vivifying a
// fresh symbol if never written.
func (f *FPFile) Get(name string) *smt.FP {
	if v, ok := f.values[name]; ok {
		return v
	}
	k, ok := f.kinds[name]
	if !ok {
		panic("memory: unknown fp register " + name)
	}
	fresh := smt.NewFPSymbol("fpreg:"+name, k)
	f.values[name] = fresh
	return fresh
}

// Set overwrites FP register name.
func (f *FPFile) Set(name string, value *smt.FP) {
	k, ok := f.kinds[name]
	if !ok {
		panic("memory: unknown fp register " + name)
	}
	if value.Kind() != k {
		panic("memory: fp format mismatch writing register " + name)
	}
	f.values[name] = value
}

// Clone returns an independent copy for path forking.
func (f *FPFile) Clone() *FPFile {
	values := make(map[string]*smt.FP, len(f.values))
	for k, v := range f.values {
		values[k] = v
	}
	kinds := make(map[string]smt.FPKind, len(f.kinds))
	for k, v := range f.kinds {
		kinds[k] = v
	}
	return &FPFile{values: values, kinds: kinds}
}
