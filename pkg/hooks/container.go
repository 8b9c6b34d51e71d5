// Package hooks implements the layered hook container C3 of SPEC_FULL.md:
// PC/register/flag/memory/range hooks the executor consults before and
// after each Operation, plus the privilege map and strict-access filter
// that gate memory operations. Its storage shape — a mutex-guarded table
// with an Add-and-snapshot access pattern — generalizes
// z80-optimizer/pkg/result/table.go's Rule table from an append-only slice
// to per-address hash maps and sorted range lists.
package hooks

import (
	"regexp"
	"sort"
	"sync"
)

// PCHookFunc runs when execution reaches a hooked program counter value.
// Returning false asks the executor to suppress the current path (spec
// §4.3 "PC hook").
type PCHookFunc func(pc uint64) (cont bool)

// RegisterHookFunc runs on every read or write of a hooked register name.
type RegisterHookFunc func(name string, isWrite bool)

// FlagHookFunc runs on every read or write of a hooked flag name.
type FlagHookFunc func(name string, isWrite bool)

// MemoryHookFunc runs on every access touching a hooked address or range.
// isWrite distinguishes load from store; size is the access width in bits.
type MemoryHookFunc func(addr uint64, size uint32, isWrite bool)

// Range is an inclusive [Low, High] address interval.
type Range struct {
	Low, High uint64
}

func (r Range) contains(addr uint64) bool { return addr >= r.Low && addr <= r.High }

// overlaps reports whether r and o share any address.
func (r Range) overlaps(o Range) bool { return r.Low <= o.High && o.Low <= r.High }

// within reports whether r is entirely contained in o — the
// disallow-on-any-overlap rule from DESIGN.md's Open Question decisions
// uses this rather than overlaps for the strict-access filter.
func (r Range) within(o Range) bool { return r.Low >= o.Low && r.High <= o.High }

type pcPrecondition struct {
	pc      uint64
	fn      PCHookFunc
	oneshot bool
	fired   bool
}

// Container holds every hook layer plus the privilege map. All mutation
// methods are safe for concurrent use (spec §5: independent path
// explorations may register/query hooks concurrently under RunConcurrent).
type Container struct {
	mu sync.Mutex

	pcHooks       map[uint64][]PCHookFunc
	pcPreconds    []*pcPrecondition
	registerHooks map[string][]RegisterHookFunc
	flagHooks     map[string][]FlagHookFunc
	rangeHooks    []rangeHook
	symbolHooks   []symbolHook

	allowedRanges []Range // strict-access allow-list; with strict filtering on, nil/empty allows only privileged PCs
	privilegeMap  []Range // PC ranges within which the strict-access filter is bypassed entirely
	strictFiltering bool
}

type rangeHook struct {
	r  Range
	fn MemoryHookFunc
}

type symbolHook struct {
	pattern *regexp.Regexp
	fn      PCHookFunc
}

// NewContainer returns an empty hook container. strictFiltering enables
// the strict-access filter: memory operations whose address range is not
// entirely within an allowed privileged range terminate the path (spec
// §4.3 "strict-access filter").
func NewContainer(strictFiltering bool) *Container {
	return &Container{
		pcHooks:       make(map[uint64][]PCHookFunc),
		registerHooks: make(map[string][]RegisterHookFunc),
		flagHooks:     make(map[string][]FlagHookFunc),
		strictFiltering: strictFiltering,
	}
}

// HookPC registers fn to run whenever the PC reaches addr.
func (c *Container) HookPC(addr uint64, fn PCHookFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pcHooks[addr] = append(c.pcHooks[addr], fn)
}

// HookPCOnce registers fn to run the first time the PC reaches addr, then
// self-erases (spec §4.3 "PC precondition, oneshot self-erase").
func (c *Container) HookPCOnce(addr uint64, fn PCHookFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pcPreconds = append(c.pcPreconds, &pcPrecondition{pc: addr, fn: fn, oneshot: true})
}

// HookRegister registers fn to run on every read or write of name.
func (c *Container) HookRegister(name string, fn RegisterHookFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registerHooks[name] = append(c.registerHooks[name], fn)
}

// HookFlag registers fn to run on every read or write of name.
func (c *Container) HookFlag(name string, fn FlagHookFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flagHooks[name] = append(c.flagHooks[name], fn)
}

// HookRange registers fn to run on any memory access overlapping r.
func (c *Container) HookRange(r Range, fn MemoryHookFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rangeHooks = append(c.rangeHooks, rangeHook{r: r, fn: fn})
}

// HookSymbol registers fn to run when FireSymbol is given a symbol name
// that matches pattern (spec §4.3 "symbol-regex registration"). A pattern
// that never matches anything is not an error, it is simply inert —
// symbol tables vary across binaries and firmware images routinely strip
// them.
func (c *Container) HookSymbol(pattern *regexp.Regexp, fn PCHookFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.symbolHooks = append(c.symbolHooks, symbolHook{pattern: pattern, fn: fn})
}

// FireSymbol runs every symbol hook whose pattern matches name, passing pc
// through. Neither the executor nor the VM calls it: the caller supplies
// the symbol name it resolved for pc.
func (c *Container) FireSymbol(pc uint64, name string) (cont bool) {
	c.mu.Lock()
	matches := make([]PCHookFunc, 0)
	for _, sh := range c.symbolHooks {
		if sh.pattern.MatchString(name) {
			matches = append(matches, sh.fn)
		}
	}
	c.mu.Unlock()
	cont = true
	for _, fn := range matches {
		if !fn(pc) {
			cont = false
		}
	}
	return cont
}

// FirePC runs every hook (persistent and oneshot) registered at pc.
// Oneshot hooks are removed after firing.
func (c *Container) FirePC(pc uint64) (cont bool) {
	c.mu.Lock()
	fns := append([]PCHookFunc(nil), c.pcHooks[pc]...)
	var oneshots []PCHookFunc
	remaining := c.pcPreconds[:0:0]
	for _, p := range c.pcPreconds {
		if p.pc == pc && !p.fired {
			oneshots = append(oneshots, p.fn)
			p.fired = true
			continue
		}
		if !p.fired {
			remaining = append(remaining, p)
		}
	}
	c.pcPreconds = remaining
	c.mu.Unlock()

	cont = true
	for _, fn := range fns {
		if !fn(pc) {
			cont = false
		}
	}
	for _, fn := range oneshots {
		if !fn(pc) {
			cont = false
		}
	}
	return cont
}

// FireRegister runs every hook registered on name.
func (c *Container) FireRegister(name string, isWrite bool) {
	c.mu.Lock()
	fns := append([]RegisterHookFunc(nil), c.registerHooks[name]...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(name, isWrite)
	}
}

// FireFlag runs every hook registered on name.
func (c *Container) FireFlag(name string, isWrite bool) {
	c.mu.Lock()
	fns := append([]FlagHookFunc(nil), c.flagHooks[name]...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(name, isWrite)
	}
}

// FireRange runs every range hook overlapping [addr, addr+size/8-1].
func (c *Container) FireRange(addr uint64, size uint32, isWrite bool) {
	accessed := Range{Low: addr, High: addr + uint64(size/8) - 1}
	c.mu.Lock()
	var matched []MemoryHookFunc
	for _, rh := range c.rangeHooks {
		if rh.r.overlaps(accessed) {
			matched = append(matched, rh.fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range matched {
		fn(addr, size, isWrite)
	}
}

// SetAllowedRanges replaces the set of allowed address ranges used by the
// strict-access filter.
func (c *Container) SetAllowedRanges(ranges []Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sorted := append([]Range(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Low < sorted[j].Low })
	c.allowedRanges = sorted
}

// SetPrivilegeMap replaces the set of PC ranges within which the
// strict-access filter is bypassed entirely (spec §4.3 "privilege map"),
// regardless of the allowed-ranges list — e.g. a trusted bootloader region
// that legitimately pokes at arbitrary memory.
func (c *Container) SetPrivilegeMap(ranges []Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sorted := append([]Range(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Low < sorted[j].Low })
	c.privilegeMap = sorted
}

// CheckAccess reports whether an access to [addr, addr+size/8-1] performed
// while executing at pc is allowed under the strict-access filter. When
// filtering is disabled, or pc falls within a privilege-map range, every
// access is allowed. Otherwise the accessed range must lie entirely within
// a single allowed range: partial overlap with an allowed range counts as
// disallowed (the "disallow-on-any-overlap" policy recorded in
// DESIGN.md's Open Question decisions).
func (c *Container) CheckAccess(pc, addr uint64, size uint32) bool {
	if !c.strictFiltering {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, priv := range c.privilegeMap {
		if priv.contains(pc) {
			return true
		}
	}
	accessed := Range{Low: addr, High: addr + uint64(size/8) - 1}
	for _, allowed := range c.allowedRanges {
		if accessed.within(allowed) {
			return true
		}
	}
	return false
}
