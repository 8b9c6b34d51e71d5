// Package config loads the engine-wide settings SPEC_FULL.md §6 calls
// out by name: the entry symbol to start exploration from, the per-path
// and total instruction step limits (pkg/vm.Config), the solver's
// bounded-enumeration width (pkg/executor.Config.MaxForkSolutions), and
// whether memory hooks run in strict-access mode (pkg/hooks.Container).
//
// Settings load from an optional TOML file via github.com/BurntSushi/toml
// (grounded on lookbusy1344-arm_emulator's go.mod, the ARM-emulator
// manifest in the pack), with cobra flags in cmd/symex taking precedence
// over whatever the file sets — the same flags-override-defaults pattern
// z80-optimizer/cmd/z80opt/main.go uses for its enumerate/target/verify
// subcommands.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/symex-go/symex/pkg/executor"
	"github.com/symex-go/symex/pkg/hooks"
	"github.com/symex-go/symex/pkg/vm"
)

// Config is the full set of tunables one symex run needs, independent of
// which architecture or program image it ends up exploring.
type Config struct {
	// Entry is the symbol name (resolved against program.ELFMemory.Symbol)
	// exploration starts from. Empty means "use the ELF entry point".
	Entry string `toml:"entry"`

	// MaxSteps bounds instructions executed on a single path; 0 disables
	// the bound.
	MaxSteps int `toml:"max_steps"`

	// MaxInstructionsTotal bounds instructions executed across every path
	// in one run; 0 disables the bound.
	MaxInstructionsTotal int `toml:"max_instructions_total"`

	// MaxForkSolutions is the bounded-enumeration width k used by
	// fork-for-all and address resolution (spec.md §4.5).
	MaxForkSolutions int `toml:"max_fork_solutions"`

	// StrictAccess turns on pkg/hooks.Container's privilege-range
	// filtering: accesses outside every declared range fail instead of
	// passing through silently.
	StrictAccess bool `toml:"strict_access"`

	// AllowedRanges lists the address ranges StrictAccess permits, each
	// as "low-high" hex or decimal bounds (e.g. "0x20000000-0x20010000").
	// Only consulted when StrictAccess is true.
	AllowedRanges []string `toml:"allowed_ranges"`

	// PrivilegedRanges lists PC ranges ("low-high" bounds, same syntax as
	// AllowedRanges) within which StrictAccess is bypassed entirely — e.g.
	// a trusted bootloader region. Only consulted when StrictAccess is
	// true.
	PrivilegedRanges []string `toml:"privileged_ranges"`
}

// Default mirrors pkg/vm.DefaultConfig and pkg/executor.DefaultConfig so
// a Config zero value loaded from an empty or partial TOML file still
// behaves sensibly.
func Default() Config {
	vmDefault := vm.DefaultConfig()
	exDefault := executor.DefaultConfig()
	return Config{
		MaxSteps:             vmDefault.MaxSteps,
		MaxInstructionsTotal: vmDefault.MaxInstructionsTotal,
		MaxForkSolutions:     exDefault.MaxForkSolutions,
	}
}

// Load reads path as a TOML file and overlays it onto Default(). A
// missing field in the file keeps its default value rather than zeroing
// it out, since toml.DecodeFile only sets fields the file mentions.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// VMConfig projects the step-budget fields into pkg/vm.Config.
func (c Config) VMConfig() vm.Config {
	return vm.Config{MaxSteps: c.MaxSteps, MaxInstructionsTotal: c.MaxInstructionsTotal}
}

// ExecutorConfig projects the enumeration bound into pkg/executor.Config.
func (c Config) ExecutorConfig() executor.Config {
	return executor.Config{MaxForkSolutions: c.MaxForkSolutions}
}

// ParseRanges turns AllowedRanges' "low-high" strings into hooks.Range
// values, accepting both decimal and 0x-prefixed hex bounds.
func (c Config) ParseRanges() ([]hooks.Range, error) {
	return parseRangeList("allowed_ranges", c.AllowedRanges)
}

// ParsePrivilegeMap turns PrivilegedRanges' "low-high" strings into
// hooks.Range values, same syntax as ParseRanges.
func (c Config) ParsePrivilegeMap() ([]hooks.Range, error) {
	return parseRangeList("privileged_ranges", c.PrivilegedRanges)
}

func parseRangeList(field string, specs []string) ([]hooks.Range, error) {
	ranges := make([]hooks.Range, 0, len(specs))
	for _, s := range specs {
		low, high, err := parseRange(s)
		if err != nil {
			return nil, fmt.Errorf("config: %s %q: %w", field, s, err)
		}
		ranges = append(ranges, hooks.Range{Low: low, High: high})
	}
	return ranges, nil
}

func parseRange(s string) (low, high uint64, err error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected LOW-HIGH, got %q", s)
	}
	low, err = strconv.ParseUint(strings.TrimSpace(parts[0]), 0, 64)
	if err != nil {
		return 0, 0, err
	}
	high, err = strconv.ParseUint(strings.TrimSpace(parts[1]), 0, 64)
	if err != nil {
		return 0, 0, err
	}
	return low, high, nil
}

// ApplyStrictAccess wires StrictAccess/AllowedRanges into h, called once
// by cmd/symex after building the architecture's hook container.
func (c Config) ApplyStrictAccess(h *hooks.Container) error {
	if !c.StrictAccess {
		return nil
	}
	ranges, err := c.ParseRanges()
	if err != nil {
		return err
	}
	h.SetAllowedRanges(ranges)

	privileged, err := c.ParsePrivilegeMap()
	if err != nil {
		return err
	}
	h.SetPrivilegeMap(privileged)
	return nil
}
