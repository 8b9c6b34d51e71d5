// Command symex drives the symbolic executor over a loaded firmware
// image: run explores from an entry symbol to completion, hooks-list
// prints the symbol table a hook can be registered against, and replay
// decodes a single instruction for inspection. Subcommand shape and the
// flags-override-config-file pattern follow z80-optimizer/cmd/z80opt's
// enumerate/target/verify commands.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/symex-go/symex/pkg/arch"
	"github.com/symex-go/symex/pkg/arch/armv6m"
	"github.com/symex-go/symex/pkg/arch/armv7m"
	"github.com/symex-go/symex/pkg/arch/riscv32"
	"github.com/symex-go/symex/pkg/config"
	"github.com/symex-go/symex/pkg/executor"
	"github.com/symex-go/symex/pkg/hooks"
	"github.com/symex-go/symex/pkg/memory"
	"github.com/symex-go/symex/pkg/program"
	"github.com/symex-go/symex/pkg/smt"
	"github.com/symex-go/symex/pkg/vm"
)

func resolveArch(name string) (arch.Architecture, error) {
	switch name {
	case "armv7m":
		return armv7m.New(), nil
	case "armv6m":
		return armv6m.New(), nil
	case "riscv32":
		return riscv32.New(), nil
	default:
		return nil, fmt.Errorf("unknown architecture %q (want armv7m, armv6m, or riscv32)", name)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "symex",
		Short: "Symbolic executor for embedded firmware images",
	}

	var archName string
	var configPath string
	var entry string
	var maxSteps int
	var strictAccess bool
	var verbose bool

	runCmd := &cobra.Command{
		Use:   "run <image.elf>",
		Short: "Explore every feasible path from an entry symbol to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if entry != "" {
				cfg.Entry = entry
			}
			if maxSteps > 0 {
				cfg.MaxSteps = maxSteps
			}
			if strictAccess {
				cfg.StrictAccess = true
			}

			a, err := resolveArch(archName)
			if err != nil {
				return err
			}

			img, err := program.Load(args[0])
			if err != nil {
				return err
			}

			startPC := img.EntryPoint()
			if cfg.Entry != "" {
				sym, ok := img.Symbol(cfg.Entry)
				if !ok {
					return fmt.Errorf("entry symbol %q not found in %s", cfg.Entry, args[0])
				}
				startPC = sym
			}

			h := hooks.NewContainer(cfg.StrictAccess)
			a.AddHooks(h)
			if err := cfg.ApplyStrictAccess(h); err != nil {
				return err
			}

			mem := memory.NewOverlay(memory.NewMap(memory.LittleEndian), img)
			st := arch.NewState(a, mem)
			pcWidth := st.ReadPC().Width()
			st.WritePC(smt.NewConst(startPC, pcWidth))

			ex := executor.New(h, cfg.ExecutorConfig())
			src := program.NewSource(img, a)
			machine := vm.New(src, ex, vm.NewLIFOSelector(), cfg.VMConfig())

			fmt.Printf("Exploring %s from %#x (%s)\n", args[0], startPC, a.Name())

			succeeded, failed, explored := 0, 0, 0
			machine.Run(vm.NewPath(st), func(p *vm.Path, r vm.PathResult) {
				explored++
				switch r.Kind {
				case vm.PathSuccess:
					succeeded++
					if verbose {
						fmt.Printf("  path %d: success\n", explored)
					}
				case vm.PathFailure:
					failed++
					fmt.Printf("  path %d: failure: %s\n", explored, r.Reason)
				case vm.PathAssumptionUnsat:
					fmt.Printf("  path %d: assumption unsatisfiable, discarded\n", explored)
				case vm.PathSuppress:
					fmt.Printf("  path %d: suppressed by hook\n", explored)
				}
			})

			fmt.Printf("Explored %d path(s): %d succeeded, %d failed\n", explored, succeeded, failed)
			return nil
		},
	}
	runCmd.Flags().StringVar(&archName, "arch", "armv7m", "Target architecture: armv7m, armv6m, riscv32")
	runCmd.Flags().StringVar(&configPath, "config", "", "Optional TOML config file")
	runCmd.Flags().StringVar(&entry, "entry", "", "Entry symbol name (defaults to the ELF entry point)")
	runCmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Per-path instruction budget (0 = use config/default)")
	runCmd.Flags().BoolVar(&strictAccess, "strict-access", false, "Reject memory accesses outside the allowed ranges, the stack and program memory")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every successful path, not just failures")

	hooksListCmd := &cobra.Command{
		Use:   "hooks-list <image.elf>",
		Short: "Print every symbol an address or symbol hook can target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := program.Load(args[0])
			if err != nil {
				return err
			}
			syms := img.Symbols()
			fmt.Printf("%d symbol(s) in %s\n", len(syms), args[0])
			for name, addr := range syms {
				fmt.Printf("  %#08x  %s\n", addr, name)
			}
			return nil
		},
	}

	var replayPC uint64
	replayCmd := &cobra.Command{
		Use:   "replay <image.elf>",
		Short: "Decode a single instruction at --pc and print its GA operations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveArch(archName)
			if err != nil {
				return err
			}
			img, err := program.Load(args[0])
			if err != nil {
				return err
			}
			src := program.NewSource(img, a)
			inst, err := src.Decode(replayPC, nil)
			if err != nil {
				return err
			}
			fmt.Printf("%#08x: %s (%d byte(s))\n", inst.Address, inst.Mnemonic, inst.Size())
			for i, op := range inst.Ops {
				operands := make([]string, len(op.Operands))
				for j, operand := range op.Operands {
					operands[j] = operand.String()
				}
				fmt.Printf("  %%%d = %s(%s) -> %s\n", i, op.Op.Mnemonic(), strings.Join(operands, ", "), op.Dest.String())
			}
			return nil
		},
	}
	replayCmd.Flags().StringVar(&archName, "arch", "armv7m", "Target architecture: armv7m, armv6m, riscv32")
	replayCmd.Flags().Uint64Var(&replayPC, "pc", 0, "Address of the instruction to decode")

	rootCmd.AddCommand(runCmd, hooksListCmd, replayCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "symex:", err)
		os.Exit(1)
	}
}
