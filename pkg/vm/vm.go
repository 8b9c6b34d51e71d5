package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/symex-go/symex/pkg/executor"
)

// Config bounds one VM run. The dual step-budget guards (per-path and
// total) are a supplemented feature absent from the distilled spec but
// present in original_source's executor, which aborts both a
// pathologically long single path and a pathologically wide exploration
// tree (SPEC_FULL.md §9).
type Config struct {
	MaxSteps           int // per-path instruction budget, 0 = unlimited
	MaxInstructionsTotal int // whole-run instruction budget across every path, 0 = unlimited
}

// DefaultConfig matches spec.md's suggested defaults.
func DefaultConfig() Config { return Config{MaxSteps: 100_000, MaxInstructionsTotal: 10_000_000} }

// VM is the path worklist scheduler of spec §4.6: it owns the
// InstructionSource, a reusable Executor, the pluggable PathSelector, and
// drives paths to completion one at a time.
type VM struct {
	Source   InstructionSource
	Executor *executor.Executor
	Paths    PathSelector
	Config   Config

	totalInstructions int64
}

// New returns a VM ready to explore starting from root.
func New(source InstructionSource, ex *executor.Executor, selector PathSelector, cfg Config) *VM {
	vm := &VM{Source: source, Executor: ex, Paths: selector, Config: cfg}
	return vm
}

// Run drains the worklist, calling onResult for every path that reaches a
// terminal PathResult. It returns the total number of paths explored.
func (v *VM) Run(root *Path, onResult func(*Path, PathResult)) int {
	v.Paths.SavePath(root)
	explored := 0
	for {
		p, ok := v.Paths.GetPath()
		if !ok {
			return explored
		}
		result := v.runOnePath(p)
		explored++
		onResult(p, result)
	}
}

func (v *VM) runOnePath(p *Path) (result PathResult) {
	defer func() {
		if r := recover(); r != nil {
			result = PathResult{Kind: PathFailure, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	for {
		if v.Config.MaxSteps > 0 && p.Depth >= v.Config.MaxSteps {
			return PathResult{Kind: PathFailure, Reason: "path exceeded MaxSteps"}
		}
		if v.Config.MaxInstructionsTotal > 0 && atomic.LoadInt64(&v.totalInstructions) >= int64(v.Config.MaxInstructionsTotal) {
			return PathResult{Kind: PathFailure, Reason: "run exceeded MaxInstructionsTotal"}
		}

		pcVal, ok := p.State.ReadPC().IsConst()
		if !ok {
			pcVal, ok = p.Solver.GetConstant(p.State.ReadPC())
			if !ok {
				return PathResult{Kind: PathFailure, Reason: "program counter is not concrete"}
			}
		}

		inst, err := v.Source.Decode(pcVal, p.State)
		if err != nil {
			return PathResult{Kind: PathFailure, Reason: fmt.Sprintf("decode error at %#x: %v", pcVal, err)}
		}

		if p.Logger != nil {
			p.Logger.UpdateDelimiter(pcVal, p.State)
			v.Executor.Logger = p.Logger
		}

		res := v.Executor.Step(inst, p.State, p.Solver)
		p.Depth++
		atomic.AddInt64(&v.totalInstructions, 1)

		for _, forked := range res.Forks {
			v.Paths.SavePath(p.ForkWithSolver(forked.State, forked.Solver))
		}

		switch res.Outcome {
		case executor.OutcomeContinue:
			continue
		case executor.OutcomeSuccess:
			if res.Value != nil {
				return PathResult{Kind: PathSuccess, Value: res.Value}
			}
			if len(res.Forks) > 0 {
				// this instruction only advanced the program counter
				// (a branch); keep running this path.
				continue
			}
			return PathResult{Kind: PathSuccess}
		case executor.OutcomeFailure:
			return PathResult{Kind: PathFailure, Reason: res.Reason}
		case executor.OutcomeAssumptionUnsat:
			return PathResult{Kind: PathAssumptionUnsat}
		case executor.OutcomeSuppress:
			return PathResult{Kind: PathSuppress}
		default:
			return PathResult{Kind: PathFailure, Reason: "unknown executor outcome"}
		}
	}
}

// RunConcurrent explores each of the given root states (typically distinct
// entry symbols, or distinct initial inputs) in its own VM instance,
// fanning work out across workers goroutines. Grounded on
// z80-optimizer/pkg/search/worker.go's WorkerPool: a channel of tasks
// drained by a fixed goroutine pool, with sync/atomic counters tracking
// progress instead of a shared mutable slice.
func RunConcurrent(roots []*Path, newVM func() *VM, workers int, onResult func(root *Path, result PathResult)) {
	if workers <= 0 {
		workers = 1
	}
	tasks := make(chan *Path, len(roots))
	for _, r := range roots {
		tasks <- r
	}
	close(tasks)

	var mu sync.Mutex
	var wg sync.WaitGroup
	var completed atomic.Int64

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for root := range tasks {
				localVM := newVM()
				localVM.Run(root, func(p *Path, result PathResult) {
					mu.Lock()
					onResult(p, result)
					mu.Unlock()
				})
				completed.Add(1)
			}
		}()
	}
	wg.Wait()
}
