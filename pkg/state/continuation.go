package state

import (
	"github.com/symex-go/symex/pkg/ga"
	"github.com/symex-go/symex/pkg/smt"
)

// ResumeMarker distinguishes the two ways a forked path resumes execution
// of an instruction that suspended mid-way through its operation list
// (spec §4.5 "mid-instruction suspension/resume"), grounded directly on
// original_source/symex/src/executor/mod.rs's Continue::{This,Next} enum.
type ResumeMarker uint8

const (
	// ResumeThis re-executes the suspending Operation from scratch (used
	// when, e.g., an Ite chooses the other branch on resume).
	ResumeThis ResumeMarker = iota
	// ResumeNext advances past the already-committed Operation.
	ResumeNext
)

func (m ResumeMarker) String() string {
	if m == ResumeThis {
		return "this"
	}
	return "next"
}

// frame is one level of the explicit execution stack: the operation list
// currently being interpreted and a cursor into it. Using an explicit
// stack instead of native Go recursion is what lets a Continuation be
// captured as plain data and resumed later on a cloned State (spec §4.5).
type frame struct {
	ops    []ga.Operation
	cursor int
}

// Continuation is the captured mid-instruction execution state of one
// Instruction: the frame stack it had reached, the Local bindings produced
// so far, and which resume behavior to use when re-entered.
type Continuation struct {
	stack  []frame
	locals []*smt.BV
	marker ResumeMarker
}

// NewContinuation captures a suspension at the given frame stack and
// Instruction-local bindings.
func NewContinuation(ops []ga.Operation, cursor int, locals []*smt.BV, marker ResumeMarker) *Continuation {
	return &Continuation{
		stack:  []frame{{ops: ops, cursor: cursor}},
		locals: append([]*smt.BV(nil), locals...),
		marker: marker,
	}
}

// PushFrame adds a nested frame (used for the Then or Else operation list
// of a conditional-block Ite, which runs before the enclosing list
// resumes).
func (c *Continuation) PushFrame(ops []ga.Operation, cursor int) {
	c.stack = append(c.stack, frame{ops: ops, cursor: cursor})
}

// Top returns the innermost frame's operation list and cursor.
func (c *Continuation) Top() (ops []ga.Operation, cursor int) {
	f := c.stack[len(c.stack)-1]
	return f.ops, f.cursor
}

// PopFrame discards the innermost frame, returning whether any frame
// remains.
func (c *Continuation) PopFrame() bool {
	c.stack = c.stack[:len(c.stack)-1]
	return len(c.stack) > 0
}

// Advance moves the innermost frame's cursor past the operation just
// committed.
func (c *Continuation) Advance() {
	c.stack[len(c.stack)-1].cursor++
}

// Marker reports which resume behavior applies to the innermost frame.
func (c *Continuation) Marker() ResumeMarker { return c.marker }

// Locals returns the Instruction-local bindings captured so far.
func (c *Continuation) Locals() []*smt.BV { return c.locals }

// SetLocal binds Local(index) to v, growing the Locals slice if needed.
func (c *Continuation) SetLocal(index int, v *smt.BV) {
	for len(c.locals) <= index {
		c.locals = append(c.locals, nil)
	}
	c.locals[index] = v
}

// clone deep-copies the continuation for independent forks.
func (c *Continuation) clone() *Continuation {
	stack := make([]frame, len(c.stack))
	for i, f := range c.stack {
		stack[i] = frame{ops: f.ops, cursor: f.cursor} // ops slices are immutable decoder output, shared is fine
	}
	return &Continuation{
		stack:  stack,
		locals: append([]*smt.BV(nil), c.locals...),
		marker: c.marker,
	}
}
