package backend

import (
	"fmt"

	"github.com/tetratelabs/irgen/internal/ir"
)

// SlowPathState is the state of a slow path during compilation.
type SlowPathState byte

const (
	// SlowPathCreated is the state right after registration.
	SlowPathCreated SlowPathState = iota
	// SlowPathEntered means the fast path branches to the entry.
	SlowPathEntered
	// SlowPathExecuting means the out-of-line code is being emitted.
	SlowPathExecuting
	// SlowPathExited means the code jumped back to the exit.
	SlowPathExited
	// SlowPathFatal means the code never returns to the fast path.
	SlowPathFatal
)

// String implements fmt.Stringer.
func (s SlowPathState) String() string {
	switch s {
	case SlowPathCreated:
		return "created"
	case SlowPathEntered:
		return "entered"
	case SlowPathExecuting:
		return "executing"
	case SlowPathExited:
		return "exited"
	case SlowPathFatal:
		return "fatal"
	}
	return "unknown"
}

// SlowPath is out-of-line code for a rare condition, emitted after the code
// of the method.
type SlowPath interface {
	// EmitNativeCode emits the code of the slow path. It must end with Exit
	// or, for fatal slow paths, Fatal.
	EmitNativeCode()
	// IsFatal returns true if the slow path never returns to the fast path.
	IsFatal() bool
	// Name returns a human readable name for logs and listings.
	Name() string
	// Base returns the common state.
	Base() *SlowPathBase
}

// SlowPathBase is embedded in every SlowPath implementation.
//
// Labels are architecture specific, and kept as opaque values here.
type SlowPathBase struct {
	instr *ir.Instruction
	state SlowPathState
	// Entry holds the architecture's entry label.
	Entry any
	// Exit holds the architecture's exit label. Nil for fatal slow paths.
	Exit any
	// StackMask marks the stack slots where the slow path saved registers
	// holding references, for the stack maps it records.
	StackMask BitVector
}

// NewSlowPathBase returns the base of a slow path originating from instr.
func NewSlowPathBase(instr *ir.Instruction) SlowPathBase {
	return SlowPathBase{instr: instr}
}

// Base implements SlowPath.Base.
func (b *SlowPathBase) Base() *SlowPathBase { return b }

// Instruction returns the instruction which branches to this slow path.
func (b *SlowPathBase) Instruction() *ir.Instruction { return b.instr }

// State returns the current state.
func (b *SlowPathBase) State() SlowPathState { return b.state }

func (b *SlowPathBase) transition(from []SlowPathState, to SlowPathState) {
	for _, f := range from {
		if b.state == f {
			b.state = to
			return
		}
	}
	panic(fmt.Sprintf("BUG: slow path of %s cannot go from %s to %s", b.instr, b.state, to))
}

// MarkEntered records that the fast path branches to the entry. A slow path
// may have several branches into it.
func (b *SlowPathBase) MarkEntered() {
	b.transition([]SlowPathState{SlowPathCreated, SlowPathEntered}, SlowPathEntered)
}

// BeginExecuting is called by the code generator right before EmitNativeCode.
func (b *SlowPathBase) BeginExecuting() {
	b.transition([]SlowPathState{SlowPathEntered}, SlowPathExecuting)
}

// MarkExited records that the slow path jumped back to its exit.
func (b *SlowPathBase) MarkExited() {
	b.transition([]SlowPathState{SlowPathExecuting}, SlowPathExited)
}

// MarkFatal records that the slow path ended the control flow.
func (b *SlowPathBase) MarkFatal() {
	b.transition([]SlowPathState{SlowPathExecuting}, SlowPathFatal)
}

// emitSlowPaths emits every slow path in registration order.
func emitSlowPaths(slowPaths []SlowPath) {
	for _, sp := range slowPaths {
		b := sp.Base()
		b.BeginExecuting()
		sp.EmitNativeCode()
		switch b.state {
		case SlowPathExited:
			if sp.IsFatal() {
				panic(fmt.Sprintf("BUG: fatal slow path %s exited", sp.Name()))
			}
		case SlowPathFatal:
			if !sp.IsFatal() {
				panic(fmt.Sprintf("BUG: slow path %s ended as fatal", sp.Name()))
			}
		default:
			panic(fmt.Sprintf("BUG: slow path %s ended in state %s", sp.Name(), b.state))
		}
	}
}
