package irgen

import (
	"fmt"

	"github.com/tetratelabs/irgen/internal/backend"
)

// NotCompiledReason tells why a method was deliberately not compiled.
type NotCompiledReason byte

const (
	// ReasonTooManyInstructions is returned for graphs above the instruction limit.
	//
	// See CompilerConfig.WithMaxInstructions
	ReasonTooManyInstructions NotCompiledReason = iota + 1
	// ReasonUnsupportedInstructionSet is returned by every compilation when the
	// target is not InstructionSetMIPS32R2.
	ReasonUnsupportedInstructionSet
	// ReasonInvalidGraph is returned when the graph breaks a structural
	// invariant, such as a block not ending with control flow.
	ReasonInvalidGraph
	// ReasonFrameTooLarge is returned for frames above the size limit.
	//
	// See CompilerConfig.WithMaxFrameSize
	ReasonFrameTooLarge
	// ReasonPathologicalShape is returned for graphs the register allocator
	// gives up on, such as values live across too many blocks.
	ReasonPathologicalShape
)

// String implements fmt.Stringer.
func (r NotCompiledReason) String() string {
	return backend.BailoutReason(r).String()
}

// NotCompiledError is returned by Compiler.CompileMethod for methods it
// deliberately did not compile. This is not a bug: the method stays
// interpreted.
type NotCompiledError struct {
	// Method is the name of the graph.
	Method string
	Reason NotCompiledReason
	Detail string
}

// Error implements error.
func (e *NotCompiledError) Error() string {
	return fmt.Sprintf("%s not compiled: %s: %s", e.Method, e.Reason, e.Detail)
}

func notCompiled(method string, b *backend.Bailout) *NotCompiledError {
	return &NotCompiledError{Method: method, Reason: NotCompiledReason(b.Reason), Detail: b.Detail}
}
