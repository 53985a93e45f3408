package backend

import (
	"fmt"

	"go.uber.org/zap"
)

// ReadBarrierKind selects how reference loads cooperate with a concurrent copying GC.
type ReadBarrierKind byte

const (
	// ReadBarrierNone emits plain reference loads.
	ReadBarrierNone ReadBarrierKind = iota
	// ReadBarrierBakerSlowPath marks gray references through a slow path per load.
	ReadBarrierBakerSlowPath
	// ReadBarrierBakerThunks marks gray references through shared per-register thunks.
	ReadBarrierBakerThunks
)

// String implements fmt.Stringer.
func (k ReadBarrierKind) String() string {
	switch k {
	case ReadBarrierNone:
		return "none"
	case ReadBarrierBakerSlowPath:
		return "baker-slow-path"
	case ReadBarrierBakerThunks:
		return "baker-thunks"
	}
	return "invalid"
}

// CompilerOptions are the options of the backend, copied into every CompilationContext.
type CompilerOptions struct {
	ReadBarrier                 ReadBarrierKind
	ImplicitNullChecks          bool
	ImplicitStackOverflowChecks bool
	// JIT selects the JIT root table for class and string references, and
	// records OSR entries at loop headers.
	JIT bool
	// MaxInstructions bounds the number of IR instructions of a compiled method.
	MaxInstructions int
	// MaxFrameSize bounds the frame size in bytes.
	MaxFrameSize int
	// DebugAssembler mirrors the generated code into a golang-asm listing.
	DebugAssembler bool
}

// DefaultCompilerOptions returns the options used when nothing is configured.
func DefaultCompilerOptions() CompilerOptions {
	return CompilerOptions{
		ReadBarrier:                 ReadBarrierBakerThunks,
		ImplicitNullChecks:          true,
		ImplicitStackOverflowChecks: true,
		MaxInstructions:             10000,
		MaxFrameSize:                65536,
	}
}

// Stats counts what the backend did for one method.
type Stats struct {
	SlowPaths           int
	ParallelMoves       int
	Moves               int
	Swaps               int
	ScratchAcquisitions int
	Spills              int
	LongBranches        int
	StackMaps           int
	Patches             int
}

// Add accumulates the move resolver counters.
func (s *Stats) Add(r MoveResolverStats) {
	s.Moves += r.Moves
	s.Swaps += r.Swaps
	s.ScratchAcquisitions += r.ScratchAcquisitions
	s.Spills += r.Spills
}

// CompilationContext is the state of the compilation of one method. It is
// never shared between goroutines.
type CompilationContext struct {
	Options    CompilerOptions
	Logger     *zap.Logger
	Stats      Stats
	MethodName string
}

// NewCompilationContext returns a context whose logger is scoped to the method.
func NewCompilationContext(methodName string, options CompilerOptions, logger *zap.Logger) *CompilationContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompilationContext{
		Options:    options,
		Logger:     logger.With(zap.String("method", methodName)),
		MethodName: methodName,
	}
}

// BailoutReason tells why a method was deliberately not compiled.
type BailoutReason byte

const (
	BailoutTooManyInstructions BailoutReason = iota + 1
	BailoutUnsupportedInstructionSet
	BailoutInvalidGraph
	BailoutFrameTooLarge
	BailoutPathologicalShape
)

// String implements fmt.Stringer.
func (r BailoutReason) String() string {
	switch r {
	case BailoutTooManyInstructions:
		return "too many instructions"
	case BailoutUnsupportedInstructionSet:
		return "unsupported instruction set"
	case BailoutInvalidGraph:
		return "invalid graph"
	case BailoutFrameTooLarge:
		return "frame too large"
	case BailoutPathologicalShape:
		return "pathological shape"
	}
	return "unknown"
}

// Bailout is returned when a method cannot be compiled. This is not a bug:
// the caller keeps interpreting the method.
type Bailout struct {
	Reason BailoutReason
	Detail string
}

// Error implements error.
func (b *Bailout) Error() string {
	return fmt.Sprintf("not compiled: %s: %s", b.Reason, b.Detail)
}

// NewBailout returns a Bailout with a formatted detail.
func NewBailout(reason BailoutReason, format string, args ...any) *Bailout {
	return &Bailout{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
