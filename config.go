package irgen

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/tetratelabs/irgen/internal/backend"
)

// InstructionSet names the target of the generated code.
type InstructionSet string

// InstructionSetMIPS32R2 is little endian MIPS32 release 2 with a 64-bit FPU.
const InstructionSetMIPS32R2 InstructionSet = "mips32r2"

// CompilationMode tells how the generated code is installed.
type CompilationMode string

const (
	// CompilationModeAOT generates code linked ahead of time: classes and
	// strings are reached through linker patches.
	CompilationModeAOT CompilationMode = "aot"
	// CompilationModeJIT generates code installed at run time: classes and
	// strings are reached through the JIT root table of the method, and loop
	// headers record on-stack replacement entries.
	CompilationModeJIT CompilationMode = "jit"
)

// ReadBarrierKind selects how reference loads cooperate with a concurrent
// copying garbage collector.
type ReadBarrierKind = backend.ReadBarrierKind

const (
	ReadBarrierNone          = backend.ReadBarrierNone
	ReadBarrierBakerSlowPath = backend.ReadBarrierBakerSlowPath
	ReadBarrierBakerThunks   = backend.ReadBarrierBakerThunks
)

// CompilerConfig controls the behavior of a Compiler, with the default
// implementation as NewCompilerConfig.
//
// Note: CompilerConfig is immutable. Each WithXXX function returns a new
// instance including the corresponding change.
type CompilerConfig interface {
	// WithInstructionSet sets the target. Defaults to InstructionSetMIPS32R2,
	// the only one supported: other targets fail every compilation with
	// ReasonUnsupportedInstructionSet.
	WithInstructionSet(InstructionSet) CompilerConfig

	// WithCompilationMode defaults to CompilationModeAOT.
	WithCompilationMode(CompilationMode) CompilerConfig

	// WithReadBarrier defaults to ReadBarrierBakerThunks.
	WithReadBarrier(ReadBarrierKind) CompilerConfig

	// WithImplicitNullChecks relies on faults of accesses to the null page
	// instead of explicit tests of references. Defaults to true.
	WithImplicitNullChecks(bool) CompilerConfig

	// WithImplicitStackOverflowChecks touches the stack below the frame in the
	// prologue instead of comparing with the stack limit. Defaults to true.
	WithImplicitStackOverflowChecks(bool) CompilerConfig

	// WithMaxInstructions sets the number of IR instructions above which a
	// method is not compiled. Zero means no limit. Defaults to 10000.
	WithMaxInstructions(int) CompilerConfig

	// WithMaxFrameSize sets the frame size in bytes above which a method is
	// not compiled. Zero means no limit. Defaults to 65536.
	WithMaxFrameSize(int) CompilerConfig

	// WithParallelism sets the number of methods Compiler.CompileMethods
	// compiles at the same time. Values below one are treated as one.
	// Defaults to one.
	WithParallelism(int) CompilerConfig

	// WithDebugAssembler cross-checks the generated code with golang-asm and
	// fills CompiledMethod.Listing. Defaults to false.
	WithDebugAssembler(bool) CompilerConfig

	// WithLogger sets the logger of compilation events, all at debug level
	// except cache failures. Defaults to zap.NewNop.
	WithLogger(*zap.Logger) CompilerConfig

	// WithCompilationCache stores compiled methods in cache and looks them
	// up before compiling. Defaults to nil, which compiles every method.
	//
	// See NewFileCompilationCache
	WithCompilationCache(CompilationCache) CompilerConfig
}

// NewCompilerConfig returns a CompilerConfig with the defaults.
func NewCompilerConfig() CompilerConfig {
	return defaultConfig.clone()
}

type compilerConfig struct {
	instructionSet InstructionSet
	mode           CompilationMode
	options        backend.CompilerOptions
	parallelism    int
	logger         *zap.Logger
	cache          CompilationCache
}

var defaultConfig = &compilerConfig{
	instructionSet: InstructionSetMIPS32R2,
	mode:           CompilationModeAOT,
	options:        backend.DefaultCompilerOptions(),
	parallelism:    1,
	logger:         zap.NewNop(),
}

// clone makes a deep copy of this compiler config.
func (c *compilerConfig) clone() *compilerConfig {
	ret := *c // copy except maps which share a ref
	return &ret
}

// WithInstructionSet implements CompilerConfig.WithInstructionSet
func (c *compilerConfig) WithInstructionSet(isa InstructionSet) CompilerConfig {
	ret := c.clone()
	ret.instructionSet = isa
	return ret
}

// WithCompilationMode implements CompilerConfig.WithCompilationMode
func (c *compilerConfig) WithCompilationMode(mode CompilationMode) CompilerConfig {
	ret := c.clone()
	ret.mode = mode
	ret.options.JIT = mode == CompilationModeJIT
	return ret
}

// WithReadBarrier implements CompilerConfig.WithReadBarrier
func (c *compilerConfig) WithReadBarrier(kind ReadBarrierKind) CompilerConfig {
	ret := c.clone()
	ret.options.ReadBarrier = kind
	return ret
}

// WithImplicitNullChecks implements CompilerConfig.WithImplicitNullChecks
func (c *compilerConfig) WithImplicitNullChecks(enabled bool) CompilerConfig {
	ret := c.clone()
	ret.options.ImplicitNullChecks = enabled
	return ret
}

// WithImplicitStackOverflowChecks implements CompilerConfig.WithImplicitStackOverflowChecks
func (c *compilerConfig) WithImplicitStackOverflowChecks(enabled bool) CompilerConfig {
	ret := c.clone()
	ret.options.ImplicitStackOverflowChecks = enabled
	return ret
}

// WithMaxInstructions implements CompilerConfig.WithMaxInstructions
func (c *compilerConfig) WithMaxInstructions(n int) CompilerConfig {
	ret := c.clone()
	ret.options.MaxInstructions = n
	return ret
}

// WithMaxFrameSize implements CompilerConfig.WithMaxFrameSize
func (c *compilerConfig) WithMaxFrameSize(n int) CompilerConfig {
	ret := c.clone()
	ret.options.MaxFrameSize = n
	return ret
}

// WithParallelism implements CompilerConfig.WithParallelism
func (c *compilerConfig) WithParallelism(n int) CompilerConfig {
	if n < 1 {
		n = 1
	}
	ret := c.clone()
	ret.parallelism = n
	return ret
}

// WithDebugAssembler implements CompilerConfig.WithDebugAssembler
func (c *compilerConfig) WithDebugAssembler(enabled bool) CompilerConfig {
	ret := c.clone()
	ret.options.DebugAssembler = enabled
	return ret
}

// WithLogger implements CompilerConfig.WithLogger
func (c *compilerConfig) WithLogger(logger *zap.Logger) CompilerConfig {
	if logger == nil {
		logger = zap.NewNop()
	}
	ret := c.clone()
	ret.logger = logger
	return ret
}

// WithCompilationCache implements CompilerConfig.WithCompilationCache
func (c *compilerConfig) WithCompilationCache(cache CompilationCache) CompilerConfig {
	ret := c.clone()
	ret.cache = cache
	return ret
}

// configFile is the TOML document read by ParseCompilerConfig. Absent keys
// keep their defaults.
type configFile struct {
	Compiler struct {
		InstructionSet              *string `toml:"instruction_set"`
		Mode                        *string `toml:"mode"`
		ReadBarrier                 *string `toml:"read_barrier"`
		ImplicitNullChecks          *bool   `toml:"implicit_null_checks"`
		ImplicitStackOverflowChecks *bool   `toml:"implicit_stack_overflow_checks"`
		MaxInstructions             *int    `toml:"max_instructions"`
		MaxFrameSize                *int    `toml:"max_frame_size"`
		Parallelism                 *int    `toml:"parallelism"`
		DebugAssembler              *bool   `toml:"debug_assembler"`
	} `toml:"compiler"`
	Cache struct {
		Dir string `toml:"dir"`
	} `toml:"cache"`
}

// ParseCompilerConfig returns the CompilerConfig described by a TOML
// document, with defaults for absent keys. Unknown keys are an error.
//
// For example:
//
//	[compiler]
//	mode = "jit"
//	read_barrier = "baker-slow-path"
//	parallelism = 4
//
//	[cache]
//	dir = "/var/cache/irgen"
//
// The logger is not configurable from a file: use CompilerConfig.WithLogger.
func ParseCompilerConfig(data []byte) (CompilerConfig, error) {
	var f configFile
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("invalid compiler config: unknown keys:\n%s", strict.String())
		}
		return nil, fmt.Errorf("invalid compiler config: %w", err)
	}

	c := defaultConfig.clone()
	fc := &f.Compiler
	if fc.InstructionSet != nil {
		c.instructionSet = InstructionSet(*fc.InstructionSet)
	}
	if fc.Mode != nil {
		switch mode := CompilationMode(*fc.Mode); mode {
		case CompilationModeAOT, CompilationModeJIT:
			c.mode, c.options.JIT = mode, mode == CompilationModeJIT
		default:
			return nil, fmt.Errorf("invalid compiler config: unknown mode %q", *fc.Mode)
		}
	}
	if fc.ReadBarrier != nil {
		kind, err := parseReadBarrier(*fc.ReadBarrier)
		if err != nil {
			return nil, fmt.Errorf("invalid compiler config: %w", err)
		}
		c.options.ReadBarrier = kind
	}
	if fc.ImplicitNullChecks != nil {
		c.options.ImplicitNullChecks = *fc.ImplicitNullChecks
	}
	if fc.ImplicitStackOverflowChecks != nil {
		c.options.ImplicitStackOverflowChecks = *fc.ImplicitStackOverflowChecks
	}
	for _, limit := range []struct {
		name string
		v    *int
		dst  *int
	}{
		{name: "max_instructions", v: fc.MaxInstructions, dst: &c.options.MaxInstructions},
		{name: "max_frame_size", v: fc.MaxFrameSize, dst: &c.options.MaxFrameSize},
		{name: "parallelism", v: fc.Parallelism, dst: &c.parallelism},
	} {
		if limit.v == nil {
			continue
		}
		if *limit.v < 0 {
			return nil, fmt.Errorf("invalid compiler config: negative %s %d", limit.name, *limit.v)
		}
		*limit.dst = *limit.v
	}
	if c.parallelism == 0 {
		c.parallelism = 1
	}
	if fc.DebugAssembler != nil {
		c.options.DebugAssembler = *fc.DebugAssembler
	}

	if dir := f.Cache.Dir; dir != "" {
		cache, err := NewFileCompilationCache(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid compiler config: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// LoadCompilerConfig reads the file at path with ParseCompilerConfig.
func LoadCompilerConfig(path string) (CompilerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compiler config: %w", err)
	}
	c, err := ParseCompilerConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func parseReadBarrier(s string) (ReadBarrierKind, error) {
	for _, k := range []ReadBarrierKind{ReadBarrierNone, ReadBarrierBakerSlowPath, ReadBarrierBakerThunks} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown read barrier %q", s)
}
