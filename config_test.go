package irgen

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tetratelabs/irgen/internal/backend"
)

func TestNewCompilerConfig(t *testing.T) {
	c := NewCompilerConfig().(*compilerConfig)
	require.Equal(t, InstructionSetMIPS32R2, c.instructionSet)
	require.Equal(t, CompilationModeAOT, c.mode)
	require.Equal(t, backend.DefaultCompilerOptions(), c.options)
	require.Equal(t, 1, c.parallelism)
	require.NotNil(t, c.logger)
	require.Nil(t, c.cache)

	// Configs are not shared.
	require.NotSame(t, c, NewCompilerConfig())
}

func TestCompilerConfig(t *testing.T) {
	logger := zap.NewExample()
	cache, err := NewFileCompilationCache(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name     string
		with     func(CompilerConfig) CompilerConfig
		expected func(*compilerConfig)
	}{
		{
			name: "WithInstructionSet",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithInstructionSet("mips64r6")
			},
			expected: func(c *compilerConfig) { c.instructionSet = "mips64r6" },
		},
		{
			name: "WithCompilationMode jit",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithCompilationMode(CompilationModeJIT)
			},
			expected: func(c *compilerConfig) {
				c.mode = CompilationModeJIT
				c.options.JIT = true
			},
		},
		{
			name: "WithCompilationMode aot",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithCompilationMode(CompilationModeJIT).WithCompilationMode(CompilationModeAOT)
			},
			expected: func(*compilerConfig) {},
		},
		{
			name: "WithReadBarrier",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithReadBarrier(ReadBarrierNone)
			},
			expected: func(c *compilerConfig) { c.options.ReadBarrier = ReadBarrierNone },
		},
		{
			name: "WithImplicitNullChecks",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithImplicitNullChecks(false)
			},
			expected: func(c *compilerConfig) { c.options.ImplicitNullChecks = false },
		},
		{
			name: "WithImplicitStackOverflowChecks",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithImplicitStackOverflowChecks(false)
			},
			expected: func(c *compilerConfig) { c.options.ImplicitStackOverflowChecks = false },
		},
		{
			name: "WithMaxInstructions",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithMaxInstructions(0)
			},
			expected: func(c *compilerConfig) { c.options.MaxInstructions = 0 },
		},
		{
			name: "WithMaxFrameSize",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithMaxFrameSize(1024)
			},
			expected: func(c *compilerConfig) { c.options.MaxFrameSize = 1024 },
		},
		{
			name: "WithParallelism",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithParallelism(4)
			},
			expected: func(c *compilerConfig) { c.parallelism = 4 },
		},
		{
			name: "WithParallelism below one",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithParallelism(4).WithParallelism(-2)
			},
			expected: func(*compilerConfig) {},
		},
		{
			name: "WithDebugAssembler",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithDebugAssembler(true)
			},
			expected: func(c *compilerConfig) { c.options.DebugAssembler = true },
		},
		{
			name: "WithLogger",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithLogger(logger)
			},
			expected: func(c *compilerConfig) { c.logger = logger },
		},
		{
			name: "WithLogger nil",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithLogger(logger).WithLogger(nil)
			},
			expected: func(c *compilerConfig) { c.logger = zap.NewNop() },
		},
		{
			name: "WithCompilationCache",
			with: func(c CompilerConfig) CompilerConfig {
				return c.WithCompilationCache(cache)
			},
			expected: func(c *compilerConfig) { c.cache = cache },
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			input := NewCompilerConfig()
			rc := tc.with(input)

			expected := defaultConfig.clone()
			tc.expected(expected)
			require.Equal(t, expected, rc)
			// The original wasn't affected
			require.Equal(t, defaultConfig, input)
		})
	}
}

func TestParseCompilerConfig(t *testing.T) {
	cacheDir := t.TempDir()

	tests := []struct {
		name     string
		input    string
		expected func(*compilerConfig)
	}{
		{
			name:     "empty",
			expected: func(*compilerConfig) {},
		},
		{
			name:     "empty sections",
			input:    "[compiler]\n[cache]\n",
			expected: func(*compilerConfig) {},
		},
		{
			name:  "all keys",
			input: `
[compiler]
instruction_set = "mips32r2"
mode = "jit"
read_barrier = "baker-slow-path"
implicit_null_checks = false
implicit_stack_overflow_checks = false
max_instructions = 500
max_frame_size = 4096
parallelism = 4
debug_assembler = true
`,
			expected: func(c *compilerConfig) {
				c.mode = CompilationModeJIT
				c.parallelism = 4
				c.options = backend.CompilerOptions{
					ReadBarrier:     ReadBarrierBakerSlowPath,
					JIT:             true,
					MaxInstructions: 500,
					MaxFrameSize:    4096,
					DebugAssembler:  true,
				}
			},
		},
		{
			name:     "no read barrier",
			input:    "[compiler]\nread_barrier = \"none\"\n",
			expected: func(c *compilerConfig) { c.options.ReadBarrier = ReadBarrierNone },
		},
		{
			name:     "no limits",
			input:    "[compiler]\nmax_instructions = 0\nmax_frame_size = 0\n",
			expected: func(c *compilerConfig) { c.options.MaxInstructions, c.options.MaxFrameSize = 0, 0 },
		},
		{
			name:     "zero parallelism",
			input:    "[compiler]\nparallelism = 0\n",
			expected: func(*compilerConfig) {},
		},
		{
			name:  "cache",
			input: "[cache]\ndir = '" + cacheDir + "'\n",
			expected: func(c *compilerConfig) {
				cache, err := NewFileCompilationCache(cacheDir)
				require.NoError(t, err)
				c.cache = cache
			},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			c, err := ParseCompilerConfig([]byte(tc.input))
			require.NoError(t, err)

			expected := defaultConfig.clone()
			tc.expected(expected)
			require.Equal(t, expected, c)
		})
	}
}

func TestParseCompilerConfig_errors(t *testing.T) {
	file := path.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	tests := []struct {
		name, input, expectedErr string
	}{
		{
			name:        "unknown mode",
			input:       "[compiler]\nmode = \"interpreter\"\n",
			expectedErr: `invalid compiler config: unknown mode "interpreter"`,
		},
		{
			name:        "unknown read barrier",
			input:       "[compiler]\nread_barrier = \"brooks\"\n",
			expectedErr: `invalid compiler config: unknown read barrier "brooks"`,
		},
		{
			name:        "negative max instructions",
			input:       "[compiler]\nmax_instructions = -1\n",
			expectedErr: "invalid compiler config: negative max_instructions -1",
		},
		{
			name:        "negative max frame size",
			input:       "[compiler]\nmax_frame_size = -8\n",
			expectedErr: "invalid compiler config: negative max_frame_size -8",
		},
		{
			name:        "negative parallelism",
			input:       "[compiler]\nparallelism = -4\n",
			expectedErr: "invalid compiler config: negative parallelism -4",
		},
		{
			name:        "cache dir is a file",
			input:       "[cache]\ndir = '" + file + "'\n",
			expectedErr: "invalid compiler config: " + file + " is not dir",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCompilerConfig([]byte(tc.input))
			require.EqualError(t, err, tc.expectedErr)
		})
	}
}

func TestParseCompilerConfig_invalidDocument(t *testing.T) {
	for _, tc := range []struct {
		name, input, contains string
	}{
		{name: "unknown key", input: "[compiler]\nmax_instruction = 10\n", contains: "max_instruction"},
		{name: "unknown section", input: "[runtime]\nmode = \"jit\"\n", contains: "unknown keys"},
		{name: "wrong type", input: "[compiler]\nparallelism = \"four\"\n", contains: "invalid compiler config"},
		{name: "syntax", input: "[compiler\n", contains: "invalid compiler config"},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCompilerConfig([]byte(tc.input))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestLoadCompilerConfig(t *testing.T) {
	dir := t.TempDir()
	file := path.Join(dir, "irgen.toml")
	require.NoError(t, os.WriteFile(file, []byte("[compiler]\nmode = \"jit\"\n"), 0o600))

	c, err := LoadCompilerConfig(file)
	require.NoError(t, err)
	require.Equal(t, CompilationModeJIT, c.(*compilerConfig).mode)
	require.True(t, c.(*compilerConfig).options.JIT)

	_, err = LoadCompilerConfig(path.Join(dir, "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(file, []byte("[compiler]\nmode = 1\n"), 0o600))
	_, err = LoadCompilerConfig(file)
	require.ErrorContains(t, err, file+": invalid compiler config")
}
