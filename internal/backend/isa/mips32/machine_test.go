package mips32

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/emulator"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/regalloc"
	"github.com/tetratelabs/irgen/internal/runtime"
)

// testConfig is a combination of options the generated code must behave
// the same under.
type testConfig struct {
	name  string
	opts  backend.CompilerOptions
	alloc regalloc.Options
}

func testConfigs() []testConfig {
	def := backend.DefaultCompilerOptions()
	explicit := def
	explicit.ImplicitNullChecks, explicit.ImplicitStackOverflowChecks = false, false
	slowPath := def
	slowPath.ReadBarrier = backend.ReadBarrierBakerSlowPath
	noReadBarrier := def
	noReadBarrier.ReadBarrier = backend.ReadBarrierNone
	jit := def
	jit.JIT, jit.DebugAssembler = true, true
	return []testConfig{
		{name: "default", opts: def},
		{name: "callee-saves", opts: def, alloc: regalloc.Options{PreferCalleeSaves: true}},
		{name: "explicit checks", opts: explicit},
		{name: "read barrier slow path", opts: slowPath},
		{name: "no read barrier", opts: noReadBarrier},
		{name: "jit", opts: jit},
	}
}

// forEachConfig runs f as a subtest for every testConfig.
func forEachConfig(t *testing.T, f func(t *testing.T, env *testEnv)) {
	for _, cfg := range testConfigs() {
		cfg := cfg
		t.Run(cfg.name, func(t *testing.T) { f(t, newTestEnv(t, cfg)) })
	}
}

// compile runs the whole pipeline on g.
func compile(t *testing.T, g *ir.Graph, cfg testConfig) (*backend.Result, *backend.CompilationContext) {
	res, ctx, err := tryCompile(g, cfg)
	require.NoError(t, err)
	return res, ctx
}

func tryCompile(g *ir.Graph, cfg testConfig) (*backend.Result, *backend.CompilationContext, error) {
	ctx := backend.NewCompilationContext(g.Name(), cfg.opts, nil)
	cg := backend.NewCodeGenerator(ctx, g, NewMachine())
	if err := cg.BuildLocations(); err != nil {
		return nil, ctx, err
	}
	if err := regalloc.Allocate(cg, cfg.alloc); err != nil {
		return nil, ctx, err
	}
	res, err := cg.Compile()
	return res, ctx, err
}

// testEnv compiles methods into an emulator checking stack maps at every
// runtime call.
type testEnv struct {
	t   *testing.T
	cfg testConfig
	e   *emulator.Emulator
	// nextIndex is the method index given to graphs without one.
	nextIndex uint32
}

func newTestEnv(t *testing.T, cfg testConfig) *testEnv {
	return &testEnv{
		t:         t,
		cfg:       cfg,
		e:         emulator.New(emulator.Options{VerifyStackMaps: true}),
		nextIndex: 1000,
	}
}

// define allocates the ArtMethod of g.
func (env *testEnv) define(g *ir.Graph, declaringClass *emulator.Class) *emulator.Method {
	if g.MethodIndex() == 0 {
		g.SetMethodIndex(env.nextIndex)
		env.nextIndex++
	}
	m, err := env.e.DefineMethod(g.MethodIndex(), g.Name(), g.ParameterTypes(), g.ReturnType(), declaringClass)
	require.NoError(env.t, err)
	return m
}

// compileInto compiles g and installs it as the code of m.
func (env *testEnv) compileInto(m *emulator.Method, g *ir.Graph) *backend.Result {
	res, _ := compile(env.t, g, env.cfg)
	require.NoError(env.t, env.e.Install(m, emulator.CompiledCode{
		Code:          res.Code,
		StackMaps:     res.StackMaps,
		LinkerPatches: res.LinkerPatches,
		JitRoots:      res.JitRoots,
		JitPatches:    res.JitPatches,
	}))
	return res
}

func (env *testEnv) install(g *ir.Graph) *emulator.Method {
	m := env.define(g, nil)
	env.compileInto(m, g)
	return m
}

// call calls m and requires it to return normally.
func (env *testEnv) call(m *emulator.Method, args ...uint64) uint64 {
	ret, err := env.e.Call(m, args...)
	require.NoError(env.t, err)
	return ret
}

// throws calls m and requires it to throw kind.
func (env *testEnv) throws(kind emulator.ExceptionKind, m *emulator.Method, args ...uint64) *emulator.ThrownException {
	_, err := env.e.Call(m, args...)
	var thrown *emulator.ThrownException
	require.True(env.t, errors.As(err, &thrown), "%v", err)
	require.Equal(env.t, kind, thrown.Kind)
	return thrown
}

func (env *testEnv) defineClass(spec emulator.ClassSpec) *emulator.Class {
	if spec.Status == 0 {
		spec.Status = runtime.ClassStatusInitialized
	}
	c, err := env.e.DefineClass(spec)
	require.NoError(env.t, err)
	return c
}

func (env *testEnv) newObject(c *emulator.Class) uint32 {
	obj, err := env.e.NewObject(c)
	require.NoError(env.t, err)
	return obj
}

func (env *testEnv) newArray(c *emulator.Class, n int32) uint32 {
	arr, err := env.e.NewArray(c, n)
	require.NoError(env.t, err)
	return arr
}

func (env *testEnv) read32(addr uint32) uint32 {
	v, err := env.e.ReadUint32(addr)
	require.NoError(env.t, err)
	return v
}

func (env *testEnv) write32(addr, v uint32) {
	require.NoError(env.t, env.e.WriteUint32(addr, v))
}

// methodBuilder wraps ir.Builder with helpers for the shapes of the tests.
type methodBuilder struct {
	*ir.Builder
	t *testing.T
}

// newMethod returns a builder whose current block is the first block after the entry.
func newMethod(t *testing.T, name string, ret ir.DataType, params ...ir.DataType) *methodBuilder {
	b := &methodBuilder{Builder: ir.NewBuilder(name, ret, params...), t: t}
	b.SetCurrentBlock(b.AllocateBlock())
	return b
}

func (b *methodBuilder) insert(i *ir.Instruction) *ir.Instruction { return b.InsertInstruction(i) }

func (b *methodBuilder) new() *ir.Instruction { return b.AllocateInstruction() }

func (b *methodBuilder) binary(op ir.Opcode, typ ir.DataType, x, y *ir.Instruction) *ir.Instruction {
	return b.insert(b.new().AsBinary(op, typ, x, y))
}

func (b *methodBuilder) ret(v *ir.Instruction) {
	if v == nil {
		b.insert(b.new().AsReturnVoid())
		return
	}
	b.insert(b.new().AsReturn(v))
}

// block allocates a block and makes it current.
func (b *methodBuilder) block() *ir.BasicBlock {
	blk := b.AllocateBlock()
	b.SetCurrentBlock(blk)
	return blk
}

func (b *methodBuilder) finish() *ir.Graph {
	g, err := b.Finish()
	require.NoError(b.t, err)
	return g
}

// Argument and result bit patterns.
func i32(v int32) uint64     { return uint64(uint32(v)) }
func i64(v int64) uint64     { return uint64(v) }
func f32(v float32) uint64   { return uint64(math.Float32bits(v)) }
func f64(v float64) uint64   { return math.Float64bits(v) }
func asF32(v uint64) float32 { return math.Float32frombits(uint32(v)) }
func asF64(v uint64) float64 { return math.Float64frombits(v) }

func TestMachine_identity(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		for _, typ := range []ir.DataType{ir.TypeInt32, ir.TypeInt64, ir.TypeFloat32, ir.TypeFloat64} {
			b := newMethod(t, "identity"+typ.String(), typ, typ)
			b.ret(b.Parameter(0))
			m := env.install(b.finish())
			for _, v := range []uint64{0, 1, 0x7fffffff, 0x80000000} {
				require.Equal(t, v, env.call(m, v), typ.String())
			}
			if typ.Is64Bit() {
				require.Equal(t, uint64(0x123456789abcdef0), env.call(m, 0x123456789abcdef0))
			}
		}

		b := newMethod(t, "void", ir.TypeVoid)
		b.ret(nil)
		env.call(env.install(b.finish()))
	})
}

func TestMachine_Listing(t *testing.T) {
	build := func() *ir.Graph {
		b := newMethod(t, "add", ir.TypeInt32, ir.TypeInt32, ir.TypeInt32)
		b.ret(b.binary(ir.OpAdd, ir.TypeInt32, b.Parameter(0), b.Parameter(1)))
		return b.finish()
	}

	cfg := testConfigs()[0]
	cfg.opts.DebugAssembler = true
	res, _ := compile(t, build(), cfg)
	require.Contains(t, res.Listing, "ADDU")
	require.NotEmpty(t, res.CFI)
	require.NotEmpty(t, res.EncodedStackMaps)

	cfg.opts.DebugAssembler = false
	res, _ = compile(t, build(), cfg)
	require.Empty(t, res.Listing)
}

func TestMachine_bailouts(t *testing.T) {
	build := func() *ir.Graph {
		b := newMethod(t, "sum", ir.TypeInt32, ir.TypeInt32, ir.TypeInt32, ir.TypeInt32)
		s := b.binary(ir.OpAdd, ir.TypeInt32, b.Parameter(0), b.Parameter(1))
		s = b.binary(ir.OpMul, ir.TypeInt32, s, b.Parameter(2))
		b.ret(s)
		return b.finish()
	}
	for _, tc := range []struct {
		name   string
		modify func(*backend.CompilerOptions)
		exp    backend.BailoutReason
	}{
		{
			name:   "frame too large",
			modify: func(o *backend.CompilerOptions) { o.MaxFrameSize = 8 },
			exp:    backend.BailoutFrameTooLarge,
		},
		{
			name:   "too many instructions",
			modify: func(o *backend.CompilerOptions) { o.MaxInstructions = 3 },
			exp:    backend.BailoutTooManyInstructions,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfigs()[0]
			tc.modify(&cfg.opts)
			_, _, err := tryCompile(build(), cfg)
			var bailout *backend.Bailout
			require.True(t, errors.As(err, &bailout), "%v", err)
			require.Equal(t, tc.exp, bailout.Reason)
		})
	}
}

func TestMachine_stats(t *testing.T) {
	b := newMethod(t, "check", ir.TypeInt32, ir.TypeInt32, ir.TypeInt32)
	b.SetDexPC(3)
	y := b.insert(b.new().AsDivZeroCheck(b.Parameter(1)))
	b.ret(b.binary(ir.OpDiv, ir.TypeInt32, b.Parameter(0), y))
	g := b.finish()

	res, ctx := compile(t, g, testConfigs()[0])
	require.Equal(t, 1, ctx.Stats.SlowPaths)
	require.NotZero(t, ctx.Stats.ParallelMoves)
	require.NotZero(t, ctx.Stats.Moves)
	require.Equal(t, len(res.StackMaps), ctx.Stats.StackMaps)

	// The stack overflow check of the prologue, and the call of the slow path
	// of the division by zero check.
	require.Equal(t, 2, len(res.StackMaps))
	require.Equal(t, uint32(3), res.StackMaps[1].DexPC)
}

func TestMachine_returnAdd(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		b := newMethod(t, "seven", ir.TypeInt32)
		b.ret(b.binary(ir.OpAdd, ir.TypeInt32, b.IntConstant(3), b.IntConstant(4)))
		require.Equal(t, i32(7), env.call(env.install(b.finish())))
	})
}

func TestMachine_loopWithoutSuspendCheck(t *testing.T) {
	// a = 0; while (a == 0) { a = 4; } return a;
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		b := newMethod(t, "loop", ir.TypeInt32)
		b.jump()
		preheader := b.CurrentBlock()

		header := b.block()
		a := b.insert(b.new().AsPhi(ir.TypeInt32))
		b.insert(b.new().AsIf(b.insert(b.new().AsCondition(ir.OpEqual, a, b.IntConstant(0), ir.BiasNone))))

		body := b.block()
		b.jump()

		exit := b.block()
		b.ret(a)

		a.AddPhiInput(b.IntConstant(0))
		a.AddPhiInput(b.IntConstant(4))
		b.Connect(preheader, header)
		b.Connect(header, body)
		b.Connect(header, exit)
		b.Connect(body, header)
		g := b.finish()
		require.True(t, g.HasLoops())

		require.Equal(t, i32(4), env.call(env.install(g)))
		require.Zero(t, env.e.Stats.Calls[runtime.QuickTestSuspend])
	})
}

// mnemonics counts the instructions of a listing by name.
func mnemonics(listing string) map[string]int {
	ret := map[string]int{}
	for _, line := range strings.Split(listing, "\n") {
		if fields := strings.Fields(line); len(fields) >= 3 {
			ret[fields[2]]++
		}
	}
	return ret
}

func TestMachine_divisionSelection(t *testing.T) {
	for _, tc := range []struct {
		divisor            int32
		expShift, expMagic bool
	}{
		{divisor: 2, expShift: true},
		{divisor: 7, expMagic: true},
		{divisor: 0},
	} {
		tc := tc
		t.Run(fmt.Sprintf("divisor %d", tc.divisor), func(t *testing.T) {
			b := newMethod(t, "div", ir.TypeInt32, ir.TypeInt32)
			y := b.insert(b.new().AsDivZeroCheck(b.IntConstant(tc.divisor)))
			b.ret(b.binary(ir.OpDiv, ir.TypeInt32, b.Parameter(0), y))

			cfg := testConfigs()[0]
			cfg.opts.DebugAssembler = true
			res, _ := compile(t, b.finish(), cfg)
			counts := mnemonics(res.Listing)
			// The magic sequence shifts too.
			if !tc.expMagic {
				require.Equal(t, tc.expShift, counts["SRA"] > 0, res.Listing)
			}
			require.Equal(t, tc.expMagic, counts["MULT"] > 0, res.Listing)
			require.Zero(t, counts["DIV"], res.Listing)
		})
	}
}

func TestMachine_redundantNullCheck(t *testing.T) {
	field := func(off uint32) ir.FieldInfo { return ir.FieldInfo{Offset: off, Type: ir.TypeInt32} }

	// f(o) = o.x + o.y, checking o once.
	b := newMethod(t, "same", ir.TypeInt32, ir.TypeReference)
	o := b.insert(b.new().AsNullCheck(b.Parameter(0)))
	x := b.insert(b.new().AsInstanceFieldGet(o, field(8)))
	y := b.insert(b.new().AsInstanceFieldGet(o, field(12)))
	b.ret(b.binary(ir.OpAdd, ir.TypeInt32, x, y))
	same := b.finish()

	// f(o, p) = o.x + p.y.
	b = newMethod(t, "independent", ir.TypeInt32, ir.TypeReference, ir.TypeReference)
	o = b.insert(b.new().AsNullCheck(b.Parameter(0)))
	x = b.insert(b.new().AsInstanceFieldGet(o, field(8)))
	p := b.insert(b.new().AsNullCheck(b.Parameter(1)))
	y = b.insert(b.new().AsInstanceFieldGet(p, field(12)))
	b.ret(b.binary(ir.OpAdd, ir.TypeInt32, x, y))
	independent := b.finish()

	// Only the null checks take slow paths.
	cfg := testConfigs()[2]
	require.False(t, cfg.opts.ImplicitNullChecks)
	cfg.opts.ImplicitStackOverflowChecks = true
	sameRes, sameCtx := compile(t, same, cfg)
	independentRes, independentCtx := compile(t, independent, cfg)
	require.Equal(t, 1, sameCtx.Stats.SlowPaths)
	require.Equal(t, 2, independentCtx.Stats.SlowPaths)
	require.Less(t, len(sameRes.Code), len(independentRes.Code))
}
