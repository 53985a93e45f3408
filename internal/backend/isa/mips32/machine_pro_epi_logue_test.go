package mips32

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/emulator"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/runtime"
)

func TestMachine_ComputeFrame(t *testing.T) {
	for _, tc := range []struct {
		name string
		req  backend.FrameRequest
		exp  backend.Frame
	}{
		{
			name: "leaf",
			exp:  backend.Frame{Size: 16, CoreSpillMask: 1 << ra, HomeAreaOffset: 8},
		},
		{
			name: "outgoing args and homes",
			req:  backend.FrameRequest{OutgoingArgsSize: 12, HomeAreaSize: 20},
			exp:  backend.Frame{Size: 48, CoreSpillMask: 1 << ra, HomeAreaOffset: 16},
		},
		{
			name: "caller-saves are not spilled",
			req: backend.FrameRequest{
				HomeAreaSize:  8,
				UsedRegisters: backend.NewRegisterSet([]int{v0, a0, t7}, []int{0, 18}),
			},
			exp: backend.Frame{Size: 32, CoreSpillMask: 1 << ra, HomeAreaOffset: 8},
		},
		{
			name: "callee-saves and save area",
			req: backend.FrameRequest{
				HomeAreaSize:          8,
				UsedRegisters:         backend.NewRegisterSet([]int{s0, s2, t0}, []int{20, 2}),
				NeedsSlowPathSaveArea: true,
			},
			exp: backend.Frame{
				Size:                   176,
				CoreSpillMask:          1<<ra | 1<<s0 | 1<<s2,
				FpuSpillMask:           1 << 20,
				HomeAreaOffset:         144,
				SlowPathSaveAreaOffset: 8,
			},
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			m := &machine{}
			actual := m.ComputeFrame(tc.req)
			require.Equal(t, tc.exp, actual)
			require.Zero(t, actual.Size%stackAlignment)
		})
	}
}

func TestSpillSlots(t *testing.T) {
	f := backend.Frame{Size: 176, CoreSpillMask: 1<<ra | 1<<s0 | 1<<s2, FpuSpillMask: 1<<20 | 1<<24}
	require.Equal(t, []spillSlot{{r: ra, off: 172}, {r: s2, off: 168}, {r: s0, off: 164}}, coreSpillSlots(f))
	// Below the core slots, 8-byte aligned.
	require.Equal(t, []spillSlot{{r: 24, off: 152}, {r: 20, off: 144}}, fpuSpillSlots(f))
}

func TestSaveSlots(t *testing.T) {
	seen := map[int]bool{}
	for _, r := range callerSaveCore {
		off := saveSlotOfCore(r)
		require.True(t, off >= 0 && off+4 <= saveAreaCoreSize, "r%d", r)
		require.False(t, seen[off])
		seen[off] = true
	}
	for _, r := range callerSaveFpu {
		off := saveSlotOfFpu(r)
		require.True(t, off >= saveAreaCoreSize && off+8 <= saveAreaSize, "f%d", r)
		require.Zero(t, off%8, "f%d", r)
		require.False(t, seen[off])
		seen[off] = true
	}
}

func TestAlignUp(t *testing.T) {
	require.Equal(t, 0, alignUp(0, 8))
	require.Equal(t, 8, alignUp(1, 8))
	require.Equal(t, 16, alignUp(16, 16))
	require.Equal(t, 32, alignUp(17, 16))
}

func TestMachine_stackOverflow(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		b := newMethod(t, "recurse", ir.TypeInt32, ir.TypeInt32)
		b.SetDexPC(2)
		n := b.binary(ir.OpAdd, ir.TypeInt32, b.Parameter(0), b.IntConstant(1))
		r := b.insert(b.new().AsInvokeStaticOrDirect(ir.MethodReference{Name: "recurse"},
			ir.MethodLoadRecursive, 0, ir.TypeInt32, []*ir.Instruction{n}))
		b.ret(r)
		m := env.install(b.finish())

		thrown := env.throws(emulator.StackOverflowError, m, i32(0))
		require.Equal(t, "recurse", thrown.Method)
		if env.cfg.opts.ImplicitStackOverflowChecks {
			require.Equal(t, 0, env.e.Stats.Calls[runtime.QuickThrowStackOverflow])
		} else {
			require.Equal(t, 1, env.e.Stats.Calls[runtime.QuickThrowStackOverflow])
		}
	})
}

func TestMachine_recursion(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		// factorial(n) = n <= 1 ? 1 : n * factorial(n - 1)
		b := newMethod(t, "factorial", ir.TypeInt32, ir.TypeInt32)
		n := b.Parameter(0)
		cond := b.insert(b.new().AsCondition(ir.OpLessThanOrEqual, n, b.IntConstant(1), ir.BiasNone))
		b.insert(b.new().AsIf(cond))
		head := b.CurrentBlock()

		base := b.block()
		b.ret(b.IntConstant(1))

		rec := b.block()
		r := b.insert(b.new().AsInvokeStaticOrDirect(ir.MethodReference{Name: "factorial"}, ir.MethodLoadRecursive,
			0, ir.TypeInt32, []*ir.Instruction{b.binary(ir.OpSub, ir.TypeInt32, n, b.IntConstant(1))}))
		b.ret(b.binary(ir.OpMul, ir.TypeInt32, n, r))

		b.Connect(head, base)
		b.Connect(head, rec)
		m := env.install(b.finish())

		exp := int32(1)
		for i := int32(0); i <= 12; i++ {
			if i > 1 {
				exp *= i
			}
			require.Equal(t, i32(exp), env.call(m, i32(i)), "%d!", i)
		}
	})
}
