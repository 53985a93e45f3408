package mips32

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/emulator"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/runtime"
)

func (b *methodBuilder) jump() { b.insert(b.new().AsGoto()) }

// intArrayClass defines the class of int[] with its component class.
func (env *testEnv) intArrayClass() *emulator.Class {
	i := env.defineClass(emulator.ClassSpec{TypeIndex: 900, Descriptor: "I", Primitive: runtime.PrimitiveInt})
	return env.defineClass(emulator.ClassSpec{TypeIndex: 901, Descriptor: "[I", Component: i})
}

func TestInstructionVisitor_phi(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		for _, typ := range []ir.DataType{ir.TypeInt32, ir.TypeInt64, ir.TypeFloat64} {
			// max(x, y) with a phi merging the branches.
			b := newMethod(t, "max", typ, typ, typ)
			x, y := b.Parameter(0), b.Parameter(1)
			b.insert(b.new().AsIf(b.insert(b.new().AsCondition(ir.OpGreaterThan, x, y, ir.BiasLt))))
			head := b.CurrentBlock()
			then := b.block()
			b.jump()
			els := b.block()
			b.jump()
			join := b.block()
			phi := b.insert(b.new().AsPhi(typ))
			phi.AddPhiInput(x)
			phi.AddPhiInput(y)
			b.ret(phi)
			b.Connect(head, then)
			b.Connect(head, els)
			b.Connect(then, join)
			b.Connect(els, join)
			m := env.install(b.finish())

			args := func(x, y int64) (uint64, uint64) {
				switch typ {
				case ir.TypeInt32:
					return i32(int32(x)), i32(int32(y))
				case ir.TypeFloat64:
					return f64(float64(x)), f64(float64(y))
				}
				return i64(x), i64(y)
			}
			for _, tc := range [][2]int64{{1, 2}, {2, 1}, {-5, 3}, {7, 7}, {-1 << 40, 1 << 40}} {
				x, y := args(tc[0], tc[1])
				exp := x
				if tc[1] > tc[0] {
					exp = y
				}
				require.Equal(t, exp, env.call(m, x, y), "%s max(%d, %d)", typ, tc[0], tc[1])
			}
		}
	})
}

// buildSum builds sum(n) = 0 + 1 + ... + n-1 with a loop polling for suspension.
func buildSum(t *testing.T) *ir.Graph {
	b := newMethod(t, "sum", ir.TypeInt32, ir.TypeInt32)
	n := b.Parameter(0)
	b.SetDexPC(1)
	b.jump()
	preheader := b.CurrentBlock()

	header := b.block()
	i := b.insert(b.new().AsPhi(ir.TypeInt32))
	s := b.insert(b.new().AsPhi(ir.TypeInt32))
	b.SetDexPC(2)
	b.insert(b.new().AsSuspendCheck())
	b.insert(b.new().AsIf(b.insert(b.new().AsCondition(ir.OpGreaterThanOrEqual, i, n, ir.BiasNone))))

	done := b.block()
	b.ret(s)

	body := b.block()
	s2 := b.binary(ir.OpAdd, ir.TypeInt32, s, i)
	i2 := b.binary(ir.OpAdd, ir.TypeInt32, i, b.IntConstant(1))
	b.jump()

	i.AddPhiInput(b.IntConstant(0))
	i.AddPhiInput(i2)
	s.AddPhiInput(b.IntConstant(0))
	s.AddPhiInput(s2)
	b.Connect(preheader, header)
	b.Connect(header, done)
	b.Connect(header, body)
	b.Connect(body, header)
	return b.finish()
}

func TestInstructionVisitor_loop(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		g := buildSum(t)
		require.True(t, g.HasLoops())
		m := env.define(g, nil)
		res := env.compileInto(m, g)

		for _, n := range []int32{0, 1, 2, 10, 1000} {
			require.Equal(t, i32(n*(n-1)/2), env.call(m, i32(n)), "sum(%d)", n)
		}
		require.Zero(t, env.e.Stats.Calls[runtime.QuickTestSuspend])

		env.e.RequestSuspend()
		require.Equal(t, i32(45), env.call(m, i32(10)))
		require.Equal(t, 1, env.e.Stats.Calls[runtime.QuickTestSuspend])
		require.False(t, env.e.SuspendRequested())

		var osr int
		for _, sm := range res.StackMaps {
			if sm.Kind == backend.StackMapOSR {
				osr++
				require.Equal(t, uint32(2), sm.DexPC)
			}
		}
		if env.cfg.opts.JIT {
			require.Equal(t, 1, osr)
		} else {
			require.Zero(t, osr)
		}
	})
}

func TestInstructionVisitor_VisitPackedSwitch(t *testing.T) {
	for _, n := range []uint32{1, 3, packedSwitchCompareLimit, packedSwitchCompareLimit + 1, 20} {
		n := n
		t.Run(fmt.Sprintf("%d cases", n), func(t *testing.T) {
			forEachConfig(t, func(t *testing.T, env *testEnv) {
				const start = -2
				b := newMethod(t, "switch", ir.TypeInt32, ir.TypeInt32)
				b.insert(b.new().AsPackedSwitch(b.Parameter(0), start, n))
				head := b.CurrentBlock()
				var succs []*ir.BasicBlock
				for i := uint32(0); i < n; i++ {
					succs = append(succs, b.block())
					b.ret(b.IntConstant(int32(100 + i)))
				}
				succs = append(succs, b.block())
				b.ret(b.IntConstant(-1))
				for _, s := range succs {
					b.Connect(head, s)
				}
				m := env.install(b.finish())

				for v := int32(start - 3); v < start+int32(n)+3; v++ {
					exp := int32(-1)
					if v >= start && v < start+int32(n) {
						exp = 100 + v - start
					}
					require.Equal(t, i32(exp), env.call(m, i32(v)), "%d", v)
				}
				// Far outside the range, including values wrapping around to small indices.
				for _, v := range []int32{-1 << 31, 1<<31 - 1, 1 << 16} {
					require.Equal(t, i32(-1), env.call(m, i32(v)), "%d", v)
				}
			})
		})
	}
}

func TestInstructionVisitor_VisitNullCheck(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		arrays := env.intArrayClass()
		arr := env.newArray(arrays, 3)

		// The length load is the implicit null check.
		b := newMethod(t, "length", ir.TypeInt32, ir.TypeReference)
		b.SetDexPC(7)
		b.ret(b.insert(b.new().AsArrayLength(b.insert(b.new().AsNullCheck(b.Parameter(0))))))
		length := env.install(b.finish())

		// Nothing dereferences the checked value.
		b = newMethod(t, "check", ir.TypeReference, ir.TypeReference)
		b.SetDexPC(8)
		b.ret(b.insert(b.new().AsNullCheck(b.Parameter(0))))
		check := env.install(b.finish())

		require.Equal(t, i32(3), env.call(length, uint64(arr)))
		require.Equal(t, uint64(arr), env.call(check, uint64(arr)))

		thrown := env.throws(emulator.NullPointerException, length, 0)
		require.Equal(t, uint32(7), thrown.DexPC)
		require.Equal(t, "length", thrown.Method)
		thrown = env.throws(emulator.NullPointerException, check, 0)
		require.Equal(t, uint32(8), thrown.DexPC)

		if env.cfg.opts.ImplicitNullChecks {
			require.Equal(t, backend.StackMapImplicitNullCheck, thrown.StackMap.Kind)
			require.Zero(t, env.e.Stats.Calls[runtime.QuickThrowNullPointer])
		} else {
			require.Equal(t, backend.StackMapSlowPath, thrown.StackMap.Kind)
			require.Equal(t, 2, env.e.Stats.Calls[runtime.QuickThrowNullPointer])
		}
	})
}

func TestInstructionVisitor_VisitBoundsCheck(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		arrays := env.intArrayClass()
		arr := env.newArray(arrays, 3)
		for i := int32(0); i < 3; i++ {
			addr, err := env.e.ArrayElement(arr, i)
			require.NoError(t, err)
			env.write32(addr, uint32(10*i+1))
		}

		b := newMethod(t, "get", ir.TypeInt32, ir.TypeReference, ir.TypeInt32)
		b.SetDexPC(11)
		nc := b.insert(b.new().AsNullCheck(b.Parameter(0)))
		n := b.insert(b.new().AsArrayLength(nc))
		idx := b.insert(b.new().AsBoundsCheck(b.Parameter(1), n))
		b.ret(b.insert(b.new().AsArrayGet(nc, idx, ir.TypeInt32)))
		m := env.install(b.finish())

		for i := int32(0); i < 3; i++ {
			require.Equal(t, i32(10*i+1), env.call(m, uint64(arr), i32(i)))
		}
		for _, i := range []int32{-1, 3, 1 << 30, -1 << 31} {
			thrown := env.throws(emulator.ArrayIndexOutOfBoundsException, m, uint64(arr), i32(i))
			require.Equal(t, uint32(11), thrown.DexPC)
		}
		env.throws(emulator.NullPointerException, m, 0, i32(0))
	})
}

func TestInstructionVisitor_VisitThrow(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		const kind = "Ljava/lang/IllegalStateException;"
		exc := env.defineClass(emulator.ClassSpec{TypeIndex: 30, Descriptor: kind})
		obj := env.newObject(exc)

		b := newMethod(t, "throw", ir.TypeVoid, ir.TypeReference)
		b.SetDexPC(4)
		b.insert(b.new().AsThrow(b.Parameter(0)))
		m := env.install(b.finish())

		thrown := env.throws(kind, m, uint64(obj))
		require.Equal(t, obj, thrown.Object)
		require.Equal(t, uint32(4), thrown.DexPC)
		require.Equal(t, backend.StackMapDefault, thrown.StackMap.Kind)
		env.throws(emulator.NullPointerException, m, 0)
	})
}

func TestInstructionVisitor_VisitMonitorOperation(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		cls := env.defineClass(emulator.ClassSpec{TypeIndex: 31, Descriptor: "LLock;"})
		obj := env.newObject(cls)

		monitor := func(name string, enter bool) *emulator.Method {
			b := newMethod(t, name, ir.TypeVoid, ir.TypeReference)
			b.insert(b.new().AsMonitorOperation(b.Parameter(0), enter))
			b.ret(nil)
			return env.install(b.finish())
		}
		lock, unlock := monitor("lock", true), monitor("unlock", false)

		b := newMethod(t, "synchronized", ir.TypeInt32, ir.TypeReference, ir.TypeInt32)
		b.insert(b.new().AsMonitorOperation(b.Parameter(0), true))
		v := b.binary(ir.OpMul, ir.TypeInt32, b.Parameter(1), b.IntConstant(3))
		b.insert(b.new().AsMonitorOperation(b.Parameter(0), false))
		b.ret(v)
		sync := env.install(b.finish())

		env.call(lock, uint64(obj))
		env.call(lock, uint64(obj))
		require.Equal(t, 2, env.e.LockCount(obj))
		require.Equal(t, i32(21), env.call(sync, uint64(obj), i32(7)))
		require.Equal(t, 2, env.e.LockCount(obj))
		env.call(unlock, uint64(obj))
		env.call(unlock, uint64(obj))
		require.Zero(t, env.e.LockCount(obj))

		env.throws(emulator.IllegalMonitorStateException, unlock, uint64(obj))
		env.throws(emulator.NullPointerException, lock, 0)
	})
}

func TestInstructionVisitor_VisitDeoptimize(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		b := newMethod(t, "guarded", ir.TypeInt32, ir.TypeInt32)
		b.SetDexPC(6)
		b.insert(b.new().AsDeoptimize(b.insert(b.new().AsCondition(ir.OpEqual, b.Parameter(0), b.IntConstant(0), ir.BiasNone))))
		b.ret(b.binary(ir.OpAdd, ir.TypeInt32, b.Parameter(0), b.IntConstant(1)))
		m := env.install(b.finish())

		require.Equal(t, i32(6), env.call(m, i32(5)))
		thrown := env.throws(emulator.Deoptimization, m, 0)
		require.Equal(t, uint32(6), thrown.DexPC)
		require.Equal(t, 1, env.e.Stats.Calls[runtime.QuickDeoptimize])

		// Never taken.
		b = newMethod(t, "unguarded", ir.TypeInt32, ir.TypeInt32)
		b.insert(b.new().AsDeoptimize(b.IntConstant(0)))
		b.ret(b.Parameter(0))
		m = env.install(b.finish())
		require.Equal(t, i32(5), env.call(m, i32(5)))
	})
}

func TestInstructionVisitor_VisitMemoryBarrier(t *testing.T) {
	b := newMethod(t, "fence", ir.TypeVoid)
	b.insert(b.new().AsMemoryBarrier(ir.BarrierAnyStore))
	b.ret(nil)
	g := b.finish()

	cfg := testConfigs()[0]
	cfg.opts.DebugAssembler = true
	env := newTestEnv(t, cfg)
	m := env.define(g, nil)
	res := env.compileInto(m, g)
	require.Contains(t, res.Listing, "SYNC")
	env.call(m)
}
