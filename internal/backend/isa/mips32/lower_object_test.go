package mips32

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/emulator"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/runtime"
)

var loadClassKinds = []ir.LoadClassKind{
	ir.LoadClassReferrersClass,
	ir.LoadClassBootImageLinkTimePcRelative,
	ir.LoadClassBssEntry,
	ir.LoadClassJitTableAddress,
	ir.LoadClassRuntimeCall,
}

// loadClass compiles a method returning the class cls loaded with kind.
func (env *testEnv) loadClass(cls *emulator.Class, kind ir.LoadClassKind, clinit bool) (*emulator.Method, *backend.Result) {
	b := newMethod(env.t, "loadClass", ir.TypeReference)
	b.SetDexPC(1)
	ref := ir.TypeRef{TypeIndex: cls.TypeIndex, Descriptor: cls.Descriptor}
	b.ret(b.insert(b.new().AsLoadClass(ref, kind, clinit)))
	g := b.finish()
	var declaringClass *emulator.Class
	if kind == ir.LoadClassReferrersClass {
		declaringClass = cls
	}
	m := env.define(g, declaringClass)
	return m, env.compileInto(m, g)
}

func TestInstructionVisitor_VisitLoadClass(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		for i, kind := range loadClassKinds {
			cls := env.defineClass(emulator.ClassSpec{TypeIndex: uint32(100 + i), Descriptor: "LLoaded;"})
			m, res := env.loadClass(cls, kind, false)
			for n := 0; n < 2; n++ {
				require.Equal(t, uint64(cls.Address), env.call(m), kind.String())
			}

			switch kind {
			case ir.LoadClassBootImageLinkTimePcRelative:
				require.NotEmpty(t, res.LinkerPatches)
				require.Equal(t, backend.PatchTypeRelative, res.LinkerPatches[0].Kind)
				require.Equal(t, cls.TypeIndex, res.LinkerPatches[0].Target)
			case ir.LoadClassBssEntry:
				// Resolved once, then read from the .bss entry.
				require.Equal(t, 1, env.e.Stats.Calls[runtime.QuickInitializeType])
				v, ok := env.e.BssEntry(runtime.Symbol{Kind: backend.PatchTypeBss, Target: cls.TypeIndex})
				require.True(t, ok)
				require.Equal(t, cls.Address, v)
			case ir.LoadClassJitTableAddress:
				require.Equal(t, []backend.JitRoot{{Kind: backend.RootClass, Index: cls.TypeIndex, Name: "LLoaded;"}}, res.JitRoots)
				require.Len(t, res.JitPatches, 1)
			case ir.LoadClassRuntimeCall:
				require.Equal(t, 3, env.e.Stats.Calls[runtime.QuickInitializeType])
			}
		}
	})
}

func TestInstructionVisitor_VisitLoadClass_clinit(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		for i, kind := range loadClassKinds {
			cls := env.defineClass(emulator.ClassSpec{
				TypeIndex: uint32(120 + i), Descriptor: "LStatic;", Status: runtime.ClassStatusVerified,
			})
			m, _ := env.loadClass(cls, kind, true)
			before := env.e.Stats.Calls[runtime.QuickInitializeStaticStorage]

			require.Equal(t, uint64(cls.Address), env.call(m), kind.String())
			require.Equal(t, runtime.ClassStatusInitialized, env.e.ClassStatus(cls), kind.String())
			require.Equal(t, before+1, env.e.Stats.Calls[runtime.QuickInitializeStaticStorage], kind.String())

			// Initialized classes only take the slow path when called through the runtime.
			require.Equal(t, uint64(cls.Address), env.call(m), kind.String())
			exp := before + 1
			if kind == ir.LoadClassRuntimeCall {
				exp++
			}
			require.Equal(t, exp, env.e.Stats.Calls[runtime.QuickInitializeStaticStorage], kind.String())
		}
	})
}

func TestInstructionVisitor_VisitClinitCheck(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		cls := env.defineClass(emulator.ClassSpec{
			TypeIndex: 130, Descriptor: "LLazy;", Status: runtime.ClassStatusVerified, VTableLength: 1,
		})
		b := newMethod(t, "clinit", ir.TypeInt32)
		b.SetDexPC(6)
		load := b.insert(b.new().AsLoadClass(ir.TypeRef{TypeIndex: 130, Descriptor: "LLazy;"},
			ir.LoadClassBootImageLinkTimePcRelative, false))
		checked := b.insert(b.new().AsClinitCheck(load))
		b.ret(b.insert(b.new().AsStaticFieldGet(checked,
			ir.FieldInfo{Offset: runtime.ClassVTableOffset, Type: ir.TypeInt32})))
		m := env.install(b.finish())

		env.write32(cls.Address+runtime.ClassVTableOffset, 42)
		require.Equal(t, i32(42), env.call(m))
		require.Equal(t, runtime.ClassStatusInitialized, env.e.ClassStatus(cls))
		require.Equal(t, i32(42), env.call(m))
		require.Equal(t, 1, env.e.Stats.Calls[runtime.QuickInitializeStaticStorage])
	})
}

func TestInstructionVisitor_VisitLoadString(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		for i, kind := range []ir.LoadStringKind{
			ir.LoadStringBootImageLinkTimePcRelative,
			ir.LoadStringBssEntry,
			ir.LoadStringJitTableAddress,
			ir.LoadStringRuntimeCall,
		} {
			index, value := uint32(200+i), "string "+kind.String()
			addr, err := env.e.DefineString(index, value)
			require.NoError(t, err)

			b := newMethod(t, "loadString", ir.TypeReference)
			b.SetDexPC(2)
			b.ret(b.insert(b.new().AsLoadString(ir.StringReference{StringIndex: index, Value: value}, kind)))
			g := b.finish()
			m := env.define(g, nil)
			res := env.compileInto(m, g)

			for n := 0; n < 2; n++ {
				ret := env.call(m)
				require.Equal(t, uint64(addr), ret, kind.String())
				actual, err := env.e.StringValue(uint32(ret))
				require.NoError(t, err)
				require.Equal(t, value, actual)
			}

			switch kind {
			case ir.LoadStringBootImageLinkTimePcRelative:
				require.NotEmpty(t, res.LinkerPatches)
				require.Equal(t, backend.PatchStringRelative, res.LinkerPatches[0].Kind)
			case ir.LoadStringBssEntry:
				require.Equal(t, 1, env.e.Stats.Calls[runtime.QuickResolveString])
				v, ok := env.e.BssEntry(runtime.Symbol{Kind: backend.PatchStringBss, Target: index})
				require.True(t, ok)
				require.Equal(t, addr, v)
			case ir.LoadStringJitTableAddress:
				require.Equal(t, []backend.JitRoot{{Kind: backend.RootString, Index: index, Name: value}}, res.JitRoots)
			case ir.LoadStringRuntimeCall:
				require.Equal(t, 3, env.e.Stats.Calls[runtime.QuickResolveString])
			}
		}
	})
}

func TestInstructionVisitor_allocation(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		point := env.defineClass(emulator.ClassSpec{TypeIndex: 140, Descriptor: "LPoint;", ObjectSize: 16})
		ints := env.intArrayClass()

		b := newMethod(t, "newPoint", ir.TypeReference)
		cls := b.insert(b.new().AsLoadClass(ir.TypeRef{TypeIndex: 140, Descriptor: "LPoint;"},
			ir.LoadClassBssEntry, false))
		b.ret(b.insert(b.new().AsNewInstance(cls)))
		newPoint := env.install(b.finish())

		b = newMethod(t, "newInts", ir.TypeReference, ir.TypeInt32)
		b.SetDexPC(3)
		cls = b.insert(b.new().AsLoadClass(ir.TypeRef{TypeIndex: ints.TypeIndex, Descriptor: ints.Descriptor},
			ir.LoadClassBootImageLinkTimePcRelative, false))
		b.ret(b.insert(b.new().AsNewArray(cls, b.Parameter(0))))
		newInts := env.install(b.finish())

		p1, p2 := uint32(env.call(newPoint)), uint32(env.call(newPoint))
		require.NotEqual(t, p1, p2)
		for _, p := range []uint32{p1, p2} {
			c, err := env.e.ClassOf(p)
			require.NoError(t, err)
			require.Equal(t, point, c)
		}
		require.Equal(t, 2, env.e.Stats.Calls[runtime.QuickAllocObject])

		for _, n := range []int32{0, 1, 100} {
			arr := uint32(env.call(newInts, i32(n)))
			c, err := env.e.ClassOf(arr)
			require.NoError(t, err)
			require.Equal(t, ints, c)
			require.Equal(t, uint32(n), env.read32(arr+runtime.ArrayLengthOffset))
		}
		thrown := env.throws(emulator.NegativeArraySizeException, newInts, i32(-1))
		require.Equal(t, uint32(3), thrown.DexPC)
	})
}

// typeHierarchy is
//
//	Object
//	├── A implements I
//	│   └── B
//	├── C
//	└── Final
type typeHierarchy struct {
	object, iface, a, b, c, final *emulator.Class
	objects, as, ints             *emulator.Class
	objectOf                      map[*emulator.Class]uint32
}

func (env *testEnv) typeHierarchy() *typeHierarchy {
	h := &typeHierarchy{objectOf: map[*emulator.Class]uint32{}}
	h.object = env.defineClass(emulator.ClassSpec{TypeIndex: 300, Descriptor: "Ljava/lang/Object;"})
	h.iface = env.defineClass(emulator.ClassSpec{TypeIndex: 301, Descriptor: "LI;", Interface: true})
	h.a = env.defineClass(emulator.ClassSpec{
		TypeIndex: 302, Descriptor: "LA;", Super: h.object, Interfaces: []*emulator.Class{h.iface},
	})
	h.b = env.defineClass(emulator.ClassSpec{TypeIndex: 303, Descriptor: "LB;", Super: h.a})
	h.c = env.defineClass(emulator.ClassSpec{TypeIndex: 304, Descriptor: "LC;", Super: h.object})
	h.final = env.defineClass(emulator.ClassSpec{TypeIndex: 305, Descriptor: "LFinal;", Super: h.object})
	h.objects = env.defineClass(emulator.ClassSpec{TypeIndex: 306, Descriptor: "[Ljava/lang/Object;", Component: h.object})
	h.as = env.defineClass(emulator.ClassSpec{TypeIndex: 307, Descriptor: "[LA;", Component: h.a})
	h.ints = env.intArrayClass()
	for _, c := range []*emulator.Class{h.object, h.a, h.b, h.c, h.final} {
		h.objectOf[c] = env.newObject(c)
	}
	for _, c := range []*emulator.Class{h.objects, h.as, h.ints} {
		h.objectOf[c] = env.newArray(c, 1)
	}
	return h
}

type typeCheckCase struct {
	kind      ir.TypeCheckKind
	target    *emulator.Class
	instances []*emulator.Class
	others    []*emulator.Class
}

// typeCheckCases returns, per kind, the target class and the classes of the
// objects which are instances of it.
func (h *typeHierarchy) typeCheckCases() []typeCheckCase {
	return []typeCheckCase{
		{
			kind:      ir.TypeCheckExact,
			target:    h.final,
			instances: []*emulator.Class{h.final},
			others:    []*emulator.Class{h.object, h.a, h.c, h.ints},
		},
		{
			kind:      ir.TypeCheckClassHierarchy,
			target:    h.a,
			instances: []*emulator.Class{h.a, h.b},
			others:    []*emulator.Class{h.object, h.c, h.as},
		},
		{
			kind:      ir.TypeCheckArrayObject,
			target:    h.objects,
			instances: []*emulator.Class{h.objects, h.as},
			others:    []*emulator.Class{h.ints, h.a, h.object},
		},
		{
			kind:      ir.TypeCheckInterface,
			target:    h.iface,
			instances: []*emulator.Class{h.a, h.b},
			others:    []*emulator.Class{h.c, h.object, h.as},
		},
	}
}

func TestInstructionVisitor_VisitInstanceOf(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		h := env.typeHierarchy()
		for _, tc := range h.typeCheckCases() {
			b := newMethod(t, "instanceOf", ir.TypeBool, ir.TypeReference, ir.TypeReference)
			b.ret(b.insert(b.new().AsInstanceOf(b.Parameter(0), b.Parameter(1), tc.kind)))
			m := env.install(b.finish())

			target := uint64(tc.target.Address)
			for _, c := range tc.instances {
				require.Equal(t, uint64(1), env.call(m, uint64(h.objectOf[c]), target), "%s instanceof %s", c, tc.target)
			}
			for _, c := range tc.others {
				require.Zero(t, env.call(m, uint64(h.objectOf[c]), target), "%s instanceof %s", c, tc.target)
			}
			require.Zero(t, env.call(m, 0, target), "null instanceof %s", tc.target)
		}
		// Only the interface check calls the runtime, and not for null.
		require.Equal(t, 5, env.e.Stats.Calls[runtime.QuickInstanceOf])
	})
}

func TestInstructionVisitor_VisitCheckCast(t *testing.T) {
	forEachConfig(t, func(t *testing.T, env *testEnv) {
		h := env.typeHierarchy()
		for _, tc := range h.typeCheckCases() {
			// checkCast returns its argument once cast.
			b := newMethod(t, "checkCast", ir.TypeReference, ir.TypeReference, ir.TypeReference)
			b.SetDexPC(9)
			b.insert(b.new().AsCheckCast(b.Parameter(0), b.Parameter(1), tc.kind))
			b.ret(b.Parameter(0))
			m := env.install(b.finish())

			target := uint64(tc.target.Address)
			for _, c := range tc.instances {
				obj := uint64(h.objectOf[c])
				require.Equal(t, obj, env.call(m, obj, target), "(%s) %s", tc.target, c)
			}
			require.Zero(t, env.call(m, 0, target))
			for _, c := range tc.others {
				thrown := env.throws(emulator.ClassCastException, m, uint64(h.objectOf[c]), target)
				require.Equal(t, uint32(9), thrown.DexPC)
				require.Equal(t, backend.StackMapSlowPath, thrown.StackMap.Kind)
			}
		}
	})
}
