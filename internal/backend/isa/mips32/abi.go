package mips32

import (
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
)

// The managed calling convention passes the callee's ArtMethod* in a0, core
// arguments in a1-a3 and floating point arguments in f8-f18. Every argument
// also reserves its words in the outgoing area, after the word at 0(sp)
// where the callee stores its ArtMethod*, and arguments not fitting in
// registers are passed there.
var (
	managedCoreArgs = []int{a1, a2, a3}
	managedFpuArgs  = []int{8, 10, 12, 14, 16, 18}
)

// The runtime calling convention is the O32 one, without the home area.
var (
	runtimeCoreArgs = []int{a0, a1, a2, a3}
	runtimeFpuArgs  = []int{12, 14}
)

// managedArgs assigns the locations of the arguments of a managed call in order.
type managedArgs struct {
	gpIndex, fpIndex, stackIndex int
}

func (v *managedArgs) next(typ ir.DataType) (loc backend.Location) {
	words := 1
	if typ.Is64Bit() {
		words = 2
	}
	stack := 4 + 4*v.stackIndex
	v.stackIndex += words

	switch {
	case typ.IsFloatingPoint():
		if v.fpIndex < len(managedFpuArgs) {
			loc = backend.FpuRegisterLocation(managedFpuArgs[v.fpIndex])
			v.fpIndex++
			return
		}
	case typ.Is64Bit():
		// A long goes in (a2, a3). a1 is skipped and not backfilled.
		if v.gpIndex == 0 {
			v.gpIndex++
		}
		if v.gpIndex == 1 {
			v.gpIndex = len(managedCoreArgs)
			return backend.RegisterPairLocation(a2, a3)
		}
		v.gpIndex = len(managedCoreArgs)
	default:
		if v.gpIndex < len(managedCoreArgs) {
			loc = backend.RegisterLocation(managedCoreArgs[v.gpIndex])
			v.gpIndex++
			return
		}
	}
	if words == 2 {
		return backend.DoubleStackSlot(stack)
	}
	return backend.StackSlot(stack)
}

// parameterLocations returns the locations of the parameters of the compiled
// method on entry, relative to the caller's SP for stack parameters.
func parameterLocations(types []ir.DataType) []backend.Location {
	var v managedArgs
	ret := make([]backend.Location, len(types))
	for i, typ := range types {
		ret[i] = v.next(typ)
	}
	return ret
}

// returnLocation returns where a value of typ is returned, by managed and runtime calls alike.
func returnLocation(typ ir.DataType) backend.Location {
	switch {
	case typ == ir.TypeVoid:
		return backend.NoLocation()
	case typ.IsFloatingPoint():
		return backend.FpuRegisterLocation(0)
	case typ.Is64Bit():
		return backend.RegisterPairLocation(v0, v1)
	}
	return backend.RegisterLocation(v0)
}

// runtimeArgs assigns the locations of the arguments of a runtime call in order.
type runtimeArgs struct {
	gpIndex, fpIndex int
}

func (v *runtimeArgs) next(typ ir.DataType) backend.Location {
	switch {
	case typ.IsFloatingPoint():
		if v.fpIndex >= len(runtimeFpuArgs) {
			panic("BUG: too many floating point runtime arguments")
		}
		v.fpIndex++
		return backend.FpuRegisterLocation(runtimeFpuArgs[v.fpIndex-1])
	case typ.Is64Bit():
		v.gpIndex = (v.gpIndex + 1) &^ 1
		if v.gpIndex+1 >= len(runtimeCoreArgs) {
			panic("BUG: too many runtime arguments")
		}
		v.gpIndex += 2
		return backend.RegisterPairLocation(runtimeCoreArgs[v.gpIndex-2], runtimeCoreArgs[v.gpIndex-1])
	}
	if v.gpIndex >= len(runtimeCoreArgs) {
		panic("BUG: too many runtime arguments")
	}
	v.gpIndex++
	return backend.RegisterLocation(runtimeCoreArgs[v.gpIndex-1])
}

func (m *machine) parameterStackOffset(param *ir.Instruction) (int, bool) {
	loc := parameterLocations(m.cg.Graph().ParameterTypes())[param.ParameterIndex()]
	if loc.IsStackKind() {
		return loc.StackIndex(), true
	}
	return 0, false
}
