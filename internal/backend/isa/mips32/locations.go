package mips32

import (
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
)

// Values for the overlaps argument of LocationSummary.SetOut.
const (
	noOutputOverlap = false
	outputOverlap   = true
)

func (b *locationsBuilder) newSummary(instr *ir.Instruction, kind backend.CallKind) *backend.LocationSummary {
	return b.cg.NewLocationSummary(instr, kind)
}

// requiresRegisterFor returns a core or FPU register requirement for typ.
func requiresRegisterFor(typ ir.DataType) backend.Location {
	if typ.IsFloatingPoint() {
		return backend.RequiresFpuRegister()
	}
	return backend.RequiresRegister()
}

// registerOrConstantFor is requiresRegisterFor, letting core constants be used as is.
func registerOrConstantFor(v *ir.Instruction) backend.Location {
	if v.Type().IsFloatingPoint() {
		return backend.RequiresFpuRegister()
	}
	return backend.RegisterOrConstant(v)
}

// saveEverythingCallerSaves is the custom slow path calling convention of
// calls to save-everything entrypoints: only the argument and the result
// registers are clobbered.
var saveEverythingCallerSaves = backend.NewRegisterSet([]int{a0, v0}, nil)

func (b *locationsBuilder) constant(instr *ir.Instruction) {
	b.newSummary(instr, backend.CallKindNoCall).SetOut(backend.ConstantLocation(instr), noOutputOverlap)
}

// VisitIntConstant implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitIntConstant(instr *ir.Instruction) { b.constant(instr) }

// VisitLongConstant implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitLongConstant(instr *ir.Instruction) { b.constant(instr) }

// VisitFloatConstant implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitFloatConstant(instr *ir.Instruction) { b.constant(instr) }

// VisitDoubleConstant implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitDoubleConstant(instr *ir.Instruction) { b.constant(instr) }

// VisitNullConstant implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitNullConstant(instr *ir.Instruction) { b.constant(instr) }

// VisitParameterValue implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitParameterValue(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	loc := parameterLocations(b.cg.Graph().ParameterTypes())[instr.ParameterIndex()]
	if loc.IsStackKind() {
		// Stays in the caller's outgoing area.
		loc = backend.Any()
	}
	s.SetOut(loc, noOutputOverlap)
}

// VisitCurrentMethod implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitCurrentMethod(instr *ir.Instruction) {
	b.newSummary(instr, backend.CallKindNoCall).SetOut(backend.RegisterLocation(a0), noOutputOverlap)
}

// VisitPhi implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitPhi(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	for i := range instr.Inputs() {
		s.SetInAt(i, backend.Any())
	}
	s.SetOut(backend.Any(), noOutputOverlap)
}

// binaryOp is the summary of Add, Sub, And, Or and Xor.
func (b *locationsBuilder) binaryOp(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	_, y := instr.BinaryData()
	typ := instr.Type()
	s.SetInAt(0, requiresRegisterFor(typ))
	s.SetInAt(1, registerOrConstantFor(y))
	// The carry of 64-bit operations is computed from the low half of the result.
	s.SetOut(requiresRegisterFor(typ), typ == ir.TypeInt64)
}

// VisitAdd implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitAdd(instr *ir.Instruction) { b.binaryOp(instr) }

// VisitSub implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitSub(instr *ir.Instruction) { b.binaryOp(instr) }

// VisitAnd implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitAnd(instr *ir.Instruction) { b.binaryOp(instr) }

// VisitOr implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitOr(instr *ir.Instruction) { b.binaryOp(instr) }

// VisitXor implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitXor(instr *ir.Instruction) { b.binaryOp(instr) }

// VisitMul implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitMul(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	_, y := instr.BinaryData()
	typ := instr.Type()
	s.SetInAt(0, requiresRegisterFor(typ))
	if typ == ir.TypeInt32 {
		s.SetInAt(1, backend.RegisterOrConstant(y))
	} else {
		s.SetInAt(1, requiresRegisterFor(typ))
	}
	s.SetOut(requiresRegisterFor(typ), typ == ir.TypeInt64)
}

// runtimeCall declares the inputs of instr as the arguments of a runtime
// call returning a value of instr's type.
func (b *locationsBuilder) runtimeCall(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindOnMainOnly)
	var args runtimeArgs
	for i, in := range instr.Inputs() {
		s.SetInAt(i, args.next(in.Type().Kind()))
	}
	s.SetOut(returnLocation(instr.Type()), noOutputOverlap)
}

func (b *locationsBuilder) divRem(instr *ir.Instruction) {
	switch typ := instr.Type(); {
	case typ == ir.TypeInt64:
		b.runtimeCall(instr)
	case typ.IsFloatingPoint() && instr.Opcode() == ir.OpRem:
		b.runtimeCall(instr)
	case typ.IsFloatingPoint():
		s := b.newSummary(instr, backend.CallKindNoCall)
		s.SetInAt(0, backend.RequiresFpuRegister())
		s.SetInAt(1, backend.RequiresFpuRegister())
		s.SetOut(backend.RequiresFpuRegister(), noOutputOverlap)
	default:
		s := b.newSummary(instr, backend.CallKindNoCall)
		_, y := instr.BinaryData()
		s.SetInAt(0, backend.RequiresRegister())
		s.SetInAt(1, backend.RegisterOrConstant(divisor(y)))
		s.SetOut(backend.RequiresRegister(), outputOverlap)
	}
}

// VisitDiv implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitDiv(instr *ir.Instruction) { b.divRem(instr) }

// VisitRem implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitRem(instr *ir.Instruction) { b.divRem(instr) }

func (b *locationsBuilder) unaryOp(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	typ := instr.Type()
	s.SetInAt(0, requiresRegisterFor(typ))
	s.SetOut(requiresRegisterFor(typ), typ == ir.TypeInt64)
}

// VisitNeg implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitNeg(instr *ir.Instruction) { b.unaryOp(instr) }

// VisitNot implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitNot(instr *ir.Instruction) { b.unaryOp(instr) }

// VisitBooleanNot implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitBooleanNot(instr *ir.Instruction) { b.unaryOp(instr) }

func (b *locationsBuilder) shift(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	_, y := instr.BinaryData()
	s.SetInAt(0, backend.RequiresRegister())
	s.SetInAt(1, backend.RegisterOrConstant(y))
	s.SetOut(backend.RequiresRegister(), instr.Type() == ir.TypeInt64)
}

// VisitShl implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitShl(instr *ir.Instruction) { b.shift(instr) }

// VisitShr implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitShr(instr *ir.Instruction) { b.shift(instr) }

// VisitUShr implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitUShr(instr *ir.Instruction) { b.shift(instr) }

// VisitRor implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitRor(instr *ir.Instruction) { b.shift(instr) }

// VisitTypeConversion implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitTypeConversion(instr *ir.Instruction) {
	from, to := instr.TypeConversionData()
	from = from.Kind()
	if _, ok := conversionEntrypoint(from, to); ok {
		b.runtimeCall(instr)
		return
	}
	s := b.newSummary(instr, backend.CallKindNoCall)
	s.SetInAt(0, requiresRegisterFor(from))
	s.SetOut(requiresRegisterFor(to), to == ir.TypeInt64)
}

// VisitCompare implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitCompare(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	x, y := instr.BinaryData()
	typ := x.Type().Kind()
	s.SetInAt(0, requiresRegisterFor(typ))
	if typ == ir.TypeInt32 || typ == ir.TypeReference {
		s.SetInAt(1, backend.RegisterOrConstant(y))
	} else {
		s.SetInAt(1, requiresRegisterFor(typ))
	}
	s.SetOut(backend.RequiresRegister(), outputOverlap)
}

func (b *locationsBuilder) condition(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	x, y := instr.BinaryData()
	typ := x.Type().Kind()
	s.SetInAt(0, requiresRegisterFor(typ))
	if typ == ir.TypeInt32 || typ == ir.TypeReference {
		s.SetInAt(1, backend.RegisterOrConstant(y))
	} else {
		s.SetInAt(1, requiresRegisterFor(typ))
	}
	if instr.IsEmittedAtUseSite() {
		s.SetOut(backend.NoLocation(), noOutputOverlap)
		return
	}
	s.SetOut(backend.RequiresRegister(), outputOverlap)
}

// VisitEqual implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitEqual(instr *ir.Instruction) { b.condition(instr) }

// VisitNotEqual implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitNotEqual(instr *ir.Instruction) { b.condition(instr) }

// VisitLessThan implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitLessThan(instr *ir.Instruction) { b.condition(instr) }

// VisitLessThanOrEqual implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitLessThanOrEqual(instr *ir.Instruction) { b.condition(instr) }

// VisitGreaterThan implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitGreaterThan(instr *ir.Instruction) { b.condition(instr) }

// VisitGreaterThanOrEqual implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitGreaterThanOrEqual(instr *ir.Instruction) { b.condition(instr) }

// VisitBelow implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitBelow(instr *ir.Instruction) { b.condition(instr) }

// VisitBelowOrEqual implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitBelowOrEqual(instr *ir.Instruction) { b.condition(instr) }

// VisitAbove implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitAbove(instr *ir.Instruction) { b.condition(instr) }

// VisitAboveOrEqual implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitAboveOrEqual(instr *ir.Instruction) { b.condition(instr) }

// conditionInput returns the location of a condition input: none when the
// condition is folded into its user.
func conditionInput(cond *ir.Instruction) backend.Location {
	if cond.IsEmittedAtUseSite() {
		return backend.NoLocation()
	}
	return backend.RequiresRegister()
}

// VisitSelect implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitSelect(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	_, _, cond := instr.SelectData()
	typ := instr.Type()
	s.SetInAt(0, requiresRegisterFor(typ))
	s.SetInAt(1, requiresRegisterFor(typ))
	s.SetInAt(2, conditionInput(cond))
	s.SetOut(backend.SameAsFirstInput(), noOutputOverlap)
}

// VisitGoto implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitGoto(instr *ir.Instruction) {
	b.newSummary(instr, backend.CallKindNoCall)
}

// VisitIf implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitIf(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	s.SetInAt(0, conditionInput(instr.InputAt(0)))
}

// VisitReturn implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitReturn(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	s.SetInAt(0, returnLocation(instr.InputAt(0).Type().Kind()))
}

// VisitReturnVoid implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitReturnVoid(instr *ir.Instruction) {
	b.newSummary(instr, backend.CallKindNoCall)
}

// VisitExit implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitExit(instr *ir.Instruction) {
	b.newSummary(instr, backend.CallKindNoCall)
}

// VisitThrow implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitThrow(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindOnMainOnly)
	s.SetInAt(0, backend.RegisterLocation(a0))
}

// VisitPackedSwitch implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitPackedSwitch(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	s.SetInAt(0, backend.RequiresRegister())
}

// VisitSuspendCheck implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitSuspendCheck(instr *ir.Instruction) {
	b.newSummary(instr, backend.CallKindOnSlowPath)
}

// VisitDeoptimize implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitDeoptimize(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindOnSlowPath)
	// The slow path never returns, nothing needs saving.
	s.SetCustomSlowPathCallerSaves(backend.RegisterSet{})
	s.SetInAt(0, conditionInput(instr.InputAt(0)))
}

// VisitNullCheck implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitNullCheck(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	s.SetInAt(0, backend.RequiresRegister())
	s.SetOut(backend.SameAsFirstInput(), noOutputOverlap)
}

// VisitBoundsCheck implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitBoundsCheck(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	s.SetInAt(0, backend.RequiresRegister())
	s.SetInAt(1, backend.RequiresRegister())
	s.SetOut(backend.SameAsFirstInput(), noOutputOverlap)
}

// VisitDivZeroCheck implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitDivZeroCheck(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	v := instr.InputAt(0)
	s.SetInAt(0, backend.RegisterOrConstant(v))
	if v.IsConstant() {
		s.SetOut(backend.ConstantLocation(v), noOutputOverlap)
		return
	}
	s.SetOut(backend.SameAsFirstInput(), noOutputOverlap)
}

// VisitClinitCheck implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitClinitCheck(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindOnSlowPath)
	s.SetCustomSlowPathCallerSaves(saveEverythingCallerSaves)
	s.SetInAt(0, backend.RequiresRegister())
	s.SetOut(backend.SameAsFirstInput(), noOutputOverlap)
}

// referenceLoadCallKind returns the call kind of an instruction loading a
// value of typ from the heap.
func (b *locationsBuilder) referenceLoadCallKind(typ ir.DataType) backend.CallKind {
	if typ == ir.TypeReference {
		return b.readBarrierCallKind()
	}
	return backend.CallKindNoCall
}

func (b *locationsBuilder) fieldGet(instr *ir.Instruction) {
	typ := instr.Type()
	s := b.newSummary(instr, b.referenceLoadCallKind(typ))
	s.SetInAt(0, backend.RequiresRegister())
	s.SetOut(requiresRegisterFor(typ), outputOverlap)
}

func (b *locationsBuilder) fieldSet(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	s.SetInAt(0, backend.RequiresRegister())
	s.SetInAt(1, registerOrConstantFor(instr.InputAt(1)))
}

// VisitInstanceFieldGet implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitInstanceFieldGet(instr *ir.Instruction) { b.fieldGet(instr) }

// VisitInstanceFieldSet implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitInstanceFieldSet(instr *ir.Instruction) { b.fieldSet(instr) }

// VisitStaticFieldGet implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitStaticFieldGet(instr *ir.Instruction) { b.fieldGet(instr) }

// VisitStaticFieldSet implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitStaticFieldSet(instr *ir.Instruction) { b.fieldSet(instr) }

// VisitArrayGet implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitArrayGet(instr *ir.Instruction) {
	typ := instr.Type()
	s := b.newSummary(instr, b.referenceLoadCallKind(typ))
	s.SetInAt(0, backend.RequiresRegister())
	s.SetInAt(1, backend.RegisterOrConstant(instr.InputAt(1)))
	s.SetOut(requiresRegisterFor(typ), outputOverlap)
}

// VisitArraySet implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitArraySet(instr *ir.Instruction) {
	kind := backend.CallKindNoCall
	if instr.NeedsTypeCheck() {
		kind = backend.CallKindOnSlowPath
	}
	s := b.newSummary(instr, kind)
	s.SetInAt(0, backend.RequiresRegister())
	s.SetInAt(1, backend.RegisterOrConstant(instr.InputAt(1)))
	s.SetInAt(2, registerOrConstantFor(instr.InputAt(2)))
}

// VisitArrayLength implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitArrayLength(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindNoCall)
	s.SetInAt(0, backend.RequiresRegister())
	s.SetOut(backend.RequiresRegister(), noOutputOverlap)
}

// VisitNewInstance implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitNewInstance(instr *ir.Instruction) { b.runtimeCall(instr) }

// VisitNewArray implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitNewArray(instr *ir.Instruction) { b.runtimeCall(instr) }

// gcRootLoad declares the summary of a LoadClass or LoadString reading a GC
// root, with a .bss entry slow path if bss is set.
func (b *locationsBuilder) gcRootLoad(instr *ir.Instruction, readBarrier, bss, clinit bool) {
	kind := backend.CallKindNoCall
	if (readBarrier && b.readBarrier() == backend.ReadBarrierBakerSlowPath) || bss || clinit {
		kind = backend.CallKindOnSlowPath
	}
	s := b.newSummary(instr, kind)
	if bss {
		// Holds the address of the entry for the slow path to store to.
		s.AddTemp(backend.RequiresRegister())
	}
	if kind == backend.CallKindOnSlowPath && !readBarrier {
		s.SetCustomSlowPathCallerSaves(saveEverythingCallerSaves)
	}
	s.SetOut(backend.RequiresRegister(), outputOverlap)
}

// VisitLoadClass implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitLoadClass(instr *ir.Instruction) {
	_, kind := instr.LoadClassData()
	clinit := instr.MustGenerateClinitCheck()
	switch kind {
	case ir.LoadClassRuntimeCall:
		s := b.newSummary(instr, backend.CallKindOnMainOnly)
		s.SetOut(returnLocation(ir.TypeReference), noOutputOverlap)
	case ir.LoadClassBootImageLinkTimePcRelative:
		b.gcRootLoad(instr, false, false, clinit)
	case ir.LoadClassBssEntry:
		b.gcRootLoad(instr, b.emitsReadBarrier(), true, clinit)
	default:
		b.gcRootLoad(instr, b.emitsReadBarrier(), false, clinit)
	}
}

// VisitLoadString implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitLoadString(instr *ir.Instruction) {
	_, kind := instr.LoadStringData()
	switch kind {
	case ir.LoadStringRuntimeCall:
		s := b.newSummary(instr, backend.CallKindOnMainOnly)
		s.SetOut(returnLocation(ir.TypeReference), noOutputOverlap)
	case ir.LoadStringBootImageLinkTimePcRelative:
		b.gcRootLoad(instr, false, false, false)
	case ir.LoadStringBssEntry:
		b.gcRootLoad(instr, b.emitsReadBarrier(), true, false)
	default:
		b.gcRootLoad(instr, b.emitsReadBarrier(), false, false)
	}
}

func (b *locationsBuilder) typeCheck(instr *ir.Instruction) *backend.LocationSummary {
	kind := backend.CallKindNoCall
	if instr.TypeCheckKind() == ir.TypeCheckInterface {
		kind = backend.CallKindOnSlowPath
	}
	s := b.newSummary(instr, kind)
	s.SetInAt(0, backend.RequiresRegister())
	s.SetInAt(1, backend.RequiresRegister())
	return s
}

// VisitInstanceOf implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitInstanceOf(instr *ir.Instruction) {
	b.typeCheck(instr).SetOut(backend.RequiresRegister(), outputOverlap)
}

// VisitCheckCast implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitCheckCast(instr *ir.Instruction) { b.typeCheck(instr) }

// VisitMonitorOperation implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitMonitorOperation(instr *ir.Instruction) { b.runtimeCall(instr) }

// VisitMemoryBarrier implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitMemoryBarrier(instr *ir.Instruction) {
	b.newSummary(instr, backend.CallKindNoCall)
}

func (b *locationsBuilder) invoke(instr *ir.Instruction) {
	s := b.newSummary(instr, backend.CallKindOnMainOnly)
	var args managedArgs
	for i, in := range instr.Inputs() {
		s.SetInAt(i, args.next(in.Type().Kind()))
	}
	s.SetOut(returnLocation(instr.Type().Kind()), noOutputOverlap)
}

// VisitInvokeStaticOrDirect implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitInvokeStaticOrDirect(instr *ir.Instruction) { b.invoke(instr) }

// VisitInvokeVirtual implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitInvokeVirtual(instr *ir.Instruction) { b.invoke(instr) }

// VisitInvokeInterface implements backend.LocationsBuilder.
func (b *locationsBuilder) VisitInvokeInterface(instr *ir.Instruction) { b.invoke(instr) }
