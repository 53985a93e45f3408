package backend

import (
	"fmt"

	"github.com/tetratelabs/irgen/internal/ir"
)

// LocationsBuilder declares the LocationSummary of every instruction. An
// architecture implements one method per opcode.
type LocationsBuilder interface {
	VisitIntConstant(instr *ir.Instruction)
	VisitLongConstant(instr *ir.Instruction)
	VisitFloatConstant(instr *ir.Instruction)
	VisitDoubleConstant(instr *ir.Instruction)
	VisitNullConstant(instr *ir.Instruction)
	VisitParameterValue(instr *ir.Instruction)
	VisitCurrentMethod(instr *ir.Instruction)
	VisitPhi(instr *ir.Instruction)
	VisitAdd(instr *ir.Instruction)
	VisitSub(instr *ir.Instruction)
	VisitMul(instr *ir.Instruction)
	VisitDiv(instr *ir.Instruction)
	VisitRem(instr *ir.Instruction)
	VisitNeg(instr *ir.Instruction)
	VisitNot(instr *ir.Instruction)
	VisitBooleanNot(instr *ir.Instruction)
	VisitAnd(instr *ir.Instruction)
	VisitOr(instr *ir.Instruction)
	VisitXor(instr *ir.Instruction)
	VisitShl(instr *ir.Instruction)
	VisitShr(instr *ir.Instruction)
	VisitUShr(instr *ir.Instruction)
	VisitRor(instr *ir.Instruction)
	VisitTypeConversion(instr *ir.Instruction)
	VisitCompare(instr *ir.Instruction)
	VisitEqual(instr *ir.Instruction)
	VisitNotEqual(instr *ir.Instruction)
	VisitLessThan(instr *ir.Instruction)
	VisitLessThanOrEqual(instr *ir.Instruction)
	VisitGreaterThan(instr *ir.Instruction)
	VisitGreaterThanOrEqual(instr *ir.Instruction)
	VisitBelow(instr *ir.Instruction)
	VisitBelowOrEqual(instr *ir.Instruction)
	VisitAbove(instr *ir.Instruction)
	VisitAboveOrEqual(instr *ir.Instruction)
	VisitSelect(instr *ir.Instruction)
	VisitGoto(instr *ir.Instruction)
	VisitIf(instr *ir.Instruction)
	VisitReturn(instr *ir.Instruction)
	VisitReturnVoid(instr *ir.Instruction)
	VisitExit(instr *ir.Instruction)
	VisitThrow(instr *ir.Instruction)
	VisitPackedSwitch(instr *ir.Instruction)
	VisitSuspendCheck(instr *ir.Instruction)
	VisitDeoptimize(instr *ir.Instruction)
	VisitNullCheck(instr *ir.Instruction)
	VisitBoundsCheck(instr *ir.Instruction)
	VisitDivZeroCheck(instr *ir.Instruction)
	VisitClinitCheck(instr *ir.Instruction)
	VisitInstanceFieldGet(instr *ir.Instruction)
	VisitInstanceFieldSet(instr *ir.Instruction)
	VisitStaticFieldGet(instr *ir.Instruction)
	VisitStaticFieldSet(instr *ir.Instruction)
	VisitArrayGet(instr *ir.Instruction)
	VisitArraySet(instr *ir.Instruction)
	VisitArrayLength(instr *ir.Instruction)
	VisitNewInstance(instr *ir.Instruction)
	VisitNewArray(instr *ir.Instruction)
	VisitLoadClass(instr *ir.Instruction)
	VisitLoadString(instr *ir.Instruction)
	VisitInstanceOf(instr *ir.Instruction)
	VisitCheckCast(instr *ir.Instruction)
	VisitMonitorOperation(instr *ir.Instruction)
	VisitMemoryBarrier(instr *ir.Instruction)
	VisitInvokeStaticOrDirect(instr *ir.Instruction)
	VisitInvokeVirtual(instr *ir.Instruction)
	VisitInvokeInterface(instr *ir.Instruction)
	VisitParallelMove(instr *ir.Instruction)
}

// InstructionVisitor emits the code of every instruction. An architecture
// implements one method per opcode.
type InstructionVisitor interface {
	VisitIntConstant(instr *ir.Instruction)
	VisitLongConstant(instr *ir.Instruction)
	VisitFloatConstant(instr *ir.Instruction)
	VisitDoubleConstant(instr *ir.Instruction)
	VisitNullConstant(instr *ir.Instruction)
	VisitParameterValue(instr *ir.Instruction)
	VisitCurrentMethod(instr *ir.Instruction)
	VisitPhi(instr *ir.Instruction)
	VisitAdd(instr *ir.Instruction)
	VisitSub(instr *ir.Instruction)
	VisitMul(instr *ir.Instruction)
	VisitDiv(instr *ir.Instruction)
	VisitRem(instr *ir.Instruction)
	VisitNeg(instr *ir.Instruction)
	VisitNot(instr *ir.Instruction)
	VisitBooleanNot(instr *ir.Instruction)
	VisitAnd(instr *ir.Instruction)
	VisitOr(instr *ir.Instruction)
	VisitXor(instr *ir.Instruction)
	VisitShl(instr *ir.Instruction)
	VisitShr(instr *ir.Instruction)
	VisitUShr(instr *ir.Instruction)
	VisitRor(instr *ir.Instruction)
	VisitTypeConversion(instr *ir.Instruction)
	VisitCompare(instr *ir.Instruction)
	VisitEqual(instr *ir.Instruction)
	VisitNotEqual(instr *ir.Instruction)
	VisitLessThan(instr *ir.Instruction)
	VisitLessThanOrEqual(instr *ir.Instruction)
	VisitGreaterThan(instr *ir.Instruction)
	VisitGreaterThanOrEqual(instr *ir.Instruction)
	VisitBelow(instr *ir.Instruction)
	VisitBelowOrEqual(instr *ir.Instruction)
	VisitAbove(instr *ir.Instruction)
	VisitAboveOrEqual(instr *ir.Instruction)
	VisitSelect(instr *ir.Instruction)
	VisitGoto(instr *ir.Instruction)
	VisitIf(instr *ir.Instruction)
	VisitReturn(instr *ir.Instruction)
	VisitReturnVoid(instr *ir.Instruction)
	VisitExit(instr *ir.Instruction)
	VisitThrow(instr *ir.Instruction)
	VisitPackedSwitch(instr *ir.Instruction)
	VisitSuspendCheck(instr *ir.Instruction)
	VisitDeoptimize(instr *ir.Instruction)
	VisitNullCheck(instr *ir.Instruction)
	VisitBoundsCheck(instr *ir.Instruction)
	VisitDivZeroCheck(instr *ir.Instruction)
	VisitClinitCheck(instr *ir.Instruction)
	VisitInstanceFieldGet(instr *ir.Instruction)
	VisitInstanceFieldSet(instr *ir.Instruction)
	VisitStaticFieldGet(instr *ir.Instruction)
	VisitStaticFieldSet(instr *ir.Instruction)
	VisitArrayGet(instr *ir.Instruction)
	VisitArraySet(instr *ir.Instruction)
	VisitArrayLength(instr *ir.Instruction)
	VisitNewInstance(instr *ir.Instruction)
	VisitNewArray(instr *ir.Instruction)
	VisitLoadClass(instr *ir.Instruction)
	VisitLoadString(instr *ir.Instruction)
	VisitInstanceOf(instr *ir.Instruction)
	VisitCheckCast(instr *ir.Instruction)
	VisitMonitorOperation(instr *ir.Instruction)
	VisitMemoryBarrier(instr *ir.Instruction)
	VisitInvokeStaticOrDirect(instr *ir.Instruction)
	VisitInvokeVirtual(instr *ir.Instruction)
	VisitInvokeInterface(instr *ir.Instruction)
	VisitParallelMove(instr *ir.Instruction)
}

// DispatchLocations calls the method of LocationsBuilder matching the opcode of instr.
func DispatchLocations(b LocationsBuilder, instr *ir.Instruction) {
	switch instr.Opcode() {
	case ir.OpIntConstant:
		b.VisitIntConstant(instr)
	case ir.OpLongConstant:
		b.VisitLongConstant(instr)
	case ir.OpFloatConstant:
		b.VisitFloatConstant(instr)
	case ir.OpDoubleConstant:
		b.VisitDoubleConstant(instr)
	case ir.OpNullConstant:
		b.VisitNullConstant(instr)
	case ir.OpParameterValue:
		b.VisitParameterValue(instr)
	case ir.OpCurrentMethod:
		b.VisitCurrentMethod(instr)
	case ir.OpPhi:
		b.VisitPhi(instr)
	case ir.OpAdd:
		b.VisitAdd(instr)
	case ir.OpSub:
		b.VisitSub(instr)
	case ir.OpMul:
		b.VisitMul(instr)
	case ir.OpDiv:
		b.VisitDiv(instr)
	case ir.OpRem:
		b.VisitRem(instr)
	case ir.OpNeg:
		b.VisitNeg(instr)
	case ir.OpNot:
		b.VisitNot(instr)
	case ir.OpBooleanNot:
		b.VisitBooleanNot(instr)
	case ir.OpAnd:
		b.VisitAnd(instr)
	case ir.OpOr:
		b.VisitOr(instr)
	case ir.OpXor:
		b.VisitXor(instr)
	case ir.OpShl:
		b.VisitShl(instr)
	case ir.OpShr:
		b.VisitShr(instr)
	case ir.OpUShr:
		b.VisitUShr(instr)
	case ir.OpRor:
		b.VisitRor(instr)
	case ir.OpTypeConversion:
		b.VisitTypeConversion(instr)
	case ir.OpCompare:
		b.VisitCompare(instr)
	case ir.OpEqual:
		b.VisitEqual(instr)
	case ir.OpNotEqual:
		b.VisitNotEqual(instr)
	case ir.OpLessThan:
		b.VisitLessThan(instr)
	case ir.OpLessThanOrEqual:
		b.VisitLessThanOrEqual(instr)
	case ir.OpGreaterThan:
		b.VisitGreaterThan(instr)
	case ir.OpGreaterThanOrEqual:
		b.VisitGreaterThanOrEqual(instr)
	case ir.OpBelow:
		b.VisitBelow(instr)
	case ir.OpBelowOrEqual:
		b.VisitBelowOrEqual(instr)
	case ir.OpAbove:
		b.VisitAbove(instr)
	case ir.OpAboveOrEqual:
		b.VisitAboveOrEqual(instr)
	case ir.OpSelect:
		b.VisitSelect(instr)
	case ir.OpGoto:
		b.VisitGoto(instr)
	case ir.OpIf:
		b.VisitIf(instr)
	case ir.OpReturn:
		b.VisitReturn(instr)
	case ir.OpReturnVoid:
		b.VisitReturnVoid(instr)
	case ir.OpExit:
		b.VisitExit(instr)
	case ir.OpThrow:
		b.VisitThrow(instr)
	case ir.OpPackedSwitch:
		b.VisitPackedSwitch(instr)
	case ir.OpSuspendCheck:
		b.VisitSuspendCheck(instr)
	case ir.OpDeoptimize:
		b.VisitDeoptimize(instr)
	case ir.OpNullCheck:
		b.VisitNullCheck(instr)
	case ir.OpBoundsCheck:
		b.VisitBoundsCheck(instr)
	case ir.OpDivZeroCheck:
		b.VisitDivZeroCheck(instr)
	case ir.OpClinitCheck:
		b.VisitClinitCheck(instr)
	case ir.OpInstanceFieldGet:
		b.VisitInstanceFieldGet(instr)
	case ir.OpInstanceFieldSet:
		b.VisitInstanceFieldSet(instr)
	case ir.OpStaticFieldGet:
		b.VisitStaticFieldGet(instr)
	case ir.OpStaticFieldSet:
		b.VisitStaticFieldSet(instr)
	case ir.OpArrayGet:
		b.VisitArrayGet(instr)
	case ir.OpArraySet:
		b.VisitArraySet(instr)
	case ir.OpArrayLength:
		b.VisitArrayLength(instr)
	case ir.OpNewInstance:
		b.VisitNewInstance(instr)
	case ir.OpNewArray:
		b.VisitNewArray(instr)
	case ir.OpLoadClass:
		b.VisitLoadClass(instr)
	case ir.OpLoadString:
		b.VisitLoadString(instr)
	case ir.OpInstanceOf:
		b.VisitInstanceOf(instr)
	case ir.OpCheckCast:
		b.VisitCheckCast(instr)
	case ir.OpMonitorOperation:
		b.VisitMonitorOperation(instr)
	case ir.OpMemoryBarrier:
		b.VisitMemoryBarrier(instr)
	case ir.OpInvokeStaticOrDirect:
		b.VisitInvokeStaticOrDirect(instr)
	case ir.OpInvokeVirtual:
		b.VisitInvokeVirtual(instr)
	case ir.OpInvokeInterface:
		b.VisitInvokeInterface(instr)
	case ir.OpParallelMove:
		b.VisitParallelMove(instr)
	default:
		panic(fmt.Sprintf("BUG: unknown opcode %d of v%d", instr.Opcode(), instr.ID()))
	}
}

// DispatchInstruction calls the method of InstructionVisitor matching the opcode of instr.
func DispatchInstruction(v InstructionVisitor, instr *ir.Instruction) {
	switch instr.Opcode() {
	case ir.OpIntConstant:
		v.VisitIntConstant(instr)
	case ir.OpLongConstant:
		v.VisitLongConstant(instr)
	case ir.OpFloatConstant:
		v.VisitFloatConstant(instr)
	case ir.OpDoubleConstant:
		v.VisitDoubleConstant(instr)
	case ir.OpNullConstant:
		v.VisitNullConstant(instr)
	case ir.OpParameterValue:
		v.VisitParameterValue(instr)
	case ir.OpCurrentMethod:
		v.VisitCurrentMethod(instr)
	case ir.OpPhi:
		v.VisitPhi(instr)
	case ir.OpAdd:
		v.VisitAdd(instr)
	case ir.OpSub:
		v.VisitSub(instr)
	case ir.OpMul:
		v.VisitMul(instr)
	case ir.OpDiv:
		v.VisitDiv(instr)
	case ir.OpRem:
		v.VisitRem(instr)
	case ir.OpNeg:
		v.VisitNeg(instr)
	case ir.OpNot:
		v.VisitNot(instr)
	case ir.OpBooleanNot:
		v.VisitBooleanNot(instr)
	case ir.OpAnd:
		v.VisitAnd(instr)
	case ir.OpOr:
		v.VisitOr(instr)
	case ir.OpXor:
		v.VisitXor(instr)
	case ir.OpShl:
		v.VisitShl(instr)
	case ir.OpShr:
		v.VisitShr(instr)
	case ir.OpUShr:
		v.VisitUShr(instr)
	case ir.OpRor:
		v.VisitRor(instr)
	case ir.OpTypeConversion:
		v.VisitTypeConversion(instr)
	case ir.OpCompare:
		v.VisitCompare(instr)
	case ir.OpEqual:
		v.VisitEqual(instr)
	case ir.OpNotEqual:
		v.VisitNotEqual(instr)
	case ir.OpLessThan:
		v.VisitLessThan(instr)
	case ir.OpLessThanOrEqual:
		v.VisitLessThanOrEqual(instr)
	case ir.OpGreaterThan:
		v.VisitGreaterThan(instr)
	case ir.OpGreaterThanOrEqual:
		v.VisitGreaterThanOrEqual(instr)
	case ir.OpBelow:
		v.VisitBelow(instr)
	case ir.OpBelowOrEqual:
		v.VisitBelowOrEqual(instr)
	case ir.OpAbove:
		v.VisitAbove(instr)
	case ir.OpAboveOrEqual:
		v.VisitAboveOrEqual(instr)
	case ir.OpSelect:
		v.VisitSelect(instr)
	case ir.OpGoto:
		v.VisitGoto(instr)
	case ir.OpIf:
		v.VisitIf(instr)
	case ir.OpReturn:
		v.VisitReturn(instr)
	case ir.OpReturnVoid:
		v.VisitReturnVoid(instr)
	case ir.OpExit:
		v.VisitExit(instr)
	case ir.OpThrow:
		v.VisitThrow(instr)
	case ir.OpPackedSwitch:
		v.VisitPackedSwitch(instr)
	case ir.OpSuspendCheck:
		v.VisitSuspendCheck(instr)
	case ir.OpDeoptimize:
		v.VisitDeoptimize(instr)
	case ir.OpNullCheck:
		v.VisitNullCheck(instr)
	case ir.OpBoundsCheck:
		v.VisitBoundsCheck(instr)
	case ir.OpDivZeroCheck:
		v.VisitDivZeroCheck(instr)
	case ir.OpClinitCheck:
		v.VisitClinitCheck(instr)
	case ir.OpInstanceFieldGet:
		v.VisitInstanceFieldGet(instr)
	case ir.OpInstanceFieldSet:
		v.VisitInstanceFieldSet(instr)
	case ir.OpStaticFieldGet:
		v.VisitStaticFieldGet(instr)
	case ir.OpStaticFieldSet:
		v.VisitStaticFieldSet(instr)
	case ir.OpArrayGet:
		v.VisitArrayGet(instr)
	case ir.OpArraySet:
		v.VisitArraySet(instr)
	case ir.OpArrayLength:
		v.VisitArrayLength(instr)
	case ir.OpNewInstance:
		v.VisitNewInstance(instr)
	case ir.OpNewArray:
		v.VisitNewArray(instr)
	case ir.OpLoadClass:
		v.VisitLoadClass(instr)
	case ir.OpLoadString:
		v.VisitLoadString(instr)
	case ir.OpInstanceOf:
		v.VisitInstanceOf(instr)
	case ir.OpCheckCast:
		v.VisitCheckCast(instr)
	case ir.OpMonitorOperation:
		v.VisitMonitorOperation(instr)
	case ir.OpMemoryBarrier:
		v.VisitMemoryBarrier(instr)
	case ir.OpInvokeStaticOrDirect:
		v.VisitInvokeStaticOrDirect(instr)
	case ir.OpInvokeVirtual:
		v.VisitInvokeVirtual(instr)
	case ir.OpInvokeInterface:
		v.VisitInvokeInterface(instr)
	case ir.OpParallelMove:
		v.VisitParallelMove(instr)
	default:
		panic(fmt.Sprintf("BUG: unknown opcode %d of v%d", instr.Opcode(), instr.ID()))
	}
}
