package ir

import (
	"fmt"
	"math"
	"strings"
)

// Instruction is a single node of the IR. It is also the value it produces:
// users reference the defining Instruction directly.
//
// Since Go doesn't have union type, this flattened type is used for all
// opcodes, and the meaning of u1, u2, kind and str depends on the opcode.
// Use the AsXxx / XxxData pairs rather than reading the fields directly.
type Instruction struct {
	id     int
	opcode Opcode
	typ    DataType
	inputs []*Instruction
	users  []*Instruction
	blk    *BasicBlock
	dexPC  uint32
	env    *Environment

	u1, u2 uint64
	kind   byte
	// aux is the element type of memory accesses.
	aux   DataType
	flags instructionFlag
	str   string
}

type instructionFlag uint16

const (
	flagEmittedAtUseSite instructionFlag = 1 << iota
	flagVolatile
	flagNeedsTypeCheck
	flagValueCanBeNull
	flagMustGenerateClinitCheck
	flagMonitorEnter
	flagNeedsAccessCheck
)

// Environment is the state of the dex registers at an instruction which needs
// a stack map: one entry per dex register, nil when the register is dead.
type Environment struct {
	Values []*Instruction
	DexPC  uint32
}

// ID returns the unique id of this instruction within its Graph.
func (i *Instruction) ID() int { return i.id }

// Opcode returns the opcode of this instruction.
func (i *Instruction) Opcode() Opcode { return i.opcode }

// Type returns the type of the value this instruction produces.
func (i *Instruction) Type() DataType { return i.typ }

// Inputs returns the instructions whose values this instruction consumes.
func (i *Instruction) Inputs() []*Instruction { return i.inputs }

// InputAt returns the idx-th input.
func (i *Instruction) InputAt(idx int) *Instruction { return i.inputs[idx] }

// Users returns the instructions consuming the value of this instruction.
func (i *Instruction) Users() []*Instruction { return i.users }

// HasUses returns true if any instruction or environment consumes this value.
func (i *Instruction) HasUses() bool { return len(i.users) > 0 }

// Block returns the basic block containing this instruction.
func (i *Instruction) Block() *BasicBlock { return i.blk }

// DexPC returns the bytecode offset this instruction was built from.
func (i *Instruction) DexPC() uint32 { return i.dexPC }

// Env returns the environment of this instruction, or nil.
func (i *Instruction) Env() *Environment { return i.env }

// SetEnv replaces the environment of this instruction.
func (i *Instruction) SetEnv(env *Environment) { i.env = env }

// NeedsEnvironment is a shortcut for Opcode().NeedsEnvironment().
func (i *Instruction) NeedsEnvironment() bool { return i.opcode.NeedsEnvironment() }

// IsEmittedAtUseSite returns true for conditions folded into their single
// branching user. The decision is made when the graph is built.
func (i *Instruction) IsEmittedAtUseSite() bool { return i.flags&flagEmittedAtUseSite != 0 }

// MarkEmittedAtUseSite records that the condition is folded into its user.
func (i *Instruction) MarkEmittedAtUseSite() { i.flags |= flagEmittedAtUseSite }

func (i *Instruction) addInput(in *Instruction) {
	i.inputs = append(i.inputs, in)
	in.users = append(in.users, i)
}

// ReplaceInput changes the idx-th input.
func (i *Instruction) ReplaceInput(idx int, in *Instruction) {
	old := i.inputs[idx]
	for j, u := range old.users {
		if u == i {
			old.users = append(old.users[:j], old.users[j+1:]...)
			break
		}
	}
	i.inputs[idx] = in
	in.users = append(in.users, i)
}

// Next returns the instruction following i in its block, or nil.
func (i *Instruction) Next() *Instruction {
	if i.blk == nil {
		return nil
	}
	instrs := i.blk.instrs
	for j, ins := range instrs {
		if ins == i && j+1 < len(instrs) {
			return instrs[j+1]
		}
	}
	return nil
}

// NextDisregardingMoves returns the next instruction in the block skipping
// the parallel moves inserted by the register allocator.
func (i *Instruction) NextDisregardingMoves() *Instruction {
	next := i.Next()
	for next != nil && next.opcode == OpParallelMove {
		next = next.Next()
	}
	return next
}

// PreviousDisregardingMoves returns the previous instruction in the block
// skipping parallel moves.
func (i *Instruction) PreviousDisregardingMoves() *Instruction {
	if i.blk == nil {
		return nil
	}
	instrs := i.blk.instrs
	for j, ins := range instrs {
		if ins != i {
			continue
		}
		for k := j - 1; k >= 0; k-- {
			if instrs[k].opcode != OpParallelMove {
				return instrs[k]
			}
		}
		return nil
	}
	return nil
}

// IsConstant returns true if this instruction is a constant.
func (i *Instruction) IsConstant() bool { return i.opcode.IsConstant() }

// AsIntConstant initializes this instruction as a 32-bit integer constant.
func (i *Instruction) AsIntConstant(v int32) *Instruction {
	i.opcode, i.typ, i.u1 = OpIntConstant, TypeInt32, uint64(uint32(v))
	return i
}

// AsLongConstant initializes this instruction as a 64-bit integer constant.
func (i *Instruction) AsLongConstant(v int64) *Instruction {
	i.opcode, i.typ, i.u1 = OpLongConstant, TypeInt64, uint64(v)
	return i
}

// AsFloatConstant initializes this instruction as a float constant.
func (i *Instruction) AsFloatConstant(v float32) *Instruction {
	i.opcode, i.typ, i.u1 = OpFloatConstant, TypeFloat32, uint64(math.Float32bits(v))
	return i
}

// AsDoubleConstant initializes this instruction as a double constant.
func (i *Instruction) AsDoubleConstant(v float64) *Instruction {
	i.opcode, i.typ, i.u1 = OpDoubleConstant, TypeFloat64, math.Float64bits(v)
	return i
}

// AsNullConstant initializes this instruction as the null reference.
func (i *Instruction) AsNullConstant() *Instruction {
	i.opcode, i.typ = OpNullConstant, TypeReference
	return i
}

// ConstantBits returns the raw bits of a constant: the two's complement value
// for integral constants and the IEEE 754 representation for floating point.
func (i *Instruction) ConstantBits() uint64 {
	if !i.opcode.IsConstant() {
		panic("BUG: not a constant: " + i.opcode.String())
	}
	return i.u1
}

// Int64FromConstant returns the value of an integral or null constant.
func (i *Instruction) Int64FromConstant() int64 {
	switch i.opcode {
	case OpIntConstant:
		return int64(int32(uint32(i.u1)))
	case OpLongConstant:
		return int64(i.u1)
	case OpNullConstant:
		return 0
	}
	panic("BUG: not an integral constant: " + i.opcode.String())
}

// IsZeroBitPattern returns true for constants whose bits are all zero.
func (i *Instruction) IsZeroBitPattern() bool {
	return i.opcode.IsConstant() && i.u1 == 0
}

// AsParameterValue initializes this instruction as the idx-th parameter of the method.
func (i *Instruction) AsParameterValue(idx int, typ DataType) *Instruction {
	i.opcode, i.typ, i.u1 = OpParameterValue, typ, uint64(idx)
	return i
}

// ParameterIndex returns the parameter index of a ParameterValue.
func (i *Instruction) ParameterIndex() int { return int(i.u1) }

// AsCurrentMethod initializes this instruction as the method pointer of the compiled method.
func (i *Instruction) AsCurrentMethod() *Instruction {
	i.opcode, i.typ = OpCurrentMethod, TypeInt32
	return i
}

// AsPhi initializes this instruction as a phi of the given type. Inputs are
// added with AddPhiInput, in predecessor order.
func (i *Instruction) AsPhi(typ DataType) *Instruction {
	i.opcode, i.typ = OpPhi, typ
	return i
}

// AddPhiInput appends the value flowing in from the next predecessor.
func (i *Instruction) AddPhiInput(v *Instruction) {
	if i.opcode != OpPhi {
		panic("BUG: not a phi")
	}
	i.addInput(v)
}

// AsBinary initializes this instruction as a binary arithmetic, logic or shift operation.
func (i *Instruction) AsBinary(op Opcode, typ DataType, x, y *Instruction) *Instruction {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpAnd, OpOr, OpXor, OpShl, OpShr, OpUShr, OpRor:
	default:
		panic("BUG: not a binary operation: " + op.String())
	}
	i.opcode, i.typ = op, typ
	i.addInput(x)
	i.addInput(y)
	return i
}

// BinaryData returns the operands of a binary operation.
func (i *Instruction) BinaryData() (x, y *Instruction) {
	return i.inputs[0], i.inputs[1]
}

// AsUnary initializes this instruction as Neg, Not or BooleanNot.
func (i *Instruction) AsUnary(op Opcode, typ DataType, x *Instruction) *Instruction {
	switch op {
	case OpNeg, OpNot, OpBooleanNot:
	default:
		panic("BUG: not a unary operation: " + op.String())
	}
	i.opcode, i.typ = op, typ
	i.addInput(x)
	return i
}

// AsTypeConversion initializes this instruction as a conversion of x to typ.
func (i *Instruction) AsTypeConversion(typ DataType, x *Instruction) *Instruction {
	i.opcode, i.typ = OpTypeConversion, typ
	i.addInput(x)
	return i
}

// TypeConversionData returns the source and result types of a conversion.
func (i *Instruction) TypeConversionData() (from, to DataType) {
	return i.inputs[0].typ, i.typ
}

// AsCompare initializes this instruction as a three-way comparison producing -1, 0 or 1.
func (i *Instruction) AsCompare(x, y *Instruction, bias ComparisonBias) *Instruction {
	i.opcode, i.typ, i.kind = OpCompare, TypeInt32, byte(bias)
	i.addInput(x)
	i.addInput(y)
	return i
}

// AsCondition initializes this instruction as a condition producing a boolean.
func (i *Instruction) AsCondition(op Opcode, x, y *Instruction, bias ComparisonBias) *Instruction {
	if !op.IsCondition() {
		panic("BUG: not a condition: " + op.String())
	}
	i.opcode, i.typ, i.kind = op, TypeBool, byte(bias)
	i.addInput(x)
	i.addInput(y)
	return i
}

// Bias returns the NaN bias of a Compare or a condition.
func (i *Instruction) Bias() ComparisonBias { return ComparisonBias(i.kind) }

// AsSelect initializes this instruction as `condition ? trueValue : falseValue`.
func (i *Instruction) AsSelect(falseValue, trueValue, condition *Instruction) *Instruction {
	i.opcode, i.typ = OpSelect, falseValue.typ
	i.addInput(falseValue)
	i.addInput(trueValue)
	i.addInput(condition)
	return i
}

// SelectData returns the operands of a Select.
func (i *Instruction) SelectData() (falseValue, trueValue, condition *Instruction) {
	return i.inputs[0], i.inputs[1], i.inputs[2]
}

// AsGoto initializes this instruction as an unconditional jump to the single successor.
func (i *Instruction) AsGoto() *Instruction {
	i.opcode, i.typ = OpGoto, TypeVoid
	return i
}

// AsIf initializes this instruction as a two way branch on condition.
func (i *Instruction) AsIf(condition *Instruction) *Instruction {
	i.opcode, i.typ = OpIf, TypeVoid
	i.addInput(condition)
	return i
}

// AsReturn initializes this instruction as a return of v.
func (i *Instruction) AsReturn(v *Instruction) *Instruction {
	i.opcode, i.typ = OpReturn, TypeVoid
	i.addInput(v)
	return i
}

// AsReturnVoid initializes this instruction as a return without value.
func (i *Instruction) AsReturnVoid() *Instruction {
	i.opcode, i.typ = OpReturnVoid, TypeVoid
	return i
}

// AsExit initializes this instruction as the end of the exit block.
func (i *Instruction) AsExit() *Instruction {
	i.opcode, i.typ = OpExit, TypeVoid
	return i
}

// AsThrow initializes this instruction as a throw of the exception object.
func (i *Instruction) AsThrow(exception *Instruction) *Instruction {
	i.opcode, i.typ = OpThrow, TypeVoid
	i.addInput(exception)
	return i
}

// AsPackedSwitch initializes this instruction as a switch over the dense
// range [start, start+numEntries). The block has numEntries+1 successors, the
// last one being the default.
func (i *Instruction) AsPackedSwitch(value *Instruction, start int32, numEntries uint32) *Instruction {
	i.opcode, i.typ = OpPackedSwitch, TypeVoid
	i.u1, i.u2 = uint64(uint32(start)), uint64(numEntries)
	i.addInput(value)
	return i
}

// PackedSwitchData returns the range of a PackedSwitch.
func (i *Instruction) PackedSwitchData() (start int32, numEntries uint32) {
	return int32(uint32(i.u1)), uint32(i.u2)
}

// AsSuspendCheck initializes this instruction as a safepoint poll.
func (i *Instruction) AsSuspendCheck() *Instruction {
	i.opcode, i.typ = OpSuspendCheck, TypeVoid
	return i
}

// AsDeoptimize initializes this instruction as a conditional transfer to the interpreter.
func (i *Instruction) AsDeoptimize(condition *Instruction) *Instruction {
	i.opcode, i.typ = OpDeoptimize, TypeVoid
	i.addInput(condition)
	return i
}

// AsNullCheck initializes this instruction as a null check of obj. Its value is obj.
func (i *Instruction) AsNullCheck(obj *Instruction) *Instruction {
	i.opcode, i.typ = OpNullCheck, TypeReference
	i.addInput(obj)
	return i
}

// AsBoundsCheck initializes this instruction as a check of 0 <= index < length. Its value is index.
func (i *Instruction) AsBoundsCheck(index, length *Instruction) *Instruction {
	i.opcode, i.typ = OpBoundsCheck, TypeInt32
	i.addInput(index)
	i.addInput(length)
	return i
}

// AsDivZeroCheck initializes this instruction as a check that value is not zero. Its value is value.
func (i *Instruction) AsDivZeroCheck(value *Instruction) *Instruction {
	i.opcode, i.typ = OpDivZeroCheck, value.typ
	i.addInput(value)
	return i
}

// AsClinitCheck initializes this instruction as a class initialization check. Its value is the class.
func (i *Instruction) AsClinitCheck(class *Instruction) *Instruction {
	i.opcode, i.typ = OpClinitCheck, TypeReference
	i.addInput(class)
	return i
}

// FieldInfo describes a field access.
type FieldInfo struct {
	Offset   uint32
	Type     DataType
	Volatile bool
}

func (i *Instruction) setField(f FieldInfo) {
	i.u1, i.aux = uint64(f.Offset), f.Type
	if f.Volatile {
		i.flags |= flagVolatile
	}
}

// AsInstanceFieldGet initializes this instruction as a load of a field of obj.
func (i *Instruction) AsInstanceFieldGet(obj *Instruction, f FieldInfo) *Instruction {
	i.opcode, i.typ = OpInstanceFieldGet, f.Type
	i.setField(f)
	i.addInput(obj)
	return i
}

// AsInstanceFieldSet initializes this instruction as a store of value to a field of obj.
func (i *Instruction) AsInstanceFieldSet(obj, value *Instruction, f FieldInfo) *Instruction {
	i.opcode, i.typ = OpInstanceFieldSet, TypeVoid
	i.setField(f)
	i.flags |= flagValueCanBeNull
	i.addInput(obj)
	i.addInput(value)
	return i
}

// AsStaticFieldGet initializes this instruction as a load of a static field of class.
func (i *Instruction) AsStaticFieldGet(class *Instruction, f FieldInfo) *Instruction {
	i.opcode, i.typ = OpStaticFieldGet, f.Type
	i.setField(f)
	i.addInput(class)
	return i
}

// AsStaticFieldSet initializes this instruction as a store of value to a static field of class.
func (i *Instruction) AsStaticFieldSet(class, value *Instruction, f FieldInfo) *Instruction {
	i.opcode, i.typ = OpStaticFieldSet, TypeVoid
	i.setField(f)
	i.flags |= flagValueCanBeNull
	i.addInput(class)
	i.addInput(value)
	return i
}

// FieldData returns the field accessed by a field get or set.
func (i *Instruction) FieldData() FieldInfo {
	return FieldInfo{Offset: uint32(i.u1), Type: i.aux, Volatile: i.flags&flagVolatile != 0}
}

// AsArrayGet initializes this instruction as a load of array[index].
func (i *Instruction) AsArrayGet(array, index *Instruction, typ DataType) *Instruction {
	i.opcode, i.typ, i.aux = OpArrayGet, typ, typ
	i.addInput(array)
	i.addInput(index)
	return i
}

// AsArraySet initializes this instruction as a store of value to array[index].
// Reference stores into arrays whose component type is not statically known
// need a type check.
func (i *Instruction) AsArraySet(array, index, value *Instruction, componentType DataType, needsTypeCheck bool) *Instruction {
	i.opcode, i.typ, i.aux = OpArraySet, TypeVoid, componentType
	if needsTypeCheck {
		i.flags |= flagNeedsTypeCheck
	}
	if componentType == TypeReference && value.opcode != OpNullConstant {
		i.flags |= flagValueCanBeNull
	}
	i.addInput(array)
	i.addInput(index)
	i.addInput(value)
	return i
}

// ComponentType returns the element type of an array access.
func (i *Instruction) ComponentType() DataType { return i.aux }

// NeedsTypeCheck returns true for ArraySet which must check the value's type against the array.
func (i *Instruction) NeedsTypeCheck() bool { return i.flags&flagNeedsTypeCheck != 0 }

// ValueCanBeNull returns true when a stored reference may be null.
func (i *Instruction) ValueCanBeNull() bool { return i.flags&flagValueCanBeNull != 0 }

// ClearValueCanBeNull records that the stored value is known non-null.
func (i *Instruction) ClearValueCanBeNull() { i.flags &^= flagValueCanBeNull }

// AsArrayLength initializes this instruction as the length of array.
func (i *Instruction) AsArrayLength(array *Instruction) *Instruction {
	i.opcode, i.typ = OpArrayLength, TypeInt32
	i.addInput(array)
	return i
}

// AsNewInstance initializes this instruction as an allocation of an instance of class.
func (i *Instruction) AsNewInstance(class *Instruction) *Instruction {
	i.opcode, i.typ = OpNewInstance, TypeReference
	i.addInput(class)
	return i
}

// AsNewArray initializes this instruction as an allocation of an array of arrayClass.
func (i *Instruction) AsNewArray(arrayClass, length *Instruction) *Instruction {
	i.opcode, i.typ = OpNewArray, TypeReference
	i.addInput(arrayClass)
	i.addInput(length)
	return i
}

// TypeRef names a class for LoadClass.
type TypeRef struct {
	TypeIndex  uint32
	Descriptor string
}

// AsLoadClass initializes this instruction as a load of a class reference.
func (i *Instruction) AsLoadClass(ref TypeRef, kind LoadClassKind, mustGenerateClinitCheck bool) *Instruction {
	i.opcode, i.typ, i.kind = OpLoadClass, TypeReference, byte(kind)
	i.u1, i.str = uint64(ref.TypeIndex), ref.Descriptor
	if mustGenerateClinitCheck {
		i.flags |= flagMustGenerateClinitCheck
	}
	return i
}

// LoadClassData returns the class and load kind of a LoadClass.
func (i *Instruction) LoadClassData() (ref TypeRef, kind LoadClassKind) {
	return TypeRef{TypeIndex: uint32(i.u1), Descriptor: i.str}, LoadClassKind(i.kind)
}

// MustGenerateClinitCheck returns true for a LoadClass which also initializes the class.
func (i *Instruction) MustGenerateClinitCheck() bool {
	return i.flags&flagMustGenerateClinitCheck != 0
}

// StringReference names a string for LoadString.
type StringReference struct {
	StringIndex uint32
	Value       string
}

// AsLoadString initializes this instruction as a load of a string reference.
func (i *Instruction) AsLoadString(ref StringReference, kind LoadStringKind) *Instruction {
	i.opcode, i.typ, i.kind = OpLoadString, TypeReference, byte(kind)
	i.u1, i.str = uint64(ref.StringIndex), ref.Value
	return i
}

// LoadStringData returns the string and load kind of a LoadString.
func (i *Instruction) LoadStringData() (ref StringReference, kind LoadStringKind) {
	return StringReference{StringIndex: uint32(i.u1), Value: i.str}, LoadStringKind(i.kind)
}

// AsInstanceOf initializes this instruction as `obj instanceof class`.
func (i *Instruction) AsInstanceOf(obj, class *Instruction, kind TypeCheckKind) *Instruction {
	i.opcode, i.typ, i.kind = OpInstanceOf, TypeBool, byte(kind)
	i.addInput(obj)
	i.addInput(class)
	return i
}

// AsCheckCast initializes this instruction as a cast check of obj to class.
func (i *Instruction) AsCheckCast(obj, class *Instruction, kind TypeCheckKind) *Instruction {
	i.opcode, i.typ, i.kind = OpCheckCast, TypeVoid, byte(kind)
	i.addInput(obj)
	i.addInput(class)
	return i
}

// TypeCheckKind returns the kind of an InstanceOf or CheckCast.
func (i *Instruction) TypeCheckKind() TypeCheckKind { return TypeCheckKind(i.kind) }

// AsMonitorOperation initializes this instruction as a monitor enter or exit on obj.
func (i *Instruction) AsMonitorOperation(obj *Instruction, enter bool) *Instruction {
	i.opcode, i.typ = OpMonitorOperation, TypeVoid
	if enter {
		i.flags |= flagMonitorEnter
	}
	i.addInput(obj)
	return i
}

// IsMonitorEnter returns true for a monitor enter.
func (i *Instruction) IsMonitorEnter() bool { return i.flags&flagMonitorEnter != 0 }

// AsMemoryBarrier initializes this instruction as a memory barrier.
func (i *Instruction) AsMemoryBarrier(kind BarrierKind) *Instruction {
	i.opcode, i.typ, i.kind = OpMemoryBarrier, TypeVoid, byte(kind)
	return i
}

// BarrierKind returns the kind of a MemoryBarrier.
func (i *Instruction) BarrierKind() BarrierKind { return BarrierKind(i.kind) }

// MethodReference names the target of an invoke.
type MethodReference struct {
	MethodIndex uint32
	Name        string
}

// AsInvokeStaticOrDirect initializes this instruction as a non-virtual call.
// directAddress is only used with MethodLoadDirectAddress.
func (i *Instruction) AsInvokeStaticOrDirect(ref MethodReference, kind MethodLoadKind, directAddress uint32, ret DataType, args []*Instruction) *Instruction {
	i.opcode, i.typ, i.kind = OpInvokeStaticOrDirect, ret, byte(kind)
	i.u1, i.u2, i.str = uint64(ref.MethodIndex), uint64(directAddress), ref.Name
	for _, a := range args {
		i.addInput(a)
	}
	return i
}

// InvokeStaticOrDirectData returns the call target description.
func (i *Instruction) InvokeStaticOrDirectData() (ref MethodReference, kind MethodLoadKind, directAddress uint32) {
	return MethodReference{MethodIndex: uint32(i.u1), Name: i.str}, MethodLoadKind(i.kind), uint32(i.u2)
}

// AsInvokeVirtual initializes this instruction as a vtable call; args[0] is the receiver.
func (i *Instruction) AsInvokeVirtual(ref MethodReference, vtableIndex uint32, ret DataType, args []*Instruction) *Instruction {
	i.opcode, i.typ = OpInvokeVirtual, ret
	i.u1, i.u2, i.str = uint64(ref.MethodIndex), uint64(vtableIndex), ref.Name
	for _, a := range args {
		i.addInput(a)
	}
	return i
}

// AsInvokeInterface initializes this instruction as an interface call through
// the receiver's interface method table; args[0] is the receiver.
func (i *Instruction) AsInvokeInterface(ref MethodReference, imtIndex uint32, ret DataType, args []*Instruction) *Instruction {
	i.opcode, i.typ = OpInvokeInterface, ret
	i.u1, i.u2, i.str = uint64(ref.MethodIndex), uint64(imtIndex), ref.Name
	for _, a := range args {
		i.addInput(a)
	}
	return i
}

// InvokeData returns the method and the table index of a virtual or interface call.
func (i *Instruction) InvokeData() (ref MethodReference, tableIndex uint32) {
	return MethodReference{MethodIndex: uint32(i.u1), Name: i.str}, uint32(i.u2)
}

// AsParallelMove initializes this instruction as a parallel move placeholder.
func (i *Instruction) AsParallelMove() *Instruction {
	i.opcode, i.typ = OpParallelMove, TypeVoid
	return i
}

// String implements fmt.Stringer.
func (i *Instruction) String() string {
	var sb strings.Builder
	if i.typ != TypeVoid {
		fmt.Fprintf(&sb, "v%d:%s = ", i.id, i.typ)
	}
	sb.WriteString(i.opcode.String())
	switch i.opcode {
	case OpIntConstant, OpLongConstant:
		fmt.Fprintf(&sb, " %d", i.Int64FromConstant())
	case OpFloatConstant:
		fmt.Fprintf(&sb, " %v", math.Float32frombits(uint32(i.u1)))
	case OpDoubleConstant:
		fmt.Fprintf(&sb, " %v", math.Float64frombits(i.u1))
	case OpParameterValue:
		fmt.Fprintf(&sb, " #%d", i.u1)
	case OpInstanceFieldGet, OpInstanceFieldSet, OpStaticFieldGet, OpStaticFieldSet:
		f := i.FieldData()
		fmt.Fprintf(&sb, "[+%d:%s", f.Offset, f.Type)
		if f.Volatile {
			sb.WriteString(",volatile")
		}
		sb.WriteString("]")
	case OpArrayGet, OpArraySet:
		fmt.Fprintf(&sb, "[%s]", i.aux)
	case OpLoadClass:
		fmt.Fprintf(&sb, "[%s,%s]", i.str, LoadClassKind(i.kind))
	case OpLoadString:
		fmt.Fprintf(&sb, "[%q,%s]", i.str, LoadStringKind(i.kind))
	case OpInvokeStaticOrDirect:
		fmt.Fprintf(&sb, "[%s,%s]", i.str, MethodLoadKind(i.kind))
	case OpInvokeVirtual, OpInvokeInterface:
		fmt.Fprintf(&sb, "[%s,#%d]", i.str, i.u2)
	case OpInstanceOf, OpCheckCast:
		fmt.Fprintf(&sb, "[%s]", TypeCheckKind(i.kind))
	case OpPackedSwitch:
		start, n := i.PackedSwitchData()
		fmt.Fprintf(&sb, "[%d,%d]", start, n)
	}
	for j, in := range i.inputs {
		if j == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "v%d", in.id)
	}
	if i.IsEmittedAtUseSite() {
		sb.WriteString(" (at use site)")
	}
	return sb.String()
}
