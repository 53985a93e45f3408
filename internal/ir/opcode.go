package ir

// Opcode identifies the kind of an Instruction. The set is closed: every
// backend handles each of them in both its locations builder and its
// instruction visitor.
type Opcode uint16

const (
	OpInvalid Opcode = iota

	// Constants and method state.
	OpIntConstant
	OpLongConstant
	OpFloatConstant
	OpDoubleConstant
	OpNullConstant
	OpParameterValue
	OpCurrentMethod
	OpPhi

	// Arithmetic and logic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpNeg
	OpNot
	OpBooleanNot
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpUShr
	OpRor
	OpTypeConversion
	OpCompare

	// Conditions.
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpBelow
	OpBelowOrEqual
	OpAbove
	OpAboveOrEqual
	OpSelect

	// Control flow.
	OpGoto
	OpIf
	OpReturn
	OpReturnVoid
	OpExit
	OpThrow
	OpPackedSwitch
	OpSuspendCheck
	OpDeoptimize

	// Checks.
	OpNullCheck
	OpBoundsCheck
	OpDivZeroCheck
	OpClinitCheck

	// Memory.
	OpInstanceFieldGet
	OpInstanceFieldSet
	OpStaticFieldGet
	OpStaticFieldSet
	OpArrayGet
	OpArraySet
	OpArrayLength

	// Objects and types.
	OpNewInstance
	OpNewArray
	OpLoadClass
	OpLoadString
	OpInstanceOf
	OpCheckCast
	OpMonitorOperation
	OpMemoryBarrier

	// Calls.
	OpInvokeStaticOrDirect
	OpInvokeVirtual
	OpInvokeInterface

	// OpParallelMove is inserted by the register allocator; its moves live in
	// the backend's location table.
	OpParallelMove

	opcodeEnd
)

// NumOpcodes is the number of valid opcodes, OpInvalid excluded.
const NumOpcodes = int(opcodeEnd) - 1

var opcodeNames = [...]string{
	OpInvalid:              "invalid",
	OpIntConstant:          "IntConstant",
	OpLongConstant:         "LongConstant",
	OpFloatConstant:        "FloatConstant",
	OpDoubleConstant:       "DoubleConstant",
	OpNullConstant:         "NullConstant",
	OpParameterValue:       "ParameterValue",
	OpCurrentMethod:        "CurrentMethod",
	OpPhi:                  "Phi",
	OpAdd:                  "Add",
	OpSub:                  "Sub",
	OpMul:                  "Mul",
	OpDiv:                  "Div",
	OpRem:                  "Rem",
	OpNeg:                  "Neg",
	OpNot:                  "Not",
	OpBooleanNot:           "BooleanNot",
	OpAnd:                  "And",
	OpOr:                   "Or",
	OpXor:                  "Xor",
	OpShl:                  "Shl",
	OpShr:                  "Shr",
	OpUShr:                 "UShr",
	OpRor:                  "Ror",
	OpTypeConversion:       "TypeConversion",
	OpCompare:              "Compare",
	OpEqual:                "Equal",
	OpNotEqual:             "NotEqual",
	OpLessThan:             "LessThan",
	OpLessThanOrEqual:      "LessThanOrEqual",
	OpGreaterThan:          "GreaterThan",
	OpGreaterThanOrEqual:   "GreaterThanOrEqual",
	OpBelow:                "Below",
	OpBelowOrEqual:         "BelowOrEqual",
	OpAbove:                "Above",
	OpAboveOrEqual:         "AboveOrEqual",
	OpSelect:               "Select",
	OpGoto:                 "Goto",
	OpIf:                   "If",
	OpReturn:               "Return",
	OpReturnVoid:           "ReturnVoid",
	OpExit:                 "Exit",
	OpThrow:                "Throw",
	OpPackedSwitch:         "PackedSwitch",
	OpSuspendCheck:         "SuspendCheck",
	OpDeoptimize:           "Deoptimize",
	OpNullCheck:            "NullCheck",
	OpBoundsCheck:          "BoundsCheck",
	OpDivZeroCheck:         "DivZeroCheck",
	OpClinitCheck:          "ClinitCheck",
	OpInstanceFieldGet:     "InstanceFieldGet",
	OpInstanceFieldSet:     "InstanceFieldSet",
	OpStaticFieldGet:       "StaticFieldGet",
	OpStaticFieldSet:       "StaticFieldSet",
	OpArrayGet:             "ArrayGet",
	OpArraySet:             "ArraySet",
	OpArrayLength:          "ArrayLength",
	OpNewInstance:          "NewInstance",
	OpNewArray:             "NewArray",
	OpLoadClass:            "LoadClass",
	OpLoadString:           "LoadString",
	OpInstanceOf:           "InstanceOf",
	OpCheckCast:            "CheckCast",
	OpMonitorOperation:     "MonitorOperation",
	OpMemoryBarrier:        "MemoryBarrier",
	OpInvokeStaticOrDirect: "InvokeStaticOrDirect",
	OpInvokeVirtual:        "InvokeVirtual",
	OpInvokeInterface:      "InvokeInterface",
	OpParallelMove:         "ParallelMove",
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return "invalid"
}

// Opcodes returns every valid opcode in declaration order.
func Opcodes() []Opcode {
	ret := make([]Opcode, 0, NumOpcodes)
	for o := OpInvalid + 1; o < opcodeEnd; o++ {
		ret = append(ret, o)
	}
	return ret
}

// IsConstant returns true for the constant opcodes.
func (o Opcode) IsConstant() bool {
	return o >= OpIntConstant && o <= OpNullConstant
}

// IsCondition returns true for the comparison opcodes producing a boolean.
func (o Opcode) IsCondition() bool {
	return o >= OpEqual && o <= OpAboveOrEqual
}

// IsControlFlow returns true for the opcodes which end a basic block.
func (o Opcode) IsControlFlow() bool {
	switch o {
	case OpGoto, OpIf, OpReturn, OpReturnVoid, OpExit, OpThrow, OpPackedSwitch:
		return true
	}
	return false
}

// IsInvoke returns true for the call opcodes.
func (o Opcode) IsInvoke() bool {
	return o == OpInvokeStaticOrDirect || o == OpInvokeVirtual || o == OpInvokeInterface
}

// NeedsEnvironment returns true when the instruction may reach a safepoint or
// throw, so its code must be described by a stack map.
func (o Opcode) NeedsEnvironment() bool {
	switch o {
	case OpDiv, OpRem, OpSuspendCheck, OpDeoptimize, OpNullCheck, OpBoundsCheck, OpDivZeroCheck,
		OpClinitCheck, OpThrow, OpArraySet, OpNewInstance, OpNewArray, OpLoadClass, OpLoadString,
		OpInstanceOf, OpCheckCast, OpMonitorOperation, OpInvokeStaticOrDirect, OpInvokeVirtual,
		OpInvokeInterface, OpTypeConversion:
		return true
	}
	return false
}

// Opposite returns the condition which is true exactly when o is false.
func (o Opcode) Opposite() Opcode {
	switch o {
	case OpEqual:
		return OpNotEqual
	case OpNotEqual:
		return OpEqual
	case OpLessThan:
		return OpGreaterThanOrEqual
	case OpLessThanOrEqual:
		return OpGreaterThan
	case OpGreaterThan:
		return OpLessThanOrEqual
	case OpGreaterThanOrEqual:
		return OpLessThan
	case OpBelow:
		return OpAboveOrEqual
	case OpBelowOrEqual:
		return OpAbove
	case OpAbove:
		return OpBelowOrEqual
	case OpAboveOrEqual:
		return OpBelow
	}
	panic("BUG: not a condition: " + o.String())
}

// ComparisonBias decides the result of a floating point comparison with NaN.
type ComparisonBias byte

const (
	// BiasNone is used for integral comparisons.
	BiasNone ComparisonBias = iota
	// BiasGt treats NaN as greater than any value.
	BiasGt
	// BiasLt treats NaN as less than any value.
	BiasLt
)

// LoadClassKind selects how a LoadClass obtains the class reference.
type LoadClassKind byte

const (
	LoadClassReferrersClass LoadClassKind = iota
	LoadClassBootImageLinkTimePcRelative
	LoadClassBssEntry
	LoadClassJitTableAddress
	LoadClassRuntimeCall
)

// String implements fmt.Stringer.
func (k LoadClassKind) String() string {
	switch k {
	case LoadClassReferrersClass:
		return "ReferrersClass"
	case LoadClassBootImageLinkTimePcRelative:
		return "BootImageLinkTimePcRelative"
	case LoadClassBssEntry:
		return "BssEntry"
	case LoadClassJitTableAddress:
		return "JitTableAddress"
	case LoadClassRuntimeCall:
		return "RuntimeCall"
	}
	return "invalid"
}

// LoadStringKind selects how a LoadString obtains the string reference.
type LoadStringKind byte

const (
	LoadStringBootImageLinkTimePcRelative LoadStringKind = iota
	LoadStringBssEntry
	LoadStringJitTableAddress
	LoadStringRuntimeCall
)

// String implements fmt.Stringer.
func (k LoadStringKind) String() string {
	switch k {
	case LoadStringBootImageLinkTimePcRelative:
		return "BootImageLinkTimePcRelative"
	case LoadStringBssEntry:
		return "BssEntry"
	case LoadStringJitTableAddress:
		return "JitTableAddress"
	case LoadStringRuntimeCall:
		return "RuntimeCall"
	}
	return "invalid"
}

// MethodLoadKind selects how a static or direct call finds its target method.
type MethodLoadKind byte

const (
	MethodLoadRecursive MethodLoadKind = iota
	MethodLoadBootImageLinkTimePcRelative
	MethodLoadDirectAddress
	MethodLoadBssEntry
	MethodLoadRuntimeCall
)

// String implements fmt.Stringer.
func (k MethodLoadKind) String() string {
	switch k {
	case MethodLoadRecursive:
		return "Recursive"
	case MethodLoadBootImageLinkTimePcRelative:
		return "BootImageLinkTimePcRelative"
	case MethodLoadDirectAddress:
		return "DirectAddress"
	case MethodLoadBssEntry:
		return "BssEntry"
	case MethodLoadRuntimeCall:
		return "RuntimeCall"
	}
	return "invalid"
}

// TypeCheckKind selects the code emitted for InstanceOf and CheckCast.
type TypeCheckKind byte

const (
	// TypeCheckExact compares the object's class with the target class.
	TypeCheckExact TypeCheckKind = iota
	// TypeCheckClassHierarchy walks the super class chain.
	TypeCheckClassHierarchy
	// TypeCheckArrayObject succeeds for any array of references.
	TypeCheckArrayObject
	// TypeCheckInterface calls into the runtime.
	TypeCheckInterface
)

// String implements fmt.Stringer.
func (k TypeCheckKind) String() string {
	switch k {
	case TypeCheckExact:
		return "exact"
	case TypeCheckClassHierarchy:
		return "class-hierarchy"
	case TypeCheckArrayObject:
		return "array-object"
	case TypeCheckInterface:
		return "interface"
	}
	return "invalid"
}

// BarrierKind is the kind of a MemoryBarrier.
type BarrierKind byte

const (
	BarrierAnyStore BarrierKind = iota
	BarrierLoadAny
	BarrierStoreStore
	BarrierAnyAny
)
