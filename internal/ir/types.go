package ir

// DataType is the type of the value produced by an Instruction.
type DataType byte

const (
	TypeVoid DataType = iota
	TypeBool
	TypeUint8
	TypeInt8
	TypeUint16
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeReference
)

// String implements fmt.Stringer.
func (t DataType) String() string {
	switch t {
	case TypeVoid:
		return "void"
	case TypeBool:
		return "bool"
	case TypeUint8:
		return "u8"
	case TypeInt8:
		return "i8"
	case TypeUint16:
		return "u16"
	case TypeInt16:
		return "i16"
	case TypeInt32:
		return "i32"
	case TypeInt64:
		return "i64"
	case TypeFloat32:
		return "f32"
	case TypeFloat64:
		return "f64"
	case TypeReference:
		return "ref"
	}
	return "invalid"
}

// Is64Bit returns true if values of this type occupy two 32-bit words.
func (t DataType) Is64Bit() bool {
	return t == TypeInt64 || t == TypeFloat64
}

// IsFloatingPoint returns true for float and double.
func (t DataType) IsFloatingPoint() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// IsIntegral returns true for the integral types, including bool.
func (t DataType) IsIntegral() bool {
	switch t {
	case TypeBool, TypeUint8, TypeInt8, TypeUint16, TypeInt16, TypeInt32, TypeInt64:
		return true
	}
	return false
}

// IsInt32Like returns true for the integral types held in a single 32-bit register.
func (t DataType) IsInt32Like() bool {
	return t.IsIntegral() && t != TypeInt64
}

// Size returns the size in bytes of a value of this type when stored in a field or an array.
func (t DataType) Size() int {
	switch t {
	case TypeBool, TypeUint8, TypeInt8:
		return 1
	case TypeUint16, TypeInt16:
		return 2
	case TypeInt32, TypeFloat32, TypeReference:
		return 4
	case TypeInt64, TypeFloat64:
		return 8
	}
	return 0
}

// SizeShift returns log2(Size()).
func (t DataType) SizeShift() int {
	switch t.Size() {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	}
	panic("BUG: void has no size")
}

// Kind returns the type used for computation of values of this type: sub-word
// integral types are computed as 32-bit integers.
func (t DataType) Kind() DataType {
	switch t {
	case TypeBool, TypeUint8, TypeInt8, TypeUint16, TypeInt16:
		return TypeInt32
	}
	return t
}
