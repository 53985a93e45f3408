package backend

import (
	"fmt"

	"github.com/tetratelabs/irgen/internal/ir"
)

// LocationKind is the kind of a Location.
type LocationKind byte

const (
	LocationInvalid LocationKind = iota
	LocationConstant
	LocationRegister
	LocationRegisterPair
	LocationFpuRegister
	LocationFpuRegisterPair
	LocationStackSlot
	LocationDoubleStackSlot
	LocationSIMDStackSlot
	LocationUnallocated
)

// String implements fmt.Stringer.
func (k LocationKind) String() string {
	switch k {
	case LocationInvalid:
		return "invalid"
	case LocationConstant:
		return "constant"
	case LocationRegister:
		return "register"
	case LocationRegisterPair:
		return "register-pair"
	case LocationFpuRegister:
		return "fpu-register"
	case LocationFpuRegisterPair:
		return "fpu-register-pair"
	case LocationStackSlot:
		return "stack-slot"
	case LocationDoubleStackSlot:
		return "double-stack-slot"
	case LocationSIMDStackSlot:
		return "simd-stack-slot"
	case LocationUnallocated:
		return "unallocated"
	}
	return "unknown"
}

// Policy is the constraint of an unallocated Location, resolved by the register allocator.
type Policy byte

const (
	PolicyAny Policy = iota
	PolicyRequiresRegister
	PolicyRequiresFpuRegister
	PolicySameAsFirstInput
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case PolicyAny:
		return "any"
	case PolicyRequiresRegister:
		return "register"
	case PolicyRequiresFpuRegister:
		return "fpu-register"
	case PolicySameAsFirstInput:
		return "same-as-first-input"
	}
	return "unknown"
}

// Location is where a value lives during code generation. It is a comparable
// value; the zero value is the invalid location.
type Location struct {
	kind   LocationKind
	policy Policy
	// reg is the register, or the low register of a pair.
	reg int16
	// high is the high register of a pair.
	high int16
	// index is the byte offset from the stack pointer of a stack slot.
	index    int32
	constant *ir.Instruction
}

// NoLocation returns the invalid location.
func NoLocation() Location { return Location{} }

// ConstantLocation returns the location of the value of the constant instruction c.
func ConstantLocation(c *ir.Instruction) Location {
	if !c.IsConstant() {
		panic("BUG: not a constant: " + c.String())
	}
	return Location{kind: LocationConstant, constant: c}
}

// RegisterLocation returns the core register reg.
func RegisterLocation(reg int) Location {
	return Location{kind: LocationRegister, reg: int16(reg)}
}

// RegisterPairLocation returns the pair of core registers holding a 64-bit
// value, low word in low.
func RegisterPairLocation(low, high int) Location {
	return Location{kind: LocationRegisterPair, reg: int16(low), high: int16(high)}
}

// FpuRegisterLocation returns the floating point register reg.
func FpuRegisterLocation(reg int) Location {
	return Location{kind: LocationFpuRegister, reg: int16(reg)}
}

// FpuRegisterPairLocation returns a pair of floating point registers holding
// a double, low word in low.
func FpuRegisterPairLocation(low, high int) Location {
	return Location{kind: LocationFpuRegisterPair, reg: int16(low), high: int16(high)}
}

// StackSlot returns the 32-bit stack slot at SP+index.
func StackSlot(index int) Location {
	return Location{kind: LocationStackSlot, index: int32(index)}
}

// DoubleStackSlot returns the 64-bit stack slot at SP+index.
func DoubleStackSlot(index int) Location {
	return Location{kind: LocationDoubleStackSlot, index: int32(index)}
}

// SIMDStackSlot returns the 128-bit stack slot at SP+index.
func SIMDStackSlot(index int) Location {
	return Location{kind: LocationSIMDStackSlot, index: int32(index)}
}

// Unallocated returns a location to be chosen by the register allocator under policy.
func Unallocated(policy Policy) Location {
	return Location{kind: LocationUnallocated, policy: policy}
}

// RequiresRegister is a shortcut for Unallocated(PolicyRequiresRegister).
func RequiresRegister() Location { return Unallocated(PolicyRequiresRegister) }

// RequiresFpuRegister is a shortcut for Unallocated(PolicyRequiresFpuRegister).
func RequiresFpuRegister() Location { return Unallocated(PolicyRequiresFpuRegister) }

// Any is a shortcut for Unallocated(PolicyAny).
func Any() Location { return Unallocated(PolicyAny) }

// SameAsFirstInput is a shortcut for Unallocated(PolicySameAsFirstInput).
func SameAsFirstInput() Location { return Unallocated(PolicySameAsFirstInput) }

// RegisterOrConstant returns the constant location of instr if it is a
// constant, and a register requirement otherwise.
func RegisterOrConstant(instr *ir.Instruction) Location {
	if instr.IsConstant() {
		return ConstantLocation(instr)
	}
	return RequiresRegister()
}

// FpuRegisterOrConstant is like RegisterOrConstant for floating point values.
func FpuRegisterOrConstant(instr *ir.Instruction) Location {
	if instr.IsConstant() {
		return ConstantLocation(instr)
	}
	return RequiresFpuRegister()
}

// Kind returns the kind of this location.
func (l Location) Kind() LocationKind { return l.kind }

// Policy returns the policy of an unallocated location.
func (l Location) Policy() Policy { return l.policy }

// IsValid returns false for NoLocation.
func (l Location) IsValid() bool { return l.kind != LocationInvalid }

// IsInvalid returns true for NoLocation.
func (l Location) IsInvalid() bool { return l.kind == LocationInvalid }

// IsConstant returns true for a constant location.
func (l Location) IsConstant() bool { return l.kind == LocationConstant }

// IsRegister returns true for a single core register.
func (l Location) IsRegister() bool { return l.kind == LocationRegister }

// IsRegisterPair returns true for a core register pair.
func (l Location) IsRegisterPair() bool { return l.kind == LocationRegisterPair }

// IsFpuRegister returns true for a single floating point register.
func (l Location) IsFpuRegister() bool { return l.kind == LocationFpuRegister }

// IsFpuRegisterPair returns true for a floating point register pair.
func (l Location) IsFpuRegisterPair() bool { return l.kind == LocationFpuRegisterPair }

// IsStackSlot returns true for a 32-bit stack slot.
func (l Location) IsStackSlot() bool { return l.kind == LocationStackSlot }

// IsDoubleStackSlot returns true for a 64-bit stack slot.
func (l Location) IsDoubleStackSlot() bool { return l.kind == LocationDoubleStackSlot }

// IsSIMDStackSlot returns true for a 128-bit stack slot.
func (l Location) IsSIMDStackSlot() bool { return l.kind == LocationSIMDStackSlot }

// IsUnallocated returns true for a location still to be chosen by the register allocator.
func (l Location) IsUnallocated() bool { return l.kind == LocationUnallocated }

// IsRegisterKind returns true for any register or register pair.
func (l Location) IsRegisterKind() bool {
	switch l.kind {
	case LocationRegister, LocationRegisterPair, LocationFpuRegister, LocationFpuRegisterPair:
		return true
	}
	return false
}

// IsStackKind returns true for any stack slot.
func (l Location) IsStackKind() bool {
	switch l.kind {
	case LocationStackSlot, LocationDoubleStackSlot, LocationSIMDStackSlot:
		return true
	}
	return false
}

// IsPair returns true for register pairs.
func (l Location) IsPair() bool {
	return l.kind == LocationRegisterPair || l.kind == LocationFpuRegisterPair
}

// Reg returns the register of a single register location.
func (l Location) Reg() int {
	if l.kind != LocationRegister && l.kind != LocationFpuRegister {
		panic("BUG: not a register: " + l.String())
	}
	return int(l.reg)
}

// LowReg returns the low register of a pair.
func (l Location) LowReg() int {
	if !l.IsPair() {
		panic("BUG: not a pair: " + l.String())
	}
	return int(l.reg)
}

// HighReg returns the high register of a pair.
func (l Location) HighReg() int {
	if !l.IsPair() {
		panic("BUG: not a pair: " + l.String())
	}
	return int(l.high)
}

// StackIndex returns the byte offset from SP of a stack slot.
func (l Location) StackIndex() int {
	if !l.IsStackKind() {
		panic("BUG: not a stack slot: " + l.String())
	}
	return int(l.index)
}

// HighStackIndex returns the byte offset of the high word of a double stack slot.
func (l Location) HighStackIndex(wordSize int) int {
	if l.kind != LocationDoubleStackSlot {
		panic("BUG: not a double stack slot: " + l.String())
	}
	return int(l.index) + wordSize
}

// Constant returns the instruction defining the value of a constant location.
func (l Location) Constant() *ir.Instruction {
	if l.kind != LocationConstant {
		panic("BUG: not a constant: " + l.String())
	}
	return l.constant
}

// Low returns the location of the low word of a pair or a double stack slot.
func (l Location) Low() Location {
	switch l.kind {
	case LocationRegisterPair:
		return RegisterLocation(int(l.reg))
	case LocationFpuRegisterPair:
		return FpuRegisterLocation(int(l.reg))
	case LocationDoubleStackSlot:
		return StackSlot(int(l.index))
	}
	panic("BUG: no low half: " + l.String())
}

// High returns the location of the high word of a pair or a double stack slot.
func (l Location) High() Location {
	switch l.kind {
	case LocationRegisterPair:
		return RegisterLocation(int(l.high))
	case LocationFpuRegisterPair:
		return FpuRegisterLocation(int(l.high))
	case LocationDoubleStackSlot:
		return StackSlot(int(l.index) + 4)
	}
	panic("BUG: no high half: " + l.String())
}

// Is64Bit returns true for the locations holding two words.
func (l Location) Is64Bit() bool {
	return l.IsPair() || l.kind == LocationDoubleStackSlot
}

// Equals returns true if l and other are the same location.
func (l Location) Equals(other Location) bool { return l == other }

func (l Location) stackSize() int32 {
	switch l.kind {
	case LocationStackSlot:
		return 4
	case LocationDoubleStackSlot:
		return 8
	case LocationSIMDStackSlot:
		return 16
	}
	return 0
}

func (l Location) isCore() bool {
	return l.kind == LocationRegister || l.kind == LocationRegisterPair
}

func (l Location) isFpu() bool {
	return l.kind == LocationFpuRegister || l.kind == LocationFpuRegisterPair
}

func (l Location) regs() (int16, int16) {
	if l.IsPair() {
		return l.reg, l.high
	}
	return l.reg, l.reg
}

// OverlapsWith returns true if writing to l may change the value stored in other.
func (l Location) OverlapsWith(other Location) bool {
	if l == other {
		return l.kind != LocationInvalid && l.kind != LocationConstant && l.kind != LocationUnallocated
	}
	switch {
	case l.IsStackKind() && other.IsStackKind():
		return l.index < other.index+other.stackSize() && other.index < l.index+l.stackSize()
	case l.isCore() && other.isCore(), l.isFpu() && other.isFpu():
		a1, a2 := l.regs()
		b1, b2 := other.regs()
		return a1 == b1 || a1 == b2 || a2 == b1 || a2 == b2
	}
	return false
}

// Contains returns true if other is fully stored inside l.
func (l Location) Contains(other Location) bool {
	if l == other {
		return true
	}
	switch {
	case l.IsStackKind() && other.IsStackKind():
		return l.index <= other.index && other.index+other.stackSize() <= l.index+l.stackSize()
	case l.IsPair() && !other.IsPair():
		return (l.isCore() && other.kind == LocationRegister || l.isFpu() && other.kind == LocationFpuRegister) &&
			(other.reg == l.reg || other.reg == l.high)
	}
	return false
}

// String implements fmt.Stringer.
func (l Location) String() string {
	switch l.kind {
	case LocationInvalid:
		return "<no location>"
	case LocationConstant:
		return fmt.Sprintf("#%s", l.constant)
	case LocationRegister:
		return fmt.Sprintf("r%d", l.reg)
	case LocationRegisterPair:
		return fmt.Sprintf("(r%d,r%d)", l.reg, l.high)
	case LocationFpuRegister:
		return fmt.Sprintf("f%d", l.reg)
	case LocationFpuRegisterPair:
		return fmt.Sprintf("(f%d,f%d)", l.reg, l.high)
	case LocationStackSlot:
		return fmt.Sprintf("[sp+%d]", l.index)
	case LocationDoubleStackSlot:
		return fmt.Sprintf("[sp+%d]:64", l.index)
	case LocationSIMDStackSlot:
		return fmt.Sprintf("[sp+%d]:128", l.index)
	case LocationUnallocated:
		return fmt.Sprintf("<%s>", l.policy)
	}
	return "unknown"
}

// WithStackOffset returns l with its stack index shifted by delta. Non stack
// locations are returned unchanged.
func (l Location) WithStackOffset(delta int) Location {
	if l.IsStackKind() {
		l.index += int32(delta)
	}
	return l
}
