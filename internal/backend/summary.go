package backend

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/tetratelabs/irgen/internal/ir"
)

// CallKind tells whether the code of an instruction calls into the runtime.
type CallKind byte

const (
	// CallKindNoCall never calls.
	CallKindNoCall CallKind = iota
	// CallKindOnSlowPath calls only from a slow path: live registers are
	// saved and restored around the call by the slow path.
	CallKindOnSlowPath
	// CallKindOnMainOnly always calls: every caller-save register is clobbered.
	CallKindOnMainOnly
)

// String implements fmt.Stringer.
func (c CallKind) String() string {
	switch c {
	case CallKindNoCall:
		return "no-call"
	case CallKindOnSlowPath:
		return "call-on-slow-path"
	case CallKindOnMainOnly:
		return "call-on-main-only"
	}
	return "unknown"
}

// RegisterSet is a set of core and floating point registers.
type RegisterSet struct {
	Core, Fpu uint32
}

// NewRegisterSet returns the set of the given core and fpu registers.
func NewRegisterSet(core, fpu []int) (s RegisterSet) {
	for _, r := range core {
		s.Core |= 1 << r
	}
	for _, r := range fpu {
		s.Fpu |= 1 << r
	}
	return
}

// Add adds the registers of loc to the set. Non-register locations are ignored.
func (s *RegisterSet) Add(loc Location) {
	switch loc.Kind() {
	case LocationRegister:
		s.Core |= 1 << loc.Reg()
	case LocationRegisterPair:
		s.Core |= 1<<loc.LowReg() | 1<<loc.HighReg()
	case LocationFpuRegister:
		s.Fpu |= 1 << loc.Reg()
	case LocationFpuRegisterPair:
		s.Fpu |= 1<<loc.LowReg() | 1<<loc.HighReg()
	}
}

// Remove removes the registers of loc from the set.
func (s *RegisterSet) Remove(loc Location) {
	var t RegisterSet
	t.Add(loc)
	*s = s.Subtract(t)
}

// Overlaps returns true if any register of loc is in the set.
func (s RegisterSet) Overlaps(loc Location) bool {
	var t RegisterSet
	t.Add(loc)
	return s.Core&t.Core != 0 || s.Fpu&t.Fpu != 0
}

// ContainsCore returns true if the core register r is in the set.
func (s RegisterSet) ContainsCore(r int) bool { return s.Core&(1<<r) != 0 }

// ContainsFpu returns true if the floating point register r is in the set.
func (s RegisterSet) ContainsFpu(r int) bool { return s.Fpu&(1<<r) != 0 }

// Union returns s | o.
func (s RegisterSet) Union(o RegisterSet) RegisterSet {
	return RegisterSet{Core: s.Core | o.Core, Fpu: s.Fpu | o.Fpu}
}

// Intersect returns s & o.
func (s RegisterSet) Intersect(o RegisterSet) RegisterSet {
	return RegisterSet{Core: s.Core & o.Core, Fpu: s.Fpu & o.Fpu}
}

// Subtract returns s &^ o.
func (s RegisterSet) Subtract(o RegisterSet) RegisterSet {
	return RegisterSet{Core: s.Core &^ o.Core, Fpu: s.Fpu &^ o.Fpu}
}

// IsEmpty returns true for the empty set.
func (s RegisterSet) IsEmpty() bool { return s.Core == 0 && s.Fpu == 0 }

// CoreCount returns the number of core registers in the set.
func (s RegisterSet) CoreCount() int { return bits.OnesCount32(s.Core) }

// FpuCount returns the number of floating point registers in the set.
func (s RegisterSet) FpuCount() int { return bits.OnesCount32(s.Fpu) }

// CoreRegisters returns the core registers in ascending order.
func (s RegisterSet) CoreRegisters() []int { return maskToRegs(s.Core) }

// FpuRegisters returns the floating point registers in ascending order.
func (s RegisterSet) FpuRegisters() []int { return maskToRegs(s.Fpu) }

func maskToRegs(m uint32) (ret []int) {
	for m != 0 {
		r := bits.TrailingZeros32(m)
		ret = append(ret, r)
		m &^= 1 << r
	}
	return
}

// String implements fmt.Stringer.
func (s RegisterSet) String() string {
	return fmt.Sprintf("{core=%#x, fpu=%#x}", s.Core, s.Fpu)
}

// LocationSummary describes where the inputs, output and temporaries of one
// instruction live. The locations builder declares its shape with
// constraints, then Freeze is called; afterwards only the register allocator
// may resolve the unallocated locations, and the shape never changes.
type LocationSummary struct {
	instr          *ir.Instruction
	inputs         []Location
	temps          []Location
	output         Location
	outputOverlaps bool
	callKind       CallKind
	frozen         bool

	liveRegisters             RegisterSet
	customSlowPathCallerSaves RegisterSet
	hasCustomCallerSaves      bool
	intrinsified              bool
	stackMask                 BitVector
}

// NewLocationSummary returns a summary for instr with one invalid input per input of instr.
func NewLocationSummary(instr *ir.Instruction, callKind CallKind) *LocationSummary {
	return &LocationSummary{
		instr:          instr,
		inputs:         make([]Location, len(instr.Inputs())),
		callKind:       callKind,
		outputOverlaps: true,
	}
}

func (s *LocationSummary) mustNotBeFrozen() {
	if s.frozen {
		panic(fmt.Sprintf("BUG: the shape of the summary of %s is frozen", s.instr))
	}
}

// Instruction returns the instruction this summary describes.
func (s *LocationSummary) Instruction() *ir.Instruction { return s.instr }

// SetInAt sets the location of the i-th input.
func (s *LocationSummary) SetInAt(i int, loc Location) {
	s.mustNotBeFrozen()
	s.inputs[i] = loc
}

// InAt returns the location of the i-th input.
func (s *LocationSummary) InAt(i int) Location { return s.inputs[i] }

// InputCount returns the number of inputs.
func (s *LocationSummary) InputCount() int { return len(s.inputs) }

// SetOut sets the location of the output. overlaps tells whether the output
// may be written before all inputs are read, forbidding it to share a
// register with an input.
func (s *LocationSummary) SetOut(loc Location, overlaps bool) {
	s.mustNotBeFrozen()
	s.output, s.outputOverlaps = loc, overlaps
}

// Out returns the location of the output.
func (s *LocationSummary) Out() Location { return s.output }

// OutputCanOverlapWithInputs returns true if the output must not share a register with an input.
func (s *LocationSummary) OutputCanOverlapWithInputs() bool { return s.outputOverlaps }

// AddTemp reserves a temporary for the code of this instruction.
func (s *LocationSummary) AddTemp(loc Location) {
	s.mustNotBeFrozen()
	s.temps = append(s.temps, loc)
}

// GetTemp returns the i-th temporary.
func (s *LocationSummary) GetTemp(i int) Location { return s.temps[i] }

// GetTempCount returns the number of temporaries.
func (s *LocationSummary) GetTempCount() int { return len(s.temps) }

// CallKind returns the call kind.
func (s *LocationSummary) CallKind() CallKind { return s.callKind }

// CanCall returns true if the code may call into the runtime.
func (s *LocationSummary) CanCall() bool { return s.callKind != CallKindNoCall }

// WillCall returns true if the main path calls into the runtime.
func (s *LocationSummary) WillCall() bool { return s.callKind == CallKindOnMainOnly }

// OnlyCallsOnSlowPath returns true if only the slow path calls into the runtime.
func (s *LocationSummary) OnlyCallsOnSlowPath() bool { return s.callKind == CallKindOnSlowPath }

// SetCustomSlowPathCallerSaves declares the registers the slow path of this
// instruction may clobber without saving them. Only valid with CallKindOnSlowPath.
func (s *LocationSummary) SetCustomSlowPathCallerSaves(set RegisterSet) {
	s.mustNotBeFrozen()
	if s.callKind != CallKindOnSlowPath {
		panic("BUG: custom slow path caller saves without a slow path call")
	}
	s.customSlowPathCallerSaves, s.hasCustomCallerSaves = set, true
}

// CustomSlowPathCallerSaves returns the registers set with SetCustomSlowPathCallerSaves.
func (s *LocationSummary) CustomSlowPathCallerSaves() RegisterSet { return s.customSlowPathCallerSaves }

// HasCustomSlowPathCallingConvention returns true if SetCustomSlowPathCallerSaves was called.
func (s *LocationSummary) HasCustomSlowPathCallingConvention() bool { return s.hasCustomCallerSaves }

// SetIntrinsified marks the instruction as lowered without following its summary.
func (s *LocationSummary) SetIntrinsified() { s.intrinsified = true }

// Intrinsified returns true if SetIntrinsified was called.
func (s *LocationSummary) Intrinsified() bool { return s.intrinsified }

// Freeze ends locations building for this summary.
func (s *LocationSummary) Freeze() { s.frozen = true }

// IsFrozen returns true once Freeze was called.
func (s *LocationSummary) IsFrozen() bool { return s.frozen }

func (s *LocationSummary) resolve(old *Location, loc Location) {
	if !s.frozen {
		panic("BUG: resolving locations before locations building completed")
	}
	if !old.IsUnallocated() && *old != loc {
		panic(fmt.Sprintf("BUG: %s: cannot change fixed location %s to %s", s.instr, *old, loc))
	}
	if loc.IsUnallocated() || loc.IsInvalid() {
		panic(fmt.Sprintf("BUG: %s: resolving to %s", s.instr, loc))
	}
	*old = loc
}

// ResolveInAt replaces the unallocated i-th input with the allocated loc.
func (s *LocationSummary) ResolveInAt(i int, loc Location) { s.resolve(&s.inputs[i], loc) }

// ResolveOut replaces the unallocated output with the allocated loc.
func (s *LocationSummary) ResolveOut(loc Location) { s.resolve(&s.output, loc) }

// ResolveTempAt replaces the unallocated i-th temporary with the allocated loc.
func (s *LocationSummary) ResolveTempAt(i int, loc Location) { s.resolve(&s.temps[i], loc) }

// SetLiveRegisters records the registers live across this instruction which
// its slow path must preserve.
func (s *LocationSummary) SetLiveRegisters(set RegisterSet) { s.liveRegisters = set }

// LiveRegisters returns the registers set with SetLiveRegisters.
func (s *LocationSummary) LiveRegisters() RegisterSet { return s.liveRegisters }

// SetStackBit marks the stack slot at byte offset index as holding a reference.
func (s *LocationSummary) SetStackBit(index int) { s.stackMask.Set(index / 4) }

// StackMask returns the reference holding stack slots, one bit per word.
func (s *LocationSummary) StackMask() BitVector { return s.stackMask }

// ReferenceRegisters returns the registers of the inputs holding references.
func (s *LocationSummary) ReferenceRegisters() (set RegisterSet) {
	for i, loc := range s.inputs {
		if s.instr.InputAt(i).Type() == ir.TypeReference && loc.IsRegister() {
			set.Add(loc)
		}
	}
	return
}

// String implements fmt.Stringer.
func (s *LocationSummary) String() string {
	var sb strings.Builder
	sb.WriteString("in=[")
	for i, l := range s.inputs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(l.String())
	}
	fmt.Fprintf(&sb, "] out=%s", s.output)
	if len(s.temps) > 0 {
		sb.WriteString(" temps=[")
		for i, l := range s.temps {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(l.String())
		}
		sb.WriteString("]")
	}
	fmt.Fprintf(&sb, " %s", s.callKind)
	return sb.String()
}

// BitVector is a growable set of small integers.
type BitVector []uint32

// Set adds i to the set.
func (b *BitVector) Set(i int) {
	for len(*b) <= i/32 {
		*b = append(*b, 0)
	}
	(*b)[i/32] |= 1 << (i % 32)
}

// IsSet returns true if i is in the set.
func (b BitVector) IsSet(i int) bool {
	return i/32 < len(b) && b[i/32]&(1<<(i%32)) != 0
}

// NumBits returns one past the highest set bit.
func (b BitVector) NumBits() int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0 {
			return i*32 + 32 - bits.LeadingZeros32(b[i])
		}
	}
	return 0
}

// Clone returns a copy of b.
func (b BitVector) Clone() BitVector { return append(BitVector(nil), b...) }
