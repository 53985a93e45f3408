package mips32

import (
	"github.com/tetratelabs/irgen/internal/asm"
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/runtime"
)

// loadInstruction returns the load of a 32-bit or narrower value of typ,
// extended to 32 bits.
func loadInstruction(typ ir.DataType) asm.Instruction {
	switch typ {
	case ir.TypeBool, ir.TypeUint8:
		return asm_mips32.LBU
	case ir.TypeInt8:
		return asm_mips32.LB
	case ir.TypeUint16:
		return asm_mips32.LHU
	case ir.TypeInt16:
		return asm_mips32.LH
	}
	return asm_mips32.LW
}

func storeInstruction(typ ir.DataType) asm.Instruction {
	switch typ.Size() {
	case 1:
		return asm_mips32.SB
	case 2:
		return asm_mips32.SH
	}
	return asm_mips32.SW
}

// loadValue loads the value of typ at base+off, which points into obj, to
// out and returns the first memory access.
func (m *machine) loadValue(instr *ir.Instruction, typ ir.DataType, obj, base asm.Register, off int64, out backend.Location) asm.Node {
	switch {
	case typ == ir.TypeReference && m.emitsReadBarrier():
		return m.loadReferenceWithBakerBarrier(instr, obj, base, off, out.Reg())
	case typ == ir.TypeInt64:
		first := m.load(asm_mips32.LW, base, off, lowReg(out))
		m.load(asm_mips32.LW, base, off+4, highReg(out))
		return first
	case typ.IsFloatingPoint():
		return m.loadFpu(typ, base, off, reg(out))
	}
	return m.load(loadInstruction(typ), base, off, reg(out))
}

// storeValue stores the value of typ at val to base+off and returns the
// first memory access. Constants are loaded into tmp and t9.
func (m *machine) storeValue(typ ir.DataType, val backend.Location, base asm.Register, off int64) asm.Node {
	switch {
	case typ == ir.TypeInt64:
		lo, hi := m.pairOperand(val, regTMP, regT9)
		first := m.store(asm_mips32.SW, lo, base, off)
		m.store(asm_mips32.SW, hi, base, off+4)
		return first
	case typ.IsFloatingPoint():
		return m.storeFpu(typ, reg(val), base, off)
	}
	return m.store(storeInstruction(typ), m.operand(val, regTMP), base, off)
}

// markGCCard dirties the card of obj after value was stored into it. The
// card table base is biased so that its low byte is the dirty value.
//
//	lw    tmp, card(tr)
//	srl   at, obj, 10
//	addu  at, tmp, at
//	sb    tmp, 0(at)
func (m *machine) markGCCard(obj, value asm.Register, valueCanBeNull bool) {
	done := &label{}
	if valueCanBeNull {
		m.beqz(value, done)
	}
	m.asm.CompileMemoryToRegister(asm_mips32.LW, regTR, runtime.ThreadCardTableOffset, regTMP)
	m.asm.CompileRegisterAndConstToRegister(asm_mips32.SRL, obj, runtime.CardShift, regAT)
	m.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, regTMP, regAT, regAT)
	m.asm.CompileRegisterToMemory(asm_mips32.SB, regTMP, regAT, 0)
	if valueCanBeNull {
		m.bind(done)
	}
}

// VisitInstanceFieldGet implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitInstanceFieldGet(instr *ir.Instruction) { v.fieldGet(instr) }

// VisitStaticFieldGet implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitStaticFieldGet(instr *ir.Instruction) { v.fieldGet(instr) }

// VisitInstanceFieldSet implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitInstanceFieldSet(instr *ir.Instruction) { v.fieldSet(instr) }

// VisitStaticFieldSet implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitStaticFieldSet(instr *ir.Instruction) { v.fieldSet(instr) }

func (v *instructionVisitor) fieldGet(instr *ir.Instruction) {
	s := v.summary(instr)
	obj := reg(s.InAt(0))
	f := instr.FieldData()
	first := v.loadValue(instr, instr.Type(), obj, obj, int64(f.Offset), s.Out())
	v.maybeRecordImplicitNullCheck(instr, first)
	if f.Volatile {
		v.asm.CompileStandAlone(asm_mips32.SYNC)
	}
}

func (v *instructionVisitor) fieldSet(instr *ir.Instruction) {
	s := v.summary(instr)
	obj, val := reg(s.InAt(0)), s.InAt(1)
	f := instr.FieldData()
	if f.Volatile {
		v.asm.CompileStandAlone(asm_mips32.SYNC)
	}
	first := v.storeValue(f.Type, val, obj, int64(f.Offset))
	v.maybeRecordImplicitNullCheck(instr, first)
	if f.Type == ir.TypeReference && !val.IsConstant() {
		v.markGCCard(obj, reg(val), instr.ValueCanBeNull())
	}
	if f.Volatile {
		v.asm.CompileStandAlone(asm_mips32.SYNC)
	}
}

// arrayAddress returns a base register and an offset addressing the
// element idx of arr, using at for a register index.
func (m *machine) arrayAddress(arr asm.Register, idx backend.Location, typ ir.DataType) (asm.Register, int64) {
	data := int64(runtime.ArrayDataOffset(typ))
	shift := int64(typ.SizeShift())
	if idx.IsConstant() {
		return arr, data + int64(constant32(idx))<<shift
	}
	if shift == 0 {
		m.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, arr, reg(idx), regAT)
		return regAT, data
	}
	m.asm.CompileRegisterAndConstToRegister(asm_mips32.SLL, reg(idx), shift, regAT)
	m.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, arr, regAT, regAT)
	return regAT, data
}

// VisitArrayGet implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitArrayGet(instr *ir.Instruction) {
	s := v.summary(instr)
	arr, typ := reg(s.InAt(0)), instr.Type()
	base, off := v.arrayAddress(arr, s.InAt(1), typ)
	v.loadValue(instr, typ, arr, base, off, s.Out())
}

// VisitArraySet implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitArraySet(instr *ir.Instruction) {
	s := v.summary(instr)
	arr, idx, val := reg(s.InAt(0)), s.InAt(1), s.InAt(2)
	typ := instr.ComponentType()
	if typ != ir.TypeReference || val.IsConstant() {
		base, off := v.arrayAddress(arr, idx, typ)
		v.storeValue(typ, val, base, off)
		return
	}

	value := reg(val)
	if !instr.NeedsTypeCheck() {
		base, off := v.arrayAddress(arr, idx, typ)
		v.store(asm_mips32.SW, value, base, off)
		v.markGCCard(arr, value, instr.ValueCanBeNull())
		return
	}

	sp := v.addSlowPath(&arraySetSlowPath{slowPathCode: v.newSlowPathCode(instr)})
	done := &label{}
	if instr.ValueCanBeNull() {
		notNull := &label{}
		v.bnez(value, notNull)
		base, off := v.arrayAddress(arr, idx, typ)
		v.store(asm_mips32.SW, regZero, base, off)
		v.b(done)
		v.bind(notNull)
	}

	if v.emitsReadBarrier() {
		// Comparing classes loaded without barrier may fail spuriously while
		// the GC is marking, so the runtime checks instead.
		v.b(enter(sp))
	} else {
		v.asm.CompileMemoryToRegister(asm_mips32.LW, arr, runtime.ObjectClassOffset, regT9)
		v.asm.CompileMemoryToRegister(asm_mips32.LW, regT9, runtime.ClassComponentTypeOffset, regT9)
		v.asm.CompileMemoryToRegister(asm_mips32.LW, value, runtime.ObjectClassOffset, regAT)
		enter(sp).target(v.asm.CompileTwoRegistersToBranch(asm_mips32.BNE, regT9, regAT))
		v.nop()
	}
	base, off := v.arrayAddress(arr, idx, typ)
	v.store(asm_mips32.SW, value, base, off)
	v.markGCCard(arr, value, false)
	v.bind(done)
	v.bindExit(sp)
}

// VisitArrayLength implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitArrayLength(instr *ir.Instruction) {
	s := v.summary(instr)
	n := v.load(asm_mips32.LW, reg(s.InAt(0)), runtime.ArrayLengthOffset, reg(s.Out()))
	v.maybeRecordImplicitNullCheck(instr, n)
}
