package mips32

import (
	"github.com/tetratelabs/irgen/internal/asm"
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
)

// bc1 branches to l on the FPU condition flag, true or false.
func (m *machine) bc1(flag bool, l *label) {
	inst := asm_mips32.BC1F
	if flag {
		inst = asm_mips32.BC1T
	}
	l.target(m.asm.CompileJump(inst))
	m.nop()
}

// VisitCompare implements backend.InstructionVisitor.
//
// The result is -1, 0 or 1. For floating point operands an unordered
// comparison gives -1 with BiasLt and 1 otherwise.
func (v *instructionVisitor) VisitCompare(instr *ir.Instruction) {
	s := v.summary(instr)
	x, y, out := s.InAt(0), s.InAt(1), reg(s.Out())
	xv, _ := instr.BinaryData()
	done := &label{}
	switch typ := xv.Type().Kind(); {
	case typ.IsFloatingPoint():
		lt := fpuOp(typ, asm_mips32.C_OLT_S, asm_mips32.C_OLT_D)
		eq := fpuOp(typ, asm_mips32.C_EQ_S, asm_mips32.C_EQ_D)
		first, last, a, b := int64(-1), int64(1), reg(x), reg(y)
		if instr.Bias() == ir.BiasLt {
			first, last, a, b = 1, -1, reg(y), reg(x)
		}
		v.asm.CompileTwoRegistersToNone(lt, a, b)
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, regZero, first, out)
		v.bc1(true, done)
		v.asm.CompileTwoRegistersToNone(eq, reg(x), reg(y))
		v.move(out, regZero)
		v.bc1(true, done)
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, regZero, last, out)
	case typ == ir.TypeInt64:
		v.compareWords(asm_mips32.SLT, highReg(x), highReg(y), out)
		v.bnez(out, done)
		v.compareWords(asm_mips32.SLTU, lowReg(x), lowReg(y), out)
	default:
		v.compareWords(asm_mips32.SLT, reg(x), v.operand(y, regTMP), out)
	}
	v.bind(done)
}

// compareWords sets out to -1, 0 or 1 comparing x to y with slt or sltu.
func (v *instructionVisitor) compareWords(slt asm.Instruction, x, y, out asm.Register) {
	v.asm.CompileTwoRegistersToRegister(slt, x, y, regAT)
	v.asm.CompileTwoRegistersToRegister(slt, y, x, out)
	v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, out, regAT, out)
}

// VisitEqual implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitEqual(instr *ir.Instruction) { v.condition(instr) }

// VisitNotEqual implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitNotEqual(instr *ir.Instruction) { v.condition(instr) }

// VisitLessThan implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitLessThan(instr *ir.Instruction) { v.condition(instr) }

// VisitLessThanOrEqual implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitLessThanOrEqual(instr *ir.Instruction) { v.condition(instr) }

// VisitGreaterThan implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitGreaterThan(instr *ir.Instruction) { v.condition(instr) }

// VisitGreaterThanOrEqual implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitGreaterThanOrEqual(instr *ir.Instruction) { v.condition(instr) }

// VisitBelow implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitBelow(instr *ir.Instruction) { v.condition(instr) }

// VisitBelowOrEqual implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitBelowOrEqual(instr *ir.Instruction) { v.condition(instr) }

// VisitAbove implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitAbove(instr *ir.Instruction) { v.condition(instr) }

// VisitAboveOrEqual implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitAboveOrEqual(instr *ir.Instruction) { v.condition(instr) }

func (v *instructionVisitor) condition(instr *ir.Instruction) {
	v.materializeCondition(instr, reg(v.summary(instr).Out()))
}

// materializeCondition sets dst to 1 if cond holds and to 0 otherwise. dst
// may be at, which the sequences only write last.
func (v *instructionVisitor) materializeCondition(cond *ir.Instruction, dst asm.Register) {
	s := v.summary(cond)
	x, y := s.InAt(0), s.InAt(1)
	switch typ := cond.InputAt(0).Type().Kind(); {
	case typ.IsFloatingPoint():
		inst, a, b, negated := fpuCondition(cond.Opcode(), cond.Bias(), typ, reg(x), reg(y))
		v.asm.CompileTwoRegistersToNone(inst, a, b)
		done := &label{}
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, regZero, 1, dst)
		v.bc1(!negated, done)
		v.move(dst, regZero)
		v.bind(done)
	case typ == ir.TypeInt64:
		v.longCondition(cond.Opcode(), lowReg(x), highReg(x), lowReg(y), highReg(y), dst)
	default:
		v.intCondition(cond.Opcode(), reg(x), y, dst)
	}
}

// intCondition materializes the 32-bit condition op of x and y into dst.
func (v *instructionVisitor) intCondition(op ir.Opcode, x asm.Register, y backend.Location, dst asm.Register) {
	a := v.asm
	c, isConst := int64(0), y.IsConstant()
	if isConst {
		c = int64(constant32(y))
	}
	switch op {
	case ir.OpEqual, ir.OpNotEqual:
		switch {
		case isConst && c == 0:
			v.move(dst, x)
		case isConst && fitsUint16(c):
			a.CompileRegisterAndConstToRegister(asm_mips32.XORI, x, c, dst)
		default:
			a.CompileTwoRegistersToRegister(asm_mips32.XOR, x, v.operand(y, regTMP), dst)
		}
		if op == ir.OpEqual {
			a.CompileRegisterAndConstToRegister(asm_mips32.SLTIU, dst, 1, dst)
		} else {
			a.CompileTwoRegistersToRegister(asm_mips32.SLTU, regZero, dst, dst)
		}
	case ir.OpLessThan, ir.OpGreaterThanOrEqual:
		v.setLess(asm_mips32.SLT, asm_mips32.SLTI, x, y, dst)
		if op == ir.OpGreaterThanOrEqual {
			a.CompileRegisterAndConstToRegister(asm_mips32.XORI, dst, 1, dst)
		}
	case ir.OpBelow, ir.OpAboveOrEqual:
		v.setLess(asm_mips32.SLTU, asm_mips32.SLTIU, x, y, dst)
		if op == ir.OpAboveOrEqual {
			a.CompileRegisterAndConstToRegister(asm_mips32.XORI, dst, 1, dst)
		}
	case ir.OpGreaterThan, ir.OpLessThanOrEqual:
		a.CompileTwoRegistersToRegister(asm_mips32.SLT, v.operand(y, regTMP), x, dst)
		if op == ir.OpLessThanOrEqual {
			a.CompileRegisterAndConstToRegister(asm_mips32.XORI, dst, 1, dst)
		}
	case ir.OpAbove, ir.OpBelowOrEqual:
		a.CompileTwoRegistersToRegister(asm_mips32.SLTU, v.operand(y, regTMP), x, dst)
		if op == ir.OpBelowOrEqual {
			a.CompileRegisterAndConstToRegister(asm_mips32.XORI, dst, 1, dst)
		}
	default:
		panic("BUG: not a condition: " + op.String())
	}
}

// setLess emits dst = x < y with rr, or with the immediate form ri for
// small constants. sltiu sign-extends its immediate as well.
func (v *instructionVisitor) setLess(rr, ri asm.Instruction, x asm.Register, y backend.Location, dst asm.Register) {
	if y.IsConstant() {
		if c := int64(constant32(y)); fitsInt16(c) {
			v.asm.CompileRegisterAndConstToRegister(ri, x, c, dst)
			return
		}
	}
	v.asm.CompileTwoRegistersToRegister(rr, x, v.operand(y, regTMP), dst)
}

// longCondition materializes the 64-bit condition op into dst with tmp and
// t9 as scratch.
func (v *instructionVisitor) longCondition(op ir.Opcode, xLo, xHi, yLo, yHi, dst asm.Register) {
	a := v.asm
	switch op {
	case ir.OpEqual, ir.OpNotEqual:
		a.CompileTwoRegistersToRegister(asm_mips32.XOR, xLo, yLo, regTMP)
		a.CompileTwoRegistersToRegister(asm_mips32.XOR, xHi, yHi, regT9)
		a.CompileTwoRegistersToRegister(asm_mips32.OR, regTMP, regT9, dst)
		if op == ir.OpEqual {
			a.CompileRegisterAndConstToRegister(asm_mips32.SLTIU, dst, 1, dst)
		} else {
			a.CompileTwoRegistersToRegister(asm_mips32.SLTU, regZero, dst, dst)
		}
		return
	}

	var swap, negate bool
	hi := asm_mips32.SLT
	switch op {
	case ir.OpLessThan:
	case ir.OpGreaterThanOrEqual:
		negate = true
	case ir.OpGreaterThan:
		swap = true
	case ir.OpLessThanOrEqual:
		swap, negate = true, true
	case ir.OpBelow:
		hi = asm_mips32.SLTU
	case ir.OpAboveOrEqual:
		hi, negate = asm_mips32.SLTU, true
	case ir.OpAbove:
		hi, swap = asm_mips32.SLTU, true
	case ir.OpBelowOrEqual:
		hi, swap, negate = asm_mips32.SLTU, true, true
	default:
		panic("BUG: not a condition: " + op.String())
	}
	if swap {
		xLo, xHi, yLo, yHi = yLo, yHi, xLo, xHi
	}
	// x < y iff xHi < yHi, or the high halves are equal and xLo < yLo unsigned.
	a.CompileTwoRegistersToRegister(hi, xHi, yHi, regTMP)
	a.CompileTwoRegistersToRegister(asm_mips32.XOR, xHi, yHi, regT9)
	a.CompileRegisterAndConstToRegister(asm_mips32.SLTIU, regT9, 1, regT9)
	a.CompileTwoRegistersToRegister(asm_mips32.SLTU, xLo, yLo, dst)
	a.CompileTwoRegistersToRegister(asm_mips32.AND, dst, regT9, dst)
	a.CompileTwoRegistersToRegister(asm_mips32.OR, dst, regTMP, dst)
	if negate {
		a.CompileRegisterAndConstToRegister(asm_mips32.XORI, dst, 1, dst)
	}
}

// fpuCondition returns the FPU comparison of a and b, in that order, whose
// flag is the condition op, or its negation if negated is set. Unordered
// operands make LessThan and LessThanOrEqual true only with BiasLt, and
// GreaterThan and GreaterThanOrEqual true only with BiasGt or BiasNone.
func fpuCondition(op ir.Opcode, bias ir.ComparisonBias, typ ir.DataType, x, y asm.Register) (inst asm.Instruction, a, b asm.Register, negated bool) {
	gt := bias != ir.BiasLt
	pick := func(ordered bool, s, d, us, ud asm.Instruction) asm.Instruction {
		if ordered {
			return fpuOp(typ, s, d)
		}
		return fpuOp(typ, us, ud)
	}
	switch op {
	case ir.OpEqual:
		return fpuOp(typ, asm_mips32.C_EQ_S, asm_mips32.C_EQ_D), x, y, false
	case ir.OpNotEqual:
		return fpuOp(typ, asm_mips32.C_EQ_S, asm_mips32.C_EQ_D), x, y, true
	case ir.OpLessThan:
		return pick(gt, asm_mips32.C_OLT_S, asm_mips32.C_OLT_D, asm_mips32.C_ULT_S, asm_mips32.C_ULT_D), x, y, false
	case ir.OpLessThanOrEqual:
		return pick(gt, asm_mips32.C_OLE_S, asm_mips32.C_OLE_D, asm_mips32.C_ULE_S, asm_mips32.C_ULE_D), x, y, false
	case ir.OpGreaterThan:
		return pick(!gt, asm_mips32.C_OLT_S, asm_mips32.C_OLT_D, asm_mips32.C_ULT_S, asm_mips32.C_ULT_D), y, x, false
	case ir.OpGreaterThanOrEqual:
		return pick(!gt, asm_mips32.C_OLE_S, asm_mips32.C_OLE_D, asm_mips32.C_ULE_S, asm_mips32.C_ULE_D), y, x, false
	}
	panic("BUG: unsupported floating point condition: " + op.String())
}

// conditionRegister returns the register holding the condition input idx of
// instr, materializing conditions emitted at their use site into at.
func (v *instructionVisitor) conditionRegister(instr *ir.Instruction, idx int) asm.Register {
	if cond := instr.InputAt(idx); cond.IsEmittedAtUseSite() {
		v.materializeCondition(cond, regAT)
		return regAT
	}
	return reg(v.summary(instr).InAt(idx))
}

// branchOnCondition branches to l if the condition input 0 of instr holds,
// or if it does not hold with negate.
func (v *instructionVisitor) branchOnCondition(instr *ir.Instruction, negate bool, l *label) {
	cond := instr.InputAt(0)
	if cond.IsConstant() {
		if (cond.Int64FromConstant() != 0) != negate {
			v.b(l)
		}
		return
	}
	if !cond.IsEmittedAtUseSite() {
		r := reg(v.summary(instr).InAt(0))
		if negate {
			v.beqz(r, l)
		} else {
			v.bnez(r, l)
		}
		return
	}

	s := v.summary(cond)
	x, y := s.InAt(0), s.InAt(1)
	op := cond.Opcode()
	switch typ := cond.InputAt(0).Type().Kind(); {
	case typ.IsFloatingPoint():
		inst, a, b, negated := fpuCondition(op, cond.Bias(), typ, reg(x), reg(y))
		v.asm.CompileTwoRegistersToNone(inst, a, b)
		v.bc1(negated == negate, l)
	case typ == ir.TypeInt64:
		v.longCondition(op, lowReg(x), highReg(x), lowReg(y), highReg(y), regAT)
		if negate {
			v.beqz(regAT, l)
		} else {
			v.bnez(regAT, l)
		}
	default:
		if negate {
			op = op.Opposite()
		}
		v.branchOnIntCondition(op, reg(x), y, l)
	}
}

// branchOnIntCondition branches to l if the 32-bit condition op of x and y holds.
func (v *instructionVisitor) branchOnIntCondition(op ir.Opcode, x asm.Register, y backend.Location, l *label) {
	switch op {
	case ir.OpEqual:
		v.beq(x, v.operand(y, regAT), l)
		return
	case ir.OpNotEqual:
		v.bne(x, v.operand(y, regAT), l)
		return
	}
	if y.IsConstant() && constant32(y) == 0 {
		inst, ok := asm.Instruction(0), true
		switch op {
		case ir.OpLessThan:
			inst = asm_mips32.BLTZ
		case ir.OpGreaterThanOrEqual:
			inst = asm_mips32.BGEZ
		case ir.OpGreaterThan:
			inst = asm_mips32.BGTZ
		case ir.OpLessThanOrEqual:
			inst = asm_mips32.BLEZ
		default:
			ok = false
		}
		if ok {
			l.target(v.asm.CompileRegisterToBranch(inst, x))
			v.nop()
			return
		}
	}
	v.intCondition(op, x, y, regAT)
	v.bnez(regAT, l)
}

// VisitIf implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitIf(instr *ir.Instruction) {
	blk := instr.Block()
	trueBlk, falseBlk := blk.Succs()[0], blk.Succs()[1]
	if v.cg.GoesToNextBlock(blk, trueBlk) {
		v.branchOnCondition(instr, true, v.blockLabel(falseBlk))
		return
	}
	v.branchOnCondition(instr, false, v.blockLabel(trueBlk))
	v.jumpTo(falseBlk)
}

// VisitSelect implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitSelect(instr *ir.Instruction) {
	s := v.summary(instr)
	out, t := s.Out(), s.InAt(1)
	_, _, cond := instr.SelectData()
	if cond.IsConstant() {
		if cond.Int64FromConstant() != 0 {
			v.EmitMove(t, out, instr.Type())
		}
		return
	}

	c := v.conditionRegister(instr, 2)
	switch typ := instr.Type(); {
	case typ.IsFloatingPoint():
		done := &label{}
		v.beqz(c, done)
		v.asm.CompileRegisterToRegister(fpuOp(typ, asm_mips32.MOV_S, asm_mips32.MOV_D), reg(t), reg(out))
		v.bind(done)
	case typ == ir.TypeInt64:
		v.asm.CompileTwoRegistersToRegister(asm_mips32.MOVN, lowReg(t), c, lowReg(out))
		v.asm.CompileTwoRegistersToRegister(asm_mips32.MOVN, highReg(t), c, highReg(out))
	default:
		v.asm.CompileTwoRegistersToRegister(asm_mips32.MOVN, reg(t), c, reg(out))
	}
}
