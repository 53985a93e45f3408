package mips32

import (
	"github.com/tetratelabs/irgen/internal/asm"
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/moremath"
	"github.com/tetratelabs/irgen/internal/runtime"
)

// VisitIntConstant implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitIntConstant(*ir.Instruction) {}

// VisitLongConstant implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitLongConstant(*ir.Instruction) {}

// VisitFloatConstant implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitFloatConstant(*ir.Instruction) {}

// VisitDoubleConstant implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitDoubleConstant(*ir.Instruction) {}

// VisitNullConstant implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitNullConstant(*ir.Instruction) {}

// VisitParameterValue implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitParameterValue(*ir.Instruction) {}

// VisitCurrentMethod implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitCurrentMethod(*ir.Instruction) {}

// VisitPhi implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitPhi(*ir.Instruction) {
	panic("BUG: phis are resolved by parallel moves")
}

// fpuOp returns single or double according to typ.
func fpuOp(typ ir.DataType, single, double asm.Instruction) asm.Instruction {
	if typ == ir.TypeFloat64 {
		return double
	}
	return single
}

// constant32 returns the low 32 bits of the constant at loc.
func constant32(loc backend.Location) int32 {
	return int32(uint32(loc.Constant().ConstantBits()))
}

// VisitAdd implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitAdd(instr *ir.Instruction) { v.addSub(instr, false) }

// VisitSub implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitSub(instr *ir.Instruction) { v.addSub(instr, true) }

func (v *instructionVisitor) addSub(instr *ir.Instruction, sub bool) {
	s := v.summary(instr)
	x, y, out := s.InAt(0), s.InAt(1), s.Out()
	switch typ := instr.Type(); {
	case typ.IsFloatingPoint():
		inst := fpuOp(typ, asm_mips32.ADD_S, asm_mips32.ADD_D)
		if sub {
			inst = fpuOp(typ, asm_mips32.SUB_S, asm_mips32.SUB_D)
		}
		v.asm.CompileTwoRegistersToRegister(inst, reg(x), reg(y), reg(out))
	case typ == ir.TypeInt64:
		xLo, xHi := lowReg(x), highReg(x)
		yLo, yHi := v.pairOperand(y, regTMP, regT9)
		outLo, outHi := lowReg(out), highReg(out)
		if sub {
			v.asm.CompileTwoRegistersToRegister(asm_mips32.SLTU, xLo, yLo, regAT)
			v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, xLo, yLo, outLo)
			v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, xHi, yHi, outHi)
			v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, outHi, regAT, outHi)
			return
		}
		v.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, xLo, yLo, outLo)
		// The low half carries out iff it wrapped around.
		v.asm.CompileTwoRegistersToRegister(asm_mips32.SLTU, outLo, xLo, regAT)
		v.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, xHi, yHi, outHi)
		v.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, outHi, regAT, outHi)
	default:
		if y.IsConstant() {
			c := int64(constant32(y))
			if sub {
				c = -c
			}
			if fitsInt16(c) {
				v.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, reg(x), c, reg(out))
				return
			}
		}
		inst := asm_mips32.ADDU
		if sub {
			inst = asm_mips32.SUBU
		}
		v.asm.CompileTwoRegistersToRegister(inst, reg(x), v.operand(y, regAT), reg(out))
	}
}

// VisitAnd implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitAnd(instr *ir.Instruction) {
	v.logic(instr, asm_mips32.AND, asm_mips32.ANDI)
}

// VisitOr implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitOr(instr *ir.Instruction) {
	v.logic(instr, asm_mips32.OR, asm_mips32.ORI)
}

// VisitXor implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitXor(instr *ir.Instruction) {
	v.logic(instr, asm_mips32.XOR, asm_mips32.XORI)
}

// logic emits the bitwise operation rr, or ri when the operand is a
// constant fitting its zero-extended immediate.
func (v *instructionVisitor) logic(instr *ir.Instruction, rr, ri asm.Instruction) {
	s := v.summary(instr)
	x, y, out := s.InAt(0), s.InAt(1), s.Out()
	if instr.Type() != ir.TypeInt64 {
		if y.IsConstant() {
			v.logicConst(rr, ri, reg(x), constant32(y), reg(out))
			return
		}
		v.asm.CompileTwoRegistersToRegister(rr, reg(x), reg(y), reg(out))
		return
	}

	if y.IsConstant() {
		bits := y.Constant().ConstantBits()
		v.logicConst(rr, ri, lowReg(x), int32(uint32(bits)), lowReg(out))
		v.logicConst(rr, ri, highReg(x), int32(uint32(bits>>32)), highReg(out))
		return
	}
	v.asm.CompileTwoRegistersToRegister(rr, lowReg(x), lowReg(y), lowReg(out))
	v.asm.CompileTwoRegistersToRegister(rr, highReg(x), highReg(y), highReg(out))
}

func (v *instructionVisitor) logicConst(rr, ri asm.Instruction, x asm.Register, c int32, out asm.Register) {
	if u := int64(uint32(c)); fitsUint16(u) {
		v.asm.CompileRegisterAndConstToRegister(ri, x, u, out)
		return
	}
	v.loadConst(regAT, c)
	v.asm.CompileTwoRegistersToRegister(rr, x, regAT, out)
}

// VisitMul implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitMul(instr *ir.Instruction) {
	s := v.summary(instr)
	x, y, out := s.InAt(0), s.InAt(1), s.Out()
	switch typ := instr.Type(); {
	case typ.IsFloatingPoint():
		v.asm.CompileTwoRegistersToRegister(fpuOp(typ, asm_mips32.MUL_S, asm_mips32.MUL_D), reg(x), reg(y), reg(out))
	case typ == ir.TypeInt64:
		xLo, xHi, yLo, yHi := lowReg(x), highReg(x), lowReg(y), highReg(y)
		outLo, outHi := lowReg(out), highReg(out)
		// hi = xLo*yHi + xHi*yLo + high(xLo*yLo). mul may clobber hi and lo,
		// so the cross products come first.
		v.asm.CompileTwoRegistersToRegister(asm_mips32.MUL, xLo, yHi, regAT)
		v.asm.CompileTwoRegistersToRegister(asm_mips32.MUL, xHi, yLo, regTMP)
		v.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, regAT, regTMP, regAT)
		v.asm.CompileTwoRegistersToNone(asm_mips32.MULTU, xLo, yLo)
		v.asm.CompileNoneToRegister(asm_mips32.MFHI, regTMP)
		v.asm.CompileNoneToRegister(asm_mips32.MFLO, outLo)
		v.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, regAT, regTMP, outHi)
	default:
		if y.IsConstant() {
			c := int64(constant32(y))
			switch {
			case c == 0:
				v.move(reg(out), regZero)
				return
			case c == 1:
				v.move(reg(out), reg(x))
				return
			case c > 0 && moremath.IsPowerOfTwo(c):
				v.asm.CompileRegisterAndConstToRegister(asm_mips32.SLL, reg(x), int64(moremath.CTZ(c)), reg(out))
				return
			}
		}
		v.asm.CompileTwoRegistersToRegister(asm_mips32.MUL, reg(x), v.operand(y, regAT), reg(out))
	}
}

// divisor returns the instruction giving the divisor y of a Div or Rem,
// looking through the zero check of a constant.
func divisor(y *ir.Instruction) *ir.Instruction {
	if y.Opcode() == ir.OpDivZeroCheck && y.InputAt(0).IsConstant() {
		return y.InputAt(0)
	}
	return y
}

// VisitDiv implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitDiv(instr *ir.Instruction) { v.divRem(instr) }

// VisitRem implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitRem(instr *ir.Instruction) { v.divRem(instr) }

func (v *instructionVisitor) divRem(instr *ir.Instruction) {
	typ := instr.Type()
	rem := instr.Opcode() == ir.OpRem
	switch {
	case typ == ir.TypeInt64:
		e := runtime.QuickLdiv
		if rem {
			e = runtime.QuickLmod
		}
		v.invokeRuntime(e, instr, nil)
		return
	case typ.IsFloatingPoint() && rem:
		e := runtime.QuickFmodf
		if typ == ir.TypeFloat64 {
			e = runtime.QuickFmod
		}
		v.invokeRuntime(e, instr, nil)
		return
	}

	s := v.summary(instr)
	x, y, out := s.InAt(0), s.InAt(1), s.Out()
	if typ.IsFloatingPoint() {
		v.asm.CompileTwoRegistersToRegister(fpuOp(typ, asm_mips32.DIV_S, asm_mips32.DIV_D), reg(x), reg(y), reg(out))
		return
	}
	if y.IsConstant() {
		v.divRemByConstant(rem, reg(x), int64(constant32(y)), reg(out))
		return
	}
	v.asm.CompileTwoRegistersToNone(asm_mips32.DIV, reg(x), reg(y))
	if rem {
		v.asm.CompileNoneToRegister(asm_mips32.MFHI, reg(out))
	} else {
		v.asm.CompileNoneToRegister(asm_mips32.MFLO, reg(out))
	}
}

// divRemByConstant emits the 32-bit division or remainder of x by c into
// out, which differs from x.
func (v *instructionVisitor) divRemByConstant(rem bool, x asm.Register, c int64, out asm.Register) {
	switch moremath.SelectDivision(c) {
	case moremath.DivisionByZero:
		// The zero check threw already.
	case moremath.DivisionTrivial:
		switch {
		case rem:
			v.move(out, regZero)
		case c == 1:
			v.move(out, x)
		default:
			v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, regZero, x, out)
		}
	case moremath.DivisionPowerOfTwo:
		v.divRemByPowerOfTwo(rem, x, c, out)
	default:
		v.divRemWithMagic(rem, x, c, out)
	}
}

// divRemByPowerOfTwo rounds toward zero by adding 2^k-1 to negative
// dividends before shifting.
func (v *instructionVisitor) divRemByPowerOfTwo(rem bool, x asm.Register, c int64, out asm.Register) {
	k := int64(moremath.CTZ(moremath.AbsOrMin(c)))
	if k == 1 {
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.SRL, x, 31, regTMP)
	} else {
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.SRA, x, 31, regTMP)
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.SRL, regTMP, 32-k, regTMP)
	}
	v.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, x, regTMP, out)

	if !rem {
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.SRA, out, k, out)
		if c < 0 {
			v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, regZero, out, out)
		}
		return
	}
	if k <= 16 {
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.ANDI, out, 1<<k-1, out)
	} else {
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.SLL, out, 32-k, out)
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.SRL, out, 32-k, out)
	}
	v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, out, regTMP, out)
}

func (v *instructionVisitor) divRemWithMagic(rem bool, x asm.Register, c int64, out asm.Register) {
	magic, shift := moremath.CalculateMagicAndShift(c, false)
	v.loadConst(regTMP, int32(magic))
	v.asm.CompileTwoRegistersToNone(asm_mips32.MULT, x, regTMP)
	v.asm.CompileNoneToRegister(asm_mips32.MFHI, regTMP)
	switch {
	case c > 0 && magic < 0:
		v.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, regTMP, x, regTMP)
	case c < 0 && magic > 0:
		v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, regTMP, x, regTMP)
	}
	if shift != 0 {
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.SRA, regTMP, int64(shift), regTMP)
	}
	// Add one to negative quotients.
	v.asm.CompileRegisterAndConstToRegister(asm_mips32.SRL, regTMP, 31, regAT)
	if !rem {
		v.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, regTMP, regAT, out)
		return
	}
	v.asm.CompileTwoRegistersToRegister(asm_mips32.ADDU, regTMP, regAT, regTMP)
	v.loadConst(regAT, int32(c))
	v.asm.CompileTwoRegistersToRegister(asm_mips32.MUL, regTMP, regAT, regTMP)
	v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, x, regTMP, out)
}

// VisitNeg implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitNeg(instr *ir.Instruction) {
	s := v.summary(instr)
	x, out := s.InAt(0), s.Out()
	switch typ := instr.Type(); {
	case typ.IsFloatingPoint():
		v.asm.CompileRegisterToRegister(fpuOp(typ, asm_mips32.NEG_S, asm_mips32.NEG_D), reg(x), reg(out))
	case typ == ir.TypeInt64:
		outLo, outHi := lowReg(out), highReg(out)
		v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, regZero, lowReg(x), outLo)
		// Borrow iff the low half is not zero.
		v.asm.CompileTwoRegistersToRegister(asm_mips32.SLTU, regZero, outLo, regAT)
		v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, regZero, highReg(x), outHi)
		v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, outHi, regAT, outHi)
	default:
		v.asm.CompileTwoRegistersToRegister(asm_mips32.SUBU, regZero, reg(x), reg(out))
	}
}

// VisitNot implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitNot(instr *ir.Instruction) {
	s := v.summary(instr)
	x, out := s.InAt(0), s.Out()
	if instr.Type() == ir.TypeInt64 {
		v.asm.CompileTwoRegistersToRegister(asm_mips32.NOR, lowReg(x), regZero, lowReg(out))
		v.asm.CompileTwoRegistersToRegister(asm_mips32.NOR, highReg(x), regZero, highReg(out))
		return
	}
	v.asm.CompileTwoRegistersToRegister(asm_mips32.NOR, reg(x), regZero, reg(out))
}

// VisitBooleanNot implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitBooleanNot(instr *ir.Instruction) {
	s := v.summary(instr)
	v.asm.CompileRegisterAndConstToRegister(asm_mips32.XORI, reg(s.InAt(0)), 1, reg(s.Out()))
}

// VisitShl implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitShl(instr *ir.Instruction) { v.shift(instr) }

// VisitShr implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitShr(instr *ir.Instruction) { v.shift(instr) }

// VisitUShr implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitUShr(instr *ir.Instruction) { v.shift(instr) }

// VisitRor implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitRor(instr *ir.Instruction) { v.shift(instr) }

// shiftInstructions returns the immediate and the variable form of the shift op.
func shiftInstructions(op ir.Opcode) (imm, variable asm.Instruction) {
	switch op {
	case ir.OpShl:
		return asm_mips32.SLL, asm_mips32.SLLV
	case ir.OpShr:
		return asm_mips32.SRA, asm_mips32.SRAV
	case ir.OpUShr:
		return asm_mips32.SRL, asm_mips32.SRLV
	case ir.OpRor:
		return asm_mips32.ROTR, asm_mips32.ROTRV
	}
	panic("BUG: not a shift: " + op.String())
}

func (v *instructionVisitor) shift(instr *ir.Instruction) {
	s := v.summary(instr)
	x, y, out := s.InAt(0), s.InAt(1), s.Out()
	op := instr.Opcode()
	if instr.Type() == ir.TypeInt64 {
		if y.IsConstant() {
			v.shiftLongByConstant(op, lowReg(x), highReg(x), int64(constant32(y)&63), lowReg(out), highReg(out))
		} else {
			v.shiftLongByRegister(op, lowReg(x), highReg(x), reg(y), lowReg(out), highReg(out))
		}
		return
	}

	imm, variable := shiftInstructions(op)
	if !y.IsConstant() {
		// The hardware only uses the low five bits of the amount.
		v.asm.CompileTwoRegistersToRegister(variable, reg(x), reg(y), reg(out))
		return
	}
	if amount := int64(constant32(y) & 31); amount != 0 {
		v.asm.CompileRegisterAndConstToRegister(imm, reg(x), amount, reg(out))
	} else {
		v.move(reg(out), reg(x))
	}
}

// shiftLongByConstant shifts the pair (xLo, xHi) by 0 <= n < 64 into
// (outLo, outHi), which do not overlap the input.
func (v *instructionVisitor) shiftLongByConstant(op ir.Opcode, xLo, xHi asm.Register, n int64, outLo, outHi asm.Register) {
	a := v.asm
	if n == 0 {
		v.move(outLo, xLo)
		v.move(outHi, xHi)
		return
	}
	if n < 32 {
		switch op {
		case ir.OpShl:
			a.CompileRegisterAndConstToRegister(asm_mips32.SLL, xHi, n, outHi)
			a.CompileRegisterAndConstToRegister(asm_mips32.SRL, xLo, 32-n, regAT)
			a.CompileTwoRegistersToRegister(asm_mips32.OR, outHi, regAT, outHi)
			a.CompileRegisterAndConstToRegister(asm_mips32.SLL, xLo, n, outLo)
		case ir.OpShr, ir.OpUShr:
			a.CompileRegisterAndConstToRegister(asm_mips32.SRL, xLo, n, outLo)
			a.CompileRegisterAndConstToRegister(asm_mips32.SLL, xHi, 32-n, regAT)
			a.CompileTwoRegistersToRegister(asm_mips32.OR, outLo, regAT, outLo)
			hi := asm_mips32.SRA
			if op == ir.OpUShr {
				hi = asm_mips32.SRL
			}
			a.CompileRegisterAndConstToRegister(hi, xHi, n, outHi)
		case ir.OpRor:
			a.CompileRegisterAndConstToRegister(asm_mips32.SRL, xLo, n, outLo)
			a.CompileRegisterAndConstToRegister(asm_mips32.SLL, xHi, 32-n, regAT)
			a.CompileTwoRegistersToRegister(asm_mips32.OR, outLo, regAT, outLo)
			a.CompileRegisterAndConstToRegister(asm_mips32.SRL, xHi, n, outHi)
			a.CompileRegisterAndConstToRegister(asm_mips32.SLL, xLo, 32-n, regAT)
			a.CompileTwoRegistersToRegister(asm_mips32.OR, outHi, regAT, outHi)
		}
		return
	}

	n -= 32
	switch op {
	case ir.OpShl:
		v.shiftWord(asm_mips32.SLL, xLo, n, outHi)
		v.move(outLo, regZero)
	case ir.OpShr:
		v.shiftWord(asm_mips32.SRA, xHi, n, outLo)
		a.CompileRegisterAndConstToRegister(asm_mips32.SRA, xHi, 31, outHi)
	case ir.OpUShr:
		v.shiftWord(asm_mips32.SRL, xHi, n, outLo)
		v.move(outHi, regZero)
	case ir.OpRor:
		// Rotating by 32+n is swapping the halves and rotating by n.
		v.shiftLongByConstant(op, xHi, xLo, n, outLo, outHi)
	}
}

func (v *instructionVisitor) shiftWord(inst asm.Instruction, x asm.Register, n int64, out asm.Register) {
	if n == 0 {
		v.move(out, x)
		return
	}
	v.asm.CompileRegisterAndConstToRegister(inst, x, n, out)
}

// shiftLongByRegister shifts the pair (xLo, xHi) by the low six bits of n.
// The word shifts use the low five bits, and bit 5 then moves the halves.
func (v *instructionVisitor) shiftLongByRegister(op ir.Opcode, xLo, xHi, n, outLo, outHi asm.Register) {
	a := v.asm
	// at = ~n: the low five bits are 31-(n&31), so that shifting by one more
	// before yields a shift by 32-(n&31) which is zero for n&31 == 0.
	switch op {
	case ir.OpShl:
		a.CompileTwoRegistersToRegister(asm_mips32.SLLV, xHi, n, outHi)
		a.CompileTwoRegistersToRegister(asm_mips32.NOR, n, regZero, regAT)
		a.CompileRegisterAndConstToRegister(asm_mips32.SRL, xLo, 1, regTMP)
		a.CompileTwoRegistersToRegister(asm_mips32.SRLV, regTMP, regAT, regTMP)
		a.CompileTwoRegistersToRegister(asm_mips32.OR, outHi, regTMP, outHi)
		a.CompileTwoRegistersToRegister(asm_mips32.SLLV, xLo, n, outLo)
		a.CompileRegisterAndConstToRegister(asm_mips32.ANDI, n, 32, regAT)
		a.CompileTwoRegistersToRegister(asm_mips32.MOVN, outLo, regAT, outHi)
		a.CompileTwoRegistersToRegister(asm_mips32.MOVN, regZero, regAT, outLo)
	case ir.OpShr, ir.OpUShr:
		hi := asm_mips32.SRAV
		if op == ir.OpUShr {
			hi = asm_mips32.SRLV
		}
		a.CompileTwoRegistersToRegister(hi, xHi, n, outHi)
		a.CompileTwoRegistersToRegister(asm_mips32.NOR, n, regZero, regAT)
		a.CompileRegisterAndConstToRegister(asm_mips32.SLL, xHi, 1, regTMP)
		a.CompileTwoRegistersToRegister(asm_mips32.SLLV, regTMP, regAT, regTMP)
		a.CompileTwoRegistersToRegister(asm_mips32.SRLV, xLo, n, outLo)
		a.CompileTwoRegistersToRegister(asm_mips32.OR, outLo, regTMP, outLo)
		if op == ir.OpShr {
			a.CompileRegisterAndConstToRegister(asm_mips32.SRA, outHi, 31, regTMP)
		} else {
			v.move(regTMP, regZero)
		}
		a.CompileRegisterAndConstToRegister(asm_mips32.ANDI, n, 32, regAT)
		a.CompileTwoRegistersToRegister(asm_mips32.MOVN, outHi, regAT, outLo)
		a.CompileTwoRegistersToRegister(asm_mips32.MOVN, regTMP, regAT, outHi)
	case ir.OpRor:
		a.CompileTwoRegistersToRegister(asm_mips32.SRLV, xLo, n, outLo)
		a.CompileTwoRegistersToRegister(asm_mips32.SRLV, xHi, n, outHi)
		a.CompileTwoRegistersToRegister(asm_mips32.NOR, n, regZero, regAT)
		a.CompileRegisterAndConstToRegister(asm_mips32.SLL, xHi, 1, regTMP)
		a.CompileTwoRegistersToRegister(asm_mips32.SLLV, regTMP, regAT, regTMP)
		a.CompileTwoRegistersToRegister(asm_mips32.OR, outLo, regTMP, outLo)
		a.CompileRegisterAndConstToRegister(asm_mips32.SLL, xLo, 1, regTMP)
		a.CompileTwoRegistersToRegister(asm_mips32.SLLV, regTMP, regAT, regTMP)
		a.CompileTwoRegistersToRegister(asm_mips32.OR, outHi, regTMP, outHi)
		// Swap the halves when bit 5 is set: tmp = (lo ^ hi) or zero.
		a.CompileRegisterAndConstToRegister(asm_mips32.ANDI, n, 32, regAT)
		a.CompileTwoRegistersToRegister(asm_mips32.XOR, outLo, outHi, regTMP)
		a.CompileTwoRegistersToRegister(asm_mips32.MOVZ, regZero, regAT, regTMP)
		a.CompileTwoRegistersToRegister(asm_mips32.XOR, outLo, regTMP, outLo)
		a.CompileTwoRegistersToRegister(asm_mips32.XOR, outHi, regTMP, outHi)
	}
}

// runtimeConversion is a type conversion done by a runtime entrypoint.
type runtimeConversion struct {
	from, to   ir.DataType
	entrypoint runtime.QuickEntrypoint
}

// runtimeConversions are the conversions with Java semantics (saturation,
// NaN to zero) or 64-bit operands the FPU cannot do in one instruction.
var runtimeConversions = []runtimeConversion{
	{from: ir.TypeFloat32, to: ir.TypeInt32, entrypoint: runtime.QuickF2iz},
	{from: ir.TypeFloat64, to: ir.TypeInt32, entrypoint: runtime.QuickD2iz},
	{from: ir.TypeFloat32, to: ir.TypeInt64, entrypoint: runtime.QuickF2l},
	{from: ir.TypeFloat64, to: ir.TypeInt64, entrypoint: runtime.QuickD2l},
	{from: ir.TypeInt64, to: ir.TypeFloat32, entrypoint: runtime.QuickL2f},
	{from: ir.TypeInt64, to: ir.TypeFloat64, entrypoint: runtime.QuickL2d},
}

func conversionEntrypoint(from, to ir.DataType) (runtimeConversion, bool) {
	for _, c := range runtimeConversions {
		if c.from == from && c.to == to {
			return c, true
		}
	}
	return runtimeConversion{}, false
}

// VisitTypeConversion implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitTypeConversion(instr *ir.Instruction) {
	from, to := instr.TypeConversionData()
	from = from.Kind()
	if c, ok := conversionEntrypoint(from, to); ok {
		v.invokeRuntime(c.entrypoint, instr, nil)
		return
	}

	s := v.summary(instr)
	x, out := s.InAt(0), s.Out()
	a := v.asm
	switch {
	case from == ir.TypeInt32 && to == ir.TypeInt64:
		v.move(lowReg(out), reg(x))
		a.CompileRegisterAndConstToRegister(asm_mips32.SRA, reg(x), 31, highReg(out))
	case from.IsIntegral() && to.IsIntegral():
		src := reg
		if from == ir.TypeInt64 {
			src = lowReg
		}
		v.narrow(to, src(x), reg(out))
	case from == ir.TypeInt32 && to.IsFloatingPoint():
		a.CompileRegisterToRegister(asm_mips32.MTC1, reg(x), regFTMP)
		a.CompileRegisterToRegister(fpuOp(to, asm_mips32.CVT_S_W, asm_mips32.CVT_D_W), regFTMP, reg(out))
	case from == ir.TypeFloat32 && to == ir.TypeFloat64:
		a.CompileRegisterToRegister(asm_mips32.CVT_D_S, reg(x), reg(out))
	case from == ir.TypeFloat64 && to == ir.TypeFloat32:
		a.CompileRegisterToRegister(asm_mips32.CVT_S_D, reg(x), reg(out))
	default:
		panic("BUG: unsupported conversion " + from.String() + " -> " + to.String())
	}
}

// narrow converts the 32-bit x to the integral type to.
func (v *instructionVisitor) narrow(to ir.DataType, x, out asm.Register) {
	switch to {
	case ir.TypeInt8:
		v.asm.CompileRegisterToRegister(asm_mips32.SEB, x, out)
	case ir.TypeInt16:
		v.asm.CompileRegisterToRegister(asm_mips32.SEH, x, out)
	case ir.TypeUint8, ir.TypeBool:
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.ANDI, x, 0xff, out)
	case ir.TypeUint16:
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.ANDI, x, 0xffff, out)
	default:
		v.move(out, x)
	}
}
