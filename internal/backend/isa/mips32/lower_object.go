package mips32

import (
	"github.com/tetratelabs/irgen/internal/asm"
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/runtime"
)

// VisitNewInstance implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitNewInstance(instr *ir.Instruction) {
	v.invokeRuntime(runtime.QuickAllocObject, instr, nil)
}

// VisitNewArray implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitNewArray(instr *ir.Instruction) {
	v.invokeRuntime(runtime.QuickAllocArray, instr, nil)
}

// pcRelativeAddress materializes the address of the patch target into dst.
func (m *machine) pcRelativeAddress(kind backend.PatchKind, target uint32, dst asm.Register) {
	high := m.cg.Patches().NewHighPatch(kind, target)
	m.pcRelative(high, dst)
	low := m.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, dst, 0x5678, dst)
	m.placeLow(m.cg.Patches().NewLowPatch(high), low)
}

// bssEntryLoad loads the GC root in the .bss entry of the patch target into
// out, addressing the entry with temp, and returns the high patch.
func (m *machine) bssEntryLoad(instr *ir.Instruction, kind backend.PatchKind, target uint32, out int, temp asm.Register) backend.PatchID {
	high := m.cg.Patches().NewHighPatch(kind, target)
	m.pcRelative(high, temp)
	m.loadGcRoot(instr, out, func() {
		lw := m.asm.CompileMemoryToRegister(asm_mips32.LW, temp, 0x5678, core(out))
		m.placeLow(m.cg.Patches().NewLowPatch(high), lw)
	})
	return high
}

// VisitLoadClass implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitLoadClass(instr *ir.Instruction) {
	ref, kind := instr.LoadClassData()
	clinit := instr.MustGenerateClinitCheck()
	if kind == ir.LoadClassRuntimeCall {
		e := runtime.QuickInitializeType
		if clinit {
			e = runtime.QuickInitializeStaticStorage
		}
		v.loadConst(regA0, int32(ref.TypeIndex))
		v.invokeRuntime(e, instr, nil)
		return
	}

	s := v.summary(instr)
	out := s.Out().Reg()
	outReg := core(out)
	switch kind {
	case ir.LoadClassReferrersClass:
		v.loadGcRoot(instr, out, func() {
			v.asm.CompileMemoryToRegister(asm_mips32.LW, regSP, 0, outReg)
			v.asm.CompileMemoryToRegister(asm_mips32.LW, outReg, runtime.ArtMethodDeclaringClassOffset, outReg)
		})
	case ir.LoadClassBootImageLinkTimePcRelative:
		v.pcRelativeAddress(backend.PatchTypeRelative, ref.TypeIndex, outReg)
	case ir.LoadClassBssEntry:
		temp := reg(s.GetTemp(0))
		high := v.bssEntryLoad(instr, backend.PatchTypeBss, ref.TypeIndex, out, temp)
		sp := &loadClassSlowPath{
			slowPathCode: v.newSlowPathCode(instr),
			typeIndex:    ref.TypeIndex,
			doClinit:     clinit,
			out:          outReg,
			bss:          true,
			bssHigh:      high,
			temp:         temp,
		}
		v.addSlowPath(sp)
		v.branchToSlowPath(asm_mips32.BEQ, outReg, sp)
		if clinit {
			v.clinitCheck(outReg, sp)
		}
		v.bindExit(sp)
		return
	case ir.LoadClassJitTableAddress:
		idx := v.cg.JitRoots().AddRoot(backend.JitRoot{Kind: backend.RootClass, Index: ref.TypeIndex, Name: ref.Descriptor})
		v.loadGcRoot(instr, out, func() { v.jitRootLoad(idx, outReg) })
	default:
		panic("BUG: invalid load class kind " + kind.String())
	}

	if clinit {
		sp := &loadClassSlowPath{
			slowPathCode: v.newSlowPathCode(instr),
			typeIndex:    ref.TypeIndex,
			doClinit:     true,
			out:          outReg,
		}
		v.addSlowPath(sp)
		v.clinitCheck(outReg, sp)
		v.bindExit(sp)
	}
}

// clinitCheck branches to sp unless the class in cls is initialized.
func (m *machine) clinitCheck(cls asm.Register, sp backend.SlowPath) {
	m.asm.CompileMemoryToRegister(asm_mips32.LW, cls, runtime.ClassStatusOffset, regAT)
	m.asm.CompileRegisterAndConstToRegister(asm_mips32.SLTIU, regAT, int64(runtime.ClassStatusInitialized), regAT)
	m.branchToSlowPath(asm_mips32.BNE, regAT, sp)
}

// VisitClinitCheck implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitClinitCheck(instr *ir.Instruction) {
	cls := instr.InputAt(0)
	if cls.Opcode() != ir.OpLoadClass {
		panic("BUG: clinit check of " + cls.String())
	}
	ref, _ := cls.LoadClassData()
	r := reg(v.summary(instr).InAt(0))
	sp := &loadClassSlowPath{
		slowPathCode: v.newSlowPathCode(instr),
		typeIndex:    ref.TypeIndex,
		doClinit:     true,
		out:          r,
	}
	v.addSlowPath(sp)
	v.clinitCheck(r, sp)
	v.bindExit(sp)
}

// VisitLoadString implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitLoadString(instr *ir.Instruction) {
	ref, kind := instr.LoadStringData()
	if kind == ir.LoadStringRuntimeCall {
		v.loadConst(regA0, int32(ref.StringIndex))
		v.invokeRuntime(runtime.QuickResolveString, instr, nil)
		return
	}

	s := v.summary(instr)
	out := s.Out().Reg()
	outReg := core(out)
	switch kind {
	case ir.LoadStringBootImageLinkTimePcRelative:
		v.pcRelativeAddress(backend.PatchStringRelative, ref.StringIndex, outReg)
	case ir.LoadStringBssEntry:
		temp := reg(s.GetTemp(0))
		high := v.bssEntryLoad(instr, backend.PatchStringBss, ref.StringIndex, out, temp)
		sp := &loadStringSlowPath{
			slowPathCode: v.newSlowPathCode(instr),
			stringIndex:  ref.StringIndex,
			out:          outReg,
			bssHigh:      high,
			temp:         temp,
		}
		v.addSlowPath(sp)
		v.branchToSlowPath(asm_mips32.BEQ, outReg, sp)
		v.bindExit(sp)
	case ir.LoadStringJitTableAddress:
		idx := v.cg.JitRoots().AddRoot(backend.JitRoot{Kind: backend.RootString, Index: ref.StringIndex, Name: ref.Value})
		v.loadGcRoot(instr, out, func() { v.jitRootLoad(idx, outReg) })
	default:
		panic("BUG: invalid load string kind " + kind.String())
	}
}

// Classes are loaded without read barrier by type checks: a stale reference
// can only make a comparison fail, and failures are decided by the runtime.

// VisitInstanceOf implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitInstanceOf(instr *ir.Instruction) {
	s := v.summary(instr)
	obj, cls, out := reg(s.InAt(0)), reg(s.InAt(1)), reg(s.Out())
	done := &label{}
	v.move(out, regZero)
	v.beqz(obj, done)

	kind := instr.TypeCheckKind()
	if kind == ir.TypeCheckInterface {
		sp := v.addSlowPath(&typeCheckSlowPath{slowPathCode: v.newSlowPathCode(instr)})
		v.b(enter(sp))
		v.bindExit(sp)
		v.bind(done)
		return
	}

	v.asm.CompileMemoryToRegister(asm_mips32.LW, obj, runtime.ObjectClassOffset, regT9)
	if kind == ir.TypeCheckExact {
		v.asm.CompileTwoRegistersToRegister(asm_mips32.XOR, regT9, cls, out)
		v.asm.CompileRegisterAndConstToRegister(asm_mips32.SLTIU, out, 1, out)
		v.bind(done)
		return
	}

	success := &label{}
	v.classMatches(kind, cls, success, done)
	v.b(done)
	v.bind(success)
	v.asm.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, regZero, 1, out)
	v.bind(done)
}

// classMatches branches to success if the class in t9 matches cls for the
// ClassHierarchy and ArrayObject kinds, and to failure or falls through
// otherwise. It clobbers t9.
func (m *machine) classMatches(kind ir.TypeCheckKind, cls asm.Register, success, failure *label) {
	switch kind {
	case ir.TypeCheckClassHierarchy:
		loop := &label{}
		m.bind(loop)
		m.beq(regT9, cls, success)
		m.asm.CompileMemoryToRegister(asm_mips32.LW, regT9, runtime.ClassSuperClassOffset, regT9)
		m.bnez(regT9, loop)
	case ir.TypeCheckArrayObject:
		// Arrays of references are instances of Object[].
		m.beq(regT9, cls, success)
		m.asm.CompileMemoryToRegister(asm_mips32.LW, regT9, runtime.ClassComponentTypeOffset, regT9)
		m.beqz(regT9, failure)
		m.asm.CompileMemoryToRegister(asm_mips32.LHU, regT9, runtime.ClassPrimitiveTypeOffset, regAT)
		m.beqz(regAT, success)
	default:
		panic("BUG: unexpected type check kind " + kind.String())
	}
}

// VisitCheckCast implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitCheckCast(instr *ir.Instruction) {
	s := v.summary(instr)
	obj, cls := reg(s.InAt(0)), reg(s.InAt(1))
	kind := instr.TypeCheckKind()

	// Only the interface check may succeed in the runtime.
	code := v.newFatalSlowPathCode(instr)
	if kind == ir.TypeCheckInterface {
		code = v.newSlowPathCode(instr)
	}
	sp := v.addSlowPath(&typeCheckSlowPath{slowPathCode: code})

	done := &label{}
	v.beqz(obj, done)
	switch kind {
	case ir.TypeCheckInterface:
		v.b(enter(sp))
	case ir.TypeCheckExact:
		v.asm.CompileMemoryToRegister(asm_mips32.LW, obj, runtime.ObjectClassOffset, regT9)
		v.bne(regT9, cls, enter(sp))
	default:
		v.asm.CompileMemoryToRegister(asm_mips32.LW, obj, runtime.ObjectClassOffset, regT9)
		fail := enter(sp)
		v.classMatches(kind, cls, done, fail)
		v.b(fail)
	}
	v.bind(done)
	if !sp.IsFatal() {
		v.bindExit(sp)
	}
}
