package mips32

import (
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/runtime"
)

// callArtMethod calls the entry point of the ArtMethod* in a0 and records
// the stack map of instr at the return address.
func (m *machine) callArtMethod(instr *ir.Instruction) {
	m.asm.CompileMemoryToRegister(asm_mips32.LW, regA0, runtime.ArtMethodEntryPointOffset, regT9)
	m.asm.CompileJumpToRegister(asm_mips32.JALR, regT9)
	m.nop()
	m.cg.RecordPcInfo(instr, m.here(), nil)
}

// VisitInvokeStaticOrDirect implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitInvokeStaticOrDirect(instr *ir.Instruction) {
	ref, kind, directAddress := instr.InvokeStaticOrDirectData()
	switch kind {
	case ir.MethodLoadRuntimeCall:
		v.loadConst(regA0, int32(ref.MethodIndex))
		v.invokeRuntime(runtime.QuickInvokeStaticTrampoline, instr, nil)
		return
	case ir.MethodLoadRecursive:
		// The callee is this method: reuse our ArtMethod* and branch to the entry.
		v.asm.CompileMemoryToRegister(asm_mips32.LW, regSP, 0, regA0)
		v.asm.CompileJump(asm_mips32.BAL).AssignJumpTarget(v.methodEntry)
		v.nop()
		v.cg.RecordPcInfo(instr, v.here(), nil)
		return
	case ir.MethodLoadBootImageLinkTimePcRelative:
		v.pcRelativeAddress(backend.PatchMethodRelative, ref.MethodIndex, regA0)
	case ir.MethodLoadDirectAddress:
		v.loadConst(regA0, int32(directAddress))
	case ir.MethodLoadBssEntry:
		high := v.cg.Patches().NewHighPatch(backend.PatchMethodBss, ref.MethodIndex)
		v.pcRelative(high, regA0)
		lw := v.asm.CompileMemoryToRegister(asm_mips32.LW, regA0, 0x5678, regA0)
		v.placeLow(v.cg.Patches().NewLowPatch(high), lw)
	default:
		panic("BUG: invalid method load kind " + kind.String())
	}
	v.callArtMethod(instr)
}

// VisitInvokeVirtual implements backend.InstructionVisitor.
func (v *instructionVisitor) VisitInvokeVirtual(instr *ir.Instruction) {
	_, vtableIndex := instr.InvokeData()
	receiver := reg(v.summary(instr).InAt(0))
	n := v.asm.CompileMemoryToRegister(asm_mips32.LW, receiver, runtime.ObjectClassOffset, regT9)
	v.maybeRecordImplicitNullCheck(instr, n)
	v.load(asm_mips32.LW, regT9, runtime.VTableEntryOffset(vtableIndex), regA0)
	v.callArtMethod(instr)
}

// VisitInvokeInterface implements backend.InstructionVisitor.
//
// The dex method index is passed in t7 for the conflict resolution
// trampoline of shared IMT entries.
func (v *instructionVisitor) VisitInvokeInterface(instr *ir.Instruction) {
	ref, imtIndex := instr.InvokeData()
	receiver := reg(v.summary(instr).InAt(0))
	n := v.asm.CompileMemoryToRegister(asm_mips32.LW, receiver, runtime.ObjectClassOffset, regT9)
	v.maybeRecordImplicitNullCheck(instr, n)
	v.asm.CompileMemoryToRegister(asm_mips32.LW, regT9, runtime.ClassImtOffset, regT9)
	v.load(asm_mips32.LW, regT9, runtime.ImtEntryOffset(imtIndex), regA0)
	v.loadConst(core(t7), int32(ref.MethodIndex))
	v.callArtMethod(instr)
}
