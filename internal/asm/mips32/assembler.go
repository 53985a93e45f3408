package asm_mips32

import (
	"github.com/tetratelabs/irgen/internal/asm"
)

// Assembler is the interface for mips32 specific assembler.
//
// Branches and jumps have a delay slot: the caller must add the delay slot
// instruction right after every branch, which Assemble verifies.
type Assembler interface {
	asm.AssemblerBase

	// CompileLabel adds a zero-sized node to be used as a branch target.
	CompileLabel() asm.Node

	// CompileTwoRegistersToRegister adds an instruction where source operands consists of two registers `src1` and `src2`,
	// and the destination is the register `dst`.
	//
	// For variable shifts, src1 is the shifted value and src2 the shift amount.
	CompileTwoRegistersToRegister(instruction asm.Instruction, src1, src2, dst asm.Register)

	// CompileRegisterAndConstToRegister adds an instruction where source operands are the register `src` and
	// the immediate `value`, and the destination is the register `dst`.
	CompileRegisterAndConstToRegister(instruction asm.Instruction, src asm.Register, value asm.ConstantValue, dst asm.Register) asm.Node

	// CompileTwoRegistersToNone adds an instruction where source operands consist of two registers `src1` and `src2`,
	// and destination operand is implicit (HI/LO or the FPU condition flag).
	CompileTwoRegistersToNone(instruction asm.Instruction, src1, src2 asm.Register)

	// CompileNoneToRegister adds an instruction whose only operand is `reg`, e.g. MFHI or JR.
	CompileNoneToRegister(instruction asm.Instruction, reg asm.Register) asm.Node

	// CompileRegisterToBranch adds a conditional branch comparing `reg` with zero.
	CompileRegisterToBranch(instruction asm.Instruction, reg asm.Register) asm.Node

	// CompileTwoRegistersToBranch adds a conditional branch comparing two registers.
	CompileTwoRegistersToBranch(instruction asm.Instruction, src1, src2 asm.Register) asm.Node

	// CompileData adds raw bytes into the binary. The length must be a multiple of four.
	CompileData(data []byte) asm.Node
}
