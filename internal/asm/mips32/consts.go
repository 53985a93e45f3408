package asm_mips32

import (
	"fmt"

	"github.com/tetratelabs/irgen/internal/asm"
)

// MIPS32 general purpose and floating point registers.
// Note: naming convention is the same as Go assembler: https://go.dev/doc/asm
const (
	// Integer registers.

	REG_R0 asm.Register = asm.NilRegister + 1 + iota
	REG_R1
	REG_R2
	REG_R3
	REG_R4
	REG_R5
	REG_R6
	REG_R7
	REG_R8
	REG_R9
	REG_R10
	REG_R11
	REG_R12
	REG_R13
	REG_R14
	REG_R15
	REG_R16
	REG_R17
	REG_R18
	REG_R19
	REG_R20
	REG_R21
	REG_R22
	REG_R23
	REG_R24
	REG_R25
	REG_R26
	REG_R27
	REG_R28
	REG_R29
	REG_R30
	REG_R31

	// Floating point registers. With FR=1 every register holds a double.

	REG_F0
	REG_F1
	REG_F2
	REG_F3
	REG_F4
	REG_F5
	REG_F6
	REG_F7
	REG_F8
	REG_F9
	REG_F10
	REG_F11
	REG_F12
	REG_F13
	REG_F14
	REG_F15
	REG_F16
	REG_F17
	REG_F18
	REG_F19
	REG_F20
	REG_F21
	REG_F22
	REG_F23
	REG_F24
	REG_F25
	REG_F26
	REG_F27
	REG_F28
	REG_F29
	REG_F30
	REG_F31
)

// O32 names of the integer registers.
const (
	REG_ZERO = REG_R0
	REG_AT   = REG_R1
	REG_V0   = REG_R2
	REG_V1   = REG_R3
	REG_A0   = REG_R4
	REG_A1   = REG_R5
	REG_A2   = REG_R6
	REG_A3   = REG_R7
	REG_T0   = REG_R8
	REG_T1   = REG_R9
	REG_T2   = REG_R10
	REG_T3   = REG_R11
	REG_T4   = REG_R12
	REG_T5   = REG_R13
	REG_T6   = REG_R14
	REG_T7   = REG_R15
	REG_S0   = REG_R16
	REG_S1   = REG_R17
	REG_S2   = REG_R18
	REG_S3   = REG_R19
	REG_S4   = REG_R20
	REG_S5   = REG_R21
	REG_S6   = REG_R22
	REG_S7   = REG_R23
	REG_T8   = REG_R24
	REG_T9   = REG_R25
	REG_K0   = REG_R26
	REG_K1   = REG_R27
	REG_GP   = REG_R28
	REG_SP   = REG_R29
	REG_S8   = REG_R30
	REG_RA   = REG_R31
)

var coreRegisterNames = [32]string{
	"zero", "at", "v0", "v1", "a0", "a1", "a2", "a3",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6", "t7",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7",
	"t8", "t9", "k0", "k1", "gp", "sp", "s8", "ra",
}

// CoreRegister returns the register for the hardware number n.
func CoreRegister(n int) asm.Register { return REG_R0 + asm.Register(n) }

// FpuRegister returns the floating point register for the hardware number n.
func FpuRegister(n int) asm.Register { return REG_F0 + asm.Register(n) }

// IsFpuRegister returns true if r is a floating point register.
func IsFpuRegister(r asm.Register) bool { return r >= REG_F0 && r <= REG_F31 }

// IsCoreRegister returns true if r is an integer register.
func IsCoreRegister(r asm.Register) bool { return r >= REG_R0 && r <= REG_R31 }

// RegisterNumber returns the 5-bit hardware number of r.
func RegisterNumber(r asm.Register) uint32 {
	switch {
	case IsCoreRegister(r):
		return uint32(r - REG_R0)
	case IsFpuRegister(r):
		return uint32(r - REG_F0)
	}
	panic(fmt.Sprintf("BUG: invalid register %d", r))
}

// RegisterName returns the name of the given register.
func RegisterName(r asm.Register) string {
	switch {
	case r == asm.NilRegister:
		return "nil"
	case IsCoreRegister(r):
		return coreRegisterNames[r-REG_R0]
	case IsFpuRegister(r):
		return fmt.Sprintf("f%d", r-REG_F0)
	}
	return "unknown"
}

// MIPS32r2 instructions.
//
// Note: the FPU instructions are suffixed with the format: S for single, D for double and W for word.
const (
	NOP asm.Instruction = iota
	// LABEL is a pseudo instruction of zero size used as a branch target.
	LABEL
	// DATA is a pseudo instruction which emits raw bytes, used for jump tables.
	DATA

	ADDU
	SUBU
	AND
	OR
	XOR
	NOR
	SLT
	SLTU
	SLLV
	SRLV
	SRAV
	ROTRV
	MOVN
	MOVZ
	MUL

	SLL
	SRL
	SRA
	ROTR
	ADDIU
	ANDI
	ORI
	XORI
	SLTI
	SLTIU
	LUI

	MULT
	MULTU
	DIV
	DIVU
	MFHI
	MFLO

	SEB
	SEH
	CLZ

	LB
	LBU
	LH
	LHU
	LW
	SB
	SH
	SW
	LWC1
	SWC1
	LDC1
	SDC1

	// B is the unconditional relative branch "beq zero, zero, offset".
	B
	// BAL is "bgezal zero, offset".
	BAL
	// NAL is "bltzal zero, 0": it only writes the address of the instruction after its delay slot to ra.
	NAL
	BEQ
	BNE
	BLEZ
	BGTZ
	BLTZ
	BGEZ
	BC1T
	BC1F
	JR
	JALR

	SYNC

	ADD_S
	ADD_D
	SUB_S
	SUB_D
	MUL_S
	MUL_D
	DIV_S
	DIV_D
	MOV_S
	MOV_D
	NEG_S
	NEG_D
	CVT_S_D
	CVT_D_S
	CVT_S_W
	CVT_D_W
	TRUNC_W_S
	TRUNC_W_D
	C_EQ_S
	C_EQ_D
	C_OLT_S
	C_OLT_D
	C_OLE_S
	C_OLE_D
	C_ULT_S
	C_ULT_D
	C_ULE_S
	C_ULE_D
	C_UN_S
	C_UN_D
	MFC1
	MTC1
	MFHC1
	MTHC1

	instructionEnd
)

var instructionNames = [...]string{
	NOP:       "NOP", LABEL: "LABEL", DATA: "DATA",
	ADDU:      "ADDU", SUBU: "SUBU", AND: "AND", OR: "OR", XOR: "XOR", NOR: "NOR", SLT: "SLT", SLTU: "SLTU",
	SLLV:      "SLLV", SRLV: "SRLV", SRAV: "SRAV", ROTRV: "ROTRV", MOVN: "MOVN", MOVZ: "MOVZ", MUL: "MUL",
	SLL:       "SLL", SRL: "SRL", SRA: "SRA", ROTR: "ROTR", ADDIU: "ADDIU", ANDI: "ANDI", ORI: "ORI", XORI: "XORI",
	SLTI:      "SLTI", SLTIU: "SLTIU", LUI: "LUI",
	MULT:      "MULT", MULTU: "MULTU", DIV: "DIV", DIVU: "DIVU", MFHI: "MFHI", MFLO: "MFLO",
	SEB:       "SEB", SEH: "SEH", CLZ: "CLZ",
	LB:        "LB", LBU: "LBU", LH: "LH", LHU: "LHU", LW: "LW", SB: "SB", SH: "SH", SW: "SW",
	LWC1:      "LWC1", SWC1: "SWC1", LDC1: "LDC1", SDC1: "SDC1",
	B:         "B", BAL: "BAL", NAL: "NAL", BEQ: "BEQ", BNE: "BNE", BLEZ: "BLEZ", BGTZ: "BGTZ", BLTZ: "BLTZ", BGEZ: "BGEZ",
	BC1T:      "BC1T", BC1F: "BC1F", JR: "JR", JALR: "JALR",
	SYNC:      "SYNC",
	ADD_S:     "ADD.S", ADD_D: "ADD.D", SUB_S: "SUB.S", SUB_D: "SUB.D", MUL_S: "MUL.S", MUL_D: "MUL.D",
	DIV_S:     "DIV.S", DIV_D: "DIV.D", MOV_S: "MOV.S", MOV_D: "MOV.D", NEG_S: "NEG.S", NEG_D: "NEG.D",
	CVT_S_D:   "CVT.S.D", CVT_D_S: "CVT.D.S", CVT_S_W: "CVT.S.W", CVT_D_W: "CVT.D.W",
	TRUNC_W_S: "TRUNC.W.S", TRUNC_W_D: "TRUNC.W.D",
	C_EQ_S:    "C.EQ.S", C_EQ_D: "C.EQ.D", C_OLT_S: "C.OLT.S", C_OLT_D: "C.OLT.D", C_OLE_S: "C.OLE.S", C_OLE_D: "C.OLE.D",
	C_ULT_S:   "C.ULT.S", C_ULT_D: "C.ULT.D", C_ULE_S: "C.ULE.S", C_ULE_D: "C.ULE.D", C_UN_S: "C.UN.S", C_UN_D: "C.UN.D",
	MFC1:      "MFC1", MTC1: "MTC1", MFHC1: "MFHC1", MTHC1: "MTHC1",
}

// InstructionName returns the name for an instruction
func InstructionName(instruction asm.Instruction) string {
	if int(instruction) < len(instructionNames) {
		if name := instructionNames[instruction]; name != "" {
			return name
		}
	}
	return "UNKNOWN"
}

// IsBranch returns true if the instruction has a delay slot.
func IsBranch(instruction asm.Instruction) bool {
	switch instruction {
	case B, BAL, NAL, BEQ, BNE, BLEZ, BGTZ, BLTZ, BGEZ, BC1T, BC1F, JR, JALR:
		return true
	}
	return false
}

// isRelativeBranch returns true if the instruction has a 16-bit PC-relative target.
func isRelativeBranch(instruction asm.Instruction) bool {
	return IsBranch(instruction) && instruction != NAL && instruction != JR && instruction != JALR
}

// InvertBranch returns the conditional branch taken exactly when the given one is not.
func InvertBranch(instruction asm.Instruction) asm.Instruction {
	switch instruction {
	case BEQ:
		return BNE
	case BNE:
		return BEQ
	case BLEZ:
		return BGTZ
	case BGTZ:
		return BLEZ
	case BLTZ:
		return BGEZ
	case BGEZ:
		return BLTZ
	case BC1T:
		return BC1F
	case BC1F:
		return BC1T
	}
	panic("BUG: not a conditional branch: " + InstructionName(instruction))
}
