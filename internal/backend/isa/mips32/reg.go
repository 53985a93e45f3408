package mips32

import (
	"github.com/tetratelabs/irgen/internal/asm"
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
	"github.com/tetratelabs/irgen/internal/backend"
)

// Core register numbers in the O32 naming, as used by backend.Location.
const (
	zero = iota
	at
	v0
	v1
	a0
	a1
	a2
	a3
	t0
	t1
	t2
	t3
	t4
	t5
	t6
	t7
	s0
	s1
	s2
	s3
	s4
	s5
	s6
	s7
	t8
	t9
	k0
	k1
	gp
	sp
	s8
	ra
)

// Reserved registers. at, tmp and t9 are scratch registers of the code
// generator and never hold a value across instructions. t9 additionally holds
// the target of indirect calls.
const (
	tmp = t8
	tr  = s1
	// ftmp is the FPU scratch register.
	ftmp = 30
)

// Register aliases in the assembler's numbering.
var (
	regZero = asm_mips32.REG_ZERO
	regAT   = asm_mips32.REG_AT
	regV0   = asm_mips32.REG_V0
	regV1   = asm_mips32.REG_V1
	regA0   = asm_mips32.REG_A0
	regTMP  = asm_mips32.REG_T8
	regT9   = asm_mips32.REG_T9
	regTR   = asm_mips32.REG_S1
	regSP   = asm_mips32.REG_SP
	regRA   = asm_mips32.REG_RA
	regFTMP = asm_mips32.REG_F30
)

func core(r int) asm.Register { return asm_mips32.CoreRegister(r) }

func fpu(r int) asm.Register { return asm_mips32.FpuRegister(r) }

// reg returns the assembler register of a core or FPU register location.
func reg(loc backend.Location) asm.Register {
	switch {
	case loc.IsRegister():
		return core(loc.Reg())
	case loc.IsFpuRegister():
		return fpu(loc.Reg())
	}
	panic("BUG: not a register: " + loc.String())
}

func lowReg(loc backend.Location) asm.Register  { return core(loc.LowReg()) }
func highReg(loc backend.Location) asm.Register { return core(loc.HighReg()) }

// Caller-save registers, saved by slow paths around runtime calls.
var (
	callerSaveCore = []int{v0, v1, a0, a1, a2, a3, t0, t1, t2, t3, t4, t5, t6, t7}
	callerSaveFpu  = []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}
	calleeSaveCore = []int{s0, s2, s3, s4, s5, s6, s7, s8}
	calleeSaveFpu  = []int{20, 22, 24, 26, 28}

	callerSaves = backend.NewRegisterSet(callerSaveCore, callerSaveFpu)
	calleeSaves = backend.NewRegisterSet(calleeSaveCore, calleeSaveFpu)
)

// dwarfCore and dwarfFpu return the DWARF register numbers used in CFI.
func dwarfCore(r int) int { return r }
func dwarfFpu(r int) int  { return 32 + r }

func (m *machine) newRegisterInfo() *backend.RegisterInfo {
	return &backend.RegisterInfo{
		WordSize:        4,
		AllocatableCore: append(append([]int{}, callerSaveCore...), calleeSaveCore...),
		AllocatableFpu:  append(append([]int{}, callerSaveFpu...), calleeSaveFpu...),
		RegisterPairs: [][2]int{
			{v0, v1}, {a0, a1}, {a2, a3}, {t0, t1}, {t2, t3}, {t4, t5}, {t6, t7},
			{s2, s3}, {s4, s5}, {s6, s7},
		},
		CalleeSaves:          calleeSaves,
		ParameterStackOffset: m.parameterStackOffset,
	}
}
