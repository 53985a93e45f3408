package asm_mips32

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/irgen/internal/asm"
)

func words(code []byte) (ret []uint32) {
	for i := 0; i+4 <= len(code); i += 4 {
		ret = append(ret, binary.LittleEndian.Uint32(code[i:]))
	}
	return
}

func TestNodeImpl_AssignJumpTarget(t *testing.T) {
	n := &NodeImpl{}
	target := &NodeImpl{}
	n.AssignJumpTarget(target)
	require.Equal(t, n.JumpTarget, target)
}

func TestNodeImpl_AssignDestinationConstant(t *testing.T) {
	n := &NodeImpl{}
	n.AssignDestinationConstant(12345)
	require.Equal(t, int64(12345), n.DstConst)
}

func TestNodeImpl_AssignSourceConstant(t *testing.T) {
	n := &NodeImpl{}
	n.AssignSourceConstant(12345)
	require.Equal(t, int64(12345), n.SrcConst)
}

func TestNodeImpl_String(t *testing.T) {
	for _, tc := range []struct {
		in  *NodeImpl
		exp string
	}{
		{in: &NodeImpl{Instruction: NOP, Types: OperandTypesNoneToNone}, exp: "NOP"},
		{in: &NodeImpl{Instruction: JR, Types: OperandTypesNoneToRegister, DstReg: REG_RA}, exp: "JR ra"},
		{
			in:  &NodeImpl{Instruction: B, Types: OperandTypesNoneToBranch, JumpTarget: &NodeImpl{Instruction: LABEL, Types: OperandTypesNoneToNone}},
			exp: "B {LABEL}",
		},
		{
			in:  &NodeImpl{Instruction: BEQ, Types: OperandTypesTwoRegistersToBranch, SrcReg: REG_A0, SrcReg2: REG_ZERO, JumpTarget: &NodeImpl{Instruction: NOP}},
			exp: "BEQ (a0, zero), {NOP}",
		},
		{
			in:  &NodeImpl{Instruction: ADDU, Types: OperandTypesTwoRegistersToRegister, SrcReg: REG_A0, SrcReg2: REG_A1, DstReg: REG_V0},
			exp: "ADDU (a0, a1), v0",
		},
		{
			in:  &NodeImpl{Instruction: ADDIU, Types: OperandTypesRegisterAndConstToRegister, SrcReg: REG_SP, SrcConst: -16, DstReg: REG_SP},
			exp: "ADDIU (sp, -16), sp",
		},
		{
			in:  &NodeImpl{Instruction: SW, Types: OperandTypesRegisterToMemory, SrcReg: REG_RA, DstReg: REG_SP, DstConst: 12},
			exp: "SW ra, [sp + 12]",
		},
		{
			in:  &NodeImpl{Instruction: LDC1, Types: OperandTypesMemoryToRegister, SrcReg: REG_SP, SrcConst: 8, DstReg: REG_F20},
			exp: "LDC1 [sp + 8], f20",
		},
		{in: &NodeImpl{Instruction: LUI, Types: OperandTypesConstToRegister, SrcConst: 0x1234, DstReg: REG_AT}, exp: "LUI 0x1234, at"},
		{in: &NodeImpl{Instruction: DATA, Types: OperandTypesData, Data: make([]byte, 8)}, exp: "DATA 8 bytes"},
	} {
		require.Equal(t, tc.exp, tc.in.String())
	}
}

func TestAssemblerImpl_encoding(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(a *AssemblerImpl)
		exp   uint32
	}{
		{name: "nop", setup: func(a *AssemblerImpl) { a.CompileStandAlone(NOP) }, exp: 0},
		{name: "sync", setup: func(a *AssemblerImpl) { a.CompileStandAlone(SYNC) }, exp: 0x0000000f},
		{name: "addu v0, a0, a1", setup: func(a *AssemblerImpl) { a.CompileTwoRegistersToRegister(ADDU, REG_A0, REG_A1, REG_V0) }, exp: 0x00851021},
		{name: "movn v0, a0, a1", setup: func(a *AssemblerImpl) { a.CompileTwoRegistersToRegister(MOVN, REG_A0, REG_A1, REG_V0) }, exp: 0x0085100b},
		{name: "mul v0, a0, a1", setup: func(a *AssemblerImpl) { a.CompileTwoRegistersToRegister(MUL, REG_A0, REG_A1, REG_V0) }, exp: 0x70851002},
		{name: "sllv v0, a0, a1", setup: func(a *AssemblerImpl) { a.CompileTwoRegistersToRegister(SLLV, REG_A0, REG_A1, REG_V0) }, exp: 0x00a41004},
		{name: "addiu sp, sp, -16", setup: func(a *AssemblerImpl) { a.CompileRegisterAndConstToRegister(ADDIU, REG_SP, -16, REG_SP) }, exp: 0x27bdfff0},
		{name: "sltiu at, t0, 10", setup: func(a *AssemblerImpl) { a.CompileRegisterAndConstToRegister(SLTIU, REG_T0, 10, REG_AT) }, exp: 0x2d01000a},
		{name: "ori at, at, 0x5678", setup: func(a *AssemblerImpl) { a.CompileRegisterAndConstToRegister(ORI, REG_AT, 0x5678, REG_AT) }, exp: 0x34215678},
		{name: "sll t0, t1, 2", setup: func(a *AssemblerImpl) { a.CompileRegisterAndConstToRegister(SLL, REG_T1, 2, REG_T0) }, exp: 0x00094080},
		{name: "rotr v0, a0, 3", setup: func(a *AssemblerImpl) { a.CompileRegisterAndConstToRegister(ROTR, REG_A0, 3, REG_V0) }, exp: 0x002410c2},
		{name: "lui at, 0x1234", setup: func(a *AssemblerImpl) { a.CompileConstToRegister(LUI, 0x1234, REG_AT) }, exp: 0x3c011234},
		{name: "lw ra, 12(sp)", setup: func(a *AssemblerImpl) { a.CompileMemoryToRegister(LW, REG_SP, 12, REG_RA) }, exp: 0x8fbf000c},
		{name: "sw ra, 12(sp)", setup: func(a *AssemblerImpl) { a.CompileRegisterToMemory(SW, REG_RA, REG_SP, 12) }, exp: 0xafbf000c},
		{name: "lwc1 f0, 4(sp)", setup: func(a *AssemblerImpl) { a.CompileMemoryToRegister(LWC1, REG_SP, 4, REG_F0) }, exp: 0xc7a00004},
		{name: "mult a0, a1", setup: func(a *AssemblerImpl) { a.CompileTwoRegistersToNone(MULT, REG_A0, REG_A1) }, exp: 0x00850018},
		{name: "mfhi v0", setup: func(a *AssemblerImpl) { a.CompileNoneToRegister(MFHI, REG_V0) }, exp: 0x00001010},
		{name: "mflo v0", setup: func(a *AssemblerImpl) { a.CompileNoneToRegister(MFLO, REG_V0) }, exp: 0x00001012},
		{name: "seb v0, a0", setup: func(a *AssemblerImpl) { a.CompileRegisterToRegister(SEB, REG_A0, REG_V0) }, exp: 0x7c041420},
		{name: "add.s f0, f12, f14", setup: func(a *AssemblerImpl) { a.CompileTwoRegistersToRegister(ADD_S, REG_F12, REG_F14, REG_F0) }, exp: 0x460e6000},
		{name: "c.olt.d f12, f14", setup: func(a *AssemblerImpl) { a.CompileTwoRegistersToNone(C_OLT_D, REG_F12, REG_F14) }, exp: 0x462e6034},
		{name: "trunc.w.s f0, f12", setup: func(a *AssemblerImpl) { a.CompileRegisterToRegister(TRUNC_W_S, REG_F12, REG_F0) }, exp: 0x4600600d},
		{name: "cvt.d.w f0, f12", setup: func(a *AssemblerImpl) { a.CompileRegisterToRegister(CVT_D_W, REG_F12, REG_F0) }, exp: 0x46806021},
		{name: "mtc1 a0, f12", setup: func(a *AssemblerImpl) { a.CompileRegisterToRegister(MTC1, REG_A0, REG_F12) }, exp: 0x44846000},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAssemblerImpl()
			tc.setup(a)
			code, err := a.Assemble()
			require.NoError(t, err)
			require.Equal(t, []uint32{tc.exp}, words(code))
		})
	}
}

func TestAssemblerImpl_jumps(t *testing.T) {
	a := NewAssemblerImpl()
	a.CompileJumpToRegister(JALR, REG_T9)
	a.CompileStandAlone(NOP)
	a.CompileStandAlone(NAL)
	a.CompileStandAlone(NOP)
	a.CompileJumpToRegister(JR, REG_RA)
	a.CompileStandAlone(NOP)
	code, err := a.Assemble()
	require.NoError(t, err)
	require.Equal(t, []uint32{0x0320f809, 0, 0x04100000, 0, 0x03e00008, 0}, words(code))
}

func TestAssemblerImpl_relativeBranches(t *testing.T) {
	a := NewAssemblerImpl()
	beq := a.CompileTwoRegistersToBranch(BEQ, REG_A0, REG_A1)
	a.CompileStandAlone(NOP)
	back := a.CompileLabel()
	bc1t := a.CompileJump(BC1T)
	a.CompileStandAlone(NOP)
	a.SetJumpTargetOnNext(beq)
	bal := a.CompileJump(BAL)
	a.CompileStandAlone(NOP)
	bgez := a.CompileRegisterToBranch(BGEZ, REG_T0)
	a.CompileStandAlone(NOP)
	bc1t.AssignJumpTarget(back)
	bal.AssignJumpTarget(back)
	bgez.AssignJumpTarget(back)

	code, err := a.Assemble()
	require.NoError(t, err)
	require.Equal(t, []uint32{
		0x10850003, // beq a0, a1, +3
		0,          // nop
		0x4501ffff, // bc1t -1 (to itself)
		0,          // nop
		0x0411fffd, // bal -3
		0,          // nop
		0x0501fffb, // bgez t0, -5
		0,          // nop
	}, words(code))
	require.Equal(t, uint64(8), back.OffsetInBinary())
	require.Zero(t, a.LongBranches())
}

func TestAssemblerImpl_longBranches(t *testing.T) {
	t.Run("unconditional", func(t *testing.T) {
		a := NewAssemblerImpl()
		a.BranchRange = 16
		b := a.CompileJump(B)
		a.CompileStandAlone(NOP)
		for i := 0; i < 10; i++ {
			a.CompileStandAlone(NOP)
		}
		a.SetJumpTargetOnNext(b)
		a.CompileStandAlone(SYNC)

		code, err := a.Assemble()
		require.NoError(t, err)
		require.Equal(t, 1, a.LongBranches())
		w := words(code)
		require.Equal(t, 17, len(w))
		// The target is at 64, relative to the address after nal's delay slot.
		require.Equal(t, []uint32{0x04100000, 0x3c010000, 0x34210038, 0x003f0821, 0x00200008}, w[:5])
		require.Equal(t, uint32(0x0000000f), w[16])
	})
	t.Run("conditional", func(t *testing.T) {
		a := NewAssemblerImpl()
		a.BranchRange = 16
		target := a.CompileLabel()
		a.CompileStandAlone(SYNC)
		for i := 0; i < 10; i++ {
			a.CompileStandAlone(NOP)
		}
		bne := a.CompileTwoRegistersToBranch(BNE, REG_A0, REG_ZERO)
		a.CompileRegisterAndConstToRegister(ADDIU, REG_A0, 1, REG_A0)
		bne.AssignJumpTarget(target)

		code, err := a.Assemble()
		require.NoError(t, err)
		w := words(code)
		require.Equal(t, 11+7+1, len(w))
		// beq a0, zero, +6 skips to the delay slot instruction.
		require.Equal(t, uint32(0x10800006), w[11])
		require.Equal(t, uint32(0), w[12])
		require.Equal(t, uint32(0x04100000), w[13])
		// -(44 + 16) = -60
		require.Equal(t, uint32(0x3c01ffff), w[14])
		require.Equal(t, uint32(0x3421ffc4), w[15])
		require.Equal(t, uint32(0x00200008), w[17])
		require.Equal(t, uint32(0x24840001), w[18])
	})
}

func TestAssemblerImpl_delaySlots(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(a *AssemblerImpl)
	}{
		{name: "missing", setup: func(a *AssemblerImpl) { a.CompileJumpToRegister(JR, REG_RA) }},
		{name: "label", setup: func(a *AssemblerImpl) {
			a.CompileJumpToRegister(JR, REG_RA)
			a.CompileLabel()
			a.CompileStandAlone(NOP)
		}},
		{name: "branch", setup: func(a *AssemblerImpl) {
			a.CompileJumpToRegister(JR, REG_RA)
			a.CompileJumpToRegister(JR, REG_RA)
			a.CompileStandAlone(NOP)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAssemblerImpl()
			tc.setup(a)
			_, err := a.Assemble()
			require.Error(t, err)
		})
	}
}

func TestAssemblerImpl_jumpTable(t *testing.T) {
	a := NewAssemblerImpl()
	anchor := a.CompileStandAlone(NAL)
	a.CompileStandAlone(NOP)
	table := a.CompileData(make([]byte, 8))
	first := a.CompileLabel()
	a.CompileStandAlone(NOP)
	second := a.CompileLabel()
	a.CompileStandAlone(SYNC)
	a.BuildJumpTable(table, anchor, 8, []asm.Node{first, second})

	code, err := a.Assemble()
	require.NoError(t, err)
	require.Equal(t, []uint32{0x04100000, 0, 8, 12, 0, 0xf}, words(code))
}

func TestAssemblerImpl_errors(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(a *AssemblerImpl)
	}{
		{name: "addiu", setup: func(a *AssemblerImpl) { a.CompileRegisterAndConstToRegister(ADDIU, REG_A0, 1<<15, REG_A0) }},
		{name: "ori", setup: func(a *AssemblerImpl) { a.CompileRegisterAndConstToRegister(ORI, REG_A0, -1, REG_A0) }},
		{name: "shift", setup: func(a *AssemblerImpl) { a.CompileRegisterAndConstToRegister(SLL, REG_A0, 32, REG_A0) }},
		{name: "offset", setup: func(a *AssemblerImpl) { a.CompileMemoryToRegister(LW, REG_SP, 40000, REG_A0) }},
		{name: "store as load", setup: func(a *AssemblerImpl) { a.CompileMemoryToRegister(SW, REG_SP, 0, REG_A0) }},
		{name: "no target", setup: func(a *AssemblerImpl) {
			a.CompileJump(B)
			a.CompileStandAlone(NOP)
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAssemblerImpl()
			tc.setup(a)
			_, err := a.Assemble()
			require.Error(t, err)
		})
	}
}
