package mips32debug

import (
	"testing"

	"github.com/stretchr/testify/require"

	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
)

func TestListing(t *testing.T) {
	a := asm_mips32.NewAssemblerImpl()
	a.CompileTwoRegistersToRegister(asm_mips32.ADDU, asm_mips32.REG_A0, asm_mips32.REG_A1, asm_mips32.REG_V0)
	a.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, asm_mips32.REG_SP, -16, asm_mips32.REG_SP)
	loop := a.CompileLabel()
	a.CompileMemoryToRegister(asm_mips32.LW, asm_mips32.REG_SP, 12, asm_mips32.REG_T0)
	a.CompileRegisterToMemory(asm_mips32.SB, asm_mips32.REG_T0, asm_mips32.REG_A0, 0)
	br := a.CompileTwoRegistersToBranch(asm_mips32.BNE, asm_mips32.REG_T0, asm_mips32.REG_ZERO)
	br.AssignJumpTarget(loop)
	a.CompileStandAlone(asm_mips32.NOP)

	code, err := a.Assemble()
	require.NoError(t, err)

	listing, err := Listing(a.Root, code)
	require.NoError(t, err)
	require.Equal(t, `     0: 00851021  ADDU (a0, a1), v0
     4: 27bdfff0  ADDIU (sp, -16), sp
L8:
     8: 8fa8000c  LW [sp + 12], t0
     c: a0880000  SB t0, [a0 + 0]
    10: 1500fffd  BNE (t0, zero), L8
    14: 00000000  NOP
`, listing)

	t.Run("mismatch", func(t *testing.T) {
		broken := append([]byte(nil), code...)
		broken[0] ^= 0xff
		listing, err := Listing(a.Root, broken)
		require.Error(t, err)
		require.Contains(t, err.Error(), "but Go encodes 00851021")
		require.Contains(t, listing, "; go: 00851021")
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Listing(a.Root, code[:8])
		require.Error(t, err)
	})
}

func TestGoasmEncoding(t *testing.T) {
	for _, tc := range []struct {
		name  string
		build func(a *asm_mips32.AssemblerImpl)
		exp   uint32
	}{
		{
			name: "addu",
			build: func(a *asm_mips32.AssemblerImpl) {
				a.CompileTwoRegistersToRegister(asm_mips32.ADDU, asm_mips32.REG_A0, asm_mips32.REG_A1, asm_mips32.REG_V0)
			},
			exp: 0x00851021,
		},
		{
			name: "addiu",
			build: func(a *asm_mips32.AssemblerImpl) {
				a.CompileRegisterAndConstToRegister(asm_mips32.ADDIU, asm_mips32.REG_SP, -16, asm_mips32.REG_SP)
			},
			exp: 0x27bdfff0,
		},
		{
			name: "lw",
			build: func(a *asm_mips32.AssemblerImpl) {
				a.CompileMemoryToRegister(asm_mips32.LW, asm_mips32.REG_SP, 12, asm_mips32.REG_T0)
			},
			exp: 0x8fa8000c,
		},
		{
			name: "sb",
			build: func(a *asm_mips32.AssemblerImpl) {
				a.CompileRegisterToMemory(asm_mips32.SB, asm_mips32.REG_T0, asm_mips32.REG_A0, 0)
			},
			exp: 0xa0880000,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			a := asm_mips32.NewAssemblerImpl()
			tc.build(a)
			actual, ok, err := goasmEncoding(a.Root)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, tc.exp, actual)
		})
	}

	t.Run("not cross-checked", func(t *testing.T) {
		a := asm_mips32.NewAssemblerImpl()
		a.CompileStandAlone(asm_mips32.NOP)
		_, ok, err := goasmEncoding(a.Root)
		require.NoError(t, err)
		require.False(t, ok)
	})
}
