package mips32debug

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/mips"
	"go.uber.org/multierr"

	"github.com/tetratelabs/irgen/internal/asm"
	"github.com/tetratelabs/irgen/internal/asm/golang_asm"
	asm_mips32 "github.com/tetratelabs/irgen/internal/asm/mips32"
)

// Listing renders the assembled nodes from root with their encodings in code.
//
// The instructions which Go's assembler can express without rewriting are
// assembled again with golang-asm, and any encoding which differs from ours
// is reported in the returned error. The listing is complete in either case.
//
// Note: this is slow and meant for debugging the assembler only.
func Listing(root *asm_mips32.NodeImpl, code []byte) (string, error) {
	var buf bytes.Buffer
	var errs error
	for n := root; n != nil; n = n.Next {
		off := uint64(n.OffsetInBinary())
		switch n.Instruction {
		case asm_mips32.LABEL:
			fmt.Fprintf(&buf, "L%x:\n", off)
			continue
		case asm_mips32.DATA:
			fmt.Fprintf(&buf, "%6x: %s\n", off, n)
			continue
		}
		if off+4 > uint64(len(code)) {
			return "", fmt.Errorf("%s at %#x is out of the code of %d bytes", n, off, len(code))
		}
		word := binary.LittleEndian.Uint32(code[off:])
		fmt.Fprintf(&buf, "%6x: %08x  %s", off, word, render(n))

		expected, ok, err := goasmEncoding(n)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", n, err))
		} else if ok && expected != word {
			errs = multierr.Append(errs, fmt.Errorf("%s at %#x: encoded as %08x but Go encodes %08x", n, off, word, expected))
			fmt.Fprintf(&buf, "  ; go: %08x", expected)
		}
		if n.Long {
			buf.WriteString("  ; long")
		}
		buf.WriteByte('\n')
	}
	return buf.String(), errs
}

// render formats n, replacing the branch target with its offset.
func render(n *asm_mips32.NodeImpl) string {
	if n.JumpTarget == nil {
		return n.String()
	}
	name := asm_mips32.InstructionName(n.Instruction)
	target := uint64(n.JumpTarget.OffsetInBinary())
	switch n.Types {
	case asm_mips32.OperandTypesRegisterToBranch:
		return fmt.Sprintf("%s %s, L%x", name, asm_mips32.RegisterName(n.SrcReg), target)
	case asm_mips32.OperandTypesTwoRegistersToBranch:
		return fmt.Sprintf("%s (%s, %s), L%x", name,
			asm_mips32.RegisterName(n.SrcReg), asm_mips32.RegisterName(n.SrcReg2), target)
	}
	return fmt.Sprintf("%s L%x", name, target)
}

var (
	threeOperands = map[asm.Instruction]obj.As{
		asm_mips32.ADDU: mips.AADDU,
		asm_mips32.SUBU: mips.ASUBU,
		asm_mips32.AND:  mips.AAND,
		asm_mips32.OR:   mips.AOR,
		asm_mips32.XOR:  mips.AXOR,
		asm_mips32.NOR:  mips.ANOR,
	}
	immediates = map[asm.Instruction]obj.As{
		asm_mips32.ADDIU: mips.AADDU,
		asm_mips32.ANDI:  mips.AAND,
		asm_mips32.ORI:   mips.AOR,
		asm_mips32.XORI:  mips.AXOR,
		asm_mips32.SLL:   mips.ASLL,
		asm_mips32.SRL:   mips.ASRL,
		asm_mips32.SRA:   mips.ASRA,
	}
	memoryAccesses = map[asm.Instruction]obj.As{
		asm_mips32.LW:  mips.AMOVW,
		asm_mips32.LH:  mips.AMOVH,
		asm_mips32.LHU: mips.AMOVHU,
		asm_mips32.LB:  mips.AMOVB,
		asm_mips32.LBU: mips.AMOVBU,
		asm_mips32.SW:  mips.AMOVW,
		asm_mips32.SH:  mips.AMOVH,
		asm_mips32.SB:  mips.AMOVB,
	}
)

func goRegister(r asm.Register) int16 {
	return mips.REG_R0 + int16(asm_mips32.RegisterNumber(r))
}

// goasmEncoding returns the encoding of n by Go's assembler, or false if n is
// not one of the cross-checked forms.
func goasmEncoding(n *asm_mips32.NodeImpl) (uint32, bool, error) {
	var fill func(p *obj.Prog)
	switch n.Types {
	case asm_mips32.OperandTypesTwoRegistersToRegister:
		as, ok := threeOperands[n.Instruction]
		if !ok {
			return 0, false, nil
		}
		// Go's operand order is rt, rs, rd.
		fill = func(p *obj.Prog) {
			p.As = as
			p.From.Type, p.From.Reg = obj.TYPE_REG, goRegister(n.SrcReg2)
			p.Reg = goRegister(n.SrcReg)
			p.To.Type, p.To.Reg = obj.TYPE_REG, goRegister(n.DstReg)
		}
	case asm_mips32.OperandTypesRegisterAndConstToRegister:
		as, ok := immediates[n.Instruction]
		// Zero immediates are folded into register forms by Go.
		if !ok || n.SrcConst == 0 {
			return 0, false, nil
		}
		fill = func(p *obj.Prog) {
			p.As = as
			p.From.Type, p.From.Offset = obj.TYPE_CONST, n.SrcConst
			p.Reg = goRegister(n.SrcReg)
			p.To.Type, p.To.Reg = obj.TYPE_REG, goRegister(n.DstReg)
		}
	case asm_mips32.OperandTypesMemoryToRegister:
		as, ok := memoryAccesses[n.Instruction]
		if !ok {
			return 0, false, nil
		}
		fill = func(p *obj.Prog) {
			p.As = as
			p.From.Type, p.From.Reg, p.From.Offset = obj.TYPE_MEM, goRegister(n.SrcReg), n.SrcConst
			p.To.Type, p.To.Reg = obj.TYPE_REG, goRegister(n.DstReg)
		}
	case asm_mips32.OperandTypesRegisterToMemory:
		as, ok := memoryAccesses[n.Instruction]
		if !ok {
			return 0, false, nil
		}
		fill = func(p *obj.Prog) {
			p.As = as
			p.From.Type, p.From.Reg = obj.TYPE_REG, goRegister(n.SrcReg)
			p.To.Type, p.To.Reg, p.To.Offset = obj.TYPE_MEM, goRegister(n.DstReg), n.DstConst
		}
	default:
		return 0, false, nil
	}

	a, err := golang_asm.NewGolangAsmBaseAssembler("mipsle")
	if err != nil {
		return 0, false, err
	}
	// Go's assembler encodes the progs following the text symbol.
	text := a.NewProg()
	text.As = obj.ATEXT
	a.AddInstruction(text)
	p := a.NewProg()
	fill(p)
	a.AddInstruction(p)

	var word uint32
	a.AddOnGenerateCallBack(func(code []byte) error {
		if len(code) < 4 {
			return fmt.Errorf("golang-asm generated %d bytes", len(code))
		}
		word = binary.LittleEndian.Uint32(code)
		return nil
	})
	if _, err := a.Assemble(); err != nil {
		return 0, false, err
	}
	return word, true, nil
}
