package asm_mips32

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/tetratelabs/irgen/internal/asm"
)

type NodeImpl struct {
	// NOTE: fields here are exported for testing with the mips32_debug package.

	Instruction asm.Instruction

	OffsetInBinaryField asm.NodeOffsetInBinary // Field suffix to dodge conflict with OffsetInBinary

	// JumpTarget holds the target node in the linked for the jump-kind instruction.
	JumpTarget *NodeImpl
	// Next holds the next node from this node in the assembled linked list.
	Next *NodeImpl

	Types                   OperandTypes
	SrcReg, SrcReg2, DstReg asm.Register
	SrcConst, DstConst      asm.ConstantValue

	// Data holds the raw bytes of DATA nodes.
	Data []byte

	// Long is set by Assemble when the target of a relative branch is out of
	// the 16-bit range and the branch is emitted as a long jump sequence.
	Long bool
}

// AssignJumpTarget implements the same method as documented on asm.Node.
func (n *NodeImpl) AssignJumpTarget(target asm.Node) {
	n.JumpTarget = target.(*NodeImpl)
}

// AssignDestinationConstant implements the same method as documented on asm.Node.
func (n *NodeImpl) AssignDestinationConstant(value asm.ConstantValue) {
	n.DstConst = value
}

// AssignSourceConstant implements the same method as documented on asm.Node.
func (n *NodeImpl) AssignSourceConstant(value asm.ConstantValue) {
	n.SrcConst = value
}

// OffsetInBinary implements the same method as documented on asm.Node.
func (n *NodeImpl) OffsetInBinary() asm.NodeOffsetInBinary {
	return n.OffsetInBinaryField
}

// String implements fmt.Stringer.
//
// This is for debugging purpose, and the format is similar to the AT&T assembly syntax,
// meaning that this should look like "INSTRUCTION ${from}, ${to}" where each operand
// might be embraced by '[]' to represent the memory location, and multiple operands
// are embraced by `()`.
func (n *NodeImpl) String() (ret string) {
	instName := InstructionName(n.Instruction)
	switch n.Types {
	case OperandTypesNoneToNone:
		ret = instName
	case OperandTypesNoneToRegister:
		ret = fmt.Sprintf("%s %s", instName, RegisterName(n.DstReg))
	case OperandTypesNoneToBranch:
		ret = fmt.Sprintf("%s {%v}", instName, n.JumpTarget)
	case OperandTypesRegisterToBranch:
		ret = fmt.Sprintf("%s %s, {%v}", instName, RegisterName(n.SrcReg), n.JumpTarget)
	case OperandTypesTwoRegistersToBranch:
		ret = fmt.Sprintf("%s (%s, %s), {%v}", instName, RegisterName(n.SrcReg), RegisterName(n.SrcReg2), n.JumpTarget)
	case OperandTypesRegisterToRegister:
		ret = fmt.Sprintf("%s %s, %s", instName, RegisterName(n.SrcReg), RegisterName(n.DstReg))
	case OperandTypesTwoRegistersToRegister:
		ret = fmt.Sprintf("%s (%s, %s), %s", instName, RegisterName(n.SrcReg), RegisterName(n.SrcReg2), RegisterName(n.DstReg))
	case OperandTypesRegisterAndConstToRegister:
		ret = fmt.Sprintf("%s (%s, %d), %s", instName, RegisterName(n.SrcReg), n.SrcConst, RegisterName(n.DstReg))
	case OperandTypesTwoRegistersToNone:
		ret = fmt.Sprintf("%s (%s, %s)", instName, RegisterName(n.SrcReg), RegisterName(n.SrcReg2))
	case OperandTypesRegisterToMemory:
		ret = fmt.Sprintf("%s %s, [%s + %d]", instName, RegisterName(n.SrcReg), RegisterName(n.DstReg), n.DstConst)
	case OperandTypesMemoryToRegister:
		ret = fmt.Sprintf("%s [%s + %d], %s", instName, RegisterName(n.SrcReg), n.SrcConst, RegisterName(n.DstReg))
	case OperandTypesConstToRegister:
		ret = fmt.Sprintf("%s 0x%x, %s", instName, n.SrcConst, RegisterName(n.DstReg))
	case OperandTypesData:
		ret = fmt.Sprintf("%s %d bytes", instName, len(n.Data))
	}
	return
}

// OperandType represents where an operand is placed for an instruction.
// Note: this is almost the same as obj.AddrType in GO assembler.
type OperandType byte

const (
	OperandTypeNone OperandType = iota
	OperandTypeRegister
	OperandTypeTwoRegisters
	OperandTypeRegisterAndConst
	OperandTypeMemory
	OperandTypeConst
	OperandTypeBranch
	OperandTypeData
)

// String implements fmt.Stringer.
func (o OperandType) String() (ret string) {
	switch o {
	case OperandTypeNone:
		ret = "none"
	case OperandTypeRegister:
		ret = "register"
	case OperandTypeTwoRegisters:
		ret = "two-registers"
	case OperandTypeRegisterAndConst:
		ret = "register-and-const"
	case OperandTypeMemory:
		ret = "memory"
	case OperandTypeConst:
		ret = "const"
	case OperandTypeBranch:
		ret = "branch"
	case OperandTypeData:
		ret = "data"
	}
	return
}

// OperandTypes represents the only combinations of two OperandTypes used by irgen.
type OperandTypes struct{ src, dst OperandType }

var (
	OperandTypesNoneToNone                 = OperandTypes{OperandTypeNone, OperandTypeNone}
	OperandTypesNoneToRegister             = OperandTypes{OperandTypeNone, OperandTypeRegister}
	OperandTypesNoneToBranch               = OperandTypes{OperandTypeNone, OperandTypeBranch}
	OperandTypesRegisterToBranch           = OperandTypes{OperandTypeRegister, OperandTypeBranch}
	OperandTypesTwoRegistersToBranch       = OperandTypes{OperandTypeTwoRegisters, OperandTypeBranch}
	OperandTypesRegisterToRegister         = OperandTypes{OperandTypeRegister, OperandTypeRegister}
	OperandTypesTwoRegistersToRegister     = OperandTypes{OperandTypeTwoRegisters, OperandTypeRegister}
	OperandTypesRegisterAndConstToRegister = OperandTypes{OperandTypeRegisterAndConst, OperandTypeRegister}
	OperandTypesTwoRegistersToNone         = OperandTypes{OperandTypeTwoRegisters, OperandTypeNone}
	OperandTypesRegisterToMemory           = OperandTypes{OperandTypeRegister, OperandTypeMemory}
	OperandTypesMemoryToRegister           = OperandTypes{OperandTypeMemory, OperandTypeRegister}
	OperandTypesConstToRegister            = OperandTypes{OperandTypeConst, OperandTypeRegister}
	OperandTypesData                       = OperandTypes{OperandTypeData, OperandTypeNone}
)

// String implements fmt.Stringer
func (o OperandTypes) String() string {
	return fmt.Sprintf("from:%s,to:%s", o.src, o.dst)
}

// DefaultBranchRange is the reach in bytes of a 16-bit branch offset.
const DefaultBranchRange = 1 << 17

// AssemblerImpl implements Assembler.
type AssemblerImpl struct {
	asm.BaseAssemblerImpl
	Root, Current *NodeImpl
	Buf           *bytes.Buffer
	nodeCount     int

	// BranchRange is the maximum distance in bytes a relative branch reaches.
	// Branches farther than that are relaxed into long jump sequences.
	BranchRange int64

	longBranches int
}

func NewAssemblerImpl() *AssemblerImpl {
	return &AssemblerImpl{Buf: bytes.NewBuffer(nil), BranchRange: DefaultBranchRange}
}

// newNode creates a new Node and appends it into the linked list.
func (a *AssemblerImpl) newNode(instruction asm.Instruction, types OperandTypes) *NodeImpl {
	n := &NodeImpl{
		Instruction: instruction,
		Next:        nil,
		Types:       types,
	}

	a.addNode(n)
	return n
}

// addNode appends the new node into the linked list.
func (a *AssemblerImpl) addNode(node *NodeImpl) {
	a.nodeCount++

	if a.Root == nil {
		a.Root = node
		a.Current = node
	} else {
		parent := a.Current
		parent.Next = node
		a.Current = node
	}

	for _, o := range a.SetBranchTargetOnNextNodes {
		origin := o.(*NodeImpl)
		origin.JumpTarget = node
	}
	a.SetBranchTargetOnNextNodes = nil
}

// LongBranches returns the number of branches relaxed by the last Assemble.
func (a *AssemblerImpl) LongBranches() int { return a.longBranches }

// Assemble implements asm.AssemblerBase
func (a *AssemblerImpl) Assemble() ([]byte, error) {
	if err := a.validateDelaySlots(); err != nil {
		return nil, err
	}
	if err := a.relax(); err != nil {
		return nil, err
	}

	a.Buf.Reset()
	a.Buf.Grow(a.nodeCount * 4)
	for n := a.Root; n != nil; n = n.Next {
		if uint64(a.Buf.Len()) != n.OffsetInBinaryField {
			panic(fmt.Sprintf("BUG: %s placed at %d but emitted at %d", n, n.OffsetInBinaryField, a.Buf.Len()))
		}
		if err := a.EncodeNode(n); err != nil {
			return nil, err
		}
	}

	code := a.Bytes()
	if err := a.FinalizeJumpTables(code); err != nil {
		return nil, err
	}
	return code, nil
}

// Bytes returns the encoded binary.
func (a *AssemblerImpl) Bytes() []byte {
	return a.Buf.Bytes()
}

func (a *AssemblerImpl) validateDelaySlots() error {
	for n := a.Root; n != nil; n = n.Next {
		if !IsBranch(n.Instruction) {
			continue
		}
		next := n.Next
		if next == nil {
			return fmt.Errorf("%s: missing delay slot at the end of code", n)
		}
		if next.Instruction == LABEL || next.Instruction == DATA || IsBranch(next.Instruction) {
			return fmt.Errorf("%s: invalid delay slot %s", n, next)
		}
	}
	return nil
}

// relax computes the offset of every node, turning branches whose target is
// out of range into long jumps until every branch fits. Long branches only
// grow the code, so this terminates.
func (a *AssemblerImpl) relax() error {
	a.longBranches = 0
	for {
		var offset uint64
		for n := a.Root; n != nil; n = n.Next {
			n.OffsetInBinaryField = offset
			offset += a.nodeSize(n)
		}

		changed := false
		for n := a.Root; n != nil; n = n.Next {
			if !isRelativeBranch(n.Instruction) || n.Long {
				continue
			}
			if n.JumpTarget == nil {
				return fmt.Errorf("%s: jump target unset", n)
			}
			if !a.fitsBranch(n) {
				n.Long = true
				a.longBranches++
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}
}

func (a *AssemblerImpl) fitsBranch(n *NodeImpl) bool {
	off := int64(n.JumpTarget.OffsetInBinaryField) - int64(n.OffsetInBinaryField+4)
	return off >= -a.BranchRange && off < a.BranchRange
}

func (a *AssemblerImpl) nodeSize(n *NodeImpl) uint64 {
	switch n.Instruction {
	case LABEL:
		return 0
	case DATA:
		return uint64(len(n.Data))
	}
	if n.Long {
		switch n.Instruction {
		case B, BAL:
			// nal; lui at; ori at; addu at, at, ra; jr/jalr at
			return 5 * 4
		default:
			// inverted branch; nop; then the unconditional sequence.
			return 7 * 4
		}
	}
	return 4
}

func (a *AssemblerImpl) emit(inst uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], inst)
	a.Buf.Write(b[:])
}

// EncodeNode encodes the given node into writer.
func (a *AssemblerImpl) EncodeNode(n *NodeImpl) (err error) {
	switch n.Types {
	case OperandTypesNoneToNone:
		err = a.EncodeNoneToNone(n)
	case OperandTypesNoneToRegister:
		err = a.EncodeNoneToRegister(n)
	case OperandTypesNoneToBranch, OperandTypesRegisterToBranch, OperandTypesTwoRegistersToBranch:
		err = a.EncodeRelativeBranch(n)
	case OperandTypesRegisterToRegister:
		err = a.EncodeRegisterToRegister(n)
	case OperandTypesTwoRegistersToRegister:
		err = a.EncodeTwoRegistersToRegister(n)
	case OperandTypesRegisterAndConstToRegister:
		err = a.EncodeRegisterAndConstToRegister(n)
	case OperandTypesTwoRegistersToNone:
		err = a.EncodeTwoRegistersToNone(n)
	case OperandTypesRegisterToMemory, OperandTypesMemoryToRegister:
		err = a.EncodeMemoryAccess(n)
	case OperandTypesConstToRegister:
		err = a.EncodeConstToRegister(n)
	case OperandTypesData:
		if len(n.Data)%4 != 0 {
			err = fmt.Errorf("data of %d bytes is not word aligned", len(n.Data))
		} else {
			a.Buf.Write(n.Data)
		}
	default:
		err = fmt.Errorf("encoder undefined for [%s] operand type", n.Types)
	}
	if err != nil {
		err = fmt.Errorf("%w: %s", err, n) // Ensure the error is debuggable by including the string value.
	}
	return
}

// CompileStandAlone implements the method of the same name as documented on asm.AssemblerBase.
func (a *AssemblerImpl) CompileStandAlone(instruction asm.Instruction) asm.Node {
	return a.newNode(instruction, OperandTypesNoneToNone)
}

// CompileLabel implements Assembler.CompileLabel.
func (a *AssemblerImpl) CompileLabel() asm.Node {
	return a.newNode(LABEL, OperandTypesNoneToNone)
}

// CompileConstToRegister implements the method of the same name as documented on asm.AssemblerBase.
func (a *AssemblerImpl) CompileConstToRegister(
	instruction asm.Instruction,
	value asm.ConstantValue,
	destinationReg asm.Register,
) (inst asm.Node) {
	n := a.newNode(instruction, OperandTypesConstToRegister)
	n.SrcConst = value
	n.DstReg = destinationReg
	return n
}

// CompileRegisterToRegister implements the method of the same name as documented on asm.AssemblerBase.
func (a *AssemblerImpl) CompileRegisterToRegister(instruction asm.Instruction, from, to asm.Register) {
	n := a.newNode(instruction, OperandTypesRegisterToRegister)
	n.SrcReg = from
	n.DstReg = to
}

// CompileMemoryToRegister implements the method of the same name as documented on asm.AssemblerBase.
func (a *AssemblerImpl) CompileMemoryToRegister(
	instruction asm.Instruction,
	sourceBaseReg asm.Register,
	sourceOffsetConst asm.ConstantValue,
	destinationReg asm.Register,
) asm.Node {
	n := a.newNode(instruction, OperandTypesMemoryToRegister)
	n.SrcReg = sourceBaseReg
	n.SrcConst = sourceOffsetConst
	n.DstReg = destinationReg
	return n
}

// CompileRegisterToMemory implements the method of the same name as documented on asm.AssemblerBase.
func (a *AssemblerImpl) CompileRegisterToMemory(
	instruction asm.Instruction,
	sourceRegister, destinationBaseRegister asm.Register,
	destinationOffsetConst asm.ConstantValue,
) asm.Node {
	n := a.newNode(instruction, OperandTypesRegisterToMemory)
	n.SrcReg = sourceRegister
	n.DstReg = destinationBaseRegister
	n.DstConst = destinationOffsetConst
	return n
}

// CompileJump implements the method of the same name as documented on asm.AssemblerBase.
func (a *AssemblerImpl) CompileJump(jmpInstruction asm.Instruction) asm.Node {
	return a.newNode(jmpInstruction, OperandTypesNoneToBranch)
}

// CompileJumpToRegister implements the method of the same name as documented on asm.AssemblerBase.
func (a *AssemblerImpl) CompileJumpToRegister(jmpInstruction asm.Instruction, reg asm.Register) asm.Node {
	return a.CompileNoneToRegister(jmpInstruction, reg)
}

// CompileNoneToRegister implements Assembler.CompileNoneToRegister.
func (a *AssemblerImpl) CompileNoneToRegister(instruction asm.Instruction, reg asm.Register) asm.Node {
	n := a.newNode(instruction, OperandTypesNoneToRegister)
	n.DstReg = reg
	return n
}

// CompileRegisterToBranch implements Assembler.CompileRegisterToBranch.
func (a *AssemblerImpl) CompileRegisterToBranch(instruction asm.Instruction, reg asm.Register) asm.Node {
	n := a.newNode(instruction, OperandTypesRegisterToBranch)
	n.SrcReg = reg
	return n
}

// CompileTwoRegistersToBranch implements Assembler.CompileTwoRegistersToBranch.
func (a *AssemblerImpl) CompileTwoRegistersToBranch(instruction asm.Instruction, src1, src2 asm.Register) asm.Node {
	n := a.newNode(instruction, OperandTypesTwoRegistersToBranch)
	n.SrcReg = src1
	n.SrcReg2 = src2
	return n
}

// CompileTwoRegistersToRegister implements Assembler.CompileTwoRegistersToRegister.
func (a *AssemblerImpl) CompileTwoRegistersToRegister(instruction asm.Instruction, src1, src2, dst asm.Register) {
	n := a.newNode(instruction, OperandTypesTwoRegistersToRegister)
	n.SrcReg = src1
	n.SrcReg2 = src2
	n.DstReg = dst
}

// CompileRegisterAndConstToRegister implements Assembler.CompileRegisterAndConstToRegister.
func (a *AssemblerImpl) CompileRegisterAndConstToRegister(instruction asm.Instruction, src asm.Register, value asm.ConstantValue, dst asm.Register) asm.Node {
	n := a.newNode(instruction, OperandTypesRegisterAndConstToRegister)
	n.SrcReg = src
	n.SrcConst = value
	n.DstReg = dst
	return n
}

// CompileTwoRegistersToNone implements Assembler.CompileTwoRegistersToNone.
func (a *AssemblerImpl) CompileTwoRegistersToNone(instruction asm.Instruction, src1, src2 asm.Register) {
	n := a.newNode(instruction, OperandTypesTwoRegistersToNone)
	n.SrcReg = src1
	n.SrcReg2 = src2
}

// CompileData implements Assembler.CompileData.
func (a *AssemblerImpl) CompileData(data []byte) asm.Node {
	n := a.newNode(DATA, OperandTypesData)
	n.Data = data
	return n
}

func errorEncodingUnsupported(n *NodeImpl) error {
	return fmt.Errorf("%s is unsupported for %s type", InstructionName(n.Instruction), n.Types)
}

const (
	opSpecial  = 0x00
	opRegimm   = 0x01
	opCop1     = 0x11
	opSpecial2 = 0x1c
	opSpecial3 = 0x1f

	cop1FmtS    = 0x10
	cop1FmtD    = 0x11
	cop1FmtW    = 0x14
	cop1MF      = 0x00
	cop1MFH     = 0x03
	cop1MT      = 0x04
	cop1MTH     = 0x07
	cop1BC      = 0x08
	regimmLTZ   = 0x00
	regimmGEZ   = 0x01
	regimmLTZAL = 0x10
	regimmGEZAL = 0x11
)

func rType(op, rs, rt, rd, sa, funct uint32) uint32 {
	return op<<26 | rs<<21 | rt<<16 | rd<<11 | sa<<6 | funct
}

func iType(op, rs, rt uint32, imm int64) uint32 {
	return op<<26 | rs<<21 | rt<<16 | uint32(imm)&0xffff
}

func (a *AssemblerImpl) EncodeNoneToNone(n *NodeImpl) error {
	switch n.Instruction {
	case LABEL:
	case NOP:
		a.emit(0)
	case SYNC:
		a.emit(rType(opSpecial, 0, 0, 0, 0, 0x0f))
	case NAL:
		a.emit(iType(opRegimm, 0, regimmLTZAL, 0))
	default:
		return errorEncodingUnsupported(n)
	}
	return nil
}

func (a *AssemblerImpl) EncodeNoneToRegister(n *NodeImpl) error {
	r := RegisterNumber(n.DstReg)
	switch n.Instruction {
	case JR:
		a.emit(rType(opSpecial, r, 0, 0, 0, 0x08))
	case JALR:
		a.emit(rType(opSpecial, r, 0, 31, 0, 0x09))
	case MFHI:
		a.emit(rType(opSpecial, 0, 0, r, 0, 0x10))
	case MFLO:
		a.emit(rType(opSpecial, 0, 0, r, 0, 0x12))
	default:
		return errorEncodingUnsupported(n)
	}
	return nil
}

// branchFields returns the opcode, rs and rt fields of a relative branch.
func branchFields(inst asm.Instruction, src, src2 asm.Register) (op, rs, rt uint32, err error) {
	switch inst {
	case B:
		return 0x04, 0, 0, nil
	case BAL:
		return opRegimm, 0, regimmGEZAL, nil
	case BEQ:
		return 0x04, RegisterNumber(src), RegisterNumber(src2), nil
	case BNE:
		return 0x05, RegisterNumber(src), RegisterNumber(src2), nil
	case BLEZ:
		return 0x06, RegisterNumber(src), 0, nil
	case BGTZ:
		return 0x07, RegisterNumber(src), 0, nil
	case BLTZ:
		return opRegimm, RegisterNumber(src), regimmLTZ, nil
	case BGEZ:
		return opRegimm, RegisterNumber(src), regimmGEZ, nil
	case BC1F:
		return opCop1, cop1BC, 0, nil
	case BC1T:
		return opCop1, cop1BC, 1, nil
	}
	return 0, 0, 0, errors.New("not a relative branch")
}

func (a *AssemblerImpl) EncodeRelativeBranch(n *NodeImpl) error {
	if n.JumpTarget == nil {
		return errors.New("jump target unset")
	}
	if !n.Long {
		op, rs, rt, err := branchFields(n.Instruction, n.SrcReg, n.SrcReg2)
		if err != nil {
			return err
		}
		off := int64(n.JumpTarget.OffsetInBinaryField) - int64(n.OffsetInBinaryField+4)
		a.emit(iType(op, rs, rt, off>>2))
		return nil
	}

	start := n.OffsetInBinaryField
	if n.Instruction != B && n.Instruction != BAL {
		op, rs, rt, err := branchFields(InvertBranch(n.Instruction), n.SrcReg, n.SrcReg2)
		if err != nil {
			return err
		}
		// Skip the long jump, landing on the original delay slot instruction.
		a.emit(iType(op, rs, rt, 6))
		a.emit(0)
		start += 8
	}
	// ra is saved in every frame, so it is free to clobber here.
	off := int64(n.JumpTarget.OffsetInBinaryField) - int64(start+8)
	if off < math.MinInt32 || off > math.MaxInt32 {
		return fmt.Errorf("branch offset %d out of range", off)
	}
	at, ra := RegisterNumber(REG_AT), RegisterNumber(REG_RA)
	a.emit(iType(opRegimm, 0, regimmLTZAL, 0))             // nal
	a.emit(iType(0x0f, 0, at, int64(uint32(off)>>16)))     // lui at, hi
	a.emit(iType(0x0d, at, at, int64(uint32(off)&0xffff))) // ori at, at, lo
	a.emit(rType(opSpecial, at, ra, at, 0, 0x21))          // addu at, at, ra
	if n.Instruction == BAL {
		a.emit(rType(opSpecial, at, 0, ra, 0, 0x09)) // jalr at
	} else {
		a.emit(rType(opSpecial, at, 0, 0, 0, 0x08)) // jr at
	}
	return nil
}

func (a *AssemblerImpl) EncodeRegisterToRegister(n *NodeImpl) error {
	src, dst := RegisterNumber(n.SrcReg), RegisterNumber(n.DstReg)
	switch n.Instruction {
	case SEB:
		a.emit(rType(opSpecial3, 0, src, dst, 0x10, 0x20))
	case SEH:
		a.emit(rType(opSpecial3, 0, src, dst, 0x18, 0x20))
	case CLZ:
		a.emit(rType(opSpecial2, src, dst, dst, 0, 0x20))
	case MOV_S, MOV_D, NEG_S, NEG_D, CVT_S_D, CVT_D_S, CVT_S_W, CVT_D_W, TRUNC_W_S, TRUNC_W_D:
		fmtField, funct := fpuUnary(n.Instruction)
		a.emit(rType(opCop1, fmtField, 0, src, dst, funct))
	case MFC1:
		// From FPU src into GPR dst.
		a.emit(rType(opCop1, cop1MF, dst, src, 0, 0))
	case MFHC1:
		a.emit(rType(opCop1, cop1MFH, dst, src, 0, 0))
	case MTC1:
		// From GPR src into FPU dst.
		a.emit(rType(opCop1, cop1MT, src, dst, 0, 0))
	case MTHC1:
		a.emit(rType(opCop1, cop1MTH, src, dst, 0, 0))
	default:
		return errorEncodingUnsupported(n)
	}
	return nil
}

func fpuUnary(inst asm.Instruction) (fmtField, funct uint32) {
	switch inst {
	case MOV_S:
		return cop1FmtS, 0x06
	case MOV_D:
		return cop1FmtD, 0x06
	case NEG_S:
		return cop1FmtS, 0x07
	case NEG_D:
		return cop1FmtD, 0x07
	case CVT_S_D:
		return cop1FmtD, 0x20
	case CVT_D_S:
		return cop1FmtS, 0x21
	case CVT_S_W:
		return cop1FmtW, 0x20
	case CVT_D_W:
		return cop1FmtW, 0x21
	case TRUNC_W_S:
		return cop1FmtS, 0x0d
	case TRUNC_W_D:
		return cop1FmtD, 0x0d
	}
	panic("BUG: not an FPU unary instruction")
}

func (a *AssemblerImpl) EncodeTwoRegistersToRegister(n *NodeImpl) error {
	src, src2, dst := RegisterNumber(n.SrcReg), RegisterNumber(n.SrcReg2), RegisterNumber(n.DstReg)
	var funct uint32
	switch n.Instruction {
	case ADDU:
		funct = 0x21
	case SUBU:
		funct = 0x23
	case AND:
		funct = 0x24
	case OR:
		funct = 0x25
	case XOR:
		funct = 0x26
	case NOR:
		funct = 0x27
	case SLT:
		funct = 0x2a
	case SLTU:
		funct = 0x2b
	case MOVZ:
		funct = 0x0a
	case MOVN:
		funct = 0x0b
	case MUL:
		a.emit(rType(opSpecial2, src, src2, dst, 0, 0x02))
		return nil
	case SLLV, SRLV, SRAV, ROTRV:
		// src is the shifted value (rt), src2 the amount (rs).
		var sa uint32
		switch n.Instruction {
		case SLLV:
			funct = 0x04
		case SRLV:
			funct = 0x06
		case SRAV:
			funct = 0x07
		case ROTRV:
			funct, sa = 0x06, 1
		}
		a.emit(rType(opSpecial, src2, src, dst, sa, funct))
		return nil
	case ADD_S, ADD_D, SUB_S, SUB_D, MUL_S, MUL_D, DIV_S, DIV_D:
		fmtField, fn := uint32(cop1FmtS), uint32(0)
		switch n.Instruction {
		case ADD_D:
			fmtField = cop1FmtD
		case SUB_S:
			fn = 1
		case SUB_D:
			fmtField, fn = cop1FmtD, 1
		case MUL_S:
			fn = 2
		case MUL_D:
			fmtField, fn = cop1FmtD, 2
		case DIV_S:
			fn = 3
		case DIV_D:
			fmtField, fn = cop1FmtD, 3
		}
		a.emit(rType(opCop1, fmtField, src2, src, dst, fn))
		return nil
	default:
		return errorEncodingUnsupported(n)
	}
	a.emit(rType(opSpecial, src, src2, dst, 0, funct))
	return nil
}

func fitsInt16(v int64) bool  { return v >= math.MinInt16 && v <= math.MaxInt16 }
func fitsUint16(v int64) bool { return v >= 0 && v <= math.MaxUint16 }

func (a *AssemblerImpl) EncodeRegisterAndConstToRegister(n *NodeImpl) error {
	src, dst := RegisterNumber(n.SrcReg), RegisterNumber(n.DstReg)
	c := n.SrcConst
	switch n.Instruction {
	case SLL, SRL, SRA, ROTR:
		if c < 0 || c > 31 {
			return fmt.Errorf("shift amount %d out of range", c)
		}
		var rs, funct uint32
		switch n.Instruction {
		case SRL:
			funct = 0x02
		case SRA:
			funct = 0x03
		case ROTR:
			rs, funct = 1, 0x02
		}
		a.emit(rType(opSpecial, rs, src, dst, uint32(c), funct))
		return nil
	case ADDIU, SLTI, SLTIU:
		if !fitsInt16(c) {
			return fmt.Errorf("immediate %d out of range", c)
		}
	case ANDI, ORI, XORI:
		if !fitsUint16(c) {
			return fmt.Errorf("immediate %d out of range", c)
		}
	default:
		return errorEncodingUnsupported(n)
	}
	var op uint32
	switch n.Instruction {
	case ADDIU:
		op = 0x09
	case SLTI:
		op = 0x0a
	case SLTIU:
		op = 0x0b
	case ANDI:
		op = 0x0c
	case ORI:
		op = 0x0d
	case XORI:
		op = 0x0e
	}
	a.emit(iType(op, src, dst, c))
	return nil
}

func (a *AssemblerImpl) EncodeTwoRegistersToNone(n *NodeImpl) error {
	src, src2 := RegisterNumber(n.SrcReg), RegisterNumber(n.SrcReg2)
	switch n.Instruction {
	case MULT:
		a.emit(rType(opSpecial, src, src2, 0, 0, 0x18))
	case MULTU:
		a.emit(rType(opSpecial, src, src2, 0, 0, 0x19))
	case DIV:
		a.emit(rType(opSpecial, src, src2, 0, 0, 0x1a))
	case DIVU:
		a.emit(rType(opSpecial, src, src2, 0, 0, 0x1b))
	case C_EQ_S, C_EQ_D, C_OLT_S, C_OLT_D, C_OLE_S, C_OLE_D, C_ULT_S, C_ULT_D, C_ULE_S, C_ULE_D, C_UN_S, C_UN_D:
		var fmtField uint32 = cop1FmtS
		var cond uint32
		switch n.Instruction {
		case C_UN_S, C_UN_D:
			cond = 1
		case C_EQ_S, C_EQ_D:
			cond = 2
		case C_OLT_S, C_OLT_D:
			cond = 4
		case C_ULT_S, C_ULT_D:
			cond = 5
		case C_OLE_S, C_OLE_D:
			cond = 6
		case C_ULE_S, C_ULE_D:
			cond = 7
		}
		switch n.Instruction {
		case C_EQ_D, C_OLT_D, C_OLE_D, C_ULT_D, C_ULE_D, C_UN_D:
			fmtField = cop1FmtD
		}
		a.emit(rType(opCop1, fmtField, src2, src, 0, 0x30|cond))
	default:
		return errorEncodingUnsupported(n)
	}
	return nil
}

func (a *AssemblerImpl) EncodeMemoryAccess(n *NodeImpl) error {
	var base, reg asm.Register
	var offset int64
	if n.Types == OperandTypesMemoryToRegister {
		base, reg, offset = n.SrcReg, n.DstReg, n.SrcConst
	} else {
		base, reg, offset = n.DstReg, n.SrcReg, n.DstConst
	}
	if !fitsInt16(offset) {
		return fmt.Errorf("memory offset %d out of range", offset)
	}
	var op uint32
	var store bool
	switch n.Instruction {
	case LB:
		op = 0x20
	case LH:
		op = 0x21
	case LW:
		op = 0x23
	case LBU:
		op = 0x24
	case LHU:
		op = 0x25
	case LWC1:
		op = 0x31
	case LDC1:
		op = 0x35
	case SB:
		op, store = 0x28, true
	case SH:
		op, store = 0x29, true
	case SW:
		op, store = 0x2b, true
	case SWC1:
		op, store = 0x39, true
	case SDC1:
		op, store = 0x3d, true
	default:
		return errorEncodingUnsupported(n)
	}
	if store != (n.Types == OperandTypesRegisterToMemory) {
		return errorEncodingUnsupported(n)
	}
	a.emit(iType(op, RegisterNumber(base), RegisterNumber(reg), offset))
	return nil
}

func (a *AssemblerImpl) EncodeConstToRegister(n *NodeImpl) error {
	if n.Instruction != LUI {
		return errorEncodingUnsupported(n)
	}
	if !fitsUint16(n.SrcConst) {
		return fmt.Errorf("immediate %d out of range", n.SrcConst)
	}
	a.emit(iType(0x0f, 0, RegisterNumber(n.DstReg), n.SrcConst))
	return nil
}
