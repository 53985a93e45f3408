package backend

import (
	"fmt"
	"sort"

	"github.com/tetratelabs/irgen/internal/leb128"
)

// DWARF call frame instructions.
const (
	dwCFAAdvanceLoc       = 0x40
	dwCFAOffset           = 0x80
	dwCFARestore          = 0xc0
	dwCFAAdvanceLoc1      = 0x02
	dwCFAAdvanceLoc2      = 0x03
	dwCFAAdvanceLoc4      = 0x04
	dwCFAOffsetExtended   = 0x05
	dwCFARestoreExtended  = 0x06
	dwCFARememberState    = 0x0a
	dwCFARestoreState     = 0x0b
	dwCFADefCFAOffset     = 0x0e
	cfiDataAlignmentScale = 4
)

type cfiOpKind byte

const (
	cfiDefCFAOffset cfiOpKind = iota
	cfiOffset
	cfiRestore
	cfiRememberState
	cfiRestoreState
)

type cfiOp struct {
	pos     CodePosition
	kind    cfiOpKind
	reg     int
	operand int
}

// CFIWriter records the call frame information of a method. The CFA is SP
// plus the current CFA offset; saved registers are described relative to it
// with the data alignment factor -4.
type CFIWriter struct {
	ops       []cfiOp
	cfaOffset int
	states    []int
}

// NewCFIWriter returns a writer for a method entered with SP as the CFA.
func NewCFIWriter() *CFIWriter { return &CFIWriter{} }

// CurrentCFAOffset returns the distance between SP and the CFA.
func (w *CFIWriter) CurrentCFAOffset() int { return w.cfaOffset }

// AdjustCFAOffset records that SP moved down by delta bytes at pos.
func (w *CFIWriter) AdjustCFAOffset(pos CodePosition, delta int) {
	w.cfaOffset += delta
	w.ops = append(w.ops, cfiOp{pos: pos, kind: cfiDefCFAOffset, operand: w.cfaOffset})
}

// RelOffset records that the DWARF register reg is saved at SP+spOffset at pos.
func (w *CFIWriter) RelOffset(pos CodePosition, reg int, spOffset int) {
	factored := w.cfaOffset - spOffset
	if factored <= 0 || factored%cfiDataAlignmentScale != 0 {
		panic(fmt.Sprintf("BUG: register %d saved outside of the frame at sp+%d", reg, spOffset))
	}
	w.ops = append(w.ops, cfiOp{pos: pos, kind: cfiOffset, reg: reg, operand: factored / cfiDataAlignmentScale})
}

// Restore records that reg holds its value of the caller again.
func (w *CFIWriter) Restore(pos CodePosition, reg int) {
	w.ops = append(w.ops, cfiOp{pos: pos, kind: cfiRestore, reg: reg})
}

// RememberState saves the current rules, e.g. before an epilogue in the middle of the code.
func (w *CFIWriter) RememberState(pos CodePosition) {
	w.states = append(w.states, w.cfaOffset)
	w.ops = append(w.ops, cfiOp{pos: pos, kind: cfiRememberState})
}

// RestoreState restores the rules saved by the matching RememberState.
func (w *CFIWriter) RestoreState(pos CodePosition) {
	if len(w.states) == 0 {
		panic("BUG: RestoreState without RememberState")
	}
	w.cfaOffset = w.states[len(w.states)-1]
	w.states = w.states[:len(w.states)-1]
	w.ops = append(w.ops, cfiOp{pos: pos, kind: cfiRestoreState})
}

// Encode returns the DWARF opcodes. Must be called once the code is assembled.
func (w *CFIWriter) Encode() []byte {
	ops := make([]cfiOp, len(w.ops))
	copy(ops, w.ops)
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].pos.Offset() < ops[j].pos.Offset() })

	var buf []byte
	var pc uint32
	for _, op := range ops {
		if at := op.pos.Offset(); at != pc {
			buf = appendAdvanceLoc(buf, at-pc)
			pc = at
		}
		switch op.kind {
		case cfiDefCFAOffset:
			buf = append(buf, dwCFADefCFAOffset)
			buf = leb128.AppendUint64(buf, uint64(op.operand))
		case cfiOffset:
			if op.reg < 64 {
				buf = append(buf, dwCFAOffset|byte(op.reg))
			} else {
				buf = append(buf, dwCFAOffsetExtended)
				buf = leb128.AppendUint64(buf, uint64(op.reg))
			}
			buf = leb128.AppendUint64(buf, uint64(op.operand))
		case cfiRestore:
			if op.reg < 64 {
				buf = append(buf, dwCFARestore|byte(op.reg))
			} else {
				buf = append(buf, dwCFARestoreExtended)
				buf = leb128.AppendUint64(buf, uint64(op.reg))
			}
		case cfiRememberState:
			buf = append(buf, dwCFARememberState)
		case cfiRestoreState:
			buf = append(buf, dwCFARestoreState)
		}
	}
	return buf
}

func appendAdvanceLoc(buf []byte, delta uint32) []byte {
	switch {
	case delta < 0x40:
		return append(buf, dwCFAAdvanceLoc|byte(delta))
	case delta <= 0xff:
		return append(buf, dwCFAAdvanceLoc1, byte(delta))
	case delta <= 0xffff:
		return append(buf, dwCFAAdvanceLoc2, byte(delta), byte(delta>>8))
	default:
		return append(buf, dwCFAAdvanceLoc4, byte(delta), byte(delta>>8), byte(delta>>16), byte(delta>>24))
	}
}
