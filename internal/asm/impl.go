package asm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BaseAssemblerImpl includes code common to all architectures.
//
// Note: When possible, add code here instead of in architecture-specific files to reduce drift:
// As this is internal, exporting symbols only to reduce duplication is ok.
type BaseAssemblerImpl struct {
	// SetBranchTargetOnNextNodes holds branch kind instructions (BR, conditional BR, etc.)
	// where we want to set the next coming instruction as the destination of these BR instructions.
	SetBranchTargetOnNextNodes []Node

	// OnGenerateCallbacks holds the callbacks which are called after generating native code.
	OnGenerateCallbacks []func(code []byte) error

	JumpTableEntries []JumpTableEntry
}

// JumpTableEntry is a table of 32-bit offsets embedded in the code.
type JumpTableEntry struct {
	Table       Node
	Anchor      Node
	AnchorDelta int64
	Targets     []Node
}

// SetJumpTargetOnNext implements AssemblerBase.SetJumpTargetOnNext
func (a *BaseAssemblerImpl) SetJumpTargetOnNext(nodes ...Node) {
	a.SetBranchTargetOnNextNodes = append(a.SetBranchTargetOnNextNodes, nodes...)
}

// AddOnGenerateCallBack implements AssemblerBase.AddOnGenerateCallBack
func (a *BaseAssemblerImpl) AddOnGenerateCallBack(cb func([]byte) error) {
	a.OnGenerateCallbacks = append(a.OnGenerateCallbacks, cb)
}

// BuildJumpTable implements AssemblerBase.BuildJumpTable
func (a *BaseAssemblerImpl) BuildJumpTable(table Node, anchor Node, anchorDelta int64, targets []Node) {
	a.JumpTableEntries = append(a.JumpTableEntries, JumpTableEntry{
		Table:       table,
		Anchor:      anchor,
		AnchorDelta: anchorDelta,
		Targets:     targets,
	})
}

// FinalizeJumpTables writes the offsets of every jump table into code, and
// then runs OnGenerateCallbacks.
func (a *BaseAssemblerImpl) FinalizeJumpTables(code []byte) error {
	for _, e := range a.JumpTableEntries {
		base := int64(e.Anchor.OffsetInBinary()) + e.AnchorDelta
		tableOffset := e.Table.OffsetInBinary()
		for i, t := range e.Targets {
			offset := int64(t.OffsetInBinary()) - base
			if offset < math.MinInt32 || offset > math.MaxInt32 {
				return fmt.Errorf("too large jump table offset %d", offset)
			}
			at := tableOffset + uint64(i)*4
			binary.LittleEndian.PutUint32(code[at:at+4], uint32(int32(offset)))
		}
	}
	for _, cb := range a.OnGenerateCallbacks {
		if err := cb(code); err != nil {
			return err
		}
	}
	return nil
}
