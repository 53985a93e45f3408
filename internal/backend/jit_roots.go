package backend

import (
	"encoding/binary"
	"fmt"
)

// RootKind is the kind of a JIT root.
type RootKind byte

const (
	RootString RootKind = iota
	RootClass
)

// String implements fmt.Stringer.
func (k RootKind) String() string {
	if k == RootString {
		return "string"
	}
	return "class"
}

// JitRoot is an object referenced by JIT code. The code loads it from the
// method's root table so that the GC can trace and update it.
type JitRoot struct {
	Kind RootKind
	// Index is the string or type index.
	Index uint32
	// Name is the string value or the class descriptor.
	Name string
}

// JitPatch is a "lui reg, hi; lw reg, lo(reg)" pair at LiteralOffset which
// must load the RootIndex-th entry of the root table.
type JitPatch struct {
	LiteralOffset uint32
	RootIndex     uint32

	pos CodePosition
}

// JitRootTable deduplicates the roots of a method and tracks their uses.
type JitRootTable struct {
	roots   []JitRoot
	indexes map[JitRoot]uint32
	patches []JitPatch
}

// NewJitRootTable returns an empty table.
func NewJitRootTable() *JitRootTable {
	return &JitRootTable{indexes: map[JitRoot]uint32{}}
}

// AddRoot returns the index of root in the table, adding it if needed.
func (t *JitRootTable) AddRoot(root JitRoot) uint32 {
	if idx, ok := t.indexes[root]; ok {
		return idx
	}
	idx := uint32(len(t.roots))
	t.roots = append(t.roots, root)
	t.indexes[root] = idx
	return idx
}

// AddPatch records that the pair at pos loads the root at rootIndex.
func (t *JitRootTable) AddPatch(pos CodePosition, rootIndex uint32) {
	t.patches = append(t.patches, JitPatch{pos: pos, RootIndex: rootIndex})
}

// Roots returns the roots in table order.
func (t *JitRootTable) Roots() []JitRoot { return t.roots }

// Resolve computes the literal offsets of the patches. Must be called once
// the code is assembled.
func (t *JitRootTable) Resolve() []JitPatch {
	for i := range t.patches {
		t.patches[i].LiteralOffset = t.patches[i].pos.Offset()
	}
	return t.patches
}

// SplitAddress splits addr into the "lui" and sign-extended 16-bit immediates
// adding up to it.
func SplitAddress(addr uint32) (hi, lo uint16) {
	return uint16((addr + 0x8000) >> 16), uint16(addr)
}

// SetImmediate16 replaces the immediate of the little-endian instruction at offset.
func SetImmediate16(code []byte, offset uint32, imm uint16) {
	inst := binary.LittleEndian.Uint32(code[offset:])
	binary.LittleEndian.PutUint32(code[offset:], inst&0xffff0000|uint32(imm))
}

// EmitJitRootPatches rewrites the addresses embedded by patches once the root
// table is placed at tableAddress.
func EmitJitRootPatches(code []byte, patches []JitPatch, tableAddress uint32) error {
	for _, p := range patches {
		if int(p.LiteralOffset)+8 > len(code) {
			return fmt.Errorf("jit patch at %d out of code", p.LiteralOffset)
		}
		hi, lo := SplitAddress(tableAddress + 4*p.RootIndex)
		SetImmediate16(code, p.LiteralOffset, hi)
		SetImmediate16(code, p.LiteralOffset+4, lo)
	}
	return nil
}
