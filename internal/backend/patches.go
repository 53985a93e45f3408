package backend

import "fmt"

// PatchKind is the kind of a linker patch.
type PatchKind byte

const (
	// PatchMethodRelative is the PC-relative address of a boot image method.
	PatchMethodRelative PatchKind = iota
	// PatchMethodBss is the PC-relative address of the .bss entry of a method.
	PatchMethodBss
	// PatchTypeRelative is the PC-relative address of a boot image class.
	PatchTypeRelative
	// PatchTypeBss is the PC-relative address of the .bss entry of a class.
	PatchTypeBss
	// PatchStringRelative is the PC-relative address of a boot image string.
	PatchStringRelative
	// PatchStringBss is the PC-relative address of the .bss entry of a string.
	PatchStringBss
)

// String implements fmt.Stringer.
func (k PatchKind) String() string {
	switch k {
	case PatchMethodRelative:
		return "method-relative"
	case PatchMethodBss:
		return "method-bss"
	case PatchTypeRelative:
		return "type-relative"
	case PatchTypeBss:
		return "type-bss"
	case PatchStringRelative:
		return "string-relative"
	case PatchStringBss:
		return "string-bss"
	}
	return "invalid"
}

// PatchID is the index of a patch in its PatchTable.
type PatchID int

// NoPatch is the back index of high halves.
const NoPatch PatchID = -1

// PcRelativePatch is one half of a PC-relative address computation. The high
// half holds the anchor the offset is relative to, and the low half refers to
// its high half by index.
type PcRelativePatch struct {
	Kind   PatchKind
	Target uint32
	High   PatchID

	pos, anchor CodePosition
	placed      bool
}

// LinkerPatch is a resolved patch: the 16-bit immediate of the instruction at
// LiteralOffset receives a half of Target's address minus the address of AnchorOffset.
type LinkerPatch struct {
	Kind          PatchKind
	LiteralOffset uint32
	AnchorOffset  uint32
	Target        uint32
	// High is NoPatch for high halves, and the index of the high half for low ones.
	High PatchID
}

// IsHigh returns true if the patch receives the high half of the offset.
func (p LinkerPatch) IsHigh() bool { return p.High == NoPatch }

// String implements fmt.Stringer.
func (p LinkerPatch) String() string {
	half := "lo"
	if p.IsHigh() {
		half = "hi"
	}
	return fmt.Sprintf("%s(%d).%s@%d anchor=%d", p.Kind, p.Target, half, p.LiteralOffset, p.AnchorOffset)
}

// PatchTable holds the PC-relative patches of a method.
type PatchTable struct {
	patches []PcRelativePatch
}

// NewPatchTable returns an empty table.
func NewPatchTable() *PatchTable { return &PatchTable{} }

// NewHighPatch adds the high half of a PC-relative reference to target.
func (t *PatchTable) NewHighPatch(kind PatchKind, target uint32) PatchID {
	t.patches = append(t.patches, PcRelativePatch{Kind: kind, Target: target, High: NoPatch})
	return PatchID(len(t.patches) - 1)
}

// NewLowPatch adds the low half matching high.
func (t *PatchTable) NewLowPatch(high PatchID) PatchID {
	h := t.at(high)
	if h.High != NoPatch {
		panic("BUG: low patch must refer to a high patch")
	}
	t.patches = append(t.patches, PcRelativePatch{Kind: h.Kind, Target: h.Target, High: high})
	return PatchID(len(t.patches) - 1)
}

func (t *PatchTable) at(id PatchID) *PcRelativePatch {
	if id < 0 || int(id) >= len(t.patches) {
		panic(fmt.Sprintf("BUG: invalid patch id %d", id))
	}
	return &t.patches[id]
}

// Place records the instruction carrying the immediate of the patch and, for
// high halves, the anchor.
func (t *PatchTable) Place(id PatchID, pos CodePosition, anchor CodePosition) {
	p := t.at(id)
	p.pos, p.placed = pos, true
	if p.High == NoPatch {
		p.anchor = anchor
	}
}

// Patch returns the patch for id.
func (t *PatchTable) Patch(id PatchID) PcRelativePatch { return *t.at(id) }

// Len returns the number of patches.
func (t *PatchTable) Len() int { return len(t.patches) }

// LinkerPatches resolves every patch. Must be called once the code is assembled.
func (t *PatchTable) LinkerPatches() []LinkerPatch {
	ret := make([]LinkerPatch, len(t.patches))
	for i := range t.patches {
		p := &t.patches[i]
		if !p.placed {
			panic(fmt.Sprintf("BUG: patch %d is never placed", i))
		}
		lp := LinkerPatch{Kind: p.Kind, LiteralOffset: p.pos.Offset(), Target: p.Target, High: p.High}
		if p.High == NoPatch {
			lp.AnchorOffset = p.anchor.Offset()
		} else {
			lp.AnchorOffset = t.patches[p.High].anchor.Offset()
		}
		ret[i] = lp
	}
	return ret
}
