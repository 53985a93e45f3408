package irgen

import (
	"fmt"

	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/ir"
)

// Graph is the IR of one method, as built with the builder of internal/ir.
type Graph = ir.Graph

type (
	// StackMap maps a native pc of the code to the dex pc, the references
	// held in registers and stack slots, and the dex register locations.
	StackMap = backend.StackMap
	// LinkerPatch is a 16-bit immediate of the code to fill with half of a
	// pc-relative offset when linking.
	LinkerPatch = backend.LinkerPatch
	// JitRoot is a class or string referenced through the root table of JIT code.
	JitRoot = backend.JitRoot
)

// JitPatch is a "lui, lw" pair at LiteralOffset which must load the
// RootIndex-th entry of the root table once the code is installed.
type JitPatch struct {
	LiteralOffset uint32 `json:"literal_offset"`
	RootIndex     uint32 `json:"root_index"`
}

// CompiledMethod is the output of the compilation of one method.
type CompiledMethod struct {
	Name        string `json:"name"`
	MethodIndex uint32 `json:"method_index"`
	// Code is little endian MIPS32r2 machine code, entered at offset zero.
	Code          []byte `json:"code"`
	FrameSize     int    `json:"frame_size"`
	CoreSpillMask uint32 `json:"core_spill_mask"`
	FpuSpillMask  uint32 `json:"fpu_spill_mask"`
	// StackMaps are decoded from EncodedStackMaps, sorted by native pc.
	StackMaps        []StackMap    `json:"-"`
	EncodedStackMaps []byte        `json:"stack_maps"`
	LinkerPatches    []LinkerPatch `json:"linker_patches"`
	// CFI is the DWARF call frame program of the method.
	CFI        []byte     `json:"cfi"`
	JitRoots   []JitRoot  `json:"jit_roots"`
	JitPatches []JitPatch `json:"jit_patches"`
	// Listing is the golang-asm listing, only with CompilerConfig.WithDebugAssembler.
	Listing string `json:"listing,omitempty"`
}

// newCompiledMethod converts the result of the backend. Empty slices are nil,
// so that methods read from a cache compare equal to fresh ones.
func newCompiledMethod(g *ir.Graph, res *backend.Result) (*CompiledMethod, error) {
	m := &CompiledMethod{
		Name:             g.Name(),
		MethodIndex:      g.MethodIndex(),
		Code:             res.Code,
		FrameSize:        res.Frame.Size,
		CoreSpillMask:    res.Frame.CoreSpillMask,
		FpuSpillMask:     res.Frame.FpuSpillMask,
		EncodedStackMaps: res.EncodedStackMaps,
		LinkerPatches:    res.LinkerPatches,
		CFI:              res.CFI,
		JitRoots:         res.JitRoots,
		Listing:          res.Listing,
	}
	for _, p := range res.JitPatches {
		m.JitPatches = append(m.JitPatches, JitPatch{LiteralOffset: p.LiteralOffset, RootIndex: p.RootIndex})
	}
	if err := m.normalize(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CompiledMethod) normalize() (err error) {
	if len(m.Code) == 0 {
		m.Code = nil
	}
	if len(m.EncodedStackMaps) == 0 {
		m.EncodedStackMaps = nil
	}
	if len(m.LinkerPatches) == 0 {
		m.LinkerPatches = nil
	}
	if len(m.CFI) == 0 {
		m.CFI = nil
	}
	if len(m.JitRoots) == 0 {
		m.JitRoots = nil
	}
	if len(m.JitPatches) == 0 {
		m.JitPatches = nil
	}
	if m.StackMaps, err = backend.DecodeStackMaps(m.EncodedStackMaps); err != nil {
		return fmt.Errorf("%s: invalid stack maps: %w", m.Name, err)
	}
	return
}

// LookupStackMap returns the stack map at the native pc, which is the return
// address of a call or the address of a faulting instruction.
func (m *CompiledMethod) LookupStackMap(nativePC uint32) (StackMap, bool) {
	return backend.LookupStackMap(m.StackMaps, nativePC)
}
