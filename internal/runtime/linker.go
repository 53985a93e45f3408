package runtime

import (
	"fmt"

	"github.com/tetratelabs/irgen/internal/backend"
)

// Symbol is what a linker patch refers to.
type Symbol struct {
	Kind   backend.PatchKind
	Target uint32
}

// String implements fmt.Stringer.
func (s Symbol) String() string { return fmt.Sprintf("%s(%d)", s.Kind, s.Target) }

// SymbolResolver returns the address of the object, class, string or .bss
// entry a linker patch refers to.
type SymbolResolver interface {
	Resolve(sym Symbol) (uint32, error)
}

// SymbolTable is a SymbolResolver backed by a map.
type SymbolTable map[Symbol]uint32

// Resolve implements SymbolResolver.Resolve.
func (t SymbolTable) Resolve(sym Symbol) (uint32, error) {
	addr, ok := t[sym]
	if !ok {
		return 0, fmt.Errorf("unresolved symbol %s", sym)
	}
	return addr, nil
}

// Link fills the immediates of the PC-relative sequences of code, which is
// loaded at codeAddress. Each high patch receives the upper half of the
// distance between its anchor and the target, and each low patch the
// sign-extended lower half.
func Link(code []byte, codeAddress uint32, patches []backend.LinkerPatch, resolver SymbolResolver) error {
	for i, p := range patches {
		if uint64(p.LiteralOffset)+4 > uint64(len(code)) || p.LiteralOffset%4 != 0 {
			return fmt.Errorf("patch %s: literal offset out of code", p)
		}
		if !p.IsHigh() && (p.High < 0 || int(p.High) >= len(patches) || !patches[p.High].IsHigh()) {
			return fmt.Errorf("patch %d: invalid high patch %d", i, p.High)
		}
		addr, err := resolver.Resolve(Symbol{Kind: p.Kind, Target: p.Target})
		if err != nil {
			return fmt.Errorf("patch %s: %w", p, err)
		}
		hi, lo := backend.SplitAddress(addr - (codeAddress + p.AnchorOffset))
		if p.IsHigh() {
			backend.SetImmediate16(code, p.LiteralOffset, hi)
		} else {
			backend.SetImmediate16(code, p.LiteralOffset, lo)
		}
	}
	return nil
}
