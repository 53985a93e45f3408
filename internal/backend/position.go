package backend

import "github.com/tetratelabs/irgen/internal/asm"

// CodePosition is a position in the code being generated: the offset of an
// assembler node plus a byte delta. It is only resolvable once the code is
// assembled, since branch relaxation moves nodes.
type CodePosition struct {
	Node  asm.Node
	Delta int64
}

// At returns the position delta bytes after n.
func At(n asm.Node, delta int64) CodePosition { return CodePosition{Node: n, Delta: delta} }

// Offset returns the resolved native offset. Only valid after assembly.
func (p CodePosition) Offset() uint32 {
	return uint32(int64(p.Node.OffsetInBinary()) + p.Delta)
}
