package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCFIWriter_Encode(t *testing.T) {
	w := NewCFIWriter()
	w.AdjustCFAOffset(at(4), 32)
	w.RelOffset(at(8), 31, 28)
	w.RelOffset(at(8), 16, 24)
	w.RememberState(at(20))
	w.Restore(at(24), 31)
	w.AdjustCFAOffset(at(28), -32)
	require.Equal(t, 0, w.CurrentCFAOffset())
	w.RestoreState(at(32))
	require.Equal(t, 32, w.CurrentCFAOffset())
	w.RelOffset(at(400), 70, 0)
	w.Restore(at(400), 70)

	require.Equal(t, []byte{
		0x44, 0x0e, 0x20, // advance 4, def_cfa_offset 32
		0x44, 0x9f, 0x01, 0x90, 0x02, // advance 4, ra at cfa-4, s0 at cfa-8
		0x4c, 0x0a, // advance 12, remember_state
		0x44, 0xdf, // advance 4, restore ra
		0x44, 0x0e, 0x00, // advance 4, def_cfa_offset 0
		0x44, 0x0b, // advance 4, restore_state
		0x03, 0x70, 0x01, // advance 368
		0x05, 0x46, 0x08, // offset_extended r70 at cfa-32
		0x06, 0x46, // restore_extended r70
	}, w.Encode())
}

func TestCFIWriter_sortsByOffset(t *testing.T) {
	w := NewCFIWriter()
	w.AdjustCFAOffset(at(300), 16)
	w.AdjustCFAOffset(at(0), 16)
	require.Equal(t, []byte{0x0e, 0x20, 0x03, 0x2c, 0x01, 0x0e, 0x10}, w.Encode())
}

func TestCFIWriter_misuse(t *testing.T) {
	w := NewCFIWriter()
	require.Panics(t, func() { w.RestoreState(at(0)) })
	w.AdjustCFAOffset(at(0), 16)
	require.Panics(t, func() { w.RelOffset(at(0), 31, 16) })
	require.Panics(t, func() { w.RelOffset(at(0), 31, 14) })
}
