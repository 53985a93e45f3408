package leb128

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// Native PCs, dex PCs and register masks in a stack map.
func TestAppendUint64_LoadUint32(t *testing.T) {
	for _, tc := range []struct {
		value   uint32
		encoded []byte
	}{
		{value: 0, encoded: []byte{0x00}},
		{value: 127, encoded: []byte{0x7f}},
		{value: 128, encoded: []byte{0x80, 0x01}},
		{value: 16384, encoded: []byte{0x80, 0x80, 0x01}},
		{value: math.MaxUint32, encoded: []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	} {
		tc := tc
		buf := AppendUint64([]byte{0xaa}, uint64(tc.value))
		require.Equal(t, append([]byte{0xaa}, tc.encoded...), buf)

		actual, n, err := LoadUint32(append(buf[1:], 0xbb))
		require.NoError(t, err)
		require.Equal(t, tc.value, actual)
		require.Equal(t, uint64(len(tc.encoded)), n)
	}
}

// Stack slot offsets and CFA adjustments, which may be negative.
func TestAppendInt64_LoadInt32(t *testing.T) {
	for _, tc := range []struct {
		value   int32
		encoded []byte
	}{
		{value: -1, encoded: []byte{0x7f}},
		{value: -4, encoded: []byte{0x7c}},
		{value: 64, encoded: []byte{0xc0, 0x00}},
		{value: -65, encoded: []byte{0xbf, 0x7f}},
		{value: math.MaxInt32, encoded: []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{value: math.MinInt32, encoded: []byte{0x80, 0x80, 0x80, 0x80, 0x78}},
	} {
		tc := tc
		buf := AppendInt64(nil, int64(tc.value))
		require.Equal(t, tc.encoded, buf)

		actual, n, err := LoadInt32(buf)
		require.NoError(t, err)
		require.Equal(t, tc.value, actual)
		require.Equal(t, uint64(len(tc.encoded)), n)
	}
}

func TestLoad_errors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		buf    []byte
		signed bool
		expErr error
	}{
		{name: "empty", buf: nil, expErr: errShort},
		{name: "truncated", buf: []byte{0x80, 0x80}, expErr: errShort},
		{name: "unused bits", buf: []byte{0xff, 0xff, 0xff, 0xff, 0x1f}, expErr: errOverflow32},
		{name: "too long", buf: []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}, expErr: errOverflow32},
		{name: "signed truncated", buf: []byte{0xff}, signed: true, expErr: errShort},
		{name: "signed unused bits", buf: []byte{0xff, 0xff, 0xff, 0xff, 0x4f}, signed: true, expErr: errOverflow32},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var err error
			if tc.signed {
				_, _, err = LoadInt32(tc.buf)
			} else {
				_, _, err = LoadUint32(tc.buf)
			}
			require.Equal(t, tc.expErr, err)
		})
	}
}

func TestLoad_noAlloc(t *testing.T) {
	buf := []byte{0x80, 0x80, 0x01, 0xbf, 0x7f}
	allocs := testing.AllocsPerRun(100, func() {
		_, n, _ := LoadUint32(buf)
		_, _, _ = LoadInt32(buf[n:])
	})
	require.Zero(t, allocs)
}
