package moremath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// divRem32 evaluates the lowered sequence chosen by SelectDivision for 32-bit operands.
func divRem32(n, d int32, rem bool) int32 {
	switch SelectDivision(int64(d)) {
	case DivisionTrivial:
		if rem {
			return 0
		}
		if d == -1 {
			return -n
		}
		return n
	case DivisionPowerOfTwo:
		ctz := CTZ(AbsOrMin(int64(d)))
		if !rem {
			var tmp int32
			if ctz == 1 {
				tmp = int32(uint32(n) >> 31)
			} else {
				tmp = int32(uint32(n>>31) >> (32 - ctz))
			}
			out := (n + tmp) >> ctz
			if d < 0 {
				out = -out
			}
			return out
		}
		if ctz == 1 {
			tmp := n >> 31
			return ((n - tmp) & 1) + tmp
		}
		tmp := int32(uint32(n>>31) >> (32 - ctz))
		mask := int32(uint32(1)<<ctz - 1)
		return ((n + tmp) & mask) - tmp
	case DivisionMagic:
		magic, shift := CalculateMagicAndShift(int64(d), false)
		t := MultiplyHigh32(n, int32(magic))
		if d > 0 && magic < 0 {
			t += n
		} else if d < 0 && magic > 0 {
			t -= n
		}
		t >>= shift
		t -= t >> 31
		if rem {
			return n - t*d
		}
		return t
	}
	panic("unreachable")
}

func divRem64(n, d int64, rem bool) int64 {
	magic, shift := CalculateMagicAndShift(d, true)
	t := MultiplyHigh64(n, magic)
	if d > 0 && magic < 0 {
		t += n
	} else if d < 0 && magic > 0 {
		t -= n
	}
	t >>= shift
	t -= t >> 63
	if rem {
		return n - t*d
	}
	return t
}

func TestSelectDivision(t *testing.T) {
	for _, tc := range []struct {
		divisor int64
		exp     DivisionKind
	}{
		{divisor: 0, exp: DivisionByZero},
		{divisor: 1, exp: DivisionTrivial},
		{divisor: -1, exp: DivisionTrivial},
		{divisor: 2, exp: DivisionPowerOfTwo},
		{divisor: -2, exp: DivisionPowerOfTwo},
		{divisor: 1024, exp: DivisionPowerOfTwo},
		{divisor: math.MinInt32, exp: DivisionPowerOfTwo},
		{divisor: math.MinInt64, exp: DivisionPowerOfTwo},
		{divisor: 7, exp: DivisionMagic},
		{divisor: -7, exp: DivisionMagic},
		{divisor: 3, exp: DivisionMagic},
		{divisor: math.MaxInt32, exp: DivisionMagic},
	} {
		tc := tc
		t.Run(tc.exp.String(), func(t *testing.T) {
			require.Equal(t, tc.exp, SelectDivision(tc.divisor))
		})
	}
}

func TestCalculateMagicAndShift_knownValues(t *testing.T) {
	// Values from Hacker's Delight, table 10-1 and 10-2.
	for _, tc := range []struct {
		divisor  int64
		is64bit  bool
		expMagic int64
		expShift int
	}{
		{divisor: 3, expMagic: 0x55555556, expShift: 0},
		{divisor: 5, expMagic: 0x66666667, expShift: 1},
		{divisor: 7, expMagic: -0x6db6db6d, expShift: 2},
		{divisor: -5, expMagic: -0x66666667, expShift: 1},
		{divisor: -7, expMagic: 0x6db6db6d, expShift: 2},
		{divisor: 3, is64bit: true, expMagic: 0x5555555555555556, expShift: 0},
		{divisor: 7, is64bit: true, expMagic: 0x4924924924924925, expShift: 1},
	} {
		magic, shift := CalculateMagicAndShift(tc.divisor, tc.is64bit)
		require.Equal(t, tc.expMagic, magic, "divisor %d", tc.divisor)
		require.Equal(t, tc.expShift, shift, "divisor %d", tc.divisor)
	}
}

func TestCalculateMagicAndShift_panicsOnTrivialDivisors(t *testing.T) {
	for _, d := range []int64{-1, 0, 1} {
		require.Panics(t, func() { CalculateMagicAndShift(d, false) })
		require.Panics(t, func() { CalculateMagicAndShift(d, true) })
	}
}

func TestDivRem32_matchesHardware(t *testing.T) {
	divisors := []int32{
		1, -1, 2, -2, 3, -3, 4, 5, -5, 6, 7, -7, 8, 10, 11, 13, 25, 125, 641, 1000, -1000,
		1 << 16, 65535, 0x7fff_ffff, -0x7fff_ffff, math.MinInt32, math.MinInt32 + 1,
	}
	dividends := []int32{
		0, 1, -1, 2, -2, 6, -6, 7, -7, 100, -100, 12345, -12345,
		math.MaxInt32, math.MinInt32, math.MaxInt32 - 1, math.MinInt32 + 1,
	}
	r := rand.New(rand.NewSource(0))
	for i := 0; i < 200; i++ {
		dividends = append(dividends, int32(r.Uint32()))
	}
	for _, d := range divisors {
		for _, n := range dividends {
			require.Equal(t, n/d, divRem32(n, d, false), "%d / %d", n, d)
			require.Equal(t, n%d, divRem32(n, d, true), "%d %% %d", n, d)
		}
	}
}

func TestDivRem64_magic(t *testing.T) {
	divisors := []int64{
		3, -3, 5, 7, -7, 10, 641, 1000003, math.MaxInt32, math.MaxInt64, -math.MaxInt64,
		math.MinInt64 + 1, 0x1_0000_0001,
	}
	dividends := []int64{0, 1, -1, 7, -7, math.MaxInt64, math.MinInt64, math.MaxInt64 - 1, math.MinInt64 + 1}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		dividends = append(dividends, int64(r.Uint64()))
	}
	for _, d := range divisors {
		for _, n := range dividends {
			require.Equal(t, n/d, divRem64(n, d, false), "%d / %d", n, d)
			require.Equal(t, n%d, divRem64(n, d, true), "%d %% %d", n, d)
		}
	}
}

func TestMultiplyHigh64(t *testing.T) {
	require.Equal(t, int64(0), MultiplyHigh64(1, 1))
	require.Equal(t, int64(-1), MultiplyHigh64(-1, 1))
	require.Equal(t, int64(0x3fffffffffffffff), MultiplyHigh64(math.MaxInt64, math.MaxInt64))
	require.Equal(t, int64(0x4000000000000000), MultiplyHigh64(math.MinInt64, math.MinInt64))
	require.Equal(t, int32(-1), MultiplyHigh32(-1, 1))
}
