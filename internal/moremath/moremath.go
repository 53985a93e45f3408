// Package moremath holds the integer arithmetic the backend needs to strength
// reduce division and remainder by constants.
package moremath

import (
	"math"
	"math/bits"
)

// DivisionKind selects how a division or remainder by a constant is lowered.
type DivisionKind byte

const (
	// DivisionByZero is dead code: a preceding zero check always throws.
	DivisionByZero DivisionKind = iota
	// DivisionTrivial is a division by +1 or -1: a move or a negation.
	DivisionTrivial
	// DivisionPowerOfTwo uses shifts with a rounding correction for negative dividends.
	DivisionPowerOfTwo
	// DivisionMagic multiplies by a magic number and shifts.
	DivisionMagic
)

// String implements fmt.Stringer.
func (k DivisionKind) String() string {
	switch k {
	case DivisionByZero:
		return "by-zero"
	case DivisionTrivial:
		return "trivial"
	case DivisionPowerOfTwo:
		return "power-of-two"
	case DivisionMagic:
		return "magic"
	}
	return "invalid"
}

// SelectDivision returns the cheapest lowering for a division by the constant divisor.
func SelectDivision(divisor int64) DivisionKind {
	switch {
	case divisor == 0:
		return DivisionByZero
	case divisor == 1 || divisor == -1:
		return DivisionTrivial
	case IsPowerOfTwo(AbsOrMin(divisor)):
		return DivisionPowerOfTwo
	default:
		return DivisionMagic
	}
}

// AbsOrMin returns the absolute value of v, or v itself when v is the minimum
// value, whose absolute value is not representable.
func AbsOrMin(v int64) int64 {
	if v == math.MinInt64 || v >= 0 {
		return v
	}
	return -v
}

// IsPowerOfTwo reports whether v, read as an unsigned value, has exactly one bit set.
func IsPowerOfTwo(v int64) bool {
	u := uint64(v)
	return u != 0 && u&(u-1) == 0
}

// CTZ returns the number of trailing zeros of v read as an unsigned value.
func CTZ(v int64) int {
	return bits.TrailingZeros64(uint64(v))
}

// CalculateMagicAndShift computes the magic number and shift amount so that
// a signed division by divisor becomes a multiply-high followed by an optional
// add or subtract of the dividend, an arithmetic shift and a sign correction.
//
// is64bit selects the operand width; for 32-bit the returned magic fits in an int32.
// The divisor must satisfy |divisor| >= 2: zero, +1 and -1 are lowered without it.
//
// See Hacker's Delight, chapter 10, and Granlund & Montgomery,
// "Division by Invariant Integers using Multiplication".
func CalculateMagicAndShift(divisor int64, is64bit bool) (magic int64, shift int) {
	if divisor == 0 || divisor == 1 || divisor == -1 {
		panic("BUG: no magic number for divisor in {-1, 0, 1}")
	}
	if !is64bit && (divisor < math.MinInt32 || divisor > math.MaxInt32) {
		panic("BUG: 32-bit divisor out of range")
	}

	var p int
	var exp, signBit uint64
	if is64bit {
		p, exp = 63, 1<<63
		signBit = uint64(divisor) >> 63
	} else {
		p, exp = 31, 1<<31
		signBit = uint64(uint32(int32(divisor)) >> 31)
	}

	absD := uint64(divisor)
	if divisor < 0 {
		absD = -absD
	}
	if !is64bit {
		absD &= math.MaxUint32
	}

	tmp := exp + signBit
	absNc := tmp - 1 - tmp%absD
	quotient1, remainder1 := exp/absNc, exp%absNc
	quotient2, remainder2 := exp/absD, exp%absD

	for {
		p++
		quotient1 *= 2
		remainder1 *= 2
		if remainder1 >= absNc {
			quotient1++
			remainder1 -= absNc
		}
		quotient2 *= 2
		remainder2 *= 2
		if remainder2 >= absD {
			quotient2++
			remainder2 -= absD
		}
		delta := absD - remainder2
		if !(quotient1 < delta || (quotient1 == delta && remainder1 == 0)) {
			break
		}
	}

	m := quotient2 + 1
	if divisor < 0 {
		m = -m
	}
	if is64bit {
		return int64(m), p - 64
	}
	return int64(int32(m)), p - 32
}

// MultiplyHigh32 returns the upper 32 bits of the signed 64-bit product a*b.
func MultiplyHigh32(a, b int32) int32 {
	return int32((int64(a) * int64(b)) >> 32)
}

// MultiplyHigh64 returns the upper 64 bits of the signed 128-bit product a*b.
func MultiplyHigh64(a, b int64) int64 {
	hi, _ := bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return int64(hi)
}
