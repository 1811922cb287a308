package fixedpoint

import "math/bits"

// MulDiv computes a*b/c using a 128-bit intermediate product, so a and b
// may each be full-range int64 scaled values whose product alone would
// overflow int64 before the divide. c must be non-zero. Exported for
// callers outside this package (margin, amm) that combine two already-
// scaled quantities whose product exceeds int64 at realistic notional
// sizes.
func MulDiv(a, b, c int64) int64 {
	neg := false
	ua, ub, uc := uint64(a), uint64(b), uint64(c)
	if a < 0 {
		neg = !neg
		ua = uint64(-a)
	}
	if b < 0 {
		neg = !neg
		ub = uint64(-b)
	}
	if c < 0 {
		neg = !neg
		uc = uint64(-c)
	}
	hi, lo := bits.Mul64(ua, ub)
	q, _ := bits.Div64(hi, lo, uc)
	if neg {
		return -int64(q)
	}
	return int64(q)
}

// MulDivSum computes (a1*b1 + a2*b2)/c using 128-bit intermediates for
// each product before they are added, for weighted-average accumulations
// where a1*b1 or a2*b2 individually overflow int64. All operands must be
// non-negative (the only shape this is called with: prices and absolute
// quantities).
func MulDivSum(a1, b1, a2, b2, c int64) int64 {
	hi1, lo1 := bits.Mul64(uint64(a1), uint64(b1))
	hi2, lo2 := bits.Mul64(uint64(a2), uint64(b2))
	lo, carry := bits.Add64(lo1, lo2, 0)
	hi := hi1 + hi2 + carry
	q, _ := bits.Div64(hi, lo, uint64(c))
	return int64(q)
}

// SqrtProduct returns floor(sqrt(a*b)) for non-negative a, b, computing
// the product as a 128-bit intermediate so it may exceed int64 before the
// square root (AMM's sqrt(amountA*amountB) initial-mint formula). Returns
// 0 for non-positive operands.
func SqrtProduct(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi == 0 {
		return IntSqrt(int64(lo))
	}
	return int64(sqrt128(hi, lo))
}

// sqrt128 returns floor(sqrt(x)) for a 128-bit unsigned x given as
// (hi, lo) words, via bounded binary search bit-by-bit on the result.
func sqrt128(hi, lo uint64) uint64 {
	var result uint64
	for bit := 63; bit >= 0; bit-- {
		candidate := result | (uint64(1) << uint(bit))
		chi, clo := bits.Mul64(candidate, candidate)
		if chi < hi || (chi == hi && clo <= lo) {
			result = candidate
		}
	}
	return result
}
