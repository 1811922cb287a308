package fixedpoint

// IntSqrt returns floor(sqrt(x)) for x >= 0 via bounded Newton iteration,
// per spec §4.4 ("Integer square root by Newton iteration, bounded to 100
// rounds"). Returns 0 for x <= 0 rather than panicking (numerical-defensive:
// negative input never reaches a sqrt call unprotected).
func IntSqrt(x int64) int64 {
	if x <= 0 {
		return 0
	}
	if x < 2 {
		return x
	}
	z := x
	y := (z + 1) / 2
	for round := 0; y < z && round < 100; round++ {
		z = y
		y = (z + x/z) / 2
	}
	return z
}
