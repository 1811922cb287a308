package fixedpoint

// Clamp returns the Ratio clamped to [-Scale, Scale] (i.e. [-1,1]).
func (r Ratio) Clamp() Ratio {
	switch {
	case r > RatioScale:
		return RatioScale
	case r < -RatioScale:
		return -RatioScale
	default:
		return r
	}
}

// Float64 returns the Ratio as a float64 for display/non-critical math
// (e.g. log-normal sampling in the simulation core). Never used on a
// matching or settlement critical path.
func (r Ratio) Float64() float64 { return float64(r) / float64(RatioScale) }

// RatioFromFloat64 builds a Ratio from a float64, used only at the
// boundary where simulation/statistical code produces a float and needs to
// hand a scaled value back into the rest of the system.
func RatioFromFloat64(f float64) Ratio { return Ratio(f * float64(RatioScale)) }

// ClampNonNegative returns 0 if c < 0, else c. Confidence and Volatility
// are defined as Ratio-scaled values clamped to >= 0.
func (c Confidence) ClampNonNegative() Confidence {
	if c < 0 {
		return 0
	}
	return c
}

func (v Volatility) ClampNonNegative() Volatility {
	if v < 0 {
		return 0
	}
	return v
}

func (c Confidence) Float64() float64  { return float64(c) / float64(RatioScale) }
func (s Strength) Float64() float64    { return float64(s) / float64(RatioScale) }
func (v Volatility) Float64() float64  { return float64(v) / float64(RatioScale) }
func (z ZScore) Float64() float64      { return float64(z) / float64(RatioScale) }
func (r Rate) Float64() float64        { return float64(r) / float64(BpsScale) }
func (b BasisPoints) Float64() float64 { return float64(b) / float64(BasisPointUnit) }

// RateFromFloat64 and BasisPointsFromFloat64 mirror RatioFromFloat64.
func RateFromFloat64(f float64) Rate               { return Rate(f * float64(BpsScale)) }
func BasisPointsFromFloat64(f float64) BasisPoints { return BasisPoints(f * float64(BasisPointUnit)) }
func ConfidenceFromFloat64(f float64) Confidence   { return Confidence(f * float64(RatioScale)) }
func StrengthFromFloat64(f float64) Strength       { return Strength(f * float64(RatioScale)) }
func VolatilityFromFloat64(f float64) Volatility   { return Volatility(f * float64(RatioScale)) }

// ToBps converts BasisPoints (1 unit = 1/100 bp) to a plain Rate (1 unit =
// 1 bp), truncating sub-bp resolution.
func (b BasisPoints) ToBps() Rate { return Rate(int64(b) / BasisPointUnit) }

// FromBps converts a plain Rate to BasisPoints.
func FromBps(r Rate) BasisPoints { return BasisPoints(int64(r) * BasisPointUnit) }
