package tca

import "math"

// Slice is one child order's share of an execution schedule.
type Slice struct {
	Fraction      float64 // of total quantity
	Participation float64 // target rate against expected interval volume
	UseLimit      bool
	TickOffset    int64
}

// Scheduler splits a parent order's quantity into slices across n
// intervals.
type Scheduler interface {
	Name() string
	Schedule(n int, volumeProfile []float64) []Slice
}

// TWAPScheduler slices uniformly across every interval.
type TWAPScheduler struct{}

func (TWAPScheduler) Name() string { return "twap" }

func (TWAPScheduler) Schedule(n int, _ []float64) []Slice {
	if n <= 0 {
		return nil
	}
	slices := make([]Slice, n)
	frac := 1.0 / float64(n)
	for i := range slices {
		slices[i] = Slice{Fraction: frac}
	}
	return slices
}

// VWAPScheduler slices proportionally to a historical volume profile,
// falling back to a flat TWAP profile when none is supplied (24/7 markets
// have no intraday volume curve to follow).
type VWAPScheduler struct{}

func (VWAPScheduler) Name() string { return "vwap" }

func (VWAPScheduler) Schedule(n int, volumeProfile []float64) []Slice {
	if n <= 0 {
		return nil
	}
	if len(volumeProfile) != n {
		return TWAPScheduler{}.Schedule(n, nil)
	}
	var total float64
	for _, v := range volumeProfile {
		total += v
	}
	if total <= 0 {
		return TWAPScheduler{}.Schedule(n, nil)
	}
	slices := make([]Slice, n)
	for i, v := range volumeProfile {
		slices[i] = Slice{Fraction: v / total}
	}
	return slices
}

// ISScheduler (Implementation Shortfall / Almgren-Chriss optimal
// trajectory) front- or back-loads execution depending on risk aversion
// lambda: higher lambda trades faster (front-loaded) to reduce exposure to
// price risk, at the cost of more market impact.
type ISScheduler struct {
	RiskAversion float64 // lambda >= 0
}

func (ISScheduler) Name() string { return "implementation_shortfall" }

func (s ISScheduler) Schedule(n int, _ []float64) []Slice {
	if n <= 0 {
		return nil
	}
	// A risk-neutral trader (lambda=0) trades uniformly; increasing lambda
	// shifts weight toward the earlier intervals via a simple exponential
	// decay across the horizon, approximating the Almgren-Chriss closed-
	// form trajectory without solving the full PDE.
	weights := make([]float64, n)
	var total float64
	decay := 1.0 + s.RiskAversion
	for i := range weights {
		w := math.Pow(decay, float64(n-1-i))
		weights[i] = w
		total += w
	}
	slices := make([]Slice, n)
	for i, w := range weights {
		slices[i] = Slice{Fraction: w / total}
	}
	return slices
}

// POVScheduler (percentage of volume) sizes each slice in proportion to
// TargetRate times the expected interval volume, normalized so the
// fractions sum to 1. Slices are not capped at that volume share:
// TargetRate is only reported as each slice's Participation.
type POVScheduler struct {
	TargetRate float64 // e.g. 0.1 = 10% of interval volume
}

func (POVScheduler) Name() string { return "pov" }

func (s POVScheduler) Schedule(n int, volumeProfile []float64) []Slice {
	if n <= 0 {
		return nil
	}
	slices := make([]Slice, n)
	for i := 0; i < n; i++ {
		var expectedVolume float64
		if i < len(volumeProfile) {
			expectedVolume = volumeProfile[i]
		}
		slices[i] = Slice{Participation: s.TargetRate, Fraction: s.TargetRate * expectedVolume}
	}
	normalize(slices)
	return slices
}

// AdaptiveScheduler wraps a base strategy and reshapes its slice fractions
// by the market-condition adjustment described in spec §4.7: a wide
// spread backloads (trade later, hoping spreads tighten), high volatility
// frontloads (trade now, before it gets worse); the two effects are
// combined into one multiplicative adjustment per position in the
// schedule and the result is renormalized to sum to 1.
type AdaptiveScheduler struct {
	Base          Scheduler
	SpreadAdj     float64 // >1 means spreads are wide
	VolatilityAdj float64 // >1 means volatility is elevated
}

func (AdaptiveScheduler) Name() string { return "adaptive" }

func (s AdaptiveScheduler) Schedule(n int, volumeProfile []float64) []Slice {
	base := s.Base.Schedule(n, volumeProfile)
	if len(base) == 0 {
		return base
	}
	spreadAdj := s.SpreadAdj
	if spreadAdj <= 0 {
		spreadAdj = 1
	}
	// adj > 1 frontloads, adj < 1 backloads: a wide spread (spreadAdj > 1)
	// pulls adj down toward backloading, elevated volatility pulls it up
	// toward frontloading.
	adj := s.VolatilityAdj / spreadAdj
	for i := range base {
		pos := float64(i) / float64(len(base)-1+boolToInt(len(base) == 1))
		mult := 1 + (adj-1)*(1-2*pos)
		base[i].Fraction *= mult
	}
	normalize(base)
	return base
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func normalize(slices []Slice) {
	var total float64
	for _, s := range slices {
		total += s.Fraction
	}
	if total <= 0 {
		return
	}
	for i := range slices {
		slices[i].Fraction /= total
	}
}
