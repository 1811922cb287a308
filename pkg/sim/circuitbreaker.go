package sim

import "sync"

// BreakerState is one of the three circuit-breaker states from spec §4.8.
type BreakerState int8

const (
	Closed BreakerState = iota
	Triggered
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Triggered:
		return "triggered"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerLimits are the three trigger conditions: a breaker trips if
// depth ratio falls below MinDepthRatio, spread rises above MaxSpreadBps,
// or volatility rises above MaxVolatility.
type BreakerLimits struct {
	MinDepthRatio float64
	MaxSpreadBps  float64
	MaxVolatility float64
	// HalfOpenProbes is how many consecutive clean samples a Triggered
	// breaker must see before it closes again; the clean sample that moves
	// it to HalfOpen counts as the first, and it always spends at least one
	// sample in HalfOpen.
	HalfOpenProbes int
}

// CircuitBreaker trips trading off when the market quality described by a
// Moment breaches any configured limit, then requires a run of clean
// samples in a HalfOpen probe state before fully closing again.
type CircuitBreaker struct {
	mu          sync.Mutex
	limits      BreakerLimits
	state       BreakerState
	cleanProbes int
}

// NewCircuitBreaker starts in the Closed state.
func NewCircuitBreaker(limits BreakerLimits) *CircuitBreaker {
	return &CircuitBreaker{limits: limits, state: Closed}
}

// State returns the current breaker state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// TradingDisabled reports whether the breaker is currently blocking new
// trading (true in both Triggered and HalfOpen — HalfOpen only probes
// market quality, it does not resume trading until fully Closed).
func (b *CircuitBreaker) TradingDisabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != Closed
}

func (b *CircuitBreaker) breaches(m Moment) bool {
	if b.limits.MinDepthRatio > 0 && m.DepthRatio < b.limits.MinDepthRatio {
		return true
	}
	if b.limits.MaxSpreadBps > 0 && m.SpreadBps > b.limits.MaxSpreadBps {
		return true
	}
	if b.limits.MaxVolatility > 0 && m.Volatility > b.limits.MaxVolatility {
		return true
	}
	return false
}

// Observe feeds one moment sample through the breaker's state machine and
// returns the resulting state.
func (b *CircuitBreaker) Observe(m Moment) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		if b.breaches(m) {
			b.state = Triggered
			b.cleanProbes = 0
		}
	case Triggered:
		if !b.breaches(m) {
			b.state = HalfOpen
			b.cleanProbes = 1
		}
	case HalfOpen:
		if b.breaches(m) {
			b.state = Triggered
			b.cleanProbes = 0
			break
		}
		b.cleanProbes++
		probes := b.limits.HalfOpenProbes
		if probes <= 0 {
			probes = 1
		}
		if b.cleanProbes >= probes {
			b.state = Closed
			b.cleanProbes = 0
		}
	}
	return b.state
}
