package feed

import (
	"math"
	"math/rand"
	"sync"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
)

// ReferenceFeed is the seeded, deterministic "ground truth" mid-price
// process the simulation runner ticks every loop iteration (spec §4.8
// runner step 1: "tick reference feed; read mid"). Given the same seed
// it produces byte-identical price paths, which is what the simulation's
// determinism requirement depends on.
type ReferenceFeed struct {
	mu      sync.Mutex
	rng     *rand.Rand
	mid     float64
	volBps  float64
	seed    int64
	tickNum int64
}

// NewReferenceFeed seeds a reference feed starting at startMid with a
// per-tick log-normal volatility of volBps basis points. Per spec §6, an
// unset seed defaults to 0 and the run is still fully deterministic.
func NewReferenceFeed(seed int64, startMid fixedpoint.Price, volBps float64) *ReferenceFeed {
	return &ReferenceFeed{
		rng:    rand.New(rand.NewSource(seed)),
		mid:    startMid.Float64(),
		volBps: volBps,
		seed:   seed,
	}
}

// Tick advances the reference price by one log-normal step and returns
// the new mid.
func (f *ReferenceFeed) Tick() fixedpoint.Price {
	f.mu.Lock()
	defer f.mu.Unlock()
	z := f.rng.NormFloat64()
	f.mid *= math.Exp(f.volBps / 10000 * z)
	f.tickNum++
	return fixedpoint.PriceFromFloat64(f.mid)
}

// Mid returns the current mid without advancing the feed.
func (f *ReferenceFeed) Mid() fixedpoint.Price {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fixedpoint.PriceFromFloat64(f.mid)
}

// TickCount returns how many times Tick has been called.
func (f *ReferenceFeed) TickCount() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickNum
}

// Seed returns the seed the feed was constructed with, so a runner can log
// or replay it.
func (f *ReferenceFeed) Seed() int64 {
	return f.seed
}
