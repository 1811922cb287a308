// Package sim implements the agent-based simulation core of spec §4.8: a
// Gaussian-copula synthetic order book generator, a reflexive-loop
// regime/circuit-breaker/feedback controller, and an event-driven runner
// loop. Grounded on pkg/app/perp/txgen.go and txfeeder.go's generator-plus-
// ticker-loop split, and pkg/feed's deterministic clock for reproducible
// runs.
package sim

import (
	"math"
	"math/rand"
	"sync"

	"github.com/axiomquant/tradecore/pkg/fabric"
	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

// OrderbookMoments parameterizes the synthetic book generator: a
// log-normal spread, per-level log-normal depth with AR(1) inter-level
// correlation, a clamped-normal order-flow imbalance, and a tick size.
type OrderbookMoments struct {
	SpreadMu, SpreadSigma float64   // log-normal params of spread in bps
	DepthMu, DepthSigma   []float64 // per-level log-normal params, length = Levels
	Rho                   float64   // AR(1) inter-level correlation
	ImbalanceMean         float64
	ImbalanceVar          float64
	TickSizeBps           float64
	Levels                int
}

// Generator produces synthetic order-book snapshots from OrderbookMoments
// via a Gaussian copula: independent standard normals are correlated via
// the Cholesky factor of the AR(1) correlation matrix, then mapped through
// a log-normal to get per-level depth.
type Generator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	moments   OrderbookMoments
	cachedRho float64
	cachedL   [][]float64
	updateID  int64
}

// NewGenerator seeds a generator for deterministic, reproducible book
// sequences.
func NewGenerator(seed int64, moments OrderbookMoments) *Generator {
	g := &Generator{
		rng:     rand.New(rand.NewSource(seed)),
		moments: moments,
	}
	g.cachedRho = math.NaN() // force the first Generate to build L
	return g
}

// SetRho updates the inter-level correlation. The Cholesky factor is only
// recomputed lazily, on the next Generate call, and only if rho actually
// moved by more than 1e-10 — cheap re-use across ticks where correlation
// is stable.
func (g *Generator) SetRho(rho float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.moments.Rho = rho
}

// cholesky computes the lower-triangular factor L such that L*L^T equals
// the n x n AR(1) correlation matrix corr(i,j) = rho^|i-j|, via the
// standard sequential Cholesky-Banachiewicz algorithm.
func cholesky(rho float64, n int) [][]float64 {
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}
	corr := func(i, j int) float64 {
		d := i - j
		if d < 0 {
			d = -d
		}
		return math.Pow(rho, float64(d))
	}
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := 0.0
			for k := 0; k < j; k++ {
				sum += l[i][k] * l[j][k]
			}
			if i == j {
				diag := corr(i, i) - sum
				if diag < 0 {
					diag = 0
				}
				l[i][j] = math.Sqrt(diag)
			} else if l[j][j] != 0 {
				l[i][j] = (corr(i, j) - sum) / l[j][j]
			}
		}
	}
	return l
}

func (g *Generator) ensureCholesky() {
	delta := g.moments.Rho - g.cachedRho
	if delta < 0 {
		delta = -delta
	}
	if g.cachedL != nil && delta <= 1e-10 {
		return
	}
	g.cachedL = cholesky(g.moments.Rho, g.moments.Levels)
	g.cachedRho = g.moments.Rho
}

func clampFloat(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Generate produces one synthetic full-depth snapshot around mid,
// following spec §4.8 steps 1-5, and advances the fabric update id.
func (g *Generator) Generate(symbol types.QualifiedSymbol, mid fixedpoint.Price) fabric.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ensureCholesky()

	spreadBps := math.Exp(g.moments.SpreadMu + g.moments.SpreadSigma*g.rng.NormFloat64())
	imbalance := clampFloat(g.moments.ImbalanceMean+math.Sqrt(g.moments.ImbalanceVar)*g.rng.NormFloat64(), -0.95, 0.95)

	n := g.moments.Levels
	z := make([]float64, n)
	for i := range z {
		z[i] = g.rng.NormFloat64()
	}
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for k := 0; k <= i && k < len(g.cachedL[i]); k++ {
			sum += g.cachedL[i][k] * z[k]
		}
		y[i] = sum
	}

	depth := make([]float64, n)
	for i := 0; i < n; i++ {
		mu, sigma := 0.0, 0.0
		if i < len(g.moments.DepthMu) {
			mu = g.moments.DepthMu[i]
		}
		if i < len(g.moments.DepthSigma) {
			sigma = g.moments.DepthSigma[i]
		}
		depth[i] = math.Exp(mu + sigma*y[i])
	}

	midFloat := mid.Float64()
	tick := midFloat * g.moments.TickSizeBps / 10000
	if tick <= 0 {
		tick = 0.01
	}
	halfSpread := midFloat * spreadBps / 2 / 10000

	bestBid := math.Floor((midFloat-halfSpread)/tick) * tick
	bestAsk := math.Ceil((midFloat+halfSpread)/tick) * tick

	bids := make([]fabric.Level, n)
	asks := make([]fabric.Level, n)
	for i := 0; i < n; i++ {
		bidPrice := bestBid - float64(i)*tick
		askPrice := bestAsk + float64(i)*tick
		bidQty := depth[i] * (1 + imbalance)
		askQty := depth[i] * (1 - imbalance)
		if bidQty < 0 {
			bidQty = 0
		}
		if askQty < 0 {
			askQty = 0
		}
		bids[i] = fabric.Level{Price: fixedpoint.PriceFromFloat64(bidPrice), Qty: fixedpoint.QuantityFromFloat64(bidQty)}
		asks[i] = fabric.Level{Price: fixedpoint.PriceFromFloat64(askPrice), Qty: fixedpoint.QuantityFromFloat64(askQty)}
	}

	g.updateID++
	return fabric.Snapshot{
		Symbol:       symbol,
		LastUpdateID: g.updateID,
		Bids:         bids,
		Asks:         asks,
	}
}
