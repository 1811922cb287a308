package sim

import (
	"math"
	"testing"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

func testMoments() OrderbookMoments {
	return OrderbookMoments{
		SpreadMu:      math.Log(10), // ~10bps spread
		SpreadSigma:   0.1,
		DepthMu:       []float64{math.Log(100), math.Log(90), math.Log(80)},
		DepthSigma:    []float64{0.1, 0.1, 0.1},
		Rho:           0.5,
		ImbalanceMean: 0,
		ImbalanceVar:  0.01,
		TickSizeBps:   1,
		Levels:        3,
	}
}

func TestCholeskyReconstructsCorrelationMatrix(t *testing.T) {
	l := cholesky(0.5, 3)
	// Reconstruct L*L^T and compare against corr(i,j) = rho^|i-j|.
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += l[i][k] * l[j][k]
			}
			want := math.Pow(0.5, math.Abs(float64(i-j)))
			if diff := sum - want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("L*L^T[%d][%d] = %v, want %v", i, j, sum, want)
			}
		}
	}
}

func TestGeneratorDeterministicGivenSameSeed(t *testing.T) {
	symbol := types.NewQualifiedSymbol("SIM", "BTC-USDT")
	mid := fixedpoint.PriceFromFloat64(50000)

	a := NewGenerator(7, testMoments())
	b := NewGenerator(7, testMoments())

	snapA := a.Generate(symbol, mid)
	snapB := b.Generate(symbol, mid)

	if len(snapA.Bids) != len(snapB.Bids) || len(snapA.Asks) != len(snapB.Asks) {
		t.Fatalf("expected identical level counts")
	}
	for i := range snapA.Bids {
		if snapA.Bids[i] != snapB.Bids[i] {
			t.Fatalf("bid level %d differs: %+v vs %+v", i, snapA.Bids[i], snapB.Bids[i])
		}
	}
	for i := range snapA.Asks {
		if snapA.Asks[i] != snapB.Asks[i] {
			t.Fatalf("ask level %d differs: %+v vs %+v", i, snapA.Asks[i], snapB.Asks[i])
		}
	}
}

func TestGeneratorProducesAskAboveBid(t *testing.T) {
	symbol := types.NewQualifiedSymbol("SIM", "BTC-USDT")
	mid := fixedpoint.PriceFromFloat64(50000)
	g := NewGenerator(1, testMoments())

	for i := 0; i < 20; i++ {
		snap := g.Generate(symbol, mid)
		if len(snap.Bids) == 0 || len(snap.Asks) == 0 {
			t.Fatalf("expected non-empty levels")
		}
		if snap.Asks[0].Price <= snap.Bids[0].Price {
			t.Fatalf("tick %d: expected best ask above best bid, got bid=%v ask=%v", i, snap.Bids[0].Price, snap.Asks[0].Price)
		}
	}
}

func TestGeneratorCholeskyCacheSkipsTinyRhoChanges(t *testing.T) {
	g := NewGenerator(1, testMoments())
	symbol := types.NewQualifiedSymbol("SIM", "BTC-USDT")
	mid := fixedpoint.PriceFromFloat64(50000)

	g.Generate(symbol, mid)
	firstL := g.cachedL

	g.SetRho(g.moments.Rho + 1e-12) // below the 1e-10 recompute threshold
	g.Generate(symbol, mid)
	if &g.cachedL[0][0] != &firstL[0][0] {
		t.Fatalf("expected cached cholesky factor to be reused for a sub-threshold rho change")
	}

	g.SetRho(g.moments.Rho + 0.2) // well above threshold
	g.Generate(symbol, mid)
	if &g.cachedL[0][0] == &firstL[0][0] {
		t.Fatalf("expected cholesky factor to be recomputed for a material rho change")
	}
}
