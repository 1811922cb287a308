package execution

import (
	"testing"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

func mustPrice(s string) fixedpoint.Price {
	p, err := fixedpoint.ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

func mustQty(s string) fixedpoint.Quantity {
	q, err := fixedpoint.ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

func testSnapshot() MarketSnapshot {
	return MarketSnapshot{
		Instrument: types.NewQualifiedSymbol("TEST", "BTC-USDT"),
		BestBid:    mustPrice("99.99"),
		BestAsk:    mustPrice("100.01"),
		TickSize:   mustPrice("0.01"),
		ADV:        mustQty("1000"),
		SpreadBps:  fixedpoint.Rate(20),
	}
}

func TestPlanSkipsBelowMinSize(t *testing.T) {
	p := NewPlanner(Config{MinSize: mustQty("1")})
	target := types.PortfolioTarget{Instrument: testSnapshot().Instrument, TargetPosition: mustQty("0.5")}
	orders, err := p.Plan(target, 0, types.Normal, testSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders below min size, got %d", len(orders))
	}
}

func TestPlanImmediateIsMarketIOC(t *testing.T) {
	p := NewPlanner(Config{MinSize: mustQty("0.01"), MaxOrderSize: mustQty("100")})
	target := types.PortfolioTarget{Instrument: testSnapshot().Instrument, TargetPosition: mustQty("5")}
	orders, err := p.Plan(target, 0, types.Immediate, testSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}
	o := orders[0]
	if o.Type != types.Market || o.TIF != types.IOC || o.Side != types.Buy {
		t.Fatalf("unexpected order shape: %+v", o)
	}
}

func TestPlanAggressiveCrossesOppositeBest(t *testing.T) {
	p := NewPlanner(Config{MinSize: mustQty("0.01"), MaxOrderSize: mustQty("100"), AggressiveCrossTicks: 2})
	target := types.PortfolioTarget{Instrument: testSnapshot().Instrument, TargetPosition: mustQty("5")}
	orders, err := p.Plan(target, 0, types.Aggressive, testSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	want := mustPrice("100.03") // ask 100.01 + 2 ticks of 0.01
	if orders[0].Price != want {
		t.Fatalf("price = %s, want %s", orders[0].Price, want)
	}
}

func TestPlanPassiveSitsBehindSameSideBest(t *testing.T) {
	p := NewPlanner(Config{MinSize: mustQty("0.01"), MaxOrderSize: mustQty("100"), PassiveOffsetTicks: 3})
	target := types.PortfolioTarget{Instrument: testSnapshot().Instrument, TargetPosition: mustQty("5")}
	orders, err := p.Plan(target, 0, types.Passive, testSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	want := mustPrice("99.96") // bid 99.99 - 3 ticks of 0.01
	if orders[0].Price != want {
		t.Fatalf("price = %s, want %s", orders[0].Price, want)
	}
}

func TestPlanSlicesIntoChildrenSharingParent(t *testing.T) {
	p := NewPlanner(Config{MinSize: mustQty("0.01"), MaxOrderSize: mustQty("2")})
	target := types.PortfolioTarget{Instrument: testSnapshot().Instrument, TargetPosition: mustQty("5")}
	orders, err := p.Plan(target, 0, types.Normal, testSnapshot())
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 children (2+2+1), got %d", len(orders))
	}
	parent := orders[0].ParentOrderID
	if parent == "" {
		t.Fatalf("expected a shared parent id on sliced children")
	}
	var total fixedpoint.Quantity
	for _, o := range orders {
		if o.ParentOrderID != parent {
			t.Fatalf("child %s does not share parent id", o.ID)
		}
		total += o.Quantity
	}
	if total != mustQty("5") {
		t.Fatalf("sliced total = %s, want 5", total)
	}
}

func TestEstimateCostComponents(t *testing.T) {
	cfg := Config{ImpactCoeffBps: fixedpoint.Rate(100), FeeBps: fixedpoint.Rate(5)}
	snap := testSnapshot()
	est := EstimateCost(cfg, snap, mustQty("10")) // participation = 10/1000 = 1%
	if est.SpreadBps != fixedpoint.Rate(10) {
		t.Fatalf("spread = %d, want 10 (half of 20bps)", est.SpreadBps)
	}
	if est.FeeBps != fixedpoint.Rate(5) {
		t.Fatalf("fee = %d, want 5", est.FeeBps)
	}
	if est.ImpactBps <= 0 {
		t.Fatalf("expected positive impact, got %d", est.ImpactBps)
	}
	if est.TotalBps != est.SpreadBps+est.ImpactBps+est.FeeBps {
		t.Fatalf("total bps does not sum components")
	}
}
