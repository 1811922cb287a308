package risk

import (
	"testing"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

func testInstrument() types.QualifiedSymbol {
	return types.NewQualifiedSymbol("TEST", "BTC-USDT")
}

func mustQty(s string) fixedpoint.Quantity {
	q, err := fixedpoint.ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

func mustPrice(s string) fixedpoint.Price {
	p, err := fixedpoint.ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

func TestGateRejectsWhenTradingDisabled(t *testing.T) {
	g := Gate{}
	target := types.PortfolioTarget{Instrument: testInstrument(), TargetPosition: mustQty("1")}
	res := g.Validate(target, Parameters{TradingEnabled: false, HaltReason: "maintenance"}, mustPrice("100"), 0)
	if res.Decision != Rejected || res.Reason != "maintenance" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestGateRejectsUntradeableMarket(t *testing.T) {
	g := Gate{}
	inst := testInstrument()
	other := types.NewQualifiedSymbol("TEST", "ETH-USDT")
	target := types.PortfolioTarget{Instrument: inst, TargetPosition: mustQty("1")}
	params := Parameters{TradingEnabled: true, TradeableMarkets: map[types.QualifiedSymbol]bool{other: true}}
	res := g.Validate(target, params, mustPrice("100"), 0)
	if res.Decision != Rejected {
		t.Fatalf("expected rejection for untradeable market, got %+v", res)
	}
}

func TestGateRejectsOnDrawdownHalt(t *testing.T) {
	g := Gate{}
	target := types.PortfolioTarget{Instrument: testInstrument(), TargetPosition: mustQty("1")}
	params := Parameters{TradingEnabled: true, DrawdownHalted: true, HaltReason: "max drawdown breached"}
	res := g.Validate(target, params, mustPrice("100"), 0)
	if res.Decision != Rejected || res.Reason != "max drawdown breached" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestGateClampsPositionLimit(t *testing.T) {
	g := Gate{}
	inst := testInstrument()
	target := types.PortfolioTarget{Instrument: inst, TargetPosition: mustQty("10")}
	params := Parameters{
		TradingEnabled: true,
		MaxPosition:    map[types.QualifiedSymbol]fixedpoint.Quantity{inst: mustQty("5")},
	}
	res := g.Validate(target, params, mustPrice("100"), 0)
	if res.Decision != Adjusted || res.Target.TargetPosition != mustQty("5") {
		t.Fatalf("expected clamp to 5, got %+v", res)
	}
}

func TestGateClampsNotionalLimit(t *testing.T) {
	g := Gate{}
	inst := testInstrument()
	target := types.PortfolioTarget{Instrument: inst, TargetPosition: mustQty("10")}
	params := Parameters{
		TradingEnabled: true,
		MaxNotional:    map[types.QualifiedSymbol]fixedpoint.Value{inst: fixedpoint.Value(500 * fixedpoint.Scale)},
	}
	res := g.Validate(target, params, mustPrice("100"), 0) // 10*100=1000 notional > 500 cap
	if res.Decision != Adjusted {
		t.Fatalf("expected adjustment, got %+v", res)
	}
	if res.Target.TargetPosition != mustQty("5") {
		t.Fatalf("expected notional clamp to qty 5 (500/100), got %s", res.Target.TargetPosition)
	}
}

func TestGateAppliesSizeMultiplier(t *testing.T) {
	g := Gate{}
	inst := testInstrument()
	target := types.PortfolioTarget{Instrument: inst, TargetPosition: mustQty("10")}
	params := Parameters{TradingEnabled: true, SizeMult: fixedpoint.Ratio(fixedpoint.RatioScale / 2)}
	res := g.Validate(target, params, mustPrice("100"), 0)
	if res.Target.TargetPosition != mustQty("5") {
		t.Fatalf("expected 50%% size multiplier to halve to 5, got %s", res.Target.TargetPosition)
	}
	if res.Decision != Adjusted {
		t.Fatalf("expected Adjusted decision, got %v", res.Decision)
	}
}

func TestGateRejectsWhenCostExceedsAlphaBudget(t *testing.T) {
	g := Gate{}
	inst := testInstrument()
	target := types.PortfolioTarget{
		Instrument: inst, TargetPosition: mustQty("1"),
		CombinedAlpha: fixedpoint.Ratio(fixedpoint.RatioScale / 1000), // 10bps
	}
	params := Parameters{TradingEnabled: true, MaxCostAlphaRatio: fixedpoint.Ratio(fixedpoint.RatioScale / 2)} // cost <= 0.5*alpha
	res := g.Validate(target, params, mustPrice("100"), fixedpoint.Rate(20))                                  // cost 20bps > 0.5*10=5bps
	if res.Decision != Rejected {
		t.Fatalf("expected rejection on cost/alpha ratio, got %+v", res)
	}
}

func TestGateWarnsBelowMinAlpha(t *testing.T) {
	g := Gate{}
	inst := testInstrument()
	target := types.PortfolioTarget{
		Instrument: inst, TargetPosition: mustQty("1"),
		CombinedAlpha: fixedpoint.Ratio(fixedpoint.RatioScale / 10000), // 1bp
	}
	params := Parameters{TradingEnabled: true, MinAlphaBps: fixedpoint.Rate(5)}
	res := g.Validate(target, params, mustPrice("100"), 0)
	if res.Decision != Warning {
		t.Fatalf("expected Warning decision, got %+v", res)
	}
}

func TestGateAcceptsCleanTarget(t *testing.T) {
	g := Gate{}
	target := types.PortfolioTarget{Instrument: testInstrument(), TargetPosition: mustQty("1")}
	res := g.Validate(target, Parameters{TradingEnabled: true}, mustPrice("100"), 0)
	if res.Decision != Accepted {
		t.Fatalf("expected acceptance, got %+v", res)
	}
}
