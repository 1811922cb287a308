package signal

import (
	"testing"

	"go.uber.org/zap"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

func testInstrument() types.QualifiedSymbol {
	return types.NewQualifiedSymbol("TEST", "BTC-USDT")
}

func TestComputeTargetsAverageWeighting(t *testing.T) {
	a := NewAggregator(types.Average, zap.NewNop())
	inst := testInstrument()
	a.MaxPosition[inst] = fixedpoint.Quantity(fixedpoint.Scale * 10) // cap of 10

	a.Submit(types.Signal{
		StrategyID: "s1", Instrument: inst, Direction: types.DirectionBuy,
		Strength: fixedpoint.Strength(fixedpoint.RatioScale), Confidence: fixedpoint.Confidence(fixedpoint.RatioScale),
	})
	a.Submit(types.Signal{
		StrategyID: "s2", Instrument: inst, Direction: types.DirectionSell,
		Strength: fixedpoint.Strength(fixedpoint.RatioScale / 2), Confidence: fixedpoint.Confidence(fixedpoint.RatioScale),
	})

	targets := a.ComputeTargets(0)
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets))
	}
	tgt := targets[0]
	// average weight 0.5 each: 0.5*10 + 0.5*(-5) = 2.5
	want := fixedpoint.Quantity(fixedpoint.Scale * 5 / 2)
	if tgt.TargetPosition != want {
		t.Fatalf("target position = %s, want %s", tgt.TargetPosition, want)
	}
	if len(tgt.Contributions) != 2 {
		t.Fatalf("expected 2 contributions, got %d", len(tgt.Contributions))
	}
}

func TestComputeTargetsClampsToMax(t *testing.T) {
	a := NewAggregator(types.Average, zap.NewNop())
	inst := testInstrument()
	a.MaxPosition[inst] = fixedpoint.Quantity(fixedpoint.Scale)

	a.Submit(types.Signal{
		StrategyID: "s1", Instrument: inst, Direction: types.DirectionBuy,
		Strength: fixedpoint.Strength(fixedpoint.RatioScale), Confidence: fixedpoint.Confidence(fixedpoint.RatioScale),
	})

	targets := a.ComputeTargets(0)
	if targets[0].TargetPosition != fixedpoint.Quantity(fixedpoint.Scale) {
		t.Fatalf("expected clamp to max position, got %s", targets[0].TargetPosition)
	}
}

func TestComputeTargetsExpiredSignalsExcluded(t *testing.T) {
	a := NewAggregator(types.Average, zap.NewNop())
	inst := testInstrument()
	a.MaxPosition[inst] = fixedpoint.Quantity(fixedpoint.Scale)

	a.Submit(types.Signal{
		StrategyID: "s1", Instrument: inst, Direction: types.DirectionBuy,
		Strength: fixedpoint.Strength(fixedpoint.RatioScale), ExpiresAt: fixedpoint.TimestampMs(100),
	})

	targets := a.ComputeTargets(fixedpoint.TimestampMs(200))
	if len(targets) != 0 {
		t.Fatalf("expected expired signal to drop the instrument entirely, got %d targets", len(targets))
	}
}

func TestComputeTargetsMaxUrgencyAndStops(t *testing.T) {
	a := NewAggregator(types.Average, zap.NewNop())
	inst := testInstrument()
	a.MaxPosition[inst] = fixedpoint.Quantity(fixedpoint.Scale * 10)

	a.Submit(types.Signal{
		StrategyID: "s1", Instrument: inst, Direction: types.DirectionBuy,
		Strength: fixedpoint.Strength(fixedpoint.RatioScale), Urgency: types.Passive,
		StopPrice: mustPrice("90"), TakePrice: mustPrice("120"),
	})
	a.Submit(types.Signal{
		StrategyID: "s2", Instrument: inst, Direction: types.DirectionBuy,
		Strength: fixedpoint.Strength(fixedpoint.RatioScale), Urgency: types.Aggressive,
		StopPrice: mustPrice("95"), TakePrice: mustPrice("110"),
	})

	tgt := a.ComputeTargets(0)[0]
	if tgt.MaxUrgency != types.Aggressive {
		t.Fatalf("expected max urgency Aggressive, got %v", tgt.MaxUrgency)
	}
	// Long target: highest stop, lowest take.
	if tgt.StopPrice != mustPrice("95") {
		t.Fatalf("expected highest stop 95, got %s", tgt.StopPrice)
	}
	if tgt.TakePrice != mustPrice("110") {
		t.Fatalf("expected lowest take 110, got %s", tgt.TakePrice)
	}
}

func mustPrice(s string) fixedpoint.Price {
	p, err := fixedpoint.ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}
