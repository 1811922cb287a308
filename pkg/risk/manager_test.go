package risk

import (
	"testing"

	"go.uber.org/zap"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
)

func TestManagerHaltsOnMaxDailyLoss(t *testing.T) {
	m := NewManager(Parameters{}, fixedpoint.Value(10000*fixedpoint.Scale), fixedpoint.Value(500*fixedpoint.Scale), 0, 0, zap.NewNop())
	m.UpdateEquity(fixedpoint.Value(9000 * fixedpoint.Scale)) // -1000 loss > 500 cap
	snap := m.Snapshot()
	if !snap.DrawdownHalted {
		t.Fatalf("expected halt on daily loss breach")
	}
	if snap.SizeMult != 0 {
		t.Fatalf("expected size mult 0 on halt, got %v", snap.SizeMult)
	}
}

func TestManagerWarningZoneShrinksSize(t *testing.T) {
	m := NewManager(Parameters{}, fixedpoint.Value(10000*fixedpoint.Scale), 0,
		fixedpoint.Ratio(fixedpoint.RatioScale/5), fixedpoint.Ratio(fixedpoint.RatioScale/10), zap.NewNop()) // hard 20%, warn 10%
	// Drawdown of 15%: between warning (10%) and hard (20%).
	m.UpdateEquity(fixedpoint.Value(8500 * fixedpoint.Scale))
	snap := m.Snapshot()
	if snap.DrawdownHalted {
		t.Fatalf("did not expect a hard halt at 15%% drawdown")
	}
	if snap.SizeMult <= 0 || snap.SizeMult >= fixedpoint.Ratio(fixedpoint.RatioScale) {
		t.Fatalf("expected a partial size multiplier in the warning zone, got %v", snap.SizeMult)
	}
}

func TestManagerHaltsOnMaxDrawdown(t *testing.T) {
	m := NewManager(Parameters{}, fixedpoint.Value(10000*fixedpoint.Scale), 0,
		fixedpoint.Ratio(fixedpoint.RatioScale/5), 0, zap.NewNop()) // hard 20%
	m.UpdateEquity(fixedpoint.Value(7000 * fixedpoint.Scale)) // 30% drawdown
	snap := m.Snapshot()
	if !snap.DrawdownHalted {
		t.Fatalf("expected halt at 30%% drawdown with a 20%% cap")
	}
}

func TestManagerRecoversAfterDrawdownClears(t *testing.T) {
	m := NewManager(Parameters{}, fixedpoint.Value(10000*fixedpoint.Scale), fixedpoint.Value(500*fixedpoint.Scale), 0, 0, zap.NewNop())
	m.UpdateEquity(fixedpoint.Value(9000 * fixedpoint.Scale))
	if !m.Snapshot().DrawdownHalted {
		t.Fatalf("expected initial halt")
	}
	m.ResetDay()
	m.UpdateEquity(fixedpoint.Value(9100 * fixedpoint.Scale))
	snap := m.Snapshot()
	if snap.DrawdownHalted {
		t.Fatalf("expected halt cleared after day reset and smaller loss, got %+v", snap)
	}
	if snap.SizeMult != fixedpoint.Ratio(fixedpoint.RatioScale) {
		t.Fatalf("expected full size mult after recovery, got %v", snap.SizeMult)
	}
}

func TestSurveilDetectsAbnormalSpreadAndLiquidityDrain(t *testing.T) {
	m := NewManager(Parameters{}, fixedpoint.Value(1000*fixedpoint.Scale), 0, 0, 0, zap.NewNop())
	inst := testInstrument()

	for i := 0; i < 10; i++ {
		anomalies := m.Surveil(inst, fixedpoint.Rate(10), mustQty("100"))
		if len(anomalies) != 0 {
			t.Fatalf("did not expect anomalies while building baseline, got %v", anomalies)
		}
	}

	anomalies := m.Surveil(inst, fixedpoint.Rate(100), mustQty("10")) // 10x spread, 1/10 size
	if len(anomalies) != 2 {
		t.Fatalf("expected both abnormal spread and liquidity drain, got %v", anomalies)
	}
}
