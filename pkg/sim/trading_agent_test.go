package sim

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/axiomquant/tradecore/pkg/execution"
	"github.com/axiomquant/tradecore/pkg/fabric"
	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/risk"
	"github.com/axiomquant/tradecore/pkg/types"
)

func testPlannerConfig() execution.Config {
	return execution.Config{
		MinSize:              fixedpoint.QuantityFromFloat64(0.001),
		MaxOrderSize:         fixedpoint.QuantityFromFloat64(10),
		AggressiveCrossTicks: 1,
		PassiveOffsetTicks:   1,
		ImpactCoeffBps:       fixedpoint.Rate(10),
		FeeBps:               fixedpoint.Rate(5),
	}
}

func testDepth() fabric.Depth {
	return fabric.Depth{
		Bids: []fabric.Level{{Price: fixedpoint.PriceFromFloat64(99.99), Qty: fixedpoint.QuantityFromFloat64(10)}},
		Asks: []fabric.Level{{Price: fixedpoint.PriceFromFloat64(100.01), Qty: fixedpoint.QuantityFromFloat64(10)}},
	}
}

func newTestAgent(t *testing.T, symbol types.QualifiedSymbol, owner types.AccountID) *TradingAgent {
	t.Helper()
	riskMgr := risk.NewManager(risk.Parameters{TradingEnabled: true, MaxCostAlphaRatio: fixedpoint.Ratio(fixedpoint.RatioScale * 2)},
		fixedpoint.Value(0), fixedpoint.Value(0), 0, 0, zap.NewNop())
	return NewTradingAgent("mean-reversion-test", symbol, owner, riskMgr, testPlannerConfig(),
		fixedpoint.PriceFromFloat64(0.01), fixedpoint.QuantityFromFloat64(1000), zap.NewNop())
}

// TestTradingAgentSubmitsOnSignificantDeviation exercises the full
// signal -> risk gate -> execution planner chain: a tick that warms up the
// running EMA produces no action, and a later tick whose mid sits well
// below that EMA should survive the risk gate and come out the other end
// as a concrete buy order.
func TestTradingAgentSubmitsOnSignificantDeviation(t *testing.T) {
	symbol := types.NewQualifiedSymbol("SIM", "BTC-USD")
	owner := common.HexToAddress("0xA1")
	agent := newTestAgent(t, symbol, owner)

	warm := agent.OnTick(MarketState{Symbol: symbol, Mid: fixedpoint.PriceFromFloat64(100), Depth: testDepth(), Tick: 0})
	if len(warm) != 0 {
		t.Fatalf("expected no action on the warm-up tick, got %d", len(warm))
	}

	actions := agent.OnTick(MarketState{Symbol: symbol, Mid: fixedpoint.PriceFromFloat64(98), Depth: testDepth(), Tick: 1})
	if len(actions) == 0 {
		t.Fatalf("expected at least one submit action on a significant downward deviation")
	}
	order := actions[0].Submit
	if order == nil {
		t.Fatalf("expected a non-nil order")
	}
	if order.Side != types.Buy {
		t.Fatalf("expected a buy-side order for an oversold deviation, got %s", order.Side)
	}
	if order.Symbol != symbol {
		t.Fatalf("expected the order to target the agent's instrument")
	}
	if order.Owner != owner {
		t.Fatalf("expected the order to be tagged with the agent's owner account")
	}
	if order.StrategyID != agent.ID() {
		t.Fatalf("expected the order to be tagged with the agent's strategy id")
	}
	if order.ClientOrderID == "" {
		t.Fatalf("expected a client order id so the tracker can attribute a later fill")
	}
}

// TestTradingAgentRespectsRiskGate confirms a target that the gate rejects
// (here: trading disabled) never reaches the planner.
func TestTradingAgentRespectsRiskGate(t *testing.T) {
	symbol := types.NewQualifiedSymbol("SIM", "BTC-USD")
	owner := common.HexToAddress("0xA3")
	riskMgr := risk.NewManager(risk.Parameters{TradingEnabled: false},
		fixedpoint.Value(0), fixedpoint.Value(0), 0, 0, zap.NewNop())
	agent := NewTradingAgent("mean-reversion-test", symbol, owner, riskMgr, testPlannerConfig(),
		fixedpoint.PriceFromFloat64(0.01), fixedpoint.QuantityFromFloat64(1000), zap.NewNop())

	agent.OnTick(MarketState{Symbol: symbol, Mid: fixedpoint.PriceFromFloat64(100), Depth: testDepth(), Tick: 0})
	actions := agent.OnTick(MarketState{Symbol: symbol, Mid: fixedpoint.PriceFromFloat64(98), Depth: testDepth(), Tick: 1})
	if len(actions) != 0 {
		t.Fatalf("expected the halted risk gate to suppress every action, got %d", len(actions))
	}
}

// TestTradingAgentOnFillUpdatesPositionTracker confirms a trade reported
// back against the agent's own submitted order flows into its position
// tracker with the correct sign.
func TestTradingAgentOnFillUpdatesPositionTracker(t *testing.T) {
	symbol := types.NewQualifiedSymbol("SIM", "BTC-USD")
	owner := common.HexToAddress("0xA2")
	agent := newTestAgent(t, symbol, owner)

	agent.OnTick(MarketState{Symbol: symbol, Mid: fixedpoint.PriceFromFloat64(100), Depth: testDepth(), Tick: 0})
	actions := agent.OnTick(MarketState{Symbol: symbol, Mid: fixedpoint.PriceFromFloat64(98), Depth: testDepth(), Tick: 1})
	if len(actions) == 0 {
		t.Fatalf("expected a submitted order to attribute a fill to")
	}
	order := actions[0].Submit

	trade := types.Trade{
		ID:             types.NewTradeID(),
		Symbol:         symbol,
		Price:          order.Price,
		Quantity:       order.Quantity,
		AggressorSide:  order.Side,
		AggressorOrder: order.ID,
		Timestamp:      fixedpoint.TimestampNs(1),
	}
	agent.OnFill([]types.Trade{trade})

	pp := agent.Tracker().Portfolio(symbol)
	if pp.Quantity != order.Quantity {
		t.Fatalf("expected the tracker to record the full buy quantity, got %s want %s", pp.Quantity, order.Quantity)
	}

	// The pending order is consumed on first use; a repeated report of the
	// same trade should not double-count the fill.
	agent.OnFill([]types.Trade{trade})
	pp2 := agent.Tracker().Portfolio(symbol)
	if pp2.Quantity != pp.Quantity {
		t.Fatalf("expected a stale trade report to be a no-op, got %s then %s", pp.Quantity, pp2.Quantity)
	}
}
