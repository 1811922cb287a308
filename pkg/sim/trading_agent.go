package sim

import (
	"sync"

	"go.uber.org/zap"

	"github.com/axiomquant/tradecore/pkg/execution"
	"github.com/axiomquant/tradecore/pkg/fabric"
	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/position"
	"github.com/axiomquant/tradecore/pkg/risk"
	"github.com/axiomquant/tradecore/pkg/signal"
	"github.com/axiomquant/tradecore/pkg/types"
)

// pendingOrder remembers the side and client id of one of this agent's own
// resting/aggressor orders, so a later trade can be attributed back to a
// signed fill quantity.
type pendingOrder struct {
	clientOrderID string
	side          types.Side
}

// TradingAgent is the concrete sim.Agent that drives the platform's live
// pipeline end to end, per spec §3's data flow: it derives a signal from
// the tick's reference price, feeds it through a signal.Aggregator to
// produce a PortfolioTarget, validates the target through a risk.Gate
// against the shared risk.Manager's published parameters, plans the
// surviving target into child orders via an execution.Planner, and folds
// the resulting fills back into a position.Tracker. Grounded on the
// teacher's TxGenerator (decide-then-submit, one agent per strategy).
type TradingAgent struct {
	id         string
	instrument types.QualifiedSymbol
	owner      types.AccountID
	tickSize   fixedpoint.Price
	adv        fixedpoint.Quantity

	agg     *signal.Aggregator
	gate    risk.Gate
	riskMgr *risk.Manager
	planner *execution.Planner
	tracker *position.Tracker
	cfg     execution.Config

	mu     sync.Mutex
	emaMid fixedpoint.Price
	hasEMA bool
	orders map[types.OrderID]pendingOrder

	log *zap.Logger
}

// NewTradingAgent wires a mean-reversion strategy's full signal -> risk ->
// execution -> position pipeline for a single instrument. tickSize and adv
// seed the planner's market snapshot until the book fabric reports real
// depth.
func NewTradingAgent(id string, instrument types.QualifiedSymbol, owner types.AccountID, riskMgr *risk.Manager, plannerCfg execution.Config, tickSize fixedpoint.Price, adv fixedpoint.Quantity, log *zap.Logger) *TradingAgent {
	return &TradingAgent{
		id:         id,
		instrument: instrument,
		owner:      owner,
		tickSize:   tickSize,
		adv:        adv,
		agg:        signal.NewAggregator(types.AlphaWeighted, log),
		riskMgr:    riskMgr,
		planner:    execution.NewPlanner(plannerCfg),
		tracker:    position.NewTracker(),
		cfg:        plannerCfg,
		orders:     make(map[types.OrderID]pendingOrder),
		log:        log.With(zap.String("component", "trading_agent"), zap.String("agent", id)),
	}
}

func (a *TradingAgent) ID() string { return a.id }

// emaLookback sets the running average's smoothing: each tick moves it
// 1/emaLookback of the way toward the latest mid (a half-life of about 14
// ticks).
const emaLookback = 20

// reversionThresholdBps is the minimum deviation from the EMA that produces
// a directional signal; smaller moves are treated as noise.
const reversionThresholdBps = 5

// saturationBps is the deviation at which signal strength/confidence reach
// their maximum.
const saturationBps = 200

// Tracker exposes the agent's position tracker, e.g. for PnL reporting from
// the owning process.
func (a *TradingAgent) Tracker() *position.Tracker { return a.tracker }

// OnTick derives a mean-reversion signal from the tick's mid versus a
// running EMA, submits it to the aggregator, validates the resulting
// target through the risk gate, and plans child orders for whatever
// survives.
func (a *TradingAgent) OnTick(state MarketState) []Action {
	if state.Symbol != a.instrument {
		return nil
	}

	ema := a.updateEMA(state.Mid)
	now := fixedpoint.TimestampMs(state.Tick)
	a.agg.Submit(a.deriveSignal(state, ema, now))

	var actions []Action
	for _, target := range a.agg.ComputeTargets(now) {
		if target.Instrument != a.instrument {
			continue
		}
		actions = append(actions, a.planTarget(target, state)...)
	}
	return actions
}

// updateEMA folds mid into the running exponential average and returns the
// updated value.
func (a *TradingAgent) updateEMA(mid fixedpoint.Price) fixedpoint.Price {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.hasEMA {
		a.emaMid = mid
		a.hasEMA = true
	} else {
		delta := int64(mid) - int64(a.emaMid)
		a.emaMid += fixedpoint.Price(delta / emaLookback)
	}
	return a.emaMid
}

// deriveSignal expresses a mean-reversion view: mid trading below its EMA
// is oversold (buy), above is overbought (sell), scaled in strength by how
// far the deviation sits between the noise threshold and saturation.
func (a *TradingAgent) deriveSignal(state MarketState, ema fixedpoint.Price, now fixedpoint.TimestampMs) types.Signal {
	if ema == 0 {
		ema = state.Mid
	}
	var deviationBps int64
	if ema != 0 {
		deviationBps = int64(state.Mid-ema) * fixedpoint.BpsScale / int64(ema)
	}

	direction := types.Flat
	switch {
	case deviationBps <= -reversionThresholdBps:
		direction = types.DirectionBuy
	case deviationBps >= reversionThresholdBps:
		direction = types.DirectionSell
	}

	abs := deviationBps
	if abs < 0 {
		abs = -abs
	}
	strength := abs * fixedpoint.RatioScale / saturationBps
	if strength > fixedpoint.RatioScale {
		strength = fixedpoint.RatioScale
	}

	return types.Signal{
		StrategyID:     a.id,
		StrategyType:   "mean_reversion",
		Instrument:     a.instrument,
		Direction:      direction,
		Strength:       fixedpoint.Strength(strength),
		Confidence:     fixedpoint.Confidence(strength),
		Urgency:        types.Normal,
		ReferencePrice: state.Mid,
		HasAlpha:       true,
		Alpha:          fixedpoint.Ratio(strength),
		Timestamp:      now,
	}
}

// planTarget runs target through the risk gate and, if it survives, plans
// it into child orders, registering each with the position tracker so a
// later fill can be attributed back to this strategy.
func (a *TradingAgent) planTarget(target types.PortfolioTarget, state MarketState) []Action {
	current := a.tracker.Portfolio(a.instrument).Quantity
	snapshot := a.bookSnapshot(state.Depth)

	cost := execution.EstimateCost(a.cfg, snapshot, target.TargetPosition-current)
	params := a.riskMgr.Snapshot()
	result := a.gate.Validate(target, params, state.Mid, cost.TotalBps)
	if result.Decision == risk.Rejected {
		a.log.Debug("target rejected", zap.String("instrument", a.instrument.String()), zap.String("reason", result.Reason))
		return nil
	}

	orders, err := a.planner.Plan(result.Target, current, result.Target.MaxUrgency, snapshot)
	if err != nil {
		a.log.Debug("planning failed", zap.Error(err))
		return nil
	}

	actions := make([]Action, 0, len(orders))
	a.mu.Lock()
	for _, order := range orders {
		order.Owner = a.owner
		order.StrategyID = a.id
		order.ClientOrderID = string(order.ID)
		a.tracker.RegisterOrder(order.ClientOrderID, a.id)
		a.orders[order.ID] = pendingOrder{clientOrderID: order.ClientOrderID, side: order.Side}
		actions = append(actions, Action{Submit: order})
	}
	a.mu.Unlock()
	return actions
}

// bookSnapshot translates the fabric's top-of-book into the planner's
// market view, falling back to the agent's seeded tick size and ADV.
func (a *TradingAgent) bookSnapshot(depth fabric.Depth) execution.MarketSnapshot {
	snap := execution.MarketSnapshot{Instrument: a.instrument, TickSize: a.tickSize, ADV: a.adv}
	if len(depth.Bids) > 0 {
		snap.BestBid = depth.Bids[0].Price
	}
	if len(depth.Asks) > 0 {
		snap.BestAsk = depth.Asks[0].Price
	}
	if snap.BestBid > 0 && snap.BestAsk > 0 {
		mid := (int64(snap.BestBid) + int64(snap.BestAsk)) / 2
		if mid > 0 {
			snap.SpreadBps = fixedpoint.Rate((int64(snap.BestAsk) - int64(snap.BestBid)) * fixedpoint.BpsScale / mid)
		}
	}
	return snap
}

// OnFill attributes every trade resulting from this tick's submissions back
// to its originating order (aggressor or resting side) and folds it into
// the position tracker.
func (a *TradingAgent) OnFill(trades []types.Trade) {
	for _, tr := range trades {
		po, ok := a.takePending(tr.AggressorOrder)
		if !ok {
			po, ok = a.takePending(tr.RestingOrder)
		}
		if !ok {
			continue
		}
		signedQty := tr.Quantity
		if po.side == types.Sell {
			signedQty = -signedQty
		}
		sp, pp := a.tracker.ApplyFill(position.Fill{
			ClientOrderID: po.clientOrderID,
			Instrument:    tr.Symbol,
			SignedQty:     signedQty,
			Price:         tr.Price,
		})
		a.log.Debug("fill applied",
			zap.String("strategy", sp.StrategyID),
			zap.String("strategy_qty", sp.Quantity.String()),
			zap.String("net_qty", pp.Quantity.String()))
	}
}

func (a *TradingAgent) takePending(id types.OrderID) (pendingOrder, bool) {
	if id == "" {
		return pendingOrder{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	po, ok := a.orders[id]
	if ok {
		delete(a.orders, id)
	}
	return po, ok
}
