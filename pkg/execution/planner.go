// Package execution turns a signal.Aggregator's PortfolioTarget into
// concrete child orders: urgency-based pricing, TIF mapping, and slicing,
// per spec §4.5. Grounded on the teacher's apply_signed_tx.go fill-to-order
// translation style (small pure functions, explicit side effects kept out
// of the pricing logic).
package execution

import (
	"fmt"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

// MarketSnapshot is the planner's view of current top-of-book and liquidity
// context for one instrument, independent of the TCA MarketState (which
// additionally carries volatility and a volume profile).
type MarketSnapshot struct {
	Instrument types.QualifiedSymbol
	BestBid    fixedpoint.Price
	BestAsk    fixedpoint.Price
	TickSize   fixedpoint.Price
	ADV        fixedpoint.Quantity // average daily volume
	SpreadBps  fixedpoint.Rate
}

// Config holds the planner's sizing and pricing parameters.
type Config struct {
	MinSize              fixedpoint.Quantity
	MaxOrderSize         fixedpoint.Quantity
	AggressiveCrossTicks int64
	PassiveOffsetTicks   int64
	ImpactCoeffBps       fixedpoint.Rate
	FeeBps               fixedpoint.Rate
}

// CostEstimate is the planner-local pre-trade cost model: spread + impact
// + fee, all in bps.
type CostEstimate struct {
	SpreadBps fixedpoint.Rate
	ImpactBps fixedpoint.Rate
	FeeBps    fixedpoint.Rate
	TotalBps  fixedpoint.Rate
}

// EstimateCost computes the planner-local cost model for an order of size
// qty against snapshot, per spec §4.5: spread cost is half the market
// spread; impact is impact_coeff * sqrt(q/adv); fee is a fixed bps add-on.
func EstimateCost(cfg Config, snapshot MarketSnapshot, qty fixedpoint.Quantity) CostEstimate {
	spread := fixedpoint.Rate(int64(snapshot.SpreadBps) / 2)

	var impact fixedpoint.Rate
	if snapshot.ADV > 0 && qty > 0 {
		participationRaw := int64(qty) * fixedpoint.RatioScale / int64(snapshot.ADV)
		sqrtParticipation := fixedpoint.IntSqrt(participationRaw * fixedpoint.Scale)
		impact = fixedpoint.Rate(int64(cfg.ImpactCoeffBps) * sqrtParticipation / fixedpoint.RatioScale)
	}

	total := spread + impact + cfg.FeeBps
	return CostEstimate{SpreadBps: spread, ImpactBps: impact, FeeBps: cfg.FeeBps, TotalBps: total}
}

// Planner turns PortfolioTargets into one or more child orders.
type Planner struct {
	cfg Config
}

// NewPlanner returns a planner using cfg for sizing and pricing.
func NewPlanner(cfg Config) *Planner {
	return &Planner{cfg: cfg}
}

// Plan computes delta = target - current and, if it clears the minimum
// size, returns the slice of child orders needed to work it. An empty
// slice with a nil error means the delta was too small to act on.
func (p *Planner) Plan(target types.PortfolioTarget, current fixedpoint.Quantity, urgency types.Urgency, snapshot MarketSnapshot) ([]*types.Order, error) {
	delta := target.TargetPosition - current
	absDelta := delta
	if absDelta < 0 {
		absDelta = -absDelta
	}
	if absDelta < p.cfg.MinSize {
		return nil, nil
	}

	side := types.Buy
	if delta < 0 {
		side = types.Sell
	}

	price, orderType, err := p.priceFor(urgency, side, snapshot)
	if err != nil {
		return nil, err
	}
	tif := types.GTC
	if urgency == types.Immediate {
		tif = types.IOC
	}

	return p.slice(target.Instrument, side, absDelta, price, orderType, tif), nil
}

// priceFor implements the urgency-based pricing ladder: Immediate places a
// market order, Aggressive crosses the opposite best by a configured
// number of ticks, Normal joins the same-side best, Passive sits behind it.
func (p *Planner) priceFor(urgency types.Urgency, side types.Side, snapshot MarketSnapshot) (fixedpoint.Price, types.OrderType, error) {
	if urgency == types.Immediate {
		return 0, types.Market, nil
	}
	if snapshot.BestBid <= 0 || snapshot.BestAsk <= 0 {
		return 0, types.Limit, fmt.Errorf("execution: no valid top-of-book for %s", snapshot.Instrument)
	}
	tick := int64(snapshot.TickSize)

	switch urgency {
	case types.Aggressive:
		if side == types.Buy {
			return fixedpoint.Price(int64(snapshot.BestAsk) + p.cfg.AggressiveCrossTicks*tick), types.Limit, nil
		}
		return fixedpoint.Price(int64(snapshot.BestBid) - p.cfg.AggressiveCrossTicks*tick), types.Limit, nil
	case types.Passive:
		if side == types.Buy {
			return fixedpoint.Price(int64(snapshot.BestBid) - p.cfg.PassiveOffsetTicks*tick), types.Limit, nil
		}
		return fixedpoint.Price(int64(snapshot.BestAsk) + p.cfg.PassiveOffsetTicks*tick), types.Limit, nil
	default: // Normal
		if side == types.Buy {
			return snapshot.BestBid, types.Limit, nil
		}
		return snapshot.BestAsk, types.Limit, nil
	}
}

// slice splits qty into children of at most MaxOrderSize, tagging every
// child with a shared parent id once more than one child is produced.
func (p *Planner) slice(instrument types.QualifiedSymbol, side types.Side, qty fixedpoint.Quantity, price fixedpoint.Price, orderType types.OrderType, tif types.TIF) []*types.Order {
	maxSize := p.cfg.MaxOrderSize
	if maxSize <= 0 || qty <= maxSize {
		return []*types.Order{newChild(instrument, side, qty, price, orderType, tif, "")}
	}

	parentID := types.NewOrderID()
	var children []*types.Order
	remaining := qty
	for remaining > 0 {
		size := maxSize
		if remaining < size {
			size = remaining
		}
		children = append(children, newChild(instrument, side, size, price, orderType, tif, parentID))
		remaining -= size
	}
	return children
}

func newChild(instrument types.QualifiedSymbol, side types.Side, qty fixedpoint.Quantity, price fixedpoint.Price, orderType types.OrderType, tif types.TIF, parentID types.OrderID) *types.Order {
	return &types.Order{
		ID:            types.NewOrderID(),
		Symbol:        instrument,
		Side:          side,
		Type:          orderType,
		Quantity:      qty,
		Price:         price,
		TIF:           tif,
		Status:        types.New,
		ParentOrderID: parentID,
	}
}
