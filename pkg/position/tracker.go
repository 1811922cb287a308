// Package position maintains per-strategy and net-portfolio positions from
// a stream of fills, generalizing the teacher's AccountManager.UpdatePosition
// (pkg/app/core/account_manager.go) from a per-account VWAP position to a
// two-level view: one position per (strategy, instrument), aggregated into
// one net position per instrument.
package position

import (
	"sync"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

// StrategyPosition is one strategy's running position in one instrument.
type StrategyPosition struct {
	StrategyID  string
	Instrument  types.QualifiedSymbol
	Quantity    fixedpoint.Quantity // signed: positive long, negative short
	AvgPrice    fixedpoint.Price
	RealizedPnL fixedpoint.Value
}

// PortfolioPosition is the net position across every strategy trading an
// instrument.
type PortfolioPosition struct {
	Instrument  types.QualifiedSymbol
	Quantity    fixedpoint.Quantity
	AvgPrice    fixedpoint.Price
	RealizedPnL fixedpoint.Value
}

// Fill is the minimal information the tracker needs from an executed
// trade: which client order (and thus which strategy) it belongs to, the
// instrument, a signed quantity, and the execution price.
type Fill struct {
	ClientOrderID string
	Instrument    types.QualifiedSymbol
	SignedQty     fixedpoint.Quantity // positive = bought, negative = sold
	Price         fixedpoint.Price
}

type strategyKey struct {
	strategy   string
	instrument types.QualifiedSymbol
}

// Tracker resolves a fill's strategy via a client-order-id lookup, applies
// it to that strategy's position, and folds the same fill into the net
// portfolio position for the instrument.
type Tracker struct {
	mu         sync.RWMutex
	strategies map[strategyKey]*StrategyPosition
	portfolio  map[types.QualifiedSymbol]*PortfolioPosition
	clientToStrategy map[string]string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		strategies:       make(map[strategyKey]*StrategyPosition),
		portfolio:        make(map[types.QualifiedSymbol]*PortfolioPosition),
		clientToStrategy: make(map[string]string),
	}
}

// RegisterOrder records the (client_order_id -> strategy) mapping an order
// was submitted under, so a later fill referencing the same client order
// id can be attributed back to it.
func (t *Tracker) RegisterOrder(clientOrderID, strategyID string) {
	if clientOrderID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clientToStrategy[clientOrderID] = strategyID
}

// ApplyFill attributes f to its strategy via the client-order-id lookup,
// updates that StrategyPosition, and applies the same fill to the net
// PortfolioPosition for the instrument. Returns the updated strategy and
// portfolio positions.
func (t *Tracker) ApplyFill(f Fill) (StrategyPosition, PortfolioPosition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	strategyID := t.clientToStrategy[f.ClientOrderID]
	key := strategyKey{strategy: strategyID, instrument: f.Instrument}
	sp, ok := t.strategies[key]
	if !ok {
		sp = &StrategyPosition{StrategyID: strategyID, Instrument: f.Instrument}
		t.strategies[key] = sp
	}
	applyFillToQty(&sp.Quantity, &sp.AvgPrice, &sp.RealizedPnL, f.SignedQty, f.Price)

	pp, ok := t.portfolio[f.Instrument]
	if !ok {
		pp = &PortfolioPosition{Instrument: f.Instrument}
		t.portfolio[f.Instrument] = pp
	}
	applyFillToQty(&pp.Quantity, &pp.AvgPrice, &pp.RealizedPnL, f.SignedQty, f.Price)

	return *sp, *pp
}

// Portfolio returns the current net portfolio position for instrument, or
// its zero value if no fill has touched it yet.
func (t *Tracker) Portfolio(instrument types.QualifiedSymbol) PortfolioPosition {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if pp, ok := t.portfolio[instrument]; ok {
		return *pp
	}
	return PortfolioPosition{Instrument: instrument}
}

// applyFillToQty is the shared VWAP/realized-PnL update, following the
// teacher's AccountManager.UpdatePosition branching: same-direction fills
// extend the position at a weighted-average price; opposite-direction
// fills realize PnL on the closed portion and, on a flip, reset the entry
// price to the fill price for the new side's remainder.
func applyFillToQty(qty *fixedpoint.Quantity, avgPrice *fixedpoint.Price, realized *fixedpoint.Value, signedQty fixedpoint.Quantity, price fixedpoint.Price) {
	oldQty := *qty
	newQty := oldQty + signedQty

	switch {
	case oldQty == 0 || sameSign(oldQty, newQty) && sameSign(oldQty, signedQty):
		// Extending (or opening from flat): weighted-average entry price.
		if oldQty == 0 {
			*avgPrice = price
		} else {
			absOld := abs(oldQty)
			absDelta := abs(signedQty)
			absNew := abs(newQty)
			*avgPrice = fixedpoint.Price(fixedpoint.MulDivSum(int64(*avgPrice), int64(absOld), int64(price), int64(absDelta), int64(absNew)))
		}
		*qty = newQty
	case newQty == 0:
		// Fully closed: realize PnL on the whole old position.
		*realized += realizedPnL(*avgPrice, price, oldQty)
		*qty = 0
		*avgPrice = 0
	case sameSign(oldQty, newQty):
		// Reduced but not flipped: realize PnL on the closed portion.
		closed := abs(signedQty)
		*realized += realizedPnL(*avgPrice, price, signsOf(oldQty, closed))
		*qty = newQty
	default:
		// Flipped sign: realize PnL on the entire old position, then open
		// the remainder at the fill price.
		*realized += realizedPnL(*avgPrice, price, oldQty)
		*qty = newQty
		*avgPrice = price
	}
}

// realizedPnL returns (price-entry)*qty for a long-closing fill, and the
// mirror for short: callers pass qty already signed so this one formula
// covers both sides, matching the teacher's UpdatePosition comment.
func realizedPnL(entry, price fixedpoint.Price, signedQty fixedpoint.Quantity) fixedpoint.Value {
	return price.Sub(entry).Mul(signedQty)
}

func sameSign(a, b fixedpoint.Quantity) bool {
	return (a >= 0 && b >= 0) || (a <= 0 && b <= 0)
}

func abs(q fixedpoint.Quantity) fixedpoint.Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// signsOf returns magnitude with oldQty's sign, used to realize PnL on a
// partial close without flipping direction.
func signsOf(oldQty, magnitude fixedpoint.Quantity) fixedpoint.Quantity {
	if oldQty < 0 {
		return -magnitude
	}
	return magnitude
}
