package matching

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/margin"
	"github.com/axiomquant/tradecore/pkg/types"
)

// Engine owns one symbol's book and drives the full order lifecycle of
// spec §4.1: admission control, fund locking, level-by-level matching,
// fee and position settlement, and TIF/PostOnly disposition of any
// remainder. Grounded on the validate/lock/match/settle flow of the
// teacher's pkg/app/core/orderbook.go and account_manager.go, generalized
// from a single implicit USDC balance to the multi-asset margin.Manager.
type Engine struct {
	book    *Book
	market  types.Market
	margin  *margin.Manager
	matcher Matcher
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewEngine wires a book, the shared margin manager, a matcher variant,
// and a per-symbol admission rate limiter into one engine.
func NewEngine(market types.Market, mgr *margin.Manager, matcher Matcher, limiter *rate.Limiter, log *zap.Logger) *Engine {
	return &Engine{
		book:    NewBook(market.Symbol),
		market:  market,
		margin:  mgr,
		matcher: matcher,
		limiter: limiter,
		log:     log.With(zap.String("component", "matching"), zap.String("symbol", market.Symbol.String())),
	}
}

// Book exposes the underlying book for depth queries.
func (e *Engine) Book() *Book { return e.book }

func (e *Engine) validateOrder(order *types.Order) error {
	if order.Symbol != e.market.Symbol {
		return fmt.Errorf("%w: %s", ErrUnknownInstrument, order.Symbol)
	}
	if order.Type.HasPrice() && order.Price <= 0 {
		return fmt.Errorf("%w: order %s", ErrMissingPrice, order.ID)
	}
	if order.Type.HasPrice() && !e.market.ValidTick(order.Price) {
		return fmt.Errorf("%w: price %s, tick %s", ErrTickViolation, order.Price, e.market.TickSize)
	}
	if !e.market.ValidLot(order.Remaining()) {
		return fmt.Errorf("%w: quantity %s", ErrLotViolation, order.Remaining())
	}
	return order.Validate()
}

func (e *Engine) marketable(order *types.Order, levelPrice fixedpoint.Price) bool {
	if order.Type == types.Market {
		return true
	}
	if order.Side == types.Buy {
		return order.Price >= levelPrice
	}
	return order.Price <= levelPrice
}

func (e *Engine) peekOpposite(side types.Side) (fixedpoint.Price, bool) {
	if side == types.Buy {
		return e.book.BestAsk()
	}
	return e.book.BestBid()
}

// priceEstimate returns the price used to size the admission-control fund
// lock: the order's own limit price, or for Market orders the best
// opposite touch (falling back to the last trade price).
func (e *Engine) priceEstimate(order *types.Order) (fixedpoint.Price, error) {
	if order.Type.HasPrice() {
		return order.Price, nil
	}
	if p, ok := e.peekOpposite(order.Side); ok {
		return p, nil
	}
	if last := e.book.LastTradePrice(); last > 0 {
		return last, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrMarketUntradeable, e.market.Symbol)
}

// admitOrder reserves the funds an order needs to rest or match: quote for
// a Buy (q * price_est), base for a Sell unless the account already
// carries an outstanding loan of the base asset, in which case the short
// sale is backed by that loan instead of a fresh lock.
func (e *Engine) admitOrder(order *types.Order, priceEst fixedpoint.Price) (asset string, locked fixedpoint.Value, err error) {
	base, quote := e.market.Symbol.BaseQuote()
	if order.Side == types.Buy {
		amount := priceEst.Mul(order.Remaining())
		if amount == 0 {
			return quote, 0, nil
		}
		return quote, amount, e.margin.Lock(order.Owner, quote, amount)
	}

	acc := e.margin.Get(order.Owner)
	if acc == nil {
		return "", 0, fmt.Errorf("%w: %s", margin.ErrAccountNotFound, order.Owner)
	}
	needed := fixedpoint.Value(order.Remaining())
	if bal, ok := acc.Balances[base]; ok && bal.Available >= needed {
		return base, needed, e.margin.Lock(order.Owner, base, needed)
	}
	if _, hasLoan := acc.Loans[base]; hasLoan {
		return base, 0, nil
	}
	return "", 0, fmt.Errorf("%w: no %s balance or loan to cover a short sale", margin.ErrInsufficientBalance, base)
}

// marketableQuantity sums the resting quantity the order could currently
// trade against, used to pre-check Fill-Or-Kill admissibility before any
// funds are locked.
func (e *Engine) marketableQuantity(order *types.Order) fixedpoint.Quantity {
	var levels []PriceLevel
	if order.Side == types.Buy {
		levels = e.book.AskDepth()
	} else {
		levels = e.book.BidDepth()
	}
	var total fixedpoint.Quantity
	for _, lvl := range levels {
		if !e.marketable(order, lvl.Price) {
			break
		}
		total += lvl.Qty
	}
	return total
}

// Submit runs the full spec §4.1 algorithm for a single incoming order and
// returns the trades it generated.
func (e *Engine) Submit(order *types.Order, now fixedpoint.TimestampNs) ([]types.Trade, error) {
	if e.limiter != nil && !e.limiter.Allow() {
		order.Status = types.Rejected
		return nil, ErrRateLimited
	}
	if err := e.validateOrder(order); err != nil {
		order.Status = types.Rejected
		return nil, err
	}
	if order.TIF == types.FOK && e.marketableQuantity(order) < order.Remaining() {
		order.Status = types.Rejected
		return nil, ErrInsufficientLiquidity
	}

	priceEst, err := e.priceEstimate(order)
	if err != nil {
		order.Status = types.Rejected
		return nil, err
	}
	asset, locked, err := e.admitOrder(order, priceEst)
	if err != nil {
		order.Status = types.Rejected
		return nil, err
	}

	order.CreatedAt = now
	order.UpdatedAt = now

	if order.Type == types.PostOnly {
		if peek, ok := e.peekOpposite(order.Side); ok && e.marketable(order, peek) {
			if locked > 0 {
				_ = e.margin.Unlock(order.Owner, asset, locked)
			}
			order.Status = types.Rejected
			return nil, ErrWouldCross
		}
	}

	var trades []types.Trade
	startRemaining := order.Remaining()
	leftover := e.book.CrossLevels(order.Side, startRemaining, now, e.matcher,
		func(levelPrice fixedpoint.Price) bool { return e.marketable(order, levelPrice) },
		func(levelPrice fixedpoint.Price, fills []LevelFill) {
			for _, f := range fills {
				trade, settleErr := e.settle(order, f.Maker, levelPrice, f.Qty, now)
				if settleErr != nil {
					e.log.Error("settlement failed after match", zap.Error(settleErr), zap.String("maker", string(f.Maker.ID)))
					continue
				}
				trades = append(trades, trade)
			}
		},
	)

	filled := startRemaining - leftover
	if filled > 0 {
		order.ApplyFill(filled, now)
	}

	if order.Remaining() > 0 {
		switch {
		case order.TIF.RequiresImmediateExecution():
			order.Status = types.Cancelled
		default:
			e.book.Rest(order)
		}
	}
	return trades, nil
}

// settle books one maker/taker fill: unlocks the admission reservation for
// the filled slice, applies trading fees, and then either transfers base
// and quote between the two accounts (spot markets) or opens/closes each
// side's position via the margin manager (all other markets).
func (e *Engine) settle(taker *types.Order, maker *types.Order, price fixedpoint.Price, qty fixedpoint.Quantity, now fixedpoint.TimestampNs) (types.Trade, error) {
	base, quote := e.market.Symbol.BaseQuote()
	notional := price.Mul(qty)

	takerAcc := e.margin.Get(taker.Owner)
	makerAcc := e.margin.Get(maker.Owner)
	if takerAcc == nil || makerAcc == nil {
		return types.Trade{}, fmt.Errorf("%w: taker or maker account missing", margin.ErrAccountNotFound)
	}

	// Release the admission-control reservation for this slice. Buy orders
	// reserved quote at the order's own limit/estimate price; Sell orders
	// reserved the base quantity directly (or nothing, if loan-backed).
	if taker.Side == types.Buy {
		if amt := taker.Price; amt > 0 {
			_ = e.margin.Unlock(taker.Owner, quote, amt.Mul(qty))
		} else if est, err := e.priceEstimate(taker); err == nil {
			_ = e.margin.Unlock(taker.Owner, quote, est.Mul(qty))
		}
	} else {
		_ = e.margin.Unlock(taker.Owner, base, fixedpoint.Value(qty))
	}
	if maker.Side == types.Buy {
		_ = e.margin.Unlock(maker.Owner, quote, maker.Price.Mul(qty))
	} else {
		_ = e.margin.Unlock(maker.Owner, base, fixedpoint.Value(qty))
	}

	if e.market.Type == types.Spot {
		// Spot trades are real asset transfers, not leveraged positions:
		// the buyer pays quote notional and receives base; the seller
		// does the reverse.
		buyer, seller := taker, maker
		if taker.Side != types.Buy {
			buyer, seller = maker, taker
		}
		if err := e.margin.Withdraw(buyer.Owner, quote, notional); err != nil {
			return types.Trade{}, fmt.Errorf("buyer notional debit: %w", err)
		}
		if err := e.margin.Deposit(buyer.Owner, base, fixedpoint.Value(qty)); err != nil {
			return types.Trade{}, fmt.Errorf("buyer base credit: %w", err)
		}
		if err := e.margin.Withdraw(seller.Owner, base, fixedpoint.Value(qty)); err != nil {
			return types.Trade{}, fmt.Errorf("seller base debit: %w", err)
		}
		if err := e.margin.Deposit(seller.Owner, quote, notional); err != nil {
			return types.Trade{}, fmt.Errorf("seller notional credit: %w", err)
		}
	} else {
		takerSigned := qty
		makerSigned := -qty
		if taker.Side != types.Buy {
			takerSigned, makerSigned = -qty, qty
		}

		takerMargin := notional.MulRate(takerAcc.InitialMarginRate)
		makerMargin := notional.MulRate(makerAcc.InitialMarginRate)

		symbol := e.market.Symbol.Symbol
		takerRealized, err := e.margin.OpenPosition(taker.Owner, symbol, takerSigned, price, takerMargin)
		if err != nil {
			return types.Trade{}, fmt.Errorf("taker position update: %w", err)
		}
		makerRealized, err := e.margin.OpenPosition(maker.Owner, symbol, makerSigned, price, makerMargin)
		if err != nil {
			return types.Trade{}, fmt.Errorf("maker position update: %w", err)
		}
		e.settleRealizedPnL(taker.Owner, quote, takerRealized)
		e.settleRealizedPnL(maker.Owner, quote, makerRealized)
	}

	takerFee := notional.MulRate(takerAcc.Fees.EffectiveTakerRate(e.market.BaseTakerFeeRate))
	makerFee := notional.MulRate(makerAcc.Fees.EffectiveMakerRate(e.market.BaseMakerFeeRate))
	e.settleFee(taker.Owner, quote, takerFee)
	e.settleFee(maker.Owner, quote, makerFee)

	return types.Trade{
		ID:             types.NewTradeID(),
		Symbol:         e.market.Symbol,
		Price:          price,
		Quantity:       qty,
		AggressorSide:  taker.Side,
		RestingOrder:   maker.ID,
		AggressorOrder: taker.ID,
		MakerAccount:   maker.Owner,
		TakerAccount:   taker.Owner,
		Timestamp:      now,
		MakerFee:       makerFee,
		TakerFee:       takerFee,
	}, nil
}

func (e *Engine) settleRealizedPnL(owner types.AccountID, quote string, realized fixedpoint.Value) {
	switch {
	case realized > 0:
		_ = e.margin.Deposit(owner, quote, realized)
	case realized < 0:
		_ = e.margin.Withdraw(owner, quote, -realized)
	}
}

func (e *Engine) settleFee(owner types.AccountID, quote string, fee fixedpoint.Value) {
	switch {
	case fee > 0:
		_ = e.margin.Withdraw(owner, quote, fee)
	case fee < 0:
		_ = e.margin.Deposit(owner, quote, -fee)
	}
}

// Cancel removes a resting order and releases its remaining fund
// reservation.
func (e *Engine) Cancel(id types.OrderID) (*types.Order, error) {
	o, ok := e.book.Cancel(id)
	if !ok {
		return nil, fmt.Errorf("matching: order %s is not resting", id)
	}
	base, quote := e.market.Symbol.BaseQuote()
	if o.Side == types.Buy {
		if amount := o.Price.Mul(o.Remaining()); amount > 0 {
			_ = e.margin.Unlock(o.Owner, quote, amount)
		}
	} else if amount := fixedpoint.Value(o.Remaining()); amount > 0 {
		_ = e.margin.Unlock(o.Owner, base, amount)
	}
	o.Status = types.Cancelled
	return o, nil
}
