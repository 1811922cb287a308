package types

import "github.com/axiomquant/tradecore/pkg/fixedpoint"

// Trade is a single match between a resting (maker) order and an
// aggressing (taker) order.
type Trade struct {
	ID            TradeID
	Symbol        QualifiedSymbol
	Price         fixedpoint.Price
	Quantity      fixedpoint.Quantity
	AggressorSide Side
	RestingOrder  OrderID
	AggressorOrder OrderID
	MakerAccount  AccountID
	TakerAccount  AccountID
	Timestamp     fixedpoint.TimestampNs
	MakerFee      fixedpoint.Value
	TakerFee      fixedpoint.Value
}

// Notional returns price*quantity for this trade.
func (t Trade) Notional() fixedpoint.Value {
	return t.Price.Mul(t.Quantity)
}
