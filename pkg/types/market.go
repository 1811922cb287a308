package types

import "github.com/axiomquant/tradecore/pkg/fixedpoint"

// MarketType distinguishes the three instrument kinds of the configuration
// schema.
type MarketType int8

const (
	Spot MarketType = iota
	PerpetualFutures
	Option
)

func (t MarketType) String() string {
	switch t {
	case Spot:
		return "SPOT"
	case PerpetualFutures:
		return "PERPETUAL_FUTURES"
	case Option:
		return "OPTION"
	default:
		return "unknown"
	}
}

// Market carries the admission-control and fee metadata an incoming order
// is validated and priced against: tick/lot granularity, base maker/taker
// rates, and (for perpetuals) funding parameters.
type Market struct {
	Symbol   QualifiedSymbol
	Type     MarketType
	TickSize fixedpoint.Price
	LotSize  fixedpoint.Quantity
	MinQty   fixedpoint.Quantity
	MaxQty   fixedpoint.Quantity

	BaseMakerFeeRate fixedpoint.Rate
	BaseTakerFeeRate fixedpoint.Rate

	FundingIntervalMs  int64
	MaxFundingRateBps  fixedpoint.BasisPoints
}

// ValidTick reports whether p is an integer multiple of the market's tick
// size.
func (m Market) ValidTick(p fixedpoint.Price) bool {
	if m.TickSize <= 0 {
		return true
	}
	return int64(p)%int64(m.TickSize) == 0
}

// ValidLot reports whether q is an integer multiple of the market's lot
// size and within [MinQty, MaxQty] (when those bounds are set).
func (m Market) ValidLot(q fixedpoint.Quantity) bool {
	if m.LotSize > 0 && int64(q)%int64(m.LotSize) != 0 {
		return false
	}
	if m.MinQty > 0 && q < m.MinQty {
		return false
	}
	if m.MaxQty > 0 && q > m.MaxQty {
		return false
	}
	return true
}
