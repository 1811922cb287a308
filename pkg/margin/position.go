package margin

import "github.com/axiomquant/tradecore/pkg/fixedpoint"

// PositionSide is the direction of an open position.
type PositionSide int8

const (
	Long PositionSide = iota
	Short
)

func (s PositionSide) String() string {
	if s == Long {
		return "long"
	}
	return "short"
}

// Position is a single-symbol leveraged position.
type Position struct {
	Symbol          string
	Side            PositionSide
	Quantity        fixedpoint.Quantity // always > 0; direction is in Side
	AverageEntry    fixedpoint.Price
	MarkPrice       fixedpoint.Price
	RealizedPnL     fixedpoint.Value
	MarginAllocated fixedpoint.Value
}

// Notional returns |quantity| * mark.
func (p *Position) Notional(mark fixedpoint.Price) fixedpoint.Value {
	return mark.Mul(p.Quantity)
}

// UnrealizedPnL is q*(mark-entry) for Long, q*(entry-mark) for Short.
func (p *Position) UnrealizedPnL(mark fixedpoint.Price) fixedpoint.Value {
	if p.Quantity == 0 {
		return 0
	}
	if p.Side == Long {
		return mark.Sub(p.AverageEntry).Mul(p.Quantity)
	}
	return p.AverageEntry.Sub(mark).Mul(p.Quantity)
}

// MarginRatio returns margin / (quantity * mark), 0 if there is no
// notional to divide by.
func (p *Position) MarginRatio(mark fixedpoint.Price) fixedpoint.Ratio {
	notional := p.Notional(mark)
	if notional == 0 {
		return 0
	}
	return fixedpoint.Ratio(fixedpoint.MulDiv(int64(p.MarginAllocated), fixedpoint.RatioScale, int64(notional)))
}

// LiquidationPrice implements spec §3's formula:
//
//	Long:  entry * (1 - margin_ratio + maintenance_rate)
//	Short: entry * (1 + margin_ratio - maintenance_rate)
func (p *Position) LiquidationPrice(mark fixedpoint.Price, maintenanceRate fixedpoint.Rate) fixedpoint.Price {
	marginRatio := p.MarginRatio(mark)
	maintRatio := fixedpoint.Ratio(fixedpoint.MulDiv(int64(maintenanceRate), fixedpoint.RatioScale, fixedpoint.BpsScale))
	if p.Side == Long {
		factor := fixedpoint.RatioScale - int64(marginRatio) + int64(maintRatio)
		return fixedpoint.Price(fixedpoint.MulDiv(int64(p.AverageEntry), factor, fixedpoint.RatioScale))
	}
	factor := fixedpoint.RatioScale + int64(marginRatio) - int64(maintRatio)
	return fixedpoint.Price(fixedpoint.MulDiv(int64(p.AverageEntry), factor, fixedpoint.RatioScale))
}

// IsLiquidatable reports whether mark has crossed the liquidation price:
// Long liquidates when mark <= liq_price, Short when mark >= liq_price.
func (p *Position) IsLiquidatable(mark fixedpoint.Price, maintenanceRate fixedpoint.Rate) bool {
	liq := p.LiquidationPrice(mark, maintenanceRate)
	if p.Side == Long {
		return mark <= liq
	}
	return mark >= liq
}

// ApplyOpen implements spec §4.2's position-open rule: closing up to the
// existing opposite quantity at the new price (realizing PnL), then
// opening a new opposite-side position with any remainder. signedDelta is
// positive for a buy fill, negative for a sell fill. Returns the realized
// PnL from any closed portion.
//
// If pos is nil a fresh position is created and returned.
func ApplyOpen(pos *Position, symbol string, signedDelta fixedpoint.Quantity, price fixedpoint.Price, marginDelta fixedpoint.Value) (*Position, fixedpoint.Value) {
	if pos == nil {
		pos = &Position{Symbol: symbol}
	}
	oldSigned := signedQuantity(pos)
	newSigned := oldSigned + signedDelta

	var realized fixedpoint.Value
	switch {
	case oldSigned == 0:
		// Opening fresh.
		pos.Side, pos.Quantity = sideOf(newSigned), absQty(newSigned)
		pos.AverageEntry = price
		pos.MarginAllocated += marginDelta
	case sameSign(oldSigned, newSigned):
		// Same direction: weighted-average entry price.
		pos.AverageEntry = weightedAverage(pos.AverageEntry, absQty(oldSigned), price, absQty(signedDelta), absQty(newSigned))
		pos.Side, pos.Quantity = sideOf(newSigned), absQty(newSigned)
		pos.MarginAllocated += marginDelta
	default:
		// Opposite direction: close up to min(|old|,|delta|), realize PnL,
		// then open any remainder at the fill price.
		closeQty := absQty(oldSigned)
		if absQty(signedDelta) < closeQty {
			closeQty = absQty(signedDelta)
		}
		if pos.Side == Long {
			realized = price.Sub(pos.AverageEntry).Mul(closeQty)
		} else {
			realized = pos.AverageEntry.Sub(price).Mul(closeQty)
		}
		pos.RealizedPnL += realized

		if newSigned == 0 {
			pos.Quantity = 0
			pos.AverageEntry = 0
			pos.MarginAllocated = 0
		} else if !sameSign(oldSigned, newSigned) {
			// Flipped: margin and entry reset to the remainder.
			pos.Side, pos.Quantity = sideOf(newSigned), absQty(newSigned)
			pos.AverageEntry = price
			pos.MarginAllocated = marginDelta
		} else {
			pos.Quantity = absQty(newSigned)
			pos.MarginAllocated += marginDelta
		}
	}
	return pos, realized
}

func signedQuantity(p *Position) fixedpoint.Quantity {
	if p == nil || p.Quantity == 0 {
		return 0
	}
	if p.Side == Long {
		return p.Quantity
	}
	return -p.Quantity
}

func sideOf(signed fixedpoint.Quantity) PositionSide {
	if signed >= 0 {
		return Long
	}
	return Short
}

func absQty(q fixedpoint.Quantity) fixedpoint.Quantity {
	if q < 0 {
		return -q
	}
	return q
}

func sameSign(a, b fixedpoint.Quantity) bool {
	return (a >= 0 && b >= 0) || (a <= 0 && b <= 0)
}

func weightedAverage(oldPrice fixedpoint.Price, oldQty fixedpoint.Quantity, newPrice fixedpoint.Price, addQty fixedpoint.Quantity, totalQty fixedpoint.Quantity) fixedpoint.Price {
	if totalQty == 0 {
		return 0
	}
	if oldQty == 0 {
		return newPrice
	}
	return fixedpoint.Price(fixedpoint.MulDivSum(int64(oldPrice), int64(oldQty), int64(newPrice), int64(addQty), int64(totalQty)))
}
