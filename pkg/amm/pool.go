// Package amm implements the constant-product liquidity pool of spec
// §4.4: swap math, liquidity provisioning with the classic minimum-
// liquidity burn, and impermanent-loss accounting. Grounded on the
// teacher's pkg/app/core/market.go fixed-point style (integer math,
// explicit Validate(), basis-point fees) since the teacher itself never
// implements an AMM.
package amm

import (
	"errors"
	"fmt"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
)

var (
	ErrPoolEmpty             = errors.New("amm: pool has no reserves")
	ErrInsufficientLiquidity = errors.New("amm: swap amount too small to produce positive output")
	ErrSlippage              = errors.New("amm: output below the caller's minimum")
	ErrZeroDeposit           = errors.New("amm: deposit amounts must be positive")
)

// minimumLiquidity is burned permanently on the first deposit to keep the
// constant-product invariant away from a zero-supply division, per
// spec.md §4.4.
const minimumLiquidity = fixedpoint.Value(1000)

// LiquidityPool is a two-asset constant-product pool: reserveA * reserveB
// = k, modulo fees collected into the reserves on each swap.
type LiquidityPool struct {
	AssetA, AssetB     string
	ReserveA, ReserveB fixedpoint.Value
	FeeRate            fixedpoint.Rate // bps taken from amount_in on every swap
	TotalSupply        fixedpoint.Value
}

// NewPool returns an empty pool for the given asset pair.
func NewPool(assetA, assetB string, feeRate fixedpoint.Rate) *LiquidityPool {
	return &LiquidityPool{AssetA: assetA, AssetB: assetB, FeeRate: feeRate}
}

// Price returns reserveB/reserveA scaled like a fixedpoint.Price, 0 if the
// pool is empty.
func (p *LiquidityPool) Price() fixedpoint.Price {
	if p.ReserveA <= 0 {
		return 0
	}
	return fixedpoint.Price(fixedpoint.MulDiv(int64(p.ReserveB), fixedpoint.Scale, int64(p.ReserveA)))
}

// Swap executes amountIn of the input asset (A if aToB, else B) and
// returns the output amount plus the price impact in bps.
func (p *LiquidityPool) Swap(amountIn fixedpoint.Value, aToB bool) (amountOut fixedpoint.Value, priceImpactBps fixedpoint.Rate, err error) {
	if p.ReserveA <= 0 || p.ReserveB <= 0 {
		return 0, 0, ErrPoolEmpty
	}
	if amountIn <= 0 {
		return 0, 0, ErrZeroDeposit
	}
	priceBefore := p.Price()

	fee := amountIn.MulRate(p.FeeRate)
	amountInNet := amountIn - fee

	reserveIn, reserveOut := p.ReserveA, p.ReserveB
	if !aToB {
		reserveIn, reserveOut = p.ReserveB, p.ReserveA
	}
	amountOut = fixedpoint.Value(fixedpoint.MulDiv(int64(reserveOut), int64(amountInNet), int64(reserveIn)+int64(amountInNet)))
	if amountOut <= 0 {
		return 0, 0, ErrInsufficientLiquidity
	}

	if aToB {
		p.ReserveA += amountIn
		p.ReserveB -= amountOut
	} else {
		p.ReserveB += amountIn
		p.ReserveA -= amountOut
	}

	priceAfter := p.Price()
	priceImpactBps = impactBps(priceBefore, priceAfter)
	return amountOut, priceImpactBps, nil
}

func impactBps(before, after fixedpoint.Price) fixedpoint.Rate {
	if before == 0 {
		return 0
	}
	diff := int64(after) - int64(before)
	if diff < 0 {
		diff = -diff
	}
	return fixedpoint.Rate(diff * fixedpoint.BpsScale / int64(before))
}

// AddLiquidity deposits amountA/amountB and mints LP tokens: the first
// provider receives sqrt(a*b) minus the permanently burned minimum
// liquidity; subsequent providers receive the weaker of the two deposit
// ratios times the current supply, so a lopsided deposit never mints more
// than its worse-priced side justifies.
func (p *LiquidityPool) AddLiquidity(amountA, amountB fixedpoint.Value) (minted fixedpoint.Value, err error) {
	if amountA <= 0 || amountB <= 0 {
		return 0, ErrZeroDeposit
	}
	if p.TotalSupply == 0 {
		raw := fixedpoint.SqrtProduct(int64(amountA), int64(amountB))
		minted = fixedpoint.Value(raw) - minimumLiquidity
		if minted <= 0 {
			return 0, fmt.Errorf("%w: initial deposit too small to clear the minimum-liquidity burn", ErrInsufficientLiquidity)
		}
		p.TotalSupply = fixedpoint.Value(raw)
	} else {
		shareA := fixedpoint.MulDiv(int64(amountA), int64(p.TotalSupply), int64(p.ReserveA))
		shareB := fixedpoint.MulDiv(int64(amountB), int64(p.TotalSupply), int64(p.ReserveB))
		share := shareA
		if shareB < share {
			share = shareB
		}
		minted = fixedpoint.Value(share)
		if minted <= 0 {
			return 0, ErrInsufficientLiquidity
		}
		p.TotalSupply += minted
	}
	p.ReserveA += amountA
	p.ReserveB += amountB
	return minted, nil
}

// RemoveLiquidity burns lpTokens and returns each side's proportional
// share of the reserves, rejecting the withdrawal if either side comes in
// below the caller's slippage floor.
func (p *LiquidityPool) RemoveLiquidity(lpTokens, minA, minB fixedpoint.Value) (outA, outB fixedpoint.Value, err error) {
	if lpTokens <= 0 {
		return 0, 0, ErrZeroDeposit
	}
	if p.TotalSupply <= 0 {
		return 0, 0, ErrPoolEmpty
	}
	outA = fixedpoint.Value(fixedpoint.MulDiv(int64(p.ReserveA), int64(lpTokens), int64(p.TotalSupply)))
	outB = fixedpoint.Value(fixedpoint.MulDiv(int64(p.ReserveB), int64(lpTokens), int64(p.TotalSupply)))
	if outA < minA || outB < minB {
		return 0, 0, fmt.Errorf("%w: got (%s,%s), wanted at least (%s,%s)", ErrSlippage, outA, outB, minA, minB)
	}
	p.ReserveA -= outA
	p.ReserveB -= outB
	p.TotalSupply -= lpTokens
	return outA, outB, nil
}

// ImpermanentLoss returns the loss, in bps, of holding a position in this
// pool versus holding the two assets outright, given the price ratio
// r = currentPrice/initialPrice: IL = 2*sqrt(r)/(1+r) - 1.
func ImpermanentLoss(currentPrice, initialPrice fixedpoint.Price) fixedpoint.Rate {
	if initialPrice <= 0 {
		return 0
	}
	r := fixedpoint.Ratio(int64(currentPrice) * fixedpoint.RatioScale / int64(initialPrice))
	sqrtR := fixedpoint.IntSqrt(int64(r) * fixedpoint.Scale)
	numerator := 2 * sqrtR
	denominator := fixedpoint.RatioScale + int64(r)
	if denominator <= 0 {
		return 0
	}
	ratio := numerator*fixedpoint.RatioScale/denominator - fixedpoint.RatioScale
	return fixedpoint.Rate(ratio * fixedpoint.BpsScale / fixedpoint.RatioScale)
}
