// Package risk implements the spec §4.6 risk-validation pipeline: a
// stateless Gate.Validate pure function plus an active Manager that tracks
// drawdown and publishes the Parameters snapshot the gate reads.
// Grounded on 0xtitan6-polymarket-mm's internal/risk/manager.go (rolling
// anchor / kill-switch / cooldown pattern, RWMutex-guarded published
// state), split here into the stateless-gate-plus-active-publisher shape
// the spec calls for.
package risk

import (
	"fmt"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

// Decision is the outcome of one Gate.Validate call.
type Decision int8

const (
	Accepted Decision = iota
	Adjusted
	Warning
	Rejected
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Adjusted:
		return "adjusted"
	case Warning:
		return "warning"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Parameters is the published risk-parameter snapshot the gate validates
// against. Version increments on every Manager publish so callers can
// detect a stale read.
type Parameters struct {
	Version          uint64
	TradingEnabled   bool
	HaltReason       string
	TradeableMarkets map[types.QualifiedSymbol]bool // empty map means every market is tradeable
	DrawdownHalted   bool

	MaxPosition map[types.QualifiedSymbol]fixedpoint.Quantity
	MaxNotional map[types.QualifiedSymbol]fixedpoint.Value

	SizeMult fixedpoint.Ratio // <1x during a drawdown warning zone

	MaxCostAlphaRatio fixedpoint.Ratio // cost_bps must not exceed this * |alpha_bps|
	MinAlphaBps       fixedpoint.Rate  // below this, a target is a Warning, not a hard pass
}

// Result carries the (possibly clamped) target plus the gate's decision
// and, for anything short of Accepted, a human-readable reason.
type Result struct {
	Target   types.PortfolioTarget
	Decision Decision
	Reason   string
}

// Gate is a stateless validator: every method is a pure function of its
// arguments, safe to call from any number of goroutines without locking.
type Gate struct{}

// Validate runs the seven ordered checks of spec §4.6 against target,
// given the current reference price, params snapshot, and the planner's
// alpha/cost estimate in bps.
func (Gate) Validate(target types.PortfolioTarget, params Parameters, price fixedpoint.Price, costBps fixedpoint.Rate) Result {
	// 1. Trading globally enabled.
	if !params.TradingEnabled {
		reason := params.HaltReason
		if reason == "" {
			reason = "trading disabled"
		}
		return Result{Target: target, Decision: Rejected, Reason: reason}
	}

	// 2. Market quality tradeable.
	if len(params.TradeableMarkets) > 0 && !params.TradeableMarkets[target.Instrument] {
		return Result{Target: target, Decision: Rejected, Reason: fmt.Sprintf("market %s not tradeable", target.Instrument)}
	}

	// 3. Drawdown halt.
	if params.DrawdownHalted {
		reason := params.HaltReason
		if reason == "" {
			reason = "drawdown halt active"
		}
		return Result{Target: target, Decision: Rejected, Reason: reason}
	}

	decision := Accepted
	reason := ""

	// 4. Position limit clamp.
	if maxPos, ok := params.MaxPosition[target.Instrument]; ok && maxPos > 0 {
		if clamped, did := clampAbs(target.TargetPosition, maxPos); did {
			target.TargetPosition = clamped
			decision = Adjusted
			reason = "position limit clamp"
		}
	}

	// 5. Exposure (notional) limit clamp.
	if maxNotional, ok := params.MaxNotional[target.Instrument]; ok && maxNotional > 0 && price > 0 {
		notional := price.Mul(absQty(target.TargetPosition))
		if notional > maxNotional {
			maxQty := maxNotional.Div(price)
			if clamped, did := clampAbs(target.TargetPosition, maxQty); did {
				target.TargetPosition = clamped
				decision = Adjusted
				reason = "exposure limit clamp"
			}
		}
	}

	// 6. Global size multiplier.
	if params.SizeMult > 0 && params.SizeMult < fixedpoint.Ratio(fixedpoint.RatioScale) {
		target.TargetPosition = fixedpoint.Quantity(int64(target.TargetPosition) * int64(params.SizeMult) / fixedpoint.RatioScale)
		if decision == Accepted {
			decision = Adjusted
			reason = "drawdown size multiplier applied"
		}
	}

	// 7. Cost vs alpha.
	alphaBps := fixedpoint.Rate(int64(target.CombinedAlpha) * fixedpoint.BpsScale / fixedpoint.RatioScale)
	absAlphaBps := alphaBps
	if absAlphaBps < 0 {
		absAlphaBps = -absAlphaBps
	}
	if params.MaxCostAlphaRatio > 0 {
		maxCost := fixedpoint.Rate(int64(absAlphaBps) * int64(params.MaxCostAlphaRatio) / fixedpoint.RatioScale)
		if costBps > maxCost {
			return Result{Target: target, Decision: Rejected, Reason: "cost exceeds alpha-relative budget"}
		}
	}
	if params.MinAlphaBps > 0 && absAlphaBps < params.MinAlphaBps {
		return Result{Target: target, Decision: Warning, Reason: "alpha below minimum threshold"}
	}

	return Result{Target: target, Decision: decision, Reason: reason}
}

func absQty(q fixedpoint.Quantity) fixedpoint.Quantity {
	if q < 0 {
		return -q
	}
	return q
}

// clampAbs bounds q to [-max,max], reporting whether clamping changed it.
func clampAbs(q, max fixedpoint.Quantity) (fixedpoint.Quantity, bool) {
	if q > max {
		return max, true
	}
	if q < -max {
		return -max, true
	}
	return q, false
}
