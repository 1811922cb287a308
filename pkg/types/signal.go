package types

import "github.com/axiomquant/tradecore/pkg/fixedpoint"

// Direction is the stance a strategy's signal expresses on an instrument.
type Direction int8

const (
	Flat Direction = iota
	DirectionBuy
	DirectionSell
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "buy"
	case DirectionSell:
		return "sell"
	default:
		return "flat"
	}
}

// Urgency ranks how aggressively a signal wants to be worked, used both to
// pick the most urgent contributor to a PortfolioTarget and to price an
// execution child order.
type Urgency int8

const (
	Passive Urgency = iota
	Normal
	Aggressive
	Immediate
)

func (u Urgency) String() string {
	switch u {
	case Passive:
		return "passive"
	case Normal:
		return "normal"
	case Aggressive:
		return "aggressive"
	case Immediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// Signal is one strategy's view on one instrument as of its Timestamp. It
// expires once now > ExpiresAt (when ExpiresAt is set).
type Signal struct {
	StrategyID     string
	StrategyType   string
	Instrument     QualifiedSymbol
	Direction      Direction
	Strength       fixedpoint.Strength   // [-1,1]
	Confidence     fixedpoint.Confidence // [0,1]
	Urgency        Urgency
	ReferencePrice fixedpoint.Price // optional, zero if unset
	Microprice     fixedpoint.Price // optional, zero if unset
	Alpha          fixedpoint.Ratio // optional; HasAlpha reports presence
	HasAlpha       bool
	StopPrice      fixedpoint.Price       // optional, zero if unset
	TakePrice      fixedpoint.Price       // optional, zero if unset
	ExpiresAt      fixedpoint.TimestampMs // zero means never expires
	Features       map[string]fixedpoint.Ratio

	Timestamp fixedpoint.TimestampMs
}

// Expired reports whether the signal is no longer active as of now.
func (s Signal) Expired(now fixedpoint.TimestampMs) bool {
	return s.ExpiresAt != 0 && now > s.ExpiresAt
}

// WeightingMethod selects how a signal's raw weight is derived before
// normalization in Aggregator.ComputeTargets.
type WeightingMethod int8

const (
	Average WeightingMethod = iota
	AlphaWeighted
	ConfidenceWeighted
	Combined // |alpha| * confidence
)

// Contribution records one signal's share of a PortfolioTarget, for audit
// and attribution.
type Contribution struct {
	StrategyID      string
	RawPosition     fixedpoint.Quantity
	NormalizedWeight fixedpoint.Ratio
}

// PortfolioTarget is the aggregated desired position for one instrument,
// combining every active signal that references it.
type PortfolioTarget struct {
	Instrument        QualifiedSymbol
	TargetPosition    fixedpoint.Quantity // signed: positive long, negative short
	CombinedAlpha     fixedpoint.Ratio
	CombinedConfidence fixedpoint.Confidence
	MaxUrgency        Urgency
	StopPrice         fixedpoint.Price // most conservative among contributors
	TakePrice         fixedpoint.Price
	Contributions     []Contribution
}
