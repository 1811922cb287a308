// Package signal implements the per-strategy signal book and the
// ComputeTargets aggregation of spec §4.5, generalized from the teacher's
// AccountManager's single-writer-map-of-structs pattern
// (pkg/app/core/account_manager.go) to a map keyed by (strategy,
// instrument) instead of by address.
package signal

import (
	"sync"

	"go.uber.org/zap"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

type key struct {
	strategy   string
	instrument types.QualifiedSymbol
}

// Aggregator holds the most recent signal per (strategy, instrument) and
// derives a PortfolioTarget per instrument on demand.
type Aggregator struct {
	mu      sync.RWMutex
	signals map[key]types.Signal

	Method      types.WeightingMethod
	Overrides   map[string]fixedpoint.Ratio           // per-strategy weight multiplier, default 1x
	MaxPosition map[types.QualifiedSymbol]fixedpoint.Quantity // per-instrument cap

	log *zap.Logger
}

// NewAggregator returns an aggregator using method as its default weighting
// scheme. Overrides and MaxPosition can be populated directly before the
// first ComputeTargets call.
func NewAggregator(method types.WeightingMethod, log *zap.Logger) *Aggregator {
	return &Aggregator{
		signals:     make(map[key]types.Signal),
		Method:      method,
		Overrides:   make(map[string]fixedpoint.Ratio),
		MaxPosition: make(map[types.QualifiedSymbol]fixedpoint.Quantity),
		log:         log.With(zap.String("component", "signal")),
	}
}

// Submit replaces the most recent signal for its (strategy, instrument)
// pair.
func (a *Aggregator) Submit(s types.Signal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals[key{strategy: s.StrategyID, instrument: s.Instrument}] = s
}

// override returns the strategy's weight multiplier, 1x (RatioScale) if
// none was configured.
func (a *Aggregator) override(strategyID string) fixedpoint.Ratio {
	if m, ok := a.Overrides[strategyID]; ok {
		return m
	}
	return fixedpoint.Ratio(fixedpoint.RatioScale)
}

func (a *Aggregator) maxPosition(instrument types.QualifiedSymbol) fixedpoint.Quantity {
	if m, ok := a.MaxPosition[instrument]; ok && m > 0 {
		return m
	}
	return fixedpoint.Quantity(fixedpoint.Scale) // 1 unit cap as a sane default
}

// directionSign maps a Direction to +1/0/-1.
func directionSign(d types.Direction) int64 {
	switch d {
	case types.DirectionBuy:
		return 1
	case types.DirectionSell:
		return -1
	default:
		return 0
	}
}

// rawWeight computes a signal's un-normalized weight under method, before
// the per-strategy override is applied.
func rawWeight(s types.Signal, method types.WeightingMethod) int64 {
	abs := func(v int64) int64 {
		if v < 0 {
			return -v
		}
		return v
	}
	switch method {
	case types.AlphaWeighted:
		if !s.HasAlpha {
			return 0
		}
		return abs(int64(s.Alpha))
	case types.ConfidenceWeighted:
		return int64(s.Confidence)
	case types.Combined:
		if !s.HasAlpha {
			return 0
		}
		return abs(int64(s.Alpha)) * int64(s.Confidence) / fixedpoint.RatioScale
	default: // Average
		return fixedpoint.RatioScale
	}
}

// signalPosition scales a signal's directional strength to the
// instrument's max position: strength=1 maps to the full cap.
func signalPosition(s types.Signal, maxPos fixedpoint.Quantity) fixedpoint.Quantity {
	sign := directionSign(s.Direction)
	if sign == 0 {
		return 0
	}
	return fixedpoint.Quantity(sign * int64(s.Strength) * int64(maxPos) / fixedpoint.RatioScale)
}

// ComputeTargets groups active signals by instrument and derives one
// PortfolioTarget per group, per spec §4.5.
func (a *Aggregator) ComputeTargets(now fixedpoint.TimestampMs) []types.PortfolioTarget {
	a.mu.RLock()
	byInstrument := make(map[types.QualifiedSymbol][]types.Signal)
	for _, s := range a.signals {
		if s.Expired(now) {
			continue
		}
		byInstrument[s.Instrument] = append(byInstrument[s.Instrument], s)
	}
	a.mu.RUnlock()

	targets := make([]types.PortfolioTarget, 0, len(byInstrument))
	for instrument, signals := range byInstrument {
		targets = append(targets, a.computeOne(instrument, signals))
	}
	return targets
}

func (a *Aggregator) computeOne(instrument types.QualifiedSymbol, signals []types.Signal) types.PortfolioTarget {
	maxPos := a.maxPosition(instrument)

	weights := make([]int64, len(signals))
	var sumWeights int64
	for i, s := range signals {
		w := rawWeight(s, a.Method) * int64(a.override(s.StrategyID)) / fixedpoint.RatioScale
		weights[i] = w
		sumWeights += w
	}

	target := types.PortfolioTarget{
		Instrument: instrument,
		MaxUrgency: types.Passive,
	}
	if sumWeights == 0 {
		return target
	}

	var targetPos, combinedAlpha, combinedConfidence int64
	var alphaWeightSum int64

	contributions := make([]types.Contribution, 0, len(signals))
	for i, s := range signals {
		normalized := fixedpoint.Ratio(weights[i] * fixedpoint.RatioScale / sumWeights)
		rawPos := signalPosition(s, maxPos)
		targetPos += int64(normalized) * int64(rawPos) / fixedpoint.RatioScale

		combinedConfidence += int64(normalized) * int64(s.Confidence) / fixedpoint.RatioScale
		if s.HasAlpha {
			combinedAlpha += int64(normalized) * int64(s.Alpha) / fixedpoint.RatioScale
			alphaWeightSum += int64(normalized)
		}
		if s.Urgency > target.MaxUrgency {
			target.MaxUrgency = s.Urgency
		}

		contributions = append(contributions, types.Contribution{
			StrategyID:       s.StrategyID,
			RawPosition:      rawPos,
			NormalizedWeight: normalized,
		})
	}

	if targetPos > int64(maxPos) {
		targetPos = int64(maxPos)
	} else if targetPos < -int64(maxPos) {
		targetPos = -int64(maxPos)
	}
	target.TargetPosition = fixedpoint.Quantity(targetPos)
	target.CombinedConfidence = fixedpoint.Confidence(combinedConfidence)
	if alphaWeightSum > 0 {
		target.CombinedAlpha = fixedpoint.Ratio(combinedAlpha)
	}
	target.Contributions = contributions

	long := targetPos >= 0
	for _, s := range signals {
		if s.StopPrice <= 0 && s.TakePrice <= 0 {
			continue
		}
		if long {
			if s.StopPrice > target.StopPrice {
				target.StopPrice = s.StopPrice
			}
			if target.TakePrice == 0 || (s.TakePrice > 0 && s.TakePrice < target.TakePrice) {
				target.TakePrice = s.TakePrice
			}
		} else {
			if target.StopPrice == 0 || (s.StopPrice > 0 && s.StopPrice < target.StopPrice) {
				target.StopPrice = s.StopPrice
			}
			if s.TakePrice > target.TakePrice {
				target.TakePrice = s.TakePrice
			}
		}
	}

	return target
}
