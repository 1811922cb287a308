package tca

// Benchmark names the reference price a fill's slippage is measured
// against.
type Benchmark int8

const (
	ArrivalPrice Benchmark = iota
	VWAPBenchmark
	TWAPBenchmark
	Close
	Open
	StartMid
	EndMid
)

func (b Benchmark) String() string {
	switch b {
	case ArrivalPrice:
		return "arrival_price"
	case VWAPBenchmark:
		return "vwap"
	case TWAPBenchmark:
		return "twap"
	case Close:
		return "close"
	case Open:
		return "open"
	case StartMid:
		return "start_mid"
	case EndMid:
		return "end_mid"
	default:
		return "unknown"
	}
}

// SlippageBps computes execution slippage in bps against benchmark price b
// for an execution at price p: positive means the execution cost the
// trader money relative to the benchmark.
func SlippageBps(side Side, p, b float64) float64 {
	if b == 0 {
		return 0
	}
	if side == Buy {
		return (p - b) / b * 10000
	}
	return (b - p) / b * 10000
}

// Side mirrors the order side for TCA computations, kept local to this
// package so it has no dependency on the matching engine's types.
type Side int8

const (
	Buy Side = iota
	Sell
)

// ImplementationShortfall is the full cost decomposition of spec §4.7:
// execution cost on the filled quantity, opportunity cost on the unfilled
// remainder, plus fees. All costs are in quote-currency units; none is
// normalized to the order's notional.
type ImplementationShortfall struct {
	ExecutionCost  float64
	OpportunityCost float64
	Fees           float64
	Total          float64
	FillRate       float64
}

// ComputeShortfall implements spec §8 scenario 6: executionCost =
// (executionPrice-arrivalPrice)*executedQty for a buy (mirrored for a
// sell); opportunityCost = (endPrice-arrivalPrice)*unfilledQty for a buy
// (mirrored for a sell); total sums both plus fees; fillRate =
// executedQty/totalQty.
func ComputeShortfall(side Side, arrivalPrice, executionPrice, endPrice, fees, executedQty, totalQty float64) ImplementationShortfall {
	unfilled := totalQty - executedQty
	sign := 1.0
	if side == Sell {
		sign = -1.0
	}
	executionCost := sign * (executionPrice - arrivalPrice) * executedQty
	opportunityCost := sign * (endPrice - arrivalPrice) * unfilled

	var fillRate float64
	if totalQty > 0 {
		fillRate = executedQty / totalQty
	}

	return ImplementationShortfall{
		ExecutionCost:   executionCost,
		OpportunityCost: opportunityCost,
		Fees:            fees,
		Total:           executionCost + opportunityCost + fees,
		FillRate:        fillRate,
	}
}
