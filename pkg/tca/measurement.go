package tca

// FillRecord is one fill observed for an order under measurement.
type FillRecord struct {
	Venue    string
	Price    float64
	Quantity float64
	Fees     float64
}

// ExecutionDataPoint is everything measurement.go needs to know about one
// completed (or partially completed) parent order: its fills, the
// reference prices surrounding it, and the market state used to estimate
// impact ahead of time so realized impact can be compared against it.
type ExecutionDataPoint struct {
	OrderID            string
	Side               Side
	ArrivalPrice       float64
	EndPrice           float64
	TotalQuantity      float64
	ADV                float64
	Volatility         float64
	EstimatedImpactBps float64
	Fills              []FillRecord
}

// VenueBreakdown aggregates fills at one venue.
type VenueBreakdown struct {
	Venue    string
	Quantity float64
	VWAP     float64
	Fees     float64
}

// MeasurementResult is the fully aggregated post-trade report for one
// execution.
type MeasurementResult struct {
	OrderID          string
	ExecutedQuantity float64
	FillRate         float64
	OurVWAP          float64
	TotalFees        float64
	SlippageBps      map[Benchmark]float64
	RealizedImpactBps float64
	ImpactErrorBps   float64 // realized - estimated
	ByVenue          []VenueBreakdown
	Shortfall        ImplementationShortfall
}

// Measure aggregates a completed execution's fills into VWAP, fill rate,
// per-venue breakdown, slippage against every benchmark price supplied,
// and the implementation-shortfall decomposition, then compares realized
// impact (measured as slippage against arrival) to what the impact model
// estimated going in.
func Measure(dp ExecutionDataPoint, benchmarks map[Benchmark]float64) MeasurementResult {
	var executedQty, notional, fees float64
	venues := make(map[string]*VenueBreakdown)
	var venueOrder []string

	for _, f := range dp.Fills {
		executedQty += f.Quantity
		notional += f.Price * f.Quantity
		fees += f.Fees

		v, ok := venues[f.Venue]
		if !ok {
			v = &VenueBreakdown{Venue: f.Venue}
			venues[f.Venue] = v
			venueOrder = append(venueOrder, f.Venue)
		}
		v.Quantity += f.Quantity
		v.VWAP += f.Price * f.Quantity
		v.Fees += f.Fees
	}

	var ourVWAP float64
	if executedQty > 0 {
		ourVWAP = notional / executedQty
	}

	byVenue := make([]VenueBreakdown, 0, len(venueOrder))
	for _, name := range venueOrder {
		v := venues[name]
		if v.Quantity > 0 {
			v.VWAP /= v.Quantity
		}
		byVenue = append(byVenue, *v)
	}

	var fillRate float64
	if dp.TotalQuantity > 0 {
		fillRate = executedQty / dp.TotalQuantity
	}

	slippage := make(map[Benchmark]float64, len(benchmarks))
	for bm, price := range benchmarks {
		slippage[bm] = SlippageBps(dp.Side, ourVWAP, price)
	}

	realizedImpactBps := SlippageBps(dp.Side, ourVWAP, dp.ArrivalPrice)

	shortfall := ComputeShortfall(dp.Side, dp.ArrivalPrice, ourVWAP, dp.EndPrice, fees, executedQty, dp.TotalQuantity)

	return MeasurementResult{
		OrderID:           dp.OrderID,
		ExecutedQuantity:  executedQty,
		FillRate:          fillRate,
		OurVWAP:           ourVWAP,
		TotalFees:         fees,
		SlippageBps:       slippage,
		RealizedImpactBps: realizedImpactBps,
		ImpactErrorBps:    realizedImpactBps - dp.EstimatedImpactBps,
		ByVenue:           byVenue,
		Shortfall:         shortfall,
	}
}

// AggregateVWAP volume-weights the VWAP of several already-measured
// executions into one portfolio-level number, for reporting across a
// batch of orders rather than one at a time.
func AggregateVWAP(results []MeasurementResult) float64 {
	var notional, qty float64
	for _, r := range results {
		notional += r.OurVWAP * r.ExecutedQuantity
		qty += r.ExecutedQuantity
	}
	if qty == 0 {
		return 0
	}
	return notional / qty
}
