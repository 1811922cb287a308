package sim

import "sync"

// Moment is one observable statistic the regime detector and circuit
// breaker watch tick over tick.
type Moment struct {
	SpreadBps  float64
	DepthRatio float64 // top-of-book bid depth / ask depth, or similar
	Volatility float64
	Imbalance  float64
}

// RegimeDetector flags a regime shift when any tracked moment deviates
// from its running baseline by more than k standard deviations for N
// consecutive samples.
type RegimeDetector struct {
	mu             sync.Mutex
	k              float64
	confirmSamples int
	baselineMean   map[string]float64
	baselineStd    map[string]float64
	consecutive    map[string]int
}

// NewRegimeDetector seeds a detector with an initial baseline (mean, std)
// per named moment, flagging a shift after confirmSamples consecutive
// deviations beyond k standard deviations.
func NewRegimeDetector(k float64, confirmSamples int, baselineMean, baselineStd map[string]float64) *RegimeDetector {
	return &RegimeDetector{
		k:              k,
		confirmSamples: confirmSamples,
		baselineMean:   copyMap(baselineMean),
		baselineStd:    copyMap(baselineStd),
		consecutive:    make(map[string]int),
	}
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Observe records one sample of named moments and returns the names whose
// consecutive-deviation streak just reached confirmSamples (a shift fires
// exactly once per streak, not on every sample past the threshold).
func (d *RegimeDetector) Observe(samples map[string]float64) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var shifted []string
	for name, value := range samples {
		mean, hasMean := d.baselineMean[name]
		std, hasStd := d.baselineStd[name]
		if !hasMean || !hasStd || std <= 0 {
			continue
		}
		dev := value - mean
		if dev < 0 {
			dev = -dev
		}
		if dev > d.k*std {
			d.consecutive[name]++
			if d.consecutive[name] == d.confirmSamples {
				shifted = append(shifted, name)
			}
		} else {
			d.consecutive[name] = 0
		}
	}
	return shifted
}

// Rebaseline replaces the baseline for name and resets its streak, used
// after a confirmed shift to adopt the new regime as the normal state.
func (d *RegimeDetector) Rebaseline(name string, mean, std float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.baselineMean[name] = mean
	d.baselineStd[name] = std
	d.consecutive[name] = 0
}
