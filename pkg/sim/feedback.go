package sim

import (
	"math"
	"sync"
)

// FeedbackKind distinguishes a reflexive loop that amplifies volatility
// from one that dampens it.
type FeedbackKind int8

const (
	Amplifying FeedbackKind = iota
	Dampening
)

func (k FeedbackKind) String() string {
	if k == Dampening {
		return "dampening"
	}
	return "amplifying"
}

// FeedbackLoop is emitted once a correlation streak between imbalance and
// volatility trends has held for enough consecutive samples.
type FeedbackLoop struct {
	Kind        FeedbackKind
	Correlation float64
}

const feedbackWindow = 20

// FeedbackDetector tracks the trailing window of imbalance and volatility
// samples, computes the Pearson correlation of their sample-to-sample
// trends (first differences), and confirms a feedback loop once that
// correlation's sign and strength hold for a configured number of
// consecutive observations.
type FeedbackDetector struct {
	mu              sync.Mutex
	threshold       float64
	confirmSteps    int
	imbalance       []float64
	volatility      []float64
	consecutiveAmp  int
	consecutiveDamp int
}

// NewFeedbackDetector confirms a feedback loop once |correlation| >
// threshold for confirmSteps consecutive observations.
func NewFeedbackDetector(threshold float64, confirmSteps int) *FeedbackDetector {
	return &FeedbackDetector{threshold: threshold, confirmSteps: confirmSteps}
}

func trend(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		out[i-1] = series[i] - series[i-1]
	}
	return out
}

func pearson(a, b []float64) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}
	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// Observe appends one (imbalance, volatility) sample, trims the window to
// the last 20 samples, and returns a confirmed FeedbackLoop if the
// correlation-of-trends threshold has now held for confirmSteps in a row.
func (d *FeedbackDetector) Observe(imbalance, volatility float64) (FeedbackLoop, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.imbalance = append(d.imbalance, imbalance)
	d.volatility = append(d.volatility, volatility)
	if len(d.imbalance) > feedbackWindow {
		d.imbalance = d.imbalance[len(d.imbalance)-feedbackWindow:]
		d.volatility = d.volatility[len(d.volatility)-feedbackWindow:]
	}

	corr := pearson(trend(d.imbalance), trend(d.volatility))

	if corr > d.threshold {
		d.consecutiveAmp++
		d.consecutiveDamp = 0
	} else if corr < -d.threshold {
		d.consecutiveDamp++
		d.consecutiveAmp = 0
	} else {
		d.consecutiveAmp = 0
		d.consecutiveDamp = 0
	}

	if d.consecutiveAmp == d.confirmSteps {
		return FeedbackLoop{Kind: Amplifying, Correlation: corr}, true
	}
	if d.consecutiveDamp == d.confirmSteps {
		return FeedbackLoop{Kind: Dampening, Correlation: corr}, true
	}
	return FeedbackLoop{}, false
}
