package tca

import (
	"math"
	"sort"
)

// ImpactObservation is one realized (q, adv, sigma) -> impact_bps sample
// used to fit an ImpactModel's coefficients against history.
type ImpactObservation struct {
	Quantity   float64
	ADV        float64
	Volatility float64
	ImpactBps  float64
}

// CalibrationResult is the fitted coefficients for one impact model plus
// the goodness-of-fit diagnostics needed to decide whether to trust them.
// StdErr holds one standard error per entry in Coefficients, in the same
// order. CVScore is nil unless the caller ran a cross-validated variant
// (e.g. CalibrateSquareRootWithCV).
type CalibrationResult struct {
	ModelName       string
	Coefficients    []float64
	StdErr          []float64
	RSquared        float64
	RMSE            float64
	MAE             float64
	NumObservations int
	CVScore         *float64
	Quality         string
}

// Quality grade thresholds on R-squared.
const (
	qualityExcellent = 0.9
	qualityGood      = 0.7
	qualityFair      = 0.4
)

func qualityGrade(rSquared float64) string {
	switch {
	case rSquared >= qualityExcellent:
		return "excellent"
	case rSquared >= qualityGood:
		return "good"
	case rSquared >= qualityFair:
		return "fair"
	default:
		return "poor"
	}
}

// madRobustWeights assigns each residual a weight of 1 when it falls
// within tau scaled-MADs of the median residual, and downweights outliers
// proportionally beyond that, per the standard robust-regression
// prescription (Huber-style, driven off a median-absolute-deviation scale
// estimate rather than the OLS residual variance so a handful of bad
// prints can't dominate the fit).
func madRobustWeights(residuals []float64, tau float64) []float64 {
	n := len(residuals)
	weights := make([]float64, n)
	if n == 0 {
		return weights
	}
	med := median(residuals)
	abs := make([]float64, n)
	for i, r := range residuals {
		abs[i] = math.Abs(r - med)
	}
	scale := 1.4826 * median(abs)
	for i := range weights {
		if scale <= 0 {
			weights[i] = 1
			continue
		}
		d := abs[i] / scale
		if d <= tau {
			weights[i] = 1
		} else {
			weights[i] = tau * scale / abs[i]
		}
	}
	return weights
}

func median(vals []float64) float64 {
	n := len(vals)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, vals)
	sort.Float64s(sorted)
	mid := n / 2
	if n%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// wls1D fits y = beta*x (no intercept) by weighted least squares with L2
// regularization: beta = (sum w*x*y) / (sum w*x^2 + l2).
func wls1D(x, y, w []float64, l2 float64) float64 {
	var sxy, sxx float64
	for i := range x {
		sxy += w[i] * x[i] * y[i]
		sxx += w[i] * x[i] * x[i]
	}
	denom := sxx + l2
	if denom == 0 {
		return 0
	}
	return sxy / denom
}

// wls2D fits y = b1*x1 + b2*x2 (no intercept) by weighted least squares,
// solving the 2x2 normal-equations system via Cramer's rule.
func wls2D(x1, x2, y, w []float64) (b1, b2 float64) {
	var s11, s12, s22, s1y, s2y float64
	for i := range y {
		s11 += w[i] * x1[i] * x1[i]
		s12 += w[i] * x1[i] * x2[i]
		s22 += w[i] * x2[i] * x2[i]
		s1y += w[i] * x1[i] * y[i]
		s2y += w[i] * x2[i] * y[i]
	}
	det := s11*s22 - s12*s12
	if det == 0 {
		return 0, 0
	}
	b1 = (s1y*s22 - s2y*s12) / det
	b2 = (s11*s2y - s12*s1y) / det
	return b1, b2
}

func weightedGoodnessOfFit(y, fitted, w []float64) (rSquared, rmse, mae, ssRes float64) {
	n := len(y)
	if n == 0 {
		return 0, 0, 0, 0
	}
	var wSum, wySum float64
	for i := range y {
		wSum += w[i]
		wySum += w[i] * y[i]
	}
	if wSum == 0 {
		return 0, 0, 0, 0
	}
	mean := wySum / wSum

	var ssTot, wResSq, wAbsSum float64
	for i := range y {
		resid := y[i] - fitted[i]
		ssRes += w[i] * resid * resid
		d := y[i] - mean
		ssTot += w[i] * d * d
		wResSq += w[i] * resid * resid
		wAbsSum += w[i] * math.Abs(resid)
	}
	if ssTot == 0 {
		rSquared = 0
	} else {
		rSquared = 1 - ssRes/ssTot
	}
	rmse = math.Sqrt(wResSq / wSum)
	mae = wAbsSum / wSum
	return rSquared, rmse, mae, ssRes
}

// standardErrors1D returns the standard error of a single-regressor WLS
// coefficient: se = sqrt(residual_variance / sum(w*x^2)), residual
// variance = ssRes/(n-1) for a 1-parameter fit.
func standardErrors1D(sxx, ssRes float64, n int) []float64 {
	if n <= 1 || sxx <= 0 {
		return []float64{0}
	}
	sigma2 := ssRes / float64(n-1)
	return []float64{math.Sqrt(sigma2 / sxx)}
}

// standardErrors2D returns the standard errors of a 2-regressor WLS fit
// from the diagonal of sigma2 * (X'WX)^-1: that inverse's diagonal is
// [s22, s11]/det per Cramer's rule.
func standardErrors2D(s11, s22, det, ssRes float64, n int) []float64 {
	if n <= 2 || det == 0 {
		return []float64{0, 0}
	}
	sigma2 := ssRes / float64(n-2)
	return []float64{
		math.Sqrt(sigma2 * s22 / det),
		math.Sqrt(sigma2 * s11 / det),
	}
}

// CalibrateSquareRoot fits the SquareRootModel's Y coefficient against
// observations via one-pass OLS to seed MAD-robust weights, then a
// weighted refit with L2 regularization lambda.
func CalibrateSquareRoot(obs []ImpactObservation, l2 float64, tau float64) CalibrationResult {
	n := len(obs)
	x := make([]float64, n)
	y := make([]float64, n)
	for i, o := range obs {
		if o.ADV > 0 {
			x[i] = o.Volatility * math.Sqrt(o.Quantity/o.ADV) * 10000
		}
		y[i] = o.ImpactBps
	}
	unitWeights := make([]float64, n)
	for i := range unitWeights {
		unitWeights[i] = 1
	}

	beta := wls1D(x, y, unitWeights, l2)
	residuals := make([]float64, n)
	for i := range x {
		residuals[i] = y[i] - beta*x[i]
	}
	weights := madRobustWeights(residuals, tau)
	beta = wls1D(x, y, weights, l2)

	fitted := make([]float64, n)
	for i := range x {
		fitted[i] = beta * x[i]
	}
	rSquared, rmse, mae, ssRes := weightedGoodnessOfFit(y, fitted, weights)
	var sxx float64
	for i := range x {
		sxx += weights[i] * x[i] * x[i]
	}

	return CalibrationResult{
		ModelName:       "square_root",
		Coefficients:    []float64{beta},
		StdErr:          standardErrors1D(sxx, ssRes, n),
		RSquared:        rSquared,
		RMSE:            rmse,
		MAE:             mae,
		NumObservations: n,
		Quality:         qualityGrade(rSquared),
	}
}

// CalibrateSquareRootWithCV runs CalibrateSquareRoot and attaches a
// k-fold cross-validated R-squared to the result's CVScore.
func CalibrateSquareRootWithCV(obs []ImpactObservation, l2, tau float64, k int) CalibrationResult {
	result := CalibrateSquareRoot(obs, l2, tau)
	cv := CrossValidateSquareRoot(obs, l2, tau, k)
	result.CVScore = &cv
	return result
}

// CalibrateKyle fits the KyleModel's Lambda coefficient against
// participation (q/adv) with the same OLS-seed / MAD-robust-refit
// procedure as CalibrateSquareRoot.
func CalibrateKyle(obs []ImpactObservation, l2 float64, tau float64) CalibrationResult {
	n := len(obs)
	x := make([]float64, n)
	y := make([]float64, n)
	for i, o := range obs {
		if o.ADV > 0 {
			x[i] = o.Quantity / o.ADV * 10000
		}
		y[i] = o.ImpactBps
	}
	unitWeights := make([]float64, n)
	for i := range unitWeights {
		unitWeights[i] = 1
	}

	beta := wls1D(x, y, unitWeights, l2)
	residuals := make([]float64, n)
	for i := range x {
		residuals[i] = y[i] - beta*x[i]
	}
	weights := madRobustWeights(residuals, tau)
	beta = wls1D(x, y, weights, l2)

	fitted := make([]float64, n)
	for i := range x {
		fitted[i] = beta * x[i]
	}
	rSquared, rmse, mae, ssRes := weightedGoodnessOfFit(y, fitted, weights)
	var sxx float64
	for i := range x {
		sxx += weights[i] * x[i] * x[i]
	}

	return CalibrationResult{
		ModelName:       "kyle",
		Coefficients:    []float64{beta},
		StdErr:          standardErrors1D(sxx, ssRes, n),
		RSquared:        rSquared,
		RMSE:            rmse,
		MAE:             mae,
		NumObservations: n,
		Quality:         qualityGrade(rSquared),
	}
}

// CalibrateAlmgrenChriss fits the permanent (gamma) and temporary (eta)
// coefficients jointly via 2-D weighted least squares, regressing
// impact_bps on participation (permanent regressor) and
// participation*sigma (temporary regressor, EtaExp fixed at 1 for
// calibration purposes).
func CalibrateAlmgrenChriss(obs []ImpactObservation, tau float64) CalibrationResult {
	n := len(obs)
	x1 := make([]float64, n) // permanent regressor
	x2 := make([]float64, n) // temporary regressor
	y := make([]float64, n)
	for i, o := range obs {
		if o.ADV > 0 {
			participation := o.Quantity / o.ADV
			x1[i] = participation * 10000
			x2[i] = participation * o.Volatility * 10000
		}
		y[i] = o.ImpactBps
	}
	unitWeights := make([]float64, n)
	for i := range unitWeights {
		unitWeights[i] = 1
	}

	gamma, eta := wls2D(x1, x2, y, unitWeights)
	residuals := make([]float64, n)
	for i := range y {
		residuals[i] = y[i] - (gamma*x1[i] + eta*x2[i])
	}
	weights := madRobustWeights(residuals, tau)
	gamma, eta = wls2D(x1, x2, y, weights)

	fitted := make([]float64, n)
	for i := range y {
		fitted[i] = gamma*x1[i] + eta*x2[i]
	}
	rSquared, rmse, mae, ssRes := weightedGoodnessOfFit(y, fitted, weights)
	var s11, s12, s22 float64
	for i := range y {
		s11 += weights[i] * x1[i] * x1[i]
		s12 += weights[i] * x1[i] * x2[i]
		s22 += weights[i] * x2[i] * x2[i]
	}
	det := s11*s22 - s12*s12

	return CalibrationResult{
		ModelName:       "almgren_chriss",
		Coefficients:    []float64{gamma, eta},
		StdErr:          standardErrors2D(s11, s22, det, ssRes, n),
		RSquared:        rSquared,
		RMSE:            rmse,
		MAE:             mae,
		NumObservations: n,
		Quality:         qualityGrade(rSquared),
	}
}

// CrossValidateSquareRoot runs k-fold cross validation of
// CalibrateSquareRoot, returning the mean out-of-fold R-squared. Folds
// are contiguous slices of obs in the order given; callers wanting a
// randomized split should shuffle obs themselves before calling (this
// package takes no dependency on math/rand so calibration stays
// deterministic given its inputs).
func CrossValidateSquareRoot(obs []ImpactObservation, l2, tau float64, k int) float64 {
	n := len(obs)
	if k <= 1 || k > n {
		return 0
	}
	foldSize := n / k
	var totalRSquared float64
	folds := 0
	for f := 0; f < k; f++ {
		start := f * foldSize
		end := start + foldSize
		if f == k-1 {
			end = n
		}
		test := obs[start:end]
		train := make([]ImpactObservation, 0, n-len(test))
		train = append(train, obs[:start]...)
		train = append(train, obs[end:]...)
		if len(train) == 0 || len(test) == 0 {
			continue
		}
		fit := CalibrateSquareRoot(train, l2, tau)
		beta := fit.Coefficients[0]

		x := make([]float64, len(test))
		y := make([]float64, len(test))
		w := make([]float64, len(test))
		for i, o := range test {
			if o.ADV > 0 {
				x[i] = o.Volatility * math.Sqrt(o.Quantity/o.ADV) * 10000
			}
			y[i] = o.ImpactBps
			w[i] = 1
		}
		fitted := make([]float64, len(test))
		for i := range x {
			fitted[i] = beta * x[i]
		}
		rSquared, _, _, _ := weightedGoodnessOfFit(y, fitted, w)
		totalRSquared += rSquared
		folds++
	}
	if folds == 0 {
		return 0
	}
	return totalRSquared / float64(folds)
}
