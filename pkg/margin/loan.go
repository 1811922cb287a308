package margin

import "github.com/axiomquant/tradecore/pkg/fixedpoint"

// MsPerYear is the divisor used for linear loan-interest accrual
// (spec §4.2: Δinterest = principal * (annual_rate / ms_per_year) * Δt_ms).
// A 365-day year is used, matching the convention of scaled-integer money
// math elsewhere in the platform (no leap-year adjustment).
const MsPerYear = int64(365) * 24 * 60 * 60 * 1000

// Loan is an outstanding borrow against an account, collateralized in a
// (possibly different) asset.
type Loan struct {
	Asset            string
	Principal        fixedpoint.Value
	AnnualRate       fixedpoint.Rate
	AccruedInterest  fixedpoint.Value
	CollateralAsset  string
	CollateralAmount fixedpoint.Value
	LastAccrualMs    fixedpoint.TimestampMs
}

// TotalOwed = principal + accrued_interest.
func (l *Loan) TotalOwed() fixedpoint.Value {
	return l.Principal + l.AccruedInterest
}

// Accrue advances interest linearly to now, per spec §4.2. A no-op if now
// is not after the last accrual timestamp (numerical-defensive: never
// accrues negative time).
func (l *Loan) Accrue(now fixedpoint.TimestampMs) {
	dt := int64(now) - int64(l.LastAccrualMs)
	if dt <= 0 {
		l.LastAccrualMs = now
		return
	}
	// principal * annual_rate(bps) / 10000, then scaled by dt/ms_per_year;
	// split into two 128-bit-safe steps so neither intermediate product
	// overflows int64 at realistic principal/duration magnitudes.
	annualInterest := fixedpoint.MulDiv(int64(l.Principal), int64(l.AnnualRate), fixedpoint.BpsScale)
	delta := fixedpoint.MulDiv(annualInterest, dt, MsPerYear)
	l.AccruedInterest += fixedpoint.Value(delta)
	l.LastAccrualMs = now
}

// Repay pays interest first, then principal, with the given payment
// amount. Returns the amount actually applied, capped at TotalOwed; any
// excess over that is not applied.
func (l *Loan) Repay(amount fixedpoint.Value) (applied fixedpoint.Value) {
	if amount <= 0 {
		return 0
	}
	remaining := amount
	if l.AccruedInterest > 0 {
		paidInterest := l.AccruedInterest
		if remaining < paidInterest {
			paidInterest = remaining
		}
		l.AccruedInterest -= paidInterest
		remaining -= paidInterest
		applied += paidInterest
	}
	if remaining > 0 && l.Principal > 0 {
		paidPrincipal := l.Principal
		if remaining < paidPrincipal {
			paidPrincipal = remaining
		}
		l.Principal -= paidPrincipal
		applied += paidPrincipal
	}
	return applied
}
