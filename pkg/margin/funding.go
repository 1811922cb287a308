package margin

import (
	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

// FundingState tracks cumulative perpetual funding settlement for one
// (account, symbol) position: a running ledger of every funding payment
// applied, so an account's funding history can be audited independently
// of RealizedPnL (which also accumulates realized trade PnL).
type FundingState struct {
	Symbol            string
	CumulativeFunding fixedpoint.Value // net credited (positive) or debited (negative) to date
	LastFundingMs     fixedpoint.TimestampMs
}

// ApplyFunding settles one perpetual funding interval for id's position in
// symbol, per spec: payment = position.notional(mark) * fundingRateBps /
// 10000. A positive rate debits longs and credits shorts; a negative rate
// reverses the sign. The settled amount (positive = credit, negative =
// debit) is applied to RealizedPnL and to the position's quote asset
// balance, and the account's FundingState is updated. A no-op (returns 0,
// nil) if the account holds no position in symbol.
func (m *Manager) ApplyFunding(id types.AccountID, symbol string, quoteAsset string, fundingRate fixedpoint.BasisPoints, markPrice fixedpoint.Price, now fixedpoint.TimestampMs) (fixedpoint.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	pos, ok := acc.Positions[symbol]
	if !ok || pos.Quantity == 0 {
		return 0, nil
	}

	notional := pos.Notional(markPrice)
	payment := fixedpoint.Value(fixedpoint.MulDiv(int64(notional), int64(fundingRate), int64(fixedpoint.BasisPointUnit)*fixedpoint.BpsScale))

	var settled fixedpoint.Value
	if pos.Side == Long {
		settled = -payment
	} else {
		settled = payment
	}

	pos.RealizedPnL += settled
	acc.balance(quoteAsset).Available += settled

	fs, ok := acc.Funding[symbol]
	if !ok {
		fs = &FundingState{Symbol: symbol}
		acc.Funding[symbol] = fs
	}
	fs.CumulativeFunding += settled
	fs.LastFundingMs = now

	return settled, nil
}
