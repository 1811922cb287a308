// Package margin implements per-asset balances, leveraged positions, loans,
// and the margin account state machine described in spec §3 and §4.2.
package margin

import (
	"fmt"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

// AccountStatus is the account-level lifecycle state, driven by margin
// ratio after every mark-price update.
type AccountStatus int8

const (
	Active AccountStatus = iota
	MarginCall
	Liquidating
	Frozen
)

func (s AccountStatus) String() string {
	switch s {
	case Active:
		return "active"
	case MarginCall:
		return "margin_call"
	case Liquidating:
		return "liquidating"
	case Frozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// MarginMode selects how margin is shared across positions.
type MarginMode int8

const (
	Cross MarginMode = iota
	Isolated
)

// AssetBalance tracks one asset's available/locked/borrowed/interest
// amounts. total = available + locked; net = total - borrowed - interest.
type AssetBalance struct {
	Available fixedpoint.Value
	Locked    fixedpoint.Value
	Borrowed  fixedpoint.Value
	Interest  fixedpoint.Value
}

func (b AssetBalance) Total() fixedpoint.Value { return b.Available + b.Locked }
func (b AssetBalance) Net() fixedpoint.Value   { return b.Total() - b.Borrowed - b.Interest }

// FeeSchedule applies tier multipliers on top of a market's base
// maker/taker rates. A negative maker multiplier yields a rebate.
type FeeSchedule struct {
	Tier             int
	MakerMultiplier  fixedpoint.Ratio
	TakerMultiplier  fixedpoint.Ratio
}

// EffectiveMakerRate and EffectiveTakerRate scale a market's base rate by
// this schedule's tier multiplier.
func (f FeeSchedule) EffectiveMakerRate(base fixedpoint.Rate) fixedpoint.Rate {
	return fixedpoint.Rate(fixedpoint.MulDiv(int64(base), int64(f.MakerMultiplier), fixedpoint.RatioScale))
}

func (f FeeSchedule) EffectiveTakerRate(base fixedpoint.Rate) fixedpoint.Rate {
	return fixedpoint.Rate(fixedpoint.MulDiv(int64(base), int64(f.TakerMultiplier), fixedpoint.RatioScale))
}

// Account is a margin account: balances by asset, positions by symbol,
// loans by asset, and the margin parameters that govern liquidation.
type Account struct {
	ID       types.AccountID
	Owner    string
	Status   AccountStatus
	Mode     MarginMode
	Balances map[string]*AssetBalance        // asset -> balance
	Positions map[string]*Position           // symbol -> position
	Loans    map[string]*Loan                // asset -> loan
	Funding  map[string]*FundingState        // symbol -> cumulative funding settlement
	InitialMarginRate     fixedpoint.Rate
	MaintenanceMarginRate fixedpoint.Rate
	Fees     FeeSchedule
}

// NewAccount returns an empty account ready for deposits.
func NewAccount(id types.AccountID, owner string) *Account {
	return &Account{
		ID:        id,
		Owner:     owner,
		Status:    Active,
		Balances:  make(map[string]*AssetBalance),
		Positions: make(map[string]*Position),
		Loans:     make(map[string]*Loan),
		Funding:   make(map[string]*FundingState),
	}
}

func (a *Account) balance(asset string) *AssetBalance {
	b, ok := a.Balances[asset]
	if !ok {
		b = &AssetBalance{}
		a.Balances[asset] = b
	}
	return b
}

// Equity = sum of net balances + sum of unrealized PnL across positions.
func (a *Account) Equity(markPrices map[string]fixedpoint.Price) fixedpoint.Value {
	var eq fixedpoint.Value
	for _, b := range a.Balances {
		eq += b.Net()
	}
	for symbol, pos := range a.Positions {
		mark, ok := markPrices[symbol]
		if !ok {
			mark = pos.MarkPrice
		}
		eq += pos.UnrealizedPnL(mark)
	}
	return eq
}

// UsedMargin sums margin allocated across all positions.
func (a *Account) UsedMargin() fixedpoint.Value {
	var used fixedpoint.Value
	for _, pos := range a.Positions {
		used += pos.MarginAllocated
	}
	return used
}

// AvailableMargin = max(equity - used_margin, 0).
func (a *Account) AvailableMargin(markPrices map[string]fixedpoint.Price) fixedpoint.Value {
	avail := a.Equity(markPrices) - a.UsedMargin()
	if avail < 0 {
		return 0
	}
	return avail
}

// MarginRatio = equity / sum(position.notional * maintenance_rate). A
// margin ratio of 0 is returned (rather than dividing by zero) when there
// is no position notional to speak of.
func (a *Account) MarginRatio(markPrices map[string]fixedpoint.Price) fixedpoint.Ratio {
	var maintReq fixedpoint.Value
	for symbol, pos := range a.Positions {
		mark, ok := markPrices[symbol]
		if !ok {
			mark = pos.MarkPrice
		}
		maintReq += pos.Notional(mark).MulRate(a.MaintenanceMarginRate)
	}
	if maintReq == 0 {
		return 0
	}
	eq := a.Equity(markPrices)
	return fixedpoint.Ratio(fixedpoint.MulDiv(int64(eq), fixedpoint.RatioScale, int64(maintReq)))
}

// RecomputeStatus applies the three-tier status transition from spec §4.2:
// margin_ratio < 1 -> Liquidating; < 1.2 -> MarginCall; else Active. Frozen
// accounts are left untouched (frozen is an operator action, not derived).
func (a *Account) RecomputeStatus(markPrices map[string]fixedpoint.Price) {
	if a.Status == Frozen {
		return
	}
	ratio := a.MarginRatio(markPrices)
	one := fixedpoint.Ratio(fixedpoint.RatioScale)
	onePointTwo := fixedpoint.Ratio(fixedpoint.RatioScale * 12 / 10)
	switch {
	case len(a.Positions) == 0:
		a.Status = Active
	case ratio < one:
		a.Status = Liquidating
	case ratio < onePointTwo:
		a.Status = MarginCall
	default:
		a.Status = Active
	}
}

// GetPosition returns the position for symbol, or nil.
func (a *Account) GetPosition(symbol string) *Position { return a.Positions[symbol] }

// Validate checks the account's internal invariants.
func (a *Account) Validate() error {
	for asset, b := range a.Balances {
		if b.Available < 0 || b.Locked < 0 || b.Borrowed < 0 || b.Interest < 0 {
			return fmt.Errorf("account %s: negative balance component for %s", a.ID, asset)
		}
	}
	return nil
}
