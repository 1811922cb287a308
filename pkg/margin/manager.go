package margin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

// Sentinel errors for the resource-error taxonomy of spec §7.
var (
	ErrAccountNotFound      = errors.New("margin: account not found")
	ErrInsufficientBalance  = errors.New("margin: insufficient balance")
	ErrInsufficientLocked   = errors.New("margin: insufficient locked balance")
	ErrAccountNotActive     = errors.New("margin: account is frozen or liquidating")
	ErrLoanNotFound         = errors.New("margin: loan not found")
)

// Manager owns a set of accounts and provides the operations of spec §4.2:
// deposit, withdraw, lock, unlock, borrow, repay, open_position,
// close_position, update_mark_prices. Every operation holds a single
// manager-wide mutex for its duration; accounts are not locked
// individually.
type Manager struct {
	mu       sync.RWMutex
	accounts map[types.AccountID]*Account
}

// NewManager returns an empty account manager.
func NewManager() *Manager {
	return &Manager{accounts: make(map[types.AccountID]*Account)}
}

// Open registers a new account, or returns the existing one if already
// present.
func (m *Manager) Open(id types.AccountID, owner string) *Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[id]; ok {
		return acc
	}
	acc := NewAccount(id, owner)
	m.accounts[id] = acc
	return acc
}

// Get returns an account by id, or nil.
func (m *Manager) Get(id types.AccountID) *Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accounts[id]
}

func (m *Manager) lookup(id types.AccountID) (*Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return acc, nil
}

// Deposit credits an asset's available balance.
func (m *Manager) Deposit(id types.AccountID, asset string, amount fixedpoint.Value) error {
	if amount <= 0 {
		return fmt.Errorf("margin: deposit amount must be positive: %s", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.lookup(id)
	if err != nil {
		return err
	}
	acc.balance(asset).Available += amount
	return nil
}

// Withdraw debits an asset's available balance.
func (m *Manager) Withdraw(id types.AccountID, asset string, amount fixedpoint.Value) error {
	if amount <= 0 {
		return fmt.Errorf("margin: withdraw amount must be positive: %s", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.lookup(id)
	if err != nil {
		return err
	}
	if err := requireActive(acc); err != nil {
		return err
	}
	b := acc.balance(asset)
	if b.Available < amount {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, b.Available, amount)
	}
	b.Available -= amount
	return nil
}

// Lock moves amount from available to locked, for order admission.
func (m *Manager) Lock(id types.AccountID, asset string, amount fixedpoint.Value) error {
	if amount < 0 {
		return fmt.Errorf("margin: lock amount cannot be negative: %s", amount)
	}
	if amount == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.lookup(id)
	if err != nil {
		return err
	}
	if err := requireActive(acc); err != nil {
		return err
	}
	b := acc.balance(asset)
	if b.Available < amount {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, b.Available, amount)
	}
	b.Available -= amount
	b.Locked += amount
	return nil
}

// Unlock reverses Lock.
func (m *Manager) Unlock(id types.AccountID, asset string, amount fixedpoint.Value) error {
	if amount < 0 {
		return fmt.Errorf("margin: unlock amount cannot be negative: %s", amount)
	}
	if amount == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.lookup(id)
	if err != nil {
		return err
	}
	b := acc.balance(asset)
	if b.Locked < amount {
		return fmt.Errorf("%w: locked %s, unlock %s", ErrInsufficientLocked, b.Locked, amount)
	}
	b.Locked -= amount
	b.Available += amount
	return nil
}

// Borrow opens or tops up a loan, crediting the borrowed asset's available
// balance and locking collateral from collateralAsset.
func (m *Manager) Borrow(id types.AccountID, asset string, principal fixedpoint.Value, annualRate fixedpoint.Rate, collateralAsset string, collateralAmount fixedpoint.Value, now fixedpoint.TimestampMs) error {
	if principal <= 0 {
		return fmt.Errorf("margin: borrow principal must be positive: %s", principal)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.lookup(id)
	if err != nil {
		return err
	}
	if err := requireActive(acc); err != nil {
		return err
	}
	collateral := acc.balance(collateralAsset)
	if collateral.Available < collateralAmount {
		return fmt.Errorf("%w: have %s collateral, need %s", ErrInsufficientBalance, collateral.Available, collateralAmount)
	}
	collateral.Available -= collateralAmount
	collateral.Locked += collateralAmount

	loan, ok := acc.Loans[asset]
	if !ok {
		loan = &Loan{Asset: asset, CollateralAsset: collateralAsset, LastAccrualMs: now}
		acc.Loans[asset] = loan
	} else {
		loan.Accrue(now)
	}
	loan.Principal += principal
	loan.AnnualRate = annualRate
	loan.CollateralAmount += collateralAmount

	acc.balance(asset).Available += principal
	acc.balance(asset).Borrowed += principal
	return nil
}

// Repay accrues interest to now, then pays down the loan (interest first),
// debiting the asset's available balance by the amount applied and
// releasing all of the loan's collateral once the loan is fully repaid.
func (m *Manager) Repay(id types.AccountID, asset string, amount fixedpoint.Value, now fixedpoint.TimestampMs) (fixedpoint.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	loan, ok := acc.Loans[asset]
	if !ok {
		return 0, fmt.Errorf("%w: asset %s", ErrLoanNotFound, asset)
	}
	loan.Accrue(now)

	b := acc.balance(asset)
	if b.Available < amount {
		return 0, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, b.Available, amount)
	}
	applied := loan.Repay(amount)
	b.Available -= applied
	if loan.Principal > applied {
		b.Borrowed -= applied
	} else {
		b.Borrowed = 0
	}

	if loan.Principal == 0 && loan.AccruedInterest == 0 {
		collateral := acc.balance(loan.CollateralAsset)
		collateral.Locked -= loan.CollateralAmount
		collateral.Available += loan.CollateralAmount
		delete(acc.Loans, asset)
	}
	return applied, nil
}

// OpenPosition applies a fill to an account's position, implementing the
// close-then-open rule of spec §4.2 via ApplyOpen, and records marginDelta
// as margin allocated to the position. No asset balance is debited or
// locked for it.
func (m *Manager) OpenPosition(id types.AccountID, symbol string, signedQty fixedpoint.Quantity, price fixedpoint.Price, marginDelta fixedpoint.Value) (realizedPnL fixedpoint.Value, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.lookup(id)
	if err != nil {
		return 0, err
	}
	pos, realized := ApplyOpen(acc.Positions[symbol], symbol, signedQty, price, marginDelta)
	acc.Positions[symbol] = pos
	if pos.Quantity == 0 {
		delete(acc.Positions, symbol)
	}
	// Realized PnL settles into the position's quote asset as a balance
	// credit/debit; the matching engine performs that transfer via Deposit/
	// Withdraw on the quote asset so this package stays agnostic to which
	// asset is "quote" for a given symbol.
	return realized, nil
}

// ClosePosition is OpenPosition with the opposite-signed quantity —
// provided as a distinctly named entry point since spec §4.2 lists
// open_position and close_position as separate operations, even though
// they share one implementation (closing is just opening a
// reducing/opposite fill).
func (m *Manager) ClosePosition(id types.AccountID, symbol string, signedQty fixedpoint.Quantity, price fixedpoint.Price, marginDelta fixedpoint.Value) (fixedpoint.Value, error) {
	return m.OpenPosition(id, symbol, signedQty, price, marginDelta)
}

// UpdateMarkPrices applies new mark prices to every position touched and
// recomputes each affected account's status.
func (m *Manager) UpdateMarkPrices(marks map[string]fixedpoint.Price) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		touched := false
		for symbol, pos := range acc.Positions {
			if mark, ok := marks[symbol]; ok {
				pos.MarkPrice = mark
				touched = true
			}
		}
		if touched {
			acc.RecomputeStatus(marks)
		}
	}
}

func requireActive(acc *Account) error {
	if acc.Status == Frozen || acc.Status == Liquidating {
		return fmt.Errorf("%w: account %s is %s", ErrAccountNotActive, acc.ID, acc.Status)
	}
	return nil
}
