package margin

import (
	"testing"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

func val(s string) fixedpoint.Value {
	v, err := fixedpoint.ParseValue(s)
	if err != nil {
		panic(err)
	}
	return v
}

func price(s string) fixedpoint.Price {
	p, err := fixedpoint.ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return p
}

func qty(s string) fixedpoint.Quantity {
	q, err := fixedpoint.ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

func TestShortSellRoundTrip(t *testing.T) {
	m := NewManager()
	acc := types.AccountID{1}
	m.Open(acc, "trader-b")

	if err := m.Deposit(acc, "USDT", val("60000")); err != nil {
		t.Fatal(err)
	}
	if err := m.Lock(acc, "USDT", val("60000")); err != nil {
		t.Fatal(err)
	}
	if err := m.Borrow(acc, "BTC", val("1"), fixedpoint.Rate(500), "USDT", 0, 0); err != nil {
		t.Fatal(err)
	}

	// Sell 1 BTC at 50000: opens a short position.
	if _, err := m.OpenPosition(acc, "BTC-USDT", -qty("1"), price("50000"), val("5000")); err != nil {
		t.Fatal(err)
	}
	// Buy back at 40000: closes the short, realizing +10000.
	realized, err := m.OpenPosition(acc, "BTC-USDT", qty("1"), price("40000"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if realized != val("10000") {
		t.Fatalf("realized pnl = %s, want 10000", realized)
	}

	a := m.Get(acc)
	loan := a.Loans["BTC"]
	if loan == nil || loan.Principal != val("1") {
		t.Fatalf("expected outstanding BTC loan of 1, got %+v", loan)
	}
	if _, ok := a.Positions["BTC-USDT"]; ok {
		t.Fatalf("position should be closed, got %+v", a.Positions["BTC-USDT"])
	}
}

func TestLiquidationPredicate(t *testing.T) {
	pos := &Position{
		Symbol:          "BTC-USDT",
		Side:            Long,
		Quantity:        qty("1"),
		AverageEntry:    price("50000"),
		MarginAllocated: val("2500"), // 5% margin
	}
	maint := fixedpoint.Rate(250) // 2.5%
	liq := pos.LiquidationPrice(price("50000"), maint)
	if !pos.IsLiquidatable(liq, maint) {
		t.Fatalf("position should be liquidatable exactly at its own liquidation price")
	}
	if pos.IsLiquidatable(price("49000")+liq, maint) {
		t.Fatalf("position should not be liquidatable well above liq price")
	}
}

func TestLoanInterestAccrual(t *testing.T) {
	l := &Loan{Principal: val("100000"), AnnualRate: fixedpoint.Rate(10000)} // 100% annual
	l.Accrue(fixedpoint.TimestampMs(MsPerYear))
	if l.AccruedInterest != val("100000") {
		t.Fatalf("one year at 100%% annual on 100000 = %s, want 100000", l.AccruedInterest)
	}
}

func TestLockUnlockBalanceInvariant(t *testing.T) {
	m := NewManager()
	acc := types.AccountID{2}
	m.Open(acc, "trader-a")
	if err := m.Deposit(acc, "USDT", val("100000")); err != nil {
		t.Fatal(err)
	}
	if err := m.Lock(acc, "USDT", val("50010")); err != nil {
		t.Fatal(err)
	}
	a := m.Get(acc)
	b := a.Balances["USDT"]
	if b.Available != val("49990") || b.Locked != val("50010") {
		t.Fatalf("unexpected balance after lock: %+v", b)
	}
	if err := m.Unlock(acc, "USDT", val("50010")); err != nil {
		t.Fatal(err)
	}
	if b.Available != val("100000") || b.Locked != 0 {
		t.Fatalf("unexpected balance after unlock: %+v", b)
	}
}
