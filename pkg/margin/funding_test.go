package margin

import (
	"testing"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

func TestApplyFundingDebitsLongsCreditsShorts(t *testing.T) {
	m := NewManager()
	long := types.AccountID{1}
	short := types.AccountID{2}
	m.Open(long, "long-trader")
	m.Open(short, "short-trader")
	m.Deposit(long, "USD", val("100000"))
	m.Deposit(short, "USD", val("100000"))

	if _, err := m.OpenPosition(long, "BTC-PERP", qty("1"), price("50000"), val("5000")); err != nil {
		t.Fatalf("open long: %v", err)
	}
	if _, err := m.OpenPosition(short, "BTC-PERP", qty("-1"), price("50000"), val("5000")); err != nil {
		t.Fatalf("open short: %v", err)
	}

	// 75bps funding rate, expressed in BasisPoints' 1/100bp unit (75*100=7500).
	rate := fixedpoint.BasisPoints(7500)
	mark := price("50000")

	longSettled, err := m.ApplyFunding(long, "BTC-PERP", "USD", rate, mark, fixedpoint.TimestampMs(1000))
	if err != nil {
		t.Fatalf("apply funding to long: %v", err)
	}
	if longSettled >= 0 {
		t.Fatalf("expected a positive funding rate to debit the long, got %s", longSettled)
	}

	shortSettled, err := m.ApplyFunding(short, "BTC-PERP", "USD", rate, mark, fixedpoint.TimestampMs(1000))
	if err != nil {
		t.Fatalf("apply funding to short: %v", err)
	}
	if shortSettled <= 0 {
		t.Fatalf("expected a positive funding rate to credit the short, got %s", shortSettled)
	}
	if longSettled != -shortSettled {
		t.Fatalf("expected symmetric settlement, long=%s short=%s", longSettled, shortSettled)
	}

	// notional = 50000 * 1 = 50000; 75bps of that = 375.
	wantAbs := val("375")
	if shortSettled != wantAbs {
		t.Fatalf("expected funding payment of %s, got %s", wantAbs, shortSettled)
	}

	fs := m.Get(long).Funding["BTC-PERP"]
	if fs == nil || fs.CumulativeFunding != longSettled || fs.LastFundingMs != 1000 {
		t.Fatalf("expected FundingState to record the settlement, got %+v", fs)
	}
}

func TestApplyFundingNoPositionIsNoop(t *testing.T) {
	m := NewManager()
	acc := types.AccountID{3}
	m.Open(acc, "flat-trader")

	settled, err := m.ApplyFunding(acc, "BTC-PERP", "USD", fixedpoint.BasisPoints(7500), price("50000"), fixedpoint.TimestampMs(1000))
	if err != nil {
		t.Fatalf("apply funding: %v", err)
	}
	if settled != 0 {
		t.Fatalf("expected no-op for a flat account, got %s", settled)
	}
}

func TestApplyFundingUnknownAccountErrors(t *testing.T) {
	m := NewManager()
	_, err := m.ApplyFunding(types.AccountID{9}, "BTC-PERP", "USD", fixedpoint.BasisPoints(7500), price("50000"), fixedpoint.TimestampMs(1000))
	if err == nil {
		t.Fatalf("expected an error for an unknown account")
	}
}
