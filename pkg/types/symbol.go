// Package types holds the order/trade data model shared across the
// matching engine, book fabric, margin accounts, and the rest of the
// pipeline.
package types

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ExchangeID identifies a venue in a QualifiedSymbol. Kept as a plain
// string (spec §3 does not further specify its shape).
type ExchangeID string

// QualifiedSymbol pairs an exchange id with a symbol, normalized to upper
// case for equality — two symbols differing only in case are the same
// instrument.
type QualifiedSymbol struct {
	Exchange ExchangeID
	Symbol   string
}

// NewQualifiedSymbol normalizes symbol to upper case at construction so
// every later comparison is a plain ==.
func NewQualifiedSymbol(exchange ExchangeID, symbol string) QualifiedSymbol {
	return QualifiedSymbol{Exchange: exchange, Symbol: strings.ToUpper(symbol)}
}

func (q QualifiedSymbol) String() string {
	return string(q.Exchange) + ":" + q.Symbol
}

// BaseQuote splits a "BASE-QUOTE" symbol (e.g. "BTC-USDT") into its two
// legs. Symbols without a hyphen return the whole string as base and an
// empty quote.
func (q QualifiedSymbol) BaseQuote() (base, quote string) {
	i := strings.IndexByte(q.Symbol, '-')
	if i < 0 {
		return q.Symbol, ""
	}
	return q.Symbol[:i], q.Symbol[i+1:]
}

// OrderID and TradeID are opaque identifiers, generated via uuid so callers
// never construct a colliding id by hand.
type OrderID string
type TradeID string

// AccountID is an EVM-style 20-byte address, kept directly from the
// teacher's account model (pkg/app/core/account/account.go) as a
// convenient, already-comparable identifier type.
type AccountID = common.Address

func NewOrderID() OrderID { return OrderID(uuid.NewString()) }
func NewTradeID() TradeID { return TradeID(uuid.NewString()) }
