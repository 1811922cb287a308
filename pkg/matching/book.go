// Package matching implements the price-time (and pro-rata) limit order
// book and the order-lifecycle engine described in spec §4.1.
package matching

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

type bookIndexEntry struct {
	side  types.Side
	price fixedpoint.Price
}

// Book is a single symbol's price-time order book: two maps from price to
// a FIFO queue of orders (bids descending, asks ascending), an
// order-id index for O(1) cancellation, and a monotonic sequence number
// for trade ordering. Adapted from the teacher's
// pkg/app/core/orderbook/orderbook.go, generalized from an int64 price to
// fixedpoint.Price and from a bare Fill struct to the spec's Trade model.
type Book struct {
	mu sync.RWMutex

	Symbol types.QualifiedSymbol

	bidHeap maxPriceHeap
	askHeap minPriceHeap

	bids map[fixedpoint.Price][]*types.Order
	asks map[fixedpoint.Price][]*types.Order

	index map[types.OrderID]bookIndexEntry

	seq uint64

	lastTradePrice fixedpoint.Price
}

// NewBook returns an empty book for symbol.
func NewBook(symbol types.QualifiedSymbol) *Book {
	return &Book{
		Symbol: symbol,
		bids:   make(map[fixedpoint.Price][]*types.Order),
		asks:   make(map[fixedpoint.Price][]*types.Order),
		index:  make(map[types.OrderID]bookIndexEntry),
	}
}

// NextSeq returns the next monotonic sequence number; callers stamp trades
// with it so trades for a symbol are strictly ordered (spec §5).
func (b *Book) NextSeq() uint64 {
	b.seq++
	return b.seq
}

// BestBid returns the highest resting bid price.
func (b *Book) BestBid() (fixedpoint.Price, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bidHeap.Peek()
}

// BestAsk returns the lowest resting ask price.
func (b *Book) BestAsk() (fixedpoint.Price, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.askHeap.Peek()
}

// CheckCrossed returns an error if both sides exist and bid >= ask, the
// invariant that must never hold per spec §8.
func (b *Book) CheckCrossed() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bid, hasBid := b.bidHeap.Peek()
	ask, hasAsk := b.askHeap.Peek()
	if hasBid && hasAsk && bid >= ask {
		return fmt.Errorf("matching: book %s crossed: bid %s >= ask %s", b.Symbol, bid, ask)
	}
	return nil
}

func (b *Book) addBid(o *types.Order) {
	p := o.Price
	if len(b.bids[p]) == 0 {
		heap.Push(&b.bidHeap, p)
	}
	b.bids[p] = append(b.bids[p], o)
	b.index[o.ID] = bookIndexEntry{side: types.Buy, price: p}
}

func (b *Book) addAsk(o *types.Order) {
	p := o.Price
	if len(b.asks[p]) == 0 {
		heap.Push(&b.askHeap, p)
	}
	b.asks[p] = append(b.asks[p], o)
	b.index[o.ID] = bookIndexEntry{side: types.Sell, price: p}
}

// Rest adds a remainder order to the book after matching. Caller must hold
// no lock; Rest takes its own.
func (b *Book) Rest(o *types.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o.Side == types.Buy {
		b.addBid(o)
	} else {
		b.addAsk(o)
	}
}

// Cancel removes a resting order by id. Returns the order and true if
// found.
func (b *Book) Cancel(id types.OrderID) (*types.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.index[id]
	if !ok {
		return nil, false
	}
	var levels map[fixedpoint.Price][]*types.Order
	if entry.side == types.Buy {
		levels = b.bids
	} else {
		levels = b.asks
	}
	arr := levels[entry.price]
	for i, o := range arr {
		if o.ID == id {
			levels[entry.price] = append(arr[:i:i], arr[i+1:]...)
			if len(levels[entry.price]) == 0 {
				delete(levels, entry.price)
				b.removeLevel(entry.side, entry.price)
			}
			delete(b.index, id)
			return o, true
		}
	}
	return nil, false
}

func (b *Book) removeLevel(side types.Side, p fixedpoint.Price) {
	if side == types.Buy {
		for i, v := range b.bidHeap {
			if v == p {
				heap.Remove(&b.bidHeap, i)
				return
			}
		}
		return
	}
	for i, v := range b.askHeap {
		if v == p {
			heap.Remove(&b.askHeap, i)
			return
		}
	}
}

func (b *Book) removeEmptyMaker(side types.Side, price fixedpoint.Price, id types.OrderID) {
	var levels map[fixedpoint.Price][]*types.Order
	if side == types.Buy {
		levels = b.bids
	} else {
		levels = b.asks
	}
	arr := levels[price]
	for i, o := range arr {
		if o.ID == id {
			levels[price] = append(arr[:i:i], arr[i+1:]...)
			break
		}
	}
	delete(b.index, id)
	if len(levels[price]) == 0 {
		delete(levels, price)
		b.removeLevel(side, price)
	}
}

// CrossLevels walks the opposite side's levels from best to worst while
// the incoming order is still marketable at that level, invoking apply
// for each level's resident orders via the given matcher. The book applies
// each fill to its maker and removes exhausted makers itself, then passes
// the level's fills to apply (if non-nil). It stops iterating once
// incoming is exhausted or no level is marketable, and returns the
// incoming quantity left unfilled.
//
// isMarketable(levelPrice) decides whether the incoming order may trade at
// that level (true for market/IOC/FOK, or a limit order whose price
// crosses).
func (b *Book) CrossLevels(side types.Side, incoming fixedpoint.Quantity, now fixedpoint.TimestampNs, matcher Matcher, isMarketable func(levelPrice fixedpoint.Price) bool, apply func(levelPrice fixedpoint.Price, fills []LevelFill)) fixedpoint.Quantity {
	b.mu.Lock()
	defer b.mu.Unlock()

	oppositeHeapPeek := func() (fixedpoint.Price, bool) {
		if side == types.Buy {
			return b.askHeap.Peek()
		}
		return b.bidHeap.Peek()
	}
	oppositeLevels := b.asks
	if side == types.Sell {
		oppositeLevels = b.bids
	}

	for incoming > 0 {
		p, ok := oppositeHeapPeek()
		if !ok || !isMarketable(p) {
			break
		}
		level := oppositeLevels[p]
		if len(level) == 0 {
			delete(oppositeLevels, p)
			b.removeLevel(side.Opposite(), p)
			continue
		}
		fills, remaining := matcher.MatchLevel(level, incoming)
		if len(fills) == 0 {
			break
		}
		b.lastTradePrice = p
		for _, f := range fills {
			f.Maker.ApplyFill(f.Qty, now)
			if f.Maker.Remaining() <= 0 {
				b.removeEmptyMaker(side.Opposite(), p, f.Maker.ID)
			}
		}
		if apply != nil {
			apply(p, fills)
		}
		incoming = remaining
	}
	return incoming
}

// LastTradePrice returns the most recent match price, 0 if none yet.
func (b *Book) LastTradePrice() fixedpoint.Price {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastTradePrice
}

// PriceLevel is one aggregated depth level.
type PriceLevel struct {
	Price fixedpoint.Price
	Qty   fixedpoint.Quantity
}

// BidDepth returns bid levels best-first (highest price first).
func (b *Book) BidDepth() []PriceLevel { return b.depth(b.bids, true) }

// AskDepth returns ask levels best-first (lowest price first).
func (b *Book) AskDepth() []PriceLevel { return b.depth(b.asks, false) }

func (b *Book) depth(levels map[fixedpoint.Price][]*types.Order, descending bool) []PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]PriceLevel, 0, len(levels))
	for p, orders := range levels {
		var q fixedpoint.Quantity
		for _, o := range orders {
			q += o.Remaining()
		}
		if q > 0 {
			out = append(out, PriceLevel{Price: p, Qty: q})
		}
	}
	sortLevels(out, descending)
	return out
}

func sortLevels(levels []PriceLevel, descending bool) {
	// Simple insertion sort: depth is typically tens of levels, and this
	// keeps the book package dependency-free (no need for sort.Slice's
	// reflection-free closures to matter at this scale).
	for i := 1; i < len(levels); i++ {
		j := i
		for j > 0 {
			less := levels[j].Price < levels[j-1].Price
			if descending {
				less = levels[j].Price > levels[j-1].Price
			}
			if !less {
				break
			}
			levels[j], levels[j-1] = levels[j-1], levels[j]
			j--
		}
	}
}
