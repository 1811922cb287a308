// Package fabric implements the lock-free, many-reader/one-writer book
// mirror described in spec §4.3: a concurrent map from symbol to an
// atomically swappable pointer to an immutable depth snapshot, generalized
// from the teacher's mutex-protected orderbook.OrderBook
// (pkg/app/core/orderbook/orderbook.go) to true copy-on-write via
// sync/atomic.Pointer.
package fabric

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

var (
	ErrNotInitialized = errors.New("fabric: symbol has no snapshot yet")
	ErrSequenceGap    = errors.New("fabric: delta does not extend the current sequence")
)

// Level is one depth level: a price and its resting quantity. A zero
// quantity in a Delta removes the level.
type Level struct {
	Price fixedpoint.Price
	Qty   fixedpoint.Quantity
}

// Snapshot is a full depth picture as of LastUpdateID.
type Snapshot struct {
	Symbol       types.QualifiedSymbol
	LastUpdateID int64
	Bids         []Level
	Asks         []Level
	TimestampNs  fixedpoint.TimestampNs
}

// Delta is an incremental depth update spanning [FirstUpdateID,
// FinalUpdateID].
type Delta struct {
	Symbol        types.QualifiedSymbol
	FirstUpdateID int64
	FinalUpdateID int64
	Bids          []Level
	Asks          []Level
}

// bookState is the immutable record swapped by atomic.Pointer. Every
// mutation clones it; no in-place field is ever written once published.
type bookState struct {
	bids         map[fixedpoint.Price]fixedpoint.Quantity
	asks         map[fixedpoint.Price]fixedpoint.Quantity
	lastUpdateID int64
	initialized  bool
}

func (s *bookState) clone() *bookState {
	next := &bookState{
		bids:         make(map[fixedpoint.Price]fixedpoint.Quantity, len(s.bids)),
		asks:         make(map[fixedpoint.Price]fixedpoint.Quantity, len(s.asks)),
		lastUpdateID: s.lastUpdateID,
		initialized:  s.initialized,
	}
	for p, q := range s.bids {
		next.bids[p] = q
	}
	for p, q := range s.asks {
		next.asks[p] = q
	}
	return next
}

func applyLevels(side map[fixedpoint.Price]fixedpoint.Quantity, levels []Level) {
	for _, lvl := range levels {
		if lvl.Qty <= 0 {
			delete(side, lvl.Price)
			continue
		}
		side[lvl.Price] = lvl.Qty
	}
}

// symbolEntry holds one symbol's atomic state plus its bounded
// out-of-sync buffer.
type symbolEntry struct {
	state     atomic.Pointer[bookState]
	outOfSync atomic.Bool

	bufMu  sync.Mutex
	buffer []Delta
}

// Fabric fans out depth state for many (exchange, symbol) pairs with zero
// locking on the read path: Get loads a single pointer.
type Fabric struct {
	mu          sync.RWMutex
	symbols     map[types.QualifiedSymbol]*symbolEntry
	bufferLimit int
	log         *zap.Logger
}

// NewFabric returns an empty fabric. bufferLimit bounds how many
// out-of-order deltas are buffered per symbol while awaiting a resync
// snapshot; once full, the oldest buffered delta is dropped.
func NewFabric(bufferLimit int, log *zap.Logger) *Fabric {
	return &Fabric{
		symbols:     make(map[types.QualifiedSymbol]*symbolEntry),
		bufferLimit: bufferLimit,
		log:         log.With(zap.String("component", "fabric")),
	}
}

func (f *Fabric) entry(symbol types.QualifiedSymbol) *symbolEntry {
	f.mu.RLock()
	e, ok := f.symbols[symbol]
	f.mu.RUnlock()
	if ok {
		return e
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.symbols[symbol]; ok {
		return e
	}
	e = &symbolEntry{}
	f.symbols[symbol] = e
	return e
}

// Depth is a read-only view returned to callers; it never aliases fabric
// internals.
type Depth struct {
	Bids         []Level
	Asks         []Level
	LastUpdateID int64
}

// Get returns the current depth for symbol, or false if no snapshot has
// ever been applied.
func (f *Fabric) Get(symbol types.QualifiedSymbol) (Depth, bool) {
	e := f.entry(symbol)
	s := e.state.Load()
	if s == nil || !s.initialized {
		return Depth{}, false
	}
	d := Depth{LastUpdateID: s.lastUpdateID}
	for p, q := range s.bids {
		d.Bids = append(d.Bids, Level{Price: p, Qty: q})
	}
	for p, q := range s.asks {
		d.Asks = append(d.Asks, Level{Price: p, Qty: q})
	}
	sort.Slice(d.Bids, func(i, j int) bool { return d.Bids[i].Price > d.Bids[j].Price })
	sort.Slice(d.Asks, func(i, j int) bool { return d.Asks[i].Price < d.Asks[j].Price })
	return d, true
}

// IsOutOfSync reports whether symbol's delta stream is currently
// considered broken, awaiting a fresh snapshot.
func (f *Fabric) IsOutOfSync(symbol types.QualifiedSymbol) bool {
	return f.entry(symbol).outOfSync.Load()
}

// ApplySnapshot installs a full depth picture, replacing any prior state,
// then drains any buffered deltas that now extend cleanly from it.
func (f *Fabric) ApplySnapshot(snap Snapshot) {
	e := f.entry(snap.Symbol)
	next := &bookState{
		bids:         make(map[fixedpoint.Price]fixedpoint.Quantity, len(snap.Bids)),
		asks:         make(map[fixedpoint.Price]fixedpoint.Quantity, len(snap.Asks)),
		lastUpdateID: snap.LastUpdateID,
		initialized:  true,
	}
	for _, lvl := range snap.Bids {
		if lvl.Qty > 0 {
			next.bids[lvl.Price] = lvl.Qty
		}
	}
	for _, lvl := range snap.Asks {
		if lvl.Qty > 0 {
			next.asks[lvl.Price] = lvl.Qty
		}
	}
	e.state.Store(next)
	e.outOfSync.Store(false)
	f.drainBuffer(e)
}

// ApplyDelta applies an incremental update. If the symbol has no snapshot
// yet, or the delta does not extend the current sequence, it is buffered
// (bounded) for a later snapshot to drain, and ApplyDelta reports false.
func (f *Fabric) ApplyDelta(delta Delta) (bool, error) {
	e := f.entry(delta.Symbol)
	cur := e.state.Load()
	if cur == nil || !cur.initialized {
		f.buffer(e, delta)
		return false, ErrNotInitialized
	}
	ok, err := f.applyOne(e, cur, delta)
	if !ok {
		f.buffer(e, delta)
	}
	return ok, err
}

// applyOne applies a single delta against expected, storing the clone only
// if the sequence check passes.
func (f *Fabric) applyOne(e *symbolEntry, expected *bookState, delta Delta) (bool, error) {
	want := expected.lastUpdateID + 1
	if delta.FirstUpdateID > want || delta.FinalUpdateID < want {
		e.outOfSync.Store(true)
		return false, fmt.Errorf("%w: expected update %d, got [%d,%d]", ErrSequenceGap, want, delta.FirstUpdateID, delta.FinalUpdateID)
	}
	next := expected.clone()
	applyLevels(next.bids, delta.Bids)
	applyLevels(next.asks, delta.Asks)
	next.lastUpdateID = delta.FinalUpdateID
	e.state.Store(next)
	e.outOfSync.Store(false)
	return true, nil
}

func (f *Fabric) buffer(e *symbolEntry, delta Delta) {
	e.bufMu.Lock()
	defer e.bufMu.Unlock()
	e.buffer = append(e.buffer, delta)
	if len(e.buffer) > f.bufferLimit {
		f.log.Warn("out-of-sync buffer overflow, dropping oldest delta",
			zap.String("symbol", delta.Symbol.String()), zap.Int("limit", f.bufferLimit))
		e.buffer = e.buffer[len(e.buffer)-f.bufferLimit:]
	}
}

// drainBuffer replays buffered deltas in FirstUpdateID order, starting
// from the one whose range contains last_update_id+1, stopping at the
// first remaining gap (which leaves the symbol flagged out-of-sync,
// requesting a further resync).
func (f *Fabric) drainBuffer(e *symbolEntry) {
	e.bufMu.Lock()
	pending := e.buffer
	e.buffer = nil
	e.bufMu.Unlock()
	if len(pending) == 0 {
		return
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].FirstUpdateID < pending[j].FirstUpdateID })
	for i, d := range pending {
		cur := e.state.Load()
		if d.FinalUpdateID <= cur.lastUpdateID {
			// Already covered by the current state; discard.
			continue
		}
		ok, _ := f.applyOne(e, cur, d)
		if !ok {
			// Leave this and the remaining buffered updates queued; a later
			// snapshot will retry the drain from scratch.
			e.bufMu.Lock()
			e.buffer = append(e.buffer, pending[i:]...)
			e.bufMu.Unlock()
			return
		}
	}
}
