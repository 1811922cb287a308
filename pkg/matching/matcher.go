package matching

import (
	"sort"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

// LevelFill is one resting order's share of a single level's match.
type LevelFill struct {
	Maker *types.Order
	Qty   fixedpoint.Quantity
}

// Matcher allocates an incoming quantity against a single FIFO price
// level. It never looks across levels — the book drives level iteration.
type Matcher interface {
	Name() string
	MatchLevel(level []*types.Order, incoming fixedpoint.Quantity) (fills []LevelFill, remaining fixedpoint.Quantity)
}

// PriceTimeMatcher fills resting orders strictly in FIFO order, splitting
// the incoming quantity until it is exhausted or the level is empty.
type PriceTimeMatcher struct{}

func (PriceTimeMatcher) Name() string { return "price-time" }

func (PriceTimeMatcher) MatchLevel(level []*types.Order, incoming fixedpoint.Quantity) ([]LevelFill, fixedpoint.Quantity) {
	var fills []LevelFill
	for _, maker := range level {
		if incoming <= 0 {
			break
		}
		avail := maker.Remaining()
		if avail <= 0 {
			continue
		}
		match := avail
		if incoming < match {
			match = incoming
		}
		fills = append(fills, LevelFill{Maker: maker, Qty: match})
		incoming -= match
	}
	return fills, incoming
}

// ProRataMatcher allocates the incoming quantity across every resting
// order at the level proportional to its size, per spec §4.1: each
// resting order of size r_i receives round(I * r_i / T); the
// largest-remainder method reallocates rounding dust to the largest
// orders by size, then by age (FIFO position, oldest first).
type ProRataMatcher struct{}

func (ProRataMatcher) Name() string { return "pro-rata" }

func (ProRataMatcher) MatchLevel(level []*types.Order, incoming fixedpoint.Quantity) ([]LevelFill, fixedpoint.Quantity) {
	var total fixedpoint.Quantity
	for _, maker := range level {
		total += maker.Remaining()
	}
	if total <= 0 || incoming <= 0 {
		return nil, incoming
	}

	target := incoming
	if total < target {
		target = total
	}

	type share struct {
		idx       int
		base      fixedpoint.Quantity
		remainder int64 // (target*r_i) mod total, scaled by total for exact comparison
		size      fixedpoint.Quantity
	}
	shares := make([]share, 0, len(level))
	var allocated fixedpoint.Quantity
	for i, maker := range level {
		r := maker.Remaining()
		if r <= 0 {
			continue
		}
		num := int64(target) * int64(r)
		base := fixedpoint.Quantity(num / int64(total))
		rem := num % int64(total)
		shares = append(shares, share{idx: i, base: base, remainder: rem, size: r})
		allocated += base
	}

	dust := target - allocated
	// Largest remainder first; ties broken by size descending, then by
	// original FIFO position (oldest, i.e. lower idx, first).
	sort.SliceStable(shares, func(i, j int) bool {
		if shares[i].remainder != shares[j].remainder {
			return shares[i].remainder > shares[j].remainder
		}
		if shares[i].size != shares[j].size {
			return shares[i].size > shares[j].size
		}
		return shares[i].idx < shares[j].idx
	})
	for i := 0; i < len(shares) && dust > 0; i++ {
		shares[i].base++
		dust--
	}

	// Restore FIFO order for the emitted fills so downstream bookkeeping
	// (e.g. settlement logging) reads top-to-bottom like the book itself.
	sort.Slice(shares, func(i, j int) bool { return shares[i].idx < shares[j].idx })

	fills := make([]LevelFill, 0, len(shares))
	for _, s := range shares {
		if s.base <= 0 {
			continue
		}
		fills = append(fills, LevelFill{Maker: level[s.idx], Qty: s.base})
	}
	return fills, incoming - target
}
