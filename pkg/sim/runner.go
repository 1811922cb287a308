package sim

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/axiomquant/tradecore/pkg/fabric"
	"github.com/axiomquant/tradecore/pkg/feed"
	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/matching"
	"github.com/axiomquant/tradecore/pkg/types"
)

// MarketState is the per-tick snapshot an Agent observes: the reference
// mid, top-of-book, and shallow depth from the book fabric.
type MarketState struct {
	Symbol types.QualifiedSymbol
	Mid    fixedpoint.Price
	Depth  fabric.Depth
	Tick   int64
}

// Action is what an Agent asks the runner to do on its behalf this tick.
type Action struct {
	Submit *types.Order // nil means no action
}

// Agent is the runner's plugin point, mirroring the teacher's
// TxGenerator/TxFeeder split between "decide what to submit" and "drive
// the loop": OnTick decides what to do given the current market state,
// OnFill is notified of the trades that resulted from its own submitted
// orders.
type Agent interface {
	ID() string
	OnTick(state MarketState) []Action
	OnFill(trades []types.Trade)
}

// Metrics accumulates simple counters across a simulation run.
type Metrics struct {
	Ticks           int64
	OrdersSubmitted int64
	OrdersFilled    int64
	OrdersRejected  int64
}

// Runner drives the per-tick loop of spec §4.8: tick the reference feed,
// build market state from the fabric, invoke every agent, submit their
// actions through the router, dispatch fills back to the originating
// agent, advance the clock, and accumulate metrics. Shutdown is
// cooperative: Stop flips an atomic flag that every loop iteration checks
// between ticks, matching spec §5's cancellation model exactly (no
// in-flight operation is preempted).
type Runner struct {
	symbol   types.QualifiedSymbol
	feed     *feed.ReferenceFeed
	fab      *fabric.Fabric
	gen      *Generator
	router   *matching.Router
	agents   []Agent
	interval time.Duration
	clock    *feed.SimClock
	log      *zap.Logger

	stopped atomic.Bool
	metrics Metrics
}

// NewRunner wires together the reference feed, book fabric, synthetic
// book generator, order router, and agent roster for one symbol.
func NewRunner(symbol types.QualifiedSymbol, refFeed *feed.ReferenceFeed, fab *fabric.Fabric, gen *Generator, router *matching.Router, interval time.Duration, clock *feed.SimClock, log *zap.Logger, agents ...Agent) *Runner {
	return &Runner{
		symbol:   symbol,
		feed:     refFeed,
		fab:      fab,
		gen:      gen,
		router:   router,
		agents:   agents,
		interval: interval,
		clock:    clock,
		log:      log.With(zap.String("component", "sim_runner")),
	}
}

// Stop requests cooperative shutdown; the current tick finishes before
// the loop observes the flag.
func (r *Runner) Stop() {
	r.stopped.Store(true)
}

// Metrics returns a snapshot of the run's accumulated counters.
func (r *Runner) Metrics() Metrics {
	return Metrics{
		Ticks:           atomic.LoadInt64(&r.metrics.Ticks),
		OrdersSubmitted: atomic.LoadInt64(&r.metrics.OrdersSubmitted),
		OrdersFilled:    atomic.LoadInt64(&r.metrics.OrdersFilled),
		OrdersRejected:  atomic.LoadInt64(&r.metrics.OrdersRejected),
	}
}

// RunTicks drives up to maxTicks iterations of the loop, stopping earlier
// if Stop is called. maxTicks <= 0 means run until Stop is called.
func (r *Runner) RunTicks(maxTicks int64) {
	for i := int64(0); maxTicks <= 0 || i < maxTicks; i++ {
		if r.stopped.Load() {
			return
		}
		r.tick(i)
	}
}

func (r *Runner) tick(tickNum int64) {
	mid := r.feed.Tick()

	snap := r.gen.Generate(r.symbol, mid)
	r.fab.ApplySnapshot(snap)
	depth, _ := r.fab.Get(r.symbol)

	state := MarketState{Symbol: r.symbol, Mid: mid, Depth: depth, Tick: tickNum}

	now := fixedpoint.TimestampNs(r.clock.Now().UnixNano())

	for _, agent := range r.agents {
		actions := agent.OnTick(state)
		var trades []types.Trade
		for _, action := range actions {
			if action.Submit == nil {
				continue
			}
			atomic.AddInt64(&r.metrics.OrdersSubmitted, 1)
			result, err := r.router.Submit(action.Submit, now)
			if err != nil {
				atomic.AddInt64(&r.metrics.OrdersRejected, 1)
				r.log.Debug("order rejected", zap.String("agent", agent.ID()), zap.Error(err))
				continue
			}
			if len(result) > 0 {
				atomic.AddInt64(&r.metrics.OrdersFilled, 1)
				trades = append(trades, result...)
			}
		}
		if len(trades) > 0 {
			agent.OnFill(trades)
		}
	}

	r.clock.Advance(r.interval)
	atomic.AddInt64(&r.metrics.Ticks, 1)
}
