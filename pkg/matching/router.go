package matching

import (
	"go.uber.org/zap"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
	"github.com/axiomquant/tradecore/pkg/types"
)

// submission is one order queued for its symbol's actor goroutine, with a
// channel back to the caller for the result.
type submission struct {
	order  *types.Order
	now    fixedpoint.TimestampNs
	result chan<- submissionResult
}

type submissionResult struct {
	trades []types.Trade
	err    error
}

// symbolActor serializes every order for one symbol through a single
// goroutine reading off a bounded channel, giving the book fabric's
// single-writer guarantee per spec §5.
type symbolActor struct {
	engine *Engine
	inbox  chan submission
	done   chan struct{}
}

// Router dispatches orders to per-symbol actors via bounded channels,
// matching spec §5's "router dispatches orders to per-symbol actors via a
// bounded channel" concurrency model. Grounded on the teacher's
// channel-based tx feeder (pkg/app/perp/txfeeder.go) generalized from one
// global feed to one actor per symbol.
type Router struct {
	log     *zap.Logger
	actors  map[types.QualifiedSymbol]*symbolActor
	backlog int
}

// NewRouter returns a router whose per-symbol channels hold up to backlog
// queued orders before Submit reports overflow with ErrChannelFull.
func NewRouter(backlog int, log *zap.Logger) *Router {
	return &Router{
		log:     log.With(zap.String("component", "router")),
		actors:  make(map[types.QualifiedSymbol]*symbolActor),
		backlog: backlog,
	}
}

// Register wires an engine as the actor for its symbol and starts its
// goroutine.
func (r *Router) Register(engine *Engine) {
	a := &symbolActor{
		engine: engine,
		inbox:  make(chan submission, r.backlog),
		done:   make(chan struct{}),
	}
	r.actors[engine.market.Symbol] = a
	go a.run()
}

func (a *symbolActor) run() {
	for {
		select {
		case s := <-a.inbox:
			trades, err := a.engine.Submit(s.order, s.now)
			s.result <- submissionResult{trades: trades, err: err}
		case <-a.done:
			return
		}
	}
}

// Stop shuts down every actor goroutine. Outstanding book state is left
// untouched, matching spec §5's "outstanding orders on the book remain."
func (r *Router) Stop() {
	for _, a := range r.actors {
		close(a.done)
	}
}

// Submit enqueues order on its symbol's actor and blocks for the result.
// Returns ErrChannelFull immediately (without blocking) if the actor's
// inbox is saturated, the backpressure behavior spec §5 requires.
func (r *Router) Submit(order *types.Order, now fixedpoint.TimestampNs) ([]types.Trade, error) {
	a, ok := r.actors[order.Symbol]
	if !ok {
		return nil, ErrUnknownInstrument
	}
	result := make(chan submissionResult, 1)
	select {
	case a.inbox <- submission{order: order, now: now, result: result}:
	default:
		return nil, ErrChannelFull
	}
	res := <-result
	return res.trades, res.err
}
