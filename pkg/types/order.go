package types

import (
	"fmt"

	"github.com/axiomquant/tradecore/pkg/fixedpoint"
)

// Side is the direction of an order or fill.
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType is the order's execution style.
type OrderType int8

const (
	Market OrderType = iota
	Limit
	PostOnly
	Stop
	StopLimit
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case PostOnly:
		return "post_only"
	case Stop:
		return "stop"
	case StopLimit:
		return "stop_limit"
	default:
		return "unknown"
	}
}

// HasPrice reports whether this order type carries a resting limit price.
func (t OrderType) HasPrice() bool {
	return t == Limit || t == PostOnly || t == StopLimit
}

// TIF is the order's time-in-force.
type TIF int8

const (
	GTC TIF = iota // Good-Til-Cancel
	IOC            // Immediate-Or-Cancel
	FOK            // Fill-Or-Kill
)

func (t TIF) String() string {
	switch t {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	default:
		return "unknown"
	}
}

// RequiresImmediateExecution reports whether any unfilled remainder must be
// cancelled rather than rested, per spec §4.1 step 5.
func (t TIF) RequiresImmediateExecution() bool {
	return t == IOC || t == FOK
}

// OrderStatus is the lifecycle state of an order. Terminal statuses
// (Filled, Cancelled, Rejected) are final.
type OrderStatus int8

const (
	New OrderStatus = iota
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (s OrderStatus) String() string {
	switch s {
	case New:
		return "new"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the status can never transition again.
func (s OrderStatus) IsTerminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// Order is a single resting or transient order.
type Order struct {
	ID            OrderID
	ClientOrderID string // optional, empty if unset
	Symbol        QualifiedSymbol
	Owner         AccountID
	Side          Side
	Type          OrderType
	Quantity      fixedpoint.Quantity
	Price         fixedpoint.Price  // zero if unset (Market orders)
	StopPrice     fixedpoint.Price  // zero if unset
	TIF           TIF
	FilledQty     fixedpoint.Quantity
	Status        OrderStatus
	CreatedAt     fixedpoint.TimestampNs
	UpdatedAt     fixedpoint.TimestampNs
	StrategyID    string  // optional, used by the position pipeline
	ParentOrderID OrderID // optional, set on every child of a sliced execution
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() fixedpoint.Quantity {
	return o.Quantity - o.FilledQty
}

// Validate enforces the data-model invariants from spec §3: 0 <=
// filled <= quantity, and a limit-style order resting on the book must
// carry a price and a positive remaining quantity.
func (o *Order) Validate() error {
	if o.FilledQty < 0 || o.FilledQty > o.Quantity {
		return fmt.Errorf("order %s: filled quantity %s out of [0,%s]", o.ID, o.FilledQty, o.Quantity)
	}
	if o.Type.HasPrice() && o.Price <= 0 {
		return fmt.Errorf("order %s: %s order requires a positive price", o.ID, o.Type)
	}
	if !o.Status.IsTerminal() && o.Type.HasPrice() && o.Remaining() <= 0 {
		return fmt.Errorf("order %s: resting limit order must have positive remaining quantity", o.ID)
	}
	return nil
}

// ApplyFill advances the order's filled quantity and status. size must be
// <= Remaining().
func (o *Order) ApplyFill(size fixedpoint.Quantity, now fixedpoint.TimestampNs) {
	o.FilledQty += size
	o.UpdatedAt = now
	if o.FilledQty >= o.Quantity {
		o.Status = Filled
	} else if o.FilledQty > 0 {
		o.Status = PartiallyFilled
	}
}
