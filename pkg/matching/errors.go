package matching

import "errors"

// Sentinel errors for the validation/resource/state taxonomy.
var (
	ErrTickViolation      = errors.New("matching: price is not a multiple of the market's tick size")
	ErrLotViolation       = errors.New("matching: quantity violates the market's lot size or bounds")
	ErrMissingPrice       = errors.New("matching: order type requires a price")
	ErrUnknownInstrument  = errors.New("matching: unknown symbol")
	ErrRateLimited        = errors.New("matching: rate limiter denied the order")
	ErrWouldCross         = errors.New("matching: post-only order would cross the book")
	ErrMarketUntradeable  = errors.New("matching: market has no liquidity to price this order")
	ErrInsufficientLiquidity = errors.New("matching: fill-or-kill order cannot be fully filled")
	ErrChannelFull        = errors.New("matching: router channel is full")
)
