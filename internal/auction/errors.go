package auction

import "errors"

var (
	// Authorization
	ErrUnauthorized = errors.New("auction: caller lacks required role")

	// State-machine violations
	ErrUnknownAuction  = errors.New("auction: unknown auction")
	ErrAuctionOver     = errors.New("auction: auction is over")
	ErrBidExists       = errors.New("auction: bidder already has an active bid")
	ErrNoBid           = errors.New("auction: caller has no active bid")
	ErrNotExpired      = errors.New("auction: price has not decayed to zero")
	ErrBidNotCallable  = errors.New("auction: current price is still above the bid price")
	ErrPriceBandTaken  = errors.New("auction: current price at or below best bid, finalize instead")

	// Invariant / arithmetic
	ErrZeroPrice      = errors.New("auction: current price is zero")
	ErrPriceAboveMax  = errors.New("auction: current price above max price")
	ErrBidTooHigh     = errors.New("auction: bid price must be below current price")
	ErrInvalidAmount  = errors.New("auction: price and lot must be positive")
	ErrNoLotAvailable = errors.New("auction: no lot available after bid reservations")
)
