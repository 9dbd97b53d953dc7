package auctionerrors

import "errors"

// Registry/repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrNoBids          = errors.New("no bids found for auction")
)

// Admission errors: every one of these is an expected, recoverable outcome
// that still yields a terminal Bid record explaining why.
var (
	ErrAuctionNotActive     = errors.New("auction not open")
	ErrPriceMismatch        = errors.New("bid price below current price")
	ErrInsufficientQuantity = errors.New("insufficient remaining quantity")
)

// Lifecycle errors
var (
	ErrNotReadyForSettlement = errors.New("auction not ready for settlement")
	ErrInvalidTransition     = errors.New("invalid status transition")
)

// Validation errors
var (
	ErrInvalidBid     = errors.New("invalid bid")
	ErrInvalidAuction = errors.New("invalid auction parameters")
)
