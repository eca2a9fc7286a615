package pricing

import "errors"

var (
	ErrAuctionNotFound = errors.New("pricing: auction not found")
	ErrAuctionClosed   = errors.New("pricing: auction already closed")
	ErrBidExpired      = errors.New("pricing: bid expired")
	ErrBidOutOfRange   = errors.New("pricing: discount rate out of range")
	ErrBidCapacity     = errors.New("pricing: bid capacity insufficient")
	ErrNoEligibleBids  = errors.New("pricing: no eligible bids")
	ErrQuoteNotFound   = errors.New("pricing: quote not found")
	ErrQuoteExpired    = errors.New("pricing: quote expired")
	ErrQuoteUsed       = errors.New("pricing: quote already used")
)
