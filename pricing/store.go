package pricing

import (
	"context"
	"time"

	"github.com/flowcap/settlenet/id"
)

// Store is the persistence contract for auctions, bids, and quotes.
type Store interface {
	CreateAuction(ctx context.Context, a *Auction) error
	GetAuction(ctx context.Context, invID id.InvoiceID) (*Auction, error)
	CloseAuction(ctx context.Context, invID id.InvoiceID) error
	// ListOpenAuctions returns every auction still in AuctionOpen status
	// whose ClosesAt is before cutoff, for the scheduler's stale-auction
	// sweep (spec §4.10).
	ListOpenAuctions(ctx context.Context, cutoff time.Time) ([]*Auction, error)

	AddBid(ctx context.Context, bid *CapitalBid) error
	ListBids(ctx context.Context, invID id.InvoiceID) ([]*CapitalBid, error)

	CreateQuote(ctx context.Context, q *Quote) error
	GetQuote(ctx context.Context, quoteID id.QuoteID) (*Quote, error)
	GetLiveQuote(ctx context.Context, invID id.InvoiceID, terms int) (*Quote, error)
	// ConsumeQuote atomically marks a quote used, failing if it is already
	// used or if usedAt is after expires_at. Implementations must take a
	// row-level lock for the duration of the call so that two concurrent
	// acceptances on the same quote cannot both succeed (spec §8 Boundaries).
	ConsumeQuote(ctx context.Context, quoteID id.QuoteID, usedAt time.Time) error
}
