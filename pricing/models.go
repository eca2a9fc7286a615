// Package pricing runs the capital-provider auction and issues
// time-bounded quotes (spec §4.6). Capital providers submit bids during a
// bounded window; the lowest eligible discount rate wins, and the
// resulting price is bound to a quote that can be consumed exactly once.
package pricing

import (
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

// AuctionWindow is the default bidding window (spec §4.6).
const AuctionWindow = 10 * time.Second

// QuoteTTL is how long an issued quote remains valid (spec §3).
const QuoteTTL = 5 * time.Minute

// MinEligibleBids is the number of valid bids under which the auction
// falls back to a configured rate and emits a low-liquidity event.
const MinEligibleBids = 3

// MinDiscountRate and MaxDiscountRate bound an admissible bid (spec §3).
var (
	MinDiscountRate = types.BP(50)   // 0.50%
	MaxDiscountRate = types.BP(1500) // 15.00%
)

// AuctionStatus is the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionOpen   AuctionStatus = "open"
	AuctionClosed AuctionStatus = "closed"
)

// Auction is the bounded-window bidding process for one invoice.
type Auction struct {
	InvoiceID id.InvoiceID  `json:"invoice_id"`
	Status    AuctionStatus `json:"status"`
	OpenedAt  time.Time     `json:"opened_at"`
	ClosesAt  time.Time     `json:"closes_at"`
}

// CapitalBid is a capital provider's offer to finance an invoice.
type CapitalBid struct {
	ID           id.BidID     `json:"id"`
	ProviderID   id.AccountID `json:"provider_id"`
	InvoiceID    id.InvoiceID `json:"invoice_id"`
	DiscountRate types.Rate   `json:"discount_rate"`
	Capacity     types.Money  `json:"capacity"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// IsUsable reports whether the bid may still be selected: not expired,
// and capacity covers the invoice amount (the provider's current reserved
// liquidity is checked by the caller via account.Registry).
func (b *CapitalBid) IsUsable(now time.Time, invoiceAmount types.Money) bool {
	if now.After(b.ExpiresAt) {
		return false
	}
	return b.Capacity.Amount >= invoiceAmount.Amount
}

// Quote is a signed price bound to (invoice, terms, rate, total cost),
// consumable at most once.
type Quote struct {
	ID           id.QuoteID   `json:"id"`
	InvoiceID    id.InvoiceID `json:"invoice_id"`
	ProviderID   id.AccountID `json:"provider_id"`
	Terms        int          `json:"terms_days"`
	DiscountRate types.Rate   `json:"discount_rate"`
	TotalCost    types.Money  `json:"total_cost"`
	IssuedAt     time.Time    `json:"issued_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
	Used         bool         `json:"used"`
	UsedAt       *time.Time   `json:"used_at,omitempty"`
}

// IsValid reports whether the quote may still be consumed: unused and not
// past its expiry.
func (q *Quote) IsValid(now time.Time) bool {
	return !q.Used && !now.After(q.ExpiresAt)
}

// TotalCost computes total_cost = amount * (1 + discount_rate * terms /
// 365), rounded half-away-from-zero to the currency's minor unit (spec
// §4.6). amount is in minor units.
func TotalCost(amountMinor int64, rate types.Rate, termsDays int) int64 {
	// amount * (1 + rate.Fraction() * termsDays/365), computed in minor
	// units with half-away-from-zero rounding.
	numerator := float64(amountMinor) * (1 + rate.Fraction()*float64(termsDays)/365)
	if numerator >= 0 {
		return int64(numerator + 0.5)
	}
	return int64(numerator - 0.5)
}
