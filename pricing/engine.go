package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

// Engine is the pricing & auction component (spec §4.6).
type Engine struct {
	store        Store
	fallbackRate types.Rate
	logger       *slog.Logger
	now          func() time.Time

	onLowLiquidity func(invID id.InvoiceID, eligibleBids int)
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLowLiquidityHook registers a callback fired whenever an auction
// closes with fewer than MinEligibleBids valid bids.
func WithLowLiquidityHook(fn func(invID id.InvoiceID, eligibleBids int)) Option {
	return func(e *Engine) { e.onLowLiquidity = fn }
}

// New constructs an Engine. fallbackRate is used when an auction closes
// with at least one but fewer than MinEligibleBids eligible bids (spec §4.6).
func New(store Store, fallbackRate types.Rate, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		fallbackRate: fallbackRate,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OpenAuction starts a bounded bidding window for invoiceID.
func (e *Engine) OpenAuction(ctx context.Context, invID id.InvoiceID, duration time.Duration) (*Auction, error) {
	if duration <= 0 {
		duration = AuctionWindow
	}
	now := e.now()
	a := &Auction{
		InvoiceID: invID,
		Status:    AuctionOpen,
		OpenedAt:  now,
		ClosesAt:  now.Add(duration),
	}
	if err := e.store.CreateAuction(ctx, a); err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}
	return a, nil
}

// SubmitBid records a capital provider's bid against an open auction.
// Bids outside [MinDiscountRate, MaxDiscountRate] are rejected at
// submission rather than silently discarded at close.
func (e *Engine) SubmitBid(ctx context.Context, bid *CapitalBid) error {
	if !bid.DiscountRate.Between(MinDiscountRate, MaxDiscountRate) {
		return ErrBidOutOfRange
	}
	if err := e.store.AddBid(ctx, bid); err != nil {
		return fmt.Errorf("add bid: %w", err)
	}
	return nil
}

// CloseAndSelect closes the auction and selects the winning bid: the
// lowest discount rate among bids that are unexpired and whose capacity
// covers invoiceAmount. If fewer than MinEligibleBids qualify, the
// low-liquidity hook fires and the quote carries the configured fallback
// rate, with the lowest-rate eligible bid's provider advancing capital.
// If no bid qualifies, it returns ErrNoEligibleBids and issues no quote.
func (e *Engine) CloseAndSelect(ctx context.Context, invID id.InvoiceID, invoiceAmount types.Money, terms int) (*CapitalBid, *Quote, error) {
	now := e.now()
	bids, err := e.store.ListBids(ctx, invID)
	if err != nil {
		return nil, nil, fmt.Errorf("list bids: %w", err)
	}

	var eligible []*CapitalBid
	for _, b := range bids {
		if b.IsUsable(now, invoiceAmount) {
			eligible = append(eligible, b)
		}
	}

	if err := e.store.CloseAuction(ctx, invID); err != nil {
		return nil, nil, fmt.Errorf("close auction: %w", err)
	}

	var winner *CapitalBid
	lowLiquidity := len(eligible) < MinEligibleBids
	if lowLiquidity {
		e.logger.Warn("low liquidity at auction close", "invoice_id", invID.String(), "eligible_bids", len(eligible))
		if e.onLowLiquidity != nil {
			e.onLowLiquidity(invID, len(eligible))
		}
		if len(eligible) == 0 {
			return nil, nil, ErrNoEligibleBids
		}
	}

	winner = lowestRate(eligible)
	rate := e.fallbackRate
	var providerID id.AccountID
	if winner != nil {
		if !lowLiquidity {
			rate = winner.DiscountRate
		}
		providerID = winner.ProviderID
	}

	totalMinor := TotalCost(invoiceAmount.Amount, rate, terms)
	quote := &Quote{
		ID:           id.NewQuoteID(),
		InvoiceID:    invID,
		ProviderID:   providerID,
		Terms:        terms,
		DiscountRate: rate,
		TotalCost:    types.Money{Amount: totalMinor, Currency: invoiceAmount.Currency},
		IssuedAt:     now,
		ExpiresAt:    now.Add(QuoteTTL),
	}
	if err := e.store.CreateQuote(ctx, quote); err != nil {
		return nil, nil, fmt.Errorf("create quote: %w", err)
	}
	return winner, quote, nil
}

// GetQuote returns the live quote for (invoice, terms) if still valid, or
// an error if none exists; callers needing fresh price discovery should
// run a new auction rather than have GetQuote do so implicitly (spec
// §4.6: "re-runs price discovery" is the caller's OpenAuction/
// CloseAndSelect round-trip, not a hidden side effect here).
func (e *Engine) GetQuote(ctx context.Context, invID id.InvoiceID, terms int) (*Quote, error) {
	q, err := e.store.GetLiveQuote(ctx, invID, terms)
	if err != nil {
		return nil, fmt.Errorf("get live quote: %w", err)
	}
	if !q.IsValid(e.now()) {
		return nil, ErrQuoteExpired
	}
	return q, nil
}

// Consume marks a quote used at acceptance time. The underlying store
// call is the atomic guard against double-acceptance (spec §8 Boundaries).
func (e *Engine) Consume(ctx context.Context, quoteID id.QuoteID) error {
	now := e.now()
	q, err := e.store.GetQuote(ctx, quoteID)
	if err != nil {
		return fmt.Errorf("get quote: %w", err)
	}
	if q.Used {
		return ErrQuoteUsed
	}
	if now.After(q.ExpiresAt) {
		return ErrQuoteExpired
	}
	return e.store.ConsumeQuote(ctx, quoteID, now)
}

func lowestRate(bids []*CapitalBid) *CapitalBid {
	var best *CapitalBid
	for _, b := range bids {
		if best == nil || b.DiscountRate.LessThan(best.DiscountRate) {
			best = b
		}
	}
	return best
}
