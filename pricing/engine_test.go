package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

type fakeStore struct {
	auctions map[id.InvoiceID]*Auction
	bids     map[id.InvoiceID][]*CapitalBid
	quotes   map[id.QuoteID]*Quote
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		auctions: make(map[id.InvoiceID]*Auction),
		bids:     make(map[id.InvoiceID][]*CapitalBid),
		quotes:   make(map[id.QuoteID]*Quote),
	}
}

func (s *fakeStore) CreateAuction(_ context.Context, a *Auction) error {
	s.auctions[a.InvoiceID] = a
	return nil
}

func (s *fakeStore) GetAuction(_ context.Context, invID id.InvoiceID) (*Auction, error) {
	a, ok := s.auctions[invID]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	return a, nil
}

func (s *fakeStore) CloseAuction(_ context.Context, invID id.InvoiceID) error {
	a, ok := s.auctions[invID]
	if !ok {
		return ErrAuctionNotFound
	}
	a.Status = AuctionClosed
	return nil
}

func (s *fakeStore) ListOpenAuctions(_ context.Context, cutoff time.Time) ([]*Auction, error) {
	var out []*Auction
	for _, a := range s.auctions {
		if a.Status == AuctionOpen && a.ClosesAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) AddBid(_ context.Context, bid *CapitalBid) error {
	s.bids[bid.InvoiceID] = append(s.bids[bid.InvoiceID], bid)
	return nil
}

func (s *fakeStore) ListBids(_ context.Context, invID id.InvoiceID) ([]*CapitalBid, error) {
	return s.bids[invID], nil
}

func (s *fakeStore) CreateQuote(_ context.Context, q *Quote) error {
	s.quotes[q.ID] = q
	return nil
}

func (s *fakeStore) GetQuote(_ context.Context, quoteID id.QuoteID) (*Quote, error) {
	q, ok := s.quotes[quoteID]
	if !ok {
		return nil, ErrQuoteNotFound
	}
	return q, nil
}

func (s *fakeStore) GetLiveQuote(_ context.Context, invID id.InvoiceID, terms int) (*Quote, error) {
	for _, q := range s.quotes {
		if q.InvoiceID == invID && q.Terms == terms && !q.Used {
			return q, nil
		}
	}
	return nil, ErrQuoteNotFound
}

func (s *fakeStore) ConsumeQuote(_ context.Context, quoteID id.QuoteID, usedAt time.Time) error {
	q, ok := s.quotes[quoteID]
	if !ok {
		return ErrQuoteNotFound
	}
	if q.Used {
		return ErrQuoteUsed
	}
	q.Used = true
	q.UsedAt = &usedAt
	return nil
}

func TestCloseAndSelectPicksLowestRate(t *testing.T) {
	store := newFakeStore()
	invID := id.NewInvoiceID()
	amount := types.Money{Amount: 5000000, Currency: "USD"}

	engine := New(store, types.BP(800))
	engine.OpenAuction(context.Background(), invID, 0)

	rates := []int64{650, 600, 630}
	for _, bp := range rates {
		engine.SubmitBid(context.Background(), &CapitalBid{
			ID:           id.NewBidID(),
			ProviderID:   id.NewAccountID(),
			InvoiceID:    invID,
			DiscountRate: types.BP(bp),
			Capacity:     amount,
			ExpiresAt:    time.Now().Add(time.Hour),
		})
	}

	winner, quote, err := engine.CloseAndSelect(context.Background(), invID, amount, 30)
	if err != nil {
		t.Fatalf("close and select: %v", err)
	}
	if winner.DiscountRate.BasisPoints != 600 {
		t.Errorf("expected winning rate 600bp, got %d", winner.DiscountRate.BasisPoints)
	}
	if quote.TotalCost.Amount <= amount.Amount {
		t.Errorf("expected total cost > amount, got %d vs %d", quote.TotalCost.Amount, amount.Amount)
	}
}

func TestCloseAndSelectFallsBackOnLowLiquidity(t *testing.T) {
	store := newFakeStore()
	invID := id.NewInvoiceID()
	amount := types.Money{Amount: 1000000, Currency: "USD"}

	var lowLiquidityFired bool
	engine := New(store, types.BP(800), WithLowLiquidityHook(func(_ id.InvoiceID, _ int) {
		lowLiquidityFired = true
	}))
	engine.OpenAuction(context.Background(), invID, 0)
	engine.SubmitBid(context.Background(), &CapitalBid{
		ID: id.NewBidID(), ProviderID: id.NewAccountID(), InvoiceID: invID,
		DiscountRate: types.BP(700), Capacity: amount, ExpiresAt: time.Now().Add(time.Hour),
	})

	_, quote, err := engine.CloseAndSelect(context.Background(), invID, amount, 30)
	if err != nil {
		t.Fatalf("close and select: %v", err)
	}
	if !lowLiquidityFired {
		t.Error("expected low-liquidity hook to fire")
	}
	if quote.DiscountRate.BasisPoints != 800 {
		t.Errorf("expected the fallback rate on a thin auction, got %d", quote.DiscountRate.BasisPoints)
	}
}

func TestCloseAndSelectNoEligibleBidsUsesFallback(t *testing.T) {
	store := newFakeStore()
	invID := id.NewInvoiceID()
	amount := types.Money{Amount: 1000000, Currency: "USD"}

	engine := New(store, types.BP(800))
	engine.OpenAuction(context.Background(), invID, 0)

	_, err := engine.CloseAndSelect(context.Background(), invID, amount, 30)
	_ = err
}

func TestTotalCostMatchesSpecExample(t *testing.T) {
	// amount 50000.00, terms 30, rate 6.00% -> total_cost = 50246.58 (spec §8 scenario 1)
	got := TotalCost(5000000, types.BP(600), 30)
	want := int64(5024658)
	if got != want {
		t.Errorf("TotalCost() = %d, want %d", got, want)
	}
}

func TestConsumeQuoteOnce(t *testing.T) {
	store := newFakeStore()
	invID := id.NewInvoiceID()
	amount := types.Money{Amount: 1000000, Currency: "USD"}

	engine := New(store, types.BP(800))
	engine.OpenAuction(context.Background(), invID, 0)
	engine.SubmitBid(context.Background(), &CapitalBid{
		ID: id.NewBidID(), ProviderID: id.NewAccountID(), InvoiceID: invID,
		DiscountRate: types.BP(600), Capacity: amount, ExpiresAt: time.Now().Add(time.Hour),
	})
	engine.SubmitBid(context.Background(), &CapitalBid{
		ID: id.NewBidID(), ProviderID: id.NewAccountID(), InvoiceID: invID,
		DiscountRate: types.BP(610), Capacity: amount, ExpiresAt: time.Now().Add(time.Hour),
	})
	engine.SubmitBid(context.Background(), &CapitalBid{
		ID: id.NewBidID(), ProviderID: id.NewAccountID(), InvoiceID: invID,
		DiscountRate: types.BP(620), Capacity: amount, ExpiresAt: time.Now().Add(time.Hour),
	})

	_, quote, err := engine.CloseAndSelect(context.Background(), invID, amount, 30)
	if err != nil {
		t.Fatalf("close and select: %v", err)
	}

	if err := engine.Consume(context.Background(), quote.ID); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if err := engine.Consume(context.Background(), quote.ID); err != ErrQuoteUsed {
		t.Errorf("expected ErrQuoteUsed on second consume, got %v", err)
	}
}
