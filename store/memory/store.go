// Package memory is an in-process Store implementation backed by
// mutex-guarded maps, for tests and single-node development. It mirrors
// the shape of the teacher's in-memory billing store: one map per entity,
// one RWMutex guarding all of them.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flowcap/settlenet/account"
	"github.com/flowcap/settlenet/decision"
	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/invoice"
	ledgerpkg "github.com/flowcap/settlenet/ledger"
	"github.com/flowcap/settlenet/pricing"
	"github.com/flowcap/settlenet/settlement"
)

type Store struct {
	mu sync.RWMutex

	accounts map[string]*account.Account

	invoices       map[string]*invoice.Invoice
	invoicesByHash map[string]string // hash -> invoice id

	auctions map[string]*pricing.Auction      // invoice id -> auction
	bids     map[string][]*pricing.CapitalBid // invoice id -> bids
	quotes   map[string]*pricing.Quote

	ledgerEntries []*ledgerpkg.Entry

	decisionRecords []*decision.Record

	settlements          map[string]*settlement.Settlement
	settlementsByInvoice map[string]string            // invoice id -> settlement id
	legs                 map[string][]*settlement.Leg // settlement id -> legs
}

func New() *Store {
	return &Store{
		accounts:             make(map[string]*account.Account),
		invoices:             make(map[string]*invoice.Invoice),
		invoicesByHash:       make(map[string]string),
		auctions:             make(map[string]*pricing.Auction),
		bids:                 make(map[string][]*pricing.CapitalBid),
		quotes:               make(map[string]*pricing.Quote),
		settlements:          make(map[string]*settlement.Settlement),
		settlementsByInvoice: make(map[string]string),
		legs:                 make(map[string][]*settlement.Leg),
	}
}

// ──────────────────────────────────────────────────
// Account
// ──────────────────────────────────────────────────

func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.accounts[a.ID.String()] = &cp
	return nil
}

func (s *Store) GetAccount(_ context.Context, acctID id.AccountID) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[acctID.String()]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) SetAccountStatus(_ context.Context, acctID id.AccountID, status account.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[acctID.String()]
	if !ok {
		return account.ErrNotFound
	}
	a.Status = status
	return nil
}

func (s *Store) UpdateAccountCreditLimit(_ context.Context, acctID id.AccountID, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.accounts[acctID.String()]
	if !ok {
		return account.ErrNotFound
	}
	existing.CreditLimit = a.CreditLimit
	existing.CreditLimitCheckedAt = a.CreditLimitCheckedAt
	return nil
}

func (s *Store) UpdateAccountSanctions(_ context.Context, acctID id.AccountID, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.accounts[acctID.String()]
	if !ok {
		return account.ErrNotFound
	}
	existing.SanctionsClear = a.SanctionsClear
	existing.SanctionsCheckedAt = a.SanctionsCheckedAt
	return nil
}

func (s *Store) AdjustReservedCredit(_ context.Context, acctID id.AccountID, delta int64, at time.Time) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[acctID.String()]
	if !ok {
		return nil, account.ErrNotFound
	}
	a.ReservedCredit.Amount += delta
	a.ReservedAt = at
	cp := *a
	return &cp, nil
}

func (s *Store) ListStaleReservations(_ context.Context, olderThan time.Time) ([]*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*account.Account
	for _, a := range s.accounts {
		if a.ReservedCredit.Amount != 0 && a.ReservedAt.Before(olderThan) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Invoice
// ──────────────────────────────────────────────────

func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.invoicesByHash[inv.Hash]; exists {
		return invoice.ErrHashExists
	}
	cp := *inv
	s.invoices[inv.ID.String()] = &cp
	s.invoicesByHash[inv.Hash] = inv.ID.String()
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[invID.String()]
	if !ok {
		return nil, invoice.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *Store) GetInvoiceByHash(_ context.Context, hash string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	invID, ok := s.invoicesByHash[hash]
	if !ok {
		return nil, invoice.ErrNotFound
	}
	cp := *s.invoices[invID]
	return &cp, nil
}

func (s *Store) ListInvoices(_ context.Context, acctID id.AccountID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*invoice.Invoice
	for _, inv := range s.invoices {
		if inv.SupplierID != acctID && inv.BuyerID != acctID {
			continue
		}
		if opts.Status != "" && inv.Status != opts.Status {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, opts.Offset, opts.Limit), nil
}

func (s *Store) ListPendingInvoices(_ context.Context, olderThan time.Time) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*invoice.Invoice
	for _, inv := range s.invoices {
		if inv.Status == invoice.StatusPending && inv.CreatedAt.Before(olderThan) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) UpdateInvoiceFraudScore(_ context.Context, invID id.InvoiceID, score float64, scoredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[invID.String()]
	if !ok {
		return invoice.ErrNotFound
	}
	inv.FraudScore = score
	inv.FraudScoredAt = scoredAt
	return nil
}

func (s *Store) TransitionInvoice(_ context.Context, invID id.InvoiceID, to invoice.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[invID.String()]
	if !ok {
		return invoice.ErrNotFound
	}
	if !inv.CanTransitionTo(to) {
		return invoice.ErrInvalidTransition
	}
	inv.Status = to
	switch to {
	case invoice.StatusAccepted:
		inv.AcceptedAt = &at
	case invoice.StatusSettled:
		inv.SettledAt = &at
	}
	return nil
}

func (s *Store) ReclassifyInvoiceFailed(_ context.Context, invID id.InvoiceID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[invID.String()]
	if !ok {
		return invoice.ErrNotFound
	}
	if inv.Status != invoice.StatusFailed {
		return invoice.ErrInvalidTransition
	}
	inv.Status = invoice.StatusRejected
	return nil
}

// ──────────────────────────────────────────────────
// Pricing: auctions, bids, quotes
// ──────────────────────────────────────────────────

func (s *Store) CreateAuction(_ context.Context, a *pricing.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.auctions[a.InvoiceID.String()] = &cp
	return nil
}

func (s *Store) GetAuction(_ context.Context, invID id.InvoiceID) (*pricing.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[invID.String()]
	if !ok {
		return nil, pricing.ErrAuctionNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) CloseAuction(_ context.Context, invID id.InvoiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[invID.String()]
	if !ok {
		return pricing.ErrAuctionNotFound
	}
	a.Status = pricing.AuctionClosed
	return nil
}

func (s *Store) ListOpenAuctions(_ context.Context, cutoff time.Time) ([]*pricing.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*pricing.Auction
	for _, a := range s.auctions {
		if a.Status == pricing.AuctionOpen && a.ClosesAt.Before(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) AddBid(_ context.Context, bid *pricing.CapitalBid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *bid
	key := bid.InvoiceID.String()
	s.bids[key] = append(s.bids[key], &cp)
	return nil
}

func (s *Store) ListBids(_ context.Context, invID id.InvoiceID) ([]*pricing.CapitalBid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.bids[invID.String()]
	out := make([]*pricing.CapitalBid, len(src))
	copy(out, src)
	return out, nil
}

func (s *Store) CreateQuote(_ context.Context, q *pricing.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	s.quotes[q.ID.String()] = &cp
	return nil
}

func (s *Store) GetQuote(_ context.Context, quoteID id.QuoteID) (*pricing.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[quoteID.String()]
	if !ok {
		return nil, pricing.ErrQuoteNotFound
	}
	cp := *q
	return &cp, nil
}

func (s *Store) GetLiveQuote(_ context.Context, invID id.InvoiceID, terms int) (*pricing.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *pricing.Quote
	for _, q := range s.quotes {
		if q.InvoiceID != invID || q.Terms != terms || q.Used {
			continue
		}
		if best == nil || q.IssuedAt.After(best.IssuedAt) {
			best = q
		}
	}
	if best == nil {
		return nil, pricing.ErrQuoteNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *Store) ConsumeQuote(_ context.Context, quoteID id.QuoteID, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[quoteID.String()]
	if !ok {
		return pricing.ErrQuoteNotFound
	}
	if q.Used {
		return pricing.ErrQuoteUsed
	}
	if usedAt.After(q.ExpiresAt) {
		return pricing.ErrQuoteExpired
	}
	q.Used = true
	q.UsedAt = &usedAt
	return nil
}

// ──────────────────────────────────────────────────
// Ledger
// ──────────────────────────────────────────────────

func (s *Store) LastLedgerEntry(_ context.Context) (*ledgerpkg.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ledgerEntries) == 0 {
		return nil, nil
	}
	cp := *s.ledgerEntries[len(s.ledgerEntries)-1]
	return &cp, nil
}

func (s *Store) AppendLedgerEntry(_ context.Context, entry *ledgerpkg.Entry, expectedPrevSeqNo int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lastSeq int64
	if n := len(s.ledgerEntries); n > 0 {
		lastSeq = s.ledgerEntries[n-1].SeqNo
	}
	if lastSeq != expectedPrevSeqNo {
		return ledgerpkg.ErrSeqConflict
	}
	cp := *entry
	s.ledgerEntries = append(s.ledgerEntries, &cp)
	return nil
}

func (s *Store) LedgerEntriesForAccount(_ context.Context, acctID id.AccountID) ([]*ledgerpkg.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ledgerpkg.Entry
	for _, e := range s.ledgerEntries {
		if e.AccountID == acctID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) LedgerEntriesSince(_ context.Context, since int64) ([]*ledgerpkg.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ledgerpkg.Entry
	for _, e := range s.ledgerEntries {
		if e.SeqNo > since {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) LedgerEntriesInWindow(_ context.Context, fromSeqNo, toSeqNo int64) ([]*ledgerpkg.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ledgerpkg.Entry
	for _, e := range s.ledgerEntries {
		if e.SeqNo >= fromSeqNo && e.SeqNo < toSeqNo {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) AllLedgerEntriesOrdered(_ context.Context) ([]*ledgerpkg.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ledgerpkg.Entry, len(s.ledgerEntries))
	for i, e := range s.ledgerEntries {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Decision ledger
// ──────────────────────────────────────────────────

func (s *Store) LastDecisionRecord(_ context.Context) (*decision.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.decisionRecords) == 0 {
		return nil, nil
	}
	cp := *s.decisionRecords[len(s.decisionRecords)-1]
	return &cp, nil
}

func (s *Store) AppendDecisionRecord(_ context.Context, record *decision.Record, expectedPrevSeqNo int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lastSeq int64
	if n := len(s.decisionRecords); n > 0 {
		lastSeq = s.decisionRecords[n-1].SeqNo
	}
	if lastSeq != expectedPrevSeqNo {
		return decision.ErrSeqConflict
	}
	cp := *record
	s.decisionRecords = append(s.decisionRecords, &cp)
	return nil
}

func (s *Store) AllDecisionRecordsOrdered(_ context.Context) ([]*decision.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*decision.Record, len(s.decisionRecords))
	for i, r := range s.decisionRecords {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Settlement
// ──────────────────────────────────────────────────

func (s *Store) CreateSettlement(_ context.Context, st *settlement.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.settlementsByInvoice[st.InvoiceID.String()]; exists {
		return settlement.ErrSettlementExists
	}
	cp := *st
	s.settlements[st.ID.String()] = &cp
	s.settlementsByInvoice[st.InvoiceID.String()] = st.ID.String()
	return nil
}

func (s *Store) GetSettlement(_ context.Context, settlementID id.SettlementID) (*settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settlements[settlementID.String()]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *Store) GetSettlementByInvoice(_ context.Context, invID id.InvoiceID) (*settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stID, ok := s.settlementsByInvoice[invID.String()]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	cp := *s.settlements[stID]
	return &cp, nil
}

func (s *Store) UpdateSettlementStatus(_ context.Context, settlementID id.SettlementID, status settlement.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[settlementID.String()]
	if !ok {
		return settlement.ErrNotFound
	}
	st.Status = status
	return nil
}

func (s *Store) CompleteSettlement(_ context.Context, settlementID id.SettlementID, rail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[settlementID.String()]
	if !ok {
		return settlement.ErrNotFound
	}
	now := time.Now().UTC()
	st.Status = settlement.StatusCompleted
	st.Rail = rail
	st.CompletedAt = &now
	return nil
}

func (s *Store) CreateLeg(_ context.Context, leg *settlement.Leg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *leg
	key := leg.SettlementID.String()
	s.legs[key] = append(s.legs[key], &cp)
	return nil
}

func (s *Store) MarkLegCommitted(_ context.Context, legID id.LegID, railTxnID id.RailTxnID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, legs := range s.legs {
		for _, leg := range legs {
			if leg.ID == legID {
				leg.Committed = true
				leg.RailTxnID = railTxnID
				return nil
			}
		}
	}
	return settlement.ErrNotFound
}

func (s *Store) ListLegs(_ context.Context, settlementID id.SettlementID) ([]*settlement.Leg, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.legs[settlementID.String()]
	out := make([]*settlement.Leg, len(src))
	copy(out, src)
	return out, nil
}

func (s *Store) ListOrphanedPreparedLegs(_ context.Context, cutoff time.Time) ([]*settlement.Leg, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*settlement.Leg
	for key, legs := range s.legs {
		st, ok := s.settlements[key]
		if !ok || st.Status != settlement.StatusInProgress || !st.StartedAt.Before(cutoff) {
			continue
		}
		for _, leg := range legs {
			if !leg.Committed {
				cp := *leg
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Connection lifecycle
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }
func (s *Store) Ping(_ context.Context) error    { return nil }
func (s *Store) Close() error                    { return nil }

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
