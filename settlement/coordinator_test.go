package settlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flowcap/settlenet/account"
	"github.com/flowcap/settlenet/decision"
	"github.com/flowcap/settlenet/fraud"
	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/invoice"
	ledgerpkg "github.com/flowcap/settlenet/ledger"
	"github.com/flowcap/settlenet/pricing"
	"github.com/flowcap/settlenet/rail"
	"github.com/flowcap/settlenet/types"
)

// ── account fakes ──────────────────────────────────────────────

type fakeAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*account.Account
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{accounts: map[string]*account.Account{}}
}

func (s *fakeAccountStore) put(a *account.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID.String()] = a
}

func (s *fakeAccountStore) Create(ctx context.Context, a *account.Account) error { s.put(a); return nil }

func (s *fakeAccountStore) Get(ctx context.Context, acctID id.AccountID) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[acctID.String()]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeAccountStore) SetStatus(ctx context.Context, acctID id.AccountID, status account.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acctID.String()].Status = status
	return nil
}

func (s *fakeAccountStore) UpdateCreditLimit(ctx context.Context, acctID id.AccountID, a *account.Account) error {
	s.put(a)
	return nil
}

func (s *fakeAccountStore) UpdateSanctions(ctx context.Context, acctID id.AccountID, a *account.Account) error {
	s.put(a)
	return nil
}

func (s *fakeAccountStore) AdjustReservedCredit(ctx context.Context, acctID id.AccountID, delta int64, at time.Time) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[acctID.String()]
	a.ReservedCredit.Amount += delta
	a.ReservedAt = at
	cp := *a
	return &cp, nil
}

func (s *fakeAccountStore) ListStaleReservations(ctx context.Context, olderThan time.Time) ([]*account.Account, error) {
	return nil, nil
}

type fakeBureau struct{}

func (fakeBureau) FetchLimit(ctx context.Context, acctID id.AccountID) (int64, error) {
	return 100_000_000, nil
}

type fakeScreener struct{ clear bool }

func (f fakeScreener) Screen(ctx context.Context, acctID id.AccountID) (bool, error) {
	return f.clear, nil
}

func newActiveAccount(now time.Time, role account.Role, creditLimit int64) *account.Account {
	a := &account.Account{
		Entity:    types.NewEntity(),
		ID:        id.NewAccountID(),
		Role:      role,
		Status:    account.StatusActive,
		KYCStatus: account.KYCVerified,
		Balance:   types.Money{Amount: 0, Currency: "USD"},

		SanctionsClear:       true,
		SanctionsCheckedAt:   now,
		CreditLimitCheckedAt: now,
	}
	if creditLimit > 0 {
		a.CreditLimit = &types.Money{Amount: creditLimit, Currency: "USD"}
	}
	return a
}

// ── ledger fake ────────────────────────────────────────────────

type fakeLedgerStore struct {
	mu      sync.Mutex
	entries []*ledgerpkg.Entry
}

func (s *fakeLedgerStore) LastEntry(ctx context.Context) (*ledgerpkg.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	return s.entries[len(s.entries)-1], nil
}

func (s *fakeLedgerStore) AppendAtomic(ctx context.Context, e *ledgerpkg.Entry, expectedPrevSeqNo int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *fakeLedgerStore) EntriesForAccount(ctx context.Context, acct id.AccountID) ([]*ledgerpkg.Entry, error) {
	return nil, nil
}
func (s *fakeLedgerStore) EntriesSince(ctx context.Context, since int64) ([]*ledgerpkg.Entry, error) {
	return nil, nil
}
func (s *fakeLedgerStore) EntriesInWindow(ctx context.Context, from, to int64) ([]*ledgerpkg.Entry, error) {
	return nil, nil
}
func (s *fakeLedgerStore) AllOrdered(ctx context.Context) ([]*ledgerpkg.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries, nil
}

// ── decision fake ──────────────────────────────────────────────

type fakeDecisionStore struct {
	mu      sync.Mutex
	records []*decision.Record
}

func (s *fakeDecisionStore) LastRecord(ctx context.Context) (*decision.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	return s.records[len(s.records)-1], nil
}

func (s *fakeDecisionStore) AppendAtomic(ctx context.Context, r *decision.Record, expectedPrevSeqNo int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *fakeDecisionStore) AllOrdered(ctx context.Context) ([]*decision.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records, nil
}

// ── settlement store fake ──────────────────────────────────────

type fakeSettlementStore struct {
	mu          sync.Mutex
	settlements map[string]*Settlement
	byInvoice   map[string]*Settlement
	legs        map[string][]*Leg
}

func newFakeSettlementStore() *fakeSettlementStore {
	return &fakeSettlementStore{
		settlements: map[string]*Settlement{},
		byInvoice:   map[string]*Settlement{},
		legs:        map[string][]*Leg{},
	}
}

func (s *fakeSettlementStore) CreateSettlement(ctx context.Context, st *Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byInvoice[st.InvoiceID.String()]; ok {
		return ErrSettlementExists
	}
	s.settlements[st.ID.String()] = st
	s.byInvoice[st.InvoiceID.String()] = st
	return nil
}

func (s *fakeSettlementStore) GetSettlement(ctx context.Context, settlementID id.SettlementID) (*Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[settlementID.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return st, nil
}

func (s *fakeSettlementStore) GetSettlementByInvoice(ctx context.Context, invID id.InvoiceID) (*Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.byInvoice[invID.String()]
	if !ok {
		return nil, ErrNotFound
	}
	return st, nil
}

func (s *fakeSettlementStore) UpdateStatus(ctx context.Context, settlementID id.SettlementID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.settlements[settlementID.String()]; ok {
		st.Status = status
	}
	return nil
}

func (s *fakeSettlementStore) Complete(ctx context.Context, settlementID id.SettlementID, rail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.settlements[settlementID.String()]; ok {
		st.Status = StatusCompleted
		st.Rail = rail
	}
	return nil
}

func (s *fakeSettlementStore) CreateLeg(ctx context.Context, leg *Leg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legs[leg.SettlementID.String()] = append(s.legs[leg.SettlementID.String()], leg)
	return nil
}

func (s *fakeSettlementStore) MarkLegCommitted(ctx context.Context, legID id.LegID, railTxnID id.RailTxnID) error {
	return nil
}

func (s *fakeSettlementStore) ListLegs(ctx context.Context, settlementID id.SettlementID) ([]*Leg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.legs[settlementID.String()], nil
}

func (s *fakeSettlementStore) ListOrphanedPrepared(ctx context.Context, cutoff time.Time) ([]*Leg, error) {
	return nil, nil
}

// ── rail adapter fake ──────────────────────────────────────────

type scriptedAdapter struct {
	name         string
	commitResult rail.CommitResult
	commitErr    error
	prepareErr   error
	compensated  []id.RailTxnID
	mu           sync.Mutex
}

func (a *scriptedAdapter) Name() string  { return a.name }
func (a *scriptedAdapter) Priority() int { return 1 }

func (a *scriptedAdapter) Prepare(ctx context.Context, settlementID id.SettlementID, acct id.AccountID, amount types.Money) (rail.PrepareToken, error) {
	if a.prepareErr != nil {
		return rail.PrepareToken{}, a.prepareErr
	}
	return rail.PrepareToken{RailTxnID: id.NewRailTxnID(), Rail: a.name}, nil
}

func (a *scriptedAdapter) Commit(ctx context.Context, tok rail.PrepareToken) (rail.CommitResult, error) {
	if a.commitErr != nil {
		return rail.Failed, a.commitErr
	}
	return a.commitResult, nil
}

func (a *scriptedAdapter) Rollback(ctx context.Context, tok rail.PrepareToken) error { return nil }

func (a *scriptedAdapter) Status(ctx context.Context, settlementID id.SettlementID) (rail.CommitResult, error) {
	return rail.Committed, nil
}

func (a *scriptedAdapter) Health(ctx context.Context) (rail.Health, error) {
	return rail.Health{Up: true, CheckedAt: time.Now()}, nil
}

func (a *scriptedAdapter) Compensate(ctx context.Context, tok rail.PrepareToken) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.compensated = append(a.compensated, tok.RailTxnID)
	return nil
}

type fakeOracle struct{ score float64 }

func (f fakeOracle) Score(ctx context.Context, invID id.InvoiceID) (float64, error) {
	return f.score, nil
}

// ── test fixture ───────────────────────────────────────────────

func buildCoordinator(t *testing.T, now time.Time, adapter rail.Adapter) (*Coordinator, *invoice.Invoice, *pricing.Quote) {
	t.Helper()

	acctStore := newFakeAccountStore()
	registry := account.NewRegistry(acctStore, fakeBureau{}, fakeScreener{clear: true}, account.WithClock(func() time.Time { return now }))

	supplier := newActiveAccount(now, account.RoleSupplier, 0)
	buyer := newActiveAccount(now, account.RoleBuyer, 10_000_000)
	provider := newActiveAccount(now, account.RoleCapitalProvider, 0)
	acctStore.put(supplier)
	acctStore.put(buyer)
	acctStore.put(provider)

	ldg := ledgerpkg.New(&fakeLedgerStore{}, []byte("test-hmac-key"))
	dec := decision.New(&fakeDecisionStore{}, []byte("test-hmac-key"))

	fraudGate := fraud.New(fakeOracle{score: 0.1}, fraud.WithClock(func() time.Time { return now }))

	rails := rail.NewRegistry(rail.WithClock(func() time.Time { return now }))
	rails.Register(adapter)

	store := newFakeSettlementStore()

	coord := New(registry, nil, fraudGate, rails, ldg, dec, nil, store, WithClock(func() time.Time { return now }))

	inv := &invoice.Invoice{
		Entity:        types.NewEntity(),
		ID:            id.NewInvoiceID(),
		SupplierID:    supplier.ID,
		BuyerID:       buyer.ID,
		Amount:        types.Money{Amount: 5_000_000, Currency: "USD"},
		Terms:         30,
		Status:        invoice.StatusAccepted,
		FraudScore:    0.1,
		FraudScoredAt: now,
	}

	rate := types.BP(600)
	quote := &pricing.Quote{
		ID:           id.NewQuoteID(),
		InvoiceID:    inv.ID,
		ProviderID:   provider.ID,
		Terms:        30,
		DiscountRate: rate,
		TotalCost:    types.Money{Amount: pricing.TotalCost(inv.Amount.Amount, rate, 30), Currency: "USD"},
		IssuedAt:     now,
		ExpiresAt:    now.Add(pricing.QuoteTTL),
	}

	return coord, inv, quote
}

func TestSettleHappyPath(t *testing.T) {
	now := time.Now()
	adapter := &scriptedAdapter{name: "fast-rail", commitResult: rail.Committed}
	coord, inv, quote := buildCoordinator(t, now, adapter)

	outcome, err := coord.Settle(context.Background(), Input{Invoice: inv, Quote: quote})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if outcome.Kind != OutcomeOK {
		t.Fatalf("expected OK outcome, got %s: %s", outcome.Kind, outcome.Reason)
	}
	if outcome.Settlement.Status != StatusCompleted {
		t.Errorf("expected completed status, got %s", outcome.Settlement.Status)
	}
}

func TestSettleRejectsStaleQuote(t *testing.T) {
	now := time.Now()
	adapter := &scriptedAdapter{name: "fast-rail", commitResult: rail.Committed}
	coord, inv, quote := buildCoordinator(t, now, adapter)
	quote.ExpiresAt = now.Add(-time.Minute)

	outcome, err := coord.Settle(context.Background(), Input{Invoice: inv, Quote: quote})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if outcome.Kind != OutcomeReject {
		t.Fatalf("expected reject outcome, got %s", outcome.Kind)
	}
}

func TestSettleAbortsOnCommitFailure(t *testing.T) {
	now := time.Now()
	adapter := &scriptedAdapter{name: "flaky-rail", commitResult: rail.Failed}
	coord, inv, quote := buildCoordinator(t, now, adapter)

	outcome, err := coord.Settle(context.Background(), Input{Invoice: inv, Quote: quote})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if outcome.Kind != OutcomeAbort {
		t.Fatalf("expected abort outcome, got %s", outcome.Kind)
	}
}

func TestSettleIsIdempotentOnRetry(t *testing.T) {
	now := time.Now()
	adapter := &scriptedAdapter{name: "fast-rail", commitResult: rail.Committed}
	coord, inv, quote := buildCoordinator(t, now, adapter)

	first, err := coord.Settle(context.Background(), Input{Invoice: inv, Quote: quote})
	if err != nil || first.Kind != OutcomeOK {
		t.Fatalf("first settle failed: %v %v", first, err)
	}

	second, err := coord.Settle(context.Background(), Input{Invoice: inv, Quote: quote})
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if second.Kind != OutcomeOK {
		t.Fatalf("expected idempotent OK on retry, got %s", second.Kind)
	}
	if second.Settlement.ID != first.Settlement.ID {
		t.Errorf("expected same settlement id on retry, got different ids")
	}
}

func TestSettleRejectsFraudAboveThreshold(t *testing.T) {
	now := time.Now()
	adapter := &scriptedAdapter{name: "fast-rail", commitResult: rail.Committed}
	coord, inv, quote := buildCoordinator(t, now, adapter)
	inv.FraudScore = 0.9

	outcome, err := coord.Settle(context.Background(), Input{Invoice: inv, Quote: quote})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if outcome.Kind != OutcomeReject {
		t.Fatalf("expected reject outcome, got %s", outcome.Kind)
	}
}
