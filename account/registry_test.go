package account

import (
	"context"
	"testing"
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

type fakeStore struct {
	accounts map[id.AccountID]*Account
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[id.AccountID]*Account)}
}

func (s *fakeStore) Create(_ context.Context, a *Account) error {
	s.accounts[a.ID] = a
	return nil
}

func (s *fakeStore) Get(_ context.Context, acctID id.AccountID) (*Account, error) {
	a, ok := s.accounts[acctID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) SetStatus(_ context.Context, acctID id.AccountID, status Status) error {
	a, ok := s.accounts[acctID]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	return nil
}

func (s *fakeStore) UpdateCreditLimit(_ context.Context, acctID id.AccountID, updated *Account) error {
	a, ok := s.accounts[acctID]
	if !ok {
		return ErrNotFound
	}
	a.CreditLimit = updated.CreditLimit
	a.CreditLimitCheckedAt = updated.CreditLimitCheckedAt
	return nil
}

func (s *fakeStore) UpdateSanctions(_ context.Context, acctID id.AccountID, updated *Account) error {
	a, ok := s.accounts[acctID]
	if !ok {
		return ErrNotFound
	}
	a.SanctionsClear = updated.SanctionsClear
	a.SanctionsCheckedAt = updated.SanctionsCheckedAt
	return nil
}

func (s *fakeStore) AdjustReservedCredit(_ context.Context, acctID id.AccountID, delta int64, at time.Time) (*Account, error) {
	a, ok := s.accounts[acctID]
	if !ok {
		return nil, ErrNotFound
	}
	a.ReservedCredit = types.Money{Amount: a.ReservedCredit.Amount + delta, Currency: a.Balance.Currency}
	a.ReservedAt = at
	cp := *a
	return &cp, nil
}

func (s *fakeStore) ListStaleReservations(_ context.Context, olderThan time.Time) ([]*Account, error) {
	var out []*Account
	for _, a := range s.accounts {
		if a.ReservedCredit.Amount != 0 && a.ReservedAt.Before(olderThan) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeBureau struct {
	limit int64
	err   error
}

func (b *fakeBureau) FetchLimit(_ context.Context, _ id.AccountID) (int64, error) {
	return b.limit, b.err
}

type fakeScreener struct {
	clear bool
	err   error
}

func (s *fakeScreener) Screen(_ context.Context, _ id.AccountID) (bool, error) {
	return s.clear, s.err
}

func newTestAccount(currency string) *Account {
	limit := types.Money{Amount: 50000, Currency: currency}
	return &Account{
		ID:                   id.NewAccountID(),
		Role:                 RoleBuyer,
		Status:               StatusActive,
		KYCStatus:            KYCVerified,
		Balance:              types.Zero(currency),
		CreditLimit:          &limit,
		CreditLimitCheckedAt: time.Now(),
		ReservedCredit:       types.Zero(currency),
	}
}

func TestReserveCreditWithinLimit(t *testing.T) {
	store := newFakeStore()
	a := newTestAccount("USD")
	store.Create(context.Background(), a)

	reg := NewRegistry(store, &fakeBureau{limit: 50000}, &fakeScreener{clear: true})
	if err := reg.ReserveCredit(context.Background(), a.ID, 10000); err != nil {
		t.Fatalf("ReserveCredit failed: %v", err)
	}

	got, _ := store.Get(context.Background(), a.ID)
	if got.ReservedCredit.Amount != 10000 {
		t.Errorf("expected reserved 10000, got %d", got.ReservedCredit.Amount)
	}
}

func TestReserveCreditInsufficient(t *testing.T) {
	store := newFakeStore()
	a := newTestAccount("USD")
	store.Create(context.Background(), a)

	reg := NewRegistry(store, &fakeBureau{limit: 50000}, &fakeScreener{clear: true})
	err := reg.ReserveCredit(context.Background(), a.ID, 100000)
	if err != ErrInsufficientCredit {
		t.Fatalf("expected ErrInsufficientCredit, got %v", err)
	}
}

func TestReleaseCreditRestoresHeadroom(t *testing.T) {
	store := newFakeStore()
	a := newTestAccount("USD")
	store.Create(context.Background(), a)

	reg := NewRegistry(store, &fakeBureau{limit: 50000}, &fakeScreener{clear: true})
	if err := reg.ReserveCredit(context.Background(), a.ID, 20000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := reg.ReleaseCredit(context.Background(), a.ID, 20000); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ := store.Get(context.Background(), a.ID)
	if got.ReservedCredit.Amount != 0 {
		t.Errorf("expected reserved 0 after release, got %d", got.ReservedCredit.Amount)
	}
}

func TestRefreshCreditLimitIfStale(t *testing.T) {
	store := newFakeStore()
	a := newTestAccount("USD")
	a.CreditLimitCheckedAt = time.Now().Add(-2 * time.Hour)
	store.Create(context.Background(), a)

	reg := NewRegistry(store, &fakeBureau{limit: 75000}, &fakeScreener{clear: true})
	fresh, _ := store.Get(context.Background(), a.ID)
	if err := reg.RefreshCreditLimitIfStale(context.Background(), fresh); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fresh.CreditLimit.Amount != 75000 {
		t.Errorf("expected refreshed limit 75000, got %d", fresh.CreditLimit.Amount)
	}
}

func TestScreenSanctionsBlocked(t *testing.T) {
	store := newFakeStore()
	a := newTestAccount("USD")
	store.Create(context.Background(), a)

	reg := NewRegistry(store, &fakeBureau{limit: 50000}, &fakeScreener{clear: false})
	clear, err := reg.ScreenSanctions(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("screen: %v", err)
	}
	if clear {
		t.Error("expected sanctions screening to report not clear")
	}
}

func TestIsSettleable(t *testing.T) {
	now := time.Now()
	a := newTestAccount("USD")
	a.SanctionsClear = true
	a.SanctionsCheckedAt = now
	if !a.IsSettleable(now) {
		t.Error("expected account to be settleable")
	}

	a.SanctionsCheckedAt = now.Add(-7 * time.Hour)
	if a.IsSettleable(now) {
		t.Error("expected account with stale sanctions snapshot to not be settleable")
	}
}
