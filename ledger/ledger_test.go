package ledger

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

type memStore struct {
	mu      sync.Mutex
	entries []*Entry
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) LastEntry(_ context.Context) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	return s.entries[len(s.entries)-1], nil
}

func (s *memStore) AppendAtomic(_ context.Context, entry *Entry, expectedPrevSeqNo int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int64(len(s.entries)) != expectedPrevSeqNo {
		return ErrSeqConflict
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memStore) EntriesForAccount(_ context.Context, account id.AccountID) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Entry
	for _, e := range s.entries {
		if e.AccountID == account {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) EntriesSince(_ context.Context, since int64) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Entry
	for _, e := range s.entries {
		if e.SeqNo > since {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) EntriesInWindow(_ context.Context, fromSeqNo, toSeqNo int64) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Entry
	for _, e := range s.entries {
		if e.SeqNo >= fromSeqNo && e.SeqNo < toSeqNo {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) AllOrdered(_ context.Context) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].SeqNo < out[j].SeqNo })
	return out, nil
}

func TestAppendAssignsSequentialSeqNo(t *testing.T) {
	store := newMemStore()
	l := New(store, []byte("test-key"))
	acct := id.NewAccountID()

	for i := 1; i <= 3; i++ {
		seq, err := l.Append(context.Background(), AppendInput{
			Type:      TypeCredit,
			AccountID: acct,
			Amount:    types.Money{Amount: 100, Currency: "USD"},
			Reason:    "test",
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if seq != int64(i) {
			t.Errorf("expected seq %d, got %d", i, seq)
		}
	}
}

func TestBalanceFoldsEntries(t *testing.T) {
	store := newMemStore()
	l := New(store, []byte("test-key"))
	acct := id.NewAccountID()

	l.Append(context.Background(), AppendInput{Type: TypeCredit, AccountID: acct, Amount: types.Money{Amount: 500, Currency: "USD"}, Reason: "credit"})
	l.Append(context.Background(), AppendInput{Type: TypeDebit, AccountID: acct, Amount: types.Money{Amount: 200, Currency: "USD"}, Reason: "debit"})

	bal, err := l.Balance(context.Background(), acct, "USD")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Amount != 300 {
		t.Errorf("expected balance 300, got %d", bal.Amount)
	}
}

func TestReconcileBalanced(t *testing.T) {
	store := newMemStore()
	l := New(store, []byte("test-key"))
	supplier := id.NewAccountID()
	buyer := id.NewAccountID()

	l.Append(context.Background(), AppendInput{Type: TypeCredit, AccountID: supplier, Amount: types.Money{Amount: 1000, Currency: "USD"}, Reason: "credit supplier"})
	l.Append(context.Background(), AppendInput{Type: TypeDebit, AccountID: buyer, Amount: types.Money{Amount: 1000, Currency: "USD"}, Reason: "debit buyer"})

	result, err := l.Reconcile(context.Background(), 0, 10, "USD")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !result.Balanced {
		t.Errorf("expected balanced, got imbalance %d", result.ImbalanceAmount)
	}
}

func TestReconcileImbalance(t *testing.T) {
	store := newMemStore()
	l := New(store, []byte("test-key"))
	supplier := id.NewAccountID()

	l.Append(context.Background(), AppendInput{Type: TypeCredit, AccountID: supplier, Amount: types.Money{Amount: 1000, Currency: "USD"}, Reason: "credit supplier"})

	result, err := l.Reconcile(context.Background(), 0, 10, "USD")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Balanced {
		t.Error("expected imbalance to be detected")
	}
	if result.ImbalanceAmount != 1000 {
		t.Errorf("expected imbalance 1000, got %d", result.ImbalanceAmount)
	}
}

func TestVerifyDetectsBrokenChain(t *testing.T) {
	store := newMemStore()
	l := New(store, []byte("test-key"))
	acct := id.NewAccountID()

	l.Append(context.Background(), AppendInput{Type: TypeCredit, AccountID: acct, Amount: types.Money{Amount: 100, Currency: "USD"}, Reason: "ok"})
	l.Append(context.Background(), AppendInput{Type: TypeCredit, AccountID: acct, Amount: types.Money{Amount: 100, Currency: "USD"}, Reason: "ok"})

	// Tamper with a stored entry after the fact.
	store.entries[1].Amount = types.Money{Amount: 999, Currency: "USD"}

	fresh := New(store, []byte("test-key"))
	if err := fresh.Verify(context.Background()); err == nil {
		t.Error("expected Verify to detect tampering")
	}
}

func TestVerifyAcceptsIntactChain(t *testing.T) {
	store := newMemStore()
	l := New(store, []byte("test-key"))
	acct := id.NewAccountID()

	for i := 0; i < 5; i++ {
		l.Append(context.Background(), AppendInput{Type: TypeCredit, AccountID: acct, Amount: types.Money{Amount: 100, Currency: "USD"}, Reason: "ok"})
	}

	fresh := New(store, []byte("test-key"))
	if err := fresh.Verify(context.Background()); err != nil {
		t.Errorf("expected intact chain to verify, got %v", err)
	}
}
