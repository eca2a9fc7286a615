package decision

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/flowcap/settlenet/invariant"
)

type memStore struct {
	mu      sync.Mutex
	records []*Record
}

func (s *memStore) LastRecord(_ context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return nil, nil
	}
	return s.records[len(s.records)-1], nil
}

func (s *memStore) AppendAtomic(_ context.Context, r *Record, expectedPrevSeqNo int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int64(len(s.records)) != expectedPrevSeqNo {
		return ErrSeqConflict
	}
	s.records = append(s.records, r)
	return nil
}

func (s *memStore) AllOrdered(_ context.Context) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Record, len(s.records))
	copy(out, s.records)
	sort.Slice(out, func(i, j int) bool { return out[i].SeqNo < out[j].SeqNo })
	return out, nil
}

func TestAppendAndVerify(t *testing.T) {
	store := &memStore{}
	l := New(store, []byte("decision-key"))

	for i := 0; i < 3; i++ {
		_, err := l.Append(context.Background(), Record{
			InvariantID: "kyc-verified",
			Phase:       invariant.PhasePre,
			Result:      true,
			Action:      invariant.ActionProceed,
			Actor:       "coordinator",
			CreatedAt:   time.Now(),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	fresh := New(store, []byte("decision-key"))
	if err := fresh.Verify(context.Background()); err != nil {
		t.Errorf("expected chain to verify, got %v", err)
	}
}

func TestVerifyDetectsTamper(t *testing.T) {
	store := &memStore{}
	l := New(store, []byte("decision-key"))

	l.Append(context.Background(), Record{InvariantID: "a", Actor: "x", CreatedAt: time.Now()})
	l.Append(context.Background(), Record{InvariantID: "b", Actor: "x", CreatedAt: time.Now()})

	store.records[0].Reason = "tampered"

	fresh := New(store, []byte("decision-key"))
	if err := fresh.Verify(context.Background()); err == nil {
		t.Error("expected tampering to be detected")
	}
}

func TestFromDecision(t *testing.T) {
	d := invariant.Decision{
		InvariantID: "kyc-verified",
		Phase:       invariant.PhasePre,
		OK:          false,
		Reason:      "not verified",
		Action:      invariant.ActionRollback,
		CheckedAt:   time.Now(),
	}
	rec := FromDecision(d, "coordinator", map[string]any{"invoice_id": "inv_123"})
	if rec.Result != false || rec.Reason != "not verified" {
		t.Errorf("unexpected record: %+v", rec)
	}
}
