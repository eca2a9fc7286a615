package memory

import (
	"context"
	"testing"
	"time"

	"github.com/flowcap/settlenet/account"
	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/invoice"
	ledgerpkg "github.com/flowcap/settlenet/ledger"
	"github.com/flowcap/settlenet/settlement"
	"github.com/flowcap/settlenet/types"
)

func TestAccountCreateGetRoundtrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := &account.Account{ID: id.NewAccountID(), Role: account.RoleBuyer, Status: account.StatusActive}
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	got, err := s.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("got id %s, want %s", got.ID, a.ID)
	}
}

func TestAccountGetMissingReturnsNotFound(t *testing.T) {
	s := New()
	if _, err := s.GetAccount(context.Background(), id.NewAccountID()); err != account.ErrNotFound {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestInvoiceCreateRejectsDuplicateHash(t *testing.T) {
	s := New()
	ctx := context.Background()
	inv1 := &invoice.Invoice{ID: id.NewInvoiceID(), Hash: "h1"}
	inv2 := &invoice.Invoice{ID: id.NewInvoiceID(), Hash: "h1"}
	if err := s.CreateInvoice(ctx, inv1); err != nil {
		t.Fatalf("create invoice 1: %v", err)
	}
	if err := s.CreateInvoice(ctx, inv2); err != invoice.ErrHashExists {
		t.Errorf("got %v, want ErrHashExists", err)
	}
}

func TestInvoiceTransitionEnforcesStateMachine(t *testing.T) {
	s := New()
	ctx := context.Background()
	inv := &invoice.Invoice{ID: id.NewInvoiceID(), Hash: "h2", Status: invoice.StatusPending}
	if err := s.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if err := s.TransitionInvoice(ctx, inv.ID, invoice.StatusSettled, time.Now()); err != invoice.ErrInvalidTransition {
		t.Errorf("got %v, want ErrInvalidTransition", err)
	}
	if err := s.TransitionInvoice(ctx, inv.ID, invoice.StatusAccepted, time.Now()); err != nil {
		t.Fatalf("transition to accepted: %v", err)
	}
	got, _ := s.GetInvoice(ctx, inv.ID)
	if got.Status != invoice.StatusAccepted || got.AcceptedAt == nil {
		t.Errorf("invoice not accepted: %+v", got)
	}
}

func TestLedgerAppendDetectsSeqConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	e1 := &ledgerpkg.Entry{ID: id.NewLedgerEntryID(), SeqNo: 1}
	if err := s.AppendLedgerEntry(ctx, e1, 0); err != nil {
		t.Fatalf("append first entry: %v", err)
	}
	e2 := &ledgerpkg.Entry{ID: id.NewLedgerEntryID(), SeqNo: 2}
	if err := s.AppendLedgerEntry(ctx, e2, 0); err != ledgerpkg.ErrSeqConflict {
		t.Errorf("got %v, want ErrSeqConflict", err)
	}
	if err := s.AppendLedgerEntry(ctx, e2, 1); err != nil {
		t.Fatalf("append second entry: %v", err)
	}
}

func TestSettlementCreateEnforcesUniqueInvoice(t *testing.T) {
	s := New()
	ctx := context.Background()
	invID := id.NewInvoiceID()
	st1 := &settlement.Settlement{ID: id.NewSettlementID(), InvoiceID: invID, Amount: types.Money{Amount: 100, Currency: "usd"}}
	st2 := &settlement.Settlement{ID: id.NewSettlementID(), InvoiceID: invID, Amount: types.Money{Amount: 200, Currency: "usd"}}
	if err := s.CreateSettlement(ctx, st1); err != nil {
		t.Fatalf("create settlement 1: %v", err)
	}
	if err := s.CreateSettlement(ctx, st2); err != settlement.ErrSettlementExists {
		t.Errorf("got %v, want ErrSettlementExists", err)
	}
}

func TestListOrphanedPreparedLegsSkipsCommitted(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	st := &settlement.Settlement{
		ID:        id.NewSettlementID(),
		InvoiceID: id.NewInvoiceID(),
		Status:    settlement.StatusInProgress,
		StartedAt: now.Add(-2 * time.Hour),
	}
	if err := s.CreateSettlement(ctx, st); err != nil {
		t.Fatalf("create settlement: %v", err)
	}
	committed := &settlement.Leg{ID: id.NewLegID(), SettlementID: st.ID, Committed: true}
	prepared := &settlement.Leg{ID: id.NewLegID(), SettlementID: st.ID, Committed: false}
	if err := s.CreateLeg(ctx, committed); err != nil {
		t.Fatalf("create leg: %v", err)
	}
	if err := s.CreateLeg(ctx, prepared); err != nil {
		t.Fatalf("create leg: %v", err)
	}

	orphans, err := s.ListOrphanedPreparedLegs(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("list orphaned legs: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != prepared.ID {
		t.Errorf("got %v, want only the uncommitted leg", orphans)
	}
}
