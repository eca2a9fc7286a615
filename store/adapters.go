package store

import (
	"context"
	"time"

	"github.com/flowcap/settlenet/account"
	"github.com/flowcap/settlenet/decision"
	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/invoice"
	ledgerpkg "github.com/flowcap/settlenet/ledger"
	"github.com/flowcap/settlenet/pricing"
	"github.com/flowcap/settlenet/settlement"
)

// The adapters below let a single Store satisfy every domain package's
// narrower Store interface, so account.Registry, invoice.Store callers,
// pricing.Engine, ledger.Ledger, decision.Ledger, and settlement.Coordinator
// can all be constructed from one backing Store without that backing type
// needing to duplicate method names across domains.

// AccountAdapter adapts a Store to account.Store.
type AccountAdapter struct{ Store }

func (a AccountAdapter) Create(ctx context.Context, acct *account.Account) error {
	return a.CreateAccount(ctx, acct)
}
func (a AccountAdapter) Get(ctx context.Context, acctID id.AccountID) (*account.Account, error) {
	return a.GetAccount(ctx, acctID)
}
func (a AccountAdapter) SetStatus(ctx context.Context, acctID id.AccountID, status account.Status) error {
	return a.SetAccountStatus(ctx, acctID, status)
}
func (a AccountAdapter) UpdateCreditLimit(ctx context.Context, acctID id.AccountID, acct *account.Account) error {
	return a.UpdateAccountCreditLimit(ctx, acctID, acct)
}
func (a AccountAdapter) UpdateSanctions(ctx context.Context, acctID id.AccountID, acct *account.Account) error {
	return a.UpdateAccountSanctions(ctx, acctID, acct)
}

var _ account.Store = AccountAdapter{}

// InvoiceAdapter adapts a Store to invoice.Store.
type InvoiceAdapter struct{ Store }

func (a InvoiceAdapter) Create(ctx context.Context, inv *invoice.Invoice) error {
	return a.CreateInvoice(ctx, inv)
}
func (a InvoiceAdapter) Get(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	return a.GetInvoice(ctx, invID)
}
func (a InvoiceAdapter) GetByHash(ctx context.Context, hash string) (*invoice.Invoice, error) {
	return a.GetInvoiceByHash(ctx, hash)
}
func (a InvoiceAdapter) List(ctx context.Context, acctID id.AccountID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	return a.ListInvoices(ctx, acctID, opts)
}
func (a InvoiceAdapter) ListPending(ctx context.Context, olderThan time.Time) ([]*invoice.Invoice, error) {
	return a.ListPendingInvoices(ctx, olderThan)
}
func (a InvoiceAdapter) UpdateFraudScore(ctx context.Context, invID id.InvoiceID, score float64, scoredAt time.Time) error {
	return a.UpdateInvoiceFraudScore(ctx, invID, score, scoredAt)
}
func (a InvoiceAdapter) Transition(ctx context.Context, invID id.InvoiceID, to invoice.Status, at time.Time) error {
	return a.TransitionInvoice(ctx, invID, to, at)
}
func (a InvoiceAdapter) ReclassifyFailed(ctx context.Context, invID id.InvoiceID, at time.Time) error {
	return a.ReclassifyInvoiceFailed(ctx, invID, at)
}

var _ invoice.Store = InvoiceAdapter{}

// PricingAdapter adapts a Store to pricing.Store. Auction/bid/quote
// method names already line up, so this is pass-through.
type PricingAdapter struct{ Store }

var _ pricing.Store = PricingAdapter{}

// LedgerAdapter adapts a Store to ledger.Store.
type LedgerAdapter struct{ Store }

func (a LedgerAdapter) LastEntry(ctx context.Context) (*ledgerpkg.Entry, error) {
	return a.LastLedgerEntry(ctx)
}
func (a LedgerAdapter) AppendAtomic(ctx context.Context, entry *ledgerpkg.Entry, expectedPrevSeqNo int64) error {
	return a.AppendLedgerEntry(ctx, entry, expectedPrevSeqNo)
}
func (a LedgerAdapter) EntriesForAccount(ctx context.Context, acctID id.AccountID) ([]*ledgerpkg.Entry, error) {
	return a.LedgerEntriesForAccount(ctx, acctID)
}
func (a LedgerAdapter) EntriesSince(ctx context.Context, since int64) ([]*ledgerpkg.Entry, error) {
	return a.LedgerEntriesSince(ctx, since)
}
func (a LedgerAdapter) EntriesInWindow(ctx context.Context, fromSeqNo, toSeqNo int64) ([]*ledgerpkg.Entry, error) {
	return a.LedgerEntriesInWindow(ctx, fromSeqNo, toSeqNo)
}
func (a LedgerAdapter) AllOrdered(ctx context.Context) ([]*ledgerpkg.Entry, error) {
	return a.AllLedgerEntriesOrdered(ctx)
}

var _ ledgerpkg.Store = LedgerAdapter{}

// DecisionAdapter adapts a Store to decision.Store.
type DecisionAdapter struct{ Store }

func (a DecisionAdapter) LastRecord(ctx context.Context) (*decision.Record, error) {
	return a.LastDecisionRecord(ctx)
}
func (a DecisionAdapter) AppendAtomic(ctx context.Context, record *decision.Record, expectedPrevSeqNo int64) error {
	return a.AppendDecisionRecord(ctx, record, expectedPrevSeqNo)
}
func (a DecisionAdapter) AllOrdered(ctx context.Context) ([]*decision.Record, error) {
	return a.AllDecisionRecordsOrdered(ctx)
}

var _ decision.Store = DecisionAdapter{}

// SettlementAdapter adapts a Store to settlement.Store.
type SettlementAdapter struct{ Store }

func (a SettlementAdapter) UpdateStatus(ctx context.Context, settlementID id.SettlementID, status settlement.Status) error {
	return a.UpdateSettlementStatus(ctx, settlementID, status)
}
func (a SettlementAdapter) Complete(ctx context.Context, settlementID id.SettlementID, rail string) error {
	return a.CompleteSettlement(ctx, settlementID, rail)
}
func (a SettlementAdapter) ListOrphanedPrepared(ctx context.Context, cutoff time.Time) ([]*settlement.Leg, error) {
	return a.ListOrphanedPreparedLegs(ctx, cutoff)
}

var _ settlement.Store = SettlementAdapter{}
