// Package store defines the unified persistence interface the network
// facade depends on, composed from the per-domain Store contracts
// (account, invoice, pricing, ledger, decision, settlement) plus
// connection lifecycle methods. Every method is declared explicitly,
// not embedded from the sub-interfaces, to avoid collisions between
// domains that happen to share a verb (e.g. invoice.Store.Get vs.
// account.Store.Get).
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

// Store is the unified storage interface for every settlenet entity.
type Store interface {
	// Account methods
	CreateAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, acctID id.AccountID) (*account.Account, error)
	SetAccountStatus(ctx context.Context, acctID id.AccountID, status account.Status) error
	UpdateAccountCreditLimit(ctx context.Context, acctID id.AccountID, a *account.Account) error
	UpdateAccountSanctions(ctx context.Context, acctID id.AccountID, a *account.Account) error
	AdjustReservedCredit(ctx context.Context, acctID id.AccountID, delta int64, at time.Time) (*account.Account, error)
	ListStaleReservations(ctx context.Context, olderThan time.Time) ([]*account.Account, error)

	// Invoice methods
	CreateInvoice(ctx context.Context, inv *invoice.Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error)
	GetInvoiceByHash(ctx context.Context, hash string) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context, acctID id.AccountID, opts invoice.ListOpts) ([]*invoice.Invoice, error)
	ListPendingInvoices(ctx context.Context, olderThan time.Time) ([]*invoice.Invoice, error)
	UpdateInvoiceFraudScore(ctx context.Context, invID id.InvoiceID, score float64, scoredAt time.Time) error
	TransitionInvoice(ctx context.Context, invID id.InvoiceID, to invoice.Status, at time.Time) error
	ReclassifyInvoiceFailed(ctx context.Context, invID id.InvoiceID, at time.Time) error

	// Pricing / auction methods
	CreateAuction(ctx context.Context, a *pricing.Auction) error
	GetAuction(ctx context.Context, invID id.InvoiceID) (*pricing.Auction, error)
	CloseAuction(ctx context.Context, invID id.InvoiceID) error
	ListOpenAuctions(ctx context.Context, cutoff time.Time) ([]*pricing.Auction, error)
	AddBid(ctx context.Context, bid *pricing.CapitalBid) error
	ListBids(ctx context.Context, invID id.InvoiceID) ([]*pricing.CapitalBid, error)
	CreateQuote(ctx context.Context, q *pricing.Quote) error
	GetQuote(ctx context.Context, quoteID id.QuoteID) (*pricing.Quote, error)
	GetLiveQuote(ctx context.Context, invID id.InvoiceID, terms int) (*pricing.Quote, error)
	ConsumeQuote(ctx context.Context, quoteID id.QuoteID, usedAt time.Time) error

	// Ledger methods
	LastLedgerEntry(ctx context.Context) (*ledgerpkg.Entry, error)
	AppendLedgerEntry(ctx context.Context, entry *ledgerpkg.Entry, expectedPrevSeqNo int64) error
	LedgerEntriesForAccount(ctx context.Context, acctID id.AccountID) ([]*ledgerpkg.Entry, error)
	LedgerEntriesSince(ctx context.Context, since int64) ([]*ledgerpkg.Entry, error)
	LedgerEntriesInWindow(ctx context.Context, fromSeqNo, toSeqNo int64) ([]*ledgerpkg.Entry, error)
	AllLedgerEntriesOrdered(ctx context.Context) ([]*ledgerpkg.Entry, error)

	// Decision ledger methods
	LastDecisionRecord(ctx context.Context) (*decision.Record, error)
	AppendDecisionRecord(ctx context.Context, record *decision.Record, expectedPrevSeqNo int64) error
	AllDecisionRecordsOrdered(ctx context.Context) ([]*decision.Record, error)

	// Settlement methods
	CreateSettlement(ctx context.Context, s *settlement.Settlement) error
	GetSettlement(ctx context.Context, settlementID id.SettlementID) (*settlement.Settlement, error)
	GetSettlementByInvoice(ctx context.Context, invID id.InvoiceID) (*settlement.Settlement, error)
	UpdateSettlementStatus(ctx context.Context, settlementID id.SettlementID, status settlement.Status) error
	CompleteSettlement(ctx context.Context, settlementID id.SettlementID, rail string) error
	CreateLeg(ctx context.Context, leg *settlement.Leg) error
	MarkLegCommitted(ctx context.Context, legID id.LegID, railTxnID id.RailTxnID) error
	ListLegs(ctx context.Context, settlementID id.SettlementID) ([]*settlement.Leg, error)
	ListOrphanedPreparedLegs(ctx context.Context, cutoff time.Time) ([]*settlement.Leg, error)

	// Connection lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
