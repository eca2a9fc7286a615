package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/flowcap/settlenet/account"
	"github.com/flowcap/settlenet/decision"
	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/invoice"
	ledgerpkg "github.com/flowcap/settlenet/ledger"
	"github.com/flowcap/settlenet/pricing"
	"github.com/flowcap/settlenet/settlement"
	"github.com/flowcap/settlenet/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("settlenet/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("settlenet/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.pg.NewInsert(toAccountModel(a)).Exec(ctx)
	return err
}

func (s *Store) GetAccount(ctx context.Context, acctID id.AccountID) (*account.Account, error) {
	m := new(accountModel)
	err := s.pg.NewSelect(m).Where("id = $1", acctID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, account.ErrNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func (s *Store) SetAccountStatus(ctx context.Context, acctID id.AccountID, status account.Status) error {
	res, err := s.pg.NewUpdate((*accountModel)(nil)).
		Set("status = $1", string(status)).
		Set("updated_at = $2", now()).
		Where("id = $3", acctID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, account.ErrNotFound)
}

func (s *Store) UpdateAccountCreditLimit(ctx context.Context, acctID id.AccountID, a *account.Account) error {
	q := s.pg.NewUpdate((*accountModel)(nil)).
		Set("credit_limit_checked_at = $1", a.CreditLimitCheckedAt).
		Set("updated_at = $2", now())
	if a.CreditLimit != nil {
		q = q.Set("credit_limit_amount = $3", a.CreditLimit.Amount).
			Set("credit_limit_currency = $4", a.CreditLimit.Currency).
			Where("id = $5", acctID.String())
	} else {
		q = q.Where("id = $3", acctID.String())
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, account.ErrNotFound)
}

func (s *Store) UpdateAccountSanctions(ctx context.Context, acctID id.AccountID, a *account.Account) error {
	res, err := s.pg.NewUpdate((*accountModel)(nil)).
		Set("sanctions_clear = $1", a.SanctionsClear).
		Set("sanctions_checked_at = $2", a.SanctionsCheckedAt).
		Set("updated_at = $3", now()).
		Where("id = $4", acctID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, account.ErrNotFound)
}

func (s *Store) AdjustReservedCredit(ctx context.Context, acctID id.AccountID, delta int64, at time.Time) (*account.Account, error) {
	res, err := s.pg.NewUpdate((*accountModel)(nil)).
		Set("reserved_amount = reserved_amount + $1", delta).
		Set("reserved_at = $2", at).
		Set("updated_at = $3", now()).
		Where("id = $4", acctID.String()).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkRowsAffected(res, account.ErrNotFound); err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, acctID)
}

func (s *Store) ListStaleReservations(ctx context.Context, olderThan time.Time) ([]*account.Account, error) {
	var models []accountModel
	err := s.pg.NewSelect(&models).
		Where("reserved_amount <> 0").
		Where("reserved_at < $1", olderThan).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapModels(models, fromAccountModel)
}

// ==================== Invoice ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	_, err := s.pg.NewInsert(toInvoiceModel(inv)).Exec(ctx)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.pg.NewSelect(m).Where("id = $1", invID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, invoice.ErrNotFound
		}
		return nil, err
	}
	return fromInvoiceModel(m)
}

func (s *Store) GetInvoiceByHash(ctx context.Context, hash string) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.pg.NewSelect(m).Where("hash = $1", hash).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, invoice.ErrNotFound
		}
		return nil, err
	}
	return fromInvoiceModel(m)
}

func (s *Store) ListInvoices(ctx context.Context, acctID id.AccountID, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	q := s.pg.NewSelect(&models).
		Where("supplier_id = $1 OR buyer_id = $2", acctID.String(), acctID.String())

	argIdx := 2
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return mapModels(models, fromInvoiceModel)
}

func (s *Store) ListPendingInvoices(ctx context.Context, olderThan time.Time) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	err := s.pg.NewSelect(&models).
		Where("status = $1", string(invoice.StatusPending)).
		Where("created_at < $2", olderThan).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapModels(models, fromInvoiceModel)
}

func (s *Store) UpdateInvoiceFraudScore(ctx context.Context, invID id.InvoiceID, score float64, scoredAt time.Time) error {
	res, err := s.pg.NewUpdate((*invoiceModel)(nil)).
		Set("fraud_score = $1", score).
		Set("fraud_scored_at = $2", scoredAt).
		Set("updated_at = $3", now()).
		Where("id = $4", invID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, invoice.ErrNotFound)
}

func (s *Store) TransitionInvoice(ctx context.Context, invID id.InvoiceID, to invoice.Status, at time.Time) error {
	inv, err := s.GetInvoice(ctx, invID)
	if err != nil {
		return err
	}
	if !inv.CanTransitionTo(to) {
		return invoice.ErrInvalidTransition
	}
	q := s.pg.NewUpdate((*invoiceModel)(nil)).
		Set("status = $1", string(to)).
		Set("updated_at = $2", now())
	switch to {
	case invoice.StatusAccepted:
		q = q.Set("accepted_at = $3", at).Where("id = $4", invID.String())
	case invoice.StatusSettled:
		q = q.Set("settled_at = $3", at).Where("id = $4", invID.String())
	default:
		q = q.Where("id = $3", invID.String())
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, invoice.ErrNotFound)
}

func (s *Store) ReclassifyInvoiceFailed(ctx context.Context, invID id.InvoiceID, at time.Time) error {
	res, err := s.pg.NewUpdate((*invoiceModel)(nil)).
		Set("status = $1", string(invoice.StatusRejected)).
		Set("updated_at = $2", now()).
		Where("id = $3", invID.String()).
		Where("status = $4", string(invoice.StatusFailed)).
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, invoice.ErrInvalidTransition)
}

// ==================== Pricing: auctions, bids, quotes ====================

func (s *Store) CreateAuction(ctx context.Context, a *pricing.Auction) error {
	_, err := s.pg.NewInsert(toAuctionModel(a)).Exec(ctx)
	return err
}

func (s *Store) GetAuction(ctx context.Context, invID id.InvoiceID) (*pricing.Auction, error) {
	m := new(auctionModel)
	err := s.pg.NewSelect(m).Where("invoice_id = $1", invID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, pricing.ErrAuctionNotFound
		}
		return nil, err
	}
	return fromAuctionModel(m)
}

func (s *Store) CloseAuction(ctx context.Context, invID id.InvoiceID) error {
	res, err := s.pg.NewUpdate((*auctionModel)(nil)).
		Set("status = $1", string(pricing.AuctionClosed)).
		Where("invoice_id = $2", invID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, pricing.ErrAuctionNotFound)
}

func (s *Store) ListOpenAuctions(ctx context.Context, cutoff time.Time) ([]*pricing.Auction, error) {
	var models []auctionModel
	err := s.pg.NewSelect(&models).
		Where("status = $1", string(pricing.AuctionOpen)).
		Where("closes_at < $2", cutoff).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapModels(models, fromAuctionModel)
}

func (s *Store) AddBid(ctx context.Context, bid *pricing.CapitalBid) error {
	_, err := s.pg.NewInsert(toBidModel(bid)).Exec(ctx)
	return err
}

func (s *Store) ListBids(ctx context.Context, invID id.InvoiceID) ([]*pricing.CapitalBid, error) {
	var models []bidModel
	err := s.pg.NewSelect(&models).Where("invoice_id = $1", invID.String()).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapModels(models, fromBidModel)
}

func (s *Store) CreateQuote(ctx context.Context, q *pricing.Quote) error {
	_, err := s.pg.NewInsert(toQuoteModel(q)).Exec(ctx)
	return err
}

func (s *Store) GetQuote(ctx context.Context, quoteID id.QuoteID) (*pricing.Quote, error) {
	m := new(quoteModel)
	err := s.pg.NewSelect(m).Where("id = $1", quoteID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, pricing.ErrQuoteNotFound
		}
		return nil, err
	}
	return fromQuoteModel(m)
}

func (s *Store) GetLiveQuote(ctx context.Context, invID id.InvoiceID, terms int) (*pricing.Quote, error) {
	m := new(quoteModel)
	err := s.pg.NewSelect(m).
		Where("invoice_id = $1", invID.String()).
		Where("terms_days = $2", terms).
		Where("used = FALSE").
		OrderExpr("issued_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, pricing.ErrQuoteNotFound
		}
		return nil, err
	}
	return fromQuoteModel(m)
}

func (s *Store) ConsumeQuote(ctx context.Context, quoteID id.QuoteID, usedAt time.Time) error {
	q, err := s.GetQuote(ctx, quoteID)
	if err != nil {
		return err
	}
	if q.Used {
		return pricing.ErrQuoteUsed
	}
	if usedAt.After(q.ExpiresAt) {
		return pricing.ErrQuoteExpired
	}
	res, err := s.pg.NewUpdate((*quoteModel)(nil)).
		Set("used = $1", true).
		Set("used_at = $2", usedAt).
		Where("id = $3", quoteID.String()).
		Where("used = $4", false).
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, pricing.ErrQuoteUsed)
}

// ==================== Ledger ====================

func (s *Store) LastLedgerEntry(ctx context.Context) (*ledgerpkg.Entry, error) {
	m := new(ledgerEntryModel)
	err := s.pg.NewSelect(m).OrderExpr("seq_no DESC").Limit(1).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return fromLedgerEntryModel(m)
}

func (s *Store) AppendLedgerEntry(ctx context.Context, entry *ledgerpkg.Entry, expectedPrevSeqNo int64) error {
	last, err := s.LastLedgerEntry(ctx)
	if err != nil {
		return err
	}
	var lastSeq int64
	if last != nil {
		lastSeq = last.SeqNo
	}
	if lastSeq != expectedPrevSeqNo {
		return ledgerpkg.ErrSeqConflict
	}
	_, err = s.pg.NewInsert(toLedgerEntryModel(entry)).Exec(ctx)
	return err
}

func (s *Store) LedgerEntriesForAccount(ctx context.Context, acctID id.AccountID) ([]*ledgerpkg.Entry, error) {
	var models []ledgerEntryModel
	err := s.pg.NewSelect(&models).
		Where("account_id = $1", acctID.String()).
		OrderExpr("seq_no ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapModels(models, fromLedgerEntryModel)
}

func (s *Store) LedgerEntriesSince(ctx context.Context, since int64) ([]*ledgerpkg.Entry, error) {
	var models []ledgerEntryModel
	err := s.pg.NewSelect(&models).
		Where("seq_no > $1", since).
		OrderExpr("seq_no ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapModels(models, fromLedgerEntryModel)
}

func (s *Store) LedgerEntriesInWindow(ctx context.Context, fromSeqNo, toSeqNo int64) ([]*ledgerpkg.Entry, error) {
	var models []ledgerEntryModel
	err := s.pg.NewSelect(&models).
		Where("seq_no >= $1", fromSeqNo).
		Where("seq_no < $2", toSeqNo).
		OrderExpr("seq_no ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapModels(models, fromLedgerEntryModel)
}

func (s *Store) AllLedgerEntriesOrdered(ctx context.Context) ([]*ledgerpkg.Entry, error) {
	var models []ledgerEntryModel
	err := s.pg.NewSelect(&models).OrderExpr("seq_no ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapModels(models, fromLedgerEntryModel)
}

// ==================== Decision ledger ====================

func (s *Store) LastDecisionRecord(ctx context.Context) (*decision.Record, error) {
	m := new(decisionRecordModel)
	err := s.pg.NewSelect(m).OrderExpr("seq_no DESC").Limit(1).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return fromDecisionRecordModel(m)
}

func (s *Store) AppendDecisionRecord(ctx context.Context, record *decision.Record, expectedPrevSeqNo int64) error {
	last, err := s.LastDecisionRecord(ctx)
	if err != nil {
		return err
	}
	var lastSeq int64
	if last != nil {
		lastSeq = last.SeqNo
	}
	if lastSeq != expectedPrevSeqNo {
		return decision.ErrSeqConflict
	}
	_, err = s.pg.NewInsert(toDecisionRecordModel(record)).Exec(ctx)
	return err
}

func (s *Store) AllDecisionRecordsOrdered(ctx context.Context) ([]*decision.Record, error) {
	var models []decisionRecordModel
	err := s.pg.NewSelect(&models).OrderExpr("seq_no ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapModels(models, fromDecisionRecordModel)
}

// ==================== Settlement ====================

func (s *Store) CreateSettlement(ctx context.Context, st *settlement.Settlement) error {
	if _, err := s.GetSettlementByInvoice(ctx, st.InvoiceID); err == nil {
		return settlement.ErrSettlementExists
	} else if !errors.Is(err, settlement.ErrNotFound) {
		return err
	}
	_, err := s.pg.NewInsert(toSettlementModel(st)).Exec(ctx)
	return err
}

func (s *Store) GetSettlement(ctx context.Context, settlementID id.SettlementID) (*settlement.Settlement, error) {
	m := new(settlementModel)
	err := s.pg.NewSelect(m).Where("id = $1", settlementID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, settlement.ErrNotFound
		}
		return nil, err
	}
	return fromSettlementModel(m)
}

func (s *Store) GetSettlementByInvoice(ctx context.Context, invID id.InvoiceID) (*settlement.Settlement, error) {
	m := new(settlementModel)
	err := s.pg.NewSelect(m).Where("invoice_id = $1", invID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, settlement.ErrNotFound
		}
		return nil, err
	}
	return fromSettlementModel(m)
}

func (s *Store) UpdateSettlementStatus(ctx context.Context, settlementID id.SettlementID, status settlement.Status) error {
	res, err := s.pg.NewUpdate((*settlementModel)(nil)).
		Set("status = $1", string(status)).
		Set("updated_at = $2", now()).
		Where("id = $3", settlementID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, settlement.ErrNotFound)
}

func (s *Store) CompleteSettlement(ctx context.Context, settlementID id.SettlementID, rail string) error {
	t := now()
	res, err := s.pg.NewUpdate((*settlementModel)(nil)).
		Set("status = $1", string(settlement.StatusCompleted)).
		Set("rail = $2", rail).
		Set("completed_at = $3", t).
		Set("updated_at = $4", t).
		Where("id = $5", settlementID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, settlement.ErrNotFound)
}

func (s *Store) CreateLeg(ctx context.Context, leg *settlement.Leg) error {
	_, err := s.pg.NewInsert(toLegModel(leg)).Exec(ctx)
	return err
}

func (s *Store) MarkLegCommitted(ctx context.Context, legID id.LegID, railTxnID id.RailTxnID) error {
	res, err := s.pg.NewUpdate((*legModel)(nil)).
		Set("committed = $1", true).
		Set("rail_txn_id = $2", railTxnID.String()).
		Where("id = $3", legID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, settlement.ErrNotFound)
}

func (s *Store) ListLegs(ctx context.Context, settlementID id.SettlementID) ([]*settlement.Leg, error) {
	var models []legModel
	err := s.pg.NewSelect(&models).Where("settlement_id = $1", settlementID.String()).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return mapModels(models, fromLegModel)
}

func (s *Store) ListOrphanedPreparedLegs(ctx context.Context, cutoff time.Time) ([]*settlement.Leg, error) {
	var stuckSettlements []settlementModel
	err := s.pg.NewSelect(&stuckSettlements).
		Where("status = $1", string(settlement.StatusInProgress)).
		Where("started_at < $2", cutoff).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(stuckSettlements) == 0 {
		return nil, nil
	}

	var orphaned []*settlement.Leg
	for i := range stuckSettlements {
		var legModels []legModel
		err := s.pg.NewSelect(&legModels).
			Where("settlement_id = $1", stuckSettlements[i].ID).
			Where("committed = $2", false).
			Scan(ctx)
		if err != nil {
			return nil, err
		}
		legs, err := mapModels(legModels, fromLegModel)
		if err != nil {
			return nil, err
		}
		orphaned = append(orphaned, legs...)
	}
	return orphaned, nil
}

// ==================== Helpers ====================

func now() time.Time { return time.Now().UTC() }

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func checkRowsAffected(res sql.Result, notFoundErr error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFoundErr
	}
	return nil
}

func mapModels[M any, T any](models []M, from func(*M) (*T, error)) ([]*T, error) {
	out := make([]*T, len(models))
	for i := range models {
		v, err := from(&models[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
