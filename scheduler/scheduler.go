// Package scheduler runs the lifecycle jobs that keep the network from
// accumulating orphaned state between settlements (spec §4.10): expiring
// stale invoices, closing stale auctions, releasing orphaned credit
// reservations, sweeping orphaned prepared legs, and periodic ledger
// reconciliation. Each job is its own ticker-driven goroutine, the same
// shape as the teacher's meterFlushWorker replicated per concern.
package scheduler

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/flowcap/settlenet/account"
	ledgerpkg "github.com/flowcap/settlenet/ledger"
	"github.com/flowcap/settlenet/invoice"
	"github.com/flowcap/settlenet/pricing"
	"github.com/flowcap/settlenet/rail"
	"github.com/flowcap/settlenet/settlement"
)

// Default lifecycle bounds (spec §4.10).
const (
	InvoiceExpiry          = 48 * time.Hour
	ReservationOrphanAge   = 10 * time.Minute
	OrphanLegAge           = time.Hour
	DefaultTickInterval     = time.Minute
	DefaultReconcileInterval = time.Hour
)

// Scheduler owns the lifecycle jobs and their goroutines.
type Scheduler struct {
	invoices    invoice.Store
	pricing     pricing.Store
	accounts    *account.Registry
	settlements settlement.Store
	rails       *rail.Registry
	ledger      *ledgerpkg.Ledger

	tickInterval      time.Duration
	reconcileInterval time.Duration
	reconcileCurrency string

	logger   *slog.Logger
	now      func() time.Time
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTickInterval overrides the polling interval shared by the expiry,
// auction, reservation, and leg-sweep jobs. Defaults to one minute.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithReconcileInterval overrides the ledger reconciliation cadence.
// Defaults to one hour (spec §4.10).
func WithReconcileInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.reconcileInterval = d }
}

// WithReconcileCurrency sets the currency reconciled each pass. The
// network's ledger is single-currency per deployment (spec Non-goals).
func WithReconcileCurrency(currency string) Option {
	return func(s *Scheduler) { s.reconcileCurrency = currency }
}

func New(
	invoices invoice.Store,
	pricingStore pricing.Store,
	accounts *account.Registry,
	settlements settlement.Store,
	rails *rail.Registry,
	ledger *ledgerpkg.Ledger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		invoices:          invoices,
		pricing:           pricingStore,
		accounts:          accounts,
		settlements:       settlements,
		rails:             rails,
		ledger:            ledger,
		tickInterval:      DefaultTickInterval,
		reconcileInterval: DefaultReconcileInterval,
		reconcileCurrency: "usd",
		logger:            slog.Default(),
		now:               time.Now,
		stopChan:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches every lifecycle job as its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(5)
	go s.expireInvoicesWorker(ctx)
	go s.closeStaleAuctionsWorker(ctx)
	go s.releaseOrphanReservationsWorker(ctx)
	go s.sweepOrphanLegsWorker(ctx)
	go s.reconcileWorker(ctx)

	s.logger.Info("scheduler started",
		"tick_interval", s.tickInterval,
		"reconcile_interval", s.reconcileInterval,
	)
}

// Stop signals every job to finish its current pass and return.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Scheduler) expireInvoicesWorker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.expireInvoices(ctx)
		}
	}
}

func (s *Scheduler) expireInvoices(ctx context.Context) {
	cutoff := s.now().Add(-InvoiceExpiry)
	pending, err := s.invoices.ListPending(ctx, cutoff)
	if err != nil {
		s.logger.Error("list pending invoices failed", "error", err)
		return
	}
	for _, inv := range pending {
		if err := s.invoices.Transition(ctx, inv.ID, invoice.StatusExpired, s.now()); err != nil {
			s.logger.Error("expire invoice failed", "invoice_id", inv.ID.String(), "error", err)
			continue
		}
		s.logger.Info("invoice expired", "invoice_id", inv.ID.String())
	}
}

func (s *Scheduler) closeStaleAuctionsWorker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.closeStaleAuctions(ctx)
		}
	}
}

func (s *Scheduler) closeStaleAuctions(ctx context.Context) {
	stale, err := s.pricing.ListOpenAuctions(ctx, s.now())
	if err != nil {
		s.logger.Error("list open auctions failed", "error", err)
		return
	}
	for _, a := range stale {
		if err := s.pricing.CloseAuction(ctx, a.InvoiceID); err != nil {
			s.logger.Error("close stale auction failed", "invoice_id", a.InvoiceID.String(), "error", err)
			continue
		}
		s.logger.Info("auction closed by scheduler sweep", "invoice_id", a.InvoiceID.String())
	}
}

func (s *Scheduler) releaseOrphanReservationsWorker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.releaseOrphanReservations(ctx)
		}
	}
}

func (s *Scheduler) releaseOrphanReservations(ctx context.Context) {
	stale, err := s.accounts.ListStaleReservations(ctx, ReservationOrphanAge)
	if err != nil {
		s.logger.Error("list stale reservations failed", "error", err)
		return
	}
	for _, a := range stale {
		if err := s.accounts.ReleaseCredit(ctx, a.ID, a.ReservedCredit.Amount); err != nil {
			s.logger.Error("release orphan reservation failed", "account_id", a.ID.String(), "error", err)
			continue
		}
		s.logger.Warn("released orphan credit reservation", "account_id", a.ID.String(), "amount", a.ReservedCredit.Amount)
	}
}

func (s *Scheduler) sweepOrphanLegsWorker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweepOrphanLegs(ctx)
		}
	}
}

func (s *Scheduler) sweepOrphanLegs(ctx context.Context) {
	cutoff := s.now().Add(-OrphanLegAge)
	orphans, err := s.settlements.ListOrphanedPrepared(ctx, cutoff)
	if err != nil {
		s.logger.Error("list orphaned legs failed", "error", err)
		return
	}
	for _, adapter := range s.rails.Ordered() {
		for _, leg := range orphans {
			result, err := adapter.Status(ctx, leg.SettlementID)
			if err != nil {
				continue
			}
			switch result {
			case rail.Committed:
				if err := s.settlements.MarkLegCommitted(ctx, leg.ID, leg.RailTxnID); err != nil {
					s.logger.Error("mark orphan leg committed failed", "leg_id", leg.ID.String(), "error", err)
				}
			case rail.Failed:
				s.logger.Warn("orphan leg resolved as failed, requires manual settlement review", "leg_id", leg.ID.String(), "settlement_id", leg.SettlementID.String())
			}
		}
	}
}

func (s *Scheduler) reconcileWorker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

func (s *Scheduler) reconcile(ctx context.Context) {
	result, err := s.ledger.Reconcile(ctx, 0, math.MaxInt64, s.reconcileCurrency)
	if err != nil {
		s.logger.Error("reconciliation failed", "error", err)
		return
	}
	if !result.Balanced {
		s.logger.Error("ledger reconciliation found an imbalance",
			"imbalance_amount", result.ImbalanceAmount,
			"currency", result.Currency,
		)
		return
	}
	s.logger.Info("ledger reconciliation passed", "currency", result.Currency)
}
