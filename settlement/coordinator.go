package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowcap/settlenet/account"
	"github.com/flowcap/settlenet/decision"
	"github.com/flowcap/settlenet/fraud"
	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/invariant"
	"github.com/flowcap/settlenet/invoice"
	ledgerpkg "github.com/flowcap/settlenet/ledger"
	"github.com/flowcap/settlenet/pricing"
	"github.com/flowcap/settlenet/rail"
	"github.com/flowcap/settlenet/types"
)

var tracer = otel.Tracer("github.com/flowcap/settlenet/settlement")

// PrepareTimeout and CommitTimeout bound each rail call during the
// two-phase commit (spec §4.8, §6 configuration).
const (
	PrepareTimeout = 2 * time.Second
	CommitTimeout  = 2 * time.Second
)

// Input is everything the coordinator needs to attempt one settlement.
type Input struct {
	Invoice       *invoice.Invoice
	Quote         *pricing.Quote
	Signature     string
	AcceptanceID  string
}

// Coordinator is the settlement component (spec §4.8) — the hot path.
type Coordinator struct {
	accounts   *account.Registry
	invoices   invoice.Store
	fraudGate  *fraud.Gate
	rails      *rail.Registry
	ledger     *ledgerpkg.Ledger
	decisions  *decision.Ledger
	invariants *invariant.Engine
	store      Store
	logger     *slog.Logger
	now        func() time.Time

	// postInvariantIDs are evaluated against the Engine after commit,
	// in addition to the structural checks in postBarrier. Left empty,
	// only the structural checks run.
	postInvariantIDs []string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithPostInvariants registers invariant IDs that must hold (post-phase)
// after every settlement commits, evaluated via the shared Engine
// alongside the coordinator's own structural checks.
func WithPostInvariants(ids ...string) Option {
	return func(c *Coordinator) { c.postInvariantIDs = ids }
}

func New(
	accounts *account.Registry,
	invoices invoice.Store,
	fraudGate *fraud.Gate,
	rails *rail.Registry,
	ledger *ledgerpkg.Ledger,
	decisions *decision.Ledger,
	invariants *invariant.Engine,
	store Store,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		accounts:   accounts,
		invoices:   invoices,
		fraudGate:  fraudGate,
		rails:      rails,
		ledger:     ledger,
		decisions:  decisions,
		invariants: invariants,
		store:      store,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// preBarrier runs every pre-check named in spec §4.8 in dependency order:
// accounts active and KYC-verified, sanctions clear (the pre-commit
// checkpoint of the three named in account.Registry), quote unexpired
// and unused, quoted price still matching current pricing within 0.01,
// fraud score fresh and below threshold, and a healthy rail available.
// Any failure is a clean Reject: no ledger write has occurred yet.
func (c *Coordinator) preBarrier(ctx context.Context, in Input) (Outcome, error) {
	inv := in.Invoice
	quote := in.Quote

	supplier, err := c.accounts.Get(ctx, inv.SupplierID)
	if err != nil {
		return c.rejectPreBarrier(ctx, inv.ID, fmt.Sprintf("supplier lookup failed: %v", err)), nil
	}
	buyer, err := c.accounts.Get(ctx, inv.BuyerID)
	if err != nil {
		return c.rejectPreBarrier(ctx, inv.ID, fmt.Sprintf("buyer lookup failed: %v", err)), nil
	}
	provider, err := c.accounts.Get(ctx, quote.ProviderID)
	if err != nil {
		return c.rejectPreBarrier(ctx, inv.ID, fmt.Sprintf("provider lookup failed: %v", err)), nil
	}

	for _, a := range []*account.Account{supplier, buyer, provider} {
		if a.Status != account.StatusActive {
			return c.rejectPreBarrier(ctx, inv.ID, fmt.Sprintf("account %s not active", a.ID.String())), nil
		}
		if a.KYCStatus != account.KYCVerified {
			return c.rejectPreBarrier(ctx, inv.ID, fmt.Sprintf("account %s KYC not verified", a.ID.String())), nil
		}
	}

	for _, acctID := range []id.AccountID{supplier.ID, buyer.ID, provider.ID} {
		clear, err := c.accounts.ScreenSanctions(ctx, acctID)
		if err != nil || !clear {
			return c.rejectPreBarrier(ctx, inv.ID, fmt.Sprintf("account %s failed sanctions screening", acctID.String())), nil
		}
	}

	if !quote.IsValid(c.now()) {
		return c.rejectPreBarrier(ctx, inv.ID, "quote expired or already used"), nil
	}

	expectedCost := pricing.TotalCost(inv.Amount.Amount, quote.DiscountRate, quote.Terms)
	if abs64(expectedCost-quote.TotalCost.Amount) > 1 {
		return c.rejectPreBarrier(ctx, inv.ID, "quoted price does not match current pricing"), nil
	}

	verdict, score, scoredAt, err := c.fraudGate.CheckFresh(ctx, inv.ID, inv.FraudScore, inv.FraudScoredAt)
	if err != nil {
		return c.rejectPreBarrier(ctx, inv.ID, fmt.Sprintf("fraud check failed: %v", err)), nil
	}
	if score != inv.FraudScore || !scoredAt.Equal(inv.FraudScoredAt) {
		if err := c.invoices.UpdateFraudScore(ctx, inv.ID, score, scoredAt); err != nil {
			c.logger.Error("failed to persist recomputed fraud score", "invoice_id", inv.ID.String(), "error", err)
		}
	}
	if !verdict.Pass {
		c.transitionInvoice(ctx, inv.ID, invoice.StatusFraudReview)
		return c.rejectPreBarrier(ctx, inv.ID, "fraud score exceeds threshold"), nil
	}

	if _, err := c.rails.Select(ctx); err != nil {
		return Abort("no healthy rail adapter available"), nil
	}

	return OK(nil), nil
}

func (c *Coordinator) rejectPreBarrier(ctx context.Context, invID id.InvoiceID, reason string) Outcome {
	if _, err := c.decisions.Append(ctx, decision.Record{
		ID:          id.NewDecisionID(),
		InvariantID: "settlement-pre-barrier",
		Phase:       invariant.PhasePre,
		Result:      false,
		Reason:      reason,
		Action:      invariant.ActionRollback,
		Actor:       "coordinator",
		CreatedAt:   c.now(),
		Snapshot:    map[string]any{"invoice_id": invID.String()},
	}); err != nil {
		c.logger.Error("failed to append pre-barrier decision record", "error", err)
	}
	return Reject(reason)
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// Settle runs the full settlement protocol for one accepted invoice
// (spec §4.8). It returns an Outcome rather than relying on error
// propagation for control flow, per the Design Notes' reducer pattern.
func (c *Coordinator) Settle(ctx context.Context, in Input) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "settlement.Settle", trace.WithAttributes(
		attribute.String("invoice_id", in.Invoice.ID.String()),
	))
	defer span.End()

	started := c.now()

	if outcome, err := c.preBarrier(ctx, in); outcome.Kind != OutcomeOK {
		return outcome, err
	}

	existing, err := c.store.GetSettlementByInvoice(ctx, in.Invoice.ID)
	if err == nil && existing != nil {
		// Idempotent retry: the settlement already exists for this invoice.
		return OK(existing), nil
	}

	s := &Settlement{
		Entity:       types.NewEntity(),
		ID:           id.NewSettlementID(),
		InvoiceID:    in.Invoice.ID,
		SupplierID:   in.Invoice.SupplierID,
		BuyerID:      in.Invoice.BuyerID,
		ProviderID:   in.Quote.ProviderID,
		Amount:       in.Invoice.Amount,
		DiscountRate: in.Quote.DiscountRate,
		BuyerCost:    in.Quote.TotalCost,
		Status:       StatusInProgress,
		StartedAt:    started,
	}
	if err := c.store.CreateSettlement(ctx, s); err != nil {
		return Reject(fmt.Sprintf("create settlement: %v", err)), nil
	}

	legs := c.buildLegs(s)

	adapter, tokens, outcome := c.selectAndPrepare(ctx, s.ID, legs)
	if outcome.Kind != OutcomeOK {
		c.store.UpdateStatus(ctx, s.ID, StatusFailed)
		c.transitionInvoice(ctx, in.Invoice.ID, invoice.StatusFailed)
		return outcome, nil
	}
	s.Rail = adapter.Name()

	results, outcome := c.commitAll(ctx, adapter, s.ID, tokens)
	if outcome.Kind != OutcomeOK {
		c.compensateAll(ctx, adapter, tokens, results, legs, s.ID, in.Invoice.ID)
		c.store.UpdateStatus(ctx, s.ID, StatusFailed)
		c.transitionInvoice(ctx, in.Invoice.ID, invoice.StatusFailed)
		c.recordTransition(ctx, in.Invoice.ID, "failed after partial commit", "coordinator")
		return outcome, nil
	}

	for i, leg := range legs {
		if err := c.store.CreateLeg(ctx, leg); err != nil {
			c.logger.Error("failed to persist leg", "settlement_id", s.ID.String(), "leg", leg.Type, "error", err)
		}
		if err := c.store.MarkLegCommitted(ctx, leg.ID, tokens[i].RailTxnID); err != nil {
			c.logger.Error("failed to mark leg committed", "leg_id", leg.ID.String(), "error", err)
		}
		if _, err := c.ledger.Append(ctx, legLedgerInput(leg)); err != nil {
			c.logger.Error("failed to append ledger entry for leg", "leg", leg.Type, "error", err)
		}
	}

	completedAt := c.now()
	s.CompletedAt = &completedAt
	s.Status = StatusCompleted
	if err := c.store.Complete(ctx, s.ID, s.Rail); err != nil {
		c.logger.Error("failed to mark settlement complete", "settlement_id", s.ID.String(), "error", err)
	}
	c.transitionInvoice(ctx, in.Invoice.ID, invoice.StatusSettled)

	if outcome := c.postBarrier(ctx, s, legs); outcome.Kind != OutcomeOK {
		// Committed legs with a failed post-check is a system-level
		// incident (spec §7) — surfaced to the caller as Abort so the
		// freeze path can be triggered upstream; the legs themselves are
		// not rolled back, since compensation after commit success would
		// itself violate the exactly-once invariant.
		return outcome, nil
	}

	elapsed := completedAt.Sub(started)
	if elapsed > MaxDuration {
		c.logger.Warn("settlement exceeded duration invariant", "settlement_id", s.ID.String(), "elapsed_ms", elapsed.Milliseconds())
	}

	return OK(s), nil
}

func (c *Coordinator) buildLegs(s *Settlement) []*Leg {
	profit := s.BuyerCost.Subtract(s.Amount)
	return []*Leg{
		{ID: id.NewLegID(), SettlementID: s.ID, Type: LegCreditSupplier, AccountID: s.SupplierID, Amount: s.Amount},
		{ID: id.NewLegID(), SettlementID: s.ID, Type: LegDebitBuyer, AccountID: s.BuyerID, Amount: s.BuyerCost},
		{ID: id.NewLegID(), SettlementID: s.ID, Type: LegAdvanceCapital, AccountID: s.ProviderID, Amount: profit},
	}
}

func legLedgerInput(leg *Leg) ledgerpkg.AppendInput {
	entryType := ledgerpkg.TypeCredit
	if leg.Type == LegDebitBuyer {
		entryType = ledgerpkg.TypeDebit
	}
	return ledgerpkg.AppendInput{
		Type:      entryType,
		AccountID: leg.AccountID,
		Amount:    leg.Amount,
		Reason:    string(leg.Type),
	}
}

// prepareResult pairs a leg's prepare call with its outcome so that
// partial failures can be rolled back by index.
type prepareResult struct {
	token rail.PrepareToken
	err   error
}

func (c *Coordinator) prepareAll(ctx context.Context, adapter rail.Adapter, settlementID id.SettlementID, legs []*Leg) ([]rail.PrepareToken, Outcome) {
	results := make([]prepareResult, len(legs))
	var wg sync.WaitGroup
	for i, leg := range legs {
		wg.Add(1)
		go func(i int, leg *Leg) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, PrepareTimeout)
			defer cancel()
			token, err := adapter.Prepare(pctx, settlementID, leg.AccountID, leg.Amount)
			results[i] = prepareResult{token: token, err: err}
		}(i, leg)
	}
	wg.Wait()

	tokens := make([]rail.PrepareToken, len(legs))
	for i, r := range results {
		tokens[i] = r.token
		if r.err != nil {
			return tokens, Abort(fmt.Sprintf("prepare failed for leg %s: %v", legs[i].Type, r.err))
		}
	}
	return tokens, OK(nil)
}

// selectAndPrepare walks the rail registry in priority order (spec
// §4.9) and attempts prepare on each healthy candidate, falling through
// to the next rail when prepare is rejected rather than aborting on the
// first failure. The settlement pins to whichever rail's prepare
// succeeds; any tokens obtained from a rail that ultimately failed are
// rolled back on that same rail before moving on.
func (c *Coordinator) selectAndPrepare(ctx context.Context, settlementID id.SettlementID, legs []*Leg) (rail.Adapter, []rail.PrepareToken, Outcome) {
	candidates := c.rails.Ordered()
	if len(candidates) == 0 {
		return nil, nil, Abort("no rail adapters registered")
	}

	now := c.now()
	lastReason := "no healthy rail adapter available"
	for _, adapter := range candidates {
		h, err := adapter.Health(ctx)
		if err != nil {
			lastReason = fmt.Sprintf("%s: health probe failed: %v", adapter.Name(), err)
			continue
		}
		if !h.Up || h.IsStale(now, rail.HealthMaxAge) {
			lastReason = fmt.Sprintf("%s: unhealthy or stale", adapter.Name())
			continue
		}

		tokens, outcome := c.prepareAll(ctx, adapter, settlementID, legs)
		if outcome.Kind == OutcomeOK {
			return adapter, tokens, OK(nil)
		}
		c.rollbackAll(ctx, adapter, tokens)
		lastReason = fmt.Sprintf("%s: %s", adapter.Name(), outcome.Reason)
	}
	return nil, nil, Abort(fmt.Sprintf("prepare failed on all rails: %s", lastReason))
}

func (c *Coordinator) rollbackAll(ctx context.Context, adapter rail.Adapter, tokens []rail.PrepareToken) {
	var wg sync.WaitGroup
	for _, tok := range tokens {
		if tok.RailTxnID.IsNil() {
			continue
		}
		wg.Add(1)
		go func(tok rail.PrepareToken) {
			defer wg.Done()
			if err := adapter.Rollback(ctx, tok); err != nil {
				c.logger.Error("rollback failed", "rail_txn_id", tok.RailTxnID.String(), "error", err)
			}
		}(tok)
	}
	wg.Wait()
}

type commitResult struct {
	result rail.CommitResult
	err    error
}

func (c *Coordinator) commitAll(ctx context.Context, adapter rail.Adapter, settlementID id.SettlementID, tokens []rail.PrepareToken) ([]commitResult, Outcome) {
	results := make([]commitResult, len(tokens))
	var wg sync.WaitGroup
	for i, tok := range tokens {
		wg.Add(1)
		go func(i int, tok rail.PrepareToken) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, CommitTimeout)
			defer cancel()
			res, err := adapter.Commit(cctx, tok)
			if err != nil && cctx.Err() != nil {
				res = c.resolveIndeterminate(ctx, adapter, settlementID)
				err = nil
			}
			results[i] = commitResult{result: res, err: err}
		}(i, tok)
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil || r.result == rail.Failed {
			return results, Abort("commit failed on at least one leg")
		}
	}
	return results, OK(nil)
}

// resolveIndeterminate polls the rail's idempotent status endpoint until
// it returns a terminal answer (spec §4.8): the settlement stays
// in-progress and is not reported to the client until resolved.
func (c *Coordinator) resolveIndeterminate(ctx context.Context, adapter rail.Adapter, settlementID id.SettlementID) rail.CommitResult {
	backoff := 200 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return rail.Indeterminate
		default:
		}
		res, err := adapter.Status(ctx, settlementID)
		if err == nil && res != rail.Indeterminate {
			return res
		}
		time.Sleep(backoff)
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
}

// compensateAll reverses every leg whose commit actually succeeded before
// the settlement as a whole failed. Spec §4.8/scenario 4: each
// compensated leg produces both a correcting ledger entry (the rail
// adapter's Compensate call moved real money; the ledger must not be
// silent about it) and its own decision record, on top of the single
// failure record recordTransition already appends for the settlement.
func (c *Coordinator) compensateAll(ctx context.Context, adapter rail.Adapter, tokens []rail.PrepareToken, results []commitResult, legs []*Leg, settlementID id.SettlementID, invoiceID id.InvoiceID) {
	var wg sync.WaitGroup
	for i, r := range results {
		if r.result != rail.Committed {
			continue
		}
		wg.Add(1)
		go func(tok rail.PrepareToken, leg *Leg) {
			defer wg.Done()
			if err := adapter.Compensate(ctx, tok); err != nil {
				c.logger.Error("compensation failed", "rail_txn_id", tok.RailTxnID.String(), "error", err)
				return
			}
			c.recordCompensation(ctx, leg, settlementID, invoiceID)
		}(tokens[i], legs[i])
	}
	wg.Wait()
}

// recordCompensation appends the correcting ledger entry and decision
// record for one compensated leg.
func (c *Coordinator) recordCompensation(ctx context.Context, leg *Leg, settlementID id.SettlementID, invoiceID id.InvoiceID) {
	sid := settlementID
	if _, err := c.ledger.Append(ctx, ledgerpkg.AppendInput{
		Type:         ledgerpkg.TypeCorrection,
		AccountID:    leg.AccountID,
		Amount:       leg.Amount,
		Reason:       fmt.Sprintf("compensation: reversing committed %s", leg.Type),
		SettlementID: &sid,
	}); err != nil {
		c.logger.Error("failed to append compensation ledger entry", "leg", leg.Type, "error", err)
	}

	if _, err := c.decisions.Append(ctx, decision.Record{
		ID:          id.NewDecisionID(),
		InvariantID: "settlement-compensation",
		Phase:       invariant.PhasePost,
		Result:      true,
		Reason:      fmt.Sprintf("compensated committed leg %s after partial commit failure", leg.Type),
		Action:      invariant.ActionRollback,
		Actor:       "coordinator",
		CreatedAt:   c.now(),
		Snapshot: map[string]any{
			"invoice_id":    invoiceID.String(),
			"settlement_id": settlementID.String(),
			"leg_id":        leg.ID.String(),
		},
	}); err != nil {
		c.logger.Error("failed to append compensation decision record", "error", err)
	}
}

// transitionInvoice routes the post-settlement status change through
// invoice.Store.Transition, the only method permitted to write the
// status column (spec §4.5). A failure here is logged, not fatal: the
// settlement itself is already durable and the scheduler's reconciler
// will catch a stuck invoice status on its next sweep.
func (c *Coordinator) transitionInvoice(ctx context.Context, invID id.InvoiceID, to invoice.Status) {
	if c.invoices == nil {
		return
	}
	if err := c.invoices.Transition(ctx, invID, to, c.now()); err != nil {
		c.logger.Error("failed to transition invoice status", "invoice_id", invID.String(), "to", to, "error", err)
	}
}

func (c *Coordinator) recordTransition(ctx context.Context, invID id.InvoiceID, reason, actor string) {
	_, err := c.decisions.Append(ctx, decision.Record{
		ID:          id.NewDecisionID(),
		InvariantID: "settlement-outcome",
		Result:      false,
		Reason:      reason,
		Action:      invariant.ActionRollback,
		Actor:       actor,
		CreatedAt:   c.now(),
		Snapshot:    map[string]any{"invoice_id": invID.String()},
	})
	if err != nil {
		c.logger.Error("failed to append decision record", "error", err)
	}
}

// postBarrier verifies the properties named in spec §4.8/§8: exactly one
// settlement row, three leg rows, legs sum to zero across participants,
// plus any invariant IDs the coordinator was configured to enforce.
func (c *Coordinator) postBarrier(ctx context.Context, s *Settlement, legs []*Leg) Outcome {
	if len(legs) != 3 {
		return Abort("expected exactly three legs")
	}
	var net int64
	for _, leg := range legs {
		switch leg.Type {
		case LegDebitBuyer:
			net -= leg.Amount.Amount
		default:
			net += leg.Amount.Amount
		}
	}
	if net != 0 {
		return Abort(fmt.Sprintf("legs do not sum to zero: net=%d", net))
	}

	if len(c.postInvariantIDs) > 0 {
		decisions := c.invariants.CheckAll(ctx, c.postInvariantIDs, invariant.PhasePost, s, 0)
		for _, d := range decisions {
			if _, err := c.decisions.Append(ctx, decision.FromDecision(d, "coordinator", map[string]any{"settlement_id": s.ID.String()})); err != nil {
				c.logger.Error("failed to append invariant decision", "error", err)
			}
			if !d.OK {
				return Abort(fmt.Sprintf("post-commit invariant %q failed: %s", d.InvariantID, d.Reason))
			}
		}
	}
	return OK(s)
}
