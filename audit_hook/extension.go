// Package audithook bridges Network lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package is not forced to
// depend on any particular sink; DecisionRecorder bridges directly to
// the decision ledger, which is this system's own audit-of-record.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowcap/settlenet/decision"
	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/invariant"
	"github.com/flowcap/settlenet/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnInvoiceSubmitted     = (*Extension)(nil)
	_ plugin.OnInvoiceAccepted      = (*Extension)(nil)
	_ plugin.OnInvoiceRejected      = (*Extension)(nil)
	_ plugin.OnFraudFlagged         = (*Extension)(nil)
	_ plugin.OnAuctionOpened        = (*Extension)(nil)
	_ plugin.OnAuctionClosed        = (*Extension)(nil)
	_ plugin.OnLowLiquidity         = (*Extension)(nil)
	_ plugin.OnQuoteIssued          = (*Extension)(nil)
	_ plugin.OnSettlementStarted    = (*Extension)(nil)
	_ plugin.OnSettlementCompleted  = (*Extension)(nil)
	_ plugin.OnSettlementFailed     = (*Extension)(nil)
	_ plugin.OnSettlementRolledBack = (*Extension)(nil)
	_ plugin.OnLedgerEntryAppended  = (*Extension)(nil)
	_ plugin.OnReconcileImbalance   = (*Extension)(nil)
	_ plugin.OnInvariantViolation   = (*Extension)(nil)
	_ plugin.OnFreezeTripped        = (*Extension)(nil)
	_ plugin.OnRailHealthChanged    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event. It is the
// wire shape every Extension hook builds before handing off to a
// Recorder.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// DecisionRecorder bridges audit events to the decision ledger: every
// event becomes one append-only, hash-chained decision.Record, with the
// audit action as the invariant ID and the audit outcome as the
// decision's result. This makes the audit trail itself tamper-evident
// rather than a side-channel log.
type DecisionRecorder struct {
	ledger *decision.Ledger
	actor  string
}

// NewDecisionRecorder wraps a decision ledger as a Recorder. actor
// identifies the source of these records in the chain (e.g.
// "audit-hook").
func NewDecisionRecorder(ledger *decision.Ledger, actor string) *DecisionRecorder {
	return &DecisionRecorder{ledger: ledger, actor: actor}
}

// Record implements Recorder.
func (d *DecisionRecorder) Record(ctx context.Context, event *AuditEvent) error {
	action := invariant.ActionProceed
	if event.Outcome != OutcomeSuccess {
		action = invariant.ActionRollback
	}

	snapshot := make(map[string]any, len(event.Metadata)+2)
	for k, v := range event.Metadata {
		snapshot[k] = v
	}
	snapshot["resource"] = event.Resource
	snapshot["category"] = event.Category

	_, err := d.ledger.Append(ctx, decision.Record{
		ID:          id.NewDecisionID(),
		InvariantID: event.Action,
		Phase:       invariant.PhasePost,
		Result:      event.Outcome == OutcomeSuccess,
		Reason:      event.Reason,
		Action:      action,
		Snapshot:    snapshot,
		Actor:       d.actor,
	})
	return err
}

// Extension bridges Network lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceSubmitted implements plugin.OnInvoiceSubmitted.
func (e *Extension) OnInvoiceSubmitted(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionInvoiceSubmitted, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, "", CategorySettlement, nil,
		"event", "invoice_submitted",
	)
}

// OnInvoiceAccepted implements plugin.OnInvoiceAccepted.
func (e *Extension) OnInvoiceAccepted(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionInvoiceAccepted, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, "", CategorySettlement, nil,
		"event", "invoice_accepted",
	)
}

// OnInvoiceRejected implements plugin.OnInvoiceRejected.
func (e *Extension) OnInvoiceRejected(ctx context.Context, _ interface{}, reason string) error {
	return e.record(ctx, ActionInvoiceRejected, SeverityWarning, OutcomeFailure,
		ResourceInvoice, "", CategorySettlement, nil,
		"event", "invoice_rejected",
		"reject_reason", reason,
	)
}

// OnFraudFlagged implements plugin.OnFraudFlagged.
func (e *Extension) OnFraudFlagged(ctx context.Context, _ interface{}, score float64) error {
	return e.record(ctx, ActionFraudFlagged, SeverityWarning, OutcomePartial,
		ResourceInvoice, "", CategoryRisk, nil,
		"event", "fraud_flagged",
		"score", score,
	)
}

// ──────────────────────────────────────────────────
// Auction / pricing hooks
// ──────────────────────────────────────────────────

// OnAuctionOpened implements plugin.OnAuctionOpened.
func (e *Extension) OnAuctionOpened(ctx context.Context, invoiceID string, closesAt time.Time) error {
	return e.record(ctx, ActionAuctionOpened, SeverityInfo, OutcomeSuccess,
		ResourceAuction, invoiceID, CategoryPricing, nil,
		"invoice_id", invoiceID,
		"closes_at", closesAt,
	)
}

// OnAuctionClosed implements plugin.OnAuctionClosed.
func (e *Extension) OnAuctionClosed(ctx context.Context, invoiceID string, eligibleBids int) error {
	return e.record(ctx, ActionAuctionClosed, SeverityInfo, OutcomeSuccess,
		ResourceAuction, invoiceID, CategoryPricing, nil,
		"invoice_id", invoiceID,
		"eligible_bids", eligibleBids,
	)
}

// OnLowLiquidity implements plugin.OnLowLiquidity.
func (e *Extension) OnLowLiquidity(ctx context.Context, invoiceID string, eligibleBids int) error {
	return e.record(ctx, ActionLowLiquidity, SeverityWarning, OutcomePartial,
		ResourceAuction, invoiceID, CategoryPricing, nil,
		"invoice_id", invoiceID,
		"eligible_bids", eligibleBids,
	)
}

// OnQuoteIssued implements plugin.OnQuoteIssued.
func (e *Extension) OnQuoteIssued(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionQuoteIssued, SeverityInfo, OutcomeSuccess,
		ResourceQuote, "", CategoryPricing, nil,
		"event", "quote_issued",
	)
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementStarted implements plugin.OnSettlementStarted.
func (e *Extension) OnSettlementStarted(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionSettlementStarted, SeverityInfo, OutcomeSuccess,
		ResourceSettlement, "", CategorySettlement, nil,
		"event", "settlement_started",
	)
}

// OnSettlementCompleted implements plugin.OnSettlementCompleted.
func (e *Extension) OnSettlementCompleted(ctx context.Context, _ interface{}, elapsed time.Duration) error {
	return e.record(ctx, ActionSettlementCompleted, SeverityInfo, OutcomeSuccess,
		ResourceSettlement, "", CategorySettlement, nil,
		"event", "settlement_completed",
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (e *Extension) OnSettlementFailed(ctx context.Context, invoiceID string, reason string) error {
	return e.record(ctx, ActionSettlementFailed, SeverityCritical, OutcomeFailure,
		ResourceSettlement, invoiceID, CategorySettlement, nil,
		"invoice_id", invoiceID,
		"fail_reason", reason,
	)
}

// OnSettlementRolledBack implements plugin.OnSettlementRolledBack.
func (e *Extension) OnSettlementRolledBack(ctx context.Context, settlementID string, reason string) error {
	return e.record(ctx, ActionSettlementRolledBack, SeverityCritical, OutcomeFailure,
		ResourceSettlement, settlementID, CategorySettlement, nil,
		"settlement_id", settlementID,
		"rollback_reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Ledger / invariant hooks
// ──────────────────────────────────────────────────

// OnLedgerEntryAppended implements plugin.OnLedgerEntryAppended.
func (e *Extension) OnLedgerEntryAppended(_ context.Context, _ interface{}) error {
	// High-volume hook, intentionally not audited — the ledger itself is
	// the authoritative, tamper-evident record of every entry.
	return nil
}

// OnReconcileImbalance implements plugin.OnReconcileImbalance.
func (e *Extension) OnReconcileImbalance(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionReconcileImbalance, SeverityCritical, OutcomeFailure,
		ResourceLedger, "", CategoryLedger, nil,
		"event", "reconcile_imbalance",
	)
}

// OnInvariantViolation implements plugin.OnInvariantViolation.
func (e *Extension) OnInvariantViolation(ctx context.Context, invariantID string, reason string) error {
	return e.record(ctx, ActionInvariantViolation, SeverityError, OutcomeFailure,
		ResourceInvariant, invariantID, CategoryLedger, nil,
		"invariant_id", invariantID,
		"violation_reason", reason,
	)
}

// OnFreezeTripped implements plugin.OnFreezeTripped.
func (e *Extension) OnFreezeTripped(ctx context.Context, reason string) error {
	return e.record(ctx, ActionFreezeTripped, SeverityCritical, OutcomeFailure,
		ResourceSystem, "", CategoryLedger, nil,
		"freeze_reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Rail hooks
// ──────────────────────────────────────────────────

// OnRailHealthChanged implements plugin.OnRailHealthChanged.
func (e *Extension) OnRailHealthChanged(ctx context.Context, railName string, healthy bool) error {
	severity := SeverityInfo
	outcome := OutcomeSuccess
	if !healthy {
		severity = SeverityWarning
		outcome = OutcomePartial
	}
	return e.record(ctx, ActionRailHealthChanged, severity, outcome,
		ResourceRail, railName, CategoryInfra, nil,
		"rail", railName,
		"healthy", healthy,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
