// Package plugin provides an extensible plugin system for the settlement
// network. Plugins can hook into various lifecycle events to extend
// functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, n interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceSubmitted is called when a new invoice is admitted.
type OnInvoiceSubmitted interface {
	Plugin
	OnInvoiceSubmitted(ctx context.Context, inv interface{}) error
}

// OnInvoiceAccepted is called when an invoice clears acceptance checks
// and a quote is bound to it.
type OnInvoiceAccepted interface {
	Plugin
	OnInvoiceAccepted(ctx context.Context, inv interface{}) error
}

// OnInvoiceRejected is called when the settlement pre-checks reject an
// invoice at acceptance. Invoice expiry does not emit it.
type OnInvoiceRejected interface {
	Plugin
	OnInvoiceRejected(ctx context.Context, inv interface{}, reason string) error
}

// OnFraudFlagged is called when the fraud gate routes an invoice to
// manual review instead of an outright pass or reject.
type OnFraudFlagged interface {
	Plugin
	OnFraudFlagged(ctx context.Context, inv interface{}, score float64) error
}

// ──────────────────────────────────────────────────
// Pricing / auction hooks
// ──────────────────────────────────────────────────

// OnAuctionOpened is called when a capital auction opens for an invoice.
type OnAuctionOpened interface {
	Plugin
	OnAuctionOpened(ctx context.Context, invoiceID string, closesAt time.Time) error
}

// OnAuctionClosed is called by EmitAuctionClosed. The settlenet Network
// calls EmitAuctionClosed only from the pricing engine's low-liquidity
// hook, so auctions that close with three or more eligible bids do not
// reach this hook.
type OnAuctionClosed interface {
	Plugin
	OnAuctionClosed(ctx context.Context, invoiceID string, eligibleBids int) error
}

// OnLowLiquidity is called when an auction closes under the minimum
// eligible-bid threshold and the engine falls back to the default rate.
type OnLowLiquidity interface {
	Plugin
	OnLowLiquidity(ctx context.Context, invoiceID string, eligibleBids int) error
}

// OnQuoteIssued is called when a priced quote is bound to an invoice.
type OnQuoteIssued interface {
	Plugin
	OnQuoteIssued(ctx context.Context, quote interface{}) error
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementStarted is called when the coordinator begins the
// two-phase commit for an accepted invoice.
type OnSettlementStarted interface {
	Plugin
	OnSettlementStarted(ctx context.Context, settlement interface{}) error
}

// OnSettlementCompleted is called when all legs commit cleanly.
type OnSettlementCompleted interface {
	Plugin
	OnSettlementCompleted(ctx context.Context, settlement interface{}, elapsed time.Duration) error
}

// OnSettlementFailed is called when a settlement aborts: no healthy rail,
// prepare or commit failure on the rails (committed legs are compensated),
// or a failed post-commit check.
type OnSettlementFailed interface {
	Plugin
	OnSettlementFailed(ctx context.Context, invoiceID string, reason string) error
}

// OnSettlementRolledBack is called when compensation runs after a
// partial commit.
type OnSettlementRolledBack interface {
	Plugin
	OnSettlementRolledBack(ctx context.Context, settlementID string, reason string) error
}

// ──────────────────────────────────────────────────
// Ledger / invariant hooks
// ──────────────────────────────────────────────────

// OnLedgerEntryAppended is called after every successful ledger append.
type OnLedgerEntryAppended interface {
	Plugin
	OnLedgerEntryAppended(ctx context.Context, entry interface{}) error
}

// OnReconcileImbalance is called when a reconciliation pass detects a
// nonzero net imbalance over its window.
type OnReconcileImbalance interface {
	Plugin
	OnReconcileImbalance(ctx context.Context, result interface{}) error
}

// OnInvariantViolation is called whenever the invariant engine records a
// failing check, before any freeze decision is made.
type OnInvariantViolation interface {
	Plugin
	OnInvariantViolation(ctx context.Context, invariantID string, reason string) error
}

// OnFreezeTripped is called when an invariant violation escalates to a
// system freeze: no further settlements may start until an operator
// clears it.
type OnFreezeTripped interface {
	Plugin
	OnFreezeTripped(ctx context.Context, reason string) error
}

// ──────────────────────────────────────────────────
// Rail adapters
// ──────────────────────────────────────────────────

// RailAdapterPlugin contributes a rail.Adapter implementation.
type RailAdapterPlugin interface {
	Plugin
	Adapter() interface{} // Returns rail.Adapter
}

// OnRailHealthChanged is called when a rail adapter's health check
// result changes from the previous poll.
type OnRailHealthChanged interface {
	Plugin
	OnRailHealthChanged(ctx context.Context, railName string, healthy bool) error
}

// ──────────────────────────────────────────────────
// Scoring strategies
// ──────────────────────────────────────────────────

// FraudScorer provides a custom fraud scoring implementation in place of
// the default oracle.
type FraudScorer interface {
	Plugin
	ScorerName() string
	Score(ctx context.Context, inv interface{}) (float64, error)
}

// ──────────────────────────────────────────────────
// Settlement record exporters
// ──────────────────────────────────────────────────

// SettlementFormatter formats settlement records for export.
type SettlementFormatter interface {
	Plugin
	Format() string // "csv", "json", etc.
	Render(ctx context.Context, settlement interface{}, w interface{}) error
}
