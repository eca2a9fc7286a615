// Package observability provides a metrics extension for the settlement
// network that records lifecycle event counts and latencies via a
// pluggable MetricFactory, with a concrete Prometheus-backed
// implementation.
package observability

import (
	"context"
	"time"

	"github.com/flowcap/settlenet/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceSubmitted     = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceAccepted      = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceRejected      = (*MetricsExtension)(nil)
	_ plugin.OnFraudFlagged         = (*MetricsExtension)(nil)
	_ plugin.OnAuctionOpened        = (*MetricsExtension)(nil)
	_ plugin.OnAuctionClosed        = (*MetricsExtension)(nil)
	_ plugin.OnLowLiquidity         = (*MetricsExtension)(nil)
	_ plugin.OnQuoteIssued          = (*MetricsExtension)(nil)
	_ plugin.OnSettlementStarted    = (*MetricsExtension)(nil)
	_ plugin.OnSettlementCompleted  = (*MetricsExtension)(nil)
	_ plugin.OnSettlementFailed     = (*MetricsExtension)(nil)
	_ plugin.OnSettlementRolledBack = (*MetricsExtension)(nil)
	_ plugin.OnLedgerEntryAppended  = (*MetricsExtension)(nil)
	_ plugin.OnReconcileImbalance   = (*MetricsExtension)(nil)
	_ plugin.OnInvariantViolation   = (*MetricsExtension)(nil)
	_ plugin.OnFreezeTripped        = (*MetricsExtension)(nil)
	_ plugin.OnRailHealthChanged    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Gauge interface for metric gauges.
type Gauge interface {
	Set(float64)
	Inc()
	Dec()
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Gauge(name string) Gauge
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics. Register it as
// a Network plugin to automatically track settlement metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Invoice metrics
	InvoiceSubmitted Counter
	InvoiceAccepted  Counter
	InvoiceRejected  Counter
	FraudFlagged     Counter
	FraudScore       Histogram

	// Auction / pricing metrics
	AuctionOpened    Counter
	AuctionClosed    Counter
	AuctionBids      Histogram
	LowLiquidity     Counter
	QuoteIssued      Counter

	// Settlement metrics
	SettlementStarted    Counter
	SettlementCompleted  Counter
	SettlementFailed     Counter
	SettlementRolledBack Counter
	SettlementLatency    Histogram

	// Ledger / invariant metrics
	LedgerEntriesAppended Counter
	ReconcileImbalance    Counter
	InvariantViolations   Counter
	FreezeTripped         Counter
	SystemFrozen          Gauge

	// Rail metrics
	RailHealthy   Gauge
	RailUnhealthy Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided
// MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		InvoiceSubmitted: factory.Counter("settlenet.invoice.submitted"),
		InvoiceAccepted:  factory.Counter("settlenet.invoice.accepted"),
		InvoiceRejected:  factory.Counter("settlenet.invoice.rejected"),
		FraudFlagged:     factory.Counter("settlenet.fraud.flagged"),
		FraudScore:       factory.Histogram("settlenet.fraud.score"),

		AuctionOpened: factory.Counter("settlenet.auction.opened"),
		AuctionClosed: factory.Counter("settlenet.auction.closed"),
		AuctionBids:   factory.Histogram("settlenet.auction.eligible_bids"),
		LowLiquidity:  factory.Counter("settlenet.auction.low_liquidity"),
		QuoteIssued:   factory.Counter("settlenet.quote.issued"),

		SettlementStarted:    factory.Counter("settlenet.settlement.started"),
		SettlementCompleted:  factory.Counter("settlenet.settlement.completed"),
		SettlementFailed:     factory.Counter("settlenet.settlement.failed"),
		SettlementRolledBack: factory.Counter("settlenet.settlement.rolled_back"),
		SettlementLatency:    factory.Histogram("settlenet.settlement.latency_ms"),

		LedgerEntriesAppended: factory.Counter("settlenet.ledger.entries_appended"),
		ReconcileImbalance:    factory.Counter("settlenet.ledger.reconcile_imbalance"),
		InvariantViolations:   factory.Counter("settlenet.invariant.violations"),
		FreezeTripped:         factory.Counter("settlenet.system.freeze_tripped"),
		SystemFrozen:          factory.Gauge("settlenet.system.frozen"),

		RailHealthy:   factory.Gauge("settlenet.rail.healthy"),
		RailUnhealthy: factory.Counter("settlenet.rail.unhealthy_transitions"),

		StoreErrors:  factory.Counter("settlenet.store.errors"),
		PluginErrors: factory.Counter("settlenet.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceSubmitted implements plugin.OnInvoiceSubmitted.
func (m *MetricsExtension) OnInvoiceSubmitted(_ context.Context, _ interface{}) error {
	m.InvoiceSubmitted.Inc()
	return nil
}

// OnInvoiceAccepted implements plugin.OnInvoiceAccepted.
func (m *MetricsExtension) OnInvoiceAccepted(_ context.Context, _ interface{}) error {
	m.InvoiceAccepted.Inc()
	return nil
}

// OnInvoiceRejected implements plugin.OnInvoiceRejected.
func (m *MetricsExtension) OnInvoiceRejected(_ context.Context, _ interface{}, _ string) error {
	m.InvoiceRejected.Inc()
	return nil
}

// OnFraudFlagged implements plugin.OnFraudFlagged.
func (m *MetricsExtension) OnFraudFlagged(_ context.Context, _ interface{}, score float64) error {
	m.FraudFlagged.Inc()
	m.FraudScore.Observe(score)
	return nil
}

// ──────────────────────────────────────────────────
// Auction / pricing hooks
// ──────────────────────────────────────────────────

// OnAuctionOpened implements plugin.OnAuctionOpened.
func (m *MetricsExtension) OnAuctionOpened(_ context.Context, _ string, _ time.Time) error {
	m.AuctionOpened.Inc()
	return nil
}

// OnAuctionClosed implements plugin.OnAuctionClosed.
func (m *MetricsExtension) OnAuctionClosed(_ context.Context, _ string, eligibleBids int) error {
	m.AuctionClosed.Inc()
	m.AuctionBids.Observe(float64(eligibleBids))
	return nil
}

// OnLowLiquidity implements plugin.OnLowLiquidity.
func (m *MetricsExtension) OnLowLiquidity(_ context.Context, _ string, _ int) error {
	m.LowLiquidity.Inc()
	return nil
}

// OnQuoteIssued implements plugin.OnQuoteIssued.
func (m *MetricsExtension) OnQuoteIssued(_ context.Context, _ interface{}) error {
	m.QuoteIssued.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnSettlementStarted implements plugin.OnSettlementStarted.
func (m *MetricsExtension) OnSettlementStarted(_ context.Context, _ interface{}) error {
	m.SettlementStarted.Inc()
	return nil
}

// OnSettlementCompleted implements plugin.OnSettlementCompleted.
func (m *MetricsExtension) OnSettlementCompleted(_ context.Context, _ interface{}, elapsed time.Duration) error {
	m.SettlementCompleted.Inc()
	m.SettlementLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (m *MetricsExtension) OnSettlementFailed(_ context.Context, _ string, _ string) error {
	m.SettlementFailed.Inc()
	return nil
}

// OnSettlementRolledBack implements plugin.OnSettlementRolledBack.
func (m *MetricsExtension) OnSettlementRolledBack(_ context.Context, _ string, _ string) error {
	m.SettlementRolledBack.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Ledger / invariant hooks
// ──────────────────────────────────────────────────

// OnLedgerEntryAppended implements plugin.OnLedgerEntryAppended.
func (m *MetricsExtension) OnLedgerEntryAppended(_ context.Context, _ interface{}) error {
	m.LedgerEntriesAppended.Inc()
	return nil
}

// OnReconcileImbalance implements plugin.OnReconcileImbalance.
func (m *MetricsExtension) OnReconcileImbalance(_ context.Context, _ interface{}) error {
	m.ReconcileImbalance.Inc()
	return nil
}

// OnInvariantViolation implements plugin.OnInvariantViolation.
func (m *MetricsExtension) OnInvariantViolation(_ context.Context, _ string, _ string) error {
	m.InvariantViolations.Inc()
	return nil
}

// OnFreezeTripped implements plugin.OnFreezeTripped.
func (m *MetricsExtension) OnFreezeTripped(_ context.Context, _ string) error {
	m.FreezeTripped.Inc()
	m.SystemFrozen.Set(1)
	return nil
}

// ──────────────────────────────────────────────────
// Rail hooks
// ──────────────────────────────────────────────────

// OnRailHealthChanged implements plugin.OnRailHealthChanged.
func (m *MetricsExtension) OnRailHealthChanged(_ context.Context, _ string, healthy bool) error {
	if healthy {
		m.RailHealthy.Inc()
	} else {
		m.RailHealthy.Dec()
		m.RailUnhealthy.Inc()
	}
	return nil
}
