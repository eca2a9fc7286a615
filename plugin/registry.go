package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onInvoiceSubmitted      []OnInvoiceSubmitted
	onInvoiceAccepted       []OnInvoiceAccepted
	onInvoiceRejected       []OnInvoiceRejected
	onFraudFlagged          []OnFraudFlagged
	onAuctionOpened         []OnAuctionOpened
	onAuctionClosed         []OnAuctionClosed
	onLowLiquidity          []OnLowLiquidity
	onQuoteIssued           []OnQuoteIssued
	onSettlementStarted     []OnSettlementStarted
	onSettlementCompleted   []OnSettlementCompleted
	onSettlementFailed      []OnSettlementFailed
	onSettlementRolledBack  []OnSettlementRolledBack
	onLedgerEntryAppended   []OnLedgerEntryAppended
	onReconcileImbalance    []OnReconcileImbalance
	onInvariantViolation    []OnInvariantViolation
	onFreezeTripped         []OnFreezeTripped
	onRailHealthChanged     []OnRailHealthChanged
	railAdapters            []RailAdapterPlugin
	fraudScorers            map[string]FraudScorer
	settlementFormatters    map[string]SettlementFormatter
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:               slog.Default(),
		fraudScorers:         make(map[string]FraudScorer),
		settlementFormatters: make(map[string]SettlementFormatter),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnInvoiceSubmitted); ok {
		r.onInvoiceSubmitted = append(r.onInvoiceSubmitted, v)
	}
	if v, ok := p.(OnInvoiceAccepted); ok {
		r.onInvoiceAccepted = append(r.onInvoiceAccepted, v)
	}
	if v, ok := p.(OnInvoiceRejected); ok {
		r.onInvoiceRejected = append(r.onInvoiceRejected, v)
	}
	if v, ok := p.(OnFraudFlagged); ok {
		r.onFraudFlagged = append(r.onFraudFlagged, v)
	}
	if v, ok := p.(OnAuctionOpened); ok {
		r.onAuctionOpened = append(r.onAuctionOpened, v)
	}
	if v, ok := p.(OnAuctionClosed); ok {
		r.onAuctionClosed = append(r.onAuctionClosed, v)
	}
	if v, ok := p.(OnLowLiquidity); ok {
		r.onLowLiquidity = append(r.onLowLiquidity, v)
	}
	if v, ok := p.(OnQuoteIssued); ok {
		r.onQuoteIssued = append(r.onQuoteIssued, v)
	}
	if v, ok := p.(OnSettlementStarted); ok {
		r.onSettlementStarted = append(r.onSettlementStarted, v)
	}
	if v, ok := p.(OnSettlementCompleted); ok {
		r.onSettlementCompleted = append(r.onSettlementCompleted, v)
	}
	if v, ok := p.(OnSettlementFailed); ok {
		r.onSettlementFailed = append(r.onSettlementFailed, v)
	}
	if v, ok := p.(OnSettlementRolledBack); ok {
		r.onSettlementRolledBack = append(r.onSettlementRolledBack, v)
	}
	if v, ok := p.(OnLedgerEntryAppended); ok {
		r.onLedgerEntryAppended = append(r.onLedgerEntryAppended, v)
	}
	if v, ok := p.(OnReconcileImbalance); ok {
		r.onReconcileImbalance = append(r.onReconcileImbalance, v)
	}
	if v, ok := p.(OnInvariantViolation); ok {
		r.onInvariantViolation = append(r.onInvariantViolation, v)
	}
	if v, ok := p.(OnFreezeTripped); ok {
		r.onFreezeTripped = append(r.onFreezeTripped, v)
	}
	if v, ok := p.(OnRailHealthChanged); ok {
		r.onRailHealthChanged = append(r.onRailHealthChanged, v)
	}
	if v, ok := p.(RailAdapterPlugin); ok {
		r.railAdapters = append(r.railAdapters, v)
	}
	if v, ok := p.(FraudScorer); ok {
		r.fraudScorers[v.ScorerName()] = v
	}
	if v, ok := p.(SettlementFormatter); ok {
		r.settlementFormatters[v.Format()] = v
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnInvoiceSubmitted)(nil)).Elem(), "OnInvoiceSubmitted")
	checkInterface(reflect.TypeOf((*OnSettlementStarted)(nil)).Elem(), "OnSettlementStarted")
	checkInterface(reflect.TypeOf((*OnSettlementCompleted)(nil)).Elem(), "OnSettlementCompleted")
	checkInterface(reflect.TypeOf((*OnFreezeTripped)(nil)).Elem(), "OnFreezeTripped")
	checkInterface(reflect.TypeOf((*RailAdapterPlugin)(nil)).Elem(), "RailAdapter")
	checkInterface(reflect.TypeOf((*FraudScorer)(nil)).Elem(), "FraudScorer")
	checkInterface(reflect.TypeOf((*SettlementFormatter)(nil)).Elem(), "SettlementFormatter")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, network interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, network)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInvoiceSubmitted emits an invoice submitted event.
func (r *Registry) EmitInvoiceSubmitted(ctx context.Context, inv interface{}) {
	r.mu.RLock()
	plugins := r.onInvoiceSubmitted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInvoiceSubmitted(ctx, inv)
		}); err != nil {
			r.logger.Warn("plugin OnInvoiceSubmitted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInvoiceAccepted emits an invoice accepted event.
func (r *Registry) EmitInvoiceAccepted(ctx context.Context, inv interface{}) {
	r.mu.RLock()
	plugins := r.onInvoiceAccepted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInvoiceAccepted(ctx, inv)
		}); err != nil {
			r.logger.Warn("plugin OnInvoiceAccepted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInvoiceRejected emits an invoice rejected event.
func (r *Registry) EmitInvoiceRejected(ctx context.Context, inv interface{}, reason string) {
	r.mu.RLock()
	plugins := r.onInvoiceRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInvoiceRejected(ctx, inv, reason)
		}); err != nil {
			r.logger.Warn("plugin OnInvoiceRejected failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFraudFlagged emits a fraud flagged event.
func (r *Registry) EmitFraudFlagged(ctx context.Context, inv interface{}, score float64) {
	r.mu.RLock()
	plugins := r.onFraudFlagged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFraudFlagged(ctx, inv, score)
		}); err != nil {
			r.logger.Warn("plugin OnFraudFlagged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAuctionOpened emits an auction opened event.
func (r *Registry) EmitAuctionOpened(ctx context.Context, invoiceID string, closesAt time.Time) {
	r.mu.RLock()
	plugins := r.onAuctionOpened
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAuctionOpened(ctx, invoiceID, closesAt)
		}); err != nil {
			r.logger.Warn("plugin OnAuctionOpened failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAuctionClosed emits an auction closed event.
func (r *Registry) EmitAuctionClosed(ctx context.Context, invoiceID string, eligibleBids int) {
	r.mu.RLock()
	plugins := r.onAuctionClosed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAuctionClosed(ctx, invoiceID, eligibleBids)
		}); err != nil {
			r.logger.Warn("plugin OnAuctionClosed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}

	if eligibleBids < 3 { // pricing.MinEligibleBids
		r.emitLowLiquidity(ctx, invoiceID, eligibleBids)
	}
}

func (r *Registry) emitLowLiquidity(ctx context.Context, invoiceID string, eligibleBids int) {
	r.mu.RLock()
	plugins := r.onLowLiquidity
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLowLiquidity(ctx, invoiceID, eligibleBids)
		}); err != nil {
			r.logger.Warn("plugin OnLowLiquidity failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitQuoteIssued emits a quote issued event.
func (r *Registry) EmitQuoteIssued(ctx context.Context, quote interface{}) {
	r.mu.RLock()
	plugins := r.onQuoteIssued
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnQuoteIssued(ctx, quote)
		}); err != nil {
			r.logger.Warn("plugin OnQuoteIssued failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSettlementStarted emits a settlement started event.
func (r *Registry) EmitSettlementStarted(ctx context.Context, settlement interface{}) {
	r.mu.RLock()
	plugins := r.onSettlementStarted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSettlementStarted(ctx, settlement)
		}); err != nil {
			r.logger.Warn("plugin OnSettlementStarted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSettlementCompleted emits a settlement completed event.
func (r *Registry) EmitSettlementCompleted(ctx context.Context, settlement interface{}, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onSettlementCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSettlementCompleted(ctx, settlement, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnSettlementCompleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSettlementFailed emits a settlement failed event.
func (r *Registry) EmitSettlementFailed(ctx context.Context, invoiceID string, reason string) {
	r.mu.RLock()
	plugins := r.onSettlementFailed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSettlementFailed(ctx, invoiceID, reason)
		}); err != nil {
			r.logger.Warn("plugin OnSettlementFailed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSettlementRolledBack emits a settlement rolled back event.
func (r *Registry) EmitSettlementRolledBack(ctx context.Context, settlementID string, reason string) {
	r.mu.RLock()
	plugins := r.onSettlementRolledBack
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSettlementRolledBack(ctx, settlementID, reason)
		}); err != nil {
			r.logger.Warn("plugin OnSettlementRolledBack failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLedgerEntryAppended emits a ledger entry appended event.
func (r *Registry) EmitLedgerEntryAppended(ctx context.Context, entry interface{}) {
	r.mu.RLock()
	plugins := r.onLedgerEntryAppended
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLedgerEntryAppended(ctx, entry)
		}); err != nil {
			r.logger.Warn("plugin OnLedgerEntryAppended failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReconcileImbalance emits a reconciliation imbalance event.
func (r *Registry) EmitReconcileImbalance(ctx context.Context, result interface{}) {
	r.mu.RLock()
	plugins := r.onReconcileImbalance
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReconcileImbalance(ctx, result)
		}); err != nil {
			r.logger.Warn("plugin OnReconcileImbalance failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInvariantViolation emits an invariant violation event.
func (r *Registry) EmitInvariantViolation(ctx context.Context, invariantID string, reason string) {
	r.mu.RLock()
	plugins := r.onInvariantViolation
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInvariantViolation(ctx, invariantID, reason)
		}); err != nil {
			r.logger.Warn("plugin OnInvariantViolation failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFreezeTripped emits a system freeze event.
func (r *Registry) EmitFreezeTripped(ctx context.Context, reason string) {
	r.mu.RLock()
	plugins := r.onFreezeTripped
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFreezeTripped(ctx, reason)
		}); err != nil {
			r.logger.Warn("plugin OnFreezeTripped failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRailHealthChanged emits a rail health change event.
func (r *Registry) EmitRailHealthChanged(ctx context.Context, railName string, healthy bool) {
	r.mu.RLock()
	plugins := r.onRailHealthChanged
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRailHealthChanged(ctx, railName, healthy)
		}); err != nil {
			r.logger.Warn("plugin OnRailHealthChanged failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// GetRailAdapters returns all registered rail adapter plugins.
func (r *Registry) GetRailAdapters() []RailAdapterPlugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]RailAdapterPlugin, len(r.railAdapters))
	copy(result, r.railAdapters)
	return result
}

// GetFraudScorer returns a fraud scorer by name.
func (r *Registry) GetFraudScorer(name string) FraudScorer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fraudScorers[name]
}

// GetSettlementFormatters returns all registered settlement formatters.
func (r *Registry) GetSettlementFormatters() []SettlementFormatter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]SettlementFormatter, len(r.settlementFormatters))
	i := 0
	for _, f := range r.settlementFormatters {
		result[i] = f
		i++
	}
	return result
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the settlement hot path.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
