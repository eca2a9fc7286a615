package extension

import (
	"time"

	settlenet "github.com/flowcap/settlenet"
	"github.com/flowcap/settlenet/account"
	"github.com/flowcap/settlenet/fraud"
	"github.com/flowcap/settlenet/invariant"
	"github.com/flowcap/settlenet/plugin"
	"github.com/flowcap/settlenet/store"
)

// Option configures the settlenet Forge extension.
type Option func(*Extension)

// WithStore sets the store for the network.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithCreditBureau sets the external credit bureau collaborator.
func WithCreditBureau(b account.CreditBureau) Option {
	return func(e *Extension) { e.bureau = b }
}

// WithSanctionsScreener sets the external sanctions screening collaborator.
func WithSanctionsScreener(s account.SanctionsScreener) Option {
	return func(e *Extension) { e.screener = s }
}

// WithFraudOracle sets the external fraud scoring collaborator.
func WithFraudOracle(o fraud.Oracle) Option {
	return func(e *Extension) { e.oracle = o }
}

// WithHMACKey sets the key used to sign the ledger and decision ledger
// hash chains.
func WithHMACKey(key []byte) Option {
	return func(e *Extension) { e.hmacKey = key }
}

// WithInvariants sets the invariants enforced by the invariant engine.
func WithInvariants(invariants ...*invariant.Invariant) Option {
	return func(e *Extension) { e.invariants = invariants }
}

// WithNetworkOption passes a settlenet.Option through to the underlying engine.
func WithNetworkOption(opt settlenet.Option) Option {
	return func(e *Extension) {
		e.networkOpts = append(e.networkOpts, opt)
	}
}

// WithPlugin registers a settlenet plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.networkOpts = append(e.networkOpts, settlenet.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for settlenet routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithAuctionDuration sets the default bidding window for newly opened auctions.
func WithAuctionDuration(d time.Duration) Option {
	return func(e *Extension) { e.config.AuctionDuration = d }
}

// WithFallbackDiscountRateBP sets the discount rate, in basis points, used
// when an auction closes with too few eligible bids.
func WithFallbackDiscountRateBP(bp int64) Option {
	return func(e *Extension) { e.config.FallbackDiscountRateBP = bp }
}
