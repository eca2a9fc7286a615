package extension

import "time"

// Config holds the settlenet extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.settlenet" or "settlenet" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for settlenet routes. DefaultConfig leaves
	// it empty.
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// AuctionDuration is the default bidding window for newly opened
	// auctions (default: 10s, spec §4.6).
	AuctionDuration time.Duration `json:"auction_duration" mapstructure:"auction_duration" yaml:"auction_duration"`

	// FallbackDiscountRateBP is the discount rate, in basis points, used
	// when an auction closes with too few eligible bids.
	FallbackDiscountRateBP int64 `json:"fallback_discount_rate_bp" mapstructure:"fallback_discount_rate_bp" yaml:"fallback_discount_rate_bp"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		AuctionDuration:        10 * time.Second,
		FallbackDiscountRateBP: 150,
	}
}
