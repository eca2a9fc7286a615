// Package extension provides the Forge extension adapter for the
// settlement network.
//
// It implements the forge.Extension interface to integrate settlenet
// into a Forge application with automatic dependency discovery, DI
// registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.settlenet" or
// "settlenet" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	settlenet "github.com/flowcap/settlenet"
	"github.com/flowcap/settlenet/account"
	"github.com/flowcap/settlenet/fraud"
	"github.com/flowcap/settlenet/invariant"
	"github.com/flowcap/settlenet/store"
	"github.com/flowcap/settlenet/store/memory"
	"github.com/flowcap/settlenet/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "settlenet"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Real-time B2B invoice-financing settlement network"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the settlement network as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config Config
	engine *settlenet.Network
	store  store.Store

	bureau     account.CreditBureau
	screener   account.SanctionsScreener
	oracle     fraud.Oracle
	hmacKey    []byte
	invariants []*invariant.Invariant

	networkOpts []settlenet.Option
}

// New creates a new settlenet Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Network returns the underlying settlenet.Network instance.
// This is nil until Register is called.
func (e *Extension) Network() *settlenet.Network { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the network, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		e.store = memory.New()
	}
	if e.hmacKey == nil {
		return errors.New("settlenet: HMAC signing key is required, set via WithHMACKey")
	}
	if e.bureau == nil || e.screener == nil || e.oracle == nil {
		return errors.New("settlenet: credit bureau, sanctions screener, and fraud oracle are all required")
	}

	fallbackRate := types.BP(e.config.FallbackDiscountRateBP)

	opts := e.buildNetworkOpts()
	eng, err := settlenet.New(e.store, e.bureau, e.screener, e.oracle, fallbackRate, e.hmacKey, e.invariants, opts...)
	if err != nil {
		return err
	}
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*settlenet.Network, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("settlenet: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("settlenet: network not initialized")
	}
	return e.engine.Health(ctx)
}

// buildNetworkOpts constructs settlenet.Option values from the resolved config.
func (e *Extension) buildNetworkOpts() []settlenet.Option {
	opts := make([]settlenet.Option, 0, len(e.networkOpts)+1)

	if e.config.AuctionDuration > 0 {
		opts = append(opts, settlenet.WithAuctionDuration(e.config.AuctionDuration))
	}

	opts = append(opts, e.networkOpts...)
	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("settlenet: configuration is required but not found in config files; " +
				"ensure 'extensions.settlenet' or 'settlenet' key exists in your config")
		}

		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("settlenet: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("auction_duration", e.config.AuctionDuration),
		forge.F("fallback_discount_rate_bp", e.config.FallbackDiscountRateBP),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	if cm.IsSet("extensions.settlenet") {
		if err := cm.Bind("extensions.settlenet", &cfg); err == nil {
			e.Logger().Debug("settlenet: loaded config from file",
				forge.F("key", "extensions.settlenet"),
			)
			return cfg, true
		}
		e.Logger().Warn("settlenet: failed to bind extensions.settlenet config",
			forge.F("error", "bind failed"),
		)
	}

	if cm.IsSet("settlenet") {
		if err := cm.Bind("settlenet", &cfg); err == nil {
			e.Logger().Debug("settlenet: loaded config from file",
				forge.F("key", "settlenet"),
			)
			return cfg, true
		}
		e.Logger().Warn("settlenet: failed to bind settlenet config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.AuctionDuration == 0 {
		cfg.AuctionDuration = defaults.AuctionDuration
	}
	if cfg.FallbackDiscountRateBP == 0 {
		cfg.FallbackDiscountRateBP = defaults.FallbackDiscountRateBP
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.BasePath == "" && programmaticConfig.BasePath != "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}

	if yamlConfig.AuctionDuration == 0 && programmaticConfig.AuctionDuration != 0 {
		yamlConfig.AuctionDuration = programmaticConfig.AuctionDuration
	}
	if yamlConfig.FallbackDiscountRateBP == 0 && programmaticConfig.FallbackDiscountRateBP != 0 {
		yamlConfig.FallbackDiscountRateBP = programmaticConfig.FallbackDiscountRateBP
	}

	return e.mergeWithDefaults(yamlConfig)
}
