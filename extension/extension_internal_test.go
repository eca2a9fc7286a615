package extension

import (
	"testing"
	"time"
)

func TestNewAppliesOptions(t *testing.T) {
	e := New(
		WithHMACKey([]byte("k")),
		WithBasePath("/custom"),
		WithDisableRoutes(),
		WithFallbackDiscountRateBP(200),
	)

	if string(e.hmacKey) != "k" {
		t.Fatalf("expected hmacKey to be set, got %q", e.hmacKey)
	}
	if e.config.BasePath != "/custom" {
		t.Fatalf("expected BasePath /custom, got %q", e.config.BasePath)
	}
	if !e.config.DisableRoutes {
		t.Fatal("expected DisableRoutes true")
	}
	if e.config.FallbackDiscountRateBP != 200 {
		t.Fatalf("expected FallbackDiscountRateBP 200, got %d", e.config.FallbackDiscountRateBP)
	}
}

func TestMergeWithDefaultsFillsZeroFields(t *testing.T) {
	e := &Extension{}
	merged := e.mergeWithDefaults(Config{})

	defaults := DefaultConfig()
	if merged.AuctionDuration != defaults.AuctionDuration {
		t.Fatalf("expected default AuctionDuration %v, got %v", defaults.AuctionDuration, merged.AuctionDuration)
	}
	if merged.FallbackDiscountRateBP != defaults.FallbackDiscountRateBP {
		t.Fatalf("expected default FallbackDiscountRateBP %d, got %d", defaults.FallbackDiscountRateBP, merged.FallbackDiscountRateBP)
	}
}

func TestMergeWithDefaultsPreservesSetFields(t *testing.T) {
	e := &Extension{}
	merged := e.mergeWithDefaults(Config{AuctionDuration: 30 * time.Second, FallbackDiscountRateBP: 75})

	if merged.AuctionDuration != 30*time.Second {
		t.Fatalf("expected AuctionDuration preserved, got %v", merged.AuctionDuration)
	}
	if merged.FallbackDiscountRateBP != 75 {
		t.Fatalf("expected FallbackDiscountRateBP preserved, got %d", merged.FallbackDiscountRateBP)
	}
}

func TestMergeConfigurationsProgrammaticBoolsWin(t *testing.T) {
	e := &Extension{}
	yaml := Config{BasePath: "/from-yaml"}
	programmatic := Config{DisableRoutes: true, DisableMigrate: true}

	merged := e.mergeConfigurations(yaml, programmatic)

	if !merged.DisableRoutes {
		t.Fatal("expected programmatic DisableRoutes to win")
	}
	if !merged.DisableMigrate {
		t.Fatal("expected programmatic DisableMigrate to win")
	}
	if merged.BasePath != "/from-yaml" {
		t.Fatalf("expected yaml BasePath to be preserved, got %q", merged.BasePath)
	}
}

func TestMergeConfigurationsYAMLBasePathWinsOverProgrammatic(t *testing.T) {
	e := &Extension{}
	yaml := Config{BasePath: "/from-yaml"}
	programmatic := Config{BasePath: "/from-code"}

	merged := e.mergeConfigurations(yaml, programmatic)

	if merged.BasePath != "/from-yaml" {
		t.Fatalf("expected yaml BasePath to take precedence, got %q", merged.BasePath)
	}
}

func TestMergeConfigurationsFallsBackToProgrammaticWhenYAMLEmpty(t *testing.T) {
	e := &Extension{}
	yaml := Config{}
	programmatic := Config{BasePath: "/from-code", AuctionDuration: 5 * time.Second}

	merged := e.mergeConfigurations(yaml, programmatic)

	if merged.BasePath != "/from-code" {
		t.Fatalf("expected programmatic BasePath fallback, got %q", merged.BasePath)
	}
	if merged.AuctionDuration != 5*time.Second {
		t.Fatalf("expected programmatic AuctionDuration fallback, got %v", merged.AuctionDuration)
	}
}

func TestBuildNetworkOptsIncludesAuctionDurationWhenSet(t *testing.T) {
	e := &Extension{config: Config{AuctionDuration: 15 * time.Second}}
	opts := e.buildNetworkOpts()

	if len(opts) != 1 {
		t.Fatalf("expected 1 network option, got %d", len(opts))
	}
}

func TestBuildNetworkOptsOmitsAuctionDurationWhenZero(t *testing.T) {
	e := &Extension{}
	opts := e.buildNetworkOpts()

	if len(opts) != 0 {
		t.Fatalf("expected no network options, got %d", len(opts))
	}
}

func TestWithPluginAppendsNetworkOption(t *testing.T) {
	e := New(WithAuctionDuration(0))
	before := len(e.networkOpts)

	WithPlugin(nil)(e)

	if len(e.networkOpts) != before+1 {
		t.Fatalf("expected WithPlugin to append a network option, got %d opts", len(e.networkOpts))
	}
}
