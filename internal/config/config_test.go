package config

import (
	"os"
	"testing"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	// Clear any env vars that might affect defaults
	for _, key := range []string{
		"DATABASE_URL", "MARKET_DATA_URL", "JUPITER_URL",
		"REFERENCE_TOKEN_ADDRESS", "PRICE_FRESHNESS", "HTTP_PORT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.MarketDataURL != "https://pro-api.coinmarketcap.com" {
		t.Errorf("MarketDataURL = %q, want default", cfg.MarketDataURL)
	}
	if cfg.JupiterURL != "https://quote-api.jup.ag/v6" {
		t.Errorf("JupiterURL = %q, want default", cfg.JupiterURL)
	}
	if cfg.ReferenceTokenAddress != domain.DefaultReferenceTokenAddress {
		t.Errorf("ReferenceTokenAddress = %q, want wrapped SOL default", cfg.ReferenceTokenAddress)
	}
	if cfg.PriceFreshness != 5*time.Minute {
		t.Errorf("PriceFreshness = %v, want 5m", cfg.PriceFreshness)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/testdb")
	t.Setenv("REFERENCE_TOKEN_ADDRESS", "TokenAAAA")
	t.Setenv("PRICE_FRESHNESS", "90s")
	t.Setenv("MARKET_DATA_RETRY_MAX", "7")
	t.Setenv("HTTP_PORT", "9090")

	cfg := Load()

	if cfg.DatabaseURL != "postgres://localhost/testdb" {
		t.Errorf("DatabaseURL = %q, want override", cfg.DatabaseURL)
	}
	if cfg.ReferenceTokenAddress != "TokenAAAA" {
		t.Errorf("ReferenceTokenAddress = %q, want override", cfg.ReferenceTokenAddress)
	}
	if cfg.PriceFreshness != 90*time.Second {
		t.Errorf("PriceFreshness = %v, want 90s", cfg.PriceFreshness)
	}
	if cfg.MarketDataRetryMax != 7 {
		t.Errorf("MarketDataRetryMax = %d, want 7", cfg.MarketDataRetryMax)
	}
	if cfg.HTTPPort != "9090" {
		t.Errorf("HTTPPort = %q, want 9090", cfg.HTTPPort)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MARKET_DATA_RETRY_MAX", "not-a-number")
	t.Setenv("PRICE_FRESHNESS", "not-a-duration")

	cfg := Load()

	if cfg.MarketDataRetryMax != 3 {
		t.Errorf("MarketDataRetryMax = %d, want default 3", cfg.MarketDataRetryMax)
	}
	if cfg.PriceFreshness != 5*time.Minute {
		t.Errorf("PriceFreshness = %v, want default 5m", cfg.PriceFreshness)
	}
}
