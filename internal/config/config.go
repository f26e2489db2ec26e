package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/solfund/fundd/internal/domain"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL           string
	MarketDataURL         string
	MarketDataAPIKey      string
	MarketDataRetryMax    int
	MarketDataTimeout     time.Duration
	JupiterURL            string
	JupiterRetryMax       int
	JupiterTimeout        time.Duration
	ReferenceTokenAddress string
	ReferenceTokenSymbol  string
	PriceFreshness        time.Duration
	PriceWorkerInterval   time.Duration
	SnapshotInterval      time.Duration
	SweepInterval         time.Duration
	HTTPPort              string
	SheetsSpreadsheetID   string
	SheetsCredentialsJSON string
	ReportXLSXPath        string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DatabaseURL:           envOrDefaultWarn("DATABASE_URL", ""),
		MarketDataURL:         envOrDefault("MARKET_DATA_URL", "https://pro-api.coinmarketcap.com"),
		MarketDataAPIKey:      envOrDefault("MARKET_DATA_API_KEY", ""),
		MarketDataRetryMax:    envOrDefaultInt("MARKET_DATA_RETRY_MAX", 3),
		MarketDataTimeout:     envOrDefaultDuration("MARKET_DATA_TIMEOUT", 10*time.Second),
		JupiterURL:            envOrDefault("JUPITER_URL", "https://quote-api.jup.ag/v6"),
		JupiterRetryMax:       envOrDefaultInt("JUPITER_RETRY_MAX", 2),
		JupiterTimeout:        envOrDefaultDuration("JUPITER_TIMEOUT", 10*time.Second),
		ReferenceTokenAddress: envOrDefault("REFERENCE_TOKEN_ADDRESS", domain.DefaultReferenceTokenAddress),
		ReferenceTokenSymbol:  envOrDefault("REFERENCE_TOKEN_SYMBOL", domain.DefaultReferenceTokenSymbol),
		PriceFreshness:        envOrDefaultDuration("PRICE_FRESHNESS", 5*time.Minute),
		PriceWorkerInterval:   envOrDefaultDuration("PRICE_WORKER_INTERVAL", 5*time.Minute),
		SnapshotInterval:      envOrDefaultDuration("SNAPSHOT_WORKER_INTERVAL", 1*time.Hour),
		SweepInterval:         envOrDefaultDuration("SWEEP_WORKER_INTERVAL", 10*time.Minute),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		SheetsSpreadsheetID:   envOrDefault("SHEETS_SPREADSHEET_ID", ""),
		SheetsCredentialsJSON: envOrDefault("SHEETS_CREDENTIALS_JSON", ""),
		ReportXLSXPath:        envOrDefault("REPORT_XLSX_PATH", "fund_report.xlsx"),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
