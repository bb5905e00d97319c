// Package config loads the process-wide configuration snapshot. Values come
// from the environment (optionally seeded from a .env file) with an optional
// YAML overlay; the snapshot is built once at startup and read-only after.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v2"
)

// Config is the application configuration snapshot.
type Config struct {
	// LLM service
	LLMAPIKey    string `yaml:"llm_api_key"`
	LLMModelName string `yaml:"llm_model_name"`
	LLMProvider  string `yaml:"llm_provider"` // "gemini" (default) or "gemini-legacy"

	// Storage
	DataDir  string `yaml:"data_dir"`
	CacheDir string `yaml:"cache_dir"`

	// Optional Postgres archive for computed results
	DatabaseURL string `yaml:"database_url"`

	// Optional real-time quote endpoint
	QuoteAPIURL string `yaml:"quote_api_url"`

	// Cache TTLs (seconds)
	ExtractionCacheTTL int `yaml:"extraction_cache_ttl"`
	ValuationCacheTTL  int `yaml:"valuation_cache_ttl"`
	AnalysisCacheTTL   int `yaml:"analysis_cache_ttl"`
	PriceCacheTTL      int `yaml:"price_cache_ttl"`

	// Engine assumptions
	EquityRiskPremiumDefault float64 `yaml:"equity_risk_premium_default"`
	TaxRate                  float64 `yaml:"tax_rate"`
}

// Defaults per the service contract.
const (
	DefaultModelName          = "gemini-2.0-flash"
	DefaultExtractionCacheTTL = 604800 // 7 days
	DefaultValuationCacheTTL  = 86400  // 24 hours
	DefaultAnalysisCacheTTL   = 604800 // 7 days
	DefaultPriceCacheTTL      = 30
	DefaultEquityRiskPremium  = 0.05
	DefaultTaxRate            = 0.21
)

// Load builds the configuration snapshot. A .env file in the working
// directory is applied first (missing file is fine), then CONFIG_FILE (YAML)
// if set, then environment variables, which always win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LLMModelName:             DefaultModelName,
		LLMProvider:              "gemini",
		ExtractionCacheTTL:       DefaultExtractionCacheTTL,
		ValuationCacheTTL:        DefaultValuationCacheTTL,
		AnalysisCacheTTL:         DefaultAnalysisCacheTTL,
		PriceCacheTTL:            DefaultPriceCacheTTL,
		EquityRiskPremiumDefault: DefaultEquityRiskPremium,
		TaxRate:                  DefaultTaxRate,
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(dst *float64, key string) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setStr(&cfg.LLMAPIKey, "LLM_API_KEY")
	setStr(&cfg.LLMModelName, "LLM_MODEL_NAME")
	setStr(&cfg.LLMProvider, "LLM_PROVIDER")
	setStr(&cfg.DataDir, "DATA_DIR")
	setStr(&cfg.CacheDir, "CACHE_DIR")
	setStr(&cfg.DatabaseURL, "DATABASE_URL")
	setStr(&cfg.QuoteAPIURL, "QUOTE_API_URL")
	setInt(&cfg.ExtractionCacheTTL, "EXTRACTION_CACHE_TTL")
	setInt(&cfg.ValuationCacheTTL, "VALUATION_CACHE_TTL")
	setInt(&cfg.AnalysisCacheTTL, "ANALYSIS_CACHE_TTL")
	setInt(&cfg.PriceCacheTTL, "PRICE_CACHE_TTL")
	setFloat(&cfg.EquityRiskPremiumDefault, "EQUITY_RISK_PREMIUM_DEFAULT")
	setFloat(&cfg.TaxRate, "TAX_RATE")
}

// Validate checks the required options.
func (c *Config) Validate() error {
	if c.LLMAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is not configured")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is not configured")
	}
	if c.CacheDir == "" {
		return fmt.Errorf("CACHE_DIR is not configured")
	}
	if c.LLMProvider != "gemini" && c.LLMProvider != "gemini-legacy" {
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.TaxRate < 0 || c.TaxRate >= 1 {
		return fmt.Errorf("TAX_RATE must be in [0,1): %v", c.TaxRate)
	}
	return nil
}
