// Package app wires the core components from configuration. Both the API
// server and the CLI build the same object graph through here.
package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hybrid_valuation/pkg/config"
	"hybrid_valuation/pkg/core/analyst"
	"hybrid_valuation/pkg/core/cache"
	"hybrid_valuation/pkg/core/extract"
	"hybrid_valuation/pkg/core/llm"
	"hybrid_valuation/pkg/core/loader"
	"hybrid_valuation/pkg/core/marketdata"
	"hybrid_valuation/pkg/core/pipeline"
	"hybrid_valuation/pkg/core/store"
)

// App holds the wired object graph and owns its shutdown.
type App struct {
	Config *config.Config
	Orch   *pipeline.Orchestrator
	Quotes *marketdata.Client
	Logger zerolog.Logger

	cacheManager *cache.Manager
}

// Build wires the application from a loaded configuration.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	cacheStore, err := cache.OpenStore(cfg.CacheDir, logger)
	if err != nil {
		return nil, err
	}
	cacheManager := cache.NewManager(cacheStore, cache.TTLs{
		Extraction: time.Duration(cfg.ExtractionCacheTTL) * time.Second,
		Valuation:  time.Duration(cfg.ValuationCacheTTL) * time.Second,
		Analysis:   time.Duration(cfg.AnalysisCacheTTL) * time.Second,
		Price:      time.Duration(cfg.PriceCacheTTL) * time.Second,
	}, logger)

	var base llm.Provider
	if cfg.LLMProvider == "gemini-legacy" {
		base = &llm.LegacyGeminiProvider{APIKey: cfg.LLMAPIKey, Model: cfg.LLMModelName}
	} else {
		base = &llm.GeminiProvider{APIKey: cfg.LLMAPIKey, Model: cfg.LLMModelName}
	}
	provider := llm.NewRetryingProvider(base, 60, logger)

	var archive *store.ResultsRepo
	if cfg.DatabaseURL != "" {
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn().Err(err).Msg("results archive unavailable, continuing without it")
			archive = store.NewResultsRepo(nil, logger)
		} else {
			archive = store.NewResultsRepo(pool, logger)
		}
	} else {
		archive = store.NewResultsRepo(nil, logger)
	}

	orch := pipeline.New(
		loader.New(cfg.DataDir, logger),
		extract.New(provider, cfg.EquityRiskPremiumDefault, logger),
		analyst.New(provider, logger),
		cacheManager,
		archive,
		cfg.TaxRate,
		logger,
	)

	a := &App{
		Config:       cfg,
		Orch:         orch,
		Logger:       logger,
		cacheManager: cacheManager,
	}
	if cfg.QuoteAPIURL != "" {
		a.Quotes = marketdata.New(cfg.QuoteAPIURL, cacheManager, logger)
	}
	return a, nil
}

// Close tears down shared resources.
func (a *App) Close() error {
	return a.cacheManager.Close()
}
