// Package pipeline binds the stages: load -> truncate -> extract -> value ->
// analyze. Each stage commits its output to the cache before the next starts,
// and every expensive stage runs under its fingerprint's single-flight slot.
package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hybrid_valuation/pkg/core/analyst"
	"hybrid_valuation/pkg/core/cache"
	"hybrid_valuation/pkg/core/extract"
	"hybrid_valuation/pkg/core/loader"
	"hybrid_valuation/pkg/core/store"
	"hybrid_valuation/pkg/core/truncate"
	"hybrid_valuation/pkg/core/utils"
	"hybrid_valuation/pkg/core/valuation"
	"hybrid_valuation/pkg/models"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.-]{1,10}$`)

// RefreshScope selects which stages a refresh invalidates. Invalidation runs
// in dependency order: extraction implies valuation and analysis; valuation
// implies analysis.
type RefreshScope string

const (
	ScopeExtraction RefreshScope = "extraction"
	ScopeValuation  RefreshScope = "valuation"
	ScopeAnalysis   RefreshScope = "analysis"
)

// Orchestrator owns the per-request pipeline.
type Orchestrator struct {
	loader    *loader.Loader
	extractor *extract.Extractor
	analyst   *analyst.Analyst
	cache     *cache.Manager
	archive   *store.ResultsRepo
	taxRate   float64
	logger    zerolog.Logger
}

// New wires the orchestrator. archive may be a no-op repository.
func New(ld *loader.Loader, ex *extract.Extractor, an *analyst.Analyst, cm *cache.Manager, archive *store.ResultsRepo, taxRate float64, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		loader:    ld,
		extractor: ex,
		analyst:   an,
		cache:     cm,
		archive:   archive,
		taxRate:   taxRate,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Valuation runs the quantitative pipeline for a ticker.
func (o *Orchestrator) Valuation(ctx context.Context, ticker string) (*models.ValuationResult, error) {
	result, _, _, err := o.valuationWithKeys(ctx, ticker)
	if err != nil {
		return nil, Categorize(err)
	}
	return result, nil
}

// Analysis runs the full pipeline including the memo stage.
func (o *Orchestrator) Analysis(ctx context.Context, ticker string) (*models.InvestmentMemo, error) {
	result, svi, valuationKey, err := o.valuationWithKeys(ctx, ticker)
	if err != nil {
		return nil, Categorize(err)
	}

	analysisKey, err := cache.AnalysisKey(svi, valuationKey)
	if err != nil {
		return nil, Categorize(err)
	}

	narrative := o.businessDescription(ticker)

	payload, err := o.cache.GetOrCompute(ctx, analysisKey, cache.StageAnalysis, func(ctx context.Context) ([]byte, error) {
		memo, err := o.analyst.GenerateMemo(ctx, svi, result, narrative)
		if err != nil {
			return nil, err
		}
		if err := o.archive.SaveMemo(ctx, memo); err != nil {
			o.logger.Warn().Err(err).Str("ticker", ticker).Msg("memo archive write failed")
		}
		return json.Marshal(memo)
	})
	if err != nil {
		return nil, Categorize(err)
	}

	var memo models.InvestmentMemo
	if err := json.Unmarshal(payload, &memo); err != nil {
		return nil, Categorize(fmt.Errorf("%w: corrupt cached memo", analyst.ErrAnalysisFailed))
	}
	return &memo, nil
}

// Refresh invalidates the cached stages for a ticker in dependency order.
// The next request recomputes from the first invalidated stage; earlier
// cache entries stay intact so it skips completed work.
func (o *Orchestrator) Refresh(ctx context.Context, ticker string, scope RefreshScope) error {
	ticker, err := normalizeTicker(ticker)
	if err != nil {
		return Categorize(err)
	}

	doc, err := o.loader.Load(ticker)
	if err != nil {
		return Categorize(err)
	}
	truncated, err := truncate.Truncate(doc)
	if err != nil {
		return Categorize(err)
	}
	extractionKey, err := cache.ExtractionKey(ticker, truncated)
	if err != nil {
		return Categorize(err)
	}

	// Derive the downstream keys from the cached SVI, when there is one.
	var valuationKey, analysisKey string
	var svi models.StandardizedValuationInput
	if ok, err := o.cache.GetJSON(extractionKey, &svi); err == nil && ok {
		if valuationKey, err = cache.ValuationKey(&svi); err == nil {
			analysisKey, _ = cache.AnalysisKey(&svi, valuationKey)
		}
	}

	invalidate := func(key string) {
		if key == "" {
			return
		}
		if err := o.cache.Invalidate(key); err != nil {
			o.logger.Warn().Err(err).Str("ticker", ticker).Msg("cache invalidation failed")
		}
	}

	switch scope {
	case ScopeExtraction:
		invalidate(analysisKey)
		invalidate(valuationKey)
		invalidate(extractionKey)
	case ScopeValuation:
		invalidate(analysisKey)
		invalidate(valuationKey)
	case ScopeAnalysis:
		invalidate(analysisKey)
	default:
		return fmt.Errorf("unknown refresh scope %q", scope)
	}

	o.logger.Info().Str("ticker", ticker).Str("scope", string(scope)).Msg("cache refreshed")
	return nil
}

// valuationWithKeys runs steps 1-4 and returns the result together with the
// SVI and valuation fingerprint the analysis stage needs.
func (o *Orchestrator) valuationWithKeys(ctx context.Context, ticker string) (*models.ValuationResult, *models.StandardizedValuationInput, string, error) {
	ticker, err := normalizeTicker(ticker)
	if err != nil {
		return nil, nil, "", err
	}

	runID := uuid.NewString()
	logger := o.logger.With().Str("ticker", ticker).Str("run_id", runID).Logger()

	// 1-2. Load and truncate.
	doc, err := o.loader.Load(ticker)
	if err != nil {
		return nil, nil, "", err
	}
	truncated, err := truncate.Truncate(doc)
	if err != nil {
		return nil, nil, "", err
	}

	// 3. Extraction under its fingerprint's single-flight slot.
	extractionKey, err := cache.ExtractionKey(ticker, truncated)
	if err != nil {
		return nil, nil, "", err
	}
	sviPayload, err := o.cache.GetOrCompute(ctx, extractionKey, cache.StageExtraction, func(ctx context.Context) ([]byte, error) {
		svi, err := o.extractor.Extract(ctx, truncated)
		if err != nil {
			return nil, err
		}
		return json.Marshal(svi)
	})
	if err != nil {
		return nil, nil, "", err
	}
	var svi models.StandardizedValuationInput
	if err := json.Unmarshal(sviPayload, &svi); err != nil {
		return nil, nil, "", fmt.Errorf("corrupt cached extraction: %w", err)
	}

	// 4. Engine run keyed by the canonical SVI.
	valuationKey, err := cache.ValuationKey(&svi)
	if err != nil {
		return nil, nil, "", err
	}
	resultPayload, err := o.cache.GetOrCompute(ctx, valuationKey, cache.StageValuation, func(ctx context.Context) ([]byte, error) {
		result, err := valuation.Run(&svi, o.taxRate)
		if err != nil {
			return nil, err
		}
		if err := o.archive.SaveValuation(ctx, result); err != nil {
			logger.Warn().Err(err).Msg("valuation archive write failed")
		}
		return json.Marshal(result)
	})
	if err != nil {
		return nil, nil, "", err
	}
	var result models.ValuationResult
	if err := json.Unmarshal(resultPayload, &result); err != nil {
		return nil, nil, "", fmt.Errorf("corrupt cached valuation: %w", err)
	}

	logger.Info().Str("verdict", string(result.Verdict)).
		Float64("composite_iv", result.CompositeIntrinsicValue).
		Msg("valuation served")
	return &result, &svi, valuationKey, nil
}

// businessDescription pulls the narrative summary from the source document.
// Missing narrative is fine; the analyst handles an empty description.
func (o *Orchestrator) businessDescription(ticker string) string {
	doc, err := o.loader.Load(ticker)
	if err != nil {
		return ""
	}
	info := doc.Section("company_info")
	if info == nil {
		return ""
	}
	for _, key := range []string{"business_summary", "longBusinessSummary", "description"} {
		if s, ok := info[key].(string); ok && s != "" {
			return utils.HTMLToText(s)
		}
	}
	return ""
}

// CacheStats exposes cache occupancy for the facade.
func (o *Orchestrator) CacheStats() map[string]interface{} {
	return o.cache.Stats()
}

// ListTickers lists the tickers with source documents available.
func (o *Orchestrator) ListTickers() ([]string, error) {
	return o.loader.ListTickers()
}

func normalizeTicker(ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerPattern.MatchString(ticker) {
		return "", fmt.Errorf("%w: malformed ticker %q", ErrUnknownTicker, ticker)
	}
	return ticker, nil
}
