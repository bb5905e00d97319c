package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybrid_valuation/pkg/core/analyst"
	"hybrid_valuation/pkg/core/cache"
	"hybrid_valuation/pkg/core/extract"
	"hybrid_valuation/pkg/core/loader"
	"hybrid_valuation/pkg/core/store"
	"hybrid_valuation/pkg/models"
)

// --- Mocks ---

// routingProvider answers extraction and analysis prompts differently,
// keyed on the system prompt, and counts calls per stage.
type routingProvider struct {
	extractionResponse string
	analysisResponse   string
	extractionCalls    atomic.Int32
	analysisCalls      atomic.Int32
}

func (p *routingProvider) Name() string { return "routing-mock" }

func (p *routingProvider) Generate(ctx context.Context, system, user string) (string, error) {
	if strings.Contains(system, "value-investor analyst") {
		p.analysisCalls.Add(1)
		return p.analysisResponse, nil
	}
	p.extractionCalls.Add(1)
	return p.extractionResponse, nil
}

func sourceDocJSON() map[string]interface{} {
	annual := map[string]interface{}{}
	for year := 2016; year <= 2025; year++ {
		annual[fmt.Sprintf("%d", year)] = map[string]interface{}{
			"revenue":    400.0 + float64(year-2016)*10,
			"net_income": 80.0,
		}
	}
	quarters := map[string]interface{}{
		"2025-09-30": map[string]interface{}{"revenue": 110.0},
		"2025-06-30": map[string]interface{}{"revenue": 100.0},
		"2025-03-31": map[string]interface{}{"revenue": 95.0},
		"2024-12-31": map[string]interface{}{"revenue": 95.0},
	}
	return map[string]interface{}{
		"ticker":       "QLTY",
		"company_name": "Quality Corp",
		"collected_at": "2026-01-15T00:00:00Z",
		"company_info": map[string]interface{}{
			"sector":           "Industrials",
			"business_summary": "Quality Corp sells premium widgets.",
		},
		"market_data":        map[string]interface{}{"current_price": 100.0, "market_cap": 1000.0},
		"valuation":          map[string]interface{}{"pe_ratio": 10.0},
		"calculated_metrics": map[string]interface{}{"roic": 0.20},
		"financials_annual":  annual,
		"yahoo_financials": map[string]interface{}{
			"income_statement_quarterly":    quarters,
			"balance_sheet_quarterly":       quarters,
			"cash_flow_statement_quarterly": quarters,
		},
	}
}

func sviResponse(t *testing.T) string {
	t.Helper()
	hist := make([]map[string]interface{}, 10)
	for i := 0; i < 10; i++ {
		hist[i] = map[string]interface{}{
			"fiscal_year": 2025 - i,
			"net_income":  80.0,
			"eps":         10.0 - float64(i)*0.5,
		}
	}
	svi := map[string]interface{}{
		"ticker":                "QLTY",
		"company_name":          "Quality Corp",
		"sector":                "Industrials",
		"industry":              "Widgets",
		"current_price":         100.0,
		"shares_outstanding":    10.0,
		"market_cap":            1000.0,
		"enterprise_value":      900.0,
		"ttm_revenue":           500.0,
		"ttm_operating_income":  150.0,
		"ttm_net_income":        100.0,
		"ttm_ebitda":            170.0,
		"ttm_eps":               10.0,
		"ttm_free_cash_flow":    95.0,
		"cash_and_equivalents":  100.0,
		"total_cash":            100.0,
		"total_debt":            0.0,
		"net_debt":              -100.0,
		"shareholders_equity":   400.0,
		"current_ratio":         3.0,
		"gross_margin":          0.5,
		"operating_margin":      0.30,
		"net_margin":            0.2,
		"roe":                   0.25,
		"roic":                  0.20,
		"risk_free_rate":        0.04,
		"equity_risk_premium":   0.05,
		"beta":                  1.0,
		"pe_ratio":              10.0,
		"dividend_yield":        0.02,
		"revenue_growth_5y_cagr": 0.08,
		"data_confidence_score": 0.95,
		"missing_fields":        []string{},
		"estimated_fields":      []string{},
		"data_anomalies":        []string{},
		"historical_financials": hist,
	}
	b, err := json.Marshal(svi)
	require.NoError(t, err)
	return string(b)
}

func memoResponse(t *testing.T) string {
	t.Helper()
	memo := map[string]interface{}{
		"ticker":                     "QLTY",
		"company_name":               "Quality Corp",
		"one_sentence_thesis":        "A wonderful company at a fair price.",
		"investment_thesis":          "Compounds capital at high rates.",
		"business_understanding":     "Premium widgets.",
		"competitive_advantages":     []interface{}{},
		"moat_summary":               "Brand moat.",
		"management_assessment":      "Owner-minded.",
		"management_integrity_score": 8,
		"owner_oriented":             true,
		"valuation_narrative":        "Undervalued.",
		"margin_of_safety_assessment": "Adequate.",
		"key_positives":              []string{"Net cash"},
		"key_concerns":               []string{},
		"key_risks":                  []interface{}{},
		"potential_catalysts":        []string{},
		"ideal_holding_period":       "5-10 years",
		"investment_rating":          "buy",
		"conviction_level":           0.8,
		"risk_level":                 "moderate",
		"closing_quote":              "Be greedy when others are fearful.",
		"final_thoughts":             "Accumulate.",
	}
	b, err := json.Marshal(memo)
	require.NoError(t, err)
	return string(b)
}

type fixture struct {
	orch     *Orchestrator
	provider *routingProvider
	dataDir  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dataDir := t.TempDir()
	docBytes, err := json.MarshalIndent(sourceDocJSON(), "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "QLTY.json"), docBytes, 0o644))

	st, err := cache.OpenStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	cm := cache.NewManager(st, cache.TTLs{
		Extraction: 7 * 24 * time.Hour,
		Valuation:  24 * time.Hour,
		Analysis:   7 * 24 * time.Hour,
		Price:      30 * time.Second,
	}, zerolog.Nop())
	t.Cleanup(func() { _ = cm.Close() })

	provider := &routingProvider{
		extractionResponse: sviResponse(t),
		analysisResponse:   memoResponse(t),
	}

	orch := New(
		loader.New(dataDir, zerolog.Nop()),
		extract.New(provider, 0.05, zerolog.Nop()),
		analyst.New(provider, zerolog.Nop()),
		cm,
		store.NewResultsRepo(nil, zerolog.Nop()),
		0.21,
		zerolog.Nop(),
	)
	return &fixture{orch: orch, provider: provider, dataDir: dataDir}
}

// --- Tests ---

func TestValuationHappyPath(t *testing.T) {
	fx := newFixture(t)

	result, err := fx.orch.Valuation(context.Background(), "qlty")
	require.NoError(t, err)

	assert.Equal(t, "QLTY", result.Ticker)
	assert.Greater(t, result.CompositeIntrinsicValue, 0.0)
	assert.Equal(t, int32(1), fx.provider.extractionCalls.Load())

	// Composite blend invariant.
	want := 0.60*result.DCFValuation.WeightedIntrinsicValue + 0.40*result.GrahamNumber.GrahamNumber
	assert.InEpsilon(t, want, result.CompositeIntrinsicValue, 1e-6)
}

func TestValuationIdempotent(t *testing.T) {
	fx := newFixture(t)

	first, err := fx.orch.Valuation(context.Background(), "QLTY")
	require.NoError(t, err)
	second, err := fx.orch.Valuation(context.Background(), "QLTY")
	require.NoError(t, err)

	// Served from cache: one extraction, byte-identical results.
	assert.Equal(t, int32(1), fx.provider.extractionCalls.Load())
	firstJSON, _ := json.Marshal(first)
	secondJSON, _ := json.Marshal(second)
	assert.Equal(t, string(firstJSON), string(secondJSON))
}

func TestValuationSingleFlightUnderConcurrency(t *testing.T) {
	fx := newFixture(t)

	const concurrency = 16
	var wg sync.WaitGroup
	results := make([]*models.ValuationResult, concurrency)
	errs := make([]error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = fx.orch.Valuation(context.Background(), "QLTY")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), fx.provider.extractionCalls.Load(), "exactly one extraction")

	reference, _ := json.Marshal(results[0])
	for i := 0; i < concurrency; i++ {
		require.NoError(t, errs[i])
		got, _ := json.Marshal(results[i])
		assert.Equal(t, string(reference), string(got))
	}
}

func TestValuationUnknownTicker(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.orch.Valuation(context.Background(), "NOPE")
	require.ErrorIs(t, err, ErrUnknownTicker)
}

func TestValuationMalformedTicker(t *testing.T) {
	fx := newFixture(t)

	for _, bad := range []string{"", "TOOLONGTICKER", "bad ticker", "ab_c"} {
		_, err := fx.orch.Valuation(context.Background(), bad)
		assert.ErrorIs(t, err, ErrUnknownTicker, "ticker=%q", bad)
	}
}

func TestAnalysisHappyPathAndCache(t *testing.T) {
	fx := newFixture(t)

	memo, err := fx.orch.Analysis(context.Background(), "QLTY")
	require.NoError(t, err)
	assert.Equal(t, models.RatingBuy, memo.InvestmentRating)
	assert.Equal(t, int32(1), fx.provider.analysisCalls.Load())

	_, err = fx.orch.Analysis(context.Background(), "QLTY")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fx.provider.analysisCalls.Load(), "memo served from cache")
}

func TestRefreshValuationInvalidatesAnalysis(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.orch.Analysis(context.Background(), "QLTY")
	require.NoError(t, err)
	require.Equal(t, int32(1), fx.provider.analysisCalls.Load())

	require.NoError(t, fx.orch.Refresh(context.Background(), "QLTY", ScopeValuation))

	_, err = fx.orch.Analysis(context.Background(), "QLTY")
	require.NoError(t, err)

	// The analysis cache was invalidated, so the memo recomputes; the
	// extraction cache stayed intact so no second extraction happens.
	assert.Equal(t, int32(2), fx.provider.analysisCalls.Load())
	assert.Equal(t, int32(1), fx.provider.extractionCalls.Load())
}

func TestRefreshExtractionRecomputesEverything(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.orch.Valuation(context.Background(), "QLTY")
	require.NoError(t, err)

	require.NoError(t, fx.orch.Refresh(context.Background(), "QLTY", ScopeExtraction))

	_, err = fx.orch.Valuation(context.Background(), "QLTY")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fx.provider.extractionCalls.Load())
}

func TestSourceEditOutsideWhitelistKeepsFingerprint(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.orch.Valuation(context.Background(), "QLTY")
	require.NoError(t, err)

	// A new collected_at outside the truncation whitelist does not change
	// the extraction fingerprint, so no refresh means no recomputation.
	doc := sourceDocJSON()
	doc["collected_at"] = "2026-02-01T00:00:00Z"
	docBytes, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(fx.dataDir, "QLTY.json"), docBytes, 0o644))

	_, err = fx.orch.Valuation(context.Background(), "QLTY")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fx.provider.extractionCalls.Load())

	// Editing whitelisted content changes the fingerprint and recomputes.
	doc["market_data"].(map[string]interface{})["current_price"] = 101.0
	docBytes, err = json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(fx.dataDir, "QLTY.json"), docBytes, 0o644))

	_, err = fx.orch.Valuation(context.Background(), "QLTY")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fx.provider.extractionCalls.Load())
}

func TestListTickers(t *testing.T) {
	fx := newFixture(t)
	tickers, err := fx.orch.ListTickers()
	require.NoError(t, err)
	assert.Equal(t, []string{"QLTY"}, tickers)
}
