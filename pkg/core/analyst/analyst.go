// Package analyst generates the structured investment memo from the
// quantitative results. The model reads numbers; it never computes them —
// every figure in the prompt is pre-formatted from the ValuationResult.
package analyst

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"hybrid_valuation/pkg/core/llm"
	"hybrid_valuation/pkg/core/prompt"
	"hybrid_valuation/pkg/core/utils"
	"hybrid_valuation/pkg/models"
)

// ErrAnalysisFailed is returned when the model cannot produce a valid memo
// within the retry and time budget. The valuation result remains available.
var ErrAnalysisFailed = fmt.Errorf("analysis failed")

const schemaRetries = 2

// Wall-clock budget for one analysis including retries.
const analysisTimeout = 120 * time.Second

const analysisVersion = "1.0"

// Analyst drives the memo prompt against an LLM provider.
type Analyst struct {
	provider llm.Provider
	logger   zerolog.Logger
}

// New creates an Analyst.
func New(provider llm.Provider, logger zerolog.Logger) *Analyst {
	return &Analyst{
		provider: provider,
		logger:   logger.With().Str("component", "analyst").Logger(),
	}
}

// GenerateMemo produces the investment memo for a valuation. narrative is an
// optional business description (plain text or HTML).
func (a *Analyst) GenerateMemo(ctx context.Context, svi *models.StandardizedValuationInput, result *models.ValuationResult, narrative string) (*models.InvestmentMemo, error) {
	ctx, cancel := context.WithTimeout(ctx, analysisTimeout)
	defer cancel()

	sviJSON, err := json.MarshalIndent(svi, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize SVI: %w", err)
	}

	promptCtx := prompt.AnalysisContext{
		Ticker:         result.Ticker,
		CompanyName:    result.CompanyName,
		Narrative:      utils.HTMLToText(narrative),
		SVIJSON:        string(sviJSON),
		CompositeIV:    fmt.Sprintf("$%.2f", result.CompositeIntrinsicValue),
		CurrentPrice:   fmt.Sprintf("$%.2f", result.CurrentPrice),
		UpsidePct:      fmt.Sprintf("%.1f%%", result.UpsideDownsidePct*100),
		MarginOfSafety: fmt.Sprintf("%.1f%%", result.MarginOfSafety*100),
		Verdict:        string(result.Verdict),
		DCFWeightedIV:  fmt.Sprintf("$%.2f", result.DCFValuation.WeightedIntrinsicValue),
		WACC:           fmt.Sprintf("%.2f%%", result.DCFValuation.WACC*100),
		GrahamNumber:   fmt.Sprintf("$%.2f", result.GrahamNumber.GrahamNumber),
		CriteriaPassed: result.GrahamDefensiveScreen.CriteriaPassed,
		PassesScreen:   result.GrahamDefensiveScreen.PassesScreen,
		DataQuality:    fmt.Sprintf("%.2f", result.DataQualityScore),
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= schemaRetries; attempt++ {
		userPrompt, err := prompt.BuildAnalysisPrompt(promptCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to build analysis prompt: %w", err)
		}

		a.logger.Info().Str("ticker", result.Ticker).Int("attempt", attempt+1).
			Msg("calling model for analysis")

		response, err := a.provider.Generate(ctx, prompt.AnalysisSystemPrompt, userPrompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: timed out: %v", ErrAnalysisFailed, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
		}

		memo, parseErr := a.parseResponse(response)
		if parseErr == nil {
			memo.Ticker = result.Ticker
			memo.CompanyName = result.CompanyName
			memo.AnalysisDate = time.Now().UTC()
			memo.ModelUsed = a.provider.Name()
			memo.AnalysisVersion = analysisVersion
			memo.GenerationTimeSeconds = time.Since(start).Seconds()

			a.logger.Info().Str("ticker", result.Ticker).
				Str("rating", string(memo.InvestmentRating)).
				Float64("conviction", memo.ConvictionLevel).
				Msg("analysis complete")
			return memo, nil
		}

		lastErr = parseErr
		promptCtx.ParserFeedback = parseErr.Error()
		a.logger.Warn().Err(parseErr).Str("ticker", result.Ticker).
			Int("attempt", attempt+1).Msg("memo output failed validation")
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrAnalysisFailed, schemaRetries+1, lastErr)
}

func (a *Analyst) parseResponse(response string) (*models.InvestmentMemo, error) {
	raw, err := utils.SmartParse(response)
	if err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	memo, err := models.ParseMemo(raw)
	if err != nil {
		return nil, err
	}
	// Prose that cannot even parse as markdown signals a mangled payload.
	if memo.InvestmentThesis != "" && !utils.ValidateMarkdown(memo.InvestmentThesis) {
		return nil, fmt.Errorf("investment_thesis is not renderable text")
	}
	return memo, nil
}
