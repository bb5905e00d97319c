// Package extract turns a truncated source document into a validated
// StandardizedValuationInput through a constrained LLM call. Parsing and
// validation happen at a single boundary; on failure the parser error is fed
// back to the model for up to two corrective retries.
package extract

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

// ErrExtractionFailed is returned when the model cannot produce a
// schema-conformant SVI within the retry and time budget.
var ErrExtractionFailed = fmt.Errorf("extraction failed")

// Schema retries after the first failed parse, with the error fed back.
const schemaRetries = 2

// Wall-clock budget for one extraction including all retries.
const extractionTimeout = 60 * time.Second

// Extractor drives the extraction prompt against an LLM provider.
type Extractor struct {
	provider   llm.Provider
	erpDefault float64
	logger     zerolog.Logger
}

// New creates an Extractor.
func New(provider llm.Provider, erpDefault float64, logger zerolog.Logger) *Extractor {
	return &Extractor{
		provider:   provider,
		erpDefault: erpDefault,
		logger:     logger.With().Str("component", "extractor").Logger(),
	}
}

// Extract produces the SVI for a truncated source document.
func (e *Extractor) Extract(ctx context.Context, truncated *models.TruncatedSource) (*models.StandardizedValuationInput, error) {
	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	sectionsJSON, err := json.MarshalIndent(truncated.Sections, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize truncated source: %w", err)
	}

	feedback := ""
	var lastErr error
	for attempt := 0; attempt <= schemaRetries; attempt++ {
		userPrompt, err := prompt.BuildExtractionPrompt(prompt.ExtractionContext{
			Ticker:         truncated.Ticker,
			CompanyName:    truncated.CompanyName,
			CollectedAt:    truncated.CollectedAt,
			Warnings:       truncated.Warnings,
			SectionsJSON:   string(sectionsJSON),
			ParserFeedback: feedback,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build extraction prompt: %w", err)
		}

		e.logger.Info().Str("ticker", truncated.Ticker).Int("attempt", attempt+1).
			Msg("calling model for extraction")

		response, err := e.provider.Generate(ctx, prompt.ExtractionSystemPrompt, userPrompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: timed out: %v", ErrExtractionFailed, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}

		svi, parseErr := parseResponse(response)
		if parseErr == nil {
			e.fixup(svi, truncated.Ticker)
			e.logger.Info().Str("ticker", truncated.Ticker).
				Float64("confidence", svi.DataConfidenceScore).
				Int("missing", len(svi.MissingFields)).
				Msg("extraction complete")
			return svi, nil
		}

		lastErr = parseErr
		feedback = parseErr.Error()
		e.logger.Warn().Err(parseErr).Str("ticker", truncated.Ticker).
			Int("attempt", attempt+1).Msg("model output failed validation")
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrExtractionFailed, schemaRetries+1, lastErr)
}

// parseResponse recovers JSON from the raw model output and validates it at
// the SVI boundary.
func parseResponse(response string) (*models.StandardizedValuationInput, error) {
	raw, err := utils.SmartParse(response)
	if err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	svi, err := models.ParseSVI(raw)
	if err != nil {
		return nil, err
	}
	if svi.ExtractionTimestamp.IsZero() {
		svi.ExtractionTimestamp = time.Now().UTC()
	}
	return svi, nil
}
