package pipeline

import (
	"errors"
	"fmt"

	"hybrid_valuation/pkg/core/analyst"
	"hybrid_valuation/pkg/core/extract"
	"hybrid_valuation/pkg/core/loader"
	"hybrid_valuation/pkg/core/truncate"
	"hybrid_valuation/pkg/core/valuation"
)

// The error taxonomy surfaced to callers. Raw model output and stack traces
// never cross this boundary; the orchestrator emits a category plus a short
// sanitized message.
var (
	ErrUnknownTicker          = fmt.Errorf("unknown ticker")
	ErrInsufficientSourceData = fmt.Errorf("insufficient source data")
	ErrExtractionFailed       = fmt.Errorf("extraction failed")
	ErrNumericOverflow        = fmt.Errorf("numeric overflow")
	ErrInvalidInputs          = fmt.Errorf("invalid inputs")
	ErrValuationFailed        = fmt.Errorf("valuation failed")
	ErrAnalysisFailed         = fmt.Errorf("analysis failed")
)

// Categorize maps an internal failure onto the public taxonomy.
func Categorize(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnknownTicker),
		errors.Is(err, ErrInsufficientSourceData),
		errors.Is(err, ErrExtractionFailed),
		errors.Is(err, ErrNumericOverflow),
		errors.Is(err, ErrInvalidInputs),
		errors.Is(err, ErrValuationFailed),
		errors.Is(err, ErrAnalysisFailed):
		return err
	case errors.Is(err, loader.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrUnknownTicker, shortMessage(err))
	case errors.Is(err, truncate.ErrInsufficientSourceData):
		return fmt.Errorf("%w: %v", ErrInsufficientSourceData, shortMessage(err))
	case errors.Is(err, extract.ErrExtractionFailed):
		return fmt.Errorf("%w: model output invalid after retries", ErrExtractionFailed)
	case errors.Is(err, valuation.ErrInvalidInputs):
		return fmt.Errorf("%w: %v", ErrInvalidInputs, shortMessage(err))
	case errors.Is(err, valuation.ErrNumericOverflow):
		return fmt.Errorf("%w: all scenarios failed", ErrValuationFailed)
	case errors.Is(err, analyst.ErrAnalysisFailed):
		return fmt.Errorf("%w: model output invalid after retries", ErrAnalysisFailed)
	default:
		return fmt.Errorf("%w: internal error", ErrValuationFailed)
	}
}

// shortMessage truncates an error message to at most 160 bytes.
func shortMessage(err error) string {
	msg := err.Error()
	const limit = 160
	if len(msg) > limit {
		msg = msg[:limit]
	}
	return msg
}
