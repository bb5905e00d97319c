package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExtractionPrompt(t *testing.T) {
	out, err := BuildExtractionPrompt(ExtractionContext{
		Ticker:       "AAPL",
		CompanyName:  "Apple Inc.",
		CollectedAt:  "2026-01-01T00:00:00Z",
		Warnings:     []string{"quarterly balance sheet missing"},
		SectionsJSON: `{"market_data":{"current_price":150}}`,
	})
	require.NoError(t, err)

	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "quarterly balance sheet missing")
	assert.Contains(t, out, `"current_price":150`)
	assert.NotContains(t, out, "previous response failed")
}

func TestBuildExtractionPromptWithFeedback(t *testing.T) {
	out, err := BuildExtractionPrompt(ExtractionContext{
		Ticker:         "AAPL",
		SectionsJSON:   "{}",
		ParserFeedback: "svi schema violation: Ticker required",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "svi schema violation")
}

func TestExtractionSystemPromptRules(t *testing.T) {
	// The normalization table and the never-fabricate rule are load-bearing.
	assert.Contains(t, ExtractionSystemPrompt, "Net Sales")
	assert.Contains(t, ExtractionSystemPrompt, "Stockholders Equity")
	assert.Contains(t, ExtractionSystemPrompt, "NEVER fabricate")
	assert.Contains(t, ExtractionSystemPrompt, "(end/start)^(1/N) - 1")
}

func TestBuildAnalysisPrompt(t *testing.T) {
	out, err := BuildAnalysisPrompt(AnalysisContext{
		Ticker:         "MSFT",
		CompanyName:    "Microsoft",
		Narrative:      "Software company.",
		SVIJSON:        "{}",
		CompositeIV:    "$412.53",
		CurrentPrice:   "$380.00",
		UpsidePct:      "8.6%",
		MarginOfSafety: "7.9%",
		Verdict:        "fairly_valued",
		DCFWeightedIV:  "$405.10",
		WACC:           "8.90%",
		GrahamNumber:   "$423.70",
		CriteriaPassed: 5,
		PassesScreen:   true,
		DataQuality:    "0.92",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "$412.53")
	assert.Contains(t, out, "5/7 criteria")
	assert.Contains(t, out, "Software company.")
}
