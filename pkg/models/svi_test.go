package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSVIRejectsMissingRequiredFields(t *testing.T) {
	_, err := ParseSVI([]byte(`{"ticker": "AAPL"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema violation")
}

func TestParseSVIRejectsStructuralGarbage(t *testing.T) {
	_, err := ParseSVI([]byte(`{"ticker": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "structural error")
}

func TestParseSVIAcceptsMinimalValid(t *testing.T) {
	svi, err := ParseSVI([]byte(`{
		"ticker": "AAPL",
		"company_name": "Apple Inc.",
		"current_price": 150.0,
		"risk_free_rate": 0.04,
		"data_confidence_score": 0.9
	}`))
	require.NoError(t, err)
	assert.Equal(t, "AAPL", svi.Ticker)
	assert.Equal(t, 1.0, svi.BetaOrDefault())
}

func TestParseSVIRejectsOutOfRangeConfidence(t *testing.T) {
	_, err := ParseSVI([]byte(`{
		"ticker": "AAPL",
		"company_name": "Apple Inc.",
		"current_price": 150.0,
		"risk_free_rate": 0.04,
		"data_confidence_score": 1.7
	}`))
	require.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	beta := 1.3
	svi := &StandardizedValuationInput{
		Ticker:        "AAPL",
		CompanyName:   "Apple Inc.",
		CurrentPrice:  150,
		Beta:          &beta,
		MissingFields: []string{"roe"},
	}

	clone, err := svi.Clone()
	require.NoError(t, err)

	*clone.Beta = 9.9
	clone.MissingFields[0] = "mutated"

	assert.Equal(t, 1.3, *svi.Beta)
	assert.Equal(t, "roe", svi.MissingFields[0])
}
