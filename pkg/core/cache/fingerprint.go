// Package cache is the fingerprinted, tiered result cache coordinating the
// expensive calls: LLM extraction, the valuation engine, LLM analysis, and
// market-data fetches. A haxmap memory tier fronts a Badger disk store;
// writers hold a per-key single-flight slot for the duration of the upstream
// call.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"hybrid_valuation/pkg/models"
)

// Stage classifies cache entries; each stage has its own TTL.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageValuation  Stage = "valuation"
	StageAnalysis   Stage = "analysis"
	StagePrice      Stage = "price"
)

// Version strings participate in the fingerprints so that schema or engine
// changes invalidate stale entries on deploy.
const (
	SchemaVersion = "svi-v1"
	EngineVersion = "engine-v1"
	MemoVersion   = "memo-v1"
)

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ExtractionKey fingerprints an extraction by ticker, truncated source
// content, and schema version.
func ExtractionKey(ticker string, truncated *models.TruncatedSource) (string, error) {
	canonical, err := models.CanonicalJSON(truncated.Sections)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint truncated source: %w", err)
	}
	return hash(fmt.Sprintf("extract:%s:%s:%s", ticker, hash(string(canonical)), SchemaVersion)), nil
}

// ValuationKey fingerprints an engine run by the canonical SVI and engine
// version.
func ValuationKey(svi *models.StandardizedValuationInput) (string, error) {
	canonical, err := models.CanonicalJSON(svi)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint SVI: %w", err)
	}
	return hash(fmt.Sprintf("valuation:%s:%s", hash(string(canonical)), EngineVersion)), nil
}

// AnalysisKey fingerprints a memo by the canonical SVI, the valuation
// fingerprint, and memo version.
func AnalysisKey(svi *models.StandardizedValuationInput, valuationFingerprint string) (string, error) {
	canonical, err := models.CanonicalJSON(svi)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint SVI: %w", err)
	}
	return hash(fmt.Sprintf("analysis:%s:%s:%s", hash(string(canonical)), valuationFingerprint, MemoVersion)), nil
}

// PriceKey fingerprints a real-time quote by ticker alone.
func PriceKey(ticker string) string {
	return hash("price:" + ticker)
}
