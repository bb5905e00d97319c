package models

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// InvestmentRating follows a traditional five-tier system.
type InvestmentRating string

const (
	RatingStrongBuy  InvestmentRating = "strong_buy"
	RatingBuy        InvestmentRating = "buy"
	RatingHold       InvestmentRating = "hold"
	RatingSell       InvestmentRating = "sell"
	RatingStrongSell InvestmentRating = "strong_sell"
)

// RiskLevel is the overall risk assessment for the position.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// MoatType tags a competitive advantage using the Morningstar moat framework.
type MoatType string

const (
	MoatBrand            MoatType = "brand"
	MoatNetworkEffects   MoatType = "network_effects"
	MoatCostAdvantage    MoatType = "cost_advantage"
	MoatSwitchingCosts   MoatType = "switching_costs"
	MoatEfficientScale   MoatType = "efficient_scale"
	MoatIntangibleAssets MoatType = "intangible_assets"
	MoatNone             MoatType = "none"
)

// CompetitiveAdvantage describes a single identified moat with evidence.
type CompetitiveAdvantage struct {
	MoatType    MoatType `json:"moat_type"`
	Description string   `json:"description"`
	Durability  string   `json:"durability"`
	Evidence    []string `json:"evidence"`
	Confidence  float64  `json:"confidence" validate:"gte=0,lte=1"`
}

// RiskFactor is a single identified risk with severity and probability.
type RiskFactor struct {
	Category    string  `json:"category"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Severity    string  `json:"severity"`
	Probability string  `json:"probability"`
	Mitigation  *string `json:"mitigation"`
}

// InvestmentMemo is the structured qualitative record the analyst emits.
// The memo reads quantitative results: the analyst prompt carries every
// number pre-formatted from the ValuationResult and tells the model to copy
// them verbatim. The prose the model returns is not checked or rewritten
// against the ValuationResult.
type InvestmentMemo struct {
	Ticker       string    `json:"ticker" validate:"required"`
	CompanyName  string    `json:"company_name"`
	AnalysisDate time.Time `json:"analysis_date"`

	OneSentenceThesis string `json:"one_sentence_thesis" validate:"required"`
	InvestmentThesis  string `json:"investment_thesis" validate:"required"`

	BusinessUnderstanding string `json:"business_understanding"`

	CompetitiveAdvantages []CompetitiveAdvantage `json:"competitive_advantages" validate:"dive"`
	MoatSummary           string                 `json:"moat_summary"`

	ManagementAssessment     string `json:"management_assessment"`
	ManagementIntegrityScore int    `json:"management_integrity_score" validate:"gte=1,lte=10"`
	OwnerOriented            bool   `json:"owner_oriented"`

	ValuationNarrative       string `json:"valuation_narrative"`
	MarginOfSafetyAssessment string `json:"margin_of_safety_assessment"`

	KeyPositives       []string     `json:"key_positives"`
	KeyConcerns        []string     `json:"key_concerns"`
	KeyRisks           []RiskFactor `json:"key_risks" validate:"dive"`
	PotentialCatalysts []string     `json:"potential_catalysts"`

	IdealHoldingPeriod string `json:"ideal_holding_period"`

	InvestmentRating InvestmentRating `json:"investment_rating" validate:"required,oneof=strong_buy buy hold sell strong_sell"`
	ConvictionLevel  float64          `json:"conviction_level" validate:"gte=0,lte=1"`
	RiskLevel        RiskLevel        `json:"risk_level" validate:"required,oneof=low moderate high very_high"`

	ClosingQuote  string `json:"closing_quote"`
	FinalThoughts string `json:"final_thoughts"`

	ModelUsed             string  `json:"model_used"`
	AnalysisVersion       string  `json:"analysis_version"`
	GenerationTimeSeconds float64 `json:"generation_time_seconds"`
}

// ParseMemo validates an LLM-emitted memo payload. Single boundary, same
// discipline as ParseSVI.
func ParseMemo(raw []byte) (*InvestmentMemo, error) {
	var memo InvestmentMemo
	if err := json.Unmarshal(raw, &memo); err != nil {
		return nil, fmt.Errorf("memo structural error: %w", err)
	}
	if err := sviValidate.Struct(&memo); err != nil {
		return nil, fmt.Errorf("memo schema violation: %w", err)
	}
	return &memo, nil
}
