package valuation

import (
	"fmt"
	"time"

	"hybrid_valuation/pkg/models"
)

// Composite blend weights.
const (
	compositeDCFWeight    = 0.60
	compositeGrahamWeight = 0.40
)

// DetermineVerdict maps composite upside onto the five verdict bands,
// evaluated top-down with strict thresholds.
func DetermineVerdict(upsidePct float64) models.ValuationVerdict {
	switch {
	case upsidePct > 0.40:
		return models.VerdictSignificantlyUndervalued
	case upsidePct > 0.15:
		return models.VerdictUndervalued
	case upsidePct > -0.15:
		return models.VerdictFairlyValued
	case upsidePct > -0.40:
		return models.VerdictOvervalued
	default:
		return models.VerdictSignificantlyOvervalued
	}
}

// MarginOfSafety is upside/(1+upside), with a -1 sentinel once the upside
// itself reaches total loss.
func MarginOfSafety(upsidePct float64) float64 {
	if upsidePct > -1 {
		return upsidePct / (1 + upsidePct)
	}
	return -1
}

// Run executes the full engine pass over a validated SVI: WACC, DCF, Graham
// Number, defensive screen, composite, and verdict.
func Run(input *models.StandardizedValuationInput, taxRate float64) (*models.ValuationResult, error) {
	dcf, anomalies, err := CalculateDCF(input, taxRate)
	if err != nil {
		return nil, err
	}

	grahamNumber := CalculateGrahamNumber(input)
	grahamScreen := CalculateGrahamScreen(input)

	composite := compositeDCFWeight*dcf.WeightedIntrinsicValue +
		compositeGrahamWeight*grahamNumber.GrahamNumber

	upsidePct := 0.0
	if input.CurrentPrice > 0 {
		upsidePct = (composite - input.CurrentPrice) / input.CurrentPrice
	}

	if grahamScreen.DividendYearsEstimated {
		anomalies = append(anomalies, "years_dividends_paid estimated from current dividend yield")
	}
	anomalies = append(anomalies, input.DataAnomalies...)

	result := &models.ValuationResult{
		Ticker:               input.Ticker,
		CompanyName:          input.CompanyName,
		CalculationTimestamp: time.Now().UTC(),

		CurrentPrice:      input.CurrentPrice,
		MarketCap:         input.MarketCap,
		EnterpriseValue:   input.EnterpriseValue,
		SharesOutstanding: input.SharesOutstanding,

		DCFValuation:          *dcf,
		GrahamNumber:          grahamNumber,
		GrahamDefensiveScreen: grahamScreen,

		ValuationMethodsUsed: []string{
			"DCF (FCFF)",
			"Graham Number",
			"Graham Defensive Screen",
		},
		CompositeIntrinsicValue: composite,
		CompositeMethodology:    "60% DCF + 40% Graham Number",
		UpsideDownsidePct:       upsidePct,
		MarginOfSafety:          MarginOfSafety(upsidePct),
		Verdict:                 DetermineVerdict(upsidePct),

		ConfidenceScore:  input.DataConfidenceScore,
		DataQualityScore: input.DataConfidenceScore,
		KeyAssumptions:   keyAssumptions(dcf),
		RiskFactors:      riskFactors(input, dcf, grahamScreen),
		DataAnomalies:    anomalies,
	}
	return result, nil
}

// keyAssumptions summarizes the inputs that drive the result.
func keyAssumptions(dcf *models.DCFValuation) map[string]string {
	assumptions := map[string]string{
		"risk_free_rate":      fmt.Sprintf("%.2f%%", dcf.RiskFreeRate*100),
		"equity_risk_premium": fmt.Sprintf("%.2f%%", dcf.EquityRiskPremium*100),
		"beta":                fmt.Sprintf("%.2f", dcf.Beta),
		"wacc":                fmt.Sprintf("%.2f%%", dcf.WACC*100),
		"tax_rate":            fmt.Sprintf("%.0f%%", dcf.TaxRate*100),
		"dcf_weight":          "60%",
		"graham_weight":       "40%",
	}
	if dcf.BaseCase != nil {
		assumptions["base_case_growth"] = fmt.Sprintf("%.1f%%", dcf.BaseCase.RevenueGrowthRate*100)
		assumptions["terminal_growth"] = fmt.Sprintf("%.1f%%", dcf.BaseCase.TerminalGrowthRate*100)
		assumptions["operating_margin"] = fmt.Sprintf("%.1f%%", dcf.BaseCase.OperatingMarginAssumption*100)
		assumptions["projection_years"] = fmt.Sprintf("%d", dcf.BaseCase.ProjectionYears)
	}
	return assumptions
}

// riskFactors derives deterministic warnings from the inputs and results.
func riskFactors(input *models.StandardizedValuationInput, dcf *models.DCFValuation, screen models.GrahamDefensiveCriteria) []string {
	var risks []string

	if input.DebtToEquity != nil && *input.DebtToEquity > 2.0 {
		risks = append(risks, fmt.Sprintf("High leverage: Debt/Equity ratio of %.1fx", *input.DebtToEquity))
	}
	if input.CurrentRatio > 0 && input.CurrentRatio < 1.0 {
		risks = append(risks, fmt.Sprintf("Liquidity concern: Current ratio of %.2f", input.CurrentRatio))
	}
	if input.InterestCoverage != nil && *input.InterestCoverage < 3.0 {
		risks = append(risks, fmt.Sprintf("Low interest coverage: %.1fx", *input.InterestCoverage))
	}
	if dcf.BaseCase != nil && dcf.BaseCase.RevenueGrowthRate > 0.20 {
		risks = append(risks, "Valuation assumes aggressive growth (>20% annually)")
	}
	if dcf.WACC < 0.06 {
		risks = append(risks, "Low discount rate may overstate intrinsic value")
	}
	if !screen.PassesScreen {
		risks = append(risks, fmt.Sprintf("Fails Graham defensive screen (%d/7 criteria)", screen.CriteriaPassed))
	}
	if len(input.MissingFields) > 0 {
		shown := input.MissingFields
		if len(shown) > 3 {
			shown = shown[:3]
		}
		risks = append(risks, fmt.Sprintf("Missing data fields: %v", shown))
	}
	return risks
}
