// Package valuation is the pure numeric engine: WACC, three-scenario DCF,
// Graham Number, the defensive screen, and the composite verdict. No I/O, no
// LLM calls, no suspension points — a scenario computation is a function of
// its inputs.
package valuation

import "hybrid_valuation/pkg/models"

// WACCComponents holds the full cost-of-capital decomposition.
type WACCComponents struct {
	RiskFreeRate       float64 `json:"risk_free_rate"`
	Beta               float64 `json:"beta"`
	EquityRiskPremium  float64 `json:"equity_risk_premium"`
	CostOfEquity       float64 `json:"cost_of_equity"`
	CreditSpread       float64 `json:"credit_spread"`
	CostOfDebtPretax   float64 `json:"cost_of_debt_pretax"`
	CostOfDebtAftertax float64 `json:"cost_of_debt_aftertax"`
	EquityWeight       float64 `json:"equity_weight"`
	DebtWeight         float64 `json:"debt_weight"`
	WACC               float64 `json:"wacc"`
}

// creditSpreadTable maps interest-coverage bands to pre-tax spreads over the
// risk-free rate, following typical credit-rating spreads (CCC through AAA).
var creditSpreadTable = []struct {
	upperBound float64
	spread     float64
}{
	{1.5, 0.040},
	{3.0, 0.030},
	{5.0, 0.020},
	{8.0, 0.015},
	{12.0, 0.010},
}

const (
	distressedSpread = 0.050 // IC <= 0 or unknown
	primeSpread      = 0.007 // IC >= 12
)

// CreditSpread determines the cost-of-debt spread from interest coverage.
func CreditSpread(interestCoverage *float64) float64 {
	if interestCoverage == nil || *interestCoverage <= 0 {
		return distressedSpread
	}
	for _, band := range creditSpreadTable {
		if *interestCoverage < band.upperBound {
			return band.spread
		}
	}
	return primeSpread
}

// CalculateWACC computes the weighted average cost of capital.
//
// CoE = Rf + beta * ERP (CAPM)
// CoD = (Rf + credit spread) * (1 - tax)
// Weights over V = E + D; a zero-capital firm is treated as all-equity.
func CalculateWACC(input *models.StandardizedValuationInput, taxRate float64) WACCComponents {
	beta := input.BetaOrDefault()
	costOfEquity := input.RiskFreeRate + beta*input.EquityRiskPremium

	spread := CreditSpread(input.InterestCoverage)
	costOfDebtPretax := input.RiskFreeRate + spread
	costOfDebtAftertax := costOfDebtPretax * (1 - taxRate)

	marketCap := max(input.MarketCap, 0)
	totalDebt := max(input.TotalDebt, 0)
	totalCapital := marketCap + totalDebt

	equityWeight, debtWeight := 1.0, 0.0
	if totalCapital > 0 {
		equityWeight = marketCap / totalCapital
		debtWeight = totalDebt / totalCapital
	}

	wacc := equityWeight*costOfEquity + debtWeight*costOfDebtAftertax

	return WACCComponents{
		RiskFreeRate:       input.RiskFreeRate,
		Beta:               beta,
		EquityRiskPremium:  input.EquityRiskPremium,
		CostOfEquity:       costOfEquity,
		CreditSpread:       spread,
		CostOfDebtPretax:   costOfDebtPretax,
		CostOfDebtAftertax: costOfDebtAftertax,
		EquityWeight:       equityWeight,
		DebtWeight:         debtWeight,
		WACC:               wacc,
	}
}
