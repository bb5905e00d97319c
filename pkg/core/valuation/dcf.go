package valuation

import (
	"fmt"
	"math"
	"time"

	"hybrid_valuation/pkg/models"
)

// ErrNumericOverflow marks a scenario that produced a non-finite
// intermediate. Per-scenario: the remaining scenarios still ship.
var ErrNumericOverflow = fmt.Errorf("numeric overflow in scenario")

// ErrInvalidInputs marks inputs that violate engine preconditions.
var ErrInvalidInputs = fmt.Errorf("invalid valuation inputs")

const (
	projectionYears = 5
	roicFloor       = 0.10
	maxReinvestment = 0.80
)

// Fixed scenario probability weights.
var scenarioWeights = map[string]float64{
	"conservative": 0.25,
	"base_case":    0.50,
	"optimistic":   0.25,
}

type scenarioParams struct {
	name           string
	growth         float64
	terminalGrowth float64
	margin         float64
}

// scenarioMatrix derives the three scenario parameter sets from historical
// growth and current margin.
func scenarioMatrix(input *models.StandardizedValuationInput) []scenarioParams {
	baseGrowth := 0.05
	if input.RevenueGrowth5YCAGR != nil {
		baseGrowth = *input.RevenueGrowth5YCAGR
	}
	if baseGrowth < 0 {
		// A shrinking top line still gets a minimal positive assumption; the
		// conservative scenario carries the pessimism.
		baseGrowth = 0.03
	}
	margin := input.OperatingMargin

	return []scenarioParams{
		{"conservative", math.Max(0.02, 0.5*baseGrowth), 0.020, 0.85 * margin},
		{"base_case", baseGrowth, 0.025, margin},
		{"optimistic", math.Min(0.25, 1.5*baseGrowth), 0.030, math.Min(1.15*margin, 0.35)},
	}
}

// projectScenario runs a single five-year FCFF projection with Gordon
// terminal value.
//
// Growth decays toward the terminal rate: g_t = g0 - (g0 - gT) * t/(2N),
// halving the gap by year 5 without reaching terminal inside the window.
//
//	revenue_t = revenue_{t-1} * (1 + g_t)
//	EBIT_t    = revenue_t * margin
//	NOPAT_t   = EBIT_t * (1 - tax)
//	reinv_t   = g_t / max(roic, 0.10), clamped to [0, 0.8]
//	FCF_t     = NOPAT_t * (1 - reinv_t)
//
// Terminal: TV = FCF_5*(1+gT) / (WACC - gT), with gT clamped to WACC - 0.01
// when WACC <= gT (the recorded terminal_growth_rate reflects the clamp).
func projectScenario(input *models.StandardizedValuationInput, p scenarioParams, wacc float64, taxRate float64) (*models.DCFScenario, error) {
	roic := input.ROIC
	if roic < roicFloor {
		roic = roicFloor
	}

	revenue := input.TTMRevenue
	var projRevenue, projEBIT, projNOPAT, projFCF []float64

	for year := 1; year <= projectionYears; year++ {
		growth := p.growth - (p.growth-p.terminalGrowth)*float64(year)/float64(2*projectionYears)

		revenue *= 1 + growth
		ebit := revenue * p.margin
		nopat := ebit * (1 - taxRate)

		reinvestment := growth / roic
		reinvestment = math.Min(math.Max(reinvestment, 0), maxReinvestment)
		fcf := nopat * (1 - reinvestment)

		if revenue <= 0 || !isFinite(revenue) || !isFinite(fcf) {
			return nil, fmt.Errorf("%w: %s year %d", ErrNumericOverflow, p.name, year)
		}

		projRevenue = append(projRevenue, revenue)
		projEBIT = append(projEBIT, ebit)
		projNOPAT = append(projNOPAT, nopat)
		projFCF = append(projFCF, fcf)
	}

	// Terminal value with the safety clamp. The clamp applies to the
	// terminal computation only, and the recorded rate reflects it.
	terminalGrowth := p.terminalGrowth
	if wacc <= terminalGrowth {
		terminalGrowth = wacc - 0.01
	}
	terminalFCF := projFCF[projectionYears-1] * (1 + terminalGrowth)
	terminalValue := terminalFCF / (wacc - terminalGrowth)

	var pvExplicit float64
	for i, fcf := range projFCF {
		pvExplicit += fcf / math.Pow(1+wacc, float64(i+1))
	}
	pvTerminal := terminalValue / math.Pow(1+wacc, projectionYears)

	enterpriseValue := pvExplicit + pvTerminal
	equityValue := enterpriseValue - input.NetDebt
	intrinsicPerShare := math.Max(equityValue/input.SharesOutstanding, 0)

	if !isFinite(terminalValue) || !isFinite(intrinsicPerShare) {
		return nil, fmt.Errorf("%w: %s terminal", ErrNumericOverflow, p.name)
	}

	upsidePct := 0.0
	if input.CurrentPrice > 0 {
		upsidePct = (intrinsicPerShare - input.CurrentPrice) / input.CurrentPrice
	}

	return &models.DCFScenario{
		ScenarioName:              p.name,
		RevenueGrowthRate:         p.growth,
		OperatingMarginAssumption: p.margin,
		TerminalGrowthRate:        terminalGrowth,
		WACC:                      wacc,
		ProjectionYears:           projectionYears,
		ProjectedRevenue:          projRevenue,
		ProjectedEBIT:             projEBIT,
		ProjectedNOPAT:            projNOPAT,
		ProjectedFCF:              projFCF,
		TerminalFCF:               terminalFCF,
		TerminalValue:             terminalValue,
		PVExplicitPeriod:          pvExplicit,
		PVTerminalValue:           pvTerminal,
		EnterpriseValue:           enterpriseValue,
		EquityValue:               equityValue,
		IntrinsicValuePerShare:    intrinsicPerShare,
		CurrentPrice:              input.CurrentPrice,
		UpsideDownsidePct:         upsidePct,
	}, nil
}

// CalculateDCF runs the three scenarios, the probability-weighted value, and
// the WACC sensitivity band.
//
// A scenario that overflows is recorded as nil with the failure noted in
// anomalies; the weighted value renormalizes the surviving weights to 1. If
// all three scenarios fail the error is returned.
func CalculateDCF(input *models.StandardizedValuationInput, taxRate float64) (*models.DCFValuation, []string, error) {
	if input.SharesOutstanding <= 0 {
		return nil, nil, fmt.Errorf("%w: shares_outstanding must be positive, got %v",
			ErrInvalidInputs, input.SharesOutstanding)
	}

	components := CalculateWACC(input, taxRate)
	params := scenarioMatrix(input)

	var anomalies []string
	if input.ROIC <= 0 {
		anomalies = append(anomalies, "roic<=0, used 10% floor")
	}

	scenarios := make(map[string]*models.DCFScenario, len(params))
	for _, p := range params {
		s, err := projectScenario(input, p, components.WACC, taxRate)
		if err != nil {
			anomalies = append(anomalies, fmt.Sprintf("scenario %s unavailable: %v", p.name, err))
			scenarios[p.name] = nil
			continue
		}
		scenarios[p.name] = s
	}

	// Probability-weighted value over the surviving scenarios, weights
	// renormalized to 1.
	var weightedIV, totalWeight float64
	for name, weight := range scenarioWeights {
		if s := scenarios[name]; s != nil {
			weightedIV += s.IntrinsicValuePerShare * weight
			totalWeight += weight
		}
	}
	if totalWeight == 0 {
		return nil, anomalies, fmt.Errorf("all scenarios failed: %w", ErrNumericOverflow)
	}
	weightedIV /= totalWeight

	// Sensitivity: base scenario re-run at WACC +/- 1%, same clamp rule,
	// other parameters held constant. Growth sensitivity is reserved.
	baseParams := params[1]
	sensitivityWACC := make(map[string]float64, 2)
	if s, err := projectScenario(input, scenarioParams{
		name: "sensitivity", growth: baseParams.growth,
		terminalGrowth: baseParams.terminalGrowth, margin: baseParams.margin,
	}, components.WACC-0.01, taxRate); err == nil {
		sensitivityWACC["wacc_minus_1pct"] = s.IntrinsicValuePerShare
	}
	if s, err := projectScenario(input, scenarioParams{
		name: "sensitivity", growth: baseParams.growth,
		terminalGrowth: baseParams.terminalGrowth, margin: baseParams.margin,
	}, components.WACC+0.01, taxRate); err == nil {
		sensitivityWACC["wacc_plus_1pct"] = s.IntrinsicValuePerShare
	}

	return &models.DCFValuation{
		CalculationTimestamp:   time.Now().UTC(),
		Methodology:            "Discounted Cash Flow (FCFF)",
		RiskFreeRate:           components.RiskFreeRate,
		Beta:                   components.Beta,
		EquityRiskPremium:      components.EquityRiskPremium,
		CostOfEquity:           components.CostOfEquity,
		CostOfDebtPretax:       components.CostOfDebtPretax,
		TaxRate:                taxRate,
		CostOfDebtAftertax:     components.CostOfDebtAftertax,
		DebtWeight:             components.DebtWeight,
		EquityWeight:           components.EquityWeight,
		WACC:                   components.WACC,
		Conservative:           scenarios["conservative"],
		BaseCase:               scenarios["base_case"],
		Optimistic:             scenarios["optimistic"],
		ScenarioWeights:        scenarioWeights,
		WeightedIntrinsicValue: weightedIV,
		SensitivityToWACC:      sensitivityWACC,
		SensitivityToGrowth:    map[string]float64{},
	}, anomalies, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
