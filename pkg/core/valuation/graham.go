package valuation

import (
	"math"

	"hybrid_valuation/pkg/models"
)

// Graham defensive-screen thresholds, from "The Intelligent Investor".
const (
	grahamMultiplier       = 22.5 // 15 (max P/E) * 1.5 (max P/B)
	grahamMinRevenue       = 700_000_000
	grahamMinCurrentRatio  = 2.0
	grahamMinPositiveYears = 10
	grahamMinDividendYears = 20
	grahamMinEPSGrowth     = 0.33
	grahamMaxPE            = 15.0
	grahamMaxPB            = 1.5
	grahamMaxPEPBProduct   = 22.5
	grahamMinCriteriaPass  = 5
	grahamTotalCriteria    = 7
)

// CalculateGrahamNumber computes sqrt(22.5 * EPS * BVPS).
//
// Only defined for positive EPS and BVPS; otherwise the number is 0 and the
// upside sentinel is -1.
func CalculateGrahamNumber(input *models.StandardizedValuationInput) models.GrahamNumber {
	eps := input.TTMEPS
	bvps := 0.0
	if input.SharesOutstanding > 0 {
		bvps = input.ShareholdersEquity / input.SharesOutstanding
	}

	grahamNumber := 0.0
	if eps > 0 && bvps > 0 {
		grahamNumber = math.Sqrt(grahamMultiplier * eps * bvps)
	}

	upsidePct := -1.0
	if grahamNumber > 0 && input.CurrentPrice > 0 {
		upsidePct = (grahamNumber - input.CurrentPrice) / input.CurrentPrice
	}

	return models.GrahamNumber{
		Methodology:       "Graham Number = sqrt(22.5 * EPS * BVPS)",
		EPSTTM:            eps,
		BookValuePerShare: bvps,
		GrahamMultiplier:  grahamMultiplier,
		GrahamNumber:      grahamNumber,
		CurrentPrice:      input.CurrentPrice,
		UpsidePct:         upsidePct,
	}
}

// CalculateGrahamScreen evaluates the seven defensive-investor criteria.
//
// Criteria 6 and 7 each also pass through the Graham product exception
// (P/E * P/B < 22.5). The screen passes at >= 5 criteria.
func CalculateGrahamScreen(input *models.StandardizedValuationInput) models.GrahamDefensiveCriteria {
	// 1. Adequate size
	adequateSize := input.TTMRevenue >= grahamMinRevenue

	// 2. Strong financial condition
	strongFinancial := input.CurrentRatio >= grahamMinCurrentRatio

	// 3. Earnings stability, counted from the historical timeline
	yearsPositive := 0
	for _, h := range input.HistoricalFinancials {
		if h.NetIncome != nil && *h.NetIncome > 0 {
			yearsPositive++
		}
	}
	earningsStability := yearsPositive >= grahamMinPositiveYears

	// 4. Dividend record. Full payment history is unavailable in the source
	// data, so a current yield stands in for the 20-year record and the
	// field is flagged as estimated.
	hasDividends := input.DividendYield != nil && *input.DividendYield > 0
	yearsDividends := 0
	if hasDividends {
		yearsDividends = grahamMinDividendYears
	}

	// 5. Earnings growth over 10 years. Prefer the endpoint ratio from the
	// historical timeline when 10 years are present; otherwise compound the
	// 10-year CAGR.
	var eps10YGrowth *float64
	if len(input.HistoricalFinancials) >= 10 {
		newest := input.HistoricalFinancials[0].EPS
		oldest := input.HistoricalFinancials[len(input.HistoricalFinancials)-1].EPS
		if newest != nil && oldest != nil && *oldest > 0 {
			g := (*newest - *oldest) / math.Abs(*oldest)
			eps10YGrowth = &g
		}
	} else if input.EarningsGrowth10YCAGR != nil {
		g := math.Pow(1+*input.EarningsGrowth10YCAGR, 10) - 1
		eps10YGrowth = &g
	}
	earningsGrowth := eps10YGrowth != nil && *eps10YGrowth >= grahamMinEPSGrowth

	// 6 & 7. Moderate P/E and P/B, each with the product exception.
	pe := input.PERatio
	pb := input.PriceToBook
	moderatePE := pe != nil && *pe > 0 && *pe <= grahamMaxPE
	moderatePB := pb != nil && *pb > 0 && *pb <= grahamMaxPB

	var grahamProduct *float64
	productPasses := false
	if pe != nil && pb != nil && *pe > 0 && *pb > 0 {
		product := *pe * *pb
		grahamProduct = &product
		productPasses = product < grahamMaxPEPBProduct
	}

	passed := 0
	for _, ok := range []bool{
		adequateSize,
		strongFinancial,
		earningsStability,
		hasDividends,
		earningsGrowth,
		moderatePE || productPasses,
		moderatePB || productPasses,
	} {
		if ok {
			passed++
		}
	}

	return models.GrahamDefensiveCriteria{
		AdequateSize:   adequateSize,
		RevenueMinimum: grahamMinRevenue,
		ActualRevenue:  input.TTMRevenue,

		StrongFinancialCondition: strongFinancial,
		CurrentRatioMinimum:      grahamMinCurrentRatio,
		ActualCurrentRatio:       input.CurrentRatio,

		EarningsStability:     earningsStability,
		YearsPositiveEarnings: yearsPositive,
		RequiredYears:         grahamMinPositiveYears,

		DividendRecord:         hasDividends,
		YearsDividendsPaid:     yearsDividends,
		RequiredDividendYears:  grahamMinDividendYears,
		DividendYearsEstimated: hasDividends,

		EarningsGrowth: earningsGrowth,
		EPS10YGrowth:   eps10YGrowth,
		RequiredGrowth: grahamMinEPSGrowth,

		ModeratePE: moderatePE,
		PEMaximum:  grahamMaxPE,
		ActualPE:   pe,

		ModeratePB: moderatePB,
		PBMaximum:  grahamMaxPB,
		ActualPB:   pb,

		GrahamProduct:       grahamProduct,
		GrahamProductPasses: productPasses,

		CriteriaPassed: passed,
		TotalCriteria:  grahamTotalCriteria,
		PassesScreen:   passed >= grahamMinCriteriaPass,
	}
}
