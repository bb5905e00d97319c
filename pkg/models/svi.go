// Package models defines the data contracts shared by the extraction,
// valuation, and analysis layers. StandardizedValuationInput is the boundary
// between the LLM extraction layer and the pure numeric engine: everything
// past ParseSVI operates on validated structs, never raw maps.
package models

import (
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"
)

// HistoricalFinancials is a single fiscal year of data for trend analysis.
// The extractor emits up to 10 years, most recent first.
type HistoricalFinancials struct {
	FiscalYear         int      `json:"fiscal_year" validate:"gte=1900,lte=2100"`
	Revenue            *float64 `json:"revenue"`
	GrossProfit        *float64 `json:"gross_profit"`
	OperatingIncome    *float64 `json:"operating_income"`
	NetIncome          *float64 `json:"net_income"`
	FreeCashFlow       *float64 `json:"free_cash_flow"`
	EPS                *float64 `json:"eps"`
	TotalDebt          *float64 `json:"total_debt"`
	ShareholdersEquity *float64 `json:"shareholders_equity"`
	CashAndEquivalents *float64 `json:"cash_and_equivalents"`
}

// StandardizedValuationInput (SVI) is the AI-normalized valuation input.
//
// All monetary values are USD. All ratios are decimal (15% = 0.15). All
// growth rates are annualized CAGRs. Immutable once produced: the cache is
// the sole owner and hands out deep copies.
type StandardizedValuationInput struct {
	// Metadata
	Ticker              string    `json:"ticker" validate:"required,min=1,max=10"`
	CompanyName         string    `json:"company_name" validate:"required"`
	Sector              string    `json:"sector"`
	Industry            string    `json:"industry"`
	ExtractionTimestamp time.Time `json:"extraction_timestamp"`

	// Market position
	CurrentPrice      float64 `json:"current_price" validate:"gt=0"`
	SharesOutstanding float64 `json:"shares_outstanding"`
	MarketCap         float64 `json:"market_cap"`
	EnterpriseValue   float64 `json:"enterprise_value"`

	// TTM income statement
	TTMRevenue         float64 `json:"ttm_revenue"`
	TTMOperatingIncome float64 `json:"ttm_operating_income"`
	TTMNetIncome       float64 `json:"ttm_net_income"`
	TTMEBITDA          float64 `json:"ttm_ebitda"`
	TTMEPS             float64 `json:"ttm_eps"`

	// TTM cash flow
	TTMOperatingCashFlow   *float64 `json:"ttm_operating_cash_flow"`
	TTMCapitalExpenditures *float64 `json:"ttm_capital_expenditures"`
	TTMFreeCashFlow        float64  `json:"ttm_free_cash_flow"`

	// Balance sheet (latest quarter)
	CashAndEquivalents float64 `json:"cash_and_equivalents"`
	TotalCash          float64 `json:"total_cash"`
	TotalDebt          float64 `json:"total_debt"`
	NetDebt            float64 `json:"net_debt"`
	TotalAssets        float64 `json:"total_assets"`
	TotalLiabilities   float64 `json:"total_liabilities"`
	ShareholdersEquity float64 `json:"shareholders_equity"`

	// Ratios
	CurrentRatio     float64  `json:"current_ratio"`
	GrossMargin      float64  `json:"gross_margin"`
	OperatingMargin  float64  `json:"operating_margin"`
	NetMargin        float64  `json:"net_margin"`
	ROE              float64  `json:"roe"`
	ROIC             float64  `json:"roic"`
	DebtToEquity     *float64 `json:"debt_to_equity"`
	InterestCoverage *float64 `json:"interest_coverage"`

	// Valuation multiples
	PERatio     *float64 `json:"pe_ratio"`
	PriceToBook *float64 `json:"price_to_book"`

	// Dividends
	DividendYield *float64 `json:"dividend_yield"`

	// Growth rates (annualized CAGR; nil when underivable)
	RevenueGrowth1Y       *float64 `json:"revenue_growth_1y_cagr"`
	RevenueGrowth3YCAGR   *float64 `json:"revenue_growth_3y_cagr"`
	RevenueGrowth5YCAGR   *float64 `json:"revenue_growth_5y_cagr"`
	RevenueGrowth10YCAGR  *float64 `json:"revenue_growth_10y_cagr"`
	EarningsGrowth1Y      *float64 `json:"earnings_growth_1y_cagr"`
	EarningsGrowth3YCAGR  *float64 `json:"earnings_growth_3y_cagr"`
	EarningsGrowth5YCAGR  *float64 `json:"earnings_growth_5y_cagr"`
	EarningsGrowth10YCAGR *float64 `json:"earnings_growth_10y_cagr"`

	// Risk parameters
	Beta              *float64 `json:"beta"`
	RiskFreeRate      float64  `json:"risk_free_rate" validate:"gte=0,lte=0.25"`
	EquityRiskPremium float64  `json:"equity_risk_premium"`

	// Historical data, most recent first, capped at 10 years
	HistoricalFinancials []HistoricalFinancials `json:"historical_financials" validate:"max=10"`

	// Data quality
	DataConfidenceScore float64  `json:"data_confidence_score" validate:"gte=0,lte=1"`
	MissingFields       []string `json:"missing_fields"`
	EstimatedFields     []string `json:"estimated_fields"`
	DataAnomalies       []string `json:"data_anomalies"`
}

// BetaOrDefault returns beta clamped into plausibility by the extractor,
// defaulting to 1.0 when the source never reported one.
func (s *StandardizedValuationInput) BetaOrDefault() float64 {
	if s.Beta == nil {
		return 1.0
	}
	return *s.Beta
}

var sviValidate = validator.New()

// ParseSVI is the single validation boundary for LLM-emitted SVI payloads.
// No code downstream of this function handles raw maps.
func ParseSVI(raw []byte) (*StandardizedValuationInput, error) {
	var svi StandardizedValuationInput
	if err := json.Unmarshal(raw, &svi); err != nil {
		return nil, fmt.Errorf("svi structural error: %w", err)
	}
	if err := sviValidate.Struct(&svi); err != nil {
		return nil, fmt.Errorf("svi schema violation: %w", err)
	}
	return &svi, nil
}

// Clone returns a deep copy via JSON round-trip. Consumers receive copies so
// the cached value stays immutable.
func (s *StandardizedValuationInput) Clone() (*StandardizedValuationInput, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out StandardizedValuationInput
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CanonicalJSON renders a value with lexicographically sorted keys, minimal
// number formatting, and no insignificant whitespace. Used for cache
// fingerprints: serialize -> parse -> serialize is the identity.
func CanonicalJSON(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return marshalCanonical(generic)
}

func marshalCanonical(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			out = append(out, kb...)
			out = append(out, ':')
			vb, err := marshalCanonical(t[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		return append(out, '}'), nil
	case []interface{}:
		out := []byte{'['}
		for i, e := range t {
			if i > 0 {
				out = append(out, ',')
			}
			eb, err := marshalCanonical(e)
			if err != nil {
				return nil, err
			}
			out = append(out, eb...)
		}
		return append(out, ']'), nil
	default:
		// Scalars: encoding already emits numbers without trailing zeros.
		return json.Marshal(v)
	}
}
