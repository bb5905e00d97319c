package prompt

// ExtractionSystemPrompt constrains the model to emit a single JSON object
// matching the StandardizedValuationInput schema.
const ExtractionSystemPrompt = `You are a CFA charterholder and expert financial data analyst specializing in equity valuation.

Your task is to extract and normalize financial data from noisy, heterogeneous JSON records into a clean standardized schema. You must return a SINGLE valid JSON object and nothing else.

STRICT RULES:
1. All monetary values in USD. All ratios as decimals (15% = 0.15). All growth rates as annualized CAGRs.
2. Field name normalization:
   - Revenue = Net Sales = Total Revenue = Sales
   - Net Income = Net Earnings = Profit
   - Operating Income = EBIT = Operating Profit
   - Free Cash Flow = FCF = Levered Free Cash Flow
   - Shareholders Equity = Stockholders Equity = Total Equity
3. TTM values: sum the last 4 quarterly income/cash-flow items. Balance-sheet stocks use the latest quarterly snapshot, never summed.
4. CAGR over N years: (end/start)^(1/N) - 1. If start <= 0, emit null; list the field in estimated_fields only if a fallback was used, otherwise in missing_fields.
5. When sections disagree, prefer sources in this order: annual financials > quarterly statements > pre-calculated metrics > aggregated ratios > real-time market snapshot.
6. NEVER fabricate. When a field cannot be derived, emit null and add its name to missing_fields.
7. data_confidence_score in [0,1] reflects completeness, cross-source consistency, and recency of the data.
8. historical_financials: one entry per fiscal year, most recent first, at most 10 entries.`

// extractionUserTemplate carries the truncated source sections.
const extractionUserTemplate = `Extract the standardized valuation input for {{.Ticker}} ({{.CompanyName}}).

Data collected at: {{.CollectedAt}}
{{if .Warnings}}
Known data limitations (reflect these in data_confidence_score):
{{range .Warnings}}- {{.}}
{{end}}{{end}}
SOURCE DATA (JSON sections):
{{.SectionsJSON}}

Return the complete JSON object now. Required top-level fields: ticker, company_name, sector, industry, current_price, shares_outstanding, market_cap, enterprise_value, ttm_revenue, ttm_operating_income, ttm_net_income, ttm_eps, ttm_ebitda, ttm_free_cash_flow, cash_and_equivalents, total_cash, total_debt, net_debt, shareholders_equity, current_ratio, gross_margin, operating_margin, net_margin, roe, roic, risk_free_rate, equity_risk_premium, historical_financials, data_confidence_score, missing_fields, estimated_fields, data_anomalies. Optional fields (null when underivable): beta, interest_coverage, pe_ratio, price_to_book, dividend_yield, revenue_growth_{1,3,5,10}y_cagr, earnings_growth_{1,3,5,10}y_cagr.
{{if .ParserFeedback}}
Your previous response failed validation with this error. Fix it and return the corrected JSON:
{{.ParserFeedback}}
{{end}}`

// ExtractionContext is the render context for the extraction user prompt.
type ExtractionContext struct {
	Ticker         string
	CompanyName    string
	CollectedAt    string
	Warnings       []string
	SectionsJSON   string
	ParserFeedback string
}

func init() {
	register("extraction.user", extractionUserTemplate)
}

// BuildExtractionPrompt renders the user prompt for an extraction call.
func BuildExtractionPrompt(ctx ExtractionContext) (string, error) {
	return Render("extraction.user", ctx)
}
