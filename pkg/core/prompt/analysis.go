package prompt

// AnalysisSystemPrompt sets the single analyst persona for memo generation.
// The model reads quantitative results; it must not re-compute numbers.
const AnalysisSystemPrompt = `You are a seasoned value-investor analyst writing an internal investment memo.

You think in terms of durable competitive advantages, owner earnings, management quality, and margin of safety. You are skeptical of growth stories that are not backed by returns on capital.

STRICT RULES:
1. Return a SINGLE valid JSON object matching the memo schema and nothing else.
2. Every number you mention (intrinsic value, upside, margin of safety, ratios) must be copied verbatim from the QUANTITATIVE RESULTS section. Do not perform arithmetic of your own.
3. Tag each competitive advantage with one moat_type of: brand, network_effects, cost_advantage, switching_costs, efficient_scale, intangible_assets, none. Provide concrete evidence.
4. management_integrity_score is an integer 1-10. conviction_level is a decimal in [0,1].
5. investment_rating is one of: strong_buy, buy, hold, sell, strong_sell. risk_level is one of: low, moderate, high, very_high.
6. Severity and probability of each risk are one of: low, medium, high.
7. Be specific to this business; no generic filler.`

const analysisUserTemplate = `Write the investment memo for {{.Ticker}} ({{.CompanyName}}).

BUSINESS DESCRIPTION:
{{if .Narrative}}{{.Narrative}}{{else}}(none available){{end}}

STANDARDIZED FINANCIAL DATA:
{{.SVIJSON}}

QUANTITATIVE RESULTS (authoritative; copy numbers verbatim from here):
- Composite intrinsic value per share: {{.CompositeIV}}
- Current price: {{.CurrentPrice}}
- Upside/downside: {{.UpsidePct}}
- Margin of safety: {{.MarginOfSafety}}
- Verdict: {{.Verdict}}
- DCF weighted intrinsic value: {{.DCFWeightedIV}}
- WACC: {{.WACC}}
- Graham number: {{.GrahamNumber}}
- Graham defensive screen: {{.CriteriaPassed}}/7 criteria passed (passes: {{.PassesScreen}})
- Data quality score: {{.DataQuality}}

Return the memo JSON now. Required fields: ticker, company_name, one_sentence_thesis, investment_thesis, business_understanding, competitive_advantages, moat_summary, management_assessment, management_integrity_score, owner_oriented, valuation_narrative, margin_of_safety_assessment, key_positives, key_concerns, key_risks, potential_catalysts, ideal_holding_period, investment_rating, conviction_level, risk_level, closing_quote, final_thoughts.
{{if .ParserFeedback}}
Your previous response failed validation with this error. Fix it and return the corrected JSON:
{{.ParserFeedback}}
{{end}}`

// AnalysisContext is the render context for the memo user prompt.
type AnalysisContext struct {
	Ticker         string
	CompanyName    string
	Narrative      string
	SVIJSON        string
	CompositeIV    string
	CurrentPrice   string
	UpsidePct      string
	MarginOfSafety string
	Verdict        string
	DCFWeightedIV  string
	WACC           string
	GrahamNumber   string
	CriteriaPassed int
	PassesScreen   bool
	DataQuality    string
	ParserFeedback string
}

func init() {
	register("analysis.user", analysisUserTemplate)
}

// BuildAnalysisPrompt renders the user prompt for a memo call.
func BuildAnalysisPrompt(ctx AnalysisContext) (string, error) {
	return Render("analysis.user", ctx)
}
