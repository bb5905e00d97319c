// Package truncate reduces a raw source document (hundreds of KB) to the
// bounded whitelist of sections the extractor needs. Sections are copied
// verbatim, except that company_info loses its officers list; everything
// outside the whitelist is dropped.
package truncate

import (
	"fmt"
	"sort"

	"hybrid_valuation/pkg/models"
)

// ErrInsufficientSourceData is returned when a required section is entirely
// absent from the document.
var ErrInsufficientSourceData = fmt.Errorf("insufficient source data")

const (
	maxAnnualYears = 10
	maxQuarters    = 4
)

// Truncate builds the extraction subset:
//
//   - company metadata (officers dropped, they are large and irrelevant)
//   - current market data
//   - aggregate valuation ratios
//   - pre-calculated metrics
//   - annual financials, capped at the 10 most recent years
//   - the 4 most recent quarterly income statements
//   - the latest quarterly balance sheet
//   - the 4 most recent quarterly cash-flow statements
//
// Company metadata, market data, and annual financials are required; missing
// quarterlies degrade quality and are recorded as warnings.
func Truncate(doc *models.SourceDocument) (*models.TruncatedSource, error) {
	out := &models.TruncatedSource{
		Ticker:      doc.Ticker,
		CompanyName: doc.CompanyName,
		CollectedAt: doc.CollectedAt,
		Sections:    make(map[string]interface{}),
	}

	companyInfo := doc.Section("company_info")
	marketData := doc.Section("market_data")
	annual := doc.Section("financials_annual")

	var missing []string
	if companyInfo == nil {
		missing = append(missing, "company_info")
	}
	if marketData == nil {
		missing = append(missing, "market_data")
	}
	if annual == nil {
		missing = append(missing, "financials_annual")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %v for %s", ErrInsufficientSourceData, missing, doc.Ticker)
	}

	info := copyMap(companyInfo)
	delete(info, "officers")
	out.Sections["company_info"] = info
	out.Sections["market_data"] = marketData
	out.Sections["financials_annual"] = latestKeys(annual, maxAnnualYears)

	if valuation := doc.Section("valuation"); valuation != nil {
		out.Sections["valuation"] = valuation
	}
	if metrics := doc.Section("calculated_metrics"); metrics != nil {
		out.Sections["calculated_metrics"] = metrics
	}

	yahoo := doc.Section("yahoo_financials")
	if yahoo == nil {
		out.Warnings = append(out.Warnings, "no quarterly financials available")
		return out, nil
	}

	if income := subMap(yahoo, "income_statement_quarterly"); income != nil {
		out.Sections["income_statement_quarterly"] = latestKeys(income, maxQuarters)
	} else {
		out.Warnings = append(out.Warnings, "quarterly income statements missing")
	}

	// Balance sheet: latest snapshot only, stocks are not summed.
	if bs := subMap(yahoo, "balance_sheet_quarterly"); bs != nil {
		out.Sections["balance_sheet_quarterly"] = latestKeys(bs, 1)
	} else {
		out.Warnings = append(out.Warnings, "quarterly balance sheet missing")
	}

	cf := subMap(yahoo, "cash_flow_statement_quarterly")
	if cf == nil {
		// Some collectors use the shorter name.
		cf = subMap(yahoo, "cash_flow_quarterly")
	}
	if cf != nil {
		out.Sections["cash_flow_statement_quarterly"] = latestKeys(cf, maxQuarters)
	} else {
		out.Warnings = append(out.Warnings, "quarterly cash-flow statements missing")
	}

	return out, nil
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func subMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// latestKeys keeps the n lexicographically greatest keys of a period-keyed
// map. Periods are ISO dates or fiscal years, so string order is time order.
func latestKeys(m map[string]interface{}, n int) map[string]interface{} {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		out[k] = m[k]
	}
	return out
}
