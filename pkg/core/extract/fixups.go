package extract

import (
	"fmt"
	"math"

	"hybrid_valuation/pkg/models"
)

// Identity tolerance for cross-checked fields.
const identityTolerance = 0.01

// Beta plausibility bounds; values outside are replaced by 1.0.
const (
	betaMin = 0.1
	betaMax = 3.0
)

// fixup applies the deterministic post-validation corrections the model is
// not trusted with: accounting identities are recomputed, implausible betas
// replaced, and defaults filled. Discrepancies beyond tolerance land in
// data_anomalies.
func (e *Extractor) fixup(svi *models.StandardizedValuationInput, ticker string) {
	// net_debt = total_debt - total_cash, always recomputed.
	netDebt := svi.TotalDebt - svi.TotalCash
	if relDiff(svi.NetDebt, netDebt) > identityTolerance {
		svi.DataAnomalies = append(svi.DataAnomalies,
			fmt.Sprintf("net_debt inconsistent: reported %.2f, recomputed %.2f", svi.NetDebt, netDebt))
	}
	svi.NetDebt = netDebt

	// market_cap = price * shares.
	if svi.CurrentPrice > 0 && svi.SharesOutstanding > 0 {
		marketCap := svi.CurrentPrice * svi.SharesOutstanding
		if relDiff(svi.MarketCap, marketCap) > identityTolerance {
			svi.DataAnomalies = append(svi.DataAnomalies,
				fmt.Sprintf("market_cap inconsistent: reported %.2f, recomputed %.2f", svi.MarketCap, marketCap))
		}
		svi.MarketCap = marketCap
	}

	// enterprise_value = market_cap + total_debt - total_cash.
	ev := svi.MarketCap + svi.TotalDebt - svi.TotalCash
	if relDiff(svi.EnterpriseValue, ev) > identityTolerance {
		svi.DataAnomalies = append(svi.DataAnomalies,
			fmt.Sprintf("enterprise_value inconsistent: reported %.2f, recomputed %.2f", svi.EnterpriseValue, ev))
	}
	svi.EnterpriseValue = ev

	// Beta outside plausibility is replaced by the market beta.
	if svi.Beta != nil && (*svi.Beta < betaMin || *svi.Beta > betaMax) {
		e.logger.Warn().Str("ticker", ticker).Float64("beta", *svi.Beta).
			Msg("implausible beta replaced by 1.0")
		one := 1.0
		svi.Beta = &one
		svi.EstimatedFields = append(svi.EstimatedFields, "beta")
	}

	if svi.EquityRiskPremium == 0 {
		svi.EquityRiskPremium = e.erpDefault
	}
}

// relDiff is the relative difference of got vs want, with an absolute
// fallback around zero.
func relDiff(got, want float64) float64 {
	diff := math.Abs(got - want)
	if math.Abs(want) < 1e-9 {
		return diff
	}
	return diff / math.Abs(want)
}
