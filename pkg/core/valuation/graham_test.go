package valuation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrahamNumberQualityFirm(t *testing.T) {
	gn := CalculateGrahamNumber(qualityFirm())

	// sqrt(22.5 * 10 * 40) = sqrt(9000)
	assert.InDelta(t, math.Sqrt(9000), gn.GrahamNumber, 1e-9)
	assert.InDelta(t, 94.868, gn.GrahamNumber, 1e-3)
	assert.InDelta(t, 40.0, gn.BookValuePerShare, 1e-12)
	assert.InDelta(t, (gn.GrahamNumber-100)/100, gn.UpsidePct, 1e-12)
}

func TestGrahamNumberNegativeEPS(t *testing.T) {
	input := qualityFirm()
	input.TTMEPS = -2

	gn := CalculateGrahamNumber(input)
	assert.Equal(t, 0.0, gn.GrahamNumber)
	assert.Equal(t, -1.0, gn.UpsidePct)
}

func TestGrahamNumberZeroShares(t *testing.T) {
	input := qualityFirm()
	input.SharesOutstanding = 0

	gn := CalculateGrahamNumber(input)
	assert.Equal(t, 0.0, gn.BookValuePerShare)
	assert.Equal(t, 0.0, gn.GrahamNumber)
	assert.Equal(t, -1.0, gn.UpsidePct)
}

func TestGrahamScreenQualityFirm(t *testing.T) {
	screen := CalculateGrahamScreen(qualityFirm())

	// Revenue of $500 fails adequate size; everything else holds.
	assert.False(t, screen.AdequateSize)
	assert.True(t, screen.StrongFinancialCondition)
	assert.True(t, screen.EarningsStability)
	assert.Equal(t, 10, screen.YearsPositiveEarnings)
	assert.True(t, screen.DividendRecord)
	assert.Equal(t, 20, screen.YearsDividendsPaid)
	assert.True(t, screen.DividendYearsEstimated)
	assert.True(t, screen.EarningsGrowth)
	assert.True(t, screen.ModeratePE)

	assert.Equal(t, 5, screen.CriteriaPassed)
	assert.True(t, screen.PassesScreen)
	assert.GreaterOrEqual(t, screen.CriteriaPassed, 0)
	assert.LessOrEqual(t, screen.CriteriaPassed, 7)
}

func TestGrahamScreenProductException(t *testing.T) {
	input := qualityFirm()
	input.PERatio = f(18.0)     // fails the direct P/E check
	input.PriceToBook = f(1.2)  // passes P/B directly

	screen := CalculateGrahamScreen(input)

	// 18 * 1.2 = 21.6 < 22.5: the product exception rescues #6.
	require.NotNil(t, screen.GrahamProduct)
	assert.InDelta(t, 21.6, *screen.GrahamProduct, 1e-9)
	assert.True(t, screen.GrahamProductPasses)
	assert.False(t, screen.ModeratePE)
	assert.True(t, screen.ModeratePB)

	// Both #6 and #7 count as passed via the disjunction.
	assert.GreaterOrEqual(t, screen.CriteriaPassed, 5)
	assert.True(t, screen.PassesScreen)
}

func TestGrahamScreenNoDividend(t *testing.T) {
	input := qualityFirm()
	input.DividendYield = nil

	screen := CalculateGrahamScreen(input)
	assert.False(t, screen.DividendRecord)
	assert.Equal(t, 0, screen.YearsDividendsPaid)
	assert.False(t, screen.DividendYearsEstimated)
}

func TestGrahamScreenEarningsGrowthFromCAGR(t *testing.T) {
	input := qualityFirm()
	input.HistoricalFinancials = input.HistoricalFinancials[:5] // short history
	input.EarningsGrowth10YCAGR = f(0.03)                       // (1.03)^10-1 ~ 34.4%

	screen := CalculateGrahamScreen(input)
	require.NotNil(t, screen.EPS10YGrowth)
	assert.InDelta(t, math.Pow(1.03, 10)-1, *screen.EPS10YGrowth, 1e-9)
	assert.True(t, screen.EarningsGrowth)
}

func TestGrahamScreenEarningsGrowthUnavailable(t *testing.T) {
	input := qualityFirm()
	input.HistoricalFinancials = nil
	input.EarningsGrowth10YCAGR = nil

	screen := CalculateGrahamScreen(input)
	assert.Nil(t, screen.EPS10YGrowth)
	assert.False(t, screen.EarningsGrowth)
}
