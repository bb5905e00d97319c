package valuation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hybrid_valuation/pkg/models"
)

func f(v float64) *float64 { return &v }

func TestCreditSpreadBands(t *testing.T) {
	tests := []struct {
		name     string
		coverage *float64
		want     float64
	}{
		{"nil coverage", nil, 0.050},
		{"negative", f(-2), 0.050},
		{"zero", f(0), 0.050},
		{"below 1.5", f(1.0), 0.040},
		{"below 3", f(2.9), 0.030},
		{"below 5", f(4.0), 0.020},
		{"below 8", f(7.5), 0.015},
		{"below 12", f(11.9), 0.010},
		{"at 12", f(12.0), 0.007},
		{"very high", f(50), 0.007},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CreditSpread(tt.coverage))
		})
	}
}

func TestWACCAllEquityEqualsCostOfEquity(t *testing.T) {
	input := &models.StandardizedValuationInput{
		RiskFreeRate:      0.04,
		Beta:              f(1.0),
		EquityRiskPremium: 0.05,
		MarketCap:         1000,
		TotalDebt:         0,
	}
	c := CalculateWACC(input, 0.21)

	assert.InDelta(t, 0.09, c.CostOfEquity, 1e-12)
	assert.InDelta(t, c.CostOfEquity, c.WACC, 1e-12)
	assert.Equal(t, 1.0, c.EquityWeight)
	assert.Equal(t, 0.0, c.DebtWeight)
}

func TestWACCWithDebt(t *testing.T) {
	input := &models.StandardizedValuationInput{
		RiskFreeRate:      0.04,
		Beta:              f(1.2),
		EquityRiskPremium: 0.05,
		MarketCap:         750,
		TotalDebt:         250,
		InterestCoverage:  f(6.0), // 1.5% spread
	}
	c := CalculateWACC(input, 0.21)

	coe := 0.04 + 1.2*0.05
	codAfter := (0.04 + 0.015) * 0.79
	want := 0.75*coe + 0.25*codAfter

	assert.InDelta(t, want, c.WACC, 1e-12)
	assert.InDelta(t, 0.75, c.EquityWeight, 1e-12)
	assert.InDelta(t, 0.25, c.DebtWeight, 1e-12)

	// WACC dominates each weighted component.
	assert.GreaterOrEqual(t, c.WACC, c.CostOfDebtAftertax*c.DebtWeight)
	assert.GreaterOrEqual(t, c.WACC+1e-12, c.CostOfEquity*c.EquityWeight)
}

func TestWACCZeroCapitalTreatedAsAllEquity(t *testing.T) {
	input := &models.StandardizedValuationInput{
		RiskFreeRate:      0.03,
		EquityRiskPremium: 0.05,
	}
	c := CalculateWACC(input, 0.21)

	assert.Equal(t, 1.0, c.EquityWeight)
	assert.Equal(t, 0.0, c.DebtWeight)
	// Beta defaults to 1.0 when absent.
	assert.InDelta(t, 0.08, c.WACC, 1e-12)
}
