package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flipwise/appraiser/internal/domain"
)

func breakdownWithFinal(base, final float64) domain.AdjustmentBreakdown {
	return domain.AdjustmentBreakdown{
		BaseValue:          base,
		Deltas:             []domain.AdjustmentDelta{{Kind: domain.AdjustmentTitleStatus, Amount: final - base}},
		FinalAdjustedPrice: final,
	}
}

func TestBuildTiers_FixedMultipliers(t *testing.T) {
	p := BuildTiers(breakdownWithFinal(12000, 12000))

	assert.InDelta(t, 10200, p.QuickSale, 0.01)
	assert.InDelta(t, 12000, p.MarketPrice, 0.01)
	assert.InDelta(t, 13800, p.TopDollar, 0.01)
	assert.InDelta(t, 12000, p.AdjustedValue, 0.01)
	assert.InDelta(t, 12000, p.BaseMarketValue, 0.01)
}

func TestBuildTiers_Monotonic(t *testing.T) {
	for _, adjusted := range []float64{1, 499.99, 4200, 12000, 87500} {
		p := BuildTiers(breakdownWithFinal(adjusted, adjusted))
		assert.Less(t, p.QuickSale, p.MarketPrice, "adjusted=%v", adjusted)
		assert.Less(t, p.MarketPrice, p.TopDollar, "adjusted=%v", adjusted)
	}
}

func TestBuildTiers_CarriesBreakdown(t *testing.T) {
	b := breakdownWithFinal(8000, 4200)
	p := BuildTiers(b)

	assert.Equal(t, b, p.Breakdown)
	assert.InDelta(t, 3570, p.QuickSale, 0.01)
	assert.InDelta(t, 4830, p.TopDollar, 0.01)
}

func TestRecommend_SelectsTierByGoal(t *testing.T) {
	p := BuildTiers(breakdownWithFinal(12000, 12000))

	tests := []struct {
		name string
		goal domain.SaleGoal
		want string
	}{
		{name: "quick sale tier", goal: domain.GoalQuickSale, want: "List at $10200 to move it fast"},
		{name: "max profit tier", goal: domain.GoalMaxProfit, want: "List at $13800 and hold out for the right buyer"},
		{name: "balanced tier", goal: domain.GoalBalanced, want: "List at $12000 for a balanced time-to-sale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Recommend(tt.goal, p))
		})
	}
}
