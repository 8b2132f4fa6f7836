package pricing

import (
	"fmt"

	"github.com/flipwise/appraiser/internal/domain"
)

// BuildTiers derives the three listing tiers from an adjustment breakdown.
// Multipliers are fixed: quick sale 0.85, market 1.00, top dollar 1.15 of
// the adjusted value.
func BuildTiers(breakdown domain.AdjustmentBreakdown) domain.PricingResult {
	adjusted := breakdown.FinalAdjustedPrice
	return domain.PricingResult{
		QuickSale:       round2(adjusted * domain.TierQuickSaleMultiplier),
		MarketPrice:     round2(adjusted * domain.TierMarketMultiplier),
		TopDollar:       round2(adjusted * domain.TierTopDollarMultiplier),
		BaseMarketValue: breakdown.BaseValue,
		AdjustedValue:   adjusted,
		Breakdown:       breakdown,
	}
}

// Recommend picks the tier matching the seller's goal and phrases it as
// listing advice.
func Recommend(goal domain.SaleGoal, pricing domain.PricingResult) string {
	switch goal {
	case domain.GoalQuickSale:
		return fmt.Sprintf("List at $%.0f to move it fast", pricing.QuickSale)
	case domain.GoalMaxProfit:
		return fmt.Sprintf("List at $%.0f and hold out for the right buyer", pricing.TopDollar)
	default:
		return fmt.Sprintf("List at $%.0f for a balanced time-to-sale", pricing.MarketPrice)
	}
}
