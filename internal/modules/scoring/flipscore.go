package scoring

import (
	"fmt"

	"github.com/flipwise/appraiser/internal/domain"
)

// Score computes the FlipScore for a query and its market signals.
// Deterministic: same inputs always produce the same score. Unknown axes
// (condition, mileage, demand, trend) contribute nothing rather than
// penalizing, so sparse queries still score.
func Score(query *domain.VehicleQuery, signals domain.MarketSignals) domain.FlipScore {
	score := BaseScore
	factors := make([]string, 0, 5)

	apply := func(delta int, label string) {
		score += delta
		factors = append(factors, fmt.Sprintf("%s (%+d)", label, delta))
	}

	switch query.TitleStatus {
	case domain.TitleClean:
		apply(TitleCleanDelta, "Clean title")
	case domain.TitleRebuilt:
		apply(TitleRebuiltDelta, "Rebuilt title")
	case domain.TitleSalvage:
		apply(TitleSalvageDelta, "Salvage title")
	default:
		apply(TitleOtherDelta, fmt.Sprintf("%s title", query.TitleStatus))
	}

	switch query.Condition {
	case domain.ConditionExcellent:
		apply(ConditionExcellentDelta, "Excellent condition")
	case domain.ConditionGood:
		apply(ConditionGoodDelta, "Good condition")
	case domain.ConditionFair:
		apply(ConditionFairDelta, "Fair condition")
	case domain.ConditionPoor:
		apply(ConditionPoorDelta, "Poor condition")
	}

	if query.Mileage > 0 {
		switch {
		case query.Mileage < MileageLowMax:
			apply(MileageLowDelta, fmt.Sprintf("Low mileage %dk", query.Mileage/1000))
		case query.Mileage < MileageModerateMax:
			apply(MileageModerateDelta, fmt.Sprintf("Moderate mileage %dk", query.Mileage/1000))
		case query.Mileage < MileageHighMax:
			apply(MileageHighDelta, fmt.Sprintf("High mileage %dk, still sellable", query.Mileage/1000))
		default:
			apply(MileageVeryHighDelta, fmt.Sprintf("Very high mileage %dk", query.Mileage/1000))
		}
	}

	switch signals.Demand {
	case domain.DemandHigh:
		apply(DemandHighDelta, "Strong market demand")
	case domain.DemandModerate:
		apply(DemandModerateDelta, "Moderate market demand")
	case domain.DemandLow:
		apply(DemandLowDelta, "Weak market demand")
	}

	switch signals.Trend {
	case domain.TrendRising:
		apply(TrendRisingDelta, "Prices trending up")
	case domain.TrendStable:
		apply(TrendStableDelta, "Prices holding steady")
	case domain.TrendDeclining:
		apply(TrendDecliningDelta, "Prices trending down")
	}

	if score > MaxScore {
		score = MaxScore
	}
	if score < MinScore {
		score = MinScore
	}

	return domain.FlipScore{
		Score:          score,
		Factors:        factors,
		Recommendation: recommendation(score),
	}
}

func recommendation(score int) string {
	switch {
	case score >= ExcellentFlipMin:
		return "excellent"
	case score >= GoodFlipMin:
		return "good"
	case score >= FairFlipMin:
		return "fair"
	default:
		return "poor"
	}
}
