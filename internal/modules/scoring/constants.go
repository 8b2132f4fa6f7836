// Package scoring computes the FlipScore, a 0-100 composite measure of
// how attractive a vehicle is to buy and resell. Higher is better.
package scoring

// =============================================================================
// BASELINE
// =============================================================================

const (
	// BaseScore is the neutral starting point before any factor applies.
	BaseScore = 50

	// MinScore and MaxScore bound the final score.
	MinScore = 0
	MaxScore = 100
)

// =============================================================================
// TITLE STATUS DELTAS
// =============================================================================

const (
	TitleCleanDelta   = 20
	TitleRebuiltDelta = 10
	TitleSalvageDelta = -20
	// TitleOtherDelta covers junk and parts titles, which are effectively
	// unsellable as drivers.
	TitleOtherDelta = -30
)

// =============================================================================
// CONDITION DELTAS
// =============================================================================

const (
	ConditionExcellentDelta = 15
	ConditionGoodDelta      = 8
	ConditionFairDelta      = 0
	ConditionPoorDelta      = -15
)

// =============================================================================
// MILEAGE DELTAS
// =============================================================================

// Thresholds are upper bounds; the first band containing the mileage wins.
// Unknown mileage (zero) contributes nothing.
const (
	MileageLowMax      = 50000
	MileageModerateMax = 100000
	MileageHighMax     = 180000

	MileageLowDelta      = 15
	MileageModerateDelta = 8
	MileageHighDelta     = 5
	MileageVeryHighDelta = -10
)

// =============================================================================
// MARKET SIGNAL DELTAS
// =============================================================================

const (
	DemandHighDelta     = 10
	DemandModerateDelta = 5
	DemandLowDelta      = -5

	TrendRisingDelta    = 10
	TrendStableDelta    = 5
	TrendDecliningDelta = -5
)

// =============================================================================
// RECOMMENDATION BUCKETS
// =============================================================================

const (
	ExcellentFlipMin = 80
	GoodFlipMin      = 60
	FairFlipMin      = 40
)
