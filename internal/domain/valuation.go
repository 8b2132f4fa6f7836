package domain

import "time"

// ValuationSource tags where a base market value came from
type ValuationSource string

const (
	// SourceDiscovered means the value was extracted from external
	// knowledge-provider text.
	SourceDiscovered ValuationSource = "discovered"
	// SourceFallback means the deterministic depreciation estimator
	// produced the value after discovery failed or was rejected.
	SourceFallback ValuationSource = "fallback"
)

// Candidate priority classes for extracted price ranges. Lower is better.
const (
	// PriorityMarketSale marks ranges found in private-party or
	// market-sale-value context.
	PriorityMarketSale = 1
	// PriorityGeneric marks plain dollar ranges with no disqualifying
	// context around them.
	PriorityGeneric = 2
)

// PriceCandidate is one price range extracted from provider text.
// Candidates live only for the duration of extraction and selection;
// they are never persisted.
type PriceCandidate struct {
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Average    float64 `json:"average"`
	SourceType string  `json:"source_type"`
	Priority   int     `json:"priority"`
}

// ValuationEstimate is a clean-title market value before any adjustment.
// RawValueBeforeAdjustment is always a clean-title reference; title-status
// effects are applied later by the adjustment pipeline, never baked in here.
type ValuationEstimate struct {
	BaseValue                float64         `json:"base_value"`
	Source                   ValuationSource `json:"source"`
	RawValueBeforeAdjustment float64         `json:"raw_value_before_adjustment"`
}

// Adjustment step labels, in pipeline order. TrimPremium is reported by the
// fallback estimator's composition, not by the adjustment pipeline.
const (
	AdjustmentMarketReality = "market-reality"
	AdjustmentTitleStatus   = "title-status"
	AdjustmentMileage       = "mileage"
	AdjustmentTrimPremium   = "trim"
	AdjustmentSafetyFloor   = "safety-floor"
)

// AdjustmentDelta is one named step of the adjustment breakdown.
// Amount is signed (deductions negative). Percent is only meaningful when
// Flat is false; flat deductions carry a zero percent.
type AdjustmentDelta struct {
	Kind    string  `json:"kind"`
	Amount  float64 `json:"amount"`
	Percent float64 `json:"percent,omitempty"`
	Flat    bool    `json:"flat,omitempty"`
	Label   string  `json:"label"`
}

// AdjustmentBreakdown is the ordered, auditable record of every adjustment
// applied to a base value. Invariant: BaseValue plus the sum of all delta
// amounts equals FinalAdjustedPrice exactly.
type AdjustmentBreakdown struct {
	BaseValue          float64           `json:"base_value"`
	Deltas             []AdjustmentDelta `json:"deltas"`
	FinalAdjustedPrice float64           `json:"final_adjusted_price"`
}

// DeltaTotal returns the sum of all delta amounts.
func (b *AdjustmentBreakdown) DeltaTotal() float64 {
	total := 0.0
	for _, d := range b.Deltas {
		total += d.Amount
	}
	return total
}

// Pricing tier multipliers. Fixed constants, never configurable per call.
const (
	TierQuickSaleMultiplier = 0.85
	TierMarketMultiplier    = 1.00
	TierTopDollarMultiplier = 1.15
)

// PricingResult holds the three-tier pricing recommendation.
type PricingResult struct {
	QuickSale       float64             `json:"quick_sale"`
	MarketPrice     float64             `json:"market_price"`
	TopDollar       float64             `json:"top_dollar"`
	BaseMarketValue float64             `json:"base_market_value"`
	AdjustedValue   float64             `json:"adjusted_value"`
	Breakdown       AdjustmentBreakdown `json:"breakdown"`
}

// FlipScore is the 0-100 composite resale desirability score with its
// contributing factors recorded for explainability.
type FlipScore struct {
	Score          int      `json:"score"`
	Factors        []string `json:"factors"`
	Recommendation string   `json:"recommendation"`
}

// DemandLevel represents market demand for a vehicle
type DemandLevel string

const (
	DemandHigh     DemandLevel = "high"
	DemandModerate DemandLevel = "moderate"
	DemandLow      DemandLevel = "low"
	DemandUnknown  DemandLevel = "unknown"
)

// PriceTrend represents the direction of recent market prices
type PriceTrend string

const (
	TrendRising    PriceTrend = "rising"
	TrendStable    PriceTrend = "stable"
	TrendDeclining PriceTrend = "declining"
	TrendUnknown   PriceTrend = "unknown"
)

// MarketSignals is the enrichment branch result. A failed or partial
// enrichment lookup yields unknown axes rather than an error.
type MarketSignals struct {
	Demand     DemandLevel `json:"demand"`
	Trend      PriceTrend  `json:"trend"`
	DaysToSell int         `json:"days_to_sell,omitempty"`
	Source     string      `json:"source,omitempty"`
}

// EmptyMarketSignals returns the fully-unknown enrichment result used when
// both the provider lookup and the local trend fallback are unavailable.
func EmptyMarketSignals() MarketSignals {
	return MarketSignals{Demand: DemandUnknown, Trend: TrendUnknown}
}

// ValuationReport is the full pipeline output payload. It is what gets
// cached, recorded in history, and returned to callers.
type ValuationReport struct {
	ID              string          `json:"id"`
	Query           VehicleQuery    `json:"query"`
	PricingStrategy PricingResult   `json:"pricing_strategy"`
	FlipScore       FlipScore       `json:"flip_score"`
	MarketSignals   MarketSignals   `json:"market_signals"`
	Recommendation  string          `json:"recommendation"`
	DataSource      ValuationSource `json:"data_source"`
	ComputedAt      time.Time       `json:"computed_at"`
}
