package valuation

import (
	"math"
	"strings"
	"time"

	"github.com/flipwise/appraiser/internal/domain"
)

// Estimator is the depreciation fallback estimator. It is a pure function
// of its configuration tables: same inputs, same output, every call.
//
// Mileage and title-status effects are deliberately NOT applied here; they
// belong solely to the adjustment pipeline so they can never be counted
// twice. The output is always a clean-title, average-mileage baseline.
type Estimator struct {
	cfg EstimatorConfig
}

// NewEstimator creates an estimator over an immutable configuration.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	return &Estimator{cfg: cfg}
}

// Estimate produces a clean-title market value for the queried vehicle.
func (e *Estimator) Estimate(q *domain.VehicleQuery) float64 {
	value, _ := e.EstimateWithBreakdown(q)
	return value
}

// EstimateWithBreakdown produces the estimate plus the composition steps
// that built it, for stage logging and diagnostics.
func (e *Estimator) EstimateWithBreakdown(q *domain.VehicleQuery) (float64, []domain.AdjustmentDelta) {
	base := e.basePrice(q.Make, q.Model)
	age := e.ageOf(q.Year)

	steps := make([]domain.AdjustmentDelta, 0, 3)

	// Age-bucketed depreciation, compounded per year of age.
	depreciated := base * math.Pow(1-e.depreciationRate(age), float64(age))
	if depreciated < e.cfg.MinimumValue {
		depreciated = e.cfg.MinimumValue
	}
	steps = append(steps, domain.AdjustmentDelta{
		Kind:    "depreciation",
		Amount:  depreciated - base,
		Percent: e.depreciationRate(age),
		Label:   "Age depreciation",
	})

	// Trim-tier premium for recognized trim keywords.
	value := depreciated
	if premium := e.trimPremium(q.Trim); premium > 0 {
		before := value
		value = value * (1 + premium)
		steps = append(steps, domain.AdjustmentDelta{
			Kind:    domain.AdjustmentTrimPremium,
			Amount:  value - before,
			Percent: premium,
			Label:   "Trim tier premium",
		})
	}

	// Brand/model retention multiplier.
	if mult := e.retentionMultiplier(q.Make, q.Model); mult != 1.0 {
		before := value
		value = value * mult
		steps = append(steps, domain.AdjustmentDelta{
			Kind:    "retention",
			Amount:  value - before,
			Percent: mult - 1,
			Label:   "Market retention",
		})
	}

	return round2(value), steps
}

// ReferenceValue produces the generic clean-title reference used by the
// sanity validator: the default base price through the same age-bucketed
// curve, with no make/model/trim specifics.
func (e *Estimator) ReferenceValue(year int) float64 {
	age := e.ageOf(year)
	value := e.cfg.DefaultBasePrice * math.Pow(1-e.depreciationRate(age), float64(age))
	if value < e.cfg.MinimumValue {
		value = e.cfg.MinimumValue
	}
	return round2(value)
}

// basePrice looks up the price-when-new for a make/model pair.
func (e *Estimator) basePrice(makeName, model string) float64 {
	if price, ok := e.cfg.BasePrices[makeName+" "+model]; ok {
		return price
	}
	return e.cfg.DefaultBasePrice
}

// retentionMultiplier looks up the value-retention multiplier.
// "make model" wins over "make"; unknown pairs use the generic curve.
func (e *Estimator) retentionMultiplier(makeName, model string) float64 {
	if mult, ok := e.cfg.RetentionMultipliers[makeName+" "+model]; ok {
		return mult
	}
	if mult, ok := e.cfg.RetentionMultipliers[makeName]; ok {
		return mult
	}
	return 1.0
}

// trimPremium returns the highest premium among recognized trim keywords.
func (e *Estimator) trimPremium(trim string) float64 {
	if trim == "" {
		return 0
	}

	best := 0.0
	padded := " " + trim + " "
	for keyword, premium := range e.cfg.TrimTiers {
		if strings.Contains(padded, " "+keyword+" ") && premium > best {
			best = premium
		}
	}
	return best
}

// depreciationRate picks the per-year rate for an age bucket.
func (e *Estimator) depreciationRate(age int) float64 {
	if age >= ageSteepMin {
		return e.cfg.Depreciation.SteepPerYear
	}
	if age >= ageMidMin {
		return e.cfg.Depreciation.MidPerYear
	}
	return e.cfg.Depreciation.GentlePerYear
}

// ageOf converts a model year to vehicle age, assuming AssumedAge when the
// year is unknown.
func (e *Estimator) ageOf(year int) int {
	if year <= 0 {
		return e.cfg.AssumedAge
	}

	current := e.cfg.CurrentYear
	if current == 0 {
		current = time.Now().Year()
	}

	age := current - year
	if age < 0 {
		age = 0
	}
	return age
}

// round2 rounds to cents.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
