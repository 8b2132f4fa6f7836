// Package valuation provides the deterministic depreciation estimator and
// the age-based sanity validator. The estimator is the fallback path when
// external price discovery fails or is rejected; the validator is the
// principal guard against MSRP leakage into used-market values.
package valuation

import (
	"github.com/flipwise/appraiser/internal/domain"
)

// Age bucket boundaries shared by the depreciation curve and the sanity
// ceiling. Vehicles age `ageSteepMin` and older depreciate steepest and get
// the tightest ceiling.
const (
	ageSteepMin = 8
	ageMidMin   = 5
)

// DepreciationRates holds the per-year retention loss by age bucket.
type DepreciationRates struct {
	SteepPerYear  float64 // age >= 8
	MidPerYear    float64 // age 5-7
	GentlePerYear float64 // age < 5
}

// EstimatorConfig is the immutable configuration table set for the fallback
// estimator. Passed at construction so tests can swap the whole table set;
// callers must not mutate it afterwards.
type EstimatorConfig struct {
	// BasePrices maps "make model" to an approximate price when new.
	BasePrices map[string]float64
	// DefaultBasePrice is used for unknown make/model pairs.
	DefaultBasePrice float64
	// RetentionMultipliers adjust the generic curve for brands and models
	// that hold value better or worse. Lookup order: "make model", "make".
	RetentionMultipliers map[string]float64
	// TrimTiers maps recognized trim keywords to a percentage premium.
	TrimTiers map[string]float64

	Depreciation DepreciationRates

	// MinimumValue clamps the depreciation curve; no running vehicle
	// estimates below this.
	MinimumValue float64

	// CurrentYear fixes the age reference for tests; zero means use the
	// wall clock.
	CurrentYear int
	// AssumedAge is used when the query has no year.
	AssumedAge int
}

// DefaultEstimatorConfig returns the production table set.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		BasePrices: map[string]float64{
			"toyota camry":          28000,
			"toyota corolla":        23000,
			"toyota tacoma":         32000,
			"toyota rav4":           29000,
			"honda civic":           24000,
			"honda accord":          28000,
			"honda cr-v":            29000,
			"ford f-150":            38000,
			"ford focus":            20000,
			"ford escape":           27000,
			"ford fusion":           25000,
			"chevrolet malibu":      25000,
			"chevrolet silverado":   37000,
			"chevrolet equinox":     26000,
			"chevrolet cruze":       20000,
			"nissan altima":         25000,
			"nissan sentra":         20000,
			"nissan rogue":          27000,
			"subaru outback":        29000,
			"subaru forester":       27000,
			"subaru impreza":        20000,
			"hyundai elantra":       21000,
			"hyundai sonata":        24000,
			"kia optima":            24000,
			"kia sorento":           28000,
			"jeep wrangler":         33000,
			"jeep grand cherokee":   35000,
			"dodge charger":         31000,
			"ram 1500":              34000,
			"bmw 3 series":          42000,
			"mercedes-benz c-class": 43000,
			"audi a4":               40000,
			"volkswagen jetta":      20000,
			"volkswagen passat":     24000,
			"mazda mazda3":          22000,
			"mazda cx-5":            27000,
		},
		DefaultBasePrice: 25000,
		RetentionMultipliers: map[string]float64{
			"toyota tacoma": 1.30,
			"jeep wrangler": 1.25,
			"toyota":        1.15,
			"honda":         1.12,
			"lexus":         1.12,
			"subaru":        1.10,
			"mazda":         1.02,
			"ford":          0.95,
			"chevrolet":     0.95,
			"kia":           0.95,
			"hyundai":       0.95,
			"nissan":        0.92,
			"volkswagen":    0.88,
			"dodge":         0.85,
			"chrysler":      0.82,
			"bmw":           0.80,
			"mercedes-benz": 0.80,
			"audi":          0.80,
		},
		TrimTiers: map[string]float64{
			"type r":     0.15,
			"platinum":   0.12,
			"denali":     0.12,
			"king ranch": 0.12,
			"limited":    0.10,
			"lariat":     0.10,
			"trd":        0.10,
			"touring":    0.08,
			"sport":      0.08,
			"premium":    0.08,
			"gt":         0.08,
			"si":         0.08,
			"ex-l":       0.06,
			"sel":        0.05,
			"xlt":        0.05,
			"lt":         0.03,
			"le":         0.03,
			"se":         0.03,
		},
		Depreciation: DepreciationRates{
			SteepPerYear:  0.20,
			MidPerYear:    0.18,
			GentlePerYear: 0.15,
		},
		MinimumValue: 500,
		AssumedAge:   10,
	}
}

// ValidatorConfig holds the sanity-ceiling parameters.
type ValidatorConfig struct {
	// Ceiling multipliers over the clean-title reference, by age bucket.
	// Older vehicles get tighter ceilings since MSRP leakage diverges most
	// from realistic depreciated value there.
	CeilingOld    float64 // age >= 8
	CeilingMid    float64 // age 5-7
	CeilingRecent float64 // age < 5

	// TitleFactors lightly discount the ceiling reference for branded
	// titles. Much lighter than the adjustment pipeline's deductions; this
	// only positions the validation ceiling, never the final price.
	TitleFactors map[domain.TitleStatus]float64
}

// DefaultValidatorConfig returns the production ceiling parameters.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		CeilingOld:    1.10,
		CeilingMid:    1.30,
		CeilingRecent: 1.50,
		TitleFactors: map[domain.TitleStatus]float64{
			domain.TitleClean:   1.00,
			domain.TitleRebuilt: 0.90,
			domain.TitleSalvage: 0.75,
			domain.TitleJunk:    0.60,
			domain.TitleParts:   0.60,
		},
	}
}

// ceilingFor returns the ceiling multiplier for a vehicle age.
func (c ValidatorConfig) ceilingFor(age int) float64 {
	if age >= ageSteepMin {
		return c.CeilingOld
	}
	if age >= ageMidMin {
		return c.CeilingMid
	}
	return c.CeilingRecent
}

// titleFactor returns the light validation discount for a title status.
func (c ValidatorConfig) titleFactor(title domain.TitleStatus) float64 {
	if f, ok := c.TitleFactors[title]; ok {
		return f
	}
	return 1.0
}
