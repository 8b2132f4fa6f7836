// Package pricing applies the ordered adjustment pipeline to a base market
// value and derives the three-tier listing prices. The four adjustment
// steps are strictly sequential; each operates on the running price from
// the previous step, and reordering them changes results.
package pricing

import "github.com/flipwise/appraiser/internal/domain"

// MileageBand maps an inclusive mileage lower bound to a flat deduction.
type MileageBand struct {
	MinMiles  int
	Deduction float64
}

// SafetyFloor maps a model-year bracket to the minimum believable price.
// A running price below Floor for a vehicle of MinYear or newer is
// suspicious unless severe-damage language explains it.
type SafetyFloor struct {
	MinYear int
	Floor   float64
}

// TitleDeductions holds the percentage deductions per title status.
// Rebuilt is a range resolved by damage severity; the lower range applies
// when the discovery query itself already mentioned the rebuilt title,
// since the provider may have already depressed the price for it.
type TitleDeductions struct {
	RebuiltMin float64
	RebuiltMax float64

	RebuiltQueryAwareMin float64
	RebuiltQueryAwareMax float64

	SalvagePct float64
	OtherPct   float64 // junk and parts titles
}

// AdjusterConfig is the immutable configuration table set for the
// adjustment pipeline. Passed at construction so tests can swap tables.
type AdjusterConfig struct {
	// RegionalMarkets lists location substrings marking depressed regional
	// markets. RegionalDiscountPct is empirically tuned (5%, reduced from
	// an earlier 17.5%) rather than theoretically derived.
	RegionalMarkets     []string
	RegionalDiscountPct float64

	Titles TitleDeductions

	// MileageBands must be ordered by descending MinMiles; the first band
	// at or below the vehicle's mileage wins. Flat dollars, price
	// independent.
	MileageBands []MileageBand

	// SafetyFloors must be ordered by descending MinYear.
	SafetyFloors []SafetyFloor

	// Damage keyword lists for the best-effort severity heuristic. Known
	// precision limitation: keyword scanning, not a classifier.
	MinorDamageKeywords  []string
	MajorDamageKeywords  []string
	SevereDamageKeywords []string
}

// DefaultAdjusterConfig returns the production adjustment tables.
func DefaultAdjusterConfig() AdjusterConfig {
	return AdjusterConfig{
		RegionalMarkets: []string{
			"spokane",
			"yakima",
			"tri-cities",
			"pasco",
			"kennewick",
			"richland",
			"moses lake",
		},
		RegionalDiscountPct: 0.05,
		Titles: TitleDeductions{
			RebuiltMin:           0.10,
			RebuiltMax:           0.25,
			RebuiltQueryAwareMin: 0.10,
			RebuiltQueryAwareMax: 0.18,
			SalvagePct:           0.40,
			OtherPct:             0.50,
		},
		MileageBands: []MileageBand{
			{MinMiles: 220000, Deduction: 1500},
			{MinMiles: 180000, Deduction: 1000},
			{MinMiles: 150000, Deduction: 600},
		},
		SafetyFloors: []SafetyFloor{
			{MinYear: 2010, Floor: 2000},
			{MinYear: 2005, Floor: 1500},
			{MinYear: 2000, Floor: 1000},
		},
		MinorDamageKeywords: []string{
			"minor",
			"cosmetic",
			"scratch",
			"scratches",
			"small dent",
			"door ding",
			"hail",
			"fender bender",
		},
		MajorDamageKeywords: []string{
			"major",
			"severe",
			"extensive",
			"frame",
			"structural",
			"totaled",
			"flood",
			"airbag",
		},
		SevereDamageKeywords: []string{
			"frame damage",
			"structural damage",
			"totaled",
			"flood",
			"blown engine",
			"no engine",
			"doesn't start",
			"does not start",
			"won't start",
			"seized",
			"for parts",
		},
	}
}

// bandFor returns the flat deduction for a mileage, zero below all bands.
func (c AdjusterConfig) bandFor(miles int) float64 {
	for _, band := range c.MileageBands {
		if miles >= band.MinMiles {
			return band.Deduction
		}
	}
	return 0
}

// floorFor returns the safety floor for a model year, zero for vehicles
// older than every bracket.
func (c AdjusterConfig) floorFor(year int) float64 {
	for _, f := range c.SafetyFloors {
		if year >= f.MinYear {
			return f.Floor
		}
	}
	return 0
}

// titlePct resolves the percentage deduction for a title status.
// Severity shifts rebuilt within its range: minor damage keeps the low
// end, major damage uses the high end, unknown severity takes the middle.
func (c AdjusterConfig) titlePct(title domain.TitleStatus, severity damageSeverity, queryAware bool) float64 {
	switch title {
	case domain.TitleClean:
		return 0
	case domain.TitleRebuilt:
		min, max := c.Titles.RebuiltMin, c.Titles.RebuiltMax
		if queryAware {
			min, max = c.Titles.RebuiltQueryAwareMin, c.Titles.RebuiltQueryAwareMax
		}
		switch severity {
		case severityMinor:
			return min
		case severityMajor:
			return max
		default:
			return (min + max) / 2
		}
	case domain.TitleSalvage:
		return c.Titles.SalvagePct
	default:
		return c.Titles.OtherPct
	}
}
