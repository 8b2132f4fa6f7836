package pricing

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/flipwise/appraiser/internal/domain"
)

type damageSeverity int

const (
	severityUnknown damageSeverity = iota
	severityMinor
	severityMajor
)

// Adjuster turns a base market value into an adjusted value through the
// four-step pipeline: regional market correction, title status deduction,
// mileage deduction, safety floor. Steps run in that order on the running
// price and every step records a signed delta, so the breakdown always
// satisfies base + sum(deltas) == final.
type Adjuster struct {
	cfg AdjusterConfig
	log zerolog.Logger
}

func NewAdjuster(cfg AdjusterConfig, log zerolog.Logger) *Adjuster {
	return &Adjuster{
		cfg: cfg,
		log: log.With().Str("component", "adjuster").Logger(),
	}
}

// Adjust runs the pipeline for a query against an estimate's base value.
func (a *Adjuster) Adjust(estimate domain.ValuationEstimate, query *domain.VehicleQuery) domain.AdjustmentBreakdown {
	breakdown := domain.AdjustmentBreakdown{
		BaseValue: estimate.BaseValue,
		Deltas:    make([]domain.AdjustmentDelta, 0, 4),
	}
	running := estimate.BaseValue

	running = a.applyRegional(&breakdown, running, query, 1)
	running = a.applyTitle(&breakdown, running, estimate, query, 2)
	running = a.applyMileage(&breakdown, running, query, 3)
	running = a.applyFloor(&breakdown, running, query, 4)

	breakdown.FinalAdjustedPrice = running
	return breakdown
}

// applyRegional discounts depressed regional markets by a flat percentage
// of the running price. Locations outside the list record a zero delta.
func (a *Adjuster) applyRegional(b *domain.AdjustmentBreakdown, running float64, query *domain.VehicleQuery, step int) float64 {
	market := a.matchRegionalMarket(query.Location)
	delta := 0.0
	pct := 0.0
	label := "Regional market: no correction"
	if market != "" {
		pct = a.cfg.RegionalDiscountPct
		delta = -running * pct
		label = fmt.Sprintf("Regional market correction (%s, -%.0f%%)", market, pct*100)
	}
	return a.record(b, running, delta, domain.AdjustmentDelta{
		Kind:    domain.AdjustmentMarketReality,
		Percent: pct,
		Label:   label,
	}, step)
}

// applyTitle deducts a percentage of the running price for branded
// titles. Rebuilt severity is read from the description keywords, and the
// lighter query-aware range applies when the discovery search itself
// already named the rebuilt title.
func (a *Adjuster) applyTitle(b *domain.AdjustmentBreakdown, running float64, estimate domain.ValuationEstimate, query *domain.VehicleQuery, step int) float64 {
	severity := a.classifyDamage(query.Description)
	queryAware := estimate.Source == domain.SourceDiscovered && query.TitleStatus == domain.TitleRebuilt
	pct := a.cfg.titlePct(query.TitleStatus, severity, queryAware)

	delta := 0.0
	label := "Title status: clean, no deduction"
	if pct > 0 {
		delta = -running * pct
		label = fmt.Sprintf("Title status deduction (%s, -%.0f%%)", query.TitleStatus, pct*100)
		if query.TitleStatus == domain.TitleRebuilt {
			label = fmt.Sprintf("Title status deduction (%s, %s damage, -%.0f%%)", query.TitleStatus, severityName(severity), pct*100)
		}
	}
	return a.record(b, running, delta, domain.AdjustmentDelta{
		Kind:    domain.AdjustmentTitleStatus,
		Percent: pct,
		Label:   label,
	}, step)
}

// applyMileage deducts a flat dollar amount per mileage band. Bands are
// price independent so a high-mileage cheap car can lose a large share of
// its value here.
func (a *Adjuster) applyMileage(b *domain.AdjustmentBreakdown, running float64, query *domain.VehicleQuery, step int) float64 {
	deduction := a.cfg.bandFor(query.Mileage)
	delta := 0.0
	label := "Mileage: below deduction bands"
	if deduction > 0 {
		delta = -deduction
		label = fmt.Sprintf("High mileage deduction (%d mi, -$%.0f)", query.Mileage, deduction)
	}
	return a.record(b, running, delta, domain.AdjustmentDelta{
		Kind:  domain.AdjustmentMileage,
		Flat:  true,
		Label: label,
	}, step)
}

// applyFloor raises an implausibly low running price to the safety floor
// for the vehicle's age bracket. Severe-damage language in the
// description means the low price is believable and the floor is skipped.
func (a *Adjuster) applyFloor(b *domain.AdjustmentBreakdown, running float64, query *domain.VehicleQuery, step int) float64 {
	floor := a.cfg.floorFor(query.Year)
	delta := 0.0
	label := "Safety floor: not triggered"
	if floor > 0 && running < floor {
		if a.hasSevereDamage(query.Description) {
			label = "Safety floor skipped (severe damage disclosed)"
		} else {
			delta = floor - running
			label = fmt.Sprintf("Safety floor adjustment (raised to $%.0f)", floor)
		}
	}
	return a.record(b, running, delta, domain.AdjustmentDelta{
		Kind:  domain.AdjustmentSafetyFloor,
		Flat:  true,
		Label: label,
	}, step)
}

// record rounds the step result to cents and appends the delta computed
// from the rounded running prices, keeping base + sum(deltas) == final
// exact across the pipeline.
func (a *Adjuster) record(b *domain.AdjustmentBreakdown, running, delta float64, d domain.AdjustmentDelta, step int) float64 {
	next := round2(running + delta)
	d.Amount = next - running
	b.Deltas = append(b.Deltas, d)

	a.log.Debug().
		Str("stage", fmt.Sprintf("adjustment-step-%d", step)).
		Str("kind", d.Kind).
		Float64("before", running).
		Float64("delta", d.Amount).
		Float64("after", next).
		Msg(d.Label)

	return next
}

func (a *Adjuster) matchRegionalMarket(location string) string {
	loc := strings.ToLower(location)
	if loc == "" {
		return ""
	}
	for _, market := range a.cfg.RegionalMarkets {
		if strings.Contains(loc, market) {
			return market
		}
	}
	return ""
}

// classifyDamage scans the description for severity keywords. Major
// keywords win over minor ones when both appear.
func (a *Adjuster) classifyDamage(description string) damageSeverity {
	desc := strings.ToLower(description)
	if desc == "" {
		return severityUnknown
	}
	for _, kw := range a.cfg.MajorDamageKeywords {
		if strings.Contains(desc, kw) {
			return severityMajor
		}
	}
	for _, kw := range a.cfg.MinorDamageKeywords {
		if strings.Contains(desc, kw) {
			return severityMinor
		}
	}
	return severityUnknown
}

func (a *Adjuster) hasSevereDamage(description string) bool {
	desc := strings.ToLower(description)
	if desc == "" {
		return false
	}
	for _, kw := range a.cfg.SevereDamageKeywords {
		if strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}

func severityName(s damageSeverity) string {
	switch s {
	case severityMinor:
		return "minor"
	case severityMajor:
		return "major"
	default:
		return "unspecified"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
