// Package domain provides the core vehicle valuation models and types.
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// TitleStatus represents the legal title condition of a vehicle
type TitleStatus string

const (
	TitleClean   TitleStatus = "clean"
	TitleRebuilt TitleStatus = "rebuilt"
	TitleSalvage TitleStatus = "salvage"
	TitleJunk    TitleStatus = "junk"
	TitleParts   TitleStatus = "parts"
)

// titleStatusMap normalizes free-text title descriptions to a TitleStatus.
// Sellers type all sorts of variants; anything unrecognized is assumed clean.
var titleStatusMap = map[string]TitleStatus{
	"clean":         TitleClean,
	"clear":         TitleClean,
	"clean title":   TitleClean,
	"rebuilt":       TitleRebuilt,
	"rebuild":       TitleRebuilt,
	"reconstructed": TitleRebuilt,
	"rebuilt title": TitleRebuilt,
	"salvage":       TitleSalvage,
	"salvaged":      TitleSalvage,
	"salvage title": TitleSalvage,
	"junk":          TitleJunk,
	"junked":        TitleJunk,
	"parts":         TitleParts,
	"parts only":    TitleParts,
	"for parts":     TitleParts,
}

// NormalizeTitleStatus maps a raw title string to its canonical enum value.
// The second return reports whether the input was recognized; unrecognized
// input falls back to a clean title assumption.
func NormalizeTitleStatus(raw string) (TitleStatus, bool) {
	key := normalizeText(raw)
	if status, ok := titleStatusMap[key]; ok {
		return status, true
	}
	return TitleClean, false
}

// Condition represents the normalized physical condition of a vehicle
type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
	ConditionUnknown   Condition = "unknown"
)

// conditionMap normalizes marketplace condition phrasing to a Condition.
var conditionMap = map[string]Condition{
	"excellent":       ConditionExcellent,
	"like new":        ConditionExcellent,
	"mint":            ConditionExcellent,
	"very good":       ConditionGood,
	"good":            ConditionGood,
	"great":           ConditionGood,
	"fair":            ConditionFair,
	"average":         ConditionFair,
	"okay":            ConditionFair,
	"ok":              ConditionFair,
	"poor":            ConditionPoor,
	"bad":             ConditionPoor,
	"rough":           ConditionPoor,
	"needs work":      ConditionPoor,
	"not running":     ConditionPoor,
	"doesn't run":     ConditionPoor,
	"does not run":    ConditionPoor,
	"non-running":     ConditionPoor,
	"parts or repair": ConditionPoor,
}

// NormalizeCondition maps a raw condition string to its canonical enum value.
func NormalizeCondition(raw string) Condition {
	key := normalizeText(raw)
	if key == "" {
		return ConditionUnknown
	}
	if cond, ok := conditionMap[key]; ok {
		return cond
	}
	// Phrase-level match for longer descriptions ("runs great, like new interior")
	for phrase, cond := range conditionMap {
		if strings.Contains(key, phrase) {
			return cond
		}
	}
	return ConditionUnknown
}

// SaleGoal is the caller's optional selling preference. It only selects
// which pricing tier gets recommended and never changes computed prices.
type SaleGoal string

const (
	GoalQuickSale SaleGoal = "quick_sale"
	GoalMaxProfit SaleGoal = "max_profit"
	GoalBalanced  SaleGoal = "balanced"
)

// NormalizeSaleGoal maps a raw goal string to its canonical value,
// defaulting to balanced.
func NormalizeSaleGoal(raw string) SaleGoal {
	switch normalizeText(raw) {
	case "quick_sale", "quick sale", "quick":
		return GoalQuickSale
	case "max_profit", "max profit", "top_dollar", "top dollar":
		return GoalMaxProfit
	default:
		return GoalBalanced
	}
}

// QueryParams is the raw, caller-supplied input for building a VehicleQuery.
type QueryParams struct {
	Make        string  `json:"make"`
	Model       string  `json:"model"`
	Year        int     `json:"year,omitempty"`
	Mileage     int     `json:"mileage,omitempty"`
	Trim        string  `json:"trim,omitempty"`
	TitleStatus string  `json:"title_status,omitempty"`
	Location    string  `json:"location,omitempty"`
	Condition   string  `json:"condition,omitempty"`
	Description string  `json:"description,omitempty"`
	AskingPrice float64 `json:"asking_price,omitempty"`
}

// VehicleQuery is the normalized, immutable input to one pipeline run.
// All string fields are lowercased and whitespace-collapsed exactly once,
// at construction; no downstream component re-normalizes. Fields must not
// be mutated after construction.
type VehicleQuery struct {
	Make        string      `json:"make"`
	Model       string      `json:"model"`
	Year        int         `json:"year,omitempty"`
	Mileage     int         `json:"mileage,omitempty"`
	Trim        string      `json:"trim,omitempty"`
	TitleStatus TitleStatus `json:"title_status"`
	Location    string      `json:"location,omitempty"`
	Condition   Condition   `json:"condition"`
	Description string      `json:"description,omitempty"`
	AskingPrice float64     `json:"asking_price,omitempty"`

	// TitleAssumed is true when the raw title string was unrecognized and
	// the clean default was applied.
	TitleAssumed bool `json:"title_assumed,omitempty"`
}

// NewVehicleQuery builds a normalized VehicleQuery from raw caller input.
// This is the single normalization step for the whole pipeline. Returns
// ErrMalformedQuery when make or model is missing, since no meaningful
// estimate can be produced without them.
func NewVehicleQuery(p QueryParams) (*VehicleQuery, error) {
	makeName := normalizeText(p.Make)
	modelName := normalizeText(p.Model)
	if makeName == "" || modelName == "" {
		return nil, fmt.Errorf("make=%q model=%q: %w", p.Make, p.Model, ErrMalformedQuery)
	}

	title, recognized := NormalizeTitleStatus(p.TitleStatus)

	condition := NormalizeCondition(p.Condition)
	if condition == ConditionUnknown && p.Description != "" {
		condition = NormalizeCondition(p.Description)
	}

	q := &VehicleQuery{
		Make:         makeName,
		Model:        modelName,
		Year:         p.Year,
		Mileage:      p.Mileage,
		Trim:         normalizeText(p.Trim),
		TitleStatus:  title,
		Location:     normalizeText(p.Location),
		Condition:    condition,
		Description:  normalizeText(p.Description),
		AskingPrice:  p.AskingPrice,
		TitleAssumed: p.TitleStatus != "" && !recognized,
	}
	return q, nil
}

// Fingerprint returns the canonical cache key for this query. The key is
// order-independent (field-sorted) and excludes asking price and free-text
// description, so queries differing only in those map to the same entry.
func (q *VehicleQuery) Fingerprint() string {
	pairs := []string{
		fmt.Sprintf("make=%s", q.Make),
		fmt.Sprintf("model=%s", q.Model),
		fmt.Sprintf("year=%d", q.Year),
		fmt.Sprintf("mileage=%d", q.Mileage),
		fmt.Sprintf("trim=%s", q.Trim),
		fmt.Sprintf("title=%s", q.TitleStatus),
		fmt.Sprintf("location=%s", q.Location),
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "|")
}

// Label returns a short human-readable vehicle description for logs.
func (q *VehicleQuery) Label() string {
	if q.Year > 0 {
		return fmt.Sprintf("%d %s %s", q.Year, q.Make, q.Model)
	}
	return fmt.Sprintf("%s %s", q.Make, q.Model)
}

// normalizeText lowercases and collapses all whitespace runs to single
// spaces. Every comparison field in the pipeline goes through this once.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
