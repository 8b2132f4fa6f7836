package valuation

import (
	"github.com/rs/zerolog"

	"github.com/flipwise/appraiser/internal/domain"
)

// SanityValidator rejects prices that exceed an age-based ceiling over a
// clean-title reference. MSRP values for older vehicles reliably exceed
// realistic depreciated value by large margins, so the ceiling tightens
// with age.
type SanityValidator struct {
	estimator *Estimator
	cfg       ValidatorConfig
	log       zerolog.Logger
}

// NewSanityValidator creates a validator over the shared estimator curve.
func NewSanityValidator(estimator *Estimator, cfg ValidatorConfig, log zerolog.Logger) *SanityValidator {
	return &SanityValidator{
		estimator: estimator,
		cfg:       cfg,
		log:       log.With().Str("component", "sanity_validator").Logger(),
	}
}

// Validate checks a candidate price against its age-based ceiling.
// Returns whether the candidate is acceptable plus the clean-title
// reference value; on rejection the caller substitutes that reference,
// which is a correction rather than an error.
func (v *SanityValidator) Validate(candidate float64, year int, title domain.TitleStatus) (bool, float64) {
	reference := v.estimator.ReferenceValue(year)
	age := v.estimator.ageOf(year)

	ceiling := reference * v.cfg.titleFactor(title) * v.cfg.ceilingFor(age)

	ok := candidate <= ceiling

	event := v.log.Debug()
	if !ok {
		event = v.log.Info()
	}
	event.
		Str("stage", "validation").
		Float64("candidate", candidate).
		Float64("reference", reference).
		Float64("ceiling", ceiling).
		Int("age", age).
		Str("title", string(title)).
		Bool("accepted", ok).
		Msg("Sanity ceiling check")

	return ok, reference
}
