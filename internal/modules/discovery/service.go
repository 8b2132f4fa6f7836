package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/flipwise/appraiser/internal/domain"
)

// Provider answers a natural-language question with free-form text.
type Provider interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Validator is the age-ceiling sanity check applied to a selected price.
type Validator interface {
	Validate(candidate float64, year int, title domain.TitleStatus) (bool, float64)
}

// fencePattern captures the body of a fenced code block.
var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// structuredRange is the shape the prompt asks the provider to emit in
// its fenced block.
type structuredRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Service runs price discovery end to end: prompt, provider call, MSRP
// filtering, extraction, selection, sanity validation. Every failure mode
// comes back as an error wrapping one of the domain sentinel errors; the
// pipeline absorbs them all by falling back to the estimator.
type Service struct {
	provider  Provider
	validator Validator
	extractor *Extractor
	log       zerolog.Logger
}

func NewService(provider Provider, validator Validator, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		provider:  provider,
		validator: validator,
		extractor: NewExtractor(cfg),
		log:       log.With().Str("component", "discovery").Logger(),
	}
}

// Discover finds a used-market value for the query. The returned estimate
// is tagged SourceDiscovered and carries the selected average unmodified;
// all adjustments happen downstream.
func (s *Service) Discover(ctx context.Context, query *domain.VehicleQuery) (domain.ValuationEstimate, error) {
	prompt := BuildPrompt(query)
	s.log.Debug().Str("stage", "discovery-prompt").Str("vehicle", query.Label()).Msg("asking knowledge provider")

	text, err := s.provider.Ask(ctx, prompt)
	if err != nil {
		return domain.ValuationEstimate{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.ValuationEstimate{}, fmt.Errorf("%w: empty response", domain.ErrProviderUnavailable)
	}

	best, err := s.selectCandidate(text)
	if err != nil {
		return domain.ValuationEstimate{}, err
	}

	ok, _ := s.validator.Validate(best.Average, query.Year, query.TitleStatus)
	if !ok {
		return domain.ValuationEstimate{}, fmt.Errorf("%w: %.2f over ceiling for %s", domain.ErrSanityRejected, best.Average, query.Label())
	}

	s.log.Info().
		Str("stage", "discovery-select").
		Str("vehicle", query.Label()).
		Float64("low", best.Low).
		Float64("high", best.High).
		Float64("average", best.Average).
		Int("priority", best.Priority).
		Str("source_type", best.SourceType).
		Msg("discovered market value")

	return domain.ValuationEstimate{
		BaseValue:                best.Average,
		Source:                   domain.SourceDiscovered,
		RawValueBeforeAdjustment: best.Average,
	}, nil
}

// selectCandidate picks the winning price candidate from provider text.
// A well-formed fenced block short-circuits text mining; a malformed one
// is a hard failure since a provider that garbles its own structured
// output cannot be trusted for free-text figures either.
func (s *Service) selectCandidate(text string) (domain.PriceCandidate, error) {
	if block, found := fencedBlock(text); found {
		cand, err := parseStructuredRange(block)
		if err != nil {
			return domain.PriceCandidate{}, fmt.Errorf("%w: structured block: %v", domain.ErrNoExtractablePrice, err)
		}
		if s.plausible(cand) {
			s.log.Debug().Str("stage", "discovery-extract").Float64("low", cand.Low).Float64("high", cand.High).Msg("using structured range")
			return cand, nil
		}
	}

	cleaned, emptied := s.extractor.StripMSRPContent(text)
	if emptied {
		return domain.PriceCandidate{}, fmt.Errorf("%w: answer contained only manufacturer pricing", domain.ErrNoExtractablePrice)
	}

	candidates := s.extractor.Extract(cleaned)
	s.log.Debug().Str("stage", "discovery-extract").Int("candidates", len(candidates)).Msg("extracted price candidates")

	best, ok := SelectBest(candidates)
	if !ok {
		return domain.PriceCandidate{}, fmt.Errorf("%w: no candidate survived filtering", domain.ErrNoExtractablePrice)
	}
	return best, nil
}

func (s *Service) plausible(c domain.PriceCandidate) bool {
	return c.Low >= s.extractor.cfg.MinPlausiblePrice && c.High <= s.extractor.cfg.MaxPlausiblePrice
}

func fencedBlock(text string) (string, bool) {
	m := fencePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func parseStructuredRange(block string) (domain.PriceCandidate, error) {
	var r structuredRange
	if err := json.Unmarshal([]byte(block), &r); err != nil {
		return domain.PriceCandidate{}, err
	}
	if r.Low <= 0 || r.High <= 0 || r.Low > r.High {
		return domain.PriceCandidate{}, fmt.Errorf("implausible range %.2f..%.2f", r.Low, r.High)
	}
	return domain.PriceCandidate{
		Low:        r.Low,
		High:       r.High,
		Average:    (r.Low + r.High) / 2,
		SourceType: "structured",
		Priority:   domain.PriorityMarketSale,
	}, nil
}
