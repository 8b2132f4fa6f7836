package signals

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/flipwise/appraiser/internal/cachedata"
	"github.com/flipwise/appraiser/internal/domain"
	"github.com/flipwise/appraiser/internal/modules/history"
	"github.com/flipwise/appraiser/pkg/formulas"
)

// Signal sources reported in MarketSignals.Source.
const (
	SourceProvider   = "provider"
	SourceLocalTrend = "local-trend"
)

// Local trend parameters: how many observations to fetch, the minimum to
// attempt a fit, and the relative per-observation slope past which the
// series counts as moving.
const (
	trendWindow    = 12
	minTrendPoints = 4
	trendThreshold = 0.02
)

// Provider answers a natural-language question with free-form text.
type Provider interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Service is the enrichment branch of the pipeline.
type Service struct {
	provider Provider
	cache    *cachedata.Repository
	history  *history.Store
	log      zerolog.Logger
}

func NewService(provider Provider, cache *cachedata.Repository, hist *history.Store, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		cache:    cache,
		history:  hist,
		log:      log.With().Str("component", "signals").Logger(),
	}
}

// Lookup returns market signals for the query, degrading through cache,
// provider, local trend, and finally fully-unknown axes. It never returns
// an error; a degraded result is always usable.
func (s *Service) Lookup(ctx context.Context, query *domain.VehicleQuery) domain.MarketSignals {
	key := cacheKey(query)

	if cached := s.fromCache(key); cached != nil {
		return *cached
	}

	if s.provider != nil {
		text, err := s.provider.Ask(ctx, buildPrompt(query))
		if err == nil {
			if parsed, ok := Parse(text); ok {
				parsed.Source = SourceProvider
				s.store(key, parsed)
				return parsed
			}
			s.log.Debug().Str("vehicle", query.Label()).Msg("provider answer had no recognizable signals")
		} else {
			s.log.Warn().Err(err).Str("vehicle", query.Label()).Msg("signals lookup failed, trying local trend")
		}
	}

	return s.localSignals(query)
}

func (s *Service) fromCache(key string) *domain.MarketSignals {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.GetIfFresh(cachedata.TableMarketSignals, key, cachedata.TTLMarketSignals)
	if err != nil || data == nil {
		return nil
	}
	var sig domain.MarketSignals
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil
	}
	return &sig
}

func (s *Service) store(key string, sig domain.MarketSignals) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Store(cachedata.TableMarketSignals, key, sig, cachedata.TTLMarketSignals); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache market signals")
	}
}

// localSignals derives a price trend from this service's own past
// valuations when the provider is unreachable. Demand cannot be derived
// locally and stays unknown.
func (s *Service) localSignals(query *domain.VehicleQuery) domain.MarketSignals {
	out := domain.EmptyMarketSignals()
	if s.history == nil {
		return out
	}

	family := history.Family(query.Make, query.Model, query.Year)
	values, err := s.history.RecentValues(family, trendWindow)
	if err != nil {
		s.log.Warn().Err(err).Str("family", family).Msg("failed to read valuation history")
		return out
	}
	if len(values) < minTrendPoints {
		return out
	}

	trend := classifyTrend(values)
	if trend == domain.TrendUnknown {
		return out
	}

	out.Trend = trend
	out.Source = SourceLocalTrend
	s.log.Debug().
		Str("family", family).
		Int("observations", len(values)).
		Str("trend", string(trend)).
		Msg("derived local price trend")
	return out
}

// classifyTrend fits a least-squares line through the chronological
// series. The slope decides, but both moving-average windows must agree
// on direction since one outlier can tilt the fit on a short series.
func classifyTrend(values []float64) domain.PriceTrend {
	slope := formulas.CalculateTrendSlope(values)
	if slope == nil {
		return domain.TrendUnknown
	}

	window := len(values) / 2
	recent := formulas.CalculateSMA(values, window)
	older := formulas.CalculateSMA(values[:len(values)-window], window)
	if recent == nil || older == nil || *older == 0 {
		return domain.TrendUnknown
	}

	switch {
	case *slope > trendThreshold && *recent > *older:
		return domain.TrendRising
	case *slope < -trendThreshold && *recent < *older:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

// cacheKey groups signals by vehicle family and region; mileage, trim and
// title do not change what the market around you is doing.
func cacheKey(query *domain.VehicleQuery) string {
	key := history.Family(query.Make, query.Model, query.Year)
	if query.Location != "" {
		key += "|" + query.Location
	}
	return key
}

func buildPrompt(query *domain.VehicleQuery) string {
	region := query.Location
	if region == "" {
		region = "the united states"
	}
	return fmt.Sprintf(
		"In two or three sentences, describe the current private-party resale market for a %s in %s. "+
			"State the buyer demand level (high, moderate, or low), whether prices are rising, stable, or declining, "+
			"and the typical number of days such a vehicle takes to sell.",
		query.Label(), region,
	)
}
