// Package pipeline orchestrates one valuation run end to end: fingerprint
// cache check, concurrent price discovery and market enrichment, the
// adjustment pipeline, tier pricing, flip scoring, and persistence.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flipwise/appraiser/internal/cachedata"
	"github.com/flipwise/appraiser/internal/domain"
	"github.com/flipwise/appraiser/internal/events"
	"github.com/flipwise/appraiser/internal/modules/history"
	"github.com/flipwise/appraiser/internal/modules/pricing"
	"github.com/flipwise/appraiser/internal/modules/scoring"
	"github.com/flipwise/appraiser/internal/modules/valuation"
)

// Discoverer produces a market value estimate from external knowledge.
type Discoverer interface {
	Discover(ctx context.Context, query *domain.VehicleQuery) (domain.ValuationEstimate, error)
}

// SignalSource resolves demand and trend enrichment for a query. It never
// errors; a failed lookup degrades to unknown axes.
type SignalSource interface {
	Lookup(ctx context.Context, query *domain.VehicleQuery) domain.MarketSignals
}

// Config tunes per-branch timeouts and cache freshness.
type Config struct {
	// DiscoveryTimeout caps the knowledge-provider branch. Providers
	// routinely take tens of seconds on obscure vehicles.
	DiscoveryTimeout time.Duration

	// SignalsTimeout caps the enrichment branch. Enrichment is best-effort
	// and cut off much earlier than discovery.
	SignalsTimeout time.Duration

	// CacheTTL is the default freshness window for served payloads and the
	// expiry written on new ones.
	CacheTTL time.Duration
}

// DefaultConfig returns the standard run parameters.
func DefaultConfig() Config {
	return Config{
		DiscoveryTimeout: 50 * time.Second,
		SignalsTimeout:   15 * time.Second,
		CacheTTL:         cachedata.TTLValuation,
	}
}

// Deps are the collaborators a Pipeline wires together.
type Deps struct {
	Discovery Discoverer
	Estimator *valuation.Estimator
	Validator *valuation.SanityValidator
	Adjuster  *pricing.Adjuster
	Signals   SignalSource
	Cache     *cachedata.Repository
	History   *history.Store
	Events    *events.Manager
}

// Pipeline runs valuations. One instance serves all requests; runs share
// no mutable state beyond the fingerprint cache.
type Pipeline struct {
	cfg       Config
	discovery Discoverer
	estimator *valuation.Estimator
	validator *valuation.SanityValidator
	adjuster  *pricing.Adjuster
	signals   SignalSource
	cache     *cachedata.Repository
	history   *history.Store
	events    *events.Manager
	log       zerolog.Logger
}

// New wires a pipeline from its collaborators.
func New(cfg Config, deps Deps, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		discovery: deps.Discovery,
		estimator: deps.Estimator,
		validator: deps.Validator,
		adjuster:  deps.Adjuster,
		signals:   deps.Signals,
		cache:     deps.Cache,
		history:   deps.History,
		events:    deps.Events,
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes the full pipeline with the configured cache freshness.
func (p *Pipeline) Run(ctx context.Context, query *domain.VehicleQuery, goal domain.SaleGoal) (*domain.ValuationReport, error) {
	return p.RunWithTTL(ctx, query, goal, p.cfg.CacheTTL)
}

// RunWithTTL executes the pipeline with an explicit cache freshness
// window. Zero or negative ttl forces a fresh computation; the result is
// still written back with the standard TTL for later callers.
func (p *Pipeline) RunWithTTL(ctx context.Context, query *domain.VehicleQuery, goal domain.SaleGoal, ttl time.Duration) (*domain.ValuationReport, error) {
	if err := ctx.Err(); err != nil {
		p.events.EmitTyped(events.ValuationFailed, "pipeline", &events.ValuationFailedData{
			Vehicle: query.Label(),
			Error:   err.Error(),
		})
		return nil, err
	}

	start := time.Now()
	fingerprint := query.Fingerprint()

	p.events.EmitTyped(events.ValuationStarted, "pipeline", &events.ValuationStartedData{
		Vehicle: query.Label(),
		Goal:    string(goal),
	})

	if report := p.fromCache(fingerprint, ttl); report != nil {
		p.events.EmitTyped(events.CacheHit, "pipeline", &events.CacheHitData{
			Fingerprint: fingerprint,
			AgeSeconds:  time.Since(report.ComputedAt).Seconds(),
		})
		p.emitCompleted(report, start, true)
		return report, nil
	}

	estimate, signals := p.gather(ctx, query)

	breakdown := p.adjuster.Adjust(estimate, query)
	tiers := pricing.BuildTiers(breakdown)
	score := scoring.Score(query, signals)

	p.log.Info().
		Str("stage", "scoring").
		Str("vehicle", query.Label()).
		Int("score", score.Score).
		Str("recommendation", score.Recommendation).
		Msg("flip score computed")

	report := &domain.ValuationReport{
		ID:              uuid.New().String(),
		Query:           *query,
		PricingStrategy: tiers,
		FlipScore:       score,
		MarketSignals:   signals,
		Recommendation:  pricing.Recommend(goal, tiers),
		DataSource:      estimate.Source,
		ComputedAt:      time.Now().UTC(),
	}

	p.persist(fingerprint, report)
	p.emitCompleted(report, start, false)

	return report, nil
}

// gather runs price discovery and market enrichment concurrently, each
// under its own timeout so one slow provider cannot starve the other.
// Discovery failure of any kind degrades to the deterministic estimator;
// enrichment never fails by contract.
func (p *Pipeline) gather(ctx context.Context, query *domain.VehicleQuery) (domain.ValuationEstimate, domain.MarketSignals) {
	var (
		wg       sync.WaitGroup
		estimate domain.ValuationEstimate
		discErr  error
		signals  domain.MarketSignals
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		dctx, cancel := context.WithTimeout(ctx, p.cfg.DiscoveryTimeout)
		defer cancel()
		estimate, discErr = p.discovery.Discover(dctx, query)
	}()
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(ctx, p.cfg.SignalsTimeout)
		defer cancel()
		signals = p.signals.Lookup(sctx, query)
	}()
	wg.Wait()

	if discErr != nil {
		estimate = p.fallback(query, discErr)
	}

	p.events.EmitTyped(events.DiscoveryCompleted, "pipeline", &events.DiscoveryCompletedData{
		Vehicle:   query.Label(),
		BaseValue: estimate.BaseValue,
		Source:    string(estimate.Source),
		Reason:    fallbackReason(discErr),
	})
	p.events.EmitTyped(events.SignalsResolved, "pipeline", &events.SignalsResolvedData{
		Vehicle:    query.Label(),
		Demand:     string(signals.Demand),
		Trend:      string(signals.Trend),
		DaysToSell: signals.DaysToSell,
		Source:     signals.Source,
	})

	return estimate, signals
}

// fallback produces the deterministic estimate after discovery failed.
// The estimate is sanity-checked like any discovered value; a rejected
// fallback is corrected to the clean-title reference, which keeps the
// correction rule uniform across both sources.
func (p *Pipeline) fallback(query *domain.VehicleQuery, cause error) domain.ValuationEstimate {
	p.log.Warn().
		Str("stage", "fallback").
		Str("vehicle", query.Label()).
		Err(cause).
		Msg("discovery failed, using depreciation estimate")

	base := p.estimator.Estimate(query)
	if ok, reference := p.validator.Validate(base, query.Year, query.TitleStatus); !ok {
		base = reference
	}

	return domain.ValuationEstimate{
		BaseValue:                base,
		Source:                   domain.SourceFallback,
		RawValueBeforeAdjustment: base,
	}
}

// fromCache returns a previously computed report when one is younger than
// ttl. Read errors and undecodable payloads degrade to a miss.
func (p *Pipeline) fromCache(fingerprint string, ttl time.Duration) *domain.ValuationReport {
	raw, err := p.cache.GetIfFresh(cachedata.TableValuations, fingerprint, ttl)
	if err != nil {
		p.log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("cache read failed")
		return nil
	}
	if raw == nil {
		return nil
	}

	var report domain.ValuationReport
	if err := json.Unmarshal(raw, &report); err != nil {
		p.log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("cached payload undecodable, recomputing")
		return nil
	}

	p.log.Info().
		Str("stage", "cache").
		Str("fingerprint", fingerprint).
		Time("computed_at", report.ComputedAt).
		Msg("serving cached valuation")
	return &report
}

// persist writes the finished report to the fingerprint cache and the
// long-term history store. Neither write can fail the run.
func (p *Pipeline) persist(fingerprint string, report *domain.ValuationReport) {
	if err := p.cache.Store(cachedata.TableValuations, fingerprint, report, p.cfg.CacheTTL); err != nil {
		p.log.Warn().Err(err).Str("fingerprint", fingerprint).Msg("cache write failed")
	}
	if err := p.history.Record(report); err != nil {
		p.log.Warn().Err(err).Str("report_id", report.ID).Msg("history append failed")
	}
}

func (p *Pipeline) emitCompleted(report *domain.ValuationReport, start time.Time, fromCache bool) {
	p.events.EmitTyped(events.ValuationCompleted, "pipeline", &events.ValuationCompletedData{
		ReportID:      report.ID,
		Vehicle:       report.Query.Label(),
		BaseValue:     report.PricingStrategy.BaseMarketValue,
		AdjustedValue: report.PricingStrategy.AdjustedValue,
		FlipScore:     report.FlipScore.Score,
		DataSource:    string(report.DataSource),
		FromCache:     fromCache,
		DurationMS:    time.Since(start).Milliseconds(),
	})
}

// fallbackReason maps a discovery error to a short stable tag for event
// consumers. Empty when discovery succeeded.
func fallbackReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrSanityRejected):
		return "sanity_rejected"
	case errors.Is(err, domain.ErrNoExtractablePrice):
		return "no_extractable_price"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return "provider_unavailable"
	default:
		return "discovery_error"
	}
}
