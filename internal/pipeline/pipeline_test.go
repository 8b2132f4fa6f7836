package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipwise/appraiser/internal/cachedata"
	"github.com/flipwise/appraiser/internal/domain"
	"github.com/flipwise/appraiser/internal/events"
	"github.com/flipwise/appraiser/internal/modules/history"
	"github.com/flipwise/appraiser/internal/modules/pricing"
	"github.com/flipwise/appraiser/internal/modules/valuation"
)

const testSchema = `
CREATE TABLE market_signals (key TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL, created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')));
CREATE TABLE valuations (key TEXT PRIMARY KEY, data TEXT NOT NULL, expires_at INTEGER NOT NULL, created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')));
CREATE TABLE valuation_history (
	id TEXT PRIMARY KEY,
	family TEXT NOT NULL,
	adjusted_value REAL NOT NULL,
	data_source TEXT NOT NULL,
	payload BLOB NOT NULL,
	observed_at INTEGER NOT NULL
);
`

type stubDiscovery struct {
	estimate domain.ValuationEstimate
	err      error
	calls    int
	block    bool
}

func (d *stubDiscovery) Discover(ctx context.Context, q *domain.VehicleQuery) (domain.ValuationEstimate, error) {
	d.calls++
	if d.block {
		<-ctx.Done()
		return domain.ValuationEstimate{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, ctx.Err())
	}
	return d.estimate, d.err
}

type stubSignals struct {
	signals domain.MarketSignals
	block   bool
}

func (s *stubSignals) Lookup(ctx context.Context, q *domain.VehicleQuery) domain.MarketSignals {
	if s.block {
		<-ctx.Done()
		return domain.EmptyMarketSignals()
	}
	return s.signals
}

func discovered(base float64) domain.ValuationEstimate {
	return domain.ValuationEstimate{
		BaseValue:                base,
		Source:                   domain.SourceDiscovered,
		RawValueBeforeAdjustment: base,
	}
}

func newTestPipeline(t *testing.T, cfg Config, disc Discoverer, sig SignalSource) (*Pipeline, *events.Bus, *history.Store) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	est := valuation.NewEstimator(valuation.DefaultEstimatorConfig())
	bus := events.NewBus(zerolog.Nop())
	hist := history.NewStore(db, zerolog.Nop())

	p := New(cfg, Deps{
		Discovery: disc,
		Estimator: est,
		Validator: valuation.NewSanityValidator(est, valuation.DefaultValidatorConfig(), zerolog.Nop()),
		Adjuster:  pricing.NewAdjuster(pricing.DefaultAdjusterConfig(), zerolog.Nop()),
		Signals:   sig,
		Cache:     cachedata.NewRepository(db),
		History:   hist,
		Events:    events.NewManager(bus, zerolog.Nop()),
	}, zerolog.Nop())
	return p, bus, hist
}

func cleanQuery() *domain.VehicleQuery {
	q, err := domain.NewVehicleQuery(domain.QueryParams{
		Make:    "Honda",
		Model:   "Civic",
		Year:    2015,
		Mileage: 40000,
	})
	if err != nil {
		panic(err)
	}
	return q
}

// TestRunDiscoveredCleanVehicle tests the happy path: a clean low-mileage
// vehicle with a discovered value takes no deductions and prices at the
// fixed tier multipliers
func TestRunDiscoveredCleanVehicle(t *testing.T) {
	disc := &stubDiscovery{estimate: discovered(12000)}
	sig := &stubSignals{signals: domain.EmptyMarketSignals()}
	p, _, _ := newTestPipeline(t, DefaultConfig(), disc, sig)

	report, err := p.Run(context.Background(), cleanQuery(), domain.GoalBalanced)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, domain.SourceDiscovered, report.DataSource)
	assert.Equal(t, 12000.0, report.PricingStrategy.BaseMarketValue)
	assert.Equal(t, 12000.0, report.PricingStrategy.AdjustedValue)
	assert.Equal(t, 10200.0, report.PricingStrategy.QuickSale)
	assert.Equal(t, 12000.0, report.PricingStrategy.MarketPrice)
	assert.Equal(t, 13800.0, report.PricingStrategy.TopDollar)

	// Conservation across the recorded breakdown
	b := report.PricingStrategy.Breakdown
	assert.InDelta(t, b.FinalAdjustedPrice, b.BaseValue+b.DeltaTotal(), 1e-6)

	assert.NotEmpty(t, report.ID)
	assert.NotEmpty(t, report.Recommendation)
	assert.False(t, report.ComputedAt.IsZero())
	assert.GreaterOrEqual(t, report.FlipScore.Score, 0)
	assert.LessOrEqual(t, report.FlipScore.Score, 100)
}

// TestRunFallsBackOnDiscoveryFailure tests that a failing provider never
// fails the run; the deterministic estimator supplies the base value
func TestRunFallsBackOnDiscoveryFailure(t *testing.T) {
	disc := &stubDiscovery{err: fmt.Errorf("%w: boom", domain.ErrProviderUnavailable)}
	sig := &stubSignals{signals: domain.EmptyMarketSignals()}
	p, _, _ := newTestPipeline(t, DefaultConfig(), disc, sig)

	query := cleanQuery()
	report, err := p.Run(context.Background(), query, domain.GoalBalanced)
	require.NoError(t, err)

	est := valuation.NewEstimator(valuation.DefaultEstimatorConfig())
	assert.Equal(t, domain.SourceFallback, report.DataSource)
	assert.Equal(t, est.Estimate(query), report.PricingStrategy.BaseMarketValue)
}

// TestRunFallbackDeterminism tests that repeated fallback runs of the same
// query produce identical prices
func TestRunFallbackDeterminism(t *testing.T) {
	disc := &stubDiscovery{err: fmt.Errorf("%w: down", domain.ErrProviderUnavailable)}
	sig := &stubSignals{signals: domain.EmptyMarketSignals()}
	p, _, _ := newTestPipeline(t, DefaultConfig(), disc, sig)

	first, err := p.RunWithTTL(context.Background(), cleanQuery(), domain.GoalBalanced, 0)
	require.NoError(t, err)
	second, err := p.RunWithTTL(context.Background(), cleanQuery(), domain.GoalBalanced, 0)
	require.NoError(t, err)

	assert.Equal(t, first.PricingStrategy.BaseMarketValue, second.PricingStrategy.BaseMarketValue)
	assert.Equal(t, first.PricingStrategy.AdjustedValue, second.PricingStrategy.AdjustedValue)
	assert.Equal(t, first.PricingStrategy.QuickSale, second.PricingStrategy.QuickSale)
	assert.Equal(t, first.FlipScore.Score, second.FlipScore.Score)
}

// TestRunServesCachedPayload tests that a repeat query within the TTL is
// served from cache without touching the provider again
func TestRunServesCachedPayload(t *testing.T) {
	disc := &stubDiscovery{estimate: discovered(9000)}
	sig := &stubSignals{signals: domain.EmptyMarketSignals()}
	p, bus, _ := newTestPipeline(t, DefaultConfig(), disc, sig)

	var hits int
	bus.Subscribe(events.CacheHit, func(e *events.Event) { hits++ })

	first, err := p.Run(context.Background(), cleanQuery(), domain.GoalBalanced)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), cleanQuery(), domain.GoalBalanced)
	require.NoError(t, err)

	assert.Equal(t, 1, disc.calls)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, hits)
}

// TestRunZeroTTLForcesRecompute tests the diagnostic recompute path
func TestRunZeroTTLForcesRecompute(t *testing.T) {
	disc := &stubDiscovery{estimate: discovered(9000)}
	sig := &stubSignals{signals: domain.EmptyMarketSignals()}
	p, _, _ := newTestPipeline(t, DefaultConfig(), disc, sig)

	first, err := p.RunWithTTL(context.Background(), cleanQuery(), domain.GoalBalanced, 0)
	require.NoError(t, err)
	second, err := p.RunWithTTL(context.Background(), cleanQuery(), domain.GoalBalanced, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, disc.calls)
	assert.NotEqual(t, first.ID, second.ID)
}

// TestRunCacheKeyIgnoresAskingPrice tests that two queries differing only
// in asking price share one cache entry
func TestRunCacheKeyIgnoresAskingPrice(t *testing.T) {
	disc := &stubDiscovery{estimate: discovered(9000)}
	sig := &stubSignals{signals: domain.EmptyMarketSignals()}
	p, _, _ := newTestPipeline(t, DefaultConfig(), disc, sig)

	q1, err := domain.NewVehicleQuery(domain.QueryParams{Make: "Honda", Model: "Civic", Year: 2015, AskingPrice: 8000})
	require.NoError(t, err)
	q2, err := domain.NewVehicleQuery(domain.QueryParams{Make: "Honda", Model: "Civic", Year: 2015, AskingPrice: 9500})
	require.NoError(t, err)

	first, err := p.Run(context.Background(), q1, domain.GoalBalanced)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), q2, domain.GoalBalanced)
	require.NoError(t, err)

	assert.Equal(t, 1, disc.calls)
	assert.Equal(t, first.ID, second.ID)
}

// TestRunBranchTimeoutsAreIndependent tests that a hung provider on both
// branches still yields a complete report within the configured ceilings
func TestRunBranchTimeoutsAreIndependent(t *testing.T) {
	cfg := Config{
		DiscoveryTimeout: 50 * time.Millisecond,
		SignalsTimeout:   30 * time.Millisecond,
		CacheTTL:         time.Hour,
	}
	p, _, _ := newTestPipeline(t, cfg, &stubDiscovery{block: true}, &stubSignals{block: true})

	start := time.Now()
	report, err := p.Run(context.Background(), cleanQuery(), domain.GoalBalanced)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, domain.SourceFallback, report.DataSource)
	assert.Equal(t, domain.DemandUnknown, report.MarketSignals.Demand)
	assert.Equal(t, domain.TrendUnknown, report.MarketSignals.Trend)
	assert.Greater(t, report.PricingStrategy.AdjustedValue, 0.0)
}

// TestRunRecordsHistory tests that each computed run appends one
// observation for the vehicle family
func TestRunRecordsHistory(t *testing.T) {
	disc := &stubDiscovery{estimate: discovered(9000)}
	sig := &stubSignals{signals: domain.EmptyMarketSignals()}
	p, _, hist := newTestPipeline(t, DefaultConfig(), disc, sig)

	report, err := p.Run(context.Background(), cleanQuery(), domain.GoalBalanced)
	require.NoError(t, err)

	values, err := hist.RecentValues(history.Family("honda", "civic", 2015), 10)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, report.PricingStrategy.AdjustedValue, values[0])
}

// TestRunEmitsStageEvents tests the event sequence of a computed run
func TestRunEmitsStageEvents(t *testing.T) {
	disc := &stubDiscovery{estimate: discovered(9000)}
	sig := &stubSignals{signals: domain.MarketSignals{
		Demand: domain.DemandHigh,
		Trend:  domain.TrendRising,
		Source: "provider",
	}}
	p, bus, _ := newTestPipeline(t, DefaultConfig(), disc, sig)

	var sequence []events.EventType
	record := func(e *events.Event) { sequence = append(sequence, e.Type) }
	bus.Subscribe(events.ValuationStarted, record)
	bus.Subscribe(events.DiscoveryCompleted, record)
	bus.Subscribe(events.SignalsResolved, record)
	bus.Subscribe(events.ValuationCompleted, record)

	_, err := p.Run(context.Background(), cleanQuery(), domain.GoalBalanced)
	require.NoError(t, err)

	require.Equal(t, []events.EventType{
		events.ValuationStarted,
		events.DiscoveryCompleted,
		events.SignalsResolved,
		events.ValuationCompleted,
	}, sequence)
}

// TestRunEmitsFallbackReason tests that the discovery stage event carries
// a stable reason tag when the estimator had to take over
func TestRunEmitsFallbackReason(t *testing.T) {
	disc := &stubDiscovery{err: fmt.Errorf("%w: only MSRP text", domain.ErrNoExtractablePrice)}
	sig := &stubSignals{signals: domain.EmptyMarketSignals()}
	p, bus, _ := newTestPipeline(t, DefaultConfig(), disc, sig)

	var got *events.Event
	bus.Subscribe(events.DiscoveryCompleted, func(e *events.Event) { got = e })

	_, err := p.Run(context.Background(), cleanQuery(), domain.GoalBalanced)
	require.NoError(t, err)

	require.NotNil(t, got)
	data, ok := got.GetTypedData().(*events.DiscoveryCompletedData)
	require.True(t, ok)
	assert.Equal(t, "fallback", data.Source)
	assert.Equal(t, "no_extractable_price", data.Reason)
}

// TestRunSanityCorrectsFallback tests that a fallback estimate over a
// tightened ceiling is replaced by the clean-title reference
func TestRunSanityCorrectsFallback(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	est := valuation.NewEstimator(valuation.DefaultEstimatorConfig())
	tight := valuation.ValidatorConfig{
		CeilingOld:    0.5,
		CeilingMid:    0.5,
		CeilingRecent: 0.5,
	}
	bus := events.NewBus(zerolog.Nop())

	p := New(DefaultConfig(), Deps{
		Discovery: &stubDiscovery{err: fmt.Errorf("%w: down", domain.ErrProviderUnavailable)},
		Estimator: est,
		Validator: valuation.NewSanityValidator(est, tight, zerolog.Nop()),
		Adjuster:  pricing.NewAdjuster(pricing.DefaultAdjusterConfig(), zerolog.Nop()),
		Signals:   &stubSignals{signals: domain.EmptyMarketSignals()},
		Cache:     cachedata.NewRepository(db),
		History:   history.NewStore(db, zerolog.Nop()),
		Events:    events.NewManager(bus, zerolog.Nop()),
	}, zerolog.Nop())

	query := cleanQuery()
	report, err := p.Run(context.Background(), query, domain.GoalBalanced)
	require.NoError(t, err)

	assert.Equal(t, est.ReferenceValue(query.Year), report.PricingStrategy.BaseMarketValue)
}

// TestRunGoalSelectsRecommendation tests that the goal hint changes only
// the recommendation string, never the computed tiers
func TestRunGoalSelectsRecommendation(t *testing.T) {
	disc := &stubDiscovery{estimate: discovered(12000)}
	sig := &stubSignals{signals: domain.EmptyMarketSignals()}
	p, _, _ := newTestPipeline(t, DefaultConfig(), disc, sig)

	quick, err := p.RunWithTTL(context.Background(), cleanQuery(), domain.GoalQuickSale, 0)
	require.NoError(t, err)
	profit, err := p.RunWithTTL(context.Background(), cleanQuery(), domain.GoalMaxProfit, 0)
	require.NoError(t, err)

	assert.Equal(t, quick.PricingStrategy, profit.PricingStrategy)
	assert.NotEqual(t, quick.Recommendation, profit.Recommendation)
	assert.Contains(t, quick.Recommendation, "10200")
	assert.Contains(t, profit.Recommendation, "13800")
}

// TestRunCancelledContext tests the one hard failure mode: a context
// already cancelled at entry
func TestRunCancelledContext(t *testing.T) {
	disc := &stubDiscovery{estimate: discovered(9000)}
	sig := &stubSignals{signals: domain.EmptyMarketSignals()}
	p, bus, _ := newTestPipeline(t, DefaultConfig(), disc, sig)

	var failed int
	bus.Subscribe(events.ValuationFailed, func(e *events.Event) { failed++ })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.Run(ctx, cleanQuery(), domain.GoalBalanced)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, disc.calls)
}
