package signals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipwise/appraiser/internal/cachedata"
	"github.com/flipwise/appraiser/internal/domain"
	"github.com/flipwise/appraiser/internal/modules/history"
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

type stubProvider struct {
	text  string
	err   error
	calls int
}

func (p *stubProvider) Ask(ctx context.Context, prompt string) (string, error) {
	p.calls++
	return p.text, p.err
}

func setupService(t *testing.T, provider Provider) (*Service, *history.Store) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	hist := history.NewStore(db, zerolog.Nop())
	svc := NewService(provider, cachedata.NewRepository(db), hist, zerolog.Nop())
	return svc, hist
}

func signalsQuery() *domain.VehicleQuery {
	return &domain.VehicleQuery{
		Make:        "chevrolet",
		Model:       "malibu",
		Year:        2014,
		TitleStatus: domain.TitleClean,
		Location:    "spokane, wa",
	}
}

func seedHistory(t *testing.T, hist *history.Store, values []float64) {
	now := time.Now()
	for i, v := range values {
		r := &domain.ValuationReport{
			ID:              fmt.Sprintf("obs-%d", i),
			Query:           *signalsQuery(),
			PricingStrategy: domain.PricingResult{AdjustedValue: v},
			DataSource:      domain.SourceFallback,
			ComputedAt:      now.Add(time.Duration(i-len(values)) * time.Hour),
		}
		require.NoError(t, hist.Record(r))
	}
}

func TestLookup_ProviderPath(t *testing.T) {
	p := &stubProvider{text: "High demand, prices rising, sells in 15 days."}
	svc, _ := setupService(t, p)

	got := svc.Lookup(context.Background(), signalsQuery())

	assert.Equal(t, domain.DemandHigh, got.Demand)
	assert.Equal(t, domain.TrendRising, got.Trend)
	assert.Equal(t, 15, got.DaysToSell)
	assert.Equal(t, SourceProvider, got.Source)
}

func TestLookup_CachesProviderResult(t *testing.T) {
	p := &stubProvider{text: "Moderate demand, prices stable."}
	svc, _ := setupService(t, p)

	first := svc.Lookup(context.Background(), signalsQuery())
	second := svc.Lookup(context.Background(), signalsQuery())

	assert.Equal(t, 1, p.calls, "second lookup must come from cache")
	assert.Equal(t, first, second)
}

func TestLookup_ProviderFailureFallsBackToLocalTrend(t *testing.T) {
	p := &stubProvider{err: errors.New("timeout")}
	svc, hist := setupService(t, p)
	seedHistory(t, hist, []float64{4000, 4200, 4400, 4600})

	got := svc.Lookup(context.Background(), signalsQuery())

	assert.Equal(t, domain.DemandUnknown, got.Demand)
	assert.Equal(t, domain.TrendRising, got.Trend)
	assert.Equal(t, SourceLocalTrend, got.Source)
}

func TestLookup_UnrecognizableAnswerFallsBack(t *testing.T) {
	p := &stubProvider{text: "That is hard to say."}
	svc, hist := setupService(t, p)
	seedHistory(t, hist, []float64{4600, 4400, 4200, 4000})

	got := svc.Lookup(context.Background(), signalsQuery())

	assert.Equal(t, domain.TrendDeclining, got.Trend)
	assert.Equal(t, SourceLocalTrend, got.Source)
}

func TestLookup_NoHistoryDegradesToUnknown(t *testing.T) {
	p := &stubProvider{err: errors.New("unreachable")}
	svc, _ := setupService(t, p)

	got := svc.Lookup(context.Background(), signalsQuery())

	assert.Equal(t, domain.EmptyMarketSignals(), got)
}

func TestLookup_ThinHistoryDegradesToUnknown(t *testing.T) {
	p := &stubProvider{err: errors.New("unreachable")}
	svc, hist := setupService(t, p)
	seedHistory(t, hist, []float64{4000, 4100, 4200})

	got := svc.Lookup(context.Background(), signalsQuery())

	assert.Equal(t, domain.EmptyMarketSignals(), got)
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   domain.PriceTrend
	}{
		{name: "rising series", values: []float64{4000, 4100, 4200, 4300, 4400, 4500}, want: domain.TrendRising},
		{name: "declining series", values: []float64{4500, 4400, 4300, 4200, 4100, 4000}, want: domain.TrendDeclining},
		{name: "flat series", values: []float64{4000, 4010, 3995, 4005, 4000, 4008}, want: domain.TrendStable},
		{name: "too short", values: []float64{4000, 4500}, want: domain.TrendUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyTrend(tt.values))
		})
	}
}

func TestCacheKey_IncludesRegion(t *testing.T) {
	q := signalsQuery()
	withRegion := cacheKey(q)

	q.Location = ""
	withoutRegion := cacheKey(q)

	assert.NotEqual(t, withRegion, withoutRegion)
	assert.Contains(t, withRegion, "spokane")
}
