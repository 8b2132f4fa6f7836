package history

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipwise/appraiser/internal/domain"
)

const testSchema = `
CREATE TABLE valuation_history (
	id TEXT PRIMARY KEY,
	family TEXT NOT NULL,
	adjusted_value REAL NOT NULL,
	data_source TEXT NOT NULL,
	payload BLOB NOT NULL,
	observed_at INTEGER NOT NULL
);
CREATE INDEX idx_history_family_observed ON valuation_history(family, observed_at DESC);
`

func setupStore(t *testing.T) *Store {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	return NewStore(db, zerolog.Nop())
}

func report(id string, year int, adjusted float64, observedAt time.Time) *domain.ValuationReport {
	return &domain.ValuationReport{
		ID: id,
		Query: domain.VehicleQuery{
			Make:        "chevrolet",
			Model:       "malibu",
			Year:        year,
			TitleStatus: domain.TitleClean,
		},
		PricingStrategy: domain.PricingResult{AdjustedValue: adjusted, MarketPrice: adjusted},
		DataSource:      domain.SourceFallback,
		ComputedAt:      observedAt,
	}
}

func TestFamily(t *testing.T) {
	assert.Equal(t, "chevrolet|malibu|2014", Family("Chevrolet", "Malibu", 2014))
	assert.Equal(t, "toyota|camry|0", Family("toyota", "camry", 0))
}

func TestRecordAndRecent(t *testing.T) {
	s := setupStore(t)

	now := time.Now()
	require.NoError(t, s.Record(report("a", 2014, 4200, now.Add(-2*time.Hour))))
	require.NoError(t, s.Record(report("b", 2014, 4350, now.Add(-time.Hour))))

	obs, err := s.Recent(Family("chevrolet", "malibu", 2014), 10)
	require.NoError(t, err)
	require.Len(t, obs, 2)

	// Newest first.
	assert.Equal(t, "b", obs[0].ID)
	assert.InDelta(t, 4350, obs[0].AdjustedValue, 0.01)
	assert.Equal(t, domain.SourceFallback, obs[0].DataSource)
	assert.Equal(t, "chevrolet", obs[0].Report.Query.Make)
	assert.InDelta(t, 4350, obs[0].Report.PricingStrategy.MarketPrice, 0.01)
}

func TestRecord_ReplacesSameID(t *testing.T) {
	s := setupStore(t)

	now := time.Now()
	require.NoError(t, s.Record(report("a", 2014, 4200, now)))
	require.NoError(t, s.Record(report("a", 2014, 4400, now)))

	obs, err := s.Recent(Family("chevrolet", "malibu", 2014), 10)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.InDelta(t, 4400, obs[0].AdjustedValue, 0.01)
}

func TestRecentValues_OldestFirstAndLimited(t *testing.T) {
	s := setupStore(t)

	now := time.Now()
	for i := 0; i < 5; i++ {
		r := report(fmt.Sprintf("id-%d", i), 2014, 4000+float64(i*100), now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Record(r))
	}

	values, err := s.RecentValues(Family("chevrolet", "malibu", 2014), 3)
	require.NoError(t, err)

	// The newest three observations, returned oldest to newest.
	assert.Equal(t, []float64{4200, 4300, 4400}, values)
}

func TestRecentValues_UnknownFamily(t *testing.T) {
	s := setupStore(t)

	values, err := s.RecentValues("nobody|nothing|1999", 10)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestCompact(t *testing.T) {
	s := setupStore(t)

	now := time.Now()
	// One ancient row and six recent ones.
	require.NoError(t, s.Record(report("ancient", 2014, 3000, now.Add(-400*24*time.Hour))))
	for i := 0; i < 6; i++ {
		r := report(fmt.Sprintf("recent-%d", i), 2014, 4000+float64(i), now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Record(r))
	}

	removed, err := s.Compact(DefaultMaxAge, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	obs, err := s.Recent(Family("chevrolet", "malibu", 2014), 10)
	require.NoError(t, err)
	assert.Len(t, obs, 4)
	for _, o := range obs {
		assert.NotEqual(t, "ancient", o.ID)
	}
}

func TestCompact_KeepsFamiliesIndependent(t *testing.T) {
	s := setupStore(t)

	now := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(report(fmt.Sprintf("malibu-%d", i), 2014, 4000, now)))
		camry := report(fmt.Sprintf("camry-%d", i), 2015, 9000, now)
		camry.Query.Make = "toyota"
		camry.Query.Model = "camry"
		require.NoError(t, s.Record(camry))
	}

	_, err := s.Compact(DefaultMaxAge, 2)
	require.NoError(t, err)

	malibu, err := s.Recent(Family("chevrolet", "malibu", 2014), 10)
	require.NoError(t, err)
	camry, err := s.Recent(Family("toyota", "camry", 2015), 10)
	require.NoError(t, err)

	assert.Len(t, malibu, 2)
	assert.Len(t, camry, 2)
}
