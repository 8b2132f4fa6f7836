// Package history persists one observation per completed valuation so
// later runs can see how a vehicle family has been valued over time. The
// local price-trend fallback and the history API read from here.
package history

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/flipwise/appraiser/internal/domain"
)

// Observation is one recorded valuation for a vehicle family.
type Observation struct {
	ID            string                 `json:"id"`
	Family        string                 `json:"family"`
	AdjustedValue float64                `json:"adjusted_value"`
	DataSource    domain.ValuationSource `json:"data_source"`
	ObservedAt    time.Time              `json:"observed_at"`
	Report        domain.ValuationReport `json:"report"`
}

// Family is the grouping key for trend queries: make, model and year
// joined into one string. Mileage, trim and title are deliberately left
// out so observations of the same vehicle generation pool together.
func Family(makeName, model string, year int) string {
	return strings.ToLower(fmt.Sprintf("%s|%s|%d", makeName, model, year))
}

// Store reads and writes valuation observations in the history database.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewStore(db *sql.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With().Str("component", "history").Logger(),
	}
}

// Record appends the report as a new observation. The full report is
// kept as a msgpack blob next to the indexed columns.
func (s *Store) Record(report *domain.ValuationReport) error {
	payload, err := msgpack.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	family := Family(report.Query.Make, report.Query.Model, report.Query.Year)
	observedAt := report.ComputedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO valuation_history (id, family, adjusted_value, data_source, payload, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		report.ID,
		family,
		report.PricingStrategy.AdjustedValue,
		string(report.DataSource),
		payload,
		observedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record observation: %w", err)
	}

	s.log.Debug().
		Str("family", family).
		Float64("adjusted_value", report.PricingStrategy.AdjustedValue).
		Str("data_source", string(report.DataSource)).
		Msg("recorded valuation observation")
	return nil
}

// RecentValues returns up to limit adjusted values for a family, oldest
// first, ready for trend math.
func (s *Store) RecentValues(family string, limit int) ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT adjusted_value FROM (
			SELECT adjusted_value, observed_at FROM valuation_history
			WHERE family = ?
			ORDER BY observed_at DESC
			LIMIT ?
		) ORDER BY observed_at ASC`,
		family, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent values: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Recent returns up to limit full observations for a family, newest
// first. Blobs that no longer decode are skipped rather than failing the
// whole read.
func (s *Store) Recent(family string, limit int) ([]Observation, error) {
	rows, err := s.db.Query(`
		SELECT id, family, adjusted_value, data_source, payload, observed_at
		FROM valuation_history
		WHERE family = ?
		ORDER BY observed_at DESC
		LIMIT ?`,
		family, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var (
			obs        Observation
			source     string
			payload    []byte
			observedAt int64
		)
		if err := rows.Scan(&obs.ID, &obs.Family, &obs.AdjustedValue, &source, &payload, &observedAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		obs.DataSource = domain.ValuationSource(source)
		obs.ObservedAt = time.Unix(observedAt, 0)
		if err := msgpack.Unmarshal(payload, &obs.Report); err != nil {
			s.log.Warn().Err(err).Str("id", obs.ID).Msg("skipping undecodable history payload")
			continue
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// Compact trims each family to its newest keepPerFamily rows and drops
// anything older than maxAge regardless of count. Returns rows removed.
func (s *Store) Compact(maxAge time.Duration, keepPerFamily int) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	aged, err := s.db.Exec(`DELETE FROM valuation_history WHERE observed_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to drop aged rows: %w", err)
	}
	removed, _ := aged.RowsAffected()

	overflow, err := s.db.Exec(`
		DELETE FROM valuation_history WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY family ORDER BY observed_at DESC
				) AS rank
				FROM valuation_history
			) WHERE rank > ?
		)`, keepPerFamily)
	if err != nil {
		return removed, fmt.Errorf("failed to drop overflow rows: %w", err)
	}
	n, _ := overflow.RowsAffected()
	removed += n

	if removed > 0 {
		s.log.Info().Int64("removed", removed).Msg("compacted valuation history")
	}
	return removed, nil
}
