package database

import (
	"fmt"
	"strings"
)

// Schema definitions, keyed by database name. Each schema is the single
// source of truth for its database and must stay idempotent
// (CREATE TABLE IF NOT EXISTS only).
var schemas = map[string]string{
	"cache":   cacheSchema,
	"history": historySchema,
}

// cacheSchema holds the TTL-cached valuation payloads and market signals.
// expires_at is a unix timestamp; rows past it are reaped by the cleanup job.
const cacheSchema = `
CREATE TABLE IF NOT EXISTS valuations (
    key        TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_valuations_expires ON valuations(expires_at);

CREATE TABLE IF NOT EXISTS market_signals (
    key        TEXT PRIMARY KEY,
    data       TEXT NOT NULL,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_market_signals_expires ON market_signals(expires_at);
`

// historySchema records one row per completed pipeline run. The payload
// column carries the msgpack-encoded observation; family groups rows by
// make|model|year for trend derivation.
const historySchema = `
CREATE TABLE IF NOT EXISTS valuation_history (
    id             TEXT PRIMARY KEY,
    family         TEXT NOT NULL,
    adjusted_value REAL NOT NULL,
    data_source    TEXT NOT NULL,
    payload        BLOB,
    observed_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_family_time ON valuation_history(family, observed_at DESC);
`

// Migrate applies the schema for this database. Unknown database names are
// skipped so ad-hoc databases (tests) can manage their own tables.
func (db *DB) Migrate() error {
	schema, ok := schemas[db.name]
	if !ok {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction for %s: %w", db.name, err)
	}

	if _, err := tx.Exec(schema); err != nil {
		_ = tx.Rollback()

		// Schema already applied is not an error
		errStr := err.Error()
		if strings.Contains(errStr, "duplicate column") ||
			strings.Contains(errStr, "already exists") {
			return nil
		}

		return fmt.Errorf("failed to execute schema for %s: %w", db.name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema for %s: %w", db.name, err)
	}

	return nil
}
