package cachedata

import (
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupJobName(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	job := NewCleanupJob(NewRepository(db), zerolog.Nop())
	assert.Equal(t, "cache_cleanup", job.Name())
}

func TestCleanupJobRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	job := NewCleanupJob(repo, zerolog.Nop())

	now := time.Now()
	expiredAt := now.Add(-time.Hour).Unix()
	oldCreated := now.Add(-2 * time.Hour).Unix()

	for _, table := range AllTables {
		_, err := db.Exec(
			"INSERT INTO "+table+" (key, data, expires_at, created_at) VALUES (?, ?, ?, ?)",
			"expired-key", `{}`, expiredAt, oldCreated)
		require.NoError(t, err)
		require.NoError(t, repo.Store(table, "fresh-key", map[string]string{}, time.Hour))
	}

	require.NoError(t, job.Run())

	for _, table := range AllTables {
		var count int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count))
		assert.Equal(t, 1, count, "table %s should keep only the fresh entry", table)
	}
}
