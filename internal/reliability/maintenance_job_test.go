package reliability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipwise/appraiser/internal/database"
)

func TestMaintenanceRunOnHealthyDatabases(t *testing.T) {
	tempDir := t.TempDir()
	dataDir := filepath.Join(tempDir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))

	cacheDB := newSeededDB(t, dataDir, "cache", 10)
	historyDB := newSeededDB(t, dataDir, "history", 10)

	job := NewMaintenanceJob([]*database.DB{cacheDB, historyDB}, dataDir, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Equal(t, "db_maintenance", job.Name())

	// Databases must remain usable after checkpoint and vacuum
	var count int
	require.NoError(t, cacheDB.QueryRow("SELECT COUNT(*) FROM observations").Scan(&count))
	assert.Equal(t, 10, count)
}
