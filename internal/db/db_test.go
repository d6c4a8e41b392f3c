package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, path string) *DB {
	t.Helper()
	database, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestOpen_CreatesDatabase(t *testing.T) {
	database := openTestDB(t, filepath.Join(t.TempDir(), "test.db"))
	assert.NoError(t, database.Ping())
}

func TestOpen_CreatesParentDirs(t *testing.T) {
	database := openTestDB(t, filepath.Join(t.TempDir(), "subdir", "nested", "test.db"))
	assert.NoError(t, database.Ping())
}

func TestOpen_TablesExist(t *testing.T) {
	database := openTestDB(t, filepath.Join(t.TempDir(), "test.db"))

	for _, table := range []string{"embeddings", "schema_migrations"} {
		var count int
		err := database.Conn().QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&count)
		require.NoError(t, err, "query table %q", table)
		assert.Equal(t, 1, count, "table %q not found", table)
	}
}

func TestOpen_MigrationsRecorded(t *testing.T) {
	database := openTestDB(t, filepath.Join(t.TempDir(), "test.db"))

	var count int
	require.NoError(t, database.Conn().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	first, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// The ALTER TABLE migration would fail if it ran twice.
	second := openTestDB(t, dbPath)
	assert.NoError(t, second.Ping())
}
