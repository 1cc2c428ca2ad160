package migrations

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doctrack/doctrack/internal/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(database.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, MigrateUp(db, SQLite))

	for _, table := range []string{"documents", "document_history", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s was not created", table)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, MigrateUp(db, SQLite))
	require.NoError(t, MigrateUp(db, SQLite))
}

func TestCheckDBMigrationStatus(t *testing.T) {
	db := openTestDB(t)

	err := CheckDBMigrationStatus(db, SQLite)
	require.EqualError(t, err, "database has no schema version (needs migration)")

	require.NoError(t, MigrateUp(db, SQLite))
	require.NoError(t, CheckDBMigrationStatus(db, SQLite))
}

func TestUnknownDialect(t *testing.T) {
	db := openTestDB(t)
	require.Error(t, MigrateUp(db, Dialect("oracle")))
}
