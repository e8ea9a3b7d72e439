package shared

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		require.NoError(t, err)
		require.NotEmpty(t, migrations)

		for i := 1; i < len(migrations); i++ {
			assert.Greater(t, migrations[i].Version, migrations[i-1].Version, "migrations should be sorted by version")
		}
		assert.Equal(t, "create_runs", migrations[0].Name)
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, RunMigrations(db))

		for _, table := range []string{"sync_runs", "sync_outcomes"} {
			_, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1")
			assert.NoError(t, err, "%s table should exist after migrations", table)
		}

		applied, err := AppliedMigrations(db)
		require.NoError(t, err)
		require.NotEmpty(t, applied)

		require.NoError(t, RollbackMigration(db))

		after, err := AppliedMigrations(db)
		require.NoError(t, err)
		assert.Less(t, len(after), len(applied))

		_, err = db.Exec("SELECT 1 FROM sync_runs LIMIT 1")
		assert.Error(t, err, "sync_runs should be dropped after rollback")

		assert.Error(t, RollbackMigration(db), "nothing left to roll back")
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		require.NoError(t, err)
		defer db.Close()

		require.NoError(t, RunMigrations(db))
		require.NoError(t, RunMigrations(db))

		applied, err := AppliedMigrations(db)
		require.NoError(t, err)

		migrations, err := loadMigrations()
		require.NoError(t, err)
		assert.Len(t, applied, len(migrations))
	})

	t.Run("splitStatements", func(t *testing.T) {
		got := splitStatements("-- header\nCREATE TABLE a (x INT); -- trailing\n\nDROP TABLE b;\n")
		assert.Equal(t, []string{"CREATE TABLE a (x INT)", "DROP TABLE b"}, got)
	})
}

func TestOpenJournal(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		_, err := OpenJournal(DatabaseConfig{Enabled: false})
		assert.ErrorIs(t, err, ErrJournalDisabled)
	})

	t.Run("Enabled", func(t *testing.T) {
		db, err := OpenJournal(DatabaseConfig{Enabled: true, Path: filepath.Join(t.TempDir(), "journal.db")})
		require.NoError(t, err)
		defer db.Close()

		_, err = db.Exec("SELECT 1 FROM sync_runs LIMIT 1")
		assert.NoError(t, err, "journal should be migrated")
	})
}
