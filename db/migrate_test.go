package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithMigrations(t *testing.T) {
	t.Run("creates all tables", func(t *testing.T) {
		db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "export.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		for _, table := range []string{"schema_migrations", "export_jobs", "export_job_generated", "quads"} {
			var exists int
			err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&exists)
			require.NoError(t, err)
			assert.Equal(t, 1, exists, "table %s should exist", table)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "export.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		require.NoError(t, Migrate(db, nil))

		files, err := migrationFiles()
		require.NoError(t, err)

		var recorded int
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&recorded))
		assert.Equal(t, len(files), recorded)
		db.Close()

		db, err = OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()
		require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&recorded))
		assert.Equal(t, len(files), recorded)
	})

	t.Run("job status is constrained", func(t *testing.T) {
		db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "export.db"), nil)
		require.NoError(t, err)
		defer db.Close()

		_, err = db.Exec(`INSERT INTO export_jobs (id, uri, meeting, status, created_at, modified_at)
			VALUES ('1', 'http://example.org/jobs/1', 'http://example.org/meetings/1', 'paused', '', '')`)
		assert.Error(t, err)
	})
}
