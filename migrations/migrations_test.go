package migrations

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestUpSQLite(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Up(db, DialectSQLite))
	// Re-running is a no-op.
	require.NoError(t, Up(db, DialectSQLite))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM content_items`).Scan(&n))
	assert.Equal(t, 0, n)

	_, err = db.Exec(`INSERT INTO content_items (title, content, category, author, created_at, updated_at)
		VALUES ('t', 'c', 'recipes', 'a', '2024-01-01 00:00:00.000000', '2024-01-01 00:00:00.000000')`)
	assert.Error(t, err, "category check constraint")
}

func TestUpUnknownDialect(t *testing.T) {
	assert.Error(t, Up(nil, "oracle"))
}
