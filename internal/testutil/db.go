// Package testutil provides SQLite-backed stores, fixtures and a manual clock
// for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sevigo/commit-digest/internal/db"
)

// NewDB creates a migrated SQLite database in a temporary directory. It is
// closed when the test ends.
func NewDB(t *testing.T) *db.DB {
	t.Helper()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "digest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
