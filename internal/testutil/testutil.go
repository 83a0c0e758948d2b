// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/expensetracker/apiserver/config"
	"github.com/expensetracker/apiserver/internal/db"
	"github.com/stretchr/testify/require"
)

// SQLiteConfig returns a database config pointing at a fresh temp file.
func SQLiteConfig(t testing.TB) config.DatabaseConfig {
	t.Helper()
	return config.DatabaseConfig{
		Dialect: config.DialectSQLite,
		Path:    filepath.Join(t.TempDir(), "expenses.db"),
	}
}

// NewSQLiteDB returns a migrated SQLite database that is closed when the test ends.
func NewSQLiteDB(t testing.TB) *sql.DB {
	t.Helper()
	ctx := context.Background()
	cfg := SQLiteConfig(t)

	require.NoError(t, db.MigrateUp(ctx, cfg), "migrate test database")

	conn, err := db.Open(ctx, cfg)
	require.NoError(t, err, "open test database")
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
