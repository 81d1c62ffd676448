// Package testutil builds throwaway databases and blob stores for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"bitwise74/file-api/config"
	"bitwise74/file-api/db"
	"bitwise74/file-api/internal/blob"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a migrated SQLite database inside t.TempDir.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	d, err := db.New(config.Database{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := d.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return d
}

// NewLocalStore returns a blob store rooted in t.TempDir.
func NewLocalStore(t testing.TB) *blob.LocalStore {
	t.Helper()

	s, err := blob.NewLocalStore(filepath.Join(t.TempDir(), "media"))
	require.NoError(t, err)
	return s
}
