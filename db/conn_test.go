package db

import (
	"os"
	"path/filepath"
	"testing"

	"bitwise74/file-api/config"
	"bitwise74/file-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMigratesTables(t *testing.T) {
	db, err := New(config.Database{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)

	for _, m := range []any{model.User{}, model.File{}, model.DownloadToken{}} {
		assert.True(t, db.Migrator().HasTable(m))
	}
}

func TestCheckMounted(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.db")
	mounted := filepath.Join(dir, "mounted.db")
	require.NoError(t, os.WriteFile(mounted, nil, 0o600))

	tests := []struct {
		name     string
		cfg      config.Database
		inDocker bool
		wantErr  bool
	}{
		{name: "missing file in docker", cfg: config.Database{Driver: "sqlite", DSN: missing}, inDocker: true, wantErr: true},
		{name: "missing file with params", cfg: config.Database{Driver: "sqlite", DSN: "file:" + missing + "?cache=shared"}, inDocker: true, wantErr: true},
		{name: "mounted file in docker", cfg: config.Database{Driver: "sqlite", DSN: mounted}, inDocker: true},
		{name: "in memory in docker", cfg: config.Database{Driver: "sqlite", DSN: ":memory:"}, inDocker: true},
		{name: "postgres in docker", cfg: config.Database{Driver: "postgres", DSN: "host=db"}, inDocker: true},
		{name: "missing file outside docker", cfg: config.Database{Driver: "sqlite", DSN: missing}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkMounted(tt.cfg, tt.inDocker)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(config.Database{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_foreign_keys=1&_busy_timeout=5000", sqliteDSN("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_foreign_keys=1&_busy_timeout=5000", sqliteDSN("file:a.db?mode=rwc"))
	assert.Equal(t, "a.db", sqlitePath("file:a.db?mode=rwc"))
}
