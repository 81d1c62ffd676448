package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	p := writeConfig(t, `
[jwt]
secret = "s3cr3t"
`)

	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "info", c.App.LogLevel)
	assert.Equal(t, ":8080", c.Addr())
	assert.Equal(t, "sqlite", c.DB.Driver)
	assert.Equal(t, "database.db", c.DB.DSN)
	assert.Equal(t, "local", c.Storage.Type)
	assert.Equal(t, "media", c.Storage.RootPath)
	assert.Equal(t, int64(50<<20), c.Upload.MaxSize)
	assert.Equal(t, 20, c.Upload.MaxFiles)
	assert.Equal(t, 10*time.Minute, c.Token.DefaultValidity)
	assert.Equal(t, 24*time.Hour, c.Token.MaxValidity)
	assert.Equal(t, time.Hour, c.Token.CleanupInterval)
	assert.Equal(t, 5, c.Security.RateLimit)
}

func TestLoadFileValues(t *testing.T) {
	p := writeConfig(t, `
[app]
log_level = "debug"

[host]
port = 9000
cors = ["https://files.example.com"]

[storage]
type = "s3"

[storage.s3]
bucket = "uploads"
region = "eu-central-1"
access_key_id = "id"
secret_access_key = "key"
use_path_style = true

[token]
default_validity = "90s"
cleanup_interval = "0s"

[jwt]
secret = "s3cr3t"
`)

	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "debug", c.App.LogLevel)
	assert.Equal(t, 9000, c.Host.Port)
	assert.Equal(t, []string{"https://files.example.com"}, c.Host.CORS)
	assert.Equal(t, "s3", c.Storage.Type)
	assert.Equal(t, "uploads", c.Storage.S3.Bucket)
	assert.True(t, c.Storage.S3.UsePathStyle)
	assert.Equal(t, 90*time.Second, c.Token.DefaultValidity)
	assert.Zero(t, c.Token.CleanupInterval)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	p := writeConfig(t, `
[jwt]
secret = "from-file"
`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("STORAGE_ROOT_PATH", "/srv/media")

	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "from-env", c.JWT.Secret)
	assert.Equal(t, "/srv/media", c.Storage.RootPath)
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"missing secret": ``,
		"bad log level": `
[app]
log_level = "loud"
[jwt]
secret = "x"
`,
		"bad driver": `
[db]
driver = "mysql"
[jwt]
secret = "x"
`,
		"s3 without bucket": `
[storage]
type = "s3"
[jwt]
secret = "x"
`,
		"zero validity": `
[token]
default_validity = "0s"
[jwt]
secret = "x"
`,
		"max below default": `
[token]
default_validity = "1h"
max_validity = "10m"
[jwt]
secret = "x"
`,
		"ssl without cert": `
[host.ssl]
enabled = true
[jwt]
secret = "x"
`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
