package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "vault.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 32, cfg.Paths.MaxWalkDepth)
	assert.Equal(t, []string{"search"}, cfg.Paths.ExcludedFolders)
	assert.Equal(t, 3, cfg.Extract.MaxAttempts)
	assert.Equal(t, 1000, cfg.Extract.BackoffMillis)
	assert.Equal(t, 100, cfg.Mailbox.MaxBlobMB)
	assert.Equal(t, 2000, cfg.Watch.SettleMills)
	assert.Contains(t, cfg.Watch.Extensions, ".pdf")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/vault
paths:
  source_root: /data/properties
  vault_root: /data/vault
  exclude_globs:
    - "tmp/**"
extract:
  max_attempts: 5
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/vault", cfg.Store.DatabaseURL)
	assert.Equal(t, "/data/properties", cfg.Paths.SourceRoot)
	assert.Equal(t, []string{"tmp/**"}, cfg.Paths.ExcludeGlobs)
	assert.Equal(t, 5, cfg.Extract.MaxAttempts)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Values the file does not set keep their defaults.
	assert.Equal(t, 1000, cfg.Extract.BackoffMillis)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INGEST_STORE_DRIVER", "postgres")
	t.Setenv("INGEST_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shout", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
}
