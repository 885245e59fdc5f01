package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tommynabo/TalentScope-sub000/internal/errors"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"STORAGE_TYPE", "SCAN_MAX_PAGES", "ENRICH_DELAY", "ENRICH_PARALLELISM"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()

	assert.Equal(t, StorageSQLite, cfg.StorageType)
	assert.Equal(t, 10, cfg.ScanMaxPages)
	assert.Equal(t, 500*time.Millisecond, cfg.EnrichDelay)
	assert.Equal(t, 1, cfg.EnrichParallelism)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("SCAN_MAX_PAGES", "3")
	t.Setenv("ENRICH_DELAY", "2s")
	t.Setenv("ENRICH_CHECKPOINT_EVERY", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, ,http://localhost:5173")

	cfg := FromEnv()

	assert.Equal(t, StorageMemory, cfg.StorageType)
	assert.Equal(t, 3, cfg.ScanMaxPages)
	assert.Equal(t, 2*time.Second, cfg.EnrichDelay)
	assert.Equal(t, 5, cfg.EnrichCheckpointEvery)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
}

func TestRunOptions(t *testing.T) {
	t.Setenv("SCAN_MAX_PAGES", "4")
	t.Setenv("ENRICH_PARALLELISM", "3")
	t.Setenv("ENRICH_CHECKPOINT_INTERVAL", "1m")

	cfg := FromEnv()

	assert.Equal(t, 4, cfg.ScanOptions().MaxPages)
	opts := cfg.EnrichOptions()
	assert.Equal(t, 3, opts.Parallelism)
	assert.Equal(t, time.Minute, opts.CheckpointInterval)
	assert.True(t, opts.SkipEnriched)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(c *Config)
		field string
	}{
		{name: "unknown storage", mod: func(c *Config) { c.StorageType = "mysql" }, field: "STORAGE_TYPE"},
		{name: "postgres without url", mod: func(c *Config) { c.StorageType = StoragePostgres }, field: "POSTGRES_URL"},
		{name: "page size too large", mod: func(c *Config) { c.ScanPageSize = 500 }, field: "SCAN_PAGE_SIZE"},
		{name: "no parallelism", mod: func(c *Config) { c.EnrichParallelism = 0 }, field: "ENRICH_PARALLELISM"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv()
			cfg.PostgresURL = ""
			tt.mod(cfg)

			err := cfg.Validate()

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestBuiltinPresets(t *testing.T) {
	p, err := LoadPresets("")
	require.NoError(t, err)

	list := p.List()
	require.Len(t, list, 10)
	assert.Equal(t, "proven-shippers", list[0].Name)

	c, err := p.Get("Proven-Shippers")
	require.NoError(t, err)
	assert.Equal(t, []string{"dart", "flutter"}, c.Languages)
	assert.True(t, c.RequireAppStoreLink)
	assert.Equal(t, 75, c.ScoreThreshold)
	assert.Equal(t, 60.0, c.MinOriginalityRatio)

	_, err = p.Get("nope")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPresetsFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
presets:
  - name: proven-shippers
    description: stricter
    criteria:
      languages: [swift]
      score_threshold: 90
  - name: go-backend
    description: Go services
    criteria:
      languages: [go]
      min_followers: 20
`), 0o644))

	p, err := LoadPresets(path)
	require.NoError(t, err)

	assert.Len(t, p.List(), 11)
	c, err := p.Get("proven-shippers")
	require.NoError(t, err)
	assert.Equal(t, []string{"swift"}, c.Languages)
	assert.Equal(t, 90, c.ScoreThreshold)

	c, err = p.Get("go-backend")
	require.NoError(t, err)
	assert.Equal(t, 20, c.MinFollowers)
}

func TestPresetsFileErrors(t *testing.T) {
	_, err := LoadPresets(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("presets:\n  - description: no name\n"), 0o644))
	_, err = LoadPresets(path)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestSetupLoggerWithWritersFansOut(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("candidate accepted", "username", "ana")
	logger.Debug("hidden")

	assert.Contains(t, stderr.String(), "username=ana")
	assert.Contains(t, file.String(), `"username":"ana"`)
	assert.NotContains(t, file.String(), "hidden")
}
